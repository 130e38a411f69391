package watchlist

import (
	"context"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/mmcdole/shelf/internal/domain"
	"github.com/mmcdole/shelf/internal/listcache"
)

// HasItem reports whether itemID is filed under listKey. A bare id matches
// either kind.
func (c *Coordinator) HasItem(ctx context.Context, itemID, listKey string) bool {
	list, err := domain.ParseListKey(listKey)
	if err != nil {
		c.logger.Debug("invalid list key", "error", err, "itemID", itemID)
		return false
	}
	key, err := domain.ParseItemKey(itemID)
	if err != nil {
		c.logger.Debug("invalid item id", "error", err, "itemID", itemID)
		return false
	}
	snap := c.snapshot(ctx, c.resolver.Await(ctx))
	return snap != nil && snap.Has(key, list)
}

// GetItems returns one status list. An empty kind returns both kinds, tv first.
func (c *Coordinator) GetItems(ctx context.Context, listKey string, kind domain.MediaKind) []domain.MediaItem {
	list, err := domain.ParseListKey(listKey)
	if err != nil {
		c.logger.Debug("invalid list key", "error", err)
		return nil
	}
	kinds, ok := kindsFor(kind)
	if !ok {
		c.logger.Debug("invalid media kind", "kind", kind)
		return nil
	}
	snap := c.snapshot(ctx, c.resolver.Await(ctx))
	if snap == nil {
		return nil
	}

	var items []domain.MediaItem
	for _, k := range kinds {
		items = append(items, snap.Items(domain.ListRef{Kind: k, Key: list})...)
	}
	return items
}

// FindItems ranks tracked items by fuzzy title match. An empty query returns
// everything.
func (c *Coordinator) FindItems(ctx context.Context, query string, kind domain.MediaKind) []domain.MediaItem {
	kinds, ok := kindsFor(kind)
	if !ok {
		return nil
	}
	snap := c.snapshot(ctx, c.resolver.Await(ctx))
	if snap == nil {
		return nil
	}

	var all []domain.MediaItem
	for _, k := range kinds {
		for _, list := range domain.ListKeys {
			all = append(all, snap.Items(domain.ListRef{Kind: k, Key: list})...)
		}
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return all
	}

	byTitle := make(map[string][]domain.MediaItem)
	titles := make([]string, 0, len(all))
	for _, item := range all {
		if _, seen := byTitle[item.Title]; !seen {
			titles = append(titles, item.Title)
		}
		byTitle[item.Title] = append(byTitle[item.Title], item)
	}

	matches := fuzzy.RankFindFold(query, titles)
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})

	results := make([]domain.MediaItem, 0, len(matches))
	for _, match := range matches {
		results = append(results, byTitle[match.Target]...)
	}
	return results
}

// snapshot reads from the list cache when ready, otherwise from the persisted
// document. It returns nil when neither is readable.
func (c *Coordinator) snapshot(ctx context.Context, ready bool) *listcache.Snapshot {
	if ready {
		if snap := c.lists.GetCache(); snap != nil {
			return snap
		}
	}
	_, uid := c.lists.State()
	doc, err := c.store.LoadAppData(ctx, uid)
	if err != nil {
		c.logger.Error("failed to read app data", "uid", uid, "error", err)
		return nil
	}
	return listcache.NewSnapshot(uid, doc)
}

func kindsFor(kind domain.MediaKind) ([]domain.MediaKind, bool) {
	if kind == "" {
		return domain.Kinds, true
	}
	k, ok := domain.ParseMediaKind(string(kind))
	if !ok {
		return nil, false
	}
	return []domain.MediaKind{k}, true
}
