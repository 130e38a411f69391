package watchlist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mmcdole/shelf/internal/domain"
	"github.com/mmcdole/shelf/internal/normalize"
)

// mutation edits a document and reports what changed. The same function runs
// against the list cache or the persisted document, so both paths share the
// locate, remove, insert procedure.
type mutation func(doc *domain.Document) (outcome, error)

func (c *Coordinator) add(item domain.MediaItem, to domain.ListKey) mutation {
	return func(doc *domain.Document) (outcome, error) {
		stored, from, existed := doc.Put(item, to, c.now())
		out := outcome{item: stored, to: domain.ListRef{Kind: stored.Kind, Key: to}}
		if existed {
			out.from = from
		}
		return out, nil
	}
}

func (c *Coordinator) move(key domain.ItemKey, to domain.ListKey) mutation {
	return func(doc *domain.Document) (outcome, error) {
		ref, _, ok := doc.Locate(key)
		if !ok {
			return outcome{}, domain.NewError(domain.ErrItemNotFound, "move", key.String(), nil)
		}
		if ref.Key == to {
			item, _, _ := doc.Get(key)
			return outcome{item: item, from: ref, to: ref, noop: true}, nil
		}
		item, from, err := doc.Move(key.WithKind(ref.Kind), to, c.now())
		if err != nil {
			return outcome{}, err
		}
		return outcome{item: item, from: from, to: domain.ListRef{Kind: from.Kind, Key: to}}, nil
	}
}

func (c *Coordinator) remove(key domain.ItemKey) mutation {
	return func(doc *domain.Document) (outcome, error) {
		item, from, err := doc.Remove(key)
		if err != nil {
			return outcome{}, err
		}
		return outcome{item: item, from: from}, nil
	}
}

func (c *Coordinator) update(key domain.ItemKey, edit domain.ItemEdit) mutation {
	return func(doc *domain.Document) (outcome, error) {
		item, ref, err := doc.Update(key, c.now(), func(m *domain.MediaItem) {
			if edit.UserNotes != nil {
				m.UserNotes = strings.TrimSpace(*edit.UserNotes)
			}
			if edit.UserRating != nil {
				r := *edit.UserRating
				m.UserRating = &r
			}
		})
		if err != nil {
			return outcome{}, err
		}
		return outcome{item: item, from: ref, to: ref}, nil
	}
}

func (c *Coordinator) markWatched(key domain.ItemKey) mutation {
	return func(doc *domain.Document) (outcome, error) {
		ref, _, ok := doc.Locate(key)
		if !ok {
			return outcome{}, domain.NewError(domain.ErrItemNotFound, "mark watched", key.String(), nil)
		}
		key = key.WithKind(ref.Kind)
		now := c.now()
		if ref.Key != domain.ListWatched {
			if _, _, err := doc.Move(key, domain.ListWatched, now); err != nil {
				return outcome{}, err
			}
		}
		item, _, err := doc.Update(key, now, func(m *domain.MediaItem) { m.WatchCount++ })
		if err != nil {
			return outcome{}, err
		}
		return outcome{item: item, from: ref, to: domain.ListRef{Kind: ref.Kind, Key: domain.ListWatched}}, nil
	}
}

// resolveItem builds the record to file for an add. Without caller data the
// tracked record is reused, or the metadata resolver backfills it.
func (c *Coordinator) resolveItem(ctx context.Context, req request, ready bool) (domain.MediaItem, error) {
	existing, found := c.lookup(ctx, req.Item, ready)

	data := req.Data
	if data == nil {
		if found {
			return existing, nil
		}
		if c.metadata == nil {
			return domain.MediaItem{}, domain.NewError(domain.ErrValidation, "add", req.rawID, errors.New("item data required"))
		}
		resolved, err := c.metadata.Resolve(ctx, req.Item)
		if err != nil {
			return domain.MediaItem{}, domain.NewError(domain.ErrValidation, "add", req.rawID, fmt.Errorf("resolve metadata: %w", err))
		}
		data = resolved
	}

	d := *data
	if d.ID == 0 {
		d.ID = req.Item.ID
	}
	if d.ID != req.Item.ID {
		return domain.MediaItem{}, domain.NewError(domain.ErrValidation, "add", req.rawID,
			fmt.Errorf("item data is for id %d", d.ID))
	}

	fallbackKind := req.Item.Kind
	if fallbackKind == "" && found {
		fallbackKind = existing.Kind
	}
	item, err := normalize.Item(d, fallbackKind, c.now())
	if errors.Is(err, domain.ErrValidation) && fallbackKind == "" {
		// Provider records without any kind hint are movie-shaped
		item, err = normalize.Item(d, domain.KindMovie, c.now())
	}
	if err != nil {
		return domain.MediaItem{}, err
	}
	if req.Item.Kind != "" && item.Kind != req.Item.Kind {
		return domain.MediaItem{}, domain.NewError(domain.ErrValidation, "add", req.rawID,
			fmt.Errorf("item data is a %s, id says %s", item.Kind, req.Item.Kind))
	}
	return item, nil
}

func (c *Coordinator) lookup(ctx context.Context, key domain.ItemKey, ready bool) (domain.MediaItem, bool) {
	snap := c.snapshot(ctx, ready)
	if snap == nil {
		return domain.MediaItem{}, false
	}
	ref, ok := snap.Locate(key)
	if !ok {
		return domain.MediaItem{}, false
	}
	for _, item := range snap.Items(ref) {
		if item.ID == key.ID {
			return item, true
		}
	}
	return domain.MediaItem{}, false
}
