// Package watchlist is the public mutation API for the status lists. Every
// operation validates its input, passes the dedup guard, mutates the list cache
// (or the persisted document when the cache is not ready), persists, and then
// announces the outcome on the event bus. Nothing but true/false crosses the
// API; failures become an :error event.
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/shelf/internal/dedup"
	"github.com/mmcdole/shelf/internal/domain"
	"github.com/mmcdole/shelf/internal/events"
	"github.com/mmcdole/shelf/internal/fallback"
	"github.com/mmcdole/shelf/internal/listcache"
	"github.com/mmcdole/shelf/internal/log"
)

// Lists is the list cache the coordinator drives
type Lists interface {
	GetCache() *listcache.Snapshot
	State() (listcache.State, string)
	Document() (*domain.Document, string, error)
	Apply(op string, fn func(*domain.Document) error) error
}

// Store persists the document of one identity
type Store interface {
	LoadAppData(ctx context.Context, uid string) (*domain.Document, error)
	SaveAppData(ctx context.Context, uid string, doc *domain.Document) bool
}

// Publisher delivers events
type Publisher interface {
	Publish(e events.Event) events.Event
}

// Options holds the optional collaborators
type Options struct {
	// Metadata backfills item data for bare-id adds
	Metadata domain.MetadataResolver
	Logger   *slog.Logger
	Now      func() time.Time
}

// Coordinator serializes every mutation behind one lock. The adapter path and
// the raw fallback path both run under it, so they never race on an item.
// Events are published after the lock is released.
type Coordinator struct {
	lists    Lists
	store    Store
	resolver *fallback.Resolver
	guard    *dedup.Guard
	bus      Publisher
	metadata domain.MetadataResolver
	logger   *slog.Logger
	now      func() time.Time

	mu sync.Mutex
}

func New(lists Lists, store Store, resolver *fallback.Resolver, guard *dedup.Guard, bus Publisher, opts Options) *Coordinator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		lists:    lists,
		store:    store,
		resolver: resolver,
		guard:    guard,
		bus:      bus,
		metadata: opts.Metadata,
		logger:   log.Component(opts.Logger, "watchlist"),
		now:      now,
	}
}

// request is a validated operation plus the caller's raw arguments, which
// error events echo back
type request struct {
	domain.Operation
	rawID   string
	rawFrom string
	rawTo   string
	edit    domain.ItemEdit
	watched bool // MarkWatched
}

// outcome is what a successful mutation reports
type outcome struct {
	item domain.MediaItem
	from domain.ListRef
	to   domain.ListRef
	noop bool
}

// AddItem files an item under listKey. data may be nil for an item that is
// already tracked or when a metadata resolver is configured.
func (c *Coordinator) AddItem(ctx context.Context, itemID, listKey string, data *domain.ItemData) bool {
	req, err := c.validate(domain.OpAdd, itemID, "", listKey)
	if err != nil {
		return c.reject(req, err)
	}
	req.Data = data
	return c.admitAndRun(ctx, "", req)
}

// MoveItem relocates an item. The item is located across every list, so a stale
// fromList still converges on toList. fromList == toList succeeds without an event.
func (c *Coordinator) MoveItem(ctx context.Context, itemID, fromList, toList string) bool {
	req, err := c.validate(domain.OpMove, itemID, fromList, toList)
	if err != nil {
		return c.reject(req, err)
	}
	if req.From == req.To {
		return true
	}
	return c.admitAndRun(ctx, "", req)
}

// RemoveItem erases an item from every list
func (c *Coordinator) RemoveItem(ctx context.Context, itemID, fromList string) bool {
	req, err := c.validate(domain.OpRemove, itemID, fromList, "")
	if err != nil {
		return c.reject(req, err)
	}
	return c.admitAndRun(ctx, "", req)
}

// UpdateItem edits notes or rating in place. Edits are not deduplicated: the
// same edit applied twice yields the same record.
func (c *Coordinator) UpdateItem(ctx context.Context, itemID string, edit domain.ItemEdit) bool {
	req, err := c.validate(domain.OpUpdate, itemID, "", "")
	if err != nil {
		return c.reject(req, err)
	}
	if edit.UserNotes == nil && edit.UserRating == nil {
		return c.reject(req, domain.NewError(domain.ErrValidation, "update", itemID, errors.New("nothing to update")))
	}
	if r := edit.UserRating; r != nil && (*r < 0 || *r > 10) {
		return c.reject(req, domain.NewError(domain.ErrValidation, "update", itemID, fmt.Errorf("rating %v out of range 0-10", *r)))
	}
	req.edit = edit
	return c.run(ctx, req)
}

// MarkWatched bumps the watch count and files the item under watched
func (c *Coordinator) MarkWatched(ctx context.Context, itemID string) bool {
	req, err := c.validate(domain.OpUpdate, itemID, "", string(domain.ListWatched))
	if err != nil {
		return c.reject(req, err)
	}
	req.watched = true
	return c.admitAndRun(ctx, "", req)
}

// Dispatch is the capture point for UI triggers. A trigger from a busy control
// or a repeat inside the dedup window is dropped silently.
func (c *Coordinator) Dispatch(ctx context.Context, t domain.Trigger) bool {
	var (
		req request
		err error
	)
	switch t.Op {
	case domain.OpAdd, "":
		req, err = c.validate(domain.OpAdd, t.ItemID, "", t.ListKey)
		req.Data = t.Data
	case domain.OpMove:
		req, err = c.validate(domain.OpMove, t.ItemID, t.FromList, t.ListKey)
		if err == nil && req.From == req.To {
			return true
		}
	case domain.OpRemove:
		req, err = c.validate(domain.OpRemove, t.ItemID, t.ListKey, "")
	default:
		req = request{Operation: domain.Operation{Kind: t.Op}, rawID: t.ItemID, rawTo: t.ListKey}
		err = domain.NewError(domain.ErrValidation, "dispatch", t.ItemID, fmt.Errorf("unsupported trigger %q", t.Op))
	}
	if err != nil {
		return c.reject(req, err)
	}
	return c.admitAndRun(ctx, t.ControlID, req)
}

func (c *Coordinator) validate(op domain.OpKind, itemID, fromList, toList string) (request, error) {
	req := request{
		Operation: domain.Operation{Kind: op, ObservedAt: c.now()},
		rawID:     itemID,
		rawFrom:   fromList,
		rawTo:     toList,
	}

	var err error
	if op == domain.OpMove || op == domain.OpRemove {
		if req.From, err = domain.ParseListKey(fromList); err != nil {
			return req, err
		}
	}
	if op == domain.OpAdd || op == domain.OpMove || toList != "" {
		if req.To, err = domain.ParseListKey(toList); err != nil {
			return req, err
		}
	}
	if req.Item, err = domain.ParseItemKey(itemID); err != nil {
		return req, err
	}
	return req, nil
}

func (c *Coordinator) admitAndRun(ctx context.Context, controlID string, req request) bool {
	if c.guard != nil {
		if !c.guard.Admit(controlID, dedup.Key(req.Kind, req.Item.String(), req.ListKey())) {
			c.logger.Debug("dropped duplicate operation", "op", req.Kind, "itemID", req.rawID,
				"control", controlID, "tracked", c.guard.Len())
			return false
		}
	}
	return c.run(ctx, req)
}

func (c *Coordinator) run(ctx context.Context, req request) bool {
	// Admitted operations run to completion
	ctx = context.WithoutCancel(ctx)
	ready := c.resolver.Await(ctx)

	var fn mutation
	switch {
	case req.Kind == domain.OpAdd:
		item, err := c.resolveItem(ctx, req, ready)
		if err != nil {
			return c.reject(req, err)
		}
		fn = c.add(item, req.To)
	case req.Kind == domain.OpMove:
		fn = c.move(req.Item, req.To)
	case req.Kind == domain.OpRemove:
		fn = c.remove(req.Item)
	case req.watched:
		fn = c.markWatched(req.Item)
	default:
		fn = c.update(req.Item, req.edit)
	}

	out, err := c.execute(ctx, ready, req, fn)
	if err != nil {
		return c.reject(req, err)
	}
	c.logger.Debug("applied list operation", "op", req.Kind, "itemID", req.rawID,
		"noop", out.noop, "elapsed", c.now().Sub(req.ObservedAt))
	if !out.noop {
		c.announce(req, out)
	}
	return true
}

// execute applies fn on the adapter when it is ready, otherwise (or if it went
// away since the wait) on the persisted document.
func (c *Coordinator) execute(ctx context.Context, ready bool, req request, fn mutation) (outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out outcome
	apply := func(doc *domain.Document) error {
		var err error
		out, err = fn(doc)
		return err
	}

	if ready {
		err := c.lists.Apply(string(req.Kind), apply)
		if err == nil {
			c.persist(ctx, req)
			return out, nil
		}
		if !errors.Is(err, domain.ErrAdapterUnavailable) {
			return outcome{}, err
		}
		c.logger.Warn("list cache went away mid-operation, using raw fallback", "op", req.Kind, "itemID", req.rawID)
	}

	_, uid := c.lists.State()
	if err := c.resolver.Apply(ctx, uid, string(req.Kind), apply); err != nil {
		return outcome{}, err
	}
	return out, nil
}

func (c *Coordinator) persist(ctx context.Context, req request) {
	doc, uid, err := c.lists.Document()
	if err != nil {
		c.logger.Error("failed to snapshot lists for persistence", "error", err, "itemID", req.rawID)
		return
	}
	if !c.store.SaveAppData(ctx, uid, doc) {
		c.logger.Warn("failed to persist app data, change kept in memory", "op", req.Kind, "itemID", req.rawID)
	}
}

func (c *Coordinator) announce(req request, out outcome) {
	if c.bus == nil {
		return
	}
	item := out.item
	e := events.Event{
		Type:   events.OutcomeType(req.Kind, false),
		ItemID: req.rawID,
		Kind:   item.Kind,
		Item:   &item,
	}
	switch {
	case req.Kind == domain.OpRemove:
		e.ListKey = out.from.Key
		e.FromList = out.from.Key
	case req.watched && out.from.Key != domain.ListWatched:
		e.Type = events.EventItemMoved
		e.ListKey = domain.ListWatched
		e.FromList = out.from.Key
		e.ToList = domain.ListWatched
	default:
		e.ListKey = out.to.Key
		e.ToList = out.to.Key
		if out.from.Key != "" && out.from != out.to {
			e.FromList = out.from.Key
		}
	}
	c.bus.Publish(e)
	c.bus.Publish(events.Event{Type: events.EventCardsChanged, ItemID: req.rawID, ListKey: e.ListKey, Kind: item.Kind})
}

func (c *Coordinator) reject(req request, err error) bool {
	c.logger.Error("failed to apply list operation", "op", req.Kind, "error", err, "kind", domain.ErrorKind(err),
		"itemID", req.rawID, "from", req.rawFrom, "to", req.rawTo)
	if c.bus == nil {
		return false
	}
	e := events.Event{
		Type:     events.OutcomeType(req.Kind, true),
		ItemID:   req.rawID,
		FromList: domain.ListKey(req.rawFrom),
		ToList:   domain.ListKey(req.rawTo),
		Error:    err.Error(),
	}
	if req.Kind == domain.OpRemove {
		e.ListKey = e.FromList
	} else {
		e.ListKey = e.ToList
	}
	c.bus.Publish(e)
	return false
}
