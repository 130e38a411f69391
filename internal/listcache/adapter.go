// Package listcache owns the hydrated, in-memory list membership for the active
// identity.
package listcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/shelf/internal/domain"
	"github.com/mmcdole/shelf/internal/events"
	"github.com/mmcdole/shelf/internal/log"
)

// State is the hydration state
type State int

const (
	StateUnhydrated State = iota
	StateHydrating
	StateHydrated
)

func (s State) String() string {
	switch s {
	case StateHydrating:
		return "hydrating"
	case StateHydrated:
		return "hydrated"
	default:
		return "unhydrated"
	}
}

// Loader reads persisted documents. LoadAppData returns the device-local
// document scoped to uid ("" when signed out).
type Loader interface {
	LoadAppData(ctx context.Context, uid string) (*domain.Document, error)
	LoadRemote(ctx context.Context, uid string) (*domain.Document, error)
}

// Publisher delivers events
type Publisher interface {
	Publish(e events.Event) events.Event
}

// Adapter holds the canonical document for one identity. Reads are only
// answered once hydration for the current identity has completed; before that
// GetCache returns nil rather than an empty view.
//
// Every identity change or Invalidate starts a new generation. A hydration that
// completes for an older generation is thrown away.
type Adapter struct {
	loader Loader
	bus    Publisher
	logger *slog.Logger

	mu          sync.RWMutex
	state       State
	uid         string
	hydratedUID string
	gen         uint64
	ready       chan struct{}
	doc         *domain.Document
	snapshot    *Snapshot // memoized, rebuilt after each mutation
}

func New(loader Loader, bus Publisher, logger *slog.Logger) *Adapter {
	return &Adapter{
		loader: loader,
		bus:    bus,
		logger: log.Component(logger, "listcache"),
	}
}

// Init starts hydration for the current identity if none is running and
// returns the ready future for this generation. The channel is closed once the
// adapter is hydrated. A failed hydration leaves the channel open and the
// adapter unhydrated, so the next Init retries.
func (a *Adapter) Init(ctx context.Context) <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateUnhydrated {
		return a.ready
	}

	a.state = StateHydrating
	a.ready = make(chan struct{})
	go a.hydrate(context.WithoutCancel(ctx), a.gen, a.uid, a.ready)
	return a.ready
}

func (a *Adapter) hydrate(ctx context.Context, gen uint64, uid string, ready chan struct{}) {
	start := time.Now()

	doc, err := a.loader.LoadAppData(ctx, uid)
	if err != nil {
		a.logger.Error("failed to load app data", "error", err)
		a.mu.Lock()
		if a.gen == gen {
			a.state = StateUnhydrated
		}
		a.mu.Unlock()
		return
	}

	if uid != "" {
		remoteDoc, err := a.loader.LoadRemote(ctx, uid)
		switch {
		case err != nil:
			a.logger.Warn("failed to load account data, using local lists", "uid", uid, "error", err)
		case remoteDoc != nil:
			doc = domain.Merge(doc, remoteDoc)
		}
	}

	a.mu.Lock()
	if a.gen != gen {
		a.mu.Unlock()
		a.logger.Debug("discarding stale hydration", "uid", uid)
		return
	}
	a.doc = doc
	a.state = StateHydrated
	a.hydratedUID = uid
	a.snapshot = nil
	items := doc.Len()
	close(ready)
	a.mu.Unlock()

	a.logger.Info("lists hydrated", "uid", uid, "items", items, "duration", time.Since(start))
	if a.bus != nil {
		a.bus.Publish(events.Event{Type: events.EventListsHydrated, UID: uid})
	}
}

// SetIdentity switches the active identity. A change drops the hydrated view.
func (a *Adapter) SetIdentity(uid string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if uid == a.uid {
		return
	}
	a.uid = uid
	a.resetLocked()
}

// Invalidate drops the hydrated document and every derived view; the next
// Init rehydrates from storage.
func (a *Adapter) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetLocked()
}

func (a *Adapter) resetLocked() {
	a.gen++
	a.state = StateUnhydrated
	a.hydratedUID = ""
	a.doc = nil
	a.snapshot = nil
	a.ready = nil
}

// State returns the hydration state and the identity it applies to
func (a *Adapter) State() (State, string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state, a.uid
}

// Ready reports whether the adapter is hydrated for the current identity
func (a *Adapter) Ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.readyLocked()
}

func (a *Adapter) readyLocked() bool {
	return a.state == StateHydrated && a.hydratedUID == a.uid && a.doc != nil
}

// GetCache returns the current snapshot, or nil when not hydrated
func (a *Adapter) GetCache() *Snapshot {
	a.mu.RLock()
	if !a.readyLocked() {
		a.mu.RUnlock()
		return nil
	}
	if snap := a.snapshot; snap != nil {
		a.mu.RUnlock()
		return snap
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.readyLocked() {
		return nil
	}
	if a.snapshot == nil {
		a.snapshot = NewSnapshot(a.hydratedUID, a.doc)
	}
	return a.snapshot
}

// Document returns a copy of the hydrated document and the identity it belongs
// to, for persistence.
func (a *Adapter) Document() (*domain.Document, string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.readyLocked() {
		return nil, "", a.unavailable("document")
	}
	return a.doc.Clone(), a.hydratedUID, nil
}

// Apply runs fn against the hydrated document under the write lock. It fails
// with domain.ErrAdapterUnavailable, without calling fn, when not hydrated.
func (a *Adapter) Apply(op string, fn func(*domain.Document) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.readyLocked() {
		return a.unavailable(op)
	}
	if err := fn(a.doc); err != nil {
		return err
	}
	a.snapshot = nil
	return nil
}

func (a *Adapter) unavailable(op string) error {
	return domain.NewError(domain.ErrAdapterUnavailable, op, "",
		fmt.Errorf("lists are %s for %q", a.state, a.uid))
}
