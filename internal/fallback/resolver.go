// Package fallback waits for the list cache to become ready and, when it does
// not, applies mutations directly to the persisted document.
package fallback

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mmcdole/shelf/internal/domain"
	"github.com/mmcdole/shelf/internal/log"
)

// Adapter is the part of the list cache the resolver drives
type Adapter interface {
	Init(ctx context.Context) <-chan struct{}
	Invalidate()
}

// Store reads and writes the persisted document for an identity
type Store interface {
	LoadAppData(ctx context.Context, uid string) (*domain.Document, error)
	SaveLocal(ctx context.Context, uid string, doc *domain.Document) bool
	SyncRemote(uid string, doc *domain.Document)
}

// Resolver decides per call between delegating to the adapter and the raw path.
// It holds no lock of its own: callers serialize mutations.
type Resolver struct {
	adapter  Adapter
	store    Store
	schedule Schedule
	logger   *slog.Logger
}

func New(adapter Adapter, store Store, schedule Schedule, logger *slog.Logger) *Resolver {
	return &Resolver{
		adapter:  adapter,
		store:    store,
		schedule: schedule.withDefaults(),
		logger:   log.Component(logger, "fallback"),
	}
}

// Await blocks until the adapter is ready or the schedule is exhausted. Each
// attempt re-arms Init, so a failed hydration is retried. It returns false on
// exhaustion or cancellation.
func (r *Resolver) Await(ctx context.Context) bool {
	start := time.Now()
	for attempt := 0; attempt < r.schedule.Attempts; attempt++ {
		ready := r.adapter.Init(ctx)
		timer := time.NewTimer(r.schedule.Delay(attempt))
		select {
		case <-ready:
			timer.Stop()
			if attempt > 0 {
				r.logger.Debug("list cache ready", "attempts", attempt+1, "waited", time.Since(start))
			}
			return true
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
	r.logger.Error("failed to wait for list cache, using raw fallback",
		"attempts", r.schedule.Attempts, "waited", time.Since(start))
	return false
}

// Apply runs fn against uid's persisted document, saves it and invalidates the
// adapter so its next hydration sees the change. fn must use the document's own
// mutators so single membership holds on this path too.
//
// The saved document is the only record of the change here, so the account
// write is queued only once the local save has succeeded.
func (r *Resolver) Apply(ctx context.Context, uid, op string, fn func(*domain.Document) error) error {
	doc, err := r.store.LoadAppData(ctx, uid)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	if !r.store.SaveLocal(ctx, uid, doc) {
		return domain.NewError(domain.ErrPersistence, op, "", errors.New("local save failed"))
	}
	r.store.SyncRemote(uid, doc)
	r.adapter.Invalidate()
	r.logger.Info("applied mutation through raw fallback", "op", op, "uid", uid, "items", doc.Len())
	return nil
}
