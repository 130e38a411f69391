// Package dedup absorbs repeated and re-entrant mutation requests before they
// reach the watchlist coordinator.
package dedup

import (
	"sync"
	"time"

	"github.com/mmcdole/shelf/internal/domain"
)

// Defaults
const (
	DefaultWindow           = 500 * time.Millisecond
	DefaultBusy             = 650 * time.Millisecond
	DefaultCompactThreshold = 200
	DefaultCompactAge       = 2 * time.Second
)

// Config tunes the guard. Zero values take the defaults.
type Config struct {
	Window           time.Duration
	Busy             time.Duration
	CompactThreshold int
	CompactAge       time.Duration
}

// Guard is the single admission point for mutations. It keeps a rolling map of
// operation key to last admission time and a per-control busy deadline. Both are
// compared against the clock on each call; no timers run in the background.
type Guard struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	admitted map[string]time.Time
	busy     map[string]time.Time // control id -> busy until
}

func New(cfg Config, now func() time.Time) *Guard {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Busy <= 0 {
		cfg.Busy = DefaultBusy
	}
	if cfg.CompactThreshold <= 0 {
		cfg.CompactThreshold = DefaultCompactThreshold
	}
	if cfg.CompactAge <= 0 {
		cfg.CompactAge = DefaultCompactAge
	}
	if now == nil {
		now = time.Now
	}
	return &Guard{
		cfg:      cfg,
		now:      now,
		admitted: make(map[string]time.Time),
		busy:     make(map[string]time.Time),
	}
}

// Key identifies an operation for dedup: verb, item and target list. Including
// the verb keeps an undo (remove right after add) from being swallowed.
func Key(op domain.OpKind, itemID string, list domain.ListKey) string {
	return string(op) + "|" + itemID + "|" + string(list)
}

// Admit reports whether the operation may proceed. A key admitted less than the
// window ago is rejected; so is any trigger from a control that is still busy.
// On admission the key is stamped and, when controlID is set, the control is
// marked busy.
func (g *Guard) Admit(controlID, key string) bool {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if controlID != "" {
		if until, ok := g.busy[controlID]; ok {
			if now.Before(until) {
				return false
			}
			delete(g.busy, controlID)
		}
	}

	if last, ok := g.admitted[key]; ok && now.Sub(last) < g.cfg.Window {
		return false
	}

	g.admitted[key] = now
	if controlID != "" {
		g.busy[controlID] = now.Add(g.cfg.Busy)
	}
	if len(g.admitted) > g.cfg.CompactThreshold {
		g.compact(now)
	}
	return true
}

// Len returns the number of tracked keys
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.admitted)
}

func (g *Guard) compact(now time.Time) {
	for key, at := range g.admitted {
		if now.Sub(at) > g.cfg.CompactAge {
			delete(g.admitted, key)
		}
	}
	for id, until := range g.busy {
		if !now.Before(until) {
			delete(g.busy, id)
		}
	}
}
