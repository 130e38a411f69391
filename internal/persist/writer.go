package persist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/shelf/internal/domain"
)

// remoteWriter pushes documents to the account store from a single goroutine.
// Pending payloads are keyed by uid, so a burst of saves collapses to the latest
// document and an older one can never land after a newer one.
type remoteWriter struct {
	remote  domain.RemoteStore
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending map[string][]byte
	busy    bool
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

func newRemoteWriter(remote domain.RemoteStore, timeout time.Duration, logger *slog.Logger) *remoteWriter {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	w := &remoteWriter{
		remote:  remote,
		timeout: timeout,
		logger:  logger,
		pending: make(map[string][]byte),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	go w.run()
	return w
}

func (w *remoteWriter) enqueue(uid string, payload []byte) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.pending[uid] = payload
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *remoteWriter) run() {
	defer close(w.done)
	for range w.wake {
		for {
			w.mu.Lock()
			if len(w.pending) == 0 {
				w.busy = false
				w.cond.Broadcast()
				w.mu.Unlock()
				break
			}
			batch := w.pending
			w.pending = make(map[string][]byte)
			w.busy = true
			w.mu.Unlock()

			for uid, payload := range batch {
				w.write(uid, payload)
			}
		}
	}
}

func (w *remoteWriter) write(uid string, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.remote.Set(ctx, uid, PrimaryKey, payload); err != nil {
		err = domain.NewError(domain.ErrRemoteSync, "save remote app data", "", err)
		w.logger.Error("failed to sync app data to account", "uid", uid, "bytes", len(payload), "error", err)
		return
	}
	w.logger.Debug("synced app data to account", "uid", uid, "bytes", len(payload))
}

func (w *remoteWriter) wait() {
	w.mu.Lock()
	for w.busy || len(w.pending) > 0 {
		w.cond.Wait()
	}
	w.mu.Unlock()
}

func (w *remoteWriter) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	w.wait()
	close(w.wake)
	<-w.done
}
