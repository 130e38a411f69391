// Package persist reads and writes the application document: synchronously to
// the device-local store and, while signed in, asynchronously to the account
// store.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/shelf/internal/domain"
	"github.com/mmcdole/shelf/internal/log"
	"github.com/mmcdole/shelf/internal/normalize"
)

// Storage keys. The signed-out document lives under PrimaryKey; each account
// gets its own local copy under LocalKey(uid). OwnerKey records the account that
// adopted the signed-out lists.
const (
	PrimaryKey = "appdata.v2"
	LegacyKey  = "appdata"
	OwnerKey   = "appdata.v2.owner"
)

// LocalKey returns the device-local key holding uid's document
func LocalKey(uid string) string {
	if uid == "" {
		return PrimaryKey
	}
	return PrimaryKey + ":" + uid
}

// Options configures a Persister
type Options struct {
	// LegacyMirror keeps writing the v1 shape under LegacyKey for older readers
	LegacyMirror bool
	// RemoteTimeout bounds each account-store write
	RemoteTimeout time.Duration
	Logger        *slog.Logger
	Now           func() time.Time
}

// Persister owns the persisted document format. Local writes are guarded by a
// circuit breaker: once the local store reports a quota failure no further local
// write is attempted for the rest of the process.
type Persister struct {
	local        domain.LocalStore
	remote       domain.RemoteStore
	legacyMirror bool
	logger       *slog.Logger
	now          func() time.Time

	mu      sync.Mutex
	tripped bool

	writer *remoteWriter
}

// New creates a Persister. remote may be nil for local-only use.
func New(local domain.LocalStore, remote domain.RemoteStore, opts Options) *Persister {
	logger := log.Component(opts.Logger, "persist")
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	p := &Persister{
		local:        local,
		remote:       remote,
		legacyMirror: opts.LegacyMirror,
		logger:       logger,
		now:          now,
	}
	if remote != nil {
		p.writer = newRemoteWriter(remote, opts.RemoteTimeout, logger)
	}
	return p
}

// SaveAppData writes uid's document locally and, when uid is set, queues the
// account write. It reports the local outcome only: the remote write is queued
// whether or not the local write succeeded.
func (p *Persister) SaveAppData(ctx context.Context, uid string, doc *domain.Document) bool {
	payload, ok := p.encode(doc)
	if !ok {
		return false
	}
	p.enqueue(uid, payload)
	return p.saveLocal(uid, doc, payload)
}

// SaveLocal writes uid's document to the device-local store only
func (p *Persister) SaveLocal(ctx context.Context, uid string, doc *domain.Document) bool {
	payload, ok := p.encode(doc)
	if !ok {
		return false
	}
	return p.saveLocal(uid, doc, payload)
}

// SyncRemote queues an account write of doc. It is a no-op when signed out or
// without an account store.
func (p *Persister) SyncRemote(uid string, doc *domain.Document) {
	if p.writer == nil || uid == "" {
		return
	}
	if payload, ok := p.encode(doc); ok {
		p.enqueue(uid, payload)
	}
}

func (p *Persister) encode(doc *domain.Document) ([]byte, bool) {
	if doc == nil {
		return nil, false
	}
	doc.Version = domain.DocumentVersion

	payload, err := json.Marshal(doc)
	if err != nil {
		p.logger.Error("failed to encode app data", "error", err)
		return nil, false
	}
	p.logger.Debug("encoded app data", "bytes", len(payload), "items", doc.Len())
	return payload, true
}

func (p *Persister) enqueue(uid string, payload []byte) {
	if p.writer != nil && uid != "" {
		p.writer.enqueue(uid, payload)
	}
}

// saveLocal writes the encoded document. The legacy mirror only tracks the
// signed-out document, which is the one older readers know about.
func (p *Persister) saveLocal(uid string, doc *domain.Document, payload []byte) bool {
	if !p.writeLocal(LocalKey(uid), payload) {
		return false
	}
	if p.legacyMirror && uid == "" {
		mirror, err := json.Marshal(normalize.ToLegacy(doc))
		if err != nil {
			p.logger.Error("failed to encode legacy mirror", "error", err)
			return false
		}
		return p.writeLocal(LegacyKey, mirror)
	}
	return true
}

func (p *Persister) writeLocal(key string, payload []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tripped {
		return false
	}
	err := p.local.Set(key, payload)
	if err == nil {
		return true
	}
	if errors.Is(err, domain.ErrQuotaExceeded) {
		p.tripped = true
		p.logger.Warn("local storage quota exceeded, disabling local writes for this session",
			"key", key, "bytes", len(payload), "error", err)
		return false
	}
	p.logger.Error("failed to write app data", "key", key, "error", err)
	return false
}

// BreakerOpen reports whether local writes are disabled
func (p *Persister) BreakerOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tripped
}

// LoadAppData reads uid's local document. An account without one yet adopts
// the signed-out document, but only the first account to sign in on this
// device does; any later account starts empty.
func (p *Persister) LoadAppData(ctx context.Context, uid string) (*domain.Document, error) {
	if uid == "" {
		return p.loadDevice()
	}

	raw, ok, err := p.local.Get(LocalKey(uid))
	if err != nil {
		return nil, domain.NewError(domain.ErrPersistence, "load app data", "", err)
	}
	if ok {
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, domain.NewError(domain.ErrPersistence, "load app data", "", err)
		}
		return doc, nil
	}
	return p.adoptDevice(uid)
}

func (p *Persister) adoptDevice(uid string) (*domain.Document, error) {
	owner, claimed, err := p.local.Get(OwnerKey)
	if err != nil {
		return nil, domain.NewError(domain.ErrPersistence, "load app data owner", "", err)
	}
	if claimed && string(owner) != uid {
		return domain.NewDocument(), nil
	}

	doc, err := p.loadDevice()
	if err != nil {
		return nil, err
	}
	if !claimed {
		if err := p.local.Set(OwnerKey, []byte(uid)); err != nil {
			p.logger.Warn("failed to record owner of signed-out lists", "uid", uid, "error", err)
		} else {
			p.logger.Info("account adopted signed-out lists", "uid", uid, "items", doc.Len())
		}
	}
	return doc, nil
}

// loadDevice reads the signed-out document. A v1 document found under
// LegacyKey is migrated: the converted document is written under PrimaryKey and
// the legacy key is dropped (kept when mirroring). A missing document yields an
// empty one.
func (p *Persister) loadDevice() (*domain.Document, error) {
	raw, ok, err := p.local.Get(PrimaryKey)
	if err != nil {
		return nil, domain.NewError(domain.ErrPersistence, "load app data", "", err)
	}
	if ok {
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, domain.NewError(domain.ErrPersistence, "load app data", "", err)
		}
		return doc, nil
	}

	raw, ok, err = p.local.Get(LegacyKey)
	if err != nil {
		return nil, domain.NewError(domain.ErrPersistence, "load legacy app data", "", err)
	}
	if !ok {
		return domain.NewDocument(), nil
	}

	doc, err := p.decodeLegacy(raw)
	if err != nil {
		return nil, domain.NewError(domain.ErrPersistence, "migrate legacy app data", "", err)
	}
	p.migrate(doc)
	return doc, nil
}

func (p *Persister) migrate(doc *domain.Document) {
	payload, err := json.Marshal(doc)
	if err != nil {
		p.logger.Error("failed to encode migrated app data", "error", err)
		return
	}
	if !p.writeLocal(PrimaryKey, payload) {
		p.logger.Warn("legacy app data left in place, migration will retry on next load")
		return
	}
	if !p.legacyMirror {
		if err := p.local.Delete(LegacyKey); err != nil {
			p.logger.Error("failed to delete legacy app data", "error", err)
		}
	}
	p.logger.Info("migrated legacy app data", "items", doc.Len())
}

// LoadRemote reads the account document for uid. It returns nil when there is
// no account store or the account has no document yet.
func (p *Persister) LoadRemote(ctx context.Context, uid string) (*domain.Document, error) {
	if p.remote == nil || uid == "" {
		return nil, nil
	}

	raw, ok, err := p.remote.Get(ctx, uid, PrimaryKey)
	if err != nil {
		return nil, domain.NewError(domain.ErrRemoteSync, "load remote app data", "", err)
	}
	if ok {
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, domain.NewError(domain.ErrRemoteSync, "load remote app data", "", err)
		}
		return doc, nil
	}

	raw, ok, err = p.remote.Get(ctx, uid, LegacyKey)
	if err != nil {
		return nil, domain.NewError(domain.ErrRemoteSync, "load remote legacy app data", "", err)
	}
	if !ok {
		return nil, nil
	}
	doc, err := p.decodeLegacy(raw)
	if err != nil {
		return nil, domain.NewError(domain.ErrRemoteSync, "load remote legacy app data", "", err)
	}
	return doc, nil
}

// Wait blocks until queued remote writes have been attempted
func (p *Persister) Wait() {
	if p.writer != nil {
		p.writer.wait()
	}
}

// Close drains the remote writer
func (p *Persister) Close() error {
	if p.writer != nil {
		p.writer.close()
	}
	return nil
}

func (p *Persister) decodeLegacy(raw []byte) (*domain.Document, error) {
	var legacy normalize.LegacyDocument
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("decode legacy document: %w", err)
	}
	return normalize.FromLegacy(legacy, p.now()), nil
}

func decodeDocument(raw []byte) (*domain.Document, error) {
	doc := domain.NewDocument()
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc.Version > domain.DocumentVersion {
		return nil, fmt.Errorf("document version %d is newer than supported %d", doc.Version, domain.DocumentVersion)
	}
	doc.Compact()
	return doc, nil
}
