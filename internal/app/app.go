// Package app wires the storage, sync and list components into one runnable
// unit for the CLI and the terminal view.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mmcdole/shelf/internal/config"
	"github.com/mmcdole/shelf/internal/dedup"
	"github.com/mmcdole/shelf/internal/domain"
	"github.com/mmcdole/shelf/internal/events"
	"github.com/mmcdole/shelf/internal/fallback"
	"github.com/mmcdole/shelf/internal/listcache"
	"github.com/mmcdole/shelf/internal/metadata"
	"github.com/mmcdole/shelf/internal/persist"
	"github.com/mmcdole/shelf/internal/remote"
	"github.com/mmcdole/shelf/internal/session"
	"github.com/mmcdole/shelf/internal/store"
	"github.com/mmcdole/shelf/internal/watchlist"
)

// App holds every long-lived component
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Session   *session.Session
	Persister *persist.Persister
	Bus       *events.Bus
	Lists     *listcache.Adapter
	Watchlist *watchlist.Coordinator

	local  *store.LocalStore
	remote domain.RemoteStore
}

// New opens the stores and builds the component graph. Nothing is hydrated
// until Start or the first operation.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	local, err := store.NewLocalStore(store.Options{
		Dir:        cfg.Storage.Path,
		QuotaBytes: cfg.Storage.QuotaBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	rem, err := remote.Open(cfg.Remote.DSN, cfg.Remote.Token, cfg.Remote.Timeout)
	if err != nil {
		local.Close()
		return nil, fmt.Errorf("failed to open remote store: %w", err)
	}

	sess := session.New(cfg.Account.UID)
	persister := persist.New(local, rem, persist.Options{
		LegacyMirror:  cfg.Storage.LegacyMirror,
		RemoteTimeout: cfg.Remote.Timeout,
		Logger:        logger,
	})

	bus := events.NewBus(logger)
	lists := listcache.New(persister, bus, logger)
	uid, _ := sess.UID()
	lists.SetIdentity(uid)
	sess.OnChange(lists.SetIdentity)

	resolver := fallback.New(lists, persister, fallback.Schedule{
		Base:     cfg.Fallback.Base,
		Factor:   cfg.Fallback.Factor,
		Max:      cfg.Fallback.Max,
		Attempts: cfg.Fallback.Attempts,
	}, logger)

	guard := dedup.New(dedup.Config{
		Window:           cfg.Dedup.Window,
		Busy:             cfg.Dedup.Busy,
		CompactThreshold: cfg.Dedup.CompactThreshold,
		CompactAge:       cfg.Dedup.CompactAge,
	}, nil)

	opts := watchlist.Options{Logger: logger}
	if cfg.Metadata.TMDbAPIKey != "" {
		opts.Metadata = metadata.NewTMDbClient(cfg.Metadata.TMDbAPIKey, cfg.Metadata.BaseURL, nil)
	}
	coordinator := watchlist.New(lists, persister, resolver, guard, bus, opts)

	logger.Info("app initialized",
		"storage", cfg.Storage.Path,
		"remote", rem != nil,
		"signedIn", uid != "",
		"metadata", opts.Metadata != nil)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Session:   sess,
		Persister: persister,
		Bus:       bus,
		Lists:     lists,
		Watchlist: coordinator,
		local:     local,
		remote:    rem,
	}, nil
}

// Start begins hydration and returns the ready future
func (a *App) Start(ctx context.Context) <-chan struct{} {
	return a.Lists.Init(ctx)
}

// Close drains pending remote writes and releases the stores
func (a *App) Close() error {
	var firstErr error
	if err := a.Persister.Close(); err != nil {
		firstErr = err
	}
	a.Bus.Close()
	if a.remote != nil {
		if err := a.remote.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := a.local.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
