// Package remote provides the account-scoped document stores used while a user
// is signed in.
package remote

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/shelf/internal/domain"
)

// Open builds a remote store from a DSN. An empty DSN returns nil: the app then
// runs local-only.
//
//	memory://                 in-process store
//	http(s)://host/base       account API
//	postgres(ql)://...        snapshot table
func Open(dsn, token string, timeout time.Duration) (domain.RemoteStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse remote dsn: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	switch strings.ToLower(parsed.Scheme) {
	case "memory", "mem", "inmem":
		return NewMemoryStore(), nil
	case "http", "https":
		return NewHTTPStore(dsn, token, &http.Client{Timeout: timeout}), nil
	case "postgres", "postgresql":
		store, err := NewPostgresStore(dsn)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported remote scheme %q", parsed.Scheme)
	}
}
