package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStoreOpenFailure(t *testing.T) {
	s, err := NewPostgresStore("postgres://unused")
	require.NoError(t, err)
	s.openDB = func(string, string) (*sql.DB, error) { return nil, errors.New("no driver") }

	_, _, err = s.Get(context.Background(), "alice", "appdata.v2")
	assert.EqualError(t, err, "no driver")
	// init runs once; the error sticks
	assert.EqualError(t, s.Set(context.Background(), "alice", "appdata.v2", nil), "no driver")
}

func TestNewPostgresStoreRequiresDSN(t *testing.T) {
	_, err := NewPostgresStore("  ")
	assert.Error(t, err)
}

func TestPostgresIntegrationRoundTrip(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("SHELF_TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("set SHELF_TEST_POSTGRES_DSN to run Postgres integration tests")
	}

	s, err := NewPostgresStore(dsn)
	require.NoError(t, err)
	s.tableName = fmt.Sprintf("shelf_it_%d", time.Now().UnixNano())
	t.Cleanup(func() {
		if s.db != nil {
			_, _ = s.db.Exec("DROP TABLE IF EXISTS " + quoteIdentifier(s.tableName))
		}
		_ = s.Close()
	})

	ctx := context.Background()
	_, ok, err := s.Get(ctx, "alice", "appdata.v2")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "alice", "appdata.v2", []byte(`{"version":2}`)))
	require.NoError(t, s.Set(ctx, "alice", "appdata.v2", []byte(`{"version":2,"settings":{}}`)))

	got, ok, err := s.Get(ctx, "alice", "appdata.v2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"version":2,"settings":{}}`, string(got))
}
