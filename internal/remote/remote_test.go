package remote

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.Get(ctx, "alice", "appdata.v2")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "alice", "appdata.v2", []byte(`{"version":2}`)))
	got, ok, err := s.Get(ctx, "alice", "appdata.v2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"version":2}`, string(got))

	// scoped by uid
	_, ok, _ = s.Get(ctx, "bob", "appdata.v2")
	assert.False(t, ok)
}

type fakeAccountAPI struct {
	mu       sync.Mutex
	docs     map[string]string
	failures int
	auth     string
}

func (f *fakeAccountAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.auth = r.Header.Get("Authorization")
	if f.failures > 0 {
		f.failures--
		w.Header().Set("Retry-After", "0")
		http.Error(w, "busy", http.StatusServiceUnavailable)
		return
	}
	if !strings.HasPrefix(r.URL.Path, "/v1/accounts/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		doc, ok := f.docs[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, doc)
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.docs[r.URL.Path] = string(body)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestHTTPStore(t *testing.T, api *fakeAccountAPI) *HTTPStore {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	s := NewHTTPStore(srv.URL, "secret", srv.Client())
	s.baseDelay = time.Millisecond
	return s
}

func TestHTTPStoreRoundTrip(t *testing.T) {
	api := &fakeAccountAPI{docs: map[string]string{}}
	s := newTestHTTPStore(t, api)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "alice", "appdata.v2")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "alice", "appdata.v2", []byte(`{"version":2}`)))
	got, ok, err := s.Get(ctx, "alice", "appdata.v2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"version":2}`, string(got))
	assert.Equal(t, "Bearer secret", api.auth)
}

func TestHTTPStoreRetriesServerErrors(t *testing.T) {
	api := &fakeAccountAPI{docs: map[string]string{}, failures: 2}
	s := newTestHTTPStore(t, api)

	require.NoError(t, s.Set(context.Background(), "alice", "appdata.v2", []byte(`{}`)))
	assert.Equal(t, 0, api.failures)
}

func TestHTTPStoreGivesUp(t *testing.T) {
	api := &fakeAccountAPI{docs: map[string]string{}, failures: 10}
	s := newTestHTTPStore(t, api)

	err := s.Set(context.Background(), "alice", "appdata.v2", []byte(`{}`))
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
}

func TestRetryDelay(t *testing.T) {
	s := NewHTTPStore("http://example.invalid", "", nil)
	assert.Equal(t, 100*time.Millisecond, s.retryDelay(1, ""))
	assert.Equal(t, 200*time.Millisecond, s.retryDelay(2, ""))
	assert.Equal(t, 2*time.Second, s.retryDelay(10, ""))
	assert.Equal(t, time.Second, s.retryDelay(1, "1"))
	assert.Equal(t, 2*time.Second, s.retryDelay(1, "30"))
}

func TestOpen(t *testing.T) {
	s, err := Open("", "", 0)
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open("memory://", "", 0)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open("https://accounts.example.com/api", "tok", time.Second)
	require.NoError(t, err)
	assert.IsType(t, &HTTPStore{}, s)

	s, err = Open("postgres://user@localhost/shelf?sslmode=disable", "", 0)
	require.NoError(t, err)
	assert.IsType(t, &PostgresStore{}, s)

	_, err = Open("ftp://nope", "", 0)
	assert.Error(t, err)
}
