package persist

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/shelf/internal/domain"
	"github.com/mmcdole/shelf/internal/remote"
	"github.com/mmcdole/shelf/internal/store"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newLocal(t *testing.T, quota int64) *store.LocalStore {
	t.Helper()
	s, err := store.NewLocalStore(store.Options{Dir: t.TempDir(), QuotaBytes: quota})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDoc() *domain.Document {
	doc := domain.NewDocument()
	doc.Put(domain.MediaItem{ID: 42, Kind: domain.KindMovie, Title: "X"}, domain.ListWishlist, fixedNow)
	doc.Put(domain.MediaItem{ID: 7, Kind: domain.KindTV, Title: "Show"}, domain.ListWatching, fixedNow)
	return doc
}

type countingStore struct {
	domain.LocalStore
	mu   sync.Mutex
	sets int
}

func (c *countingStore) Set(key string, value []byte) error {
	c.mu.Lock()
	c.sets++
	c.mu.Unlock()
	return c.LocalStore.Set(key, value)
}

type failingRemote struct {
	mu    sync.Mutex
	calls int
}

func (f *failingRemote) Get(context.Context, string, string) ([]byte, bool, error) {
	return nil, false, errors.New("offline")
}

func (f *failingRemote) Set(context.Context, string, string, []byte) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return errors.New("offline")
}

func (f *failingRemote) Close() error { return nil }

func TestSaveLoadRoundTrip(t *testing.T) {
	local := newLocal(t, 0)
	p := New(local, nil, Options{Now: func() time.Time { return fixedNow }})

	doc := sampleDoc()
	require.True(t, p.SaveAppData(context.Background(), "", doc))

	// simulated reload: drop the promotion cache and reread from disk
	local.InvalidateAll()
	loaded, err := p.LoadAppData(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, doc.Memberships(), loaded.Memberships())
	assert.Equal(t, domain.DocumentVersion, loaded.Version)
}

func TestLoadEmpty(t *testing.T) {
	p := New(newLocal(t, 0), nil, Options{})
	doc, err := p.LoadAppData(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 0, doc.Len())
}

func TestQuotaTripsBreaker(t *testing.T) {
	base := newLocal(t, 160)
	local := &countingStore{LocalStore: base}
	p := New(local, nil, Options{})

	assert.False(t, p.SaveAppData(context.Background(), "", sampleDoc()))
	assert.True(t, p.BreakerOpen())
	assert.Equal(t, 1, local.sets)

	// later saves short-circuit without touching the store, even ones that fit
	assert.False(t, p.SaveAppData(context.Background(), "", domain.NewDocument()))
	assert.False(t, p.SaveLocal(context.Background(), "alice", domain.NewDocument()))
	assert.Equal(t, 1, local.sets)
	assert.True(t, p.BreakerOpen())
}

func TestRemoteWriteOnlyWhenSignedIn(t *testing.T) {
	rs := remote.NewMemoryStore()
	p := New(newLocal(t, 0), rs, Options{})
	defer p.Close()

	ctx := context.Background()
	require.True(t, p.SaveAppData(ctx, "", sampleDoc()))
	p.Wait()
	_, ok, err := rs.Get(ctx, "alice", PrimaryKey)
	require.NoError(t, err)
	assert.False(t, ok)

	require.True(t, p.SaveAppData(ctx, "alice", sampleDoc()))
	p.Wait()

	remoteDoc, err := p.LoadRemote(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, remoteDoc)
	assert.Equal(t, sampleDoc().Memberships(), remoteDoc.Memberships())
}

func TestRemoteWriteIndependentOfLocal(t *testing.T) {
	rs := remote.NewMemoryStore()
	p := New(newLocal(t, 16), rs, Options{})
	defer p.Close()

	ctx := context.Background()
	assert.False(t, p.SaveAppData(ctx, "alice", sampleDoc()))
	p.Wait()

	remoteDoc, err := p.LoadRemote(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, remoteDoc)
	assert.Equal(t, 2, remoteDoc.Len())
}

func TestRemoteFailureDoesNotAffectLocal(t *testing.T) {
	rs := &failingRemote{}
	p := New(newLocal(t, 0), rs, Options{})
	defer p.Close()

	assert.True(t, p.SaveAppData(context.Background(), "alice", sampleDoc()))
	p.Wait()
	assert.Equal(t, 1, rs.calls)
}

func TestRemoteWritesKeepLatest(t *testing.T) {
	rs := remote.NewMemoryStore()
	p := New(newLocal(t, 0), rs, Options{})
	defer p.Close()

	ctx := context.Background()
	doc := domain.NewDocument()
	for i := 1; i <= 20; i++ {
		doc.Put(domain.MediaItem{ID: i, Kind: domain.KindMovie, Title: "M"}, domain.ListWishlist, fixedNow)
		p.SaveAppData(ctx, "alice", doc.Clone())
	}
	p.Wait()

	remoteDoc, err := p.LoadRemote(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 20, remoteDoc.Len())
}

func TestLegacyMigration(t *testing.T) {
	local := newLocal(t, 0)
	legacy := `{
		"settings": {"theme": "dark"},
		"tv": {"watching": [{"id": 7, "name": "Show", "first_air_date": "2020-01-05", "vote_average": 8.26}], "wishlist": [], "watched": []},
		"movies": {"watching": [], "wishlist": [{"id": 42, "title": "X", "notes": "later"}], "watched": []}
	}`
	require.NoError(t, local.Set(LegacyKey, []byte(legacy)))

	p := New(local, nil, Options{Now: func() time.Time { return fixedNow }})
	doc, err := p.LoadAppData(context.Background(), "")
	require.NoError(t, err)

	show, ref, ok := doc.Get(domain.ItemKey{ID: 7, Kind: domain.KindTV})
	require.True(t, ok)
	assert.Equal(t, domain.ListRef{Kind: domain.KindTV, Key: domain.ListWatching}, ref)
	assert.Equal(t, "Show", show.Title)
	assert.Equal(t, 8.3, show.Rating)

	movie, _, ok := doc.Get(domain.ItemKey{ID: 42, Kind: domain.KindMovie})
	require.True(t, ok)
	assert.Equal(t, "later", movie.UserNotes)
	assert.JSONEq(t, `{"theme":"dark"}`, string(doc.Settings))

	// migrated once: primary written, legacy key gone
	_, ok, err = local.Get(LegacyKey)
	require.NoError(t, err)
	assert.False(t, ok)
	raw, ok, err := local.Get(PrimaryKey)
	require.NoError(t, err)
	require.True(t, ok)

	var stored domain.Document
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, domain.DocumentVersion, stored.Version)
}

func TestLegacyMirror(t *testing.T) {
	local := newLocal(t, 0)
	p := New(local, nil, Options{LegacyMirror: true})

	require.True(t, p.SaveAppData(context.Background(), "", sampleDoc()))

	raw, ok, err := local.Get(LegacyKey)
	require.NoError(t, err)
	require.True(t, ok)

	var legacy struct {
		TV struct {
			Watching []struct {
				ID   int    `json:"id"`
				Name string `json:"name"`
			} `json:"watching"`
		} `json:"tv"`
	}
	require.NoError(t, json.Unmarshal(raw, &legacy))
	require.Len(t, legacy.TV.Watching, 1)
	assert.Equal(t, "Show", legacy.TV.Watching[0].Name)
}

func TestLoadRejectsNewerVersion(t *testing.T) {
	local := newLocal(t, 0)
	require.NoError(t, local.Set(PrimaryKey, []byte(`{"version": 9, "tv": {}, "movies": {}}`)))

	p := New(local, nil, Options{})
	_, err := p.LoadAppData(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestAccountsKeepSeparateLocalDocuments(t *testing.T) {
	local := newLocal(t, 0)
	p := New(local, nil, Options{})
	ctx := context.Background()

	device := domain.NewDocument()
	device.Put(domain.MediaItem{ID: 1, Kind: domain.KindMovie, Title: "Signed out"}, domain.ListWishlist, fixedNow)
	require.True(t, p.SaveAppData(ctx, "", device))

	// the first account adopts the signed-out lists
	alice, err := p.LoadAppData(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, alice.Len())
	owner, ok, err := local.Get(OwnerKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", string(owner))

	alice.Put(domain.MediaItem{ID: 2, Kind: domain.KindTV, Title: "Hers"}, domain.ListWatching, fixedNow)
	require.True(t, p.SaveAppData(ctx, "alice", alice))

	bob, err := p.LoadAppData(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 0, bob.Len(), "a later account starts empty")

	local.InvalidateAll()
	alice, err = p.LoadAppData(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, alice.Len())

	signedOut, err := p.LoadAppData(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, signedOut.Len(), "account edits stay out of the signed-out document")
}

func TestSaveLocalDoesNotQueueRemote(t *testing.T) {
	rs := remote.NewMemoryStore()
	p := New(newLocal(t, 0), rs, Options{})
	defer p.Close()
	ctx := context.Background()

	require.True(t, p.SaveLocal(ctx, "alice", sampleDoc()))
	p.Wait()
	doc, err := p.LoadRemote(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, doc)

	p.SyncRemote("alice", sampleDoc())
	p.SyncRemote("", sampleDoc())
	p.Wait()
	doc, err = p.LoadRemote(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, 2, doc.Len())
}
