package listcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/shelf/internal/domain"
	"github.com/mmcdole/shelf/internal/events"
)

var t0 = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

type fakeLoader struct {
	mu      sync.Mutex
	local   *domain.Document
	remote  map[string]*domain.Document
	gate    chan struct{} // when set, LoadAppData blocks until closed
	failing bool
	loads   int
}

func (f *fakeLoader) LoadAppData(ctx context.Context, uid string) (*domain.Document, error) {
	f.mu.Lock()
	gate := f.gate
	f.loads++
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errors.New("disk gone")
	}
	if f.local == nil {
		return domain.NewDocument(), nil
	}
	return f.local.Clone(), nil
}

func (f *fakeLoader) LoadRemote(ctx context.Context, uid string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc, ok := f.remote[uid]; ok {
		return doc.Clone(), nil
	}
	return nil, nil
}

func put(a *Adapter, item domain.MediaItem, to domain.ListKey) (domain.ListRef, bool, error) {
	var (
		from    domain.ListRef
		existed bool
	)
	err := a.Apply("add", func(doc *domain.Document) error {
		_, from, existed = doc.Put(item, to, t0)
		return nil
	})
	return from, existed, err
}

func move(a *Adapter, key domain.ItemKey, to domain.ListKey) (domain.ListRef, error) {
	var from domain.ListRef
	err := a.Apply("move", func(doc *domain.Document) error {
		var err error
		_, from, err = doc.Move(key, to, t0)
		return err
	})
	return from, err
}

func remove(a *Adapter, key domain.ItemKey) error {
	return a.Apply("remove", func(doc *domain.Document) error {
		_, _, err := doc.Remove(key)
		return err
	})
}

func waitReady(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("adapter did not become ready")
	}
}

func TestHydrationGatesReads(t *testing.T) {
	loader := &fakeLoader{gate: make(chan struct{})}
	bus := events.NewBus(nil)
	hydrated := make(chan string, 1)
	bus.Subscribe(events.Filter{Types: []events.EventType{events.EventListsHydrated}}, func(e events.Event) {
		hydrated <- e.UID
	})

	a := New(loader, bus, nil)
	ready := a.Init(context.Background())

	state, _ := a.State()
	assert.Equal(t, StateHydrating, state)
	assert.Nil(t, a.GetCache(), "no snapshot while hydrating")

	_, _, err := put(a, domain.MediaItem{ID: 1, Kind: domain.KindMovie}, domain.ListWishlist)
	assert.ErrorIs(t, err, domain.ErrAdapterUnavailable)
	_, _, err = a.Document()
	assert.ErrorIs(t, err, domain.ErrAdapterUnavailable)

	close(loader.gate)
	waitReady(t, ready)

	require.NotNil(t, a.GetCache())
	select {
	case uid := <-hydrated:
		assert.Equal(t, "", uid)
	case <-time.After(time.Second):
		t.Fatal("no lists:hydrated event")
	}

	// Init after hydration returns the same closed future without reloading
	waitReady(t, a.Init(context.Background()))
	assert.Equal(t, 1, loader.loads)
}

func TestMutationsKeepSingleMembership(t *testing.T) {
	a := New(&fakeLoader{}, nil, nil)
	waitReady(t, a.Init(context.Background()))

	movie := domain.MediaItem{ID: 42, Kind: domain.KindMovie, Title: "X"}
	_, existed, err := put(a, movie, domain.ListWishlist)
	require.NoError(t, err)
	assert.False(t, existed)

	from, err := move(a, domain.ItemKey{ID: 42}, domain.ListWatching)
	require.NoError(t, err)
	assert.Equal(t, domain.ListWishlist, from.Key)

	// adding to a third list relocates instead of duplicating
	from, existed, err = put(a, movie, domain.ListWatched)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, domain.ListWatching, from.Key)

	snap := a.GetCache()
	require.NotNil(t, snap)
	total := 0
	for _, n := range snap.Counts() {
		total += n
	}
	assert.Equal(t, 1, total)
	assert.True(t, snap.Has(domain.ItemKey{ID: 42}, domain.ListWatched))

	require.NoError(t, remove(a, domain.ItemKey{ID: 42, Kind: domain.KindMovie}))
	assert.ErrorIs(t, remove(a, domain.ItemKey{ID: 42, Kind: domain.KindMovie}), domain.ErrItemNotFound)
}

func TestSnapshotMemoizedUntilMutation(t *testing.T) {
	a := New(&fakeLoader{}, nil, nil)
	waitReady(t, a.Init(context.Background()))

	first := a.GetCache()
	assert.Same(t, first, a.GetCache())

	_, _, err := put(a, domain.MediaItem{ID: 1, Kind: domain.KindTV}, domain.ListWatching)
	require.NoError(t, err)
	second := a.GetCache()
	assert.NotSame(t, first, second)
	assert.Empty(t, first.IDs(domain.ListRef{Kind: domain.KindTV, Key: domain.ListWatching}))
	assert.Equal(t, []int{1}, second.IDs(domain.ListRef{Kind: domain.KindTV, Key: domain.ListWatching}))
}

func TestIdentityChangeRehydratesWithRemoteMerge(t *testing.T) {
	local := domain.NewDocument()
	local.Put(domain.MediaItem{ID: 1, Kind: domain.KindMovie, Title: "Local"}, domain.ListWishlist, t0)

	remote := domain.NewDocument()
	remote.Put(domain.MediaItem{ID: 1, Kind: domain.KindMovie, Title: "Local"}, domain.ListWatched, t0.Add(time.Minute))
	remote.Put(domain.MediaItem{ID: 2, Kind: domain.KindTV, Title: "Remote"}, domain.ListWatching, t0)

	loader := &fakeLoader{local: local, remote: map[string]*domain.Document{"alice": remote}}
	a := New(loader, nil, nil)
	waitReady(t, a.Init(context.Background()))
	assert.True(t, a.GetCache().Has(domain.ItemKey{ID: 1}, domain.ListWishlist))

	a.SetIdentity("alice")
	assert.Nil(t, a.GetCache())
	waitReady(t, a.Init(context.Background()))

	snap := a.GetCache()
	require.NotNil(t, snap)
	assert.Equal(t, "alice", snap.UID)
	_, uid, err := a.Document()
	require.NoError(t, err)
	assert.Equal(t, "alice", uid)
	assert.True(t, snap.Has(domain.ItemKey{ID: 1}, domain.ListWatched), "newer remote record wins")
	assert.False(t, snap.Has(domain.ItemKey{ID: 1}, domain.ListWishlist))
	assert.True(t, snap.Has(domain.ItemKey{ID: 2, Kind: domain.KindTV}, domain.ListWatching))
}

func TestStaleHydrationDiscarded(t *testing.T) {
	gate := make(chan struct{})
	loader := &fakeLoader{gate: gate}
	a := New(loader, nil, nil)

	a.Init(context.Background())
	require.Eventually(t, func() bool {
		loader.mu.Lock()
		defer loader.mu.Unlock()
		return loader.loads == 1
	}, time.Second, 5*time.Millisecond)
	a.Invalidate()

	loader.mu.Lock()
	loader.gate = nil
	loader.mu.Unlock()
	waitReady(t, a.Init(context.Background()))

	_, _, err := put(a, domain.MediaItem{ID: 9, Kind: domain.KindMovie}, domain.ListWishlist)
	require.NoError(t, err)

	// release the first load; its result must not replace the fresh document
	close(gate)
	time.Sleep(20 * time.Millisecond)
	assert.True(t, a.GetCache().Has(domain.ItemKey{ID: 9}, domain.ListWishlist))
}

func TestFailedHydrationRetries(t *testing.T) {
	loader := &fakeLoader{failing: true}
	a := New(loader, nil, nil)

	a.Init(context.Background())
	require.Eventually(t, func() bool {
		state, _ := a.State()
		return state == StateUnhydrated
	}, time.Second, 5*time.Millisecond)

	loader.mu.Lock()
	loader.failing = false
	loader.mu.Unlock()
	waitReady(t, a.Init(context.Background()))
	assert.Equal(t, 2, loader.loads)
}

func TestMutationImmediatelyAfterReady(t *testing.T) {
	for i := 0; i < 50; i++ {
		a := New(&fakeLoader{}, nil, nil)
		waitReady(t, a.Init(context.Background()))
		_, _, err := put(a, domain.MediaItem{ID: i + 1, Kind: domain.KindMovie}, domain.ListWishlist)
		require.NoError(t, err)
	}
}
