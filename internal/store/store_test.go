package store

import (
	"errors"
	"testing"

	"github.com/mmcdole/shelf/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTripAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := NewLocalStore(Options{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, s.Set("appdata.v2", []byte(`{"version":2}`)))
	require.NoError(t, s.Close())

	reopened, err := NewLocalStore(Options{Dir: dir})
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := reopened.Get("appdata.v2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"version":2}`, string(got))
	assert.EqualValues(t, len(`{"version":2}`), reopened.Usage())
}

func TestLocalStoreGetMissing(t *testing.T) {
	s, err := NewLocalStore(Options{})
	require.NoError(t, err)

	_, ok, err := s.Get("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStoreQuotaKeepsPreviousValue(t *testing.T) {
	s, err := NewLocalStore(Options{Dir: t.TempDir(), QuotaBytes: 10})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set("k", []byte("12345")))
	// Replacing a value only counts the difference
	require.NoError(t, s.Set("k", []byte("1234567890")))

	err = s.Set("other", []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrQuotaExceeded))

	got, ok, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1234567890", string(got))

	require.NoError(t, s.Delete("k"))
	assert.Zero(t, s.Usage())
	require.NoError(t, s.Set("other", []byte("x")))
}

func TestLocalStoreReturnsCopies(t *testing.T) {
	s, err := NewLocalStore(Options{})
	require.NoError(t, err)

	value := []byte("abc")
	require.NoError(t, s.Set("k", value))
	value[0] = 'z'

	got, _, _ := s.Get("k")
	got[1] = 'z'

	again, _, _ := s.Get("k")
	assert.Equal(t, "abc", string(again))
}

func TestLocalStoreInvalidateAllReadsFromDisk(t *testing.T) {
	s, err := NewLocalStore(Options{Dir: t.TempDir()})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set("k", []byte("v")))
	s.InvalidateAll()

	got, ok, err := s.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(got))
}
