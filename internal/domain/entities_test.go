package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseItemKey(t *testing.T) {
	cases := []struct {
		in   string
		want ItemKey
	}{
		{"42", ItemKey{ID: 42}},
		{" movie:42 ", ItemKey{ID: 42, Kind: KindMovie}},
		{"tv:1399", ItemKey{ID: 1399, Kind: KindTV}},
		{"show:5", ItemKey{ID: 5, Kind: KindTV}},
	}
	for _, tc := range cases {
		got, err := ParseItemKey(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	for _, bad := range []string{"", "abc", "0", "-3", "anime:4", "movie:"} {
		_, err := ParseItemKey(bad)
		assert.ErrorIs(t, err, ErrValidation, bad)
	}
}

func TestParseListKey(t *testing.T) {
	got, err := ParseListKey("watched")
	require.NoError(t, err)
	assert.Equal(t, ListWatched, got)

	_, err = ParseListKey("favorites")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "validation", ErrorKind(err))
}

func TestItemKeyString(t *testing.T) {
	assert.Equal(t, "42", ItemKey{ID: 42}.String())
	assert.Equal(t, "tv:42", ItemKey{ID: 42}.WithKind(KindTV).String())
}

func TestErrorWrapping(t *testing.T) {
	err := NewError(ErrPersistence, "save", "movie:1", errors.New("disk full"))
	wrapped := fmt.Errorf("apply: %w", err)

	assert.ErrorIs(t, wrapped, ErrPersistence)
	assert.NotErrorIs(t, wrapped, ErrValidation)
	assert.Equal(t, "persistence", ErrorKind(wrapped))
	assert.Equal(t, "save: local persistence failed: disk full (item movie:1)", err.Error())
	assert.Equal(t, "internal", ErrorKind(errors.New("boom")))
}

func TestOperationListKey(t *testing.T) {
	assert.Equal(t, ListWatched, Operation{Kind: OpRemove, From: ListWatched, To: ListWishlist}.ListKey())
	assert.Equal(t, ListWishlist, Operation{Kind: OpMove, From: ListWatched, To: ListWishlist}.ListKey())
}
