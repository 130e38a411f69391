package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/shelf/internal/domain"
)

func newTestClient(t *testing.T) *TMDbClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/movie/603":
			_, _ = w.Write([]byte(`{"id":603,"title":"The Matrix","release_date":"1999-03-31","poster_path":"/m.jpg","vote_average":8.2,"runtime":136}`))
		case "/tv/1396":
			_, _ = w.Write([]byte(`{"id":1396,"name":"Breaking Bad","first_air_date":"2008-01-20","vote_average":8.9}`))
		case "/movie/500":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return NewTMDbClient("k", srv.URL, srv.Client())
}

func TestResolveMovie(t *testing.T) {
	c := newTestClient(t)
	data, err := c.Resolve(context.Background(), domain.ItemKey{ID: 603, Kind: domain.KindMovie})
	require.NoError(t, err)
	assert.Equal(t, "The Matrix", data.Title)
	assert.Equal(t, "movie", data.MediaType)
	assert.Equal(t, "/m.jpg", data.PosterPath)
}

func TestResolveBareIDFallsBackToTV(t *testing.T) {
	c := newTestClient(t)
	data, err := c.Resolve(context.Background(), domain.ItemKey{ID: 1396})
	require.NoError(t, err)
	assert.Equal(t, "tv", data.MediaType)
	assert.Equal(t, "Breaking Bad", data.Name)
}

func TestResolveNotFound(t *testing.T) {
	c := newTestClient(t)
	_, err := c.Resolve(context.Background(), domain.ItemKey{ID: 1})
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestResolveServerError(t *testing.T) {
	c := newTestClient(t)
	_, err := c.Resolve(context.Background(), domain.ItemKey{ID: 500})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrItemNotFound)
}
