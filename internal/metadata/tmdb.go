// Package metadata looks up provider records used to backfill bare-id adds.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/shelf/internal/domain"
)

const defaultBaseURL = "https://api.themoviedb.org/3"

type TMDbClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// details covers both /movie/{id} and /tv/{id}
type details struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	PosterPath   string  `json:"poster_path"`
	VoteAverage  float64 `json:"vote_average"`
}

func NewTMDbClient(apiKey, baseURL string, httpClient *http.Client) *TMDbClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &TMDbClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Resolve fetches the record for key. A key without kind tries movie, then tv.
func (c *TMDbClient) Resolve(ctx context.Context, key domain.ItemKey) (*domain.ItemData, error) {
	kinds := []domain.MediaKind{key.Kind}
	if key.Kind == "" {
		kinds = []domain.MediaKind{domain.KindMovie, domain.KindTV}
	}

	var lastErr error
	for _, kind := range kinds {
		data, err := c.get(ctx, kind, key.ID)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !errors.Is(err, domain.ErrItemNotFound) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *TMDbClient) get(ctx context.Context, kind domain.MediaKind, id int) (*domain.ItemData, error) {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	fullURL := fmt.Sprintf("%s/%s/%d?%s", c.baseURL, kind, id, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.NewError(domain.ErrItemNotFound, "tmdb lookup", domain.CompoundID(kind, id), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("TMDb API returned status %d", resp.StatusCode)
	}

	var d details
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &domain.ItemData{
		ID:           d.ID,
		MediaType:    string(kind),
		Title:        d.Title,
		Name:         d.Name,
		PosterPath:   d.PosterPath,
		ReleaseDate:  d.ReleaseDate,
		FirstAirDate: d.FirstAirDate,
		VoteAverage:  d.VoteAverage,
	}, nil
}
