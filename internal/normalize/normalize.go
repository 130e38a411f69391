// Package normalize trims metadata-provider records down to the persisted item shape.
package normalize

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mmcdole/shelf/internal/domain"
)

// MaxTitleLength bounds stored titles; provider titles longer than this are cut
const MaxTitleLength = 300

// Item converts provider data into a MediaItem. fallbackKind is used when the
// record itself does not say whether it is a movie or a show.
func Item(data domain.ItemData, fallbackKind domain.MediaKind, now time.Time) (domain.MediaItem, error) {
	if data.ID <= 0 {
		return domain.MediaItem{}, domain.NewError(domain.ErrValidation, "normalize", "", fmt.Errorf("missing provider id"))
	}

	kind := resolveKind(data, fallbackKind)
	if kind == "" {
		return domain.MediaItem{}, domain.NewError(domain.ErrValidation, "normalize", fmt.Sprint(data.ID), fmt.Errorf("unknown media kind"))
	}

	item := domain.MediaItem{
		ID:          data.ID,
		Kind:        kind,
		Title:       pickTitle(data),
		PosterRef:   firstNonEmpty(data.PosterRef, data.PosterPath),
		ReleaseDate: firstNonEmpty(data.ReleaseDate, data.FirstAirDate),
		Rating:      clampRating(firstNonZero(data.Rating, data.VoteAverage)),
		UserNotes:   strings.TrimSpace(data.UserNotes),
		AddedAt:     now.UnixMilli(),
	}

	if data.UserRating != nil {
		r := clampRating(*data.UserRating)
		item.UserRating = &r
	}

	item.ReleaseDate = normalizeDate(item.ReleaseDate)
	item.Compound = item.CompoundID()
	return item, nil
}

// resolveKind prefers an explicit kind, then the provider's media_type, then the fallback
func resolveKind(data domain.ItemData, fallback domain.MediaKind) domain.MediaKind {
	if data.Kind != "" {
		if k, ok := domain.ParseMediaKind(string(data.Kind)); ok {
			return k
		}
	}
	if data.MediaType != "" {
		if k, ok := domain.ParseMediaKind(data.MediaType); ok {
			return k
		}
	}
	// TMDb tv records carry name/first_air_date instead of title/release_date
	if fallback == "" && data.Title == "" && (data.Name != "" || data.FirstAirDate != "") {
		return domain.KindTV
	}
	return fallback
}

func pickTitle(data domain.ItemData) string {
	title := strings.TrimSpace(firstNonEmpty(data.Title, data.Name))
	if title == "" {
		return "Untitled"
	}
	if runes := []rune(title); len(runes) > MaxTitleLength {
		title = string(runes[:MaxTitleLength])
	}
	return title
}

// normalizeDate keeps YYYY-MM-DD prefixes and drops anything unparseable
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 10 {
		if _, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return s[:10]
		}
	}
	if len(s) == 4 {
		if _, err := time.Parse("2006", s); err == nil {
			return s
		}
	}
	return ""
}

// clampRating bounds a rating to 0-10 with one decimal
func clampRating(r float64) float64 {
	if math.IsNaN(r) || r < 0 {
		return 0
	}
	if r > 10 {
		r = 10
	}
	return math.Round(r*10) / 10
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...float64) float64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
