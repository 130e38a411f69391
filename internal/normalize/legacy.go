package normalize

import (
	"encoding/json"
	"time"

	"github.com/mmcdole/shelf/internal/domain"
)

// LegacyItem is the v1 list entry: the provider record stored nearly as-is
type LegacyItem struct {
	ID           int      `json:"id"`
	MediaType    string   `json:"media_type,omitempty"`
	Title        string   `json:"title,omitempty"`
	Name         string   `json:"name,omitempty"`
	PosterPath   string   `json:"poster_path,omitempty"`
	ReleaseDate  string   `json:"release_date,omitempty"`
	FirstAirDate string   `json:"first_air_date,omitempty"`
	VoteAverage  float64  `json:"vote_average,omitempty"`
	AddedAt      int64    `json:"added_at,omitempty"`
	Notes        string   `json:"notes,omitempty"`
	MyRating     *float64 `json:"my_rating,omitempty"`
	WatchCount   int      `json:"watch_count,omitempty"`
}

// LegacyLists is the v1 per-kind container
type LegacyLists struct {
	Watching []LegacyItem `json:"watching"`
	Wishlist []LegacyItem `json:"wishlist"`
	Watched  []LegacyItem `json:"watched"`
}

// LegacyDocument is the unversioned v1 document
type LegacyDocument struct {
	Settings json.RawMessage `json:"settings,omitempty"`
	TV       LegacyLists     `json:"tv"`
	Movies   LegacyLists     `json:"movies"`
}

func (l LegacyLists) byKey(key domain.ListKey) []LegacyItem {
	switch key {
	case domain.ListWatching:
		return l.Watching
	case domain.ListWishlist:
		return l.Wishlist
	default:
		return l.Watched
	}
}

// FromLegacy converts a v1 document. Entries without an id are dropped.
func FromLegacy(legacy LegacyDocument, now time.Time) *domain.Document {
	doc := domain.NewDocument()
	if len(legacy.Settings) > 0 {
		doc.Settings = legacy.Settings
	}

	for _, kind := range domain.Kinds {
		lists := legacy.Movies
		if kind == domain.KindTV {
			lists = legacy.TV
		}
		for _, key := range domain.ListKeys {
			for _, old := range lists.byKey(key) {
				item, err := Item(domain.ItemData{
					ID:           old.ID,
					Kind:         kind,
					Title:        old.Title,
					Name:         old.Name,
					PosterPath:   old.PosterPath,
					ReleaseDate:  old.ReleaseDate,
					FirstAirDate: old.FirstAirDate,
					VoteAverage:  old.VoteAverage,
					UserNotes:    old.Notes,
					UserRating:   old.MyRating,
				}, kind, now)
				if err != nil {
					continue
				}
				if old.AddedAt > 0 {
					item.AddedAt = old.AddedAt
				}
				item.WatchCount = old.WatchCount
				doc.Put(item, key, now)
			}
		}
	}
	return doc
}

// ToLegacy renders doc in the v1 shape for readers that have not migrated
func ToLegacy(doc *domain.Document) LegacyDocument {
	out := LegacyDocument{Settings: doc.Settings}
	for _, kind := range domain.Kinds {
		target := &out.Movies
		if kind == domain.KindTV {
			target = &out.TV
		}
		for _, key := range domain.ListKeys {
			items := doc.List(domain.ListRef{Kind: kind, Key: key})
			rows := make([]LegacyItem, 0, len(items))
			for _, item := range items {
				row := LegacyItem{
					ID:          item.ID,
					MediaType:   string(item.Kind),
					PosterPath:  item.PosterRef,
					VoteAverage: item.Rating,
					AddedAt:     item.AddedAt,
					Notes:       item.UserNotes,
					MyRating:    item.UserRating,
					WatchCount:  item.WatchCount,
				}
				if kind == domain.KindTV {
					row.Name, row.FirstAirDate = item.Title, item.ReleaseDate
				} else {
					row.Title, row.ReleaseDate = item.Title, item.ReleaseDate
				}
				rows = append(rows, row)
			}
			switch key {
			case domain.ListWatching:
				target.Watching = rows
			case domain.ListWishlist:
				target.Wishlist = rows
			case domain.ListWatched:
				target.Watched = rows
			}
		}
	}
	return out
}
