package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MediaKind distinguishes movies from TV shows
type MediaKind string

const (
	KindMovie MediaKind = "movie"
	KindTV    MediaKind = "tv"
)

// Kinds lists every media kind in document order (tv first, then movies)
var Kinds = []MediaKind{KindTV, KindMovie}

// ParseMediaKind accepts "movie"/"movies" and "tv"/"show"/"shows"
func ParseMediaKind(s string) (MediaKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie", "movies", "film":
		return KindMovie, true
	case "tv", "show", "shows", "series":
		return KindTV, true
	default:
		return "", false
	}
}

// ListKey names a status list. Each key exists once per MediaKind.
type ListKey string

const (
	ListWatching ListKey = "watching"
	ListWishlist ListKey = "wishlist"
	ListWatched  ListKey = "watched"
)

// ListKeys lists every status list in document order
var ListKeys = []ListKey{ListWatching, ListWishlist, ListWatched}

// ParseListKey validates a list key. Anything but the three status lists is rejected.
func ParseListKey(s string) (ListKey, error) {
	switch ListKey(strings.TrimSpace(s)) {
	case ListWatching:
		return ListWatching, nil
	case ListWishlist:
		return ListWishlist, nil
	case ListWatched:
		return ListWatched, nil
	}
	return "", NewError(ErrValidation, "parse list key", "", fmt.Errorf("unknown list %q", s))
}

// ListRef addresses one of the six concrete lists
type ListRef struct {
	Kind MediaKind
	Key  ListKey
}

func (r ListRef) String() string { return string(r.Kind) + "/" + string(r.Key) }

// ItemKey identifies a tracked item. Kind is empty when the caller only
// supplied a bare numeric id.
type ItemKey struct {
	ID   int
	Kind MediaKind
}

// ParseItemKey accepts "42", "movie:42" and "tv:42"
func ParseItemKey(s string) (ItemKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ItemKey{}, NewError(ErrValidation, "parse item id", "", fmt.Errorf("empty item id"))
	}

	var key ItemKey
	raw := s
	if prefix, rest, ok := strings.Cut(s, ":"); ok {
		kind, known := ParseMediaKind(prefix)
		if !known {
			return ItemKey{}, NewError(ErrValidation, "parse item id", s, fmt.Errorf("unknown media kind %q", prefix))
		}
		key.Kind = kind
		raw = rest
	}

	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return ItemKey{}, NewError(ErrValidation, "parse item id", s, fmt.Errorf("invalid numeric id %q", raw))
	}
	key.ID = id
	return key, nil
}

// WithKind returns a copy of k with kind set
func (k ItemKey) WithKind(kind MediaKind) ItemKey {
	k.Kind = kind
	return k
}

// String returns the compound id when the kind is known, otherwise the bare id
func (k ItemKey) String() string {
	if k.Kind == "" {
		return strconv.Itoa(k.ID)
	}
	return CompoundID(k.Kind, k.ID)
}

// CompoundID disambiguates a movie and a show that share a numeric id
func CompoundID(kind MediaKind, id int) string {
	return string(kind) + ":" + strconv.Itoa(id)
}

// MediaItem is the pruned record persisted in a status list
type MediaItem struct {
	ID          int       `json:"id"`
	Kind        MediaKind `json:"mediaKind"`
	Title       string    `json:"title"`
	PosterRef   string    `json:"posterRef,omitempty"`
	ReleaseDate string    `json:"releaseDate,omitempty"`
	Rating      float64   `json:"rating,omitempty"`
	AddedAt     int64     `json:"addedAt"`             // Unix millis when first filed
	UpdatedAt   int64     `json:"updatedAt,omitempty"` // Unix millis of the last mutation
	WatchCount  int       `json:"watchCount,omitempty"`
	UserNotes   string    `json:"userNotes,omitempty"`
	UserRating  *float64  `json:"userRating,omitempty"`
	Compound    string    `json:"compoundId"`
}

// CompoundID returns kind:id
func (m MediaItem) CompoundID() string { return CompoundID(m.Kind, m.ID) }

// Key returns the item's fully qualified key
func (m MediaItem) Key() ItemKey { return ItemKey{ID: m.ID, Kind: m.Kind} }

// Year returns the release year parsed from ReleaseDate (0 if unknown)
func (m MediaItem) Year() int {
	if len(m.ReleaseDate) < 4 {
		return 0
	}
	y, err := strconv.Atoi(m.ReleaseDate[:4])
	if err != nil {
		return 0
	}
	return y
}

// Touch stamps UpdatedAt and keeps the compound id in sync
func (m *MediaItem) Touch(now time.Time) {
	m.UpdatedAt = now.UnixMilli()
	m.Compound = m.CompoundID()
}

// ItemData is a metadata-provider record (TMDb shaped) or an import row.
// Only the fields the normalizer keeps are declared; the rest are dropped on decode.
type ItemData struct {
	ID           int       `json:"id"`
	MediaType    string    `json:"media_type,omitempty"`
	Kind         MediaKind `json:"mediaKind,omitempty"`
	Title        string    `json:"title,omitempty"`
	Name         string    `json:"name,omitempty"`
	PosterPath   string    `json:"poster_path,omitempty"`
	PosterRef    string    `json:"posterRef,omitempty"`
	ReleaseDate  string    `json:"release_date,omitempty"`
	FirstAirDate string    `json:"first_air_date,omitempty"`
	VoteAverage  float64   `json:"vote_average,omitempty"`
	Rating       float64   `json:"rating,omitempty"`
	UserNotes    string    `json:"userNotes,omitempty"`
	UserRating   *float64  `json:"userRating,omitempty"`
}

// ItemEdit carries in-place user edits. Nil fields are left untouched.
type ItemEdit struct {
	UserNotes  *string
	UserRating *float64
}

// OpKind is the mutation verb
type OpKind string

const (
	OpAdd    OpKind = "add"
	OpMove   OpKind = "move"
	OpRemove OpKind = "remove"
	OpUpdate OpKind = "update"
)

// Operation is the unit the dedup guard and coordinator reason about
type Operation struct {
	Kind       OpKind
	Item       ItemKey
	From       ListKey
	To         ListKey
	Data       *ItemData
	ObservedAt time.Time
}

// ListKey returns the list the operation targets: the destination for add and
// move, the source for remove.
func (o Operation) ListKey() ListKey {
	if o.Kind == OpRemove {
		return o.From
	}
	return o.To
}

// Trigger is a declarative UI gesture: a control carrying an item id and a
// target list. ControlID scopes the busy flag.
type Trigger struct {
	ControlID string
	Op        OpKind
	ItemID    string
	FromList  string
	ListKey   string
	Data      *ItemData
}
