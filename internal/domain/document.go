package domain

import (
	"encoding/json"
	"time"
)

// DocumentVersion is the current persisted schema version
const DocumentVersion = 2

// Lists holds the three status lists of one media kind
type Lists struct {
	Watching []MediaItem `json:"watching"`
	Wishlist []MediaItem `json:"wishlist"`
	Watched  []MediaItem `json:"watched"`
}

func (l *Lists) slot(key ListKey) *[]MediaItem {
	switch key {
	case ListWatching:
		return &l.Watching
	case ListWishlist:
		return &l.Wishlist
	case ListWatched:
		return &l.Watched
	}
	return nil
}

// Document is the persisted application data: opaque settings plus the six lists.
//
// Every mutator, whether it runs through the list cache or directly against a
// loaded document, goes through Put, Move, Remove and Update. They all locate the
// item across every list first, so an item can never be filed twice.
type Document struct {
	Version  int             `json:"version"`
	Settings json.RawMessage `json:"settings,omitempty"`
	TV       Lists           `json:"tv"`
	Movies   Lists           `json:"movies"`
}

// NewDocument returns an empty current-version document
func NewDocument() *Document {
	d := &Document{Version: DocumentVersion}
	d.ensureLists()
	return d
}

func (d *Document) lists(kind MediaKind) *Lists {
	if kind == KindTV {
		return &d.TV
	}
	return &d.Movies
}

// ensureLists replaces nil slices so the encoded form always has [] not null
func (d *Document) ensureLists() {
	for _, kind := range Kinds {
		for _, key := range ListKeys {
			s := d.lists(kind).slot(key)
			if *s == nil {
				*s = []MediaItem{}
			}
		}
	}
}

// List returns a copy of one concrete list
func (d *Document) List(ref ListRef) []MediaItem {
	s := d.lists(ref.Kind).slot(ref.Key)
	if s == nil {
		return nil
	}
	out := make([]MediaItem, len(*s))
	for i, item := range *s {
		out[i] = cloneItem(item)
	}
	return out
}

// Locate finds the list holding key. A key without kind matches either kind,
// tv first.
func (d *Document) Locate(key ItemKey) (ListRef, int, bool) {
	for _, kind := range Kinds {
		if key.Kind != "" && key.Kind != kind {
			continue
		}
		for _, lk := range ListKeys {
			for i, item := range *d.lists(kind).slot(lk) {
				if item.ID == key.ID {
					return ListRef{Kind: kind, Key: lk}, i, true
				}
			}
		}
	}
	return ListRef{}, -1, false
}

// Get returns the stored item for key
func (d *Document) Get(key ItemKey) (MediaItem, ListRef, bool) {
	ref, idx, ok := d.Locate(key)
	if !ok {
		return MediaItem{}, ListRef{}, false
	}
	return cloneItem((*d.lists(ref.Kind).slot(ref.Key))[idx]), ref, true
}

// extract removes every occurrence of key from every list of its kind
func (d *Document) extract(key ItemKey) (MediaItem, ListRef, bool) {
	var (
		found MediaItem
		from  ListRef
		ok    bool
	)
	for _, kind := range Kinds {
		if key.Kind != "" && key.Kind != kind {
			continue
		}
		for _, lk := range ListKeys {
			s := d.lists(kind).slot(lk)
			kept := (*s)[:0]
			for _, item := range *s {
				if item.ID == key.ID {
					if !ok {
						found, from, ok = item, ListRef{Kind: kind, Key: lk}, true
					}
					continue
				}
				kept = append(kept, item)
			}
			*s = kept
		}
		if ok && key.Kind == "" {
			break
		}
	}
	return found, from, ok
}

// Put files item under to (within item.Kind). If the item already sits in
// another list it is relocated and its user fields are kept; if it already sits
// in to, its metadata is refreshed in place.
func (d *Document) Put(item MediaItem, to ListKey, now time.Time) (MediaItem, ListRef, bool) {
	key := item.Key()
	dest := ListRef{Kind: item.Kind, Key: to}

	if ref, idx, ok := d.Locate(key); ok && ref == dest {
		s := d.lists(ref.Kind).slot(ref.Key)
		merged := mergeUserFields(item, (*s)[idx])
		merged.Touch(now)
		(*s)[idx] = merged
		return cloneItem(merged), ref, true
	}

	prev, from, existed := d.extract(key)
	if existed {
		item = mergeUserFields(item, prev)
	} else if item.AddedAt == 0 {
		item.AddedAt = now.UnixMilli()
	}
	item.Touch(now)
	s := d.lists(dest.Kind).slot(dest.Key)
	*s = append(*s, item)
	return cloneItem(item), from, existed
}

// Move relocates key to the list to within its own kind
func (d *Document) Move(key ItemKey, to ListKey, now time.Time) (MediaItem, ListRef, error) {
	item, from, ok := d.extract(key)
	if !ok {
		return MediaItem{}, ListRef{}, NewError(ErrItemNotFound, "move", key.String(), nil)
	}
	item.Kind = from.Kind
	item.Touch(now)
	s := d.lists(from.Kind).slot(to)
	*s = append(*s, item)
	return cloneItem(item), from, nil
}

// Remove erases key from every list
func (d *Document) Remove(key ItemKey) (MediaItem, ListRef, error) {
	item, from, ok := d.extract(key)
	if !ok {
		return MediaItem{}, ListRef{}, NewError(ErrItemNotFound, "remove", key.String(), nil)
	}
	return item, from, nil
}

// Update applies fn to the stored item in place
func (d *Document) Update(key ItemKey, now time.Time, fn func(*MediaItem)) (MediaItem, ListRef, error) {
	ref, idx, ok := d.Locate(key)
	if !ok {
		return MediaItem{}, ListRef{}, NewError(ErrItemNotFound, "update", key.String(), nil)
	}
	s := d.lists(ref.Kind).slot(ref.Key)
	fn(&(*s)[idx])
	(*s)[idx].Touch(now)
	return cloneItem((*s)[idx]), ref, nil
}

// Memberships maps compound id to the list holding it
func (d *Document) Memberships() map[string]ListRef {
	out := make(map[string]ListRef)
	for _, kind := range Kinds {
		for _, lk := range ListKeys {
			for _, item := range *d.lists(kind).slot(lk) {
				out[CompoundID(kind, item.ID)] = ListRef{Kind: kind, Key: lk}
			}
		}
	}
	return out
}

// Len returns the number of tracked items
func (d *Document) Len() int {
	n := 0
	for _, kind := range Kinds {
		for _, lk := range ListKeys {
			n += len(*d.lists(kind).slot(lk))
		}
	}
	return n
}

// Clone returns a deep copy
func (d *Document) Clone() *Document {
	out := &Document{Version: d.Version}
	if d.Settings != nil {
		out.Settings = append(json.RawMessage(nil), d.Settings...)
	}
	for _, kind := range Kinds {
		for _, lk := range ListKeys {
			ref := ListRef{Kind: kind, Key: lk}
			*out.lists(kind).slot(lk) = d.List(ref)
		}
	}
	out.ensureLists()
	return out
}

// Compact enforces single membership after a load or merge: for each compound
// id only the most recently updated record survives. Items are re-stamped with
// their list's kind.
func (d *Document) Compact() {
	type winner struct {
		ref       ListRef
		updatedAt int64
	}
	best := make(map[string]winner)
	for _, kind := range Kinds {
		for _, lk := range ListKeys {
			for _, item := range *d.lists(kind).slot(lk) {
				id := CompoundID(kind, item.ID)
				if w, ok := best[id]; !ok || item.UpdatedAt > w.updatedAt {
					best[id] = winner{ref: ListRef{Kind: kind, Key: lk}, updatedAt: item.UpdatedAt}
				}
			}
		}
	}

	seen := make(map[string]bool)
	for _, kind := range Kinds {
		for _, lk := range ListKeys {
			ref := ListRef{Kind: kind, Key: lk}
			s := d.lists(kind).slot(lk)
			kept := (*s)[:0]
			for _, item := range *s {
				id := CompoundID(kind, item.ID)
				if best[id].ref != ref || seen[id] {
					continue
				}
				seen[id] = true
				item.Kind = kind
				item.Compound = id
				kept = append(kept, item)
			}
			*s = kept
		}
	}
	d.Version = DocumentVersion
	d.ensureLists()
}

// Merge folds remote into a copy of local. Per compound id the newer record
// wins; on a tie the local record is kept. Local settings win when present.
func Merge(local, remote *Document) *Document {
	if remote == nil {
		return local.Clone()
	}
	if local == nil {
		out := remote.Clone()
		out.Compact()
		return out
	}

	out := local.Clone()
	if len(out.Settings) == 0 && len(remote.Settings) > 0 {
		out.Settings = append(json.RawMessage(nil), remote.Settings...)
	}
	for _, kind := range Kinds {
		for _, lk := range ListKeys {
			for _, item := range *remote.lists(kind).slot(lk) {
				item.Kind = kind
				existing, _, ok := out.Get(item.Key())
				if ok && existing.UpdatedAt >= item.UpdatedAt {
					continue
				}
				out.extract(item.Key())
				s := out.lists(kind).slot(lk)
				*s = append(*s, cloneItem(item))
			}
		}
	}
	out.Compact()
	return out
}

func mergeUserFields(incoming, existing MediaItem) MediaItem {
	if existing.AddedAt != 0 {
		incoming.AddedAt = existing.AddedAt
	}
	if incoming.UserNotes == "" {
		incoming.UserNotes = existing.UserNotes
	}
	if incoming.UserRating == nil {
		incoming.UserRating = existing.UserRating
	}
	if incoming.WatchCount < existing.WatchCount {
		incoming.WatchCount = existing.WatchCount
	}
	if incoming.Title == "" {
		incoming.Title = existing.Title
	}
	if incoming.PosterRef == "" {
		incoming.PosterRef = existing.PosterRef
	}
	if incoming.ReleaseDate == "" {
		incoming.ReleaseDate = existing.ReleaseDate
	}
	if incoming.Rating == 0 {
		incoming.Rating = existing.Rating
	}
	return incoming
}

func cloneItem(item MediaItem) MediaItem {
	if item.UserRating != nil {
		r := *item.UserRating
		item.UserRating = &r
	}
	return item
}
