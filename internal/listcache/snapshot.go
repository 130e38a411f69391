package listcache

import "github.com/mmcdole/shelf/internal/domain"

// Snapshot is an immutable view of list membership for one identity
type Snapshot struct {
	UID   string
	lists map[domain.ListRef][]domain.MediaItem
	where map[string]domain.ListRef
}

// NewSnapshot indexes doc. The document is copied.
func NewSnapshot(uid string, doc *domain.Document) *Snapshot {
	s := &Snapshot{
		UID:   uid,
		lists: make(map[domain.ListRef][]domain.MediaItem),
		where: doc.Memberships(),
	}
	for _, kind := range domain.Kinds {
		for _, key := range domain.ListKeys {
			ref := domain.ListRef{Kind: kind, Key: key}
			s.lists[ref] = doc.List(ref)
		}
	}
	return s
}

// Items returns a copy of one list
func (s *Snapshot) Items(ref domain.ListRef) []domain.MediaItem {
	return append([]domain.MediaItem(nil), s.lists[ref]...)
}

// IDs returns the ids filed in one list, in list order
func (s *Snapshot) IDs(ref domain.ListRef) []int {
	items := s.lists[ref]
	ids := make([]int, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

// Locate returns the list holding key. A bare key matches tv first.
func (s *Snapshot) Locate(key domain.ItemKey) (domain.ListRef, bool) {
	for _, kind := range domain.Kinds {
		if key.Kind != "" && key.Kind != kind {
			continue
		}
		if ref, ok := s.where[domain.CompoundID(kind, key.ID)]; ok {
			return ref, true
		}
	}
	return domain.ListRef{}, false
}

// Has reports whether key is filed under list (either kind for a bare key)
func (s *Snapshot) Has(key domain.ItemKey, list domain.ListKey) bool {
	for _, kind := range domain.Kinds {
		if key.Kind != "" && key.Kind != kind {
			continue
		}
		if ref, ok := s.where[domain.CompoundID(kind, key.ID)]; ok && ref.Key == list {
			return true
		}
	}
	return false
}

// Counts returns the length of every list
func (s *Snapshot) Counts() map[domain.ListRef]int {
	out := make(map[domain.ListRef]int, len(s.lists))
	for ref, items := range s.lists {
		out[ref] = len(items)
	}
	return out
}
