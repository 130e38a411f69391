package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mmcdole/shelf/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketAppData = []byte("appdata")
)

// LocalStore implements domain.LocalStore using BoltDB.
//
// Values are opaque byte slices (serialized documents). A byte quota across all
// keys mimics the fixed budget of a browser-local store: a Set that would push
// the total over the quota fails with domain.ErrQuotaExceeded and leaves the
// previous value in place.
type LocalStore struct {
	db    *bolt.DB
	quota int64

	mu sync.RWMutex // Protects memory cache and sizes

	// In-memory cache for hot-path reads (promoted on access)
	cache map[string][]byte
	sizes map[string]int64
	total int64
}

// Options configures a LocalStore
type Options struct {
	// Dir is the data directory. Empty means memory-only mode (no persistence).
	Dir string
	// QuotaBytes caps the summed size of all values; 0 disables the cap
	QuotaBytes int64
}

func NewLocalStore(opts Options) (*LocalStore, error) {
	s := &LocalStore{
		quota: opts.QuotaBytes,
		cache: make(map[string][]byte),
		sizes: make(map[string]int64),
	}
	if opts.Dir == "" {
		return s, nil
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(opts.Dir, "shelf.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAppData)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	// Seed size accounting from what is already on disk
	err = db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAppData).ForEach(func(k, v []byte) error {
			s.sizes[string(k)] = int64(len(v))
			s.total += int64(len(v))
			return nil
		})
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s.db = db
	return s, nil
}

func (s *LocalStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns a copy of the stored value
func (s *LocalStore) Get(key string) ([]byte, bool, error) {
	// Check memory cache first
	s.mu.RLock()
	if data, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return append([]byte(nil), data...), true, nil
	}
	s.mu.RUnlock()

	if s.db == nil {
		return nil, false, nil
	}

	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAppData)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	if data == nil {
		return nil, false, nil
	}

	// Promote to memory cache
	s.mu.Lock()
	s.cache[key] = data
	s.mu.Unlock()

	return append([]byte(nil), data...), true, nil
}

// Set stores value under key, enforcing the quota
func (s *LocalStore) Set(key string, value []byte) error {
	data := append([]byte(nil), value...)
	size := int64(len(data))

	s.mu.Lock()
	defer s.mu.Unlock()

	projected := s.total - s.sizes[key] + size
	if s.quota > 0 && projected > s.quota {
		return domain.NewError(domain.ErrQuotaExceeded, "set "+key, "",
			fmt.Errorf("%d bytes would exceed quota of %d", projected, s.quota))
	}

	if s.db != nil {
		err := s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(bucketAppData).Put([]byte(key), data)
		})
		if err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
	}

	s.cache[key] = data
	s.sizes[key] = size
	s.total = projected
	return nil
}

// Delete removes key; deleting a missing key is not an error
func (s *LocalStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		err := s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(bucketAppData).Delete([]byte(key))
		})
		if err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}

	delete(s.cache, key)
	s.total -= s.sizes[key]
	delete(s.sizes, key)
	return nil
}

// Usage returns the bytes currently accounted against the quota
func (s *LocalStore) Usage() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// InvalidateAll drops the in-memory cache; the next reads go to disk
func (s *LocalStore) InvalidateAll() {
	s.mu.Lock()
	s.cache = make(map[string][]byte)
	s.mu.Unlock()
}
