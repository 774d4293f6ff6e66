// Package scancache keeps scan metadata on disk so repeated scans of the same
// URL skip the extractor. It never holds job state.
package scancache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pebble "github.com/cockroachdb/pebble"

	"mediafetch/internal/models"
)

type entry struct {
	StoredAt time.Time         `json:"stored_at"`
	Info     *models.VideoInfo `json:"info"`
}

// Store is a TTL cache backed by pebble.
type Store struct {
	db  *pebble.DB
	ttl time.Duration
	now func() time.Time
}

// Open creates or opens the cache at dir.
func Open(dir string, ttl time.Duration) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open scan cache: %w", err)
	}
	return &Store{db: db, ttl: ttl, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns a cached copy when present and not expired.
func (s *Store) Get(url string) (*models.VideoInfo, bool) {
	data, closer, err := s.db.Get([]byte(url))
	if err != nil {
		return nil, false
	}
	defer closer.Close()

	var e entry
	if err := json.Unmarshal(data, &e); err != nil || e.Info == nil {
		return nil, false
	}
	if s.expired(e.StoredAt) {
		return nil, false
	}
	return e.Info, true
}

// Put stores info under url.
func (s *Store) Put(url string, info *models.VideoInfo) error {
	if info == nil {
		return errors.New("nil video info")
	}
	data, err := json.Marshal(entry{StoredAt: s.now(), Info: info})
	if err != nil {
		return fmt.Errorf("failed to marshal scan entry: %w", err)
	}
	return s.db.Set([]byte(url), data, pebble.Sync)
}

// Prune deletes expired and unreadable entries and returns how many went.
func (s *Store) Prune() (int, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}

	var stale [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		var e entry
		if err := json.Unmarshal(iter.Value(), &e); err == nil && !s.expired(e.StoredAt) {
			continue
		}
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		stale = append(stale, key)
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}

	for _, key := range stale {
		if err := s.db.Delete(key, pebble.Sync); err != nil {
			return 0, fmt.Errorf("failed to delete scan entry: %w", err)
		}
	}
	return len(stale), nil
}

func (s *Store) expired(storedAt time.Time) bool {
	return s.ttl > 0 && s.now().Sub(storedAt) > s.ttl
}
