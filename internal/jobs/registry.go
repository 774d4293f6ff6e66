package jobs

import (
	"sync"
	"time"

	"mediafetch/internal/models"
)

// ProgressRegistry maps job ids to progress snapshots. Writers replace whole
// records and readers get copies, so a reader never sees a partial update.
// Terminal records are never overwritten.
type ProgressRegistry struct {
	mu      sync.RWMutex
	records map[string]models.ProgressRecord
	now     func() time.Time
}

func NewProgressRegistry() *ProgressRegistry {
	return &ProgressRegistry{
		records: make(map[string]models.ProgressRecord),
		now:     time.Now,
	}
}

// Create inserts a starting record. It returns false if id is taken.
func (r *ProgressRegistry) Create(id string, kind models.JobKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; ok {
		return false
	}
	r.records[id] = models.ProgressRecord{
		Kind:      kind,
		Status:    models.StatusStarting,
		UpdatedAt: r.now(),
	}
	return true
}

// Set replaces the record for id. Writes to unknown or terminal records are
// dropped and reported as false.
func (r *ProgressRegistry) Set(id string, rec models.ProgressRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.records[id]
	if !ok || cur.Status.IsTerminal() {
		return false
	}
	rec.Kind = cur.Kind
	rec.UpdatedAt = r.now()
	r.records[id] = rec
	return true
}

// Get returns a copy of the record.
func (r *ProgressRegistry) Get(id string) (models.ProgressRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	return rec, ok
}

// Snapshot is Get with an "unknown" record for ids never seen.
func (r *ProgressRegistry) Snapshot(id string) models.ProgressRecord {
	if rec, ok := r.Get(id); ok {
		return rec
	}
	return models.ProgressRecord{Status: models.StatusUnknown}
}

// CancelSet holds ids whose jobs should stop at their next checkpoint. An id
// can be requested only once, so a repeated cancel is reported as a no-op
// even after the worker has honored the first one.
type CancelSet struct {
	mu  sync.Mutex
	// true while pending, false once the worker has consumed it
	ids map[string]bool
}

func NewCancelSet() *CancelSet {
	return &CancelSet{ids: make(map[string]bool)}
}

// Request marks id for cancellation. It returns false when id was already
// requested.
func (c *CancelSet) Request(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.ids[id]; ok {
		return false
	}
	c.ids[id] = true
	return true
}

// Consume clears a pending request and reports whether there was one. Only
// the worker that owns id calls it.
func (c *CancelSet) Consume(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ids[id] {
		return false
	}
	c.ids[id] = false
	return true
}

// Pending reports whether a cancellation is waiting for id.
func (c *CancelSet) Pending(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ids[id]
}

// ResultStore keeps finished artifacts until they are fetched once.
type ResultStore struct {
	mu      sync.Mutex
	results map[string]models.Result
}

func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]models.Result)}
}

func (s *ResultStore) Put(id string, res models.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[id] = res
}

// Take returns and removes the result for id.
func (s *ResultStore) Take(id string) (models.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.results[id]
	if ok {
		delete(s.results, id)
	}
	return res, ok
}
