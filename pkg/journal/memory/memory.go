// Package memory provides an in-memory journal for tests and single-process
// deployments. Entries are lost on restart. Optional LRU eviction by
// resolution bounds memory usage.
package memory

import (
	"container/list"
	"context"
	"sort"
	"sync"

	"github.com/rhuss/schach/pkg/journal"
)

// resolution holds the attempts of one resolution.
type resolution struct {
	id       string
	tenantID string
	attempts []*journal.Attempt
	lruElem  *list.Element
}

// Store is an in-memory journal.Store.
type Store struct {
	mu          sync.RWMutex
	resolutions map[string]*resolution
	byID        map[string]*journal.Attempt
	lruList     *list.List // front = most recently written
	maxSize     int        // resolutions kept; 0 = unlimited
}

var _ journal.Store = (*Store)(nil)

// New creates a store. maxResolutions bounds how many resolutions are kept;
// when exceeded the least recently written one is evicted with all of its
// attempts. Zero means no limit.
func New(maxResolutions int) *Store {
	return &Store{
		resolutions: make(map[string]*resolution),
		byID:        make(map[string]*journal.Attempt),
		lruList:     list.New(),
		maxSize:     maxResolutions,
	}
}

// Record stores a copy of a.
func (s *Store) Record(ctx context.Context, a *journal.Attempt) error {
	journal.Prepare(ctx, a)
	cp := *a

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[cp.ID]; exists {
		return journal.ErrConflict
	}

	r, ok := s.resolutions[cp.ResolutionID]
	if ok {
		s.lruList.MoveToFront(r.lruElem)
	} else {
		if s.maxSize > 0 && len(s.resolutions) >= s.maxSize {
			s.evictOldest()
		}
		r = &resolution{id: cp.ResolutionID, tenantID: cp.TenantID}
		r.lruElem = s.lruList.PushFront(cp.ResolutionID)
		s.resolutions[cp.ResolutionID] = r
	}

	r.attempts = append(r.attempts, &cp)
	s.byID[cp.ID] = &cp
	return nil
}

// ListAttempts returns copies of a resolution's attempts.
func (s *Store) ListAttempts(ctx context.Context, resolutionID string) ([]*journal.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.resolutions[resolutionID]
	if !ok || !journal.Visible(ctx, r.tenantID) {
		return nil, journal.ErrNotFound
	}

	out := make([]*journal.Attempt, len(r.attempts))
	for i, a := range r.attempts {
		cp := *a
		out[i] = &cp
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Attempt < out[j].Attempt })
	return out, nil
}

// Get returns a copy of one attempt.
func (s *Store) Get(ctx context.Context, id string) (*journal.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok || !journal.Visible(ctx, a.TenantID) {
		return nil, journal.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// Len returns the number of resolutions held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.resolutions)
}

// HealthCheck always returns nil.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// evictOldest removes the least recently written resolution.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}
	id := back.Value.(string)
	s.lruList.Remove(back)
	if r, ok := s.resolutions[id]; ok {
		for _, a := range r.attempts {
			delete(s.byID, a.ID)
		}
	}
	delete(s.resolutions, id)
}
