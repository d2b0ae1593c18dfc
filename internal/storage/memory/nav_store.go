package memory

import (
	"context"
	"sort"
	"sync"

	"vwap-backtest/internal/domain"
	"vwap-backtest/internal/storage"
)

type navKey struct {
	runID string
	seq   int
}

// NAVStore is an in-memory implementation of storage.NAVStore.
type NAVStore struct {
	mu   sync.RWMutex
	data map[navKey]*domain.NAVSample
}

// NewNAVStore creates a new in-memory NAV store.
func NewNAVStore() *NAVStore {
	return &NAVStore{
		data: make(map[navKey]*domain.NAVSample),
	}
}

// InsertBulk adds multiple samples. Fails entire batch on duplicate (run_id, seq).
func (s *NAVStore) InsertBulk(_ context.Context, samples []*domain.NAVSample) error {
	if len(samples) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[navKey]struct{}, len(samples))
	for _, n := range samples {
		if n == nil || n.RunID == "" || n.Seq < 0 {
			return storage.ErrInvalidInput
		}
		key := navKey{runID: n.RunID, seq: n.Seq}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, n := range samples {
		sampleCopy := *n
		s.data[navKey{runID: n.RunID, seq: n.Seq}] = &sampleCopy
	}

	return nil
}

// GetByRunID retrieves the NAV series of a run, ordered by seq ASC.
func (s *NAVStore) GetByRunID(_ context.Context, runID string) ([]*domain.NAVSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.NAVSample
	for key, n := range s.data {
		if key.runID == runID {
			sampleCopy := *n
			result = append(result, &sampleCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})

	return result, nil
}

var _ storage.NAVStore = (*NAVStore)(nil)
