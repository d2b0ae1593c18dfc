package memory

import (
	"context"
	"sort"
	"sync"

	"vwap-backtest/internal/domain"
	"vwap-backtest/internal/storage"
)

// RunReportStore is an in-memory implementation of storage.RunReportStore.
type RunReportStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunReport // keyed by run_id
}

// NewRunReportStore creates a new in-memory run report store.
func NewRunReportStore() *RunReportStore {
	return &RunReportStore{
		data: make(map[string]*domain.RunReport),
	}
}

// Insert adds a run report. Returns ErrDuplicateKey if run_id exists.
func (s *RunReportStore) Insert(_ context.Context, r *domain.RunReport) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.RunID] = cloneRunReport(r)
	return nil
}

// GetByRunID retrieves a run report. Returns ErrNotFound if not exists.
func (s *RunReportStore) GetByRunID(_ context.Context, runID string) (*domain.RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneRunReport(r), nil
}

// GetAll retrieves all run reports ordered by (created_at, run_id) ASC.
func (s *RunReportStore) GetAll(_ context.Context) ([]*domain.RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.RunReport, 0, len(s.data))
	for _, r := range s.data {
		result = append(result, cloneRunReport(r))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].RunID < result[j].RunID
	})

	return result, nil
}

// cloneRunReport copies the report including its Warnings slice.
func cloneRunReport(r *domain.RunReport) *domain.RunReport {
	c := *r
	if r.Report.Warnings != nil {
		c.Report.Warnings = append([]string(nil), r.Report.Warnings...)
	}
	return &c
}

var _ storage.RunReportStore = (*RunReportStore)(nil)
