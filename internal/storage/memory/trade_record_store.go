package memory

import (
	"context"
	"sort"
	"sync"

	"vwap-backtest/internal/domain"
	"vwap-backtest/internal/storage"
)

// TradeRecordStore is an in-memory implementation of storage.TradeRecordStore.
// Ledgers are indexed by run and kept sorted by order_id on insert.
type TradeRecordStore struct {
	mu    sync.RWMutex
	byID  map[string]*domain.TradeRecord   // trade_id -> record
	byRun map[string][]*domain.TradeRecord // run_id -> ledger, order_id ASC
}

// NewTradeRecordStore creates a new in-memory trade record store.
func NewTradeRecordStore() *TradeRecordStore {
	return &TradeRecordStore{
		byID:  make(map[string]*domain.TradeRecord),
		byRun: make(map[string][]*domain.TradeRecord),
	}
}

// InsertBulk validates the whole batch before storing any of it.
func (s *TradeRecordStore) InsertBulk(_ context.Context, trades []*domain.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(trades))
	for _, t := range trades {
		if t == nil || t.TradeID == "" || t.RunID == "" {
			return storage.ErrInvalidInput
		}
		if _, ok := s.byID[t.TradeID]; ok {
			return storage.ErrDuplicateKey
		}
		if _, ok := seen[t.TradeID]; ok {
			return storage.ErrDuplicateKey
		}
		seen[t.TradeID] = struct{}{}
	}

	touched := make(map[string]struct{})
	for _, t := range trades {
		rec := *t
		s.byID[rec.TradeID] = &rec
		s.byRun[rec.RunID] = append(s.byRun[rec.RunID], &rec)
		touched[rec.RunID] = struct{}{}
	}
	for runID := range touched {
		ledger := s.byRun[runID]
		sort.SliceStable(ledger, func(i, j int) bool {
			return ledger[i].OrderID < ledger[j].OrderID
		})
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeRecordStore) GetByID(_ context.Context, tradeID string) (*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byID[tradeID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	rec := *t
	return &rec, nil
}

// GetByRunID returns copies of the run's ledger, ordered by order_id ASC.
func (s *TradeRecordStore) GetByRunID(_ context.Context, runID string) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ledger := s.byRun[runID]
	out := make([]*domain.TradeRecord, len(ledger))
	for i, t := range ledger {
		rec := *t
		out[i] = &rec
	}
	return out, nil
}

var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)
