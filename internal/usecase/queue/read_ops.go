package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"tanktrace/internal/bootstrap/logging"
	"tanktrace/internal/errs"
	"tanktrace/internal/ports"
)

// List returns the pending items of the work center in FIFO order.
func (s *Service) List(ctx context.Context, workCenterID uint64) ([]ports.QueueItem, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if _, err := s.queueWorkCenter(ctx, workCenterID); err != nil {
		return nil, err
	}
	return s.repo.ListPending(ctx, workCenterID)
}

// Transactions returns recent audit rows, newest first.
func (s *Service) Transactions(ctx context.Context, workCenterID uint64, limit int) ([]ports.QueueTransaction, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if _, err := s.queueWorkCenter(ctx, workCenterID); err != nil {
		return nil, err
	}

	switch {
	case limit < 0:
		return nil, errs.Validation("limit", "limit must not be negative")
	case limit == 0:
		limit = defaultTransactionLimit
	case limit > maxTransactionLimit:
		limit = maxTransactionLimit
	}
	return s.repo.ListTransactions(ctx, workCenterID, limit)
}

// LastAdvanced returns the most recent Advance result cached for the work
// center, or nil when none is known.
func (s *Service) LastAdvanced(ctx context.Context, workCenterID uint64) (*ConsumedItem, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if _, err := s.queueWorkCenter(ctx, workCenterID); err != nil {
		return nil, err
	}
	if s.cache == nil {
		return nil, nil
	}

	raw, found, err := s.cache.Get(ctx, lastAdvancedKey(workCenterID))
	if err != nil {
		logging.Warn(ctx, "queue cache read failed", slog.Any("err", errs.Loggable(err)))
		return nil, nil
	}
	if !found {
		return nil, nil
	}

	var item ConsumedItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		logging.Warn(ctx, "queue cache entry is not decodable", slog.Any("err", errs.Loggable(err)))
		return nil, nil
	}
	return &item, nil
}
