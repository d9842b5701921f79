package queue

import (
	"context"
	"log/slog"

	"tanktrace/internal/bootstrap/logging"
	domainqueue "tanktrace/internal/domain/queue"
	"tanktrace/internal/ports"
)

// Enqueue appends an item at the tail of the work center's queue.
func (s *Service) Enqueue(ctx context.Context, input EnqueueInput) (item ports.QueueItem, err error) {
	defer func() { s.metrics.QueueOperation("enqueue", err) }()

	if err := s.ready(ctx); err != nil {
		return ports.QueueItem{}, err
	}

	wc, err := s.queueWorkCenter(ctx, input.WorkCenterID)
	if err != nil {
		return ports.QueueItem{}, err
	}
	ctx = logging.WithStation(ctx, wc.PlantID, wc.ID)

	details := input.Details.Normalize(wc.QueueType)
	if _, err := s.checkDetails(ctx, wc.QueueType, details); err != nil {
		return ports.QueueItem{}, err
	}

	operator := operatorName(input.Operator)
	now := s.now()

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.LockWorkCenter(txCtx, wc.ID); err != nil {
			return err
		}
		position, err := s.repo.NextPosition(txCtx, wc.ID)
		if err != nil {
			return err
		}
		item, err = s.repo.CreateItem(txCtx, ports.QueueItem{
			WorkCenterID: wc.ID,
			Position:     position,
			Details:      details,
			CreatedBy:    operator,
			CreatedAt:    now,
		})
		if err != nil {
			return err
		}
		return s.repo.AppendTransaction(txCtx, ports.QueueTransaction{
			WorkCenterID: wc.ID,
			Action:       domainqueue.ActionAdded,
			Summary:      domainqueue.Summary(wc.QueueType, details),
			Operator:     operator,
			CreatedAt:    now,
		})
	}); err != nil {
		return ports.QueueItem{}, err
	}

	logging.Info(ctx, "queue item added",
		slog.Uint64("item_id", item.ID),
		slog.Int64("position", item.Position),
	)
	return item, nil
}
