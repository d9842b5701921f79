package queue

import (
	"context"
	"errors"
	"log/slog"

	"tanktrace/internal/bootstrap/logging"
	domainqueue "tanktrace/internal/domain/queue"
	"tanktrace/internal/errs"
	"tanktrace/internal/ports"
)

// RecordProgress adds consumed quantity to a drawn item, for example coil
// footage run through the rolls. Reaching the declared quantity retires it.
func (s *Service) RecordProgress(ctx context.Context, input ProgressInput) (item ports.QueueItem, err error) {
	defer func() { s.metrics.QueueOperation("progress", err) }()

	if err := s.ready(ctx); err != nil {
		return ports.QueueItem{}, err
	}

	wc, err := s.queueWorkCenter(ctx, input.WorkCenterID)
	if err != nil {
		return ports.QueueItem{}, err
	}
	ctx = logging.WithStation(ctx, wc.PlantID, wc.ID)
	operator := operatorName(input.Operator)
	now := s.now()

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.LockWorkCenter(txCtx, wc.ID); err != nil {
			return err
		}

		current, err := s.repo.GetItem(txCtx, wc.ID, input.ItemID)
		if err != nil {
			if errors.Is(err, ports.ErrQueueItemNotFound) {
				return errs.NotFound("queue item %d not found in work center %d", input.ItemID, wc.ID)
			}
			return err
		}
		if current.Status != domainqueue.StatusConsumed {
			return errs.Conflict("queue item %d has not been drawn yet", current.ID)
		}
		if current.Retired {
			return errs.Conflict("queue item %d is already used up", current.ID)
		}

		next, retired, err := domainqueue.ApplyProgress(current.Details.Quantity, current.QuantityCompleted, input.Amount)
		if err != nil {
			return err
		}
		if err := s.repo.SetProgress(txCtx, current.ID, next, retired); err != nil {
			return err
		}
		if err := s.repo.AppendTransaction(txCtx, ports.QueueTransaction{
			WorkCenterID: wc.ID,
			Action:       domainqueue.ActionProgress,
			Summary:      domainqueue.Summary(wc.QueueType, current.Details) + ", +" + input.Amount.String(),
			Operator:     operator,
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		current.QuantityCompleted = next
		current.Retired = retired
		item = current
		return nil
	}); err != nil {
		return ports.QueueItem{}, err
	}

	logging.Info(ctx, "queue item progress recorded",
		slog.Uint64("item_id", item.ID),
		slog.String("completed", item.QuantityCompleted.String()),
		slog.Bool("retired", item.Retired),
	)
	return item, nil
}
