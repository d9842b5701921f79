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

// Delete removes a pending item. Positions of the remaining items are kept.
func (s *Service) Delete(ctx context.Context, workCenterID uint64, itemID uint64, operator string) (err error) {
	defer func() { s.metrics.QueueOperation("delete", err) }()

	if err := s.ready(ctx); err != nil {
		return err
	}

	wc, err := s.queueWorkCenter(ctx, workCenterID)
	if err != nil {
		return err
	}
	ctx = logging.WithStation(ctx, wc.PlantID, wc.ID)
	operator = operatorName(operator)
	now := s.now()

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.LockWorkCenter(txCtx, wc.ID); err != nil {
			return err
		}

		item, err := s.pendingItem(txCtx, wc.ID, itemID)
		if err != nil {
			return err
		}
		if err := s.repo.DeletePending(txCtx, item.ID); err != nil {
			if errors.Is(err, ports.ErrQueueItemChanged) {
				return errs.Conflict("queue item %d is no longer pending", item.ID)
			}
			return err
		}
		return s.repo.AppendTransaction(txCtx, ports.QueueTransaction{
			WorkCenterID: wc.ID,
			Action:       domainqueue.ActionRemoved,
			Summary:      domainqueue.Summary(wc.QueueType, item.Details),
			Operator:     operator,
			CreatedAt:    now,
		})
	}); err != nil {
		return err
	}

	logging.Info(ctx, "queue item removed", slog.Uint64("item_id", itemID))
	return nil
}
