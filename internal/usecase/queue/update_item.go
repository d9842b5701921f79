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

// Update patches a pending item and re-validates it against its subtype.
func (s *Service) Update(ctx context.Context, input UpdateInput) (item ports.QueueItem, err error) {
	defer func() { s.metrics.QueueOperation("update", err) }()

	if err := s.ready(ctx); err != nil {
		return ports.QueueItem{}, err
	}
	if input.Patch.empty() {
		return ports.QueueItem{}, errs.Validation("patch", "nothing to update")
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

		current, err := s.pendingItem(txCtx, wc.ID, input.ItemID)
		if err != nil {
			return err
		}

		details := input.Patch.apply(current.Details).Normalize(wc.QueueType)
		if _, err := s.checkDetails(txCtx, wc.QueueType, details); err != nil {
			return err
		}

		if err := s.repo.UpdatePendingDetails(txCtx, current.ID, details); err != nil {
			if errors.Is(err, ports.ErrQueueItemChanged) {
				return errs.Conflict("queue item %d is no longer pending", current.ID)
			}
			return err
		}
		if err := s.repo.AppendTransaction(txCtx, ports.QueueTransaction{
			WorkCenterID: wc.ID,
			Action:       domainqueue.ActionUpdated,
			Summary:      domainqueue.Summary(wc.QueueType, details),
			Operator:     operator,
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		current.Details = details
		item = current
		return nil
	}); err != nil {
		return ports.QueueItem{}, err
	}

	logging.Info(ctx, "queue item updated", slog.Uint64("item_id", item.ID))
	return item, nil
}

// pendingItem loads an item of the work center and rejects consumed ones.
func (s *Service) pendingItem(ctx context.Context, workCenterID uint64, itemID uint64) (ports.QueueItem, error) {
	item, err := s.repo.GetItem(ctx, workCenterID, itemID)
	if err != nil {
		if errors.Is(err, ports.ErrQueueItemNotFound) {
			return ports.QueueItem{}, errs.NotFound("queue item %d not found in work center %d", itemID, workCenterID)
		}
		return ports.QueueItem{}, err
	}
	if item.Status != domainqueue.StatusPending {
		return ports.QueueItem{}, errs.Conflict("queue item %d was already consumed", itemID)
	}
	return item, nil
}
