package queue

import (
	"context"
	"errors"
	"log/slog"

	"tanktrace/internal/bootstrap/logging"
	"tanktrace/internal/domain/genealogy"
	domainqueue "tanktrace/internal/domain/queue"
	"tanktrace/internal/errs"
	"tanktrace/internal/ports"
)

// Advance consumes the oldest pending item and materializes it as a node.
// An empty queue yields an Empty result, not an error.
func (s *Service) Advance(ctx context.Context, workCenterID uint64, operator string) (result AdvanceResult, err error) {
	defer func() { s.metrics.QueueOperation("advance", err) }()

	if err := s.ready(ctx); err != nil {
		return AdvanceResult{}, err
	}
	if s.genealogy == nil {
		return AdvanceResult{}, errors.New("genealogy repository is required")
	}

	wc, err := s.queueWorkCenter(ctx, workCenterID)
	if err != nil {
		return AdvanceResult{}, err
	}
	ctx = logging.WithStation(ctx, wc.PlantID, wc.ID)
	operator = operatorName(operator)
	now := s.now()

	var consumed *ConsumedItem
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.LockWorkCenter(txCtx, wc.ID); err != nil {
			return err
		}

		item, err := s.repo.FirstPending(txCtx, wc.ID)
		if err != nil {
			if errors.Is(err, ports.ErrQueueItemNotFound) {
				return nil
			}
			return err
		}
		d := item.Details

		var tracking domainqueue.Tracking
		if d.HeadVendorID != nil {
			vendor, err := s.reference.GetVendor(txCtx, *d.HeadVendorID)
			if err != nil {
				return errs.Wrapf(err, "load head vendor %d", *d.HeadVendorID)
			}
			tracking = vendor.Tracking
		}

		var product ports.Product
		if d.ProductID != nil {
			product, err = s.reference.GetProduct(txCtx, *d.ProductID)
			if err != nil {
				return errs.Wrapf(err, "load product %d", *d.ProductID)
			}
		}

		kind, serial := domainqueue.DrawIdentity(wc.QueueType, d, tracking)
		node, err := s.genealogy.CreateNode(txCtx, ports.Node{
			Serial:            serial,
			Kind:              kind,
			PlantID:           wc.PlantID,
			ProductID:         d.ProductID,
			MillVendorID:      d.MillVendorID,
			ProcessorVendorID: d.ProcessorVendorID,
			HeadVendorID:      d.HeadVendorID,
			HeatNumber:        d.HeatNumber,
			CoilNumber:        d.CoilNumber,
			LotNumber:         d.LotNumber,
			TankSize:          product.TankSize,
			CreatedBy:         operator,
			CreatedAt:         now,
		})
		if err != nil {
			return err
		}

		record, err := s.genealogy.CreateProductionRecord(txCtx, ports.ProductionRecord{
			NodeID:           node.ID,
			WorkCenterID:     wc.ID,
			ProductionLineID: wc.ProductionLineID,
			Action:           genealogy.ActionDrawn,
			Notes:            d.Description,
			CreatedAt:        now,
		})
		if err != nil {
			return err
		}

		if _, err := s.genealogy.AppendEdge(txCtx, ports.Edge{
			ToNodeID:           &node.ID,
			Kind:               genealogy.EdgeProducedFrom,
			Quantity:           d.Quantity,
			Location:           wc.Name,
			ProductionRecordID: &record.ID,
			CreatedAt:          now,
		}); err != nil {
			return err
		}

		if err := s.repo.MarkConsumed(txCtx, item.ID, node.ID, now); err != nil {
			if errors.Is(err, ports.ErrQueueItemChanged) {
				return errs.Conflict("queue item %d was consumed concurrently", item.ID)
			}
			return err
		}

		if err := s.repo.AppendTransaction(txCtx, ports.QueueTransaction{
			WorkCenterID: wc.ID,
			Action:       domainqueue.ActionAdvanced,
			Summary:      domainqueue.Summary(wc.QueueType, d),
			Operator:     operator,
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		consumed = &ConsumedItem{
			ItemID:       item.ID,
			WorkCenterID: wc.ID,
			Position:     item.Position,
			NodeID:       node.ID,
			Serial:       node.Serial,
			Kind:         string(kind),
			CardCode:     d.CardCode,
			Description:  d.Description,
			HeatNumber:   d.HeatNumber,
			CoilNumber:   d.CoilNumber,
			LotNumber:    d.LotNumber,
			PartNumber:   product.PartNumber,
			ShellSize:    product.ShellSize,
			TankSize:     product.TankSize,
			Quantity:     d.Quantity,
			ConsumedAt:   now,
		}
		return nil
	}); err != nil {
		return AdvanceResult{}, err
	}

	if consumed == nil {
		logging.Info(ctx, "queue empty on advance")
		return AdvanceResult{Empty: true}, nil
	}

	if raw, err := encodeJSON(consumed); err == nil {
		s.setCacheBestEffort(ctx, lastAdvancedKey(wc.ID), raw)
	}
	s.publishBestEffort(ctx, ports.SubjectQueueAdvanced, consumed)

	logging.Info(ctx, "queue advanced",
		slog.Uint64("item_id", consumed.ItemID),
		slog.String("serial", consumed.Serial),
	)
	return AdvanceResult{Item: consumed}, nil
}
