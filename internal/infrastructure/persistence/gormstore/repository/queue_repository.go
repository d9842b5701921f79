package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tanktrace/internal/domain/queue"
	"tanktrace/internal/errs"
	"tanktrace/internal/infrastructure/persistence/gormstore/model"
	"tanktrace/internal/ports"
)

type QueueRepository struct {
	base
}

var _ ports.QueueRepository = (*QueueRepository)(nil)

func NewQueueRepository(db *gorm.DB) *QueueRepository {
	return &QueueRepository{base{db: db}}
}

func (r *QueueRepository) LockWorkCenter(ctx context.Context, workCenterID uint64) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	var row model.WorkCenter
	if err := forUpdate(ctx, db).Select("id").Where("id = ?", workCenterID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.ErrWorkCenterNotFound
		}
		return errs.Wrap(err, "lock work center")
	}
	return nil
}

// NextPosition advances the work center's position counter. Positions of
// deleted items are never handed out again. Rows written before the counter
// existed are honoured by starting above the highest stored position.
func (r *QueueRepository) NextPosition(ctx context.Context, workCenterID uint64) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var wc model.WorkCenter
	if err := forUpdate(ctx, db).Select("id", "last_queue_position").Where("id = ?", workCenterID).Take(&wc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ports.ErrWorkCenterNotFound
		}
		return 0, errs.Wrap(err, "query queue position counter")
	}

	var maxPosition int64
	if err := db.Model(&model.QueueItem{}).
		Select("COALESCE(MAX(position), 0)").
		Where("work_center_id = ?", workCenterID).
		Scan(&maxPosition).Error; err != nil {
		return 0, errs.Wrap(err, "query max queue position")
	}

	next := max(wc.LastQueuePosition, maxPosition) + 1
	if err := db.Model(&model.WorkCenter{}).
		Where("id = ?", workCenterID).
		Update("last_queue_position", next).Error; err != nil {
		return 0, errs.Wrap(err, "advance queue position counter")
	}
	return next, nil
}

func (r *QueueRepository) CreateItem(ctx context.Context, item ports.QueueItem) (ports.QueueItem, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.QueueItem{}, err
	}

	d := item.Details
	row := model.QueueItem{
		WorkCenterID:      item.WorkCenterID,
		Position:          item.Position,
		Status:            string(queue.StatusPending),
		ProductID:         d.ProductID,
		MillVendorID:      d.MillVendorID,
		ProcessorVendorID: d.ProcessorVendorID,
		HeadVendorID:      d.HeadVendorID,
		HeatNumber:        d.HeatNumber,
		CoilNumber:        d.CoilNumber,
		LotNumber:         d.LotNumber,
		CardCode:          d.CardCode,
		Description:       d.Description,
		Quantity:          d.Quantity,
		QuantityCompleted: decimal.Zero,
		CreatedBy:         item.CreatedBy,
		CreatedAt:         item.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.QueueItem{}, errs.Wrap(err, "insert queue item")
	}
	return mapQueueItem(row), nil
}

func (r *QueueRepository) GetItem(ctx context.Context, workCenterID uint64, itemID uint64) (ports.QueueItem, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.QueueItem{}, err
	}

	var row model.QueueItem
	if err := forUpdate(ctx, db).
		Where("id = ? AND work_center_id = ?", itemID, workCenterID).
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.QueueItem{}, ports.ErrQueueItemNotFound
		}
		return ports.QueueItem{}, errs.Wrap(err, "query queue item")
	}
	return mapQueueItem(row), nil
}

func (r *QueueRepository) FirstPending(ctx context.Context, workCenterID uint64) (ports.QueueItem, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.QueueItem{}, err
	}

	var rows []model.QueueItem
	if err := forUpdate(ctx, db).
		Where("work_center_id = ? AND status = ?", workCenterID, string(queue.StatusPending)).
		Order("position asc").
		Limit(1).
		Find(&rows).Error; err != nil {
		return ports.QueueItem{}, errs.Wrap(err, "query first pending queue item")
	}
	if len(rows) == 0 {
		return ports.QueueItem{}, ports.ErrQueueItemNotFound
	}
	return mapQueueItem(rows[0]), nil
}

func (r *QueueRepository) ListPending(ctx context.Context, workCenterID uint64) ([]ports.QueueItem, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.QueueItem
	if err := db.Where("work_center_id = ? AND status = ?", workCenterID, string(queue.StatusPending)).
		Order("position asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query pending queue items")
	}

	items := make([]ports.QueueItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapQueueItem(row))
	}
	return items, nil
}

func (r *QueueRepository) UpdatePendingDetails(ctx context.Context, itemID uint64, d queue.Details) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.QueueItem{}).
		Where("id = ? AND status = ?", itemID, string(queue.StatusPending)).
		Updates(map[string]any{
			"product_id":          d.ProductID,
			"mill_vendor_id":      d.MillVendorID,
			"processor_vendor_id": d.ProcessorVendorID,
			"head_vendor_id":      d.HeadVendorID,
			"heat_number":         d.HeatNumber,
			"coil_number":         d.CoilNumber,
			"lot_number":          d.LotNumber,
			"card_code":           d.CardCode,
			"description":         d.Description,
			"quantity":            d.Quantity,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update queue item")
	}
	if result.RowsAffected == 0 {
		return ports.ErrQueueItemChanged
	}
	return nil
}

func (r *QueueRepository) MarkConsumed(ctx context.Context, itemID uint64, nodeID uint64, at time.Time) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.QueueItem{}).
		Where("id = ? AND status = ?", itemID, string(queue.StatusPending)).
		Updates(map[string]any{
			"status":      string(queue.StatusConsumed),
			"node_id":     nodeID,
			"consumed_at": at,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "mark queue item consumed")
	}
	if result.RowsAffected == 0 {
		return ports.ErrQueueItemChanged
	}
	return nil
}

func (r *QueueRepository) DeletePending(ctx context.Context, itemID uint64) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Where("id = ? AND status = ?", itemID, string(queue.StatusPending)).Delete(&model.QueueItem{})
	if result.Error != nil {
		return errs.Wrap(result.Error, "delete queue item")
	}
	if result.RowsAffected == 0 {
		return ports.ErrQueueItemChanged
	}
	return nil
}

func (r *QueueRepository) FindDrawByNode(ctx context.Context, nodeID uint64) (ports.QueueItem, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.QueueItem{}, err
	}

	var rows []model.QueueItem
	if err := forUpdate(ctx, db).
		Where("node_id = ? AND status = ?", nodeID, string(queue.StatusConsumed)).
		Order("id desc").
		Limit(1).
		Find(&rows).Error; err != nil {
		return ports.QueueItem{}, errs.Wrap(err, "query queue item by node")
	}
	if len(rows) == 0 {
		return ports.QueueItem{}, ports.ErrQueueItemNotFound
	}
	return mapQueueItem(rows[0]), nil
}

func (r *QueueRepository) SetProgress(ctx context.Context, itemID uint64, completed decimal.Decimal, retired bool) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.QueueItem{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"quantity_completed": completed,
			"retired":            retired,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update queue item progress")
	}
	if result.RowsAffected == 0 {
		return ports.ErrQueueItemNotFound
	}
	return nil
}

func (r *QueueRepository) AppendTransaction(ctx context.Context, tx ports.QueueTransaction) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.QueueTransaction{
		WorkCenterID: tx.WorkCenterID,
		Action:       tx.Action,
		Summary:      tx.Summary,
		Operator:     tx.Operator,
		CreatedAt:    tx.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert queue transaction")
	}
	return nil
}

func (r *QueueRepository) ListTransactions(ctx context.Context, workCenterID uint64, limit int) ([]ports.QueueTransaction, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Where("work_center_id = ?", workCenterID).Order("created_at desc").Order("id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.QueueTransaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query queue transactions")
	}

	items := make([]ports.QueueTransaction, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.QueueTransaction{
			ID:           row.ID,
			WorkCenterID: row.WorkCenterID,
			Action:       row.Action,
			Summary:      row.Summary,
			Operator:     row.Operator,
			CreatedAt:    row.CreatedAt,
		})
	}
	return items, nil
}

func mapQueueItem(row model.QueueItem) ports.QueueItem {
	return ports.QueueItem{
		ID:           row.ID,
		WorkCenterID: row.WorkCenterID,
		Position:     row.Position,
		Status:       queue.Status(row.Status),
		Details: queue.Details{
			ProductID:         row.ProductID,
			MillVendorID:      row.MillVendorID,
			ProcessorVendorID: row.ProcessorVendorID,
			HeadVendorID:      row.HeadVendorID,
			HeatNumber:        row.HeatNumber,
			CoilNumber:        row.CoilNumber,
			LotNumber:         row.LotNumber,
			CardCode:          row.CardCode,
			Description:       row.Description,
			Quantity:          row.Quantity,
		},
		QuantityCompleted: row.QuantityCompleted,
		Retired:           row.Retired,
		NodeID:            row.NodeID,
		CreatedBy:         row.CreatedBy,
		CreatedAt:         row.CreatedAt,
		ConsumedAt:        row.ConsumedAt,
	}
}
