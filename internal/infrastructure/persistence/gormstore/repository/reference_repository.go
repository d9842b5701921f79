package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tanktrace/internal/domain/queue"
	"tanktrace/internal/errs"
	"tanktrace/internal/infrastructure/persistence/gormstore/model"
	"tanktrace/internal/ports"
)

type ReferenceRepository struct {
	base
}

var (
	_ ports.ReferenceRepository = (*ReferenceRepository)(nil)
	_ ports.ReferenceSeeder     = (*ReferenceRepository)(nil)
)

func NewReferenceRepository(db *gorm.DB) *ReferenceRepository {
	return &ReferenceRepository{base{db: db}}
}

// take loads a single row by id, mapping a missing row to notFound.
func take[T any](ctx context.Context, r *ReferenceRepository, id uint64, notFound error, what string) (T, error) {
	var row T
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return row, err
	}
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return row, notFound
		}
		return row, errs.Wrapf(err, "query %s", what)
	}
	return row, nil
}

func findByIDs[T any](ctx context.Context, r *ReferenceRepository, ids []uint64, what string) ([]T, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var rows []T
	if err := db.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, errs.Wrapf(err, "query %s", what)
	}
	return rows, nil
}

func (r *ReferenceRepository) GetPlant(ctx context.Context, id uint64) (ports.Plant, error) {
	row, err := take[model.Plant](ctx, r, id, ports.ErrPlantNotFound, "plant")
	if err != nil {
		return ports.Plant{}, err
	}
	return mapPlant(row), nil
}

func (r *ReferenceRepository) GetWorkCenter(ctx context.Context, id uint64) (ports.WorkCenter, error) {
	row, err := take[model.WorkCenter](ctx, r, id, ports.ErrWorkCenterNotFound, "work center")
	if err != nil {
		return ports.WorkCenter{}, err
	}
	return mapWorkCenter(row), nil
}

func (r *ReferenceRepository) GetProductionLine(ctx context.Context, id uint64) (ports.ProductionLine, error) {
	row, err := take[model.ProductionLine](ctx, r, id, ports.ErrProductionLineNotFound, "production line")
	if err != nil {
		return ports.ProductionLine{}, err
	}
	return ports.ProductionLine{ID: row.ID, PlantID: row.PlantID, Name: row.Name}, nil
}

func (r *ReferenceRepository) GetAsset(ctx context.Context, id uint64) (ports.Asset, error) {
	row, err := take[model.Asset](ctx, r, id, ports.ErrAssetNotFound, "asset")
	if err != nil {
		return ports.Asset{}, err
	}
	return ports.Asset{ID: row.ID, WorkCenterID: row.WorkCenterID, Name: row.Name}, nil
}

func (r *ReferenceRepository) GetProduct(ctx context.Context, id uint64) (ports.Product, error) {
	row, err := take[model.Product](ctx, r, id, ports.ErrProductNotFound, "product")
	if err != nil {
		return ports.Product{}, err
	}
	return mapProduct(row), nil
}

func (r *ReferenceRepository) GetVendor(ctx context.Context, id uint64) (ports.Vendor, error) {
	row, err := take[model.Vendor](ctx, r, id, ports.ErrVendorNotFound, "vendor")
	if err != nil {
		return ports.Vendor{}, err
	}
	return mapVendor(row), nil
}

func (r *ReferenceRepository) GetUser(ctx context.Context, id uint64) (ports.User, error) {
	row, err := take[model.User](ctx, r, id, ports.ErrUserNotFound, "user")
	if err != nil {
		return ports.User{}, err
	}
	return ports.User{ID: row.ID, Name: row.Name, Badge: row.Badge}, nil
}

func (r *ReferenceRepository) ProductsByID(ctx context.Context, ids []uint64) (map[uint64]ports.Product, error) {
	rows, err := findByIDs[model.Product](ctx, r, ids, "products")
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]ports.Product, len(rows))
	for _, row := range rows {
		out[row.ID] = mapProduct(row)
	}
	return out, nil
}

func (r *ReferenceRepository) VendorsByID(ctx context.Context, ids []uint64) (map[uint64]ports.Vendor, error) {
	rows, err := findByIDs[model.Vendor](ctx, r, ids, "vendors")
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]ports.Vendor, len(rows))
	for _, row := range rows {
		out[row.ID] = mapVendor(row)
	}
	return out, nil
}

func (r *ReferenceRepository) UsersByID(ctx context.Context, ids []uint64) (map[uint64]ports.User, error) {
	rows, err := findByIDs[model.User](ctx, r, ids, "users")
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]ports.User, len(rows))
	for _, row := range rows {
		out[row.ID] = ports.User{ID: row.ID, Name: row.Name, Badge: row.Badge}
	}
	return out, nil
}

func (r *ReferenceRepository) WorkCentersByID(ctx context.Context, ids []uint64) (map[uint64]ports.WorkCenter, error) {
	rows, err := findByIDs[model.WorkCenter](ctx, r, ids, "work centers")
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]ports.WorkCenter, len(rows))
	for _, row := range rows {
		out[row.ID] = mapWorkCenter(row)
	}
	return out, nil
}

func (r *ReferenceRepository) CountDefects(ctx context.Context, nodeIDs []uint64) (map[uint64]int, error) {
	return r.countByNode(ctx, &model.Defect{}, nodeIDs, "defects")
}

func (r *ReferenceRepository) CountAnnotations(ctx context.Context, nodeIDs []uint64) (map[uint64]int, error) {
	return r.countByNode(ctx, &model.Annotation{}, nodeIDs, "annotations")
}

type nodeCount struct {
	NodeID uint64
	N      int
}

func (r *ReferenceRepository) countByNode(ctx context.Context, table any, nodeIDs []uint64, what string) (map[uint64]int, error) {
	out := map[uint64]int{}
	nodeIDs = uniqueIDs(nodeIDs)
	if len(nodeIDs) == 0 {
		return out, nil
	}

	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []nodeCount
	if err := db.Model(table).
		Select("node_id, COUNT(*) AS n").
		Where("node_id IN ?", nodeIDs).
		Group("node_id").
		Scan(&rows).Error; err != nil {
		return nil, errs.Wrapf(err, "count %s", what)
	}
	for _, row := range rows {
		out[row.NodeID] = row.N
	}
	return out, nil
}

// Seed upserts reference rows by id. Plant alpha counters and work center
// queue positions are left alone on conflict so reseeding never rewinds them.
func (r *ReferenceRepository) Seed(ctx context.Context, data ports.ReferenceData) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	upsert := func(rows any, what string, columns ...string) error {
		c := clause.OnConflict{Columns: []clause.Column{{Name: "id"}}}
		if len(columns) == 0 {
			c.UpdateAll = true
		} else {
			c.DoUpdates = clause.AssignmentColumns(columns)
		}
		if err := db.Clauses(c).Create(rows).Error; err != nil {
			return errs.Wrapf(err, "seed %s", what)
		}
		return nil
	}

	if len(data.Plants) > 0 {
		rows := make([]model.Plant, 0, len(data.Plants))
		for _, p := range data.Plants {
			rows = append(rows, model.Plant{ID: p.ID, Code: p.Code, Name: p.Name, AlphaPrefix: p.AlphaPrefix, NextAlphaCode: p.NextAlphaCode})
		}
		if err := upsert(&rows, "plants", "code", "name", "alpha_prefix"); err != nil {
			return err
		}
	}
	if len(data.ProductionLines) > 0 {
		rows := make([]model.ProductionLine, 0, len(data.ProductionLines))
		for _, l := range data.ProductionLines {
			rows = append(rows, model.ProductionLine{ID: l.ID, PlantID: l.PlantID, Name: l.Name})
		}
		if err := upsert(&rows, "production lines"); err != nil {
			return err
		}
	}
	if len(data.WorkCenters) > 0 {
		rows := make([]model.WorkCenter, 0, len(data.WorkCenters))
		for _, wc := range data.WorkCenters {
			rows = append(rows, model.WorkCenter{
				ID:               wc.ID,
				PlantID:          wc.PlantID,
				ProductionLineID: wc.ProductionLineID,
				Name:             wc.Name,
				QueueType:        string(wc.QueueType),
			})
		}
		if err := upsert(&rows, "work centers", "plant_id", "production_line_id", "name", "queue_type"); err != nil {
			return err
		}
	}
	if len(data.Assets) > 0 {
		rows := make([]model.Asset, 0, len(data.Assets))
		for _, a := range data.Assets {
			rows = append(rows, model.Asset{ID: a.ID, WorkCenterID: a.WorkCenterID, Name: a.Name})
		}
		if err := upsert(&rows, "assets"); err != nil {
			return err
		}
	}
	if len(data.Products) > 0 {
		rows := make([]model.Product, 0, len(data.Products))
		for _, p := range data.Products {
			rows = append(rows, model.Product{
				ID:          p.ID,
				PartNumber:  p.PartNumber,
				Description: p.Description,
				Kind:        p.Kind,
				TankSize:    p.TankSize,
				ShellSize:   p.ShellSize,
			})
		}
		if err := upsert(&rows, "products"); err != nil {
			return err
		}
	}
	if len(data.Vendors) > 0 {
		rows := make([]model.Vendor, 0, len(data.Vendors))
		for _, v := range data.Vendors {
			rows = append(rows, model.Vendor{ID: v.ID, Name: v.Name, Role: v.Role, Tracking: string(v.Tracking)})
		}
		if err := upsert(&rows, "vendors"); err != nil {
			return err
		}
	}
	if len(data.Users) > 0 {
		rows := make([]model.User, 0, len(data.Users))
		for _, u := range data.Users {
			rows = append(rows, model.User{ID: u.ID, Name: u.Name, Badge: u.Badge})
		}
		if err := upsert(&rows, "users"); err != nil {
			return err
		}
	}
	return nil
}

func mapPlant(row model.Plant) ports.Plant {
	return ports.Plant{
		ID:            row.ID,
		Code:          row.Code,
		Name:          row.Name,
		AlphaPrefix:   row.AlphaPrefix,
		NextAlphaCode: row.NextAlphaCode,
	}
}

func mapWorkCenter(row model.WorkCenter) ports.WorkCenter {
	return ports.WorkCenter{
		ID:               row.ID,
		PlantID:          row.PlantID,
		ProductionLineID: row.ProductionLineID,
		Name:             row.Name,
		QueueType:        queue.Type(row.QueueType),
	}
}

func mapProduct(row model.Product) ports.Product {
	return ports.Product{
		ID:          row.ID,
		PartNumber:  row.PartNumber,
		Description: row.Description,
		Kind:        row.Kind,
		TankSize:    row.TankSize,
		ShellSize:   row.ShellSize,
	}
}

func mapVendor(row model.Vendor) ports.Vendor {
	return ports.Vendor{
		ID:       row.ID,
		Name:     row.Name,
		Role:     row.Role,
		Tracking: queue.Tracking(row.Tracking),
	}
}
