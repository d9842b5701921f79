package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tanktrace/internal/domain/genealogy"
	"tanktrace/internal/errs"
	"tanktrace/internal/infrastructure/persistence/gormstore/model"
	"tanktrace/internal/ports"
)

type GenealogyRepository struct {
	base
}

var _ ports.GenealogyRepository = (*GenealogyRepository)(nil)

func NewGenealogyRepository(db *gorm.DB) *GenealogyRepository {
	return &GenealogyRepository{base{db: db}}
}

func (r *GenealogyRepository) CreateNode(ctx context.Context, node ports.Node) (ports.Node, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Node{}, err
	}

	row := model.Node{
		Serial:            strings.TrimSpace(node.Serial),
		Kind:              string(node.Kind),
		PlantID:           node.PlantID,
		ProductID:         node.ProductID,
		MillVendorID:      node.MillVendorID,
		ProcessorVendorID: node.ProcessorVendorID,
		HeadVendorID:      node.HeadVendorID,
		HeatNumber:        node.HeatNumber,
		CoilNumber:        node.CoilNumber,
		LotNumber:         node.LotNumber,
		TankSize:          node.TankSize,
		CreatedBy:         node.CreatedBy,
		CreatedAt:         node.CreatedAt,
		ModifiedBy:        node.CreatedBy,
		ModifiedAt:        node.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Node{}, errs.Wrap(err, "insert node")
	}
	return mapNode(row), nil
}

func (r *GenealogyRepository) GetNode(ctx context.Context, id uint64) (ports.Node, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Node{}, err
	}

	var row model.Node
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Node{}, ports.ErrNodeNotFound
		}
		return ports.Node{}, errs.Wrap(err, "query node")
	}
	return mapNode(row), nil
}

func (r *GenealogyRepository) LockNodes(ctx context.Context, ids []uint64) (map[uint64]ports.Node, error) {
	out := make(map[uint64]ports.Node, len(ids))
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return out, nil
	}

	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var rows []model.Node
	if err := forUpdate(ctx, db).Where("id IN ?", ids).Order("id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "lock nodes")
	}
	for _, row := range rows {
		out[row.ID] = mapNode(row)
	}
	return out, nil
}

func (r *GenealogyRepository) GetNodes(ctx context.Context, ids []uint64) (map[uint64]ports.Node, error) {
	out := make(map[uint64]ports.Node, len(ids))
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return out, nil
	}

	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Node
	if err := db.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query nodes")
	}
	for _, row := range rows {
		out[row.ID] = mapNode(row)
	}
	return out, nil
}

func (r *GenealogyRepository) FindNodesBySerial(ctx context.Context, serial string, plantID uint64) ([]ports.Node, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Where("serial = ?", strings.TrimSpace(serial))
	if plantID != 0 {
		query = query.Where("plant_id = ?", plantID)
	}

	var rows []model.Node
	if err := query.Order("created_at desc").Order("id desc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query nodes by serial")
	}

	items := make([]ports.Node, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapNode(row))
	}
	return items, nil
}

func (r *GenealogyRepository) SetReplacedBy(ctx context.Context, nodeID uint64, replacedByID uint64, actor string, at time.Time) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.Node{}).
		Where("id = ? AND replaced_by_id IS NULL", nodeID).
		Updates(map[string]any{
			"replaced_by_id": replacedByID,
			"modified_by":    actor,
			"modified_at":    at,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update node replaced_by")
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetNode(ctx, nodeID); err != nil {
			return err
		}
		return ports.ErrNodeReplaced
	}
	return nil
}

func (r *GenealogyRepository) MarkSeamChanges(ctx context.Context, nodeID uint64, flags ports.SeamFlags, actor string, at time.Time) error {
	updates := map[string]any{}
	if flags.LeftHead {
		updates["left_head_changed"] = true
	}
	if flags.RightHead {
		updates["right_head_changed"] = true
	}
	if flags.Shell {
		updates["shell_changed"] = true
	}
	if len(updates) == 0 {
		return nil
	}
	updates["modified_by"] = actor
	updates["modified_at"] = at

	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}
	if err := db.Model(&model.Node{}).Where("id = ?", nodeID).Updates(updates).Error; err != nil {
		return errs.Wrap(err, "update node seam flags")
	}
	return nil
}

func (r *GenealogyRepository) AppendEdge(ctx context.Context, edge ports.Edge) (ports.Edge, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Edge{}, err
	}

	row := model.GenealogyEdge{
		FromNodeID:         edge.FromNodeID,
		ToNodeID:           edge.ToNodeID,
		Kind:               string(edge.Kind),
		Slot:               edge.Slot,
		Quantity:           edge.Quantity,
		Location:           edge.Location,
		ProductionRecordID: edge.ProductionRecordID,
		CreatedAt:          edge.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Edge{}, errs.Wrap(err, "insert genealogy edge")
	}
	return mapEdge(row), nil
}

func (r *GenealogyRepository) ListEdgesTo(ctx context.Context, nodeID uint64, kinds ...genealogy.EdgeKind) ([]ports.Edge, error) {
	return r.listEdges(ctx, "to_node_id", nodeID, kinds)
}

func (r *GenealogyRepository) ListEdgesFrom(ctx context.Context, nodeID uint64, kinds ...genealogy.EdgeKind) ([]ports.Edge, error) {
	return r.listEdges(ctx, "from_node_id", nodeID, kinds)
}

func (r *GenealogyRepository) listEdges(ctx context.Context, column string, nodeID uint64, kinds []genealogy.EdgeKind) ([]ports.Edge, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Where(column+" = ?", nodeID)
	if len(kinds) > 0 {
		names := make([]string, 0, len(kinds))
		for _, k := range kinds {
			names = append(names, string(k))
		}
		query = query.Where("kind IN ?", names)
	}

	var rows []model.GenealogyEdge
	if err := query.Order("id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query genealogy edges")
	}

	items := make([]ports.Edge, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapEdge(row))
	}
	return items, nil
}

func (r *GenealogyRepository) AllocateAlphaCode(ctx context.Context, plantID uint64) (string, error) {
	if !ports.InTx(ctx) {
		return "", errors.New("alpha code allocation requires a transaction")
	}
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return "", err
	}

	var plant model.Plant
	if err := forUpdate(ctx, db).Where("id = ?", plantID).Take(&plant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ports.ErrPlantNotFound
		}
		return "", errs.Wrap(err, "lock plant alpha counter")
	}

	n := plant.NextAlphaCode
	if n == 0 {
		n = 1
	}
	result := db.Model(&model.Plant{}).
		Where("id = ? AND next_alpha_code = ?", plantID, plant.NextAlphaCode).
		Update("next_alpha_code", n+1)
	if result.Error != nil {
		return "", errs.Wrap(result.Error, "advance plant alpha counter")
	}
	if result.RowsAffected != 1 {
		return "", ports.ErrAlphaCodeRace
	}

	return genealogy.FormatAlphaCode(plant.AlphaPrefix, n), nil
}

func (r *GenealogyRepository) CreateAssembly(ctx context.Context, assembly ports.Assembly) (ports.Assembly, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Assembly{}, err
	}

	row := model.Assembly{
		NodeID:           assembly.NodeID,
		PlantID:          assembly.PlantID,
		AlphaCode:        assembly.AlphaCode,
		TankSize:         assembly.TankSize,
		WorkCenterID:     assembly.WorkCenterID,
		AssetID:          assembly.AssetID,
		ProductionLineID: assembly.ProductionLineID,
		OperatorID:       assembly.OperatorID,
		CreatedAt:        assembly.CreatedAt,
		Active:           true,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Assembly{}, errs.Wrap(err, "insert assembly")
	}
	return mapAssembly(row), nil
}

func (r *GenealogyRepository) GetActiveAssembly(ctx context.Context, plantID uint64, alphaCode string) (ports.Assembly, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Assembly{}, err
	}

	query := db.Where("alpha_code = ? AND active = ?", genealogy.NormalizeAlphaCode(alphaCode), true)
	if plantID != 0 {
		query = query.Where("plant_id = ?", plantID)
	}

	var row model.Assembly
	if err := forUpdate(ctx, query).Order("id desc").Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Assembly{}, ports.ErrAssemblyNotFound
		}
		return ports.Assembly{}, errs.Wrap(err, "query assembly")
	}
	return mapAssembly(row), nil
}

func (r *GenealogyRepository) GetAssemblyByNode(ctx context.Context, nodeID uint64) (ports.Assembly, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Assembly{}, err
	}

	var row model.Assembly
	if err := db.Where("node_id = ?", nodeID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Assembly{}, ports.ErrAssemblyNotFound
		}
		return ports.Assembly{}, errs.Wrap(err, "query assembly by node")
	}
	return mapAssembly(row), nil
}

func (r *GenealogyRepository) CreateProductionRecord(ctx context.Context, record ports.ProductionRecord) (ports.ProductionRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.ProductionRecord{}, err
	}

	row := model.ProductionRecord{
		NodeID:           record.NodeID,
		WorkCenterID:     record.WorkCenterID,
		AssetID:          record.AssetID,
		ProductionLineID: record.ProductionLineID,
		OperatorID:       record.OperatorID,
		Action:           record.Action,
		Result:           record.Result,
		Notes:            record.Notes,
		CreatedAt:        record.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.ProductionRecord{}, errs.Wrap(err, "insert production record")
	}

	welders := uniqueIDs(record.WelderIDs)
	if len(welders) > 0 {
		rows := make([]model.ProductionRecordWelder, 0, len(welders))
		for _, id := range welders {
			rows = append(rows, model.ProductionRecordWelder{ProductionRecordID: row.ID, UserID: id})
		}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
			return ports.ProductionRecord{}, errs.Wrap(err, "insert production record welders")
		}
	}

	out := mapProductionRecord(row)
	out.WelderIDs = welders
	return out, nil
}

func (r *GenealogyRepository) ListProductionRecords(ctx context.Context, nodeIDs []uint64) ([]ports.ProductionRecord, error) {
	nodeIDs = uniqueIDs(nodeIDs)
	if len(nodeIDs) == 0 {
		return nil, nil
	}

	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.ProductionRecord
	if err := db.Where("node_id IN ?", nodeIDs).
		Order("created_at asc").
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query production records")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	recordIDs := make([]uint64, 0, len(rows))
	for _, row := range rows {
		recordIDs = append(recordIDs, row.ID)
	}
	var welderRows []model.ProductionRecordWelder
	if err := db.Where("production_record_id IN ?", recordIDs).
		Order("production_record_id asc").
		Order("user_id asc").
		Find(&welderRows).Error; err != nil {
		return nil, errs.Wrap(err, "query production record welders")
	}
	welders := make(map[uint64][]uint64, len(rows))
	for _, w := range welderRows {
		welders[w.ProductionRecordID] = append(welders[w.ProductionRecordID], w.UserID)
	}

	items := make([]ports.ProductionRecord, 0, len(rows))
	for _, row := range rows {
		item := mapProductionRecord(row)
		item.WelderIDs = welders[row.ID]
		items = append(items, item)
	}
	return items, nil
}

func mapNode(row model.Node) ports.Node {
	return ports.Node{
		ID:                row.ID,
		Serial:            row.Serial,
		Kind:              genealogy.NodeKind(row.Kind),
		PlantID:           row.PlantID,
		ProductID:         row.ProductID,
		MillVendorID:      row.MillVendorID,
		ProcessorVendorID: row.ProcessorVendorID,
		HeadVendorID:      row.HeadVendorID,
		HeatNumber:        row.HeatNumber,
		CoilNumber:        row.CoilNumber,
		LotNumber:         row.LotNumber,
		TankSize:          row.TankSize,
		LeftHeadChanged:   row.LeftHeadChanged,
		RightHeadChanged:  row.RightHeadChanged,
		ShellChanged:      row.ShellChanged,
		Obsolete:          row.Obsolete,
		ReplacedByID:      row.ReplacedByID,
		CreatedBy:         row.CreatedBy,
		CreatedAt:         row.CreatedAt,
		ModifiedBy:        row.ModifiedBy,
		ModifiedAt:        row.ModifiedAt,
	}
}

func mapEdge(row model.GenealogyEdge) ports.Edge {
	return ports.Edge{
		ID:                 row.ID,
		FromNodeID:         row.FromNodeID,
		ToNodeID:           row.ToNodeID,
		Kind:               genealogy.EdgeKind(row.Kind),
		Slot:               row.Slot,
		Quantity:           row.Quantity,
		Location:           row.Location,
		ProductionRecordID: row.ProductionRecordID,
		CreatedAt:          row.CreatedAt,
	}
}

func mapAssembly(row model.Assembly) ports.Assembly {
	return ports.Assembly{
		ID:               row.ID,
		NodeID:           row.NodeID,
		PlantID:          row.PlantID,
		AlphaCode:        row.AlphaCode,
		TankSize:         row.TankSize,
		WorkCenterID:     row.WorkCenterID,
		AssetID:          row.AssetID,
		ProductionLineID: row.ProductionLineID,
		OperatorID:       row.OperatorID,
		CreatedAt:        row.CreatedAt,
		Active:           row.Active,
	}
}

func mapProductionRecord(row model.ProductionRecord) ports.ProductionRecord {
	return ports.ProductionRecord{
		ID:               row.ID,
		NodeID:           row.NodeID,
		WorkCenterID:     row.WorkCenterID,
		AssetID:          row.AssetID,
		ProductionLineID: row.ProductionLineID,
		OperatorID:       row.OperatorID,
		Action:           row.Action,
		Result:           row.Result,
		Notes:            row.Notes,
		CreatedAt:        row.CreatedAt,
	}
}
