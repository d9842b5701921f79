package model

import "time"

type Assembly struct {
	ID               uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	NodeID           uint64    `gorm:"column:node_id;not null;uniqueIndex"`
	PlantID          uint64    `gorm:"column:plant_id;not null;uniqueIndex:uq_assemblies_plant_alpha,priority:1"`
	AlphaCode        string    `gorm:"column:alpha_code;type:varchar(32);not null;uniqueIndex:uq_assemblies_plant_alpha,priority:2"`
	TankSize         int       `gorm:"column:tank_size;not null"`
	WorkCenterID     uint64    `gorm:"column:work_center_id;not null"`
	AssetID          *uint64   `gorm:"column:asset_id"`
	ProductionLineID *uint64   `gorm:"column:production_line_id"`
	OperatorID       *uint64   `gorm:"column:operator_id"`
	CreatedAt        time.Time `gorm:"column:created_at;not null"`
	Active           bool      `gorm:"column:active;not null;default:true"`
}

func (Assembly) TableName() string {
	return "assemblies"
}

type ProductionRecord struct {
	ID               uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	NodeID           uint64    `gorm:"column:node_id;not null;index"`
	WorkCenterID     uint64    `gorm:"column:work_center_id;not null"`
	AssetID          *uint64   `gorm:"column:asset_id"`
	ProductionLineID *uint64   `gorm:"column:production_line_id"`
	OperatorID       *uint64   `gorm:"column:operator_id"`
	Action           string    `gorm:"column:action;type:varchar(32);not null"`
	Result           string    `gorm:"column:result;type:varchar(32);not null;default:''"`
	Notes            string    `gorm:"column:notes;type:text;not null;default:''"`
	CreatedAt        time.Time `gorm:"column:created_at;not null;index"`
}

func (ProductionRecord) TableName() string {
	return "production_records"
}

type ProductionRecordWelder struct {
	ProductionRecordID uint64 `gorm:"column:production_record_id;primaryKey"`
	UserID             uint64 `gorm:"column:user_id;primaryKey"`
}

func (ProductionRecordWelder) TableName() string {
	return "production_record_welders"
}
