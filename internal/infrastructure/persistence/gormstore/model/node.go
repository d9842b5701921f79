package model

import "time"

type Node struct {
	ID                uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Serial            string    `gorm:"column:serial;type:varchar(64);not null;index:idx_nodes_plant_serial,priority:2"`
	Kind              string    `gorm:"column:kind;type:varchar(16);not null"`
	PlantID           uint64    `gorm:"column:plant_id;not null;index:idx_nodes_plant_serial,priority:1"`
	ProductID         *uint64   `gorm:"column:product_id"`
	MillVendorID      *uint64   `gorm:"column:mill_vendor_id"`
	ProcessorVendorID *uint64   `gorm:"column:processor_vendor_id"`
	HeadVendorID      *uint64   `gorm:"column:head_vendor_id"`
	HeatNumber        string    `gorm:"column:heat_number;type:varchar(64);not null;default:''"`
	CoilNumber        string    `gorm:"column:coil_number;type:varchar(64);not null;default:''"`
	LotNumber         string    `gorm:"column:lot_number;type:varchar(64);not null;default:''"`
	TankSize          int       `gorm:"column:tank_size;not null;default:0"`
	LeftHeadChanged   bool      `gorm:"column:left_head_changed;not null;default:false"`
	RightHeadChanged  bool      `gorm:"column:right_head_changed;not null;default:false"`
	ShellChanged      bool      `gorm:"column:shell_changed;not null;default:false"`
	Obsolete          bool      `gorm:"column:obsolete;not null;default:false"`
	ReplacedByID      *uint64   `gorm:"column:replaced_by_id;index"`
	CreatedBy         string    `gorm:"column:created_by;type:text;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;not null;index:idx_nodes_plant_serial,priority:3"`
	ModifiedBy        string    `gorm:"column:modified_by;type:text;not null"`
	ModifiedAt        time.Time `gorm:"column:modified_at;not null"`
}

func (Node) TableName() string {
	return "nodes"
}
