package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type QueueItem struct {
	ID                uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	WorkCenterID      uint64          `gorm:"column:work_center_id;not null;uniqueIndex:uq_queue_items_wc_position,priority:1"`
	Position          int64           `gorm:"column:position;not null;uniqueIndex:uq_queue_items_wc_position,priority:2"`
	Status            string          `gorm:"column:status;type:varchar(16);not null;index"`
	ProductID         *uint64         `gorm:"column:product_id"`
	MillVendorID      *uint64         `gorm:"column:mill_vendor_id"`
	ProcessorVendorID *uint64         `gorm:"column:processor_vendor_id"`
	HeadVendorID      *uint64         `gorm:"column:head_vendor_id"`
	HeatNumber        string          `gorm:"column:heat_number;type:varchar(64);not null;default:''"`
	CoilNumber        string          `gorm:"column:coil_number;type:varchar(64);not null;default:''"`
	LotNumber         string          `gorm:"column:lot_number;type:varchar(64);not null;default:''"`
	CardCode          string          `gorm:"column:card_code;type:varchar(32);not null;default:''"`
	Description       string          `gorm:"column:description;type:text;not null;default:''"`
	Quantity          decimal.Decimal `gorm:"column:quantity;type:decimal(20,4);not null"`
	QuantityCompleted decimal.Decimal `gorm:"column:quantity_completed;type:decimal(20,4);not null"`
	Retired           bool            `gorm:"column:retired;not null;default:false"`
	NodeID            *uint64         `gorm:"column:node_id;index"`
	CreatedBy         string          `gorm:"column:created_by;type:text;not null"`
	CreatedAt         time.Time       `gorm:"column:created_at;not null"`
	ConsumedAt        *time.Time      `gorm:"column:consumed_at"`
}

func (QueueItem) TableName() string {
	return "queue_items"
}

type QueueTransaction struct {
	ID           uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	WorkCenterID uint64    `gorm:"column:work_center_id;not null;index"`
	Action       string    `gorm:"column:action;type:varchar(16);not null"`
	Summary      string    `gorm:"column:summary;type:text;not null"`
	Operator     string    `gorm:"column:operator;type:text;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
}

func (QueueTransaction) TableName() string {
	return "queue_transactions"
}
