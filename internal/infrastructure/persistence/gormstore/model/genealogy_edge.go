package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// GenealogyEdge rows are insert-only.
type GenealogyEdge struct {
	ID                 uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	FromNodeID         *uint64         `gorm:"column:from_node_id;index"`
	ToNodeID           *uint64         `gorm:"column:to_node_id;index"`
	Kind               string          `gorm:"column:kind;type:varchar(16);not null"`
	Slot               string          `gorm:"column:slot;type:varchar(16);not null;default:''"`
	Quantity           decimal.Decimal `gorm:"column:quantity;type:decimal(20,4);not null"`
	Location           string          `gorm:"column:location;type:text;not null;default:''"`
	ProductionRecordID *uint64         `gorm:"column:production_record_id;index"`
	CreatedAt          time.Time       `gorm:"column:created_at;not null"`
}

func (GenealogyEdge) TableName() string {
	return "genealogy_edges"
}
