package model

import "time"

type Plant struct {
	ID            uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	Code          string `gorm:"column:code;type:varchar(32);not null;uniqueIndex"`
	Name          string `gorm:"column:name;type:text;not null"`
	AlphaPrefix   string `gorm:"column:alpha_prefix;type:varchar(8);not null;default:A"`
	NextAlphaCode uint64 `gorm:"column:next_alpha_code;not null;default:1"`
}

func (Plant) TableName() string {
	return "plants"
}

type ProductionLine struct {
	ID      uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	PlantID uint64 `gorm:"column:plant_id;not null;index"`
	Name    string `gorm:"column:name;type:text;not null"`
}

func (ProductionLine) TableName() string {
	return "production_lines"
}

type WorkCenter struct {
	ID                uint64  `gorm:"column:id;primaryKey;autoIncrement"`
	PlantID           uint64  `gorm:"column:plant_id;not null;index"`
	ProductionLineID  *uint64 `gorm:"column:production_line_id"`
	Name              string  `gorm:"column:name;type:text;not null"`
	QueueType         string  `gorm:"column:queue_type;type:varchar(16);not null;default:''"`
	// LastQueuePosition is the highest position ever handed out here.
	LastQueuePosition int64   `gorm:"column:last_queue_position;not null;default:0"`
}

func (WorkCenter) TableName() string {
	return "work_centers"
}

type Asset struct {
	ID           uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	WorkCenterID uint64 `gorm:"column:work_center_id;not null;index"`
	Name         string `gorm:"column:name;type:text;not null"`
}

func (Asset) TableName() string {
	return "assets"
}

type Product struct {
	ID          uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	PartNumber  string `gorm:"column:part_number;type:varchar(64);not null;uniqueIndex"`
	Description string `gorm:"column:description;type:text;not null;default:''"`
	Kind        string `gorm:"column:kind;type:varchar(16);not null;default:''"`
	TankSize    int    `gorm:"column:tank_size;not null;default:0"`
	ShellSize   string `gorm:"column:shell_size;type:varchar(32);not null;default:''"`
}

func (Product) TableName() string {
	return "products"
}

type Vendor struct {
	ID       uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	Name     string `gorm:"column:name;type:text;not null"`
	Role     string `gorm:"column:role;type:varchar(16);not null"`
	Tracking string `gorm:"column:tracking;type:varchar(8);not null;default:''"`
}

func (Vendor) TableName() string {
	return "vendors"
}

type User struct {
	ID    uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	Name  string `gorm:"column:name;type:text;not null"`
	Badge string `gorm:"column:badge;type:varchar(32);not null;default:''"`
}

func (User) TableName() string {
	return "users"
}

// Defect and Annotation are owned by the quality subsystem; the core only
// counts them per node.
type Defect struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	NodeID    uint64    `gorm:"column:node_id;not null;index"`
	Code      string    `gorm:"column:code;type:varchar(32);not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (Defect) TableName() string {
	return "defects"
}

type Annotation struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	NodeID    uint64    `gorm:"column:node_id;not null;index"`
	Body      string    `gorm:"column:body;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (Annotation) TableName() string {
	return "annotations"
}
