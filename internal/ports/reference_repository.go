package ports

import (
	"context"
	"errors"

	"tanktrace/internal/domain/queue"
)

var (
	ErrPlantNotFound          = errors.New("plant not found")
	ErrWorkCenterNotFound     = errors.New("work center not found")
	ErrProductionLineNotFound = errors.New("production line not found")
	ErrAssetNotFound          = errors.New("asset not found")
	ErrProductNotFound        = errors.New("product not found")
	ErrVendorNotFound         = errors.New("vendor not found")
	ErrUserNotFound           = errors.New("user not found")
)

type Plant struct {
	ID            uint64
	Code          string
	Name          string
	AlphaPrefix   string
	NextAlphaCode uint64
}

type ProductionLine struct {
	ID      uint64
	PlantID uint64
	Name    string
}

type WorkCenter struct {
	ID               uint64
	PlantID          uint64
	ProductionLineID *uint64
	Name             string
	QueueType        queue.Type
}

type Asset struct {
	ID           uint64
	WorkCenterID uint64
	Name         string
}

type Product struct {
	ID          uint64
	PartNumber  string
	Description string
	Kind        string
	TankSize    int
	ShellSize   string
}

// Vendor roles.
const (
	VendorRoleMill      = "mill"
	VendorRoleProcessor = "processor"
	VendorRoleHead      = "head"
)

type Vendor struct {
	ID       uint64
	Name     string
	Role     string
	Tracking queue.Tracking
}

type User struct {
	ID    uint64
	Name  string
	Badge string
}

// ReferenceRepository reads data owned by other subsystems.
type ReferenceRepository interface {
	GetPlant(ctx context.Context, id uint64) (Plant, error)
	GetWorkCenter(ctx context.Context, id uint64) (WorkCenter, error)
	GetProductionLine(ctx context.Context, id uint64) (ProductionLine, error)
	GetAsset(ctx context.Context, id uint64) (Asset, error)
	GetProduct(ctx context.Context, id uint64) (Product, error)
	GetVendor(ctx context.Context, id uint64) (Vendor, error)
	GetUser(ctx context.Context, id uint64) (User, error)
	ProductsByID(ctx context.Context, ids []uint64) (map[uint64]Product, error)
	VendorsByID(ctx context.Context, ids []uint64) (map[uint64]Vendor, error)
	UsersByID(ctx context.Context, ids []uint64) (map[uint64]User, error)
	WorkCentersByID(ctx context.Context, ids []uint64) (map[uint64]WorkCenter, error)
	CountDefects(ctx context.Context, nodeIDs []uint64) (map[uint64]int, error)
	CountAnnotations(ctx context.Context, nodeIDs []uint64) (map[uint64]int, error)
}

// ReferenceData is a bulk load of reference rows keyed by their ids.
type ReferenceData struct {
	Plants          []Plant
	ProductionLines []ProductionLine
	WorkCenters     []WorkCenter
	Assets          []Asset
	Products        []Product
	Vendors         []Vendor
	Users           []User
}

// ReferenceSeeder upserts reference rows; used by the seed command and tests.
type ReferenceSeeder interface {
	Seed(ctx context.Context, data ReferenceData) error
}
