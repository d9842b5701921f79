// Package storetest opens migrated SQLite databases for tests and seeds a
// small plant layout shared by the repository and usecase suites.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tanktrace/internal/bootstrap/database"
	"tanktrace/internal/domain/queue"
	"tanktrace/internal/infrastructure/persistence/gormstore/model"
	"tanktrace/internal/infrastructure/persistence/gormstore/repository"
	"tanktrace/internal/ports"
)

// Fixture ids.
const (
	PlantID          uint64 = 1
	OtherPlantID     uint64 = 2
	LineID           uint64 = 1
	RollsWC          uint64 = 10
	FitUpWC          uint64 = 20
	AssemblyWC       uint64 = 30
	AssetID          uint64 = 1
	ShellProductID   uint64 = 100
	HeadProductID    uint64 = 200
	MillVendorID     uint64 = 1
	ProcessorID      uint64 = 2
	LotHeadVendorID  uint64 = 3
	HeatHeadVendorID uint64 = 4
	OperatorID       uint64 = 1
	WelderID         uint64 = 2
	SecondWelderID   uint64 = 3
)

// Open returns a migrated database in t.TempDir().
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "tanktrace.sqlite")
	db, err := gorm.Open(gormsqlite.Open(database.SQLiteDSN(dsn)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

// OpenSeeded returns a migrated database loaded with Reference().
func OpenSeeded(t *testing.T) *gorm.DB {
	t.Helper()

	db := Open(t)
	if err := repository.NewReferenceRepository(db).Seed(context.Background(), Reference()); err != nil {
		t.Fatalf("seed reference data: %v", err)
	}
	return db
}

// Reference is the plant layout used across tests.
func Reference() ports.ReferenceData {
	lineID := LineID
	return ports.ReferenceData{
		Plants: []ports.Plant{
			{ID: PlantID, Code: "P1", Name: "Plant One", AlphaPrefix: "A", NextAlphaCode: 1},
			{ID: OtherPlantID, Code: "P2", Name: "Plant Two", AlphaPrefix: "B", NextAlphaCode: 1},
		},
		ProductionLines: []ports.ProductionLine{
			{ID: LineID, PlantID: PlantID, Name: "Line 1"},
		},
		WorkCenters: []ports.WorkCenter{
			{ID: RollsWC, PlantID: PlantID, ProductionLineID: &lineID, Name: "Rolls", QueueType: queue.TypeRolls},
			{ID: FitUpWC, PlantID: PlantID, ProductionLineID: &lineID, Name: "Fit-Up", QueueType: queue.TypeFitUp},
			{ID: AssemblyWC, PlantID: PlantID, ProductionLineID: &lineID, Name: "Tack", QueueType: queue.TypeNone},
		},
		Assets: []ports.Asset{
			{ID: AssetID, WorkCenterID: AssemblyWC, Name: "Tack Station 1"},
		},
		Products: []ports.Product{
			{ID: ShellProductID, PartNumber: "PL-120", Description: "120 gal shell plate", Kind: "plate", TankSize: 120, ShellSize: "60in"},
			{ID: HeadProductID, PartNumber: "HD-24", Description: "24in head", Kind: "head", TankSize: 120},
		},
		Vendors: []ports.Vendor{
			{ID: MillVendorID, Name: "North Mill", Role: ports.VendorRoleMill},
			{ID: ProcessorID, Name: "Coil Processing Co", Role: ports.VendorRoleProcessor},
			{ID: LotHeadVendorID, Name: "Lot Heads", Role: ports.VendorRoleHead, Tracking: queue.TrackingLot},
			{ID: HeatHeadVendorID, Name: "Heat Heads", Role: ports.VendorRoleHead, Tracking: queue.TrackingHeat},
		},
		Users: []ports.User{
			{ID: OperatorID, Name: "Operator One", Badge: "1001"},
			{ID: WelderID, Name: "Welder One", Badge: "2001"},
			{ID: SecondWelderID, Name: "Welder Two", Badge: "2002"},
		},
	}
}
