package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tanktrace/internal/domain/genealogy"
	"tanktrace/internal/infrastructure/persistence/gormstore/repository"
	"tanktrace/internal/infrastructure/persistence/gormstore/storetest"
	"tanktrace/internal/infrastructure/persistence/gormstore/uow"
	"tanktrace/internal/ports"
)

func TestGenealogyRepositoryNodesAndEdges(t *testing.T) {
	ctx := context.Background()
	db := storetest.OpenSeeded(t)
	repo := repository.NewGenealogyRepository(db)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	coil, err := repo.CreateNode(ctx, ports.Node{Serial: " C-100 ", Kind: genealogy.NodeCoil, PlantID: storetest.PlantID, CreatedBy: "op", CreatedAt: now})
	if err != nil {
		t.Fatalf("CreateNode() error = %v", err)
	}
	if coil.Serial != "C-100" {
		t.Fatalf("CreateNode() serial = %q, want trimmed", coil.Serial)
	}
	shell, err := repo.CreateNode(ctx, ports.Node{Serial: "S1", Kind: genealogy.NodeShell, PlantID: storetest.PlantID, CreatedBy: "op", CreatedAt: now})
	if err != nil {
		t.Fatalf("CreateNode() error = %v", err)
	}

	if _, err := repo.AppendEdge(ctx, ports.Edge{
		FromNodeID: &coil.ID,
		ToNodeID:   &shell.ID,
		Kind:       genealogy.EdgeProducedFrom,
		Quantity:   decimal.NewFromInt(1),
		CreatedAt:  now,
	}); err != nil {
		t.Fatalf("AppendEdge() error = %v", err)
	}

	into, err := repo.ListEdgesTo(ctx, shell.ID, genealogy.EdgeProducedFrom)
	if err != nil {
		t.Fatalf("ListEdgesTo() error = %v", err)
	}
	if len(into) != 1 || *into[0].FromNodeID != coil.ID {
		t.Fatalf("ListEdgesTo() = %+v, want edge from coil", into)
	}
	if !into[0].Quantity.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("edge quantity = %s, want 1", into[0].Quantity)
	}

	none, err := repo.ListEdgesTo(ctx, shell.ID, genealogy.EdgeComponentOf)
	if err != nil {
		t.Fatalf("ListEdgesTo() error = %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("ListEdgesTo(component-of) = %+v, want empty", none)
	}

	out, err := repo.ListEdgesFrom(ctx, coil.ID)
	if err != nil {
		t.Fatalf("ListEdgesFrom() error = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("ListEdgesFrom() len = %d, want 1", len(out))
	}

	if _, err := repo.GetNode(ctx, 999); !errors.Is(err, ports.ErrNodeNotFound) {
		t.Fatalf("GetNode(missing) error = %v, want ErrNodeNotFound", err)
	}

	nodes, err := repo.GetNodes(ctx, []uint64{coil.ID, shell.ID, coil.ID, 0})
	if err != nil {
		t.Fatalf("GetNodes() error = %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("GetNodes() len = %d, want 2", len(nodes))
	}
}

func TestGenealogyRepositoryFindBySerialNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := storetest.OpenSeeded(t)
	repo := repository.NewGenealogyRepository(db)
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	older, err := repo.CreateNode(ctx, ports.Node{Serial: "X1", Kind: genealogy.NodeShell, PlantID: storetest.PlantID, CreatedBy: "op", CreatedAt: base})
	if err != nil {
		t.Fatalf("CreateNode() error = %v", err)
	}
	newer, err := repo.CreateNode(ctx, ports.Node{Serial: "X1", Kind: genealogy.NodeShell, PlantID: storetest.PlantID, CreatedBy: "op", CreatedAt: base.Add(time.Hour)})
	if err != nil {
		t.Fatalf("CreateNode() error = %v", err)
	}
	if _, err := repo.CreateNode(ctx, ports.Node{Serial: "X1", Kind: genealogy.NodeShell, PlantID: storetest.OtherPlantID, CreatedBy: "op", CreatedAt: base.Add(2 * time.Hour)}); err != nil {
		t.Fatalf("CreateNode() error = %v", err)
	}

	scoped, err := repo.FindNodesBySerial(ctx, "X1", storetest.PlantID)
	if err != nil {
		t.Fatalf("FindNodesBySerial() error = %v", err)
	}
	if len(scoped) != 2 || scoped[0].ID != newer.ID || scoped[1].ID != older.ID {
		t.Fatalf("FindNodesBySerial(plant) = %+v, want newer then older", scoped)
	}

	all, err := repo.FindNodesBySerial(ctx, "X1", 0)
	if err != nil {
		t.Fatalf("FindNodesBySerial() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("FindNodesBySerial(all) len = %d, want 3", len(all))
	}
}

func TestGenealogyRepositorySetReplacedByOnce(t *testing.T) {
	ctx := context.Background()
	db := storetest.OpenSeeded(t)
	repo := repository.NewGenealogyRepository(db)
	now := time.Now().UTC()

	a, _ := repo.CreateNode(ctx, ports.Node{Serial: "S1", Kind: genealogy.NodeShell, PlantID: storetest.PlantID, CreatedBy: "op", CreatedAt: now})
	b, _ := repo.CreateNode(ctx, ports.Node{Serial: "S3", Kind: genealogy.NodeShell, PlantID: storetest.PlantID, CreatedBy: "op", CreatedAt: now})
	c, _ := repo.CreateNode(ctx, ports.Node{Serial: "S4", Kind: genealogy.NodeShell, PlantID: storetest.PlantID, CreatedBy: "op", CreatedAt: now})

	if err := repo.SetReplacedBy(ctx, a.ID, b.ID, "lead", now); err != nil {
		t.Fatalf("SetReplacedBy() error = %v", err)
	}
	if err := repo.SetReplacedBy(ctx, a.ID, c.ID, "lead", now); !errors.Is(err, ports.ErrNodeReplaced) {
		t.Fatalf("SetReplacedBy(second) error = %v, want ErrNodeReplaced", err)
	}
	if err := repo.SetReplacedBy(ctx, 999, c.ID, "lead", now); !errors.Is(err, ports.ErrNodeNotFound) {
		t.Fatalf("SetReplacedBy(missing) error = %v, want ErrNodeNotFound", err)
	}

	got, err := repo.GetNode(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetNode() error = %v", err)
	}
	if got.ReplacedByID == nil || *got.ReplacedByID != b.ID || !got.Retired() {
		t.Fatalf("node = %+v, want replaced by %d", got, b.ID)
	}
	if got.ModifiedBy != "lead" {
		t.Fatalf("ModifiedBy = %q, want lead", got.ModifiedBy)
	}
}

func TestGenealogyRepositoryAllocateAlphaCode(t *testing.T) {
	ctx := context.Background()
	db := storetest.OpenSeeded(t)
	repo := repository.NewGenealogyRepository(db)
	unit := uow.NewUnitOfWork(db)

	if _, err := repo.AllocateAlphaCode(ctx, storetest.PlantID); err == nil {
		t.Fatalf("AllocateAlphaCode() outside tx error = nil, want error")
	}

	var codes []string
	for i := 0; i < 3; i++ {
		err := unit.WithTx(ctx, func(txCtx context.Context) error {
			code, err := repo.AllocateAlphaCode(txCtx, storetest.PlantID)
			if err != nil {
				return err
			}
			codes = append(codes, code)
			return nil
		})
		if err != nil {
			t.Fatalf("AllocateAlphaCode() error = %v", err)
		}
	}
	want := []string{"A1", "A2", "A3"}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("codes = %v, want %v", codes, want)
		}
	}

	rollback := errors.New("rollback")
	err := unit.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := repo.AllocateAlphaCode(txCtx, storetest.PlantID); err != nil {
			return err
		}
		return rollback
	})
	if !errors.Is(err, rollback) {
		t.Fatalf("WithTx() error = %v, want rollback", err)
	}

	err = unit.WithTx(ctx, func(txCtx context.Context) error {
		code, err := repo.AllocateAlphaCode(txCtx, storetest.OtherPlantID)
		if err != nil {
			return err
		}
		if code != "B1" {
			t.Fatalf("other plant code = %q, want B1", code)
		}
		code, err = repo.AllocateAlphaCode(txCtx, storetest.PlantID)
		if err != nil {
			return err
		}
		if code != "A4" {
			t.Fatalf("code after rollback = %q, want A4", code)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}
}

func TestGenealogyRepositoryAssembliesAndRecords(t *testing.T) {
	ctx := context.Background()
	db := storetest.OpenSeeded(t)
	repo := repository.NewGenealogyRepository(db)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	node, _ := repo.CreateNode(ctx, ports.Node{Serial: "A1", Kind: genealogy.NodeAssembly, PlantID: storetest.PlantID, CreatedBy: "op", CreatedAt: now})
	asm, err := repo.CreateAssembly(ctx, ports.Assembly{NodeID: node.ID, PlantID: storetest.PlantID, AlphaCode: "A1", TankSize: 120, WorkCenterID: storetest.AssemblyWC, CreatedAt: now})
	if err != nil {
		t.Fatalf("CreateAssembly() error = %v", err)
	}
	if !asm.Active {
		t.Fatalf("assembly active = false, want true")
	}

	got, err := repo.GetActiveAssembly(ctx, storetest.PlantID, " a1 ")
	if err != nil {
		t.Fatalf("GetActiveAssembly() error = %v", err)
	}
	if got.ID != asm.ID {
		t.Fatalf("GetActiveAssembly() id = %d, want %d", got.ID, asm.ID)
	}
	if _, err := repo.GetActiveAssembly(ctx, storetest.OtherPlantID, "A1"); !errors.Is(err, ports.ErrAssemblyNotFound) {
		t.Fatalf("GetActiveAssembly(other plant) error = %v, want ErrAssemblyNotFound", err)
	}
	if _, err := repo.GetAssemblyByNode(ctx, node.ID); err != nil {
		t.Fatalf("GetAssemblyByNode() error = %v", err)
	}

	first, err := repo.CreateProductionRecord(ctx, ports.ProductionRecord{
		NodeID:       node.ID,
		WorkCenterID: storetest.AssemblyWC,
		Action:       genealogy.ActionAssembled,
		WelderIDs:    []uint64{storetest.WelderID, storetest.WelderID, storetest.SecondWelderID},
		CreatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateProductionRecord() error = %v", err)
	}
	if len(first.WelderIDs) != 2 {
		t.Fatalf("welders = %v, want deduplicated pair", first.WelderIDs)
	}
	if _, err := repo.CreateProductionRecord(ctx, ports.ProductionRecord{
		NodeID:       node.ID,
		WorkCenterID: storetest.AssemblyWC,
		Action:       genealogy.ActionCorrected,
		CreatedAt:    now.Add(time.Minute),
	}); err != nil {
		t.Fatalf("CreateProductionRecord() error = %v", err)
	}

	records, err := repo.ListProductionRecords(ctx, []uint64{node.ID})
	if err != nil {
		t.Fatalf("ListProductionRecords() error = %v", err)
	}
	if len(records) != 2 || records[0].Action != genealogy.ActionAssembled || records[1].Action != genealogy.ActionCorrected {
		t.Fatalf("records = %+v, want assembled then corrected", records)
	}
	if len(records[0].WelderIDs) != 2 || len(records[1].WelderIDs) != 0 {
		t.Fatalf("welders = %v / %v", records[0].WelderIDs, records[1].WelderIDs)
	}

	if err := repo.MarkSeamChanges(ctx, node.ID, ports.SeamFlags{Shell: true}, "lead", now); err != nil {
		t.Fatalf("MarkSeamChanges() error = %v", err)
	}
	flagged, _ := repo.GetNode(ctx, node.ID)
	if !flagged.ShellChanged || flagged.LeftHeadChanged || flagged.RightHeadChanged {
		t.Fatalf("seam flags = %+v, want shell only", flagged)
	}
}

func TestGenealogyRepositoryLockNodes(t *testing.T) {
	ctx := context.Background()
	db := storetest.OpenSeeded(t)
	repo := repository.NewGenealogyRepository(db)
	unit := uow.NewUnitOfWork(db)
	now := time.Now().UTC()

	a, err := repo.CreateNode(ctx, ports.Node{Serial: "S1", Kind: genealogy.NodeShell, PlantID: storetest.PlantID, CreatedBy: "op", CreatedAt: now})
	if err != nil {
		t.Fatalf("CreateNode() error = %v", err)
	}
	b, err := repo.CreateNode(ctx, ports.Node{Serial: "S2", Kind: genealogy.NodeShell, PlantID: storetest.PlantID, CreatedBy: "op", CreatedAt: now})
	if err != nil {
		t.Fatalf("CreateNode() error = %v", err)
	}

	err = unit.WithTx(ctx, func(txCtx context.Context) error {
		locked, err := repo.LockNodes(txCtx, []uint64{b.ID, a.ID, b.ID, 999})
		if err != nil {
			return err
		}
		if len(locked) != 2 || locked[a.ID].Serial != "S1" || locked[b.ID].Serial != "S2" {
			t.Fatalf("LockNodes() = %+v, want S1 and S2", locked)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}

	empty, err := repo.LockNodes(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("LockNodes(nil) = %v, %v", empty, err)
	}
}
