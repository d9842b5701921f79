package identity

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tanktrace/internal/domain/genealogy"
	"tanktrace/internal/errs"
	"tanktrace/internal/infrastructure/persistence/gormstore/model"
	"tanktrace/internal/infrastructure/persistence/gormstore/repository"
	"tanktrace/internal/infrastructure/persistence/gormstore/storetest"
	"tanktrace/internal/ports"
)

func newShell(t *testing.T, repo *repository.GenealogyRepository, serial string, plantID uint64, at time.Time) ports.Node {
	t.Helper()
	n, err := repo.CreateNode(context.Background(), ports.Node{
		Serial:    serial,
		Kind:      genealogy.NodeShell,
		PlantID:   plantID,
		TankSize:  120,
		CreatedBy: "test",
		CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("CreateNode() error = %v", err)
	}
	return n
}

func TestResolveNodePrefersCurrent(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewGenealogyRepository(storetest.OpenSeeded(t))
	r := NewResolver(repo)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	live := newShell(t, repo, "S1", storetest.PlantID, base)
	newer := newShell(t, repo, "S1", storetest.PlantID, base.Add(time.Hour))
	other := newShell(t, repo, "S9", storetest.PlantID, base)
	if err := repo.SetReplacedBy(ctx, newer.ID, other.ID, "test", base); err != nil {
		t.Fatalf("SetReplacedBy() error = %v", err)
	}

	got, err := r.ResolveNode(ctx, " S1 ", storetest.PlantID)
	if err != nil {
		t.Fatalf("ResolveNode() error = %v", err)
	}
	if got.ID != live.ID {
		t.Fatalf("ResolveNode() = %d, want non-replaced %d", got.ID, live.ID)
	}

	if _, err := r.ResolveNode(ctx, "S1", storetest.OtherPlantID); !errs.IsNotFound(err) {
		t.Fatalf("ResolveNode(other plant) error = %v, want not found", err)
	}
	if _, err := r.ResolveNode(ctx, "  ", 0); !errs.IsValidation(err) {
		t.Fatalf("ResolveNode(blank) error = %v, want validation", err)
	}
}

func TestResolveNodeAllReplacedReturnsNewest(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewGenealogyRepository(storetest.OpenSeeded(t))
	r := NewResolver(repo)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	a := newShell(t, repo, "S1", storetest.PlantID, base)
	b := newShell(t, repo, "S1", storetest.PlantID, base.Add(time.Hour))
	c := newShell(t, repo, "S3", storetest.PlantID, base)
	_ = repo.SetReplacedBy(ctx, a.ID, c.ID, "test", base)
	_ = repo.SetReplacedBy(ctx, b.ID, c.ID, "test", base)

	got, err := r.ResolveNode(ctx, "S1", 0)
	if err != nil {
		t.Fatalf("ResolveNode() error = %v", err)
	}
	if got.ID != b.ID {
		t.Fatalf("ResolveNode() = %d, want newest %d", got.ID, b.ID)
	}
}

func TestResolveNodePrefersUnreplacedObsolete(t *testing.T) {
	ctx := context.Background()
	db := storetest.OpenSeeded(t)
	repo := repository.NewGenealogyRepository(db)
	r := NewResolver(repo)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	older := newShell(t, repo, "S1", storetest.PlantID, base)
	newer := newShell(t, repo, "S1", storetest.PlantID, base.Add(time.Hour))
	other := newShell(t, repo, "S4", storetest.PlantID, base)
	if err := repo.SetReplacedBy(ctx, newer.ID, other.ID, "test", base); err != nil {
		t.Fatalf("SetReplacedBy() error = %v", err)
	}
	if err := db.Model(&model.Node{}).Where("id = ?", older.ID).Update("obsolete", true).Error; err != nil {
		t.Fatalf("mark obsolete: %v", err)
	}

	got, err := r.ResolveNode(ctx, "S1", storetest.PlantID)
	if err != nil {
		t.Fatalf("ResolveNode() error = %v", err)
	}
	if got.ID != older.ID || !got.Obsolete {
		t.Fatalf("ResolveNode() = %+v, want obsolete unreplaced %d", got, older.ID)
	}
}

func TestCurrentOfFollowsChain(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewGenealogyRepository(storetest.OpenSeeded(t))
	r := NewResolver(repo)
	now := time.Now().UTC()

	s1 := newShell(t, repo, "S1", storetest.PlantID, now)
	s3 := newShell(t, repo, "S3", storetest.PlantID, now)
	s4 := newShell(t, repo, "S4", storetest.PlantID, now)
	_ = repo.SetReplacedBy(ctx, s1.ID, s3.ID, "test", now)
	_ = repo.SetReplacedBy(ctx, s3.ID, s4.ID, "test", now)

	s1, _ = repo.GetNode(ctx, s1.ID)
	got, err := r.CurrentOf(ctx, s1)
	if err != nil {
		t.Fatalf("CurrentOf() error = %v", err)
	}
	if got.ID != s4.ID {
		t.Fatalf("CurrentOf() = %s, want S4", got.Serial)
	}
}

func TestCurrentOfStopsOnCycle(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewGenealogyRepository(storetest.OpenSeeded(t))
	r := NewResolver(repo)
	now := time.Now().UTC()

	a := newShell(t, repo, "SA", storetest.PlantID, now)
	b := newShell(t, repo, "SB", storetest.PlantID, now)
	_ = repo.SetReplacedBy(ctx, a.ID, b.ID, "test", now)
	_ = repo.SetReplacedBy(ctx, b.ID, a.ID, "test", now)

	a, _ = repo.GetNode(ctx, a.ID)
	got, err := r.CurrentOf(ctx, a)
	if err != nil {
		t.Fatalf("CurrentOf() error = %v", err)
	}
	if got.ID != b.ID {
		t.Fatalf("CurrentOf() = %s, want walk to stop at SB", got.Serial)
	}
}

func TestBindingsAndContainingAssembly(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewGenealogyRepository(storetest.OpenSeeded(t))
	r := NewResolver(repo)
	now := time.Now().UTC()

	s1 := newShell(t, repo, "S1", storetest.PlantID, now)
	s3 := newShell(t, repo, "S3", storetest.PlantID, now)
	asmNode, _ := repo.CreateNode(ctx, ports.Node{Serial: "A1", Kind: genealogy.NodeAssembly, PlantID: storetest.PlantID, CreatedBy: "test", CreatedAt: now})
	if _, err := repo.CreateAssembly(ctx, ports.Assembly{NodeID: asmNode.ID, PlantID: storetest.PlantID, AlphaCode: "A1", TankSize: 120, WorkCenterID: storetest.AssemblyWC, CreatedAt: now}); err != nil {
		t.Fatalf("CreateAssembly() error = %v", err)
	}

	bind := func(n ports.Node, slot string) {
		if _, err := repo.AppendEdge(ctx, ports.Edge{FromNodeID: &n.ID, ToNodeID: &asmNode.ID, Kind: genealogy.EdgeComponentOf, Slot: slot, Quantity: decimal.NewFromInt(1), CreatedAt: now}); err != nil {
			t.Fatalf("AppendEdge() error = %v", err)
		}
	}
	bind(s1, genealogy.ShellSlot(1))

	asm, found, err := r.ContainingAssembly(ctx, s1.ID)
	if err != nil || !found || asm.AlphaCode != "A1" {
		t.Fatalf("ContainingAssembly(S1) = %+v, %v, %v", asm, found, err)
	}

	bind(s3, genealogy.ShellSlot(1))

	if _, found, _ := r.ContainingAssembly(ctx, s1.ID); found {
		t.Fatalf("ContainingAssembly(S1) found after rebinding, want not found")
	}
	bindings, err := r.Bindings(ctx, asmNode.ID)
	if err != nil {
		t.Fatalf("Bindings() error = %v", err)
	}
	if len(bindings) != 1 || bindings[0].Node.ID != s3.ID {
		t.Fatalf("Bindings() = %+v, want S3 in shell-1", bindings)
	}
}
