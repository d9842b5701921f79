package traceability

import (
	"bytes"
	"context"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tanktrace/internal/domain/genealogy"
	domainqueue "tanktrace/internal/domain/queue"
	"tanktrace/internal/errs"
	"tanktrace/internal/infrastructure/persistence/gormstore/model"
	"tanktrace/internal/infrastructure/persistence/gormstore/repository"
	"tanktrace/internal/infrastructure/persistence/gormstore/storetest"
	"tanktrace/internal/infrastructure/persistence/gormstore/uow"
	"tanktrace/internal/ports"
	"tanktrace/internal/usecase/assembly"
	"tanktrace/internal/usecase/identity"
	queueuc "tanktrace/internal/usecase/queue"
)

type captureRenderer struct {
	got Lookup
}

func (r *captureRenderer) RenderLookup(w io.Writer, lookup Lookup) error {
	r.got = lookup
	_, err := io.WriteString(w, lookup.Serial)
	return err
}

type harness struct {
	db       *gorm.DB
	svc      *Service
	queue    *queueuc.Service
	assembly *assembly.Service
	gen      *repository.GenealogyRepository
	renderer *captureRenderer
}

func newHarness(t *testing.T, maxNodes int) harness {
	t.Helper()

	db := storetest.OpenSeeded(t)
	gen := repository.NewGenealogyRepository(db)
	queues := repository.NewQueueRepository(db)
	ref := repository.NewReferenceRepository(db)
	unit := uow.NewUnitOfWork(db)
	resolver := identity.NewResolver(gen)
	renderer := &captureRenderer{}

	return harness{
		db:       db,
		svc:      NewService(gen, queues, ref, unit, resolver, nil, renderer, maxNodes),
		queue:    queueuc.NewService(queues, gen, ref, unit, nil, nil, nil),
		assembly: assembly.NewService(gen, queues, ref, unit, resolver, nil, nil),
		gen:      gen,
		renderer: renderer,
	}
}

func ptr[T any](v T) *T { return &v }

func (h harness) draw(t *testing.T, wc uint64, d domainqueue.Details) {
	t.Helper()
	ctx := context.Background()
	if _, err := h.queue.Enqueue(ctx, queueuc.EnqueueInput{WorkCenterID: wc, Details: d}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	res, err := h.queue.Advance(ctx, wc, "test")
	if err != nil || res.Empty {
		t.Fatalf("Advance() = %+v, %v", res, err)
	}
}

func (h harness) coil(t *testing.T, coil string) {
	h.draw(t, storetest.RollsWC, domainqueue.Details{
		ProductID:         ptr(storetest.ShellProductID),
		MillVendorID:      ptr(storetest.MillVendorID),
		ProcessorVendorID: ptr(storetest.ProcessorID),
		HeatNumber:        "HT-" + coil,
		CoilNumber:        coil,
		Quantity:          decimal.NewFromInt(400),
	})
}

func (h harness) headLot(t *testing.T, lot string) {
	h.draw(t, storetest.FitUpWC, domainqueue.Details{
		HeadVendorID: ptr(storetest.LotHeadVendorID),
		ProductID:    ptr(storetest.HeadProductID),
		CardCode:     "01",
		LotNumber:    lot,
		Quantity:     decimal.NewFromInt(10),
	})
}

func (h harness) shell(t *testing.T, serial, coil string) ports.Node {
	t.Helper()
	n, err := h.svc.RegisterShell(context.Background(), RegisterShellInput{
		Serial:       serial,
		CoilSerial:   coil,
		WorkCenterID: storetest.RollsWC,
		ProductID:    storetest.ShellProductID,
		OperatorID:   ptr(storetest.OperatorID),
		Actor:        "roller",
	})
	if err != nil {
		t.Fatalf("RegisterShell(%s) error = %v", serial, err)
	}
	return n
}

// build creates A1 from S1,S2 + H1,H2 and then swaps S1 for S3.
func (h harness) build(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	h.coil(t, "C1")
	h.shell(t, "S1", "C1")
	h.shell(t, "S2", "C1")
	h.shell(t, "S3", "C1")
	h.headLot(t, "H1")
	h.headLot(t, "H2")

	res, err := h.assembly.Create(ctx, assembly.CreateInput{
		Shells:         []string{"S1", "S2"},
		LeftHeadLotID:  "H1",
		RightHeadLotID: "H2",
		TankSize:       120,
		WorkCenterID:   storetest.AssemblyWC,
		OperatorID:     ptr(storetest.OperatorID),
		WelderIDs:      []uint64{storetest.WelderID},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if res.AlphaCode != "A1" {
		t.Fatalf("alpha code = %s, want A1", res.AlphaCode)
	}
	if _, err := h.assembly.Reassemble(ctx, assembly.ReassembleInput{AlphaCode: "A1", Shells: []string{"S3"}}); err != nil {
		t.Fatalf("Reassemble() error = %v", err)
	}
}

func find(nodes []TreeNode, relation, serial string) (TreeNode, bool) {
	for _, n := range nodes {
		if n.Relation == relation && n.Serial == serial {
			return n, true
		}
	}
	return TreeNode{}, false
}

func TestLookupOfReplacedShellKeepsHistory(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)
	h.build(t)

	lookup, err := h.svc.GetLookup(ctx, "S1", storetest.PlantID)
	if err != nil {
		t.Fatalf("GetLookup() error = %v", err)
	}
	root := lookup.Nodes[0]
	if root.Serial != "S1" || root.Relation != RelationRoot || root.Key != lookup.RootKey || !root.Replaced {
		t.Fatalf("root = %+v, want replaced S1", root)
	}

	a1, ok := find(lookup.Nodes, RelationConsumedInto, "A1")
	if !ok {
		t.Fatalf("lookup of S1 lost its link to A1: %+v", lookup.Nodes)
	}
	if a1.Current || a1.Slot != genealogy.ShellSlot(1) || a1.ParentKey != root.Key {
		t.Fatalf("A1 link = %+v, want historical shell-1", a1)
	}
	if s3, ok := find(lookup.Nodes, RelationReplacedBy, "S3"); !ok || s3.ParentKey != root.Key {
		t.Fatalf("replaced-by leaf = %+v, %v", s3, ok)
	}
	coil, ok := find(lookup.Nodes, RelationProducedFrom, "C1")
	if !ok || coil.MillVendor != "North Mill" || coil.ProcessorVendor != "Coil Processing Co" {
		t.Fatalf("coil = %+v, %v", coil, ok)
	}
	if root.PartNumber != "PL-120" || root.HeatNumber != "HT-C1" {
		t.Fatalf("root metadata = %+v", root)
	}

	var actions []string
	for _, ev := range lookup.Events {
		actions = append(actions, ev.Serial+":"+ev.Action)
	}
	want := []string{"C1:drawn", "S1:rolled", "S3:rolled", "A1:assembled", "A1:reassembled"}
	if !reflect.DeepEqual(actions, want) {
		t.Fatalf("events = %v, want %v", actions, want)
	}
	if lookup.Events[1].WorkCenter != "Rolls" || lookup.Events[1].Operator != "Operator One" {
		t.Fatalf("rolled event = %+v", lookup.Events[1])
	}
}

func TestLookupFromCurrentShellRootsAtAssembly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)
	h.build(t)

	lookup, err := h.svc.GetLookup(ctx, "S2", storetest.PlantID)
	if err != nil {
		t.Fatalf("GetLookup() error = %v", err)
	}
	if lookup.Nodes[0].Serial != "A1" || lookup.Serial != "S2" {
		t.Fatalf("root = %+v, want A1", lookup.Nodes[0])
	}

	current := map[string]string{}
	historical := map[string]string{}
	for _, n := range lookup.Nodes {
		if n.Relation != RelationComponentOf || n.ParentKey != lookup.RootKey {
			continue
		}
		if n.Current {
			current[n.Slot] = n.Serial
		} else {
			historical[n.Slot] = n.Serial
		}
	}
	wantCurrent := map[string]string{"shell-1": "S3", "shell-2": "S2", "left-head": "H1", "right-head": "H2"}
	if !reflect.DeepEqual(current, wantCurrent) {
		t.Fatalf("current bindings = %v, want %v", current, wantCurrent)
	}
	if historical["shell-1"] != "S1" || len(historical) != 1 {
		t.Fatalf("historical bindings = %v, want shell-1 S1", historical)
	}

	keys := map[string]bool{}
	expanded := 0
	for _, n := range lookup.Nodes {
		if keys[n.Key] {
			t.Fatalf("duplicate key %s", n.Key)
		}
		keys[n.Key] = true
		if n.Serial == "C1" && !n.Repeat {
			expanded++
		}
	}
	if expanded != 1 {
		t.Fatalf("coil expanded %d times, want once", expanded)
	}
}

func TestLookupIsRepeatable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)
	h.build(t)

	first, err := h.svc.GetLookup(ctx, "S3", 0)
	if err != nil {
		t.Fatalf("GetLookup() error = %v", err)
	}
	second, err := h.svc.GetLookup(ctx, "S3", 0)
	if err != nil {
		t.Fatalf("GetLookup() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("lookups differ:\n%+v\n%+v", first, second)
	}
}

func TestLookupEdgeCases(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)

	if _, err := h.svc.GetLookup(ctx, "NOPE", 0); !errs.IsNotFound(err) {
		t.Fatalf("GetLookup(unknown) error = %v, want not found", err)
	}

	lone, err := h.gen.CreateNode(ctx, ports.Node{Serial: "LONE", Kind: genealogy.NodeShell, PlantID: storetest.PlantID, TankSize: 120, CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("CreateNode() error = %v", err)
	}
	if err := h.db.Create(&model.Defect{NodeID: lone.ID, Code: "POROSITY", CreatedAt: time.Now().UTC()}).Error; err != nil {
		t.Fatalf("create defect: %v", err)
	}
	lookup, err := h.svc.GetLookup(ctx, "LONE", 0)
	if err != nil {
		t.Fatalf("GetLookup() error = %v", err)
	}
	if len(lookup.Nodes) != 1 || len(lookup.Events) != 0 {
		t.Fatalf("lookup = %+v, want single node", lookup)
	}
	if lookup.Nodes[0].Defects != 1 || lookup.Nodes[0].Annotations != 0 {
		t.Fatalf("counts = %d/%d, want 1/0", lookup.Nodes[0].Defects, lookup.Nodes[0].Annotations)
	}
}

func TestLookupTruncatesAtMaxNodes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 3)
	h.build(t)

	lookup, err := h.svc.GetLookup(ctx, "S2", 0)
	if err != nil {
		t.Fatalf("GetLookup() error = %v", err)
	}
	if !lookup.Truncated || len(lookup.Nodes) != 3 {
		t.Fatalf("truncated = %v nodes = %d, want true/3", lookup.Truncated, len(lookup.Nodes))
	}
}

func TestGetContext(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)
	h.build(t)

	got, err := h.svc.GetContext(ctx, "S2", storetest.PlantID)
	if err != nil {
		t.Fatalf("GetContext() error = %v", err)
	}
	if got.TankSize != 120 || got.ShellSize != "60in" || got.ReplacedBy != "" {
		t.Fatalf("context = %+v", got)
	}
	asm := got.ExistingAssembly
	if asm == nil || asm.AlphaCode != "A1" {
		t.Fatalf("existing assembly = %+v, want A1", asm)
	}
	if len(asm.Shells) != 2 || asm.Shells[0].Serial != "S3" || asm.Shells[1].Serial != "S2" {
		t.Fatalf("shells = %+v", asm.Shells)
	}
	if asm.LeftHead == nil || asm.LeftHead.Serial != "H1" || asm.RightHead == nil || asm.RightHead.Serial != "H2" {
		t.Fatalf("heads = %+v / %+v", asm.LeftHead, asm.RightHead)
	}

	old, err := h.svc.GetContext(ctx, "S1", storetest.PlantID)
	if err != nil {
		t.Fatalf("GetContext(S1) error = %v", err)
	}
	if old.ReplacedBy != "S3" || old.ExistingAssembly != nil {
		t.Fatalf("context of S1 = %+v, want replaced by S3 and no assembly", old)
	}

	byCode, err := h.svc.GetContext(ctx, "A1", storetest.PlantID)
	if err != nil {
		t.Fatalf("GetContext(A1) error = %v", err)
	}
	if byCode.Kind != string(genealogy.NodeAssembly) || byCode.ExistingAssembly == nil || len(byCode.ExistingAssembly.Shells) != 2 {
		t.Fatalf("context of A1 = %+v", byCode)
	}

	if _, err := h.svc.GetContext(ctx, "NOPE", 0); !errs.IsNotFound(err) {
		t.Fatalf("GetContext(unknown) error = %v, want not found", err)
	}
}

func TestRegisterShellValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)
	h.coil(t, "C1")
	h.headLot(t, "H1")
	h.shell(t, "S1", "C1")

	base := RegisterShellInput{Serial: "S2", CoilSerial: "C1", WorkCenterID: storetest.RollsWC, ProductID: storetest.ShellProductID}
	tests := []struct {
		name   string
		mutate func(*RegisterShellInput)
		field  string
	}{
		{name: "blank serial", mutate: func(in *RegisterShellInput) { in.Serial = "" }, field: "serial"},
		{name: "unknown coil", mutate: func(in *RegisterShellInput) { in.CoilSerial = "C9" }, field: "coilSerial"},
		{name: "not a coil", mutate: func(in *RegisterShellInput) { in.CoilSerial = "H1" }, field: "coilSerial"},
		{name: "unknown product", mutate: func(in *RegisterShellInput) { in.ProductID = 999 }, field: "productId"},
		{name: "unknown work center", mutate: func(in *RegisterShellInput) { in.WorkCenterID = 999 }, field: "workCenterId"},
		{name: "unknown operator", mutate: func(in *RegisterShellInput) { in.OperatorID = ptr(uint64(999)) }, field: "operatorId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			_, err := h.svc.RegisterShell(ctx, in)
			if !errs.IsValidation(err) || errs.FieldOf(err) != tt.field {
				t.Fatalf("RegisterShell() error = %v, want %s validation", err, tt.field)
			}
		})
	}

	dup := base
	dup.Serial = "S1"
	if _, err := h.svc.RegisterShell(ctx, dup); !errs.IsConflict(err) {
		t.Fatalf("RegisterShell(duplicate) error = %v, want conflict", err)
	}
}

func TestRecordEventAppearsInLookup(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)
	h.coil(t, "C1")
	h.shell(t, "S1", "C1")

	if _, err := h.svc.RecordEvent(ctx, EventInput{Serial: "S1", WorkCenterID: storetest.AssemblyWC, Action: "assembled"}); !errs.IsValidation(err) {
		t.Fatalf("RecordEvent(reserved) error = %v, want validation", err)
	}
	if _, err := h.svc.RecordEvent(ctx, EventInput{Serial: "S9", WorkCenterID: storetest.AssemblyWC, Action: "hydro"}); !errs.IsNotFound(err) {
		t.Fatalf("RecordEvent(unknown) error = %v, want not found", err)
	}

	rec, err := h.svc.RecordEvent(ctx, EventInput{
		Serial:       "S1",
		WorkCenterID: storetest.AssemblyWC,
		OperatorID:   ptr(storetest.OperatorID),
		WelderIDs:    []uint64{storetest.WelderID, storetest.SecondWelderID},
		Action:       " Hydro ",
		Result:       "pass",
	})
	if err != nil {
		t.Fatalf("RecordEvent() error = %v", err)
	}
	if rec.Action != "hydro" {
		t.Fatalf("action = %q, want hydro", rec.Action)
	}

	lookup, err := h.svc.GetLookup(ctx, "S1", 0)
	if err != nil {
		t.Fatalf("GetLookup() error = %v", err)
	}
	last := lookup.Events[len(lookup.Events)-1]
	if last.Action != "hydro" || last.Result != "pass" || last.WorkCenter != "Tack" {
		t.Fatalf("last event = %+v", last)
	}
	if !reflect.DeepEqual(last.Welders, []string{"Welder One", "Welder Two"}) {
		t.Fatalf("welders = %v", last.Welders)
	}
}

func TestExportLookupRendersTree(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)
	h.coil(t, "C1")
	h.shell(t, "S1", "C1")

	var buf bytes.Buffer
	if err := h.svc.ExportLookup(ctx, "S1", 0, &buf); err != nil {
		t.Fatalf("ExportLookup() error = %v", err)
	}
	if buf.String() != "S1" || len(h.renderer.got.Nodes) != 2 {
		t.Fatalf("rendered %q with %d nodes", buf.String(), len(h.renderer.got.Nodes))
	}
}
