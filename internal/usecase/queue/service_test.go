package queue

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tanktrace/internal/domain/genealogy"
	domainqueue "tanktrace/internal/domain/queue"
	"tanktrace/internal/errs"
	"tanktrace/internal/infrastructure/persistence/gormstore/repository"
	"tanktrace/internal/infrastructure/persistence/gormstore/storetest"
	"tanktrace/internal/infrastructure/persistence/gormstore/uow"
	"tanktrace/internal/ports"
)

type memoryCache struct {
	mu   sync.Mutex
	data map[string]string
}

func (c *memoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string]string{}
	}
	c.data[key] = value
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

type harness struct {
	svc       *Service
	db        *gorm.DB
	genealogy *repository.GenealogyRepository
	publisher *recordingPublisher
}

func newHarness(t *testing.T) harness {
	t.Helper()

	db := storetest.OpenSeeded(t)
	gen := repository.NewGenealogyRepository(db)
	pub := &recordingPublisher{}
	svc := NewService(
		repository.NewQueueRepository(db),
		gen,
		repository.NewReferenceRepository(db),
		uow.NewUnitOfWork(db),
		&memoryCache{},
		pub,
		nil,
	)
	return harness{svc: svc, db: db, genealogy: gen, publisher: pub}
}

func ptr[T any](v T) *T { return &v }

func fitUpItem(card string, lot string) domainqueue.Details {
	return domainqueue.Details{
		HeadVendorID: ptr(storetest.LotHeadVendorID),
		ProductID:    ptr(storetest.HeadProductID),
		CardCode:     card,
		LotNumber:    lot,
		Quantity:     decimal.NewFromInt(2),
	}
}

func rollsItem(coil string, footage int64) domainqueue.Details {
	return domainqueue.Details{
		ProductID:         ptr(storetest.ShellProductID),
		MillVendorID:      ptr(storetest.MillVendorID),
		ProcessorVendorID: ptr(storetest.ProcessorID),
		HeatNumber:        "HT-1",
		CoilNumber:        coil,
		Quantity:          decimal.NewFromInt(footage),
	}
}

func TestAdvanceFollowsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	for _, card := range []string{"01", "02"} {
		if _, err := h.svc.Enqueue(ctx, EnqueueInput{WorkCenterID: storetest.FitUpWC, Details: fitUpItem(card, "L"+card), Operator: "op"}); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", card, err)
		}
	}

	first, err := h.svc.Advance(ctx, storetest.FitUpWC, "op")
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if first.Empty || first.Item.CardCode != "01" {
		t.Fatalf("first Advance() = %+v, want card 01", first)
	}

	second, err := h.svc.Advance(ctx, storetest.FitUpWC, "op")
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if second.Empty || second.Item.CardCode != "02" {
		t.Fatalf("second Advance() = %+v, want card 02", second)
	}

	third, err := h.svc.Advance(ctx, storetest.FitUpWC, "op")
	if err != nil {
		t.Fatalf("Advance(empty) error = %v", err)
	}
	if !third.Empty || third.Item != nil {
		t.Fatalf("third Advance() = %+v, want empty", third)
	}

	txs, err := h.svc.Transactions(ctx, storetest.FitUpWC, 0)
	if err != nil {
		t.Fatalf("Transactions() error = %v", err)
	}
	if len(txs) != 4 {
		t.Fatalf("Transactions() len = %d, want 2 added + 2 advanced", len(txs))
	}
	if txs[0].Action != domainqueue.ActionAdvanced || txs[0].Operator != "op" {
		t.Fatalf("newest transaction = %+v", txs[0])
	}
	if len(h.publisher.subjects) != 2 || h.publisher.subjects[0] != ports.SubjectQueueAdvanced {
		t.Fatalf("published = %v, want two queue.advanced events", h.publisher.subjects)
	}
}

func TestAdvanceMaterializesNode(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	if _, err := h.svc.Enqueue(ctx, EnqueueInput{WorkCenterID: storetest.RollsWC, Details: rollsItem("C-77", 300)}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	res, err := h.svc.Advance(ctx, storetest.RollsWC, "")
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if res.Item.Serial != "C-77" || res.Item.Kind != string(genealogy.NodeCoil) {
		t.Fatalf("Advance() item = %+v, want coil C-77", res.Item)
	}
	if res.Item.ShellSize != "60in" || res.Item.TankSize != 120 {
		t.Fatalf("Advance() sizes = %q/%d", res.Item.ShellSize, res.Item.TankSize)
	}

	node, err := h.genealogy.GetNode(ctx, res.Item.NodeID)
	if err != nil {
		t.Fatalf("GetNode() error = %v", err)
	}
	if node.CreatedBy != defaultOperator || node.HeatNumber != "HT-1" {
		t.Fatalf("node = %+v", node)
	}
	edges, err := h.genealogy.ListEdgesTo(ctx, node.ID, genealogy.EdgeProducedFrom)
	if err != nil {
		t.Fatalf("ListEdgesTo() error = %v", err)
	}
	if len(edges) != 1 || edges[0].FromNodeID != nil || edges[0].Location != "Rolls" {
		t.Fatalf("draw edge = %+v, want external origin at Rolls", edges)
	}
	if !edges[0].Quantity.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("draw edge quantity = %s, want 300", edges[0].Quantity)
	}

	last, err := h.svc.LastAdvanced(ctx, storetest.RollsWC)
	if err != nil {
		t.Fatalf("LastAdvanced() error = %v", err)
	}
	if last == nil || last.ItemID != res.Item.ItemID {
		t.Fatalf("LastAdvanced() = %+v, want item %d", last, res.Item.ItemID)
	}
}

func TestEnqueueValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	heatVendor := fitUpItem("01", "")
	heatVendor.HeadVendorID = ptr(storetest.HeatHeadVendorID)

	wrongRole := fitUpItem("01", "L1")
	wrongRole.HeadVendorID = ptr(storetest.MillVendorID)

	missingCoil := rollsItem("", 10)

	zeroFootage := rollsItem("C1", 0)

	tests := []struct {
		name      string
		wc        uint64
		details   domainqueue.Details
		wantField string
		notFound  bool
	}{
		{name: "lot vendor without lot", wc: storetest.FitUpWC, details: fitUpItem("01", ""), wantField: "lotNumber"},
		{name: "heat vendor without heat", wc: storetest.FitUpWC, details: heatVendor, wantField: "heatNumber"},
		{name: "no card code", wc: storetest.FitUpWC, details: fitUpItem("", "L1"), wantField: "cardCode"},
		{name: "wrong vendor role", wc: storetest.FitUpWC, details: wrongRole, wantField: "headVendorId"},
		{name: "rolls without coil", wc: storetest.RollsWC, details: missingCoil, wantField: "coilNumber"},
		{name: "rolls without footage", wc: storetest.RollsWC, details: zeroFootage, wantField: "quantity"},
		{name: "no queue at work center", wc: storetest.AssemblyWC, details: fitUpItem("01", "L1"), wantField: "workCenterId"},
		{name: "unknown work center", wc: 999, details: fitUpItem("01", "L1"), notFound: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Enqueue(ctx, EnqueueInput{WorkCenterID: tt.wc, Details: tt.details})
			if tt.notFound {
				if !errs.IsNotFound(err) {
					t.Fatalf("Enqueue() error = %v, want not found", err)
				}
				return
			}
			if !errs.IsValidation(err) {
				t.Fatalf("Enqueue() error = %v, want validation", err)
			}
			if got := errs.FieldOf(err); got != tt.wantField {
				t.Fatalf("field = %q, want %q", got, tt.wantField)
			}
		})
	}
}

func TestFitUpQuantityDefaultsToOne(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	d := fitUpItem("01", "L1")
	d.Quantity = decimal.Zero
	item, err := h.svc.Enqueue(ctx, EnqueueInput{WorkCenterID: storetest.FitUpWC, Details: d})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if !item.Details.Quantity.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("quantity = %s, want 1", item.Details.Quantity)
	}
}

func TestUpdateAndDeleteOnlyWhilePending(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	first, err := h.svc.Enqueue(ctx, EnqueueInput{WorkCenterID: storetest.FitUpWC, Details: fitUpItem("01", "L1")})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	second, err := h.svc.Enqueue(ctx, EnqueueInput{WorkCenterID: storetest.FitUpWC, Details: fitUpItem("02", "L2")})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	updated, err := h.svc.Update(ctx, UpdateInput{WorkCenterID: storetest.FitUpWC, ItemID: second.ID, Patch: ItemPatch{CardCode: ptr(" 07 ")}})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Details.CardCode != "07" {
		t.Fatalf("card = %q, want 07", updated.Details.CardCode)
	}
	if _, err := h.svc.Update(ctx, UpdateInput{WorkCenterID: storetest.FitUpWC, ItemID: second.ID, Patch: ItemPatch{LotNumber: ptr("")}}); !errs.IsValidation(err) {
		t.Fatalf("Update(clear lot) error = %v, want validation", err)
	}
	if _, err := h.svc.Update(ctx, UpdateInput{WorkCenterID: storetest.FitUpWC, ItemID: second.ID}); !errs.IsValidation(err) {
		t.Fatalf("Update(empty patch) error = %v, want validation", err)
	}

	if _, err := h.svc.Advance(ctx, storetest.FitUpWC, "op"); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	if _, err := h.svc.Update(ctx, UpdateInput{WorkCenterID: storetest.FitUpWC, ItemID: first.ID, Patch: ItemPatch{CardCode: ptr("09")}}); !errs.IsConflict(err) {
		t.Fatalf("Update(consumed) error = %v, want conflict", err)
	}
	if err := h.svc.Delete(ctx, storetest.FitUpWC, first.ID, "op"); !errs.IsConflict(err) {
		t.Fatalf("Delete(consumed) error = %v, want conflict", err)
	}
	if err := h.svc.Delete(ctx, storetest.FitUpWC, 999, "op"); !errs.IsNotFound(err) {
		t.Fatalf("Delete(missing) error = %v, want not found", err)
	}
	if err := h.svc.Delete(ctx, storetest.FitUpWC, second.ID, "op"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	pending, err := h.svc.List(ctx, storetest.FitUpWC)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("List() = %+v, want empty", pending)
	}

	third, err := h.svc.Enqueue(ctx, EnqueueInput{WorkCenterID: storetest.FitUpWC, Details: fitUpItem("03", "L3")})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if third.Position <= second.Position {
		t.Fatalf("position = %d, want greater than %d", third.Position, second.Position)
	}

	txs, _ := h.svc.Transactions(ctx, storetest.FitUpWC, 1)
	if len(txs) != 1 || txs[0].Action != domainqueue.ActionAdded {
		t.Fatalf("Transactions(1) = %+v", txs)
	}
}

func TestRecordProgressRetiresCoil(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	item, err := h.svc.Enqueue(ctx, EnqueueInput{WorkCenterID: storetest.RollsWC, Details: rollsItem("C1", 100)})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if _, err := h.svc.RecordProgress(ctx, ProgressInput{WorkCenterID: storetest.RollsWC, ItemID: item.ID, Amount: decimal.NewFromInt(10)}); !errs.IsConflict(err) {
		t.Fatalf("RecordProgress(pending) error = %v, want conflict", err)
	}
	if _, err := h.svc.Advance(ctx, storetest.RollsWC, "op"); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	got, err := h.svc.RecordProgress(ctx, ProgressInput{WorkCenterID: storetest.RollsWC, ItemID: item.ID, Amount: decimal.RequireFromString("60.5")})
	if err != nil {
		t.Fatalf("RecordProgress() error = %v", err)
	}
	if got.Retired {
		t.Fatalf("retired after 60.5 of 100")
	}
	got, err = h.svc.RecordProgress(ctx, ProgressInput{WorkCenterID: storetest.RollsWC, ItemID: item.ID, Amount: decimal.RequireFromString("39.5")})
	if err != nil {
		t.Fatalf("RecordProgress() error = %v", err)
	}
	if !got.Retired || !got.QuantityCompleted.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("progress = %s retired=%v, want 100 retired", got.QuantityCompleted, got.Retired)
	}
	if _, err := h.svc.RecordProgress(ctx, ProgressInput{WorkCenterID: storetest.RollsWC, ItemID: item.ID, Amount: decimal.NewFromInt(1)}); !errs.IsConflict(err) {
		t.Fatalf("RecordProgress(retired) error = %v, want conflict", err)
	}
}

func TestConcurrentAdvanceNeverDuplicates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	const items = 24
	for i := 0; i < items; i++ {
		card := strconv.Itoa(i)
		if _, err := h.svc.Enqueue(ctx, EnqueueInput{WorkCenterID: storetest.FitUpWC, Details: fitUpItem(card, "L"+card)}); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	const workers = 6
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		seen    = map[uint64]int{}
		errList []error
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last int64
			for {
				res, err := h.svc.Advance(ctx, storetest.FitUpWC, "op")
				if err != nil {
					mu.Lock()
					errList = append(errList, err)
					mu.Unlock()
					return
				}
				if res.Empty {
					return
				}
				if res.Item.Position <= last {
					mu.Lock()
					errList = append(errList, errs.Conflict("position %d after %d", res.Item.Position, last))
					mu.Unlock()
				}
				last = res.Item.Position
				mu.Lock()
				seen[res.Item.ItemID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(errList) > 0 {
		t.Fatalf("Advance() errors = %v", errList)
	}
	if len(seen) != items {
		t.Fatalf("consumed %d distinct items, want %d", len(seen), items)
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("item %d returned %d times", id, n)
		}
	}
}

func TestConcurrentEnqueueAssignsDistinctPositions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	const n = 12
	positions := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			card := strconv.Itoa(i + 1)
			item, err := h.svc.Enqueue(ctx, EnqueueInput{WorkCenterID: storetest.FitUpWC, Details: fitUpItem(card, "L"+card), Operator: "op"})
			if err != nil {
				t.Errorf("Enqueue(%s) error = %v", card, err)
				return
			}
			positions[i] = item.Position
		}(i)
	}
	wg.Wait()
	if t.Failed() {
		return
	}

	slices.Sort(positions)
	for i, pos := range positions {
		if pos != int64(i+1) {
			t.Fatalf("positions = %v, want 1..%d", positions, n)
		}
	}

	pending, err := h.svc.List(ctx, storetest.FitUpWC)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	tail := pending[len(pending)-1]
	if tail.Position != n {
		t.Fatalf("tail position = %d, want %d", tail.Position, n)
	}
	if err := h.svc.Delete(ctx, storetest.FitUpWC, tail.ID, "op"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	next, err := h.svc.Enqueue(ctx, EnqueueInput{WorkCenterID: storetest.FitUpWC, Details: fitUpItem("99", "L99")})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if next.Position != n+1 {
		t.Fatalf("position after tail delete = %d, want %d", next.Position, n+1)
	}
}
