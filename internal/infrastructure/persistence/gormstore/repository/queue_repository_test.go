package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tanktrace/internal/domain/queue"
	"tanktrace/internal/infrastructure/persistence/gormstore/repository"
	"tanktrace/internal/infrastructure/persistence/gormstore/storetest"
	"tanktrace/internal/ports"
)

func enqueue(t *testing.T, repo *repository.QueueRepository, wc uint64, card string) ports.QueueItem {
	t.Helper()

	ctx := context.Background()
	pos, err := repo.NextPosition(ctx, wc)
	if err != nil {
		t.Fatalf("NextPosition() error = %v", err)
	}
	vendor := storetest.LotHeadVendorID
	item, err := repo.CreateItem(ctx, ports.QueueItem{
		WorkCenterID: wc,
		Position:     pos,
		Details: queue.Details{
			HeadVendorID: &vendor,
			CardCode:     card,
			LotNumber:    "L-" + card,
			Quantity:     decimal.NewFromInt(2),
		},
		CreatedBy: "op",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	return item
}

func TestQueueRepositoryFIFOAndPositions(t *testing.T) {
	ctx := context.Background()
	db := storetest.OpenSeeded(t)
	repo := repository.NewQueueRepository(db)

	first := enqueue(t, repo, storetest.FitUpWC, "01")
	second := enqueue(t, repo, storetest.FitUpWC, "02")
	if first.Position != 1 || second.Position != 2 {
		t.Fatalf("positions = %d,%d, want 1,2", first.Position, second.Position)
	}
	if first.Status != queue.StatusPending {
		t.Fatalf("status = %q, want pending", first.Status)
	}

	head, err := repo.FirstPending(ctx, storetest.FitUpWC)
	if err != nil {
		t.Fatalf("FirstPending() error = %v", err)
	}
	if head.ID != first.ID {
		t.Fatalf("FirstPending() = %d, want %d", head.ID, first.ID)
	}

	if err := repo.MarkConsumed(ctx, first.ID, 42, time.Now().UTC()); err != nil {
		t.Fatalf("MarkConsumed() error = %v", err)
	}
	if err := repo.MarkConsumed(ctx, first.ID, 43, time.Now().UTC()); !errors.Is(err, ports.ErrQueueItemChanged) {
		t.Fatalf("MarkConsumed(again) error = %v, want ErrQueueItemChanged", err)
	}

	// Positions never reuse a consumed slot.
	third := enqueue(t, repo, storetest.FitUpWC, "03")
	if third.Position != 3 {
		t.Fatalf("third position = %d, want 3", third.Position)
	}

	pending, err := repo.ListPending(ctx, storetest.FitUpWC)
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(pending) != 2 || pending[0].ID != second.ID || pending[1].ID != third.ID {
		t.Fatalf("ListPending() = %+v, want second then third", pending)
	}

	drawn, err := repo.FindDrawByNode(ctx, 42)
	if err != nil {
		t.Fatalf("FindDrawByNode() error = %v", err)
	}
	if drawn.ID != first.ID || drawn.ConsumedAt == nil {
		t.Fatalf("FindDrawByNode() = %+v, want consumed first item", drawn)
	}
	if _, err := repo.FindDrawByNode(ctx, 99); !errors.Is(err, ports.ErrQueueItemNotFound) {
		t.Fatalf("FindDrawByNode(missing) error = %v, want ErrQueueItemNotFound", err)
	}

	if _, err := repo.FirstPending(ctx, storetest.RollsWC); !errors.Is(err, ports.ErrQueueItemNotFound) {
		t.Fatalf("FirstPending(empty) error = %v, want ErrQueueItemNotFound", err)
	}
}

func TestQueueRepositoryPendingOnlyWrites(t *testing.T) {
	ctx := context.Background()
	db := storetest.OpenSeeded(t)
	repo := repository.NewQueueRepository(db)

	item := enqueue(t, repo, storetest.FitUpWC, "01")
	d := item.Details
	d.CardCode = "05"
	if err := repo.UpdatePendingDetails(ctx, item.ID, d); err != nil {
		t.Fatalf("UpdatePendingDetails() error = %v", err)
	}
	got, err := repo.GetItem(ctx, storetest.FitUpWC, item.ID)
	if err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if got.Details.CardCode != "05" {
		t.Fatalf("card = %q, want 05", got.Details.CardCode)
	}
	if _, err := repo.GetItem(ctx, storetest.RollsWC, item.ID); !errors.Is(err, ports.ErrQueueItemNotFound) {
		t.Fatalf("GetItem(other wc) error = %v, want ErrQueueItemNotFound", err)
	}

	if err := repo.MarkConsumed(ctx, item.ID, 7, time.Now().UTC()); err != nil {
		t.Fatalf("MarkConsumed() error = %v", err)
	}
	if err := repo.UpdatePendingDetails(ctx, item.ID, d); !errors.Is(err, ports.ErrQueueItemChanged) {
		t.Fatalf("UpdatePendingDetails(consumed) error = %v, want ErrQueueItemChanged", err)
	}
	if err := repo.DeletePending(ctx, item.ID); !errors.Is(err, ports.ErrQueueItemChanged) {
		t.Fatalf("DeletePending(consumed) error = %v, want ErrQueueItemChanged", err)
	}

	other := enqueue(t, repo, storetest.FitUpWC, "02")
	if err := repo.DeletePending(ctx, other.ID); err != nil {
		t.Fatalf("DeletePending() error = %v", err)
	}

	if err := repo.SetProgress(ctx, item.ID, decimal.NewFromInt(2), true); err != nil {
		t.Fatalf("SetProgress() error = %v", err)
	}
	done, _ := repo.GetItem(ctx, storetest.FitUpWC, item.ID)
	if !done.Retired || !done.QuantityCompleted.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("progress = %s retired=%v", done.QuantityCompleted, done.Retired)
	}
}

func TestQueueRepositoryTransactions(t *testing.T) {
	ctx := context.Background()
	db := storetest.OpenSeeded(t)
	repo := repository.NewQueueRepository(db)
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	for i, action := range []string{queue.ActionAdded, queue.ActionAdvanced, queue.ActionRemoved} {
		if err := repo.AppendTransaction(ctx, ports.QueueTransaction{
			WorkCenterID: storetest.FitUpWC,
			Action:       action,
			Summary:      "card 01",
			Operator:     "op",
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("AppendTransaction() error = %v", err)
		}
	}

	items, err := repo.ListTransactions(ctx, storetest.FitUpWC, 2)
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(items) != 2 || items[0].Action != queue.ActionRemoved || items[1].Action != queue.ActionAdvanced {
		t.Fatalf("ListTransactions() = %+v, want newest two", items)
	}

	if err := repo.LockWorkCenter(ctx, 999); !errors.Is(err, ports.ErrWorkCenterNotFound) {
		t.Fatalf("LockWorkCenter(missing) error = %v, want ErrWorkCenterNotFound", err)
	}
}
