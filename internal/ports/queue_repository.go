package ports

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"tanktrace/internal/domain/queue"
)

var (
	ErrQueueItemNotFound = errors.New("queue item not found")
	// ErrQueueItemChanged is returned when a conditional write lost a race
	// with another transaction.
	ErrQueueItemChanged = errors.New("queue item changed concurrently")
)

type QueueItem struct {
	ID                uint64
	WorkCenterID      uint64
	Position          int64
	Status            queue.Status
	Details           queue.Details
	QuantityCompleted decimal.Decimal
	Retired           bool
	NodeID            *uint64
	CreatedBy         string
	CreatedAt         time.Time
	ConsumedAt        *time.Time
}

type QueueTransaction struct {
	ID           uint64
	WorkCenterID uint64
	Action       string
	Summary      string
	Operator     string
	CreatedAt    time.Time
}

type QueueRepository interface {
	// LockWorkCenter serializes queue writers of one work center for the
	// rest of the enclosing transaction.
	LockWorkCenter(ctx context.Context, workCenterID uint64) error
	NextPosition(ctx context.Context, workCenterID uint64) (int64, error)
	CreateItem(ctx context.Context, item QueueItem) (QueueItem, error)
	GetItem(ctx context.Context, workCenterID uint64, itemID uint64) (QueueItem, error)
	// FirstPending returns ErrQueueItemNotFound when nothing is pending.
	FirstPending(ctx context.Context, workCenterID uint64) (QueueItem, error)
	ListPending(ctx context.Context, workCenterID uint64) ([]QueueItem, error)
	UpdatePendingDetails(ctx context.Context, itemID uint64, details queue.Details) error
	MarkConsumed(ctx context.Context, itemID uint64, nodeID uint64, at time.Time) error
	DeletePending(ctx context.Context, itemID uint64) error
	// FindDrawByNode returns the consumed item that materialized the node.
	FindDrawByNode(ctx context.Context, nodeID uint64) (QueueItem, error)
	SetProgress(ctx context.Context, itemID uint64, completed decimal.Decimal, retired bool) error
	AppendTransaction(ctx context.Context, tx QueueTransaction) error
	ListTransactions(ctx context.Context, workCenterID uint64, limit int) ([]QueueTransaction, error)
}
