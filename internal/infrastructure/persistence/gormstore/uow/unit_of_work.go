package uow

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"tanktrace/internal/bootstrap/logging"
	"tanktrace/internal/errs"
	"tanktrace/internal/ports"
)

// UnitOfWork runs queue, assembly and genealogy writes in one gorm
// transaction.
type UnitOfWork struct {
	db *gorm.DB
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// WithTx commits when fn returns nil. A nested call joins the outer
// transaction. Validation, not-found and conflict errors come back as
// returned; anything else is marked internal with the stack at the
// rollback point.
func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if ports.InTx(ctx) {
		return fn(ctx)
	}

	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ports.WithTxContext(ctx, tx))
	})
	if err == nil {
		return nil
	}

	kind := errs.KindOf(err)
	logging.Debug(ctx, "transaction rolled back",
		slog.String("kind", kind.String()),
		slog.String("err", err.Error()),
	)
	if kind != errs.KindInternal || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errs.Internal(err, "")
}
