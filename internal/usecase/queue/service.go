package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tanktrace/internal/bootstrap/logging"
	domainqueue "tanktrace/internal/domain/queue"
	"tanktrace/internal/errs"
	"tanktrace/internal/ports"
)

const (
	defaultTransactionLimit = 50
	maxTransactionLimit     = 500
	defaultOperator         = "system"
)

type Service struct {
	repo      ports.QueueRepository
	genealogy ports.GenealogyRepository
	reference ports.ReferenceRepository
	uow       ports.UnitOfWork
	cache     ports.Cache
	publisher ports.EventPublisher
	metrics   ports.Metrics
	now       func() time.Time
}

// NewService wires the queue engine. cache may be nil.
func NewService(
	repo ports.QueueRepository,
	genealogy ports.GenealogyRepository,
	reference ports.ReferenceRepository,
	uow ports.UnitOfWork,
	cache ports.Cache,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
) *Service {
	if publisher == nil {
		publisher = ports.NopPublisher{}
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Service{
		repo:      repo,
		genealogy: genealogy,
		reference: reference,
		uow:       uow,
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type EnqueueInput struct {
	WorkCenterID uint64
	Details      domainqueue.Details
	Operator     string
}

// ItemPatch carries the fields to overwrite on a pending item. Nil fields
// keep their current value.
type ItemPatch struct {
	ProductID         *uint64
	MillVendorID      *uint64
	ProcessorVendorID *uint64
	HeadVendorID      *uint64
	HeatNumber        *string
	CoilNumber        *string
	LotNumber         *string
	CardCode          *string
	Description       *string
	Quantity          *decimal.Decimal
}

func (p ItemPatch) empty() bool {
	return p.ProductID == nil && p.MillVendorID == nil && p.ProcessorVendorID == nil &&
		p.HeadVendorID == nil && p.HeatNumber == nil && p.CoilNumber == nil &&
		p.LotNumber == nil && p.CardCode == nil && p.Description == nil && p.Quantity == nil
}

func (p ItemPatch) apply(d domainqueue.Details) domainqueue.Details {
	if p.ProductID != nil {
		d.ProductID = p.ProductID
	}
	if p.MillVendorID != nil {
		d.MillVendorID = p.MillVendorID
	}
	if p.ProcessorVendorID != nil {
		d.ProcessorVendorID = p.ProcessorVendorID
	}
	if p.HeadVendorID != nil {
		d.HeadVendorID = p.HeadVendorID
	}
	if p.HeatNumber != nil {
		d.HeatNumber = *p.HeatNumber
	}
	if p.CoilNumber != nil {
		d.CoilNumber = *p.CoilNumber
	}
	if p.LotNumber != nil {
		d.LotNumber = *p.LotNumber
	}
	if p.CardCode != nil {
		d.CardCode = *p.CardCode
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.Quantity != nil {
		d.Quantity = *p.Quantity
	}
	return d
}

type UpdateInput struct {
	WorkCenterID uint64
	ItemID       uint64
	Patch        ItemPatch
	Operator     string
}

type ProgressInput struct {
	WorkCenterID uint64
	ItemID       uint64
	Amount       decimal.Decimal
	Operator     string
}

// ConsumedItem is what the consuming screen needs to pre-fill a production
// record after an Advance.
type ConsumedItem struct {
	ItemID       uint64          `json:"itemId"`
	WorkCenterID uint64          `json:"workCenterId"`
	Position     int64           `json:"position"`
	NodeID       uint64          `json:"nodeId"`
	Serial       string          `json:"serial"`
	Kind         string          `json:"kind"`
	CardCode     string          `json:"cardCode,omitempty"`
	Description  string          `json:"description,omitempty"`
	HeatNumber   string          `json:"heatNumber,omitempty"`
	CoilNumber   string          `json:"coilNumber,omitempty"`
	LotNumber    string          `json:"lotNumber,omitempty"`
	PartNumber   string          `json:"partNumber,omitempty"`
	ShellSize    string          `json:"shellSize,omitempty"`
	TankSize     int             `json:"tankSize,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	ConsumedAt   time.Time       `json:"consumedAt"`
}

// AdvanceResult is either Empty or carries the consumed item.
type AdvanceResult struct {
	Empty bool          `json:"empty"`
	Item  *ConsumedItem `json:"item,omitempty"`
}

func operatorName(op string) string {
	op = strings.TrimSpace(op)
	if op == "" {
		return defaultOperator
	}
	return op
}

func lastAdvancedKey(workCenterID uint64) string {
	return fmt.Sprintf("queue:last-advanced:%d", workCenterID)
}

// queueWorkCenter loads the work center and checks it owns a material queue.
func (s *Service) queueWorkCenter(ctx context.Context, workCenterID uint64) (ports.WorkCenter, error) {
	wc, err := s.reference.GetWorkCenter(ctx, workCenterID)
	if err != nil {
		if errors.Is(err, ports.ErrWorkCenterNotFound) {
			return ports.WorkCenter{}, errs.NotFound("work center %d not found", workCenterID)
		}
		return ports.WorkCenter{}, err
	}
	if !wc.QueueType.HasQueue() {
		return ports.WorkCenter{}, errs.Validation("workCenterId", "work center %d has no material queue", workCenterID)
	}
	return wc, nil
}

// checkDetails validates the referenced catalog rows and the subtype rules,
// returning the head vendor tracking used for fit-up draws.
func (s *Service) checkDetails(ctx context.Context, t domainqueue.Type, d domainqueue.Details) (domainqueue.Tracking, error) {
	if d.ProductID != nil {
		if _, err := s.reference.GetProduct(ctx, *d.ProductID); err != nil {
			if errors.Is(err, ports.ErrProductNotFound) {
				return "", errs.Validation("productId", "product %d not found", *d.ProductID)
			}
			return "", err
		}
	}

	var tracking domainqueue.Tracking
	check := func(id *uint64, field string, role string) error {
		if id == nil || t == domainqueue.TypeNone {
			return nil
		}
		v, err := s.reference.GetVendor(ctx, *id)
		if err != nil {
			if errors.Is(err, ports.ErrVendorNotFound) {
				return errs.Validation(field, "vendor %d not found", *id)
			}
			return err
		}
		if v.Role != role {
			return errs.Validation(field, "vendor %d is a %s vendor, want %s", *id, v.Role, role)
		}
		if role == ports.VendorRoleHead {
			tracking = v.Tracking
		}
		return nil
	}

	if t == domainqueue.TypeRolls {
		if err := check(d.MillVendorID, "millVendorId", ports.VendorRoleMill); err != nil {
			return "", err
		}
		if err := check(d.ProcessorVendorID, "processorVendorId", ports.VendorRoleProcessor); err != nil {
			return "", err
		}
	}
	if t == domainqueue.TypeFitUp {
		if err := check(d.HeadVendorID, "headVendorId", ports.VendorRoleHead); err != nil {
			return "", err
		}
	}

	if err := domainqueue.Validate(t, d, tracking); err != nil {
		return "", err
	}
	return tracking, nil
}

func (s *Service) ready(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.repo == nil || s.reference == nil {
		return errors.New("queue repositories are required")
	}
	if s.uow == nil {
		return errors.New("queue unit of work is required")
	}
	return nil
}

func (s *Service) setCacheBestEffort(ctx context.Context, key string, value string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, 0); err != nil {
		logging.Warn(ctx, "queue cache write failed", slog.String("key", key), slog.Any("err", errs.Loggable(err)))
	}
}

func (s *Service) publishBestEffort(ctx context.Context, subject string, payload any) {
	if err := s.publisher.Publish(ctx, subject, payload); err != nil {
		logging.Warn(ctx, "queue event publish failed", slog.String("subject", subject), slog.Any("err", errs.Loggable(err)))
	}
}

func encodeJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", errs.Wrap(err, "encode json")
	}
	return string(raw), nil
}
