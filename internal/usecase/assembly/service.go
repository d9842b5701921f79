package assembly

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tanktrace/internal/bootstrap/logging"
	"tanktrace/internal/domain/genealogy"
	domainqueue "tanktrace/internal/domain/queue"
	"tanktrace/internal/errs"
	"tanktrace/internal/ports"
	"tanktrace/internal/usecase/identity"
)

type Service struct {
	genealogy ports.GenealogyRepository
	queues    ports.QueueRepository
	reference ports.ReferenceRepository
	uow       ports.UnitOfWork
	resolver  *identity.Resolver
	publisher ports.EventPublisher
	metrics   ports.Metrics
	now       func() time.Time
}

func NewService(
	genealogy ports.GenealogyRepository,
	queues ports.QueueRepository,
	reference ports.ReferenceRepository,
	uow ports.UnitOfWork,
	resolver *identity.Resolver,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
) *Service {
	if publisher == nil {
		publisher = ports.NopPublisher{}
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if resolver == nil {
		resolver = identity.NewResolver(genealogy)
	}
	return &Service{
		genealogy: genealogy,
		queues:    queues,
		reference: reference,
		uow:       uow,
		resolver:  resolver,
		publisher: publisher,
		metrics:   metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type CreateInput struct {
	Shells           []string
	LeftHeadLotID    string
	RightHeadLotID   string
	TankSize         int
	WorkCenterID     uint64
	AssetID          *uint64
	ProductionLineID *uint64
	OperatorID       *uint64
	WelderIDs        []uint64
	Actor            string
}

// ReassembleInput carries the slots to rebind. Shells[i] targets shell
// position i+1; blank entries keep the current binding.
type ReassembleInput struct {
	AlphaCode      string
	PlantID        uint64
	Shells         []string
	LeftHeadLotID  string
	RightHeadLotID string
	OperatorID     *uint64
	WelderIDs      []uint64
	Actor          string
}

type Result struct {
	ID        uint64    `json:"id"`
	AlphaCode string    `json:"alphaCode"`
	Timestamp time.Time `json:"timestamp"`
}

type Component struct {
	Slot       string `json:"slot"`
	NodeID     uint64 `json:"nodeId"`
	Serial     string `json:"serial"`
	Kind       string `json:"kind"`
	HeatNumber string `json:"heatNumber,omitempty"`
	LotNumber  string `json:"lotNumber,omitempty"`
}

type View struct {
	ID               uint64      `json:"id"`
	NodeID           uint64      `json:"nodeId"`
	PlantID          uint64      `json:"plantId"`
	AlphaCode        string      `json:"alphaCode"`
	TankSize         int         `json:"tankSize"`
	WorkCenterID     uint64      `json:"workCenterId"`
	CreatedAt        time.Time   `json:"createdAt"`
	LeftHead         *Component  `json:"leftHead,omitempty"`
	RightHead        *Component  `json:"rightHead,omitempty"`
	Shells           []Component `json:"shells"`
	LeftHeadChanged  bool        `json:"leftHeadChanged"`
	RightHeadChanged bool        `json:"rightHeadChanged"`
	ShellChanged     bool        `json:"shellChanged"`
}

type eventPayload struct {
	Result
	PlantID uint64   `json:"plantId"`
	Slots   []string `json:"slots,omitempty"`
}

func (s *Service) ready(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.genealogy == nil || s.queues == nil || s.reference == nil {
		return errors.New("assembly repositories are required")
	}
	if s.uow == nil {
		return errors.New("assembly unit of work is required")
	}
	return nil
}

func actorName(actor string) string {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "system"
	}
	return actor
}

// checkPeople validates the operator and welder references.
func (s *Service) checkPeople(ctx context.Context, operatorID *uint64, welderIDs []uint64) error {
	if operatorID != nil {
		if _, err := s.reference.GetUser(ctx, *operatorID); err != nil {
			if errors.Is(err, ports.ErrUserNotFound) {
				return errs.Validation("operatorId", "operator %d not found", *operatorID)
			}
			return err
		}
	}
	for _, id := range welderIDs {
		if _, err := s.reference.GetUser(ctx, id); err != nil {
			if errors.Is(err, ports.ErrUserNotFound) {
				return errs.Validation("welderIds", "welder %d not found", id)
			}
			return err
		}
	}
	return nil
}

// resolveShell loads a shell of the given tank size. Whether it is still
// free is decided by claimShells.
func (s *Service) resolveShell(ctx context.Context, serial string, plantID uint64, tankSize int) (ports.Node, error) {
	node, err := s.resolver.ResolveNode(ctx, serial, plantID)
	if err != nil {
		if errs.IsNotFound(err) {
			return ports.Node{}, errs.Validation("shells", "shell %q not found", serial)
		}
		return ports.Node{}, err
	}
	if node.Kind != genealogy.NodeShell {
		return ports.Node{}, errs.Validation("shells", "serial %q is a %s, not a shell", serial, node.Kind)
	}
	if node.Retired() {
		return ports.Node{}, errs.Validation("shells", "shell %q was replaced", serial)
	}
	if node.TankSize != tankSize {
		return ports.Node{}, errs.Validation("shells", "shell %q is tank size %d, want %d", serial, node.TankSize, tankSize)
	}
	return node, nil
}

// claimShells locks the shell rows, in id order, for the rest of the
// transaction and rejects any shell that was replaced or already sits in
// an assembly.
func (s *Service) claimShells(ctx context.Context, shells []ports.Node) error {
	ids := make([]uint64, 0, len(shells))
	for _, n := range shells {
		ids = append(ids, n.ID)
	}
	locked, err := s.genealogy.LockNodes(ctx, ids)
	if err != nil {
		return err
	}
	for _, n := range shells {
		current, ok := locked[n.ID]
		if !ok {
			return errs.Validation("shells", "shell %q not found", n.Serial)
		}
		if current.Retired() {
			return errs.Validation("shells", "shell %q was replaced", n.Serial)
		}
		used, err := s.genealogy.ListEdgesFrom(ctx, n.ID, genealogy.EdgeComponentOf)
		if err != nil {
			return err
		}
		if len(used) > 0 {
			return errs.Validation("shells", "shell %q is already assembled", n.Serial)
		}
	}
	return nil
}

// resolveHeadLot loads a drawn head lot that still has heads left.
func (s *Service) resolveHeadLot(ctx context.Context, field string, lot string, plantID uint64) (ports.Node, error) {
	node, err := s.resolver.ResolveNode(ctx, lot, plantID)
	if err != nil {
		if errs.IsNotFound(err) {
			return ports.Node{}, errs.Validation(field, "head lot %q not found", lot)
		}
		return ports.Node{}, err
	}
	if node.Kind != genealogy.NodeHead {
		return ports.Node{}, errs.Validation(field, "serial %q is a %s, not a head lot", lot, node.Kind)
	}
	if _, err := s.availableDraw(ctx, field, node); err != nil {
		return ports.Node{}, err
	}
	return node, nil
}

func (s *Service) availableDraw(ctx context.Context, field string, node ports.Node) (ports.QueueItem, error) {
	draw, err := s.queues.FindDrawByNode(ctx, node.ID)
	if err != nil {
		if errors.Is(err, ports.ErrQueueItemNotFound) {
			return ports.QueueItem{}, errs.Validation(field, "head lot %q was never drawn from a queue", node.Serial)
		}
		return ports.QueueItem{}, err
	}
	if draw.Retired || node.Retired() {
		return ports.QueueItem{}, errs.Validation(field, "head lot %q has no heads left", node.Serial)
	}
	return draw, nil
}

// consumeHead counts one head against the lot's queue draw.
func (s *Service) consumeHead(ctx context.Context, field string, node ports.Node) error {
	draw, err := s.availableDraw(ctx, field, node)
	if err != nil {
		return err
	}
	next, retired, err := domainqueue.ApplyProgress(draw.Details.Quantity, draw.QuantityCompleted, decimal.NewFromInt(1))
	if err != nil {
		return err
	}
	return s.queues.SetProgress(ctx, draw.ID, next, retired)
}

func (s *Service) publishBestEffort(ctx context.Context, subject string, payload any) {
	if err := s.publisher.Publish(ctx, subject, payload); err != nil {
		logging.Warn(ctx, "assembly event publish failed", slog.String("subject", subject), slog.Any("err", errs.Loggable(err)))
	}
}

func normalizeSerials(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
