package traceability

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tanktrace/internal/errs"
	"tanktrace/internal/ports"
	"tanktrace/internal/usecase/identity"
)

const defaultMaxNodes = 5000

// LookupRenderer writes a lookup in a document format.
type LookupRenderer interface {
	RenderLookup(w io.Writer, lookup Lookup) error
}

type Service struct {
	genealogy ports.GenealogyRepository
	queues    ports.QueueRepository
	reference ports.ReferenceRepository
	uow       ports.UnitOfWork
	resolver  *identity.Resolver
	metrics   ports.Metrics
	renderer  LookupRenderer
	maxNodes  int
	now       func() time.Time
}

func NewService(
	genealogy ports.GenealogyRepository,
	queues ports.QueueRepository,
	reference ports.ReferenceRepository,
	uow ports.UnitOfWork,
	resolver *identity.Resolver,
	metrics ports.Metrics,
	renderer LookupRenderer,
	maxNodes int,
) *Service {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if resolver == nil {
		resolver = identity.NewResolver(genealogy)
	}
	if maxNodes <= 0 {
		maxNodes = defaultMaxNodes
	}
	return &Service{
		genealogy: genealogy,
		queues:    queues,
		reference: reference,
		uow:       uow,
		resolver:  resolver,
		metrics:   metrics,
		renderer:  renderer,
		maxNodes:  maxNodes,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Component is one live slot of an assembly as seen from a scanned unit.
type Component struct {
	Slot       string `json:"slot"`
	NodeID     uint64 `json:"nodeId"`
	Serial     string `json:"serial"`
	HeatNumber string `json:"heatNumber,omitempty"`
	LotNumber  string `json:"lotNumber,omitempty"`
}

type ExistingAssembly struct {
	ID        uint64      `json:"id"`
	NodeID    uint64      `json:"nodeId"`
	AlphaCode string      `json:"alphaCode"`
	TankSize  int         `json:"tankSize"`
	LeftHead  *Component  `json:"leftHead,omitempty"`
	RightHead *Component  `json:"rightHead,omitempty"`
	Shells    []Component `json:"shells"`
}

// SerialContext is the pre-flight view of a scanned serial.
type SerialContext struct {
	Serial           string            `json:"serial"`
	NodeID           uint64            `json:"nodeId"`
	Kind             string            `json:"kind"`
	TankSize         int               `json:"tankSize"`
	ShellSize        string            `json:"shellSize,omitempty"`
	ReplacedBy       string            `json:"replacedBy,omitempty"`
	ExistingAssembly *ExistingAssembly `json:"existingAssembly,omitempty"`
}

// Tree relations.
const (
	RelationRoot         = "root"
	RelationComponentOf  = "component-of"
	RelationConsumedInto = "consumed-into"
	RelationProducedFrom = "produced-from"
	RelationReplacedBy   = "replaced-by"
	RelationReplaces     = "replaces"
)

// TreeNode is one row of the flattened genealogy tree. Repeat marks a node
// that appears elsewhere in the tree and is not expanded here.
type TreeNode struct {
	Key             string          `json:"key"`
	ParentKey       string          `json:"parentKey,omitempty"`
	Relation        string          `json:"relation"`
	Slot            string          `json:"slot,omitempty"`
	Current         bool            `json:"current"`
	Repeat          bool            `json:"repeat,omitempty"`
	Quantity        decimal.Decimal `json:"quantity"`
	Location        string          `json:"location,omitempty"`
	NodeID          uint64          `json:"nodeId"`
	Serial          string          `json:"serial"`
	Kind            string          `json:"kind"`
	PlantID         uint64          `json:"plantId"`
	TankSize        int             `json:"tankSize,omitempty"`
	HeatNumber      string          `json:"heatNumber,omitempty"`
	CoilNumber      string          `json:"coilNumber,omitempty"`
	LotNumber       string          `json:"lotNumber,omitempty"`
	PartNumber      string          `json:"partNumber,omitempty"`
	Product         string          `json:"product,omitempty"`
	MillVendor      string          `json:"millVendor,omitempty"`
	ProcessorVendor string          `json:"processorVendor,omitempty"`
	HeadVendor      string          `json:"headVendor,omitempty"`
	Replaced        bool            `json:"replaced"`
	Defects         int             `json:"defects"`
	Annotations     int             `json:"annotations"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Event is one production record of a node in the tree.
type Event struct {
	ID         uint64    `json:"id"`
	NodeID     uint64    `json:"nodeId"`
	Serial     string    `json:"serial"`
	Action     string    `json:"action"`
	Result     string    `json:"result,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	WorkCenter string    `json:"workCenter"`
	Operator   string    `json:"operator,omitempty"`
	Welders    []string  `json:"welders,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Lookup struct {
	Serial    string     `json:"serial"`
	RootKey   string     `json:"rootKey"`
	Nodes     []TreeNode `json:"nodes"`
	Events    []Event    `json:"events"`
	Truncated bool       `json:"truncated,omitempty"`
}

type EventInput struct {
	Serial       string
	PlantID      uint64
	WorkCenterID uint64
	OperatorID   *uint64
	WelderIDs    []uint64
	Action       string
	Result       string
	Notes        string
}

type RegisterShellInput struct {
	Serial       string
	CoilSerial   string
	WorkCenterID uint64
	ProductID    uint64
	OperatorID   *uint64
	WelderIDs    []uint64
	Actor        string
}

func (s *Service) ready(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.genealogy == nil || s.reference == nil {
		return errors.New("traceability repositories are required")
	}
	return nil
}

func (s *Service) workCenter(ctx context.Context, id uint64) (ports.WorkCenter, error) {
	wc, err := s.reference.GetWorkCenter(ctx, id)
	if err != nil {
		if errors.Is(err, ports.ErrWorkCenterNotFound) {
			return ports.WorkCenter{}, errs.Validation("workCenterId", "work center %d not found", id)
		}
		return ports.WorkCenter{}, err
	}
	return wc, nil
}

func (s *Service) checkPeople(ctx context.Context, operatorID *uint64, welderIDs []uint64) error {
	ids := append([]uint64(nil), welderIDs...)
	if operatorID != nil {
		ids = append(ids, *operatorID)
	}
	if len(ids) == 0 {
		return nil
	}
	users, err := s.reference.UsersByID(ctx, ids)
	if err != nil {
		return err
	}
	if operatorID != nil {
		if _, ok := users[*operatorID]; !ok {
			return errs.Validation("operatorId", "operator %d not found", *operatorID)
		}
	}
	for _, id := range welderIDs {
		if _, ok := users[id]; !ok {
			return errs.Validation("welderIds", "welder %d not found", id)
		}
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
