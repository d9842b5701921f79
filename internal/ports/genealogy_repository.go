package ports

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"tanktrace/internal/domain/genealogy"
)

var (
	ErrNodeNotFound     = errors.New("node not found")
	ErrAssemblyNotFound = errors.New("assembly not found")
	ErrNodeReplaced     = errors.New("node already replaced")
	ErrAlphaCodeRace    = errors.New("alpha code counter moved during allocation")
)

type Node struct {
	ID                uint64
	Serial            string
	Kind              genealogy.NodeKind
	PlantID           uint64
	ProductID         *uint64
	MillVendorID      *uint64
	ProcessorVendorID *uint64
	HeadVendorID      *uint64
	HeatNumber        string
	CoilNumber        string
	LotNumber         string
	TankSize          int
	LeftHeadChanged   bool
	RightHeadChanged  bool
	ShellChanged      bool
	Obsolete          bool
	ReplacedByID      *uint64
	CreatedBy         string
	CreatedAt         time.Time
	ModifiedBy        string
	ModifiedAt        time.Time
}

// Retired reports whether the node was superseded or made obsolete.
func (n Node) Retired() bool {
	return n.ReplacedByID != nil || n.Obsolete
}

type Edge struct {
	ID                 uint64
	FromNodeID         *uint64
	ToNodeID           *uint64
	Kind               genealogy.EdgeKind
	Slot               string
	Quantity           decimal.Decimal
	Location           string
	ProductionRecordID *uint64
	CreatedAt          time.Time
}

type Assembly struct {
	ID               uint64
	NodeID           uint64
	PlantID          uint64
	AlphaCode        string
	TankSize         int
	WorkCenterID     uint64
	AssetID          *uint64
	ProductionLineID *uint64
	OperatorID       *uint64
	CreatedAt        time.Time
	Active           bool
}

type ProductionRecord struct {
	ID               uint64
	NodeID           uint64
	WorkCenterID     uint64
	AssetID          *uint64
	ProductionLineID *uint64
	OperatorID       *uint64
	WelderIDs        []uint64
	Action           string
	Result           string
	Notes            string
	CreatedAt        time.Time
}

// SeamFlags marks which round-seam slots of an assembly were swapped.
// Only true values are applied; flags are never cleared.
type SeamFlags struct {
	LeftHead  bool
	RightHead bool
	Shell     bool
}

type GenealogyReadRepository interface {
	GetNode(ctx context.Context, id uint64) (Node, error)
	GetNodes(ctx context.Context, ids []uint64) (map[uint64]Node, error)
	// FindNodesBySerial returns every node with the serial, newest first.
	// A zero plantID searches all plants.
	FindNodesBySerial(ctx context.Context, serial string, plantID uint64) ([]Node, error)
	ListEdgesTo(ctx context.Context, nodeID uint64, kinds ...genealogy.EdgeKind) ([]Edge, error)
	ListEdgesFrom(ctx context.Context, nodeID uint64, kinds ...genealogy.EdgeKind) ([]Edge, error)
	// GetActiveAssembly locks the assembly row for the rest of the
	// enclosing transaction, if any.
	GetActiveAssembly(ctx context.Context, plantID uint64, alphaCode string) (Assembly, error)
	GetAssemblyByNode(ctx context.Context, nodeID uint64) (Assembly, error)
	ListProductionRecords(ctx context.Context, nodeIDs []uint64) ([]ProductionRecord, error)
}

type GenealogyRepository interface {
	GenealogyReadRepository
	CreateNode(ctx context.Context, node Node) (Node, error)
	// LockNodes re-reads the nodes and locks them, in id order, until the
	// enclosing transaction ends. Missing ids are absent from the result.
	LockNodes(ctx context.Context, ids []uint64) (map[uint64]Node, error)
	SetReplacedBy(ctx context.Context, nodeID uint64, replacedByID uint64, actor string, at time.Time) error
	MarkSeamChanges(ctx context.Context, nodeID uint64, flags SeamFlags, actor string, at time.Time) error
	AppendEdge(ctx context.Context, edge Edge) (Edge, error)
	// AllocateAlphaCode advances the plant counter. It must run inside the
	// transaction that creates the assembly.
	AllocateAlphaCode(ctx context.Context, plantID uint64) (string, error)
	CreateAssembly(ctx context.Context, assembly Assembly) (Assembly, error)
	CreateProductionRecord(ctx context.Context, record ProductionRecord) (ProductionRecord, error)
}
