package identity

import (
	"context"
	"errors"
	"strings"

	"tanktrace/internal/domain/genealogy"
	"tanktrace/internal/errs"
	"tanktrace/internal/ports"
)

// Resolver maps scanned serials to nodes and projects assembly membership.
type Resolver struct {
	repo ports.GenealogyReadRepository
}

func NewResolver(repo ports.GenealogyReadRepository) *Resolver {
	return &Resolver{repo: repo}
}

// ResolveNode returns the current node carrying serial. Among candidates the
// newest live node wins, then the newest obsolete one that was never
// replaced; if every candidate was replaced the newest one is returned so
// history stays reachable. plantID 0 searches all plants.
func (r *Resolver) ResolveNode(ctx context.Context, serial string, plantID uint64) (ports.Node, error) {
	if ctx == nil {
		return ports.Node{}, errors.New("context is required")
	}
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return ports.Node{}, errs.Validation("serial", "serial is required")
	}

	candidates, err := r.repo.FindNodesBySerial(ctx, serial, plantID)
	if err != nil {
		return ports.Node{}, err
	}
	if len(candidates) == 0 {
		return ports.Node{}, errs.NotFound("serial %q not found", serial)
	}

	for _, n := range candidates {
		if !n.Retired() {
			return n, nil
		}
	}
	// An obsolete node nothing replaced is still the end of its own chain.
	for _, n := range candidates {
		if n.ReplacedByID == nil {
			return n, nil
		}
	}
	return candidates[0], nil
}

// CurrentOf follows replaced-by links to the last node of the chain. A
// revisited id ends the walk at the node reached so far.
func (r *Resolver) CurrentOf(ctx context.Context, node ports.Node) (ports.Node, error) {
	visited := map[uint64]struct{}{node.ID: {}}
	current := node
	for current.ReplacedByID != nil {
		next := *current.ReplacedByID
		if _, seen := visited[next]; seen {
			return current, nil
		}
		visited[next] = struct{}{}

		n, err := r.repo.GetNode(ctx, next)
		if err != nil {
			if errors.Is(err, ports.ErrNodeNotFound) {
				return current, nil
			}
			return ports.Node{}, err
		}
		current = n
	}
	return current, nil
}

// Binding is one live slot of an assembly.
type Binding struct {
	Slot   string
	EdgeID uint64
	Node   ports.Node
}

// Bindings returns the current component set of the assembly node, ordered
// left head, right head, then shells by position.
func (r *Resolver) Bindings(ctx context.Context, assemblyNodeID uint64) ([]Binding, error) {
	edges, err := r.repo.ListEdgesTo(ctx, assemblyNodeID, genealogy.EdgeComponentOf)
	if err != nil {
		return nil, err
	}

	current := genealogy.CurrentBindings(slotEdges(edges))
	ids := make([]uint64, 0, len(current))
	for _, e := range current {
		ids = append(ids, e.NodeID)
	}
	nodes, err := r.repo.GetNodes(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]Binding, 0, len(current))
	for _, e := range current {
		n, ok := nodes[e.NodeID]
		if !ok {
			continue
		}
		out = append(out, Binding{Slot: e.Slot, EdgeID: e.EdgeID, Node: n})
	}
	return out, nil
}

// ContainingAssembly returns the active assembly whose current binding
// includes the node. found is false when the node is not bound anywhere.
func (r *Resolver) ContainingAssembly(ctx context.Context, nodeID uint64) (ports.Assembly, bool, error) {
	up, err := r.repo.ListEdgesFrom(ctx, nodeID, genealogy.EdgeComponentOf)
	if err != nil {
		return ports.Assembly{}, false, err
	}

	// Newest membership first.
	for i := len(up) - 1; i >= 0; i-- {
		e := up[i]
		if e.ToNodeID == nil {
			continue
		}
		asm, err := r.repo.GetAssemblyByNode(ctx, *e.ToNodeID)
		if err != nil {
			if errors.Is(err, ports.ErrAssemblyNotFound) {
				continue
			}
			return ports.Assembly{}, false, err
		}
		if !asm.Active {
			continue
		}

		siblings, err := r.repo.ListEdgesTo(ctx, asm.NodeID, genealogy.EdgeComponentOf)
		if err != nil {
			return ports.Assembly{}, false, err
		}
		if genealogy.IsCurrent(slotEdges(siblings), genealogy.SlotEdge{EdgeID: e.ID, NodeID: nodeID, Slot: e.Slot}) {
			return asm, true, nil
		}
	}
	return ports.Assembly{}, false, nil
}

func slotEdges(edges []ports.Edge) []genealogy.SlotEdge {
	out := make([]genealogy.SlotEdge, 0, len(edges))
	for _, e := range edges {
		if e.FromNodeID == nil {
			continue
		}
		out = append(out, genealogy.SlotEdge{EdgeID: e.ID, NodeID: *e.FromNodeID, Slot: e.Slot})
	}
	return out
}
