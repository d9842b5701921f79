package traceability

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"tanktrace/internal/bootstrap/logging"
	"tanktrace/internal/domain/genealogy"
	"tanktrace/internal/ports"
)

type walkMode uint8

const (
	walkDown walkMode = 1 << iota
	walkUp
)

type step struct {
	node ports.Node
	key  string
	mode walkMode
}

// walker builds the flattened tree breadth first. Every node is expanded at
// most once; later sightings become repeat leaves keyed by parent and edge.
type walker struct {
	repo      ports.GenealogyReadRepository
	max       int
	visited   map[uint64]struct{}
	nodes     []TreeNode
	seen      map[uint64]ports.Node
	queue     []step
	truncated bool
}

// GetLookup builds the genealogy tree around a scanned serial. The root is
// the active assembly currently holding the unit, or the unit itself for
// loose parts and shared batches (coils, head lots).
func (s *Service) GetLookup(ctx context.Context, serial string, plantID uint64) (Lookup, error) {
	if err := s.ready(ctx); err != nil {
		return Lookup{}, err
	}
	started := time.Now()

	scanned, err := s.resolver.ResolveNode(ctx, serial, plantID)
	if err != nil {
		return Lookup{}, err
	}
	root, mode := scanned, walkDown|walkUp
	if scanned.Kind == genealogy.NodeShell || scanned.Kind == genealogy.NodeAssembly {
		asm, found, err := s.resolver.ContainingAssembly(ctx, scanned.ID)
		if err != nil {
			return Lookup{}, err
		}
		if found {
			if root, err = s.genealogy.GetNode(ctx, asm.NodeID); err != nil {
				return Lookup{}, err
			}
			mode = walkDown
		}
	}

	w := &walker{
		repo:    s.genealogy,
		max:     s.maxNodes,
		visited: map[uint64]struct{}{root.ID: {}},
		seen:    map[uint64]ports.Node{root.ID: root},
	}
	rootNode := treeNode(root)
	rootNode.Key = nodeKey(root.ID)
	rootNode.Relation = RelationRoot
	rootNode.Current = !root.Retired()
	w.nodes = append(w.nodes, rootNode)
	w.queue = append(w.queue, step{node: root, key: rootNode.Key, mode: mode})

	for len(w.queue) > 0 && !w.truncated {
		next := w.queue[0]
		w.queue = w.queue[1:]
		if err := w.expand(ctx, next); err != nil {
			return Lookup{}, err
		}
	}

	if err := s.decorate(ctx, w.nodes); err != nil {
		return Lookup{}, err
	}
	events, err := s.events(ctx, w.nodes, w.seen)
	if err != nil {
		return Lookup{}, err
	}

	s.metrics.LookupCompleted(time.Since(started), len(w.nodes))
	if w.truncated {
		logging.Warn(ctx, "lookup truncated",
			slog.String("serial", scanned.Serial),
			slog.Int("max_nodes", s.maxNodes),
		)
	}
	return Lookup{
		Serial:    scanned.Serial,
		RootKey:   rootNode.Key,
		Nodes:     w.nodes,
		Events:    events,
		Truncated: w.truncated,
	}, nil
}

func (w *walker) expand(ctx context.Context, st step) error {
	if st.mode&walkDown != 0 {
		edges, err := w.repo.ListEdgesTo(ctx, st.node.ID, genealogy.EdgeComponentOf, genealogy.EdgeProducedFrom)
		if err != nil {
			return err
		}
		slots := componentSlots(edges)
		if err := w.load(ctx, edges, fromID); err != nil {
			return err
		}
		for _, e := range edges {
			if e.FromNodeID == nil {
				continue
			}
			rel, current := RelationProducedFrom, true
			if e.Kind == genealogy.EdgeComponentOf {
				rel = RelationComponentOf
				current = genealogy.IsCurrent(slots, genealogy.SlotEdge{EdgeID: e.ID, NodeID: *e.FromNodeID, Slot: e.Slot})
			}
			w.attach(st.key, w.seen[*e.FromNodeID], e, rel, current, walkDown)
		}
	}

	if st.mode&walkUp != 0 {
		edges, err := w.repo.ListEdgesFrom(ctx, st.node.ID, genealogy.EdgeComponentOf, genealogy.EdgeProducedFrom)
		if err != nil {
			return err
		}
		if err := w.load(ctx, edges, toID); err != nil {
			return err
		}
		for _, e := range edges {
			if e.ToNodeID == nil {
				continue
			}
			current := true
			if e.Kind == genealogy.EdgeComponentOf {
				siblings, err := w.repo.ListEdgesTo(ctx, *e.ToNodeID, genealogy.EdgeComponentOf)
				if err != nil {
					return err
				}
				current = genealogy.IsCurrent(componentSlots(siblings), genealogy.SlotEdge{EdgeID: e.ID, NodeID: st.node.ID, Slot: e.Slot})
			}
			w.attach(st.key, w.seen[*e.ToNodeID], e, RelationConsumedInto, current, walkUp)
		}
	}

	return w.replacementLeaves(ctx, st)
}

// replacementLeaves lists replaces edges on both sides of the node as
// history. They are never expanded.
func (w *walker) replacementLeaves(ctx context.Context, st step) error {
	successors, err := w.repo.ListEdgesFrom(ctx, st.node.ID, genealogy.EdgeReplaces)
	if err != nil {
		return err
	}
	predecessors, err := w.repo.ListEdgesTo(ctx, st.node.ID, genealogy.EdgeReplaces)
	if err != nil {
		return err
	}
	if err := w.load(ctx, successors, toID); err != nil {
		return err
	}
	if err := w.load(ctx, predecessors, fromID); err != nil {
		return err
	}
	for _, e := range successors {
		if e.ToNodeID != nil {
			w.leaf(st.key, w.seen[*e.ToNodeID], e, RelationReplacedBy)
		}
	}
	for _, e := range predecessors {
		if e.FromNodeID != nil {
			w.leaf(st.key, w.seen[*e.FromNodeID], e, RelationReplaces)
		}
	}
	return nil
}

func (w *walker) attach(parentKey string, child ports.Node, e ports.Edge, relation string, current bool, mode walkMode) {
	if w.full() {
		return
	}
	tn := edgeNode(parentKey, child, e, relation)
	tn.Current = current
	if _, dup := w.visited[child.ID]; dup {
		tn.Key = edgeKey(parentKey, e.ID)
		tn.Repeat = true
		w.nodes = append(w.nodes, tn)
		return
	}
	w.visited[child.ID] = struct{}{}
	tn.Key = nodeKey(child.ID)
	w.nodes = append(w.nodes, tn)
	w.queue = append(w.queue, step{node: child, key: tn.Key, mode: mode})
}

func (w *walker) leaf(parentKey string, n ports.Node, e ports.Edge, relation string) {
	if w.full() {
		return
	}
	tn := edgeNode(parentKey, n, e, relation)
	tn.Key = edgeKey(parentKey, e.ID)
	_, tn.Repeat = w.visited[n.ID]
	w.nodes = append(w.nodes, tn)
}

func (w *walker) full() bool {
	if len(w.nodes) >= w.max {
		w.truncated = true
	}
	return w.truncated
}

// load fetches the nodes on the given side of the edges that are not cached yet.
func (w *walker) load(ctx context.Context, edges []ports.Edge, side func(ports.Edge) *uint64) error {
	var ids []uint64
	for _, e := range edges {
		id := side(e)
		if id == nil {
			continue
		}
		if _, ok := w.seen[*id]; !ok {
			ids = append(ids, *id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	nodes, err := w.repo.GetNodes(ctx, ids)
	if err != nil {
		return err
	}
	for id, n := range nodes {
		w.seen[id] = n
	}
	return nil
}

func fromID(e ports.Edge) *uint64 { return e.FromNodeID }
func toID(e ports.Edge) *uint64   { return e.ToNodeID }

func componentSlots(edges []ports.Edge) []genealogy.SlotEdge {
	out := make([]genealogy.SlotEdge, 0, len(edges))
	for _, e := range edges {
		if e.Kind != genealogy.EdgeComponentOf || e.FromNodeID == nil {
			continue
		}
		out = append(out, genealogy.SlotEdge{EdgeID: e.ID, NodeID: *e.FromNodeID, Slot: e.Slot})
	}
	return out
}

func nodeKey(id uint64) string { return "n" + strconv.FormatUint(id, 10) }

// edgeKey names a leaf. A replaces edge is listed from both of its ends, so
// the parent is part of the key.
func edgeKey(parentKey string, id uint64) string {
	return parentKey + ".e" + strconv.FormatUint(id, 10)
}

func treeNode(n ports.Node) TreeNode {
	return TreeNode{
		Quantity:   decimal.Zero,
		NodeID:     n.ID,
		Serial:     n.Serial,
		Kind:       string(n.Kind),
		PlantID:    n.PlantID,
		TankSize:   n.TankSize,
		HeatNumber: n.HeatNumber,
		CoilNumber: n.CoilNumber,
		LotNumber:  n.LotNumber,
		Replaced:   n.ReplacedByID != nil,
		CreatedAt:  n.CreatedAt,
	}
}

func edgeNode(parentKey string, n ports.Node, e ports.Edge, relation string) TreeNode {
	tn := treeNode(n)
	tn.ParentKey = parentKey
	tn.Relation = relation
	tn.Slot = e.Slot
	tn.Quantity = e.Quantity
	tn.Location = e.Location
	return tn
}

// decorate joins product, vendor, defect and annotation data onto the tree.
func (s *Service) decorate(ctx context.Context, nodes []TreeNode) error {
	var productIDs, vendorIDs, nodeIDs []uint64
	seen := map[uint64]ports.Node{}
	for _, tn := range nodes {
		nodeIDs = append(nodeIDs, tn.NodeID)
	}
	full, err := s.genealogy.GetNodes(ctx, nodeIDs)
	if err != nil {
		return err
	}
	for id, n := range full {
		seen[id] = n
		if n.ProductID != nil {
			productIDs = append(productIDs, *n.ProductID)
		}
		for _, v := range []*uint64{n.MillVendorID, n.ProcessorVendorID, n.HeadVendorID} {
			if v != nil {
				vendorIDs = append(vendorIDs, *v)
			}
		}
	}

	products, err := s.reference.ProductsByID(ctx, productIDs)
	if err != nil {
		return err
	}
	vendors, err := s.reference.VendorsByID(ctx, vendorIDs)
	if err != nil {
		return err
	}
	defects, err := s.reference.CountDefects(ctx, nodeIDs)
	if err != nil {
		return err
	}
	annotations, err := s.reference.CountAnnotations(ctx, nodeIDs)
	if err != nil {
		return err
	}

	vendorName := func(id *uint64) string {
		if id == nil {
			return ""
		}
		return vendors[*id].Name
	}
	for i := range nodes {
		tn := &nodes[i]
		n := seen[tn.NodeID]
		if n.ProductID != nil {
			p := products[*n.ProductID]
			tn.PartNumber = p.PartNumber
			tn.Product = p.Description
		}
		tn.MillVendor = vendorName(n.MillVendorID)
		tn.ProcessorVendor = vendorName(n.ProcessorVendorID)
		tn.HeadVendor = vendorName(n.HeadVendorID)
		tn.Defects = defects[tn.NodeID]
		tn.Annotations = annotations[tn.NodeID]
	}
	return nil
}

// events lists every production record of the tree's nodes, oldest first.
func (s *Service) events(ctx context.Context, nodes []TreeNode, byID map[uint64]ports.Node) ([]Event, error) {
	ids := make([]uint64, 0, len(nodes))
	dedup := make(map[uint64]struct{}, len(nodes))
	for _, tn := range nodes {
		if _, ok := dedup[tn.NodeID]; ok {
			continue
		}
		dedup[tn.NodeID] = struct{}{}
		ids = append(ids, tn.NodeID)
	}
	records, err := s.genealogy.ListProductionRecords(ctx, ids)
	if err != nil {
		return nil, err
	}

	var wcIDs, userIDs []uint64
	for _, r := range records {
		wcIDs = append(wcIDs, r.WorkCenterID)
		if r.OperatorID != nil {
			userIDs = append(userIDs, *r.OperatorID)
		}
		userIDs = append(userIDs, r.WelderIDs...)
	}
	workCenters, err := s.reference.WorkCentersByID(ctx, wcIDs)
	if err != nil {
		return nil, err
	}
	users, err := s.reference.UsersByID(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	out := make([]Event, 0, len(records))
	for _, r := range records {
		ev := Event{
			ID:         r.ID,
			NodeID:     r.NodeID,
			Serial:     byID[r.NodeID].Serial,
			Action:     r.Action,
			Result:     r.Result,
			Notes:      r.Notes,
			WorkCenter: workCenters[r.WorkCenterID].Name,
			CreatedAt:  r.CreatedAt,
		}
		if r.OperatorID != nil {
			ev.Operator = users[*r.OperatorID].Name
		}
		for _, id := range r.WelderIDs {
			ev.Welders = append(ev.Welders, users[id].Name)
		}
		out = append(out, ev)
	}
	return out, nil
}
