package genealogy

import "sort"

// SlotEdge is a component-of edge reduced to what the binding projection needs.
type SlotEdge struct {
	EdgeID uint64
	NodeID uint64
	Slot   string
}

// CurrentBindings projects the active component set of an assembly from its
// component-of edges: for every slot the edge with the highest id wins.
// The result is ordered by slot.
func CurrentBindings(edges []SlotEdge) []SlotEdge {
	latest := make(map[string]SlotEdge, len(edges))
	for _, e := range edges {
		if e.Slot == "" {
			continue
		}
		if cur, ok := latest[e.Slot]; !ok || e.EdgeID > cur.EdgeID {
			latest[e.Slot] = e
		}
	}

	out := make([]SlotEdge, 0, len(latest))
	for _, e := range latest {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return LessSlot(out[i].Slot, out[j].Slot) })
	return out
}

// IsCurrent reports whether edge e is the live binding for its slot.
func IsCurrent(edges []SlotEdge, e SlotEdge) bool {
	for _, cur := range CurrentBindings(edges) {
		if cur.Slot == e.Slot {
			return cur.EdgeID == e.EdgeID
		}
	}
	return false
}

// SlotChange describes one slot rebinding. OldNodeID is zero for a new slot.
type SlotChange struct {
	Slot      string
	OldNodeID uint64
	NewNodeID uint64
}

// PlanSlotChanges compares requested bindings (slot -> node) against the
// current ones and returns the slots whose binding actually changes.
// Requests that repeat the current binding are dropped.
func PlanSlotChanges(current map[string]uint64, requested map[string]uint64) []SlotChange {
	changes := make([]SlotChange, 0, len(requested))
	for slot, next := range requested {
		if next == 0 {
			continue
		}
		prev := current[slot]
		if prev == next {
			continue
		}
		changes = append(changes, SlotChange{Slot: slot, OldNodeID: prev, NewNodeID: next})
	}
	sort.Slice(changes, func(i, j int) bool { return LessSlot(changes[i].Slot, changes[j].Slot) })
	return changes
}
