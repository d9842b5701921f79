package genealogy

import (
	"fmt"
	"strconv"
	"strings"
)

type NodeKind string

const (
	NodeCoil     NodeKind = "coil"
	NodeHead     NodeKind = "head"
	NodeShell    NodeKind = "shell"
	NodeAssembly NodeKind = "assembly"
)

func (k NodeKind) Valid() bool {
	switch k {
	case NodeCoil, NodeHead, NodeShell, NodeAssembly:
		return true
	}
	return false
}

type EdgeKind string

const (
	EdgeComponentOf  EdgeKind = "component-of"
	EdgeReplaces     EdgeKind = "replaces"
	EdgeProducedFrom EdgeKind = "produced-from"
)

// Production record actions.
const (
	ActionDrawn       = "drawn"
	ActionRolled      = "rolled"
	ActionAssembled   = "assembled"
	ActionReassembled = "reassembled"
	ActionCorrected   = "corrected"
)

const (
	SlotLeftHead  = "left-head"
	SlotRightHead = "right-head"

	shellSlotPrefix = "shell-"
)

// ShellSlot returns the slot name of the 1-based shell position.
func ShellSlot(position int) string {
	return shellSlotPrefix + strconv.Itoa(position)
}

// ShellPosition parses a shell slot back into its 1-based position.
func ShellPosition(slot string) (int, bool) {
	if !strings.HasPrefix(slot, shellSlotPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(slot, shellSlotPrefix))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func IsHeadSlot(slot string) bool {
	return slot == SlotLeftHead || slot == SlotRightHead
}

// slotRank orders left head, right head, then shells by position.
func slotRank(slot string) int {
	switch slot {
	case SlotLeftHead:
		return 0
	case SlotRightHead:
		return 1
	}
	if n, ok := ShellPosition(slot); ok {
		return 1 + n
	}
	return 1 << 30
}

// LessSlot reports whether slot a sorts before slot b.
func LessSlot(a, b string) bool {
	ra, rb := slotRank(a), slotRank(b)
	if ra != rb {
		return ra < rb
	}
	return a < b
}

// NormalizeAlphaCode trims and upper-cases a scanned alpha code.
func NormalizeAlphaCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// FormatAlphaCode renders the n-th alpha code of a plant.
func FormatAlphaCode(prefix string, n uint64) string {
	prefix = NormalizeAlphaCode(prefix)
	if prefix == "" {
		prefix = "A"
	}
	return fmt.Sprintf("%s%d", prefix, n)
}
