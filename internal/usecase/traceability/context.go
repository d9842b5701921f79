package traceability

import (
	"context"
	"errors"

	"tanktrace/internal/domain/genealogy"
	"tanktrace/internal/ports"
)

// GetContext tells a fit-up or round-seam station what a scanned serial is
// and which assembly, if any, currently holds it. It never writes.
func (s *Service) GetContext(ctx context.Context, serial string, plantID uint64) (SerialContext, error) {
	if err := s.ready(ctx); err != nil {
		return SerialContext{}, err
	}
	node, err := s.resolver.ResolveNode(ctx, serial, plantID)
	if err != nil {
		return SerialContext{}, err
	}

	out := SerialContext{
		Serial:   node.Serial,
		NodeID:   node.ID,
		Kind:     string(node.Kind),
		TankSize: node.TankSize,
	}
	if node.ProductID != nil {
		product, err := s.reference.GetProduct(ctx, *node.ProductID)
		if err != nil && !errors.Is(err, ports.ErrProductNotFound) {
			return SerialContext{}, err
		}
		out.ShellSize = product.ShellSize
		if out.TankSize == 0 {
			out.TankSize = product.TankSize
		}
	}
	if node.ReplacedByID != nil {
		final, err := s.resolver.CurrentOf(ctx, node)
		if err != nil {
			return SerialContext{}, err
		}
		if final.ID != node.ID {
			out.ReplacedBy = final.Serial
		}
	}

	asm, found, err := s.resolver.ContainingAssembly(ctx, node.ID)
	if err != nil {
		return SerialContext{}, err
	}
	if !found && node.Kind == genealogy.NodeAssembly {
		asm, err = s.genealogy.GetAssemblyByNode(ctx, node.ID)
		switch {
		case err == nil:
			found = asm.Active
		case errors.Is(err, ports.ErrAssemblyNotFound):
		default:
			return SerialContext{}, err
		}
	}
	if !found {
		return out, nil
	}

	bindings, err := s.resolver.Bindings(ctx, asm.NodeID)
	if err != nil {
		return SerialContext{}, err
	}
	existing := &ExistingAssembly{
		ID:        asm.ID,
		NodeID:    asm.NodeID,
		AlphaCode: asm.AlphaCode,
		TankSize:  asm.TankSize,
		Shells:    []Component{},
	}
	for _, b := range bindings {
		c := Component{
			Slot:       b.Slot,
			NodeID:     b.Node.ID,
			Serial:     b.Node.Serial,
			HeatNumber: b.Node.HeatNumber,
			LotNumber:  b.Node.LotNumber,
		}
		switch b.Slot {
		case genealogy.SlotLeftHead:
			existing.LeftHead = &c
		case genealogy.SlotRightHead:
			existing.RightHead = &c
		default:
			existing.Shells = append(existing.Shells, c)
		}
	}
	out.ExistingAssembly = existing
	return out, nil
}
