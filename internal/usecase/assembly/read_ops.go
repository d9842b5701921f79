package assembly

import (
	"context"
	"errors"

	"tanktrace/internal/domain/genealogy"
	"tanktrace/internal/errs"
	"tanktrace/internal/ports"
)

// Get returns the active assembly with its current components.
func (s *Service) Get(ctx context.Context, plantID uint64, alphaCode string) (View, error) {
	if err := s.ready(ctx); err != nil {
		return View{}, err
	}
	alpha := genealogy.NormalizeAlphaCode(alphaCode)
	if alpha == "" {
		return View{}, errs.Validation("alphaCode", "alpha code is required")
	}

	asm, err := s.genealogy.GetActiveAssembly(ctx, plantID, alpha)
	if err != nil {
		if errors.Is(err, ports.ErrAssemblyNotFound) {
			return View{}, errs.NotFound("assembly %s not found or inactive", alpha)
		}
		return View{}, err
	}
	node, err := s.genealogy.GetNode(ctx, asm.NodeID)
	if err != nil {
		return View{}, err
	}
	bindings, err := s.resolver.Bindings(ctx, asm.NodeID)
	if err != nil {
		return View{}, err
	}

	view := View{
		ID:               asm.ID,
		NodeID:           asm.NodeID,
		PlantID:          asm.PlantID,
		AlphaCode:        asm.AlphaCode,
		TankSize:         asm.TankSize,
		WorkCenterID:     asm.WorkCenterID,
		CreatedAt:        asm.CreatedAt,
		Shells:           []Component{},
		LeftHeadChanged:  node.LeftHeadChanged,
		RightHeadChanged: node.RightHeadChanged,
		ShellChanged:     node.ShellChanged,
	}
	for _, b := range bindings {
		c := Component{
			Slot:       b.Slot,
			NodeID:     b.Node.ID,
			Serial:     b.Node.Serial,
			Kind:       string(b.Node.Kind),
			HeatNumber: b.Node.HeatNumber,
			LotNumber:  b.Node.LotNumber,
		}
		switch b.Slot {
		case genealogy.SlotLeftHead:
			view.LeftHead = &c
		case genealogy.SlotRightHead:
			view.RightHead = &c
		default:
			view.Shells = append(view.Shells, c)
		}
	}
	return view, nil
}
