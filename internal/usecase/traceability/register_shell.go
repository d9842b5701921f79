package traceability

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"tanktrace/internal/bootstrap/logging"
	"tanktrace/internal/domain/genealogy"
	"tanktrace/internal/errs"
	"tanktrace/internal/ports"
)

// RegisterShell records a shell rolled from a drawn coil. The shell node
// carries the coil's heat and vendors and the product's tank size.
func (s *Service) RegisterShell(ctx context.Context, input RegisterShellInput) (ports.Node, error) {
	if err := s.ready(ctx); err != nil {
		return ports.Node{}, err
	}
	if s.queues == nil || s.uow == nil {
		return ports.Node{}, errors.New("queue repository and unit of work are required")
	}

	serial := strings.TrimSpace(input.Serial)
	if serial == "" {
		return ports.Node{}, errs.Validation("serial", "serial is required")
	}
	if strings.TrimSpace(input.CoilSerial) == "" {
		return ports.Node{}, errs.Validation("coilSerial", "coil serial is required")
	}
	wc, err := s.workCenter(ctx, input.WorkCenterID)
	if err != nil {
		return ports.Node{}, err
	}
	product, err := s.reference.GetProduct(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, ports.ErrProductNotFound) {
			return ports.Node{}, errs.Validation("productId", "product %d not found", input.ProductID)
		}
		return ports.Node{}, err
	}
	if product.TankSize <= 0 {
		return ports.Node{}, errs.Validation("productId", "product %s has no tank size", product.PartNumber)
	}
	if err := s.checkPeople(ctx, input.OperatorID, input.WelderIDs); err != nil {
		return ports.Node{}, err
	}

	actor := actorName(input.Actor)
	now := s.now()
	var shell ports.Node
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		coil, err := s.resolver.ResolveNode(txCtx, input.CoilSerial, wc.PlantID)
		if err != nil {
			if errs.IsNotFound(err) {
				return errs.Validation("coilSerial", "coil %q not found", input.CoilSerial)
			}
			return err
		}
		if coil.Kind != genealogy.NodeCoil {
			return errs.Validation("coilSerial", "serial %q is a %s, not a coil", coil.Serial, coil.Kind)
		}
		draw, err := s.queues.FindDrawByNode(txCtx, coil.ID)
		if err != nil {
			if errors.Is(err, ports.ErrQueueItemNotFound) {
				return errs.Validation("coilSerial", "coil %q was never drawn from a queue", coil.Serial)
			}
			return err
		}
		if draw.Retired || coil.Retired() {
			return errs.Validation("coilSerial", "coil %q is used up", coil.Serial)
		}

		existing, err := s.genealogy.FindNodesBySerial(txCtx, serial, wc.PlantID)
		if err != nil {
			return err
		}
		for _, n := range existing {
			if !n.Retired() {
				return errs.Conflict("serial %q is already registered", serial)
			}
		}

		shell, err = s.genealogy.CreateNode(txCtx, ports.Node{
			Serial:            serial,
			Kind:              genealogy.NodeShell,
			PlantID:           wc.PlantID,
			ProductID:         &product.ID,
			MillVendorID:      coil.MillVendorID,
			ProcessorVendorID: coil.ProcessorVendorID,
			HeatNumber:        coil.HeatNumber,
			CoilNumber:        coil.CoilNumber,
			TankSize:          product.TankSize,
			CreatedBy:         actor,
			CreatedAt:         now,
		})
		if err != nil {
			return err
		}
		record, err := s.genealogy.CreateProductionRecord(txCtx, ports.ProductionRecord{
			NodeID:           shell.ID,
			WorkCenterID:     wc.ID,
			ProductionLineID: wc.ProductionLineID,
			OperatorID:       input.OperatorID,
			WelderIDs:        input.WelderIDs,
			Action:           genealogy.ActionRolled,
			CreatedAt:        now,
		})
		if err != nil {
			return err
		}
		_, err = s.genealogy.AppendEdge(txCtx, ports.Edge{
			FromNodeID:         &coil.ID,
			ToNodeID:           &shell.ID,
			Kind:               genealogy.EdgeProducedFrom,
			Quantity:           decimal.NewFromInt(1),
			Location:           wc.Name,
			ProductionRecordID: &record.ID,
			CreatedAt:          now,
		})
		return err
	}); err != nil {
		return ports.Node{}, err
	}

	logging.Info(ctx, "shell registered",
		slog.String("serial", shell.Serial),
		slog.String("coil", shell.CoilNumber),
		slog.Int("tank_size", shell.TankSize),
	)
	return shell, nil
}
