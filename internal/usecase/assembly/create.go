package assembly

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"tanktrace/internal/bootstrap/logging"
	"tanktrace/internal/domain/genealogy"
	"tanktrace/internal/errs"
	"tanktrace/internal/ports"
)

// Create binds shells and two head lots into a new assembly with a fresh
// alpha code. Everything is written in one transaction.
func (s *Service) Create(ctx context.Context, input CreateInput) (result Result, err error) {
	defer func() { s.metrics.AssemblyOperation("create", err) }()

	if err := s.ready(ctx); err != nil {
		return Result{}, err
	}

	shells := normalizeSerials(input.Shells)
	if len(shells) == 0 {
		return Result{}, errs.Validation("shells", "at least one shell is required")
	}
	seen := make(map[string]struct{}, len(shells))
	for _, serial := range shells {
		if serial == "" {
			return Result{}, errs.Validation("shells", "shell serials must not be blank")
		}
		if _, dup := seen[serial]; dup {
			return Result{}, errs.Validation("shells", "shell %q is listed twice", serial)
		}
		seen[serial] = struct{}{}
	}
	left := normalizeSerials([]string{input.LeftHeadLotID})[0]
	right := normalizeSerials([]string{input.RightHeadLotID})[0]
	if left == "" {
		return Result{}, errs.Validation("leftHeadLotId", "left head lot is required")
	}
	if right == "" {
		return Result{}, errs.Validation("rightHeadLotId", "right head lot is required")
	}
	if input.TankSize <= 0 {
		return Result{}, errs.Validation("tankSize", "tank size must be positive")
	}

	wc, err := s.reference.GetWorkCenter(ctx, input.WorkCenterID)
	if err != nil {
		if errors.Is(err, ports.ErrWorkCenterNotFound) {
			return Result{}, errs.Validation("workCenterId", "work center %d not found", input.WorkCenterID)
		}
		return Result{}, err
	}
	if input.AssetID != nil {
		if _, err := s.reference.GetAsset(ctx, *input.AssetID); err != nil {
			if errors.Is(err, ports.ErrAssetNotFound) {
				return Result{}, errs.Validation("assetId", "asset %d not found", *input.AssetID)
			}
			return Result{}, err
		}
	}
	lineID := input.ProductionLineID
	if lineID == nil {
		lineID = wc.ProductionLineID
	} else if _, err := s.reference.GetProductionLine(ctx, *lineID); err != nil {
		if errors.Is(err, ports.ErrProductionLineNotFound) {
			return Result{}, errs.Validation("productionLineId", "production line %d not found", *lineID)
		}
		return Result{}, err
	}
	if err := s.checkPeople(ctx, input.OperatorID, input.WelderIDs); err != nil {
		return Result{}, err
	}

	actor := actorName(input.Actor)
	now := s.now()
	plantID := wc.PlantID

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		shellNodes := make([]ports.Node, 0, len(shells))
		for _, serial := range shells {
			node, err := s.resolveShell(txCtx, serial, plantID, input.TankSize)
			if err != nil {
				return err
			}
			shellNodes = append(shellNodes, node)
		}
		if err := s.claimShells(txCtx, shellNodes); err != nil {
			return err
		}
		leftNode, err := s.resolveHeadLot(txCtx, "leftHeadLotId", left, plantID)
		if err != nil {
			return err
		}
		rightNode, err := s.resolveHeadLot(txCtx, "rightHeadLotId", right, plantID)
		if err != nil {
			return err
		}

		code, err := s.genealogy.AllocateAlphaCode(txCtx, plantID)
		if err != nil {
			if errors.Is(err, ports.ErrAlphaCodeRace) {
				return errs.Conflict("alpha code allocation raced with another assembly, retry")
			}
			return err
		}

		node, err := s.genealogy.CreateNode(txCtx, ports.Node{
			Serial:    code,
			Kind:      genealogy.NodeAssembly,
			PlantID:   plantID,
			TankSize:  input.TankSize,
			CreatedBy: actor,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		asm, err := s.genealogy.CreateAssembly(txCtx, ports.Assembly{
			NodeID:           node.ID,
			PlantID:          plantID,
			AlphaCode:        code,
			TankSize:         input.TankSize,
			WorkCenterID:     wc.ID,
			AssetID:          input.AssetID,
			ProductionLineID: lineID,
			OperatorID:       input.OperatorID,
			CreatedAt:        now,
		})
		if err != nil {
			return err
		}
		record, err := s.genealogy.CreateProductionRecord(txCtx, ports.ProductionRecord{
			NodeID:           node.ID,
			WorkCenterID:     wc.ID,
			AssetID:          input.AssetID,
			ProductionLineID: lineID,
			OperatorID:       input.OperatorID,
			WelderIDs:        input.WelderIDs,
			Action:           genealogy.ActionAssembled,
			CreatedAt:        now,
		})
		if err != nil {
			return err
		}

		bind := func(component ports.Node, slot string) error {
			_, err := s.genealogy.AppendEdge(txCtx, ports.Edge{
				FromNodeID:         &component.ID,
				ToNodeID:           &node.ID,
				Kind:               genealogy.EdgeComponentOf,
				Slot:               slot,
				Quantity:           decimal.NewFromInt(1),
				Location:           wc.Name,
				ProductionRecordID: &record.ID,
				CreatedAt:          now,
			})
			return err
		}
		for i, shell := range shellNodes {
			if err := bind(shell, genealogy.ShellSlot(i+1)); err != nil {
				return err
			}
		}
		if err := bind(leftNode, genealogy.SlotLeftHead); err != nil {
			return err
		}
		if err := s.consumeHead(txCtx, "leftHeadLotId", leftNode); err != nil {
			return err
		}
		if err := bind(rightNode, genealogy.SlotRightHead); err != nil {
			return err
		}
		if err := s.consumeHead(txCtx, "rightHeadLotId", rightNode); err != nil {
			return err
		}

		result = Result{ID: asm.ID, AlphaCode: asm.AlphaCode, Timestamp: now}
		return nil
	}); err != nil {
		return Result{}, err
	}

	s.publishBestEffort(ctx, ports.SubjectAssemblyCreated, eventPayload{Result: result, PlantID: plantID})
	logging.Info(ctx, "assembly created",
		slog.String("alpha_code", result.AlphaCode),
		slog.Uint64("assembly_id", result.ID),
		slog.Int("shells", len(shells)),
	)
	return result, nil
}
