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

// Reassemble rebinds the requested slots of an active assembly. The alpha
// code and assembly node stay the same; superseded bindings remain in the
// ledger behind new component-of and replaces edges.
func (s *Service) Reassemble(ctx context.Context, input ReassembleInput) (result Result, err error) {
	defer func() { s.metrics.AssemblyOperation("reassemble", err) }()

	if err := s.ready(ctx); err != nil {
		return Result{}, err
	}

	alpha := genealogy.NormalizeAlphaCode(input.AlphaCode)
	if alpha == "" {
		return Result{}, errs.Validation("alphaCode", "alpha code is required")
	}

	shells := normalizeSerials(input.Shells)
	heads := normalizeSerials([]string{input.LeftHeadLotID, input.RightHeadLotID})
	hasComponents := heads[0] != "" || heads[1] != ""
	seen := map[string]struct{}{}
	for _, serial := range shells {
		if serial == "" {
			continue
		}
		hasComponents = true
		if _, dup := seen[serial]; dup {
			return Result{}, errs.Validation("shells", "shell %q is listed twice", serial)
		}
		seen[serial] = struct{}{}
	}
	if !hasComponents && input.OperatorID == nil && len(input.WelderIDs) == 0 {
		return Result{}, errs.Validation("request", "nothing to reassemble")
	}
	if err := s.checkPeople(ctx, input.OperatorID, input.WelderIDs); err != nil {
		return Result{}, err
	}

	actor := actorName(input.Actor)
	now := s.now()
	var changedSlots []string
	var plantID uint64

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		asm, err := s.genealogy.GetActiveAssembly(txCtx, input.PlantID, alpha)
		if err != nil {
			if errors.Is(err, ports.ErrAssemblyNotFound) {
				return errs.NotFound("assembly %s not found or inactive", alpha)
			}
			return err
		}
		plantID = asm.PlantID

		bindings, err := s.resolver.Bindings(txCtx, asm.NodeID)
		if err != nil {
			return err
		}
		current := make(map[string]uint64, len(bindings))
		currentSerial := make(map[string]string, len(bindings))
		shellCount := 0
		for _, b := range bindings {
			current[b.Slot] = b.Node.ID
			currentSerial[b.Slot] = b.Node.Serial
			if pos, ok := genealogy.ShellPosition(b.Slot); ok && pos > shellCount {
				shellCount = pos
			}
		}

		requested := map[string]uint64{}
		resolved := map[uint64]ports.Node{}
		var newShells []ports.Node
		for i, serial := range shells {
			if serial == "" {
				continue
			}
			pos := i + 1
			slot := genealogy.ShellSlot(pos)
			if currentSerial[slot] == serial {
				continue
			}
			for p := shellCount + 1; p < pos; p++ {
				if shells[p-1] == "" {
					return errs.Validation("shells", "shell position %d would leave position %d empty", pos, p)
				}
			}
			node, err := s.resolveShell(txCtx, serial, asm.PlantID, asm.TankSize)
			if err != nil {
				return err
			}
			requested[slot] = node.ID
			resolved[node.ID] = node
			newShells = append(newShells, node)
		}
		if err := s.claimShells(txCtx, newShells); err != nil {
			return err
		}

		headSlots := []struct{ field, slot, lot string }{
			{"leftHeadLotId", genealogy.SlotLeftHead, heads[0]},
			{"rightHeadLotId", genealogy.SlotRightHead, heads[1]},
		}
		for _, h := range headSlots {
			if h.lot == "" || currentSerial[h.slot] == h.lot {
				continue
			}
			node, err := s.resolveHeadLot(txCtx, h.field, h.lot, asm.PlantID)
			if err != nil {
				return err
			}
			requested[h.slot] = node.ID
			resolved[node.ID] = node
		}

		changes := genealogy.PlanSlotChanges(current, requested)
		result = Result{ID: asm.ID, AlphaCode: asm.AlphaCode, Timestamp: now}
		if len(changes) == 0 && input.OperatorID == nil && len(input.WelderIDs) == 0 {
			return nil
		}

		action := genealogy.ActionReassembled
		if len(changes) == 0 {
			action = genealogy.ActionCorrected
		}
		operatorID := input.OperatorID
		if operatorID == nil {
			operatorID = asm.OperatorID
		}
		record, err := s.genealogy.CreateProductionRecord(txCtx, ports.ProductionRecord{
			NodeID:           asm.NodeID,
			WorkCenterID:     asm.WorkCenterID,
			AssetID:          asm.AssetID,
			ProductionLineID: asm.ProductionLineID,
			OperatorID:       operatorID,
			WelderIDs:        input.WelderIDs,
			Action:           action,
			CreatedAt:        now,
		})
		if err != nil {
			return err
		}

		var flags ports.SeamFlags
		for _, ch := range changes {
			newID, oldID := ch.NewNodeID, ch.OldNodeID
			if _, err := s.genealogy.AppendEdge(txCtx, ports.Edge{
				FromNodeID:         &newID,
				ToNodeID:           &asm.NodeID,
				Kind:               genealogy.EdgeComponentOf,
				Slot:               ch.Slot,
				Quantity:           decimal.NewFromInt(1),
				ProductionRecordID: &record.ID,
				CreatedAt:          now,
			}); err != nil {
				return err
			}
			if oldID != 0 {
				if _, err := s.genealogy.AppendEdge(txCtx, ports.Edge{
					FromNodeID:         &oldID,
					ToNodeID:           &newID,
					Kind:               genealogy.EdgeReplaces,
					Slot:               ch.Slot,
					Quantity:           decimal.NewFromInt(1),
					ProductionRecordID: &record.ID,
					CreatedAt:          now,
				}); err != nil {
					return err
				}
			}

			switch ch.Slot {
			case genealogy.SlotLeftHead:
				flags.LeftHead = true
				if err := s.consumeHead(txCtx, "leftHeadLotId", resolved[newID]); err != nil {
					return err
				}
			case genealogy.SlotRightHead:
				flags.RightHead = true
				if err := s.consumeHead(txCtx, "rightHeadLotId", resolved[newID]); err != nil {
					return err
				}
			default:
				flags.Shell = true
				if oldID != 0 {
					if err := s.genealogy.SetReplacedBy(txCtx, oldID, newID, actor, now); err != nil {
						if errors.Is(err, ports.ErrNodeReplaced) {
							return errs.Conflict("shell in %s was replaced concurrently", ch.Slot)
						}
						return err
					}
				}
			}
			changedSlots = append(changedSlots, ch.Slot)
		}

		return s.genealogy.MarkSeamChanges(txCtx, asm.NodeID, flags, actor, now)
	}); err != nil {
		return Result{}, err
	}

	s.publishBestEffort(ctx, ports.SubjectAssemblyReassembled, eventPayload{Result: result, PlantID: plantID, Slots: changedSlots})
	logging.Info(ctx, "assembly reassembled",
		slog.String("alpha_code", result.AlphaCode),
		slog.Any("slots", changedSlots),
	)
	return result, nil
}
