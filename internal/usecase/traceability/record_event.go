package traceability

import (
	"context"
	"log/slog"
	"strings"

	"tanktrace/internal/bootstrap/logging"
	"tanktrace/internal/domain/genealogy"
	"tanktrace/internal/errs"
	"tanktrace/internal/ports"
)

// engineActions are written only by the queue and assembly engines.
var engineActions = map[string]struct{}{
	genealogy.ActionDrawn:       {},
	genealogy.ActionRolled:      {},
	genealogy.ActionAssembled:   {},
	genealogy.ActionReassembled: {},
	genealogy.ActionCorrected:   {},
}

// RecordEvent appends a station event (inspection, hydro, x-ray, nameplate)
// to the node carrying the serial. No edges are written.
func (s *Service) RecordEvent(ctx context.Context, input EventInput) (ports.ProductionRecord, error) {
	if err := s.ready(ctx); err != nil {
		return ports.ProductionRecord{}, err
	}
	action := strings.ToLower(strings.TrimSpace(input.Action))
	if action == "" {
		return ports.ProductionRecord{}, errs.Validation("action", "action is required")
	}
	if _, reserved := engineActions[action]; reserved {
		return ports.ProductionRecord{}, errs.Validation("action", "action %q is recorded by the engine", action)
	}

	node, err := s.resolver.ResolveNode(ctx, input.Serial, input.PlantID)
	if err != nil {
		return ports.ProductionRecord{}, err
	}
	wc, err := s.workCenter(ctx, input.WorkCenterID)
	if err != nil {
		return ports.ProductionRecord{}, err
	}
	if err := s.checkPeople(ctx, input.OperatorID, input.WelderIDs); err != nil {
		return ports.ProductionRecord{}, err
	}

	var record ports.ProductionRecord
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		record, err = s.genealogy.CreateProductionRecord(txCtx, ports.ProductionRecord{
			NodeID:           node.ID,
			WorkCenterID:     wc.ID,
			ProductionLineID: wc.ProductionLineID,
			OperatorID:       input.OperatorID,
			WelderIDs:        input.WelderIDs,
			Action:           action,
			Result:           strings.TrimSpace(input.Result),
			Notes:            strings.TrimSpace(input.Notes),
			CreatedAt:        s.now(),
		})
		return err
	}); err != nil {
		return ports.ProductionRecord{}, err
	}

	logging.Info(logging.WithStation(ctx, wc.PlantID, wc.ID), "station event recorded",
		slog.String("serial", node.Serial),
		slog.String("action", action),
	)
	return record, nil
}
