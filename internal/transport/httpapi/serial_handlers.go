package httpapi

import (
	"bytes"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tanktrace/internal/ports"
	"tanktrace/internal/usecase/traceability"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type registerShellRequest struct {
	Serial       string   `json:"serial"`
	CoilSerial   string   `json:"coilSerial"`
	WorkCenterID uint64   `json:"workCenterId"`
	ProductID    uint64   `json:"productId"`
	OperatorID   *uint64  `json:"operatorId"`
	WelderIDs    []uint64 `json:"welderIds"`
}

type eventRequest struct {
	WorkCenterID uint64   `json:"workCenterId"`
	OperatorID   *uint64  `json:"operatorId"`
	WelderIDs    []uint64 `json:"welderIds"`
	Action       string   `json:"action"`
	Result       string   `json:"result"`
	Notes        string   `json:"notes"`
}

type nodeResponse struct {
	ID         uint64    `json:"id"`
	Serial     string    `json:"serial"`
	Kind       string    `json:"kind"`
	PlantID    uint64    `json:"plantId"`
	ProductID  *uint64   `json:"productId,omitempty"`
	HeatNumber string    `json:"heatNumber,omitempty"`
	CoilNumber string    `json:"coilNumber,omitempty"`
	LotNumber  string    `json:"lotNumber,omitempty"`
	TankSize   int       `json:"tankSize,omitempty"`
	CreatedBy  string    `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
}

type recordResponse struct {
	ID               uint64    `json:"id"`
	NodeID           uint64    `json:"nodeId"`
	WorkCenterID     uint64    `json:"workCenterId"`
	ProductionLineID *uint64   `json:"productionLineId,omitempty"`
	OperatorID       *uint64   `json:"operatorId,omitempty"`
	WelderIDs        []uint64  `json:"welderIds,omitempty"`
	Action           string    `json:"action"`
	Result           string    `json:"result,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

func toNode(n ports.Node) nodeResponse {
	return nodeResponse{
		ID:         n.ID,
		Serial:     n.Serial,
		Kind:       string(n.Kind),
		PlantID:    n.PlantID,
		ProductID:  n.ProductID,
		HeatNumber: n.HeatNumber,
		CoilNumber: n.CoilNumber,
		LotNumber:  n.LotNumber,
		TankSize:   n.TankSize,
		CreatedBy:  n.CreatedBy,
		CreatedAt:  n.CreatedAt,
	}
}

func (h *handler) registerShell(w http.ResponseWriter, r *http.Request) {
	var req registerShellRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	node, err := h.trace.RegisterShell(r.Context(), traceability.RegisterShellInput{
		Serial:       req.Serial,
		CoilSerial:   req.CoilSerial,
		WorkCenterID: req.WorkCenterID,
		ProductID:    req.ProductID,
		OperatorID:   req.OperatorID,
		WelderIDs:    req.WelderIDs,
		Actor:        operatorFrom(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toNode(node))
}

func (h *handler) serialContext(w http.ResponseWriter, r *http.Request) {
	plantID, err := h.plantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sc, err := h.trace.GetContext(r.Context(), chi.URLParam(r, "serial"), plantID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (h *handler) lookup(w http.ResponseWriter, r *http.Request) {
	plantID, err := h.plantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lookup, err := h.trace.GetLookup(r.Context(), chi.URLParam(r, "serial"), plantID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lookup)
}

func (h *handler) lookupXLSX(w http.ResponseWriter, r *http.Request) {
	plantID, err := h.plantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	serial := chi.URLParam(r, "serial")
	// buffered so a failed render still gets a JSON error
	var buf bytes.Buffer
	if err := h.trace.ExportLookup(r.Context(), serial, plantID, &buf); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+serial+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *handler) recordEvent(w http.ResponseWriter, r *http.Request) {
	plantID, err := h.plantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req eventRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := h.trace.RecordEvent(r.Context(), traceability.EventInput{
		Serial:       chi.URLParam(r, "serial"),
		PlantID:      plantID,
		WorkCenterID: req.WorkCenterID,
		OperatorID:   req.OperatorID,
		WelderIDs:    req.WelderIDs,
		Action:       req.Action,
		Result:       req.Result,
		Notes:        req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, recordResponse{
		ID:               rec.ID,
		NodeID:           rec.NodeID,
		WorkCenterID:     rec.WorkCenterID,
		ProductionLineID: rec.ProductionLineID,
		OperatorID:       rec.OperatorID,
		WelderIDs:        rec.WelderIDs,
		Action:           rec.Action,
		Result:           rec.Result,
		Notes:            rec.Notes,
		CreatedAt:        rec.CreatedAt,
	})
}
