package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"tanktrace/internal/usecase/assembly"
)

type createAssemblyRequest struct {
	Shells           []string `json:"shells"`
	LeftHeadLotID    string   `json:"leftHeadLotId"`
	RightHeadLotID   string   `json:"rightHeadLotId"`
	TankSize         int      `json:"tankSize"`
	WorkCenterID     uint64   `json:"workCenterId"`
	AssetID          *uint64  `json:"assetId"`
	ProductionLineID *uint64  `json:"productionLineId"`
	OperatorID       *uint64  `json:"operatorId"`
	WelderIDs        []uint64 `json:"welderIds"`
}

type reassembleRequest struct {
	Shells         []string `json:"shells"`
	LeftHeadLotID  string   `json:"leftHeadLotId"`
	RightHeadLotID string   `json:"rightHeadLotId"`
	OperatorID     *uint64  `json:"operatorId"`
	WelderIDs      []uint64 `json:"welderIds"`
}

func (h *handler) createAssembly(w http.ResponseWriter, r *http.Request) {
	var req createAssemblyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.assembly.Create(r.Context(), assembly.CreateInput{
		Shells:           req.Shells,
		LeftHeadLotID:    req.LeftHeadLotID,
		RightHeadLotID:   req.RightHeadLotID,
		TankSize:         req.TankSize,
		WorkCenterID:     req.WorkCenterID,
		AssetID:          req.AssetID,
		ProductionLineID: req.ProductionLineID,
		OperatorID:       req.OperatorID,
		WelderIDs:        req.WelderIDs,
		Actor:            operatorFrom(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *handler) getAssembly(w http.ResponseWriter, r *http.Request) {
	plantID, err := h.plantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.assembly.Get(r.Context(), plantID, chi.URLParam(r, "alphaCode"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handler) reassemble(w http.ResponseWriter, r *http.Request) {
	plantID, err := h.plantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req reassembleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.assembly.Reassemble(r.Context(), assembly.ReassembleInput{
		AlphaCode:      chi.URLParam(r, "alphaCode"),
		PlantID:        plantID,
		Shells:         req.Shells,
		LeftHeadLotID:  req.LeftHeadLotID,
		RightHeadLotID: req.RightHeadLotID,
		OperatorID:     req.OperatorID,
		WelderIDs:      req.WelderIDs,
		Actor:          operatorFrom(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
