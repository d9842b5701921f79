package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domainqueue "tanktrace/internal/domain/queue"
	"tanktrace/internal/errs"
	"tanktrace/internal/ports"
	"tanktrace/internal/usecase/queue"
)

type queueItemRequest struct {
	ProductID         *uint64         `json:"productId"`
	MillVendorID      *uint64         `json:"millVendorId"`
	ProcessorVendorID *uint64         `json:"processorVendorId"`
	HeadVendorID      *uint64         `json:"headVendorId"`
	HeatNumber        string          `json:"heatNumber"`
	CoilNumber        string          `json:"coilNumber"`
	LotNumber         string          `json:"lotNumber"`
	CardCode          string          `json:"cardCode"`
	Description       string          `json:"description"`
	Quantity          decimal.Decimal `json:"quantity"`
}

type queuePatchRequest struct {
	ProductID         *uint64          `json:"productId"`
	MillVendorID      *uint64          `json:"millVendorId"`
	ProcessorVendorID *uint64          `json:"processorVendorId"`
	HeadVendorID      *uint64          `json:"headVendorId"`
	HeatNumber        *string          `json:"heatNumber"`
	CoilNumber        *string          `json:"coilNumber"`
	LotNumber         *string          `json:"lotNumber"`
	CardCode          *string          `json:"cardCode"`
	Description       *string          `json:"description"`
	Quantity          *decimal.Decimal `json:"quantity"`
}

type progressRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type queueItemResponse struct {
	ID                uint64          `json:"id"`
	WorkCenterID      uint64          `json:"workCenterId"`
	Position          int64           `json:"position"`
	Status            string          `json:"status"`
	ProductID         *uint64         `json:"productId,omitempty"`
	MillVendorID      *uint64         `json:"millVendorId,omitempty"`
	ProcessorVendorID *uint64         `json:"processorVendorId,omitempty"`
	HeadVendorID      *uint64         `json:"headVendorId,omitempty"`
	HeatNumber        string          `json:"heatNumber,omitempty"`
	CoilNumber        string          `json:"coilNumber,omitempty"`
	LotNumber         string          `json:"lotNumber,omitempty"`
	CardCode          string          `json:"cardCode,omitempty"`
	Description       string          `json:"description,omitempty"`
	Quantity          decimal.Decimal `json:"quantity"`
	QuantityCompleted decimal.Decimal `json:"quantityCompleted"`
	Retired           bool            `json:"retired"`
	NodeID            *uint64         `json:"nodeId,omitempty"`
	CreatedBy         string          `json:"createdBy"`
	CreatedAt         time.Time       `json:"createdAt"`
	ConsumedAt        *time.Time      `json:"consumedAt,omitempty"`
}

type transactionResponse struct {
	ID        uint64    `json:"id"`
	Action    string    `json:"action"`
	Summary   string    `json:"summary"`
	Operator  string    `json:"operator"`
	CreatedAt time.Time `json:"createdAt"`
}

func toQueueItem(it ports.QueueItem) queueItemResponse {
	d := it.Details
	return queueItemResponse{
		ID:                it.ID,
		WorkCenterID:      it.WorkCenterID,
		Position:          it.Position,
		Status:            string(it.Status),
		ProductID:         d.ProductID,
		MillVendorID:      d.MillVendorID,
		ProcessorVendorID: d.ProcessorVendorID,
		HeadVendorID:      d.HeadVendorID,
		HeatNumber:        d.HeatNumber,
		CoilNumber:        d.CoilNumber,
		LotNumber:         d.LotNumber,
		CardCode:          d.CardCode,
		Description:       d.Description,
		Quantity:          d.Quantity,
		QuantityCompleted: it.QuantityCompleted,
		Retired:           it.Retired,
		NodeID:            it.NodeID,
		CreatedBy:         it.CreatedBy,
		CreatedAt:         it.CreatedAt,
		ConsumedAt:        it.ConsumedAt,
	}
}

func (h *handler) listQueue(w http.ResponseWriter, r *http.Request) {
	wc, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.queue.List(r.Context(), wc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]queueItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toQueueItem(it))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) enqueue(w http.ResponseWriter, r *http.Request) {
	wc, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req queueItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := h.queue.Enqueue(r.Context(), queue.EnqueueInput{
		WorkCenterID: wc,
		Details:      domainqueue.Details(req),
		Operator:     operatorFrom(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toQueueItem(item))
}

func (h *handler) updateItem(w http.ResponseWriter, r *http.Request) {
	wc, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	itemID, err := pathID(r, "itemId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req queuePatchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := h.queue.Update(r.Context(), queue.UpdateInput{
		WorkCenterID: wc,
		ItemID:       itemID,
		Patch:        queue.ItemPatch(req),
		Operator:     operatorFrom(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toQueueItem(item))
}

func (h *handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	wc, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	itemID, err := pathID(r, "itemId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.queue.Delete(r.Context(), wc, itemID, operatorFrom(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) recordProgress(w http.ResponseWriter, r *http.Request) {
	wc, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	itemID, err := pathID(r, "itemId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req progressRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := h.queue.RecordProgress(r.Context(), queue.ProgressInput{
		WorkCenterID: wc,
		ItemID:       itemID,
		Amount:       req.Amount,
		Operator:     operatorFrom(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toQueueItem(item))
}

func (h *handler) advance(w http.ResponseWriter, r *http.Request) {
	wc, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.queue.Advance(r.Context(), wc, operatorFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) lastAdvanced(w http.ResponseWriter, r *http.Request) {
	wc, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	item, err := h.queue.LastAdvanced(r.Context(), wc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if item == nil {
		writeJSON(w, http.StatusOK, queue.AdvanceResult{Empty: true})
		return
	}
	writeJSON(w, http.StatusOK, queue.AdvanceResult{Item: item})
}

func (h *handler) transactions(w http.ResponseWriter, r *http.Request) {
	wc, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			writeError(w, r, errs.Validation("limit", "limit must be an integer"))
			return
		}
	}
	rows, err := h.queue.Transactions(r.Context(), wc, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]transactionResponse, 0, len(rows))
	for _, tx := range rows {
		out = append(out, transactionResponse{
			ID:        tx.ID,
			Action:    tx.Action,
			Summary:   tx.Summary,
			Operator:  tx.Operator,
			CreatedAt: tx.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
