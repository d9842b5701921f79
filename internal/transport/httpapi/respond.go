package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"tanktrace/internal/bootstrap/logging"
	"tanktrace/internal/errs"
)

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func statusOf(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	body := apiError{Message: err.Error(), Code: kind.String(), Field: errs.FieldOf(err)}
	if kind == errs.KindInternal {
		logging.Error(r.Context(), "request failed", slog.Any("err", errs.Loggable(err)))
		body.Message = "internal error"
	}
	writeJSON(w, statusOf(kind), errorEnvelope{Error: body})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errs.Validation("body", "request body is required")
		}
		return errs.Validation("body", "invalid JSON body: %v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (uint64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errs.Validation(name, "%s must be a positive integer", name)
	}
	return id, nil
}

// plantOf reads ?plantId=, falling back to the configured plant.
func (h *handler) plantOf(r *http.Request) (uint64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("plantId"))
	if raw == "" {
		return h.plantID, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errs.Validation("plantId", "plantId must be an integer")
	}
	return id, nil
}
