package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tanktrace/internal/infrastructure/metrics"
	"tanktrace/internal/usecase/assembly"
	"tanktrace/internal/usecase/queue"
	"tanktrace/internal/usecase/traceability"
)

type Deps struct {
	Queue        *queue.Service
	Assembly     *assembly.Service
	Traceability *traceability.Service
	// Metrics is optional; nil leaves /metrics unmounted.
	Metrics *metrics.Recorder
	Logger  *slog.Logger
	// PlantID is used when a request carries no plantId query parameter.
	PlantID uint64
}

type handler struct {
	queue    *queue.Service
	assembly *assembly.Service
	trace    *traceability.Service
	plantID  uint64
}

func NewRouter(d Deps) http.Handler {
	h := &handler{
		queue:    d.Queue,
		assembly: d.Assembly,
		trace:    d.Traceability,
		plantID:  d.PlantID,
	}

	r := chi.NewRouter()
	r.Use(requestContext(d.Logger))
	r.Use(observe(d.Metrics))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/assemblies", h.createAssembly)
		r.Get("/assemblies/{alphaCode}", h.getAssembly)
		r.Post("/assemblies/{alphaCode}/reassemble", h.reassemble)

		r.Post("/serial-numbers", h.registerShell)
		r.Get("/serial-numbers/{serial}/context", h.serialContext)
		r.Get("/serial-numbers/{serial}/lookup", h.lookup)
		r.Get("/serial-numbers/{serial}/lookup.xlsx", h.lookupXLSX)
		r.Post("/serial-numbers/{serial}/events", h.recordEvent)

		r.Route("/workcenters/{id}", func(r chi.Router) {
			r.Get("/material-queue", h.listQueue)
			r.Post("/material-queue", h.enqueue)
			r.Put("/material-queue/{itemId}", h.updateItem)
			r.Delete("/material-queue/{itemId}", h.deleteItem)
			r.Post("/material-queue/{itemId}/progress", h.recordProgress)
			r.Post("/queue/advance", h.advance)
			r.Get("/queue/last-advanced", h.lastAdvanced)
			r.Get("/queue-transactions", h.transactions)
		})
	})
	return r
}
