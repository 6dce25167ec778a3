package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/healthz", h.Healthz)
	r.Get("/ws", h.HandleWS)

	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Actions
		r.Post("/actions", h.SubmitAction)
		r.Post("/actions/classify", h.ExplainClassification)

		// Approvals
		r.Get("/approvals/pending", h.ListPendingApprovals)
		r.Get("/approvals/history", h.ListApprovalHistory)
		r.Get("/approvals/{id}", h.GetApproval)
		r.Post("/approvals/{id}/decide", h.DecideApproval)
		r.Post("/approvals/{id}/defer", h.DeferApproval)

		// Stats
		r.Get("/stats", h.GetStats)
	})
}
