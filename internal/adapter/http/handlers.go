package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/greenlight-hq/greenlight/internal/adapter/ws"
	"github.com/greenlight-hq/greenlight/internal/classify"
	"github.com/greenlight-hq/greenlight/internal/domain/action"
	"github.com/greenlight-hq/greenlight/internal/domain/approval"
	"github.com/greenlight-hq/greenlight/internal/service"
)

const defaultHistoryLimit = 50

// Handlers bundles the HTTP endpoints over the decision engine and pipeline.
type Handlers struct {
	engine     *service.Engine
	pipeline   *service.Pipeline
	classifier *classify.Classifier
	hub        *ws.Hub
}

// NewHandlers creates the handler set. hub may be nil when the WebSocket
// endpoint is not mounted.
func NewHandlers(engine *service.Engine, pipeline *service.Pipeline, classifier *classify.Classifier, hub *ws.Hub) *Handlers {
	return &Handlers{
		engine:     engine,
		pipeline:   pipeline,
		classifier: classifier,
		hub:        hub,
	}
}

// Healthz reports liveness.
func (h *Handlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SubmitAction accepts a proposed action into the decision pipeline.
// The decision is made asynchronously; the response carries the upfront
// criticality so callers know what kind of wait to expect.
func (h *Handlers) SubmitAction(w http.ResponseWriter, r *http.Request) {
	a, ok := readJSON[action.Action](w, r)
	if !ok {
		return
	}
	if err := a.Validate(); err != nil {
		writeDomainError(w, err, "action not found")
		return
	}

	if err := h.pipeline.Enqueue(a); err != nil {
		writeError(w, http.StatusServiceUnavailable, "backlog full, retry later")
		return
	}

	result := h.classifier.Explain(a)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":      "accepted",
		"criticality": result.Level,
		"reasons":     result.Reasons,
	})
}

type decideRequest struct {
	Verdict  string `json:"verdict"`
	Feedback string `json:"feedback,omitempty"`
}

// DecideApproval applies a human approve/deny verdict to a pending request.
func (h *Handlers) DecideApproval(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	body, ok := readJSON[decideRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, body.Verdict, "verdict") {
		return
	}

	req, err := h.engine.Decide(r.Context(), id, approval.Verdict(body.Verdict), body.Feedback)
	if err != nil {
		writeDomainError(w, err, "approval request not found")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type deferRequest struct {
	Minutes int `json:"minutes"`
}

// DeferApproval pushes a pending request's deadline forward.
func (h *Handlers) DeferApproval(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	body, ok := readJSON[deferRequest](w, r)
	if !ok {
		return
	}
	if body.Minutes <= 0 {
		writeError(w, http.StatusBadRequest, "minutes must be positive")
		return
	}

	req, err := h.engine.Defer(r.Context(), id, time.Duration(body.Minutes)*time.Minute)
	if err != nil {
		writeDomainError(w, err, "approval request not found")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// GetApproval returns a single request, pending or resolved.
func (h *Handlers) GetApproval(w http.ResponseWriter, r *http.Request) {
	req, err := h.engine.Get(urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "approval request not found")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// ListPendingApprovals returns all PENDING requests ordered oldest first.
func (h *Handlers) ListPendingApprovals(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.ListPending())
}

// ListApprovalHistory returns resolved requests, newest first.
// The limit query parameter caps the result; default 50.
func (h *Handlers) ListApprovalHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, h.engine.ListHistory(limit))
}

type statsResponse struct {
	Engine   service.EngineStats   `json:"engine"`
	Pipeline service.PipelineStats `json:"pipeline"`
}

// GetStats returns engine, pipeline and learning statistics.
func (h *Handlers) GetStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		Engine:   h.engine.Stats(),
		Pipeline: h.pipeline.Stats(),
	})
}

// ExplainClassification classifies an action without submitting it.
func (h *Handlers) ExplainClassification(w http.ResponseWriter, r *http.Request) {
	a, ok := readJSON[action.Action](w, r)
	if !ok {
		return
	}
	if err := a.Validate(); err != nil {
		writeDomainError(w, err, "action not found")
		return
	}
	writeJSON(w, http.StatusOK, explainResponse{
		Result:              h.classifier.Explain(a),
		SuggestedAdjustment: h.engine.SuggestAdjustment(a),
	})
}

type explainResponse struct {
	classify.Result
	SuggestedAdjustment string `json:"suggested_adjustment,omitempty"`
}

// HandleWS upgrades to a WebSocket for live approval events.
func (h *Handlers) HandleWS(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, http.StatusNotImplemented, "websocket endpoint disabled")
		return
	}
	h.hub.HandleWS(w, r)
}
