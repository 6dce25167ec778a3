package service

import (
	"github.com/greenlight-hq/greenlight/internal/ledger"
	"github.com/greenlight-hq/greenlight/internal/resilience"
)

// EngineStats is the engine's side of the stats surface.
type EngineStats struct {
	Pending       int                         `json:"pending"`
	ByStatus      map[string]int              `json:"by_status"`
	Learning      ledger.Insights             `json:"learning"`
	AlertBreakers map[string]resilience.State `json:"alert_breakers"`
}

// Stats snapshots pending and resolved counts, learning insights and the
// state of every alert channel breaker.
func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	byStatus := make(map[string]int)
	for _, req := range e.history {
		byStatus[string(req.Status)]++
	}
	pending := len(e.pending)
	e.mu.Unlock()

	return EngineStats{
		Pending:       pending,
		ByStatus:      byStatus,
		Learning:      e.ledger.Insights(),
		AlertBreakers: e.breakers.States(),
	}
}
