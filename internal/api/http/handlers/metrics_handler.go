package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-gateway/internal/observability"
	"github.com/spec-kit/auth-gateway/internal/shield"
)

// DecisionStats exposes aggregated gate decisions. The in-memory stats store
// implements it; the Redis store is read by external dashboards instead.
type DecisionStats interface {
	Total() shield.Counters
	ByRoute() map[string]shield.Counters
	ByReason() map[shield.ReasonKind]int64
}

// MetricsHandler serves the in-process counters.
type MetricsHandler struct {
	metrics *observability.Metrics
	stats   DecisionStats
}

// NewMetricsHandler returns a handler. stats may be nil.
func NewMetricsHandler(metrics *observability.Metrics, stats DecisionStats) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, stats: stats}
}

// Snapshot handles GET /internal/metrics.
func (h *MetricsHandler) Snapshot(c *fiber.Ctx) error {
	body := fiber.Map{"metrics": h.metrics.Snapshot()}
	if h.stats != nil {
		body["gate"] = fiber.Map{
			"total":    h.stats.Total(),
			"byRoute":  h.stats.ByRoute(),
			"byReason": h.stats.ByReason(),
		}
	}
	return c.JSON(body)
}
