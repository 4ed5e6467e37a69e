package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/getchdocs/getchdocs-api/pkg/health"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	checker *health.Checker
	timeout time.Duration
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(checker *health.Checker) *HealthHandler {
	return &HealthHandler{
		checker: checker,
		timeout: 5 * time.Second,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready. Degraded optional dependencies still answer 200.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	report := h.checker.Run(ctx)
	status := http.StatusOK
	if report.Status == health.StatusDown {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}
