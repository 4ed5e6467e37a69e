package handler

import (
	"net/http"

	"github.com/getchdocs/getchdocs-api/internal/middleware"
	"github.com/getchdocs/getchdocs-api/internal/service"
	"github.com/getchdocs/getchdocs-api/pkg/logger"
)

// DashboardHandler handles analytics endpoints.
type DashboardHandler struct {
	dashboardService *service.DashboardService
	logger           *logger.Logger
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(dashSvc *service.DashboardService, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashSvc,
		logger:           log,
	}
}

// Get handles GET /api/v1/dashboard
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.dashboardService.Get(r.Context())
	if err != nil {
		writeServiceError(w, middleware.RequestLogger(r.Context(), h.logger), err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// History handles GET /api/v1/analytics/history
func (h *DashboardHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, err := middleware.ParseLimit(r.URL.Query().Get("limit"), service.DefaultEventHistoryLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.dashboardService.History(r.Context(), limit)
	if err != nil {
		writeServiceError(w, middleware.RequestLogger(r.Context(), h.logger), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  len(events),
	})
}
