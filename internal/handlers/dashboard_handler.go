package handlers

import (
	"net/http"
	"time"

	"familysync/internal/service"
)

// DashboardHandler serves the home screen summary
type DashboardHandler struct {
	dashboardService *service.DashboardService
	now              func() time.Time
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dashboardService *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService, now: time.Now}
}

// Show returns the greeting, today's events, upcoming tasks and members
func (h *DashboardHandler) Show(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.dashboardService.Summary(r.Context(), GetIdentityFromContext(r.Context()), h.now())
	if err != nil {
		respondServiceError(w, err, "Error loading dashboard")
		return
	}

	respondJSON(w, http.StatusOK, dashboard)
}
