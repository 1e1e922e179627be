package handlers

import (
	"context"
	"net/http"

	"servus-backend/internal/services"
	"servus-backend/pkg/utils"
)

type DashboardHandler struct {
	Service *services.DashboardService
}

func NewDashboardHandler(s *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{Service: s}
}

// serve adapts a parameterless dashboard query to a handler.
func serve[T any](fetch func(ctx context.Context) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fetch(r.Context())
		if err != nil {
			utils.WriteError(w, r, err)
			return
		}
		utils.JSON(w, http.StatusOK, data)
	}
}

func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	serve(h.Service.Summary)(w, r)
}

func (h *DashboardHandler) JobSummary(w http.ResponseWriter, r *http.Request) {
	serve(h.Service.JobSummary)(w, r)
}

func (h *DashboardHandler) RevenueSummary(w http.ResponseWriter, r *http.Request) {
	serve(h.Service.Revenue)(w, r)
}

func (h *DashboardHandler) TechnicianActivity(w http.ResponseWriter, r *http.Request) {
	serve(h.Service.TechnicianActivity)(w, r)
}

func (h *DashboardHandler) JobTrends(w http.ResponseWriter, r *http.Request) {
	serve(h.Service.JobTrends)(w, r)
}

func (h *DashboardHandler) CustomerSatisfaction(w http.ResponseWriter, r *http.Request) {
	serve(h.Service.CustomerSatisfaction)(w, r)
}

func (h *DashboardHandler) TechnicianPerformance(w http.ResponseWriter, r *http.Request) {
	serve(h.Service.TechnicianPerformance)(w, r)
}
