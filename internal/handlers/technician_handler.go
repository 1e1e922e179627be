package handlers

import (
	"net/http"

	"servus-backend/internal/models"
	"servus-backend/internal/services"
	"servus-backend/pkg/utils"
)

type TechnicianHandler struct {
	Service *services.TechnicianService
}

func NewTechnicianHandler(s *services.TechnicianService) *TechnicianHandler {
	return &TechnicianHandler{Service: s}
}

func (h *TechnicianHandler) ListTechnicians(w http.ResponseWriter, r *http.Request) {
	techs, err := h.Service.List(r.Context())
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, techs)
}

func (h *TechnicianHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req models.TechnicianLocationRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	if err := h.Service.UpdateLocation(r.Context(), actorOf(r), &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Message(w, http.StatusOK, "location updated")
}

func (h *TechnicianHandler) UpdateAvailability(w http.ResponseWriter, r *http.Request) {
	var req models.TechnicianAvailabilityRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	if err := h.Service.UpdateAvailability(r.Context(), actorOf(r), &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Message(w, http.StatusOK, "availability updated")
}

func (h *TechnicianHandler) JobPerformance(w http.ResponseWriter, r *http.Request) {
	perf, err := h.Service.JobPerformance(r.Context(), actorOf(r))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, perf)
}
