package handlers

import (
	"net/http"

	"servus-backend/internal/models"
	"servus-backend/internal/services"
	"servus-backend/pkg/utils"
)

type FeedbackHandler struct {
	Service *services.FeedbackService
}

func NewFeedbackHandler(s *services.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{Service: s}
}

func (h *FeedbackHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitFeedbackRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	fb, err := h.Service.Submit(r.Context(), actorOf(r), &req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, fb)
}

func (h *FeedbackHandler) FeedbackForJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := utils.PathUUID(r, "jobId")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	feedback, err := h.Service.ByJob(r.Context(), actorOf(r), jobID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, feedback)
}

func (h *FeedbackHandler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	q := utils.NewQuery(r)
	f := models.FeedbackFilter{
		TechnicianID:   q.UUID("technicianId"),
		TechnicianName: q.String("technicianName"),
		JobTitle:       q.String("jobTitle"),
		Page:           q.Page(models.FeedbackSorts),
	}
	if err := q.Err(); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	feedback, err := h.Service.List(r.Context(), f)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, feedback)
}

func (h *FeedbackHandler) MyFeedback(w http.ResponseWriter, r *http.Request) {
	feedback, err := h.Service.Mine(r.Context(), actorOf(r))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, feedback)
}

// TechnicianRatings is public so customers can see who is coming.
func (h *FeedbackHandler) TechnicianRatings(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	summary, err := h.Service.TechnicianRatings(r.Context(), id)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, summary)
}
