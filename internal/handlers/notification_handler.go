package handlers

import (
	"net/http"

	"servus-backend/internal/models"
	"servus-backend/internal/services"
	"servus-backend/pkg/utils"
)

type NotificationHandler struct {
	Service *services.NotificationService
}

func NewNotificationHandler(s *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{Service: s}
}

// ListFailed lists emails that exhausted their retries.
func (h *NotificationHandler) ListFailed(w http.ResponseWriter, r *http.Request) {
	q := utils.NewQuery(r)
	p, err := models.NewPageRequest(q.IntOr("page", 1), q.IntOr("pageSize", models.DefaultPageSize))
	if err == nil {
		err = q.Err()
	}
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	emails, err := h.Service.ListFailed(r.Context(), p)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, emails)
}

func (h *NotificationHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	if err := h.Service.Retry(r.Context(), id); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Message(w, http.StatusAccepted, "email queued for another attempt")
}
