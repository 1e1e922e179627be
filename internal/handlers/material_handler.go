package handlers

import (
	"net/http"

	"servus-backend/internal/models"
	"servus-backend/internal/services"
	"servus-backend/pkg/utils"
)

type MaterialHandler struct {
	Service *services.MaterialService
}

func NewMaterialHandler(s *services.MaterialService) *MaterialHandler {
	return &MaterialHandler{Service: s}
}

func (h *MaterialHandler) ListMaterials(w http.ResponseWriter, r *http.Request) {
	q := utils.NewQuery(r)
	f := models.MaterialFilter{
		Keyword: q.String("keyword"),
		Page:    q.Page(models.MaterialSorts),
	}
	if err := q.Err(); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	materials, err := h.Service.List(r.Context(), f)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, materials)
}

func (h *MaterialHandler) GetMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	m, err := h.Service.Get(r.Context(), id)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, m)
}

func (h *MaterialHandler) CreateMaterial(w http.ResponseWriter, r *http.Request) {
	var req models.MaterialRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	m, err := h.Service.Create(r.Context(), actorOf(r), &req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, m)
}

func (h *MaterialHandler) UpdateMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var req models.MaterialRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	m, err := h.Service.Update(r.Context(), actorOf(r), id, &req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, m)
}

func (h *MaterialHandler) DeleteMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	if err := h.Service.Delete(r.Context(), actorOf(r), id); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MaterialHandler) RefillMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var req models.RefillMaterialRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	stock, err := h.Service.Refill(r.Context(), actorOf(r), id, &req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]int{"stockQuantity": stock})
}
