package handlers

import (
	"net/http"

	"servus-backend/internal/models"
	"servus-backend/internal/services"
	"servus-backend/pkg/utils"
)

type CustomerHandler struct {
	Service *services.CustomerService
	Jobs    *services.JobService
}

func NewCustomerHandler(s *services.CustomerService, jobs *services.JobService) *CustomerHandler {
	return &CustomerHandler{Service: s, Jobs: jobs}
}

func (h *CustomerHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req models.CustomerRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	customer, err := h.Service.Create(r.Context(), actorOf(r), &req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, customer)
}

func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	customer, err := h.Service.Get(r.Context(), id)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, customer)
}

func (h *CustomerHandler) SearchCustomers(w http.ResponseWriter, r *http.Request) {
	q := utils.NewQuery(r)
	f := models.CustomerFilter{
		Query: q.String("query"),
		Page:  q.Page(models.CustomerSorts),
	}
	if err := q.Err(); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	customers, err := h.Service.Search(r.Context(), f)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, customers)
}

func (h *CustomerHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var req models.CustomerRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	customer, err := h.Service.Update(r.Context(), actorOf(r), id, &req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, customer)
}

// ArchiveCustomer soft-deletes; the record stays resolvable for invoices.
func (h *CustomerHandler) ArchiveCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	if err := h.Service.Archive(r.Context(), actorOf(r), id); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CustomerHandler) RestoreCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	if err := h.Service.Restore(r.Context(), actorOf(r), id); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GuestRequest is the public "request a visit" form.
func (h *CustomerHandler) GuestRequest(w http.ResponseWriter, r *http.Request) {
	var req models.GuestJobRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	resp, err := h.Jobs.RequestAsGuest(r.Context(), &req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, resp)
}
