package handlers

import (
	"net/http"
	"strconv"

	"servus-backend/internal/models"
	"servus-backend/internal/services"
	"servus-backend/pkg/utils"
)

type InvoiceHandler struct {
	Service *services.InvoiceService
}

func NewInvoiceHandler(s *services.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{Service: s}
}

// CreateInvoice bills a job from a hand-entered list of lines.
func (h *InvoiceHandler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req models.CreateInvoiceRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	inv, err := h.Service.CreateManual(r.Context(), actorOf(r), &req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, inv)
}

// GenerateInvoice bills a job from the materials recorded on it.
func (h *InvoiceHandler) GenerateInvoice(w http.ResponseWriter, r *http.Request) {
	jobID, err := utils.PathUUID(r, "jobId")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	inv, err := h.Service.GenerateFromMaterials(r.Context(), actorOf(r), jobID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, inv)
}

func (h *InvoiceHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	inv, err := h.Service.MarkPaid(r.Context(), actorOf(r), id)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, inv)
}

func (h *InvoiceHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	inv, err := h.Service.Get(r.Context(), id)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, inv)
}

func (h *InvoiceHandler) DownloadPDF(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	data, filename, err := h.Service.PDF(r.Context(), actorOf(r), id)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *InvoiceHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	q := utils.NewQuery(r)
	f := models.InvoiceFilter{
		CustomerID: q.UUID("customerId"),
		StartDate:  q.Date("startDate"),
		EndDate:    q.Date("endDate"),
		IsPaid:     q.Bool("isPaid"),
		Page:       q.Page(models.InvoiceSorts),
	}
	if err := q.Err(); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	invoices, err := h.Service.List(r.Context(), f)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, invoices)
}
