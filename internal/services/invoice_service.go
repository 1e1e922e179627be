package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"servus-backend/internal/apperr"
	"servus-backend/internal/audit"
	"servus-backend/internal/models"
	"servus-backend/internal/validation"
)

type InvoiceService struct {
	jobAccess
	Invoices     InvoiceStore
	JobMaterials JobMaterialStore
	rec          *audit.Recorder
}

func NewInvoiceService(invoices InvoiceStore, jobs JobStore, technicians TechnicianStore, customers CustomerStore, jobMaterials JobMaterialStore, rec *audit.Recorder) *InvoiceService {
	return &InvoiceService{
		jobAccess:    jobAccess{Jobs: jobs, Technicians: technicians, Customers: customers},
		Invoices:     invoices,
		JobMaterials: jobMaterials,
		rec:          rec,
	}
}

// invoiceableJob loads the job and rejects it when it already has an invoice.
func (s *InvoiceService) invoiceableJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	job, err := s.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	exists, err := s.Invoices.ExistsForJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Conflict("an invoice already exists for this job")
	}
	return job, nil
}

func (s *InvoiceService) newInvoice(job *models.Job, actor models.ActorIdentity, items []models.InvoiceItem) *models.Invoice {
	inv := &models.Invoice{
		ID:           uuid.New(),
		JobID:        job.ID,
		CreatedAt:    s.rec.Now(),
		CustomerID:   job.CustomerID,
		CustomerName: job.CustomerName,
		JobTitle:     job.Title,
		Items:        items,
	}
	if !actor.IsAnonymous() {
		id := actor.UserID
		inv.CreatedBy = &id
	}
	for i := range inv.Items {
		inv.Items[i].ID = uuid.New()
		inv.Items[i].InvoiceID = inv.ID
		inv.Items[i].Position = i + 1
	}
	inv.Amount = models.SumItems(inv.Items).Round(2)
	return inv
}

func (s *InvoiceService) create(ctx context.Context, actor models.ActorIdentity, inv *models.Invoice) (*models.Invoice, error) {
	a := s.rec.Activity(inv.JobID, actor, models.ActivityInvoiceCreated, "Invoice created for %s", inv.Amount.StringFixed(2))
	if err := s.Invoices.Create(ctx, inv, a); err != nil {
		return nil, err
	}
	log.Printf("[Invoices] Invoice %s created for job %s (amount %s)", inv.InvoiceNumber, inv.JobID, inv.Amount.StringFixed(2))
	return inv, nil
}

// GenerateFromMaterials bills a job for the materials consumed on it at the
// prices frozen when they were used.
func (s *InvoiceService) GenerateFromMaterials(ctx context.Context, actor models.ActorIdentity, jobID uuid.UUID) (*models.Invoice, error) {
	job, err := s.invoiceableJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	used, err := s.JobMaterials.ListByJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if len(used) == 0 {
		return nil, apperr.Validation("job has no materials to invoice")
	}

	items := make([]models.InvoiceItem, 0, len(used))
	for _, jm := range used {
		items = append(items, models.InvoiceItem{
			Description: jm.MaterialName,
			Quantity:    jm.QuantityUsed,
			UnitPrice:   jm.UnitPrice,
		})
	}
	return s.create(ctx, actor, s.newInvoice(job, actor, items))
}

// CreateManual bills caller-supplied lines without touching the catalog.
func (s *InvoiceService) CreateManual(ctx context.Context, actor models.ActorIdentity, req *models.CreateInvoiceRequest) (*models.Invoice, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	fe := apperr.FieldErrors{}
	for i, line := range req.Materials {
		if msg := models.CheckUnitPrice(line.UnitPrice); msg != "" {
			fe.Add(fmt.Sprintf("materials[%d].unitPrice", i), msg)
		}
	}
	if err := fe.Err(); err != nil {
		return nil, err
	}

	job, err := s.invoiceableJob(ctx, req.JobID)
	if err != nil {
		return nil, err
	}

	items := make([]models.InvoiceItem, 0, len(req.Materials))
	for _, line := range req.Materials {
		items = append(items, models.InvoiceItem{
			Description: strings.TrimSpace(line.Name),
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice.Round(2),
		})
	}
	if models.SumItems(items).GreaterThan(models.MaxInvoiceAmount) {
		return nil, apperr.ValidationFields("invalid invoice", map[string]string{
			"materials": "invoice total must be at most " + models.MaxInvoiceAmount.StringFixed(2),
		})
	}
	return s.create(ctx, actor, s.newInvoice(job, actor, items))
}

// MarkPaid records payment. Paying an already paid invoice is a conflict so
// the original payment stamp is never overwritten.
func (s *InvoiceService) MarkPaid(ctx context.Context, actor models.ActorIdentity, id uuid.UUID) (*models.Invoice, error) {
	inv, err := s.Invoices.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.IsPaid {
		return nil, apperr.Conflict("invoice already paid")
	}

	var paidBy *uuid.UUID
	if !actor.IsAnonymous() {
		uid := actor.UserID
		paidBy = &uid
	}
	a := s.rec.Activity(inv.JobID, actor, models.ActivityInvoicePaid, "Invoice %s marked as paid", inv.InvoiceNumber)
	if err := s.Invoices.MarkPaid(ctx, inv, a.PerformedAt, paidBy, a); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return s.Invoices.Get(ctx, id)
}

func (s *InvoiceService) List(ctx context.Context, f models.InvoiceFilter) (models.Page[models.Invoice], error) {
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return models.Page[models.Invoice]{}, apperr.ValidationFields("invalid date range", map[string]string{
			"endDate": "must not be before startDate",
		})
	}
	return s.Invoices.List(ctx, f)
}

// PDF renders the invoice with its line items for anyone who may view its job.
func (s *InvoiceService) PDF(ctx context.Context, actor models.ActorIdentity, id uuid.UUID) ([]byte, string, error) {
	inv, err := s.Invoices.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if _, err := s.view(ctx, actor, inv.JobID); err != nil {
		return nil, "", err
	}
	data, err := RenderInvoicePDF(inv)
	if err != nil {
		return nil, "", err
	}
	return data, inv.InvoiceNumber + ".pdf", nil
}
