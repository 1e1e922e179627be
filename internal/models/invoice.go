package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice is the single bill for a job.
type Invoice struct {
	ID            uuid.UUID       `json:"id"`
	InvoiceNumber string          `json:"invoiceNumber"`
	JobID         uuid.UUID       `json:"jobId"`
	Amount        decimal.Decimal `json:"amount"`
	IsPaid        bool            `json:"isPaid"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
	PaidBy        *uuid.UUID      `json:"paidBy,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	CreatedBy     *uuid.UUID      `json:"createdBy,omitempty"`
	CustomerID    uuid.UUID       `json:"customerId"`
	CustomerName  string          `json:"customerName"`
	JobTitle      string          `json:"jobTitle,omitempty"`
	Items         []InvoiceItem   `json:"items,omitempty"`
}

// InvoiceItem is a frozen line of an invoice.
type InvoiceItem struct {
	ID          uuid.UUID       `json:"id"`
	InvoiceID   uuid.UUID       `json:"invoiceId"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Position    int             `json:"position"`
}

func (i InvoiceItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// SumItems totals quantity x unit price over items.
func SumItems(items []InvoiceItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// MaxInvoiceAmount is the largest total the amount column can hold.
var MaxInvoiceAmount = decimal.RequireFromString("9999999999.99")

type ManualInvoiceLine struct {
	Name      string          `json:"name" validate:"required,max=200"`
	Quantity  int             `json:"quantity" validate:"gt=0,lte=10000"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type CreateInvoiceRequest struct {
	JobID     uuid.UUID           `json:"jobId" validate:"required"`
	Materials []ManualInvoiceLine `json:"materials" validate:"required,min=1,dive"`
}

type InvoiceFilter struct {
	CustomerID *uuid.UUID
	StartDate  *time.Time
	EndDate    *time.Time
	IsPaid     *bool
	Page       PageRequest
}
