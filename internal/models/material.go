package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Material is a catalog item consumed on jobs.
type Material struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Unit          string          `json:"unit"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	StockQuantity int             `json:"stockQuantity"`
	Lifecycle
}

// LowStockThreshold marks materials that need a refill on the dashboard.
const LowStockThreshold = 10

// JobMaterial is a consumed-material line on a job; UnitPrice is frozen at use.
type JobMaterial struct {
	ID           uuid.UUID       `json:"id"`
	JobID        uuid.UUID       `json:"jobId"`
	MaterialID   uuid.UUID       `json:"materialId"`
	MaterialName string          `json:"materialName"`
	Unit         string          `json:"unit"`
	QuantityUsed int             `json:"quantityUsed"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Lifecycle
}

// Subtotal is QuantityUsed x UnitPrice.
func (m JobMaterial) Subtotal() decimal.Decimal {
	return m.UnitPrice.Mul(decimal.NewFromInt(int64(m.QuantityUsed)))
}

const (
	MaxQuantityPerAssignment = 1000
	MaxStockQuantity         = 1_000_000
	MaxLineQuantity          = 10_000
)

// MaxUnitPrice keeps line totals inside the NUMERIC(12,2) money columns.
var MaxUnitPrice = decimal.RequireFromString("999999.99")

// CheckUnitPrice reports why a price is unusable, or "" when it is fine.
func CheckUnitPrice(price decimal.Decimal) string {
	switch {
	case price.IsNegative():
		return "must be zero or greater"
	case price.GreaterThan(MaxUnitPrice):
		return "must be at most " + MaxUnitPrice.StringFixed(2)
	}
	return ""
}

type MaterialRequest struct {
	Name          string          `json:"name" validate:"required,max=100"`
	Unit          string          `json:"unit" validate:"required,max=20"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	StockQuantity int             `json:"stockQuantity" validate:"gte=0,lte=1000000"`
	IsActive      *bool           `json:"isActive"`
}

type RefillMaterialRequest struct {
	QuantityToAdd int `json:"quantityToAdd" validate:"gt=0,lte=1000000"`
}

type AssignMaterialRequest struct {
	JobID        uuid.UUID `json:"jobId" validate:"required"`
	MaterialID   uuid.UUID `json:"materialId" validate:"required"`
	QuantityUsed int       `json:"quantityUsed" validate:"gt=0,lte=1000"`
}

type UpdateJobMaterialRequest struct {
	QuantityUsed int `json:"quantityUsed" validate:"gt=0,lte=1000"`
}

type MaterialFilter struct {
	Keyword string
	Page    PageRequest
}
