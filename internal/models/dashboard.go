package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DashboardSummary struct {
	TotalJobs          int                `json:"totalJobs"`
	ScheduledJobs      int                `json:"scheduledJobs"`
	StartedJobs        int                `json:"startedJobs"`
	CompletedJobs      int                `json:"completedJobs"`
	ActiveTechnicians  int                `json:"activeTechnicians"`
	TotalCustomers     int                `json:"totalCustomers"`
	LowStockMaterials  []LowStockMaterial `json:"lowStockMaterials"`
	UnpaidInvoiceTotal decimal.Decimal    `json:"unpaidInvoiceTotal"`
}

type LowStockMaterial struct {
	MaterialID    uuid.UUID `json:"materialId"`
	MaterialName  string    `json:"materialName"`
	StockQuantity int       `json:"stockQuantity"`
}

type StatusCount struct {
	Status JobStatus `json:"status"`
	Count  int       `json:"count"`
}

type MonthlyRevenue struct {
	Year         int             `json:"year"`
	Month        int             `json:"month"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
}

type TechnicianActivity struct {
	TechnicianID   uuid.UUID `json:"technicianId"`
	TechnicianName string    `json:"technicianName"`
	JobsCompleted  int       `json:"jobsCompleted"`
}

type JobTrend struct {
	Date      time.Time `json:"date"`
	Scheduled int       `json:"scheduled"`
	Started   int       `json:"started"`
	Completed int       `json:"completed"`
}

type RatingCount struct {
	Rating int `json:"rating"`
	Count  int `json:"count"`
}

type TechnicianPerformance struct {
	TechnicianID   uuid.UUID `json:"technicianId"`
	TechnicianName string    `json:"technicianName"`
	JobsCompleted  int       `json:"jobsCompleted"`
	AverageRating  float64   `json:"averageRating"`
}

type DailyCompletion struct {
	Date          time.Time `json:"date"`
	JobsCompleted int       `json:"jobsCompleted"`
}

// JobTimestamps is the projection the trend charts are computed from.
type JobTimestamps struct {
	ScheduledAt time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}
