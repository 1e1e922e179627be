package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"servus-backend/internal/events"
	"servus-backend/internal/models"
)

// The interfaces below are the slices of the repositories each service uses.
// The postgres repositories satisfy them; tests use in-memory fakes.

type UserStore interface {
	Create(ctx context.Context, u *models.User, tech *models.Technician) error
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, u *models.User, tech *models.Technician) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string, stamp models.Lifecycle) error
	Deactivate(ctx context.Context, id uuid.UUID, stamp models.Lifecycle) error
	List(ctx context.Context, f models.UserFilter) (models.Page[models.User], error)
}

type TechnicianStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Technician, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Technician, error)
	List(ctx context.Context) ([]models.Technician, error)
	UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64, at time.Time) error
	UpdateAvailability(ctx context.Context, id uuid.UUID, available bool, stamp models.Lifecycle) error
}

type CustomerStore interface {
	Create(ctx context.Context, c *models.Customer) error
	Get(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Customer, error)
	Update(ctx context.Context, c *models.Customer) error
	SetArchived(ctx context.Context, id uuid.UUID, archived bool, stamp models.Lifecycle) error
	Search(ctx context.Context, f models.CustomerFilter) (models.Page[models.Customer], error)
}

type JobStore interface {
	Create(ctx context.Context, j *models.Job, a models.JobActivity) error
	CreateGuestRequest(ctx context.Context, c *models.Customer, j *models.Job, a models.JobActivity) error
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)
	Reassign(ctx context.Context, jobID uuid.UUID, from *uuid.UUID, to uuid.UUID, a models.JobActivity) error
	ChangeStatus(ctx context.Context, sc models.StatusChange, a models.JobActivity) error
	Archive(ctx context.Context, jobID uuid.UUID, a models.JobActivity) error
	List(ctx context.Context, f models.JobFilter) (models.Page[models.Job], error)
	Activities(ctx context.Context, jobID uuid.UUID) ([]models.JobActivity, error)
}

type MaterialStore interface {
	Create(ctx context.Context, m *models.Material) error
	Get(ctx context.Context, id uuid.UUID) (*models.Material, error)
	Update(ctx context.Context, m *models.Material) error
	Refill(ctx context.Context, id uuid.UUID, quantity int, stamp models.Lifecycle) (int, error)
	SoftDelete(ctx context.Context, id uuid.UUID, stamp models.Lifecycle) error
	List(ctx context.Context, f models.MaterialFilter) (models.Page[models.Material], error)
}

type JobMaterialStore interface {
	Assign(ctx context.Context, jm *models.JobMaterial, a models.JobActivity) error
	UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int, a models.JobActivity) error
	Remove(ctx context.Context, jobID, materialID uuid.UUID, a models.JobActivity) (int, error)
	Get(ctx context.Context, id uuid.UUID) (*models.JobMaterial, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.JobMaterial, error)
}

type NoteStore interface {
	Add(ctx context.Context, n *models.JobNote, a models.JobActivity) error
	Get(ctx context.Context, id uuid.UUID) (*models.JobNote, error)
	Edit(ctx context.Context, n *models.JobNote, a models.JobActivity) error
	Delete(ctx context.Context, jobID, noteID uuid.UUID, a models.JobActivity) error
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.JobNote, error)
}

type PhotoStore interface {
	Add(ctx context.Context, p *models.JobPhoto, a models.JobActivity) error
	Get(ctx context.Context, id uuid.UUID) (*models.JobPhoto, error)
	Delete(ctx context.Context, p *models.JobPhoto, a models.JobActivity) error
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.JobPhoto, error)
}

type InvoiceStore interface {
	Create(ctx context.Context, inv *models.Invoice, a models.JobActivity) error
	Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	ExistsForJob(ctx context.Context, jobID uuid.UUID) (bool, error)
	MarkPaid(ctx context.Context, inv *models.Invoice, paidAt time.Time, paidBy *uuid.UUID, a models.JobActivity) error
	List(ctx context.Context, f models.InvoiceFilter) (models.Page[models.Invoice], error)
}

type FeedbackStore interface {
	Create(ctx context.Context, f *models.JobFeedback) error
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.JobFeedback, error)
	ListByTechnician(ctx context.Context, technicianID uuid.UUID) ([]models.JobFeedback, error)
	List(ctx context.Context, f models.FeedbackFilter) (models.Page[models.JobFeedback], error)
}

type EmailStore interface {
	Enqueue(ctx context.Context, e *models.QueuedEmail) error
	Claim(ctx context.Context, worker string, limit, maxRetries int, now time.Time) ([]models.QueuedEmail, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, maxRetries int, at time.Time) (bool, error)
	ReleaseStale(ctx context.Context, olderThan time.Time) (int64, error)
	ListDeadLettered(ctx context.Context, p models.PageRequest) (models.Page[models.QueuedEmail], error)
	Requeue(ctx context.Context, id uuid.UUID) error
}

type DashboardStore interface {
	Summary(ctx context.Context, lowStockThreshold int) (*models.DashboardSummary, error)
	JobStatusCounts(ctx context.Context) ([]models.StatusCount, error)
	MonthlyRevenue(ctx context.Context) ([]models.MonthlyRevenue, error)
	TechnicianActivity(ctx context.Context) ([]models.TechnicianActivity, error)
	JobTimestampsSince(ctx context.Context, since time.Time) ([]models.JobTimestamps, error)
	CompletionsSince(ctx context.Context, technicianID uuid.UUID, since time.Time) ([]time.Time, error)
	RatingCounts(ctx context.Context) ([]models.RatingCount, error)
	TechnicianPerformance(ctx context.Context) ([]models.TechnicianPerformance, error)
}

// RatingCache is satisfied by cache.RedisCache.
type RatingCache interface {
	GetRatingSummary(ctx context.Context, technicianID uuid.UUID) (*models.RatingSummary, bool)
	SetRatingSummary(ctx context.Context, s *models.RatingSummary)
	InvalidateRatingSummary(ctx context.Context, technicianID uuid.UUID)
}

// Publisher is satisfied by events.Bus.
type Publisher interface {
	Publish(ctx context.Context, ev events.JobEvent)
}
