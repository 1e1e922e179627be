package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"servus-backend/internal/models"
)

// DashboardRepository runs the reporting aggregates.
type DashboardRepository struct {
	DB *pgxpool.Pool
}

func NewDashboardRepository(db *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{DB: db}
}

func (r *DashboardRepository) Summary(ctx context.Context, lowStockThreshold int) (*models.DashboardSummary, error) {
	var s models.DashboardSummary
	err := r.DB.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM jobs WHERE NOT is_deleted),
			(SELECT COUNT(*) FROM jobs WHERE NOT is_deleted AND status = 'Scheduled'),
			(SELECT COUNT(*) FROM jobs WHERE NOT is_deleted AND status = 'Started'),
			(SELECT COUNT(*) FROM jobs WHERE NOT is_deleted AND status = 'Completed'),
			(SELECT COUNT(*) FROM users WHERE is_active AND NOT is_deleted AND role = 'Technician'),
			(SELECT COUNT(*) FROM customers WHERE NOT is_deleted),
			(SELECT COALESCE(SUM(amount), 0) FROM invoices WHERE NOT is_paid)
	`).Scan(&s.TotalJobs, &s.ScheduledJobs, &s.StartedJobs, &s.CompletedJobs,
		&s.ActiveTechnicians, &s.TotalCustomers, &s.UnpaidInvoiceTotal)
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, name, stock_quantity FROM materials
		WHERE NOT is_deleted AND is_active AND stock_quantity < $1
		ORDER BY stock_quantity, name`, lowStockThreshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	s.LowStockMaterials = []models.LowStockMaterial{}
	for rows.Next() {
		var m models.LowStockMaterial
		if err := rows.Scan(&m.MaterialID, &m.MaterialName, &m.StockQuantity); err != nil {
			return nil, err
		}
		s.LowStockMaterials = append(s.LowStockMaterials, m)
	}
	return &s, rows.Err()
}

func (r *DashboardRepository) JobStatusCounts(ctx context.Context) ([]models.StatusCount, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT status, COUNT(*) FROM jobs
		WHERE NOT is_deleted
		GROUP BY status
		ORDER BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []models.StatusCount{}
	for rows.Next() {
		var c models.StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// MonthlyRevenue totals invoice amounts per calendar month, newest first.
func (r *DashboardRepository) MonthlyRevenue(ctx context.Context) ([]models.MonthlyRevenue, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT EXTRACT(YEAR FROM created_at)::int AS year, EXTRACT(MONTH FROM created_at)::int AS month, SUM(amount)
		FROM invoices
		GROUP BY year, month
		ORDER BY year DESC, month DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	revenue := []models.MonthlyRevenue{}
	for rows.Next() {
		var m models.MonthlyRevenue
		if err := rows.Scan(&m.Year, &m.Month, &m.TotalRevenue); err != nil {
			return nil, err
		}
		revenue = append(revenue, m)
	}
	return revenue, rows.Err()
}

func (r *DashboardRepository) TechnicianActivity(ctx context.Context) ([]models.TechnicianActivity, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT t.id, u.full_name, COUNT(*)
		FROM jobs j
		JOIN technicians t ON t.id = j.technician_id
		JOIN users u ON u.id = t.user_id
		WHERE NOT j.is_deleted AND j.status = 'Completed'
		GROUP BY t.id, u.full_name
		ORDER BY COUNT(*) DESC, u.full_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activity := []models.TechnicianActivity{}
	for rows.Next() {
		var a models.TechnicianActivity
		if err := rows.Scan(&a.TechnicianID, &a.TechnicianName, &a.JobsCompleted); err != nil {
			return nil, err
		}
		activity = append(activity, a)
	}
	return activity, rows.Err()
}

// JobTimestampsSince returns the lifecycle timestamps of unarchived jobs
// touched (scheduled, started or completed) at or after since.
func (r *DashboardRepository) JobTimestampsSince(ctx context.Context, since time.Time) ([]models.JobTimestamps, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT scheduled_at, started_at, completed_at FROM jobs
		WHERE NOT is_deleted AND (scheduled_at >= $1 OR started_at >= $1 OR completed_at >= $1)`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.JobTimestamps
	for rows.Next() {
		var t models.JobTimestamps
		if err := rows.Scan(&t.ScheduledAt, &t.StartedAt, &t.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CompletionsSince lists completion times of one technician's jobs.
func (r *DashboardRepository) CompletionsSince(ctx context.Context, technicianID uuid.UUID, since time.Time) ([]time.Time, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT completed_at FROM jobs
		WHERE technician_id = $1 AND completed_at IS NOT NULL AND completed_at >= $2`, technicianID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *DashboardRepository) RatingCounts(ctx context.Context) ([]models.RatingCount, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT rating, COUNT(*) FROM job_feedbacks
		WHERE rating IS NOT NULL
		GROUP BY rating
		ORDER BY rating DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []models.RatingCount{}
	for rows.Next() {
		var c models.RatingCount
		if err := rows.Scan(&c.Rating, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (r *DashboardRepository) TechnicianPerformance(ctx context.Context) ([]models.TechnicianPerformance, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT t.id, u.full_name,
			COUNT(DISTINCT j.id) FILTER (WHERE j.status = 'Completed'),
			COALESCE(ROUND(AVG(f.rating)::numeric, 2), 0)::float8
		FROM technicians t
		JOIN users u ON u.id = t.user_id
		JOIN jobs j ON j.technician_id = t.id AND NOT j.is_deleted
		LEFT JOIN job_feedbacks f ON f.job_id = j.id
		GROUP BY t.id, u.full_name
		ORDER BY u.full_name, t.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perf := []models.TechnicianPerformance{}
	for rows.Next() {
		var p models.TechnicianPerformance
		if err := rows.Scan(&p.TechnicianID, &p.TechnicianName, &p.JobsCompleted, &p.AverageRating); err != nil {
			return nil, err
		}
		perf = append(perf, p)
	}
	return perf, rows.Err()
}
