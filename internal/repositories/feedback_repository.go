package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"servus-backend/internal/apperr"
	"servus-backend/internal/models"
)

type FeedbackRepository struct {
	DB *pgxpool.Pool
}

func NewFeedbackRepository(db *pgxpool.Pool) *FeedbackRepository {
	return &FeedbackRepository{DB: db}
}

var feedbackSortColumns = map[models.SortField]string{
	models.SortSubmittedAt: "f.submitted_at",
}

const feedbackFrom = `
	FROM job_feedbacks f
	JOIN jobs j ON j.id = f.job_id
	LEFT JOIN technicians t ON t.id = j.technician_id
	LEFT JOIN users u ON u.id = t.user_id`

const feedbackSelect = `
	SELECT f.id, f.job_id, f.customer_id, f.is_satisfied, f.rating, f.comment, f.submitted_at,
		j.title, COALESCE(u.full_name, '')` + feedbackFrom

func scanFeedback(row pgx.Row) (*models.JobFeedback, error) {
	var f models.JobFeedback
	err := row.Scan(&f.ID, &f.JobID, &f.CustomerID, &f.IsSatisfied, &f.Rating, &f.Comment, &f.SubmittedAt,
		&f.JobTitle, &f.TechnicianName)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Create stores a customer's feedback; one per job and customer.
func (r *FeedbackRepository) Create(ctx context.Context, f *models.JobFeedback) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO job_feedbacks (id, job_id, customer_id, is_satisfied, rating, comment, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		f.ID, f.JobID, f.CustomerID, f.IsSatisfied, f.Rating, f.Comment, f.SubmittedAt,
	)
	if isUniqueViolation(err, "") {
		return apperr.Conflict("feedback already submitted for this job")
	}
	return translate(err, "feedback")
}

func (r *FeedbackRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.JobFeedback, error) {
	return r.query(ctx, feedbackSelect+` WHERE f.job_id = $1 ORDER BY f.submitted_at DESC, f.id DESC`, jobID)
}

// ListByTechnician returns every feedback left on the technician's jobs.
func (r *FeedbackRepository) ListByTechnician(ctx context.Context, technicianID uuid.UUID) ([]models.JobFeedback, error) {
	return r.query(ctx, feedbackSelect+` WHERE j.technician_id = $1 ORDER BY f.submitted_at DESC, f.id DESC`, technicianID)
}

func (r *FeedbackRepository) query(ctx context.Context, sql string, args ...any) ([]models.JobFeedback, error) {
	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	feedbacks := []models.JobFeedback{}
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		feedbacks = append(feedbacks, *f)
	}
	return feedbacks, rows.Err()
}

func (r *FeedbackRepository) List(ctx context.Context, f models.FeedbackFilter) (models.Page[models.JobFeedback], error) {
	var w filter
	if f.TechnicianID != nil {
		w.add("j.technician_id = $%d", *f.TechnicianID)
	}
	if f.TechnicianName != "" {
		w.add("u.full_name ILIKE $%d", likePattern(f.TechnicianName))
	}
	if f.JobTitle != "" {
		w.add("j.title ILIKE $%d", likePattern(f.JobTitle))
	}

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) `+feedbackFrom+` `+w.clause(), w.args...).Scan(&total); err != nil {
		return models.Page[models.JobFeedback]{}, err
	}

	limit, args := w.page(f.Page)
	query := fmt.Sprintf("%s %s %s %s", feedbackSelect, w.clause(),
		orderBy(feedbackSortColumns, f.Page, models.SortSubmittedAt, "f.id"), limit)

	items, err := r.query(ctx, query, args...)
	if err != nil {
		return models.Page[models.JobFeedback]{}, err
	}
	return models.NewPage(items, total, f.Page), nil
}
