package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"servus-backend/internal/apperr"
	"servus-backend/internal/models"
	"servus-backend/internal/timeutil"
)

type JobRepository struct {
	DB *pgxpool.Pool
}

func NewJobRepository(db *pgxpool.Pool) *JobRepository {
	return &JobRepository{DB: db}
}

var jobSortColumns = map[models.SortField]string{
	models.SortScheduledAt:    "j.scheduled_at",
	models.SortCreatedAt:      "j.created_at",
	models.SortTitle:          "j.title",
	models.SortStatus:         "j.status",
	models.SortCustomerName:   "c.full_name",
	models.SortTechnicianName: "u.full_name",
}

const jobFrom = `
	FROM jobs j
	JOIN customers c ON c.id = j.customer_id
	LEFT JOIN technicians t ON t.id = j.technician_id
	LEFT JOIN users u ON u.id = t.user_id`

var jobSelect = `
	SELECT j.id, j.customer_id, j.technician_id, j.title, j.description, j.status, j.is_assigned,
		j.scheduled_at, j.started_at, j.completed_at,
		c.full_name, c.email, COALESCE(u.full_name, ''), COALESCE(u.email, ''),
		` + lifecycleColumnsOf("j") + jobFrom

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	dest := []any{
		&j.ID, &j.CustomerID, &j.TechnicianID, &j.Title, &j.Description, &j.Status, &j.IsAssigned,
		&j.ScheduledAt, &j.StartedAt, &j.CompletedAt,
		&j.CustomerName, &j.CustomerEmail, &j.TechnicianName, &j.TechnicianEmail,
	}
	if err := row.Scan(append(dest, lifecycleDest(&j.Lifecycle)...)...); err != nil {
		return nil, err
	}
	return &j, nil
}

func insertJob(ctx context.Context, tx pgx.Tx, j *models.Job) error {
	args := []any{j.ID, j.CustomerID, j.TechnicianID, j.Title, j.Description, j.Status, j.IsAssigned, j.ScheduledAt}
	_, err := tx.Exec(ctx, `
		INSERT INTO jobs (id, customer_id, technician_id, title, description, status, is_assigned, scheduled_at,
			`+lifecycleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		append(args, lifecycleArgs(j.Lifecycle)...)...,
	)
	return translate(err, "job")
}

// Create inserts a job together with its creation activity.
func (r *JobRepository) Create(ctx context.Context, j *models.Job, a models.JobActivity) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := insertJob(ctx, tx, j); err != nil {
		return err
	}
	if err := insertActivity(ctx, tx, a); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CreateGuestRequest inserts a new customer and an unassigned job for them in one transaction.
func (r *JobRepository) CreateGuestRequest(ctx context.Context, c *models.Customer, j *models.Job, a models.JobActivity) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := insertCustomer(ctx, tx, c); err != nil {
		return err
	}
	if err := insertJob(ctx, tx, j); err != nil {
		return err
	}
	if err := insertActivity(ctx, tx, a); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Get returns a job by id, archived or not.
func (r *JobRepository) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j, err := scanJob(r.DB.QueryRow(ctx, jobSelect+` WHERE j.id = $1`, id))
	if err != nil {
		return nil, translate(err, "job")
	}
	return j, nil
}

// Reassign moves the job from technician `from` (nil when unassigned) to `to`.
// The update only applies while the job is still Scheduled, unarchived and
// held by `from`; anything else is reported as a conflict.
func (r *JobRepository) Reassign(ctx context.Context, jobID uuid.UUID, from *uuid.UUID, to uuid.UUID, a models.JobActivity) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	at, by, byName := modifiedBy(a)
	tag, err := tx.Exec(ctx, `
		UPDATE jobs
		SET technician_id = $1, is_assigned = TRUE, modified_at = $2, modified_by = $3, modified_by_name = $4
		WHERE id = $5 AND status = $6 AND NOT is_deleted AND technician_id IS NOT DISTINCT FROM $7`,
		to, at, by, byName, jobID, models.JobScheduled, from,
	)
	if err != nil {
		return translate(err, "job")
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("job was modified by another request; reload and try again")
	}
	if err := insertActivity(ctx, tx, a); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ChangeStatus applies a guarded status transition and stamps started/completed times.
func (r *JobRepository) ChangeStatus(ctx context.Context, sc models.StatusChange, a models.JobActivity) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	at, by, byName := modifiedBy(a)
	tag, err := tx.Exec(ctx, `
		UPDATE jobs
		SET status = $1,
			started_at = CASE WHEN $1 = 'Started' THEN $2 ELSE started_at END,
			completed_at = CASE WHEN $1 = 'Completed' THEN $2 ELSE completed_at END,
			modified_at = $3, modified_by = $4, modified_by_name = $5
		WHERE id = $6 AND status = $7 AND NOT is_deleted`,
		string(sc.To), sc.At, at, by, byName, sc.JobID, sc.From,
	)
	if err != nil {
		return translate(err, "job")
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("job was modified by another request; reload and try again")
	}
	if err := insertActivity(ctx, tx, a); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Archive soft-deletes a job that is not yet archived or completed.
func (r *JobRepository) Archive(ctx context.Context, jobID uuid.UUID, a models.JobActivity) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	at, by, byName := modifiedBy(a)
	tag, err := tx.Exec(ctx, `
		UPDATE jobs
		SET is_deleted = TRUE, is_active = FALSE, modified_at = $1, modified_by = $2, modified_by_name = $3
		WHERE id = $4 AND NOT is_deleted AND status <> $5`,
		at, by, byName, jobID, models.JobCompleted,
	)
	if err != nil {
		return translate(err, "job")
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("job is already archived or completed")
	}
	if err := insertActivity(ctx, tx, a); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// List returns one page of unarchived jobs matching f.
func (r *JobRepository) List(ctx context.Context, f models.JobFilter) (models.Page[models.Job], error) {
	var w filter
	w.where("NOT j.is_deleted")
	if f.Status != "" {
		w.add("j.status = $%d", f.Status)
	}
	if f.TechnicianID != nil {
		w.add("j.technician_id = $%d", *f.TechnicianID)
	}
	if f.Unassigned {
		w.where("j.technician_id IS NULL")
	}
	if f.TechnicianName != "" {
		w.add("u.full_name ILIKE $%d", likePattern(f.TechnicianName))
	}
	if f.CustomerName != "" {
		w.add("c.full_name ILIKE $%d", likePattern(f.CustomerName))
	}
	if f.Keyword != "" {
		w.add("(j.title ILIKE $%[1]d OR j.description ILIKE $%[1]d OR c.full_name ILIKE $%[1]d)", likePattern(f.Keyword))
	}
	if f.Date != nil {
		w.add("j.scheduled_at >= $%d", timeutil.StartOfDay(*f.Date))
		w.add("j.scheduled_at <= $%d", timeutil.EndOfDay(*f.Date))
	}

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) `+jobFrom+` `+w.clause(), w.args...).Scan(&total); err != nil {
		return models.Page[models.Job]{}, err
	}

	limit, args := w.page(f.Page)
	query := fmt.Sprintf("%s %s %s %s", jobSelect, w.clause(),
		orderBy(jobSortColumns, f.Page, models.SortScheduledAt, "j.id"), limit)

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return models.Page[models.Job]{}, err
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return models.Page[models.Job]{}, err
		}
		jobs = append(jobs, *j)
	}
	if err := rows.Err(); err != nil {
		return models.Page[models.Job]{}, err
	}
	return models.NewPage(jobs, total, f.Page), nil
}

// Activities returns a job's audit trail, newest first.
func (r *JobRepository) Activities(ctx context.Context, jobID uuid.UUID) ([]models.JobActivity, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, job_id, activity_type, details, performed_by, performed_by_name, performed_at
		FROM job_activities
		WHERE job_id = $1
		ORDER BY performed_at DESC, id DESC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activities := []models.JobActivity{}
	for rows.Next() {
		var a models.JobActivity
		if err := rows.Scan(&a.ID, &a.JobID, &a.ActivityType, &a.Details, &a.PerformedBy, &a.PerformedByName, &a.PerformedAt); err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}
