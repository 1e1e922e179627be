package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"servus-backend/internal/apperr"
	"servus-backend/internal/models"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNumericOutOfRange   = "22003"
)

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// translate maps driver errors onto the application error taxonomy.
func translate(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(entity)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return &apperr.Error{Kind: apperr.KindConflict, Message: entity + " already exists", Cause: err}
		case pgForeignKeyViolation:
			return &apperr.Error{Kind: apperr.KindValidation, Message: "referenced record does not exist", Cause: err}
		case pgCheckViolation:
			return &apperr.Error{Kind: apperr.KindConflict, Message: entity + " violates a constraint", Cause: err}
		case pgNumericOutOfRange:
			return &apperr.Error{Kind: apperr.KindValidation, Message: entity + " value is out of range", Cause: err}
		}
	}
	return err
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// filter accumulates WHERE conditions with positional arguments.
// Conditions use %d for the placeholder index, e.g. "j.status = $%d".
type filter struct {
	conditions []string
	args       []any
}

func (f *filter) where(cond string) {
	f.conditions = append(f.conditions, cond)
}

func (f *filter) add(cond string, arg any) {
	f.args = append(f.args, arg)
	f.conditions = append(f.conditions, fmt.Sprintf(cond, len(f.args)))
}

func (f *filter) clause() string {
	if len(f.conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(f.conditions, " AND ")
}

// page appends LIMIT/OFFSET placeholders and returns the clause and args.
func (f *filter) page(p models.PageRequest) (string, []any) {
	args := append(append([]any{}, f.args...), p.PageSize, p.Offset())
	return fmt.Sprintf("LIMIT $%d OFFSET $%d", len(f.args)+1, len(f.args)+2), args
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(s)) + "%"
}

// orderBy renders ORDER BY for a whitelisted sort field. The id tiebreaker
// keeps page boundaries stable when the sort column has duplicates.
func orderBy(columns map[models.SortField]string, p models.PageRequest, fallback models.SortField, idColumn string) string {
	col, ok := columns[p.SortBy]
	if !ok {
		col = columns[fallback]
	}
	dir := "ASC"
	if p.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s %s, %s %s", col, dir, idColumn, dir)
}

const lifecycleColumns = `is_active, is_deleted, created_at, created_by, created_by_name, modified_at, modified_by, modified_by_name`

// lifecycleColumnsOf prefixes lifecycleColumns with a table alias.
func lifecycleColumnsOf(alias string) string {
	cols := strings.Split(lifecycleColumns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

func lifecycleDest(l *models.Lifecycle) []any {
	return []any{&l.IsActive, &l.IsDeleted, &l.CreatedAt, &l.CreatedBy, &l.CreatedByName, &l.ModifiedAt, &l.ModifiedBy, &l.ModifiedByName}
}

func lifecycleArgs(l models.Lifecycle) []any {
	return []any{l.IsActive, l.IsDeleted, l.CreatedAt, l.CreatedBy, l.CreatedByName, l.ModifiedAt, l.ModifiedBy, l.ModifiedByName}
}

// modifiedBy converts an activity's actor stamp into modified_* values.
func modifiedBy(a models.JobActivity) (any, any, any) {
	return a.PerformedAt, a.PerformedBy, a.PerformedByName
}

func insertActivity(ctx context.Context, tx pgx.Tx, a models.JobActivity) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO job_activities (id, job_id, activity_type, details, performed_by, performed_by_name, performed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.JobID, a.ActivityType, a.Details, a.PerformedBy, a.PerformedByName, a.PerformedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// lockedJob is the guard state of a job row held under FOR UPDATE.
type lockedJob struct {
	Status       models.JobStatus
	TechnicianID *uuid.UUID
	IsDeleted    bool
}

// lockJob locks the job row for the rest of tx and rejects archived jobs.
func lockJob(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) (*lockedJob, error) {
	var j lockedJob
	err := tx.QueryRow(ctx,
		`SELECT status, technician_id, is_deleted FROM jobs WHERE id = $1 FOR UPDATE`, jobID,
	).Scan(&j.Status, &j.TechnicianID, &j.IsDeleted)
	if err != nil {
		return nil, translate(err, "job")
	}
	if j.IsDeleted {
		return nil, apperr.Conflict("job is archived")
	}
	return &j, nil
}
