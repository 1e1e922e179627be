package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"servus-backend/internal/apperr"
	"servus-backend/internal/models"
)

// EmailRepository is the durable outbound mail queue.
type EmailRepository struct {
	DB *pgxpool.Pool
}

func NewEmailRepository(db *pgxpool.Pool) *EmailRepository {
	return &EmailRepository{DB: db}
}

const emailColumns = `id, recipient, subject, body, is_sent, sent_at, retry_count, last_error,
	COALESCE(claimed_by, ''), claimed_at, dead_lettered_at, created_at`

func scanEmail(row pgx.Row) (*models.QueuedEmail, error) {
	var e models.QueuedEmail
	err := row.Scan(&e.ID, &e.To, &e.Subject, &e.Body, &e.IsSent, &e.SentAt, &e.RetryCount, &e.LastError,
		&e.ClaimedBy, &e.ClaimedAt, &e.DeadLetteredAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EmailRepository) Enqueue(ctx context.Context, e *models.QueuedEmail) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO queued_emails (id, recipient, subject, body, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.To, e.Subject, e.Body, e.CreatedAt,
	)
	return err
}

// Claim marks up to limit pending emails, oldest first, as owned by worker.
// Rows locked by another drainer are skipped rather than waited on.
func (r *EmailRepository) Claim(ctx context.Context, worker string, limit, maxRetries int, now time.Time) ([]models.QueuedEmail, error) {
	rows, err := r.DB.Query(ctx, `
		UPDATE queued_emails SET claimed_by = $1, claimed_at = $2
		WHERE id IN (
			SELECT id FROM queued_emails
			WHERE NOT is_sent AND dead_lettered_at IS NULL AND claimed_by IS NULL AND retry_count < $3
			ORDER BY created_at, id
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+emailColumns,
		worker, now, maxRetries, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claimed []models.QueuedEmail
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, *e)
	}
	return claimed, rows.Err()
}

func (r *EmailRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE queued_emails SET is_sent = TRUE, sent_at = $1, claimed_by = NULL, claimed_at = NULL
		WHERE id = $2`, at, id)
	return err
}

// MarkFailed records a failed attempt and releases the claim. Once the retry
// count reaches maxRetries the row is dead-lettered and reported as such.
func (r *EmailRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, maxRetries int, at time.Time) (bool, error) {
	var dead bool
	err := r.DB.QueryRow(ctx, `
		UPDATE queued_emails
		SET retry_count = retry_count + 1,
			last_error = $1,
			claimed_by = NULL,
			claimed_at = NULL,
			dead_lettered_at = CASE WHEN retry_count + 1 >= $2 THEN $3::timestamptz ELSE NULL END
		WHERE id = $4
		RETURNING dead_lettered_at IS NOT NULL`,
		reason, maxRetries, at, id,
	).Scan(&dead)
	return dead, translate(err, "queued email")
}

// ReleaseStale frees claims held longer than the claim timeout by a worker that went away.
func (r *EmailRepository) ReleaseStale(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, `
		UPDATE queued_emails SET claimed_by = NULL, claimed_at = NULL
		WHERE NOT is_sent AND claimed_by IS NOT NULL AND claimed_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *EmailRepository) ListDeadLettered(ctx context.Context, p models.PageRequest) (models.Page[models.QueuedEmail], error) {
	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM queued_emails WHERE dead_lettered_at IS NOT NULL`).Scan(&total); err != nil {
		return models.Page[models.QueuedEmail]{}, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT `+emailColumns+`
		FROM queued_emails
		WHERE dead_lettered_at IS NOT NULL
		ORDER BY dead_lettered_at DESC, id DESC
		LIMIT $1 OFFSET $2`, p.PageSize, p.Offset())
	if err != nil {
		return models.Page[models.QueuedEmail]{}, err
	}
	defer rows.Close()

	var emails []models.QueuedEmail
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return models.Page[models.QueuedEmail]{}, err
		}
		emails = append(emails, *e)
	}
	if err := rows.Err(); err != nil {
		return models.Page[models.QueuedEmail]{}, err
	}
	return models.NewPage(emails, total, p), nil
}

// Requeue gives a dead-lettered email a fresh set of attempts.
func (r *EmailRepository) Requeue(ctx context.Context, id uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE queued_emails SET retry_count = 0, dead_lettered_at = NULL, last_error = ''
		WHERE id = $1 AND dead_lettered_at IS NOT NULL AND NOT is_sent`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("failed email")
	}
	return nil
}
