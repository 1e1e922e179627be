package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"servus-backend/internal/apperr"
	"servus-backend/internal/models"
)

// NoteRepository stores free-text notes on jobs.
type NoteRepository struct {
	DB *pgxpool.Pool
}

func NewNoteRepository(db *pgxpool.Pool) *NoteRepository {
	return &NoteRepository{DB: db}
}

var noteSelect = `SELECT id, job_id, note, ` + lifecycleColumns + ` FROM job_notes`

func scanNote(row pgx.Row) (*models.JobNote, error) {
	var n models.JobNote
	if err := row.Scan(append([]any{&n.ID, &n.JobID, &n.Note}, lifecycleDest(&n.Lifecycle)...)...); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *NoteRepository) Add(ctx context.Context, n *models.JobNote, a models.JobActivity) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := lockJob(ctx, tx, n.JobID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO job_notes (id, job_id, note, `+lifecycleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		append([]any{n.ID, n.JobID, n.Note}, lifecycleArgs(n.Lifecycle)...)...,
	); err != nil {
		return translate(err, "note")
	}
	if err := insertActivity(ctx, tx, a); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *NoteRepository) Get(ctx context.Context, id uuid.UUID) (*models.JobNote, error) {
	n, err := scanNote(r.DB.QueryRow(ctx, noteSelect+` WHERE id = $1 AND NOT is_deleted`, id))
	if err != nil {
		return nil, translate(err, "note")
	}
	return n, nil
}

func (r *NoteRepository) Edit(ctx context.Context, n *models.JobNote, a models.JobActivity) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := lockJob(ctx, tx, n.JobID); err != nil {
		return err
	}
	at, by, byName := modifiedBy(a)
	tag, err := tx.Exec(ctx, `
		UPDATE job_notes SET note = $1, modified_at = $2, modified_by = $3, modified_by_name = $4
		WHERE id = $5 AND job_id = $6 AND NOT is_deleted`,
		n.Note, at, by, byName, n.ID, n.JobID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("note")
	}
	if err := insertActivity(ctx, tx, a); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *NoteRepository) Delete(ctx context.Context, jobID, noteID uuid.UUID, a models.JobActivity) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := lockJob(ctx, tx, jobID); err != nil {
		return err
	}
	at, by, byName := modifiedBy(a)
	tag, err := tx.Exec(ctx, `
		UPDATE job_notes SET is_deleted = TRUE, is_active = FALSE, modified_at = $1, modified_by = $2, modified_by_name = $3
		WHERE id = $4 AND job_id = $5 AND NOT is_deleted`,
		at, by, byName, noteID, jobID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("note")
	}
	if err := insertActivity(ctx, tx, a); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *NoteRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.JobNote, error) {
	rows, err := r.DB.Query(ctx, noteSelect+` WHERE job_id = $1 AND NOT is_deleted ORDER BY created_at DESC, id DESC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := []models.JobNote{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

// PhotoRepository stores the URLs of uploaded job photos.
type PhotoRepository struct {
	DB *pgxpool.Pool
}

func NewPhotoRepository(db *pgxpool.Pool) *PhotoRepository {
	return &PhotoRepository{DB: db}
}

var photoSelect = `SELECT id, job_id, photo_url, ` + lifecycleColumns + ` FROM job_photos`

func scanPhoto(row pgx.Row) (*models.JobPhoto, error) {
	var p models.JobPhoto
	if err := row.Scan(append([]any{&p.ID, &p.JobID, &p.PhotoURL}, lifecycleDest(&p.Lifecycle)...)...); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PhotoRepository) Add(ctx context.Context, p *models.JobPhoto, a models.JobActivity) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := lockJob(ctx, tx, p.JobID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO job_photos (id, job_id, photo_url, `+lifecycleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		append([]any{p.ID, p.JobID, p.PhotoURL}, lifecycleArgs(p.Lifecycle)...)...,
	); err != nil {
		return translate(err, "photo")
	}
	if err := insertActivity(ctx, tx, a); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PhotoRepository) Get(ctx context.Context, id uuid.UUID) (*models.JobPhoto, error) {
	p, err := scanPhoto(r.DB.QueryRow(ctx, photoSelect+` WHERE id = $1 AND NOT is_deleted`, id))
	if err != nil {
		return nil, translate(err, "photo")
	}
	return p, nil
}

func (r *PhotoRepository) Delete(ctx context.Context, p *models.JobPhoto, a models.JobActivity) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := lockJob(ctx, tx, p.JobID); err != nil {
		return err
	}
	at, by, byName := modifiedBy(a)
	tag, err := tx.Exec(ctx, `
		UPDATE job_photos SET is_deleted = TRUE, is_active = FALSE, modified_at = $1, modified_by = $2, modified_by_name = $3
		WHERE id = $4 AND NOT is_deleted`,
		at, by, byName, p.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("photo")
	}
	if err := insertActivity(ctx, tx, a); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PhotoRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.JobPhoto, error) {
	rows, err := r.DB.Query(ctx, photoSelect+` WHERE job_id = $1 AND NOT is_deleted ORDER BY created_at DESC, id DESC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	photos := []models.JobPhoto{}
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, *p)
	}
	return photos, rows.Err()
}
