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

type TechnicianRepository struct {
	DB *pgxpool.Pool
}

func NewTechnicianRepository(db *pgxpool.Pool) *TechnicianRepository {
	return &TechnicianRepository{DB: db}
}

var technicianSelect = `
	SELECT t.id, t.user_id, u.full_name, u.email, u.phone_number,
		t.current_latitude, t.current_longitude, t.is_available,
		` + lifecycleColumnsOf("t") + `
	FROM technicians t
	JOIN users u ON u.id = t.user_id`

func scanTechnician(row pgx.Row) (*models.Technician, error) {
	var t models.Technician
	dest := []any{&t.ID, &t.UserID, &t.FullName, &t.Email, &t.PhoneNumber,
		&t.CurrentLatitude, &t.CurrentLongitude, &t.IsAvailable}
	if err := row.Scan(append(dest, lifecycleDest(&t.Lifecycle)...)...); err != nil {
		return nil, err
	}
	return &t, nil
}

// insertTechnician creates the profile, reviving a previously deactivated one for the same user.
func insertTechnician(ctx context.Context, q execer, t *models.Technician) error {
	_, err := q.Exec(ctx, `
		INSERT INTO technicians (id, user_id, is_available, `+lifecycleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE SET is_active = TRUE, is_deleted = FALSE`,
		append([]any{t.ID, t.UserID, t.IsAvailable}, lifecycleArgs(t.Lifecycle)...)...,
	)
	return translate(err, "technician")
}

// Get returns an active technician by profile id.
func (r *TechnicianRepository) Get(ctx context.Context, id uuid.UUID) (*models.Technician, error) {
	t, err := scanTechnician(r.DB.QueryRow(ctx, technicianSelect+`
		WHERE t.id = $1 AND t.is_active AND NOT t.is_deleted AND u.is_active`, id))
	if err != nil {
		return nil, translate(err, "technician")
	}
	return t, nil
}

func (r *TechnicianRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Technician, error) {
	t, err := scanTechnician(r.DB.QueryRow(ctx, technicianSelect+`
		WHERE t.user_id = $1 AND NOT t.is_deleted`, userID))
	if err != nil {
		return nil, translate(err, "technician")
	}
	return t, nil
}

// List returns the active technicians ordered by name.
func (r *TechnicianRepository) List(ctx context.Context) ([]models.Technician, error) {
	rows, err := r.DB.Query(ctx, technicianSelect+`
		WHERE t.is_active AND NOT t.is_deleted AND u.is_active
		ORDER BY u.full_name, t.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	technicians := []models.Technician{}
	for rows.Next() {
		t, err := scanTechnician(rows)
		if err != nil {
			return nil, err
		}
		technicians = append(technicians, *t)
	}
	return technicians, rows.Err()
}

func (r *TechnicianRepository) UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64, at time.Time) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE technicians SET current_latitude = $1, current_longitude = $2, location_updated_at = $3
		WHERE id = $4 AND NOT is_deleted`,
		lat, lng, at, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("technician")
	}
	return nil
}

func (r *TechnicianRepository) UpdateAvailability(ctx context.Context, id uuid.UUID, available bool, stamp models.Lifecycle) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE technicians SET is_available = $1, modified_at = $2, modified_by = $3, modified_by_name = $4
		WHERE id = $5 AND NOT is_deleted`,
		available, stamp.ModifiedAt, stamp.ModifiedBy, stamp.ModifiedByName, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("technician")
	}
	return nil
}
