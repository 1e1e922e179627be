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

type UserRepository struct {
	DB *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{DB: db}
}

var userSortColumns = map[models.SortField]string{
	models.SortFullName:  "full_name",
	models.SortEmail:     "email",
	models.SortRole:      "role",
	models.SortCreatedAt: "created_at",
}

var userSelect = `
	SELECT id, full_name, email, phone_number, role, password_hash, ` + lifecycleColumns + `
	FROM users`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	dest := []any{&u.ID, &u.FullName, &u.Email, &u.PhoneNumber, &u.Role, &u.PasswordHash}
	if err := row.Scan(append(dest, lifecycleDest(&u.Lifecycle)...)...); err != nil {
		return nil, err
	}
	return &u, nil
}

func duplicateEmail(err error) error {
	if isUniqueViolation(err, "idx_users_email_lower") {
		return &apperr.Error{
			Kind:    apperr.KindConflict,
			Message: "email already in use",
			Fields:  map[string]string{"email": "email already in use"},
			Cause:   err,
		}
	}
	return translate(err, "user")
}

// Create inserts a user and, when tech is non-nil, its technician profile in the same transaction.
func (r *UserRepository) Create(ctx context.Context, u *models.User, tech *models.Technician) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	args := []any{u.ID, u.FullName, u.Email, u.PhoneNumber, u.Role, u.PasswordHash}
	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, full_name, email, phone_number, role, password_hash, `+lifecycleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		append(args, lifecycleArgs(u.Lifecycle)...)...,
	)
	if err != nil {
		return duplicateEmail(err)
	}

	if tech != nil {
		if err := insertTechnician(ctx, tx, tech); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *UserRepository) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(r.DB.QueryRow(ctx, userSelect+` WHERE id = $1 AND NOT is_deleted`, id))
	if err != nil {
		return nil, translate(err, "user")
	}
	return u, nil
}

// GetByEmail matches case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(r.DB.QueryRow(ctx, userSelect+` WHERE LOWER(email) = LOWER($1) AND NOT is_deleted`, email))
	if err != nil {
		return nil, translate(err, "user")
	}
	return u, nil
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// Update writes profile fields, role and the active flag. A role change to
// Technician creates the missing technician profile.
func (r *UserRepository) Update(ctx context.Context, u *models.User, tech *models.Technician) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE users
		SET full_name = $1, email = $2, phone_number = $3, role = $4, is_active = $5,
			modified_at = $6, modified_by = $7, modified_by_name = $8
		WHERE id = $9 AND NOT is_deleted`,
		u.FullName, u.Email, u.PhoneNumber, u.Role, u.IsActive,
		u.ModifiedAt, u.ModifiedBy, u.ModifiedByName, u.ID,
	)
	if err != nil {
		return duplicateEmail(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user")
	}

	if tech != nil {
		if err := insertTechnician(ctx, tx, tech); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string, stamp models.Lifecycle) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE users SET password_hash = $1, modified_at = $2, modified_by = $3, modified_by_name = $4
		WHERE id = $5 AND NOT is_deleted`,
		hash, stamp.ModifiedAt, stamp.ModifiedBy, stamp.ModifiedByName, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

// Deactivate disables sign-in for the user and their technician profile.
func (r *UserRepository) Deactivate(ctx context.Context, id uuid.UUID, stamp models.Lifecycle) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE users SET is_active = FALSE, modified_at = $1, modified_by = $2, modified_by_name = $3
		WHERE id = $4 AND NOT is_deleted AND is_active`,
		stamp.ModifiedAt, stamp.ModifiedBy, stamp.ModifiedByName, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND NOT is_deleted)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound("user")
		}
		return apperr.Conflict("user is already inactive")
	}

	if _, err := tx.Exec(ctx, `
		UPDATE technicians SET is_active = FALSE, is_available = FALSE, modified_at = $1, modified_by = $2, modified_by_name = $3
		WHERE user_id = $4`,
		stamp.ModifiedAt, stamp.ModifiedBy, stamp.ModifiedByName, id,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *UserRepository) List(ctx context.Context, f models.UserFilter) (models.Page[models.User], error) {
	var w filter
	w.where("NOT is_deleted")
	if f.Role != "" {
		w.add("role = $%d", f.Role)
	}
	if f.Keyword != "" {
		w.add("(full_name ILIKE $%[1]d OR email ILIKE $%[1]d OR phone_number ILIKE $%[1]d)", likePattern(f.Keyword))
	}

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM users `+w.clause(), w.args...).Scan(&total); err != nil {
		return models.Page[models.User]{}, err
	}

	limit, args := w.page(f.Page)
	query := fmt.Sprintf("%s %s %s %s", userSelect, w.clause(),
		orderBy(userSortColumns, f.Page, models.SortFullName, "id"), limit)

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return models.Page[models.User]{}, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return models.Page[models.User]{}, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return models.Page[models.User]{}, err
	}
	return models.NewPage(users, total, f.Page), nil
}
