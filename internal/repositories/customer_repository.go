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

type CustomerRepository struct {
	DB *pgxpool.Pool
}

func NewCustomerRepository(db *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{DB: db}
}

var customerSortColumns = map[models.SortField]string{
	models.SortFullName:  "full_name",
	models.SortCreatedAt: "created_at",
}

var customerSelect = `
	SELECT id, user_id, full_name, email, phone_number, address, latitude, longitude, ` + lifecycleColumns + `
	FROM customers`

func scanCustomer(row pgx.Row) (*models.Customer, error) {
	var c models.Customer
	dest := []any{&c.ID, &c.UserID, &c.FullName, &c.Email, &c.PhoneNumber, &c.Address, &c.Latitude, &c.Longitude}
	if err := row.Scan(append(dest, lifecycleDest(&c.Lifecycle)...)...); err != nil {
		return nil, err
	}
	return &c, nil
}

func insertCustomer(ctx context.Context, q execer, c *models.Customer) error {
	args := []any{c.ID, c.UserID, c.FullName, c.Email, c.PhoneNumber, c.Address, c.Latitude, c.Longitude}
	_, err := q.Exec(ctx, `
		INSERT INTO customers (id, user_id, full_name, email, phone_number, address, latitude, longitude, `+lifecycleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		append(args, lifecycleArgs(c.Lifecycle)...)...,
	)
	return translate(err, "customer")
}

func (r *CustomerRepository) Create(ctx context.Context, c *models.Customer) error {
	return insertCustomer(ctx, r.DB, c)
}

// Get returns a customer by id, including archived customers.
func (r *CustomerRepository) Get(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	c, err := scanCustomer(r.DB.QueryRow(ctx, customerSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err, "customer")
	}
	return c, nil
}

// GetByUserID resolves the customer record linked to a portal user.
func (r *CustomerRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Customer, error) {
	c, err := scanCustomer(r.DB.QueryRow(ctx, customerSelect+` WHERE user_id = $1 AND NOT is_deleted`, userID))
	if err != nil {
		return nil, translate(err, "customer")
	}
	return c, nil
}

func (r *CustomerRepository) Update(ctx context.Context, c *models.Customer) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE customers
		SET user_id = $1, full_name = $2, email = $3, phone_number = $4, address = $5, latitude = $6, longitude = $7,
			modified_at = $8, modified_by = $9, modified_by_name = $10
		WHERE id = $11 AND NOT is_deleted`,
		c.UserID, c.FullName, c.Email, c.PhoneNumber, c.Address, c.Latitude, c.Longitude,
		c.ModifiedAt, c.ModifiedBy, c.ModifiedByName, c.ID,
	)
	if err != nil {
		return translate(err, "customer")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("customer")
	}
	return nil
}

// SetArchived flips the soft-delete flag. Archiving an archived customer (or
// restoring an active one) is a conflict.
func (r *CustomerRepository) SetArchived(ctx context.Context, id uuid.UUID, archived bool, stamp models.Lifecycle) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE customers
		SET is_deleted = $1, is_active = NOT $1, modified_at = $2, modified_by = $3, modified_by_name = $4
		WHERE id = $5 AND is_deleted = NOT $1`,
		archived, stamp.ModifiedAt, stamp.ModifiedBy, stamp.ModifiedByName, id,
	)
	if err != nil {
		return translate(err, "customer")
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		if archived {
			return apperr.Conflict("customer is already archived")
		}
		return apperr.Conflict("customer is not archived")
	}
	return nil
}

// Search lists unarchived customers whose name, email or phone matches the query.
func (r *CustomerRepository) Search(ctx context.Context, f models.CustomerFilter) (models.Page[models.Customer], error) {
	var w filter
	w.where("NOT is_deleted")
	if f.Query != "" {
		w.add("(full_name ILIKE $%[1]d OR email ILIKE $%[1]d OR phone_number ILIKE $%[1]d)", likePattern(f.Query))
	}

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM customers `+w.clause(), w.args...).Scan(&total); err != nil {
		return models.Page[models.Customer]{}, err
	}

	limit, args := w.page(f.Page)
	query := fmt.Sprintf("%s %s %s %s", customerSelect, w.clause(),
		orderBy(customerSortColumns, f.Page, models.SortFullName, "id"), limit)

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return models.Page[models.Customer]{}, err
	}
	defer rows.Close()

	var customers []models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return models.Page[models.Customer]{}, err
		}
		customers = append(customers, *c)
	}
	if err := rows.Err(); err != nil {
		return models.Page[models.Customer]{}, err
	}
	return models.NewPage(customers, total, f.Page), nil
}
