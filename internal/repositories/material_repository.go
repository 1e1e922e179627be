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

type MaterialRepository struct {
	DB *pgxpool.Pool
}

func NewMaterialRepository(db *pgxpool.Pool) *MaterialRepository {
	return &MaterialRepository{DB: db}
}

var materialSortColumns = map[models.SortField]string{
	models.SortName:      "name",
	models.SortCreatedAt: "created_at",
}

var materialSelect = `
	SELECT id, name, unit, unit_price, stock_quantity, ` + lifecycleColumns + `
	FROM materials`

func scanMaterial(row pgx.Row) (*models.Material, error) {
	var m models.Material
	dest := []any{&m.ID, &m.Name, &m.Unit, &m.UnitPrice, &m.StockQuantity}
	if err := row.Scan(append(dest, lifecycleDest(&m.Lifecycle)...)...); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MaterialRepository) Create(ctx context.Context, m *models.Material) error {
	args := []any{m.ID, m.Name, m.Unit, m.UnitPrice, m.StockQuantity}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO materials (id, name, unit, unit_price, stock_quantity, `+lifecycleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		append(args, lifecycleArgs(m.Lifecycle)...)...,
	)
	return translate(err, "material")
}

// Get returns a material by id, including soft-deleted ones.
func (r *MaterialRepository) Get(ctx context.Context, id uuid.UUID) (*models.Material, error) {
	m, err := scanMaterial(r.DB.QueryRow(ctx, materialSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err, "material")
	}
	return m, nil
}

func (r *MaterialRepository) Update(ctx context.Context, m *models.Material) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE materials
		SET name = $1, unit = $2, unit_price = $3, stock_quantity = $4, is_active = $5,
			modified_at = $6, modified_by = $7, modified_by_name = $8
		WHERE id = $9 AND NOT is_deleted`,
		m.Name, m.Unit, m.UnitPrice, m.StockQuantity, m.IsActive,
		m.ModifiedAt, m.ModifiedBy, m.ModifiedByName, m.ID,
	)
	if err != nil {
		return translate(err, "material")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("material")
	}
	return nil
}

// Refill adds stock and returns the new quantity.
func (r *MaterialRepository) Refill(ctx context.Context, id uuid.UUID, quantity int, stamp models.Lifecycle) (int, error) {
	var stock int
	err := r.DB.QueryRow(ctx, `
		UPDATE materials
		SET stock_quantity = stock_quantity + $1, modified_at = $2, modified_by = $3, modified_by_name = $4
		WHERE id = $5 AND NOT is_deleted
		RETURNING stock_quantity`,
		quantity, stamp.ModifiedAt, stamp.ModifiedBy, stamp.ModifiedByName, id,
	).Scan(&stock)
	if err != nil {
		return 0, translate(err, "material")
	}
	return stock, nil
}

func (r *MaterialRepository) SoftDelete(ctx context.Context, id uuid.UUID, stamp models.Lifecycle) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE materials
		SET is_deleted = TRUE, is_active = FALSE, modified_at = $1, modified_by = $2, modified_by_name = $3
		WHERE id = $4 AND NOT is_deleted`,
		stamp.ModifiedAt, stamp.ModifiedBy, stamp.ModifiedByName, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("material")
	}
	return nil
}

// List returns active, non-deleted materials.
func (r *MaterialRepository) List(ctx context.Context, f models.MaterialFilter) (models.Page[models.Material], error) {
	var w filter
	w.where("NOT is_deleted")
	w.where("is_active")
	if f.Keyword != "" {
		w.add("name ILIKE $%d", likePattern(f.Keyword))
	}

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM materials `+w.clause(), w.args...).Scan(&total); err != nil {
		return models.Page[models.Material]{}, err
	}

	limit, args := w.page(f.Page)
	query := fmt.Sprintf("%s %s %s %s", materialSelect, w.clause(),
		orderBy(materialSortColumns, f.Page, models.SortName, "id"), limit)

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return models.Page[models.Material]{}, err
	}
	defer rows.Close()

	var materials []models.Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return models.Page[models.Material]{}, err
		}
		materials = append(materials, *m)
	}
	if err := rows.Err(); err != nil {
		return models.Page[models.Material]{}, err
	}
	return models.NewPage(materials, total, f.Page), nil
}
