package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"servus-backend/internal/apperr"
	"servus-backend/internal/models"
)

type JobMaterialRepository struct {
	DB *pgxpool.Pool
}

func NewJobMaterialRepository(db *pgxpool.Pool) *JobMaterialRepository {
	return &JobMaterialRepository{DB: db}
}

var jobMaterialSelect = `
	SELECT jm.id, jm.job_id, jm.material_id, m.name, m.unit, jm.quantity_used, jm.unit_price,
		` + lifecycleColumnsOf("jm") + `
	FROM job_materials jm
	JOIN materials m ON m.id = jm.material_id`

func scanJobMaterial(row pgx.Row) (*models.JobMaterial, error) {
	var jm models.JobMaterial
	dest := []any{&jm.ID, &jm.JobID, &jm.MaterialID, &jm.MaterialName, &jm.Unit, &jm.QuantityUsed, &jm.UnitPrice}
	if err := row.Scan(append(dest, lifecycleDest(&jm.Lifecycle)...)...); err != nil {
		return nil, err
	}
	return &jm, nil
}

// takeStock decrements stock only when enough is available; the row either
// changes by exactly quantity or not at all.
func takeStock(ctx context.Context, tx pgx.Tx, materialID uuid.UUID, quantity int) (*models.Material, error) {
	var m models.Material
	err := tx.QueryRow(ctx, `
		UPDATE materials SET stock_quantity = stock_quantity - $1
		WHERE id = $2 AND is_active AND NOT is_deleted AND stock_quantity >= $1
		RETURNING id, name, unit, unit_price, stock_quantity`,
		quantity, materialID,
	).Scan(&m.ID, &m.Name, &m.Unit, &m.UnitPrice, &m.StockQuantity)
	if err == nil {
		return &m, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var (
		name      string
		stock     int
		available bool
	)
	err = tx.QueryRow(ctx,
		`SELECT name, stock_quantity, is_active AND NOT is_deleted FROM materials WHERE id = $1`, materialID,
	).Scan(&name, &stock, &available)
	if err != nil {
		return nil, translate(err, "material")
	}
	if !available {
		return nil, apperr.NotFound("material")
	}
	return nil, apperr.Conflict(fmt.Sprintf("insufficient stock for %s: %d available, %d requested", name, stock, quantity))
}

func returnStock(ctx context.Context, tx pgx.Tx, materialID uuid.UUID, quantity int) error {
	_, err := tx.Exec(ctx, `UPDATE materials SET stock_quantity = stock_quantity + $1 WHERE id = $2`, quantity, materialID)
	return err
}

// Assign records material consumption on a started or completed job and
// decrements stock in the same transaction. The unit price is copied from
// the catalog at this moment.
func (r *JobMaterialRepository) Assign(ctx context.Context, jm *models.JobMaterial, a models.JobActivity) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	job, err := lockJob(ctx, tx, jm.JobID)
	if err != nil {
		return err
	}
	if job.Status != models.JobStarted && job.Status != models.JobCompleted {
		return apperr.Conflict("materials can only be added to started or completed jobs")
	}

	m, err := takeStock(ctx, tx, jm.MaterialID, jm.QuantityUsed)
	if err != nil {
		return err
	}
	jm.MaterialName = m.Name
	jm.Unit = m.Unit
	jm.UnitPrice = m.UnitPrice

	args := []any{jm.ID, jm.JobID, jm.MaterialID, jm.QuantityUsed, jm.UnitPrice}
	if _, err := tx.Exec(ctx, `
		INSERT INTO job_materials (id, job_id, material_id, quantity_used, unit_price, `+lifecycleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		append(args, lifecycleArgs(jm.Lifecycle)...)...,
	); err != nil {
		return translate(err, "job material")
	}

	if err := insertActivity(ctx, tx, a); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpdateQuantity changes the consumed quantity and moves the difference in or out of stock.
func (r *JobMaterialRepository) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int, a models.JobActivity) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var (
		jobID      uuid.UUID
		materialID uuid.UUID
		current    int
	)
	err = tx.QueryRow(ctx, `
		SELECT job_id, material_id, quantity_used FROM job_materials
		WHERE id = $1 AND NOT is_deleted FOR UPDATE`, id,
	).Scan(&jobID, &materialID, &current)
	if err != nil {
		return translate(err, "job material")
	}
	if _, err := lockJob(ctx, tx, jobID); err != nil {
		return err
	}

	switch delta := quantity - current; {
	case delta > 0:
		if _, err := takeStock(ctx, tx, materialID, delta); err != nil {
			return err
		}
	case delta < 0:
		if err := returnStock(ctx, tx, materialID, -delta); err != nil {
			return err
		}
	}

	at, by, byName := modifiedBy(a)
	if _, err := tx.Exec(ctx, `
		UPDATE job_materials SET quantity_used = $1, modified_at = $2, modified_by = $3, modified_by_name = $4
		WHERE id = $5`,
		quantity, at, by, byName, id,
	); err != nil {
		return err
	}

	if err := insertActivity(ctx, tx, a); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Remove deletes every line of a material from a job and returns the total quantity to stock.
func (r *JobMaterialRepository) Remove(ctx context.Context, jobID, materialID uuid.UUID, a models.JobActivity) (int, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := lockJob(ctx, tx, jobID); err != nil {
		return 0, err
	}

	at, by, byName := modifiedBy(a)
	var returned int
	err = tx.QueryRow(ctx, `
		WITH removed AS (
			UPDATE job_materials
			SET is_deleted = TRUE, is_active = FALSE, modified_at = $1, modified_by = $2, modified_by_name = $3
			WHERE job_id = $4 AND material_id = $5 AND NOT is_deleted
			RETURNING quantity_used
		)
		SELECT COALESCE(SUM(quantity_used), 0) FROM removed`,
		at, by, byName, jobID, materialID,
	).Scan(&returned)
	if err != nil {
		return 0, err
	}
	if returned == 0 {
		return 0, apperr.NotFound("job material")
	}

	if err := returnStock(ctx, tx, materialID, returned); err != nil {
		return 0, err
	}
	if err := insertActivity(ctx, tx, a); err != nil {
		return 0, err
	}
	return returned, tx.Commit(ctx)
}

func (r *JobMaterialRepository) Get(ctx context.Context, id uuid.UUID) (*models.JobMaterial, error) {
	jm, err := scanJobMaterial(r.DB.QueryRow(ctx, jobMaterialSelect+` WHERE jm.id = $1 AND NOT jm.is_deleted`, id))
	if err != nil {
		return nil, translate(err, "job material")
	}
	return jm, nil
}

func (r *JobMaterialRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.JobMaterial, error) {
	rows, err := r.DB.Query(ctx, jobMaterialSelect+`
		WHERE jm.job_id = $1 AND NOT jm.is_deleted
		ORDER BY jm.created_at, jm.id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	materials := []models.JobMaterial{}
	for rows.Next() {
		jm, err := scanJobMaterial(rows)
		if err != nil {
			return nil, err
		}
		materials = append(materials, *jm)
	}
	return materials, rows.Err()
}
