package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"servus-backend/internal/apperr"
	"servus-backend/internal/models"
	"servus-backend/internal/timeutil"
)

type InvoiceRepository struct {
	DB *pgxpool.Pool
}

func NewInvoiceRepository(db *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{DB: db}
}

var invoiceSortColumns = map[models.SortField]string{
	models.SortCreatedAt:    "i.created_at",
	models.SortAmount:       "i.amount",
	models.SortCustomerName: "c.full_name",
}

const invoiceFrom = `
	FROM invoices i
	JOIN jobs j ON j.id = i.job_id
	JOIN customers c ON c.id = j.customer_id`

const invoiceSelect = `
	SELECT i.id, i.invoice_number, i.job_id, i.amount, i.is_paid, i.paid_at, i.paid_by, i.created_at, i.created_by,
		c.id, c.full_name, j.title` + invoiceFrom

func scanInvoice(row pgx.Row) (*models.Invoice, error) {
	var inv models.Invoice
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.JobID, &inv.Amount, &inv.IsPaid, &inv.PaidAt, &inv.PaidBy,
		&inv.CreatedAt, &inv.CreatedBy, &inv.CustomerID, &inv.CustomerName, &inv.JobTitle)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// nextInvoiceNumber draws from a sequence so numbers never collide.
func nextInvoiceNumber(ctx context.Context, tx pgx.Tx) (string, error) {
	var nextNum int
	if err := tx.QueryRow(ctx, "SELECT nextval('invoice_number_sequence')").Scan(&nextNum); err != nil {
		return "", fmt.Errorf("failed to get next invoice number: %w", err)
	}
	return fmt.Sprintf("INV-%06d", nextNum), nil
}

// Create persists an invoice with its items for an unarchived job. A second
// invoice for the same job is rejected by the unique job_id constraint.
func (r *InvoiceRepository) Create(ctx context.Context, inv *models.Invoice, a models.JobActivity) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := lockJob(ctx, tx, inv.JobID); err != nil {
		return err
	}

	if inv.InvoiceNumber, err = nextInvoiceNumber(ctx, tx); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO invoices (id, invoice_number, job_id, amount, is_paid, created_at, created_by)
		VALUES ($1, $2, $3, $4, FALSE, $5, $6)`,
		inv.ID, inv.InvoiceNumber, inv.JobID, inv.Amount, inv.CreatedAt, inv.CreatedBy,
	)
	if isUniqueViolation(err, "invoices_job_id_key") {
		return apperr.Conflict("an invoice already exists for this job")
	}
	if err != nil {
		return translate(err, "invoice")
	}

	for _, item := range inv.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO invoice_items (id, invoice_id, description, quantity, unit_price, position)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			item.ID, inv.ID, item.Description, item.Quantity, item.UnitPrice, item.Position,
		); err != nil {
			return translate(err, "invoice")
		}
	}

	if err := insertActivity(ctx, tx, a); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Get returns an invoice with its line items.
func (r *InvoiceRepository) Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	inv, err := scanInvoice(r.DB.QueryRow(ctx, invoiceSelect+` WHERE i.id = $1`, id))
	if err != nil {
		return nil, translate(err, "invoice")
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, invoice_id, description, quantity, unit_price, position
		FROM invoice_items WHERE invoice_id = $1
		ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item models.InvoiceItem
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Description, &item.Quantity, &item.UnitPrice, &item.Position); err != nil {
			return nil, err
		}
		inv.Items = append(inv.Items, item)
	}
	return inv, rows.Err()
}

func (r *InvoiceRepository) ExistsForJob(ctx context.Context, jobID uuid.UUID) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM invoices WHERE job_id = $1)`, jobID).Scan(&exists)
	return exists, err
}

// MarkPaid records payment once; paying a paid invoice is a conflict.
func (r *InvoiceRepository) MarkPaid(ctx context.Context, inv *models.Invoice, paidAt time.Time, paidBy *uuid.UUID, a models.JobActivity) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE invoices SET is_paid = TRUE, paid_at = $1, paid_by = $2
		WHERE id = $3 AND NOT is_paid`,
		paidAt, paidBy, inv.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("invoice already paid")
	}
	if err := insertActivity(ctx, tx, a); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	inv.IsPaid = true
	inv.PaidAt = &paidAt
	inv.PaidBy = paidBy
	return nil
}

func (r *InvoiceRepository) List(ctx context.Context, f models.InvoiceFilter) (models.Page[models.Invoice], error) {
	var w filter
	if f.CustomerID != nil {
		w.add("c.id = $%d", *f.CustomerID)
	}
	if f.StartDate != nil {
		w.add("i.created_at >= $%d", timeutil.StartOfDay(*f.StartDate))
	}
	if f.EndDate != nil {
		w.add("i.created_at <= $%d", timeutil.EndOfDay(*f.EndDate))
	}
	if f.IsPaid != nil {
		w.add("i.is_paid = $%d", *f.IsPaid)
	}

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) `+invoiceFrom+` `+w.clause(), w.args...).Scan(&total); err != nil {
		return models.Page[models.Invoice]{}, err
	}

	limit, args := w.page(f.Page)
	query := fmt.Sprintf("%s %s %s %s", invoiceSelect, w.clause(),
		orderBy(invoiceSortColumns, f.Page, models.SortCreatedAt, "i.id"), limit)

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return models.Page[models.Invoice]{}, err
	}
	defer rows.Close()

	var invoices []models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return models.Page[models.Invoice]{}, err
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return models.Page[models.Invoice]{}, err
	}
	return models.NewPage(invoices, total, f.Page), nil
}
