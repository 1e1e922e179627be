package services

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf/v2"

	"servus-backend/internal/models"
)

// RenderInvoicePDF lays out an invoice on a single A4 page: header, customer
// block, item table and total.
func RenderInvoicePDF(inv *models.Invoice) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetTitle("Invoice "+inv.InvoiceNumber, true)
	pdf.AddPage()

	// Header
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, fmt.Sprintf("Invoice #%s", inv.InvoiceNumber), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, fmt.Sprintf("Date: %s", inv.CreatedAt.Format("2006-01-02")), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Bill To", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(95, 7, fmt.Sprintf("Customer: %s", inv.CustomerName), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Job: %s", truncate(inv.JobTitle, 40)), "RB", 1, "L", false, 0, "")
	status := "Unpaid"
	if inv.IsPaid && inv.PaidAt != nil {
		status = "Paid on " + inv.PaidAt.Format("2006-01-02")
	}
	pdf.CellFormat(190, 7, fmt.Sprintf("Status: %s", status), "LRB", 1, "L", false, 0, "")
	pdf.Ln(5)

	// Items
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Items", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(200, 200, 200)
	pdf.CellFormat(90, 7, "Material", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 7, "Qty", "1", 0, "C", true, 0, "")
	pdf.CellFormat(35, 7, "Unit Price", "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 7, "Subtotal", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, item := range inv.Items {
		pdf.CellFormat(90, 6, truncate(item.Description, 45), "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", item.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, item.UnitPrice.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, item.Subtotal().StringFixed(2), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(150, 8, "Total:", "1", 0, "R", true, 0, "")
	pdf.CellFormat(40, 8, inv.Amount.StringFixed(2), "1", 1, "R", true, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
