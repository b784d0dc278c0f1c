package infra

// pdf.go renders a receipt as a thermal-ticket PDF using go-pdf/fpdf.
// The ticket has a store header, invoice and receipt numbers, the item table,
// the totals block and the payment method. Nothing is written to disk; the
// document is rendered from the persisted receipt content on every request.

import (
	"bytes"
	"fmt"

	"github.com/andrewhilario/grocery-pos-backend/internal/model"
	"github.com/andrewhilario/grocery-pos-backend/internal/money"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	ticketWidth      = 74.0 // mm, close to 80mm thermal paper
	ticketBaseHeight = 110.0
	ticketLineHeight = 5.0
	ticketMargin     = 4.0
)

// RenderReceiptPDF returns the PDF bytes for a receipt.
func RenderReceiptPDF(rc model.ReceiptContent) ([]byte, error) {
	height := ticketBaseHeight + ticketLineHeight*float64(len(rc.Lines))
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: ticketWidth, Ht: height},
	})
	pdf.SetMargins(ticketMargin, ticketMargin, ticketMargin)
	pdf.SetAutoPageBreak(false, ticketMargin)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 2*ticketMargin

	// ── Header ───────────────────────────────────────────────────────────────
	storeName := rc.StoreName
	if storeName == "" {
		storeName = "Receipt"
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 7, tr(storeName), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, tr("Invoice "+rc.InvoiceNumber), "", 1, "C", false, 0, "")
	pdf.CellFormat(contentW, 4, tr(rc.ReceiptNumber), "", 1, "C", false, 0, "")
	pdf.Ln(1)
	pdf.CellFormat(contentW, 4, rc.SaleDate.Format("2006-01-02  15:04"), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 4, tr("Cashier: "+rc.Cashier), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 4, tr("Customer: "+rc.Customer), "", 1, "L", false, 0, "")
	pdf.Ln(1)
	rule(pdf, pageW)

	// ── Items ────────────────────────────────────────────────────────────────
	col1 := contentW * 0.52 // name
	col2 := contentW * 0.16 // qty
	col3 := contentW * 0.32 // line total

	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(col1, ticketLineHeight, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, ticketLineHeight, "Qty", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col3, ticketLineHeight, "Total", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	for _, l := range rc.Lines {
		name := l.Name
		if len(name) > 22 {
			name = name[:21] + "."
		}
		pdf.CellFormat(col1, ticketLineHeight, tr(name), "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, ticketLineHeight, fmt.Sprintf("x%d", l.Quantity), "", 0, "C", false, 0, "")
		pdf.CellFormat(col3, ticketLineHeight, money.Format(l.Total), "", 1, "R", false, 0, "")
	}
	pdf.Ln(1)
	rule(pdf, pageW)

	// ── Totals ───────────────────────────────────────────────────────────────
	totalRow(pdf, col1+col2, col3, "Subtotal:", rc.Subtotal)
	totalRow(pdf, col1+col2, col3, "Tax:", rc.TaxAmount)
	if !rc.DiscountAmount.IsZero() {
		totalRow(pdf, col1+col2, col3, "Discount:", rc.DiscountAmount.Neg())
	}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(col1+col2, 6, "TOTAL:", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 6, money.Format(rc.TotalAmount), "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, tr("Paid by "+rc.PaymentMethod), "", 1, "L", false, 0, "")

	// ── Footer ───────────────────────────────────────────────────────────────
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(contentW, 4, "Thank you for your business!", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "pdf: render receipt")
	}
	return buf.Bytes(), nil
}

func rule(pdf *fpdf.Fpdf, pageW float64) {
	pdf.Line(ticketMargin, pdf.GetY(), pageW-ticketMargin, pdf.GetY())
	pdf.Ln(2)
}

func totalRow(pdf *fpdf.Fpdf, labelW, valueW float64, label string, amount decimal.Decimal) {
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(labelW, 4, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(valueW, 4, money.Format(amount), "", 1, "R", false, 0, "")
}
