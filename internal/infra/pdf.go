package infra

// pdf.go renders the nota de crédito of a processed devolución with go-pdf/fpdf.
// Half-letter portrait page with:
//   - hospital header and document number
//   - patient, account and devolución references
//   - returned lines (concepto, cantidad, subtotal)
//   - bold total and refund method
//
// The file is saved to storagePath/nota_credito_{numero}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

type NotaCreditoLinea struct {
	Concepto string
	Cantidad int
	Subtotal decimal.Decimal
}

// NotaCredito is everything printed on the document; the worker builds it
// from the devolución and its account.
type NotaCredito struct {
	Numero           string
	DevolucionNumero string
	Paciente         string
	CuentaID         string
	Motivo           string
	MetodoPago       string
	Fecha            time.Time
	Lineas           []NotaCreditoLinea
	Total            decimal.Decimal
}

// GenerateNotaCreditoPDF writes the PDF and returns its file name, relative
// to storagePath.
func GenerateNotaCreditoPDF(nc NotaCredito, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	fileName := fmt.Sprintf("nota_credito_%s.pdf", nc.Numero)
	filePath := filepath.Join(storagePath, fileName)

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 140, Ht: 216},
	})
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 20

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(contentW, 8, "Hospital - Caja General", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(contentW, 6, tr("Nota de Crédito "+nc.Numero), "", 1, "C", false, 0, "")
	pdf.Ln(3)

	// ── References ───────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "", 8)
	rows := [][2]string{
		{"Paciente:", nc.Paciente},
		{"Cuenta:", nc.CuentaID},
		{tr("Devolución:"), nc.DevolucionNumero},
		{"Motivo:", nc.Motivo},
		{"Fecha:", nc.Fecha.Format("02/01/2006 15:04")},
	}
	for _, r := range rows {
		pdf.CellFormat(28, 5, r[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(contentW-28, 5, tr(r[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)
	pdf.Line(10, pdf.GetY(), pageW-10, pdf.GetY())
	pdf.Ln(2)

	// ── Lines ────────────────────────────────────────────────────────────────
	col1 := contentW * 0.60
	col2 := contentW * 0.12
	col3 := contentW * 0.28

	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(col1, 6, "Concepto", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 6, "Cant", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col3, 6, "Subtotal", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	for _, l := range nc.Lineas {
		concepto := l.Concepto
		if len(concepto) > 48 {
			concepto = concepto[:47] + "..."
		}
		pdf.CellFormat(col1, 5, tr(concepto), "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 5, fmt.Sprintf("%d", l.Cantidad), "", 0, "C", false, 0, "")
		pdf.CellFormat(col3, 5, "$"+l.Subtotal.StringFixed(2), "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.Line(10, pdf.GetY(), pageW-10, pdf.GetY())
	pdf.Ln(2)

	// ── Total ────────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(col1+col2, 7, "TOTAL DEVUELTO:", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 7, "$"+nc.Total.StringFixed(2), "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 5, tr("Método de reembolso: "+nc.MetodoPago), "", 1, "L", false, 0, "")

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return fileName, nil
}
