package export

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"recordcore/internal/core"
	"recordcore/internal/locale"
)

const defaultDateLayout = "02/01/2006 15:04"

// DocumentWriter renders one service record per A4 page. It satisfies
// core.DocumentWriter.
type DocumentWriter struct {
	format     core.Formatter
	dateLayout string
	created    func() time.Time
}

// DocumentOption configures a DocumentWriter.
type DocumentOption func(*DocumentWriter)

// WithDateLayout overrides the layout used for the visit date.
func WithDateLayout(layout string) DocumentOption {
	return func(w *DocumentWriter) {
		if layout != "" {
			w.dateLayout = layout
		}
	}
}

// WithCreationTime fixes the document creation date.
func WithCreationTime(now func() time.Time) DocumentOption {
	return func(w *DocumentWriter) { w.created = now }
}

// NewDocumentWriter formats amounts with f. A nil f uses the default locale.
func NewDocumentWriter(f core.Formatter, opts ...DocumentOption) *DocumentWriter {
	if f == nil {
		f = locale.MustNew(locale.DefaultLocale, locale.DefaultCurrency)
	}
	w := &DocumentWriter{format: f, dateLayout: defaultDateLayout}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteServiceRecord renders doc to path as a PDF.
func (w *DocumentWriter) WriteServiceRecord(path string, doc core.ServiceDocument) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	title := fmt.Sprintf("Service record #%d", doc.Ordinal)
	pdf.SetTitle(title, true)
	pdf.SetCreator("recordcore", true)
	if w.created != nil {
		pdf.SetCreationDate(w.created())
	}
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 11)
	rec := doc.Record
	for _, line := range [][2]string{
		{"Date", rec.Date.Format(w.dateLayout)},
		{"Animal", doc.Animal.Name + " (" + doc.Animal.Species + ")"},
		{"Owner", doc.Owner.Name},
		{"Performed by", rec.PerformedByName},
		{"Consultation fee", w.format.Money(rec.ConsultationFee)},
	} {
		pdf.CellFormat(45, 7, tr(line[0]+":"), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, tr(line[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	if len(rec.LineItems) > 0 {
		widths := []float64{80, 25, 35, 40}
		pdf.SetFont("Helvetica", "B", 11)
		for i, h := range []string{"Product", "Qty", "Unit price", "Subtotal"} {
			pdf.CellFormat(widths[i], 8, tr(h), "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 11)
		for _, item := range rec.LineItems {
			pdf.CellFormat(widths[0], 7, tr(item.Name), "1", 0, "L", false, 0, "")
			pdf.CellFormat(widths[1], 7, strconv.Itoa(item.Quantity), "1", 0, "R", false, 0, "")
			pdf.CellFormat(widths[2], 7, tr(w.format.Money(item.UnitPrice)), "1", 0, "R", false, 0, "")
			pdf.CellFormat(widths[3], 7, tr(w.format.Money(item.Subtotal)), "1", 1, "R", false, 0, "")
		}
		pdf.Ln(4)
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(45, 8, tr("Products:"), "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 8, tr(w.format.Money(rec.TotalProducts)), "", 1, "L", false, 0, "")
	pdf.CellFormat(45, 8, tr("Total:"), "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 8, tr(w.format.Money(rec.GrandTotal)), "", 1, "L", false, 0, "")

	if rec.Notes != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, 6, tr(rec.Notes), "", "L", false)
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}
