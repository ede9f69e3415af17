package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"recordcore/pkg/derive"
	"recordcore/pkg/domain"
)

// Table is a tabular result set handed to a spreadsheet writer.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// SpreadsheetWriter writes a table to a file at path.
type SpreadsheetWriter interface {
	WriteTable(path string, table Table) error
}

// ServiceDocument is the printable form of one service record.
type ServiceDocument struct {
	Animal  domain.Animal
	Owner   Ref
	Ordinal int
	Record  domain.ServiceRecord
}

// DocumentWriter renders a service record to a paginated file at path.
type DocumentWriter interface {
	WriteServiceRecord(path string, doc ServiceDocument) error
}

// Archiver keeps a copy of an exported file and returns its archive key.
type Archiver interface {
	Archive(ctx context.Context, kind, path string) (string, error)
}

// Formatter renders amounts and grades for tables.
type Formatter interface {
	Money(decimal.Decimal) string
	Grade(float64) string
}

// ErrNoWriter is returned when an export runs without its collaborator.
var ErrNoWriter = errors.New("export writer not configured")

// ExportTable writes table through the spreadsheet writer and archives the
// file when an archiver is configured. It returns the archive key, if any.
func (s *Service) ExportTable(ctx context.Context, path string, table Table) (string, error) {
	var key string
	err := s.observe(ctx, opExportTable, func(ctx context.Context) error {
		if s.sheets == nil {
			return ErrNoWriter
		}
		if path == "" {
			return domain.InvalidInputError{Field: "path", Reason: "is required"}
		}
		if err := s.sheets.WriteTable(path, table); err != nil {
			return fmt.Errorf("write spreadsheet %s: %w", path, err)
		}
		var err error
		key, err = s.archiveFile(ctx, "spreadsheets", path)
		return err
	})
	return key, err
}

// RenderServiceRecord writes the ordinal-th service record of an animal (1
// based, as reported by ServiceHistory) to path.
func (s *Service) RenderServiceRecord(ctx context.Context, animalID string, ordinal int, path string) (string, error) {
	var doc ServiceDocument
	err := s.view(ctx, "load_service_record", func(v domain.TransactionView) error {
		animal, err := v.Animals().FindByID(animalID)
		if err != nil {
			return err
		}
		if ordinal < 1 || ordinal > len(animal.History) {
			return domain.NotFoundError{Entity: domain.EntityAnimal, ID: animalID + "#" + strconv.Itoa(ordinal)}
		}
		owner, err := ownerRef(v, animal.OwnerID)
		if err != nil {
			return err
		}
		doc = ServiceDocument{Animal: animal, Owner: owner, Ordinal: ordinal, Record: animal.History[ordinal-1]}
		return nil
	})
	if err != nil {
		return "", err
	}
	var key string
	err = s.observe(ctx, opRenderRecord, func(ctx context.Context) error {
		if s.documents == nil {
			return ErrNoWriter
		}
		if path == "" {
			return domain.InvalidInputError{Field: "path", Reason: "is required"}
		}
		if err := s.documents.WriteServiceRecord(path, doc); err != nil {
			return fmt.Errorf("write document %s: %w", path, err)
		}
		var err error
		key, err = s.archiveFile(ctx, "documents", path)
		return err
	})
	return key, err
}

func (s *Service) archiveFile(ctx context.Context, kind, path string) (string, error) {
	if s.archive == nil {
		return "", nil
	}
	key, err := s.archive.Archive(ctx, kind, path)
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", path, err)
	}
	s.logger.Info("export archived", "kind", kind, "key", key)
	return key, nil
}

type plainFormatter struct{}

func (plainFormatter) Money(d decimal.Decimal) string { return derive.FormatMoney(d) }
func (plainFormatter) Grade(v float64) string         { return derive.FormatAverage(v) }

// SchoolReportTable lays out report rows for export.
func SchoolReportTable(rows []ReportRow, f Formatter) Table {
	if f == nil {
		f = plainFormatter{}
	}
	t := Table{
		Title:   "School report",
		Headers: []string{"Student", "Enrollment", "Class", "Subject", "Teacher", "B1", "B2", "B3", "B4", "Average", "Absences", "Status"},
	}
	for _, r := range rows {
		row := []string{r.StudentName, r.EnrollmentID, r.ClassName, r.Subject, r.Teacher.Name}
		for _, b := range r.Bimesters {
			if b == nil {
				row = append(row, "")
				continue
			}
			row = append(row, f.Grade(*b))
		}
		row = append(row, f.Grade(r.Average), strconv.Itoa(r.TotalAbsences), string(r.Status))
		t.Rows = append(t.Rows, row)
	}
	return t
}

// ServiceHistoryTable lays out history rows for export.
func ServiceHistoryTable(rows []HistoryRow, f Formatter) Table {
	if f == nil {
		f = plainFormatter{}
	}
	t := Table{
		Title:   "Service history",
		Headers: []string{"#", "Date", "Animal", "Owner", "Performed by", "Consultation", "Products", "Total", "Notes"},
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(r.Ordinal),
			r.Record.Date.Format("2006-01-02 15:04"),
			r.AnimalName,
			r.Owner.Name,
			r.Record.PerformedByName,
			f.Money(r.Record.ConsultationFee),
			f.Money(r.Record.TotalProducts),
			f.Money(r.Record.GrandTotal),
			r.Record.Notes,
		})
	}
	return t
}

// StockTable lays out products for export.
func StockTable(products []domain.Product, f Formatter) Table {
	if f == nil {
		f = plainFormatter{}
	}
	t := Table{
		Title:   "Stock",
		Headers: []string{"Product", "Type", "Quantity", "Unit", "Unit price", "Expiry"},
	}
	for _, p := range products {
		expiry := ""
		if p.Expiry != nil {
			expiry = p.Expiry.Format("2006-01-02")
		}
		t.Rows = append(t.Rows, []string{p.Name, string(p.Type), strconv.Itoa(p.Quantity), p.Unit, f.Money(p.UnitPrice), expiry})
	}
	return t
}
