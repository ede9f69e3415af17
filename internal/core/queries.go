package core

import (
	"context"
	"sort"
	"strings"
	"time"

	"recordcore/pkg/derive"
	"recordcore/pkg/domain"
)

// StudentFilter narrows ListStudents. Empty fields match everything.
type StudentFilter struct {
	NameContains       string
	EnrollmentContains string
	ClassName          string
}

func (f StudentFilter) selector() domain.Selector {
	var sel domain.Selector
	if f.NameContains != "" {
		sel = sel.And(domain.Contains("name", f.NameContains))
	}
	if f.EnrollmentContains != "" {
		sel = sel.And(domain.Contains("enrollment_id", f.EnrollmentContains))
	}
	if f.ClassName != "" {
		sel = sel.And(domain.Eq("class_name", f.ClassName))
	}
	return sel
}

// ListStudents returns students matching filter ordered by name.
func (s *Service) ListStudents(ctx context.Context, filter StudentFilter) ([]domain.Student, error) {
	var out []domain.Student
	err := s.view(ctx, "list_students", func(v domain.TransactionView) error {
		var err error
		out, err = v.Students().Find(filter.selector(), domain.Sort{Field: "name"})
		return err
	})
	return out, err
}

// ListTeachers returns teachers, optionally of one subject, ordered by name.
func (s *Service) ListTeachers(ctx context.Context, subject string) ([]domain.Teacher, error) {
	var out []domain.Teacher
	err := s.view(ctx, "list_teachers", func(v domain.TransactionView) error {
		var sel domain.Selector
		if subject != "" {
			sel = domain.Where(domain.Eq("subject", subject))
		}
		var err error
		out, err = v.Teachers().Find(sel, domain.Sort{Field: "name"})
		return err
	})
	return out, err
}

// ListClasses returns every class ordered by name.
func (s *Service) ListClasses(ctx context.Context) ([]domain.Class, error) {
	var out []domain.Class
	err := s.view(ctx, "list_classes", func(v domain.TransactionView) error {
		var err error
		out, err = v.Classes().Find(domain.Selector{}, domain.Sort{Field: "name"})
		return err
	})
	return out, err
}

// GradeView is an academic record with its status re-derived from the
// student's current absences.
type GradeView struct {
	Record          domain.AcademicRecord
	TotalAbsences   int
	EffectiveAvg    float64
	EffectiveStatus domain.AcademicStatus
}

// GradesByStudent lists a student's academic records by subject. A stored
// status that went stale after absences changed is replaced by the derived
// one.
func (s *Service) GradesByStudent(ctx context.Context, studentID string) ([]GradeView, error) {
	var out []GradeView
	err := s.view(ctx, "grades_by_student", func(v domain.TransactionView) error {
		records, err := v.AcademicRecords().Find(domain.Where(domain.Eq("student_id", studentID)), domain.Sort{Field: "subject"})
		if err != nil {
			return err
		}
		out = make([]GradeView, 0, len(records))
		for _, r := range records {
			total, err := totalAbsences(v, r.StudentID, r.Subject)
			if err != nil {
				return err
			}
			avg, status := derive.EffectiveStatus(r, total)
			out = append(out, GradeView{Record: r, TotalAbsences: total, EffectiveAvg: avg, EffectiveStatus: status})
		}
		return nil
	})
	return out, err
}

// AbsencesByStudent lists a student's absences ordered by date, optionally
// restricted to one subject.
func (s *Service) AbsencesByStudent(ctx context.Context, studentID, subject string) ([]domain.AbsenceRecord, error) {
	var out []domain.AbsenceRecord
	err := s.view(ctx, "absences_by_student", func(v domain.TransactionView) error {
		sel := domain.Where(domain.Eq("student_id", studentID))
		if subject != "" {
			sel = sel.And(domain.Eq("subject", subject))
		}
		var err error
		out, err = v.Absences().Find(sel, domain.Sort{Field: "date"}, domain.Sort{Field: "subject"})
		return err
	})
	return out, err
}

// AttendanceEntry is one line of a class roll.
type AttendanceEntry struct {
	StudentID    string
	StudentName  string
	EnrollmentID string
	Presence     domain.Presence
}

// AttendanceSheet returns the roll of a class for one subject and day.
func (s *Service) AttendanceSheet(ctx context.Context, className, subject, date string) ([]AttendanceEntry, error) {
	day, err := domain.ParseDate(date)
	if err != nil {
		return nil, domain.InvalidInputError{Field: "date", Reason: "must be a date formatted 2006-01-02"}
	}
	var out []AttendanceEntry
	err = s.view(ctx, "attendance_sheet", func(v domain.TransactionView) error {
		if _, err := classByName(v, className); err != nil {
			return err
		}
		students, err := v.Students().Find(domain.Where(domain.Eq("class_name", className)), domain.Sort{Field: "name"})
		if err != nil {
			return err
		}
		out = make([]AttendanceEntry, 0, len(students))
		for _, st := range students {
			absent, err := v.Absences().Count(domain.Where(
				domain.Eq("student_id", st.ID),
				domain.Eq("subject", subject),
				domain.Eq("date", day.Format(time.DateOnly)),
			))
			if err != nil {
				return err
			}
			presence := domain.Present
			if absent > 0 {
				presence = domain.Absent
			}
			out = append(out, AttendanceEntry{StudentID: st.ID, StudentName: st.Name, EnrollmentID: st.EnrollmentID, Presence: presence})
		}
		return nil
	})
	return out, err
}

// ReportFilter narrows SchoolReport. All fields are optional and combine with
// AND. Name and teacher match by substring.
type ReportFilter struct {
	StudentName string
	ClassName   string
	Subject     string
	TeacherName string
}

// ReportRow is one academic record joined with its student, class and
// teacher, carrying the effective status.
type ReportRow struct {
	StudentID     string
	StudentName   string
	EnrollmentID  string
	ClassName     string
	Shift         domain.Shift
	Subject       string
	Teacher       Ref
	Bimesters     [domain.BimesterCount]*float64
	Average       float64
	TotalAbsences int
	Status        domain.AcademicStatus
}

// SchoolReport joins every academic record with its student, class and
// teacher-of-subject and re-derives status from current absences.
func (s *Service) SchoolReport(ctx context.Context, filter ReportFilter) ([]ReportRow, error) {
	var out []ReportRow
	err := s.view(ctx, "school_report", func(v domain.TransactionView) error {
		var sel domain.Selector
		if filter.Subject != "" {
			sel = domain.Where(domain.Eq("subject", filter.Subject))
		}
		records, err := v.AcademicRecords().Find(sel)
		if err != nil {
			return err
		}
		teachers := make(map[string]Ref)
		for _, r := range records {
			student, err := v.Students().FindByID(r.StudentID)
			if err != nil {
				continue
			}
			if filter.StudentName != "" && !domain.ContainsFold(student.Name, filter.StudentName) {
				continue
			}
			if filter.ClassName != "" && student.ClassName != filter.ClassName {
				continue
			}
			teacher, ok := teachers[r.Subject]
			if !ok {
				if teacher, err = teacherForSubject(v, r.Subject); err != nil {
					return err
				}
				teachers[r.Subject] = teacher
			}
			if filter.TeacherName != "" && (teacher.ID == "" || !domain.ContainsFold(teacher.Name, filter.TeacherName)) {
				continue
			}
			var shift domain.Shift
			if class, err := classByName(v, student.ClassName); err == nil {
				shift = class.Shift
			}
			total, err := totalAbsences(v, r.StudentID, r.Subject)
			if err != nil {
				return err
			}
			avg, status := derive.EffectiveStatus(r, total)
			out = append(out, ReportRow{
				StudentID:     student.ID,
				StudentName:   student.Name,
				EnrollmentID:  student.EnrollmentID,
				ClassName:     student.ClassName,
				Shift:         shift,
				Subject:       r.Subject,
				Teacher:       teacher,
				Bimesters:     r.Bimesters,
				Average:       avg,
				TotalAbsences: total,
				Status:        status,
			})
		}
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].StudentName != out[j].StudentName {
				return strings.ToLower(out[i].StudentName) < strings.ToLower(out[j].StudentName)
			}
			return out[i].Subject < out[j].Subject
		})
		return nil
	})
	return out, err
}

// HistoryFilter narrows ServiceHistory. Zero bounds are open.
type HistoryFilter struct {
	From        time.Time
	To          time.Time
	PerformerID string
	AnimalID    string
}

// HistoryRow is one service record flattened out of an animal's history.
// Ordinal is the 1-based position of the record in that history.
type HistoryRow struct {
	AnimalID   string
	AnimalName string
	Owner      Ref
	Ordinal    int
	Record     domain.ServiceRecord
}

// ServiceHistory lists service records across animals ordered by date.
func (s *Service) ServiceHistory(ctx context.Context, filter HistoryFilter) ([]HistoryRow, error) {
	var out []HistoryRow
	err := s.view(ctx, "service_history", func(v domain.TransactionView) error {
		var sel domain.Selector
		if filter.AnimalID != "" {
			sel = domain.Where(domain.Eq("id", filter.AnimalID))
		}
		animals, err := v.Animals().Find(sel, domain.Sort{Field: "name"})
		if err != nil {
			return err
		}
		for _, a := range animals {
			owner, err := ownerRef(v, a.OwnerID)
			if err != nil {
				return err
			}
			for i, rec := range a.History {
				if !filter.From.IsZero() && rec.Date.Before(filter.From) {
					continue
				}
				if !filter.To.IsZero() && rec.Date.After(filter.To) {
					continue
				}
				if filter.PerformerID != "" && rec.PerformedByID != filter.PerformerID {
					continue
				}
				out = append(out, HistoryRow{AnimalID: a.ID, AnimalName: a.Name, Owner: owner, Ordinal: i + 1, Record: rec})
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Record.Date.Before(out[j].Record.Date) })
		return nil
	})
	return out, err
}

// ListOwners returns owners whose name contains nameContains.
func (s *Service) ListOwners(ctx context.Context, nameContains string) ([]domain.Owner, error) {
	var out []domain.Owner
	err := s.view(ctx, "list_owners", func(v domain.TransactionView) error {
		var sel domain.Selector
		if nameContains != "" {
			sel = domain.Where(domain.Contains("name", nameContains))
		}
		var err error
		out, err = v.Owners().Find(sel, domain.Sort{Field: "name"})
		return err
	})
	return out, err
}

// ListAnimals returns animals by name, optionally of one owner.
func (s *Service) ListAnimals(ctx context.Context, nameContains, ownerID string) ([]domain.Animal, error) {
	var out []domain.Animal
	err := s.view(ctx, "list_animals", func(v domain.TransactionView) error {
		var sel domain.Selector
		if nameContains != "" {
			sel = sel.And(domain.Contains("name", nameContains))
		}
		if ownerID != "" {
			sel = sel.And(domain.Eq("owner_id", ownerID))
		}
		var err error
		out, err = v.Animals().Find(sel, domain.Sort{Field: "name"})
		return err
	})
	return out, err
}

// ListVets returns every vet ordered by name without passwords.
func (s *Service) ListVets(ctx context.Context) ([]domain.Vet, error) {
	var out []domain.Vet
	err := s.view(ctx, "list_vets", func(v domain.TransactionView) error {
		var err error
		out, err = v.Vets().Find(domain.Selector{}, domain.Sort{Field: "name"})
		return err
	})
	for i := range out {
		out[i].Password = ""
	}
	return out, err
}

// ListProducts returns stock items ordered by name.
func (s *Service) ListProducts(ctx context.Context, nameContains string) ([]domain.Product, error) {
	var out []domain.Product
	err := s.view(ctx, "list_products", func(v domain.TransactionView) error {
		var sel domain.Selector
		if nameContains != "" {
			sel = domain.Where(domain.Contains("name", nameContains))
		}
		var err error
		out, err = v.Products().Find(sel, domain.Sort{Field: "name"})
		return err
	})
	return out, err
}

// LowStock returns products whose quantity is at or below threshold, lowest
// first.
func (s *Service) LowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	var out []domain.Product
	err := s.view(ctx, "low_stock", func(v domain.TransactionView) error {
		products, err := v.Products().Find(domain.Selector{}, domain.Sort{Field: "quantity"}, domain.Sort{Field: "name"})
		if err != nil {
			return err
		}
		for _, p := range products {
			if p.Quantity <= threshold {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

// DefaultLowStock lists products at or below the configured warning threshold.
func (s *Service) DefaultLowStock(ctx context.Context) ([]domain.Product, error) {
	return s.LowStock(ctx, s.stockThreshold)
}

// StockFilter narrows StockTransactions. Zero bounds are open.
type StockFilter struct {
	ProductID string
	From      time.Time
	To        time.Time
}

// StockTransactions lists stock movements ordered by date.
func (s *Service) StockTransactions(ctx context.Context, filter StockFilter) ([]domain.StockTransaction, error) {
	var out []domain.StockTransaction
	err := s.view(ctx, "stock_transactions", func(v domain.TransactionView) error {
		var sel domain.Selector
		if filter.ProductID != "" {
			sel = sel.And(domain.Eq("product_id", filter.ProductID))
		}
		if !filter.From.IsZero() || !filter.To.IsZero() {
			sel = sel.And(domain.DateRange("date", filter.From, filter.To))
		}
		var err error
		out, err = v.StockTransactions().Find(sel, domain.Sort{Field: "date"})
		return err
	})
	return out, err
}

// AppointmentFilter narrows ListAppointments. Empty fields match everything.
type AppointmentFilter struct {
	Status   domain.AppointmentStatus
	VetID    string
	AnimalID string
	From     time.Time
	To       time.Time
}

// ListAppointments lists appointments ordered by scheduled time.
func (s *Service) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]domain.Appointment, error) {
	var out []domain.Appointment
	err := s.view(ctx, "list_appointments", func(v domain.TransactionView) error {
		var sel domain.Selector
		if filter.Status != "" {
			sel = sel.And(domain.Eq("status", string(filter.Status)))
		}
		if filter.VetID != "" {
			sel = sel.And(domain.Eq("vet_id", filter.VetID))
		}
		if filter.AnimalID != "" {
			sel = sel.And(domain.Eq("animal_id", filter.AnimalID))
		}
		if !filter.From.IsZero() || !filter.To.IsZero() {
			sel = sel.And(domain.DateRange("scheduled_at", filter.From, filter.To))
		}
		var err error
		out, err = v.Appointments().Find(sel, domain.Sort{Field: "scheduled_at"})
		return err
	})
	return out, err
}

// GetStudent returns one student.
func (s *Service) GetStudent(ctx context.Context, id string) (domain.Student, error) {
	return getByID(ctx, s, "get_student", id, domain.TransactionView.Students)
}

// GetAnimal returns one animal with its history.
func (s *Service) GetAnimal(ctx context.Context, id string) (domain.Animal, error) {
	return getByID(ctx, s, "get_animal", id, domain.TransactionView.Animals)
}

// GetAppointment returns one appointment.
func (s *Service) GetAppointment(ctx context.Context, id string) (domain.Appointment, error) {
	return getByID(ctx, s, "get_appointment", id, domain.TransactionView.Appointments)
}

// GetProduct returns one product.
func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return getByID(ctx, s, "get_product", id, domain.TransactionView.Products)
}

func getByID[T any](ctx context.Context, s *Service, op, id string, reader func(domain.TransactionView) domain.Reader[T]) (T, error) {
	var out T
	err := s.view(ctx, op, func(v domain.TransactionView) error {
		var err error
		out, err = reader(v).FindByID(id)
		return err
	})
	return out, err
}
