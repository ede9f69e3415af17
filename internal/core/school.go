package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"recordcore/pkg/derive"
	"recordcore/pkg/domain"
)

// validated wraps an update mutator so that the mutated document is validated
// before it is stored.
func validated[T any](mutator func(*T) error) func(*T) error {
	return func(doc *T) error {
		if mutator != nil {
			if err := mutator(doc); err != nil {
				return err
			}
		}
		return domain.Validate(*doc)
	}
}

// CreateClass persists a new class. Names are unique.
func (s *Service) CreateClass(ctx context.Context, class domain.Class) (domain.Class, domain.Result, error) {
	class.Name = strings.TrimSpace(class.Name)
	if err := domain.Validate(class); err != nil {
		return domain.Class{}, domain.Result{}, err
	}
	var created domain.Class
	res, err := s.run(ctx, opCreateClass, func(tx domain.Transaction) (string, error) {
		var err error
		created, err = tx.Classes().Insert(class)
		return created.ID, err
	})
	return created, res, err
}

// UpdateClass mutates a class. A rename is carried over to every enrolled
// student in the same transaction.
func (s *Service) UpdateClass(ctx context.Context, id string, mutator func(*domain.Class) error) (domain.Class, domain.Result, error) {
	var updated domain.Class
	res, err := s.run(ctx, opUpdateClass, func(tx domain.Transaction) (string, error) {
		before, err := tx.Classes().FindByID(id)
		if err != nil {
			return id, err
		}
		updated, err = tx.Classes().Update(id, validated(func(c *domain.Class) error {
			if mutator != nil {
				if err := mutator(c); err != nil {
					return err
				}
			}
			c.Name = strings.TrimSpace(c.Name)
			return nil
		}))
		if err != nil {
			return id, err
		}
		if updated.Name == before.Name {
			return id, nil
		}
		students, err := tx.Students().Find(domain.Where(domain.Eq("class_name", before.Name)))
		if err != nil {
			return id, err
		}
		for _, st := range students {
			if _, err := tx.Students().Update(st.ID, func(doc *domain.Student) error {
				doc.ClassName = updated.Name
				return nil
			}); err != nil {
				return id, err
			}
		}
		return id, nil
	})
	return updated, res, err
}

// DeleteClass removes a class. It is refused while any student references it.
func (s *Service) DeleteClass(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, opDeleteClass, func(tx domain.Transaction) (string, error) {
		return id, tx.Classes().Delete(id)
	})
}

// CreateTeacher persists a new teacher. Tax ids are unique.
func (s *Service) CreateTeacher(ctx context.Context, teacher domain.Teacher) (domain.Teacher, domain.Result, error) {
	if err := domain.Validate(teacher); err != nil {
		return domain.Teacher{}, domain.Result{}, err
	}
	var created domain.Teacher
	res, err := s.run(ctx, opCreateTeacher, func(tx domain.Transaction) (string, error) {
		var err error
		created, err = tx.Teachers().Insert(teacher)
		return created.ID, err
	})
	return created, res, err
}

// UpdateTeacher mutates a teacher.
func (s *Service) UpdateTeacher(ctx context.Context, id string, mutator func(*domain.Teacher) error) (domain.Teacher, domain.Result, error) {
	var updated domain.Teacher
	res, err := s.run(ctx, opUpdateTeacher, func(tx domain.Transaction) (string, error) {
		var err error
		updated, err = tx.Teachers().Update(id, validated(mutator))
		return id, err
	})
	return updated, res, err
}

// DeleteTeacher removes a teacher.
func (s *Service) DeleteTeacher(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, opDeleteTeacher, func(tx domain.Transaction) (string, error) {
		return id, tx.Teachers().Delete(id)
	})
}

// EnrollStudent creates a student in the class named by ClassName. The class
// must exist and have room.
func (s *Service) EnrollStudent(ctx context.Context, student domain.Student) (domain.Student, domain.Result, error) {
	student.ClassName = strings.TrimSpace(student.ClassName)
	if err := domain.Validate(student); err != nil {
		return domain.Student{}, domain.Result{}, err
	}
	var created domain.Student
	res, err := s.run(ctx, opEnrollStudent, func(tx domain.Transaction) (string, error) {
		if _, err := classByName(tx.Snapshot(), student.ClassName); err != nil {
			return "", err
		}
		var err error
		created, err = tx.Students().Insert(student)
		return created.ID, err
	})
	return created, res, err
}

// UpdateStudent mutates a student. A changed class must exist and have room.
func (s *Service) UpdateStudent(ctx context.Context, id string, mutator func(*domain.Student) error) (domain.Student, domain.Result, error) {
	var updated domain.Student
	res, err := s.run(ctx, opUpdateStudent, func(tx domain.Transaction) (string, error) {
		var err error
		updated, err = s.updateStudent(tx, id, mutator)
		return id, err
	})
	return updated, res, err
}

// TransferStudent moves a student to another class.
func (s *Service) TransferStudent(ctx context.Context, id, className string) (domain.Student, domain.Result, error) {
	var updated domain.Student
	res, err := s.run(ctx, opTransferStudent, func(tx domain.Transaction) (string, error) {
		var err error
		updated, err = s.updateStudent(tx, id, func(st *domain.Student) error {
			st.ClassName = className
			return nil
		})
		return id, err
	})
	return updated, res, err
}

func (s *Service) updateStudent(tx domain.Transaction, id string, mutator func(*domain.Student) error) (domain.Student, error) {
	before, err := tx.Students().FindByID(id)
	if err != nil {
		return domain.Student{}, err
	}
	return tx.Students().Update(id, validated(func(st *domain.Student) error {
		if mutator != nil {
			if err := mutator(st); err != nil {
				return err
			}
		}
		st.ClassName = strings.TrimSpace(st.ClassName)
		if st.ClassName == before.ClassName {
			return nil
		}
		_, err := classByName(tx.Snapshot(), st.ClassName)
		return err
	}))
}

// CascadeCounts reports the dependent documents removed with a student.
type CascadeCounts struct {
	AcademicRecords int
	Absences        int
}

// DeleteStudent removes a student with all of its academic and absence records.
func (s *Service) DeleteStudent(ctx context.Context, id string) (CascadeCounts, domain.Result, error) {
	var counts CascadeCounts
	res, err := s.run(ctx, opDeleteStudent, func(tx domain.Transaction) (string, error) {
		counts = CascadeCounts{}
		if _, err := tx.Students().FindByID(id); err != nil {
			return id, err
		}
		byStudent := domain.Where(domain.Eq("student_id", id))
		records, err := tx.AcademicRecords().Find(byStudent)
		if err != nil {
			return id, err
		}
		for _, r := range records {
			if err := tx.AcademicRecords().Delete(r.ID); err != nil {
				return id, err
			}
			counts.AcademicRecords++
		}
		absences, err := tx.Absences().Find(byStudent)
		if err != nil {
			return id, err
		}
		for _, a := range absences {
			if err := tx.Absences().Delete(a.ID); err != nil {
				return id, err
			}
			counts.Absences++
		}
		return id, tx.Students().Delete(id)
	})
	if err != nil {
		return CascadeCounts{}, res, err
	}
	return counts, res, nil
}

// UpsertAcademicRecord saves the bimester grades of a student in a subject.
// Empty entries keep the stored value of an existing record. Average and
// status are recomputed against the student's current absences.
func (s *Service) UpsertAcademicRecord(ctx context.Context, studentID, subject string, entries [domain.BimesterCount]string) (domain.AcademicRecord, domain.Result, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return domain.AcademicRecord{}, domain.Result{}, domain.InvalidInputError{Field: "subject", Reason: "is required"}
	}
	var supplied [domain.BimesterCount]*float64
	var graded bool
	for i, raw := range entries {
		grade, err := derive.ParseGrade(raw)
		if err != nil {
			return domain.AcademicRecord{}, domain.Result{}, domain.InvalidInputError{Field: fmt.Sprintf("bimester_%d", i+1), Reason: err.Error()}
		}
		supplied[i] = grade
		graded = graded || grade != nil
	}
	if !graded {
		return domain.AcademicRecord{}, domain.Result{}, domain.InvalidInputError{Field: "bimesters", Reason: "at least one grade is required"}
	}

	var saved domain.AcademicRecord
	res, err := s.run(ctx, opUpsertGrades, func(tx domain.Transaction) (string, error) {
		if _, err := tx.Students().FindByID(studentID); err != nil {
			return "", err
		}
		absences, err := totalAbsences(tx.Snapshot(), studentID, subject)
		if err != nil {
			return "", err
		}
		existing, err := tx.AcademicRecords().FindOne(domain.Where(
			domain.Eq("student_id", studentID),
			domain.Eq("subject", subject),
		))
		switch {
		case errors.Is(err, domain.ErrNotFound):
			record := domain.AcademicRecord{StudentID: studentID, Subject: subject, Bimesters: supplied}
			record.Average, record.Status = derive.AcademicStatus(record.Entries(), absences)
			saved, err = tx.AcademicRecords().Insert(record)
			return saved.ID, err
		case err != nil:
			return "", err
		}
		saved, err = tx.AcademicRecords().Update(existing.ID, func(r *domain.AcademicRecord) error {
			for i, grade := range supplied {
				if grade != nil {
					r.Bimesters[i] = grade
				}
			}
			r.Average, r.Status = derive.AcademicStatus(r.Entries(), absences)
			return nil
		})
		return existing.ID, err
	})
	return saved, res, err
}

func totalAbsences(v domain.TransactionView, studentID, subject string) (int, error) {
	records, err := v.Absences().Find(domain.Where(
		domain.Eq("student_id", studentID),
		domain.Eq("subject", subject),
	))
	if err != nil {
		return 0, err
	}
	var total int
	for _, r := range records {
		total += r.Count
	}
	return total, nil
}

// AttendanceToggle sets the presence of a student in a subject on a date.
type AttendanceToggle struct {
	StudentID string
	Subject   string
	Date      string
	Presence  domain.Presence
}

// ToggleCounts reports the absence records written by a toggle.
type ToggleCounts struct {
	Inserted int
	Removed  int
}

// ToggleAttendance records presence or absence. Absent inserts an absence when
// none exists; Present removes it; anything else is a no-op.
func (s *Service) ToggleAttendance(ctx context.Context, studentID, subject, date string, presence domain.Presence) (ToggleCounts, error) {
	return s.ToggleAttendanceBatch(ctx, []AttendanceToggle{{StudentID: studentID, Subject: subject, Date: date, Presence: presence}})
}

// ToggleAttendanceBatch applies toggles in one transaction. Only the last
// toggle per (student, subject, date) takes effect.
func (s *Service) ToggleAttendanceBatch(ctx context.Context, toggles []AttendanceToggle) (ToggleCounts, error) {
	op := opAttendanceBatch
	if len(toggles) == 1 {
		op = opToggleAttendance
	}
	type key struct{ student, subject, date string }
	final := make(map[key]domain.Presence, len(toggles))
	var order []key
	for i, t := range toggles {
		normalized, err := normalizeToggle(t)
		if err != nil {
			if len(toggles) > 1 {
				return ToggleCounts{}, fmt.Errorf("toggle %d: %w", i, err)
			}
			return ToggleCounts{}, err
		}
		k := key{normalized.StudentID, normalized.Subject, normalized.Date}
		if _, ok := final[k]; !ok {
			order = append(order, k)
		}
		final[k] = normalized.Presence
	}

	var counts ToggleCounts
	_, err := s.run(ctx, op, func(tx domain.Transaction) (string, error) {
		counts = ToggleCounts{}
		var lastID string
		for _, k := range order {
			if _, err := tx.Students().FindByID(k.student); err != nil {
				return k.student, err
			}
			lastID = k.student
			existing, err := tx.Absences().FindOne(domain.Where(
				domain.Eq("student_id", k.student),
				domain.Eq("subject", k.subject),
				domain.Eq("date", k.date),
			))
			found := err == nil
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return k.student, err
			}
			switch {
			case final[k] == domain.Absent && !found:
				if _, err := tx.Absences().Insert(domain.AbsenceRecord{StudentID: k.student, Subject: k.subject, Date: k.date, Count: 1}); err != nil {
					return k.student, err
				}
				counts.Inserted++
			case final[k] == domain.Present && found:
				if err := tx.Absences().Delete(existing.ID); err != nil {
					return k.student, err
				}
				counts.Removed++
			}
		}
		return lastID, nil
	})
	if err != nil {
		return ToggleCounts{}, err
	}
	return counts, nil
}

func normalizeToggle(t AttendanceToggle) (AttendanceToggle, error) {
	t.StudentID = strings.TrimSpace(t.StudentID)
	t.Subject = strings.TrimSpace(t.Subject)
	if t.StudentID == "" {
		return t, domain.InvalidInputError{Field: "student_id", Reason: "is required"}
	}
	if t.Subject == "" {
		return t, domain.InvalidInputError{Field: "subject", Reason: "is required"}
	}
	if t.Presence != domain.Present && t.Presence != domain.Absent {
		return t, domain.InvalidInputError{Field: "presence", Reason: fmt.Sprintf("must be %s or %s", domain.Present, domain.Absent)}
	}
	day, err := domain.ParseDate(t.Date)
	if err != nil {
		return t, domain.InvalidInputError{Field: "date", Reason: "must be a date formatted 2006-01-02"}
	}
	t.Date = day.Format(time.DateOnly)
	return t, nil
}
