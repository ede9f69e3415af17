package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"recordcore/pkg/domain"
)

var fixedNow = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	return NewInMemoryService(NewDefaultRulesEngine(0), opts...)
}

func newThresholdService(t *testing.T, threshold int, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(fixedClock), WithStockWarningThreshold(threshold)}, opts...)
	return NewInMemoryService(NewDefaultRulesEngine(threshold), opts...)
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func mustClass(t *testing.T, svc *Service, name string, capacity int) domain.Class {
	t.Helper()
	class, _, err := svc.CreateClass(context.Background(), domain.Class{Name: name, Year: 2025, Shift: domain.ShiftMorning, Capacity: capacity})
	if err != nil {
		t.Fatalf("create class %s: %v", name, err)
	}
	return class
}

func mustStudent(t *testing.T, svc *Service, name, enrollment, class string) domain.Student {
	t.Helper()
	st, _, err := svc.EnrollStudent(context.Background(), domain.Student{Name: name, EnrollmentID: enrollment, ClassName: class})
	if err != nil {
		t.Fatalf("enroll %s: %v", name, err)
	}
	return st
}

func mustTeacher(t *testing.T, svc *Service, name, taxID, subject string) domain.Teacher {
	t.Helper()
	teacher, _, err := svc.CreateTeacher(context.Background(), domain.Teacher{Name: name, TaxID: taxID, Subject: subject})
	if err != nil {
		t.Fatalf("create teacher %s: %v", name, err)
	}
	return teacher
}

func mustAbsent(t *testing.T, svc *Service, studentID, subject string, days int) {
	t.Helper()
	toggles := make([]AttendanceToggle, 0, days)
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; i++ {
		toggles = append(toggles, AttendanceToggle{StudentID: studentID, Subject: subject, Date: start.AddDate(0, 0, i).Format(time.DateOnly), Presence: domain.Absent})
	}
	if _, err := svc.ToggleAttendanceBatch(context.Background(), toggles); err != nil {
		t.Fatalf("mark absences: %v", err)
	}
}

type clinicFixture struct {
	owner   domain.Owner
	animal  domain.Animal
	vet     domain.Vet
	appt    domain.Appointment
	vaccine domain.Product
	septic  domain.Product
}

// newClinicFixture seeds an owner, an animal, a vet, a pending appointment and
// two stocked products.
func newClinicFixture(t *testing.T, svc *Service) clinicFixture {
	t.Helper()
	ctx := context.Background()
	var f clinicFixture
	var err error
	if f.owner, _, err = svc.CreateOwner(ctx, domain.Owner{Name: "Olivia"}); err != nil {
		t.Fatalf("create owner: %v", err)
	}
	if f.animal, _, err = svc.CreateAnimal(ctx, domain.Animal{Name: "Rex", Species: "dog", OwnerID: f.owner.ID}); err != nil {
		t.Fatalf("create animal: %v", err)
	}
	if f.vet, _, err = svc.CreateVet(ctx, domain.Vet{Name: "Dr. Vera", Password: "secret"}); err != nil {
		t.Fatalf("create vet: %v", err)
	}
	vetID := f.vet.ID
	if f.appt, _, err = svc.ScheduleAppointment(ctx, domain.Appointment{AnimalID: f.animal.ID, VetID: &vetID, ScheduledAt: fixedNow.Add(time.Hour), ConsultationType: "checkup"}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if f.vaccine, _, err = svc.CreateProduct(ctx, domain.Product{Name: "Vaccine-A", Type: domain.ProductMedicine, Quantity: 5, UnitPrice: money("25.00")}); err != nil {
		t.Fatalf("create vaccine: %v", err)
	}
	if f.septic, _, err = svc.CreateProduct(ctx, domain.Product{Name: "Antiseptic", Type: domain.ProductMedicine, Quantity: 3, UnitPrice: money("10.50")}); err != nil {
		t.Fatalf("create antiseptic: %v", err)
	}
	return f
}

func expectKind(t *testing.T, err error, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}

type captureAuditRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.mu.Lock()
	c.entries = append(c.entries, entry)
	c.mu.Unlock()
}

func (c *captureAuditRecorder) has(op string, status AuditStatus) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.Operation == op && e.Status == status {
			return true
		}
	}
	return false
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) add(level, msg string) {
	l.mu.Lock()
	l.lines = append(l.lines, level+" "+msg)
	l.mu.Unlock()
}

func (l *captureLogger) Debug(msg string, _ ...any) { l.add("DEBUG", msg) }
func (l *captureLogger) Info(msg string, _ ...any)  { l.add("INFO", msg) }
func (l *captureLogger) Warn(msg string, _ ...any)  { l.add("WARN", msg) }
func (l *captureLogger) Error(msg string, _ ...any) { l.add("ERROR", msg) }

func (l *captureLogger) count(line string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int
	for _, got := range l.lines {
		if got == line {
			n++
		}
	}
	return n
}
