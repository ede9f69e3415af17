package core

import (
	"context"
	"testing"
	"time"

	"recordcore/pkg/domain"
)

func TestSchoolReportUsesEffectiveStatus(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	mustClass(t, svc, "5A", 30)
	mustClass(t, svc, "6B", 30)
	sofia := mustStudent(t, svc, "Sofia", "E-1", "5A")
	bruno := mustStudent(t, svc, "Bruno", "E-2", "6B")
	mustTeacher(t, svc, "Carla Mendes", "111", "Math")

	for _, st := range []domain.Student{sofia, bruno} {
		if _, _, err := svc.UpsertAcademicRecord(ctx, st.ID, "Math", [4]string{"8", "8", "8", "8"}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if _, _, err := svc.UpsertAcademicRecord(ctx, sofia.ID, "History", [4]string{"5", "", "", ""}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	mustAbsent(t, svc, sofia.ID, "Math", 10)

	rows, err := svc.SchoolReport(ctx, ReportFilter{})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].StudentName != "Bruno" || rows[1].Subject != "History" || rows[2].Subject != "Math" {
		t.Fatalf("unexpected ordering %+v", rows)
	}
	if rows[0].Status != domain.StatusApproved || rows[0].Shift != domain.ShiftMorning {
		t.Fatalf("unexpected Bruno row %+v", rows[0])
	}
	if rows[1].Teacher.Name != UnknownName || rows[1].Status != domain.StatusRecovery {
		t.Fatalf("unexpected History row %+v", rows[1])
	}
	if rows[2].TotalAbsences != 10 || rows[2].Status != domain.StatusFailedByAbsence || rows[2].Teacher.Name != "Carla Mendes" {
		t.Fatalf("expected stale approved status to be re-derived, got %+v", rows[2])
	}

	grades, err := svc.GradesByStudent(ctx, sofia.ID)
	if err != nil {
		t.Fatalf("grades: %v", err)
	}
	if len(grades) != 2 || grades[1].Record.Status != domain.StatusApproved || grades[1].EffectiveStatus != domain.StatusFailedByAbsence {
		t.Fatalf("expected stored and effective status to diverge, got %+v", grades)
	}

	cases := []struct {
		name   string
		filter ReportFilter
		want   int
	}{
		{"by teacher substring", ReportFilter{TeacherName: "carla"}, 2},
		{"unknown teacher", ReportFilter{TeacherName: "nobody"}, 0},
		{"by class", ReportFilter{ClassName: "6B"}, 1},
		{"by student substring", ReportFilter{StudentName: "SOF"}, 2},
		{"by subject", ReportFilter{Subject: "History"}, 1},
		{"combined", ReportFilter{StudentName: "sofia", Subject: "Math", TeacherName: "mendes"}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.SchoolReport(ctx, tc.filter)
			if err != nil {
				t.Fatalf("report: %v", err)
			}
			if len(got) != tc.want {
				t.Fatalf("expected %d rows, got %d", tc.want, len(got))
			}
		})
	}
}

func TestStudentAndTeacherListings(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	mustClass(t, svc, "5A", 30)
	mustClass(t, svc, "6B", 30)
	mustStudent(t, svc, "Sofia Lima", "2025-001", "5A")
	mustStudent(t, svc, "Ana Souza", "2025-002", "6B")
	mustStudent(t, svc, "Pedro Lima", "2024-003", "5A")
	mustTeacher(t, svc, "Zeca", "1", "Math")
	mustTeacher(t, svc, "Alice", "2", "Math")
	mustTeacher(t, svc, "Beto", "3", "Art")

	all, err := svc.ListStudents(ctx, StudentFilter{})
	if err != nil || len(all) != 3 || all[0].Name != "Ana Souza" {
		t.Fatalf("unexpected students %+v err=%v", all, err)
	}
	lima, _ := svc.ListStudents(ctx, StudentFilter{NameContains: "lima", ClassName: "5A"})
	if len(lima) != 2 {
		t.Fatalf("expected two Lima students in 5A, got %d", len(lima))
	}
	enrolled, _ := svc.ListStudents(ctx, StudentFilter{EnrollmentContains: "2025"})
	if len(enrolled) != 2 {
		t.Fatalf("expected two 2025 enrollments, got %d", len(enrolled))
	}

	math, err := svc.ListTeachers(ctx, "Math")
	if err != nil || len(math) != 2 || math[0].Name != "Alice" {
		t.Fatalf("unexpected math teachers %+v err=%v", math, err)
	}
	ref, err := svc.ResolveTeacherForSubject(ctx, "Math")
	if err != nil || ref.Name != "Alice" {
		t.Fatalf("expected first teacher by name, got %+v err=%v", ref, err)
	}
	classes, _ := svc.ListClasses(ctx)
	if len(classes) != 2 || classes[0].Name != "5A" {
		t.Fatalf("unexpected classes %+v", classes)
	}
}

func TestServiceHistoryOrdinalsAndFilters(t *testing.T) {
	ctx := context.Background()
	clock := fixedNow
	svc := newTestService(t, WithClock(func() time.Time { return clock }))
	f := newClinicFixture(t, svc)
	other, _, err := svc.CreateVet(ctx, domain.Vet{Name: "Dr. Otto", Password: "pw"})
	if err != nil {
		t.Fatalf("create vet: %v", err)
	}
	cat, _, err := svc.CreateAnimal(ctx, domain.Animal{Name: "Mia", Species: "cat"})
	if err != nil {
		t.Fatalf("create animal: %v", err)
	}

	visit := func(animalID, performer string, at time.Time) {
		t.Helper()
		clock = at
		appt, _, err := svc.ScheduleAppointment(ctx, domain.Appointment{AnimalID: animalID, ScheduledAt: at})
		if err != nil {
			t.Fatalf("schedule: %v", err)
		}
		if _, err := svc.CloseServiceVisit(ctx, ServiceVisit{AppointmentID: appt.ID, ConsultationFee: money("60"), PerformerID: performer}); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	day := 24 * time.Hour
	visit(f.animal.ID, f.vet.ID, fixedNow)
	visit(cat.ID, other.ID, fixedNow.Add(day))
	visit(f.animal.ID, other.ID, fixedNow.Add(2*day))

	rows, err := svc.ServiceHistory(ctx, HistoryFilter{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].AnimalName != "Rex" || rows[0].Ordinal != 1 || rows[0].Owner.Name != "Olivia" {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
	if rows[1].AnimalName != "Mia" || rows[1].Ordinal != 1 || rows[1].Owner.Name != UnknownName {
		t.Fatalf("unexpected second row %+v", rows[1])
	}
	if rows[2].AnimalName != "Rex" || rows[2].Ordinal != 2 {
		t.Fatalf("unexpected third row %+v", rows[2])
	}

	byVet, _ := svc.ServiceHistory(ctx, HistoryFilter{PerformerID: other.ID})
	if len(byVet) != 2 {
		t.Fatalf("expected 2 rows for Dr. Otto, got %d", len(byVet))
	}
	windowed, _ := svc.ServiceHistory(ctx, HistoryFilter{From: fixedNow.Add(day), To: fixedNow.Add(day)})
	if len(windowed) != 1 || windowed[0].AnimalName != "Mia" {
		t.Fatalf("unexpected windowed rows %+v", windowed)
	}
	rex, _ := svc.ServiceHistory(ctx, HistoryFilter{AnimalID: f.animal.ID})
	if len(rex) != 2 {
		t.Fatalf("expected 2 rows for Rex, got %d", len(rex))
	}
}

func TestLowStockAndListings(t *testing.T) {
	ctx := context.Background()
	svc := newThresholdService(t, 3)
	f := newClinicFixture(t, svc)

	low, err := svc.LowStock(ctx, 3)
	if err != nil || len(low) != 1 || low[0].Name != "Antiseptic" {
		t.Fatalf("unexpected low stock %+v err=%v", low, err)
	}
	low, _ = svc.LowStock(ctx, 5)
	if len(low) != 2 || low[0].Name != "Antiseptic" || low[1].Name != "Vaccine-A" {
		t.Fatalf("expected lowest first, got %+v", low)
	}
	def, _ := svc.DefaultLowStock(ctx)
	if len(def) != 1 || def[0].ID != f.septic.ID {
		t.Fatalf("expected the configured threshold to apply, got %+v", def)
	}

	products, _ := svc.ListProducts(ctx, "vacc")
	if len(products) != 1 || products[0].ID != f.vaccine.ID {
		t.Fatalf("unexpected products %+v", products)
	}
	owners, _ := svc.ListOwners(ctx, "oliv")
	if len(owners) != 1 {
		t.Fatalf("expected one owner, got %d", len(owners))
	}
	animals, _ := svc.ListAnimals(ctx, "", f.owner.ID)
	if len(animals) != 1 || animals[0].Name != "Rex" {
		t.Fatalf("unexpected animals %+v", animals)
	}
	vets, _ := svc.ListVets(ctx)
	if len(vets) != 1 || vets[0].Password != "" {
		t.Fatalf("expected vets without passwords, got %+v", vets)
	}

	moves, err := svc.StockTransactions(ctx, StockFilter{From: fixedNow, To: fixedNow})
	if err != nil || len(moves) != 2 {
		t.Fatalf("expected two opening movements, got %d err=%v", len(moves), err)
	}
	moves, _ = svc.StockTransactions(ctx, StockFilter{From: fixedNow.Add(time.Hour)})
	if len(moves) != 0 {
		t.Fatalf("expected no later movements, got %d", len(moves))
	}
}

func TestListAppointmentsFilters(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	f := newClinicFixture(t, svc)
	later, _, err := svc.ScheduleAppointment(ctx, domain.Appointment{AnimalID: f.animal.ID, ScheduledAt: fixedNow.Add(72 * time.Hour)})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if _, err := svc.ConfirmAppointment(ctx, later.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	all, err := svc.ListAppointments(ctx, AppointmentFilter{})
	if err != nil || len(all) != 2 || all[0].ID != f.appt.ID {
		t.Fatalf("unexpected appointments %+v err=%v", all, err)
	}
	cases := []struct {
		name   string
		filter AppointmentFilter
		want   string
	}{
		{"by status", AppointmentFilter{Status: domain.AppointmentConfirmed}, later.ID},
		{"by vet", AppointmentFilter{VetID: f.vet.ID}, f.appt.ID},
		{"by window", AppointmentFilter{From: fixedNow.Add(48 * time.Hour)}, later.ID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.ListAppointments(ctx, tc.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != 1 || got[0].ID != tc.want {
				t.Fatalf("expected %s, got %+v", tc.want, got)
			}
		})
	}

	parties, err := svc.ResolveAppointmentParties(ctx, f.appt.ID)
	if err != nil {
		t.Fatalf("parties: %v", err)
	}
	if parties.Animal.Name != "Rex" || parties.Owner.Name != "Olivia" || parties.Vet.Name != "Dr. Vera" {
		t.Fatalf("unexpected parties %+v", parties)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.GetStudent(context.Background(), "missing")
	expectKind(t, err, domain.ErrNotFound)
	_, err = svc.GetAnimal(context.Background(), "missing")
	expectKind(t, err, domain.ErrNotFound)
}
