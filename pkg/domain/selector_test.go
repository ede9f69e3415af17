package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSelectorMatches(t *testing.T) {
	doc := Student{Base: Base{ID: "s1"}, Name: "Ana Souza", EnrollmentID: "2024-001", ClassName: "5A"}
	cases := []struct {
		name string
		sel  Selector
		want bool
	}{
		{"empty", Selector{}, true},
		{"eq", Where(Eq("class_name", "5A")), true},
		{"eq mismatch", Where(Eq("class_name", "5B")), false},
		{"contains folded", Where(Contains("name", "SOUZA")), true},
		{"contains missing", Where(Contains("name", "lima")), false},
		{"conjunction", Where(Eq("class_name", "5A"), Contains("enrollment_id", "2024")), true},
		{"conjunction fails", Where(Eq("class_name", "5A"), Contains("enrollment_id", "2023")), false},
		{"eq empty on blank field", Where(Eq("email", "")), true},
		{"unknown field contains", Where(Contains("nickname", "a")), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.sel.Matches(doc)
			if err != nil {
				t.Fatalf("matches: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %v for %s", tc.want, tc.sel)
			}
		})
	}
}

func TestSelectorDateRangeOnTimestampsAndDates(t *testing.T) {
	rec := ServiceRecord{Date: time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)}
	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 10, 23, 59, 59, 0, time.UTC)
	ok, err := Where(DateRange("date", from, to)).Matches(rec)
	if err != nil || !ok {
		t.Fatalf("expected timestamp in range: %v %v", ok, err)
	}
	ok, _ = Where(DateRange("date", to, time.Time{})).Matches(rec)
	if ok {
		t.Fatalf("expected timestamp before open-ended range start")
	}
	abs := AbsenceRecord{Date: "2025-03-10"}
	ok, _ = Where(DateRange("date", time.Time{}, from)).Matches(abs)
	if !ok {
		t.Fatalf("expected inclusive upper bound on plain date")
	}
}

func TestSelectorMatchesNestedAndDecimal(t *testing.T) {
	appt := Appointment{AnimalID: "x", Status: AppointmentPending}
	ok, err := Where(Eq("status", AppointmentPending)).Matches(appt)
	if err != nil || !ok {
		t.Fatalf("expected typed enum equality: %v %v", ok, err)
	}
	p := Product{Name: "Antiseptic", UnitPrice: decimal.RequireFromString("10.50")}
	ok, _ = Where(Eq("unit_price", "10.5")).Matches(p)
	if !ok {
		t.Fatalf("expected decimal field to compare as text")
	}
	fields := map[string]any{"owner": map[string]any{"name": "Olga"}}
	ok, _ = Where(Eq("owner.name", "Olga")).MatchesFields(fields)
	if !ok {
		t.Fatalf("expected dotted path lookup")
	}
}

func TestSelectorUnknownOperator(t *testing.T) {
	_, err := Selector{Conditions: []Condition{{Field: "name", Op: "regex"}}}.MatchesFields(map[string]any{"name": "x"})
	if err == nil {
		t.Fatalf("expected unknown operator error")
	}
}

func TestSelectorAndIsCopy(t *testing.T) {
	base := Where(Eq("a", 1))
	extended := base.And(Eq("b", 2))
	if len(base.Conditions) != 1 || len(extended.Conditions) != 2 {
		t.Fatalf("And must not mutate the receiver")
	}
	if !strings.Contains(extended.String(), "b eq \"2\"") {
		t.Fatalf("unexpected rendering %s", extended)
	}
	if (Selector{}).String() != "{}" {
		t.Fatalf("unexpected empty rendering")
	}
}

func TestSortLess(t *testing.T) {
	a := map[string]any{"name": "ana", "average": 9.0}
	b := map[string]any{"name": "Bruno", "average": 10.0}
	if !(Sort{Field: "name"}).Less(a, b) {
		t.Fatalf("expected folded text ordering")
	}
	if !(Sort{Field: "average"}).Less(a, b) {
		t.Fatalf("expected numeric ordering (9 < 10)")
	}
	if !(Sort{Field: "average", Descending: true}).Less(b, a) {
		t.Fatalf("expected descending ordering")
	}
}

func TestParseDate(t *testing.T) {
	if _, err := ParseDate("2025-03-10"); err != nil {
		t.Fatalf("date: %v", err)
	}
	if _, err := ParseDate("2025-03-10T10:00:00Z"); err != nil {
		t.Fatalf("timestamp: %v", err)
	}
	if _, err := ParseDate("10/03/2025"); err == nil {
		t.Fatalf("expected rejection of non ISO date")
	}
}
