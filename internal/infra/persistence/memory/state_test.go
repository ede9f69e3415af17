package memory

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"recordcore/pkg/domain"
)

func TestMigrateSnapshotDropsOrphansAndNormalizes(t *testing.T) {
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	snapshot := migrateSnapshot(Snapshot{
		Students: map[string]domain.Student{"s1": {Base: domain.Base{ID: "s1"}, Name: "Ana"}},
		Grades: map[string]domain.AcademicRecord{
			"g1": {Base: domain.Base{ID: "g1", UpdatedAt: older}, StudentID: "s1", Subject: "Math"},
			"g2": {Base: domain.Base{ID: "g2", UpdatedAt: newer}, StudentID: "s1", Subject: "Math"},
			"g3": {Base: domain.Base{ID: "g3"}, StudentID: "gone", Subject: "Math"},
		},
		Absences: map[string]domain.AbsenceRecord{
			"a1": {Base: domain.Base{ID: "a1"}, StudentID: "s1", Subject: "Math", Date: "2025-03-10"},
			"a2": {Base: domain.Base{ID: "a2"}, StudentID: "gone", Subject: "Math", Date: "2025-03-10", Count: 1},
		},
		Animals:      map[string]domain.Animal{"x": {Base: domain.Base{ID: "x"}, Name: "Rex"}},
		Appointments: map[string]domain.Appointment{"ap": {Base: domain.Base{ID: "ap"}, AnimalID: "x"}},
	})
	if len(snapshot.Grades) != 1 {
		t.Fatalf("expected one grade record, got %d", len(snapshot.Grades))
	}
	if _, ok := snapshot.Grades["g2"]; !ok {
		t.Fatalf("expected newest duplicate to survive")
	}
	if len(snapshot.Absences) != 1 || snapshot.Absences["a1"].Count != 1 {
		t.Fatalf("unexpected absences %+v", snapshot.Absences)
	}
	if snapshot.Animals["x"].History == nil {
		t.Fatalf("expected history normalized to empty slice")
	}
	if appt := snapshot.Appointments["ap"]; appt.Status != domain.AppointmentPending || appt.ProductsUsed == nil {
		t.Fatalf("unexpected appointment normalization %+v", appt)
	}
	if snapshot.Vets == nil || snapshot.Products == nil {
		t.Fatalf("expected empty buckets")
	}
}

func TestBucketRoundTripKeepsDecimals(t *testing.T) {
	var src Snapshot
	src.Products = map[string]domain.Product{
		"p": {Base: domain.Base{ID: "p"}, Name: "Antiseptic", Quantity: 3, UnitPrice: decimal.RequireFromString("10.50")},
	}
	payload, err := src.EncodeBucket(domain.EntityProduct)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil || len(raw) != 1 {
		t.Fatalf("expected object keyed by id: %s", payload)
	}
	var dst Snapshot
	if err := dst.DecodeBucket(domain.EntityProduct, payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !dst.Products["p"].UnitPrice.Equal(decimal.RequireFromString("10.5")) {
		t.Fatalf("unexpected price %s", dst.Products["p"].UnitPrice)
	}
	if _, err := dst.EncodeBucket("services"); err == nil {
		t.Fatalf("expected unknown bucket error")
	}
}

func TestTouchedBucketsFollowsEntityOrder(t *testing.T) {
	got := TouchedBuckets([]domain.Change{
		{Entity: domain.EntityStockTransaction},
		{Entity: domain.EntityAnimal},
		{Entity: domain.EntityStockTransaction},
		{Entity: domain.EntityProduct},
	})
	want := []domain.EntityType{domain.EntityProduct, domain.EntityStockTransaction, domain.EntityAnimal}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
