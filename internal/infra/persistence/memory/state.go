package memory

import (
	"encoding/json"
	"fmt"
	"sort"

	"recordcore/pkg/domain"
)

type memoryState struct {
	students          map[string]domain.Student
	teachers          map[string]domain.Teacher
	classes           map[string]domain.Class
	grades            map[string]domain.AcademicRecord
	absences          map[string]domain.AbsenceRecord
	products          map[string]domain.Product
	stockTransactions map[string]domain.StockTransaction
	appointments      map[string]domain.Appointment
	animals           map[string]domain.Animal
	owners            map[string]domain.Owner
	vets              map[string]domain.Vet
}

// Snapshot captures a point-in-time clone of the store state. Each field is
// one persistence bucket keyed by document id.
type Snapshot struct {
	Students          map[string]domain.Student          `json:"students"`
	Teachers          map[string]domain.Teacher          `json:"teachers"`
	Classes           map[string]domain.Class            `json:"classes"`
	Grades            map[string]domain.AcademicRecord   `json:"grades"`
	Absences          map[string]domain.AbsenceRecord    `json:"absences"`
	Products          map[string]domain.Product          `json:"stock"`
	StockTransactions map[string]domain.StockTransaction `json:"stock_transactions"`
	Appointments      map[string]domain.Appointment      `json:"appointments"`
	Animals           map[string]domain.Animal           `json:"animals"`
	Owners            map[string]domain.Owner            `json:"owners"`
	Vets              map[string]domain.Vet              `json:"vets"`
}

func newMemoryState() memoryState {
	return memoryState{
		students:          make(map[string]domain.Student),
		teachers:          make(map[string]domain.Teacher),
		classes:           make(map[string]domain.Class),
		grades:            make(map[string]domain.AcademicRecord),
		absences:          make(map[string]domain.AbsenceRecord),
		products:          make(map[string]domain.Product),
		stockTransactions: make(map[string]domain.StockTransaction),
		appointments:      make(map[string]domain.Appointment),
		animals:           make(map[string]domain.Animal),
		owners:            make(map[string]domain.Owner),
		vets:              make(map[string]domain.Vet),
	}
}

func (s memoryState) clone() memoryState {
	return memoryState{
		students:          cloneMap(s.students, same[domain.Student]),
		teachers:          cloneMap(s.teachers, same[domain.Teacher]),
		classes:           cloneMap(s.classes, same[domain.Class]),
		grades:            cloneMap(s.grades, cloneAcademicRecord),
		absences:          cloneMap(s.absences, same[domain.AbsenceRecord]),
		products:          cloneMap(s.products, cloneProduct),
		stockTransactions: cloneMap(s.stockTransactions, same[domain.StockTransaction]),
		appointments:      cloneMap(s.appointments, cloneAppointment),
		animals:           cloneMap(s.animals, cloneAnimal),
		owners:            cloneMap(s.owners, same[domain.Owner]),
		vets:              cloneMap(s.vets, same[domain.Vet]),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	c := state.clone()
	return Snapshot{
		Students:          c.students,
		Teachers:          c.teachers,
		Classes:           c.classes,
		Grades:            c.grades,
		Absences:          c.absences,
		Products:          c.products,
		StockTransactions: c.stockTransactions,
		Appointments:      c.appointments,
		Animals:           c.animals,
		Owners:            c.owners,
		Vets:              c.vets,
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	return memoryState{
		students:          s.Students,
		teachers:          s.Teachers,
		classes:           s.Classes,
		grades:            s.Grades,
		absences:          s.Absences,
		products:          s.Products,
		stockTransactions: s.StockTransactions,
		appointments:      s.Appointments,
		animals:           s.Animals,
		owners:            s.Owners,
		vets:              s.Vets,
	}.clone()
}

// bucket returns a pointer to the map holding entity documents.
func (s *Snapshot) bucket(entity domain.EntityType) (any, error) {
	switch entity {
	case domain.EntityStudent:
		return &s.Students, nil
	case domain.EntityTeacher:
		return &s.Teachers, nil
	case domain.EntityClass:
		return &s.Classes, nil
	case domain.EntityAcademicRecord:
		return &s.Grades, nil
	case domain.EntityAbsence:
		return &s.Absences, nil
	case domain.EntityProduct:
		return &s.Products, nil
	case domain.EntityStockTransaction:
		return &s.StockTransactions, nil
	case domain.EntityAppointment:
		return &s.Appointments, nil
	case domain.EntityAnimal:
		return &s.Animals, nil
	case domain.EntityOwner:
		return &s.Owners, nil
	case domain.EntityVet:
		return &s.Vets, nil
	default:
		return nil, fmt.Errorf("unknown bucket %q", entity)
	}
}

// EncodeBucket renders one bucket as a JSON object keyed by id.
func (s Snapshot) EncodeBucket(entity domain.EntityType) ([]byte, error) {
	ptr, err := s.bucket(entity)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(ptr)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", entity, err)
	}
	return data, nil
}

// DecodeBucket replaces one bucket from its JSON encoding.
func (s *Snapshot) DecodeBucket(entity domain.EntityType, payload []byte) error {
	ptr, err := s.bucket(entity)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, ptr); err != nil {
		return fmt.Errorf("decode %s: %w", entity, err)
	}
	return nil
}

// TouchedBuckets lists the buckets named by changes, in EntityTypes order.
func TouchedBuckets(changes []domain.Change) []domain.EntityType {
	seen := make(map[domain.EntityType]bool, len(changes))
	for _, c := range changes {
		seen[c.Entity] = true
	}
	out := make([]domain.EntityType, 0, len(seen))
	for _, entity := range domain.EntityTypes {
		if seen[entity] {
			out = append(out, entity)
		}
	}
	return out
}

// migrateSnapshot normalizes legacy or partially written state: nil buckets
// become empty, child ledgers of removed students are dropped, duplicate
// grade records keep the most recently updated one, and slices decode empty.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Students == nil {
		snapshot.Students = map[string]domain.Student{}
	}
	if snapshot.Teachers == nil {
		snapshot.Teachers = map[string]domain.Teacher{}
	}
	if snapshot.Classes == nil {
		snapshot.Classes = map[string]domain.Class{}
	}
	if snapshot.Grades == nil {
		snapshot.Grades = map[string]domain.AcademicRecord{}
	}
	if snapshot.Absences == nil {
		snapshot.Absences = map[string]domain.AbsenceRecord{}
	}
	if snapshot.Products == nil {
		snapshot.Products = map[string]domain.Product{}
	}
	if snapshot.StockTransactions == nil {
		snapshot.StockTransactions = map[string]domain.StockTransaction{}
	}
	if snapshot.Appointments == nil {
		snapshot.Appointments = map[string]domain.Appointment{}
	}
	if snapshot.Animals == nil {
		snapshot.Animals = map[string]domain.Animal{}
	}
	if snapshot.Owners == nil {
		snapshot.Owners = map[string]domain.Owner{}
	}
	if snapshot.Vets == nil {
		snapshot.Vets = map[string]domain.Vet{}
	}

	studentExists := func(id string) bool {
		_, ok := snapshot.Students[id]
		return ok
	}

	latest := make(map[string]string)
	for _, id := range sortedKeys(snapshot.Grades) {
		record := snapshot.Grades[id]
		if !studentExists(record.StudentID) {
			delete(snapshot.Grades, id)
			continue
		}
		key := record.StudentID + "\x00" + record.Subject
		if prevID, dup := latest[key]; dup {
			prev := snapshot.Grades[prevID]
			if record.UpdatedAt.After(prev.UpdatedAt) {
				delete(snapshot.Grades, prevID)
				latest[key] = id
			} else {
				delete(snapshot.Grades, id)
			}
			continue
		}
		latest[key] = id
	}

	for id, absence := range snapshot.Absences {
		if !studentExists(absence.StudentID) {
			delete(snapshot.Absences, id)
			continue
		}
		if absence.Count <= 0 {
			absence.Count = 1
			snapshot.Absences[id] = absence
		}
	}

	for id, animal := range snapshot.Animals {
		if animal.History == nil {
			animal.History = []domain.ServiceRecord{}
		}
		for i := range animal.History {
			if animal.History[i].LineItems == nil {
				animal.History[i].LineItems = []domain.LineItem{}
			}
		}
		snapshot.Animals[id] = animal
	}

	for id, appt := range snapshot.Appointments {
		if appt.Status == "" {
			appt.Status = domain.AppointmentPending
		}
		if appt.ProductsUsed == nil {
			appt.ProductsUsed = []domain.LineItem{}
		}
		snapshot.Appointments[id] = appt
	}

	return snapshot
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneMap[T any](in map[string]T, cloneFn func(T) T) map[string]T {
	out := make(map[string]T, len(in))
	for k, v := range in {
		out[k] = cloneFn(v)
	}
	return out
}

func same[T any](v T) T { return v }

func cloneAcademicRecord(r domain.AcademicRecord) domain.AcademicRecord {
	cp := r
	for i, b := range r.Bimesters {
		if b != nil {
			v := *b
			cp.Bimesters[i] = &v
		}
	}
	return cp
}

func cloneProduct(p domain.Product) domain.Product {
	cp := p
	if p.Expiry != nil {
		t := *p.Expiry
		cp.Expiry = &t
	}
	return cp
}

func cloneLineItems(items []domain.LineItem) []domain.LineItem {
	if items == nil {
		return nil
	}
	return append([]domain.LineItem(nil), items...)
}

func cloneAppointment(a domain.Appointment) domain.Appointment {
	cp := a
	if a.VetID != nil {
		v := *a.VetID
		cp.VetID = &v
	}
	cp.ProductsUsed = cloneLineItems(a.ProductsUsed)
	return cp
}

func cloneAnimal(a domain.Animal) domain.Animal {
	cp := a
	if a.History != nil {
		cp.History = make([]domain.ServiceRecord, len(a.History))
		for i, rec := range a.History {
			rec.LineItems = cloneLineItems(rec.LineItems)
			cp.History[i] = rec
		}
	}
	return cp
}
