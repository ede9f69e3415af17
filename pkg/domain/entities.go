// Package domain defines the persistent entities, value types, error kinds and
// rule evaluation primitives shared by the school and clinic record engines.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies the collection a record is stored in.
type EntityType string

// Collection identifiers used in Change records and persistence buckets.
const (
	EntityStudent          EntityType = "students"
	EntityTeacher          EntityType = "teachers"
	EntityClass            EntityType = "classes"
	EntityAcademicRecord   EntityType = "grades"
	EntityAbsence          EntityType = "absences"
	EntityProduct          EntityType = "stock"
	EntityStockTransaction EntityType = "stock_transactions"
	EntityAppointment      EntityType = "appointments"
	EntityAnimal           EntityType = "animals"
	EntityOwner            EntityType = "owners"
	EntityVet              EntityType = "vets"
)

// EntityTypes lists every collection in a stable order. Durable backends use it
// as the bucket list.
var EntityTypes = []EntityType{
	EntityStudent,
	EntityTeacher,
	EntityClass,
	EntityAcademicRecord,
	EntityAbsence,
	EntityProduct,
	EntityStockTransaction,
	EntityAppointment,
	EntityAnimal,
	EntityOwner,
	EntityVet,
}

// Shift enumerates class periods.
type Shift string

const (
	ShiftMorning   Shift = "morning"
	ShiftAfternoon Shift = "afternoon"
	ShiftEvening   Shift = "evening"
)

// AcademicStatus is the derived standing of a student in one subject.
type AcademicStatus string

const (
	StatusApproved        AcademicStatus = "approved"
	StatusRecovery        AcademicStatus = "recovery"
	StatusFailed          AcademicStatus = "failed"
	StatusFailedByAbsence AcademicStatus = "failed_by_absence"
	StatusNoGrades        AcademicStatus = "no_grades"
)

// Presence is the attendance value of a student on one day.
type Presence string

const (
	Present Presence = "present"
	Absent  Presence = "absent"
)

// ProductType classifies stock items.
type ProductType string

const (
	ProductMedicine  ProductType = "medicine"
	ProductFeed      ProductType = "feed"
	ProductAccessory ProductType = "accessory"
	ProductOther     ProductType = "other"
)

// TransactionKind is the direction of a stock movement.
type TransactionKind string

const (
	StockIn  TransactionKind = "in"
	StockOut TransactionKind = "out"
)

// Sex of an animal.
type Sex string

const (
	SexMale   Sex = "M"
	SexFemale Sex = "F"
)

// AppointmentStatus enumerates the appointment workflow.
type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentPerformed AppointmentStatus = "performed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Closable reports whether an appointment in this status may be closed into a service record.
func (s AppointmentStatus) Closable() bool {
	return s == AppointmentPending || s == AppointmentConfirmed
}

// ServiceKind is the kind recorded on every history entry.
const ServiceKind = "service"

// Base contains common fields for all stored documents.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Meta exposes the embedded base so generic stores can assign identity and
// timestamps on any entity.
func (b *Base) Meta() *Base { return b }

// Student is enrolled in exactly one class, referenced by name.
type Student struct {
	Base
	Name         string `json:"name" validate:"required"`
	BirthDate    string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	TaxID        string `json:"tax_id"`
	EnrollmentID string `json:"enrollment_id" validate:"required"`
	Address      string `json:"address"`
	Phone        string `json:"phone"`
	Email        string `json:"email" validate:"omitempty,email"`
	ClassName    string `json:"class_name" validate:"required"`
}

// Teacher teaches one subject.
type Teacher struct {
	Base
	Name    string `json:"name" validate:"required"`
	TaxID   string `json:"tax_id" validate:"required"`
	Subject string `json:"subject" validate:"required"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email" validate:"omitempty,email"`
}

// Class groups students under a responsible teacher.
type Class struct {
	Base
	Name        string `json:"name" validate:"required"`
	Year        int    `json:"year" validate:"gte=0"`
	GradeLevel  string `json:"grade_level"`
	Shift       Shift  `json:"shift" validate:"omitempty,oneof=morning afternoon evening"`
	TeacherName string `json:"teacher_name"`
	Capacity    int    `json:"capacity" validate:"gt=0"`
}

// BimesterCount is the number of graded terms in a school year.
const BimesterCount = 4

// AcademicRecord holds one student's grades in one subject. A nil bimester has
// not been graded yet.
type AcademicRecord struct {
	Base
	StudentID string                  `json:"student_id" validate:"required"`
	Subject   string                  `json:"subject" validate:"required"`
	Bimesters [BimesterCount]*float64 `json:"bimesters"`
	Average   float64                 `json:"average"`
	Status    AcademicStatus          `json:"status"`
}

// Entries returns the graded bimester values in term order.
func (r AcademicRecord) Entries() []float64 {
	out := make([]float64, 0, BimesterCount)
	for _, b := range r.Bimesters {
		if b != nil {
			out = append(out, *b)
		}
	}
	return out
}

// AbsenceRecord marks a student absent from a subject on a date. Presence is
// the lack of a record.
type AbsenceRecord struct {
	Base
	StudentID string `json:"student_id" validate:"required"`
	Subject   string `json:"subject" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Count     int    `json:"count" validate:"gt=0"`
}

// Product is a stock item consumed during service visits.
type Product struct {
	Base
	Name      string          `json:"name" validate:"required"`
	Type      ProductType     `json:"type" validate:"omitempty,oneof=medicine feed accessory other"`
	Quantity  int             `json:"quantity"`
	Unit      string          `json:"unit"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Expiry    *time.Time      `json:"expiry,omitempty"`
	EntryDate time.Time       `json:"entry_date"`
	Notes     string          `json:"notes"`
}

// StockTransaction is an append-only stock movement.
type StockTransaction struct {
	Base
	ProductID      string          `json:"product_id" validate:"required"`
	ProductName    string          `json:"product_name"`
	Date           time.Time       `json:"date"`
	Kind           TransactionKind `json:"kind" validate:"oneof=in out"`
	Quantity       int             `json:"quantity" validate:"gt=0"`
	QuantityBefore int             `json:"quantity_before"`
	QuantityAfter  int             `json:"quantity_after"`
	Notes          string          `json:"notes"`
}

// Owner is a clinic client.
type Owner struct {
	Base
	Name    string `json:"name" validate:"required"`
	TaxID   string `json:"tax_id"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Email   string `json:"email" validate:"omitempty,email"`
}

// Animal is a patient; History is its append-only service ledger.
type Animal struct {
	Base
	Name    string          `json:"name" validate:"required"`
	Species string          `json:"species"`
	Breed   string          `json:"breed"`
	Age     int             `json:"age" validate:"gte=0"`
	Sex     Sex             `json:"sex" validate:"omitempty,oneof=M F"`
	Weight  float64         `json:"weight" validate:"gte=0"`
	OwnerID string          `json:"owner_id"`
	History []ServiceRecord `json:"history"`
}

// Vet is a professional able to perform services and sign in.
type Vet struct {
	Base
	Name      string `json:"name" validate:"required"`
	Specialty string `json:"specialty"`
	LicenseID string `json:"license_id"`
	Password  string `json:"password" validate:"required"`
}

// Appointment schedules a visit of an animal, optionally with a vet.
type Appointment struct {
	Base
	AnimalID         string            `json:"animal_id" validate:"required"`
	VetID            *string           `json:"vet_id"`
	ScheduledAt      time.Time         `json:"scheduled_at"`
	ConsultationType string            `json:"consultation_type"`
	Status           AppointmentStatus `json:"status" validate:"omitempty,oneof=pending confirmed performed cancelled"`
	ProductsUsed     []LineItem        `json:"products_used"`
}

// LineItem is one consumed product on a service record.
type LineItem struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// ServiceRecord is a closed service visit embedded in Animal.History.
type ServiceRecord struct {
	Date            time.Time       `json:"date"`
	Kind            string          `json:"kind"`
	AppointmentID   string          `json:"appointment_id"`
	ConsultationFee decimal.Decimal `json:"consultation_fee"`
	LineItems       []LineItem      `json:"line_items"`
	TotalProducts   decimal.Decimal `json:"total_products"`
	GrandTotal      decimal.Decimal `json:"grand_total"`
	Notes           string          `json:"notes"`
	PerformedByID   string          `json:"performed_by_id"`
	PerformedByName string          `json:"performed_by_name"`
}
