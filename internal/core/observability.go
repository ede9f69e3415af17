package core

import (
	"context"
	"time"

	"recordcore/pkg/domain"
)

// ClockFunc returns the current time. Service records and stock movements are
// stamped with it.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// Logger is the structured logger consumed by the service. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// AuditStatus is the outcome stored on an audit entry.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one completed mutating operation.
type AuditEntry struct {
	Operation string
	Entity    domain.EntityType
	Action    domain.Action
	EntityID  string
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives an entry per mutating operation.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// MetricsRecorder observes operation outcomes and latency.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts a span per service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended with the operation error, nil on success.
type TraceSpan interface {
	End(err error)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// operationMeta maps audited operations to the entity and action they touch.
// Operations missing from the table are traced and measured but not audited.
var operationMeta = map[string]struct {
	entity domain.EntityType
	action domain.Action
}{
	opEnrollStudent:     {domain.EntityStudent, domain.ActionCreate},
	opUpdateStudent:     {domain.EntityStudent, domain.ActionUpdate},
	opTransferStudent:   {domain.EntityStudent, domain.ActionUpdate},
	opDeleteStudent:     {domain.EntityStudent, domain.ActionDelete},
	opCreateTeacher:     {domain.EntityTeacher, domain.ActionCreate},
	opUpdateTeacher:     {domain.EntityTeacher, domain.ActionUpdate},
	opDeleteTeacher:     {domain.EntityTeacher, domain.ActionDelete},
	opCreateClass:       {domain.EntityClass, domain.ActionCreate},
	opUpdateClass:       {domain.EntityClass, domain.ActionUpdate},
	opDeleteClass:       {domain.EntityClass, domain.ActionDelete},
	opUpsertGrades:      {domain.EntityAcademicRecord, domain.ActionUpdate},
	opToggleAttendance:  {domain.EntityAbsence, domain.ActionUpdate},
	opAttendanceBatch:   {domain.EntityAbsence, domain.ActionUpdate},
	opCreateOwner:       {domain.EntityOwner, domain.ActionCreate},
	opUpdateOwner:       {domain.EntityOwner, domain.ActionUpdate},
	opDeleteOwner:       {domain.EntityOwner, domain.ActionDelete},
	opCreateAnimal:      {domain.EntityAnimal, domain.ActionCreate},
	opUpdateAnimal:      {domain.EntityAnimal, domain.ActionUpdate},
	opDeleteAnimal:      {domain.EntityAnimal, domain.ActionDelete},
	opCreateVet:         {domain.EntityVet, domain.ActionCreate},
	opUpdateVet:         {domain.EntityVet, domain.ActionUpdate},
	opDeleteVet:         {domain.EntityVet, domain.ActionDelete},
	opCreateProduct:     {domain.EntityProduct, domain.ActionCreate},
	opUpdateProduct:     {domain.EntityProduct, domain.ActionUpdate},
	opDeleteProduct:     {domain.EntityProduct, domain.ActionDelete},
	opReceiveStock:      {domain.EntityProduct, domain.ActionUpdate},
	opAdjustStock:       {domain.EntityProduct, domain.ActionUpdate},
	opSchedule:          {domain.EntityAppointment, domain.ActionCreate},
	opUpdateAppointment: {domain.EntityAppointment, domain.ActionUpdate},
	opConfirm:           {domain.EntityAppointment, domain.ActionUpdate},
	opCancel:            {domain.EntityAppointment, domain.ActionUpdate},
	opDeleteAppointment: {domain.EntityAppointment, domain.ActionDelete},
	opCloseVisit:        {domain.EntityAppointment, domain.ActionUpdate},
}

// Operation names reported to loggers, tracers, metrics and audit.
const (
	opEnrollStudent     = "enroll_student"
	opUpdateStudent     = "update_student"
	opTransferStudent   = "transfer_student"
	opDeleteStudent     = "delete_student"
	opCreateTeacher     = "create_teacher"
	opUpdateTeacher     = "update_teacher"
	opDeleteTeacher     = "delete_teacher"
	opCreateClass       = "create_class"
	opUpdateClass       = "update_class"
	opDeleteClass       = "delete_class"
	opUpsertGrades      = "upsert_academic_record"
	opToggleAttendance  = "toggle_attendance"
	opAttendanceBatch   = "toggle_attendance_batch"
	opCreateOwner       = "create_owner"
	opUpdateOwner       = "update_owner"
	opDeleteOwner       = "delete_owner"
	opCreateAnimal      = "create_animal"
	opUpdateAnimal      = "update_animal"
	opDeleteAnimal      = "delete_animal"
	opCreateVet         = "create_vet"
	opUpdateVet         = "update_vet"
	opDeleteVet         = "delete_vet"
	opCreateProduct     = "create_product"
	opUpdateProduct     = "update_product"
	opDeleteProduct     = "delete_product"
	opReceiveStock      = "receive_stock"
	opAdjustStock       = "adjust_stock"
	opSchedule          = "schedule_appointment"
	opUpdateAppointment = "update_appointment"
	opConfirm           = "confirm_appointment"
	opCancel            = "cancel_appointment"
	opDeleteAppointment = "delete_appointment"
	opCloseVisit        = "close_service_visit"
	opAuthenticate      = "authenticate"
	opExportTable       = "export_table"
	opRenderRecord      = "render_service_record"
)
