package core

import (
	"bytes"
	"context"
	"errors"
	"expvar"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"

	"recordcore/pkg/domain"
)

type captureTracer struct {
	mu    sync.Mutex
	ended []spanRecord
}

type spanRecord struct {
	op  string
	err error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, record := range c.ended {
		if record.op == op && (record.err == nil) == success {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.mu.Lock()
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
	s.tracer.mu.Unlock()
}

func TestServiceObservabilityClinicOperations(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	svc := newTestService(t, WithAuditRecorder(audit), WithMetricsRecorder(metrics), WithTracer(tracer))

	f := newClinicFixture(t, svc)
	if _, err := svc.CloseServiceVisit(ctx, s4Visit(f.appt.ID)); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := svc.DeleteOwner(ctx, "missing-owner"); err == nil {
		t.Fatalf("expected delete_owner error for missing id")
	}
	if _, err := svc.GetAnimal(ctx, f.animal.ID); err != nil {
		t.Fatalf("get animal: %v", err)
	}

	for _, op := range []string{opCreateOwner, opCreateAnimal, opCreateVet, opSchedule, opCreateProduct, opCloseVisit} {
		if !metrics.has(op, true) {
			t.Fatalf("expected metrics success entry for %s", op)
		}
		if !tracer.has(op, true) {
			t.Fatalf("expected finished span for %s", op)
		}
		if !audit.has(op, AuditStatusSuccess) {
			t.Fatalf("expected audit success entry for %s", op)
		}
	}
	if !audit.has(opDeleteOwner, AuditStatusError) || !metrics.has(opDeleteOwner, false) || !tracer.has(opDeleteOwner, false) {
		t.Fatalf("expected failed delete_owner to be audited, measured and traced")
	}
	if !metrics.has("get_animal", true) || audit.has("get_animal", AuditStatusSuccess) {
		t.Fatalf("expected queries to be measured but not audited")
	}
}

func TestServiceObservabilitySchoolOperations(t *testing.T) {
	audit := &captureAuditRecorder{}
	logger := &captureLogger{}
	svc := newTestService(t, WithAuditRecorder(audit), WithLogger(logger))
	mustClass(t, svc, "5A", 1)
	st := mustStudent(t, svc, "Sofia", "E-1", "5A")
	if _, _, err := svc.EnrollStudent(context.Background(), domain.Student{Name: "Bruno", EnrollmentID: "E-2", ClassName: "5A"}); err == nil {
		t.Fatalf("expected capacity violation")
	}
	if _, _, err := svc.UpsertAcademicRecord(context.Background(), st.ID, "Math", [4]string{"7", "", "", ""}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !audit.has(opEnrollStudent, AuditStatusError) || !audit.has(opUpsertGrades, AuditStatusSuccess) {
		t.Fatalf("unexpected audit entries %+v", audit.entries)
	}
	if logger.count("ERROR operation failed") != 1 {
		t.Fatalf("expected one failure log, got %v", logger.lines)
	}
}

func TestStockAdvisoryIsLogged(t *testing.T) {
	logger := &captureLogger{}
	svc := newThresholdService(t, 10, WithLogger(logger))
	if _, _, err := svc.CreateProduct(context.Background(), domain.Product{Name: "Gauze", Quantity: 2}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if logger.count("WARN advisory") != 1 {
		t.Fatalf("expected advisory warning, got %v", logger.lines)
	}
}

func TestExpvarMetricsRecorderExports(t *testing.T) {
	recorder := NewExpvarMetricsRecorder("")
	if recorder.Name() == "" {
		t.Fatalf("expected recorder to have export name")
	}
	recorder.Observe(context.Background(), "test_op", true, 10*time.Millisecond)
	recorder.Observe(context.Background(), "test_op", false, 5*time.Millisecond)
	recorder.Observe(context.Background(), "", true, time.Millisecond)

	snapshot := recorder.Snapshot()
	if snapshot.DurationsMS["test_op"] != 15 {
		t.Fatalf("expected 15ms total, snapshot=%+v", snapshot)
	}
	if snapshot.Results["test_op"]["success"] != 1 || snapshot.Results["test_op"]["error"] != 1 || len(snapshot.Results) != 1 {
		t.Fatalf("unexpected results snapshot=%+v", snapshot)
	}
	v := expvar.Get(recorder.Name())
	if v == nil {
		t.Fatalf("expected expvar export to be registered")
	}
	if !strings.Contains(v.String(), "test_op") {
		t.Fatalf("expected expvar output to contain operation: %s", v.String())
	}
}

func TestJSONTraceTracerExports(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "trace_op")
	span.End(nil)
	_, span = tracer.Start(context.Background(), "failing_op")
	span.End(errors.New("boom"))

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected two span entries, got %d", len(entries))
	}
	if entries[0].Operation != "trace_op" || entries[0].Status != "success" {
		t.Fatalf("unexpected span entry: %+v", entries[0])
	}
	if entries[1].Status != "error" || entries[1].Error != "boom" {
		t.Fatalf("unexpected failed span entry: %+v", entries[1])
	}
	if !strings.Contains(buf.String(), "\"operation\":\"trace_op\"") {
		t.Fatalf("expected JSON output to contain operation: %q", buf.String())
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	svc := newTestService(t, WithMetricsRecorder(recorder))
	mustClass(t, svc, "5A", 30)
	if _, _, err := svc.CreateClass(context.Background(), domain.Class{Name: "5A", Capacity: 30}); err == nil {
		t.Fatalf("expected duplicate class to fail")
	}

	if got := testutil.ToFloat64(recorder.operations.WithLabelValues(opCreateClass, "success")); got != 1 {
		t.Fatalf("expected one successful create_class, got %v", got)
	}
	if got := testutil.ToFloat64(recorder.operations.WithLabelValues(opCreateClass, "error")); got != 1 {
		t.Fatalf("expected one failed create_class, got %v", got)
	}
	if n := testutil.CollectAndCount(recorder.latency); n != 2 {
		t.Fatalf("expected two latency series, got %d", n)
	}
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

type fakeOTelTracer struct {
	embedded.Tracer
	spans []*fakeOTelSpan
}

func (f *fakeOTelTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	span := &fakeOTelSpan{name: name, attrs: cfg.Attributes()}
	f.spans = append(f.spans, span)
	return ctx, span
}

type fakeOTelSpan struct {
	trace.Span
	name     string
	attrs    []attribute.KeyValue
	code     codes.Code
	recorded int
	ended    bool
}

func (s *fakeOTelSpan) RecordError(error, ...trace.EventOption) { s.recorded++ }
func (s *fakeOTelSpan) SetStatus(code codes.Code, _ string)    { s.code = code }
func (s *fakeOTelSpan) End(...trace.SpanEndOption)              { s.ended = true }

func TestOTelTracerRecordsStatus(t *testing.T) {
	fake := &fakeOTelTracer{}
	svc := newTestService(t, WithTracer(NewOTelTracer(fake)))
	mustClass(t, svc, "5A", 30)
	if _, err := svc.DeleteClass(context.Background(), "missing"); err == nil {
		t.Fatalf("expected delete of missing class to fail")
	}

	if len(fake.spans) != 2 {
		t.Fatalf("expected two spans, got %d", len(fake.spans))
	}
	ok, failed := fake.spans[0], fake.spans[1]
	if ok.name != opCreateClass || ok.code != codes.Ok || ok.recorded != 0 || !ok.ended {
		t.Fatalf("unexpected success span %+v", ok)
	}
	if failed.name != opDeleteClass || failed.code != codes.Error || failed.recorded != 1 || !failed.ended {
		t.Fatalf("unexpected failed span %+v", failed)
	}
	if len(ok.attrs) != 1 || ok.attrs[0].Key != "recordcore.operation" || ok.attrs[0].Value.AsString() != opCreateClass {
		t.Fatalf("unexpected attributes %v", ok.attrs)
	}
	if NewOTelTracer(nil).tracer == nil {
		t.Fatalf("expected global tracer fallback")
	}
}

func TestLogAuditRecorder(t *testing.T) {
	logger := &captureLogger{}
	svc := newTestService(t, WithAuditRecorder(NewLogAuditRecorder(logger)))
	mustClass(t, svc, "5A", 30)
	if logger.count("INFO audit") != 1 {
		t.Fatalf("expected one audit line, got %v", logger.lines)
	}
	NewLogAuditRecorder(nil).Record(context.Background(), AuditEntry{Operation: "noop"})
}
