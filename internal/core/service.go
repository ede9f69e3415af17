// Package core implements the record and query services of the school and
// clinic engines on top of a domain.PersistentStore.
package core

import (
	"context"
	"time"

	"recordcore/internal/infra/persistence/memory"
	"recordcore/pkg/domain"
)

// Service exposes transactional record operations and report queries.
type Service struct {
	store          domain.PersistentStore
	now            ClockFunc
	logger         Logger
	audit          AuditRecorder
	metrics        MetricsRecorder
	tracer         Tracer
	stockThreshold int
	hashPasswords  bool
	sheets         SpreadsheetWriter
	documents      DocumentWriter
	archive        Archiver
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for service records and stock
// movements.
func WithClock(clock ClockFunc) Option {
	return func(s *Service) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithLogger installs a structured logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuditRecorder installs an audit sink for mutating operations.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.audit = recorder
		}
	}
}

// WithMetricsRecorder installs an operation metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer installs a span factory.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithStockWarningThreshold sets the default threshold used by LowStock.
// Advisories on writes come from the rule registered with the same value.
func WithStockWarningThreshold(threshold int) Option {
	return func(s *Service) { s.stockThreshold = threshold }
}

// WithPasswordHashing stores new vet passwords as bcrypt hashes.
func WithPasswordHashing(enabled bool) Option {
	return func(s *Service) { s.hashPasswords = enabled }
}

// WithSpreadsheetWriter installs the collaborator used by ExportTable.
func WithSpreadsheetWriter(w SpreadsheetWriter) Option {
	return func(s *Service) { s.sheets = w }
}

// WithDocumentWriter installs the collaborator used by RenderServiceRecord.
func WithDocumentWriter(w DocumentWriter) Option {
	return func(s *Service) { s.documents = w }
}

// WithArchiver uploads every exported file after it is written.
func WithArchiver(a Archiver) Option {
	return func(s *Service) { s.archive = a }
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	svc := &Service{
		store:   store,
		logger:  noopLogger{},
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
	}
	if clocked, ok := store.(interface{ NowFunc() func() time.Time }); ok {
		if fn := clocked.NowFunc(); fn != nil {
			svc.now = fn
		}
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// NewInMemoryService creates a service over a fresh in-memory store. The
// service clock, when supplied, also stamps stored documents.
func NewInMemoryService(engine *domain.RulesEngine, opts ...Option) *Service {
	draft := &Service{}
	for _, opt := range opts {
		opt(draft)
	}
	var storeOpts []memory.Option
	if draft.now != nil {
		storeOpts = append(storeOpts, memory.WithClock(draft.now))
	}
	return NewService(memory.NewStore(engine, storeOpts...), opts...)
}

// Store returns the underlying persistence gateway.
func (s *Service) Store() domain.PersistentStore { return s.store }

// Close releases the store.
func (s *Service) Close() error { return s.store.Close() }

// run executes fn in a store transaction with tracing, metrics, logging and
// audit. fn returns the id of the primary entity it touched.
func (s *Service) run(ctx context.Context, op string, fn func(domain.Transaction) (string, error)) (domain.Result, error) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	var entityID string
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		id, err := fn(tx)
		entityID = id
		return err
	})
	duration := time.Since(started)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "entity_id", entityID, "duration", duration, "error", err)
		s.recordAuditFailure(ctx, op, entityID, duration, err)
		return res, err
	}
	for _, w := range res.Warnings() {
		s.logger.Warn("advisory", "operation", op, "rule", w.Rule, "entity_id", w.EntityID, "message", w.Message)
	}
	s.logger.Debug("operation completed", "operation", op, "entity_id", entityID, "duration", duration)
	s.recordAuditSuccess(ctx, op, entityID, duration)
	return res, nil
}

// view executes fn against a read-only snapshot with tracing and metrics.
func (s *Service) view(ctx context.Context, op string, fn func(domain.TransactionView) error) error {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	err := s.store.View(ctx, fn)
	duration := time.Since(started)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	if err != nil {
		s.logger.Error("query failed", "operation", op, "duration", duration, "error", err)
		return err
	}
	s.logger.Debug("query completed", "operation", op, "duration", duration)
	return nil
}

// observe wraps work that does not touch the store.
func (s *Service) observe(ctx context.Context, op string, fn func(context.Context) error) error {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	err := fn(ctx)
	duration := time.Since(started)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "duration", duration, "error", err)
		return err
	}
	s.logger.Debug("operation completed", "operation", op, "duration", duration)
	return nil
}

func (s *Service) recordAuditSuccess(ctx context.Context, op, entityID string, duration time.Duration) {
	meta, ok := operationMeta[op]
	if !ok {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.now(),
	})
}

func (s *Service) recordAuditFailure(ctx context.Context, op, entityID string, duration time.Duration, err error) {
	meta, ok := operationMeta[op]
	if !ok {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Status:    AuditStatusError,
		Error:     err.Error(),
		Duration:  duration,
		Timestamp: s.now(),
	})
}
