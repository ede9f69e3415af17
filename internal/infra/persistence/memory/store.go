// Package memory provides an in-memory implementation of the record store used
// for tests and ephemeral environments. The durable backends wrap it and
// persist each committed transaction.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"recordcore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)

// CommitHook runs after rules pass and before the new state becomes visible.
// An error discards the transaction. next is a detached copy of the state the
// commit would install.
type CommitHook func(ctx context.Context, changes []domain.Change, next Snapshot) error

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source used for CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithIDGenerator overrides document id generation.
func WithIDGenerator(next func() string) Option {
	return func(s *Store) {
		if next != nil {
			s.idFn = next
		}
	}
}

// WithCommitHook installs a hook invoked for every transaction with changes.
func WithCommitHook(hook CommitHook) Option {
	return func(s *Store) { s.onCommit = hook }
}

// Store provides an in-memory transactional store for the record domain.
type Store struct {
	mu       sync.RWMutex
	state    memoryState
	engine   *domain.RulesEngine
	nowFn    func() time.Time
	idFn     func() string
	onCommit CommitHook
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *domain.RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
		idFn:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) newID() string { return s.idFn() }

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the configured engine.
func (s *Store) RulesEngine() *domain.RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	if err := ctx.Err(); err != nil {
		return domain.Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, newTransactionView(&tx.state), tx.changes)
		if err != nil {
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if s.onCommit != nil && len(tx.changes) > 0 {
		if err := s.onCommit(ctx, tx.changes, snapshotFromMemoryState(tx.state)); err != nil {
			return result, domain.StoreError{Op: "commit", Err: err}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(newTransactionView(&snapshot))
}

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

type transaction struct {
	store   *Store
	state   memoryState
	changes []domain.Change
	now     time.Time
}

func (tx *transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() domain.TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) Students() domain.Collection[domain.Student] {
	return newCollection[domain.Student, *domain.Student](domain.EntityStudent, tx.state.students, same[domain.Student], tx)
}

func (tx *transaction) Teachers() domain.Collection[domain.Teacher] {
	return newCollection[domain.Teacher, *domain.Teacher](domain.EntityTeacher, tx.state.teachers, same[domain.Teacher], tx)
}

func (tx *transaction) Classes() domain.Collection[domain.Class] {
	return newCollection[domain.Class, *domain.Class](domain.EntityClass, tx.state.classes, same[domain.Class], tx)
}

func (tx *transaction) AcademicRecords() domain.Collection[domain.AcademicRecord] {
	return newCollection[domain.AcademicRecord, *domain.AcademicRecord](domain.EntityAcademicRecord, tx.state.grades, cloneAcademicRecord, tx)
}

func (tx *transaction) Absences() domain.Collection[domain.AbsenceRecord] {
	return newCollection[domain.AbsenceRecord, *domain.AbsenceRecord](domain.EntityAbsence, tx.state.absences, same[domain.AbsenceRecord], tx)
}

func (tx *transaction) Products() domain.Collection[domain.Product] {
	return newCollection[domain.Product, *domain.Product](domain.EntityProduct, tx.state.products, cloneProduct, tx)
}

func (tx *transaction) StockTransactions() domain.Collection[domain.StockTransaction] {
	return newCollection[domain.StockTransaction, *domain.StockTransaction](domain.EntityStockTransaction, tx.state.stockTransactions, same[domain.StockTransaction], tx)
}

func (tx *transaction) Appointments() domain.Collection[domain.Appointment] {
	return newCollection[domain.Appointment, *domain.Appointment](domain.EntityAppointment, tx.state.appointments, cloneAppointment, tx)
}

func (tx *transaction) Animals() domain.Collection[domain.Animal] {
	return newCollection[domain.Animal, *domain.Animal](domain.EntityAnimal, tx.state.animals, cloneAnimal, tx)
}

func (tx *transaction) Owners() domain.Collection[domain.Owner] {
	return newCollection[domain.Owner, *domain.Owner](domain.EntityOwner, tx.state.owners, same[domain.Owner], tx)
}

func (tx *transaction) Vets() domain.Collection[domain.Vet] {
	return newCollection[domain.Vet, *domain.Vet](domain.EntityVet, tx.state.vets, same[domain.Vet], tx)
}

// transactionView exposes a read-only snapshot to rules and queries.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) domain.TransactionView {
	return transactionView{state: state}
}

func (v transactionView) Students() domain.Reader[domain.Student] {
	return newCollection[domain.Student, *domain.Student](domain.EntityStudent, v.state.students, same[domain.Student], nil)
}

func (v transactionView) Teachers() domain.Reader[domain.Teacher] {
	return newCollection[domain.Teacher, *domain.Teacher](domain.EntityTeacher, v.state.teachers, same[domain.Teacher], nil)
}

func (v transactionView) Classes() domain.Reader[domain.Class] {
	return newCollection[domain.Class, *domain.Class](domain.EntityClass, v.state.classes, same[domain.Class], nil)
}

func (v transactionView) AcademicRecords() domain.Reader[domain.AcademicRecord] {
	return newCollection[domain.AcademicRecord, *domain.AcademicRecord](domain.EntityAcademicRecord, v.state.grades, cloneAcademicRecord, nil)
}

func (v transactionView) Absences() domain.Reader[domain.AbsenceRecord] {
	return newCollection[domain.AbsenceRecord, *domain.AbsenceRecord](domain.EntityAbsence, v.state.absences, same[domain.AbsenceRecord], nil)
}

func (v transactionView) Products() domain.Reader[domain.Product] {
	return newCollection[domain.Product, *domain.Product](domain.EntityProduct, v.state.products, cloneProduct, nil)
}

func (v transactionView) StockTransactions() domain.Reader[domain.StockTransaction] {
	return newCollection[domain.StockTransaction, *domain.StockTransaction](domain.EntityStockTransaction, v.state.stockTransactions, same[domain.StockTransaction], nil)
}

func (v transactionView) Appointments() domain.Reader[domain.Appointment] {
	return newCollection[domain.Appointment, *domain.Appointment](domain.EntityAppointment, v.state.appointments, cloneAppointment, nil)
}

func (v transactionView) Animals() domain.Reader[domain.Animal] {
	return newCollection[domain.Animal, *domain.Animal](domain.EntityAnimal, v.state.animals, cloneAnimal, nil)
}

func (v transactionView) Owners() domain.Reader[domain.Owner] {
	return newCollection[domain.Owner, *domain.Owner](domain.EntityOwner, v.state.owners, same[domain.Owner], nil)
}

func (v transactionView) Vets() domain.Reader[domain.Vet] {
	return newCollection[domain.Vet, *domain.Vet](domain.EntityVet, v.state.vets, same[domain.Vet], nil)
}
