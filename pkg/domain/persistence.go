package domain

import "context"

// Reader is read-only access to one collection.
type Reader[T any] interface {
	// FindByID returns the document or a NotFoundError.
	FindByID(id string) (T, error)
	// FindOne returns the first document matching sel in id order, or a NotFoundError.
	FindOne(sel Selector) (T, error)
	// Find returns every document matching sel, ordered by the sort keys (id
	// order when none are given).
	Find(sel Selector, sort ...Sort) ([]T, error)
	// Count returns the number of documents matching sel.
	Count(sel Selector) (int, error)
}

// Collection is read-write access to one collection inside a transaction.
type Collection[T any] interface {
	Reader[T]
	// Insert stores a new document, assigning an id when empty.
	Insert(doc T) (T, error)
	// Update applies mutator to the stored document. The id cannot change.
	Update(id string, mutator func(*T) error) (T, error)
	// Delete removes the document or returns a NotFoundError.
	Delete(id string) error
}

// TransactionView provides read-only access to a consistent snapshot. Rules
// evaluate against it.
type TransactionView interface {
	Students() Reader[Student]
	Teachers() Reader[Teacher]
	Classes() Reader[Class]
	AcademicRecords() Reader[AcademicRecord]
	Absences() Reader[AbsenceRecord]
	Products() Reader[Product]
	StockTransactions() Reader[StockTransaction]
	Appointments() Reader[Appointment]
	Animals() Reader[Animal]
	Owners() Reader[Owner]
	Vets() Reader[Vet]
}

// Transaction exposes every collection within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	Students() Collection[Student]
	Teachers() Collection[Teacher]
	Classes() Collection[Class]
	AcademicRecords() Collection[AcademicRecord]
	Absences() Collection[AbsenceRecord]
	Products() Collection[Product]
	StockTransactions() Collection[StockTransaction]
	Appointments() Collection[Appointment]
	Animals() Collection[Animal]
	Owners() Collection[Owner]
	Vets() Collection[Vet]
}

// PersistentStore is the persistence gateway implemented by every backend.
type PersistentStore interface {
	// RunInTransaction applies fn atomically. Rules run before commit; a
	// blocking result discards every change and returns RuleViolationError.
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	// View executes fn against a read-only snapshot.
	View(ctx context.Context, fn func(TransactionView) error) error
	// Close releases the backend handle.
	Close() error
}
