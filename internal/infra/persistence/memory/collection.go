package memory

import (
	"errors"
	"fmt"
	"sort"

	"recordcore/pkg/domain"
)

var errReadOnly = errors.New("memory: collection is read-only outside a transaction")

// document is satisfied by a pointer to any entity embedding domain.Base.
type document[T any] interface {
	*T
	Meta() *domain.Base
}

// collection implements domain.Collection over one state map. A nil tx makes
// it a read-only view.
type collection[T any, PT document[T]] struct {
	entity domain.EntityType
	rows   map[string]T
	clone  func(T) T
	tx     *transaction
}

func newCollection[T any, PT document[T]](entity domain.EntityType, rows map[string]T, cloneFn func(T) T, tx *transaction) collection[T, PT] {
	return collection[T, PT]{entity: entity, rows: rows, clone: cloneFn, tx: tx}
}

func (c collection[T, PT]) FindByID(id string) (T, error) {
	row, ok := c.rows[id]
	if !ok {
		var zero T
		return zero, domain.NotFoundError{Entity: c.entity, ID: id}
	}
	return c.clone(row), nil
}

func (c collection[T, PT]) FindOne(sel domain.Selector) (T, error) {
	var zero T
	for _, id := range sortedKeys(c.rows) {
		ok, err := c.match(c.rows[id], sel)
		if err != nil {
			return zero, err
		}
		if ok {
			return c.clone(c.rows[id]), nil
		}
	}
	return zero, domain.NotFoundError{Entity: c.entity, ID: sel.String()}
}

func (c collection[T, PT]) Find(sel domain.Selector, sorts ...domain.Sort) ([]T, error) {
	type hit struct {
		doc    T
		fields map[string]any
	}
	hits := make([]hit, 0, len(c.rows))
	for _, id := range sortedKeys(c.rows) {
		row := c.rows[id]
		if sel.Empty() && len(sorts) == 0 {
			hits = append(hits, hit{doc: row})
			continue
		}
		fields, err := domain.ToFields(row)
		if err != nil {
			return nil, domain.StoreError{Op: "decode " + string(c.entity), Err: err}
		}
		ok, err := sel.MatchesFields(fields)
		if err != nil {
			return nil, domain.InvalidInputError{Field: "selector", Reason: err.Error()}
		}
		if ok {
			hits = append(hits, hit{doc: row, fields: fields})
		}
	}
	if len(sorts) > 0 {
		sort.SliceStable(hits, func(i, j int) bool {
			for _, s := range sorts {
				if s.Less(hits[i].fields, hits[j].fields) {
					return true
				}
				if s.Less(hits[j].fields, hits[i].fields) {
					return false
				}
			}
			return false
		})
	}
	out := make([]T, 0, len(hits))
	for _, h := range hits {
		out = append(out, c.clone(h.doc))
	}
	return out, nil
}

func (c collection[T, PT]) Count(sel domain.Selector) (int, error) {
	if sel.Empty() {
		return len(c.rows), nil
	}
	n := 0
	for _, row := range c.rows {
		ok, err := c.match(row, sel)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (c collection[T, PT]) Insert(doc T) (T, error) {
	var zero T
	if c.tx == nil {
		return zero, errReadOnly
	}
	meta := PT(&doc).Meta()
	if meta.ID == "" {
		meta.ID = c.tx.store.newID()
	}
	if _, exists := c.rows[meta.ID]; exists {
		return zero, domain.IntegrityError{Entity: c.entity, Reason: fmt.Sprintf("id %q already exists", meta.ID)}
	}
	meta.CreatedAt = c.tx.now
	meta.UpdatedAt = c.tx.now
	c.rows[meta.ID] = c.clone(doc)
	c.tx.recordChange(domain.Change{Entity: c.entity, Action: domain.ActionCreate, ID: meta.ID, After: c.clone(doc)})
	return c.clone(doc), nil
}

func (c collection[T, PT]) Update(id string, mutator func(*T) error) (T, error) {
	var zero T
	if c.tx == nil {
		return zero, errReadOnly
	}
	current, ok := c.rows[id]
	if !ok {
		return zero, domain.NotFoundError{Entity: c.entity, ID: id}
	}
	before := c.clone(current)
	next := c.clone(current)
	if err := mutator(&next); err != nil {
		return zero, err
	}
	meta := PT(&next).Meta()
	meta.ID = id
	meta.CreatedAt = PT(&before).Meta().CreatedAt
	meta.UpdatedAt = c.tx.now
	c.rows[id] = c.clone(next)
	c.tx.recordChange(domain.Change{Entity: c.entity, Action: domain.ActionUpdate, ID: id, Before: before, After: c.clone(next)})
	return c.clone(next), nil
}

func (c collection[T, PT]) Delete(id string) error {
	if c.tx == nil {
		return errReadOnly
	}
	current, ok := c.rows[id]
	if !ok {
		return domain.NotFoundError{Entity: c.entity, ID: id}
	}
	delete(c.rows, id)
	c.tx.recordChange(domain.Change{Entity: c.entity, Action: domain.ActionDelete, ID: id, Before: c.clone(current)})
	return nil
}

func (c collection[T, PT]) match(row T, sel domain.Selector) (bool, error) {
	ok, err := sel.Matches(row)
	if err != nil {
		return false, domain.InvalidInputError{Field: "selector", Reason: err.Error()}
	}
	return ok, nil
}
