package core

import (
	"context"
	"errors"
	"fmt"

	"recordcore/pkg/derive"
	"recordcore/pkg/domain"
)

const (
	uniquenessRuleName     = "uniqueness"
	classCapacityRuleName  = "class_capacity"
	classReferenceRuleName = "class_reference"
	stockThresholdRuleName = "stock_threshold"
)

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
// stockThreshold is the quantity below which product writes produce an
// advisory; 0 warns on negative stock only.
func NewDefaultRulesEngine(stockThreshold int) *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewUniquenessRule())
	engine.Register(NewClassCapacityRule())
	engine.Register(NewClassReferenceRule())
	engine.Register(NewStockThresholdRule(stockThreshold))
	return engine
}

// NewUniquenessRule blocks duplicate enrollment ids, teacher tax ids, class
// names, product names and academic records per (student, subject).
func NewUniquenessRule() domain.Rule { return uniquenessRule{} }

type uniquenessRule struct{}

func (uniquenessRule) Name() string { return uniquenessRuleName }

func (uniquenessRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	seen := make(map[string]bool)
	for _, change := range changes {
		if change.Action == domain.ActionDelete {
			continue
		}
		var (
			count int
			err   error
			key   string
		)
		switch doc := change.After.(type) {
		case domain.Student:
			key = "enrollment id " + doc.EnrollmentID
			count, err = view.Students().Count(domain.Where(domain.Eq("enrollment_id", doc.EnrollmentID)))
		case domain.Teacher:
			key = "teacher tax id " + doc.TaxID
			count, err = view.Teachers().Count(domain.Where(domain.Eq("tax_id", doc.TaxID)))
		case domain.Class:
			key = "class name " + doc.Name
			count, err = view.Classes().Count(domain.Where(domain.Eq("name", doc.Name)))
		case domain.Product:
			key = "product name " + doc.Name
			count, err = countProductsNamed(view, doc.Name)
		case domain.AcademicRecord:
			key = fmt.Sprintf("academic record for student %s in %s", doc.StudentID, doc.Subject)
			count, err = view.AcademicRecords().Count(domain.Where(
				domain.Eq("student_id", doc.StudentID),
				domain.Eq("subject", doc.Subject),
			))
		default:
			continue
		}
		if err != nil {
			return domain.Result{}, err
		}
		if count <= 1 || seen[key] {
			continue
		}
		seen[key] = true
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     uniquenessRuleName,
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("duplicate %s (%d documents)", key, count),
			Entity:   change.Entity,
			EntityID: change.ID,
		})
	}
	return res, nil
}

func countProductsNamed(view domain.TransactionView, name string) (int, error) {
	products, err := view.Products().Find(domain.Selector{})
	if err != nil {
		return 0, err
	}
	var n int
	for _, p := range products {
		if derive.SameProduct(p.Name, name) {
			n++
		}
	}
	return n, nil
}

// NewClassCapacityRule blocks enrollments that push a class over capacity and
// capacity reductions below the current enrollment.
func NewClassCapacityRule() domain.Rule { return classCapacityRule{} }

type classCapacityRule struct{}

func (classCapacityRule) Name() string { return classCapacityRuleName }

func (classCapacityRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	touched := make(map[string]bool)
	var order []string
	mark := func(name string) {
		if name == "" || touched[name] {
			return
		}
		touched[name] = true
		order = append(order, name)
	}
	for _, change := range changes {
		switch change.Entity {
		case domain.EntityStudent:
			after, ok := change.After.(domain.Student)
			if !ok {
				continue
			}
			if before, ok := change.Before.(domain.Student); ok && before.ClassName == after.ClassName {
				continue
			}
			mark(after.ClassName)
		case domain.EntityClass:
			if after, ok := change.After.(domain.Class); ok {
				mark(after.Name)
			}
		}
	}

	var res domain.Result
	for _, name := range order {
		class, err := view.Classes().FindOne(domain.Where(domain.Eq("name", name)))
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return domain.Result{}, err
		}
		enrolled, err := view.Students().Count(domain.Where(domain.Eq("class_name", name)))
		if err != nil {
			return domain.Result{}, err
		}
		if enrolled > class.Capacity {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     classCapacityRuleName,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("class %s over capacity: %d/%d students", class.Name, enrolled, class.Capacity),
				Entity:   domain.EntityClass,
				EntityID: class.ID,
			})
		}
	}
	return res, nil
}

// NewClassReferenceRule blocks deleting or renaming a class that students
// still reference by name.
func NewClassReferenceRule() domain.Rule { return classReferenceRule{} }

type classReferenceRule struct{}

func (classReferenceRule) Name() string { return classReferenceRuleName }

func (classReferenceRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, change := range changes {
		if change.Entity != domain.EntityClass {
			continue
		}
		before, ok := change.Before.(domain.Class)
		if !ok {
			continue
		}
		if after, ok := change.After.(domain.Class); ok && after.Name == before.Name {
			continue
		}
		if others, err := view.Classes().Count(domain.Where(domain.Eq("name", before.Name))); err != nil {
			return domain.Result{}, err
		} else if others > 0 {
			continue
		}
		refs, err := view.Students().Count(domain.Where(domain.Eq("class_name", before.Name)))
		if err != nil {
			return domain.Result{}, err
		}
		if refs > 0 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     classReferenceRuleName,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("class %s is still referenced by %d students", before.Name, refs),
				Entity:   domain.EntityClass,
				EntityID: change.ID,
			})
		}
	}
	return res, nil
}

// NewStockThresholdRule warns when a product write leaves its quantity below
// threshold. The write is committed regardless.
func NewStockThresholdRule(threshold int) domain.Rule {
	return stockThresholdRule{threshold: threshold}
}

type stockThresholdRule struct {
	threshold int
}

func (stockThresholdRule) Name() string { return stockThresholdRuleName }

func (r stockThresholdRule) Evaluate(_ context.Context, _ domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	last := make(map[string]int)
	for i, change := range changes {
		if change.Entity == domain.EntityProduct {
			last[change.ID] = i
		}
	}
	var res domain.Result
	for i, change := range changes {
		after, ok := change.After.(domain.Product)
		if !ok || last[change.ID] != i {
			continue
		}
		if before, ok := change.Before.(domain.Product); ok && before.Quantity == after.Quantity {
			continue
		}
		msg, warn := derive.StockWarning(after.Name, after.Quantity, r.threshold)
		if !warn {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     stockThresholdRuleName,
			Severity: domain.SeverityWarn,
			Message:  msg,
			Entity:   domain.EntityProduct,
			EntityID: change.ID,
		})
	}
	return res, nil
}
