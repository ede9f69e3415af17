package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Op is a selector comparison operator.
type Op string

const (
	OpEq        Op = "eq"
	OpContains  Op = "contains"
	OpDateRange Op = "date_range"
)

// Condition tests a single document field. Field names are the JSON names of
// the entity; a dot descends into embedded objects.
type Condition struct {
	Field string
	Op    Op
	Value any
	From  time.Time
	To    time.Time
}

// Eq matches documents whose field equals value.
func Eq(field string, value any) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

// Contains matches documents whose field contains substr, ignoring case.
func Contains(field, substr string) Condition {
	return Condition{Field: field, Op: OpContains, Value: substr}
}

// DateRange matches documents whose date or timestamp field falls in the
// inclusive range [from, to]. A zero bound is open.
func DateRange(field string, from, to time.Time) Condition {
	return Condition{Field: field, Op: OpDateRange, From: from, To: to}
}

// Selector is a conjunction of conditions. The zero value matches everything.
type Selector struct {
	Conditions []Condition
}

// Where builds a selector from conditions.
func Where(conds ...Condition) Selector {
	return Selector{Conditions: append([]Condition(nil), conds...)}
}

// And returns a copy of s with c appended.
func (s Selector) And(c Condition) Selector {
	out := Selector{Conditions: make([]Condition, 0, len(s.Conditions)+1)}
	out.Conditions = append(out.Conditions, s.Conditions...)
	out.Conditions = append(out.Conditions, c)
	return out
}

// String renders the selector for error messages.
func (s Selector) String() string {
	if s.Empty() {
		return "{}"
	}
	parts := make([]string, 0, len(s.Conditions))
	for _, c := range s.Conditions {
		switch c.Op {
		case OpDateRange:
			parts = append(parts, fmt.Sprintf("%s in [%s, %s]", c.Field, c.From.Format(time.DateOnly), c.To.Format(time.DateOnly)))
		default:
			parts = append(parts, fmt.Sprintf("%s %s %q", c.Field, c.Op, normalize(c.Value)))
		}
	}
	return "{" + strings.Join(parts, " and ") + "}"
}

// Empty reports whether the selector has no conditions.
func (s Selector) Empty() bool { return len(s.Conditions) == 0 }

// Matches evaluates the selector against a document.
func (s Selector) Matches(doc any) (bool, error) {
	if s.Empty() {
		return true, nil
	}
	fields, err := ToFields(doc)
	if err != nil {
		return false, err
	}
	return s.MatchesFields(fields)
}

// MatchesFields evaluates the selector against a decoded field map.
func (s Selector) MatchesFields(fields map[string]any) (bool, error) {
	for _, c := range s.Conditions {
		raw, ok := lookupField(fields, c.Field)
		switch c.Op {
		case OpEq:
			if !ok {
				if normalize(c.Value) != "" {
					return false, nil
				}
				continue
			}
			if normalize(raw) != normalize(c.Value) {
				return false, nil
			}
		case OpContains:
			if !ok {
				return false, nil
			}
			if !ContainsFold(normalize(raw), normalize(c.Value)) {
				return false, nil
			}
		case OpDateRange:
			if !ok {
				return false, nil
			}
			ts, err := ParseDate(normalize(raw))
			if err != nil {
				return false, nil
			}
			if !c.From.IsZero() && ts.Before(c.From) {
				return false, nil
			}
			if !c.To.IsZero() && ts.After(c.To) {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unknown selector operator %q", c.Op)
		}
	}
	return true, nil
}

// Sort orders query results by a document field.
type Sort struct {
	Field      string
	Descending bool
}

// Less compares two decoded documents by the sort field. Numbers compare
// numerically; everything else compares as folded text.
func (s Sort) Less(a, b map[string]any) bool {
	av, _ := lookupField(a, s.Field)
	bv, _ := lookupField(b, s.Field)
	var less, greater bool
	af, aNum := av.(float64)
	bf, bNum := bv.(float64)
	if aNum && bNum {
		less, greater = af < bf, af > bf
	} else {
		as, bs := fold(normalize(av)), fold(normalize(bv))
		less, greater = as < bs, as > bs
	}
	if s.Descending {
		return greater
	}
	return less
}

// ToFields decodes a document into its JSON field map.
func ToFields(doc any) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return fields, nil
}

// ContainsFold reports whether substr is within s under Unicode case folding.
func ContainsFold(s, substr string) bool {
	return strings.Contains(fold(s), fold(substr))
}

// ParseDate accepts an ISO date (2006-01-02) or an RFC 3339 timestamp.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, value)
}

func fold(s string) string {
	return cases.Fold().String(s)
}

func lookupField(fields map[string]any, path string) (any, bool) {
	var cur any = fields
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func normalize(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
