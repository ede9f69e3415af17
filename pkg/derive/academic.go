// Package derive holds the pure derivation rules of the record engines:
// academic standing from grades and absences, service totals from line items,
// and stock draw-down from consumed products.
package derive

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"recordcore/pkg/domain"
)

// Academic thresholds.
const (
	AbsenceLimit   = 10
	ApprovalGrade  = 7.0
	RecoveryGrade  = 5.0
	MinGrade       = 0.0
	MaxGrade       = 10.0
	displayDecimal = 2
)

// AcademicStatus computes the average and status from the graded entries and
// the total absence count. Comparisons use the unrounded mean.
func AcademicStatus(entries []float64, totalAbsences int) (float64, domain.AcademicStatus) {
	avg := Mean(entries)
	switch {
	case totalAbsences >= AbsenceLimit:
		return avg, domain.StatusFailedByAbsence
	case len(entries) == 0:
		return 0, domain.StatusNoGrades
	case avg >= ApprovalGrade:
		return avg, domain.StatusApproved
	case avg >= RecoveryGrade:
		return avg, domain.StatusRecovery
	default:
		return avg, domain.StatusFailed
	}
}

// EffectiveStatus re-derives a stored record's status against the current
// absence total. Stored statuses go stale when absences change after a save.
func EffectiveStatus(record domain.AcademicRecord, totalAbsences int) (float64, domain.AcademicStatus) {
	return AcademicStatus(record.Entries(), totalAbsences)
}

// Mean is the arithmetic mean, 0 for no entries.
func Mean(entries []float64) float64 {
	if len(entries) == 0 {
		return 0
	}
	var sum float64
	for _, e := range entries {
		sum += e
	}
	return sum / float64(len(entries))
}

// ParseGrade parses a raw bimester entry. Empty input means not graded and
// yields nil. A comma is accepted as the decimal separator.
func ParseGrade(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("grade %q is not a number", raw)
	}
	if v < MinGrade || v > MaxGrade {
		return nil, fmt.Errorf("grade %s outside %g..%g", raw, MinGrade, MaxGrade)
	}
	return &v, nil
}

// FormatGrade renders a bimester for display; nil renders as the empty string
// so that ungraded entries round-trip unchanged.
func FormatGrade(g *float64) string {
	if g == nil {
		return ""
	}
	return strconv.FormatFloat(*g, 'f', displayDecimal, 64)
}

// FormatAverage renders an average with two decimals.
func FormatAverage(avg float64) string {
	return strconv.FormatFloat(avg, 'f', displayDecimal, 64)
}
