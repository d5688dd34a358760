package allocation

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Counter purposes.
const (
	PurposeEnrollment = "enrollment_id"
	PurposeConcession = "concession_id"
)

// DefaultEnrollmentPrefix starts every enrollment id.
const DefaultEnrollmentPrefix = "VU"

// Scope identifies one counter.  Enrollment counters are scoped per
// branch, concession batch counters per purpose and year.
type Scope struct {
	Purpose  string
	BranchID uint64
	Year     int
}

// EnrollmentScope returns the counter scope for enrollment ids of a branch.
func EnrollmentScope(branchID uint64) Scope {
	return Scope{Purpose: PurposeEnrollment, BranchID: branchID}
}

// ConcessionBatchScope returns the counter scope for concession batch ids
// issued in year.
func ConcessionBatchScope(year int) Scope {
	return Scope{Purpose: PurposeConcession, Year: year}
}

// Key is the storage key of the scope, e.g. "enrollment_id:branch=7" or
// "concession_id:year=2024".
func (s Scope) Key() string {
	if s.Purpose == PurposeEnrollment {
		return fmt.Sprintf("%s:branch=%d", s.Purpose, s.BranchID)
	}
	return fmt.Sprintf("%s:year=%d", s.Purpose, s.Year)
}

// Sequence is a value issued by a counter together with the counter's
// formatting settings.
type Sequence struct {
	Value  int64
	Prefix string
	Width  int
}

// AtomicCounter issues counter values.  Next must increment and return
// the new value in one atomic step; it returns ErrNotFound for unknown
// scopes and ErrSequenceExhausted once the upper bound is reached.
type AtomicCounter interface {
	Next(ctx context.Context, scope Scope) (Sequence, error)
}

// UpperBound returns the largest value a counter may issue.  An explicit
// max wins; otherwise the bound is the largest number that fits in width
// digits.  Zero means unbounded.
func UpperBound(maxValue int64, width int) int64 {
	if maxValue > 0 {
		return maxValue
	}
	if width <= 0 || width >= 19 {
		return 0
	}
	return int64(math.Pow10(width)) - 1
}

func zeroPad(v int64, width int) string {
	s := strconv.FormatInt(v, 10)
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// FormatEnrollmentID renders an enrollment id such as VU2024CSE-0007.
func FormatEnrollmentID(seq Sequence, year int, branchCode string) string {
	prefix := seq.Prefix
	if prefix == "" {
		prefix = DefaultEnrollmentPrefix
	}
	width := seq.Width
	if width <= 0 {
		width = 4
	}
	return prefix + strconv.Itoa(year) + branchCode + "-" + zeroPad(seq.Value, width)
}

// FormatConcessionBatchID renders a concession batch id: the counter
// prefix followed by the issued value, zero padded when the counter has a
// width.
func FormatConcessionBatchID(seq Sequence) string {
	return seq.Prefix + zeroPad(seq.Value, seq.Width)
}
