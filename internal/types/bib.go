package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	MinBibNumber = 1
	MaxBibNumber = 9999
)

// BibNumber is an athlete's start number. Being a defined int type, it compares
// with untyped integer constants directly (BibNumber(7) == 7); Equal and
// Compare extend that to values of other static types.
type BibNumber int

// ParseBibNumber coerces integer kinds and decimal strings, then range-checks.
func ParseBibNumber(v any) (BibNumber, error) {
	n, err := ParseInt(v)
	if err != nil {
		return 0, err
	}
	if n < MinBibNumber || n > MaxBibNumber {
		return 0, newError(OutOfRange, v, "must be between %d and %d", MinBibNumber, MaxBibNumber)
	}
	return BibNumber(n), nil
}

func (b BibNumber) Valid() bool {
	return b >= MinBibNumber && b <= MaxBibNumber
}

func (b BibNumber) Int() int { return int(b) }

func (b BibNumber) String() string { return strconv.Itoa(int(b)) }

// Padded renders b left-padded with zeros to width digits.
func (b BibNumber) Padded(width int) string {
	if width <= 0 {
		return b.String()
	}
	return fmt.Sprintf("%0*d", width, int(b))
}

// Equal reports whether other denotes the same bib number. Unrelated types are
// simply not equal.
func (b BibNumber) Equal(other any) bool {
	n, ok := bibOperand(other)
	return ok && n == int64(b)
}

// Compare returns -1, 0 or 1 and ok=false when other is not orderable against b.
func (b BibNumber) Compare(other any) (int, bool) {
	n, ok := bibOperand(other)
	if !ok {
		return 0, false
	}
	switch {
	case int64(b) < n:
		return -1, true
	case int64(b) > n:
		return 1, true
	default:
		return 0, true
	}
}

// Less reports b < other; it is false for non-orderable operands.
func (b BibNumber) Less(other any) bool {
	c, ok := b.Compare(other)
	return ok && c < 0
}

func bibOperand(v any) (int64, bool) {
	switch t := v.(type) {
	case BibNumber:
		return int64(t), true
	case *BibNumber:
		if t == nil {
			return 0, false
		}
		return int64(*t), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	}
	n, err := ParseInt(v)
	return n, err == nil
}

// ParseInt coerces every integer kind, integral floats and decimal strings.
func ParseInt(v any) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint:
		if uint64(t) > math.MaxInt64 {
			return 0, newError(OutOfRange, v, "is too large")
		}
		return int64(t), nil
	case uint64:
		if t > math.MaxInt64 {
			return 0, newError(OutOfRange, v, "is too large")
		}
		return int64(t), nil
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) || math.IsNaN(t) {
			return 0, newError(InvalidFormat, v, "must be a whole number")
		}
		return int64(t), nil
	case BibNumber:
		return int64(t), nil
	case string:
		s := strings.TrimSpace(t)
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, newError(InvalidFormat, v, "must be a whole number")
		}
		return n, nil
	default:
		return 0, newError(InvalidFormat, v, "must be a whole number")
	}
}
