package contract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"raceline/internal/types"
)

// Coercer turns a raw attribute into its normalised value.
type Coercer func(v any) (any, error)

// Check inspects a coerced value and returns a message when it is unacceptable.
type Check func(v any) string

type Field struct {
	Name     string
	Required bool
	Coerce   Coercer
	Checks   []Check
	Ref      Reference
	Default  any
}

func Required(name string, coerce Coercer, checks ...Check) Field {
	return Field{Name: name, Required: true, Coerce: coerce, Checks: checks}
}

func Optional(name string, coerce Coercer, checks ...Check) Field {
	return Field{Name: name, Coerce: coerce, Checks: checks}
}

// References marks f as an id (or id list) that must exist in ref.
func (f Field) References(ref Reference) Field {
	f.Ref = ref
	return f
}

// WithDefault sets the value an absent optional field takes.
func (f Field) WithDefault(v any) Field {
	f.Default = v
	return f
}

// String trims surrounding whitespace.
func String(v any) (any, error) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), nil
	case *string:
		return strings.TrimSpace(*t), nil
	case fmt.Stringer:
		return strings.TrimSpace(t.String()), nil
	}
	return nil, fmt.Errorf("must be a string")
}

func Int(v any) (any, error) {
	n, err := types.ParseInt(v)
	if err != nil {
		return nil, errors.New("must be an integer")
	}
	return int(n), nil
}

// ID coerces to a positive int64 primary key.
func ID(v any) (any, error) {
	n, err := types.ParseInt(v)
	if err != nil || n <= 0 {
		return nil, errors.New("must be a positive id")
	}
	return n, nil
}

// IDList coerces a list of ids, dropping duplicates.
func IDList(v any) (any, error) {
	items, ok := asSlice(v)
	if !ok {
		return nil, errors.New("must be a list of ids")
	}
	out := make([]int64, 0, len(items))
	seen := map[int64]bool{}
	for i, item := range items {
		n, err := types.ParseInt(item)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("item %d must be a positive id", i)
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out, nil
}

func Bool(v any) (any, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "on":
			return true, nil
		case "0", "false", "no", "off":
			return false, nil
		}
	}
	return nil, errors.New("must be a boolean")
}

func Email(v any) (any, error)    { return types.ParseEmail(v) }
func UUID(v any) (any, error)     { return types.ParseUUID(v) }
func Bib(v any) (any, error)      { return types.ParseBibNumber(v) }
func DateTime(v any) (any, error) { return types.ParseDateTime(v) }

// Date is DateTime truncated to the day.
func Date(v any) (any, error) {
	t, err := types.ParseDateTime(v)
	if err != nil {
		return nil, err
	}
	return t.Truncate(24 * time.Hour), nil
}

// Enum adapts a types.ParseX function.
func Enum[T any](parse func(any) (T, error)) Coercer {
	return func(v any) (any, error) { return parse(v) }
}

// Rows coerces a list of attribute maps, as sent by bulk imports.
func Rows(v any) (any, error) {
	switch t := v.(type) {
	case []Attributes:
		return t, nil
	case []map[string]any:
		out := make([]Attributes, len(t))
		for i, row := range t {
			out[i] = Attributes(row)
		}
		return out, nil
	}
	items, ok := asSlice(v)
	if !ok {
		return nil, errors.New("must be a list of rows")
	}
	out := make([]Attributes, len(items))
	for i, item := range items {
		switch row := item.(type) {
		case Attributes:
			out[i] = row
		case map[string]any:
			out[i] = Attributes(row)
		default:
			return nil, fmt.Errorf("row %d must be an object", i)
		}
	}
	return out, nil
}

// Positions coerces an id -> display order map.
func Positions(v any) (any, error) {
	out := map[int64]int{}
	switch t := v.(type) {
	case map[int64]int:
		for id, pos := range t {
			out[id] = pos
		}
	case map[string]any:
		for key, raw := range t {
			id, err := types.ParseInt(key)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("key %q must be a positive id", key)
			}
			pos, err := types.ParseInt(raw)
			if err != nil {
				return nil, fmt.Errorf("position of %d must be an integer", id)
			}
			out[id] = int(pos)
		}
	default:
		return nil, errors.New("must map ids to positions")
	}
	return out, nil
}

func asSlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []int64:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out, true
	case []int:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func MinLen(n int) Check {
	return func(v any) string {
		if s, ok := v.(string); ok && utf8.RuneCountInString(s) < n {
			return fmt.Sprintf("must be at least %d characters", n)
		}
		return ""
	}
}

func MaxLen(n int) Check {
	return func(v any) string {
		if s, ok := v.(string); ok && utf8.RuneCountInString(s) > n {
			return fmt.Sprintf("must be at most %d characters", n)
		}
		return ""
	}
}

// MaxBytes bounds the encoded length, for values handed to byte-limited APIs.
func MaxBytes(n int) Check {
	return func(v any) string {
		if s, ok := v.(string); ok && len(s) > n {
			return fmt.Sprintf("must be at most %d bytes", n)
		}
		return ""
	}
}

func Between(lo, hi int) Check {
	return func(v any) string {
		if n, ok := v.(int); ok && (n < lo || n > hi) {
			return fmt.Sprintf("must be between %d and %d", lo, hi)
		}
		return ""
	}
}

func NonNegative() Check {
	return func(v any) string {
		if n, ok := v.(int); ok && n < 0 {
			return "must not be negative"
		}
		return ""
	}
}

// MinItems applies to Rows, IDList and Positions values.
func MinItems(n int) Check {
	return func(v any) string {
		var size int
		switch t := v.(type) {
		case []Attributes:
			size = len(t)
		case []int64:
			size = len(t)
		case map[int64]int:
			size = len(t)
		default:
			return ""
		}
		if size < n {
			return fmt.Sprintf("must contain at least %d item(s)", n)
		}
		return ""
	}
}

// WebURL accepts absolute http(s) URLs.
func WebURL() Check {
	return func(v any) string {
		s, _ := v.(string)
		u, err := url.Parse(s)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "must be an http(s) URL"
		}
		return ""
	}
}
