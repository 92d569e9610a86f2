// Package contract validates caller input before any repository write.
//
// A Contract never returns a Go error for bad input: Call always yields a
// Result, either carrying normalised Values or a set of Violations that name
// every offending field at once.
package contract

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Attributes is raw caller input keyed by field name.
type Attributes map[string]any

// Values is normalised input: every present field coerced to its Go type.
type Values map[string]any

func (v Values) Has(field string) bool {
	_, ok := v[field]
	return ok
}

// ViolationKind classifies a Violation.
type ViolationKind uint8

const (
	FieldValidation ViolationKind = iota + 1
	CrossFieldRule
	ReferentialIntegrity
)

func (k ViolationKind) String() string {
	switch k {
	case FieldValidation:
		return "field_validation"
	case CrossFieldRule:
		return "cross_field_rule"
	case ReferentialIntegrity:
		return "referential_integrity"
	default:
		return "unknown"
	}
}

type Violation struct {
	Field   string        `json:"field"`
	Kind    ViolationKind `json:"kind"`
	Message string        `json:"message"`
}

// Reference names a table an id field must point into.
type Reference string

const (
	RefRole        Reference = "role"
	RefUser        Reference = "user"
	RefCompetition Reference = "competition"
	RefRaceType    Reference = "race_type"
	RefRace        Reference = "race"
	RefLocation    Reference = "location"
	RefAthlete     Reference = "athlete"
	RefReport      Reference = "report"
	RefIncident    Reference = "incident"
)

// References lists every Reference a Lookup must resolve.
func References() []Reference {
	return []Reference{RefRole, RefUser, RefCompetition, RefRaceType, RefRace, RefLocation, RefAthlete, RefReport, RefIncident}
}

// Lookup answers existence questions for reference fields.
type Lookup interface {
	Exists(ctx context.Context, ref Reference, id int64) (bool, error)
}

// Rule is a cross-field check. It runs only when none of the fields it Needs
// failed their own validation; absent optional fields do not block it.
type Rule struct {
	Name  string
	Needs []string
	Check func(v Values) []Violation
}

type Contract struct {
	Name   string
	Fields []Field
	Rules  []Rule
	Lookup Lookup
}

// Call validates attrs. Every field is checked before any rule runs, and all
// problems are reported together.
func (c Contract) Call(ctx context.Context, attrs Attributes) Result {
	res := Result{Contract: c.Name, Values: Values{}}
	failed := map[string]bool{}
	for _, f := range c.Fields {
		raw, present := attrs[f.Name]
		if !present || isBlank(raw) {
			if f.Required {
				res.add(f.Name, FieldValidation, "must be filled")
				failed[f.Name] = true
			} else if f.Default != nil {
				res.Values[f.Name] = f.Default
			}
			continue
		}
		v, err := f.Coerce(raw)
		if err != nil {
			res.add(f.Name, FieldValidation, err.Error())
			failed[f.Name] = true
			continue
		}
		for _, check := range f.Checks {
			if msg := check(v); msg != "" {
				res.add(f.Name, FieldValidation, msg)
				failed[f.Name] = true
			}
		}
		if failed[f.Name] {
			continue
		}
		if f.Ref != "" {
			if msg := c.resolve(ctx, f.Ref, v); msg != "" {
				res.add(f.Name, ReferentialIntegrity, msg)
				failed[f.Name] = true
				continue
			}
		}
		res.Values[f.Name] = v
	}
	for _, rule := range c.Rules {
		if blocked(rule.Needs, failed) {
			continue
		}
		for _, viol := range rule.Check(res.Values) {
			if viol.Kind == 0 {
				viol.Kind = CrossFieldRule
			}
			res.Violations = append(res.Violations, viol)
		}
	}
	if !res.Valid() {
		res.Values = nil
	}
	return res
}

func blocked(needs []string, failed map[string]bool) bool {
	for _, n := range needs {
		if failed[n] {
			return true
		}
	}
	return false
}

func (c Contract) resolve(ctx context.Context, ref Reference, v any) string {
	var ids []int64
	switch t := v.(type) {
	case int64:
		ids = []int64{t}
	case []int64:
		ids = t
	default:
		return fmt.Sprintf("cannot reference a %s with %T", ref, v)
	}
	if c.Lookup == nil {
		return fmt.Sprintf("%s cannot be verified", ref)
	}
	for _, id := range ids {
		ok, err := c.Lookup.Exists(ctx, ref, id)
		if err != nil {
			return fmt.Sprintf("%s %d cannot be verified: %v", ref, id, err)
		}
		if !ok {
			return fmt.Sprintf("%s %d does not exist", ref, id)
		}
	}
	return ""
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case *string:
		return t == nil || strings.TrimSpace(*t) == ""
	}
	return false
}

// Result is the outcome of Call. Values is nil unless the result is valid.
type Result struct {
	Contract   string
	Values     Values
	Violations []Violation
}

func (r *Result) add(field string, kind ViolationKind, msg string) {
	r.Violations = append(r.Violations, Violation{Field: field, Kind: kind, Message: msg})
}

func (r Result) Valid() bool { return len(r.Violations) == 0 }

// Errors groups violation messages by field, in the order they were found.
func (r Result) Errors() map[string][]string {
	if r.Valid() {
		return nil
	}
	out := map[string][]string{}
	for _, v := range r.Violations {
		out[v.Field] = append(out[v.Field], v.Message)
	}
	return out
}

// Decode copies Values into out using mapstructure tags.
func (r Result) Decode(out any) error {
	if !r.Valid() {
		return r.Err()
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(r.Values)); err != nil {
		return fmt.Errorf("decode %s: %w", r.Contract, err)
	}
	return nil
}

// Err returns a *ValidationError when the result is invalid.
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	return &ValidationError{Contract: r.Contract, Violations: r.Violations}
}

type ValidationError struct {
	Contract   string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	fields := Result{Violations: e.Violations}.Errors()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s %s", name, strings.Join(fields[name], ", ")))
	}
	return fmt.Sprintf("%s: %s", e.Contract, strings.Join(parts, "; "))
}

// Errors exposes the field map so callers holding only the error can render it.
func (e *ValidationError) Errors() map[string][]string {
	return Result{Violations: e.Violations}.Errors()
}

// HasKind reports whether any violation is of kind k.
func (e *ValidationError) HasKind(k ViolationKind) bool {
	for _, v := range e.Violations {
		if v.Kind == k {
			return true
		}
	}
	return false
}
