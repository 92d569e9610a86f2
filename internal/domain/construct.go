// Package domain holds the immutable records of the race-incident core.
//
// Every entity has a full record, built by NewX from XAttrs, and a summary
// record carrying a strict subset of those fields for list views. Records keep
// their attributes unexported; accessors and Attrs() hand out copies, and any
// change is a method returning a new record.
package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// ConstructionError names every field that prevented a record from being built.
type ConstructionError struct {
	Entity string
	Fields map[string][]string
}

func (e *ConstructionError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s %s", name, strings.Join(e.Fields[name], ", ")))
	}
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(parts, "; "))
}

// checker collects field problems while a record is being built.
type checker struct {
	entity string
	fields map[string][]string
}

func newChecker(entity string) *checker {
	return &checker{entity: entity}
}

func (c *checker) fail(field, msg string) {
	if c.fields == nil {
		c.fields = map[string][]string{}
	}
	c.fields[field] = append(c.fields[field], msg)
}

func (c *checker) id(field string, v int64) {
	if v <= 0 {
		c.fail(field, "must be a positive id")
	}
}

func (c *checker) optionalID(field string, v int64) {
	if v < 0 {
		c.fail(field, "must be a positive id or empty")
	}
}

func (c *checker) text(field, v string, max int) {
	if strings.TrimSpace(v) == "" {
		c.fail(field, "must be present")
		return
	}
	if max > 0 && utf8.RuneCountInString(v) > max {
		c.fail(field, fmt.Sprintf("must be at most %d characters", max))
	}
}

func (c *checker) optionalText(field, v string, max int) {
	if max > 0 && utf8.RuneCountInString(v) > max {
		c.fail(field, fmt.Sprintf("must be at most %d characters", max))
	}
}

func (c *checker) enum(field string, ok bool, v any) {
	if !ok {
		c.fail(field, fmt.Sprintf("has unknown value %q", fmt.Sprint(v)))
	}
}

func (c *checker) nonNegative(field string, v int) {
	if v < 0 {
		c.fail(field, "must not be negative")
	}
}

func (c *checker) timestamp(field string, t time.Time) {
	if t.IsZero() {
		c.fail(field, "must be present")
	}
}

func (c *checker) err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return &ConstructionError{Entity: c.entity, Fields: c.fields}
}
