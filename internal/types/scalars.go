package types

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	uuidPattern  = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

// Email is a lower-cased, trimmed e-mail address.
type Email string

func (e Email) String() string { return string(e) }

// ParseEmail trims and lower-cases v before matching it.
func ParseEmail(v any) (Email, error) {
	s, ok := asString(v)
	if !ok {
		return "", newError(InvalidFormat, v, "must be a string")
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if !emailPattern.MatchString(s) {
		return "", newError(InvalidFormat, v, "is not a valid email address")
	}
	return Email(s), nil
}

// UUID is a canonical, lower-case 8-4-4-4-12 hex identifier.
type UUID string

func (u UUID) String() string { return string(u) }

// NewUUID returns a random v4 UUID.
func NewUUID() UUID {
	return UUID(uuid.NewString())
}

// ParseUUID accepts only the canonical textual form (upper-case hex is folded).
func ParseUUID(v any) (UUID, error) {
	switch t := v.(type) {
	case UUID:
		v = string(t)
	case uuid.UUID:
		return UUID(t.String()), nil
	}
	s, ok := asString(v)
	if !ok {
		return "", newError(InvalidFormat, v, "must be a string")
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if !uuidPattern.MatchString(s) {
		return "", newError(InvalidFormat, v, "is not a canonical UUID")
	}
	return UUID(s), nil
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case *string:
		if t == nil {
			return "", false
		}
		return *t, true
	case []byte:
		return string(t), true
	case Email:
		return string(t), true
	case UUID:
		return string(t), true
	default:
		return "", false
	}
}
