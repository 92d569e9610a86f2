package domain

import "time"

// Event is one entry of the append-only change log written alongside every
// mutation. Unlike the entity records it is a plain value: it is never
// validated after the fact, only read back in id order.
type Event struct {
	ID         int64     `json:"id"`
	TS         time.Time `json:"ts"`
	Type       string    `json:"type"`
	EntityKind string    `json:"entity_kind"`
	EntityID   int64     `json:"entity_id,omitempty"`
	ActorID    int64     `json:"actor_id,omitempty"`
	Payload    string    `json:"payload_json"`
}
