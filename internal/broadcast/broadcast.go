// Package broadcast fans committed changes out to live consumers. Delivery is
// fire-and-forget: a slow or absent consumer never fails the write that
// produced the change.
package broadcast

import (
	"context"
	"sync"
	"time"
)

// Change is one committed mutation. Record is the record as read back after
// the write.
type Change struct {
	Type       string    `json:"type"`
	EntityKind string    `json:"entity_kind"`
	EntityID   int64     `json:"entity_id"`
	ActorID    int64     `json:"actor_id,omitempty"`
	Record     any       `json:"record,omitempty"`
	At         time.Time `json:"at"`
}

type Broadcaster interface {
	Broadcast(ctx context.Context, c Change)
}

type Nop struct{}

func (Nop) Broadcast(context.Context, Change) {}

// Multi broadcasts to each of its members in order.
type Multi []Broadcaster

func (m Multi) Broadcast(ctx context.Context, c Change) {
	for _, b := range m {
		if b != nil {
			b.Broadcast(ctx, c)
		}
	}
}

// Recorder keeps every change in memory.
type Recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *Recorder) Broadcast(_ context.Context, c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *Recorder) Changes() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Change, len(r.changes))
	copy(out, r.changes)
	return out
}

// Types returns the type of every recorded change, in order.
func (r *Recorder) Types() []string {
	changes := r.Changes()
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.Type
	}
	return out
}
