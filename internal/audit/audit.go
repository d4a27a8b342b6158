// Package audit records an append-only, tamper-evident trail of mutations on
// sensitive entities. Entries are written inside the caller's transaction so
// a mutation and its trail commit or roll back together.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrWriteFailed marks an audit append that could not be made durable. The
// enclosing operation must fail with it rather than proceed without a trail.
var ErrWriteFailed = errors.New("audit: write failed")

// ErrInvalidEntry marks an entry that violates the snapshot rules.
var ErrInvalidEntry = errors.New("audit: invalid entry")

// ErrUnavailable marks a trail read that failed at the store.
var ErrUnavailable = errors.New("audit: store unavailable")

// Operation is the mutation kind an entry describes.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Entry is one immutable audit record. OldState is absent for create,
// NewState is absent for delete, update carries both.
type Entry struct {
	ID         string          `json:"id"`
	EntityName string          `json:"entity_name"`
	Operation  Operation       `json:"operation"`
	ActorID    string          `json:"actor_id"`
	EntityKey  string          `json:"entity_key"`
	OldState   json.RawMessage `json:"old_state,omitempty"`
	NewState   json.RawMessage `json:"new_state,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	SourceAddr string          `json:"source_address,omitempty"`
}

func (e *Entry) validate() error {
	if e == nil {
		return fmt.Errorf("%w: entry is nil", ErrInvalidEntry)
	}
	if strings.TrimSpace(e.EntityName) == "" {
		return fmt.Errorf("%w: entity_name is required", ErrInvalidEntry)
	}
	if strings.TrimSpace(e.EntityKey) == "" {
		return fmt.Errorf("%w: entity_key is required", ErrInvalidEntry)
	}
	if strings.TrimSpace(e.ActorID) == "" {
		return fmt.Errorf("%w: actor_id is required", ErrInvalidEntry)
	}
	switch e.Operation {
	case OpCreate:
		if e.OldState != nil {
			return fmt.Errorf("%w: create must not carry old_state", ErrInvalidEntry)
		}
		if e.NewState == nil {
			return fmt.Errorf("%w: create requires new_state", ErrInvalidEntry)
		}
	case OpUpdate:
		if e.OldState == nil || e.NewState == nil {
			return fmt.Errorf("%w: update requires both old_state and new_state", ErrInvalidEntry)
		}
	case OpDelete:
		if e.NewState != nil {
			return fmt.Errorf("%w: delete must not carry new_state", ErrInvalidEntry)
		}
		if e.OldState == nil {
			return fmt.Errorf("%w: delete requires old_state", ErrInvalidEntry)
		}
	default:
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidEntry, e.Operation)
	}
	return nil
}

// Snapshot JSON-encodes an entity state for use as OldState/NewState.
func Snapshot(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: encode snapshot: %v", ErrInvalidEntry, err)
	}
	return data, nil
}
