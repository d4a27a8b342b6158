package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"hireview.io/internal/ids"
	"hireview.io/internal/obs"
)

// Recorder appends and queries audit entries in PostgreSQL.
type Recorder struct {
	db  *sql.DB
	now func() time.Time
}

// RecorderOption configures Recorder behavior.
type RecorderOption func(*Recorder)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRecorder constructs a Recorder over the shared database handle.
func NewRecorder(db *sql.DB, opts ...RecorderOption) *Recorder {
	r := &Recorder{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Append writes one entry inside the caller's transaction. The caller commits
// or rolls back; a failed insert returns ErrWriteFailed and the caller must
// abort the whole operation so no mutation lands without a trail.
func (r *Recorder) Append(ctx context.Context, tx *sql.Tx, entry *Entry) error {
	if err := entry.validate(); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = r.now().UTC()
	}

	_, err := tx.ExecContext(ctx,
		`insert into audit_entries(id, entity_name, operation, actor_id, entity_key, old_state, new_state, occurred_at, source_address)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		entry.ID, entry.EntityName, string(entry.Operation), entry.ActorID, entry.EntityKey,
		nullableJSON(entry.OldState), nullableJSON(entry.NewState), entry.OccurredAt, entry.SourceAddr,
	)
	if err != nil {
		obs.ObserveAuditAppend("failed")
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	obs.ObserveAuditAppend("ok")
	obs.LogEvent(map[string]any{
		"ts":          entry.OccurredAt.Format(time.RFC3339Nano),
		"type":        "audit",
		"entity_name": entry.EntityName,
		"operation":   string(entry.Operation),
		"actor_id":    entry.ActorID,
		"entity_key":  entry.EntityKey,
		"source":      entry.SourceAddr,
	})
	return nil
}

// Query selects entries for compliance review. EntityKey is required; the
// time range is optional. Results come back oldest first. There is no update
// or delete path, by contract.
type Query struct {
	EntityKey string
	From      time.Time
	To        time.Time
	Limit     int
}

const defaultQueryLimit = 500

// Entries returns the audit trail matching the query.
func (r *Recorder) Entries(ctx context.Context, q Query) ([]Entry, error) {
	if strings.TrimSpace(q.EntityKey) == "" {
		return nil, fmt.Errorf("%w: entity_key is required", ErrInvalidEntry)
	}
	limit := q.Limit
	if limit <= 0 || limit > defaultQueryLimit {
		limit = defaultQueryLimit
	}

	query := `select id, entity_name, operation, actor_id, entity_key, old_state, new_state, occurred_at, source_address
		 from audit_entries where entity_key=$1`
	args := []any{q.EntityKey}
	if !q.From.IsZero() {
		args = append(args, q.From)
		query += fmt.Sprintf(" and occurred_at >= $%d", len(args))
	}
	if !q.To.IsZero() {
		args = append(args, q.To)
		query += fmt.Sprintf(" and occurred_at <= $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" order by occurred_at asc limit $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			op       string
			oldState []byte
			newState []byte
		)
		if err := rows.Scan(&e.ID, &e.EntityName, &op, &e.ActorID, &e.EntityKey,
			&oldState, &newState, &e.OccurredAt, &e.SourceAddr); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		e.Operation = Operation(op)
		if len(oldState) > 0 {
			e.OldState = oldState
		}
		if len(newState) > 0 {
			e.NewState = newState
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return entries, nil
}

func nullableJSON(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	return []byte(data)
}
