// Package audit records administrative actions: role grants and revokes,
// incident mutations and settings changes. Entries are append-only; nothing
// in the system updates or deletes them.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/dipendra-mule/conducky-sub002/internal/auth"
	"github.com/dipendra-mule/conducky-sub002/internal/ids"
	"github.com/dipendra-mule/conducky-sub002/internal/obs"
)

// Entry is one recorded action.
type Entry struct {
	ID             string         `json:"id"`
	OccurredAt     time.Time      `json:"occurred_at"`
	ActorID        string         `json:"actor_id,omitempty"`
	Action         string         `json:"action"`
	TargetType     string         `json:"target_type,omitempty"`
	TargetID       string         `json:"target_id,omitempty"`
	EventID        string         `json:"event_id,omitempty"`
	OrganizationID string         `json:"organization_id,omitempty"`
	Fields         map[string]any `json:"fields,omitempty"`
}

// Query is the typed filter for the admin audit endpoint. Known optional
// fields instead of an open where-map, so the store can be checked.
type Query struct {
	ActorID string
	Actions []string
	EventID string
	From    *time.Time
	To      *time.Time
	Limit   int
}

// Store persists entries and answers filtered queries.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	Search(ctx context.Context, q Query) ([]*Entry, error)
}

// Recorder writes entries to the store and mirrors them to the structured
// log so operators see them without a database query.
type Recorder struct {
	store Store
	now   func() time.Time
}

func NewRecorder(store Store) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("audit: store is required")
	}
	return &Recorder{store: store, now: time.Now}, nil
}

// Record appends an entry, filling the id, timestamp and — when present in
// the context — the acting user. A failed append is logged and swallowed:
// auditing must not turn a successful action into a failed request.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	entry.Action = strings.TrimSpace(entry.Action)
	if entry.Action == "" {
		return
	}
	entry.ID = ids.New()
	entry.OccurredAt = r.now().UTC()
	if entry.ActorID == "" {
		if userID, ok := auth.UserIDFromContext(ctx); ok {
			entry.ActorID = userID
		}
	}

	logEntry := map[string]any{
		"type":   "audit",
		"ts":     entry.OccurredAt.Format(time.RFC3339Nano),
		"action": entry.Action,
	}
	if entry.ActorID != "" {
		logEntry["actor_id"] = entry.ActorID
	}
	if entry.TargetType != "" {
		logEntry["target"] = entry.TargetType + "/" + entry.TargetID
	}
	if len(entry.Fields) > 0 {
		if data, err := json.Marshal(entry.Fields); err == nil {
			logEntry["fields"] = json.RawMessage(data)
		}
	}
	obs.LogRequest(logEntry)

	if err := r.store.Append(ctx, &entry); err != nil {
		obs.LogEvent("error", "audit append failed", map[string]any{
			"action": entry.Action,
			"reason": err.Error(),
		})
	}
}

// Search runs a filtered query. A missing limit defaults to 50; anything
// over 200 is clamped to 200.
func (r *Recorder) Search(ctx context.Context, q Query) ([]*Entry, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	} else if q.Limit > 200 {
		q.Limit = 200
	}
	return r.store.Search(ctx, q)
}
