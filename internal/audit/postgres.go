package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

var _ Store = (*PGStore)(nil)

// PGStore persists audit entries in the audit_logs table.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Append(ctx context.Context, entry *Entry) error {
	fields := []byte("{}")
	if len(entry.Fields) > 0 {
		data, err := json.Marshal(entry.Fields)
		if err != nil {
			return fmt.Errorf("audit: marshal fields: %w", err)
		}
		fields = data
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_logs (id, occurred_at, actor_id, action, target_type, target_id, event_id, organization_id, fields)
		values ($1, $2, nullif($3, ''), $4, nullif($5, ''), nullif($6, ''), nullif($7, ''), nullif($8, ''), $9)
	`, entry.ID, entry.OccurredAt, entry.ActorID, entry.Action, entry.TargetType,
		entry.TargetID, entry.EventID, entry.OrganizationID, fields)
	return err
}

func (s *PGStore) Search(ctx context.Context, q Query) ([]*Entry, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.ActorID != "" {
		conditions = append(conditions, "actor_id = "+arg(q.ActorID))
	}
	if len(q.Actions) > 0 {
		placeholders := make([]string, len(q.Actions))
		for i, action := range q.Actions {
			placeholders[i] = arg(action)
		}
		conditions = append(conditions, "action in ("+strings.Join(placeholders, ", ")+")")
	}
	if q.EventID != "" {
		conditions = append(conditions, "event_id = "+arg(q.EventID))
	}
	if q.From != nil {
		conditions = append(conditions, "occurred_at >= "+arg(*q.From))
	}
	if q.To != nil {
		conditions = append(conditions, "occurred_at < "+arg(*q.To))
	}

	query := `
		select id, occurred_at, coalesce(actor_id, ''), action, coalesce(target_type, ''),
		       coalesce(target_id, ''), coalesce(event_id, ''), coalesce(organization_id, ''), fields
		from audit_logs`
	if len(conditions) > 0 {
		query += " where " + strings.Join(conditions, " and ")
	}
	query += " order by occurred_at desc limit " + arg(q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			entry  Entry
			fields []byte
		)
		if err := rows.Scan(&entry.ID, &entry.OccurredAt, &entry.ActorID, &entry.Action,
			&entry.TargetType, &entry.TargetID, &entry.EventID, &entry.OrganizationID, &fields); err != nil {
			return nil, err
		}
		if len(fields) > 0 {
			_ = json.Unmarshal(fields, &entry.Fields)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
