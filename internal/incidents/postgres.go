package incidents

import (
	"context"
	"database/sql"
	"errors"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store over PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, incident *Incident) error {
	row := s.db.QueryRowContext(ctx, `
		insert into incidents (id, event_id, reporter_id, title, state, description, parties, location)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning created_at, updated_at
	`, incident.ID, incident.EventID, incident.ReporterID, incident.Title,
		string(incident.State), incident.Description, incident.Parties, incident.Location)
	return row.Scan(&incident.CreatedAt, &incident.UpdatedAt)
}

func (s *PGStore) ByID(ctx context.Context, incidentID string) (*Incident, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, event_id, reporter_id, title, state, description, parties, location, created_at, updated_at
		from incidents where id = $1
	`, incidentID)
	return scanIncident(row)
}

func (s *PGStore) ListByEvent(ctx context.Context, eventID string) ([]*Incident, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, event_id, reporter_id, title, state, description, parties, location, created_at, updated_at
		from incidents where event_id = $1 order by created_at asc
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIncidents(rows)
}

func (s *PGStore) ListByEventAndReporter(ctx context.Context, eventID, reporterID string) ([]*Incident, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, event_id, reporter_id, title, state, description, parties, location, created_at, updated_at
		from incidents where event_id = $1 and reporter_id = $2 order by created_at asc
	`, eventID, reporterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIncidents(rows)
}

func (s *PGStore) UpdateState(ctx context.Context, incidentID string, state State) error {
	res, err := s.db.ExecContext(ctx, `
		update incidents set state = $2, updated_at = now() where id = $1
	`, incidentID, string(state))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) AddComment(ctx context.Context, comment *Comment) error {
	row := s.db.QueryRowContext(ctx, `
		insert into incident_comments (id, incident_id, author_id, body, visibility)
		values ($1, $2, $3, $4, $5)
		returning created_at
	`, comment.ID, comment.IncidentID, comment.AuthorID, comment.Body, string(comment.Visibility))
	return row.Scan(&comment.CreatedAt)
}

func (s *PGStore) CommentsByIncident(ctx context.Context, incidentID string) ([]*Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, incident_id, author_id, body, visibility, created_at
		from incident_comments where incident_id = $1 order by created_at asc
	`, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*Comment
	for rows.Next() {
		var comment Comment
		if err := rows.Scan(&comment.ID, &comment.IncidentID, &comment.AuthorID,
			&comment.Body, &comment.Visibility, &comment.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, &comment)
	}
	return comments, rows.Err()
}

func scanIncident(row *sql.Row) (*Incident, error) {
	var (
		incident   Incident
		reporterID sql.NullString
		parties    sql.NullString
		location   sql.NullString
	)
	err := row.Scan(&incident.ID, &incident.EventID, &reporterID, &incident.Title, &incident.State,
		&incident.Description, &parties, &location, &incident.CreatedAt, &incident.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	assignNullable(&incident, reporterID, parties, location)
	return &incident, nil
}

func scanIncidents(rows *sql.Rows) ([]*Incident, error) {
	var incidents []*Incident
	for rows.Next() {
		var (
			incident   Incident
			reporterID sql.NullString
			parties    sql.NullString
			location   sql.NullString
		)
		if err := rows.Scan(&incident.ID, &incident.EventID, &reporterID, &incident.Title, &incident.State,
			&incident.Description, &parties, &location, &incident.CreatedAt, &incident.UpdatedAt); err != nil {
			return nil, err
		}
		assignNullable(&incident, reporterID, parties, location)
		incidents = append(incidents, &incident)
	}
	return incidents, rows.Err()
}

func assignNullable(incident *Incident, reporterID, parties, location sql.NullString) {
	if reporterID.Valid {
		incident.ReporterID = &reporterID.String
	}
	if parties.Valid {
		incident.Parties = &parties.String
	}
	if location.Valid {
		incident.Location = &location.String
	}
}
