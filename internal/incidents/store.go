package incidents

import "context"

// Store persists incidents and comments. Implementations receive the
// sensitive fields already encrypted and return them still encrypted; the
// service layer owns the codec.
type Store interface {
	Create(ctx context.Context, incident *Incident) error
	ByID(ctx context.Context, incidentID string) (*Incident, error)
	ListByEvent(ctx context.Context, eventID string) ([]*Incident, error)
	ListByEventAndReporter(ctx context.Context, eventID, reporterID string) ([]*Incident, error)
	UpdateState(ctx context.Context, incidentID string, state State) error

	AddComment(ctx context.Context, comment *Comment) error
	CommentsByIncident(ctx context.Context, incidentID string) ([]*Comment, error)
}
