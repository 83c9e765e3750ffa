package incidents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dipendra-mule/conducky-sub002/internal/audit"
	"github.com/dipendra-mule/conducky-sub002/internal/fieldcrypt"
	"github.com/dipendra-mule/conducky-sub002/internal/ids"
	"github.com/dipendra-mule/conducky-sub002/internal/rbac"
)

// RoleChecker is the slice of the RBAC resolver this service needs.
type RoleChecker interface {
	HasEventRole(ctx context.Context, userID, eventID string, roleNames []string) (bool, error)
}

var (
	responderRoles = []string{rbac.RoleResponder, rbac.RoleEventAdmin}
	eventRoles     = []string{rbac.RoleReporter, rbac.RoleResponder, rbac.RoleEventAdmin}
)

// Service enforces role checks and field encryption around the store.
type Service struct {
	store    Store
	roles    RoleChecker
	codec    *fieldcrypt.Codec
	recorder *audit.Recorder
}

func NewService(store Store, roles RoleChecker, codec *fieldcrypt.Codec, recorder *audit.Recorder) (*Service, error) {
	if store == nil || roles == nil || codec == nil || recorder == nil {
		return nil, errors.New("incidents: store, role checker, codec and audit recorder are required")
	}
	return &Service{store: store, roles: roles, codec: codec, recorder: recorder}, nil
}

// Submit files a new incident. Any event role may report; the sensitive
// fields are encrypted before they reach the store.
func (s *Service) Submit(ctx context.Context, userID, eventID, title, description string, parties, location *string) (*Incident, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	if err := s.requireEventRole(ctx, userID, eventID, eventRoles); err != nil {
		return nil, err
	}

	encryptedDescription, err := s.codec.Encrypt(description)
	if err != nil {
		return nil, err
	}
	encryptedParties, err := s.codec.EncryptField(parties)
	if err != nil {
		return nil, err
	}
	encryptedLocation, err := s.codec.EncryptField(location)
	if err != nil {
		return nil, err
	}

	reporterID := userID
	incident := &Incident{
		ID:          ids.New(),
		EventID:     eventID,
		ReporterID:  &reporterID,
		Title:       title,
		State:       StateSubmitted,
		Description: encryptedDescription,
		Parties:     encryptedParties,
		Location:    encryptedLocation,
	}
	if err := s.store.Create(ctx, incident); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     "incident.submit",
		TargetType: "incident",
		TargetID:   incident.ID,
		EventID:    eventID,
	})
	return s.decrypt(incident), nil
}

// Get returns one incident. Responders and admins see every incident in
// their event; reporters only their own.
func (s *Service) Get(ctx context.Context, userID, eventID, incidentID string) (*Incident, error) {
	incident, err := s.load(ctx, eventID, incidentID)
	if err != nil {
		return nil, err
	}
	if err := s.requireIncidentAccess(ctx, userID, incident); err != nil {
		return nil, err
	}
	return s.decrypt(incident), nil
}

// List returns the incidents visible to the user in an event.
func (s *Service) List(ctx context.Context, userID, eventID string) ([]*Incident, error) {
	canRespond, err := s.roles.HasEventRole(ctx, userID, eventID, responderRoles)
	if err != nil {
		return nil, err
	}

	var incidents []*Incident
	if canRespond {
		incidents, err = s.store.ListByEvent(ctx, eventID)
	} else {
		if err := s.requireEventRole(ctx, userID, eventID, eventRoles); err != nil {
			return nil, err
		}
		incidents, err = s.store.ListByEventAndReporter(ctx, eventID, userID)
	}
	if err != nil {
		return nil, err
	}
	for i, incident := range incidents {
		incidents[i] = s.decrypt(incident)
	}
	return incidents, nil
}

// Transition moves an incident through the workflow. Responders and admins
// only; reporters cannot change state.
func (s *Service) Transition(ctx context.Context, userID, eventID, incidentID string, to State) (*Incident, error) {
	incident, err := s.load(ctx, eventID, incidentID)
	if err != nil {
		return nil, err
	}
	if err := s.requireEventRole(ctx, userID, eventID, responderRoles); err != nil {
		return nil, err
	}
	if !CanTransition(incident.State, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, incident.State, to)
	}
	if err := s.store.UpdateState(ctx, incidentID, to); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     "incident.transition",
		TargetType: "incident",
		TargetID:   incidentID,
		EventID:    eventID,
		Fields:     map[string]any{"from": string(incident.State), "to": string(to)},
	})
	incident.State = to
	return s.decrypt(incident), nil
}

// AddComment appends to the incident thread. Internal comments require a
// responder-level role; public ones any participant with access to the
// incident.
func (s *Service) AddComment(ctx context.Context, userID, eventID, incidentID, body string, visibility Visibility) (*Comment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: comment body is required", ErrInvalidInput)
	}
	switch visibility {
	case VisibilityPublic, VisibilityInternal:
	default:
		return nil, fmt.Errorf("%w: unknown visibility %q", ErrInvalidInput, visibility)
	}

	incident, err := s.load(ctx, eventID, incidentID)
	if err != nil {
		return nil, err
	}
	if visibility == VisibilityInternal {
		if err := s.requireEventRole(ctx, userID, eventID, responderRoles); err != nil {
			return nil, err
		}
	} else if err := s.requireIncidentAccess(ctx, userID, incident); err != nil {
		return nil, err
	}

	encryptedBody, err := s.codec.Encrypt(body)
	if err != nil {
		return nil, err
	}
	comment := &Comment{
		ID:         ids.New(),
		IncidentID: incidentID,
		AuthorID:   userID,
		Body:       encryptedBody,
		Visibility: visibility,
	}
	if err := s.store.AddComment(ctx, comment); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     "incident.comment",
		TargetType: "incident",
		TargetID:   incidentID,
		EventID:    eventID,
		Fields:     map[string]any{"visibility": string(visibility)},
	})
	comment.Body = body
	return comment, nil
}

// Comments returns the thread entries visible to the user.
func (s *Service) Comments(ctx context.Context, userID, eventID, incidentID string) ([]*Comment, error) {
	incident, err := s.load(ctx, eventID, incidentID)
	if err != nil {
		return nil, err
	}
	if err := s.requireIncidentAccess(ctx, userID, incident); err != nil {
		return nil, err
	}

	canRespond, err := s.roles.HasEventRole(ctx, userID, eventID, responderRoles)
	if err != nil {
		return nil, err
	}

	comments, err := s.store.CommentsByIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	visible := make([]*Comment, 0, len(comments))
	for _, comment := range comments {
		if comment.Visibility == VisibilityInternal && !canRespond {
			continue
		}
		comment.Body = s.codec.Decrypt(comment.Body)
		visible = append(visible, comment)
	}
	return visible, nil
}

// load fetches an incident and verifies it belongs to the event named in
// the URL, so a valid incident id cannot be read through another event's
// path.
func (s *Service) load(ctx context.Context, eventID, incidentID string) (*Incident, error) {
	incident, err := s.store.ByID(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if incident.EventID != eventID {
		return nil, ErrNotFound
	}
	return incident, nil
}

func (s *Service) requireEventRole(ctx context.Context, userID, eventID string, roleNames []string) error {
	ok, err := s.roles.HasEventRole(ctx, userID, eventID, roleNames)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (s *Service) requireIncidentAccess(ctx context.Context, userID string, incident *Incident) error {
	canRespond, err := s.roles.HasEventRole(ctx, userID, incident.EventID, responderRoles)
	if err != nil {
		return err
	}
	if canRespond {
		return nil
	}
	if incident.ReporterID != nil && *incident.ReporterID == userID {
		// Reporters keep access to their own reports.
		if err := s.requireEventRole(ctx, userID, incident.EventID, eventRoles); err == nil {
			return nil
		}
	}
	return ErrForbidden
}

func (s *Service) decrypt(incident *Incident) *Incident {
	incident.Description = s.codec.Decrypt(incident.Description)
	incident.Parties = s.codec.DecryptField(incident.Parties)
	incident.Location = s.codec.DecryptField(incident.Location)
	return incident
}
