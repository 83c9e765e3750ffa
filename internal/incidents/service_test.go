package incidents

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/dipendra-mule/conducky-sub002/internal/audit"
	"github.com/dipendra-mule/conducky-sub002/internal/fieldcrypt"
	"github.com/dipendra-mule/conducky-sub002/internal/rbac"
)

type memStore struct {
	incidents map[string]*Incident
	comments  map[string][]*Comment
}

func newMemStore() *memStore {
	return &memStore{incidents: map[string]*Incident{}, comments: map[string][]*Comment{}}
}

func (m *memStore) Create(_ context.Context, incident *Incident) error {
	clone := *incident
	m.incidents[incident.ID] = &clone
	return nil
}

func (m *memStore) ByID(_ context.Context, incidentID string) (*Incident, error) {
	incident, ok := m.incidents[incidentID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *incident
	return &clone, nil
}

func (m *memStore) ListByEvent(_ context.Context, eventID string) ([]*Incident, error) {
	var out []*Incident
	for _, incident := range m.incidents {
		if incident.EventID == eventID {
			clone := *incident
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *memStore) ListByEventAndReporter(_ context.Context, eventID, reporterID string) ([]*Incident, error) {
	var out []*Incident
	for _, incident := range m.incidents {
		if incident.EventID == eventID && incident.ReporterID != nil && *incident.ReporterID == reporterID {
			clone := *incident
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *memStore) UpdateState(_ context.Context, incidentID string, state State) error {
	incident, ok := m.incidents[incidentID]
	if !ok {
		return ErrNotFound
	}
	incident.State = state
	return nil
}

func (m *memStore) AddComment(_ context.Context, comment *Comment) error {
	clone := *comment
	m.comments[comment.IncidentID] = append(m.comments[comment.IncidentID], &clone)
	return nil
}

func (m *memStore) CommentsByIncident(_ context.Context, incidentID string) ([]*Comment, error) {
	var out []*Comment
	for _, comment := range m.comments[incidentID] {
		clone := *comment
		out = append(out, &clone)
	}
	return out, nil
}

// fakeRoles maps "userID/eventID" to held role names.
type fakeRoles struct {
	grants map[string][]string
}

func (f *fakeRoles) HasEventRole(_ context.Context, userID, eventID string, roleNames []string) (bool, error) {
	for _, held := range f.grants[userID+"/"+eventID] {
		if slices.Contains(roleNames, held) {
			return true, nil
		}
	}
	return false, nil
}

type memAudit struct {
	entries []*audit.Entry
}

func (m *memAudit) Append(_ context.Context, entry *audit.Entry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memAudit) Search(_ context.Context, _ audit.Query) ([]*audit.Entry, error) {
	return m.entries, nil
}

func newTestService(t *testing.T) (*Service, *memStore, *fakeRoles, *memAudit) {
	t.Helper()
	store := newMemStore()
	roles := &fakeRoles{grants: map[string][]string{
		"reporter-1/event-1":  {rbac.RoleReporter},
		"responder-1/event-1": {rbac.RoleResponder},
		"admin-1/event-1":     {rbac.RoleEventAdmin},
	}}
	codec, err := fieldcrypt.New("", true)
	if err != nil {
		t.Fatalf("fieldcrypt.New: %v", err)
	}
	sink := &memAudit{}
	recorder, err := audit.NewRecorder(sink)
	if err != nil {
		t.Fatalf("audit.NewRecorder: %v", err)
	}
	svc, err := NewService(store, roles, codec, recorder)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store, roles, sink
}

func TestSubmitEncryptsSensitiveFields(t *testing.T) {
	svc, store, _, sink := newTestService(t)
	ctx := t.Context()

	parties := "A. Speaker, B. Attendee"
	location := "main hallway"
	incident, err := svc.Submit(ctx, "reporter-1", "event-1", "Badge policy violation",
		"Detailed description of what happened", &parties, &location)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if incident.Description != "Detailed description of what happened" {
		t.Fatalf("service must return plaintext, got %q", incident.Description)
	}

	stored := store.incidents[incident.ID]
	if stored.Description == incident.Description {
		t.Fatalf("description must be encrypted at rest")
	}
	if !fieldcrypt.IsEncrypted(stored.Description) {
		t.Fatalf("stored description not in encrypted format: %q", stored.Description)
	}
	if stored.Parties == nil || !fieldcrypt.IsEncrypted(*stored.Parties) {
		t.Fatalf("stored parties not encrypted")
	}
	if stored.Location == nil || !fieldcrypt.IsEncrypted(*stored.Location) {
		t.Fatalf("stored location not encrypted")
	}
	if len(sink.entries) != 1 || sink.entries[0].Action != "incident.submit" {
		t.Fatalf("expected an incident.submit audit entry")
	}
}

func TestSubmitWithoutEventRoleIsForbidden(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Submit(t.Context(), "stranger", "event-1", "Title", "Description", nil, nil)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestAbsentOptionalFieldsStayAbsent(t *testing.T) {
	svc, store, _, _ := newTestService(t)

	incident, err := svc.Submit(t.Context(), "reporter-1", "event-1", "Title", "Description", nil, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	stored := store.incidents[incident.ID]
	if stored.Parties != nil || stored.Location != nil {
		t.Fatalf("absent fields must pass through as nil, got %v / %v", stored.Parties, stored.Location)
	}
}

func TestReporterSeesOnlyOwnIncidents(t *testing.T) {
	svc, _, roles, _ := newTestService(t)
	ctx := t.Context()
	roles.grants["reporter-2/event-1"] = []string{rbac.RoleReporter}

	mine, err := svc.Submit(ctx, "reporter-1", "event-1", "Mine", "My report", nil, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	theirs, err := svc.Submit(ctx, "reporter-2", "event-1", "Theirs", "Their report", nil, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	listed, err := svc.List(ctx, "reporter-1", "event-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != mine.ID {
		t.Fatalf("reporter should see exactly their own incident, got %d", len(listed))
	}

	if _, err := svc.Get(ctx, "reporter-1", "event-1", theirs.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden reading another reporter's incident, got %v", err)
	}

	all, err := svc.List(ctx, "responder-1", "event-1")
	if err != nil {
		t.Fatalf("List as responder: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("responder should see all incidents, got %d", len(all))
	}
}

func TestIncidentNotReachableThroughWrongEvent(t *testing.T) {
	svc, _, roles, _ := newTestService(t)
	roles.grants["responder-1/event-2"] = []string{rbac.RoleResponder}

	incident, err := svc.Submit(t.Context(), "reporter-1", "event-1", "Title", "Description", nil, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := svc.Get(t.Context(), "responder-1", "event-2", incident.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound through wrong event path, got %v", err)
	}
}

func TestTransitionWorkflow(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := t.Context()

	incident, err := svc.Submit(ctx, "reporter-1", "event-1", "Title", "Description", nil, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Reporters cannot transition.
	if _, err := svc.Transition(ctx, "reporter-1", "event-1", incident.ID, StateAcknowledged); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for reporter transition, got %v", err)
	}

	// Skipping acknowledged is not allowed.
	if _, err := svc.Transition(ctx, "responder-1", "event-1", incident.ID, StateClosed); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	for _, to := range []State{StateAcknowledged, StateInvestigating, StateResolved, StateClosed} {
		updated, err := svc.Transition(ctx, "responder-1", "event-1", incident.ID, to)
		if err != nil {
			t.Fatalf("Transition to %s: %v", to, err)
		}
		if updated.State != to {
			t.Fatalf("expected state %s, got %s", to, updated.State)
		}
	}
}

func TestInternalCommentsHiddenFromReporters(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := t.Context()

	incident, err := svc.Submit(ctx, "reporter-1", "event-1", "Title", "Description", nil, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, err := svc.AddComment(ctx, "reporter-1", "event-1", incident.ID, "Any update?", VisibilityPublic); err != nil {
		t.Fatalf("AddComment public: %v", err)
	}
	if _, err := svc.AddComment(ctx, "responder-1", "event-1", incident.ID, "Triage notes", VisibilityInternal); err != nil {
		t.Fatalf("AddComment internal: %v", err)
	}
	// Reporters cannot write internal comments.
	if _, err := svc.AddComment(ctx, "reporter-1", "event-1", incident.ID, "sneaky", VisibilityInternal); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	// Bodies are ciphertext at rest.
	for _, comment := range store.comments[incident.ID] {
		if !fieldcrypt.IsEncrypted(comment.Body) {
			t.Fatalf("comment body not encrypted at rest: %q", comment.Body)
		}
	}

	reporterView, err := svc.Comments(ctx, "reporter-1", "event-1", incident.ID)
	if err != nil {
		t.Fatalf("Comments as reporter: %v", err)
	}
	if len(reporterView) != 1 || reporterView[0].Body != "Any update?" {
		t.Fatalf("reporter should see only the public comment, got %d", len(reporterView))
	}

	responderView, err := svc.Comments(ctx, "responder-1", "event-1", incident.ID)
	if err != nil {
		t.Fatalf("Comments as responder: %v", err)
	}
	if len(responderView) != 2 {
		t.Fatalf("responder should see both comments, got %d", len(responderView))
	}
}
