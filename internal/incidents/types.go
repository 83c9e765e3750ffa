// Package incidents implements incident reports and their comment threads.
// Every read and mutation is gated through the RBAC resolver, and the
// sensitive free-text columns (description, parties, location, comment
// bodies) are encrypted at rest through the field codec.
package incidents

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("incidents: not found")
	ErrForbidden         = errors.New("incidents: forbidden")
	ErrInvalidInput      = errors.New("incidents: invalid input")
	ErrInvalidTransition = errors.New("incidents: invalid state transition")
)

// State is the incident workflow position.
type State string

const (
	StateSubmitted     State = "submitted"
	StateAcknowledged  State = "acknowledged"
	StateInvestigating State = "investigating"
	StateResolved      State = "resolved"
	StateClosed        State = "closed"
)

// transitions lists the allowed forward moves. Resolved incidents may only
// close; closed is terminal.
var transitions = map[State][]State{
	StateSubmitted:     {StateAcknowledged},
	StateAcknowledged:  {StateInvestigating, StateResolved},
	StateInvestigating: {StateResolved},
	StateResolved:      {StateClosed},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to State) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Incident is a code-of-conduct report. Description, Parties and Location
// are plaintext in memory and ciphertext in the database; the store
// boundary does the conversion.
type Incident struct {
	ID          string    `json:"id"`
	EventID     string    `json:"event_id"`
	ReporterID  *string   `json:"reporter_id,omitempty"`
	Title       string    `json:"title"`
	State       State     `json:"state"`
	Description string    `json:"description"`
	Parties     *string   `json:"parties,omitempty"`
	Location    *string   `json:"location,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Visibility controls who sees a comment: public comments are visible to
// the reporter, internal ones only to responders and admins.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityInternal Visibility = "internal"
)

// Comment is one entry in an incident's discussion thread.
type Comment struct {
	ID         string     `json:"id"`
	IncidentID string     `json:"incident_id"`
	AuthorID   string     `json:"author_id"`
	Body       string     `json:"body"`
	Visibility Visibility `json:"visibility"`
	CreatedAt  time.Time  `json:"created_at"`
}
