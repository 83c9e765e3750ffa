package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dipendra-mule/conducky-sub002/internal/auth"
	"github.com/dipendra-mule/conducky-sub002/internal/incidents"
)

type submitIncidentRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Parties     *string `json:"parties"`
	Location    *string `json:"location"`
}

type transitionRequest struct {
	State string `json:"state"`
}

type addCommentRequest struct {
	Body       string `json:"body"`
	Visibility string `json:"visibility"`
}

func (a *API) handleSubmitIncident(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	eventID := r.PathValue("eventId")

	var req submitIncidentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	incident, err := a.incidents.Submit(r.Context(), userID, eventID, req.Title, req.Description, req.Parties, req.Location)
	if err != nil {
		handleIncidentError(w, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/events/%s/incidents/%s", eventID, incident.ID))
	writeJSON(w, http.StatusCreated, incident)
}

func (a *API) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	list, err := a.incidents.List(r.Context(), userID, r.PathValue("eventId"))
	if err != nil {
		handleIncidentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"incidents": list})
}

func (a *API) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	incident, err := a.incidents.Get(r.Context(), userID, r.PathValue("eventId"), r.PathValue("incidentId"))
	if err != nil {
		handleIncidentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, incident)
}

func (a *API) handleTransitionIncident(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req transitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	incident, err := a.incidents.Transition(r.Context(), userID, r.PathValue("eventId"),
		r.PathValue("incidentId"), incidents.State(req.State))
	if err != nil {
		handleIncidentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, incident)
}

func (a *API) handleAddComment(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req addCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	visibility := incidents.Visibility(req.Visibility)
	if visibility == "" {
		visibility = incidents.VisibilityPublic
	}
	comment, err := a.incidents.AddComment(r.Context(), userID, r.PathValue("eventId"),
		r.PathValue("incidentId"), req.Body, visibility)
	if err != nil {
		handleIncidentError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (a *API) handleListComments(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	comments, err := a.incidents.Comments(r.Context(), userID, r.PathValue("eventId"), r.PathValue("incidentId"))
	if err != nil {
		handleIncidentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

func handleIncidentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, incidents.ErrInvalidInput), errors.Is(err, incidents.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, incidents.ErrForbidden):
		writeError(w, http.StatusForbidden, msgForbidden)
	case errors.Is(err, incidents.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, msgInternalError)
	}
}
