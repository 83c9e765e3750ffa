package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dipendra-mule/conducky-sub002/internal/audit"
	"github.com/dipendra-mule/conducky-sub002/internal/directory"
	"github.com/dipendra-mule/conducky-sub002/internal/rbac"
)

type createOrganizationRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

type createEventRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

func (a *API) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req createOrganizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	org, err := a.directory.CreateOrganization(r.Context(), req.Name, req.Slug, req.Description)
	if err != nil {
		handleDirectoryError(w, err)
		return
	}
	a.audit.Record(r.Context(), audit.Entry{
		Action:         "organization.create",
		TargetType:     "organization",
		TargetID:       org.ID,
		OrganizationID: org.ID,
		Fields:         map[string]any{"slug": org.Slug},
	})
	w.Header().Set("Location", fmt.Sprintf("/api/organizations/%s", org.ID))
	writeJSON(w, http.StatusCreated, org)
}

func (a *API) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := a.directory.ListOrganizations(r.Context())
	if err != nil {
		handleDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
}

func (a *API) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("orgId")
	if !a.requireOrgRole(w, r, orgID, rbac.RoleOrgAdmin, rbac.RoleOrgViewer) {
		return
	}
	org, err := a.directory.Organization(r.Context(), orgID)
	if err != nil {
		handleDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (a *API) handleListEvents(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("orgId")
	if !a.requireOrgRole(w, r, orgID, rbac.RoleOrgAdmin, rbac.RoleOrgViewer) {
		return
	}
	events, err := a.directory.ListEvents(r.Context(), orgID)
	if err != nil {
		handleDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (a *API) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("orgId")
	if !a.requireOrgRole(w, r, orgID, rbac.RoleOrgAdmin) {
		return
	}
	var req createEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	event, err := a.directory.CreateEvent(r.Context(), orgID, req.Name, req.Slug, req.Description)
	if err != nil {
		handleDirectoryError(w, err)
		return
	}
	a.audit.Record(r.Context(), audit.Entry{
		Action:         "event.create",
		TargetType:     "event",
		TargetID:       event.ID,
		EventID:        event.ID,
		OrganizationID: orgID,
		Fields:         map[string]any{"slug": event.Slug},
	})
	w.Header().Set("Location", fmt.Sprintf("/api/events/%s", event.ID))
	writeJSON(w, http.StatusCreated, event)
}

func (a *API) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := a.directory.Event(r.Context(), r.PathValue("eventId"))
	if err != nil {
		handleDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (a *API) handleEventBySlug(w http.ResponseWriter, r *http.Request) {
	event, err := a.directory.EventBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		handleDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func handleDirectoryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, directory.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, directory.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, directory.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, msgInternalError)
	}
}
