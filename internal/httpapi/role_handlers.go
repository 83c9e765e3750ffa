package httpapi

import (
	"errors"
	"net/http"

	"github.com/dipendra-mule/conducky-sub002/internal/audit"
	"github.com/dipendra-mule/conducky-sub002/internal/auth"
	"github.com/dipendra-mule/conducky-sub002/internal/rbac"
)

type roleChangeRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (a *API) handleGrantEventRole(w http.ResponseWriter, r *http.Request) {
	a.grantRole(w, r, rbac.ScopeEvent, r.PathValue("eventId"))
}

func (a *API) handleRevokeEventRole(w http.ResponseWriter, r *http.Request) {
	a.revokeRole(w, r, rbac.ScopeEvent, r.PathValue("eventId"))
}

func (a *API) handleGrantOrgRole(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("orgId")
	if !a.requireOrgRole(w, r, orgID, rbac.RoleOrgAdmin) {
		return
	}
	a.grantRole(w, r, rbac.ScopeOrganization, orgID)
}

func (a *API) handleRevokeOrgRole(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("orgId")
	if !a.requireOrgRole(w, r, orgID, rbac.RoleOrgAdmin) {
		return
	}
	a.revokeRole(w, r, rbac.ScopeOrganization, orgID)
}

func (a *API) handleGrantSystemRole(w http.ResponseWriter, r *http.Request) {
	a.grantRole(w, r, rbac.ScopeSystem, rbac.SystemScopeID)
}

func (a *API) grantRole(w http.ResponseWriter, r *http.Request, scopeType rbac.ScopeType, scopeID string) {
	actorID, _ := auth.UserIDFromContext(r.Context())

	var req roleChangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	roleName := rbac.NormalizeRoleName(req.Role)
	assignment, err := a.resolver.Grant(r.Context(), req.UserID, roleName, scopeType, scopeID, actorID)
	if err != nil {
		handleRoleError(w, err)
		return
	}
	a.audit.Record(r.Context(), audit.Entry{
		Action:     "role.grant",
		TargetType: "user",
		TargetID:   req.UserID,
		EventID:    eventScopeID(scopeType, scopeID),
		Fields: map[string]any{
			"role":       assignment.RoleName,
			"scope_type": string(scopeType),
			"scope_id":   scopeID,
		},
	})
	writeJSON(w, http.StatusCreated, assignment)
}

func (a *API) revokeRole(w http.ResponseWriter, r *http.Request, scopeType rbac.ScopeType, scopeID string) {
	var req roleChangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	roleName := rbac.NormalizeRoleName(req.Role)
	if err := a.resolver.Revoke(r.Context(), req.UserID, roleName, scopeType, scopeID); err != nil {
		handleRoleError(w, err)
		return
	}
	a.audit.Record(r.Context(), audit.Entry{
		Action:     "role.revoke",
		TargetType: "user",
		TargetID:   req.UserID,
		EventID:    eventScopeID(scopeType, scopeID),
		Fields: map[string]any{
			"role":       roleName,
			"scope_type": string(scopeType),
			"scope_id":   scopeID,
		},
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMyEventRoles(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgNotAuthenticated)
		return
	}
	names, err := a.resolver.RolesAtScope(r.Context(), userID, rbac.ScopeEvent, r.PathValue("eventId"))
	if err != nil {
		handleRoleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": names})
}

func (a *API) handleUserRoles(w http.ResponseWriter, r *http.Request) {
	assignments, err := a.resolver.AllRoles(r.Context(), r.PathValue("userId"))
	if err != nil {
		handleRoleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": assignments})
}

func eventScopeID(scopeType rbac.ScopeType, scopeID string) string {
	if scopeType == rbac.ScopeEvent {
		return scopeID
	}
	return ""
}

func handleRoleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rbac.ErrInvalidInput), errors.Is(err, rbac.ErrUnknownRole):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, rbac.ErrAlreadyGranted):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, rbac.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, msgInternalError)
	}
}
