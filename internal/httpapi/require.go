package httpapi

import (
	"errors"
	"net/http"

	"github.com/dipendra-mule/conducky-sub002/internal/auth"
	"github.com/dipendra-mule/conducky-sub002/internal/directory"
	"github.com/dipendra-mule/conducky-sub002/internal/obs"
	"github.com/dipendra-mule/conducky-sub002/internal/rbac"
)

const (
	msgForbidden     = "Forbidden: insufficient role"
	msgInternalError = "Internal server error"
)

// RequireRole guards a route with a role check. The allowed list uses
// canonical catalog names; legacy display names are normalized first.
//
// The scope is taken from the matched route: an eventId path value, then a
// generic id, then a slug resolved through the event directory. When the
// route carries an event scope the check resolves through HasEventRole
// (direct assignment or organization inheritance); without one the allowed
// roles are checked at system scope only, so in practice just system
// admins pass.
//
// Unauthenticated requests get 401 before any lookup runs. Failed checks
// get 403; an errored check gets 500 and never falls through to the
// handler.
func (a *API) RequireRole(allowed ...string) func(http.HandlerFunc) http.Handler {
	allowed = rbac.NormalizeRoleNames(allowed)
	return func(next http.HandlerFunc) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := auth.UserIDFromContext(r.Context())
			if !ok {
				obs.CountAuthzDecision("deny")
				writeError(w, http.StatusUnauthorized, msgNotAuthenticated)
				return
			}

			eventID, err := a.scopeFromRequest(r)
			if err != nil {
				a.authzError(w, r, userID, err)
				return
			}

			var pass bool
			if eventID != "" {
				pass, err = a.resolver.HasEventRole(r.Context(), userID, eventID, allowed)
			} else {
				pass, err = a.resolver.HasRole(r.Context(), userID, allowed, rbac.ScopeSystem)
			}
			if err != nil {
				a.authzError(w, r, userID, err)
				return
			}
			if !pass {
				obs.CountAuthzDecision("deny")
				obs.LogEvent("warn", "authorization denied", map[string]any{
					"user_id": userID,
					"path":    obs.CanonicalPath(r.URL.Path),
					"event":   eventID,
				})
				writeError(w, http.StatusForbidden, msgForbidden)
				return
			}

			obs.CountAuthzDecision("allow")
			next(w, r)
		})
	}
}

// RequireSystemAdmin guards system-administration routes.
func (a *API) RequireSystemAdmin(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			obs.CountAuthzDecision("deny")
			writeError(w, http.StatusUnauthorized, msgNotAuthenticated)
			return
		}
		isAdmin, err := a.resolver.IsSystemAdmin(r.Context(), userID)
		if err != nil {
			a.authzError(w, r, userID, err)
			return
		}
		if !isAdmin {
			obs.CountAuthzDecision("deny")
			writeError(w, http.StatusForbidden, msgForbidden)
			return
		}
		obs.CountAuthzDecision("allow")
		next(w, r)
	})
}

// scopeFromRequest extracts the event scope from the matched route. A slug
// that resolves to no event yields no scope rather than an error; the role
// check then runs without an event and fails closed for event-only roles.
func (a *API) scopeFromRequest(r *http.Request) (string, error) {
	if id := r.PathValue("eventId"); id != "" {
		return id, nil
	}
	if id := r.PathValue("id"); id != "" {
		return id, nil
	}
	if slug := r.PathValue("slug"); slug != "" {
		event, err := a.directory.EventBySlug(r.Context(), slug)
		if err != nil {
			if errors.Is(err, directory.ErrNotFound) {
				return "", nil
			}
			return "", err
		}
		return event.ID, nil
	}
	return "", nil
}

func (a *API) authzError(w http.ResponseWriter, r *http.Request, userID string, err error) {
	obs.CountAuthzDecision("error")
	obs.LogEvent("error", "authorization check failed", map[string]any{
		"user_id": userID,
		"path":    obs.CanonicalPath(r.URL.Path),
		"reason":  err.Error(),
	})
	writeError(w, http.StatusInternalServerError, msgInternalError)
}

// requireOrgRole is the handler-level check for organization routes, where
// the path carries an org id rather than an event. System admins bypass it.
func (a *API) requireOrgRole(w http.ResponseWriter, r *http.Request, orgID string, allowed ...string) bool {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgNotAuthenticated)
		return false
	}
	isAdmin, err := a.resolver.IsSystemAdmin(r.Context(), userID)
	if err != nil {
		a.authzError(w, r, userID, err)
		return false
	}
	if isAdmin {
		obs.CountAuthzDecision("allow")
		return true
	}
	names, err := a.resolver.RolesAtScope(r.Context(), userID, rbac.ScopeOrganization, orgID)
	if err != nil {
		a.authzError(w, r, userID, err)
		return false
	}
	for _, held := range names {
		for _, want := range allowed {
			if held == want {
				obs.CountAuthzDecision("allow")
				return true
			}
		}
	}
	obs.CountAuthzDecision("deny")
	writeError(w, http.StatusForbidden, msgForbidden)
	return false
}
