// Package httpapi is the HTTP surface of the service: routing,
// authentication, the role-checking middleware and the JSON handlers.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/dipendra-mule/conducky-sub002/internal/audit"
	"github.com/dipendra-mule/conducky-sub002/internal/auth"
	"github.com/dipendra-mule/conducky-sub002/internal/directory"
	"github.com/dipendra-mule/conducky-sub002/internal/incidents"
	"github.com/dipendra-mule/conducky-sub002/internal/obs"
	"github.com/dipendra-mule/conducky-sub002/internal/rbac"
	"github.com/dipendra-mule/conducky-sub002/internal/settings"
)

// ReadyProbe answers the readiness endpoint, pinging the database when one
// is wired.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options carries the collaborators the API needs. All fields are required
// except ReadyProbe.DB.
type Options struct {
	Sessions  *auth.Sessions
	Resolver  *rbac.Resolver
	Directory *directory.Service
	Incidents *incidents.Service
	Settings  *settings.Service
	Audit     *audit.Recorder

	ReadyProbe ReadyProbe
	Version    string

	RateLimitPerSecond int
	RateLimitBurst     int
}

// API is the HTTP layer.
type API struct {
	mux       *http.ServeMux
	sessions  *auth.Sessions
	resolver  *rbac.Resolver
	directory *directory.Service
	incidents *incidents.Service
	settings  *settings.Service
	audit     *audit.Recorder

	readyProbe ReadyProbe
	version    string

	ratePerSecond int
	rateBurst     int
}

func New(opts Options) *API {
	a := &API{
		mux:           http.NewServeMux(),
		sessions:      opts.Sessions,
		resolver:      opts.Resolver,
		directory:     opts.Directory,
		incidents:     opts.Incidents,
		settings:      opts.Settings,
		audit:         opts.Audit,
		readyProbe:    opts.ReadyProbe,
		version:       opts.Version,
		ratePerSecond: opts.RateLimitPerSecond,
		rateBurst:     opts.RateLimitBurst,
	}
	a.routes()
	return a
}

func (a *API) routes() {
	m := a.mux

	// health/ready/metrics
	m.HandleFunc("GET /healthz", a.handleHealthz)
	m.HandleFunc("GET /readyz", a.handleReady)
	m.Handle("GET /metrics", obs.Handler())

	// session endpoints
	m.HandleFunc("POST /api/auth/register", a.handleRegister)
	m.HandleFunc("POST /api/auth/login", a.handleLogin)
	m.HandleFunc("GET /api/users/me", a.handleMe)

	// organizations (system-admin managed; members read their own)
	m.Handle("POST /api/organizations", a.RequireSystemAdmin(a.handleCreateOrganization))
	m.Handle("GET /api/organizations", a.RequireSystemAdmin(a.handleListOrganizations))
	m.HandleFunc("GET /api/organizations/{orgId}", a.handleGetOrganization)
	m.HandleFunc("GET /api/organizations/{orgId}/events", a.handleListEvents)
	m.HandleFunc("POST /api/organizations/{orgId}/events", a.handleCreateEvent)
	m.HandleFunc("POST /api/organizations/{orgId}/roles", a.handleGrantOrgRole)
	m.HandleFunc("DELETE /api/organizations/{orgId}/roles", a.handleRevokeOrgRole)

	// events addressed by slug; registered outside /api/events/ so that the
	// literal segment cannot conflict with the {eventId} wildcard patterns
	m.Handle("GET /api/event-by-slug/{slug}",
		a.RequireRole(rbac.RoleReporter, rbac.RoleResponder, rbac.RoleEventAdmin)(a.handleEventBySlug))

	// event role management
	m.Handle("GET /api/events/{eventId}", a.RequireRole(rbac.RoleReporter, rbac.RoleResponder, rbac.RoleEventAdmin)(a.handleGetEvent))
	m.HandleFunc("GET /api/events/{eventId}/my-roles", a.handleMyEventRoles)
	m.Handle("POST /api/events/{eventId}/roles", a.RequireRole(rbac.RoleEventAdmin)(a.handleGrantEventRole))
	m.Handle("DELETE /api/events/{eventId}/roles", a.RequireRole(rbac.RoleEventAdmin)(a.handleRevokeEventRole))

	// incidents
	m.Handle("POST /api/events/{eventId}/incidents",
		a.RequireRole(rbac.RoleReporter, rbac.RoleResponder, rbac.RoleEventAdmin)(a.handleSubmitIncident))
	m.Handle("GET /api/events/{eventId}/incidents",
		a.RequireRole(rbac.RoleReporter, rbac.RoleResponder, rbac.RoleEventAdmin)(a.handleListIncidents))
	m.Handle("GET /api/events/{eventId}/incidents/{incidentId}",
		a.RequireRole(rbac.RoleReporter, rbac.RoleResponder, rbac.RoleEventAdmin)(a.handleGetIncident))
	m.Handle("POST /api/events/{eventId}/incidents/{incidentId}/state",
		a.RequireRole(rbac.RoleResponder, rbac.RoleEventAdmin)(a.handleTransitionIncident))
	m.Handle("POST /api/events/{eventId}/incidents/{incidentId}/comments",
		a.RequireRole(rbac.RoleReporter, rbac.RoleResponder, rbac.RoleEventAdmin)(a.handleAddComment))
	m.Handle("GET /api/events/{eventId}/incidents/{incidentId}/comments",
		a.RequireRole(rbac.RoleReporter, rbac.RoleResponder, rbac.RoleEventAdmin)(a.handleListComments))

	// system administration
	m.Handle("POST /api/admin/roles", a.RequireSystemAdmin(a.handleGrantSystemRole))
	m.Handle("GET /api/admin/users/{userId}/roles", a.RequireSystemAdmin(a.handleUserRoles))
	m.Handle("GET /api/admin/settings/{key}", a.RequireSystemAdmin(a.handleGetSetting))
	m.Handle("PUT /api/admin/settings/{key}", a.RequireSystemAdmin(a.handlePutSetting))
	m.Handle("POST /api/admin/settings/migrate-encryption", a.RequireSystemAdmin(a.handleMigrateSecrets))
	m.Handle("GET /api/admin/audit", a.RequireSystemAdmin(a.handleAuditSearch))

	m.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	if a.ratePerSecond > 0 {
		h = RateLimit(h, a.rateBurst, a.ratePerSecond)
	}
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "conducky-api",
		"version": a.version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
