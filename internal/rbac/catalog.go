package rbac

import "strings"

// Canonical role names. The catalog is seeded once at bootstrap and is
// effectively immutable afterward.
const (
	RoleSystemAdmin = "system_admin"
	RoleOrgAdmin    = "org_admin"
	RoleOrgViewer   = "org_viewer"
	RoleEventAdmin  = "event_admin"
	RoleResponder   = "responder"
	RoleReporter    = "reporter"
)

// CatalogEntry describes one seeded role.
type CatalogEntry struct {
	Name        string
	Scope       ScopeType
	Level       int
	Description string
	Display     string
}

// Catalog is the full fixed role catalog, highest level first. Level is
// used for ordering in admin screens only.
var Catalog = []CatalogEntry{
	{Name: RoleSystemAdmin, Scope: ScopeSystem, Level: 100, Description: "Full system access across all organizations and events", Display: "System Admin"},
	{Name: RoleOrgAdmin, Scope: ScopeOrganization, Level: 80, Description: "Administers an organization and every event under it", Display: "Org Admin"},
	{Name: RoleOrgViewer, Scope: ScopeOrganization, Level: 60, Description: "Read-only view of an organization", Display: "Org Viewer"},
	{Name: RoleEventAdmin, Scope: ScopeEvent, Level: 40, Description: "Administers a single event", Display: "Event Admin"},
	{Name: RoleResponder, Scope: ScopeEvent, Level: 20, Description: "Triages and responds to incidents for an event", Display: "Responder"},
	{Name: RoleReporter, Scope: ScopeEvent, Level: 10, Description: "Submits incident reports for an event", Display: "Reporter"},
}

// legacyNames maps the human-readable role names still used by older route
// declarations onto the unified catalog names. Defined once here so the
// middleware and admin UI share the same table.
var legacyNames = map[string]string{
	"System Admin": RoleSystemAdmin,
	"SuperAdmin":   RoleSystemAdmin,
	"Org Admin":    RoleOrgAdmin,
	"Org Viewer":   RoleOrgViewer,
	"Event Admin":  RoleEventAdmin,
	"Admin":        RoleEventAdmin,
	"Responder":    RoleResponder,
	"Reporter":     RoleReporter,
}

var displayNames = func() map[string]string {
	m := make(map[string]string, len(Catalog))
	for _, entry := range Catalog {
		m[entry.Name] = entry.Display
	}
	return m
}()

var catalogByName = func() map[string]CatalogEntry {
	m := make(map[string]CatalogEntry, len(Catalog))
	for _, entry := range Catalog {
		m[entry.Name] = entry
	}
	return m
}()

// NormalizeRoleName maps a legacy display name to its canonical catalog
// name. Canonical names pass through unchanged; unknown names are returned
// as-is and will simply never match an assignment.
func NormalizeRoleName(name string) string {
	name = strings.TrimSpace(name)
	if _, ok := catalogByName[name]; ok {
		return name
	}
	if canonical, ok := legacyNames[name]; ok {
		return canonical
	}
	return name
}

// NormalizeRoleNames maps a list of legacy names, preserving order and
// dropping duplicates.
func NormalizeRoleNames(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		canonical := NormalizeRoleName(name)
		if canonical == "" {
			continue
		}
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	return out
}

// DisplayRoleName returns the human-readable form of a canonical role name.
func DisplayRoleName(name string) string {
	if display, ok := displayNames[name]; ok {
		return display
	}
	return name
}

// RoleScope returns the scope class a catalog role is granted at.
func RoleScope(name string) (ScopeType, bool) {
	entry, ok := catalogByName[name]
	if !ok {
		return "", false
	}
	return entry.Scope, true
}
