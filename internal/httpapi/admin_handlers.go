package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dipendra-mule/conducky-sub002/internal/audit"
	"github.com/dipendra-mule/conducky-sub002/internal/settings"
)

func (a *API) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	value, err := a.settings.Get(r.Context(), r.PathValue("key"))
	if err != nil {
		handleSettingsError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": r.PathValue("key"), "value": value})
}

func (a *API) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "request body is required")
		return
	}
	if err := a.settings.Set(r.Context(), r.PathValue("key"), string(body)); err != nil {
		handleSettingsError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMigrateSecrets(w http.ResponseWriter, r *http.Request) {
	migrated, err := a.settings.MigrateLegacySecrets(r.Context())
	if err != nil {
		handleSettingsError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"migrated": migrated})
}

func (a *API) handleAuditSearch(w http.ResponseWriter, r *http.Request) {
	q := audit.Query{
		ActorID: strings.TrimSpace(r.URL.Query().Get("actor_id")),
		EventID: strings.TrimSpace(r.URL.Query().Get("event_id")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("actions")); raw != "" {
		for _, action := range strings.Split(raw, ",") {
			if action = strings.TrimSpace(action); action != "" {
				q.Actions = append(q.Actions, action)
			}
		}
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be RFC 3339")
			return
		}
		q.From = &ts
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be RFC 3339")
			return
		}
		q.To = &ts
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		q.Limit = n
	}

	entries, err := a.audit.Search(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func handleSettingsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, settings.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, settings.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, msgInternalError)
	}
}
