package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dipendra-mule/conducky-sub002/internal/audit"
	"github.com/dipendra-mule/conducky-sub002/internal/auth"
	"github.com/dipendra-mule/conducky-sub002/internal/directory"
)

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      *directory.User `json:"user"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.directory.RegisterUser(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		handleDirectoryError(w, err)
		return
	}
	a.audit.Record(r.Context(), audit.Entry{
		Action:     "user.register",
		ActorID:    user.ID,
		TargetType: "user",
		TargetID:   user.ID,
	})
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	// Unknown accounts and wrong passwords get the same answer.
	user, err := a.directory.UserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	assignments, err := a.resolver.AllRoles(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	roles := make([]string, 0, len(assignments))
	for _, assignment := range assignments {
		roles = append(roles, assignment.RoleName)
	}

	token, expiresAt, err := a.sessions.Issue(user.ID, roles)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	a.audit.Record(r.Context(), audit.Entry{
		Action:     "user.login",
		ActorID:    user.ID,
		TargetType: "user",
		TargetID:   user.ID,
	})
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgNotAuthenticated)
		return
	}
	user, err := a.directory.User(r.Context(), userID)
	if err != nil {
		handleDirectoryError(w, err)
		return
	}
	assignments, err := a.resolver.AllRoles(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":  user,
		"roles": assignments,
	})
}
