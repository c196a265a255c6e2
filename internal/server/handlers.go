package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SeanM743/PersonalWebsite-sub006/internal/audit"
	"github.com/SeanM743/PersonalWebsite-sub006/internal/auth"
	"github.com/SeanM743/PersonalWebsite-sub006/internal/users"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string    `json:"token"`
	Username string    `json:"username"`
	Role     auth.Role `json:"role"`
}

// handleLogin authenticates a username/password pair and returns a bearer
// token. Unknown-username and wrong-password failures share one response.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, codeMalformedRequest, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeJSONError(w, http.StatusBadRequest, codeMalformedRequest, "username and password are required")
		return
	}

	issued, err := s.authSvc.Authenticate(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()
			s.auditStore.Record(audit.Event{
				Type:    audit.EventLoginFailed,
				Actor:   req.Username,
				Summary: "Login failed for " + req.Username,
				Detail:  map[string]string{"remote_addr": r.RemoteAddr},
			})
			writeJSONError(w, http.StatusUnauthorized, codeInvalidCredentials, "invalid username or password")
			return
		}

		s.metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		s.logger.Error("login error", zap.String("username", req.Username), zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, codeInternal, "authentication service unavailable")
		return
	}

	s.metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	s.auditStore.Record(audit.Event{
		Type:    audit.EventLoginSuccess,
		Actor:   issued.Username,
		Summary: "Login succeeded for " + issued.Username,
		Detail:  map[string]string{"role": string(issued.Role), "remote_addr": r.RemoteAddr},
	})

	writeJSON(w, http.StatusOK, loginResponse{
		Token:    issued.Token,
		Username: issued.Username,
		Role:     issued.Role,
	})
}

// handleMe returns the authenticated identity. The authorization policy
// guarantees a principal is present by the time this runs.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		writeJSONError(w, http.StatusUnauthorized, codeInvalidCredentials, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, principal)
}

// handleValidate is a lightweight token probe for the frontend. Reaching
// the handler at all means the token passed the filter and the policy.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		writeJSONError(w, http.StatusUnauthorized, codeInvalidCredentials, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "username": principal.Username})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := s.userStore.List()
	if err != nil {
		s.logger.Error("list users", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, codeInternal, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": list, "total": len(list)})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, codeMalformedRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Username) == "" || body.Password == "" {
		writeJSONError(w, http.StatusBadRequest, codeMalformedRequest, "username and password are required")
		return
	}
	if body.Role == "" {
		body.Role = string(auth.RoleGuest)
	}
	if !auth.ValidRole(body.Role) {
		writeJSONError(w, http.StatusBadRequest, codeMalformedRequest, "role must be ADMIN or GUEST")
		return
	}

	u, err := s.userStore.Create(body.Username, body.Password, auth.Role(body.Role))
	if err != nil {
		if errors.Is(err, users.ErrUsernameAlreadyUsed) {
			writeJSONError(w, http.StatusConflict, codeConflict, "username already exists")
			return
		}
		s.logger.Error("create user", zap.String("username", body.Username), zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, codeInternal, "failed to create user")
		return
	}

	s.auditStore.Emit(audit.EventUserCreated, actorName(r), "Created user "+u.Username+" with role "+string(u.Role))
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Password == "" {
		writeJSONError(w, http.StatusBadRequest, codeMalformedRequest, "password is required")
		return
	}

	if err := s.userStore.UpdatePassword(username, body.Password); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			writeJSONError(w, http.StatusNotFound, codeNotFound, "user not found")
			return
		}
		s.logger.Error("update password", zap.String("username", username), zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, codeInternal, "failed to update password")
		return
	}

	s.auditStore.Emit(audit.EventPasswordChanged, actorName(r), "Password changed for "+username)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	// The last admin cannot delete itself out of the system.
	if principal := auth.PrincipalFromContext(r.Context()); principal != nil && principal.Username == username {
		writeJSONError(w, http.StatusBadRequest, codeMalformedRequest, "cannot delete your own account")
		return
	}

	if err := s.userStore.Delete(username); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			writeJSONError(w, http.StatusNotFound, codeNotFound, "user not found")
			return
		}
		s.logger.Error("delete user", zap.String("username", username), zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, codeInternal, "failed to delete user")
		return
	}

	s.auditStore.Emit(audit.EventUserDeleted, actorName(r), "Deleted user "+username)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAuditQuery(w http.ResponseWriter, r *http.Request) {
	f := audit.Filter{
		Type:  audit.EventType(r.URL.Query().Get("type")),
		Actor: r.URL.Query().Get("actor"),
		Limit: 100,
	}
	events := s.auditStore.Query(f)
	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "total": len(events)})
}

func (s *Server) handleMonitoringStatus(w http.ResponseWriter, r *http.Request) {
	userCount, err := s.userStore.Count()
	if err != nil {
		s.logger.Error("monitoring status", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, codeInternal, "failed to read status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"version":      Version,
		"uptime":       time.Since(s.startTime).Round(time.Second).String(),
		"users":        userCount,
		"audit_events": s.auditStore.Count(),
	})
}

func (s *Server) handleMonitoringReset(w http.ResponseWriter, r *http.Request) {
	s.metrics.Reset()
	s.auditStore.Emit(audit.EventMetricsReset, actorName(r), "Metrics reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": Version,
		"commit":  Commit,
		"date":    Date,
	})
}

func actorName(r *http.Request) string {
	if principal := auth.PrincipalFromContext(r.Context()); principal != nil {
		return principal.Username
	}
	return "system"
}

func generatePassword() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
