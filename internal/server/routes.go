package server

import (
	"net/http"

	"github.com/SeanM743/PersonalWebsite-sub006/internal/auth"
)

// routePolicy is the static authorization table. Evaluated after the
// authentication filter; unauthenticated requests to non-public routes
// get 401, authenticated requests with insufficient role get 403.
func routePolicy() *auth.Policy {
	return auth.NewPolicy([]auth.Rule{
		{Pattern: "/healthz", Level: auth.LevelPublic},
		{Pattern: "/version", Level: auth.LevelPublic},
		{Pattern: "/api/auth/login", Level: auth.LevelPublic},

		{Pattern: "/api/auth/*", Level: auth.LevelAuthenticated},
		{Pattern: "/api/monitoring/reset", Level: auth.LevelAdmin},
		{Pattern: "/api/monitoring/*", Level: auth.LevelAuthenticated},

		{Pattern: "/api/users*", Level: auth.LevelAdmin},
		{Pattern: "/api/audit", Level: auth.LevelAdmin},
		{Pattern: "/metrics", Level: auth.LevelAdmin},
	}, auth.LevelAuthenticated)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Health and version (public)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /version", s.handleVersion)

	// Auth
	loginLimit := auth.LoginRateLimitMiddleware(s.limiter)
	mux.Handle("POST /api/auth/login", loginLimit(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("GET /api/auth/me", s.handleMe)
	mux.HandleFunc("GET /api/auth/validate", s.handleValidate)

	// User management (admin)
	mux.HandleFunc("GET /api/users", s.handleListUsers)
	mux.HandleFunc("POST /api/users", s.handleCreateUser)
	mux.HandleFunc("PUT /api/users/{username}/password", s.handleUpdatePassword)
	mux.HandleFunc("DELETE /api/users/{username}", s.handleDeleteUser)

	// Audit log (admin)
	mux.HandleFunc("GET /api/audit", s.handleAuditQuery)

	// Monitoring
	mux.HandleFunc("GET /api/monitoring/status", s.handleMonitoringStatus)
	mux.HandleFunc("POST /api/monitoring/reset", s.handleMonitoringReset)
	mux.Handle("GET /metrics", s.metrics.Handler())
}
