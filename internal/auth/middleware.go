package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type contextKey string

const principalContextKey contextKey = "principal"

// Principal is the authenticated identity attached to a request. It lives
// only for the lifetime of one request and is never persisted.
type Principal struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// PrincipalFromContext retrieves the authenticated principal, or nil when
// the request carried no valid token.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey).(*Principal)
	return p
}

// ContextWithPrincipal attaches a principal to the context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// TokenRejectionRecorder observes rejected bearer tokens, by kind.
type TokenRejectionRecorder interface {
	TokenRejected(kind string)
}

// Middleware is the per-request authentication filter. It extracts a bearer
// token, validates it, and attaches the principal to the request context.
// It never writes an error response: a missing, malformed, or expired token
// just leaves the request unauthenticated, and the authorization layer
// decides whether that matters for the route.
type Middleware struct {
	codec    *TokenCodec
	logger   *zap.Logger
	recorder TokenRejectionRecorder
}

// NewMiddleware builds the authentication filter.
func NewMiddleware(codec *TokenCodec, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{codec: codec, logger: logger}
}

// SetRejectionRecorder wires an observer for rejected tokens.
func (m *Middleware) SetRejectionRecorder(r TokenRejectionRecorder) {
	m.recorder = r
}

// Wrap returns the wrapped HTTP handler.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.codec.Validate(token)
		if err != nil {
			kind := "malformed"
			if errors.Is(err, ErrTokenExpired) {
				kind = "expired"
			}
			if m.recorder != nil {
				m.recorder.TokenRejected(kind)
			}
			m.logger.Debug("bearer token rejected",
				zap.String("reason", kind),
				zap.String("path", r.URL.Path))
			next.ServeHTTP(w, r)
			return
		}

		ctx := ContextWithPrincipal(r.Context(), &Principal{
			Username: claims.Username,
			Role:     claims.Role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// Returns "" for a missing or malformed header.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
