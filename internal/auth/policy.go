package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// AccessLevel is the role requirement attached to a route pattern.
type AccessLevel int

const (
	// LevelPublic routes bypass authorization entirely.
	LevelPublic AccessLevel = iota
	// LevelAuthenticated routes require any valid principal.
	LevelAuthenticated
	// LevelAdmin routes require a principal with the ADMIN role.
	LevelAdmin
)

// Rule maps a route pattern to a required access level. A trailing "*"
// makes the pattern a prefix match; otherwise the match is exact.
type Rule struct {
	Pattern string
	Level   AccessLevel
}

type prefixRule struct {
	prefix string
	level  AccessLevel
}

// Policy is a static table of route access requirements, evaluated after
// the authentication filter has (or has not) populated the principal.
type Policy struct {
	exact    map[string]AccessLevel
	prefixes []prefixRule
	fallback AccessLevel
}

// NewPolicy builds a policy table. Routes matching no rule get the
// fallback level. Longer prefixes win over shorter ones.
func NewPolicy(rules []Rule, fallback AccessLevel) *Policy {
	p := &Policy{
		exact:    make(map[string]AccessLevel, len(rules)),
		fallback: fallback,
	}
	for _, r := range rules {
		if strings.HasSuffix(r.Pattern, "*") {
			p.prefixes = append(p.prefixes, prefixRule{
				prefix: strings.TrimSuffix(r.Pattern, "*"),
				level:  r.Level,
			})
			continue
		}
		p.exact[r.Pattern] = r.Level
	}
	return p
}

// LevelFor returns the access level required for a request path.
func (p *Policy) LevelFor(path string) AccessLevel {
	if level, ok := p.exact[path]; ok {
		return level
	}
	best := -1
	level := p.fallback
	for _, r := range p.prefixes {
		if strings.HasPrefix(path, r.prefix) && len(r.prefix) > best {
			best = len(r.prefix)
			level = r.level
		}
	}
	return level
}

// Wrap enforces the policy: 401 when a protected route has no principal,
// 403 when the principal's role is insufficient. Public routes pass
// through untouched.
func (p *Policy) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		level := p.LevelFor(r.URL.Path)
		if level == LevelPublic {
			next.ServeHTTP(w, r)
			return
		}

		principal := PrincipalFromContext(r.Context())
		if principal == nil {
			writePolicyError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if level == LevelAdmin && principal.Role != RoleAdmin {
			writePolicyError(w, http.StatusForbidden, "insufficient role")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writePolicyError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
