package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type stubRejectionRecorder struct {
	kinds []string
}

func (s *stubRejectionRecorder) TokenRejected(kind string) {
	s.kinds = append(s.kinds, kind)
}

// capturePrincipal records the principal seen by the downstream handler.
func capturePrincipal(dst **Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*dst = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareValidTokenSetsPrincipal(t *testing.T) {
	codec := newTestCodec(t, time.Hour)
	token, err := codec.Issue("alice", RoleAdmin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	var seen *Principal
	h := NewMiddleware(codec, nil).Wrap(capturePrincipal(&seen))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if seen == nil {
		t.Fatal("expected principal in context")
	}
	if seen.Username != "alice" || seen.Role != RoleAdmin {
		t.Fatalf("unexpected principal: %#v", seen)
	}
}

func TestMiddlewareNoHeaderProceedsUnauthenticated(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	var seen *Principal
	h := NewMiddleware(codec, nil).Wrap(capturePrincipal(&seen))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("filter must not reject; got %d", w.Code)
	}
	if seen != nil {
		t.Fatalf("expected no principal, got %#v", seen)
	}
}

func TestMiddlewareBadTokenDegradesToUnauthenticated(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	expiredCodec := newTestCodec(t, time.Hour)
	expiredCodec.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expiredCodec.Issue("alice", RoleGuest)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	cases := []struct {
		name   string
		header string
		kind   string
	}{
		{"garbage token", "Bearer not.a.token", "malformed"},
		{"expired token", "Bearer " + expiredToken, "expired"},
		{"corrupt header", "Bearer \x00\x01", "malformed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := &stubRejectionRecorder{}
			mw := NewMiddleware(codec, nil)
			mw.SetRejectionRecorder(recorder)

			var seen *Principal
			h := mw.Wrap(capturePrincipal(&seen))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tc.header)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("filter must not reject; got %d", w.Code)
			}
			if seen != nil {
				t.Fatalf("expected no principal, got %#v", seen)
			}
			if len(recorder.kinds) != 1 || recorder.kinds[0] != tc.kind {
				t.Fatalf("expected rejection kind %q, got %v", tc.kind, recorder.kinds)
			}
		})
	}
}

func TestBearerTokenParsing(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Bearer  abc ", "abc"},
		{"Basic dXNlcjpwYXNz", ""},
		{"Bearer", ""},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		if got := bearerToken(req); got != tc.want {
			t.Errorf("bearerToken(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}
