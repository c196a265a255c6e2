package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef") // 32 bytes
}

func newTestCodec(t *testing.T, ttl time.Duration) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec(testKey(), ttl)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	return codec
}

func TestNewTokenCodecRejectsShortKey(t *testing.T) {
	if _, err := NewTokenCodec([]byte("too-short"), time.Hour); err == nil {
		t.Fatal("expected error for short signing key")
	}
}

func TestNewTokenCodecRejectsZeroTTL(t *testing.T) {
	if _, err := NewTokenCodec(testKey(), 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestIssueValidateRoundTrip(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	token, err := codec.Issue("alice", RoleAdmin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if parts := strings.Split(token, "."); len(parts) != 3 {
		t.Fatalf("expected three-part token, got %d parts", len(parts))
	}

	claims, err := codec.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Username != "alice" {
		t.Errorf("expected sub=alice, got %q", claims.Username)
	}
	if claims.Role != RoleAdmin {
		t.Errorf("expected role=ADMIN, got %q", claims.Role)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt); got != time.Hour {
		t.Errorf("expected exp-iat=1h, got %s", got)
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	codec := newTestCodec(t, time.Hour)
	token, err := codec.Issue("bob", RoleGuest)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	first, err := codec.Validate(token)
	if err != nil {
		t.Fatalf("first Validate: %v", err)
	}
	second, err := codec.Validate(token)
	if err != nil {
		t.Fatalf("second Validate: %v", err)
	}
	if *first != *second {
		t.Fatalf("validation not idempotent: %#v vs %#v", first, second)
	}
}

func TestValidateExpiryBoundary(t *testing.T) {
	issued := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	codec := newTestCodec(t, time.Hour)
	codec.now = func() time.Time { return issued }

	token, err := codec.Issue("alice", RoleGuest)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	exp := issued.Add(time.Hour)

	cases := []struct {
		name    string
		now     time.Time
		expired bool
	}{
		{"well before expiry", exp.Add(-time.Minute), false},
		{"one microsecond before", exp.Add(-time.Microsecond), false},
		{"exactly at expiry", exp, true},
		{"after expiry", exp.Add(time.Second), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			codec.now = func() time.Time { return tc.now }
			_, err := codec.Validate(token)
			if tc.expired {
				if !errors.Is(err, ErrTokenExpired) {
					t.Fatalf("expected ErrTokenExpired, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected valid token, got %v", err)
			}
		})
	}
}

func TestValidateTamperedSignature(t *testing.T) {
	codec := newTestCodec(t, time.Hour)
	token, err := codec.Issue("alice", RoleAdmin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	dot := strings.LastIndex(token, ".")
	sig := []byte(token[dot+1:])

	// Flip a byte at every position of the signature segment; none may validate.
	for i := range sig {
		mutated := make([]byte, len(sig))
		copy(mutated, sig)
		if mutated[i] == 'A' {
			mutated[i] = 'B'
		} else {
			mutated[i] = 'A'
		}
		tampered := token[:dot+1] + string(mutated)
		if tampered == token {
			continue
		}
		if _, err := codec.Validate(tampered); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("byte %d: expected ErrTokenMalformed, got %v", i, err)
		}
	}

	// Sweep the final character through the whole base64url alphabet. An
	// HS256 signature leaves spare bits in the last character, so some of
	// these mutations decode to the same signature bytes; strict decoding
	// must still reject them.
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	last := sig[len(sig)-1]
	for _, c := range []byte(alphabet) {
		if c == last {
			continue
		}
		tampered := token[:len(token)-1] + string(c)
		if _, err := codec.Validate(tampered); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("last char %q->%q: expected ErrTokenMalformed, got %v", last, c, err)
		}
	}
}

func TestValidateWrongKey(t *testing.T) {
	codec := newTestCodec(t, time.Hour)
	other, err := NewTokenCodec([]byte("ffffffffffffffffffffffffffffffff"), time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}

	token, err := other.Issue("alice", RoleAdmin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := codec.Validate(token); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed for foreign key, got %v", err)
	}
}

func TestValidateGarbage(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	for _, token := range []string{
		"",
		"not-a-token",
		"a.b",
		"a.b.c",
		"eyJhbGciOiJub25lIn0.eyJzdWIiOiJhbGljZSJ9.", // alg=none
	} {
		if _, err := codec.Validate(token); !errors.Is(err, ErrTokenMalformed) {
			t.Errorf("Validate(%q): expected ErrTokenMalformed, got %v", token, err)
		}
	}
}

func TestValidateRejectsUnknownRole(t *testing.T) {
	codec := newTestCodec(t, time.Hour)
	token, err := codec.Issue("alice", Role("SUPERUSER"))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := codec.Validate(token); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed for unknown role, got %v", err)
	}
}
