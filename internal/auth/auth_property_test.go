package auth_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aimerfeng/ChallengeHive/internal/auth"
	"github.com/golang-jwt/jwt/v5"
	"pgregory.net/rapid"
)

const testSecret = "test-secret-for-property-tests"

// generateValidEmail generates a valid email address for testing
func generateValidEmail(t *rapid.T) string {
	localPart := rapid.StringMatching(`[a-z]{5,10}`).Draw(t, "localPart")
	domain := rapid.StringMatching(`[a-z]{3,8}`).Draw(t, "domain")
	tld := rapid.SampledFrom([]string{"com", "org", "net", "io"}).Draw(t, "tld")
	return fmt.Sprintf("%s@%s.%s", localPart, domain, tld)
}

// TestProperty_IssuedTokenVerifiesToItsEmail checks that any token issued by the
// verifier resolves back to the same normalized email.
func TestProperty_IssuedTokenVerifiesToItsEmail(t *testing.T) {
	v := auth.NewJWTVerifier(testSecret, "challengehive")

	rapid.Check(t, func(rt *rapid.T) {
		email := generateValidEmail(rt)
		if rapid.Bool().Draw(rt, "upper") {
			email = strings.ToUpper(email)
		}

		token, err := v.Issue(email, time.Hour)
		if err != nil {
			rt.Fatalf("issue: %v", err)
		}

		got, err := v.Verify(context.Background(), token)
		if err != nil {
			rt.Fatalf("PROPERTY VIOLATION: issued token rejected: %v", err)
		}
		if got != strings.ToLower(email) {
			rt.Fatalf("PROPERTY VIOLATION: expected %s, got %s", strings.ToLower(email), got)
		}
	})
}

// TestProperty_TamperedTokenRejected checks that flipping any signature byte invalidates the token
func TestProperty_TamperedTokenRejected(t *testing.T) {
	v := auth.NewJWTVerifier(testSecret, "challengehive")

	rapid.Check(t, func(rt *rapid.T) {
		token, err := v.Issue(generateValidEmail(rt), time.Hour)
		if err != nil {
			rt.Fatalf("issue: %v", err)
		}

		sigStart := strings.LastIndex(token, ".") + 1
		idx := rapid.IntRange(sigStart, len(token)-2).Draw(rt, "idx")
		b := []byte(token)
		if b[idx] == 'A' {
			b[idx] = 'B'
		} else {
			b[idx] = 'A'
		}

		if _, err := v.Verify(context.Background(), string(b)); err == nil {
			rt.Fatal("PROPERTY VIOLATION: tampered token accepted")
		}
	})
}

func TestJWTVerifier_Rejections(t *testing.T) {
	v := auth.NewJWTVerifier(testSecret, "challengehive")
	ctx := context.Background()

	expired, err := v.Issue("a@example.com", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Verify(ctx, expired); err != auth.ErrTokenExpired {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}

	other := auth.NewJWTVerifier("another-secret", "challengehive")
	foreign, _ := other.Issue("a@example.com", time.Hour)
	if _, err := v.Verify(ctx, foreign); err != auth.ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for foreign signature, got %v", err)
	}

	wrongIssuer, _ := auth.NewJWTVerifier(testSecret, "someone-else").Issue("a@example.com", time.Hour)
	if _, err := v.Verify(ctx, wrongIssuer); err != auth.ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for wrong issuer, got %v", err)
	}

	noEmail := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "challengehive",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, _ := noEmail.SignedString([]byte(testSecret))
	if _, err := v.Verify(ctx, signed); err != auth.ErrNoEmail {
		t.Errorf("expected ErrNoEmail, got %v", err)
	}

	if _, err := v.Verify(ctx, ""); err != auth.ErrMissingToken {
		t.Errorf("expected ErrMissingToken, got %v", err)
	}
	if _, err := v.Verify(ctx, "not-a-jwt"); err != auth.ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for garbage, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer xyz", "xyz", true},
		{"Bearer   padded  ", "padded", true},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
		{"", "", false},
		{"abc.def.ghi", "", false},
	}
	for _, tt := range tests {
		token, ok := auth.BearerToken(tt.header)
		if token != tt.token || ok != tt.ok {
			t.Errorf("BearerToken(%q) = (%q, %v), want (%q, %v)", tt.header, token, ok, tt.token, tt.ok)
		}
	}
}
