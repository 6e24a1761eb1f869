package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestProofIssuer_IssueVerificationProof(t *testing.T) {
	issuer, err := NewProofIssuer("test-secret", "phone-verify", 30*time.Minute)
	if err != nil {
		t.Fatalf("NewProofIssuer returned error: %v", err)
	}
	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	issuer.WithClock(func() time.Time { return fixed })

	signed, err := issuer.IssueVerificationProof("user-1", "ver-1", true)
	if err != nil {
		t.Fatalf("IssueVerificationProof returned error: %v", err)
	}

	parsed, err := jwt.Parse(signed, func(token *jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("parse proof: %v", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatalf("unexpected claims type %T", parsed.Claims)
	}
	if claims["sub"] != "user-1" {
		t.Fatalf("expected sub user-1, got %v", claims["sub"])
	}
	if claims["verification_id"] != "ver-1" {
		t.Fatalf("expected verification_id ver-1, got %v", claims["verification_id"])
	}
	if claims["phone_verified"] != true {
		t.Fatalf("expected phone_verified claim")
	}
	if claims["new_user"] != true {
		t.Fatalf("expected new_user claim")
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		t.Fatalf("expiration claim: %v", err)
	}
	if got := exp.Time; !got.Equal(fixed.Add(30 * time.Minute)) {
		t.Fatalf("expected exp %v, got %v", fixed.Add(30*time.Minute), got)
	}
}

func TestProofIssuer_RequiresSecret(t *testing.T) {
	if _, err := NewProofIssuer("", "phone-verify", time.Hour); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestProofIssuer_RequiresUserID(t *testing.T) {
	issuer, err := NewProofIssuer("test-secret", "phone-verify", time.Hour)
	if err != nil {
		t.Fatalf("NewProofIssuer returned error: %v", err)
	}
	if _, err := issuer.IssueVerificationProof("", "ver-1", false); err == nil {
		t.Fatalf("expected error for empty user id")
	}
}
