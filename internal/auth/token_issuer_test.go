package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestIssuer(clock func() time.Time) *TokenIssuer {
	return NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("test-secret"),
		Issuer:        "divelog-auth",
		Audience:      "divelog-api",
		TokenTTL:      time.Hour,
		Clock:         clock,
	})
}

func TestIssueAndValidateTokenRoundTrip(t *testing.T) {
	now := time.Unix(1770000000, 0).UTC()
	issuer := newTestIssuer(func() time.Time { return now })

	token, expiresIn, err := issuer.IssueToken(context.Background(), "account-1", "super@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expiresIn != 3600 {
		t.Fatalf("expected 3600 second expiry, got %d", expiresIn)
	}

	claims, err := issuer.ValidateToken(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "account-1" {
		t.Fatalf("unexpected subject %s", claims.Subject)
	}
	if claims.Email != "super@example.com" {
		t.Fatalf("unexpected email %s", claims.Email)
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	now := time.Unix(1770000000, 0).UTC()
	issuer := newTestIssuer(func() time.Time { return now })

	token, _, err := issuer.IssueToken(context.Background(), "account-1", "super@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	later := newTestIssuer(func() time.Time { return now.Add(2 * time.Hour) })
	if _, err := later.ValidateToken(token); err == nil {
		t.Fatalf("expected expiry rejection")
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	now := time.Unix(1770000000, 0).UTC()
	issuer := newTestIssuer(func() time.Time { return now })

	token, _, err := issuer.IssueToken(context.Background(), "account-1", "super@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	other := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("different-secret"),
		Issuer:        "divelog-auth",
		Audience:      "divelog-api",
		Clock:         func() time.Time { return now },
	})
	if _, err := other.ValidateToken(token); err == nil {
		t.Fatalf("expected signature rejection")
	}
}

func TestValidateTokenRejectsUnexpectedAlgorithm(t *testing.T) {
	now := time.Unix(1770000000, 0).UTC()
	issuer := newTestIssuer(func() time.Time { return now })

	claims := Claims{
		Email: "super@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "account-1",
			Issuer:    "divelog-auth",
			Audience:  []string{"divelog-api"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := issuer.ValidateToken(token); err == nil {
		t.Fatalf("expected algorithm rejection")
	}
}

func TestIssueTokenRequiresSubject(t *testing.T) {
	issuer := newTestIssuer(nil)
	if _, _, err := issuer.IssueToken(context.Background(), "", "super@example.com"); err == nil {
		t.Fatalf("expected missing subject rejection")
	}
}
