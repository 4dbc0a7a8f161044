package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func newTestIssuer(t *testing.T, clock *testClock) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("super-secret"),
		Issuer:        "memcard-auth",
		Audience:      "memcard-api",
		TokenTTL:      30 * time.Minute,
		Clock:         clock.Now,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return issuer
}

func TestTokenIssuerIssuesTokens(t *testing.T) {
	clock := &testClock{now: time.Now()}
	issuer := newTestIssuer(t, clock)

	issued, err := issuer.IssueToken(context.Background(), "alice")
	if err != nil {
		t.Fatalf("expected successful issuance: %v", err)
	}
	if issued.ExpiresIn != int64((30 * time.Minute).Seconds()) {
		t.Fatalf("unexpected expiry seconds %d", issued.ExpiresIn)
	}
	if issued.TokenID == "" {
		t.Fatalf("expected a token id")
	}

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.NewParser().ParseWithClaims(issued.Token, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("super-secret"), nil
	})
	if err != nil {
		t.Fatalf("failed to parse generated token: %v", err)
	}
	if claims.Subject != "alice" {
		t.Fatalf("unexpected subject %s", claims.Subject)
	}
	if claims.Issuer != "memcard-auth" {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if len(claims.Audience) == 0 || claims.Audience[0] != "memcard-api" {
		t.Fatalf("unexpected audience %#v", claims.Audience)
	}
	if claims.ID != issued.TokenID {
		t.Fatalf("expected jti %s, got %s", issued.TokenID, claims.ID)
	}
}

func TestTokenIssuerValidatesIssuedTokens(t *testing.T) {
	clock := &testClock{now: time.Now()}
	issuer := newTestIssuer(t, clock)

	issued, err := issuer.IssueToken(context.Background(), "bob")
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	claims, err := issuer.ValidateToken(issued.Token)
	if err != nil {
		t.Fatalf("expected validation success: %v", err)
	}
	if claims.Subject != "bob" || claims.TokenID != issued.TokenID {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := issuer.ValidateToken("invalid.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for malformed token, got %v", err)
	}
	if _, err := issuer.ValidateToken("  "); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestTokenIssuerRejectsExpiredTokens(t *testing.T) {
	clock := &testClock{now: time.Now()}
	issuer := newTestIssuer(t, clock)

	issued, err := issuer.IssueToken(context.Background(), "carol")
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}
	clock.now = clock.now.Add(31 * time.Minute)

	if _, err := issuer.ValidateToken(issued.Token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestTokenIssuerRejectsForeignTokens(t *testing.T) {
	clock := &testClock{now: time.Now()}
	issuer := newTestIssuer(t, clock)
	other, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("other-secret"),
		Issuer:        "memcard-auth",
		Audience:      "memcard-api",
		TokenTTL:      time.Minute,
		Clock:         clock.Now,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	issued, err := other.IssueToken(context.Background(), "mallory")
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}
	if _, err := issuer.ValidateToken(issued.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for a foreign signature, got %v", err)
	}
}

func TestTokenIssuerRevocation(t *testing.T) {
	clock := &testClock{now: time.Now()}
	revocations := NewRevocationList()
	issuer, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("super-secret"),
		Issuer:        "memcard-auth",
		Audience:      "memcard-api",
		TokenTTL:      time.Minute,
		Clock:         clock.Now,
		Revocations:   revocations,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	issued, err := issuer.IssueToken(context.Background(), "dave")
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}
	claims, err := issuer.ValidateToken(issued.Token)
	if err != nil {
		t.Fatalf("expected validation success: %v", err)
	}

	issuer.Revoke(claims)
	if _, err := issuer.ValidateToken(issued.Token); !errors.Is(err, ErrRevokedToken) {
		t.Fatalf("expected ErrRevokedToken, got %v", err)
	}

	if removed := issuer.PruneRevocations(); removed != 0 {
		t.Fatalf("expected no pruning before expiry, removed %d", removed)
	}
	clock.now = clock.now.Add(2 * time.Minute)
	if removed := issuer.PruneRevocations(); removed != 1 {
		t.Fatalf("expected one pruned revocation, removed %d", removed)
	}
	if revocations.Len() != 0 {
		t.Fatalf("expected empty revocation list, got %d", revocations.Len())
	}
}

func TestValidateRequestAcceptsBearerAndBareTokens(t *testing.T) {
	clock := &testClock{now: time.Now()}
	issuer := newTestIssuer(t, clock)
	issued, err := issuer.IssueToken(context.Background(), "erin")
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	for _, header := range []string{"Bearer " + issued.Token, "bearer  " + issued.Token, issued.Token} {
		request := httptest.NewRequest("GET", "/api/cards", nil)
		request.Header.Set("Authorization", header)
		claims, err := issuer.ValidateRequest(request)
		if err != nil {
			t.Fatalf("expected %q to validate: %v", header, err)
		}
		if claims.Subject != "erin" {
			t.Fatalf("unexpected subject %s", claims.Subject)
		}
	}

	request := httptest.NewRequest("GET", "/api/cards", nil)
	if _, err := issuer.ValidateRequest(request); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken without header, got %v", err)
	}
}

func TestNewTokenIssuerValidatesConfig(t *testing.T) {
	testCases := []struct {
		name   string
		config TokenIssuerConfig
		want   error
	}{
		{name: "secret", config: TokenIssuerConfig{Issuer: "i", Audience: "a", TokenTTL: time.Minute}, want: ErrMissingSigningSecret},
		{name: "issuer", config: TokenIssuerConfig{SigningSecret: []byte("s"), Audience: "a", TokenTTL: time.Minute}, want: ErrMissingIssuer},
		{name: "audience", config: TokenIssuerConfig{SigningSecret: []byte("s"), Issuer: "i", Audience: " ", TokenTTL: time.Minute}, want: ErrMissingAudience},
		{name: "ttl", config: TokenIssuerConfig{SigningSecret: []byte("s"), Issuer: "i", Audience: "a"}, want: ErrInvalidTokenTTL},
	}
	for _, testCase := range testCases {
		if _, err := NewTokenIssuer(testCase.config); !errors.Is(err, testCase.want) {
			t.Fatalf("%s: expected %v, got %v", testCase.name, testCase.want, err)
		}
	}
}

func TestIssueTokenRequiresSubject(t *testing.T) {
	issuer := newTestIssuer(t, &testClock{now: time.Now()})
	if _, err := issuer.IssueToken(context.Background(), " "); !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("expected ErrMissingSubject, got %v", err)
	}
}
