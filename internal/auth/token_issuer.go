package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const bearerScheme = "bearer"

var (
	ErrMissingSigningSecret = errors.New("token issuer: signing secret required")
	ErrMissingIssuer        = errors.New("token issuer: issuer required")
	ErrMissingAudience      = errors.New("token issuer: audience required")
	ErrInvalidTokenTTL      = errors.New("token issuer: ttl must be positive")
	ErrMissingSubject       = errors.New("token issuer: subject required")
	ErrMissingToken         = errors.New("token issuer: token required")
	ErrInvalidToken         = errors.New("token issuer: invalid token")
	ErrExpiredToken         = errors.New("token issuer: token expired")
	ErrRevokedToken         = errors.New("token issuer: token revoked")
)

// TokenIssuerConfig configures the HS256 token issuer.
type TokenIssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
	Clock         func() time.Time
	// Revocations defaults to an empty in-memory list.
	Revocations *RevocationList
}

// IssuedToken is a signed token and its lifetime.
type IssuedToken struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
	// ExpiresIn is the lifetime in whole seconds.
	ExpiresIn int64
}

// Claims are the validated contents of a token.
type Claims struct {
	Subject   string
	TokenID   string
	ExpiresAt time.Time
}

// TokenIssuer issues, validates and revokes account tokens.
type TokenIssuer struct {
	signingSecret []byte
	issuer        string
	audience      string
	ttl           time.Duration
	clock         func() time.Time
	revocations   *RevocationList
}

// NewTokenIssuer validates the configuration and constructs a TokenIssuer.
func NewTokenIssuer(cfg TokenIssuerConfig) (*TokenIssuer, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSigningSecret
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, ErrMissingIssuer
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		return nil, ErrMissingAudience
	}
	if cfg.TokenTTL <= 0 {
		return nil, ErrInvalidTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	revocations := cfg.Revocations
	if revocations == nil {
		revocations = NewRevocationList()
	}
	return &TokenIssuer{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		audience:      audience,
		ttl:           cfg.TokenTTL,
		clock:         clock,
		revocations:   revocations,
	}, nil
}

// IssueToken produces a signed JWT for subject.
func (i *TokenIssuer) IssueToken(_ context.Context, subject string) (IssuedToken, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return IssuedToken{}, ErrMissingSubject
	}
	tokenID, err := uuid.NewV7()
	if err != nil {
		return IssuedToken{}, fmt.Errorf("token issuer: generate token id: %w", err)
	}

	// NumericDate has second precision; truncate so ExpiresIn matches the claim.
	now := i.clock().UTC().Truncate(time.Second)
	expiresAt := now.Add(i.ttl)

	registered := jwt.RegisteredClaims{
		ID:        tokenID.String(),
		Subject:   subject,
		Issuer:    i.issuer,
		Audience:  []string{i.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, registered).SignedString(i.signingSecret)
	if err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{
		Token:     signed,
		TokenID:   registered.ID,
		ExpiresAt: expiresAt,
		ExpiresIn: int64(expiresAt.Sub(now).Seconds()),
	}, nil
}

// ValidateToken checks signature, issuer, audience, expiry and revocation.
func (i *TokenIssuer) ValidateToken(tokenString string) (Claims, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return Claims{}, ErrMissingToken
	}

	registered := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		registered,
		func(t *jwt.Token) (interface{}, error) {
			return i.signingSecret, nil
		},
		jwt.WithAudience(i.audience),
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if parsed == nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if strings.TrimSpace(registered.Subject) == "" {
		return Claims{}, ErrMissingSubject
	}
	if i.revocations.IsRevoked(registered.ID) {
		return Claims{}, ErrRevokedToken
	}
	return Claims{
		Subject:   registered.Subject,
		TokenID:   registered.ID,
		ExpiresAt: registered.ExpiresAt.Time.UTC(),
	}, nil
}

// Revoke invalidates a previously validated token until it would have expired.
func (i *TokenIssuer) Revoke(claims Claims) {
	if claims.TokenID == "" {
		return
	}
	i.revocations.Revoke(claims.TokenID, claims.ExpiresAt)
}

// PruneRevocations drops revocations of tokens that have expired anyway.
func (i *TokenIssuer) PruneRevocations() int {
	return i.revocations.Prune(i.clock())
}

// ValidateRequest extracts the token from the Authorization header and validates it.
func (i *TokenIssuer) ValidateRequest(r *http.Request) (Claims, error) {
	if r == nil {
		return Claims{}, ErrMissingToken
	}
	return i.ValidateToken(ExtractToken(r.Header.Get("Authorization")))
}

// ExtractToken accepts "Bearer <token>" as well as a bare token.
func ExtractToken(header string) string {
	header = strings.TrimSpace(header)
	scheme, rest, found := strings.Cut(header, " ")
	if found && strings.EqualFold(scheme, bearerScheme) {
		return strings.TrimSpace(rest)
	}
	return header
}
