// Package identity turns bearer tokens of the external authorization collaborator into lending callers.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	claimRole    = "role"
	bearerPrefix = "bearer "
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrEmptySecret  = errors.New("empty token secret")
)

// TokenVerifier checks HS256 tokens carrying the user id in "sub" and the role in "role".
type TokenVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewTokenVerifier creates a verifier for tokens signed with secret.
func NewTokenVerifier(secret string) (TokenVerifier, error) {
	if secret == "" {
		return TokenVerifier{}, ErrEmptySecret
	}

	return TokenVerifier{secret: []byte(secret), now: time.Now}, nil
}

// WithClock returns a copy of the verifier that checks expiry against now.
func (v TokenVerifier) WithClock(now func() time.Time) TokenVerifier {
	v.now = now
	return v
}

// Issue signs a token for the caller, valid for ttl.
func (v TokenVerifier) Issue(caller lending.Caller, ttl time.Duration) (string, error) {
	issuedAt := v.now()
	claims := jwt.MapClaims{
		"sub":     caller.UserID.String(),
		claimRole: string(caller.Role),
		"iat":     issuedAt.Unix(),
		"exp":     issuedAt.Add(ttl).Unix(),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify parses the token, with or without a "Bearer " prefix, and returns the caller it identifies.
// Every failure wraps lending.ErrForbidden.
func (v TokenVerifier) Verify(authorization string) (lending.Caller, error) {
	tokenString := strings.TrimSpace(authorization)
	if strings.HasPrefix(strings.ToLower(tokenString), bearerPrefix) {
		tokenString = strings.TrimSpace(tokenString[len(bearerPrefix):])
	}

	if tokenString == "" {
		return lending.Caller{}, errors.Join(lending.ErrForbidden, ErrMissingToken)
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(*jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return lending.Caller{}, errors.Join(lending.ErrForbidden, ErrInvalidToken, err)
	}

	subject, err := claims.GetSubject()
	if err != nil {
		return lending.Caller{}, errors.Join(lending.ErrForbidden, ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(subject)
	if err != nil {
		return lending.Caller{}, errors.Join(lending.ErrForbidden, ErrInvalidToken, fmt.Errorf("subject: %w", err))
	}

	roleClaim, _ := claims[claimRole].(string)
	role, err := lending.ParseRole(strings.ToUpper(roleClaim))
	if err != nil {
		return lending.Caller{}, errors.Join(ErrInvalidToken, err)
	}

	return lending.Caller{UserID: userID, Role: role}, nil
}
