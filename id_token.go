package actions

import (
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/golang-jwt/jwt/v5"
)

// IDTokenClaims are the identity claims carried by a provider ID token.
type IDTokenClaims struct {
	jwt.RegisteredClaims
	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
}

// UID returns the provider uid, preferring user_id over sub.
func (c *IDTokenClaims) UID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// Issued returns the iat claim, zero when absent.
func (c *IDTokenClaims) Issued() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// PendingUser maps the claims to a pending credential user.
func (c *IDTokenClaims) PendingUser(idToken string) *PendingCredentialUser {
	return &PendingCredentialUser{
		UID:           c.UID(),
		Email:         c.Email,
		DisplayName:   c.Name,
		IDToken:       idToken,
		EmailVerified: c.EmailVerified,
		CreatedAt:     c.Issued(),
	}
}

// DecodeIDToken reads the claims of an ID token WITHOUT checking its
// signature. Callers must verify the token with the provider before
// trusting anything decoded here.
func DecodeIDToken(idToken string) (*IDTokenClaims, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, goerrors.New("id token is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	claims := &IDTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed id token").
			WithCode(goerrors.CodeBadRequest)
	}

	if claims.UID() == "" {
		return nil, goerrors.New("id token has no subject", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	return claims, nil
}
