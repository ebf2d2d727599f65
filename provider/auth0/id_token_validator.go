package auth0

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	actions "github.com/goliatone/go-auth-actions"
	goerrors "github.com/goliatone/go-errors"
)

// TextCodeInvalidIDToken tags ID tokens rejected by the validator.
const TextCodeInvalidIDToken = "AUTH0_INVALID_ID_TOKEN"

// ErrInvalidIDToken is returned for ID tokens that fail validation.
var ErrInvalidIDToken = goerrors.New("invalid id token", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidIDToken).
	WithCode(goerrors.CodeUnauthorized)

// IDTokenClaims holds the profile claims of an Auth0 ID token.
type IDTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Nickname      string `json:"nickname"`
}

// Validate satisfies validator.CustomClaims.
func (c *IDTokenClaims) Validate(ctx context.Context) error {
	return nil
}

// DisplayName prefers the full name over the nickname.
func (c *IDTokenClaims) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Nickname
}

// IDTokenValidator checks Auth0 issued ID tokens against the tenant JWKS and
// turns them into pending credential users.
type IDTokenValidator struct {
	config    Config
	validator *validator.Validator
}

// NewIDTokenValidator creates a new Auth0 ID token validator.
func NewIDTokenValidator(cfg Config) (*IDTokenValidator, error) {
	issuer := cfg.issuerURL()
	if issuer == "" {
		return nil, fmt.Errorf("auth0: issuer or domain is required")
	}

	issuerURL, err := url.Parse(issuer)
	if err != nil {
		return nil, fmt.Errorf("auth0: invalid issuer URL: %w", err)
	}
	if issuerURL.Scheme == "" || issuerURL.Host == "" {
		return nil, fmt.Errorf("auth0: invalid issuer URL: %s", issuer)
	}

	audience := cfg.audience()
	if len(audience) == 0 {
		return nil, fmt.Errorf("auth0: client id or audience is required")
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}

	provider := jwks.NewCachingProvider(issuerURL, cacheTTL)

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		audience,
		validator.WithCustomClaims(func() validator.CustomClaims {
			return &IDTokenClaims{}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("auth0: failed to create validator: %w", err)
	}

	return &IDTokenValidator{
		config:    cfg,
		validator: jwtValidator,
	}, nil
}

// ResolvePendingUser validates idToken and maps its claims. It matches
// actions.PendingUserResolver.
func (v *IDTokenValidator) ResolvePendingUser(ctx context.Context, idToken string) (*actions.PendingCredentialUser, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, ErrInvalidIDToken
	}

	token, err := v.validator.ValidateToken(ctx, idToken)
	if err != nil {
		return nil, normalizeValidationError(err)
	}

	validated, ok := token.(*validator.ValidatedClaims)
	if !ok || validated == nil || validated.RegisteredClaims.Subject == "" {
		return nil, ErrInvalidIDToken
	}

	user := &actions.PendingCredentialUser{
		UID:     validated.RegisteredClaims.Subject,
		IDToken: idToken,
	}

	if validated.RegisteredClaims.IssuedAt > 0 {
		user.CreatedAt = time.Unix(validated.RegisteredClaims.IssuedAt, 0).UTC()
	}

	if claims, ok := validated.CustomClaims.(*IDTokenClaims); ok && claims != nil {
		user.Email = claims.Email
		user.DisplayName = claims.DisplayName()
		user.EmailVerified = claims.EmailVerified
	}

	return user, nil
}

func normalizeValidationError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryAuth, ErrInvalidIDToken.Message).
		WithTextCode(TextCodeInvalidIDToken).
		WithCode(goerrors.CodeUnauthorized).
		WithMetadata(map[string]any{
			"provider": "auth0",
			"cause":    err.Error(),
		})
}
