package auth0

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Config holds Auth0 configuration for ID token validation and the
// management API.
type Config struct {
	// Domain is the Auth0 tenant domain (e.g., "example.us.auth0.com").
	Domain string

	// ClientID is the application whose ID tokens are accepted. It is also
	// the client verification emails are issued for.
	ClientID string

	// ClientSecret authenticates management API calls.
	ClientSecret string

	// Audience overrides the accepted ID token audience.
	// Default: ClientID.
	Audience []string

	// Issuer overrides the default issuer URL (optional).
	// Default: "https://{Domain}/".
	Issuer string

	// CacheTTL is how long to cache JWKS keys.
	// Default: 5 minutes.
	CacheTTL time.Duration

	// ContextFunc provides a context for management client setup.
	// Default: context.Background.
	ContextFunc func() context.Context
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(domain, clientID, clientSecret string) Config {
	return Config{
		Domain:       domain,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		CacheTTL:     5 * time.Minute,
	}
}

func (c Config) audience() []string {
	if len(c.Audience) > 0 {
		return c.Audience
	}
	if c.ClientID == "" {
		return nil
	}
	return []string{c.ClientID}
}

func (c Config) context() context.Context {
	if c.ContextFunc != nil {
		return c.ContextFunc()
	}
	return context.Background()
}

func (c Config) managementDomain() string {
	domain := strings.TrimSpace(c.Domain)
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	return strings.TrimSuffix(domain, "/")
}

func (c Config) issuerURL() string {
	if c.Issuer != "" {
		return normalizeIssuer(c.Issuer)
	}

	domain := strings.TrimSpace(c.Domain)
	if domain == "" {
		return ""
	}

	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return normalizeIssuer(domain)
	}

	return fmt.Sprintf("https://%s/", strings.TrimSuffix(domain, "/"))
}

func normalizeIssuer(issuer string) string {
	issuer = strings.TrimSpace(issuer)
	if issuer == "" || strings.HasSuffix(issuer, "/") {
		return issuer
	}
	return issuer + "/"
}
