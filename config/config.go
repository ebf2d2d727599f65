package config

import (
	"strings"
	"time"

	actions "github.com/goliatone/go-auth-actions"
	goerrors "github.com/goliatone/go-errors"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Provider names accepted by VERIFICATION_PROVIDER.
const (
	ProviderIdentityToolkit = "identitytoolkit"
	ProviderAuth0           = "auth0"
)

type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	MetricsPort string `env:"METRICS_PORT" env-default:"9090"`
	Debug       bool   `env:"DEBUG" env-default:"false"`
	Name        string `env:"APP_NAME" env-default:"auth-actions"`
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `env:"DB_DRIVER" env-default:"sqlite"`
	DSN    string `env:"DB_DSN" env-default:"file::memory:?cache=shared"`
}

type RedisConfig struct {
	URL        string        `env:"REDIS_URL"`
	Password   string        `env:"REDIS_PASSWORD"`
	OutcomeTTL time.Duration `env:"OUTCOME_TTL" env-default:"24h"`
}

type IdentityToolkitConfig struct {
	APIKey  string `env:"IDENTITY_TOOLKIT_API_KEY"`
	BaseURL string `env:"IDENTITY_TOOLKIT_BASE_URL"`
}

type Auth0Config struct {
	Domain       string `env:"AUTH0_DOMAIN"`
	ClientID     string `env:"AUTH0_CLIENT_ID"`
	ClientSecret string `env:"AUTH0_CLIENT_SECRET"`
}

type ActionsConfig struct {
	// VerificationProvider backs resend and check requests.
	VerificationProvider string        `env:"VERIFICATION_PROVIDER" env-default:"identitytoolkit"`
	ActionPath           string        `env:"ACTION_PATH" env-default:"/auth/action"`
	VerificationPath     string        `env:"VERIFICATION_PATH" env-default:"/auth/verification"`
	VerifyRedirect       string        `env:"VERIFY_REDIRECT" env-default:"/"`
	ResetRedirect        string        `env:"RESET_REDIRECT" env-default:"/login"`
	RedirectDelay        time.Duration `env:"REDIRECT_DELAY" env-default:"5s"`
	FlowTTL              time.Duration `env:"FLOW_TTL" env-default:"30m"`

	ContinueURL        string `env:"ACTION_CONTINUE_URL"`
	HandleCodeInApp    bool   `env:"ACTION_HANDLE_CODE_IN_APP" env-default:"false"`
	DynamicLinkDomain  string `env:"ACTION_DYNAMIC_LINK_DOMAIN"`
	AndroidPackageName string `env:"ACTION_ANDROID_PACKAGE_NAME"`
	IOSBundleID        string `env:"ACTION_IOS_BUNDLE_ID"`
}

// Config is the process configuration, read from the environment.
type Config struct {
	Server          ServerConfig
	Database        DatabaseConfig
	Redis           RedisConfig
	IdentityToolkit IdentityToolkitConfig
	Auth0           Auth0Config
	Actions         ActionsConfig
}

// Load reads an optional .env file, then the environment.
func Load(files ...string) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load(files...)

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks provider selection and credentials.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Actions.VerificationProvider) {
	case ProviderIdentityToolkit:
	case ProviderAuth0:
		if c.Auth0.Domain == "" || c.Auth0.ClientID == "" {
			return goerrors.New("AUTH0_DOMAIN and AUTH0_CLIENT_ID are required for the auth0 provider", goerrors.CategoryBadInput).
				WithCode(goerrors.CodeBadRequest)
		}
	default:
		return goerrors.New("unsupported verification provider", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"provider": c.Actions.VerificationProvider})
	}

	if c.IdentityToolkit.APIKey == "" && c.IdentityToolkit.BaseURL == "" {
		return goerrors.New("IDENTITY_TOOLKIT_API_KEY is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	return nil
}

// UsesAuth0 reports whether resend and check go through Auth0.
func (c *Config) UsesAuth0() bool {
	return strings.EqualFold(c.Actions.VerificationProvider, ProviderAuth0)
}

// ActionCodeSettings returns the enriched resend settings, nil when none
// are configured.
func (c *Config) ActionCodeSettings() *actions.ActionCodeSettings {
	a := c.Actions
	if a.ContinueURL == "" && a.DynamicLinkDomain == "" && a.AndroidPackageName == "" && a.IOSBundleID == "" && !a.HandleCodeInApp {
		return nil
	}

	settings := &actions.ActionCodeSettings{
		ContinueURL:        a.ContinueURL,
		HandleCodeInApp:    a.HandleCodeInApp,
		DynamicLinkDomain:  a.DynamicLinkDomain,
		AndroidPackageName: a.AndroidPackageName,
		IOSBundleID:        a.IOSBundleID,
	}
	if c.UsesAuth0() {
		settings.ClientID = c.Auth0.ClientID
	}
	return settings
}

// HTTPConfig converts the settings for the HTTP controller.
func (c *Config) HTTPConfig() actions.HTTPConfig {
	return actions.HTTPConfig{
		ActionPath:       c.Actions.ActionPath,
		VerificationPath: c.Actions.VerificationPath,
		Redirects: actions.RedirectTargets{
			VerifyEmail:   c.Actions.VerifyRedirect,
			ResetPassword: c.Actions.ResetRedirect,
		},
		RedirectDelay:      c.Actions.RedirectDelay,
		ActionCodeSettings: c.ActionCodeSettings(),
		Debug:              c.Server.Debug,
	}
}
