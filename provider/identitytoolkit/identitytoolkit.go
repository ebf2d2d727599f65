package identitytoolkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	actions "github.com/goliatone/go-auth-actions"
)

const (
	providerName      = "identitytoolkit"
	defaultBaseURL    = "https://identitytoolkit.googleapis.com/v1"
	requestVerifyMail = "VERIFY_EMAIL"
)

// Config holds Identity Toolkit configuration.
type Config struct {
	APIKey string

	// BaseURL overrides the REST endpoint (tests, emulator).
	BaseURL string

	HTTPClient *http.Client
}

// Gateway implements actions.Gateway against the Identity Toolkit REST API.
type Gateway struct {
	config     Config
	httpClient *http.Client
}

var _ actions.Gateway = (*Gateway)(nil)

// New creates a new gateway.
func New(cfg Config) *Gateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Gateway{
		config:     cfg,
		httpClient: client,
	}
}

// ApplyVerificationCode implements actions.CodeApplier.
func (g *Gateway) ApplyVerificationCode(ctx context.Context, code string) (*actions.CodeInfo, error) {
	var resp accountInfo
	if err := g.call(ctx, "apply_code", "accounts:update", map[string]any{
		"oobCode": code,
	}, &resp); err != nil {
		return nil, err
	}

	return &actions.CodeInfo{
		UID:   resp.LocalID,
		Email: resp.Email,
	}, nil
}

// ConfirmPasswordReset implements actions.PasswordResetConfirmer.
func (g *Gateway) ConfirmPasswordReset(ctx context.Context, code, newPassword string) error {
	return g.call(ctx, "reset_password", "accounts:resetPassword", map[string]any{
		"oobCode":     code,
		"newPassword": newPassword,
	}, nil)
}

// IssueVerificationEmail implements actions.VerificationEmailIssuer.
func (g *Gateway) IssueVerificationEmail(ctx context.Context, user *actions.PendingCredentialUser, settings *actions.ActionCodeSettings) error {
	if user == nil || user.IDToken == "" {
		return &actions.GatewayError{
			Provider:  providerName,
			Operation: "send_verification",
			Code:      actions.GatewayUserNotFound,
			RawCode:   "MISSING_ID_TOKEN",
		}
	}

	payload := map[string]any{
		"requestType": requestVerifyMail,
		"idToken":     user.IDToken,
	}

	if settings != nil {
		if settings.ContinueURL != "" {
			payload["continueUrl"] = settings.ContinueURL
		}
		if settings.HandleCodeInApp {
			payload["canHandleCodeInApp"] = true
		}
		if settings.DynamicLinkDomain != "" {
			payload["dynamicLinkDomain"] = settings.DynamicLinkDomain
		}
		if settings.AndroidPackageName != "" {
			payload["androidPackageName"] = settings.AndroidPackageName
		}
		if settings.IOSBundleID != "" {
			payload["iOSBundleId"] = settings.IOSBundleID
		}
	}

	return g.call(ctx, "send_verification", "accounts:sendOobCode", payload, nil)
}

// ReloadCurrentUser implements actions.UserReloader.
func (g *Gateway) ReloadCurrentUser(ctx context.Context, user *actions.PendingCredentialUser) (*actions.UserState, error) {
	if user == nil || user.IDToken == "" {
		return nil, &actions.GatewayError{
			Provider:  providerName,
			Operation: "lookup",
			Code:      actions.GatewayUserNotFound,
			RawCode:   "MISSING_ID_TOKEN",
		}
	}

	return g.lookup(ctx, user.IDToken)
}

// ResolvePendingUser looks up the account behind idToken. The provider
// checks the token, so a forged or expired token is rejected here.
func (g *Gateway) ResolvePendingUser(ctx context.Context, idToken string) (*actions.PendingCredentialUser, error) {
	state, err := g.lookup(ctx, idToken)
	if err != nil {
		return nil, err
	}

	user := &actions.PendingCredentialUser{
		UID:           state.UID,
		Email:         state.Email,
		DisplayName:   state.DisplayName,
		IDToken:       idToken,
		EmailVerified: state.EmailVerified,
	}

	if claims, err := actions.DecodeIDToken(idToken); err == nil {
		user.CreatedAt = claims.Issued()
	}

	return user, nil
}

func (g *Gateway) lookup(ctx context.Context, idToken string) (*actions.UserState, error) {
	var resp lookupResponse
	if err := g.call(ctx, "lookup", "accounts:lookup", map[string]any{
		"idToken": idToken,
	}, &resp); err != nil {
		return nil, err
	}

	if len(resp.Users) == 0 {
		return nil, &actions.GatewayError{
			Provider:  providerName,
			Operation: "lookup",
			Status:    http.StatusOK,
			Code:      actions.GatewayUserNotFound,
			RawCode:   "USER_NOT_FOUND",
		}
	}

	u := resp.Users[0]
	return &actions.UserState{
		UID:           u.LocalID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		EmailVerified: u.EmailVerified,
	}, nil
}

func (g *Gateway) call(ctx context.Context, operation, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return gatewayError(operation, 0, actions.GatewayOther, "", "failed to encode request", err)
	}

	endpoint := fmt.Sprintf("%s/%s?%s", g.config.BaseURL, method, url.Values{"key": {g.config.APIKey}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return gatewayError(operation, 0, actions.GatewayOther, "", "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return gatewayError(operation, 0, actions.GatewayUnavailable, "", "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return gatewayError(operation, resp.StatusCode, actions.GatewayUnavailable, "", "failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		rawCode, description := parseAPIError(data)
		return gatewayError(operation, resp.StatusCode, mapErrorCode(resp.StatusCode, rawCode), rawCode, description, nil)
	}

	if out == nil || len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return gatewayError(operation, resp.StatusCode, actions.GatewayOther, "invalid_response", "failed to decode response", err)
	}

	return nil
}

type accountInfo struct {
	LocalID       string `json:"localId"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	EmailVerified bool   `json:"emailVerified"`
}

type lookupResponse struct {
	Users []accountInfo `json:"users"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// parseAPIError splits messages such as "WEAK_PASSWORD : Password should be
// at least 6 characters" into code and description.
func parseAPIError(body []byte) (string, string) {
	var parsed apiError
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Error.Message == "" {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = "identity toolkit request failed"
		}
		return "", msg
	}

	message := strings.TrimSpace(parsed.Error.Message)
	code, description, found := strings.Cut(message, ":")
	code = strings.TrimSpace(code)
	if !found {
		return code, message
	}
	return code, strings.TrimSpace(description)
}

func mapErrorCode(status int, rawCode string) actions.GatewayErrorCode {
	switch rawCode {
	case "INVALID_OOB_CODE":
		return actions.GatewayInvalidCode
	case "EXPIRED_OOB_CODE":
		return actions.GatewayExpiredCode
	case "WEAK_PASSWORD":
		return actions.GatewayWeakPassword
	case "INVALID_CONTINUE_URI", "MISSING_CONTINUE_URI", "UNAUTHORIZED_DOMAIN",
		"INVALID_DYNAMIC_LINK_DOMAIN", "MISSING_ANDROID_PACKAGE_NAME", "MISSING_IOS_BUNDLE_ID":
		return actions.GatewayInvalidSettings
	case "USER_NOT_FOUND", "USER_DISABLED", "EMAIL_NOT_FOUND":
		return actions.GatewayUserNotFound
	case "TOO_MANY_ATTEMPTS_TRY_LATER", "QUOTA_EXCEEDED":
		return actions.GatewayUnavailable
	}

	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return actions.GatewayUnavailable
	}

	return actions.GatewayOther
}

func gatewayError(operation string, status int, code actions.GatewayErrorCode, rawCode, description string, err error) *actions.GatewayError {
	return &actions.GatewayError{
		Provider:    providerName,
		Operation:   operation,
		Status:      status,
		Code:        code,
		RawCode:     rawCode,
		Description: description,
		Err:         err,
	}
}

// IsInvalidToken reports whether err means the ID token was rejected.
func IsInvalidToken(err error) bool {
	var gwErr *actions.GatewayError
	if !errors.As(err, &gwErr) {
		return false
	}
	switch gwErr.RawCode {
	case "INVALID_ID_TOKEN", "TOKEN_EXPIRED", "USER_NOT_FOUND", "MISSING_ID_TOKEN":
		return true
	}
	return false
}
