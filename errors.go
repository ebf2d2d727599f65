package actions

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeMalformedLink       = "ACTION_LINK_MALFORMED"
	TextCodeInvalidOrReusedCode = "ACTION_CODE_EXPIRED_OR_USED"
	TextCodeWeakPassword        = "ACTION_WEAK_PASSWORD"
	TextCodeProviderUnavailable = "ACTION_PROVIDER_UNAVAILABLE"
	TextCodeProfileSync         = "ACTION_PROFILE_SYNC_FAILED"
	TextCodeInvalidTransition   = "INVALID_ACTION_STATE_TRANSITION"
	TextCodeTerminalState       = "TERMINAL_ACTION_STATE"
	TextCodeNotPending          = "PASSWORD_RESET_NOT_PENDING"
	TextCodeSubmissionInFlight  = "SUBMISSION_IN_FLIGHT"
	TextCodeNoPendingUser       = "NO_PENDING_USER"
	TextCodeResendFailed        = "VERIFICATION_RESEND_FAILED"
)

// User facing messages.
const (
	MessageInvalidLink       = "invalid link"
	MessageExpiredOrUsed     = "expired or already used"
	MessageWeakPassword      = "password is too weak"
	MessageUnavailable       = "something went wrong, please try again"
	MessageEmailVerified     = "your email has been verified"
	MessagePasswordReset     = "your password has been reset"
	MessageChooseNewPassword = "choose a new password"
)

// ErrMalformedLink is returned for links missing a code or a supported mode.
var ErrMalformedLink = goerrors.New(MessageInvalidLink, goerrors.CategoryBadInput).
	WithTextCode(TextCodeMalformedLink).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidOrReusedCode is returned when the provider rejects an action code.
var ErrInvalidOrReusedCode = goerrors.New(MessageExpiredOrUsed, goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidOrReusedCode).
	WithCode(goerrors.CodeBadRequest)

// ErrWeakPassword is returned when the provider rejects the new password.
var ErrWeakPassword = goerrors.New(MessageWeakPassword, goerrors.CategoryValidation).
	WithTextCode(TextCodeWeakPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrProviderUnavailable covers network failures and any unclassified
// provider response.
var ErrProviderUnavailable = goerrors.New(MessageUnavailable, goerrors.CategoryOperation).
	WithTextCode(TextCodeProviderUnavailable).
	WithCode(goerrors.CodeInternal)

// ErrProfileSync is logged when the profile cache could not be updated.
var ErrProfileSync = goerrors.New("profile sync failed", goerrors.CategoryInternal).
	WithTextCode(TextCodeProfileSync).
	WithCode(goerrors.CodeInternal)

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid action state transition", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrTerminalState is returned when attempting to leave a terminal status.
var ErrTerminalState = goerrors.New("action state is terminal", goerrors.CategoryConflict).
	WithTextCode(TextCodeTerminalState).
	WithCode(goerrors.CodeConflict)

// ErrNotPending is returned when a password is submitted outside the pending state.
var ErrNotPending = goerrors.New("password reset is not pending", goerrors.CategoryConflict).
	WithTextCode(TextCodeNotPending).
	WithCode(goerrors.CodeConflict)

// ErrSubmissionInFlight is returned while a previous submission is running.
var ErrSubmissionInFlight = goerrors.New("a submission is already in progress", goerrors.CategoryConflict).
	WithTextCode(TextCodeSubmissionInFlight).
	WithCode(goerrors.CodeConflict)

// ErrNoPendingUser is returned by the resend controller without a pending user.
var ErrNoPendingUser = goerrors.New("no unverified user in session", goerrors.CategoryBadInput).
	WithTextCode(TextCodeNoPendingUser).
	WithCode(goerrors.CodeBadRequest)

// ErrorKind is the taxonomy every gateway failure is mapped to.
type ErrorKind string

const (
	KindNone                ErrorKind = ""
	KindMalformedLink       ErrorKind = "malformed_link"
	KindInvalidOrReusedCode ErrorKind = "invalid_or_reused_code"
	KindWeakPassword        ErrorKind = "weak_password"
	KindProviderUnavailable ErrorKind = "provider_unavailable"
	KindProfileSync         ErrorKind = "profile_sync_failure"
)

// GatewayErrorCode is the normalized reason reported by a provider adapter.
type GatewayErrorCode string

const (
	GatewayInvalidCode     GatewayErrorCode = "invalid_code"
	GatewayExpiredCode     GatewayErrorCode = "expired_code"
	GatewayWeakPassword    GatewayErrorCode = "weak_password"
	GatewayInvalidSettings GatewayErrorCode = "invalid_settings"
	GatewayUserNotFound    GatewayErrorCode = "user_not_found"
	GatewayUnavailable     GatewayErrorCode = "unavailable"
	GatewayOther           GatewayErrorCode = "other"
)

// GatewayError captures a normalized provider response.
type GatewayError struct {
	Provider    string
	Operation   string
	Status      int
	Code        GatewayErrorCode
	RawCode     string
	Description string
	Err         error
}

func (e *GatewayError) Error() string {
	if e == nil {
		return "gateway error"
	}

	scope := "gateway"
	if e.Provider != "" && e.Operation != "" {
		scope = fmt.Sprintf("%s %s", e.Provider, e.Operation)
	} else if e.Provider != "" {
		scope = e.Provider
	}

	switch {
	case e.Description != "":
		return fmt.Sprintf("%s failed: %s", scope, e.Description)
	case e.RawCode != "":
		return fmt.Sprintf("%s failed: %s", scope, e.RawCode)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", scope, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", scope, e.Code)
}

func (e *GatewayError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Metadata returns the error details as a flat map for logs.
func (e *GatewayError) Metadata() map[string]any {
	if e == nil {
		return nil
	}

	meta := map[string]any{"code": string(e.Code)}
	if e.Provider != "" {
		meta["provider"] = e.Provider
	}
	if e.Operation != "" {
		meta["operation"] = e.Operation
	}
	if e.Status != 0 {
		meta["status"] = e.Status
	}
	if e.RawCode != "" {
		meta["raw_code"] = e.RawCode
	}
	return meta
}

// ClassifyGatewayError maps a gateway failure to exactly one ErrorKind.
func ClassifyGatewayError(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	switch {
	case errors.Is(err, ErrMalformedLink):
		return KindMalformedLink
	case errors.Is(err, ErrInvalidOrReusedCode):
		return KindInvalidOrReusedCode
	case errors.Is(err, ErrWeakPassword):
		return KindWeakPassword
	}

	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		switch gwErr.Code {
		case GatewayInvalidCode, GatewayExpiredCode:
			return KindInvalidOrReusedCode
		case GatewayWeakPassword:
			return KindWeakPassword
		}
	}

	return KindProviderUnavailable
}

// KindError returns the sentinel for a kind.
func KindError(kind ErrorKind) error {
	switch kind {
	case KindMalformedLink:
		return ErrMalformedLink
	case KindInvalidOrReusedCode:
		return ErrInvalidOrReusedCode
	case KindWeakPassword:
		return ErrWeakPassword
	case KindProfileSync:
		return ErrProfileSync
	case KindNone:
		return nil
	default:
		return ErrProviderUnavailable
	}
}

// IsSettingsRejected reports whether the provider refused the enriched
// settings of a verification email request.
func IsSettingsRejected(err error) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr) && gwErr.Code == GatewayInvalidSettings
}

// KindTextCode returns the text code clients see for a kind, empty for
// KindNone.
func KindTextCode(kind ErrorKind) string {
	var richErr *goerrors.Error
	if err := KindError(kind); err != nil && goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}
