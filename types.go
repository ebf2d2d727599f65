package actions

import (
	"context"
	"fmt"
	"time"
)

// Logger is the logging contract used across the package.
// Arguments follow printf semantics.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// CodeInfo is what the identity provider reports after applying a
// verification code. Both fields are optional.
type CodeInfo struct {
	UID   string
	Email string
}

// ActionCodeSettings enrich a verification email request, e.g. with the
// target the provider should send the user back to.
type ActionCodeSettings struct {
	ContinueURL        string
	HandleCodeInApp    bool
	ClientID           string
	DynamicLinkDomain  string
	AndroidPackageName string
	IOSBundleID        string
}

// CodeApplier consumes email verification codes.
type CodeApplier interface {
	ApplyVerificationCode(ctx context.Context, code string) (*CodeInfo, error)
}

// PasswordResetConfirmer validates and consumes a password reset code,
// setting the new credential in one step.
type PasswordResetConfirmer interface {
	ConfirmPasswordReset(ctx context.Context, code, newPassword string) error
}

// UserReloader fetches the provider's authoritative view of a user.
type UserReloader interface {
	ReloadCurrentUser(ctx context.Context, user *PendingCredentialUser) (*UserState, error)
}

// VerificationEmailIssuer asks the provider to send a new verification email.
// A nil settings value requests the provider defaults.
type VerificationEmailIssuer interface {
	IssueVerificationEmail(ctx context.Context, user *PendingCredentialUser, settings *ActionCodeSettings) error
}

// Gateway is the full identity provider capability set consumed by the flow.
type Gateway interface {
	CodeApplier
	PasswordResetConfirmer
	UserReloader
	VerificationEmailIssuer
}

// VerificationGateway is the subset of Gateway used while an account waits
// for its email to be verified.
type VerificationGateway interface {
	UserReloader
	VerificationEmailIssuer
}

type composedGateway struct {
	CodeApplier
	PasswordResetConfirmer
	VerificationGateway
}

// ComposeGateway builds a Gateway from separate providers, e.g. action
// codes handled by one service and verification emails by another.
func ComposeGateway(codes CodeApplier, resets PasswordResetConfirmer, verification VerificationGateway) Gateway {
	return composedGateway{
		CodeApplier:            codes,
		PasswordResetConfirmer: resets,
		VerificationGateway:    verification,
	}
}

// ProfileStore persists per user profile fields. Writes are always field
// level merges keyed by the provider uid.
type ProfileStore interface {
	Get(ctx context.Context, uid string) (*UserProfile, error)
	MergeUpdate(ctx context.Context, uid string, fields ProfileFields) error
}

// Navigator performs a navigation to target.
type Navigator interface {
	Navigate(target string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(target string)

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(target string) {
	if f != nil {
		f(target)
	}
}

// Timer is the subset of *time.Timer used by the redirect scheduler.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules fn after d. time.AfterFunc satisfies it once wrapped.
type AfterFunc func(d time.Duration, fn func()) Timer

func defaultAfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACTIONS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACTIONS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACTIONS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACTIONS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
