package actions

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// ResendOutcome reports a verification email request.
type ResendOutcome struct {
	Sent         bool      `json:"sent"`
	Email        string    `json:"email,omitempty"`
	SentAt       time.Time `json:"sent_at,omitempty"`
	UsedFallback bool      `json:"-"`
}

// ResendController re-issues verification emails for the unverified user
// held by a session. Attempts are counted on the profile store but never
// limited here.
type ResendController struct {
	session  *Session
	gateway  VerificationGateway
	profiles ProfileStore
	settings *ActionCodeSettings
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewResendController creates a controller with sane defaults.
func NewResendController(session *Session, gateway VerificationGateway) *ResendController {
	return &ResendController{
		session:  session,
		gateway:  gateway,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithProfileStore sets the store tracking resend attempts.
func (c *ResendController) WithProfileStore(store ProfileStore) *ResendController {
	c.profiles = store
	return c
}

// WithActionCodeSettings sets the enriched settings tried first.
func (c *ResendController) WithActionCodeSettings(settings *ActionCodeSettings) *ResendController {
	c.settings = settings
	return c
}

// WithActivitySink sets the sink used to emit resend events.
func (c *ResendController) WithActivitySink(sink ActivitySink) *ResendController {
	c.activity = normalizeActivitySink(sink)
	return c
}

// WithLogger overrides the logger used by the controller.
func (c *ResendController) WithLogger(logger Logger) *ResendController {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithClock injects a custom clock (useful for tests).
func (c *ResendController) WithClock(clock func() time.Time) *ResendController {
	if clock != nil {
		c.now = clock
	}
	return c
}

// Resend asks the provider for a new verification email. If the provider
// refuses the enriched settings the request is repeated once with the
// provider defaults; only the final result is reported.
func (c *ResendController) Resend(ctx context.Context) (ResendOutcome, error) {
	select {
	case <-ctx.Done():
		return ResendOutcome{}, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification resend",
		)
	default:
		return c.resend(ctx)
	}
}

func (c *ResendController) resend(ctx context.Context) (ResendOutcome, error) {
	user := c.session.PendingUser()
	if user == nil {
		return ResendOutcome{}, ErrNoPendingUser
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	outcome := ResendOutcome{Email: user.Email}

	err := c.gateway.IssueVerificationEmail(ctx, user, c.settings)
	if err != nil && c.settings != nil && IsSettingsRejected(err) {
		c.logger.Debug("verification email settings rejected, retrying with defaults: %v", err)
		outcome.UsedFallback = true
		err = c.gateway.IssueVerificationEmail(ctx, user, nil)
	}

	if err != nil {
		c.logger.Error("verification email for %s failed: %v", user.UID, err)
		return outcome, goerrors.Wrap(err, goerrors.CategoryOperation, "could not send verification email").
			WithTextCode(TextCodeResendFailed).
			WithCode(goerrors.CodeInternal)
	}

	outcome.Sent = true
	outcome.SentAt = c.now()

	if c.profiles != nil {
		if err := c.profiles.MergeUpdate(ctx, user.UID, ResendFields(outcome.SentAt)); err != nil {
			c.logger.Warn("resend tracking failed for %s: %v", user.UID, err)
		}
	}

	recordActivity(ctx, c.activity, c.logger, c.now, ActivityEvent{
		EventType: ActivityEventVerificationResent,
		UserID:    user.UID,
		Mode:      ModeVerifyEmail,
		Metadata: map[string]any{
			"fallback": outcome.UsedFallback,
		},
		OccurredAt: outcome.SentAt,
	})

	return outcome, nil
}

// CheckVerified asks the provider whether the pending user verified their
// email in the meantime. On a positive answer the session is updated and
// the verified flag is cached on the profile.
func (c *ResendController) CheckVerified(ctx context.Context) (bool, error) {
	select {
	case <-ctx.Done():
		return false, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification check",
		)
	default:
	}

	user := c.session.PendingUser()
	if user == nil {
		if current, ok := c.session.CurrentUser(); ok && current.EmailVerified {
			return true, nil
		}
		return false, ErrNoPendingUser
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	state, err := c.gateway.ReloadCurrentUser(ctx, user)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryOperation, "could not reload user").
			WithTextCode(TextCodeProviderUnavailable).
			WithCode(goerrors.CodeInternal)
	}

	if state == nil || !state.EmailVerified {
		return false, nil
	}

	c.session.MarkVerified()

	if c.profiles != nil {
		if err := c.profiles.MergeUpdate(ctx, user.UID, VerifiedFields(c.now(), VerificationMethodEmailLink)); err != nil {
			c.logger.Error("profile sync failed for %s: %v", user.UID, err)
		}
	}

	recordActivity(ctx, c.activity, c.logger, c.now, ActivityEvent{
		EventType: ActivityEventEmailVerified,
		UserID:    user.UID,
		Mode:      ModeVerifyEmail,
		ToStatus:  StatusSuccess,
	})

	return true, nil
}
