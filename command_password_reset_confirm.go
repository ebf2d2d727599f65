package actions

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// PasswordResetOutcome describes the result of a submission. Status is the
// flow status after the submission, except when the provider accepted the
// password after the flow was closed: the outcome still reports success.
type PasswordResetOutcome struct {
	Status      VerificationStatus `json:"status"`
	Kind        ErrorKind          `json:"kind,omitempty"`
	Message     string             `json:"message,omitempty"`
	FieldErrors map[string]string  `json:"field_errors,omitempty"`
}

// Succeeded reports whether the password was changed.
func (o PasswordResetOutcome) Succeeded() bool {
	return o.Status == StatusSuccess && o.Kind == KindNone && len(o.FieldErrors) == 0
}

// PasswordResetController collects a new password for a flow waiting in
// the password reset pending status.
type PasswordResetController struct {
	flow     *VerificationFlow
	gateway  PasswordResetConfirmer
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewPasswordResetController creates a controller with sane defaults.
func NewPasswordResetController(flow *VerificationFlow, gateway PasswordResetConfirmer) *PasswordResetController {
	return &PasswordResetController{
		flow:     flow,
		gateway:  gateway,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (c *PasswordResetController) WithActivitySink(sink ActivitySink) *PasswordResetController {
	c.activity = normalizeActivitySink(sink)
	return c
}

// WithLogger overrides the logger used by the controller.
func (c *PasswordResetController) WithLogger(logger Logger) *PasswordResetController {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// Busy reports whether a submission is in flight for the flow, from this
// controller or any other bound to the same flow.
func (c *PasswordResetController) Busy() bool {
	return c.flow != nil && c.flow.submitting.Load()
}

// Submit validates the form and hands the new password to the provider.
// Weak passwords and rejected codes are reported in the outcome and leave
// the flow pending so the user can try again. Only a provider failure ends
// the flow.
func (c *PasswordResetController) Submit(ctx context.Context, form PasswordResetForm) (PasswordResetOutcome, error) {
	select {
	case <-ctx.Done():
		return PasswordResetOutcome{}, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset submission",
		)
	default:
	}

	if c.flow == nil || c.flow.Status() != StatusPasswordResetPending {
		return PasswordResetOutcome{}, ErrNotPending
	}

	if !c.flow.submitting.CompareAndSwap(false, true) {
		return PasswordResetOutcome{}, ErrSubmissionInFlight
	}
	defer c.flow.submitting.Store(false)

	return c.submit(ctx, form)
}

func (c *PasswordResetController) submit(ctx context.Context, form PasswordResetForm) (PasswordResetOutcome, error) {
	if err := form.Validate(); err != nil {
		return PasswordResetOutcome{
			Status:      c.flow.Status(),
			FieldErrors: FormatValidationErrors(err),
		}, nil
	}

	if c.gateway == nil {
		return c.fail(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	code := c.flow.Request().ActionCode
	err := c.gateway.ConfirmPasswordReset(ctx, code, form.Password)
	if err != nil {
		kind := ClassifyGatewayError(err)
		c.logger.Debug("confirm password reset failed: kind=%s err=%v", kind, err)

		switch kind {
		case KindWeakPassword:
			return c.local(kind, MessageWeakPassword), nil
		case KindInvalidOrReusedCode:
			return c.local(kind, MessageExpiredOrUsed), nil
		default:
			return c.fail(ctx)
		}
	}

	moved, err := c.flow.transition(ctx, StatusSuccess, KindNone, MessagePasswordReset)
	if err != nil {
		return PasswordResetOutcome{}, err
	}
	if !moved {
		c.logger.Warn("password reset accepted after flow %s was closed", c.flow.ID())
	}

	c.recordActivity(ctx)

	return PasswordResetOutcome{
		Status:  StatusSuccess,
		Message: MessagePasswordReset,
	}, nil
}

func (c *PasswordResetController) local(kind ErrorKind, message string) PasswordResetOutcome {
	return PasswordResetOutcome{
		Status:  c.flow.Status(),
		Kind:    kind,
		Message: message,
	}
}

func (c *PasswordResetController) fail(ctx context.Context) (PasswordResetOutcome, error) {
	if _, err := c.flow.transition(ctx, StatusError, KindProviderUnavailable, MessageUnavailable); err != nil {
		return PasswordResetOutcome{}, err
	}
	return PasswordResetOutcome{
		Status:  c.flow.Status(),
		Kind:    KindProviderUnavailable,
		Message: MessageUnavailable,
	}, nil
}

func (c *PasswordResetController) recordActivity(ctx context.Context) {
	snap := c.flow.Snapshot()
	var metadata map[string]any
	if snap.Email != "" {
		metadata = map[string]any{"email": snap.Email}
	}

	recordActivity(ctx, c.activity, c.logger, c.now, ActivityEvent{
		EventType: ActivityEventPasswordReset,
		FlowID:    snap.ID.String(),
		Mode:      ModeResetPassword,
		ToStatus:  StatusSuccess,
		Metadata:  metadata,
	})
}
