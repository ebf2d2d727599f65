package actions_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	actions "github.com/goliatone/go-auth-actions"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyGatewayError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want actions.ErrorKind
	}{
		{"nil", nil, actions.KindNone},
		{"invalid code", &actions.GatewayError{Code: actions.GatewayInvalidCode}, actions.KindInvalidOrReusedCode},
		{"expired code", &actions.GatewayError{Code: actions.GatewayExpiredCode}, actions.KindInvalidOrReusedCode},
		{"weak password", &actions.GatewayError{Code: actions.GatewayWeakPassword}, actions.KindWeakPassword},
		{"user not found", &actions.GatewayError{Code: actions.GatewayUserNotFound}, actions.KindProviderUnavailable},
		{"invalid settings", &actions.GatewayError{Code: actions.GatewayInvalidSettings}, actions.KindProviderUnavailable},
		{"unavailable", &actions.GatewayError{Code: actions.GatewayUnavailable, Status: 503}, actions.KindProviderUnavailable},
		{"wrapped", fmt.Errorf("apply: %w", &actions.GatewayError{Code: actions.GatewayExpiredCode}), actions.KindInvalidOrReusedCode},
		{"sentinel", fmt.Errorf("confirm: %w", actions.ErrWeakPassword), actions.KindWeakPassword},
		{"malformed sentinel", actions.ErrMalformedLink, actions.KindMalformedLink},
		{"unknown", errors.New("connection reset"), actions.KindProviderUnavailable},
		{"deadline", context.DeadlineExceeded, actions.KindProviderUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, actions.ClassifyGatewayError(tc.err))
		})
	}
}

func TestKindError(t *testing.T) {
	assert.Nil(t, actions.KindError(actions.KindNone))
	assert.Equal(t, actions.ErrMalformedLink, actions.KindError(actions.KindMalformedLink))
	assert.Equal(t, actions.ErrInvalidOrReusedCode, actions.KindError(actions.KindInvalidOrReusedCode))
	assert.Equal(t, actions.ErrWeakPassword, actions.KindError(actions.KindWeakPassword))
	assert.Equal(t, actions.ErrProfileSync, actions.KindError(actions.KindProfileSync))
	assert.Equal(t, actions.ErrProviderUnavailable, actions.KindError(actions.KindProviderUnavailable))
}

func TestKindTextCode(t *testing.T) {
	tests := []struct {
		kind actions.ErrorKind
		want string
	}{
		{actions.KindNone, ""},
		{actions.KindMalformedLink, actions.TextCodeMalformedLink},
		{actions.KindInvalidOrReusedCode, actions.TextCodeInvalidOrReusedCode},
		{actions.KindWeakPassword, actions.TextCodeWeakPassword},
		{actions.KindProviderUnavailable, actions.TextCodeProviderUnavailable},
		{actions.KindProfileSync, actions.TextCodeProfileSync},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, actions.KindTextCode(tt.kind), string(tt.kind))
	}
}

func TestSentinelErrorsCarryTextCodes(t *testing.T) {
	cases := map[string]error{
		actions.TextCodeMalformedLink:       actions.ErrMalformedLink,
		actions.TextCodeInvalidOrReusedCode: actions.ErrInvalidOrReusedCode,
		actions.TextCodeWeakPassword:        actions.ErrWeakPassword,
		actions.TextCodeProviderUnavailable: actions.ErrProviderUnavailable,
		actions.TextCodeNotPending:          actions.ErrNotPending,
		actions.TextCodeSubmissionInFlight:  actions.ErrSubmissionInFlight,
		actions.TextCodeNoPendingUser:       actions.ErrNoPendingUser,
	}

	for textCode, err := range cases {
		var richErr *goerrors.Error
		require.True(t, errors.As(err, &richErr), textCode)
		assert.Equal(t, textCode, richErr.TextCode)
	}
}

func TestGatewayErrorMessage(t *testing.T) {
	err := &actions.GatewayError{
		Provider:  "identitytoolkit",
		Operation: "apply_verification_code",
		Status:    400,
		Code:      actions.GatewayExpiredCode,
		RawCode:   "EXPIRED_OOB_CODE",
	}
	assert.Equal(t, "identitytoolkit apply_verification_code failed: EXPIRED_OOB_CODE", err.Error())

	meta := err.Metadata()
	assert.Equal(t, "expired_code", meta["code"])
	assert.Equal(t, 400, meta["status"])
	assert.Equal(t, "EXPIRED_OOB_CODE", meta["raw_code"])

	cause := errors.New("dial tcp: timeout")
	wrapped := &actions.GatewayError{Code: actions.GatewayUnavailable, Err: cause}
	assert.Equal(t, "gateway failed: dial tcp: timeout", wrapped.Error())
	assert.True(t, errors.Is(wrapped, cause))
}

func TestIsSettingsRejected(t *testing.T) {
	assert.True(t, actions.IsSettingsRejected(&actions.GatewayError{Code: actions.GatewayInvalidSettings}))
	assert.True(t, actions.IsSettingsRejected(fmt.Errorf("issue: %w", &actions.GatewayError{Code: actions.GatewayInvalidSettings})))
	assert.False(t, actions.IsSettingsRejected(&actions.GatewayError{Code: actions.GatewayUnavailable}))
	assert.False(t, actions.IsSettingsRejected(errors.New("other")))
	assert.False(t, actions.IsSettingsRejected(nil))
}
