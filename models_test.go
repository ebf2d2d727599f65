package actions_test

import (
	"testing"
	"time"

	actions "github.com/goliatone/go-auth-actions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionModeHelpers(t *testing.T) {
	assert.True(t, actions.ModeVerifyEmail.IsSupported())
	assert.True(t, actions.ModeResetPassword.IsSupported())
	assert.False(t, actions.ModeUnknown.IsSupported())
	assert.Equal(t, "unknown", actions.ModeUnknown.String())

	assert.True(t, actions.ActionRequest{Mode: actions.ModeVerifyEmail, ActionCode: "x"}.IsProcessable())
	assert.False(t, actions.ActionRequest{Mode: actions.ModeVerifyEmail}.IsProcessable())
	assert.False(t, actions.ActionRequest{ActionCode: "x"}.IsProcessable())
}

func TestVerificationStatusIsTerminal(t *testing.T) {
	assert.False(t, actions.StatusLoading.IsTerminal())
	assert.False(t, actions.StatusPasswordResetPending.IsTerminal())
	assert.True(t, actions.StatusSuccess.IsTerminal())
	assert.True(t, actions.StatusExpired.IsTerminal())
	assert.True(t, actions.StatusError.IsTerminal())
}

func TestUserProfileApply(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	profile := &actions.UserProfile{UID: "uid-1", ResendCount: 2}

	profile.Apply(actions.ResendFields(at))
	assert.Equal(t, 3, profile.ResendCount)
	require.NotNil(t, profile.VerificationEmailSentAt)
	assert.True(t, at.Equal(*profile.VerificationEmailSentAt))
	assert.False(t, profile.EmailVerified)

	profile.Apply(actions.VerifiedFields(at, actions.VerificationMethodEmailLink))
	assert.True(t, profile.EmailVerified)
	assert.Equal(t, actions.VerificationMethodEmailLink, profile.VerificationMethod)
	require.NotNil(t, profile.EmailVerifiedAt)

	profile.Apply(actions.ProfileFields{
		actions.FieldEmail:       "user@example.com",
		actions.FieldResendCount: 0,
		"unknown_column":         "ignored",
	})
	assert.Equal(t, "user@example.com", profile.Email)
	assert.Equal(t, 0, profile.ResendCount)
}
