package actions_test

import (
	"net/url"
	"testing"

	actions "github.com/goliatone/go-auth-actions"
	"github.com/stretchr/testify/assert"
)

func TestParseActionLink(t *testing.T) {
	req := actions.ParseActionLink("?mode=verifyEmail&oobCode=abc123&continueUrl=https%3A%2F%2Fapp.example.com%2Fdone")

	assert.Equal(t, actions.ModeVerifyEmail, req.Mode)
	assert.Equal(t, "abc123", req.ActionCode)
	assert.Equal(t, "https://app.example.com/done", req.ContinueURL)
	assert.True(t, req.IsProcessable())
}

func TestParseActionLinkModes(t *testing.T) {
	cases := map[string]actions.ActionMode{
		"verifyEmail":   actions.ModeVerifyEmail,
		"resetPassword": actions.ModeResetPassword,
		"recoverEmail":  actions.ModeUnknown,
		"VERIFYEMAIL":   actions.ModeUnknown,
		"":              actions.ModeUnknown,
	}

	for raw, want := range cases {
		req := actions.ParseActionLink("mode=" + url.QueryEscape(raw) + "&oobCode=x")
		assert.Equal(t, want, req.Mode, raw)
	}
}

func TestParseActionLinkMissingCode(t *testing.T) {
	req := actions.ParseActionLink("mode=resetPassword")
	assert.Equal(t, actions.ModeResetPassword, req.Mode)
	assert.Empty(t, req.ActionCode)
	assert.False(t, req.IsProcessable())
}

func TestParseActionLinkContinueHints(t *testing.T) {
	nested := "https://app.example.com/welcome?email=jane@example.com&name=Jane"
	link := "mode=verifyEmail&oobCode=c&continueUrl=" + url.QueryEscape(url.QueryEscape(nested))

	req := actions.ParseActionLink(link)
	assert.Equal(t, nested, req.ContinueURL)
	assert.Equal(t, "jane@example.com", req.Email)
	assert.Equal(t, "Jane", req.DisplayName)
}

func TestParseActionLinkDirectParamsWin(t *testing.T) {
	nested := "https://app.example.com/?email=nested%40example.com&name=Nested"
	link := "mode=verifyEmail&oobCode=c&email=direct%40example.com&continueUrl=" + url.QueryEscape(nested)

	req := actions.ParseActionLink(link)
	assert.Equal(t, "direct@example.com", req.Email)
	assert.Equal(t, "Nested", req.DisplayName)
}

func TestParseActionLinkMalformedQuery(t *testing.T) {
	req := actions.ParseActionLink("mode=verifyEmail&oobCode=abc&bad=%zz")
	assert.Equal(t, actions.ModeVerifyEmail, req.Mode)
	assert.Equal(t, "abc", req.ActionCode)

	req = actions.ParseActionLink("")
	assert.Equal(t, actions.ModeUnknown, req.Mode)
	assert.False(t, req.IsProcessable())
}

func TestParseActionURL(t *testing.T) {
	req := actions.ParseActionURL("https://auth.example.com/__/auth/action?mode=resetPassword&oobCode=r1")
	assert.Equal(t, actions.ModeResetPassword, req.Mode)
	assert.Equal(t, "r1", req.ActionCode)

	req = actions.ParseActionURL("://not a url")
	assert.Equal(t, actions.ModeUnknown, req.Mode)
}
