package auth0

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/auth0/go-auth0"
	"github.com/auth0/go-auth0/management"
	actions "github.com/goliatone/go-auth-actions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type managementError struct {
	status  int
	message string
}

func (e managementError) Error() string { return e.message }
func (e managementError) Status() int   { return e.status }

type fakeJobs struct {
	jobs []*management.Job
	errs []error
}

func (f *fakeJobs) VerifyEmail(ctx context.Context, j *management.Job, opts ...management.RequestOption) error {
	f.jobs = append(f.jobs, j)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

type fakeUsers struct {
	user *management.User
	err  error
	ids  []string
}

func (f *fakeUsers) Read(ctx context.Context, id string, opts ...management.RequestOption) (*management.User, error) {
	f.ids = append(f.ids, id)
	return f.user, f.err
}

func pendingUser() *actions.PendingCredentialUser {
	return &actions.PendingCredentialUser{
		UID:   "auth0|user-123",
		Email: "user@example.com",
	}
}

func TestGateway_IssueVerificationEmail(t *testing.T) {
	jobs := &fakeJobs{}
	gw := NewGatewayWithClients("default-client", &fakeUsers{}, jobs)

	err := gw.IssueVerificationEmail(context.Background(), pendingUser(), &actions.ActionCodeSettings{
		ContinueURL: "https://app.example.com",
	})
	require.NoError(t, err)

	err = gw.IssueVerificationEmail(context.Background(), pendingUser(), &actions.ActionCodeSettings{
		ClientID: "other-client",
	})
	require.NoError(t, err)

	err = gw.IssueVerificationEmail(context.Background(), pendingUser(), nil)
	require.NoError(t, err)

	require.Len(t, jobs.jobs, 3)
	assert.Equal(t, "auth0|user-123", jobs.jobs[0].GetUserID())
	assert.Equal(t, "default-client", jobs.jobs[0].GetClientID())
	assert.Equal(t, "other-client", jobs.jobs[1].GetClientID())
	assert.Nil(t, jobs.jobs[2].ClientID)
}

func TestGateway_IssueVerificationEmailErrors(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		settings *actions.ActionCodeSettings
		code     actions.GatewayErrorCode
	}{
		{"rejected settings", managementError{http.StatusBadRequest, "bad client"}, &actions.ActionCodeSettings{}, actions.GatewayInvalidSettings},
		{"bad request without settings", managementError{http.StatusBadRequest, "bad"}, nil, actions.GatewayOther},
		{"missing user", managementError{http.StatusNotFound, "not found"}, nil, actions.GatewayUserNotFound},
		{"rate limited", managementError{http.StatusTooManyRequests, "slow down"}, nil, actions.GatewayUnavailable},
		{"network", errors.New("dial tcp: refused"), nil, actions.GatewayUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := NewGatewayWithClients("client", &fakeUsers{}, &fakeJobs{errs: []error{tc.err}})

			err := gw.IssueVerificationEmail(context.Background(), pendingUser(), tc.settings)
			require.Error(t, err)

			var gwErr *actions.GatewayError
			require.ErrorAs(t, err, &gwErr)
			assert.Equal(t, tc.code, gwErr.Code)
			assert.Equal(t, "auth0", gwErr.Provider)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestGateway_IssueVerificationEmailFallsBackThroughResend(t *testing.T) {
	jobs := &fakeJobs{errs: []error{managementError{http.StatusBadRequest, "invalid client_id"}}}
	gw := NewGatewayWithClients("client", &fakeUsers{}, jobs)

	session := actions.NewPendingSession(pendingUser())
	outcome, err := actions.NewResendController(session, gw).
		WithActionCodeSettings(&actions.ActionCodeSettings{ClientID: "client"}).
		Resend(context.Background())
	require.NoError(t, err)

	assert.True(t, outcome.Sent)
	assert.True(t, outcome.UsedFallback)
	require.Len(t, jobs.jobs, 2)
	assert.Equal(t, "client", jobs.jobs[0].GetClientID())
	assert.Nil(t, jobs.jobs[1].ClientID)
}

func TestGateway_ReloadCurrentUser(t *testing.T) {
	users := &fakeUsers{user: &management.User{
		ID:            auth0.String("auth0|user-123"),
		Email:         auth0.String("user@example.com"),
		Name:          auth0.String("Jane"),
		EmailVerified: auth0.Bool(true),
	}}
	gw := NewGatewayWithClients("client", users, &fakeJobs{})

	state, err := gw.ReloadCurrentUser(context.Background(), pendingUser())
	require.NoError(t, err)

	assert.Equal(t, []string{"auth0|user-123"}, users.ids)
	assert.Equal(t, "auth0|user-123", state.UID)
	assert.Equal(t, "Jane", state.DisplayName)
	assert.True(t, state.EmailVerified)
}

func TestGateway_ReloadCurrentUserNotFound(t *testing.T) {
	gw := NewGatewayWithClients("client", &fakeUsers{err: managementError{http.StatusNotFound, "missing"}}, &fakeJobs{})

	_, err := gw.ReloadCurrentUser(context.Background(), pendingUser())
	require.Error(t, err)

	var gwErr *actions.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, actions.GatewayUserNotFound, gwErr.Code)
	assert.Equal(t, http.StatusNotFound, gwErr.Status)

	_, err = gw.ReloadCurrentUser(context.Background(), &actions.PendingCredentialUser{})
	require.Error(t, err)
}
