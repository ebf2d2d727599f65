package auth0

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/auth0/go-auth0"
	"github.com/auth0/go-auth0/management"
	actions "github.com/goliatone/go-auth-actions"
)

const providerName = "auth0"

// UserReader is the slice of management.UserManager used by the gateway.
type UserReader interface {
	Read(ctx context.Context, id string, opts ...management.RequestOption) (*management.User, error)
}

// EmailJobs is the slice of management.JobManager used by the gateway.
type EmailJobs interface {
	VerifyEmail(ctx context.Context, j *management.Job, opts ...management.RequestOption) error
}

// Gateway issues verification emails and reloads users through the Auth0
// management API. Auth0 hosts its own verification and reset pages, so
// only actions.VerificationGateway is implemented.
type Gateway struct {
	clientID string
	users    UserReader
	jobs     EmailJobs
}

var _ actions.VerificationGateway = (*Gateway)(nil)

// NewGateway creates a management client from cfg.
func NewGateway(cfg Config) (*Gateway, error) {
	domain := cfg.managementDomain()
	if domain == "" {
		return nil, fmt.Errorf("auth0 management: domain is required")
	}

	client, err := management.New(
		domain,
		management.WithClientCredentials(cfg.context(), cfg.ClientID, cfg.ClientSecret),
	)
	if err != nil {
		return nil, fmt.Errorf("auth0 management: failed to create client: %w", err)
	}

	return NewGatewayWithClients(cfg.ClientID, client.User, client.Job), nil
}

// NewGatewayWithClients wires explicit management clients.
func NewGatewayWithClients(clientID string, users UserReader, jobs EmailJobs) *Gateway {
	return &Gateway{
		clientID: clientID,
		users:    users,
		jobs:     jobs,
	}
}

// IssueVerificationEmail implements actions.VerificationEmailIssuer. With
// settings the job targets the settings client (or the configured one);
// with nil settings Auth0 picks the tenant default.
func (g *Gateway) IssueVerificationEmail(ctx context.Context, user *actions.PendingCredentialUser, settings *actions.ActionCodeSettings) error {
	if user == nil || strings.TrimSpace(user.UID) == "" {
		return &actions.GatewayError{
			Provider:  providerName,
			Operation: "send_verification",
			Code:      actions.GatewayUserNotFound,
			RawCode:   "missing_user_id",
		}
	}

	job := &management.Job{
		UserID: auth0.String(user.UID),
	}

	if settings != nil {
		clientID := settings.ClientID
		if clientID == "" {
			clientID = g.clientID
		}
		if clientID != "" {
			job.ClientID = auth0.String(clientID)
		}
	}

	if err := g.jobs.VerifyEmail(ctx, job); err != nil {
		return mapManagementError("send_verification", err, settings != nil)
	}

	return nil
}

// ReloadCurrentUser implements actions.UserReloader.
func (g *Gateway) ReloadCurrentUser(ctx context.Context, user *actions.PendingCredentialUser) (*actions.UserState, error) {
	if user == nil || strings.TrimSpace(user.UID) == "" {
		return nil, &actions.GatewayError{
			Provider:  providerName,
			Operation: "read_user",
			Code:      actions.GatewayUserNotFound,
			RawCode:   "missing_user_id",
		}
	}

	record, err := g.users.Read(ctx, user.UID)
	if err != nil {
		return nil, mapManagementError("read_user", err, false)
	}

	return &actions.UserState{
		UID:           record.GetID(),
		Email:         record.GetEmail(),
		DisplayName:   record.GetName(),
		EmailVerified: record.GetEmailVerified(),
	}, nil
}

func mapManagementError(operation string, err error, enriched bool) error {
	gwErr := &actions.GatewayError{
		Provider:  providerName,
		Operation: operation,
		Code:      actions.GatewayUnavailable,
		Err:       err,
	}

	var mErr management.Error
	if !errors.As(err, &mErr) {
		return gwErr
	}

	gwErr.Status = mErr.Status()
	gwErr.Description = mErr.Error()

	switch {
	case gwErr.Status == http.StatusBadRequest && enriched:
		gwErr.Code = actions.GatewayInvalidSettings
	case gwErr.Status == http.StatusNotFound:
		gwErr.Code = actions.GatewayUserNotFound
	case gwErr.Status == http.StatusTooManyRequests, gwErr.Status >= http.StatusInternalServerError:
		gwErr.Code = actions.GatewayUnavailable
	default:
		gwErr.Code = actions.GatewayOther
	}

	return gwErr
}
