// Package actions handles the out-of-band links an identity provider sends
// by email: verifying an address and resetting a password.
//
// A VerificationFlow processes one inbound link exactly once and moves
// through loading, password_reset_pending, success, expired and error.
// Provider specifics stay behind the Gateway interfaces, with adapters in
// provider/identitytoolkit and provider/auth0. Verified state is cached on a
// local UserProfile through a ProfileStore, but the provider stays the
// source of truth.
//
// Password links wait in a FlowRegistry until a PasswordResetController
// receives the new password. A ResendController issues fresh verification
// emails for the unverified user held by a Session, retrying with provider
// defaults when the enriched ActionCodeSettings are refused.
//
// HTTPController exposes all of this on a go-router app:
//
//	actions.RegisterActionRoutes(app.Router(), gateway, actions.HTTPConfig{
//		Redirects: actions.DefaultRedirectTargets(),
//	}, actions.WithPendingUserResolver(resolver))
package actions
