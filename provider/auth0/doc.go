// Package auth0 connects the account verification flows to Auth0.
//
// IDTokenValidator checks ID tokens against the tenant JWKS and can be used
// as the pending user resolver of the HTTP controller. Gateway re-issues
// verification emails and reloads users through the management API.
package auth0
