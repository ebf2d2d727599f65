package actions

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActionMode is the kind of out-of-band action a link carries.
type ActionMode string

const (
	ModeUnknown       ActionMode = ""
	ModeVerifyEmail   ActionMode = "verifyEmail"
	ModeResetPassword ActionMode = "resetPassword"
)

// IsSupported reports whether the mode can be processed.
func (m ActionMode) IsSupported() bool {
	return m == ModeVerifyEmail || m == ModeResetPassword
}

func (m ActionMode) String() string {
	if m == ModeUnknown {
		return "unknown"
	}
	return string(m)
}

// ActionRequest is the typed description of an inbound action link.
// It is built once per link and never mutated.
type ActionRequest struct {
	Mode        ActionMode `json:"mode"`
	ActionCode  string     `json:"-"`
	Email       string     `json:"email,omitempty"`
	DisplayName string     `json:"name,omitempty"`
	ContinueURL string     `json:"continue_url,omitempty"`
}

// IsProcessable reports whether the request has a code and a supported mode.
func (r ActionRequest) IsProcessable() bool {
	return r.ActionCode != "" && r.Mode.IsSupported()
}

// VerificationStatus is the status of a single flow instance.
type VerificationStatus string

const (
	StatusLoading              VerificationStatus = "loading"
	StatusPasswordResetPending VerificationStatus = "password_reset_pending"
	StatusSuccess              VerificationStatus = "success"
	StatusExpired              VerificationStatus = "expired"
	StatusError                VerificationStatus = "error"
)

// IsTerminal reports whether the flow stops at this status.
func (s VerificationStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusExpired, StatusError:
		return true
	default:
		return false
	}
}

// VerificationMethod records how an email address was verified.
type VerificationMethod string

const (
	VerificationMethodEmailLink VerificationMethod = "email_link"
	VerificationMethodFederated VerificationMethod = "federated"
)

// UserProfile is the locally held profile record. The identity provider is
// the source of truth for EmailVerified, this is a cache of it.
type UserProfile struct {
	bun.BaseModel           `bun:"table:user_profiles,alias:prf"`
	ID                      uuid.UUID          `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UID                     string             `bun:"uid,notnull,unique" json:"uid"`
	Email                   string             `bun:"email" json:"email,omitempty"`
	DisplayName             string             `bun:"display_name" json:"display_name,omitempty"`
	EmailVerified           bool               `bun:"email_verified,notnull" json:"email_verified"`
	EmailVerifiedAt         *time.Time         `bun:"email_verified_at,nullzero" json:"email_verified_at,omitempty"`
	VerificationMethod      VerificationMethod `bun:"verification_method,nullzero" json:"verification_method,omitempty"`
	VerificationEmailSentAt *time.Time         `bun:"verification_email_sent_at,nullzero" json:"verification_email_sent_at,omitempty"`
	ResendCount             int                `bun:"resend_count,notnull" json:"resend_count"`
	CreatedAt               *time.Time         `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt               *time.Time         `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Profile columns the flow is allowed to merge.
const (
	FieldEmail                   = "email"
	FieldDisplayName             = "display_name"
	FieldEmailVerified           = "email_verified"
	FieldEmailVerifiedAt         = "email_verified_at"
	FieldVerificationMethod      = "verification_method"
	FieldVerificationEmailSentAt = "verification_email_sent_at"
	FieldResendCount             = "resend_count"
)

// ProfileFields is a partial profile update keyed by column name.
type ProfileFields map[string]any

// Increment is a merge value that adds n to the stored column instead of
// replacing it.
type Increment int

// VerifiedFields returns the merge applied when an email is confirmed.
func VerifiedFields(at time.Time, method VerificationMethod) ProfileFields {
	return ProfileFields{
		FieldEmailVerified:      true,
		FieldEmailVerifiedAt:    at,
		FieldVerificationMethod: method,
	}
}

// ResendFields returns the merge applied after a verification email is sent.
func ResendFields(at time.Time) ProfileFields {
	return ProfileFields{
		FieldResendCount:             Increment(1),
		FieldVerificationEmailSentAt: at,
	}
}

// Apply writes fields onto the profile in memory. Unknown columns are
// ignored.
func (p *UserProfile) Apply(fields ProfileFields) *UserProfile {
	for column, value := range fields {
		switch column {
		case FieldEmail:
			if v, ok := value.(string); ok {
				p.Email = v
			}
		case FieldDisplayName:
			if v, ok := value.(string); ok {
				p.DisplayName = v
			}
		case FieldEmailVerified:
			if v, ok := value.(bool); ok {
				p.EmailVerified = v
			}
		case FieldEmailVerifiedAt:
			p.EmailVerifiedAt = timeRef(value)
		case FieldVerificationMethod:
			switch v := value.(type) {
			case VerificationMethod:
				p.VerificationMethod = v
			case string:
				p.VerificationMethod = VerificationMethod(v)
			}
		case FieldVerificationEmailSentAt:
			p.VerificationEmailSentAt = timeRef(value)
		case FieldResendCount:
			switch v := value.(type) {
			case Increment:
				p.ResendCount += int(v)
			case int:
				p.ResendCount = v
			}
		}
	}
	return p
}

func timeRef(value any) *time.Time {
	switch v := value.(type) {
	case time.Time:
		return &v
	case *time.Time:
		return v
	default:
		return nil
	}
}
