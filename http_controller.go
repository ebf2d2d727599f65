package actions

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// PendingUserResolver turns the credential sent by a client into the
// unverified user it belongs to.
type PendingUserResolver func(ctx context.Context, idToken string) (*PendingCredentialUser, error)

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// ActionPath handles inbound action links (default: "/auth/action")
	ActionPath string

	// VerificationPath prefixes the resend and check routes (default: "/auth/verification")
	VerificationPath string

	// Redirects are the targets reported after a successful action
	Redirects RedirectTargets

	// RedirectDelay is the countdown reported for verified emails
	RedirectDelay time.Duration

	// ActionCodeSettings enrich resend requests (optional)
	ActionCodeSettings *ActionCodeSettings

	// Debug prints every response
	Debug bool
}

// RedirectInstruction tells the client where to go next.
type RedirectInstruction struct {
	Target       string `json:"target"`
	DelaySeconds int    `json:"delay_seconds"`
}

// ActionResponse is returned by the link and password routes.
type ActionResponse struct {
	Flow        *FlowSnapshot        `json:"flow,omitempty"`
	Redirect    *RedirectInstruction `json:"redirect,omitempty"`
	FieldErrors map[string]string    `json:"field_errors,omitempty"`
	Error       string               `json:"error,omitempty"`
	Code        string               `json:"code,omitempty"`
}

// VerificationResponse is returned by the resend and check routes.
type VerificationResponse struct {
	Sent     bool              `json:"sent,omitempty"`
	Verified bool              `json:"verified,omitempty"`
	Email    string            `json:"email,omitempty"`
	Errors   map[string]string `json:"errors,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// PasswordResetRequest is the body of the password route.
type PasswordResetRequest struct {
	FlowID string `form:"flow_id" json:"flow_id"`
	PasswordResetForm
}

// Validate checks the flow reference. Password rules are checked by the
// reset controller so they come back as field errors.
func (r PasswordResetRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FlowID, validation.Required),
	)
}

// VerificationRequest is the body of the resend and check routes.
type VerificationRequest struct {
	IDToken string `form:"id_token" json:"id_token"`
}

// Validate checks the request.
func (r VerificationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.IDToken, validation.Required),
	)
}

// ControllerOption customizes an HTTPController.
type ControllerOption func(*HTTPController)

// WithControllerLogger sets the logger.
func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *HTTPController) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithControllerActivitySink sets the sink shared by every flow.
func WithControllerActivitySink(sink ActivitySink) ControllerOption {
	return func(c *HTTPController) {
		c.activity = normalizeActivitySink(sink)
	}
}

// WithControllerProfileStore sets the profile store.
func WithControllerProfileStore(store ProfileStore) ControllerOption {
	return func(c *HTTPController) {
		c.profiles = store
	}
}

// WithControllerOutcomeCache sets the cache replaying settled links.
func WithControllerOutcomeCache(cache OutcomeCache) ControllerOption {
	return func(c *HTTPController) {
		c.outcomes = cache
	}
}

// WithControllerReplayWindow sets how long a reloaded verification link
// still reports success.
func WithControllerReplayWindow(d time.Duration) ControllerOption {
	return func(c *HTTPController) {
		if d >= 0 {
			c.replayWindow = d
		}
	}
}

// WithControllerRegistry overrides the registry holding pending flows.
func WithControllerRegistry(registry *FlowRegistry) ControllerOption {
	return func(c *HTTPController) {
		if registry != nil {
			c.registry = registry
		}
	}
}

// WithPendingUserResolver sets how resend and check requests find their user.
func WithPendingUserResolver(resolver PendingUserResolver) ControllerOption {
	return func(c *HTTPController) {
		c.resolver = resolver
	}
}

// HTTPController exposes the action flows over HTTP.
type HTTPController struct {
	gateway  Gateway
	config   HTTPConfig
	profiles ProfileStore
	outcomes OutcomeCache
	registry *FlowRegistry
	resolver PendingUserResolver
	activity ActivitySink
	logger   Logger

	replayWindow time.Duration
}

// NewHTTPController creates a controller backed by gateway.
func NewHTTPController(gateway Gateway, cfg HTTPConfig, opts ...ControllerOption) *HTTPController {
	if cfg.ActionPath == "" {
		cfg.ActionPath = "/auth/action"
	}
	if cfg.VerificationPath == "" {
		cfg.VerificationPath = "/auth/verification"
	}
	if cfg.RedirectDelay <= 0 {
		cfg.RedirectDelay = DefaultRedirectDelay
	}

	c := &HTTPController{
		gateway:  gateway,
		config:   cfg,
		registry: NewFlowRegistry(DefaultFlowTTL),
		activity: noopActivitySink{},
		logger:   defLogger{},

		replayWindow: DefaultReplayWindow,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// RegisterRoutes registers the action routes.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	group.Get(c.config.ActionPath, c.ActionLink).SetName("action.link.get")
	group.Post(c.config.ActionPath+"/reset", c.PasswordReset).SetName("action.reset.post")
	group.Post(c.config.VerificationPath+"/resend", c.ResendVerification).SetName("verification.resend.post")
	group.Post(c.config.VerificationPath+"/check", c.CheckVerification).SetName("verification.check.post")
}

// RegisterActionRoutes builds a controller and registers its routes on app.
func RegisterActionRoutes[T any](app router.Router[T], gateway Gateway, cfg HTTPConfig, opts ...ControllerOption) *HTTPController {
	controller := NewHTTPController(gateway, cfg, opts...)
	controller.RegisterRoutes(app)
	return controller
}

// ActionLink processes an inbound action link.
func (c *HTTPController) ActionLink(ctx router.Context) error {
	values := url.Values{}
	for _, key := range []string{ParamMode, ParamActionCode, ParamContinueURL, ParamEmail, ParamName} {
		if v := ctx.Query(key, ""); v != "" {
			values.Set(key, v)
		}
	}

	status, resp := c.ProcessLink(ctx.Context(), ParseActionValues(values))
	return c.respond(ctx, status, resp)
}

// PasswordReset submits a new password for a pending flow.
func (c *HTTPController) PasswordReset(ctx router.Context) error {
	payload := new(PasswordResetRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.respond(ctx, http.StatusBadRequest, ActionResponse{Error: "invalid request"})
	}

	status, resp := c.SubmitPassword(ctx.Context(), *payload)
	return c.respond(ctx, status, resp)
}

// ResendVerification sends a new verification email.
func (c *HTTPController) ResendVerification(ctx router.Context) error {
	payload := new(VerificationRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.respond(ctx, http.StatusBadRequest, VerificationResponse{Error: "invalid request"})
	}

	status, resp := c.Resend(ctx.Context(), *payload)
	return c.respond(ctx, status, resp)
}

// CheckVerification reports whether the user verified their email.
func (c *HTTPController) CheckVerification(ctx router.Context) error {
	payload := new(VerificationRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.respond(ctx, http.StatusBadRequest, VerificationResponse{Error: "invalid request"})
	}

	status, resp := c.Check(ctx.Context(), *payload)
	return c.respond(ctx, status, resp)
}

// ProcessLink runs a new flow for req.
func (c *HTTPController) ProcessLink(ctx context.Context, req ActionRequest) (int, ActionResponse) {
	flow := NewVerificationFlow(c.gateway,
		WithFlowLogger(c.logger),
		WithFlowActivitySink(c.activity),
		WithFlowProfileStore(c.profiles),
		WithFlowOutcomeCache(c.outcomes),
		WithFlowReplayWindow(c.replayWindow),
	)

	status, err := flow.Process(ctx, req)
	if err != nil {
		c.logger.Error("action link processing failed: %v", err)
		return errorStatus(err), ActionResponse{Flow: flowRef(flow), Error: err.Error()}
	}

	resp := ActionResponse{
		Flow: flowRef(flow),
		Code: KindTextCode(flow.ErrorKind()),
	}

	switch status {
	case StatusPasswordResetPending:
		c.registry.Put(flow)
		return http.StatusOK, resp
	case StatusSuccess:
		resp.Redirect = c.redirectFor(flow.Mode())
		return http.StatusOK, resp
	case StatusExpired:
		return http.StatusGone, resp
	default:
		return kindStatus(flow.ErrorKind()), resp
	}
}

// SubmitPassword hands a new password to the pending flow it references.
func (c *HTTPController) SubmitPassword(ctx context.Context, req PasswordResetRequest) (int, ActionResponse) {
	if err := req.Validate(); err != nil {
		return http.StatusBadRequest, ActionResponse{FieldErrors: FormatValidationErrors(err)}
	}

	id, err := uuid.Parse(strings.TrimSpace(req.FlowID))
	if err != nil {
		return http.StatusBadRequest, ActionResponse{FieldErrors: map[string]string{"flow_id": "invalid flow id"}}
	}

	flow, ok := c.registry.Get(id)
	if !ok {
		return http.StatusNotFound, ActionResponse{Error: MessageInvalidLink}
	}

	reset := NewPasswordResetController(flow, c.gateway).
		WithLogger(c.logger).
		WithActivitySink(c.activity)

	outcome, err := reset.Submit(ctx, req.PasswordResetForm)
	if err != nil {
		return errorStatus(err), ActionResponse{Flow: flowRef(flow), Error: err.Error(), Code: errorTextCode(err)}
	}

	resp := ActionResponse{
		Flow:        flowRef(flow),
		FieldErrors: outcome.FieldErrors,
		Code:        KindTextCode(outcome.Kind),
	}

	switch {
	case len(outcome.FieldErrors) > 0:
		return http.StatusUnprocessableEntity, resp
	case outcome.Succeeded():
		c.registry.Remove(id)
		resp.Redirect = c.redirectFor(ModeResetPassword)
		return http.StatusOK, resp
	case outcome.Status.IsTerminal():
		c.registry.Remove(id)
		resp.Error = outcome.Message
		return kindStatus(outcome.Kind), resp
	default:
		resp.Error = outcome.Message
		return kindStatus(outcome.Kind), resp
	}
}

// Resend issues a new verification email for the token's user.
func (c *HTTPController) Resend(ctx context.Context, req VerificationRequest) (int, VerificationResponse) {
	controller, status, resp := c.resendController(ctx, req)
	if controller == nil {
		return status, resp
	}

	outcome, err := controller.Resend(ctx)
	if err != nil {
		return errorStatus(err), VerificationResponse{Email: outcome.Email, Error: MessageUnavailable}
	}

	return http.StatusOK, VerificationResponse{Sent: outcome.Sent, Email: outcome.Email}
}

// Check asks the provider whether the token's user is verified.
func (c *HTTPController) Check(ctx context.Context, req VerificationRequest) (int, VerificationResponse) {
	controller, status, resp := c.resendController(ctx, req)
	if controller == nil {
		return status, resp
	}

	verified, err := controller.CheckVerified(ctx)
	if err != nil {
		return errorStatus(err), VerificationResponse{Error: MessageUnavailable}
	}

	return http.StatusOK, VerificationResponse{Verified: verified}
}

func (c *HTTPController) resendController(ctx context.Context, req VerificationRequest) (*ResendController, int, VerificationResponse) {
	if err := req.Validate(); err != nil {
		return nil, http.StatusBadRequest, VerificationResponse{Errors: FormatValidationErrors(err)}
	}

	if c.resolver == nil {
		c.logger.Error("verification route called without a pending user resolver")
		return nil, http.StatusInternalServerError, VerificationResponse{Error: MessageUnavailable}
	}

	user, err := c.resolver(ctx, req.IDToken)
	if err != nil || user == nil {
		c.logger.Debug("could not resolve pending user: %v", err)
		return nil, http.StatusUnauthorized, VerificationResponse{Error: "invalid credentials"}
	}

	controller := NewResendController(NewPendingSession(user), c.gateway).
		WithProfileStore(c.profiles).
		WithActionCodeSettings(c.config.ActionCodeSettings).
		WithActivitySink(c.activity).
		WithLogger(c.logger)

	return controller, http.StatusOK, VerificationResponse{}
}

func (c *HTTPController) redirectFor(mode ActionMode) *RedirectInstruction {
	redirect := &RedirectInstruction{Target: c.config.Redirects.For(mode)}
	if mode == ModeVerifyEmail {
		redirect.DelaySeconds = int(c.config.RedirectDelay / time.Second)
	}
	return redirect
}

func (c *HTTPController) respond(ctx router.Context, status int, payload any) error {
	if c.config.Debug {
		c.logger.Debug("response %d: %s", status, print.MaybePrettyJSON(payload))
	}
	return ctx.JSON(status, payload)
}

func kindStatus(kind ErrorKind) int {
	switch kind {
	case KindNone:
		return http.StatusOK
	case KindMalformedLink, KindInvalidOrReusedCode:
		return http.StatusBadRequest
	case KindWeakPassword:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusServiceUnavailable
	}
}

func errorStatus(err error) int {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code != 0 {
		return richErr.Code
	}
	return http.StatusInternalServerError
}

func errorTextCode(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

func flowRef(flow *VerificationFlow) *FlowSnapshot {
	snap := flow.Snapshot()
	return &snap
}
