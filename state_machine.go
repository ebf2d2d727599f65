package actions

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// TransitionContext is passed into hooks after a status change.
type TransitionContext struct {
	FlowID  uuid.UUID
	Mode    ActionMode
	From    VerificationStatus
	To      VerificationStatus
	Kind    ErrorKind
	Message string
}

// TransitionHook is executed after a transition. Errors are logged.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// FlowOption customizes a VerificationFlow.
type FlowOption func(*VerificationFlow)

// WithFlowClock injects a custom clock (useful for tests).
func WithFlowClock(clock func() time.Time) FlowOption {
	return func(f *VerificationFlow) {
		if clock != nil {
			f.now = clock
		}
	}
}

// WithFlowLogger overrides the logger.
func WithFlowLogger(logger Logger) FlowOption {
	return func(f *VerificationFlow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithFlowActivitySink sets the ActivitySink used to publish flow events.
func WithFlowActivitySink(sink ActivitySink) FlowOption {
	return func(f *VerificationFlow) {
		f.activitySink = normalizeActivitySink(sink)
	}
}

// WithFlowSession attaches the session whose user is marked verified on
// success.
func WithFlowSession(session *Session) FlowOption {
	return func(f *VerificationFlow) {
		f.session = session
	}
}

// WithFlowProfileStore sets the store receiving the verified fields.
func WithFlowProfileStore(store ProfileStore) FlowOption {
	return func(f *VerificationFlow) {
		f.profiles = store
	}
}

// WithFlowOutcomeCache sets the cache used to replay settled links.
func WithFlowOutcomeCache(cache OutcomeCache) FlowOption {
	return func(f *VerificationFlow) {
		f.outcomes = cache
	}
}

// WithFlowReplayWindow sets how long after a verification a repeated load
// of the same link still reports success. Later loads report the code as
// expired or already used. Zero reports every repeat as expired.
func WithFlowReplayWindow(d time.Duration) FlowOption {
	return func(f *VerificationFlow) {
		if d >= 0 {
			f.replayWindow = d
		}
	}
}

// WithTransitionHook registers a hook run after every transition.
func WithTransitionHook(h TransitionHook) FlowOption {
	return func(f *VerificationFlow) {
		if h != nil {
			f.hooks = append(f.hooks, h)
		}
	}
}

// WithAutoRedirect wires the navigation performed on success.
func WithAutoRedirect(scheduler *RedirectScheduler, targets RedirectTargets) FlowOption {
	return func(f *VerificationFlow) {
		f.scheduler = scheduler
		f.targets = targets
	}
}

// VerificationFlow owns the status of a single inbound action link.
// It processes its link at most once.
type VerificationFlow struct {
	mu sync.Mutex

	id           uuid.UUID
	gateway      CodeApplier
	profiles     ProfileStore
	session      *Session
	outcomes     OutcomeCache
	scheduler    *RedirectScheduler
	targets      RedirectTargets
	transitions  map[VerificationStatus]map[VerificationStatus]struct{}
	hooks        []TransitionHook
	now          func() time.Time
	logger       Logger
	activitySink ActivitySink
	replayWindow time.Duration

	// submitting is held by the reset controller while a new password is
	// with the provider. It lives on the flow so every controller built for
	// it shares the latch.
	submitting atomic.Bool

	processed bool
	closed    bool
	request   ActionRequest
	status    VerificationStatus
	kind      ErrorKind
	message   string
}

// NewVerificationFlow returns a flow in the loading status.
func NewVerificationFlow(gateway CodeApplier, opts ...FlowOption) *VerificationFlow {
	f := &VerificationFlow{
		id:      uuid.New(),
		gateway: gateway,
		targets: DefaultRedirectTargets(),
		transitions: map[VerificationStatus]map[VerificationStatus]struct{}{
			StatusLoading: {
				StatusPasswordResetPending: {},
				StatusSuccess:              {},
				StatusExpired:              {},
				StatusError:                {},
			},
			StatusPasswordResetPending: {
				StatusSuccess: {},
				StatusError:   {},
			},
		},
		now:          time.Now,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		replayWindow: DefaultReplayWindow,
		status:       StatusLoading,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}

	return f
}

// Process runs the link once. Further calls, for the same or another
// request, return the current status without side effects. The returned
// error is only set when the outcome could not be recorded; the outcome
// itself is reported by the status, ErrorKind and Message.
func (f *VerificationFlow) Process(ctx context.Context, req ActionRequest) (VerificationStatus, error) {
	select {
	case <-ctx.Done():
		return f.Status(), ctx.Err()
	default:
	}

	f.mu.Lock()
	if f.processed || f.closed {
		status := f.status
		f.mu.Unlock()
		return status, nil
	}
	f.processed = true
	f.request = req
	f.mu.Unlock()

	defer f.recordLinkProcessed(ctx)

	if !req.IsProcessable() {
		f.logger.Debug("rejecting action link: mode=%s has_code=%t", req.Mode, req.ActionCode != "")
		return f.settle(ctx, StatusError, KindMalformedLink, MessageInvalidLink)
	}

	if outcome, ok := f.replay(ctx, req); ok {
		status, kind, message := f.replayedOutcome(outcome)
		return f.settle(ctx, status, kind, message)
	}

	switch req.Mode {
	case ModeResetPassword:
		// The reset code is validated by the provider when the new
		// password is submitted.
		return f.settle(ctx, StatusPasswordResetPending, KindNone, MessageChooseNewPassword)
	default:
		return f.applyVerification(ctx, req)
	}
}

func (f *VerificationFlow) applyVerification(ctx context.Context, req ActionRequest) (VerificationStatus, error) {
	if f.gateway == nil {
		f.logger.Error("verification flow %s has no gateway", f.id)
		return f.settle(ctx, StatusError, KindProviderUnavailable, MessageUnavailable)
	}

	info, err := f.gateway.ApplyVerificationCode(ctx, req.ActionCode)
	if err != nil {
		kind := ClassifyGatewayError(err)
		f.logger.Debug("apply verification code failed: kind=%s err=%v", kind, err)

		if kind == KindInvalidOrReusedCode {
			return f.settle(ctx, StatusExpired, kind, MessageExpiredOrUsed)
		}
		return f.settle(ctx, StatusError, KindProviderUnavailable, MessageUnavailable)
	}

	uid := f.verifiedUID(info)
	f.syncVerifiedProfile(ctx, uid, req, info)
	f.session.MarkVerified()

	status, err := f.settle(ctx, StatusSuccess, KindNone, MessageEmailVerified)
	if err == nil && status == StatusSuccess {
		f.remember(ctx, req.ActionCode, uid)
		recordActivity(ctx, f.activitySink, f.logger, f.now, ActivityEvent{
			EventType: ActivityEventEmailVerified,
			FlowID:    f.id.String(),
			UserID:    uid,
			Mode:      ModeVerifyEmail,
			ToStatus:  StatusSuccess,
		})
	}
	return status, err
}

func (f *VerificationFlow) verifiedUID(info *CodeInfo) string {
	if info != nil && info.UID != "" {
		return info.UID
	}
	if user, ok := f.session.CurrentUser(); ok {
		return user.UID
	}
	return ""
}

// syncVerifiedProfile caches the verified flag. The provider stays
// authoritative, so failures are logged and swallowed.
func (f *VerificationFlow) syncVerifiedProfile(ctx context.Context, uid string, req ActionRequest, info *CodeInfo) {
	if f.profiles == nil {
		return
	}

	if uid == "" {
		f.logger.Warn("email verified but no uid is known, skipping profile sync")
		return
	}

	fields := VerifiedFields(f.now(), VerificationMethodEmailLink)
	email := req.Email
	if info != nil && info.Email != "" {
		email = info.Email
	}
	if email != "" {
		fields[FieldEmail] = email
	}

	if err := f.profiles.MergeUpdate(ctx, uid, fields); err != nil {
		f.logger.Error("profile sync failed for %s: %v", uid, err)
		recordActivity(ctx, f.activitySink, f.logger, f.now, ActivityEvent{
			EventType: ActivityEventProfileSyncFailed,
			FlowID:    f.id.String(),
			UserID:    uid,
			Mode:      ModeVerifyEmail,
			Kind:      KindProfileSync,
			Metadata: map[string]any{
				"code":  KindTextCode(KindProfileSync),
				"error": err.Error(),
			},
		})
	}
}

// replay looks up a settled verification for the same code. Reset links
// are never replayed: they always wait for a new password.
func (f *VerificationFlow) replay(ctx context.Context, req ActionRequest) (*LinkOutcome, bool) {
	if f.outcomes == nil || req.Mode != ModeVerifyEmail {
		return nil, false
	}

	outcome, ok, err := f.outcomes.Lookup(ctx, req.ActionCode)
	if err != nil {
		f.logger.Warn("outcome cache lookup failed: %v", err)
		return nil, false
	}

	if !ok || outcome == nil || outcome.Mode != req.Mode || !cacheable(outcome.Status) {
		return nil, false
	}

	f.logger.Debug("replaying %s outcome for %s link", outcome.Status, outcome.Mode)
	return outcome, true
}

// replayedOutcome reports a repeated success as such only inside the replay
// window (a double click or a reload). Past it the code counts as reused.
func (f *VerificationFlow) replayedOutcome(outcome *LinkOutcome) (VerificationStatus, ErrorKind, string) {
	if outcome.Status == StatusSuccess && f.replayWindow > 0 {
		if age := f.now().Sub(outcome.RecordedAt); age >= 0 && age <= f.replayWindow {
			return StatusSuccess, KindNone, MessageEmailVerified
		}
	}
	return StatusExpired, KindInvalidOrReusedCode, MessageExpiredOrUsed
}

func (f *VerificationFlow) remember(ctx context.Context, code, uid string) {
	if f.outcomes == nil || code == "" {
		return
	}

	f.mu.Lock()
	if f.request.Mode != ModeVerifyEmail {
		f.mu.Unlock()
		return
	}
	outcome := LinkOutcome{
		Mode:       f.request.Mode,
		Status:     f.status,
		Kind:       f.kind,
		Message:    f.message,
		UID:        uid,
		RecordedAt: f.now(),
	}
	f.mu.Unlock()

	if !cacheable(outcome.Status) {
		return
	}

	if err := f.outcomes.Record(ctx, code, outcome); err != nil {
		f.logger.Warn("outcome cache record failed: %v", err)
	}
}

// settle moves the flow to target and returns the resulting status.
func (f *VerificationFlow) settle(ctx context.Context, target VerificationStatus, kind ErrorKind, message string) (VerificationStatus, error) {
	if _, err := f.transition(ctx, target, kind, message); err != nil {
		return f.Status(), err
	}

	if target == StatusExpired {
		f.remember(ctx, f.Request().ActionCode, "")
	}

	return f.Status(), nil
}

// transition applies a status change. It reports false, without error,
// when the flow was closed and the change discarded.
func (f *VerificationFlow) transition(ctx context.Context, target VerificationStatus, kind ErrorKind, message string) (bool, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		f.logger.Debug("flow %s closed, discarding transition to %s", f.id, target)
		return false, nil
	}

	from := f.status
	if from == target {
		f.kind = kind
		f.message = message
		f.mu.Unlock()
		return true, nil
	}

	if from.IsTerminal() {
		f.mu.Unlock()
		return false, ErrTerminalState.WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	if !f.canTransition(from, target) {
		f.mu.Unlock()
		return false, ErrInvalidTransition.WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	f.status = target
	f.kind = kind
	f.message = message

	tc := TransitionContext{
		FlowID:  f.id,
		Mode:    f.request.Mode,
		From:    from,
		To:      target,
		Kind:    kind,
		Message: message,
	}
	f.mu.Unlock()

	f.afterTransition(ctx, tc)
	return true, nil
}

func (f *VerificationFlow) canTransition(from, to VerificationStatus) bool {
	if allowed, ok := f.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (f *VerificationFlow) afterTransition(ctx context.Context, tc TransitionContext) {
	for _, hook := range f.hooks {
		if err := hook(ctx, tc); err != nil {
			f.logger.Warn("transition hook failed %s -> %s: %v", tc.From, tc.To, err)
		}
	}

	var metadata map[string]any
	if tc.Message != "" {
		metadata = map[string]any{"message": tc.Message}
	}

	recordActivity(ctx, f.activitySink, f.logger, f.now, ActivityEvent{
		EventType:  ActivityEventStatusChanged,
		FlowID:     tc.FlowID.String(),
		Mode:       tc.Mode,
		FromStatus: tc.From,
		ToStatus:   tc.To,
		Kind:       tc.Kind,
		Metadata:   metadata,
	})

	if tc.To == StatusSuccess {
		f.redirect(tc.Mode)
	}
}

func (f *VerificationFlow) redirect(mode ActionMode) {
	if f.scheduler == nil {
		return
	}

	target := f.targets.For(mode)
	switch mode {
	case ModeVerifyEmail:
		f.scheduler.Start(target)
	case ModeResetPassword:
		f.scheduler.NavigateNow(target)
	}
}

func (f *VerificationFlow) recordLinkProcessed(ctx context.Context) {
	snap := f.Snapshot()
	recordActivity(ctx, f.activitySink, f.logger, f.now, ActivityEvent{
		EventType: ActivityEventLinkProcessed,
		FlowID:    snap.ID.String(),
		Mode:      snap.Mode,
		ToStatus:  snap.Status,
		Kind:      snap.Kind,
	})
}

// Close tears down the flow. Pending navigation is cancelled and results
// arriving later are discarded.
func (f *VerificationFlow) Close() {
	f.mu.Lock()
	f.closed = true
	scheduler := f.scheduler
	f.mu.Unlock()

	if scheduler != nil {
		scheduler.Stop()
	}
}

// Closed reports whether Close was called.
func (f *VerificationFlow) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// ID returns the flow identifier.
func (f *VerificationFlow) ID() uuid.UUID {
	return f.id
}

func (f *VerificationFlow) Status() VerificationStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *VerificationFlow) Mode() ActionMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.request.Mode
}

func (f *VerificationFlow) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

func (f *VerificationFlow) ErrorKind() ErrorKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.kind
}

func (f *VerificationFlow) Request() ActionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.request
}

// Scheduler returns the redirect scheduler, if any.
func (f *VerificationFlow) Scheduler() *RedirectScheduler {
	return f.scheduler
}

// FlowSnapshot is a consistent read of the flow state.
type FlowSnapshot struct {
	ID          uuid.UUID          `json:"id"`
	Mode        ActionMode         `json:"mode"`
	Status      VerificationStatus `json:"status"`
	Kind        ErrorKind          `json:"kind,omitempty"`
	Message     string             `json:"message,omitempty"`
	Email       string             `json:"email,omitempty"`
	DisplayName string             `json:"name,omitempty"`
}

// Snapshot returns the current state in one read.
func (f *VerificationFlow) Snapshot() FlowSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FlowSnapshot{
		ID:          f.id,
		Mode:        f.request.Mode,
		Status:      f.status,
		Kind:        f.kind,
		Message:     f.message,
		Email:       f.request.Email,
		DisplayName: f.request.DisplayName,
	}
}
