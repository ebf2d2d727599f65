package actions_test

import (
	"context"
	"sync"
	"time"

	actions "github.com/goliatone/go-auth-actions"
	"github.com/stretchr/testify/mock"
)

// MockGateway implements actions.Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) ApplyVerificationCode(ctx context.Context, code string) (*actions.CodeInfo, error) {
	args := m.Called(ctx, code)
	info, _ := args.Get(0).(*actions.CodeInfo)
	return info, args.Error(1)
}

func (m *MockGateway) ConfirmPasswordReset(ctx context.Context, code, newPassword string) error {
	args := m.Called(ctx, code, newPassword)
	return args.Error(0)
}

func (m *MockGateway) ReloadCurrentUser(ctx context.Context, user *actions.PendingCredentialUser) (*actions.UserState, error) {
	args := m.Called(ctx, user)
	state, _ := args.Get(0).(*actions.UserState)
	return state, args.Error(1)
}

func (m *MockGateway) IssueVerificationEmail(ctx context.Context, user *actions.PendingCredentialUser, settings *actions.ActionCodeSettings) error {
	args := m.Called(ctx, user, settings)
	return args.Error(0)
}

// MockProfileStore implements actions.ProfileStore
type MockProfileStore struct {
	mock.Mock
}

func (m *MockProfileStore) Get(ctx context.Context, uid string) (*actions.UserProfile, error) {
	args := m.Called(ctx, uid)
	profile, _ := args.Get(0).(*actions.UserProfile)
	return profile, args.Error(1)
}

func (m *MockProfileStore) MergeUpdate(ctx context.Context, uid string, fields actions.ProfileFields) error {
	args := m.Called(ctx, uid, fields)
	return args.Error(0)
}

type recordingNavigator struct {
	mu      sync.Mutex
	targets []string
}

func (n *recordingNavigator) Navigate(target string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, target)
}

func (n *recordingNavigator) Targets() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.targets...)
}

type manualTimer struct {
	clock   *manualClock
	fn      func()
	delay   time.Duration
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// manualClock hands out timers that only fire on Fire.
type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (c *manualClock) AfterFunc(d time.Duration, fn func()) actions.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, fn: fn, delay: d}
	c.timers = append(c.timers, t)
	return t
}

// Fire runs every pending timer.
func (c *manualClock) Fire() {
	c.mu.Lock()
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

func (c *manualClock) Timers() []*manualTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*manualTimer(nil), c.timers...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []actions.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event actions.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Find(eventType actions.ActivityEventType) (actions.ActivityEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.EventType == eventType {
			return e, true
		}
	}
	return actions.ActivityEvent{}, false
}

func (s *recordingSink) Types() []actions.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]actions.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
