package actions

import (
	"sync"
	"time"
)

// DefaultRedirectDelay is the countdown before the automatic navigation.
const DefaultRedirectDelay = 5 * time.Second

// RedirectTargets are the destinations used after a successful action.
type RedirectTargets struct {
	VerifyEmail   string
	ResetPassword string
}

// DefaultRedirectTargets returns the home page for verified emails and the
// login page after a password reset.
func DefaultRedirectTargets() RedirectTargets {
	return RedirectTargets{
		VerifyEmail:   "/",
		ResetPassword: "/login",
	}
}

// For returns the target for mode, falling back to the defaults.
func (t RedirectTargets) For(mode ActionMode) string {
	def := DefaultRedirectTargets()
	switch mode {
	case ModeVerifyEmail:
		if t.VerifyEmail != "" {
			return t.VerifyEmail
		}
		return def.VerifyEmail
	case ModeResetPassword:
		if t.ResetPassword != "" {
			return t.ResetPassword
		}
		return def.ResetPassword
	default:
		return def.VerifyEmail
	}
}

// RedirectOption customizes a RedirectScheduler.
type RedirectOption func(*RedirectScheduler)

// WithRedirectDelay overrides the countdown duration.
func WithRedirectDelay(d time.Duration) RedirectOption {
	return func(s *RedirectScheduler) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithRedirectAfterFunc injects the timer factory (useful for tests).
func WithRedirectAfterFunc(fn AfterFunc) RedirectOption {
	return func(s *RedirectScheduler) {
		if fn != nil {
			s.afterFunc = fn
		}
	}
}

// WithRedirectLogger sets the logger.
func WithRedirectLogger(logger Logger) RedirectOption {
	return func(s *RedirectScheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// RedirectScheduler performs at most one navigation, either when its
// countdown elapses or when the user continues manually, whichever comes
// first.
type RedirectScheduler struct {
	mu        sync.Mutex
	navigator Navigator
	delay     time.Duration
	afterFunc AfterFunc
	logger    Logger

	timer   Timer
	target  string
	started bool
	done    bool
}

// NewRedirectScheduler returns a scheduler that navigates through navigator.
func NewRedirectScheduler(navigator Navigator, opts ...RedirectOption) *RedirectScheduler {
	s := &RedirectScheduler{
		navigator: navigator,
		delay:     DefaultRedirectDelay,
		afterFunc: defaultAfterFunc,
		logger:    defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Delay returns the configured countdown.
func (s *RedirectScheduler) Delay() time.Duration {
	return s.delay
}

// Start begins the countdown towards target. It returns false if a
// countdown was already started or the scheduler is done.
func (s *RedirectScheduler) Start(target string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.done {
		return false
	}

	s.started = true
	s.target = target
	s.timer = s.afterFunc(s.delay, s.fire)
	return true
}

// Continue cancels the countdown and navigates immediately. It returns
// false when nothing is pending.
func (s *RedirectScheduler) Continue() bool {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()
	return s.navigate("")
}

// NavigateNow navigates to target without a countdown.
func (s *RedirectScheduler) NavigateNow(target string) bool {
	return s.navigate(target)
}

// Stop cancels any pending navigation without performing it.
func (s *RedirectScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.done = true
}

// Done reports whether the scheduler navigated or was stopped.
func (s *RedirectScheduler) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Target returns the target of the current countdown.
func (s *RedirectScheduler) Target() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

func (s *RedirectScheduler) fire() {
	s.navigate("")
}

func (s *RedirectScheduler) navigate(target string) bool {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return false
	}

	s.done = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if target == "" {
		target = s.target
	} else {
		s.target = target
	}
	navigator := s.navigator
	s.mu.Unlock()

	if navigator == nil {
		s.logger.Warn("redirect to %q dropped: no navigator", target)
		return false
	}

	navigator.Navigate(target)
	return true
}
