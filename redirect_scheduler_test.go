package actions_test

import (
	"sync"
	"testing"
	"time"

	actions "github.com/goliatone/go-auth-actions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler() (*actions.RedirectScheduler, *recordingNavigator, *manualClock) {
	nav := &recordingNavigator{}
	clock := &manualClock{}
	scheduler := actions.NewRedirectScheduler(nav,
		actions.WithRedirectAfterFunc(clock.AfterFunc),
		actions.WithRedirectLogger(nopLogger{}),
	)
	return scheduler, nav, clock
}

func TestRedirectSchedulerCountdown(t *testing.T) {
	scheduler, nav, clock := newTestScheduler()

	require.True(t, scheduler.Start("/"))
	assert.Equal(t, "/", scheduler.Target())
	assert.Empty(t, nav.Targets())

	timers := clock.Timers()
	require.Len(t, timers, 1)
	assert.Equal(t, actions.DefaultRedirectDelay, timers[0].delay)

	clock.Fire()
	assert.Equal(t, []string{"/"}, nav.Targets())
	assert.True(t, scheduler.Done())
}

func TestRedirectSchedulerContinueBeforeTimer(t *testing.T) {
	scheduler, nav, clock := newTestScheduler()

	require.True(t, scheduler.Start("/"))
	assert.True(t, scheduler.Continue())

	// the timer was stopped, so firing does nothing
	clock.Fire()
	assert.False(t, scheduler.Continue())

	assert.Equal(t, []string{"/"}, nav.Targets())
	assert.True(t, clock.Timers()[0].stopped)
}

func TestRedirectSchedulerTimerThenContinue(t *testing.T) {
	scheduler, nav, clock := newTestScheduler()

	require.True(t, scheduler.Start("/home"))
	clock.Fire()
	assert.False(t, scheduler.Continue())
	assert.Equal(t, []string{"/home"}, nav.Targets())
}

func TestRedirectSchedulerStartOnce(t *testing.T) {
	scheduler, _, clock := newTestScheduler()

	assert.True(t, scheduler.Start("/"))
	assert.False(t, scheduler.Start("/other"))
	assert.Equal(t, "/", scheduler.Target())
	assert.Len(t, clock.Timers(), 1)
}

func TestRedirectSchedulerContinueWithoutStart(t *testing.T) {
	scheduler, nav, _ := newTestScheduler()
	assert.False(t, scheduler.Continue())
	assert.Empty(t, nav.Targets())
}

func TestRedirectSchedulerStop(t *testing.T) {
	scheduler, nav, clock := newTestScheduler()

	require.True(t, scheduler.Start("/"))
	scheduler.Stop()
	clock.Fire()

	assert.True(t, scheduler.Done())
	assert.False(t, scheduler.Continue())
	assert.False(t, scheduler.Start("/"))
	assert.False(t, scheduler.NavigateNow("/login"))
	assert.Empty(t, nav.Targets())
}

func TestRedirectSchedulerNavigateNow(t *testing.T) {
	scheduler, nav, clock := newTestScheduler()

	assert.True(t, scheduler.NavigateNow("/login"))
	assert.False(t, scheduler.NavigateNow("/login"))
	assert.Equal(t, []string{"/login"}, nav.Targets())
	assert.Empty(t, clock.Timers())
}

func TestRedirectSchedulerNilNavigator(t *testing.T) {
	scheduler := actions.NewRedirectScheduler(nil, actions.WithRedirectLogger(nopLogger{}))
	assert.NotPanics(t, func() {
		assert.False(t, scheduler.NavigateNow("/"))
	})
}

func TestRedirectSchedulerConcurrentContinue(t *testing.T) {
	nav := &recordingNavigator{}
	scheduler := actions.NewRedirectScheduler(nav, actions.WithRedirectDelay(time.Millisecond))
	require.True(t, scheduler.Start("/"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scheduler.Continue()
		}()
	}
	wg.Wait()

	assert.Eventually(t, scheduler.Done, time.Second, time.Millisecond)
	// give a late timer a chance to misfire
	time.Sleep(5 * time.Millisecond)
	assert.Len(t, nav.Targets(), 1)
}

func TestRedirectTargetsFor(t *testing.T) {
	targets := actions.RedirectTargets{VerifyEmail: "/dashboard"}
	assert.Equal(t, "/dashboard", targets.For(actions.ModeVerifyEmail))
	assert.Equal(t, "/login", targets.For(actions.ModeResetPassword))
	assert.Equal(t, "/", actions.RedirectTargets{}.For(actions.ModeUnknown))
}
