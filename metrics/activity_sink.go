package metrics

import (
	"context"
	"strconv"

	actions "github.com/goliatone/go-auth-actions"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "auth_actions"

// ActivitySink counts activity events. It implements actions.ActivitySink
// and is usually combined with an audit sink through
// actions.MultiActivitySink.
type ActivitySink struct {
	links       *prometheus.CounterVec
	transitions *prometheus.CounterVec
	resends     *prometheus.CounterVec
	verified    prometheus.Counter
	resets      prometheus.Counter
	syncErrors  prometheus.Counter
}

var _ actions.ActivitySink = (*ActivitySink)(nil)

// NewActivitySink creates the counters and registers them on reg. A nil
// reg skips registration.
func NewActivitySink(reg prometheus.Registerer) (*ActivitySink, error) {
	s := &ActivitySink{
		links: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_processed_total",
			Help:      "Action links processed, by mode and settled status.",
		}, []string{"mode", "status"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Flow status transitions.",
		}, []string{"mode", "from", "to"}),
		resends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verification_resends_total",
			Help:      "Verification emails re-issued, by whether the default settings fallback was used.",
		}, []string{"fallback"}),
		verified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_verified_total",
			Help:      "Emails confirmed as verified.",
		}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passwords_reset_total",
			Help:      "Passwords reset through an action link.",
		}),
		syncErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_sync_failures_total",
			Help:      "Profile store writes that failed.",
		}),
	}

	if reg != nil {
		for _, c := range s.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return s, nil
}

func (s *ActivitySink) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		s.links,
		s.transitions,
		s.resends,
		s.verified,
		s.resets,
		s.syncErrors,
	}
}

// Record implements actions.ActivitySink.
func (s *ActivitySink) Record(_ context.Context, event actions.ActivityEvent) error {
	switch event.EventType {
	case actions.ActivityEventLinkProcessed:
		s.links.WithLabelValues(label(string(event.Mode)), label(string(event.ToStatus))).Inc()
	case actions.ActivityEventStatusChanged:
		s.transitions.WithLabelValues(label(string(event.Mode)), label(string(event.FromStatus)), label(string(event.ToStatus))).Inc()
	case actions.ActivityEventVerificationResent:
		fallback, _ := event.Metadata["fallback"].(bool)
		s.resends.WithLabelValues(strconv.FormatBool(fallback)).Inc()
	case actions.ActivityEventEmailVerified:
		s.verified.Inc()
	case actions.ActivityEventPasswordReset:
		s.resets.Inc()
	case actions.ActivityEventProfileSyncFailed:
		s.syncErrors.Inc()
	}
	return nil
}

func label(v string) string {
	if v == "" {
		return "none"
	}
	return v
}
