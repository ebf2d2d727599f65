// Package activitymap turns action activity events into audit records.
package activitymap

import (
	"context"
	"strings"
	"time"

	actions "github.com/goliatone/go-auth-actions"
)

const (
	AnonymousActor = "anonymous"
	DefaultChannel = "actions"
)

// Record is the audit form of an action event. Object names the flow and
// its mode when the event belongs to a link, otherwise the user.
type Record struct {
	Actor      string         `json:"actor"`
	Action     string         `json:"action"`
	Object     string         `json:"object"`
	Outcome    string         `json:"outcome,omitempty"`
	Transition string         `json:"transition,omitempty"`
	Channel    string         `json:"channel"`
	Attributes map[string]any `json:"attributes,omitempty"`
	At         time.Time      `json:"at"`
}

type Option func(*mapper)

type mapper struct {
	channel string
	now     func() time.Time
}

// WithChannel overrides the channel stamped on records.
func WithChannel(channel string) Option {
	return func(m *mapper) {
		if channel = strings.TrimSpace(channel); channel != "" {
			m.channel = channel
		}
	}
}

// WithClock sets the clock used for events without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(m *mapper) {
		if now != nil {
			m.now = now
		}
	}
}

// FromEvent maps an event to a Record. Failed events carry their error kind
// in the action, e.g. "action.link.processed:invalid_or_reused_code".
func FromEvent(event actions.ActivityEvent, opts ...Option) Record {
	m := mapper{channel: DefaultChannel, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}

	at := event.OccurredAt
	if at.IsZero() {
		at = m.now()
	}

	record := Record{
		Actor:   AnonymousActor,
		Action:  string(event.EventType),
		Object:  objectOf(event),
		Outcome: string(event.ToStatus),
		Channel: m.channel,
		At:      at.UTC(),
	}

	if uid := strings.TrimSpace(event.UserID); uid != "" {
		record.Actor = uid
	}
	if event.Kind != actions.KindNone {
		record.Action += ":" + string(event.Kind)
	}
	if event.FromStatus != "" && event.ToStatus != "" {
		record.Transition = string(event.FromStatus) + "->" + string(event.ToStatus)
	}
	if len(event.Metadata) > 0 {
		record.Attributes = make(map[string]any, len(event.Metadata))
		for key, value := range event.Metadata {
			record.Attributes[key] = value
		}
	}

	return record
}

func objectOf(event actions.ActivityEvent) string {
	if id := strings.TrimSpace(event.FlowID); id != "" {
		if event.Mode == actions.ModeUnknown {
			return "flow/" + id
		}
		return "flow/" + id + "/" + string(event.Mode)
	}
	if uid := strings.TrimSpace(event.UserID); uid != "" {
		return "user/" + uid
	}
	return "unknown"
}

// Logger is the subset of the application logger the audit sink writes to.
type Logger interface {
	Info(format string, args ...any)
}

// AuditSink writes every event as an audit log line.
type AuditSink struct {
	logger Logger
	opts   []Option
}

var _ actions.ActivitySink = (*AuditSink)(nil)

// NewAuditSink returns a sink logging to logger.
func NewAuditSink(logger Logger, opts ...Option) *AuditSink {
	return &AuditSink{logger: logger, opts: opts}
}

// Record implements actions.ActivitySink.
func (s *AuditSink) Record(_ context.Context, event actions.ActivityEvent) error {
	if s == nil || s.logger == nil {
		return nil
	}

	r := FromEvent(event, s.opts...)
	if r.Transition != "" {
		s.logger.Info("[%s] %s %s actor=%s transition=%s attrs=%v", r.Channel, r.Action, r.Object, r.Actor, r.Transition, r.Attributes)
		return nil
	}
	s.logger.Info("[%s] %s %s actor=%s outcome=%s attrs=%v", r.Channel, r.Action, r.Object, r.Actor, r.Outcome, r.Attributes)
	return nil
}
