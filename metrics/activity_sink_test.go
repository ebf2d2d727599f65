package metrics

import (
	"context"
	"errors"
	"testing"

	actions "github.com/goliatone/go-auth-actions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubApplier struct {
	info *actions.CodeInfo
	err  error
}

func (s stubApplier) ApplyVerificationCode(ctx context.Context, code string) (*actions.CodeInfo, error) {
	return s.info, s.err
}

func TestActivitySinkCountsFlowEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewActivitySink(reg)
	require.NoError(t, err)

	ok := actions.NewVerificationFlow(stubApplier{info: &actions.CodeInfo{UID: "uid-1"}}, actions.WithFlowActivitySink(sink))
	_, err = ok.Process(context.Background(), actions.ActionRequest{Mode: actions.ModeVerifyEmail, ActionCode: "code"})
	require.NoError(t, err)

	expired := actions.NewVerificationFlow(stubApplier{err: &actions.GatewayError{Code: actions.GatewayExpiredCode}}, actions.WithFlowActivitySink(sink))
	_, err = expired.Process(context.Background(), actions.ActionRequest{Mode: actions.ModeVerifyEmail, ActionCode: "old"})
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(sink.links.WithLabelValues("verifyEmail", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(sink.links.WithLabelValues("verifyEmail", "expired")))
	assert.Equal(t, float64(1), testutil.ToFloat64(sink.transitions.WithLabelValues("verifyEmail", "loading", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(sink.verified))
}

func TestActivitySinkResendFallbackLabel(t *testing.T) {
	sink, err := NewActivitySink(nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Record(ctx, actions.ActivityEvent{
		EventType: actions.ActivityEventVerificationResent,
		Metadata:  map[string]any{"fallback": true},
	}))
	require.NoError(t, sink.Record(ctx, actions.ActivityEvent{
		EventType: actions.ActivityEventVerificationResent,
	}))
	require.NoError(t, sink.Record(ctx, actions.ActivityEvent{EventType: actions.ActivityEventPasswordReset}))
	require.NoError(t, sink.Record(ctx, actions.ActivityEvent{EventType: actions.ActivityEventProfileSyncFailed}))

	assert.Equal(t, float64(1), testutil.ToFloat64(sink.resends.WithLabelValues("true")))
	assert.Equal(t, float64(1), testutil.ToFloat64(sink.resends.WithLabelValues("false")))
	assert.Equal(t, float64(1), testutil.ToFloat64(sink.resets))
	assert.Equal(t, float64(1), testutil.ToFloat64(sink.syncErrors))
}

func TestNewActivitySinkDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewActivitySink(reg)
	require.NoError(t, err)

	_, err = NewActivitySink(reg)
	require.Error(t, err)

	var already prometheus.AlreadyRegisteredError
	assert.True(t, errors.As(err, &already))
}
