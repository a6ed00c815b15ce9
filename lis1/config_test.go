package lis1

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlis/astmsim/astm"
	"github.com/openlis/astmsim/logger"
)

func TestNewSessionConfig_Defaults(t *testing.T) {
	cfg, err := NewSessionConfig()
	require.NoError(t, err)

	assert.Equal(t, DefaultEstablishTimeout, cfg.EstablishTimeout())
	assert.Equal(t, DefaultFrameAckTimeout, cfg.FrameAckTimeout())
	assert.Equal(t, DefaultReceiverTimeout, cfg.ReceiverTimeout())
	assert.Equal(t, DefaultLinkIdleTimeout, cfg.LinkIdleTimeout())
	assert.Equal(t, DefaultContentionWait, cfg.ContentionWait())
	assert.Equal(t, DefaultContentionRetries, cfg.ContentionRetries())
	assert.Equal(t, DefaultResponseDelay, cfg.ResponseDelay())

	assert.Nil(t, cfg.Handler())
	assert.Nil(t, cfg.Responder())
	assert.NotNil(t, cfg.Metrics())
	assert.NotNil(t, cfg.GetLogger())
}

func TestNewSessionConfig_WithOptions(t *testing.T) {
	metrics := &SessionMetrics{}

	cfg, err := NewSessionConfig(
		WithEstablishTimeout(5*time.Second),
		WithFrameAckTimeout(10*time.Second),
		WithReceiverTimeout(20*time.Second),
		WithLinkIdleTimeout(2*time.Minute),
		WithContentionWait(2*time.Second),
		WithContentionRetries(5),
		WithResponseDelay(250*time.Millisecond),
		WithMessageHandler(func(*astm.Message) {}),
		WithQueryResponder(func() *astm.Message { return nil }),
		WithMetrics(metrics),
		WithLogger(logger.GetLogger()),
	)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.EstablishTimeout())
	assert.Equal(t, 10*time.Second, cfg.FrameAckTimeout())
	assert.Equal(t, 20*time.Second, cfg.ReceiverTimeout())
	assert.Equal(t, 2*time.Minute, cfg.LinkIdleTimeout())
	assert.Equal(t, 2*time.Second, cfg.ContentionWait())
	assert.Equal(t, 5, cfg.ContentionRetries())
	assert.Equal(t, 250*time.Millisecond, cfg.ResponseDelay())
	assert.NotNil(t, cfg.Handler())
	assert.NotNil(t, cfg.Responder())
	assert.Same(t, metrics, cfg.Metrics())
}

func TestSessionConfig_TimeoutBounds(t *testing.T) {
	tests := []struct {
		name string
		opt  SessionOption
	}{
		{"establish below min", WithEstablishTimeout(MinEstablishTimeout - time.Millisecond)},
		{"establish above max", WithEstablishTimeout(MaxEstablishTimeout + time.Second)},
		{"frame ack below min", WithFrameAckTimeout(MinFrameAckTimeout - time.Millisecond)},
		{"frame ack above max", WithFrameAckTimeout(MaxFrameAckTimeout + time.Second)},
		{"receiver below min", WithReceiverTimeout(MinReceiverTimeout - time.Millisecond)},
		{"receiver above max", WithReceiverTimeout(MaxReceiverTimeout + time.Second)},
		{"link idle below min", WithLinkIdleTimeout(MinLinkIdleTimeout - time.Millisecond)},
		{"link idle above max", WithLinkIdleTimeout(MaxLinkIdleTimeout + time.Second)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSessionConfig(tt.opt)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "out of range")
		})
	}
}

func TestWithContentionWait_Bounds(t *testing.T) {
	// The holdoff may not undercut the one second the standard gives the
	// instrument side.
	_, err := NewSessionConfig(WithContentionWait(500 * time.Millisecond))
	require.Error(t, err)

	cfg, err := NewSessionConfig(WithContentionWait(MinContentionWait))
	require.NoError(t, err)
	assert.Equal(t, MinContentionWait, cfg.ContentionWait())

	_, err = NewSessionConfig(WithContentionWait(MaxContentionWait + time.Second))
	require.Error(t, err)
}

func TestWithContentionRetries_Bounds(t *testing.T) {
	_, err := NewSessionConfig(WithContentionRetries(0))
	require.Error(t, err)

	_, err = NewSessionConfig(WithContentionRetries(MaxContentionRetries + 1))
	require.Error(t, err)

	cfg, err := NewSessionConfig(WithContentionRetries(MaxContentionRetries))
	require.NoError(t, err)
	assert.Equal(t, MaxContentionRetries, cfg.ContentionRetries())
}

func TestWithResponseDelay_Bounds(t *testing.T) {
	// Zero disables pacing.
	cfg, err := NewSessionConfig(WithResponseDelay(0))
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.ResponseDelay())

	_, err = NewSessionConfig(WithResponseDelay(-time.Millisecond))
	require.Error(t, err)

	_, err = NewSessionConfig(WithResponseDelay(MaxResponseDelay + time.Second))
	require.Error(t, err)
}

func TestSessionConfig_NilCallbacks(t *testing.T) {
	_, err := NewSessionConfig(WithMessageHandler(nil))
	require.Error(t, err)

	_, err = NewSessionConfig(WithQueryResponder(nil))
	require.Error(t, err)

	_, err = NewSessionConfig(WithMetrics(nil))
	require.Error(t, err)

	_, err = NewSessionConfig(WithLogger(nil))
	require.Error(t, err)
}

func TestSessionState_String(t *testing.T) {
	tests := []struct {
		state SessionState
		want  string
	}{
		{StateIdle, "idle"},
		{StateAwaitEstablish, "await-establish"},
		{StateEstablishedReceiver, "established-receiver"},
		{StateEstablishedSender, "established-sender"},
		{StateContention, "contention"},
		{StateTerminating, "terminating"},
		{StateAborted, "aborted"},
		{SessionState(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

func TestSessionState_Predicates(t *testing.T) {
	assert.True(t, StateIdle.IsIdle())
	assert.False(t, StateIdle.IsEstablished())

	assert.True(t, StateEstablishedReceiver.IsEstablished())
	assert.True(t, StateEstablishedSender.IsEstablished())
	assert.False(t, StateContention.IsEstablished())

	assert.True(t, StateAborted.IsAborted())
	assert.False(t, StateTerminating.IsAborted())
}
