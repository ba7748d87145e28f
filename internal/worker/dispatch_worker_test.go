package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fxp-labs/support-bridge/internal/config"
	"github.com/fxp-labs/support-bridge/internal/observability"
	"github.com/fxp-labs/support-bridge/internal/queue"
)

type dispatchFixture struct {
	outgoing *chanOutgoingQueue
	flags    *staticFlags
	conn     *staticConn
	sender   *recordingSender
	metrics  *observability.Metrics
	worker   *DispatchWorker
}

func newDispatchFixture(t *testing.T) *dispatchFixture {
	t.Helper()
	f := &dispatchFixture{
		outgoing: newChanOutgoingQueue(16),
		flags:    &staticFlags{},
		conn:     &staticConn{connected: true},
		sender:   &recordingSender{},
		metrics:  observability.NewMetrics(prometheus.NewRegistry()),
	}
	cfg := config.QueueConfig{RatePerSecond: 1000}
	f.worker = NewDispatchWorker(f.outgoing, f.flags, f.conn, f.sender, cfg, f.metrics, zap.NewNop())
	return f
}

func TestNormalizeRecipient(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"12036304@g.us", "12036304@g.us"},
		{"-100987654@g.us", "-100987654@g.us"},
		{"4915112345678", "4915112345678@s.whatsapp.net"},
		{"+49 151 1234-5678", "4915112345678@s.whatsapp.net"},
		{"4915112345678@s.whatsapp.net", "4915112345678@s.whatsapp.net"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeRecipient(tc.in), "input %q", tc.in)
	}
}

func TestAttemptSendsNormalized(t *testing.T) {
	f := newDispatchFixture(t)
	job := &queue.OutgoingJob{To: "+49 151 12345678", Text: "hello"}

	f.worker.attempt(context.Background(), job)

	sent := f.sender.sentJobs()
	require.Len(t, sent, 1)
	assert.Equal(t, "4915112345678@s.whatsapp.net", sent[0].to)
	assert.Equal(t, "hello", sent[0].text)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SendAttempts.WithLabelValues("ok")))
}

func TestAttemptRequeuesWhenDisconnected(t *testing.T) {
	f := newDispatchFixture(t)
	f.conn.set(false)
	job := &queue.OutgoingJob{To: "12036304@g.us", Text: "hello"}

	f.worker.attempt(context.Background(), job)

	assert.Empty(t, f.sender.sentJobs())
	requeued := f.outgoing.requeuedJobs()
	require.Len(t, requeued, 1)
	assert.Equal(t, "hello", requeued[0].Text)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SendRequeues.WithLabelValues("disconnected")))
}

func TestAttemptRequeuesOnSendFailure(t *testing.T) {
	f := newDispatchFixture(t)
	f.sender.fail = 1
	f.sender.errTo = errors.New("transport hiccup")
	job := &queue.OutgoingJob{To: "12036304@g.us", Text: "hello"}

	f.worker.attempt(context.Background(), job)

	require.Len(t, f.outgoing.requeuedJobs(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SendAttempts.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SendRequeues.WithLabelValues("send_error")))
}

func TestRunDeliversInOrder(t *testing.T) {
	f := newDispatchFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, f.outgoing.PushOutgoing(ctx, queue.OutgoingJob{To: "12036304@g.us", Text: "first"}))
	require.NoError(t, f.outgoing.PushOutgoing(ctx, queue.OutgoingJob{To: "12036304@g.us", Text: "second"}))

	done := make(chan struct{})
	go func() {
		f.worker.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(f.sender.sentJobs()) == 2
	}, 2*time.Second, 5*time.Millisecond)

	sent := f.sender.sentJobs()
	assert.Equal(t, "first", sent[0].text)
	assert.Equal(t, "second", sent[1].text)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestRunPacesSendsAtConfiguredRate(t *testing.T) {
	f := newDispatchFixture(t)
	cfg := config.QueueConfig{RatePerSecond: 20}
	w := NewDispatchWorker(f.outgoing, f.flags, f.conn, f.sender, cfg, f.metrics, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const jobs = 4
	for i := 0; i < jobs; i++ {
		require.NoError(t, f.outgoing.PushOutgoing(ctx, queue.OutgoingJob{To: "12036304@g.us", Text: "burst"}))
	}

	go w.Run(ctx)

	require.Eventually(t, func() bool {
		return len(f.sender.sentJobs()) == jobs
	}, 2*time.Second, 5*time.Millisecond)

	// Three full send intervals separate the first send from the
	// fourth at 20 messages per second.
	sent := f.sender.sentJobs()
	spread := sent[jobs-1].at.Sub(sent[0].at)
	assert.GreaterOrEqual(t, spread, 3*cfg.SendInterval(),
		"burst delivered in %v, faster than the configured rate allows", spread)
}

func TestRunHoldsWhilePaused(t *testing.T) {
	f := newDispatchFixture(t)
	require.NoError(t, f.flags.Pause(context.Background()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, f.outgoing.PushOutgoing(ctx, queue.OutgoingJob{To: "12036304@g.us", Text: "held"}))

	go f.worker.Run(ctx)

	// The job must stay queued while the pause flag is set.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, f.sender.sentJobs())

	require.NoError(t, f.flags.Resume(context.Background()))
	require.Eventually(t, func() bool {
		return len(f.sender.sentJobs()) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRunHoldsWhileDisconnected(t *testing.T) {
	f := newDispatchFixture(t)
	f.conn.set(false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, f.outgoing.PushOutgoing(ctx, queue.OutgoingJob{To: "12036304@g.us", Text: "held"}))

	go f.worker.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, f.sender.sentJobs())

	f.conn.set(true)
	require.Eventually(t, func() bool {
		return len(f.sender.sentJobs()) == 1
	}, 2*time.Second, 5*time.Millisecond)
}
