package worker

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/fxp-labs/support-bridge/internal/config"
	"github.com/fxp-labs/support-bridge/internal/observability"
	"github.com/fxp-labs/support-bridge/internal/queue"
)

const (
	groupSuffix      = "@g.us"
	individualSuffix = "@s.whatsapp.net"
)

// Sender delivers rendered text to a chat destination.
type Sender interface {
	SendText(ctx context.Context, to, text string) error
}

// Connectivity exposes the transport's current session state.
type Connectivity interface {
	Connected() bool
}

// DispatchWorker drains the outgoing queue one job at a time. It gates
// on connectivity and the pause flag before dequeueing, requeues on
// transient failure, and paces sends at the configured global rate.
// With a single FIFO and a single worker, non-requeued jobs go out in
// submission order; a requeued job loses its position.
type DispatchWorker struct {
	outgoing queue.OutgoingQueue
	flags    queue.Flags
	conn     Connectivity
	sender   Sender
	cfg      config.QueueConfig
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewDispatchWorker constructs the worker.
func NewDispatchWorker(outgoing queue.OutgoingQueue, flags queue.Flags, conn Connectivity, sender Sender, cfg config.QueueConfig, metrics *observability.Metrics, logger *zap.Logger) *DispatchWorker {
	return &DispatchWorker{
		outgoing: outgoing,
		flags:    flags,
		conn:     conn,
		sender:   sender,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run processes jobs until ctx is canceled.
func (w *DispatchWorker) Run(ctx context.Context) {
	w.logger.Info("dispatch worker started",
		zap.Duration("send_interval", w.cfg.SendInterval()))
	for {
		if ctx.Err() != nil {
			w.logger.Info("dispatch worker stopping")
			return
		}

		// Both gates are checked before consuming so a job is never
		// pulled just to sit in memory while the session is down.
		if !w.conn.Connected() {
			if !sleepCtx(ctx, w.cfg.OfflineRecheck()) {
				return
			}
			continue
		}
		paused, err := w.flags.Paused(ctx)
		if err != nil {
			w.logger.Error("failed to read pause flag", zap.Error(err))
			if !sleepCtx(ctx, w.cfg.PausedRecheck()) {
				return
			}
			continue
		}
		if paused {
			if !sleepCtx(ctx, w.cfg.PausedRecheck()) {
				return
			}
			continue
		}

		job, err := w.outgoing.PopOutgoing(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, queue.ErrMalformedJob) {
				w.logger.Error("dropping malformed outgoing job", zap.Error(err))
				continue
			}
			w.logger.Error("outgoing dequeue failed", zap.Error(err))
			if !sleepCtx(ctx, w.cfg.DispatchRetry()) {
				return
			}
			continue
		}

		w.attempt(ctx, job)

		// Single-consumer throttle: one job per interval regardless of
		// backlog depth.
		if !sleepCtx(ctx, w.cfg.SendInterval()) {
			return
		}
	}
}

func (w *DispatchWorker) attempt(ctx context.Context, job *queue.OutgoingJob) {
	// Connectivity may have dropped between the gate and the dequeue.
	// Never drop a job solely because the session is down.
	if !w.conn.Connected() {
		w.requeue(ctx, job, "disconnected")
		sleepCtx(ctx, w.cfg.DispatchRetry())
		return
	}

	to := NormalizeRecipient(job.To)
	if err := w.sender.SendText(ctx, to, job.Text); err != nil {
		// A failed send may succeed once the session stabilizes.
		w.metrics.SendAttempts.WithLabelValues("error").Inc()
		w.requeue(ctx, job, "send_error")
		w.logger.Error("send failed, job requeued",
			zap.Error(err),
			zap.String("to", job.To))
		sleepCtx(ctx, w.cfg.DispatchRetry())
		return
	}

	w.metrics.SendAttempts.WithLabelValues("ok").Inc()
	w.logger.Info("message sent", zap.String("to", job.To))
}

func (w *DispatchWorker) requeue(ctx context.Context, job *queue.OutgoingJob, reason string) {
	if err := w.outgoing.Requeue(ctx, *job); err != nil {
		// Requeue failing too means the queue itself is unhealthy;
		// the job is lost and only the log records it.
		w.logger.Error("failed to requeue outgoing job",
			zap.Error(err),
			zap.String("to", job.To))
		return
	}
	w.metrics.SendRequeues.WithLabelValues(reason).Inc()
}

// NormalizeRecipient maps a destination id to a deliverable chat jid.
// Group-class destinations pass through; anything else is reduced to
// its digits and addressed as an individual chat.
func NormalizeRecipient(to string) string {
	if strings.HasSuffix(to, groupSuffix) {
		return to
	}
	var digits strings.Builder
	for _, r := range to {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return digits.String() + individualSuffix
}
