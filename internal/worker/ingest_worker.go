package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/fxp-labs/support-bridge/internal/config"
	"github.com/fxp-labs/support-bridge/internal/observability"
	"github.com/fxp-labs/support-bridge/internal/queue"
	"github.com/fxp-labs/support-bridge/internal/service"
)

const (
	closeDirective = "@close"
	openDirective  = "@support"
)

// IngestWorker drains the incoming queue, classifying each job as a
// command or a conversational message and resolving it against the
// ticket store. It never sends directly; confirmations reach the
// recipient only through the outgoing queue.
type IngestWorker struct {
	incoming queue.IncomingQueue
	tickets  *service.TicketService
	cfg      config.QueueConfig
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewIngestWorker constructs the worker.
func NewIngestWorker(incoming queue.IncomingQueue, tickets *service.TicketService, cfg config.QueueConfig, metrics *observability.Metrics, logger *zap.Logger) *IngestWorker {
	return &IngestWorker{
		incoming: incoming,
		tickets:  tickets,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run processes jobs until ctx is canceled. The blocking dequeue is
// the loop's only indefinite wait; every other pause is a bounded
// backoff.
func (w *IngestWorker) Run(ctx context.Context) {
	w.logger.Info("ingest worker started")
	for {
		job, err := w.incoming.PopIncoming(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("ingest worker stopping")
				return
			}
			if errors.Is(err, queue.ErrMalformedJob) {
				// Poison pill: drop without retry.
				w.metrics.IngestJobsDropped.WithLabelValues("malformed").Inc()
				w.logger.Error("dropping malformed incoming job", zap.Error(err))
				continue
			}
			w.logger.Error("incoming dequeue failed", zap.Error(err))
			if !sleepCtx(ctx, w.cfg.IngestBackoff()) {
				return
			}
			continue
		}
		w.process(ctx, job)
	}
}

func (w *IngestWorker) process(ctx context.Context, job *queue.IncomingJob) {
	start := time.Now()
	defer func() {
		w.metrics.IngestDuration.Observe(time.Since(start).Seconds())
	}()

	command := strings.ToLower(strings.TrimSpace(job.Text))

	var err error
	switch {
	case strings.HasPrefix(command, closeDirective):
		err = w.handleClose(ctx, job)
	case strings.Contains(command, openDirective):
		err = w.handleExplicitOpen(ctx, job)
	default:
		err = w.handleDefault(ctx, job)
	}

	if err != nil {
		// The job is already consumed; it is not retried. Back off so
		// a failing store is not hammered by the next pull.
		w.metrics.IngestJobsDropped.WithLabelValues("store_error").Inc()
		w.logger.Error("failed to process incoming job",
			zap.Error(err),
			zap.String("group_jid", job.GroupJID),
			zap.String("sender", job.SenderPhone))
		sleepCtx(ctx, w.cfg.IngestBackoff())
	}
}

// handleClose resolves "@close CODE" against the ticket store. Unknown
// codes are logged and dropped; retrying an unresolvable code cannot
// succeed.
func (w *IngestWorker) handleClose(ctx context.Context, job *queue.IncomingJob) error {
	fields := strings.Fields(job.Text)
	if len(fields) < 2 {
		w.metrics.IngestJobsDropped.WithLabelValues("missing_code").Inc()
		w.logger.Info("close command without ticket code", zap.String("sender", job.SenderPhone))
		return nil
	}
	code := strings.ToUpper(fields[1])

	ticket, err := w.tickets.CloseByCode(ctx, code)
	if errors.Is(err, pgx.ErrNoRows) {
		w.metrics.IngestJobsDropped.WithLabelValues("unknown_code").Inc()
		w.logger.Info("close command for unknown ticket", zap.String("code", code))
		return nil
	}
	if err != nil {
		return err
	}

	w.metrics.IngestJobsProcessed.WithLabelValues("close").Inc()
	w.logger.Info("ticket closed by user",
		zap.String("ticket_id", ticket.ID),
		zap.String("code", code))
	return nil
}

func (w *IngestWorker) handleExplicitOpen(ctx context.Context, job *queue.IncomingJob) error {
	ticket, created, err := w.tickets.OpenExplicit(ctx, *job)
	if err != nil {
		return err
	}
	path := "open_attach"
	if created {
		path = "open_create"
	}
	w.metrics.IngestJobsProcessed.WithLabelValues(path).Inc()
	w.logger.Info("open directive processed",
		zap.String("ticket_id", ticket.ID),
		zap.Bool("created", created))
	return nil
}

func (w *IngestWorker) handleDefault(ctx context.Context, job *queue.IncomingJob) error {
	ticket, created, err := w.tickets.IngestDefault(ctx, *job)
	if err != nil {
		return err
	}
	path := "message"
	if created {
		path = "fallback_create"
	}
	w.metrics.IngestJobsProcessed.WithLabelValues(path).Inc()
	w.logger.Info("incoming message ingested",
		zap.String("ticket_id", ticket.ID),
		zap.Bool("created", created))
	return nil
}

// sleepCtx waits for d or until ctx is canceled, reporting whether the
// full wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
