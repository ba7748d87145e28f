package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fxp-labs/support-bridge/internal/config"
	"github.com/fxp-labs/support-bridge/internal/events"
	"github.com/fxp-labs/support-bridge/internal/observability"
	"github.com/fxp-labs/support-bridge/internal/queue"
)

// NotificationService turns ingestion events into outgoing
// confirmation jobs. Default-path acknowledgements are throttled by
// the per-conversation and per-sender cooldown markers; explicit
// command confirmations always go out.
type NotificationService struct {
	outgoing queue.OutgoingQueue
	markers  queue.Markers
	cfg      config.QueueConfig
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(outgoing queue.OutgoingQueue, markers queue.Markers, cfg config.QueueConfig, metrics *observability.Metrics, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		outgoing: outgoing,
		markers:  markers,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
	}
}

// RegisterHandlers subscribes to ingestion events.
func (n *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	dispatcher.Subscribe(events.EventTicketClosed, n.handleTicketClosed)
	dispatcher.Subscribe(events.EventMessageAdded, n.handleMessageAdded)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}

	if payload.Explicit {
		text := fmt.Sprintf("Ticket *%s* has been created.", derefOr(payload.Code, event.TicketID))
		return n.enqueue(ctx, queue.OutgoingJob{
			To:   payload.GroupJID,
			Text: text,
			Meta: &queue.JobMeta{Origin: queue.OriginTicketCreated, TicketID: event.TicketID},
		})
	}

	ok, err := n.acquireCooldown(ctx, payload.GroupJID, payload.SenderPhone)
	if err != nil {
		return err
	}
	if !ok {
		n.metrics.NotificationsMuted.Inc()
		n.logger.Debug("ticket creation ack muted by cooldown", zap.String("ticket_id", event.TicketID))
		return nil
	}

	text := fmt.Sprintf("Ticket #%s created for %q.", derefOr(payload.Code, event.TicketID), payload.Subject)
	return n.enqueue(ctx, queue.OutgoingJob{
		To:   payload.GroupJID,
		Text: text,
		Meta: &queue.JobMeta{Origin: queue.OriginIncomingMessage, TicketID: event.TicketID},
	})
}

func (n *NotificationService) handleTicketClosed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketClosedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}
	text := fmt.Sprintf("Ticket *%s* has been closed by the user.", payload.Code)
	return n.enqueue(ctx, queue.OutgoingJob{
		To:   payload.GroupJID,
		Text: text,
		Meta: &queue.JobMeta{Origin: queue.OriginCloseCommand, TicketID: event.TicketID},
	})
}

func (n *NotificationService) handleMessageAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.MessageAddedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}

	ok, err := n.acquireCooldown(ctx, payload.GroupJID, payload.SenderPhone)
	if err != nil {
		return err
	}
	if !ok {
		n.metrics.NotificationsMuted.Inc()
		n.logger.Debug("message ack muted by cooldown", zap.String("ticket_id", event.TicketID))
		return nil
	}

	text := fmt.Sprintf("New message added to Ticket #%s.", derefOr(payload.Code, event.TicketID))
	return n.enqueue(ctx, queue.OutgoingJob{
		To:   payload.GroupJID,
		Text: text,
		Meta: &queue.JobMeta{Origin: queue.OriginIncomingMessage, TicketID: event.TicketID},
	})
}

// acquireCooldown reports whether this attempt won the right to send
// a conversation-level acknowledgement. The conversation claim
// decides: once it is won the acknowledgement goes out, so a claimed
// conversation marker always matches a sent message. The sender
// marker is advisory and may be lost to a concurrent claim from the
// same sender in another conversation; losing it never suppresses a
// won conversation claim.
func (n *NotificationService) acquireCooldown(ctx context.Context, groupJID, senderPhone string) (bool, error) {
	muted, err := n.markers.Seen(ctx, queue.SenderCooldownKey(senderPhone))
	if err != nil {
		return false, err
	}
	if muted {
		return false, nil
	}

	won, err := n.markers.AcquireCooldown(ctx, queue.ConvCooldownKey(groupJID), n.cfg.ConvCooldown())
	if err != nil || !won {
		return false, err
	}
	if _, err := n.markers.AcquireCooldown(ctx, queue.SenderCooldownKey(senderPhone), n.cfg.SenderCooldown()); err != nil {
		n.logger.Warn("failed to claim sender cooldown marker", zap.Error(err))
	}
	return true, nil
}

func (n *NotificationService) enqueue(ctx context.Context, job queue.OutgoingJob) error {
	if err := n.outgoing.PushOutgoing(ctx, job); err != nil {
		n.logger.Error("failed to enqueue confirmation", zap.Error(err), zap.String("to", job.To))
		return err
	}
	origin := ""
	if job.Meta != nil {
		origin = job.Meta.Origin
	}
	n.metrics.OutgoingEnqueued.WithLabelValues(origin).Inc()
	return nil
}

func derefOr(code *string, fallback string) string {
	if code != nil && *code != "" {
		return *code
	}
	return fallback
}
