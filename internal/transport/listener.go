package transport

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fxp-labs/support-bridge/internal/config"
	"github.com/fxp-labs/support-bridge/internal/observability"
	"github.com/fxp-labs/support-bridge/internal/queue"
)

// Listener turns inbound chat events into incoming jobs. It filters
// non-group and non-triggered events, applies the dedupe marker, and
// pushes surviving events onto the incoming queue. Failures are logged
// only; nothing is ever surfaced back to the chat sender.
type Listener struct {
	incoming queue.IncomingQueue
	markers  queue.Markers
	cfg      config.TransportConfig
	queueCfg config.QueueConfig
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewListener constructs the listener.
func NewListener(incoming queue.IncomingQueue, markers queue.Markers, cfg config.TransportConfig, queueCfg config.QueueConfig, metrics *observability.Metrics, logger *zap.Logger) *Listener {
	return &Listener{
		incoming: incoming,
		markers:  markers,
		cfg:      cfg,
		queueCfg: queueCfg,
		metrics:  metrics,
		logger:   logger,
	}
}

// Handle processes one inbound event.
func (l *Listener) Handle(ctx context.Context, event InboundEvent) {
	if !event.IsGroup {
		return
	}
	if !l.triggered(event) {
		return
	}

	key := queue.DedupeKey(event.ChatJID, event.SenderID, event.Text)
	duplicate, err := l.markers.Seen(ctx, key)
	if err != nil {
		l.logger.Error("dedupe lookup failed", zap.Error(err))
		return
	}
	if duplicate {
		l.metrics.DuplicatesIgnored.Inc()
		l.logger.Debug("duplicate inbound event ignored",
			zap.String("chat_jid", event.ChatJID),
			zap.String("sender", event.SenderID))
		return
	}

	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	job := queue.IncomingJob{
		GroupJID:      event.ChatJID,
		GroupName:     event.ChatName,
		SenderPhone:   event.SenderID,
		SenderName:    event.SenderName,
		Text:          event.Text,
		AttachmentURL: event.AttachmentURL,
		Timestamp:     timestamp,
	}
	if err := l.incoming.PushIncoming(ctx, job); err != nil {
		l.logger.Error("failed to enqueue incoming job", zap.Error(err))
		return
	}

	// Marker written after the enqueue succeeds, so an enqueue failure
	// does not suppress the retransmission that follows it. Expiry is
	// the only way the marker disappears.
	if err := l.markers.MarkSeen(ctx, key, l.queueCfg.DedupeTTL()); err != nil {
		l.logger.Warn("failed to write dedupe marker", zap.Error(err))
	}

	l.logger.Info("inbound event enqueued",
		zap.String("chat_jid", event.ChatJID),
		zap.String("sender_name", event.SenderName))
}

// triggered reports whether the event addresses the bot. With no
// trigger keyword configured every group message qualifies; otherwise
// the event must mention the bot or contain the keyword. The
// configured mention string covers transports that cannot resolve
// mentions themselves.
func (l *Listener) triggered(event InboundEvent) bool {
	if event.MentionsBot {
		return true
	}
	if l.cfg.BotMention != "" && strings.Contains(event.Text, l.cfg.BotMention) {
		return true
	}
	if l.cfg.TriggerKeyword == "" {
		return true
	}
	return strings.Contains(event.Text, l.cfg.TriggerKeyword)
}
