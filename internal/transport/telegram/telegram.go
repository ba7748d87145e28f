package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/fxp-labs/support-bridge/internal/transport"
)

// Adapter implements transport.Client over the Telegram Bot API with
// long polling. Group chats map to group-class jids so the dispatch
// worker's recipient normalization passes them through unchanged.
type Adapter struct {
	bot     *tgbotapi.BotAPI
	tracker *transport.Tracker
	handler func(transport.InboundEvent)
	logger  *zap.Logger
}

// New authenticates the bot and returns an adapter in the connecting
// state. Run must be called to start receiving updates.
func New(token string, logger *zap.Logger) (*Adapter, error) {
	tracker := transport.NewTracker()
	tracker.Transition(transport.StateConnecting)

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		tracker.Transition(transport.StateDisconnected)
		return nil, fmt.Errorf("telegram auth: %w", err)
	}

	logger.Info("telegram session authorized", zap.String("bot", bot.Self.UserName))
	return &Adapter{
		bot:     bot,
		tracker: tracker,
		logger:  logger,
	}, nil
}

// OnInbound registers the inbound event handler. Must be called before
// Run.
func (a *Adapter) OnInbound(handler func(transport.InboundEvent)) {
	a.handler = handler
}

// State returns the current session state.
func (a *Adapter) State() transport.State {
	return a.tracker.Current()
}

// Tracker exposes the connectivity cell for the dispatch worker gate.
func (a *Adapter) Tracker() *transport.Tracker {
	return a.tracker
}

// SendText delivers text to a normalized recipient jid.
func (a *Adapter) SendText(ctx context.Context, to, text string) error {
	chatID, err := chatIDFromJID(to)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := a.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}

// reconnectDelay paces re-entry into the update stream after it
// drops, so a flapping session does not hammer the Bot API.
const reconnectDelay = time.Second

// Run consumes the update stream until ctx is canceled. It marks the
// session connected once polling starts; when the stream closes it
// marks the session disconnected, waits out the reconnect delay and
// opens a fresh stream.
func (a *Adapter) Run(ctx context.Context) {
	for {
		update := tgbotapi.NewUpdate(0)
		update.Timeout = 30
		updates := a.bot.GetUpdatesChan(update)

		a.tracker.Transition(transport.StateConnected)
		a.logger.Info("telegram update stream started")

		if !a.consume(ctx, updates) {
			a.bot.StopReceivingUpdates()
			a.tracker.Transition(transport.StateDisconnected)
			return
		}

		a.tracker.Transition(transport.StateDisconnected)
		a.logger.Warn("telegram update stream closed, reconnecting",
			zap.Duration("delay", reconnectDelay))
		if !a.waitReconnect(ctx) {
			return
		}
		a.tracker.Transition(transport.StateConnecting)
	}
}

// consume drains updates until the stream closes (true) or ctx is
// canceled (false).
func (a *Adapter) consume(ctx context.Context, updates tgbotapi.UpdatesChannel) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case upd, ok := <-updates:
			if !ok {
				return true
			}
			a.dispatch(upd)
		}
	}
}

func (a *Adapter) waitReconnect(ctx context.Context) bool {
	timer := time.NewTimer(reconnectDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Close stops polling and marks the session disconnected.
func (a *Adapter) Close() error {
	a.bot.StopReceivingUpdates()
	a.tracker.Transition(transport.StateDisconnected)
	return nil
}

func (a *Adapter) dispatch(upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Text == "" {
		return
	}
	if a.handler == nil {
		return
	}

	isGroup := msg.Chat.IsGroup() || msg.Chat.IsSuperGroup()
	event := transport.InboundEvent{
		ChatJID:     fmt.Sprintf("%d@g.us", msg.Chat.ID),
		ChatName:    msg.Chat.Title,
		SenderID:    strconv.FormatInt(msg.From.ID, 10),
		SenderName:  senderName(msg.From),
		Text:        msg.Text,
		IsGroup:     isGroup,
		MentionsBot: strings.Contains(msg.Text, "@"+a.bot.Self.UserName),
		Timestamp:   msg.Time(),
	}
	a.handler(event)
}

func senderName(user *tgbotapi.User) string {
	if user.UserName != "" {
		return user.UserName
	}
	return strings.TrimSpace(user.FirstName + " " + user.LastName)
}

func chatIDFromJID(jid string) (int64, error) {
	raw := jid
	if idx := strings.IndexByte(raw, '@'); idx >= 0 {
		raw = raw[:idx]
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid recipient %q: %w", jid, err)
	}
	return chatID, nil
}
