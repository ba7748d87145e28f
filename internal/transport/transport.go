package transport

import (
	"context"
	"time"
)

// InboundEvent is a raw chat event delivered by an adapter before
// normalization and dedupe.
type InboundEvent struct {
	ChatJID       string
	ChatName      string
	SenderID      string
	SenderName    string
	Text          string
	AttachmentURL string
	IsGroup       bool
	MentionsBot   bool
	Timestamp     time.Time
}

// Client is the chat transport seen by the rest of the system: send
// text, receive inbound events, observe connectivity. The session
// protocol behind it (handshake, credentials, encoding) stays inside
// the adapter.
type Client interface {
	SendText(ctx context.Context, to, text string) error
	OnInbound(handler func(InboundEvent))
	State() State
	Close() error
}
