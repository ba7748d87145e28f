package domain

import "time"

// MessageSource indicates who authored a ticket message.
type MessageSource string

const (
	SourceUser   MessageSource = "user"
	SourceAgent  MessageSource = "agent"
	SourceSystem MessageSource = "system"
)

// Message is one entry in a ticket thread. Messages are append-only.
type Message struct {
	ID            string
	TicketID      string
	Source        MessageSource
	Body          string
	AttachmentURL *string
	CreatedAt     time.Time
}
