package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated EventType = "ticket_created"
	EventTicketClosed  EventType = "ticket_closed"
	EventMessageAdded  EventType = "message_added"
)

// Event represents a domain event emitted by the ingestion pipeline.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Code        *string `json:"code,omitempty"`
	GroupJID    string  `json:"group_jid"`
	SenderPhone string  `json:"sender_phone"`
	Subject     string  `json:"subject"`
	// Explicit is true when the ticket came from an open-ticket
	// directive rather than the fallback path.
	Explicit bool `json:"explicit"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	Code     string `json:"code"`
	GroupJID string `json:"group_jid"`
}

// MessageAddedPayload payload.
type MessageAddedPayload struct {
	Code        *string `json:"code,omitempty"`
	GroupJID    string  `json:"group_jid"`
	SenderPhone string  `json:"sender_phone"`
}
