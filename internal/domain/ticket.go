package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusClosed     TicketStatus = "closed"
)

// ValidStatus reports whether the value is a known ticket status.
func ValidStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusClosed:
		return true
	}
	return false
}

// Ticket is the aggregate for a support conversation opened from chat.
// Tickets are never deleted, only closed.
type Ticket struct {
	ID          string
	Code        *string
	GroupID     *string
	GroupJID    string
	GroupName   *string
	SenderPhone *string
	SenderName  *string
	Subject     string
	Status      TicketStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClosedAt    *time.Time
}

// IsOpen reports whether the ticket can still receive follow-up messages.
func (t *Ticket) IsOpen() bool {
	return t.Status != TicketStatusClosed
}
