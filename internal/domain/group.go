package domain

import "time"

// Group is the chat conversation a ticket and its human-facing code
// are scoped to. TicketCounter mints sequential code suffixes and is
// only ever incremented through the repository, atomically.
type Group struct {
	ID            string
	GroupJID      string
	GroupName     *string
	TicketCounter int
	CreatedAt     time.Time
}
