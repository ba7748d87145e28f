package dto

import (
	"time"

	"github.com/fxp-labs/support-bridge/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// LoginResponse carries the issued operator token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ReplyRequest payload.
type ReplyRequest struct {
	AgentName string `json:"agent_name"`
	Text      string `json:"text"`
}

// StatusRequest payload.
type StatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// ManualJobRequest is an operator-built outgoing job.
type ManualJobRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// TicketSummary response.
type TicketSummary struct {
	ID          string              `json:"id"`
	Code        *string             `json:"code"`
	GroupJID    string              `json:"group_jid"`
	GroupName   *string             `json:"group_name"`
	SenderPhone *string             `json:"sender_phone"`
	SenderName  *string             `json:"sender_name"`
	Subject     string              `json:"subject"`
	Status      domain.TicketStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info with its thread.
type TicketDetailResponse struct {
	TicketSummary
	ClosedAt *time.Time        `json:"closed_at"`
	Messages []MessageResponse `json:"messages"`
}

// MessageResponse represents one thread message.
type MessageResponse struct {
	ID            string               `json:"id"`
	Source        domain.MessageSource `json:"source"`
	Body          string               `json:"body"`
	AttachmentURL *string              `json:"attachment_url,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}
