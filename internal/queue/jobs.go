package queue

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// IncomingJob is a normalized inbound chat event awaiting ingestion.
// Jobs are immutable once enqueued.
type IncomingJob struct {
	GroupJID      string    `json:"groupJid"`
	GroupName     string    `json:"groupName"`
	SenderPhone   string    `json:"senderPhone"`
	SenderName    string    `json:"senderName"`
	Text          string    `json:"text"`
	AttachmentURL string    `json:"attachmentUrl,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// OutgoingJob is a rendered message awaiting delivery. Meta carries
// audit fields only; delivery never depends on it.
type OutgoingJob struct {
	To   string   `json:"to"`
	Text string   `json:"text"`
	Meta *JobMeta `json:"meta,omitempty"`
}

// JobMeta tags an outgoing job with the code path that produced it.
type JobMeta struct {
	Origin   string `json:"origin,omitempty"`
	TicketID string `json:"ticketId,omitempty"`
}

// Job origins recorded in outgoing metadata.
const (
	OriginAgentReply      = "agent_reply"
	OriginStatusChange    = "status_change"
	OriginCloseCommand    = "close_command"
	OriginTicketCreated   = "ticket_created"
	OriginIncomingMessage = "incoming_message"
	OriginManual          = "manual"
)

// DedupeKey derives the ingestion dedupe marker key from the fields
// that identify a retransmitted event. Identical text from the same
// sender in the same conversation maps to the same key.
func DedupeKey(groupJID, senderPhone, text string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", groupJID, senderPhone, text)))
	return "dedupe:" + hex.EncodeToString(sum[:])
}

// ConvCooldownKey is the per-conversation notification cooldown marker.
func ConvCooldownKey(groupJID string) string {
	return "cooldown:conv:" + groupJID
}

// SenderCooldownKey is the per-sender notification cooldown marker.
func SenderCooldownKey(senderPhone string) string {
	return "cooldown:sender:" + senderPhone
}
