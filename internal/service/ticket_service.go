package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/fxp-labs/support-bridge/internal/domain"
	"github.com/fxp-labs/support-bridge/internal/events"
	"github.com/fxp-labs/support-bridge/internal/queue"
	"github.com/fxp-labs/support-bridge/internal/repository"
	apperrors "github.com/fxp-labs/support-bridge/pkg/util"
)

const fallbackSubjectMax = 50

// TicketService coordinates ticket resolution, creation and the
// control-surface operations that touch both the store and the
// outgoing queue.
type TicketService struct {
	groups     repository.GroupRepository
	tickets    repository.TicketRepository
	messages   repository.MessageRepository
	outgoing   queue.OutgoingQueue
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	GroupRepo   repository.GroupRepository
	TicketRepo  repository.TicketRepository
	MessageRepo repository.MessageRepository
	Outgoing    queue.OutgoingQueue
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		groups:     deps.GroupRepo,
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		outgoing:   deps.Outgoing,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// CloseByCode transitions the ticket with the given code to closed and
// publishes the close confirmation event. Unknown codes return
// pgx.ErrNoRows; the caller drops the job since a retry cannot succeed.
func (s *TicketService) CloseByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	ticket, err := s.tickets.CloseByCode(ctx, strings.ToUpper(code))
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketClosed,
		TicketID: ticket.ID,
		Payload: events.TicketClosedPayload{
			Code:     derefOr(ticket.Code, ticket.ID),
			GroupJID: ticket.GroupJID,
		},
	})
	return ticket, nil
}

// OpenExplicit creates a ticket from an open-ticket directive: the
// group record is resolved or created, a fresh code is minted from the
// group counter, and the originating message is persisted. When the
// sender already holds the open-ticket slot for this conversation the
// message attaches to the existing ticket instead.
func (s *TicketService) OpenExplicit(ctx context.Context, job queue.IncomingJob) (*domain.Ticket, bool, error) {
	group, err := s.groups.GetOrCreate(ctx, job.GroupJID, optional(job.GroupName))
	if err != nil {
		return nil, false, err
	}

	// Counter bump happens before the insert so two concurrent
	// creators can never claim the same code. A burned code on a lost
	// race leaves a gap, which is fine.
	counter, err := s.groups.IncrementCounter(ctx, group.ID)
	if err != nil {
		return nil, false, err
	}
	code := mintTicketCode(group.ID, counter)

	ticket := &domain.Ticket{
		Code:        &code,
		GroupID:     &group.ID,
		GroupJID:    job.GroupJID,
		GroupName:   optional(job.GroupName),
		SenderPhone: optional(job.SenderPhone),
		SenderName:  optional(job.SenderName),
		Subject:     job.Text,
		Status:      domain.TicketStatusOpen,
	}

	err = s.tickets.Create(ctx, ticket)
	if errors.Is(err, repository.ErrOpenTicketExists) {
		existing, findErr := s.tickets.FindOpen(ctx, job.GroupJID, job.SenderPhone)
		if findErr != nil {
			return nil, false, findErr
		}
		s.logger.Info("open directive for sender with live ticket; attaching",
			zap.String("ticket_id", existing.ID))
		if err := s.appendUserMessage(ctx, existing, job); err != nil {
			return nil, false, err
		}
		s.publishEvent(ctx, events.Event{
			Type:     events.EventMessageAdded,
			TicketID: existing.ID,
			Payload: events.MessageAddedPayload{
				Code:        existing.Code,
				GroupJID:    existing.GroupJID,
				SenderPhone: job.SenderPhone,
			},
		})
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if err := s.appendUserMessage(ctx, ticket, job); err != nil {
		return nil, false, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Payload: events.TicketCreatedPayload{
			Code:        ticket.Code,
			GroupJID:    ticket.GroupJID,
			SenderPhone: job.SenderPhone,
			Subject:     ticket.Subject,
			Explicit:    true,
		},
	})
	return ticket, true, nil
}

// IngestDefault attaches the job to the sender's open ticket, creating
// a fallback ticket when none exists. The store's uniqueness constraint
// arbitrates concurrent creates; the loser re-reads the winner.
func (s *TicketService) IngestDefault(ctx context.Context, job queue.IncomingJob) (*domain.Ticket, bool, error) {
	ticket, created, err := s.resolveOrCreate(ctx, job)
	if err != nil {
		return nil, false, err
	}
	if err := s.appendUserMessage(ctx, ticket, job); err != nil {
		return nil, false, err
	}

	if created {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketCreated,
			TicketID: ticket.ID,
			Payload: events.TicketCreatedPayload{
				Code:        ticket.Code,
				GroupJID:    ticket.GroupJID,
				SenderPhone: job.SenderPhone,
				Subject:     ticket.Subject,
			},
		})
	} else {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventMessageAdded,
			TicketID: ticket.ID,
			Payload: events.MessageAddedPayload{
				Code:        ticket.Code,
				GroupJID:    ticket.GroupJID,
				SenderPhone: job.SenderPhone,
			},
		})
	}
	return ticket, created, nil
}

func (s *TicketService) resolveOrCreate(ctx context.Context, job queue.IncomingJob) (*domain.Ticket, bool, error) {
	ticket, err := s.tickets.FindOpen(ctx, job.GroupJID, job.SenderPhone)
	if err == nil {
		return ticket, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	ticket = &domain.Ticket{
		GroupJID:    job.GroupJID,
		GroupName:   optional(job.GroupName),
		SenderPhone: optional(job.SenderPhone),
		SenderName:  optional(job.SenderName),
		Subject:     fallbackSubject(job.Text),
		Status:      domain.TicketStatusOpen,
	}
	err = s.tickets.Create(ctx, ticket)
	if errors.Is(err, repository.ErrOpenTicketExists) {
		winner, findErr := s.tickets.FindOpen(ctx, job.GroupJID, job.SenderPhone)
		if findErr != nil {
			return nil, false, findErr
		}
		return winner, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return ticket, true, nil
}

// Reply persists an agent message and enqueues its delivery. The
// ticket is resolved before any write, so an unknown id fails cleanly;
// an enqueue failure after the insert is surfaced rather than
// swallowed, leaving the persisted message visible to operators.
func (s *TicketService) Reply(ctx context.Context, ticketID, agentName, text string) error {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return err
	}

	msg := &domain.Message{
		TicketID: ticket.ID,
		Source:   domain.SourceAgent,
		Body:     text,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return err
	}

	job := queue.OutgoingJob{
		To:   ticket.GroupJID,
		Text: fmt.Sprintf("*%s*: %s", agentName, text),
		Meta: &queue.JobMeta{Origin: queue.OriginAgentReply, TicketID: ticket.ID},
	}
	if err := s.outgoing.PushOutgoing(ctx, job); err != nil {
		return apperrors.NewQueueUnavailable(err)
	}
	return nil
}

// ChangeStatus updates the ticket status and enqueues a notification
// describing it. Same atomicity contract as Reply.
func (s *TicketService) ChangeStatus(ctx context.Context, ticketID string, status domain.TicketStatus) (*domain.Ticket, error) {
	if !domain.ValidStatus(status) {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": status})
	}
	ticket, err := s.tickets.UpdateStatus(ctx, ticketID, status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		if errors.Is(err, repository.ErrOpenTicketExists) {
			return nil, apperrors.NewConflict("sender already has an open ticket in this conversation", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}

	job := queue.OutgoingJob{
		To:   ticket.GroupJID,
		Text: fmt.Sprintf("*Support Agent* has changed the status of ticket *%s* to: *%s*.", derefOr(ticket.Code, ticket.ID), status),
		Meta: &queue.JobMeta{Origin: queue.OriginStatusChange, TicketID: ticket.ID},
	}
	if err := s.outgoing.PushOutgoing(ctx, job); err != nil {
		return ticket, apperrors.NewQueueUnavailable(err)
	}
	return ticket, nil
}

// EnqueueManual pushes an operator-built outgoing job.
func (s *TicketService) EnqueueManual(ctx context.Context, to, text string) error {
	job := queue.OutgoingJob{
		To:   to,
		Text: text,
		Meta: &queue.JobMeta{Origin: queue.OriginManual},
	}
	if err := s.outgoing.PushOutgoing(ctx, job); err != nil {
		return apperrors.NewQueueUnavailable(err)
	}
	return nil
}

// ListTickets returns tickets for the dashboard.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	return s.tickets.ListWithFilter(ctx, filter)
}

// GetTicketWithMessages fetches a ticket and its thread.
func (s *TicketService) GetTicketWithMessages(ctx context.Context, ticketID string) (*domain.Ticket, []domain.Message, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, nil, err
	}
	msgs, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, err
	}
	return ticket, msgs, nil
}

func (s *TicketService) appendUserMessage(ctx context.Context, ticket *domain.Ticket, job queue.IncomingJob) error {
	msg := &domain.Message{
		TicketID: ticket.ID,
		Source:   domain.SourceUser,
		Body:     job.Text,
	}
	if job.AttachmentURL != "" {
		url := job.AttachmentURL
		msg.AttachmentURL = &url
	}
	return s.messages.Create(ctx, msg)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func mintTicketCode(groupID string, counter int) string {
	prefix := strings.ToUpper(strings.SplitN(groupID, "-", 2)[0])
	return fmt.Sprintf("FXP%s-%d", prefix, counter)
}

// fallbackSubject keeps the first characters of the message. The cut
// is by rune, never mid-codepoint, so the subject stays valid UTF-8.
func fallbackSubject(text string) string {
	runes := []rune(text)
	if len(runes) <= fallbackSubjectMax {
		return text
	}
	return string(runes[:fallbackSubjectMax]) + "..."
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
