package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fxp-labs/support-bridge/internal/domain"
	"github.com/fxp-labs/support-bridge/internal/events"
	"github.com/fxp-labs/support-bridge/internal/queue"
	"github.com/fxp-labs/support-bridge/internal/repository"
)

type fakeGroupRepo struct {
	mu      sync.Mutex
	groups  map[string]*domain.Group
	counter map[string]int
}

func newFakeGroupRepo() *fakeGroupRepo {
	return &fakeGroupRepo{
		groups:  make(map[string]*domain.Group),
		counter: make(map[string]int),
	}
}

func (r *fakeGroupRepo) GetByJID(_ context.Context, groupJID string) (*domain.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	group, ok := r.groups[groupJID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *group
	return &copied, nil
}

func (r *fakeGroupRepo) GetOrCreate(_ context.Context, groupJID string, groupName *string) (*domain.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if group, ok := r.groups[groupJID]; ok {
		copied := *group
		return &copied, nil
	}
	group := &domain.Group{
		ID:        uuid.NewString(),
		GroupJID:  groupJID,
		GroupName: groupName,
		CreatedAt: time.Now(),
	}
	r.groups[groupJID] = group
	copied := *group
	return &copied, nil
}

func (r *fakeGroupRepo) IncrementCounter(_ context.Context, groupID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counter[groupID]++
	return r.counter[groupID], nil
}

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket

	// createErr, when set, is returned by the next Create call and
	// then cleared. It simulates losing the unique-index race.
	createErr error

	// findOpenMisses forces that many FindOpen calls to miss, so a
	// test can stage a row that appears between check and insert.
	findOpenMisses int
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		err := r.createErr
		r.createErr = nil
		return err
	}
	for _, existing := range r.tickets {
		if existing.Status == domain.TicketStatusOpen &&
			existing.GroupJID == ticket.GroupJID &&
			strPtrEq(existing.SenderPhone, ticket.SenderPhone) {
			return repository.ErrOpenTicketExists
		}
	}
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *fakeTicketRepo) GetByCode(_ context.Context, code string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.Code != nil && *ticket.Code == code {
			copied := *ticket
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) FindOpen(_ context.Context, groupJID, senderPhone string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findOpenMisses > 0 {
		r.findOpenMisses--
		return nil, pgx.ErrNoRows
	}
	for _, ticket := range r.tickets {
		if ticket.Status == domain.TicketStatusOpen &&
			ticket.GroupJID == groupJID &&
			ticket.SenderPhone != nil && *ticket.SenderPhone == senderPhone {
			copied := *ticket
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) UpdateStatus(_ context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if status == domain.TicketStatusOpen {
		for _, existing := range r.tickets {
			if existing.ID != id && existing.Status == domain.TicketStatusOpen &&
				existing.GroupJID == ticket.GroupJID &&
				strPtrEq(existing.SenderPhone, ticket.SenderPhone) {
				return nil, repository.ErrOpenTicketExists
			}
		}
	}
	ticket.Status = status
	ticket.UpdatedAt = time.Now()
	if status == domain.TicketStatusClosed {
		now := time.Now()
		ticket.ClosedAt = &now
	}
	copied := *ticket
	return &copied, nil
}

func (r *fakeTicketRepo) CloseByCode(_ context.Context, code string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.Code != nil && *ticket.Code == code && ticket.Status != domain.TicketStatusClosed {
			ticket.Status = domain.TicketStatusClosed
			now := time.Now()
			ticket.ClosedAt = &now
			copied := *ticket
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.GroupJID != nil && ticket.GroupJID != *filter.GroupJID {
			continue
		}
		out = append(out, *ticket)
	}
	return out, nil
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	messages  []domain.Message
	createErr error
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *fakeMessageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, msg := range r.messages {
		if msg.TicketID == ticketID {
			out = append(out, msg)
		}
	}
	return out, nil
}

type fakeOutgoingQueue struct {
	mu      sync.Mutex
	jobs    []queue.OutgoingJob
	pushErr error
}

func (q *fakeOutgoingQueue) PushOutgoing(_ context.Context, job queue.OutgoingJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pushErr != nil {
		return q.pushErr
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeOutgoingQueue) PopOutgoing(_ context.Context) (*queue.OutgoingJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, pgx.ErrNoRows
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return &job, nil
}

func (q *fakeOutgoingQueue) Requeue(_ context.Context, job queue.OutgoingJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

type fakeMarkers struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newFakeMarkers() *fakeMarkers {
	return &fakeMarkers{keys: make(map[string]bool)}
}

func (m *fakeMarkers) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], nil
}

func (m *fakeMarkers) MarkSeen(_ context.Context, key string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = true
	return nil
}

func (m *fakeMarkers) AcquireCooldown(_ context.Context, key string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) byType(t events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, event := range d.events {
		if event.Type == t {
			out = append(out, event)
		}
	}
	return out
}

func strPtrEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
