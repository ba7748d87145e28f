package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fxp-labs/support-bridge/internal/domain"
	"github.com/fxp-labs/support-bridge/internal/queue"
	"github.com/fxp-labs/support-bridge/internal/repository"
)

// chanIncomingQueue feeds jobs from a buffered channel and blocks like
// the Redis-backed queue once drained.
type chanIncomingQueue struct {
	jobs chan queue.IncomingJob
}

func newChanIncomingQueue(capacity int) *chanIncomingQueue {
	return &chanIncomingQueue{jobs: make(chan queue.IncomingJob, capacity)}
}

func (q *chanIncomingQueue) PushIncoming(_ context.Context, job queue.IncomingJob) error {
	q.jobs <- job
	return nil
}

func (q *chanIncomingQueue) PopIncoming(ctx context.Context) (*queue.IncomingJob, error) {
	select {
	case job := <-q.jobs:
		return &job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type chanOutgoingQueue struct {
	mu       sync.Mutex
	jobs     chan queue.OutgoingJob
	requeued []queue.OutgoingJob
}

func newChanOutgoingQueue(capacity int) *chanOutgoingQueue {
	return &chanOutgoingQueue{jobs: make(chan queue.OutgoingJob, capacity)}
}

func (q *chanOutgoingQueue) PushOutgoing(_ context.Context, job queue.OutgoingJob) error {
	q.jobs <- job
	return nil
}

func (q *chanOutgoingQueue) PopOutgoing(ctx context.Context) (*queue.OutgoingJob, error) {
	select {
	case job := <-q.jobs:
		return &job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *chanOutgoingQueue) Requeue(_ context.Context, job queue.OutgoingJob) error {
	q.mu.Lock()
	q.requeued = append(q.requeued, job)
	q.mu.Unlock()
	return nil
}

func (q *chanOutgoingQueue) requeuedJobs() []queue.OutgoingJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.OutgoingJob{}, q.requeued...)
}

type staticFlags struct {
	mu     sync.Mutex
	paused bool
}

func (f *staticFlags) Pause(context.Context) error {
	f.mu.Lock()
	f.paused = true
	f.mu.Unlock()
	return nil
}

func (f *staticFlags) Resume(context.Context) error {
	f.mu.Lock()
	f.paused = false
	f.mu.Unlock()
	return nil
}

func (f *staticFlags) Paused(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused, nil
}

type staticConn struct {
	mu        sync.Mutex
	connected bool
}

func (c *staticConn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *staticConn) set(connected bool) {
	c.mu.Lock()
	c.connected = connected
	c.mu.Unlock()
}

type recordingSender struct {
	mu    sync.Mutex
	sent  []sentText
	fail  int
	errTo error
}

type sentText struct {
	to   string
	text string
	at   time.Time
}

func (s *recordingSender) SendText(_ context.Context, to, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return s.errTo
	}
	s.sent = append(s.sent, sentText{to: to, text: text, at: time.Now()})
	return nil
}

func (s *recordingSender) sentJobs() []sentText {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentText{}, s.sent...)
}

type memMarkers struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemMarkers() *memMarkers {
	return &memMarkers{keys: make(map[string]bool)}
}

func (m *memMarkers) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], nil
}

func (m *memMarkers) MarkSeen(_ context.Context, key string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = true
	return nil
}

func (m *memMarkers) AcquireCooldown(_ context.Context, key string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

// In-memory repositories backing a real ticket service.

type memGroupRepo struct {
	mu      sync.Mutex
	groups  map[string]*domain.Group
	counter map[string]int
}

func newMemGroupRepo() *memGroupRepo {
	return &memGroupRepo{groups: make(map[string]*domain.Group), counter: make(map[string]int)}
}

func (r *memGroupRepo) GetByJID(_ context.Context, groupJID string) (*domain.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	group, ok := r.groups[groupJID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *group
	return &copied, nil
}

func (r *memGroupRepo) GetOrCreate(_ context.Context, groupJID string, groupName *string) (*domain.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if group, ok := r.groups[groupJID]; ok {
		copied := *group
		return &copied, nil
	}
	group := &domain.Group{ID: uuid.NewString(), GroupJID: groupJID, GroupName: groupName, CreatedAt: time.Now()}
	r.groups[groupJID] = group
	copied := *group
	return &copied, nil
}

func (r *memGroupRepo) IncrementCounter(_ context.Context, groupID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counter[groupID]++
	return r.counter[groupID], nil
}

type memTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *memTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tickets {
		if existing.Status == domain.TicketStatusOpen &&
			existing.GroupJID == ticket.GroupJID &&
			existing.SenderPhone != nil && ticket.SenderPhone != nil &&
			*existing.SenderPhone == *ticket.SenderPhone {
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

func (r *memTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *memTicketRepo) GetByCode(_ context.Context, code string) (*domain.Ticket, error) {
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

func (r *memTicketRepo) FindOpen(_ context.Context, groupJID, senderPhone string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
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

func (r *memTicketRepo) UpdateStatus(_ context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	ticket.Status = status
	if status == domain.TicketStatusClosed {
		now := time.Now()
		ticket.ClosedAt = &now
	}
	copied := *ticket
	return &copied, nil
}

func (r *memTicketRepo) CloseByCode(_ context.Context, code string) (*domain.Ticket, error) {
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

func (r *memTicketRepo) ListWithFilter(_ context.Context, _ repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		out = append(out, *ticket)
	}
	return out, nil
}

type memMessageRepo struct {
	mu       sync.Mutex
	messages []domain.Message
}

func (r *memMessageRepo) Create(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *memMessageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Message, error) {
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
