package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fxp-labs/support-bridge/internal/domain"
)

// ErrOpenTicketExists is returned by Create and UpdateStatus when
// another open ticket already holds the (group_jid, sender_phone)
// slot. The store-level
// partial unique index resolves the check-then-insert race; callers
// re-read the winner and attach to it.
var ErrOpenTicketExists = errors.New("open ticket already exists for sender")

const uniqueViolationCode = "23505"

const ticketColumns = `id, code, group_id, group_jid, group_name, sender_phone, sender_name,
               subject, status, created_at, updated_at, closed_at`

// TicketFilter captures listing parameters for the control surface.
type TicketFilter struct {
	GroupJID *string
	Statuses []domain.TicketStatus
	Limit    int
	Offset   int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByCode(ctx context.Context, code string) (*domain.Ticket, error)
	// FindOpen returns the single open ticket for the pair, or
	// pgx.ErrNoRows when none exists.
	FindOpen(ctx context.Context, groupJID, senderPhone string) (*domain.Ticket, error)
	UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error)
	// CloseByCode transitions the ticket with the given human-facing
	// code to closed, returning pgx.ErrNoRows for unknown codes.
	CloseByCode(ctx context.Context, code string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (code, group_id, group_jid, group_name, sender_phone, sender_name, subject, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusOpen
	}
	err := r.pool.QueryRow(ctx, query,
		ticket.Code,
		ticket.GroupID,
		ticket.GroupJID,
		ticket.GroupName,
		ticket.SenderPhone,
		ticket.SenderName,
		ticket.Subject,
		ticket.Status,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrOpenTicketExists
		}
		return err
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE code=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, code)
}

func (r *ticketRepository) FindOpen(ctx context.Context, groupJID, senderPhone string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM tickets
        WHERE group_jid=$1 AND sender_phone=$2 AND status='open'`, ticketColumns)
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, groupJID, senderPhone).Scan(ticketFields(&ticket)...); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	query := fmt.Sprintf(`
        UPDATE tickets
        SET status=$1, updated_at=NOW(),
            closed_at = CASE WHEN $1 = 'closed' THEN NOW() ELSE NULL END
        WHERE id=$2
        RETURNING %s`, ticketColumns)
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, status, id).Scan(ticketFields(&ticket)...); err != nil {
		// Reopening collides with the one-open-per-sender index when
		// the pair already has a live ticket.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return nil, ErrOpenTicketExists
		}
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) CloseByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`
        UPDATE tickets
        SET status='closed', closed_at=NOW(), updated_at=NOW()
        WHERE code=$1 AND status <> 'closed'
        RETURNING %s`, ticketColumns)
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, code).Scan(ticketFields(&ticket)...); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := fmt.Sprintf(`SELECT %s FROM tickets`, ticketColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.GroupJID != nil {
		args = append(args, *filter.GroupJID)
		clauses = append(clauses, fmt.Sprintf("group_jid=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, arg).Scan(ticketFields(&ticket)...); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func ticketFields(t *domain.Ticket) []any {
	return []any{
		&t.ID,
		&t.Code,
		&t.GroupID,
		&t.GroupJID,
		&t.GroupName,
		&t.SenderPhone,
		&t.SenderName,
		&t.Subject,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.ClosedAt,
	}
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(ticketFields(&ticket)...); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
