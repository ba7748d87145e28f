package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fxp-labs/support-bridge/internal/domain"
)

// GroupRepository manages conversation-group records and their ticket
// code counters.
type GroupRepository interface {
	GetByJID(ctx context.Context, groupJID string) (*domain.Group, error)
	// GetOrCreate resolves the group, inserting it when absent. Safe
	// under concurrent callers for the same jid.
	GetOrCreate(ctx context.Context, groupJID string, groupName *string) (*domain.Group, error)
	// IncrementCounter atomically bumps the ticket counter and returns
	// the new value. Concurrent callers never observe the same value.
	IncrementCounter(ctx context.Context, groupID string) (int, error)
}

type groupRepository struct {
	pool *pgxpool.Pool
}

// NewGroupRepository instantiates repository.
func NewGroupRepository(pool *pgxpool.Pool) GroupRepository {
	return &groupRepository{pool: pool}
}

func (r *groupRepository) GetByJID(ctx context.Context, groupJID string) (*domain.Group, error) {
	const query = `
        SELECT id, group_jid, group_name, ticket_counter, created_at
        FROM groups WHERE group_jid=$1`
	var group domain.Group
	if err := r.pool.QueryRow(ctx, query, groupJID).Scan(
		&group.ID,
		&group.GroupJID,
		&group.GroupName,
		&group.TicketCounter,
		&group.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *groupRepository) GetOrCreate(ctx context.Context, groupJID string, groupName *string) (*domain.Group, error) {
	group, err := r.GetByJID(ctx, groupJID)
	if err == nil {
		return group, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	const insert = `
        INSERT INTO groups (group_jid, group_name)
        VALUES ($1,$2)
        ON CONFLICT (group_jid) DO NOTHING`
	if _, err := r.pool.Exec(ctx, insert, groupJID, groupName); err != nil {
		return nil, err
	}
	// Either this insert won or a concurrent one did; the row exists now.
	return r.GetByJID(ctx, groupJID)
}

func (r *groupRepository) IncrementCounter(ctx context.Context, groupID string) (int, error) {
	const query = `
        UPDATE groups SET ticket_counter = ticket_counter + 1
        WHERE id=$1
        RETURNING ticket_counter`
	var counter int
	if err := r.pool.QueryRow(ctx, query, groupID).Scan(&counter); err != nil {
		return 0, err
	}
	return counter, nil
}
