package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/jobticket-service/internal/domain"
)

// ArchiveRepository keeps tickets that completed or were settled so they
// can be reopened later.
type ArchiveRepository interface {
	Save(ctx context.Context, archived *domain.ArchivedTicket) error
	GetByTicketID(ctx context.Context, ticketID string) (*domain.ArchivedTicket, error)
	Delete(ctx context.Context, ticketID string) error
}

type archiveRepository struct {
	pool *pgxpool.Pool
}

// NewArchiveRepository returns a Postgres-backed implementation.
func NewArchiveRepository(pool *pgxpool.Pool) ArchiveRepository {
	return &archiveRepository{pool: pool}
}

func (r *archiveRepository) Save(ctx context.Context, archived *domain.ArchivedTicket) error {
	ticket, err := json.Marshal(archived.Ticket)
	if err != nil {
		return fmt.Errorf("encode archived ticket %s: %w", archived.Ticket.ID, err)
	}

	const query = `
        INSERT INTO ticket_archive (ticket_id, ticket_number, kind, owner_id, outcome, ticket, payload, archived_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (ticket_id) DO UPDATE
        SET outcome = EXCLUDED.outcome, ticket = EXCLUDED.ticket, payload = EXCLUDED.payload, archived_at = EXCLUDED.archived_at`

	_, err = r.pool.Exec(ctx, query,
		archived.Ticket.ID,
		archived.Ticket.Number,
		archived.Ticket.Kind,
		archived.Ticket.OwnerID,
		archived.Outcome,
		ticket,
		archived.Payload,
		archived.ArchivedAt,
	)
	return err
}

func (r *archiveRepository) GetByTicketID(ctx context.Context, ticketID string) (*domain.ArchivedTicket, error) {
	const query = `
        SELECT outcome, ticket, payload, archived_at
        FROM ticket_archive WHERE ticket_id=$1`

	var (
		archived domain.ArchivedTicket
		raw      []byte
	)
	if err := r.pool.QueryRow(ctx, query, ticketID).Scan(
		&archived.Outcome,
		&raw,
		&archived.Payload,
		&archived.ArchivedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &archived.Ticket); err != nil {
		return nil, fmt.Errorf("decode archived ticket %s: %w", ticketID, err)
	}
	return &archived, nil
}

// Delete drops an archive row whose ticket never left the store.
func (r *archiveRepository) Delete(ctx context.Context, ticketID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM ticket_archive WHERE ticket_id=$1`, ticketID)
	return err
}
