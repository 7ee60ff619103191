package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/jobticket-service/internal/domain"
)

// LedgerRepository persists account postings and answers credit checks.
type LedgerRepository interface {
	// Post applies all entries atomically.
	Post(ctx context.Context, entries []domain.LedgerEntry) error
	Balance(ctx context.Context, accountID string) (decimal.Decimal, error)
	// IsBalanceSufficient reports whether every account can absorb its
	// charge without exceeding its credit limit.
	IsBalanceSufficient(ctx context.Context, charges []domain.AccountCharge) (bool, error)
}

type ledgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository returns a Postgres-backed implementation.
func NewLedgerRepository(pool *pgxpool.Pool) LedgerRepository {
	return &ledgerRepository{pool: pool}
}

func (r *ledgerRepository) Post(ctx context.Context, entries []domain.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const insert = `
            INSERT INTO ledger_entries (ticket_id, ticket_number, account_id, kind, amount, comment)
            VALUES ($1, $2, $3, $4, $5::numeric, $6)`
		const apply = `
            UPDATE accounts SET balance = balance + $1::numeric, updated_at = NOW()
            WHERE id = $2`

		for _, e := range entries {
			if _, err := tx.Exec(ctx, insert,
				e.TicketID,
				e.TicketNumber,
				e.AccountID,
				e.Kind,
				e.Amount.String(),
				e.Comment,
			); err != nil {
				return fmt.Errorf("insert ledger entry for %s: %w", e.AccountID, err)
			}

			delta := e.Amount.Neg()
			if e.Kind == domain.LedgerEntryReversal {
				delta = e.Amount
			}
			cmd, err := tx.Exec(ctx, apply, delta.String(), e.AccountID)
			if err != nil {
				return fmt.Errorf("apply ledger entry for %s: %w", e.AccountID, err)
			}
			if cmd.RowsAffected() == 0 {
				return fmt.Errorf("account %s: %w", e.AccountID, pgx.ErrNoRows)
			}
		}
		return nil
	})
}

func (r *ledgerRepository) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	const query = `SELECT balance::text FROM accounts WHERE id=$1`
	var raw string
	if err := r.pool.QueryRow(ctx, query, accountID).Scan(&raw); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

func (r *ledgerRepository) IsBalanceSufficient(ctx context.Context, charges []domain.AccountCharge) (bool, error) {
	if len(charges) == 0 {
		return true, nil
	}
	ids := make([]string, 0, len(charges))
	for _, c := range charges {
		ids = append(ids, c.AccountID)
	}

	const query = `SELECT id, balance::text, credit_limit::text FROM accounts WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	headroom := map[string]decimal.Decimal{}
	for rows.Next() {
		var id, balance, limit string
		if err := rows.Scan(&id, &balance, &limit); err != nil {
			return false, err
		}
		b, err := decimal.NewFromString(balance)
		if err != nil {
			return false, err
		}
		l, err := decimal.NewFromString(limit)
		if err != nil {
			return false, err
		}
		headroom[id] = b.Add(l)
	}
	if err := rows.Err(); err != nil {
		return false, err
	}

	for _, c := range charges {
		room, ok := headroom[c.AccountID]
		if !ok || room.LessThan(c.Amount) {
			return false, nil
		}
		headroom[c.AccountID] = room.Sub(c.Amount)
	}
	return true, nil
}
