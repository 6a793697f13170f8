package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/betclaim/internal/domain"
)

// ClaimReceiptStore implements domain.ClaimReceiptStore using PostgreSQL.
// One row per confirmed claim; the (market, ticket) pair is unique, so a
// duplicate insert surfaces rather than double-recording a payout.
type ClaimReceiptStore struct {
	pool *pgxpool.Pool
}

// NewClaimReceiptStore creates a ClaimReceiptStore backed by the given pool.
func NewClaimReceiptStore(pool *pgxpool.Pool) *ClaimReceiptStore {
	return &ClaimReceiptStore{pool: pool}
}

// Insert records one confirmed claim receipt. Inserting a second receipt for
// the same (market, ticket) pair returns domain.ErrAlreadyExists.
func (s *ClaimReceiptStore) Insert(ctx context.Context, r domain.ClaimReceipt) error {
	const query = `
		INSERT INTO claim_receipts (
			id, market_address, ticket_id, wallet, payout_micros, tx_hash, claimed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.MarketAddress, int64(r.TicketID), r.Wallet, r.PayoutMicros, r.TxHash, r.ClaimedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("postgres: receipt for ticket %d: %w", r.TicketID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: insert receipt for ticket %d: %w", r.TicketID, err)
	}
	return nil
}

// GetByTicket returns the receipt for one ticket of one market.
// It returns domain.ErrNotFound when no claim has been recorded.
func (s *ClaimReceiptStore) GetByTicket(ctx context.Context, market string, ticketID uint64) (domain.ClaimReceipt, error) {
	const query = `
		SELECT id, market_address, ticket_id, wallet, payout_micros, tx_hash, claimed_at
		FROM claim_receipts
		WHERE market_address = $1 AND ticket_id = $2`

	var r domain.ClaimReceipt
	var tid int64
	err := s.pool.QueryRow(ctx, query, market, int64(ticketID)).Scan(
		&r.ID, &r.MarketAddress, &tid, &r.Wallet, &r.PayoutMicros, &r.TxHash, &r.ClaimedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ClaimReceipt{}, domain.ErrNotFound
		}
		return domain.ClaimReceipt{}, fmt.Errorf("postgres: get receipt for ticket %d: %w", ticketID, err)
	}
	r.TicketID = uint64(tid)
	return r, nil
}

// ListByMarket returns receipts for a market, newest first.
func (s *ClaimReceiptStore) ListByMarket(ctx context.Context, market string, opts domain.ListOpts) ([]domain.ClaimReceipt, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	const query = `
		SELECT id, market_address, ticket_id, wallet, payout_micros, tx_hash, claimed_at
		FROM claim_receipts
		WHERE market_address = $1
		ORDER BY claimed_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, query, market, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list receipts for %s: %w", market, err)
	}
	defer rows.Close()

	var receipts []domain.ClaimReceipt
	for rows.Next() {
		var r domain.ClaimReceipt
		var tid int64
		if err := rows.Scan(&r.ID, &r.MarketAddress, &tid, &r.Wallet, &r.PayoutMicros, &r.TxHash, &r.ClaimedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan receipt: %w", err)
		}
		r.TicketID = uint64(tid)
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list receipts rows: %w", err)
	}
	return receipts, nil
}

// SumPayout returns the total recorded payout for one wallet in one market.
func (s *ClaimReceiptStore) SumPayout(ctx context.Context, market, wallet string) (int64, error) {
	const query = `
		SELECT COALESCE(SUM(payout_micros), 0)
		FROM claim_receipts
		WHERE market_address = $1 AND wallet = $2`

	var sum int64
	if err := s.pool.QueryRow(ctx, query, market, wallet).Scan(&sum); err != nil {
		return 0, fmt.Errorf("postgres: sum payout for %s: %w", wallet, err)
	}
	return sum, nil
}

// Compile-time interface check.
var _ domain.ClaimReceiptStore = (*ClaimReceiptStore)(nil)
