package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// ClaimReceipt is the durable record of one confirmed claim.
type ClaimReceipt struct {
	ID            string
	MarketAddress string
	TicketID      uint64
	Wallet        string
	PayoutMicros  int64
	TxHash        string
	ClaimedAt     time.Time
}

// ClaimReceiptStore persists confirmed claim receipts.
type ClaimReceiptStore interface {
	Insert(ctx context.Context, r ClaimReceipt) error
	GetByTicket(ctx context.Context, market string, ticketID uint64) (ClaimReceipt, error)
	ListByMarket(ctx context.Context, market string, opts ListOpts) ([]ClaimReceipt, error)
	SumPayout(ctx context.Context, market, wallet string) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// SnapshotCache caches ledger market snapshots with a short TTL so repeated
// view loads do not hammer the RPC endpoint.
type SnapshotCache interface {
	Set(ctx context.Context, m Market) error
	Get(ctx context.Context, address string) (Market, error)
	Invalidate(ctx context.Context, address string) error
}

// LockManager provides distributed locks. Claim submission acquires a
// per-ticket lock so two processes cannot claim the same ticket at once.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// SignalBus publishes claim lifecycle events for UI subscribers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (<-chan []byte, func(), error)
}

// LedgerReader reads authoritative market and ticket state from the
// settlement ledger. Implementations must not mutate anything.
type LedgerReader interface {
	MarketSnapshot(ctx context.Context, address string) (Market, error)
	Ticket(ctx context.Context, address string, ticketID uint64) (StakeTicket, error)
}

// ClaimSubmitter submits a claim transaction for one ticket and blocks
// until the transaction is confirmed or fails. A successful return means
// the transaction was mined without revert; callers still re-read the
// ticket before treating the claim as settled.
type ClaimSubmitter interface {
	SubmitClaim(ctx context.Context, address string, ticketID uint64) (txHash string, err error)
}

// BookkeepingSource is the read side of the off-chain bet registry plus the
// claim-notification write target. Records are advisory; the ledger wins
// every disagreement.
type BookkeepingSource interface {
	Campaign(ctx context.Context, campaignAddress string) (CampaignRecord, error)
	UserBets(ctx context.Context, campaignAddress string) ([]BetRecord, error)
	NotifyClaim(ctx context.Context, r ClaimReceipt) error
}
