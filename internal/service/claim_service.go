package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/betclaim/internal/domain"
	"github.com/alanyoungcy/betclaim/internal/notify"
	"github.com/alanyoungcy/betclaim/internal/reconcile"
)

// ClaimService drives the claim workflow for one wallet. Submission is
// strictly sequential: one transaction per ticket, confirmed (or failed)
// before the next begins.
type ClaimService struct {
	ledger    domain.LedgerReader
	submitter domain.ClaimSubmitter // nil in read-only modes
	books     domain.BookkeepingSource
	receipts  domain.ClaimReceiptStore
	audit     domain.AuditStore
	cache     domain.SnapshotCache
	locks     domain.LockManager
	bus       domain.SignalBus
	notifier  *notify.Notifier

	wallet  string
	lockTTL time.Duration

	logger *slog.Logger
}

// ClaimServiceDeps bundles the dependencies for NewClaimService.
type ClaimServiceDeps struct {
	Ledger    domain.LedgerReader
	Submitter domain.ClaimSubmitter
	Books     domain.BookkeepingSource
	Receipts  domain.ClaimReceiptStore
	Audit     domain.AuditStore
	Cache     domain.SnapshotCache
	Locks     domain.LockManager
	Bus       domain.SignalBus
	Notifier  *notify.Notifier
	Wallet    string
	LockTTL   time.Duration
	Logger    *slog.Logger
}

// NewClaimService creates a ClaimService. Submitter may be nil, in which
// case claim submission returns an error while the read paths keep working.
func NewClaimService(d ClaimServiceDeps) *ClaimService {
	lockTTL := d.LockTTL
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	return &ClaimService{
		ledger:    d.Ledger,
		submitter: d.Submitter,
		books:     d.Books,
		receipts:  d.Receipts,
		audit:     d.Audit,
		cache:     d.Cache,
		locks:     d.Locks,
		bus:       d.Bus,
		notifier:  d.Notifier,
		wallet:    strings.ToLower(d.Wallet),
		lockTTL:   lockTTL,
		logger:    d.Logger.With(slog.String("component", "claim_service")),
	}
}

// ClaimOutcome is the per-ticket result of a claim attempt.
type ClaimOutcome struct {
	TicketID       uint64
	PayoutMicros   int64
	TxHash         string
	AlreadyClaimed bool
	Err            error
}

// ClaimChannel returns the pub/sub channel carrying claim events for one
// market.
func ClaimChannel(market string) string {
	return "claims:" + strings.ToLower(market)
}

// claimEvent is the bus payload for one claim lifecycle event.
type claimEvent struct {
	Type         string `json:"type"`
	Market       string `json:"market"`
	TicketID     uint64 `json:"ticket_id"`
	PayoutMicros int64  `json:"payout,omitempty"`
	TxHash       string `json:"tx_hash,omitempty"`
	Error        string `json:"error,omitempty"`
}

// ClaimAll submits a claim for every eligible ticket of the market, one at a
// time. A failed ticket is reported in its outcome and does not stop the
// remaining tickets. The returned slice has one entry per eligible ticket.
func (s *ClaimService) ClaimAll(ctx context.Context, address string) ([]ClaimOutcome, error) {
	view, err := s.LoadMarketView(ctx, address)
	if err != nil {
		return nil, err
	}

	claimable := view.Claimable()
	s.logger.InfoContext(ctx, "claim-all started",
		slog.String("market", view.Market.Address),
		slog.Int("eligible", len(claimable)),
	)

	var outcomes []ClaimOutcome
	for _, tv := range claimable {
		if err := ctx.Err(); err != nil {
			return outcomes, fmt.Errorf("service: claim-all: %w", err)
		}
		out := s.ClaimTicket(ctx, address, tv.Ticket.ID)
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

// ClaimTicket claims a single ticket end to end: lock, re-verify against the
// ledger, submit the transaction, re-read the ticket, journal the receipt.
// A ticket the ledger already reports claimed is an idempotent no-op success
// with no transaction.
func (s *ClaimService) ClaimTicket(ctx context.Context, address string, ticketID uint64) ClaimOutcome {
	out := ClaimOutcome{TicketID: ticketID}

	unlock, err := s.locks.Acquire(ctx, claimLockKey(address, ticketID), s.lockTTL)
	if err != nil {
		out.Err = fmt.Errorf("service: claim %d: %w", ticketID, err)
		return out
	}
	defer unlock()

	// Re-read under the lock; another process may have finished this claim.
	ticket, err := s.ledger.Ticket(ctx, address, ticketID)
	if err != nil {
		out.Err = fmt.Errorf("service: claim %d: %w", ticketID, err)
		return out
	}
	if ticket.Claimed {
		out.AlreadyClaimed = true
		// Surface the journaled payout when this process recorded the claim.
		if rec, err := s.receipts.GetByTicket(ctx, strings.ToLower(address), ticketID); err == nil {
			out.PayoutMicros = rec.PayoutMicros
			out.TxHash = rec.TxHash
		}
		return out
	}

	market, err := s.marketSnapshot(ctx, address)
	if err != nil {
		out.Err = err
		return out
	}
	ent, err := s.entitlement(ctx, address, market, ticket)
	if err != nil {
		out.Err = err
		return out
	}
	if !ent.IsWinner {
		out.Err = fmt.Errorf("service: claim %d: losing ticket: %w", ticketID, domain.ErrInvalidState)
		return out
	}

	if s.submitter == nil {
		out.Err = fmt.Errorf("service: claim %d: no claim wallet configured", ticketID)
		return out
	}

	state := domain.ClaimStateUnclaimed
	if state, err = state.Transition(domain.ClaimStateClaiming); err != nil {
		out.Err = fmt.Errorf("service: claim %d: %w", ticketID, err)
		return out
	}

	txHash, err := s.submitter.SubmitClaim(ctx, address, ticketID)
	if err != nil {
		// Rejected or timed out: the ticket returns to the claimable pool.
		state, _ = state.Transition(domain.ClaimStateUnclaimed)
		s.reportRejection(ctx, market.Address, ticketID, err)
		out.Err = fmt.Errorf("service: claim %d: %w", ticketID, err)
		return out
	}

	// The receipt alone is not confirmation; the claimed flag on the ledger is.
	confirmed, err := s.ledger.Ticket(ctx, address, ticketID)
	if err != nil {
		out.Err = fmt.Errorf("service: claim %d: verify: %w", ticketID, err)
		return out
	}
	if !confirmed.Claimed {
		state, _ = state.Transition(domain.ClaimStateUnclaimed)
		err := fmt.Errorf("service: claim %d: tx %s mined but ticket not claimed: %w",
			ticketID, txHash, domain.ErrClaimRejected)
		s.reportRejection(ctx, market.Address, ticketID, err)
		out.Err = err
		return out
	}

	if _, err := state.Transition(domain.ClaimStateConfirmed); err != nil {
		out.Err = fmt.Errorf("service: claim %d: %w", ticketID, err)
		return out
	}

	receipt := domain.ClaimReceipt{
		ID:            uuid.NewString(),
		MarketAddress: market.Address,
		TicketID:      ticketID,
		Wallet:        s.wallet,
		PayoutMicros:  ent.PayoutMicros,
		TxHash:        txHash,
		ClaimedAt:     time.Now().UTC(),
	}
	if err := s.receipts.Insert(ctx, receipt); err != nil {
		// The chain already settled; losing the journal row must not undo that.
		s.logger.ErrorContext(ctx, "receipt journal write failed",
			slog.String("market", market.Address),
			slog.Uint64("ticket_id", ticketID),
			slog.String("error", err.Error()),
		)
	}

	s.afterConfirm(ctx, receipt)

	out.PayoutMicros = ent.PayoutMicros
	out.TxHash = txHash
	return out
}

// entitlement computes one ticket's entitlement from the reconciled
// resolution, tolerating a bookkeeping outage.
func (s *ClaimService) entitlement(ctx context.Context, address string, market domain.Market, ticket domain.StakeTicket) (domain.Entitlement, error) {
	effective := market
	if !effective.Resolved {
		// The ledger has not resolved; honor a provisional bookkeeping
		// resolution the same way the view does.
		campaign, err := s.books.Campaign(ctx, address)
		if err == nil && campaign.Resolved {
			effective.Resolved = true
			effective.OutcomeTrue = campaign.OutcomeTrue
		}
	}

	var record *domain.BetRecord
	if bets, err := s.books.UserBets(ctx, address); err == nil {
		for i := range bets {
			if bets[i].TicketID == ticket.ID {
				record = &bets[i]
				break
			}
		}
	}

	ent, err := reconcile.Reconcile(effective, ticket, record)
	if err != nil {
		if errors.Is(err, domain.ErrDivisionByZero) {
			s.integrityAlarm(ctx, effective, err)
		}
		return domain.Entitlement{}, err
	}
	return ent, nil
}

// afterConfirm runs the post-confirmation side effects: cache invalidation,
// bookkeeping notification, bus event, audit row, operator alert. None of
// them can fail the claim itself.
func (s *ClaimService) afterConfirm(ctx context.Context, r domain.ClaimReceipt) {
	if err := s.cache.Invalidate(ctx, r.MarketAddress); err != nil {
		s.logger.WarnContext(ctx, "snapshot invalidate failed",
			slog.String("market", r.MarketAddress),
			slog.String("error", err.Error()),
		)
	}

	if err := s.books.NotifyClaim(ctx, r); err != nil {
		// A missed notification is what later surfaces as an
		// AlreadyClaimedElsewhere flag on this ticket.
		s.logger.WarnContext(ctx, "bookkeeping claim notification failed",
			slog.String("market", r.MarketAddress),
			slog.Uint64("ticket_id", r.TicketID),
			slog.String("error", err.Error()),
		)
	}

	s.publish(ctx, claimEvent{
		Type:         "claim_confirmed",
		Market:       r.MarketAddress,
		TicketID:     r.TicketID,
		PayoutMicros: r.PayoutMicros,
		TxHash:       r.TxHash,
	})
	s.auditLog(ctx, "claim_confirmed", map[string]any{
		"market":    r.MarketAddress,
		"ticket_id": r.TicketID,
		"payout":    r.PayoutMicros,
		"tx_hash":   r.TxHash,
	})
	s.alert(ctx, notify.EventClaimConfirmed, "Claim confirmed",
		fmt.Sprintf("market %s ticket %d paid %.6f (tx %s)",
			r.MarketAddress, r.TicketID, domain.DisplayAmount(r.PayoutMicros), r.TxHash))

	s.logger.InfoContext(ctx, "claim confirmed",
		slog.String("market", r.MarketAddress),
		slog.Uint64("ticket_id", r.TicketID),
		slog.Int64("payout_micros", r.PayoutMicros),
		slog.String("tx", r.TxHash),
	)
}

func (s *ClaimService) reportRejection(ctx context.Context, market string, ticketID uint64, cause error) {
	s.logger.WarnContext(ctx, "claim rejected",
		slog.String("market", market),
		slog.Uint64("ticket_id", ticketID),
		slog.String("error", cause.Error()),
	)
	s.publish(ctx, claimEvent{
		Type:     "claim_rejected",
		Market:   market,
		TicketID: ticketID,
		Error:    cause.Error(),
	})
	s.auditLog(ctx, "claim_rejected", map[string]any{
		"market":    market,
		"ticket_id": ticketID,
		"error":     cause.Error(),
	})
	s.alert(ctx, notify.EventClaimRejected, "Claim rejected",
		fmt.Sprintf("market %s ticket %d: %v", market, ticketID, cause))
}

func (s *ClaimService) publish(ctx context.Context, ev claimEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, ClaimChannel(ev.Market), payload); err != nil {
		s.logger.WarnContext(ctx, "bus publish failed",
			slog.String("channel", ClaimChannel(ev.Market)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *ClaimService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit write failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *ClaimService) alert(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func claimLockKey(market string, ticketID uint64) string {
	return fmt.Sprintf("claim:%s:%d", strings.ToLower(market), ticketID)
}
