// Package service orchestrates the claim workflow: it merges the ledger and
// bookkeeping views of a market, computes entitlements, drives per-ticket
// claim submission, and journals confirmed claims.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/betclaim/internal/domain"
	"github.com/alanyoungcy/betclaim/internal/notify"
	"github.com/alanyoungcy/betclaim/internal/reconcile"
)

// TicketView is one ticket's merged state: the authoritative ledger ticket,
// its claim workflow state, the computed entitlement, and how the two truth
// sources related for it.
type TicketView struct {
	Ticket      domain.StakeTicket
	State       domain.ClaimState
	Entitlement domain.Entitlement
	Agreement   reconcile.SourceAgreement
}

// MarketView is the reconciled view of one market for one user. Entitlements
// are populated only when the resolution status is Resolved; for running or
// pending markets the tickets carry zero entitlements.
type MarketView struct {
	Market     domain.Market
	Resolution reconcile.Resolution

	// HasJoined distinguishes no-participation from no-winnings.
	HasJoined bool
	Tickets   []TicketView

	// PendingPayoutMicros sums entitlements of unclaimed winning tickets.
	PendingPayoutMicros int64
	// ClaimedMicros sums the bookkeeping payout records of tickets the
	// ledger reports claimed. Advisory, like its source.
	ClaimedMicros int64

	// Degraded is set when the bookkeeping source was unavailable and the
	// view rests on the ledger alone.
	Degraded bool
}

// Claimable returns the tickets eligible for claim submission: unclaimed
// winners of a resolved market. Tickets mid-claim or already confirmed are
// never included.
func (v *MarketView) Claimable() []TicketView {
	if v.Resolution.Status != domain.MarketStatusResolved {
		return nil
	}
	var out []TicketView
	for _, tv := range v.Tickets {
		if tv.State == domain.ClaimStateUnclaimed && tv.Entitlement.IsWinner && !tv.Ticket.Claimed {
			out = append(out, tv)
		}
	}
	return out
}

// LoadMarketView fetches both truth sources concurrently and reconciles them.
// The ledger snapshot is required; a bookkeeping outage degrades the view
// instead of failing it. An outcome conflict between the two sources aborts
// the view — entitlements must never be computed from a conflicted state.
func (s *ClaimService) LoadMarketView(ctx context.Context, address string) (*MarketView, error) {
	var (
		market   domain.Market
		campaign domain.CampaignRecord
		records  []domain.BetRecord

		// one flag per goroutine; merged after Wait
		campaignDown bool
		betsDown     bool
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		m, err := s.marketSnapshot(gctx, address)
		if err != nil {
			return err
		}
		market = m
		return nil
	})
	g.Go(func() error {
		rec, err := s.books.Campaign(gctx, address)
		if err != nil {
			if tolerable(err) {
				campaignDown = true
				return nil
			}
			return fmt.Errorf("service: campaign %s: %w", address, err)
		}
		campaign = rec
		return nil
	})
	g.Go(func() error {
		bets, err := s.books.UserBets(gctx, address)
		if err != nil {
			if tolerable(err) {
				betsDown = true
				return nil
			}
			return fmt.Errorf("service: user bets %s: %w", address, err)
		}
		records = bets
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	degraded := campaignDown || betsDown

	res, err := reconcile.ResolveStatus(reconcile.ResolutionInput{
		LedgerResolved:      market.Resolved,
		LedgerOutcome:       market.OutcomeTrue,
		BookkeepingResolved: campaign.Resolved,
		BookkeepingOutcome:  campaign.OutcomeTrue,
		EndTime:             market.EndTime,
		Now:                 time.Now().UTC(),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "outcome conflict between truth sources",
			slog.String("market", market.Address),
			slog.Bool("ledger_outcome", market.OutcomeTrue),
			slog.Bool("bookkeeping_outcome", campaign.OutcomeTrue),
		)
		s.alert(ctx, notify.EventOutcomeConflict, "Outcome conflict",
			fmt.Sprintf("market %s: ledger says %v, bookkeeping says %v",
				market.Address, market.OutcomeTrue, campaign.OutcomeTrue))
		s.auditLog(ctx, "outcome_conflict", map[string]any{
			"market":              market.Address,
			"ledger_outcome":      market.OutcomeTrue,
			"bookkeeping_outcome": campaign.OutcomeTrue,
		})
		return nil, err
	}

	view := &MarketView{
		Market:     market,
		Resolution: res,
		HasJoined:  len(records) > 0,
		Degraded:   degraded,
	}

	// The effective market carries the reconciled resolution, so a
	// provisional bookkeeping-led resolution still yields entitlements.
	effective := market
	if res.Status == domain.MarketStatusResolved {
		effective.Resolved = true
		effective.OutcomeTrue = res.OutcomeTrue
	}

	book := domain.NewTicketBook(market.Address)
	byID := make(map[uint64]*domain.BetRecord, len(records))

	for i := range records {
		rec := &records[i]
		byID[rec.TicketID] = rec

		ticket, err := s.ledger.Ticket(ctx, address, rec.TicketID)
		if err != nil {
			return nil, fmt.Errorf("service: ticket %d: %w", rec.TicketID, err)
		}
		if err := book.Put(ticket); err != nil {
			return nil, fmt.Errorf("service: %w", err)
		}
	}

	for _, ticket := range book.All() {
		_, state, _ := book.Get(ticket.ID)
		tv := TicketView{
			Ticket:    ticket,
			State:     state,
			Agreement: reconcile.TicketAgreement(ticket, byID[ticket.ID]),
		}

		if res.Status == domain.MarketStatusResolved {
			ent, err := reconcile.Reconcile(effective, ticket, byID[ticket.ID])
			if err != nil {
				if errors.Is(err, domain.ErrDivisionByZero) {
					s.integrityAlarm(ctx, effective, err)
				}
				return nil, err
			}
			tv.Entitlement = ent

			if ticket.Claimed {
				if rec := byID[ticket.ID]; rec != nil {
					view.ClaimedMicros += rec.PayoutMicros
				}
			} else if ent.IsWinner {
				view.PendingPayoutMicros += ent.PayoutMicros
			}
		}

		view.Tickets = append(view.Tickets, tv)
	}

	return view, nil
}

// marketSnapshot reads the market through the short-TTL cache.
func (s *ClaimService) marketSnapshot(ctx context.Context, address string) (domain.Market, error) {
	if m, err := s.cache.Get(ctx, address); err == nil {
		return m, nil
	}

	m, err := s.ledger.MarketSnapshot(ctx, address)
	if err != nil {
		return domain.Market{}, fmt.Errorf("service: snapshot %s: %w", address, err)
	}

	if err := s.cache.Set(ctx, m); err != nil {
		s.logger.WarnContext(ctx, "snapshot cache write failed",
			slog.String("market", m.Address),
			slog.String("error", err.Error()),
		)
	}
	return m, nil
}

// integrityAlarm reports a resolved market whose winning side carries zero
// stake. This is an accounting anomaly, never retried.
func (s *ClaimService) integrityAlarm(ctx context.Context, m domain.Market, err error) {
	s.logger.ErrorContext(ctx, "accounting anomaly: empty winning side",
		slog.String("market", m.Address),
		slog.Bool("outcome", m.OutcomeTrue),
		slog.String("error", err.Error()),
	)
	s.alert(ctx, notify.EventDataIntegrity, "Data integrity alarm",
		fmt.Sprintf("market %s resolved %v with empty winning side", m.Address, m.OutcomeTrue))
	s.auditLog(ctx, "data_integrity", map[string]any{
		"market":  m.Address,
		"outcome": m.OutcomeTrue,
		"error":   err.Error(),
	})
}

// tolerable reports whether a bookkeeping failure degrades the view rather
// than failing it.
func tolerable(err error) bool {
	return errors.Is(err, domain.ErrSourceUnavailable) || errors.Is(err, domain.ErrNotFound)
}
