package reconcile

import (
	"fmt"

	"github.com/alanyoungcy/betclaim/internal/domain"
	"github.com/alanyoungcy/betclaim/internal/payout"
)

// Reconcile produces the canonical entitlement for one ticket from the
// authoritative ledger ticket and the (possibly absent, possibly stale)
// bookkeeping record. The ledger's claimed flag always wins.
//
// Rules:
//   - Ledger says claimed: the ticket is settled and never re-enters the
//     claimable set. If bookkeeping has no payout record for it, the
//     entitlement carries AlreadyClaimedElsewhere as a staleness signal.
//   - Ledger says unclaimed and the market is resolved: the entitlement is
//     computed from the pool accounting regardless of what bookkeeping
//     thinks it knows.
//
// The market must be resolved; reconciling an unresolved market returns
// domain.ErrInvalidState rather than a zero entitlement that could
// understate a payout.
func Reconcile(m domain.Market, onChain domain.StakeTicket, record *domain.BetRecord) (domain.Entitlement, error) {
	if !m.Resolved {
		return domain.Entitlement{}, fmt.Errorf("reconcile: ticket %d: %w", onChain.ID, domain.ErrInvalidState)
	}

	if onChain.Claimed {
		return domain.Entitlement{
			TicketID:                onChain.ID,
			IsWinner:                payout.IsWinner(m, onChain),
			PayoutMicros:            0,
			AlreadyClaimedElsewhere: record == nil || !record.Claimed || record.PayoutMicros == 0,
		}, nil
	}

	ent, err := payout.Entitlement(m, onChain)
	if err != nil {
		return domain.Entitlement{}, err
	}
	return ent, nil
}

// TicketAgreement classifies how the two sources relate for one ticket,
// for audit logs and operator alerts.
func TicketAgreement(onChain domain.StakeTicket, record *domain.BetRecord) SourceAgreement {
	if record == nil {
		return AgreementLedgerWins
	}
	if record.Claimed == onChain.Claimed {
		return AgreementAgree
	}
	if onChain.Claimed {
		// Bookkeeping lags the chain; the ledger flag stands.
		return AgreementLedgerWins
	}
	// Bookkeeping claims a payout the ledger has not recorded.
	return AgreementConflict
}
