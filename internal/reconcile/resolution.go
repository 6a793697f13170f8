// Package reconcile merges the two truth sources of a market — the
// authoritative ledger and the advisory off-chain bookkeeping service —
// into one canonical view: resolution status and per-ticket entitlements.
// Precedence is expressed as an explicit tagged result rather than ad-hoc
// branching so the rules stay auditable in isolation.
package reconcile

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/betclaim/internal/domain"
)

// SourceAgreement tags how the two truth sources related when a decision
// was made.
type SourceAgreement string

const (
	// AgreementAgree: both sources report the same resolution state (and
	// the same outcome, when resolved).
	AgreementAgree SourceAgreement = "agree"
	// AgreementLedgerWins: the ledger reports resolved while bookkeeping
	// does not; the ledger outcome is used.
	AgreementLedgerWins SourceAgreement = "ledger_wins"
	// AgreementBookkeepingLeads: only the bookkeeping cache reports
	// resolved. Its oracle feed can legitimately run ahead of the chain,
	// so the outcome is honored but flagged provisional until the ledger
	// confirms.
	AgreementBookkeepingLeads SourceAgreement = "bookkeeping_leads"
	// AgreementConflict: both sources report resolved with opposite
	// outcomes. Surfaced, never silently resolved.
	AgreementConflict SourceAgreement = "conflict"
)

// ResolutionInput carries both sources' resolution signals for one market.
type ResolutionInput struct {
	LedgerResolved bool
	LedgerOutcome  bool

	BookkeepingResolved bool
	BookkeepingOutcome  bool

	EndTime time.Time
	Now     time.Time
}

// Resolution is the single authoritative status derived from both sources.
type Resolution struct {
	Status      domain.MarketStatus
	OutcomeTrue bool // meaningful only when Status is Resolved
	Source      SourceAgreement
	// Provisional is set when resolution rests on the bookkeeping cache
	// alone; the ledger has not confirmed yet.
	Provisional bool
}

// ResolveStatus decides the market status and outcome. The ledger outcome
// is canonical once the ledger reports resolved; a bookkeeping-only
// resolution is honored provisionally. When both sources report resolved
// with different outcomes, the resolution carries the ledger outcome and
// domain.ErrOutcomeConflict is returned alongside it for the caller to
// surface — entitlements must not be computed from a conflicted view.
func ResolveStatus(in ResolutionInput) (Resolution, error) {
	switch {
	case in.LedgerResolved && in.BookkeepingResolved:
		res := Resolution{
			Status:      domain.MarketStatusResolved,
			OutcomeTrue: in.LedgerOutcome,
			Source:      AgreementAgree,
		}
		if in.LedgerOutcome != in.BookkeepingOutcome {
			res.Source = AgreementConflict
			return res, fmt.Errorf(
				"reconcile: ledger=%v bookkeeping=%v: %w",
				in.LedgerOutcome, in.BookkeepingOutcome, domain.ErrOutcomeConflict,
			)
		}
		return res, nil

	case in.LedgerResolved:
		return Resolution{
			Status:      domain.MarketStatusResolved,
			OutcomeTrue: in.LedgerOutcome,
			Source:      AgreementLedgerWins,
		}, nil

	case in.BookkeepingResolved:
		return Resolution{
			Status:      domain.MarketStatusResolved,
			OutcomeTrue: in.BookkeepingOutcome,
			Source:      AgreementBookkeepingLeads,
			Provisional: true,
		}, nil

	case !in.EndTime.After(in.Now):
		return Resolution{Status: domain.MarketStatusPending, Source: AgreementAgree}, nil

	default:
		return Resolution{Status: domain.MarketStatusRunning, Source: AgreementAgree}, nil
	}
}
