package domain

import (
	"fmt"
	"time"
)

// MarketStatus is the merged lifecycle state of a market as seen by the
// reconciliation engine.
type MarketStatus string

const (
	// MarketStatusRunning means the market has not ended and stakes may
	// still be placed.
	MarketStatusRunning MarketStatus = "running"
	// MarketStatusPending means the market has ended but no truth source
	// reports a resolution yet.
	MarketStatusPending MarketStatus = "pending"
	// MarketStatusResolved means at least one truth source reports an
	// outcome.
	MarketStatusResolved MarketStatus = "resolved"
)

// Ledger state enum as encoded by the BetCampaign contract.
const (
	LedgerStateRunning  = 0
	LedgerStateResolved = 1
)

// MaxFeeBps is the upper bound for a market fee (100%).
const MaxFeeBps = 10_000

// Market is an immutable snapshot of one binary-outcome market as read from
// the authoritative ledger. All monetary amounts are fixed-point integers
// with 6 implied decimal places ("micros"), matching the settlement token.
type Market struct {
	// Address is the BetCampaign contract address identifying the market.
	Address string

	Resolved    bool
	OutcomeTrue bool // meaningful only when Resolved

	TotalTrueMicros  int64
	TotalFalseMicros int64
	InitialPotMicros int64
	FeeBps           int64

	EndTime time.Time

	// FetchedAt records when the snapshot was taken from the ledger.
	FetchedAt time.Time
}

// Validate checks the ledger invariants on the snapshot.
func (m Market) Validate() error {
	if m.TotalTrueMicros < 0 || m.TotalFalseMicros < 0 || m.InitialPotMicros < 0 {
		return fmt.Errorf("market %s: negative stake totals: %w", m.Address, ErrAmountOverflow)
	}
	if m.FeeBps < 0 || m.FeeBps > MaxFeeBps {
		return fmt.Errorf("market %s: fee %d bps out of range", m.Address, m.FeeBps)
	}
	return nil
}

// WinnersTotalMicros returns the aggregate stake on the winning side.
// Meaningful only when Resolved.
func (m Market) WinnersTotalMicros() int64 {
	if m.OutcomeTrue {
		return m.TotalTrueMicros
	}
	return m.TotalFalseMicros
}

// DisplayAmount converts a fixed-point micros amount to a float for
// presentation. Never use the result in accounting computations.
func DisplayAmount(micros int64) float64 {
	return float64(micros) / 1e6
}
