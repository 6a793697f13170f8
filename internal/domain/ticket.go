package domain

import "fmt"

// Side is the outcome a stake backs.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Ledger encoding: 1 = YES, 0 = NO.
const (
	ledgerSideNo  = 0
	ledgerSideYes = 1
)

// SideFromLedger decodes the contract's uint8 side field.
func SideFromLedger(v uint8) (Side, error) {
	switch v {
	case ledgerSideYes:
		return SideYes, nil
	case ledgerSideNo:
		return SideNo, nil
	default:
		return "", fmt.Errorf("unknown ledger side %d", v)
	}
}

// LedgerValue encodes the side for the contract.
func (s Side) LedgerValue() uint8 {
	if s == SideYes {
		return ledgerSideYes
	}
	return ledgerSideNo
}

// StakeTicket is one atomic stake placed by one user, as read from the
// authoritative ledger. StakeMicros is fixed-point with 6 implied decimals
// and is always positive; Claimed flips exactly once and never reverts.
type StakeTicket struct {
	ID          uint64
	Market      string
	Side        Side
	StakeMicros int64
	Claimed     bool
}

// ClaimState is the claim workflow state for one ticket. It is an explicit
// finite-state machine, not a claimed flag plus a loading flag, so illegal
// combinations cannot be represented.
type ClaimState string

const (
	ClaimStateUnclaimed ClaimState = "unclaimed"
	ClaimStateClaiming  ClaimState = "claiming"
	ClaimStateConfirmed ClaimState = "confirmed"
)

// validClaimTransitions enumerates the allowed edges:
// Unclaimed -> Claiming, Claiming -> Confirmed, Claiming -> Unclaimed
// (transaction rejected or timed out). Confirmed is terminal.
var validClaimTransitions = map[ClaimState]map[ClaimState]bool{
	ClaimStateUnclaimed: {ClaimStateClaiming: true},
	ClaimStateClaiming:  {ClaimStateConfirmed: true, ClaimStateUnclaimed: true},
	ClaimStateConfirmed: {},
}

// Transition validates the edge from s to next and returns the new state.
func (s ClaimState) Transition(next ClaimState) (ClaimState, error) {
	if !validClaimTransitions[s][next] {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return next, nil
}
