// Package payout implements the pool accounting for resolved markets: the
// distributable pool after the protocol fee, and each ticket's proportional
// entitlement. All arithmetic is integer fixed-point (6 implied decimals)
// with big.Int intermediates; every division floors, so the sum of all
// winning entitlements can never exceed the distributable pool. Residual
// dust accrues to the protocol.
package payout

import (
	"fmt"
	"math/big"

	"github.com/alanyoungcy/betclaim/internal/domain"
)

var bpsDenominator = big.NewInt(domain.MaxFeeBps)

// Distributable returns pool - fee for a resolved market, where
// pool = totalTrue + totalFalse + initialPot and fee = pool*feeBps/10000
// with the fee floored (the protocol rounds in the payees' favor).
// It returns domain.ErrInvalidState when the market is not resolved.
func Distributable(m domain.Market) (int64, error) {
	if !m.Resolved {
		return 0, fmt.Errorf("payout: distributable for %s: %w", m.Address, domain.ErrInvalidState)
	}
	if err := m.Validate(); err != nil {
		return 0, fmt.Errorf("payout: %w", err)
	}

	pool := new(big.Int).SetInt64(m.TotalTrueMicros)
	pool.Add(pool, big.NewInt(m.TotalFalseMicros))
	pool.Add(pool, big.NewInt(m.InitialPotMicros))

	fee := new(big.Int).Mul(pool, big.NewInt(m.FeeBps))
	fee.Quo(fee, bpsDenominator)

	dist := new(big.Int).Sub(pool, fee)
	if !dist.IsInt64() {
		return 0, fmt.Errorf("payout: distributable for %s: %w", m.Address, domain.ErrAmountOverflow)
	}
	return dist.Int64(), nil
}

// Entitlement computes the derived claim entitlement for one ticket of a
// resolved market. Losing tickets get a zero payout; winning tickets get
// stake * distributable / winnersTotal, truncated.
//
// A resolved market whose winning side carries zero stake is an accounting
// anomaly: the caller receives domain.ErrDivisionByZero and must treat it
// as a fatal consistency error, never retry it.
func Entitlement(m domain.Market, t domain.StakeTicket) (domain.Entitlement, error) {
	dist, err := Distributable(m)
	if err != nil {
		return domain.Entitlement{}, err
	}

	winnersTotal := m.WinnersTotalMicros()
	if winnersTotal == 0 {
		return domain.Entitlement{}, fmt.Errorf(
			"payout: market %s resolved %v with empty winning side: %w",
			m.Address, m.OutcomeTrue, domain.ErrDivisionByZero,
		)
	}

	ent := domain.Entitlement{
		TicketID: t.ID,
		IsWinner: IsWinner(m, t),
	}
	if !ent.IsWinner {
		return ent, nil
	}

	share := new(big.Int).Mul(big.NewInt(t.StakeMicros), big.NewInt(dist))
	share.Quo(share, big.NewInt(winnersTotal))
	if !share.IsInt64() {
		return domain.Entitlement{}, fmt.Errorf("payout: ticket %d share: %w", t.ID, domain.ErrAmountOverflow)
	}
	ent.PayoutMicros = share.Int64()
	return ent, nil
}

// IsWinner reports whether the ticket backed the resolved outcome.
func IsWinner(m domain.Market, t domain.StakeTicket) bool {
	if m.OutcomeTrue {
		return t.Side == domain.SideYes
	}
	return t.Side == domain.SideNo
}
