package payout

import (
	"errors"
	"testing"

	"pgregory.net/rapid"

	"github.com/alanyoungcy/betclaim/internal/domain"
)

func resolvedMarket(totalTrue, totalFalse, pot, feeBps int64, outcomeTrue bool) domain.Market {
	return domain.Market{
		Address:          "0xcampaign",
		Resolved:         true,
		OutcomeTrue:      outcomeTrue,
		TotalTrueMicros:  totalTrue,
		TotalFalseMicros: totalFalse,
		InitialPotMicros: pot,
		FeeBps:           feeBps,
	}
}

func TestDistributable(t *testing.T) {
	tests := []struct {
		name   string
		market domain.Market
		want   int64
	}{
		{
			name:   "fee floors in favor of payees",
			market: resolvedMarket(600_000000, 400_000000, 0, 200, true),
			want:   980_000000,
		},
		{
			name:   "zero fee",
			market: resolvedMarket(100, 100, 50, 0, true),
			want:   250,
		},
		{
			name:   "full fee leaves nothing",
			market: resolvedMarket(100, 100, 0, 10_000, false),
			want:   0,
		},
		{
			name:   "odd pool truncates fee downward",
			market: resolvedMarket(3, 0, 0, 3333, true),
			want:   3, // fee = 3*3333/10000 = 0
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Distributable(tc.market)
			if err != nil {
				t.Fatalf("Distributable: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Distributable = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestDistributableUnresolved(t *testing.T) {
	m := resolvedMarket(100, 100, 0, 100, true)
	m.Resolved = false

	if _, err := Distributable(m); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("Distributable on unresolved market: err = %v, want ErrInvalidState", err)
	}
	if _, err := Entitlement(m, domain.StakeTicket{ID: 1, Side: domain.SideYes, StakeMicros: 100}); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("Entitlement on unresolved market: err = %v, want ErrInvalidState", err)
	}
}

func TestEntitlementScenario(t *testing.T) {
	// 600 YES vs 400 NO, no seed pot, 2% fee, YES wins.
	// Distributable = 1,000.000000 - 20.000000 = 980.000000.
	m := resolvedMarket(600_000000, 400_000000, 0, 200, true)

	winner := domain.StakeTicket{ID: 7, Side: domain.SideYes, StakeMicros: 100_000000}
	ent, err := Entitlement(m, winner)
	if err != nil {
		t.Fatalf("Entitlement: %v", err)
	}
	if !ent.IsWinner {
		t.Fatal("expected winning ticket")
	}
	// 100_000000 * 980_000000 / 600_000000 = 163_333333 (floored)
	if ent.PayoutMicros != 163_333333 {
		t.Fatalf("PayoutMicros = %d, want 163333333", ent.PayoutMicros)
	}

	loser := domain.StakeTicket{ID: 8, Side: domain.SideNo, StakeMicros: 100_000000}
	ent, err = Entitlement(m, loser)
	if err != nil {
		t.Fatalf("Entitlement: %v", err)
	}
	if ent.IsWinner || ent.PayoutMicros != 0 {
		t.Fatalf("losing ticket: IsWinner=%v payout=%d, want false/0", ent.IsWinner, ent.PayoutMicros)
	}
}

func TestEntitlementDeterministic(t *testing.T) {
	m := resolvedMarket(123_456789, 987_654321, 10_000000, 175, false)
	ticket := domain.StakeTicket{ID: 42, Side: domain.SideNo, StakeMicros: 55_555555}

	first, err := Entitlement(m, ticket)
	if err != nil {
		t.Fatalf("Entitlement: %v", err)
	}
	second, err := Entitlement(m, ticket)
	if err != nil {
		t.Fatalf("Entitlement: %v", err)
	}
	if first != second {
		t.Fatalf("identical inputs produced %+v then %+v", first, second)
	}
}

func TestEntitlementEmptyWinningSide(t *testing.T) {
	// NO wins but nobody staked NO.
	m := resolvedMarket(500_000000, 0, 100_000000, 100, false)
	ticket := domain.StakeTicket{ID: 1, Side: domain.SideYes, StakeMicros: 500_000000}

	if _, err := Entitlement(m, ticket); !errors.Is(err, domain.ErrDivisionByZero) {
		t.Fatalf("err = %v, want ErrDivisionByZero", err)
	}
}

// TestProperty_WinnersNeverOverdrawPool verifies the system-wide invariant:
// for any partition of the winning side into tickets, the sum of
// floor-rounded entitlements never exceeds the distributable pool.
func TestProperty_WinnersNeverOverdrawPool(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		outcomeTrue := rapid.Bool().Draw(t, "outcomeTrue")
		loserTotal := rapid.Int64Range(0, 1_000_000_000000).Draw(t, "loserTotal")
		pot := rapid.Int64Range(0, 100_000_000000).Draw(t, "pot")
		feeBps := rapid.Int64Range(0, domain.MaxFeeBps).Draw(t, "feeBps")

		// Partition the winning side into 1..20 positive stakes.
		n := rapid.IntRange(1, 20).Draw(t, "tickets")
		stakes := make([]int64, n)
		var winnerTotal int64
		for i := range stakes {
			stakes[i] = rapid.Int64Range(1, 50_000_000000).Draw(t, "stake")
			winnerTotal += stakes[i]
		}

		var m domain.Market
		if outcomeTrue {
			m = resolvedMarket(winnerTotal, loserTotal, pot, feeBps, true)
		} else {
			m = resolvedMarket(loserTotal, winnerTotal, pot, feeBps, false)
		}

		dist, err := Distributable(m)
		if err != nil {
			t.Fatalf("Distributable: %v", err)
		}

		side := domain.SideYes
		if !outcomeTrue {
			side = domain.SideNo
		}

		var sum int64
		for i, stake := range stakes {
			ent, err := Entitlement(m, domain.StakeTicket{ID: uint64(i + 1), Side: side, StakeMicros: stake})
			if err != nil {
				t.Fatalf("Entitlement: %v", err)
			}
			if !ent.IsWinner {
				t.Fatalf("ticket on winning side reported as loser")
			}
			sum += ent.PayoutMicros
		}

		if sum > dist {
			t.Fatalf("winners drew %d from a distributable pool of %d", sum, dist)
		}
	})
}
