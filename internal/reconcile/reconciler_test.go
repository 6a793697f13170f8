package reconcile

import (
	"errors"
	"testing"

	"github.com/alanyoungcy/betclaim/internal/domain"
)

func testMarket() domain.Market {
	return domain.Market{
		Address:          "0xcampaign",
		Resolved:         true,
		OutcomeTrue:      true,
		TotalTrueMicros:  600_000000,
		TotalFalseMicros: 400_000000,
		FeeBps:           200,
	}
}

func TestReconcileUnclaimedWinner(t *testing.T) {
	ticket := domain.StakeTicket{ID: 3, Side: domain.SideYes, StakeMicros: 100_000000}

	// A stale bookkeeping record claiming the ticket is already paid must
	// not suppress the entitlement while the ledger says unclaimed.
	record := &domain.BetRecord{TicketID: 3, Claimed: true, PayoutMicros: 1}

	ent, err := Reconcile(testMarket(), ticket, record)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !ent.IsWinner || ent.PayoutMicros != 163_333333 {
		t.Fatalf("entitlement = %+v, want winner with 163333333", ent)
	}
	if ent.AlreadyClaimedElsewhere {
		t.Fatal("unclaimed ledger ticket must not be flagged claimed elsewhere")
	}
}

func TestReconcileClaimedNeverReoffered(t *testing.T) {
	ticket := domain.StakeTicket{ID: 5, Side: domain.SideYes, StakeMicros: 100_000000, Claimed: true}

	tests := []struct {
		name          string
		record        *domain.BetRecord
		wantElsewhere bool
	}{
		{name: "no bookkeeping record", record: nil, wantElsewhere: true},
		{
			name:          "bookkeeping unaware of claim",
			record:        &domain.BetRecord{TicketID: 5, Claimed: false},
			wantElsewhere: true,
		},
		{
			name:          "bookkeeping claimed without payout",
			record:        &domain.BetRecord{TicketID: 5, Claimed: true, PayoutMicros: 0},
			wantElsewhere: true,
		},
		{
			name:          "bookkeeping has the payout on record",
			record:        &domain.BetRecord{TicketID: 5, Claimed: true, PayoutMicros: 163_333333},
			wantElsewhere: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ent, err := Reconcile(testMarket(), ticket, tc.record)
			if err != nil {
				t.Fatalf("Reconcile: %v", err)
			}
			if ent.PayoutMicros != 0 {
				t.Fatalf("claimed ticket got payout %d, want 0", ent.PayoutMicros)
			}
			if ent.AlreadyClaimedElsewhere != tc.wantElsewhere {
				t.Fatalf("AlreadyClaimedElsewhere = %v, want %v", ent.AlreadyClaimedElsewhere, tc.wantElsewhere)
			}
		})
	}
}

func TestReconcileUnresolvedMarket(t *testing.T) {
	m := testMarket()
	m.Resolved = false

	_, err := Reconcile(m, domain.StakeTicket{ID: 1, Side: domain.SideNo, StakeMicros: 10}, nil)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestTicketAgreement(t *testing.T) {
	unclaimed := domain.StakeTicket{ID: 1}
	claimed := domain.StakeTicket{ID: 1, Claimed: true}

	if got := TicketAgreement(claimed, nil); got != AgreementLedgerWins {
		t.Fatalf("no record: %s, want ledger_wins", got)
	}
	if got := TicketAgreement(claimed, &domain.BetRecord{Claimed: true}); got != AgreementAgree {
		t.Fatalf("both claimed: %s, want agree", got)
	}
	if got := TicketAgreement(claimed, &domain.BetRecord{Claimed: false}); got != AgreementLedgerWins {
		t.Fatalf("bookkeeping lags: %s, want ledger_wins", got)
	}
	if got := TicketAgreement(unclaimed, &domain.BetRecord{Claimed: true}); got != AgreementConflict {
		t.Fatalf("bookkeeping ahead on claim: %s, want conflict", got)
	}
}
