package reconcile

import (
	"errors"
	"testing"
	"time"

	"github.com/alanyoungcy/betclaim/internal/domain"
)

func TestResolveStatus(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name        string
		in          ResolutionInput
		wantStatus  domain.MarketStatus
		wantOutcome bool
		wantSource  SourceAgreement
		wantProv    bool
	}{
		{
			name: "running before end time",
			in: ResolutionInput{
				EndTime: now.Add(time.Hour),
				Now:     now,
			},
			wantStatus: domain.MarketStatusRunning,
			wantSource: AgreementAgree,
		},
		{
			name: "pending after end time",
			in: ResolutionInput{
				EndTime: now.Add(-time.Minute),
				Now:     now,
			},
			wantStatus: domain.MarketStatusPending,
			wantSource: AgreementAgree,
		},
		{
			name: "end time exactly now is pending",
			in: ResolutionInput{
				EndTime: now,
				Now:     now,
			},
			wantStatus: domain.MarketStatusPending,
			wantSource: AgreementAgree,
		},
		{
			name: "ledger resolved alone wins",
			in: ResolutionInput{
				LedgerResolved: true,
				LedgerOutcome:  false,
				EndTime:        now.Add(time.Hour),
				Now:            now,
			},
			wantStatus:  domain.MarketStatusResolved,
			wantOutcome: false,
			wantSource:  AgreementLedgerWins,
		},
		{
			name: "bookkeeping resolves first and is honored provisionally",
			in: ResolutionInput{
				BookkeepingResolved: true,
				BookkeepingOutcome:  true,
				EndTime:             now.Add(-time.Hour),
				Now:                 now,
			},
			wantStatus:  domain.MarketStatusResolved,
			wantOutcome: true,
			wantSource:  AgreementBookkeepingLeads,
			wantProv:    true,
		},
		{
			name: "both resolved same outcome agree",
			in: ResolutionInput{
				LedgerResolved:      true,
				LedgerOutcome:       true,
				BookkeepingResolved: true,
				BookkeepingOutcome:  true,
			},
			wantStatus:  domain.MarketStatusResolved,
			wantOutcome: true,
			wantSource:  AgreementAgree,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := ResolveStatus(tc.in)
			if err != nil {
				t.Fatalf("ResolveStatus: %v", err)
			}
			if res.Status != tc.wantStatus {
				t.Fatalf("Status = %s, want %s", res.Status, tc.wantStatus)
			}
			if res.Status == domain.MarketStatusResolved && res.OutcomeTrue != tc.wantOutcome {
				t.Fatalf("OutcomeTrue = %v, want %v", res.OutcomeTrue, tc.wantOutcome)
			}
			if res.Source != tc.wantSource {
				t.Fatalf("Source = %s, want %s", res.Source, tc.wantSource)
			}
			if res.Provisional != tc.wantProv {
				t.Fatalf("Provisional = %v, want %v", res.Provisional, tc.wantProv)
			}
		})
	}
}

func TestResolveStatusConflict(t *testing.T) {
	res, err := ResolveStatus(ResolutionInput{
		LedgerResolved:      true,
		LedgerOutcome:       true,
		BookkeepingResolved: true,
		BookkeepingOutcome:  false,
	})
	if !errors.Is(err, domain.ErrOutcomeConflict) {
		t.Fatalf("err = %v, want ErrOutcomeConflict", err)
	}
	if res.Source != AgreementConflict {
		t.Fatalf("Source = %s, want conflict", res.Source)
	}
	// The surfaced resolution still carries the canonical ledger outcome.
	if res.Status != domain.MarketStatusResolved || res.OutcomeTrue != true {
		t.Fatalf("resolution = %+v, want resolved/true", res)
	}
}
