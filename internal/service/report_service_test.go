package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/betclaim/internal/domain"
)

type fakeUploader struct {
	key  string
	body []byte
}

func (f *fakeUploader) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	f.key = path
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.body = b
	return nil
}

func TestArchiveSettlementReport(t *testing.T) {
	ledger := &fakeLedger{
		market: resolvedMarket(),
		tickets: map[uint64]domain.StakeTicket{
			1: {ID: 1, Market: testMarket, Side: domain.SideYes, StakeMicros: 100_000000},
		},
	}
	books := &fakeBooks{
		campaign: domain.CampaignRecord{Address: testMarket, Resolved: true, OutcomeTrue: true},
		bets:     []domain.BetRecord{{TicketID: 1, CampaignAddress: testMarket, StakeMicros: 100_000000}},
	}
	f := newFixture(t, ledger, books)

	uploader := &fakeUploader{}
	reports := NewReportService(f.svc, f.receipts, uploader, "0xwallet",
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	key, err := reports.Archive(context.Background(), testMarket)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if !strings.HasPrefix(key, "settlements/"+testMarket+"/") {
		t.Errorf("key = %s", key)
	}

	var report settlementReport
	if err := json.Unmarshal(uploader.body, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(report.Tickets) != 1 {
		t.Fatalf("tickets = %d, want 1", len(report.Tickets))
	}
	if report.Totals.PendingPayoutMicros != 163_333333 {
		t.Errorf("pending = %d", report.Totals.PendingPayoutMicros)
	}
}

func TestArchiveRefusesUnresolvedMarket(t *testing.T) {
	m := resolvedMarket()
	m.Resolved = false
	m.EndTime = time.Now().Add(48 * time.Hour) // still running

	ledger := &fakeLedger{market: m, tickets: map[uint64]domain.StakeTicket{}}
	f := newFixture(t, ledger, &fakeBooks{})

	reports := NewReportService(f.svc, f.receipts, &fakeUploader{}, "0xwallet",
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	if _, err := reports.Archive(context.Background(), testMarket); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}
