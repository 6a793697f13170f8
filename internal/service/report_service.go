package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alanyoungcy/betclaim/internal/domain"
	"github.com/alanyoungcy/betclaim/internal/reconcile"
)

// ReportUploader is the blob write surface the report service needs.
// *s3blob.Writer satisfies it.
type ReportUploader interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// ReportService archives settlement reports for resolved markets to object
// storage. A report is a point-in-time JSON document: the ledger snapshot,
// the reconciled resolution, per-ticket entitlements, and the journaled
// receipts for the claim wallet.
type ReportService struct {
	claims   *ClaimService
	receipts domain.ClaimReceiptStore
	uploader ReportUploader
	wallet   string
	logger   *slog.Logger
}

// NewReportService creates a ReportService.
func NewReportService(claims *ClaimService, receipts domain.ClaimReceiptStore, uploader ReportUploader, wallet string, logger *slog.Logger) *ReportService {
	return &ReportService{
		claims:   claims,
		receipts: receipts,
		uploader: uploader,
		wallet:   wallet,
		logger:   logger.With(slog.String("component", "report_service")),
	}
}

// settlementReport is the archived document schema.
type settlementReport struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Market      domain.Market         `json:"market"`
	Resolution  reconcile.Resolution  `json:"resolution"`
	Tickets     []reportTicket        `json:"tickets"`
	Receipts    []domain.ClaimReceipt `json:"receipts"`
	Totals      settlementTotals      `json:"totals"`
}

type reportTicket struct {
	Ticket      domain.StakeTicket        `json:"ticket"`
	State       domain.ClaimState         `json:"state"`
	Entitlement domain.Entitlement        `json:"entitlement"`
	Agreement   reconcile.SourceAgreement `json:"agreement"`
}

type settlementTotals struct {
	PendingPayoutMicros   int64 `json:"pending_payout_micros"`
	JournaledPayoutMicros int64 `json:"journaled_payout_micros"`
}

// Archive builds the settlement report for one market and uploads it. It
// returns the object key. Reports are only meaningful for resolved markets;
// an unresolved market returns domain.ErrInvalidState.
func (s *ReportService) Archive(ctx context.Context, address string) (string, error) {
	view, err := s.claims.LoadMarketView(ctx, address)
	if err != nil {
		return "", fmt.Errorf("service: report %s: %w", address, err)
	}
	if view.Resolution.Status != domain.MarketStatusResolved {
		return "", fmt.Errorf("service: report %s: market not resolved: %w", address, domain.ErrInvalidState)
	}

	receipts, err := s.receipts.ListByMarket(ctx, view.Market.Address, domain.ListOpts{Limit: 1000})
	if err != nil {
		return "", fmt.Errorf("service: report %s: %w", address, err)
	}
	journaled, err := s.receipts.SumPayout(ctx, view.Market.Address, s.wallet)
	if err != nil {
		return "", fmt.Errorf("service: report %s: %w", address, err)
	}

	report := settlementReport{
		GeneratedAt: time.Now().UTC(),
		Market:      view.Market,
		Resolution:  view.Resolution,
		Receipts:    receipts,
		Totals: settlementTotals{
			PendingPayoutMicros:   view.PendingPayoutMicros,
			JournaledPayoutMicros: journaled,
		},
	}
	for _, tv := range view.Tickets {
		report.Tickets = append(report.Tickets, reportTicket{
			Ticket:      tv.Ticket,
			State:       tv.State,
			Entitlement: tv.Entitlement,
			Agreement:   tv.Agreement,
		})
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("service: report %s: encode: %w", address, err)
	}

	key := reportKey(view.Market.Address, report.GeneratedAt)
	if err := s.uploader.Put(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return "", fmt.Errorf("service: report %s: %w", address, err)
	}

	s.logger.InfoContext(ctx, "settlement report archived",
		slog.String("market", view.Market.Address),
		slog.String("key", key),
		slog.Int("tickets", len(report.Tickets)),
		slog.Int("receipts", len(receipts)),
	)
	return key, nil
}

func reportKey(market string, at time.Time) string {
	return fmt.Sprintf("settlements/%s/%s.json", market, at.Format("20060102T150405Z"))
}
