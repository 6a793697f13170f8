package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/betclaim/internal/domain"
)

// --- in-memory fakes ---

type fakeLedger struct {
	mu      sync.Mutex
	market  domain.Market
	tickets map[uint64]domain.StakeTicket

	submitErr   error
	submitCalls int
}

func (f *fakeLedger) MarketSnapshot(ctx context.Context, address string) (domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.market, nil
}

func (f *fakeLedger) Ticket(ctx context.Context, address string, id uint64) (domain.StakeTicket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return domain.StakeTicket{}, domain.ErrNotFound
	}
	return t, nil
}

func (f *fakeLedger) SubmitClaim(ctx context.Context, address string, id uint64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	if f.submitErr != nil {
		return "", f.submitErr
	}
	t := f.tickets[id]
	t.Claimed = true
	f.tickets[id] = t
	return fmt.Sprintf("0xtx%d", id), nil
}

type fakeBooks struct {
	campaign    domain.CampaignRecord
	campaignErr error
	bets        []domain.BetRecord
	betsErr     error

	notified []domain.ClaimReceipt
}

func (f *fakeBooks) Campaign(ctx context.Context, address string) (domain.CampaignRecord, error) {
	return f.campaign, f.campaignErr
}

func (f *fakeBooks) UserBets(ctx context.Context, address string) ([]domain.BetRecord, error) {
	return f.bets, f.betsErr
}

func (f *fakeBooks) NotifyClaim(ctx context.Context, r domain.ClaimReceipt) error {
	f.notified = append(f.notified, r)
	return nil
}

type fakeReceipts struct {
	rows []domain.ClaimReceipt
}

func (f *fakeReceipts) Insert(ctx context.Context, r domain.ClaimReceipt) error {
	f.rows = append(f.rows, r)
	return nil
}

func (f *fakeReceipts) GetByTicket(ctx context.Context, market string, id uint64) (domain.ClaimReceipt, error) {
	for _, r := range f.rows {
		if r.TicketID == id {
			return r, nil
		}
	}
	return domain.ClaimReceipt{}, domain.ErrNotFound
}

func (f *fakeReceipts) ListByMarket(ctx context.Context, market string, opts domain.ListOpts) ([]domain.ClaimReceipt, error) {
	return f.rows, nil
}

func (f *fakeReceipts) SumPayout(ctx context.Context, market, wallet string) (int64, error) {
	var sum int64
	for _, r := range f.rows {
		sum += r.PayoutMicros
	}
	return sum, nil
}

type fakeAudit struct {
	events []string
}

func (f *fakeAudit) Log(ctx context.Context, event string, detail map[string]any) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAudit) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string]domain.Market
}

func (f *fakeCache) Set(ctx context.Context, m domain.Market) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		f.data = make(map[string]domain.Market)
	}
	f.data[m.Address] = m
	return nil
}

func (f *fakeCache) Get(ctx context.Context, address string) (domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.data[address]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeCache) Invalidate(ctx context.Context, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, address)
	return nil
}

type fakeLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func (f *fakeLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held == nil {
		f.held = make(map[string]bool)
	}
	if f.held[key] {
		return nil, domain.ErrLockHeld
	}
	f.held[key] = true
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, key)
	}, nil
}

type fakeBus struct {
	published [][]byte
}

func (f *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	f.published = append(f.published, payload)
	return nil
}

func (f *fakeBus) Subscribe(ctx context.Context, channels ...string) (<-chan []byte, func(), error) {
	ch := make(chan []byte)
	close(ch)
	return ch, func() {}, nil
}

// --- fixtures ---

const testMarket = "0xc0ffee"

// resolvedMarket has pool 600+400+0, fee 200 bps, outcome true, so the
// distributable pool is 980 and a 100 stake on YES is entitled to 163.333333.
func resolvedMarket() domain.Market {
	return domain.Market{
		Address:          testMarket,
		Resolved:         true,
		OutcomeTrue:      true,
		TotalTrueMicros:  600_000000,
		TotalFalseMicros: 400_000000,
		FeeBps:           200,
		EndTime:          time.Now().Add(-time.Hour).UTC(),
		FetchedAt:        time.Now().UTC(),
	}
}

type fixture struct {
	ledger   *fakeLedger
	books    *fakeBooks
	receipts *fakeReceipts
	audit    *fakeAudit
	bus      *fakeBus
	svc      *ClaimService
}

func newFixture(t *testing.T, ledger *fakeLedger, books *fakeBooks) *fixture {
	t.Helper()
	f := &fixture{
		ledger:   ledger,
		books:    books,
		receipts: &fakeReceipts{},
		audit:    &fakeAudit{},
		bus:      &fakeBus{},
	}
	f.svc = NewClaimService(ClaimServiceDeps{
		Ledger:    ledger,
		Submitter: ledger,
		Books:     books,
		Receipts:  f.receipts,
		Audit:     f.audit,
		Cache:     &fakeCache{},
		Locks:     &fakeLocks{},
		Bus:       f.bus,
		Wallet:    "0xwallet",
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f
}

// --- tests ---

func TestClaimTicketConfirmsAndJournals(t *testing.T) {
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

	out := f.svc.ClaimTicket(context.Background(), testMarket, 1)
	if out.Err != nil {
		t.Fatalf("ClaimTicket: %v", out.Err)
	}
	if out.PayoutMicros != 163_333333 {
		t.Errorf("payout = %d, want 163333333", out.PayoutMicros)
	}
	if out.TxHash == "" {
		t.Error("expected a tx hash")
	}
	if len(f.receipts.rows) != 1 || f.receipts.rows[0].PayoutMicros != 163_333333 {
		t.Errorf("receipts = %+v", f.receipts.rows)
	}
	if len(books.notified) != 1 {
		t.Errorf("bookkeeping notifications = %d, want 1", len(books.notified))
	}
	if len(f.bus.published) != 1 {
		t.Errorf("bus events = %d, want 1", len(f.bus.published))
	}
	if len(f.audit.events) != 1 || f.audit.events[0] != "claim_confirmed" {
		t.Errorf("audit events = %v", f.audit.events)
	}
}

func TestClaimTicketAlreadyClaimedIsNoOp(t *testing.T) {
	ledger := &fakeLedger{
		market: resolvedMarket(),
		tickets: map[uint64]domain.StakeTicket{
			1: {ID: 1, Market: testMarket, Side: domain.SideYes, StakeMicros: 100_000000, Claimed: true},
		},
	}
	f := newFixture(t, ledger, &fakeBooks{})

	out := f.svc.ClaimTicket(context.Background(), testMarket, 1)
	if out.Err != nil {
		t.Fatalf("ClaimTicket: %v", out.Err)
	}
	if !out.AlreadyClaimed {
		t.Error("expected AlreadyClaimed")
	}
	if out.TxHash != "" || ledger.submitCalls != 0 {
		t.Errorf("no transaction expected, got tx=%q calls=%d", out.TxHash, ledger.submitCalls)
	}
	if len(f.receipts.rows) != 0 {
		t.Errorf("no receipt expected, got %+v", f.receipts.rows)
	}
}

func TestClaimTicketRejectionLeavesTicketClaimable(t *testing.T) {
	ledger := &fakeLedger{
		market: resolvedMarket(),
		tickets: map[uint64]domain.StakeTicket{
			1: {ID: 1, Market: testMarket, Side: domain.SideYes, StakeMicros: 100_000000},
		},
		submitErr: fmt.Errorf("reverted: %w", domain.ErrClaimRejected),
	}
	books := &fakeBooks{
		campaign: domain.CampaignRecord{Address: testMarket, Resolved: true, OutcomeTrue: true},
	}
	f := newFixture(t, ledger, books)

	out := f.svc.ClaimTicket(context.Background(), testMarket, 1)
	if !errors.Is(out.Err, domain.ErrClaimRejected) {
		t.Fatalf("err = %v, want ErrClaimRejected", out.Err)
	}
	if len(f.audit.events) != 1 || f.audit.events[0] != "claim_rejected" {
		t.Errorf("audit events = %v", f.audit.events)
	}

	// The ticket returned to the claimable pool; a retry succeeds.
	ledger.submitErr = nil
	out = f.svc.ClaimTicket(context.Background(), testMarket, 1)
	if out.Err != nil {
		t.Fatalf("retry: %v", out.Err)
	}
	if out.TxHash == "" {
		t.Error("retry should have submitted a transaction")
	}
}

func TestClaimTicketLosingTicketRefused(t *testing.T) {
	ledger := &fakeLedger{
		market: resolvedMarket(),
		tickets: map[uint64]domain.StakeTicket{
			2: {ID: 2, Market: testMarket, Side: domain.SideNo, StakeMicros: 50_000000},
		},
	}
	f := newFixture(t, ledger, &fakeBooks{})

	out := f.svc.ClaimTicket(context.Background(), testMarket, 2)
	if !errors.Is(out.Err, domain.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", out.Err)
	}
	if ledger.submitCalls != 0 {
		t.Errorf("losing ticket must not reach the ledger, calls = %d", ledger.submitCalls)
	}
}

func TestLoadMarketViewAggregates(t *testing.T) {
	ledger := &fakeLedger{
		market: resolvedMarket(),
		tickets: map[uint64]domain.StakeTicket{
			1: {ID: 1, Market: testMarket, Side: domain.SideYes, StakeMicros: 100_000000},
			2: {ID: 2, Market: testMarket, Side: domain.SideNo, StakeMicros: 50_000000},
			3: {ID: 3, Market: testMarket, Side: domain.SideYes, StakeMicros: 200_000000, Claimed: true},
		},
	}
	books := &fakeBooks{
		campaign: domain.CampaignRecord{Address: testMarket, Resolved: true, OutcomeTrue: true},
		bets: []domain.BetRecord{
			{TicketID: 1, CampaignAddress: testMarket, StakeMicros: 100_000000},
			{TicketID: 2, CampaignAddress: testMarket, StakeMicros: 50_000000},
			{TicketID: 3, CampaignAddress: testMarket, StakeMicros: 200_000000, Claimed: true, PayoutMicros: 326_666666},
		},
	}
	f := newFixture(t, ledger, books)

	view, err := f.svc.LoadMarketView(context.Background(), testMarket)
	if err != nil {
		t.Fatalf("LoadMarketView: %v", err)
	}
	if !view.HasJoined {
		t.Error("expected HasJoined")
	}
	if view.PendingPayoutMicros != 163_333333 {
		t.Errorf("pending = %d, want 163333333", view.PendingPayoutMicros)
	}
	if view.ClaimedMicros != 326_666666 {
		t.Errorf("claimed = %d, want 326666666", view.ClaimedMicros)
	}

	claimable := view.Claimable()
	if len(claimable) != 1 || claimable[0].Ticket.ID != 1 {
		t.Fatalf("claimable = %+v, want only ticket 1", claimable)
	}
}

func TestLoadMarketViewDegradesWhenBookkeepingDown(t *testing.T) {
	ledger := &fakeLedger{market: resolvedMarket(), tickets: map[uint64]domain.StakeTicket{}}
	books := &fakeBooks{
		campaignErr: domain.ErrSourceUnavailable,
		betsErr:     domain.ErrSourceUnavailable,
	}
	f := newFixture(t, ledger, books)

	view, err := f.svc.LoadMarketView(context.Background(), testMarket)
	if err != nil {
		t.Fatalf("LoadMarketView: %v", err)
	}
	if !view.Degraded {
		t.Error("expected degraded view")
	}
	if view.HasJoined {
		t.Error("degraded view must not claim participation")
	}
}

func TestLoadMarketViewProvisionalResolution(t *testing.T) {
	m := resolvedMarket()
	m.Resolved = false
	ledger := &fakeLedger{
		market: m,
		tickets: map[uint64]domain.StakeTicket{
			1: {ID: 1, Market: testMarket, Side: domain.SideYes, StakeMicros: 100_000000},
		},
	}
	books := &fakeBooks{
		campaign: domain.CampaignRecord{Address: testMarket, Resolved: true, OutcomeTrue: true},
		bets:     []domain.BetRecord{{TicketID: 1, CampaignAddress: testMarket, StakeMicros: 100_000000}},
	}
	f := newFixture(t, ledger, books)

	view, err := f.svc.LoadMarketView(context.Background(), testMarket)
	if err != nil {
		t.Fatalf("LoadMarketView: %v", err)
	}
	if view.Resolution.Status != domain.MarketStatusResolved {
		t.Fatalf("status = %s, want resolved", view.Resolution.Status)
	}
	if !view.Resolution.Provisional {
		t.Error("bookkeeping-only resolution must be provisional")
	}
	if view.PendingPayoutMicros != 163_333333 {
		t.Errorf("pending = %d, want 163333333", view.PendingPayoutMicros)
	}
}

func TestLoadMarketViewOutcomeConflict(t *testing.T) {
	ledger := &fakeLedger{market: resolvedMarket(), tickets: map[uint64]domain.StakeTicket{}}
	books := &fakeBooks{
		campaign: domain.CampaignRecord{Address: testMarket, Resolved: true, OutcomeTrue: false},
	}
	f := newFixture(t, ledger, books)

	if _, err := f.svc.LoadMarketView(context.Background(), testMarket); !errors.Is(err, domain.ErrOutcomeConflict) {
		t.Fatalf("err = %v, want ErrOutcomeConflict", err)
	}
	if len(f.audit.events) != 1 || f.audit.events[0] != "outcome_conflict" {
		t.Errorf("audit events = %v", f.audit.events)
	}
}

func TestClaimAllContinuesPastFailures(t *testing.T) {
	ledger := &fakeLedger{
		market: resolvedMarket(),
		tickets: map[uint64]domain.StakeTicket{
			1: {ID: 1, Market: testMarket, Side: domain.SideYes, StakeMicros: 100_000000},
			2: {ID: 2, Market: testMarket, Side: domain.SideYes, StakeMicros: 100_000000},
		},
	}
	books := &fakeBooks{
		campaign: domain.CampaignRecord{Address: testMarket, Resolved: true, OutcomeTrue: true},
		bets: []domain.BetRecord{
			{TicketID: 1, CampaignAddress: testMarket, StakeMicros: 100_000000},
			{TicketID: 2, CampaignAddress: testMarket, StakeMicros: 100_000000},
		},
	}
	f := newFixture(t, ledger, books)

	// Fail the first submission, then let the second proceed.
	ledger.submitErr = fmt.Errorf("reverted: %w", domain.ErrClaimRejected)
	first := f.svc.ClaimTicket(context.Background(), testMarket, 1)
	if !errors.Is(first.Err, domain.ErrClaimRejected) {
		t.Fatalf("first err = %v", first.Err)
	}
	ledger.submitErr = nil

	outcomes, err := f.svc.ClaimAll(context.Background(), testMarket)
	if err != nil {
		t.Fatalf("ClaimAll: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outcomes))
	}
	for _, out := range outcomes {
		if out.Err != nil {
			t.Errorf("ticket %d: %v", out.TicketID, out.Err)
		}
	}
}
