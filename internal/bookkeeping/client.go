// Package bookkeeping is the REST client for the off-chain bet registry.
// The registry caches user bets and claim payouts for convenience lookups;
// every field it serves is advisory, and the ledger wins any disagreement.
// It is also the write target for claim notifications: after a confirmed
// claim the engine posts the receipt so the registry's payout cache catches
// up with the chain.
package bookkeeping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/betclaim/internal/domain"
)

// Config holds the registry endpoint parameters.
type Config struct {
	// BaseURL is the registry API root, e.g. "https://api.betmarkets.example".
	BaseURL string
	// AuthToken authenticates the user whose bets are listed.
	AuthToken string
	// Timeout bounds each request; zero means 15s.
	Timeout time.Duration
}

// Client talks to the bookkeeping service. Transport failures and 5xx
// responses wrap domain.ErrSourceUnavailable so callers can degrade to an
// unknown view instead of inventing entitlements.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// New creates a bookkeeping Client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		authToken: cfg.AuthToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// campaignResponse mirrors the registry's /bet/campaigns/{address} payload.
type campaignResponse struct {
	Campaign domain.CampaignRecord `json:"campaign"`
}

// Campaign returns the registry's cached view of one campaign, including its
// advisory resolution signal.
func (c *Client) Campaign(ctx context.Context, campaignAddress string) (domain.CampaignRecord, error) {
	path := "/bet/campaigns/" + strings.ToLower(campaignAddress)
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.CampaignRecord{}, fmt.Errorf("bookkeeping: campaign %s: %w", campaignAddress, err)
	}

	var resp campaignResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.CampaignRecord{}, fmt.Errorf("bookkeeping: decode campaign %s: %w", campaignAddress, err)
	}
	return resp.Campaign, nil
}

// userBetsResponse mirrors the registry's /bet/me/user-bets payload.
type userBetsResponse struct {
	Bets []domain.BetRecord `json:"bets"`
}

// UserBets returns the authenticated user's bet records for one campaign.
// The registry endpoint is user-scoped, so filtering by campaign happens
// client-side, matching addresses case-insensitively.
func (c *Client) UserBets(ctx context.Context, campaignAddress string) ([]domain.BetRecord, error) {
	body, err := c.do(ctx, http.MethodGet, "/bet/me/user-bets", nil)
	if err != nil {
		return nil, fmt.Errorf("bookkeeping: user bets: %w", err)
	}

	var resp userBetsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("bookkeeping: decode user bets: %w", err)
	}

	var out []domain.BetRecord
	for _, b := range resp.Bets {
		if strings.EqualFold(b.CampaignAddress, campaignAddress) {
			out = append(out, b)
		}
	}
	return out, nil
}

// claimNotification is the POST body for recording a confirmed claim.
type claimNotification struct {
	TicketID        uint64 `json:"ticket_id"`
	CampaignAddress string `json:"campaign_address"`
	PayoutMicros    int64  `json:"payout"`
	TxHash          string `json:"tx_hash"`
}

// NotifyClaim records a confirmed claim with the registry. Failure here is
// non-fatal for the claim itself — the ledger already holds the truth — but
// callers should log it, since a missed notification is exactly what later
// shows up as an AlreadyClaimedElsewhere staleness flag.
func (c *Client) NotifyClaim(ctx context.Context, r domain.ClaimReceipt) error {
	payload, err := json.Marshal(claimNotification{
		TicketID:        r.TicketID,
		CampaignAddress: r.MarketAddress,
		PayoutMicros:    r.PayoutMicros,
		TxHash:          r.TxHash,
	})
	if err != nil {
		return fmt.Errorf("bookkeeping: encode claim notification: %w", err)
	}

	if _, err := c.do(ctx, http.MethodPost, "/bet/claims", payload); err != nil {
		return fmt.Errorf("bookkeeping: notify claim %d: %w", r.TicketID, err)
	}
	return nil
}

// do sends one request to the registry and returns the response body.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %v: %w", err, domain.ErrSourceUnavailable)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %v: %w", err, domain.ErrSourceUnavailable)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("status %d: %s: %w", resp.StatusCode, truncate(data), domain.ErrSourceUnavailable)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("status 404: %w", domain.ErrNotFound)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(data))
	}

	return data, nil
}

func truncate(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// Compile-time interface check.
var _ domain.BookkeepingSource = (*Client)(nil)
