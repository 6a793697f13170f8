package bookkeeping

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alanyoungcy/betclaim/internal/domain"
)

func TestUserBetsFiltersByCampaign(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bet/me/user-bets" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"bets": []domain.BetRecord{
				{TicketID: 1, CampaignAddress: "0xAAAA", StakeMicros: 100, Claimed: false},
				{TicketID: 2, CampaignAddress: "0xbbbb", StakeMicros: 200, Claimed: true, PayoutMicros: 400},
				{TicketID: 3, CampaignAddress: "0xaaaa", StakeMicros: 300},
			},
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, AuthToken: "tok"})

	bets, err := c.UserBets(context.Background(), "0xAaAa")
	if err != nil {
		t.Fatalf("UserBets: %v", err)
	}
	if len(bets) != 2 || bets[0].TicketID != 1 || bets[1].TicketID != 3 {
		t.Fatalf("bets = %+v, want tickets 1 and 3", bets)
	}
}

func TestUserBetsServerErrorIsSourceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	if _, err := c.UserBets(context.Background(), "0xaaaa"); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestNotifyClaim(t *testing.T) {
	var got claimNotification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/bet/claims" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	err := c.NotifyClaim(context.Background(), domain.ClaimReceipt{
		TicketID:      7,
		MarketAddress: "0xaaaa",
		PayoutMicros:  163_333333,
		TxHash:        "0xdead",
	})
	if err != nil {
		t.Fatalf("NotifyClaim: %v", err)
	}
	if got.TicketID != 7 || got.PayoutMicros != 163_333333 || got.TxHash != "0xdead" {
		t.Fatalf("notification = %+v", got)
	}
}

func TestCampaignResolutionSignal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bet/campaigns/0xaaaa" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"campaign": domain.CampaignRecord{Address: "0xaaaa", Resolved: true, OutcomeTrue: true},
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	rec, err := c.Campaign(context.Background(), "0xAAAA")
	if err != nil {
		t.Fatalf("Campaign: %v", err)
	}
	if !rec.Resolved || !rec.OutcomeTrue {
		t.Fatalf("record = %+v, want resolved true outcome", rec)
	}
}

func TestUserBetsConnectionRefused(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1"})
	if _, err := c.UserBets(context.Background(), "0xaaaa"); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
}
