package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/betclaim/internal/domain"
	"github.com/alanyoungcy/betclaim/internal/service"
)

// MarketHandler serves the reconciled market view: resolution status,
// per-ticket entitlements, and the aggregate payout totals.
type MarketHandler struct {
	claims *service.ClaimService
	logger *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(claims *service.ClaimService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{claims: claims, logger: logHandler(logger, "market")}
}

// marketStatusResponse is the wire shape for GET /api/markets/{address}.
type marketStatusResponse struct {
	Address     string  `json:"address"`
	Status      string  `json:"status"`
	OutcomeTrue bool    `json:"outcome_true"`
	Provisional bool    `json:"provisional"`
	Source      string  `json:"source"`
	TotalTrue   float64 `json:"total_true"`
	TotalFalse  float64 `json:"total_false"`
	InitialPot  float64 `json:"initial_pot"`
	FeeBps      int64   `json:"fee_bps"`
	EndTime     string  `json:"end_time"`
	Degraded    bool    `json:"degraded"`
}

// GetMarket returns the reconciled resolution status of one market.
// GET /api/markets/{address}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "missing market address")
		return
	}

	view, err := h.claims.LoadMarketView(r.Context(), address)
	if err != nil {
		h.writeViewError(w, r, address, err)
		return
	}

	m := view.Market
	writeJSON(w, http.StatusOK, marketStatusResponse{
		Address:     m.Address,
		Status:      string(view.Resolution.Status),
		OutcomeTrue: view.Resolution.OutcomeTrue,
		Provisional: view.Resolution.Provisional,
		Source:      string(view.Resolution.Source),
		TotalTrue:   domain.DisplayAmount(m.TotalTrueMicros),
		TotalFalse:  domain.DisplayAmount(m.TotalFalseMicros),
		InitialPot:  domain.DisplayAmount(m.InitialPotMicros),
		FeeBps:      m.FeeBps,
		EndTime:     m.EndTime.UTC().Format("2006-01-02T15:04:05Z"),
		Degraded:    view.Degraded,
	})
}

// entitlementsResponse is the wire shape for GET /api/markets/{address}/entitlements.
type entitlementsResponse struct {
	Address       string            `json:"address"`
	Status        string            `json:"status"`
	HasJoined     bool              `json:"has_joined"`
	PendingPayout float64           `json:"pending_payout"`
	ClaimedAmount float64           `json:"claimed_amount"`
	Degraded      bool              `json:"degraded"`
	Tickets       []ticketViewModel `json:"tickets"`
}

type ticketViewModel struct {
	TicketID                uint64  `json:"ticket_id"`
	Side                    string  `json:"side"`
	Stake                   float64 `json:"stake"`
	State                   string  `json:"state"`
	IsWinner                bool    `json:"is_winner"`
	Payout                  float64 `json:"payout"`
	AlreadyClaimedElsewhere bool    `json:"already_claimed_elsewhere"`
	Agreement               string  `json:"agreement"`
}

// ListEntitlements returns the user's tickets with their entitlements and
// the aggregate pending/claimed totals.
// GET /api/markets/{address}/entitlements
func (h *MarketHandler) ListEntitlements(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "missing market address")
		return
	}

	view, err := h.claims.LoadMarketView(r.Context(), address)
	if err != nil {
		h.writeViewError(w, r, address, err)
		return
	}

	resp := entitlementsResponse{
		Address:       view.Market.Address,
		Status:        string(view.Resolution.Status),
		HasJoined:     view.HasJoined,
		PendingPayout: domain.DisplayAmount(view.PendingPayoutMicros),
		ClaimedAmount: domain.DisplayAmount(view.ClaimedMicros),
		Degraded:      view.Degraded,
		Tickets:       make([]ticketViewModel, 0, len(view.Tickets)),
	}
	for _, tv := range view.Tickets {
		resp.Tickets = append(resp.Tickets, ticketViewModel{
			TicketID:                tv.Ticket.ID,
			Side:                    string(tv.Ticket.Side),
			Stake:                   domain.DisplayAmount(tv.Ticket.StakeMicros),
			State:                   string(tv.State),
			IsWinner:                tv.Entitlement.IsWinner,
			Payout:                  domain.DisplayAmount(tv.Entitlement.PayoutMicros),
			AlreadyClaimedElsewhere: tv.Entitlement.AlreadyClaimedElsewhere,
			Agreement:               string(tv.Agreement),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeViewError maps service errors to HTTP statuses.
func (h *MarketHandler) writeViewError(w http.ResponseWriter, r *http.Request, address string, err error) {
	h.logger.ErrorContext(r.Context(), "market view failed",
		slog.String("market", address),
		slog.String("error", err.Error()),
	)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "market not found")
	case errors.Is(err, domain.ErrSourceUnavailable):
		writeError(w, http.StatusBadGateway, "truth source unavailable")
	case errors.Is(err, domain.ErrOutcomeConflict):
		writeError(w, http.StatusConflict, "truth sources disagree on the outcome")
	case errors.Is(err, domain.ErrDivisionByZero):
		writeError(w, http.StatusUnprocessableEntity, "resolved market has an empty winning side")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
