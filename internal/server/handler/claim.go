package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/betclaim/internal/domain"
	"github.com/alanyoungcy/betclaim/internal/service"
)

// ClaimHandler drives claim submission and serves the claim journal.
type ClaimHandler struct {
	claims   *service.ClaimService
	receipts domain.ClaimReceiptStore
	logger   *slog.Logger
}

// NewClaimHandler creates a ClaimHandler.
func NewClaimHandler(claims *service.ClaimService, receipts domain.ClaimReceiptStore, logger *slog.Logger) *ClaimHandler {
	return &ClaimHandler{
		claims:   claims,
		receipts: receipts,
		logger:   logHandler(logger, "claim"),
	}
}

// claimOutcomeModel is the wire shape of one per-ticket claim result.
type claimOutcomeModel struct {
	TicketID       uint64  `json:"ticket_id"`
	Payout         float64 `json:"payout"`
	TxHash         string  `json:"tx_hash,omitempty"`
	AlreadyClaimed bool    `json:"already_claimed,omitempty"`
	Error          string  `json:"error,omitempty"`
}

func toOutcomeModel(out service.ClaimOutcome) claimOutcomeModel {
	m := claimOutcomeModel{
		TicketID:       out.TicketID,
		Payout:         domain.DisplayAmount(out.PayoutMicros),
		TxHash:         out.TxHash,
		AlreadyClaimed: out.AlreadyClaimed,
	}
	if out.Err != nil {
		m.Error = out.Err.Error()
	}
	return m
}

// ClaimTicket submits a claim for one ticket and blocks until it confirms
// or fails.
// POST /api/markets/{address}/claims/{ticket_id}
func (h *ClaimHandler) ClaimTicket(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")
	ticketID, err := strconv.ParseUint(pathParam(r, "ticket_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ticket id")
		return
	}

	out := h.claims.ClaimTicket(r.Context(), address, ticketID)
	if out.Err != nil {
		h.logger.WarnContext(r.Context(), "claim failed",
			slog.String("market", address),
			slog.Uint64("ticket_id", ticketID),
			slog.String("error", out.Err.Error()),
		)
		status := http.StatusInternalServerError
		switch {
		case errors.Is(out.Err, domain.ErrLockHeld):
			status = http.StatusConflict
		case errors.Is(out.Err, domain.ErrClaimRejected):
			status = http.StatusUnprocessableEntity
		case errors.Is(out.Err, domain.ErrInvalidState):
			status = http.StatusConflict
		case errors.Is(out.Err, domain.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(out.Err, domain.ErrSourceUnavailable):
			status = http.StatusBadGateway
		}
		writeJSON(w, status, toOutcomeModel(out))
		return
	}

	writeJSON(w, http.StatusOK, toOutcomeModel(out))
}

// ClaimAll submits claims for every eligible ticket of the market, one
// transaction at a time, and reports the per-ticket outcomes.
// POST /api/markets/{address}/claims
func (h *ClaimHandler) ClaimAll(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "missing market address")
		return
	}

	outcomes, err := h.claims.ClaimAll(r.Context(), address)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "claim-all failed",
			slog.String("market", address),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, domain.ErrSourceUnavailable) {
			writeError(w, http.StatusBadGateway, "truth source unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	models := make([]claimOutcomeModel, 0, len(outcomes))
	failed := 0
	for _, out := range outcomes {
		if out.Err != nil {
			failed++
		}
		models = append(models, toOutcomeModel(out))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"outcomes": models,
		"failed":   failed,
	})
}

// receiptModel is the wire shape of one journaled claim receipt.
type receiptModel struct {
	ID       string  `json:"id"`
	Market   string  `json:"market"`
	TicketID uint64  `json:"ticket_id"`
	Wallet   string  `json:"wallet"`
	Payout   float64 `json:"payout"`
	TxHash   string  `json:"tx_hash"`
	Claimed  string  `json:"claimed_at"`
}

// ListReceipts returns the journaled receipts for one market, newest first.
// GET /api/markets/{address}/receipts
func (h *ClaimHandler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "missing market address")
		return
	}

	receipts, err := h.receipts.ListByMarket(r.Context(), address, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list receipts failed",
			slog.String("market", address),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	models := make([]receiptModel, 0, len(receipts))
	for _, rec := range receipts {
		models = append(models, receiptModel{
			ID:       rec.ID,
			Market:   rec.MarketAddress,
			TicketID: rec.TicketID,
			Wallet:   rec.Wallet,
			Payout:   domain.DisplayAmount(rec.PayoutMicros),
			TxHash:   rec.TxHash,
			Claimed:  rec.ClaimedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"receipts": models})
}
