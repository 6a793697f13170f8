package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/betclaim/internal/domain"
	"github.com/alanyoungcy/betclaim/internal/server"
	"github.com/alanyoungcy/betclaim/internal/server/handler"
	"github.com/alanyoungcy/betclaim/internal/server/ws"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// ServerMode runs the HTTP + WebSocket API until the context is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	if !a.cfg.Server.Enabled {
		return fmt.Errorf("app: server mode requires server.enabled")
	}

	hub := ws.NewHub(deps.Bus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.logger),
		Markets: handler.NewMarketHandler(deps.Claims, a.logger),
		Claims:  handler.NewClaimHandler(deps.Claims, deps.Receipts, a.logger),
		Audit:   handler.NewAuditHandler(deps.Audit, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, a.logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := hub.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("app: ws hub: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// ReconcileMode produces a one-shot entitlement report for each configured
// market. It is read-only: no claim transactions, no journal writes.
func (a *App) ReconcileMode(ctx context.Context, deps *Dependencies) error {
	var failed int
	for _, market := range a.cfg.Claim.Markets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.reconcileMarket(ctx, deps, market); err != nil {
			failed++
			a.logger.ErrorContext(ctx, "reconcile failed",
				slog.String("market", market),
				slog.String("error", err.Error()),
			)
		}
	}
	if failed > 0 {
		return fmt.Errorf("app: reconcile: %d of %d markets failed", failed, len(a.cfg.Claim.Markets))
	}
	return nil
}

func (a *App) reconcileMarket(ctx context.Context, deps *Dependencies, market string) error {
	view, err := deps.Claims.LoadMarketView(ctx, market)
	if err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "market reconciled",
		slog.String("market", view.Market.Address),
		slog.String("status", string(view.Resolution.Status)),
		slog.String("source", string(view.Resolution.Source)),
		slog.Bool("provisional", view.Resolution.Provisional),
		slog.Bool("has_joined", view.HasJoined),
		slog.Bool("degraded", view.Degraded),
		slog.Int("tickets", len(view.Tickets)),
		slog.Float64("pending_payout", domain.DisplayAmount(view.PendingPayoutMicros)),
		slog.Float64("claimed_amount", domain.DisplayAmount(view.ClaimedMicros)),
	)
	for _, tv := range view.Tickets {
		a.logger.InfoContext(ctx, "ticket entitlement",
			slog.String("market", view.Market.Address),
			slog.Uint64("ticket_id", tv.Ticket.ID),
			slog.String("side", string(tv.Ticket.Side)),
			slog.String("state", string(tv.State)),
			slog.Bool("is_winner", tv.Entitlement.IsWinner),
			slog.Float64("payout", domain.DisplayAmount(tv.Entitlement.PayoutMicros)),
			slog.Bool("already_claimed_elsewhere", tv.Entitlement.AlreadyClaimedElsewhere),
			slog.String("agreement", string(tv.Agreement)),
		)
	}

	if deps.Reports != nil && view.Resolution.Status == domain.MarketStatusResolved {
		key, err := deps.Reports.Archive(ctx, market)
		if err != nil {
			return err
		}
		a.logger.InfoContext(ctx, "settlement report written",
			slog.String("market", view.Market.Address),
			slog.String("key", key),
		)
	}
	return nil
}

// ClaimMode runs a one-shot claim-all over each configured market.
func (a *App) ClaimMode(ctx context.Context, deps *Dependencies) error {
	if deps.Wallet == "" {
		return fmt.Errorf("app: claim mode requires a wallet key")
	}

	var failed int
	for _, market := range a.cfg.Claim.Markets {
		if err := ctx.Err(); err != nil {
			return err
		}

		outcomes, err := deps.Claims.ClaimAll(ctx, market)
		if err != nil {
			failed++
			a.logger.ErrorContext(ctx, "claim-all failed",
				slog.String("market", market),
				slog.String("error", err.Error()),
			)
			continue
		}

		for _, out := range outcomes {
			if out.Err != nil {
				failed++
				a.logger.WarnContext(ctx, "ticket claim failed",
					slog.String("market", market),
					slog.Uint64("ticket_id", out.TicketID),
					slog.String("error", out.Err.Error()),
				)
				continue
			}
			if out.AlreadyClaimed {
				a.logger.InfoContext(ctx, "ticket already claimed",
					slog.String("market", market),
					slog.Uint64("ticket_id", out.TicketID),
				)
				continue
			}
			a.logger.InfoContext(ctx, "ticket claimed",
				slog.String("market", market),
				slog.Uint64("ticket_id", out.TicketID),
				slog.Float64("payout", domain.DisplayAmount(out.PayoutMicros)),
				slog.String("tx", out.TxHash),
			)
		}
	}

	if failed > 0 {
		return fmt.Errorf("app: claim: %d failures", failed)
	}
	return nil
}
