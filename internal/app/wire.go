package app

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	s3blob "github.com/alanyoungcy/betclaim/internal/blob/s3"
	"github.com/alanyoungcy/betclaim/internal/bookkeeping"
	"github.com/alanyoungcy/betclaim/internal/cache/redis"
	"github.com/alanyoungcy/betclaim/internal/config"
	"github.com/alanyoungcy/betclaim/internal/crypto"
	"github.com/alanyoungcy/betclaim/internal/domain"
	"github.com/alanyoungcy/betclaim/internal/ledger/evm"
	"github.com/alanyoungcy/betclaim/internal/notify"
	"github.com/alanyoungcy/betclaim/internal/service"
	"github.com/alanyoungcy/betclaim/internal/store/postgres"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Receipts domain.ClaimReceiptStore
	Audit    domain.AuditStore

	Cache domain.SnapshotCache
	Locks domain.LockManager
	Bus   domain.SignalBus

	Notifier *notify.Notifier

	Claims  *service.ClaimService
	Reports *service.ReportService // nil when S3 is disabled

	// Wallet is the claim wallet address; empty in read-only modes.
	Wallet string
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL claim journal ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Receipts = postgres.NewClaimReceiptStore(pool)
	deps.Audit = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Cache = redis.NewSnapshotCache(redisClient, cfg.Claim.SnapshotTTL.Duration)
	deps.Locks = redis.NewLockManager(redisClient)
	deps.Bus = redis.NewSignalBus(redisClient)

	// --- Settlement ledger ---
	evmClient, err := evm.New(ctx, evm.ClientConfig{
		RPCURL:  cfg.Chain.RPCURL,
		ChainID: cfg.Chain.ChainID,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: ledger: %w", err)
	}
	closers = append(closers, evmClient.Close)

	// Claim wallet key; reconcile mode runs read-only without one.
	key, err := claimKey(cfg)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: wallet: %w", err)
	}
	if key != nil {
		deps.Wallet = strings.ToLower(ethcrypto.PubkeyToAddress(key.PublicKey).Hex())
	}

	campaign := evm.NewCampaign(evmClient, key, cfg.Chain.ConfirmTimeout.Duration, logger)

	// --- Bookkeeping registry ---
	books := bookkeeping.New(bookkeeping.Config{
		BaseURL:   cfg.Bookkeeping.BaseURL,
		AuthToken: cfg.Bookkeeping.AuthToken,
		Timeout:   cfg.Bookkeeping.Timeout.Duration,
	})

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Services ---
	var submitter domain.ClaimSubmitter
	if key != nil {
		submitter = campaign
	}
	deps.Claims = service.NewClaimService(service.ClaimServiceDeps{
		Ledger:    campaign,
		Submitter: submitter,
		Books:     books,
		Receipts:  deps.Receipts,
		Audit:     deps.Audit,
		Cache:     deps.Cache,
		Locks:     deps.Locks,
		Bus:       deps.Bus,
		Notifier:  deps.Notifier,
		Wallet:    deps.Wallet,
		LockTTL:   cfg.Claim.LockTTL.Duration,
		Logger:    logger,
	})

	// --- S3 settlement reports (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Reports = service.NewReportService(
			deps.Claims,
			deps.Receipts,
			s3blob.NewWriter(s3Client),
			deps.Wallet,
			logger,
		)
	}

	return deps, cleanup, nil
}

// claimKey resolves the wallet's ECDSA key from config. It returns nil (no
// error) when no key source is configured at all.
func claimKey(cfg *config.Config) (*ecdsa.PrivateKey, error) {
	if cfg.Wallet.PrivateKey == "" && cfg.Wallet.EncryptedKeyPath == "" {
		return nil, nil
	}
	return crypto.ECDSAKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
}
