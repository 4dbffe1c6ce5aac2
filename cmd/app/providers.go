package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/evigrid/assess-console/internal/domain/assessment"
	"github.com/evigrid/assess-console/internal/domain/auth"
	"github.com/evigrid/assess-console/internal/domain/orders"
	"github.com/evigrid/assess-console/internal/infra/config"
	"github.com/evigrid/assess-console/internal/infra/curvecheck"
	"github.com/evigrid/assess-console/internal/infra/draftrepo"
	"github.com/evigrid/assess-console/internal/infra/filestore"
	"github.com/evigrid/assess-console/internal/infra/orderrepo"
	"github.com/evigrid/assess-console/internal/infra/submit"
	"github.com/evigrid/assess-console/internal/infra/tokencache"
	"github.com/evigrid/assess-console/internal/infra/userrepo"
	"github.com/evigrid/assess-console/pkg/util"
)

func provideAuthConfig(cfg *config.Config) auth.Config {
	return auth.Config{
		Secret:          cfg.Auth.Secret,
		TokenTTL:        cfg.Auth.TokenTTL,
		RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
		Google: auth.GoogleConfig{
			ClientID:             cfg.Auth.Google.ClientID,
			ClientSecret:         cfg.Auth.Google.ClientSecret,
			RedirectURL:          cfg.Auth.Google.RedirectURL,
			TokenEncryptionKey:   cfg.Auth.Google.TokenEncryptionKey,
			PostLoginRedirectURL: cfg.Auth.Google.PostLoginRedirectURL,
		},
	}
}

func provideAssessmentConfig(cfg *config.Config) assessment.Config {
	return assessment.Config{
		MaxFileBytes: cfg.Forms.MaxFileBytes,
		TokenTTL:     cfg.Forms.TokenTTL,
	}
}

// providePostgresPool returns a shared pool, or nil so repositories fall back
// to their in-memory variants.
func providePostgresPool(cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	dsn := strings.TrimSpace(cfg.Postgres.DSN)
	if dsn == "" {
		logger.Info("postgres dsn not set, using memory repositories")
		return nil
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory repositories", "error", err)
		return nil
	}
	if cfg.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Postgres.MaxConns
	}
	if cfg.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory repositories", "error", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory repositories", "error", err)
		pool.Close()
		return nil
	}
	logger.Info("postgres pool enabled")
	return pool
}

func provideUserRepository(pool *pgxpool.Pool, logger *slog.Logger) auth.Repository {
	if pool == nil {
		return userrepo.NewMemoryRepository()
	}
	logger.Info("postgres user repository enabled")
	return userrepo.NewPostgresRepository(pool)
}

func provideOrderRepository(pool *pgxpool.Pool, logger *slog.Logger) orders.Repository {
	if pool == nil {
		return orderrepo.NewMemoryRepository()
	}
	logger.Info("postgres order repository enabled")
	return orderrepo.NewPostgresRepository(pool)
}

// provideDraftRepository keeps drafts in memory. A draft is session state and
// is allowed to die with the process.
func provideDraftRepository() assessment.DraftRepository {
	return draftrepo.NewMemoryRepository()
}

func provideFileStore(cfg *config.Config, logger *slog.Logger) assessment.FileStore {
	if strings.TrimSpace(cfg.Storage.Endpoint) == "" {
		logger.Info("storage endpoint not set, using memory file store")
		return filestore.NewMemoryStore()
	}
	store, err := filestore.NewS3Store(cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.Bucket, cfg.Storage.Region, logger)
	if err != nil {
		logger.Error("failed to initialize s3 store, using memory file store", "error", err)
		return filestore.NewMemoryStore()
	}
	logger.Info("s3 file store enabled", "bucket", cfg.Storage.Bucket)
	return store
}

func provideTokenCache(cfg *config.Config, logger *slog.Logger) assessment.TokenCache {
	if !cfg.Valkey.Enabled {
		return tokencache.NewMemoryCache()
	}
	opt, err := buildValkeyOptions(cfg)
	if err != nil {
		logger.Error("invalid valkey configuration, falling back to memory token cache", "error", err)
		return tokencache.NewMemoryCache()
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, falling back to memory token cache", "error", err)
		return tokencache.NewMemoryCache()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, falling back to memory token cache", "error", err)
		return tokencache.NewMemoryCache()
	}
	logger.Info("valkey token cache enabled", "addr", cfg.Valkey.Addr)
	return tokencache.NewValkeyCache(client, "vtok")
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(cfg.Valkey.Addr, "://") {
		opt, err = valkey.ParseURL(cfg.Valkey.Addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{cfg.Valkey.Addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}

func provideFileValidator(cfg *config.Config) assessment.FileValidator {
	return curvecheck.NewClient(cfg.Services.FileValidationURL, cfg.Services.RequestTimeout)
}

func provideSubmissionClient(cfg *config.Config) assessment.SubmissionClient {
	return submit.NewClient(cfg.Services.SubmissionURLs, cfg.Services.RequestTimeout)
}

func provideOrderRecorder(registry *orders.Registry) assessment.OrderRecorder {
	return orders.NewRecorder(registry)
}

func provideRuleEngine() *assessment.RuleEngine {
	return assessment.NewRuleEngine(util.NowUTC)
}
