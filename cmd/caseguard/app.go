package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/focusforward/caseguard/pkg/access"
	"github.com/focusforward/caseguard/pkg/advisory"
	"github.com/focusforward/caseguard/pkg/api"
	"github.com/focusforward/caseguard/pkg/auth"
	"github.com/focusforward/caseguard/pkg/config"
	"github.com/focusforward/caseguard/pkg/llm"
	"github.com/focusforward/caseguard/pkg/narrative"
	"github.com/focusforward/caseguard/pkg/observability"
	"github.com/focusforward/caseguard/pkg/review"
	"github.com/focusforward/caseguard/pkg/rules"
	"github.com/focusforward/caseguard/pkg/source"
	"github.com/focusforward/caseguard/pkg/store"
	"github.com/focusforward/caseguard/pkg/tally"
)

// app holds the subsystems shared by commands. Connections are opened on
// first use so that offline commands never touch the network.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	sources *source.Router
	obs     *observability.Provider

	db      *sql.DB
	dialect store.Dialect
	redis   redis.UniversalClient
}

func loadApp(stderr io.Writer, jsonLogs bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler = slog.NewTextHandler(stderr, opts)
	if jsonLogs {
		h = slog.NewJSONHandler(stderr, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)

	return &app{
		cfg:    cfg,
		logger: logger,
		sources: source.NewDefaultRouter(source.Options{
			S3:                    source.S3Config{Region: cfg.S3Region, Endpoint: cfg.S3Endpoint},
			AzureConnectionString: cfg.AzureConnectionString,
		}),
	}, nil
}

func (a *app) Close(ctx context.Context) {
	if a.obs != nil {
		if err := a.obs.Shutdown(ctx); err != nil {
			a.logger.WarnContext(ctx, "telemetry shutdown failed", "error", err)
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func (a *app) database(ctx context.Context) (*sql.DB, store.Dialect, error) {
	if a.db != nil {
		return a.db, a.dialect, nil
	}
	if a.cfg.DatabaseURL == "" {
		return nil, "", errors.New("DATABASE_URL is not set")
	}
	db, d, err := store.Open(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, "", err
	}
	a.logger.InfoContext(ctx, "database connected", "dialect", d)
	a.db, a.dialect = db, d
	return db, d, nil
}

func (a *app) redisClient(ctx context.Context) (redis.UniversalClient, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{a.cfg.RedisAddr}})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", a.cfg.RedisAddr, err)
	}
	a.redis = client
	return client, nil
}

func (a *app) telemetry(ctx context.Context) (*observability.Provider, error) {
	if a.obs != nil {
		return a.obs, nil
	}
	oc := observability.DefaultConfig()
	oc.ServiceVersion = version
	oc.OTLPEndpoint = a.cfg.OTLPEndpoint
	oc.Enabled = a.cfg.OTELEnabled
	oc.Insecure = true
	p, err := observability.New(ctx, oc)
	if err != nil {
		return nil, err
	}
	a.obs = p
	return p, nil
}

func (a *app) accessChecker(ctx context.Context) (access.Checker, error) {
	if a.cfg.AccessRegistry == config.AccessRegistrySQL {
		db, d, err := a.database(ctx)
		if err != nil {
			return nil, fmt.Errorf("access registry: %w", err)
		}
		return access.NewSQLRegistry(db, d, a.logger), nil
	}
	return access.NewCachedChecker(a.sources, a.cfg.AccessRegistry,
		access.WithTTL(a.cfg.AccessTTL), access.WithLogger(a.logger)), nil
}

// tallies prefers Redis, then the database, then process memory.
func (a *app) tallies(ctx context.Context) (tally.Store, error) {
	switch {
	case a.cfg.RedisAddr != "":
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return tally.NewRedisStore(client, tally.DefaultSessionTTL), nil
	case a.cfg.DatabaseURL != "":
		db, d, err := a.database(ctx)
		if err != nil {
			return nil, err
		}
		return tally.NewSQLStore(db, d), nil
	default:
		return tally.NewMemoryStore(tally.DefaultSessionTTL), nil
	}
}

func (a *app) limiter(ctx context.Context) (api.Limiter, error) {
	if a.cfg.RedisAddr != "" {
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return api.NewRedisLimiter(client, a.cfg.RateRPS, a.cfg.RateBurst), nil
	}
	return api.NewLocalLimiter(a.cfg.RateRPS, a.cfg.RateBurst), nil
}

func (a *app) advisories(ctx context.Context) (*advisory.Evaluator, error) {
	var pack *advisory.Pack
	if a.cfg.AdvisoryPolicy != "" {
		p, err := advisory.Load(ctx, a.sources, a.cfg.AdvisoryPolicy)
		if err != nil {
			return nil, err
		}
		pack = p
	}
	return advisory.NewEvaluator(pack, rules.Canonical())
}

func (a *app) producer() (*narrative.LLMProducer, error) {
	if a.cfg.OpenAIAPIKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}
	client := llm.NewOpenAIClient(a.cfg.OpenAIAPIKey, a.cfg.OpenAIModel,
		llm.WithBaseURL(a.cfg.OpenAIBaseURL),
		llm.WithTimeout(a.cfg.GenerationTimeout+5*time.Second),
	)
	return narrative.NewLLMProducer(client, narrative.CanonicalPolicy(), a.logger)
}

func (a *app) reviewConfig() review.Config {
	rc := review.DefaultConfig()
	rc.MinLength = a.cfg.NoteMin
	rc.MaxLength = a.cfg.NoteMax
	rc.GenerationTimeout = a.cfg.GenerationTimeout
	return rc
}

// service builds the review pipeline. Without generation the producer
// always fails, which only rule-layer callers can tolerate.
func (a *app) service(ctx context.Context, withGeneration bool) (*review.Service, error) {
	evaluator, err := a.advisories(ctx)
	if err != nil {
		return nil, err
	}
	obs, err := a.telemetry(ctx)
	if err != nil {
		return nil, err
	}
	opts := []review.Option{
		review.WithConfig(a.reviewConfig()),
		review.WithAdvisories(evaluator),
		review.WithObservability(obs),
		review.WithLogger(a.logger),
	}

	var producer narrative.Producer = narrative.ProducerFunc(
		func(context.Context, string, narrative.Context) (narrative.Output, error) {
			return narrative.Output{}, errors.New("generation is not configured")
		})
	if withGeneration {
		p, err := a.producer()
		if err != nil {
			return nil, err
		}
		producer = p
		checker, err := a.accessChecker(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, review.WithAccess(checker))
	}
	return review.New(producer, opts...)
}

func (a *app) keySet() (*auth.HMACKeySet, error) {
	if a.cfg.JWTSecret == "" {
		return nil, errors.New("CASEGUARD_JWT_SECRET is not set")
	}
	return auth.NewHMACKeySet([]byte(a.cfg.JWTSecret))
}

// validator accepts caseguard-minted tokens and, when an issuer is
// configured, OIDC ID tokens.
func (a *app) validator(ctx context.Context) (auth.TokenValidator, error) {
	var chain auth.Chain
	if a.cfg.JWTSecret != "" {
		ks, err := a.keySet()
		if err != nil {
			return nil, err
		}
		chain = append(chain, auth.NewJWTValidator(ks))
	}
	if a.cfg.OIDCIssuer != "" {
		v, err := auth.NewOIDCValidator(ctx, a.cfg.OIDCIssuer, a.cfg.OIDCClientID)
		if err != nil {
			return nil, err
		}
		chain = append(chain, v)
	}
	if len(chain) == 0 {
		return nil, errors.New("no token validator configured: set CASEGUARD_JWT_SECRET or CASEGUARD_OIDC_ISSUER")
	}
	return chain, nil
}
