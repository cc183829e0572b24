package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethanbaker/riskwatch/internal/lifecycle"
	"github.com/ethanbaker/riskwatch/internal/metrics"
	"github.com/ethanbaker/riskwatch/internal/miner"
	"github.com/ethanbaker/riskwatch/internal/pipeline"
	"github.com/ethanbaker/riskwatch/internal/planner"
	"github.com/ethanbaker/riskwatch/internal/sources"
	"github.com/ethanbaker/riskwatch/internal/sources/gemini"
	"github.com/ethanbaker/riskwatch/internal/sources/openaicompat"
	"github.com/ethanbaker/riskwatch/internal/sources/seedfile"
	"github.com/ethanbaker/riskwatch/internal/stores/jsonfile"
	"github.com/ethanbaker/riskwatch/internal/stores/sqlstore"
	"github.com/ethanbaker/riskwatch/internal/verify"
	"github.com/ethanbaker/riskwatch/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	defaultStorePath  = "data/cultural_risk.json"
	defaultOpenAIURL  = "https://api.openai.com/v1/"
	defaultOpenAIName = "gpt-4o-mini"
)

// closer releases a wired resource
type closer func() error

func closeAll(closers []closer) error {
	var err error
	for i := len(closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, closers[i]())
	}
	return err
}

// buildStore opens the store selected by STORE_DRIVER
func buildStore(cfg *utils.Config, logger *zap.Logger) (pipeline.Store, closer, error) {
	switch driver := strings.ToLower(cfg.GetWithDefault("STORE_DRIVER", "json")); driver {
	case "json":
		return jsonfile.New(cfg.GetWithDefault("STORE_PATH", defaultStorePath), logger), nil, nil
	case "mysql":
		dsn := cfg.Get("DATABASE_URL")
		if dsn == "" {
			return nil, nil, errors.New("STORE_DRIVER=mysql requires DATABASE_URL")
		}
		store, err := sqlstore.New(dsn, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", driver)
	}
}

// buildSource creates the candidate source selected by SOURCE
func buildSource(ctx context.Context, cfg *utils.Config) (miner.Source, error) {
	prompt := utils.LoadPromptWithFallback(cfg.Get("PROMPT_FILE"), sources.DefaultSystemPrompt)
	timeout := cfg.GetDurationWithDefault("SOURCE_TIMEOUT", openaicompat.DefaultTimeout)

	switch name := strings.ToLower(cfg.GetWithDefault("SOURCE", "groq")); name {
	case "groq":
		return openaicompat.New(openaicompat.Config{
			Name:         "groq",
			APIKey:       cfg.Get("GROQ_API_KEY"),
			BaseURL:      cfg.GetWithDefault("OPENAI_BASE_URL", openaicompat.DefaultBaseURL),
			Model:        cfg.GetWithDefault("OPENAI_MODEL", openaicompat.DefaultModel),
			SystemPrompt: prompt,
			Timeout:      timeout,
		})
	case "openai":
		return openaicompat.New(openaicompat.Config{
			Name:         "openai",
			APIKey:       cfg.Get("OPENAI_API_KEY"),
			BaseURL:      cfg.GetWithDefault("OPENAI_BASE_URL", defaultOpenAIURL),
			Model:        cfg.GetWithDefault("OPENAI_MODEL", defaultOpenAIName),
			SystemPrompt: prompt,
			Timeout:      timeout,
		})
	case "gemini":
		return gemini.New(ctx, gemini.Config{
			APIKey:       cfg.Get("GEMINI_API_KEY"),
			Model:        cfg.GetWithDefault("GEMINI_MODEL", gemini.DefaultModel),
			SystemPrompt: prompt,
			Timeout:      timeout,
		})
	case "seed":
		path := cfg.Get("SEED_FILE")
		if path == "" {
			return nil, errors.New("SOURCE=seed requires SEED_FILE")
		}
		return seedfile.Load(path)
	default:
		return nil, fmt.Errorf("unknown SOURCE %q", name)
	}
}

// buildVerifier creates the lexicon verifier with its lookup cache
func buildVerifier(ctx context.Context, cfg *utils.Config, logger *zap.Logger) (*verify.Verifier, closer, error) {
	if !cfg.GetBoolWithDefault("VERIFIER_ENABLED", true) {
		return verify.Disabled(), nil, nil
	}

	policy, err := verify.ParsePolicy(cfg.GetWithDefault("VERIFIER_POLICY", "accept"))
	if err != nil {
		return nil, nil, err
	}

	var lookup verify.Lookuper = verify.NewUrbanDictionary(
		cfg.GetWithDefault("VERIFIER_URL", verify.DefaultURL),
		cfg.GetDurationWithDefault("VERIFIER_TIMEOUT", verify.DefaultTimeout),
	)

	var release closer
	ttl := cfg.GetDurationWithDefault("VERIFIER_CACHE_TTL", 24*time.Hour)
	switch kind := strings.ToLower(cfg.GetWithDefault("VERIFIER_CACHE", "memory")); kind {
	case "none":
	case "memory":
		lookup = verify.NewCachedLookuper(lookup, verify.NewMemoryCache(0, ttl), logger)
	case "redis":
		cache, err := verify.NewRedisCache(ctx, cfg.Get("REDIS_URL"), ttl)
		if err != nil {
			return nil, nil, err
		}
		lookup = verify.NewCachedLookuper(lookup, cache, logger)
		release = cache.Close
	default:
		return nil, nil, fmt.Errorf("unknown VERIFIER_CACHE %q", kind)
	}

	return verify.New(lookup, policy, logger), release, nil
}

// loadPlan reads PLAN_FILE or falls back to the built-in plan
func loadPlan(cfg *utils.Config) (planner.PlanConfig, error) {
	path := cfg.Get("PLAN_FILE")
	if path == "" {
		return planner.DefaultPlanConfig(), nil
	}
	return planner.LoadPlanConfig(path)
}

// wiring is a fully assembled pipeline and the resources it holds
type wiring struct {
	pipeline *pipeline.Pipeline
	registry *prometheus.Registry
	closers  []closer
}

func (w *wiring) Close() error {
	return closeAll(w.closers)
}

// buildPipeline assembles a pipeline. Sources are only wired when withSource is set, so a
// sweep needs no API keys
func buildPipeline(ctx context.Context, cfg *utils.Config, logger *zap.Logger, withSource bool) (*wiring, error) {
	w := &wiring{registry: prometheus.NewRegistry()}

	plan, err := loadPlan(cfg)
	if err != nil {
		return nil, err
	}

	store, release, err := buildStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	if release != nil {
		w.closers = append(w.closers, release)
	}

	deps := pipeline.Deps{
		Store:     store,
		Lifecycle: lifecycle.NewManager(cfg.GetIntWithDefault("ROLLING_WINDOW_DAYS", lifecycle.DefaultWindowDays), logger),
		Metrics:   metrics.New(w.registry),
		Logger:    logger,
	}

	if withSource {
		source, err := buildSource(ctx, cfg)
		if err != nil {
			return nil, multierr.Append(err, w.Close())
		}
		deps.Miner = miner.New(source, miner.Config{
			InitialBackoff: cfg.GetDurationWithDefault("SOURCE_BACKOFF", miner.DefaultInitialBackoff),
		}, logger)

		verifier, release, err := buildVerifier(ctx, cfg, logger)
		if err != nil {
			return nil, multierr.Append(err, w.Close())
		}
		if release != nil {
			w.closers = append(w.closers, release)
		}
		deps.Verifier = verifier
	}

	w.pipeline = pipeline.New(pipeline.Config{
		Plan:          plan,
		Seed:          cfg.GetUint64WithDefault("PLAN_SEED", 0),
		Checkpoint:    cfg.GetBool("CHECKPOINT"),
		ReverifyLimit: cfg.GetIntWithDefault("REVERIFY_LIMIT", pipeline.DefaultReverifyLimit),
		TopicInterval: cfg.GetDurationWithDefault("TOPIC_INTERVAL", 0),
	}, deps)

	return w, nil
}
