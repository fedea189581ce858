package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/SquizAI/recipies01/internal/cache"
	"github.com/SquizAI/recipies01/internal/config"
	"github.com/SquizAI/recipies01/internal/extract"
	"github.com/SquizAI/recipies01/internal/fetch"
	"github.com/SquizAI/recipies01/internal/parser"
	"github.com/SquizAI/recipies01/internal/pipeline"
	"github.com/SquizAI/recipies01/internal/resilience"
	"github.com/SquizAI/recipies01/internal/store"
	"github.com/SquizAI/recipies01/internal/transcribe"
	"github.com/SquizAI/recipies01/internal/video"
	"github.com/SquizAI/recipies01/pkg/anthropic"
	"github.com/SquizAI/recipies01/pkg/objectstore"
)

// pipelineEnv holds the initialized pipeline and the resources that need
// closing when the command exits.
type pipelineEnv struct {
	Store       store.Store
	Pipeline    *pipeline.Pipeline
	Breakers    *resilience.Breakers
	ObjectStore objectstore.Client

	browser *fetch.BrowserFetcher
	redis   *redis.Client
}

// Close releases the browser, Redis and store connections.
func (e *pipelineEnv) Close() {
	if e.browser != nil {
		if err := e.browser.Close(); err != nil {
			zap.L().Warn("close browser", zap.Error(err))
		}
	}
	if e.redis != nil {
		e.redis.Close() //nolint:errcheck
	}
	if e.Store != nil {
		e.Store.Close() //nolint:errcheck
	}
}

// initPipeline validates config for mode and wires every pipeline component.
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &pipelineEnv{Store: st}

	recipes, err := env.initCache(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Breakers = resilience.NewBreakers(resilience.BreakerFromSettings(cfg.Fetch.BreakerThreshold, cfg.Fetch.BreakerResetSecs))
	chain := fetch.NewChain(env.Breakers, env.strategies(cfg.Fetch)...)

	ex, err := initExtractor(cfg.Extract)
	if err != nil {
		env.Close()
		return nil, err
	}

	tr, err := transcribe.NewTranscriber(cfg.Transcribe, nil)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "init transcriber")
	}
	aug := video.NewAugmenter(cfg.Video, tr, video.WithTranscribeTimeout(seconds(cfg.Transcribe.TimeoutSecs)))
	if !aug.Enabled() {
		zap.L().Info("video transcription disabled")
	}

	ai := anthropic.NewClient(cfg.Anthropic.Key)

	env.Pipeline = pipeline.New(pipeline.Deps{
		Fetcher:    chain,
		Extractor:  ex,
		Augmenter:  aug,
		Parser:     parser.New(ai, cfg.Anthropic),
		Cache:      recipes,
		Runs:       st,
		Normalizer: cache.NewNormalizer(cfg.Cache.StripParams),
	}, pipeline.OptionsFromConfig(cfg.Pipeline))

	if cfg.Storage.Enabled() {
		objs, err := objectstore.New(ctx, objectstore.Config{
			Endpoint:        cfg.Storage.Endpoint,
			Region:          cfg.Storage.Region,
			Bucket:          cfg.Storage.Bucket,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
		})
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "init object storage")
		}
		env.ObjectStore = objs
	}

	zap.L().Info("pipeline ready",
		zap.String("store", cfg.Store.Driver),
		zap.Strings("fetch_strategies", chain.Names()),
		zap.Bool("redis", env.redis != nil),
		zap.Bool("video", aug.Enabled()),
		zap.Bool("object_storage", env.ObjectStore != nil),
	)

	return env, nil
}

// initCache layers Redis in front of the store when a Redis URL is set. An
// unreachable Redis is logged and skipped.
func (e *pipelineEnv) initCache(ctx context.Context) (cache.RecipeCache, error) {
	back := cache.NewStoreCache(e.Store)
	if cfg.Cache.RedisURL == "" {
		return back, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client, err := cache.DialRedis(dialCtx, cfg.Cache.RedisURL)
	if err != nil {
		zap.L().Warn("redis unavailable, using store cache only", zap.Error(err))
		return back, nil
	}
	e.redis = client

	ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
	return cache.NewLayered(cache.NewRedisCache(client, ttl), back), nil
}

// strategies returns the fetch strategies in priority order.
func (e *pipelineEnv) strategies(fc config.FetchConfig) []fetch.Strategy {
	var out []fetch.Strategy
	if fc.BrowserEnabled {
		e.browser = fetch.NewBrowserFetcher(fetch.BrowserConfig{
			Bin:       fc.BrowserBin,
			Timeout:   seconds(fc.BrowserTimeoutSecs),
			Idle:      time.Duration(fc.IdleMs) * time.Millisecond,
			UserAgent: fc.UserAgent,
		})
		out = append(out, e.browser)
	}
	if fc.ProxyURL != "" {
		out = append(out, fetch.NewProxyFetcher(fetch.ProxyConfig{
			BaseURL:   fc.ProxyURL,
			Timeout:   seconds(fc.ProxyTimeoutSecs),
			RPS:       float64(fc.ProxyRPS),
			UserAgent: fc.UserAgent,
		}))
	}
	return out
}

// initExtractor loads the matcher rules. Image filters from config apply when
// no rules file is given.
func initExtractor(ec config.ExtractConfig) (*extract.Extractor, error) {
	rules, err := extract.LoadRules(ec.RulesPath)
	if err != nil {
		return nil, err
	}
	if ec.RulesPath == "" {
		if ec.MinImageSize > 0 {
			rules.MinImageSize = ec.MinImageSize
		}
		if len(ec.ImageHosts) > 0 {
			rules.ImageHosts = ec.ImageHosts
		}
	}
	return extract.New(rules)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
