// Package pipeline orchestrates one recipe extraction: cache check, fetch,
// extract, augment, parse and cache write, with identical requests coalesced.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/SquizAI/recipies01/internal/cache"
	"github.com/SquizAI/recipies01/internal/config"
	"github.com/SquizAI/recipies01/internal/fetch"
	"github.com/SquizAI/recipies01/internal/model"
	"github.com/SquizAI/recipies01/internal/resilience"
)

// Fetcher retrieves a post page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Page, error)
}

// Extractor recovers caption, image and video from a page.
type Extractor interface {
	Extract(p *fetch.Page) (*model.RawContent, error)
}

// Augmenter adds a video transcription. It never fails.
type Augmenter interface {
	Augment(ctx context.Context, raw model.RawContent) model.AugmentedContent
}

// Parser turns content into a recipe.
type Parser interface {
	Parse(ctx context.Context, content model.AugmentedContent) (*model.Recipe, error)
}

// RunLedger records runs. store.Store satisfies it.
type RunLedger interface {
	CreateRun(ctx context.Context, sourceURL, cacheKey string) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, out model.RunOutcome) error
}

// State is a step of the run state machine.
type State string

const (
	StateCacheCheck State = "cache_check"
	StateFetching   State = "fetching"
	StateExtracting State = "extracting"
	StateAugmenting State = "augmenting"
	StateParsing    State = "parsing"
	StateCaching    State = "caching"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Result is a successful extraction.
type Result struct {
	Recipe *model.Recipe
	Cached bool
	// StoreErr is set when the recipe was produced but could not be cached.
	StoreErr *Error
	RunID    string
	Strategy string
	// Shared is true when this caller joined an execution started by another.
	Shared bool
}

// Options bounds each step.
type Options struct {
	RunTimeout    time.Duration
	CacheTimeout  time.Duration
	ParseTimeout  time.Duration
	ParseAttempts int
	RetryBase     time.Duration
}

// OptionsFromConfig converts pipeline config seconds to durations.
func OptionsFromConfig(cfg config.PipelineConfig) Options {
	return Options{
		RunTimeout:    time.Duration(cfg.RunTimeoutSecs) * time.Second,
		CacheTimeout:  time.Duration(cfg.CacheTimeoutSecs) * time.Second,
		ParseTimeout:  time.Duration(cfg.ParseTimeoutSecs) * time.Second,
		ParseAttempts: cfg.ParseAttempts,
	}
}

func (o Options) withDefaults() Options {
	if o.RunTimeout <= 0 {
		o.RunTimeout = 5 * time.Minute
	}
	if o.CacheTimeout <= 0 {
		o.CacheTimeout = 5 * time.Second
	}
	if o.ParseTimeout <= 0 {
		o.ParseTimeout = 2 * time.Minute
	}
	if o.ParseAttempts <= 0 {
		o.ParseAttempts = 1
	}
	if o.RetryBase <= 0 {
		o.RetryBase = time.Second
	}
	return o
}

// Deps are the pipeline's collaborators. Augmenter and Runs may be nil.
type Deps struct {
	Fetcher    Fetcher
	Extractor  Extractor
	Augmenter  Augmenter
	Parser     Parser
	Cache      cache.RecipeCache
	Runs       RunLedger
	Normalizer *cache.Normalizer
}

// Pipeline runs extractions.
type Pipeline struct {
	deps  Deps
	opts  Options
	group singleflight.Group
}

// New creates a Pipeline.
func New(deps Deps, opts Options) *Pipeline {
	if deps.Normalizer == nil {
		deps.Normalizer = cache.NewNormalizer(nil)
	}
	return &Pipeline{deps: deps, opts: opts.withDefaults()}
}

// Extract returns the recipe for sourceURL. Failures are *Error values,
// except when ctx ends first, in which case ctx.Err() is returned while the
// shared execution continues for other callers and for the cache.
func (p *Pipeline) Extract(ctx context.Context, sourceURL string) (*Result, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	key, err := p.deps.Normalizer.Key(sourceURL)
	if err != nil {
		return nil, newError(CodeExtraction, MsgInvalidURL, err)
	}

	ch := p.group.DoChan(key, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.RunTimeout)
		defer cancel()
		return p.run(runCtx, sourceURL, key)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		out := *res.Val.(*Result)
		out.Shared = res.Shared
		return &out, nil
	}
}

// run drives one execution through the state machine.
func (p *Pipeline) run(ctx context.Context, sourceURL, key string) (*Result, error) {
	start := time.Now()
	log := zap.L().With(zap.String("url", sourceURL), zap.String("cache_key", key))

	res := &Result{}
	res.RunID = p.createRun(ctx, sourceURL, key, log)
	if res.RunID != "" {
		log = log.With(zap.String("run_id", res.RunID))
	}

	finish := func(out model.RunOutcome) {
		out.Duration = time.Since(start)
		p.finishRun(ctx, res.RunID, out, log)
	}
	fail := func(state State, code Code, msg string, cause error) (*Result, error) {
		log.Warn("pipeline: run failed",
			zap.String("state", string(state)),
			zap.String("code", string(code)),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Error(cause),
		)
		finish(model.RunOutcome{Status: model.RunStatusFailed, ErrorCode: string(code), ErrorMessage: msg, Strategy: res.Strategy})
		return nil, newError(code, msg, cause)
	}

	// CacheCheck
	transition(log, StateCacheCheck)
	if hit := p.cacheGet(ctx, key, log); hit != nil {
		res.Recipe, res.Cached = hit, true
		transition(log, StateDone, zap.Bool("cached", true))
		finish(model.RunOutcome{Status: model.RunStatusDone, Cached: true})
		return res, nil
	}

	// Fetching
	transition(log, StateFetching)
	page, err := p.deps.Fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		return fail(StateFetching, CodeExtraction, MsgFetchFailed, err)
	}
	res.Strategy = page.Strategy

	// Extracting
	transition(log, StateExtracting, zap.String("strategy", page.Strategy))
	raw, err := p.deps.Extractor.Extract(page)
	if err == nil && (raw == nil || strings.TrimSpace(raw.TextContent) == "") {
		err = eris.New("pipeline: extractor returned empty text")
	}
	if err != nil {
		return fail(StateExtracting, CodeExtraction, MsgNoContent, err)
	}
	raw.SourceURL = sourceURL
	if raw.Strategy == "" {
		raw.Strategy = page.Strategy
	}

	// Augmenting
	transition(log, StateAugmenting)
	content := model.AugmentedContent{RawContent: *raw}
	if p.deps.Augmenter != nil {
		content = p.deps.Augmenter.Augment(ctx, *raw)
	}

	// Parsing
	transition(log, StateParsing, zap.Bool("has_transcription", content.HasTranscription()))
	recipe, err := p.parse(ctx, content)
	if err != nil {
		return fail(StateParsing, CodeExtraction, MsgParseFailed, err)
	}
	res.Recipe = recipe

	// Caching
	transition(log, StateCaching)
	if err := p.cachePut(ctx, key, recipe); err != nil {
		log.Warn("pipeline: cache write failed", zap.Error(err))
		res.StoreErr = newError(CodeStore, MsgStoreFailed, err)
	}

	transition(log, StateDone,
		zap.Bool("cached", false),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	out := model.RunOutcome{Status: model.RunStatusDone, Strategy: res.Strategy}
	if res.StoreErr != nil {
		out.ErrorCode = string(CodeStore)
		out.ErrorMessage = MsgStoreFailed
	}
	finish(out)
	return res, nil
}

func (p *Pipeline) parse(ctx context.Context, content model.AugmentedContent) (*model.Recipe, error) {
	policy := resilience.Policy{
		Attempts: p.opts.ParseAttempts,
		Base:     p.opts.RetryBase,
		Cap:      30 * time.Second,
		Jitter:   0.25,
		Name:     "parse",
	}
	return resilience.Retry(ctx, policy, func(ctx context.Context) (*model.Recipe, error) {
		pctx, cancel := context.WithTimeout(ctx, p.opts.ParseTimeout)
		defer cancel()
		return p.deps.Parser.Parse(pctx, content)
	})
}

// cacheGet treats read errors as a miss.
func (p *Pipeline) cacheGet(ctx context.Context, key string, log *zap.Logger) *model.Recipe {
	if p.deps.Cache == nil {
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, p.opts.CacheTimeout)
	defer cancel()

	r, err := p.deps.Cache.Get(cctx, key)
	if err != nil {
		log.Warn("pipeline: cache read failed, treating as miss", zap.Error(err))
		return nil
	}
	return r
}

func (p *Pipeline) cachePut(ctx context.Context, key string, r *model.Recipe) error {
	if p.deps.Cache == nil {
		return nil
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.CacheTimeout)
	defer cancel()
	return p.deps.Cache.Put(cctx, key, r)
}

func (p *Pipeline) createRun(ctx context.Context, sourceURL, key string, log *zap.Logger) string {
	if p.deps.Runs == nil {
		return ""
	}
	cctx, cancel := context.WithTimeout(ctx, p.opts.CacheTimeout)
	defer cancel()

	run, err := p.deps.Runs.CreateRun(cctx, sourceURL, key)
	if err != nil {
		log.Warn("pipeline: failed to create run", zap.Error(err))
		return ""
	}
	return run.ID
}

func (p *Pipeline) finishRun(ctx context.Context, runID string, out model.RunOutcome, log *zap.Logger) {
	if p.deps.Runs == nil || runID == "" {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.CacheTimeout)
	defer cancel()

	if err := p.deps.Runs.FinishRun(cctx, runID, out); err != nil {
		log.Warn("pipeline: failed to finish run", zap.Error(err))
	}
}

func transition(log *zap.Logger, s State, fields ...zap.Field) {
	log.Info("pipeline: state", append([]zap.Field{zap.String("state", string(s))}, fields...)...)
}
