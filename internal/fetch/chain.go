package fetch

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/SquizAI/recipies01/internal/resilience"
)

// Chain tries strategies in order and returns the first usable page. Each
// strategy is guarded by its own circuit breaker; an open breaker skips it.
type Chain struct {
	strategies []Strategy
	breakers   *resilience.Breakers
}

// NewChain builds a chain. Strategies are tried in the order given.
func NewChain(breakers *resilience.Breakers, strategies ...Strategy) *Chain {
	if breakers == nil {
		breakers = resilience.NewBreakers(resilience.BreakerFromSettings(0, 0))
	}
	return &Chain{strategies: strategies, breakers: breakers}
}

// Names returns the strategy names in order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Fetch runs the chain for url. Failures are logged and the next strategy is
// tried; nothing is retried within a call.
func (c *Chain) Fetch(ctx context.Context, url string) (*Page, error) {
	log := zap.L().With(zap.String("url", url))

	var failures []string
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "fetch: cancelled")
		}

		br := c.breakers.For(s.Name())
		if !br.Available() {
			log.Info("fetch: strategy unavailable, breaker open", zap.String("strategy", s.Name()))
			failures = append(failures, s.Name()+": breaker open")
			continue
		}

		start := time.Now()
		page, err := resilience.Call(ctx, br, func(ctx context.Context) (*Page, error) {
			p, err := s.Fetch(ctx, url)
			if err == nil && (p == nil || strings.TrimSpace(p.HTML) == "") {
				err = eris.Errorf("fetch: %s returned an empty page", s.Name())
			}
			return p, err
		})
		if err != nil {
			log.Warn("fetch: strategy failed",
				zap.String("strategy", s.Name()),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.Error(err),
			)
			failures = append(failures, s.Name()+": "+err.Error())
			continue
		}

		page.Strategy = s.Name()
		log.Info("fetch: page retrieved",
			zap.String("strategy", s.Name()),
			zap.String("mode", string(page.Mode)),
			zap.Int("bytes", len(page.HTML)),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return page, nil
	}

	if len(failures) == 0 {
		return nil, eris.Wrap(ErrFetchUnavailable, "no strategies configured")
	}
	return nil, eris.Wrap(ErrFetchUnavailable, strings.Join(failures, "; "))
}
