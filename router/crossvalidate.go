package router

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/geniusai/genius/pkg/provider"
)

// errAnswered stops the race group once a validator produced an answer.
var errAnswered = errors.New("validator answered")

// crossValidate asks the configured validators for a non-streaming answer.
// Validators without an API key are skipped. It reports false when no
// validator produced a non-empty answer.
func (r *Router) crossValidate(ctx context.Context, cfg Config, prompt provider.Prompt) (provider.Kind, string, bool) {
	adapters := make([]provider.Adapter, 0, len(cfg.Validators))
	for _, v := range cfg.Validators {
		a, err := r.adapter(v)
		if err != nil {
			r.logger.Debug("skipping validator", zap.String("provider", string(v.Kind)), zap.Error(err))
			continue
		}
		adapters = append(adapters, a)
	}
	if len(adapters) == 0 {
		return "", "", false
	}

	if cfg.Strategy == StrategyRace {
		return r.race(ctx, adapters, prompt)
	}
	return r.sequential(ctx, adapters, prompt)
}

func (r *Router) sequential(ctx context.Context, adapters []provider.Adapter, prompt provider.Prompt) (provider.Kind, string, bool) {
	for _, a := range adapters {
		if ctx.Err() != nil {
			return "", "", false
		}
		text, ok := r.ask(ctx, a, prompt)
		if ok {
			return a.Kind(), text, true
		}
	}
	return "", "", false
}

func (r *Router) race(ctx context.Context, adapters []provider.Adapter, prompt provider.Prompt) (provider.Kind, string, bool) {
	g, gctx := errgroup.WithContext(ctx)

	var (
		mu     sync.Mutex
		winner provider.Kind
		answer string
	)
	for _, a := range adapters {
		g.Go(func() error {
			text, ok := r.ask(gctx, a, prompt)
			if !ok {
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			if winner == "" {
				winner, answer = a.Kind(), text
			}
			return errAnswered
		})
	}
	_ = g.Wait()

	return winner, answer, winner != ""
}

// ask returns a validator's trimmed answer, logging failures.
func (r *Router) ask(ctx context.Context, a provider.Adapter, prompt provider.Prompt) (string, bool) {
	text, err := provider.Complete(ctx, r.httpClient, a, prompt)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("validator failed", zap.String("provider", string(a.Kind())), zap.Error(err))
		}
		return "", false
	}
	if strings.TrimSpace(text) == "" {
		r.logger.Debug("validator returned empty answer", zap.String("provider", string(a.Kind())))
		return "", false
	}
	return text, true
}
