package extract

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"cryptodata/internal/cache"
	"cryptodata/internal/config"
	apperr "cryptodata/internal/errors"
)

// providerLimiter throttles one provider to its declared budget: a token
// bucket for request rate and a semaphore for in-flight calls.
type providerLimiter struct {
	limiter *rate.Limiter
	slots   chan struct{}
}

// limiterPool hands out per-provider limiters from configuration. When a
// shared cache is attached, acquisition also counts against a distributed
// fixed window so multiple processes respect one provider budget together.
type limiterPool struct {
	mu       sync.Mutex
	limiters map[string]*providerLimiter
	budgets  map[string]config.ProviderBudget
	fallback config.ProviderBudget
	cacher   cache.Cacher
}

func newLimiterPool(cfg config.ExtractConfig, cacher cache.Cacher) *limiterPool {
	return &limiterPool{
		limiters: make(map[string]*providerLimiter),
		budgets:  cfg.Providers,
		fallback: cfg.DefaultBudget,
		cacher:   cacher,
	}
}

func (p *limiterPool) budget(provider string) config.ProviderBudget {
	if b, ok := p.budgets[provider]; ok {
		return b
	}
	return p.fallback
}

func (p *limiterPool) get(provider string) *providerLimiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if l, ok := p.limiters[provider]; ok {
		return l
	}
	b := p.budget(provider)
	rps := b.RequestsPerSec
	if rps <= 0 {
		rps = 1
	}
	burst := b.Burst
	if burst < 1 {
		burst = 1
	}
	slots := b.MaxConcurrent
	if slots < 1 {
		slots = 1
	}
	l := &providerLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		slots:   make(chan struct{}, slots),
	}
	p.limiters[provider] = l
	return l
}

// acquire blocks until the provider budget admits one call. The returned
// release must be called when the call finishes.
func (p *limiterPool) acquire(ctx context.Context, provider string) (release func(), err error) {
	l := p.get(provider)

	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := l.limiter.Wait(ctx); err != nil {
		<-l.slots
		return nil, err
	}

	if p.cacher != nil {
		b := p.budget(provider)
		limit := int(b.RequestsPerSec) * 60
		if limit > 0 {
			// distributed window is advisory: a cache failure must not
			// stall extraction
			if ok, err := p.cacher.CheckRateLimit(ctx, provider, limit, time.Minute); err == nil && !ok {
				<-l.slots
				return nil, apperr.New(apperr.ErrCodeRateLimit, "provider rate window exhausted", nil).WithProvider(provider)
			}
		}
	}
	return func() { <-l.slots }, nil
}
