package embedding

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/starford/vaultvec/internal/apperr"
)

// ResilienceConfig bounds the request rate to the provider. A zero
// RequestsPerSecond disables rate limiting.
type ResilienceConfig struct {
	RequestsPerSecond float64
	Burst             int
	// BreakerTimeout is how long the breaker stays open before probing.
	BreakerTimeout time.Duration
}

// Resilient guards an Embedder with a rate limiter and a circuit breaker,
// so a failing provider fails fast instead of stalling every batch.
type Resilient struct {
	inner   Embedder
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewResilient wraps inner.
func NewResilient(inner Embedder, cfg ResilienceConfig, logger *slog.Logger) *Resilient {
	timeout := cfg.BreakerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "embedding:" + inner.ModelName(),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Cancelled callers say nothing about provider health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("embedding: circuit breaker state change",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Resilient{inner: inner, breaker: breaker, limiter: limiter}
}

// Embed embeds a single text through the guard.
func (r *Resilient) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	res, err := r.breaker.Execute(func() (interface{}, error) {
		return r.inner.Embed(ctx, text)
	})
	if err != nil {
		return nil, r.wrap(err)
	}
	return res.([]float32), nil
}

// EmbedBatch embeds texts through the guard.
func (r *Resilient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	res, err := r.breaker.Execute(func() (interface{}, error) {
		return r.inner.EmbedBatch(ctx, texts)
	})
	if err != nil {
		return nil, r.wrap(err)
	}
	return res.([][]float32), nil
}

// Dimensions passes through to the inner embedder.
func (r *Resilient) Dimensions() int { return r.inner.Dimensions() }

// ModelName passes through to the inner embedder.
func (r *Resilient) ModelName() string { return r.inner.ModelName() }

// State reports the breaker state.
func (r *Resilient) State() gobreaker.State { return r.breaker.State() }

func (r *Resilient) wait(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return apperr.Embedding("embedding: rate limit", err)
	}
	return nil
}

func (r *Resilient) wrap(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperr.Embedding("embedding: circuit open", err)
	}
	return err
}
