package threatapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xela07ax/pocketsiem/internal/infra"
)

type callFunc func(ctx context.Context) (*Response, error)

// reliabilityWrapper: Rate Limiter -> Circuit Breaker -> Retry (только идемпотентные вызовы).
type reliabilityWrapper struct {
	cb         *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	attempts   uint
	retryDelay time.Duration

	// Потолок для Retry-After: backend не может усыпить поллинг дольше таймаута запроса
	maxRetryAfter time.Duration
}

func newReliabilityWrapper(cfg infra.APIConfig, metrics *infra.Metrics, logger *zap.Logger) *reliabilityWrapper {
	failures := cfg.CBFailures
	if failures == 0 {
		failures = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "pocketsiem-api",
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return !countsAsFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.Set(float64(to))
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	attempts := cfg.RetryAttempts
	if attempts == 0 {
		attempts = 1
	}

	maxRetryAfter := cfg.Timeout()
	if maxRetryAfter <= 0 {
		maxRetryAfter = DefaultTimeout
	}

	return &reliabilityWrapper{
		cb:         cb,
		limiter:    rate.NewLimiter(limit, burst),
		attempts:   attempts,
		retryDelay: cfg.RetryDelay,

		maxRetryAfter: maxRetryAfter,
	}
}

func (w *reliabilityWrapper) Call(ctx context.Context, idempotent bool, call callFunc) (*Response, error) {
	// 1. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &NetworkError{Err: fmt.Errorf("rate limit exceeded: %w", err)}
	}

	// 2. Circuit Breaker
	result, err := w.cb.Execute(func() (interface{}, error) {
		// POST /report и режим без повторов - ровно одна попытка
		if !idempotent || w.attempts <= 1 {
			return call(ctx)
		}

		var last *Response
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(w.attempts),
			retry.Delay(w.retryDelay),
			retry.LastErrorOnly(true),
			retry.RetryIf(isRetryable),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Backend прислал Retry-After - слушаемся его, но в пределах потолка
				if d := retryAfter(err, w.maxRetryAfter); d > 0 {
					return d
				}
				return retry.BackOffDelay(n, err, config)
			}),
		)

		retryErr := r.Do(func() error {
			var callErr error
			last, callErr = call(ctx)
			return callErr
		})
		return last, retryErr
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &NetworkError{Err: err}
	}
	if err != nil {
		return nil, err
	}

	return result.(*Response), nil
}

// retryAfter — пауза из Retry-After, обрезанная до limit. 0 — заголовка не было.
func retryAfter(err error, limit time.Duration) time.Duration {
	var hErr *HTTPError
	if !errors.As(err, &hErr) || hErr.RetryAfter <= 0 {
		return 0
	}
	if limit > 0 && hErr.RetryAfter > limit {
		return limit
	}
	return hErr.RetryAfter
}

// State отдает текущее состояние предохранителя (для health).
func (w *reliabilityWrapper) State() gobreaker.State {
	return w.cb.State()
}
