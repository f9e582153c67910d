package earthengine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/diversity-predict-service/internal/domain"
	"github.com/sony/gobreaker"
)

// BreakerCatalog fails fast while Earth Engine keeps erroring. It never
// retries; an open breaker returns gobreaker.ErrOpenState to the caller.
type BreakerCatalog struct {
	inner domain.ImageryCatalog
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerCatalog trips after maxFailures consecutive failures and stays
// open for openTimeout before letting a probe request through.
func NewBreakerCatalog(inner domain.ImageryCatalog, maxFailures int, openTimeout time.Duration, logger *slog.Logger) *BreakerCatalog {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "earth-engine",
		Timeout: openTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(maxFailures)
		},
		// A caller that hangs up says nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &BreakerCatalog{inner: inner, cb: cb}
}

// CountScenes counts matching scenes through the breaker.
func (b *BreakerCatalog) CountScenes(ctx context.Context, q domain.SceneQuery) (int, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.inner.CountScenes(ctx, q)
	})
	if err != nil {
		return 0, err
	}
	return res.(int), nil
}

// Thumbnail renders the composite through the breaker.
func (b *BreakerCatalog) Thumbnail(ctx context.Context, q domain.SceneQuery, spec domain.ThumbnailSpec) ([]byte, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.inner.Thumbnail(ctx, q, spec)
	})
	if err != nil {
		return nil, err
	}
	return res.([]byte), nil
}

// RegionMeans reduces the composite through the breaker.
func (b *BreakerCatalog) RegionMeans(ctx context.Context, q domain.SceneQuery, scaleMeters float64) (map[string]any, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.inner.RegionMeans(ctx, q, scaleMeters)
	})
	if err != nil {
		return nil, err
	}
	return res.(map[string]any), nil
}

// CheckReadiness fails while the breaker is open.
func (b *BreakerCatalog) CheckReadiness(_ context.Context) error {
	if b.cb.State() == gobreaker.StateOpen {
		return errors.New("earth engine circuit breaker is open")
	}
	return nil
}
