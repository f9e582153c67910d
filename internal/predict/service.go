// Package predict wires feature extraction, scaling and the fusion network
// into the single prediction operation the HTTP layer serves.
package predict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/diversity-predict-service/internal/domain"
	"github.com/couchcryptid/diversity-predict-service/internal/observability"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/mdobak/go-xerrors"
)

// FeatureExtractor fetches imagery and region statistics for a coordinate.
type FeatureExtractor interface {
	Extract(ctx context.Context, c domain.Coordinate) (domain.Thumbnail, domain.RawFeatures, error)
}

// FeatureNormalizer produces the scaled tabular input.
type FeatureNormalizer interface {
	Normalize(thumb domain.Thumbnail, raw domain.RawFeatures) (domain.FeatureVector, error)
}

// Predictor evaluates the fusion network.
type Predictor interface {
	Predict(thumb domain.Thumbnail, features domain.FeatureVector) (domain.Prediction, error)
}

// Outcome labels for the predictions metric.
const (
	OutcomeSuccess       = "success"
	OutcomeInvalidInput  = "invalid_input"
	OutcomeNoImagery     = "no_imagery"
	OutcomeShapeMismatch = "shape_mismatch"
	OutcomeUpstreamError = "upstream_error"
)

// Service runs extract -> normalize -> predict for one coordinate.
type Service struct {
	extractor  FeatureExtractor
	normalizer FeatureNormalizer
	predictor  Predictor
	upstream   sharedobs.ReadinessChecker
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// New creates a Service. upstream may be nil when there is no imagery
// dependency worth probing.
func New(e FeatureExtractor, n FeatureNormalizer, p Predictor, upstream sharedobs.ReadinessChecker, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		extractor:  e,
		normalizer: n,
		predictor:  p,
		upstream:   upstream,
		logger:     logger,
		metrics:    metrics,
	}
}

// Predict returns the alpha and beta diversity estimates at c. Failures are
// logged and returned unchanged; there is no retry and no partial result.
func (s *Service) Predict(ctx context.Context, c domain.Coordinate) (domain.Prediction, error) {
	start := time.Now()
	pred, err := s.predict(ctx, c)
	s.metrics.PredictionDuration.Observe(time.Since(start).Seconds())

	outcome := classify(err)
	s.metrics.Predictions.WithLabelValues(outcome).Inc()
	if err != nil {
		s.logger.Error("prediction failed",
			"coordinate", c.String(),
			"outcome", outcome,
			slog.Any("error", xerrors.New(err)),
		)
		return domain.Prediction{}, err
	}

	s.logger.Info("prediction served",
		"coordinate", c.String(),
		"alpha", pred.Alpha,
		"beta", pred.Beta,
		"duration", time.Since(start),
	)
	return pred, nil
}

func (s *Service) predict(ctx context.Context, c domain.Coordinate) (domain.Prediction, error) {
	if _, err := domain.NewCoordinate(c.Lat, c.Lon); err != nil {
		return domain.Prediction{}, err
	}

	thumb, raw, err := s.extractor.Extract(ctx, c)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("extract features: %w", err)
	}
	for _, key := range raw.Defaulted {
		s.metrics.DefaultedFeatures.WithLabelValues(key).Inc()
	}

	features, err := s.normalizer.Normalize(thumb, raw)
	if err != nil {
		return domain.Prediction{}, err
	}

	fwd := time.Now()
	pred, err := s.predictor.Predict(thumb, features)
	s.metrics.ForwardPassDuration.Observe(time.Since(fwd).Seconds())
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("forward pass: %w", err)
	}
	return pred, nil
}

// CheckReadiness fails while the imagery dependency is known to be down.
func (s *Service) CheckReadiness(ctx context.Context) error {
	if s.upstream == nil {
		return nil
	}
	return s.upstream.CheckReadiness(ctx)
}

func classify(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, domain.ErrInvalidCoordinate):
		return OutcomeInvalidInput
	case errors.Is(err, domain.ErrNoImagery):
		return OutcomeNoImagery
	case errors.Is(err, domain.ErrShapeMismatch):
		return OutcomeShapeMismatch
	default:
		return OutcomeUpstreamError
	}
}
