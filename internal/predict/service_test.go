package predict_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/diversity-predict-service/internal/domain"
	"github.com/couchcryptid/diversity-predict-service/internal/fusion"
	"github.com/couchcryptid/diversity-predict-service/internal/observability"
	"github.com/couchcryptid/diversity-predict-service/internal/predict"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type fakeCatalog struct {
	count      int
	thumbnail  []byte
	means      map[string]any
	err        error
	countCalls int
	thumbCalls int
	meansCalls int
}

func (f *fakeCatalog) CountScenes(_ context.Context, _ domain.SceneQuery) (int, error) {
	f.countCalls++
	return f.count, f.err
}

func (f *fakeCatalog) Thumbnail(_ context.Context, _ domain.SceneQuery, _ domain.ThumbnailSpec) ([]byte, error) {
	f.thumbCalls++
	return f.thumbnail, nil
}

func (f *fakeCatalog) RegionMeans(_ context.Context, _ domain.SceneQuery, _ float64) (map[string]any, error) {
	f.meansCalls++
	return f.means, nil
}

func (f *fakeCatalog) calls() int { return f.countCalls + f.thumbCalls + f.meansCalls }

type stubPredictor struct {
	pred  domain.Prediction
	err   error
	calls int
	last  domain.FeatureVector
}

func (s *stubPredictor) Predict(_ domain.Thumbnail, features domain.FeatureVector) (domain.Prediction, error) {
	s.calls++
	s.last = features
	return s.pred, s.err
}

type stubReadiness struct{ err error }

func (s stubReadiness) CheckReadiness(_ context.Context) error { return s.err }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func solidPNG(t *testing.T, size int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := range size {
		for x := range size {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func newCatalog(t *testing.T) *fakeCatalog {
	return &fakeCatalog{
		count:     2,
		thumbnail: solidPNG(t, fusion.ImageSize, color.NRGBA{R: 90, G: 120, B: 60, A: 255}),
		means: map[string]any{
			"B4": 612.0, "B3": 701.5, "B2": 455.0, "B8": 2874.0,
			"NDVI": 0.64, "NDWI": -0.58, "EVI": 0.41,
		},
	}
}

func newService(cat domain.ImageryCatalog, p predict.Predictor, metrics *observability.Metrics) *predict.Service {
	ext := domain.NewExtractor(cat, domain.DefaultExtractOptions(), discardLogger())
	norm := domain.NewNormalizer(domain.IdentityScaler())
	return predict.New(ext, norm, p, nil, discardLogger(), metrics)
}

// --- tests ---

func TestService_IdentityScalerMatchesDirectForward(t *testing.T) {
	freezeClock(t, time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC))

	model, err := fusion.New(fusion.RandomWeights(7))
	require.NoError(t, err)

	cat := newCatalog(t)
	svc := newService(cat, model, observability.NewMetricsForTesting())

	c, err := domain.NewCoordinate(40.0, -75.0)
	require.NoError(t, err)

	got, err := svc.Predict(context.Background(), c)
	require.NoError(t, err)

	thumb, err := domain.DecodeThumbnail(cat.thumbnail, fusion.ImageSize)
	require.NoError(t, err)
	raw := domain.NewRawFeatures(6, cat.means)
	want, err := model.Forward(thumb.Pix, domain.AssembleFeatures(thumb, raw).Slice())
	require.NoError(t, err)

	assert.InDelta(t, want[0], got.Alpha, 1e-12)
	assert.InDelta(t, want[1], got.Beta, 1e-12)
}

func TestService_NoImagery(t *testing.T) {
	freezeClock(t, time.Date(2025, time.January, 3, 0, 0, 0, 0, time.UTC))

	cat := newCatalog(t)
	cat.count = 0
	pred := &stubPredictor{}
	metrics := observability.NewMetricsForTesting()
	svc := newService(cat, pred, metrics)

	_, err := svc.Predict(context.Background(), domain.Coordinate{Lat: 10, Lon: 10})
	require.ErrorIs(t, err, domain.ErrNoImagery)
	assert.Contains(t, err.Error(), "no imagery available")
	assert.Zero(t, cat.thumbCalls)
	assert.Zero(t, pred.calls)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.Predictions.WithLabelValues(predict.OutcomeNoImagery)), 0)
}

func TestService_InvalidCoordinateSkipsCatalog(t *testing.T) {
	cat := newCatalog(t)
	metrics := observability.NewMetricsForTesting()
	svc := newService(cat, &stubPredictor{}, metrics)

	_, err := svc.Predict(context.Background(), domain.Coordinate{Lat: 91, Lon: 0})
	require.ErrorIs(t, err, domain.ErrInvalidCoordinate)
	assert.Zero(t, cat.calls())
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.Predictions.WithLabelValues(predict.OutcomeInvalidInput)), 0)
}

func TestService_UpstreamErrorPropagates(t *testing.T) {
	cat := newCatalog(t)
	cat.err = errors.New("googleapi: Error 429: quota exceeded")
	metrics := observability.NewMetricsForTesting()
	svc := newService(cat, &stubPredictor{}, metrics)

	_, err := svc.Predict(context.Background(), domain.Coordinate{Lat: 1, Lon: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.Predictions.WithLabelValues(predict.OutcomeUpstreamError)), 0)
}

func TestService_ShapeMismatch(t *testing.T) {
	pred := &stubPredictor{err: domain.ErrShapeMismatch}
	metrics := observability.NewMetricsForTesting()
	svc := newService(newCatalog(t), pred, metrics)

	_, err := svc.Predict(context.Background(), domain.Coordinate{Lat: 1, Lon: 1})
	require.ErrorIs(t, err, domain.ErrShapeMismatch)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.Predictions.WithLabelValues(predict.OutcomeShapeMismatch)), 0)
}

func TestService_DefaultedFeaturesCounted(t *testing.T) {
	cat := newCatalog(t)
	delete(cat.means, "EVI")
	cat.means["NDWI"] = nil
	pred := &stubPredictor{pred: domain.Prediction{Alpha: 3.2, Beta: 0.7}}
	metrics := observability.NewMetricsForTesting()
	svc := newService(cat, pred, metrics)

	got, err := svc.Predict(context.Background(), domain.Coordinate{Lat: 1, Lon: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.Prediction{Alpha: 3.2, Beta: 0.7}, got)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.DefaultedFeatures.WithLabelValues("EVI")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.DefaultedFeatures.WithLabelValues("NDWI")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.Predictions.WithLabelValues(predict.OutcomeSuccess)), 0)
}

func TestService_CheckReadiness(t *testing.T) {
	metrics := observability.NewMetricsForTesting()

	svc := predict.New(nil, nil, nil, nil, discardLogger(), metrics)
	require.NoError(t, svc.CheckReadiness(context.Background()))

	svc = predict.New(nil, nil, nil, stubReadiness{err: errors.New("breaker open")}, discardLogger(), metrics)
	require.EqualError(t, svc.CheckReadiness(context.Background()), "breaker open")
}

func TestService_RecomputesCompositePerRequest(t *testing.T) {
	freezeClock(t, time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC))

	cat := newCatalog(t)
	cat.means["B8"] = 1000.0
	pred := &stubPredictor{}
	svc := newService(cat, pred, observability.NewMetricsForTesting())
	c := domain.Coordinate{Lat: 40, Lon: -75}

	_, err := svc.Predict(context.Background(), c)
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, pred.last[domain.FeatNIR], 1e-9)

	// A scene ingested between requests changes the composite.
	cat.means["B8"] = 2500.0
	_, err = svc.Predict(context.Background(), c)
	require.NoError(t, err)
	assert.InDelta(t, 2500.0, pred.last[domain.FeatNIR], 1e-9)

	assert.Equal(t, 2, cat.countCalls)
	assert.Equal(t, 2, cat.thumbCalls)
	assert.Equal(t, 2, cat.meansCalls)
}
