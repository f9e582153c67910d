package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// prediction service.
type Metrics struct {
	Predictions         *prometheus.CounterVec // labels: outcome={success,invalid_input,no_imagery,shape_mismatch,upstream_error}
	PredictionDuration  prometheus.Histogram
	ForwardPassDuration prometheus.Histogram
	DefaultedFeatures   *prometheus.CounterVec // labels: key
	ModelLoaded         prometheus.Gauge

	// Imagery catalog metrics.
	ImageryRequests    *prometheus.CounterVec   // labels: method={count,thumbnail,reduce}, outcome={success,error}
	ImageryAPIDuration *prometheus.HistogramVec // labels: method
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diversity_predict",
			Name:      "predictions_total",
			Help:      "Prediction requests by outcome.",
		}, []string{"outcome"}),
		PredictionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "diversity_predict",
			Name:      "prediction_duration_seconds",
			Help:      "End-to-end duration of a prediction, imagery included.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		}),
		ForwardPassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "diversity_predict",
			Name:      "forward_pass_duration_seconds",
			Help:      "Duration of one fusion network forward pass.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}),
		DefaultedFeatures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diversity_predict",
			Name:      "defaulted_features_total",
			Help:      "Region means that were missing and replaced by 0.0, by key.",
		}, []string{"key"}),
		ModelLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "diversity_predict",
			Name:      "model_loaded",
			Help:      "1 when the fusion parameters and scaler are loaded.",
		}),
		ImageryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diversity_predict",
			Name:      "imagery_requests_total",
			Help:      "Earth Engine requests by method and outcome.",
		}, []string{"method", "outcome"}),
		ImageryAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "diversity_predict",
			Name:      "imagery_api_duration_seconds",
			Help:      "Earth Engine request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method"}),
	}

	prometheus.MustRegister(
		m.Predictions,
		m.PredictionDuration,
		m.ForwardPassDuration,
		m.DefaultedFeatures,
		m.ModelLoaded,
		m.ImageryRequests,
		m.ImageryAPIDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with no registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		Predictions:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "diversity_predict", Name: "predictions_total"}, []string{"outcome"}),
		PredictionDuration:  prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "diversity_predict", Name: "prediction_duration_seconds"}),
		ForwardPassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "diversity_predict", Name: "forward_pass_duration_seconds"}),
		DefaultedFeatures:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "diversity_predict", Name: "defaulted_features_total"}, []string{"key"}),
		ModelLoaded:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "diversity_predict", Name: "model_loaded"}),
		ImageryRequests:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "diversity_predict", Name: "imagery_requests_total"}, []string{"method", "outcome"}),
		ImageryAPIDuration:  prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "diversity_predict", Name: "imagery_api_duration_seconds"}, []string{"method"}),
	}
}
