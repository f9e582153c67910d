package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/diversity-predict-service/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

const (
	maxBodyBytes = 1 << 20
	// writeSlack leaves room to encode the response after the prediction
	// deadline has passed.
	writeSlack = 10 * time.Second
)

// PredictionService produces diversity estimates and reports readiness.
type PredictionService interface {
	sharedobs.ReadinessChecker
	Predict(ctx context.Context, c domain.Coordinate) (domain.Prediction, error)
}

// Server exposes the prediction API alongside health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /predict, /ping, /healthz, /readyz,
// and /metrics routes. CORS applies to every route. Each prediction runs under
// predictTimeout and the write deadline is set just beyond it.
func NewServer(addr string, svc PredictionService, allowedOrigins []string, predictTimeout time.Duration, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr: addr,
			Handler: cors.New(cors.Options{
				AllowedOrigins: allowedOrigins,
				AllowedMethods: []string{http.MethodGet, http.MethodPost},
				AllowedHeaders: []string{"Content-Type"},
			}).Handler(mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: predictTimeout + writeSlack,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("POST /predict", handlePredict(svc, predictTimeout))
	mux.HandleFunc("GET /ping", handlePing)
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(svc))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// predictRequest accepts "lon" as an alias of "lng".
type predictRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
	Lon *float64 `json:"lon"`
}

func (r predictRequest) coordinate() (domain.Coordinate, error) {
	lon := r.Lng
	if lon == nil {
		lon = r.Lon
	}
	if r.Lat == nil || lon == nil {
		return domain.Coordinate{}, errors.New("lat and lng are required")
	}
	return domain.NewCoordinate(*r.Lat, *lon)
}

func handlePredict(svc PredictionService, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req predictRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		c, err := req.coordinate()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		pred, err := svc.Predict(ctx, c)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, domain.ErrInvalidCoordinate) {
				status = http.StatusBadRequest
			}
			writeError(w, status, err.Error())
			return
		}
		sharedobs.WriteJSON(w, http.StatusOK, pred)
	}
}

func handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
