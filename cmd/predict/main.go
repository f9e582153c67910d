package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/couchcryptid/diversity-predict-service/internal/adapter/earthengine"
	httpadapter "github.com/couchcryptid/diversity-predict-service/internal/adapter/http"
	"github.com/couchcryptid/diversity-predict-service/internal/config"
	"github.com/couchcryptid/diversity-predict-service/internal/domain"
	"github.com/couchcryptid/diversity-predict-service/internal/fusion"
	"github.com/couchcryptid/diversity-predict-service/internal/observability"
	"github.com/couchcryptid/diversity-predict-service/internal/predict"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Model artifacts are required; there is no degraded mode without them.
	model, err := fusion.Load(cfg.ModelWeightsPath)
	if err != nil {
		logger.Error("failed to load model weights", "path", cfg.ModelWeightsPath, "error", err)
		os.Exit(1)
	}
	scaler, err := domain.LoadScaler(cfg.ScalerPath)
	if err != nil {
		logger.Error("failed to load scaler", "path", cfg.ScalerPath, "error", err)
		os.Exit(1)
	}
	metrics.ModelLoaded.Set(1)
	logger.Info("model loaded", "weights", cfg.ModelWeightsPath, "scaler", cfg.ScalerPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ts, err := earthengine.NewTokenSource(ctx, cfg.EECredentialsFile)
	if err != nil {
		logger.Error("failed to load earth engine credentials", "error", err)
		os.Exit(1)
	}
	probe := backoff.NewExponentialBackOff()
	probe.MaxElapsedTime = time.Minute
	if err := earthengine.WaitForToken(ctx, ts, probe, logger); err != nil {
		logger.Error("earth engine authentication failed", "error", err)
		os.Exit(1)
	}

	client := earthengine.NewClient(earthengine.Options{
		Project:    cfg.EEProject,
		BaseURL:    cfg.EEBaseURL,
		Collection: cfg.EECollection,
	}, earthengine.NewHTTPClient(ctx, ts, cfg.EETimeout), metrics, logger)

	breaker := earthengine.NewBreakerCatalog(client, cfg.BreakerMaxFailures, cfg.BreakerOpenTimeout, logger)

	opts := domain.DefaultExtractOptions()
	opts.BufferMeters = cfg.RegionBufferMeters
	opts.MaxCloudPercent = cfg.MaxCloudPercent
	opts.ScaleMeters = cfg.ReduceScaleMeters

	svc := predict.New(
		domain.NewExtractor(breaker, opts, logger),
		domain.NewNormalizer(scaler),
		model,
		breaker,
		logger,
		metrics,
	)

	predictTimeout := earthengine.RequestsPerPrediction * cfg.EETimeout
	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, cfg.CORSAllowedOrigins, predictTimeout, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
