package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all service settings. Values come from defaults, then an
// optional YAML file named by CONFIG_FILE, then environment variables.
type Config struct {
	HTTPAddr           string        `yaml:"httpAddr"`
	LogLevel           string        `yaml:"logLevel"`
	LogFormat          string        `yaml:"logFormat"`
	ShutdownTimeout    time.Duration `yaml:"shutdownTimeout"`
	CORSAllowedOrigins []string      `yaml:"corsAllowedOrigins"`

	// Model artifacts produced by the training pipeline.
	ModelWeightsPath string `yaml:"modelWeightsPath"`
	ScalerPath       string `yaml:"scalerPath"`

	// Earth Engine configuration.
	EEProject         string        `yaml:"eeProject"`
	EEBaseURL         string        `yaml:"eeBaseUrl"`
	EECollection      string        `yaml:"eeCollection"`
	EECredentialsFile string        `yaml:"eeCredentialsFile"`
	EETimeout         time.Duration `yaml:"eeTimeout"`

	// Composite parameters.
	MaxCloudPercent    float64 `yaml:"maxCloudPercent"`
	RegionBufferMeters float64 `yaml:"regionBufferMeters"`
	ReduceScaleMeters  float64 `yaml:"reduceScaleMeters"`

	// Imagery resilience.
	BreakerMaxFailures int           `yaml:"breakerMaxFailures"`
	BreakerOpenTimeout time.Duration `yaml:"breakerOpenTimeout"`
}

func defaults() Config {
	return Config{
		HTTPAddr:           ":8080",
		LogLevel:           "info",
		LogFormat:          "json",
		ShutdownTimeout:    10 * time.Second,
		CORSAllowedOrigins: []string{"*"},
		ModelWeightsPath:   "model/fusion.safetensors",
		ScalerPath:         "model/scaler.json",
		EEBaseURL:          "https://earthengine.googleapis.com/v1",
		EECollection:       "COPERNICUS/S2_SR_HARMONIZED",
		EETimeout:          60 * time.Second,
		MaxCloudPercent:    20,
		RegionBufferMeters: 50,
		ReduceScaleMeters:  10,
		BreakerMaxFailures: 5,
		BreakerOpenTimeout: 30 * time.Second,
	}
}

// Load reads configuration, applying defaults where unset. A .env file in
// the working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read CONFIG_FILE: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse CONFIG_FILE %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	c.HTTPAddr = sharedcfg.EnvOrDefault("HTTP_ADDR", c.HTTPAddr)
	c.LogLevel = sharedcfg.EnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.LogFormat = sharedcfg.EnvOrDefault("LOG_FORMAT", c.LogFormat)
	c.ModelWeightsPath = sharedcfg.EnvOrDefault("MODEL_WEIGHTS_PATH", c.ModelWeightsPath)
	c.ScalerPath = sharedcfg.EnvOrDefault("SCALER_PATH", c.ScalerPath)
	c.EEProject = sharedcfg.EnvOrDefault("EE_PROJECT", c.EEProject)
	c.EEBaseURL = sharedcfg.EnvOrDefault("EE_BASE_URL", c.EEBaseURL)
	c.EECollection = sharedcfg.EnvOrDefault("EE_COLLECTION", c.EECollection)
	c.EECredentialsFile = sharedcfg.EnvOrDefault("EE_CREDENTIALS_FILE", c.EECredentialsFile)

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORSAllowedOrigins = sharedcfg.ParseBrokers(v)
	}

	var errs []error
	// The shared parser defaults to 10s, which would mask a value from the file.
	if os.Getenv("SHUTDOWN_TIMEOUT") != "" {
		d, err := sharedcfg.ParseShutdownTimeout()
		if err != nil {
			errs = append(errs, err)
		} else {
			c.ShutdownTimeout = d
		}
	}

	errs = append(errs,
		setDuration(&c.EETimeout, "EE_TIMEOUT"),
		setDuration(&c.BreakerOpenTimeout, "BREAKER_OPEN_TIMEOUT"),
		setFloat(&c.MaxCloudPercent, "MAX_CLOUD_PERCENT"),
		setFloat(&c.RegionBufferMeters, "REGION_BUFFER_METERS"),
		setFloat(&c.ReduceScaleMeters, "REDUCE_SCALE_METERS"),
		setInt(&c.BreakerMaxFailures, "BREAKER_MAX_FAILURES"),
	)
	return errors.Join(errs...)
}

func (c *Config) validate() error {
	switch {
	case c.EEProject == "":
		return errors.New("EE_PROJECT is required")
	case c.ModelWeightsPath == "":
		return errors.New("MODEL_WEIGHTS_PATH is required")
	case c.ScalerPath == "":
		return errors.New("SCALER_PATH is required")
	case c.ShutdownTimeout <= 0:
		return errors.New("invalid SHUTDOWN_TIMEOUT: must be positive")
	case c.EETimeout <= 0:
		return errors.New("invalid EE_TIMEOUT: must be positive")
	case c.BreakerOpenTimeout <= 0:
		return errors.New("invalid BREAKER_OPEN_TIMEOUT: must be positive")
	case c.MaxCloudPercent <= 0 || c.MaxCloudPercent > 100:
		return errors.New("invalid MAX_CLOUD_PERCENT: must be in (0, 100]")
	case c.RegionBufferMeters <= 0:
		return errors.New("invalid REGION_BUFFER_METERS: must be positive")
	case c.ReduceScaleMeters <= 0:
		return errors.New("invalid REDUCE_SCALE_METERS: must be positive")
	case c.BreakerMaxFailures < 1:
		return errors.New("invalid BREAKER_MAX_FAILURES: must be at least 1")
	}
	return nil
}

func setDuration(dst *time.Duration, name string) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = d
	return nil
}

func setFloat(dst *float64, name string) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = f
	return nil
}

func setInt(dst *int, name string) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = n
	return nil
}
