package earthengine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes requested for Earth Engine access.
var Scopes = []string{
	"https://www.googleapis.com/auth/earthengine",
	"https://www.googleapis.com/auth/cloud-platform",
}

// NewTokenSource loads service-account credentials from credentialsFile, or
// Application Default Credentials when it is empty.
func NewTokenSource(ctx context.Context, credentialsFile string) (oauth2.TokenSource, error) {
	if credentialsFile == "" {
		ts, err := google.DefaultTokenSource(ctx, Scopes...)
		if err != nil {
			return nil, fmt.Errorf("default credentials: %w", err)
		}
		return ts, nil
	}

	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", credentialsFile, err)
	}
	return creds.TokenSource, nil
}

// NewHTTPClient returns an HTTP client that authorises every request with
// tokens from ts and gives up after timeout.
func NewHTTPClient(ctx context.Context, ts oauth2.TokenSource, timeout time.Duration) *http.Client {
	c := oauth2.NewClient(ctx, ts)
	c.Timeout = timeout
	return c
}

// WaitForToken fetches a first token, retrying with b until it succeeds, b
// gives up, or ctx ends. It runs once at startup so credential problems
// surface before the server accepts traffic.
func WaitForToken(ctx context.Context, ts oauth2.TokenSource, b backoff.BackOff, logger *slog.Logger) error {
	attempt := 0
	op := func() error {
		attempt++
		if _, err := ts.Token(); err != nil {
			logger.Warn("earth engine token unavailable", "attempt", attempt, "error", err)
			return err
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("obtain earth engine token after %d attempts: %w", attempt, err)
	}
	return nil
}
