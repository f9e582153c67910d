package domain

import (
	"context"
	"fmt"
	"log/slog"
)

// ExtractOptions tunes the composite query and rendering.
type ExtractOptions struct {
	BufferMeters    float64
	MaxCloudPercent float64
	ScaleMeters     float64
	Thumbnail       ThumbnailSpec
}

// DefaultExtractOptions matches the data the network was trained on.
func DefaultExtractOptions() ExtractOptions {
	return ExtractOptions{
		BufferMeters:    50,
		MaxCloudPercent: 20,
		ScaleMeters:     10,
		Thumbnail: ThumbnailSpec{
			Size:  256,
			Min:   0,
			Max:   3000,
			Bands: []string{BandRed, BandGreen, BandBlue},
		},
	}
}

// Extractor fetches the thumbnail and region statistics for a coordinate.
type Extractor struct {
	catalog ImageryCatalog
	opts    ExtractOptions
	logger  *slog.Logger
}

// NewExtractor creates an Extractor backed by the given catalog.
func NewExtractor(catalog ImageryCatalog, opts ExtractOptions, logger *slog.Logger) *Extractor {
	return &Extractor{catalog: catalog, opts: opts, logger: logger}
}

// Extract builds the current month's composite around c and returns its
// rendered thumbnail and region means. It fails with ErrNoImagery before
// any rendering or reduction when no scene matches.
func (e *Extractor) Extract(ctx context.Context, c Coordinate) (Thumbnail, RawFeatures, error) {
	now := clock.Now().UTC()
	start, end := MonthWindow(now)
	q := SceneQuery{
		Center:          c,
		BufferMeters:    e.opts.BufferMeters,
		Start:           start,
		End:             end,
		MaxCloudPercent: e.opts.MaxCloudPercent,
	}

	n, err := e.catalog.CountScenes(ctx, q)
	if err != nil {
		return Thumbnail{}, RawFeatures{}, fmt.Errorf("count scenes: %w", err)
	}
	if n == 0 {
		return Thumbnail{}, RawFeatures{}, fmt.Errorf("%w at %s for %s", ErrNoImagery, c, start.Format("2006-01"))
	}
	e.logger.Debug("composite scenes found", "coordinate", c.String(), "month", start.Format("2006-01"), "scenes", n)

	png, err := e.catalog.Thumbnail(ctx, q, e.opts.Thumbnail)
	if err != nil {
		return Thumbnail{}, RawFeatures{}, fmt.Errorf("render thumbnail: %w", err)
	}
	thumb, err := DecodeThumbnail(png, e.opts.Thumbnail.Size)
	if err != nil {
		return Thumbnail{}, RawFeatures{}, err
	}

	reduced, err := e.catalog.RegionMeans(ctx, q, e.opts.ScaleMeters)
	if err != nil {
		return Thumbnail{}, RawFeatures{}, fmt.Errorf("reduce region: %w", err)
	}

	raw := NewRawFeatures(int(now.Month()), reduced)
	if len(raw.Defaulted) > 0 {
		e.logger.Warn("region means missing, substituted 0.0",
			"coordinate", c.String(),
			"keys", raw.Defaulted,
		)
	}
	return thumb, raw, nil
}
