package domain

import "context"

// Band and index names as they appear in catalog responses.
const (
	BandRed   = "B4"
	BandGreen = "B3"
	BandBlue  = "B2"
	BandNIR   = "B8"
	IndexNDVI = "NDVI"
	IndexNDWI = "NDWI"
	IndexEVI  = "EVI"
)

// ThumbnailSpec describes how the composite is rendered to an RGB image.
type ThumbnailSpec struct {
	Size  int      // width and height in pixels
	Min   float64  // reflectance mapped to 0
	Max   float64  // reflectance mapped to 255
	Bands []string // red, green, blue order
}

// ImageryCatalog builds median composites of remote imagery.
type ImageryCatalog interface {
	// CountScenes returns how many scenes pass the query filters.
	CountScenes(ctx context.Context, q SceneQuery) (int, error)

	// Thumbnail renders the composite's bands as an encoded PNG.
	Thumbnail(ctx context.Context, q SceneQuery, spec ThumbnailSpec) ([]byte, error)

	// RegionMeans reduces the composite bands and derived indices to their
	// mean over the query region at the given ground resolution. Values are
	// returned as decoded from the catalog and may be missing or null.
	RegionMeans(ctx context.Context, q SceneQuery, scaleMeters float64) (map[string]any, error)
}
