// Package domain models the inputs and intermediate values of a diversity
// prediction: a coordinate, the Sentinel-2 composite summarised around it, and
// the feature vector handed to the fusion network.
//
// # Imagery Source
//
// Scenes come from the Copernicus Sentinel-2 surface reflectance collection
// (COPERNICUS/S2_SR_HARMONIZED) served by Google Earth Engine. For each
// request the catalog filters the collection to a small square around the
// point, to the current UTC calendar month, and to scenes whose
// CLOUDY_PIXEL_PERCENTAGE is below the configured threshold (20 by default).
// The per-pixel median of the survivors is the composite.
//
// # Bands and Indices
//
//	B4 red | B3 green | B2 blue | B8 near-infrared
//
// Reflectance is stored as integers scaled by 10000, so the thumbnail renders
// the range [0, 3000] to 8-bit RGB. Indices are computed per pixel on the
// composite:
//
//	NDVI = (B8 - B4) / (B8 + B4)
//	NDWI = (B3 - B8) / (B3 + B8)
//	EVI  = 2.5 * (B8 - B4) / (B8 + 6*B4 - 7.5*B2 + 1)
//
// EVI is evaluated on the scaled integers, matching the data the network was
// trained on.
//
// # Feature Vector
//
// The network consumes nine values in a fixed order:
//
//	[R, G, B, NIR, NDVI, EVI, NDWI, sin(month), cos(month)]
//
// R, G and B are the channel means of the rendered thumbnail in [0, 1]. NIR
// and the indices are region means at 10 m resolution. The month is encoded
// on the unit circle so December and January are neighbours. See
// [AssembleFeatures].
//
// # Missing Reductions
//
// A region mean can be absent (or null) when every pixel in the region is
// masked. Such values are replaced by 0.0 rather than failing the request;
// the replaced keys are reported in [RawFeatures.Defaulted]. See [MeanOrZero].
package domain
