package domain

import (
	"encoding/json"
	"math"
	"strconv"
)

// FeatureCount is the width of the tabular input of the fusion network.
const FeatureCount = 9

// Positions in a FeatureVector. The order must match the fitted scaler and
// the trained network.
const (
	FeatRed = iota
	FeatGreen
	FeatBlue
	FeatNIR
	FeatNDVI
	FeatEVI
	FeatNDWI
	FeatMonthSin
	FeatMonthCos
)

// FeatureNames labels each position of a FeatureVector.
var FeatureNames = [FeatureCount]string{
	"red", "green", "blue", "nir", "ndvi", "evi", "ndwi", "month_sin", "month_cos",
}

// FeatureVector is the ordered tabular input of the fusion network.
type FeatureVector [FeatureCount]float64

// Slice returns a copy of the vector as a slice.
func (v FeatureVector) Slice() []float64 {
	out := make([]float64, FeatureCount)
	copy(out, v[:])
	return out
}

// RawFeatures holds the region statistics extracted for one request.
type RawFeatures struct {
	Month     int                // calendar month the composite was built for, 1-12
	Means     map[string]float64 // region means keyed by band or index name
	Defaulted []string           // keys whose mean was missing and replaced by 0.0
}

// regionKeys are the reductions read from the catalog response.
var regionKeys = []string{BandRed, BandGreen, BandBlue, BandNIR, IndexNDVI, IndexNDWI, IndexEVI}

// NewRawFeatures applies MeanOrZero to every expected key of a catalog
// reduction.
func NewRawFeatures(month int, reduced map[string]any) RawFeatures {
	rf := RawFeatures{Month: month, Means: make(map[string]float64, len(regionKeys))}
	for _, key := range regionKeys {
		v, ok := MeanOrZero(reduced, key)
		if !ok {
			rf.Defaulted = append(rf.Defaulted, key)
		}
		rf.Means[key] = v
	}
	return rf
}

// MeanOrZero reads a region mean from a catalog reduction. A key that is
// absent, null or not a finite number yields 0.0 and ok=false. This is the
// policy for masked regions, not an error path.
func MeanOrZero(reduced map[string]any, key string) (value float64, ok bool) {
	raw, found := reduced[key]
	if !found || raw == nil {
		return 0, false
	}

	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// EncodeMonth maps a month onto the unit circle. Months outside 1-12 wrap, so
// 13 encodes like 1.
func EncodeMonth(month int) (sin, cos float64) {
	m := ((month-1)%12+12)%12 + 1
	angle := 2 * math.Pi * float64(m) / 12
	return math.Sin(angle), math.Cos(angle)
}

// AssembleFeatures builds the unscaled feature vector from the rendered
// thumbnail and the region statistics.
func AssembleFeatures(thumb Thumbnail, raw RawFeatures) FeatureVector {
	sin, cos := EncodeMonth(raw.Month)

	var v FeatureVector
	v[FeatRed] = thumb.ChannelMean(0)
	v[FeatGreen] = thumb.ChannelMean(1)
	v[FeatBlue] = thumb.ChannelMean(2)
	v[FeatNIR] = raw.Means[BandNIR]
	v[FeatNDVI] = raw.Means[IndexNDVI]
	v[FeatEVI] = raw.Means[IndexEVI]
	v[FeatNDWI] = raw.Means[IndexNDWI]
	v[FeatMonthSin] = sin
	v[FeatMonthCos] = cos
	return v
}
