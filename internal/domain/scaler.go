package domain

import (
	"encoding/json"
	"fmt"
	"os"
)

// Scaler is a fitted per-feature standardisation: (x - Mean) / Scale.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// IdentityScaler returns a scaler that leaves vectors unchanged.
func IdentityScaler() *Scaler {
	s := &Scaler{Mean: make([]float64, FeatureCount), Scale: make([]float64, FeatureCount)}
	for i := range s.Scale {
		s.Scale[i] = 1
	}
	return s
}

// LoadScaler reads a JSON scaler file written by the training pipeline.
func LoadScaler(path string) (*Scaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scaler: %w", err)
	}

	var s Scaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scaler %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("scaler %s: %w", path, err)
	}

	// Constant features were fitted with zero variance.
	for i, sc := range s.Scale {
		if sc == 0 {
			s.Scale[i] = 1
		}
	}
	return &s, nil
}

func (s *Scaler) validate() error {
	if len(s.Mean) != FeatureCount || len(s.Scale) != FeatureCount {
		return fmt.Errorf("%w: scaler has %d means and %d scales, want %d",
			ErrShapeMismatch, len(s.Mean), len(s.Scale), FeatureCount)
	}
	return nil
}

// Transform standardises v. It fails when the scaler was not fitted on
// FeatureCount features.
func (s *Scaler) Transform(v FeatureVector) (FeatureVector, error) {
	if err := s.validate(); err != nil {
		return FeatureVector{}, err
	}

	var out FeatureVector
	for i := range v {
		out[i] = (v[i] - s.Mean[i]) / s.Scale[i]
	}
	return out, nil
}

// Normalizer turns extracted features into the scaled network input.
type Normalizer struct {
	scaler *Scaler
}

// NewNormalizer creates a Normalizer around a loaded scaler.
func NewNormalizer(scaler *Scaler) *Normalizer {
	return &Normalizer{scaler: scaler}
}

// Normalize assembles the feature vector and applies the scaling transform.
func (n *Normalizer) Normalize(thumb Thumbnail, raw RawFeatures) (FeatureVector, error) {
	scaled, err := n.scaler.Transform(AssembleFeatures(thumb, raw))
	if err != nil {
		return FeatureVector{}, fmt.Errorf("scale features: %w", err)
	}
	return scaled, nil
}
