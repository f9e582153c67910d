package fusion

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/couchcryptid/diversity-predict-service/internal/domain"
)

// Tensor is a dense parameter array in row-major order.
type Tensor struct {
	Shape []int
	Data  []float64
}

func (t Tensor) size() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// StateDict maps PyTorch parameter names to tensors.
type StateDict map[string]Tensor

// Image geometry expected by the image branch.
const (
	ImageChannels = 3
	ImageSize     = 256

	flatFeatures = 8 * 32 * 32
)

// layout lists every parameter of the network with its shape.
var layout = []struct {
	name  string
	shape []int
}{
	{"image_conv.0.weight", []int{32, 3, 3, 3}},
	{"image_conv.0.bias", []int{32}},
	{"image_conv.3.weight", []int{16, 32, 3, 3}},
	{"image_conv.3.bias", []int{16}},
	{"image_conv.6.weight", []int{8, 16, 3, 3}},
	{"image_conv.6.bias", []int{8}},
	{"image_fc.0.weight", []int{64, flatFeatures}},
	{"image_fc.0.bias", []int{64}},
	{"tabular_fc.0.weight", []int{64, domain.FeatureCount}},
	{"tabular_fc.0.bias", []int{64}},
	{"tabular_fc.2.weight", []int{32, 64}},
	{"tabular_fc.2.bias", []int{32}},
	{"fusion.0.weight", []int{128, 96}},
	{"fusion.0.bias", []int{128}},
	{"fusion.3.weight", []int{2, 128}},
	{"fusion.3.bias", []int{2}},
}

// Validate checks that sd holds exactly the parameters of the network with
// the expected shapes.
func (sd StateDict) Validate() error {
	for _, p := range layout {
		t, ok := sd[p.name]
		if !ok {
			return fmt.Errorf("%w: missing parameter %s", domain.ErrShapeMismatch, p.name)
		}
		if !slices.Equal(t.Shape, p.shape) {
			return fmt.Errorf("%w: parameter %s has shape %v, want %v", domain.ErrShapeMismatch, p.name, t.Shape, p.shape)
		}
		if len(t.Data) != t.size() {
			return fmt.Errorf("%w: parameter %s holds %d values for shape %v", domain.ErrShapeMismatch, p.name, len(t.Data), t.Shape)
		}
	}
	if len(sd) != len(layout) {
		for name := range sd {
			if !isKnownParameter(name) {
				return fmt.Errorf("%w: unexpected parameter %s", domain.ErrShapeMismatch, name)
			}
		}
	}
	return nil
}

func isKnownParameter(name string) bool {
	for _, p := range layout {
		if p.name == name {
			return true
		}
	}
	return false
}

// RandomWeights draws parameters the way PyTorch initialises Conv2d and
// Linear layers: uniform in ±1/sqrt(fan_in). The same seed always yields the
// same weights.
func RandomWeights(seed uint64) StateDict {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	sd := make(StateDict, len(layout))

	fanIn := 0
	for _, p := range layout {
		t := Tensor{Shape: slices.Clone(p.shape)}
		if len(p.shape) > 1 {
			fanIn = 1
			for _, d := range p.shape[1:] {
				fanIn *= d
			}
		}
		bound := 1 / math.Sqrt(float64(fanIn))
		t.Data = make([]float64, t.size())
		for i := range t.Data {
			t.Data[i] = (rng.Float64()*2 - 1) * bound
		}
		sd[p.name] = t
	}
	return sd
}
