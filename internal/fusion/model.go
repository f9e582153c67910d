package fusion

import (
	"fmt"
	"os"

	"github.com/couchcryptid/diversity-predict-service/internal/domain"
)

// Model is the evaluated fusion network. It is read-only after New.
type Model struct {
	conv1, conv2, conv3 conv2d

	imageFC linear
	tab1    linear
	tab2    linear
	fuse    linear
	head    linear
}

// New builds a Model from a state dict, failing with domain.ErrShapeMismatch
// when any parameter is missing or misshapen.
func New(sd StateDict) (*Model, error) {
	if err := sd.Validate(); err != nil {
		return nil, err
	}

	conv := func(prefix string, in, out int) conv2d {
		return conv2d{
			in:     in,
			out:    out,
			weight: cloneData(sd[prefix+".weight"]),
			bias:   cloneData(sd[prefix+".bias"]),
		}
	}
	dense := func(prefix string, out, in int) linear {
		return newLinear(out, in, cloneData(sd[prefix+".weight"]), cloneData(sd[prefix+".bias"]))
	}

	return &Model{
		conv1:   conv("image_conv.0", 3, 32),
		conv2:   conv("image_conv.3", 32, 16),
		conv3:   conv("image_conv.6", 16, 8),
		imageFC: dense("image_fc.0", 64, flatFeatures),
		tab1:    dense("tabular_fc.0", 64, domain.FeatureCount),
		tab2:    dense("tabular_fc.2", 32, 64),
		fuse:    dense("fusion.0", 128, 96),
		head:    dense("fusion.3", 2, 128),
	}, nil
}

func cloneData(t Tensor) []float64 {
	out := make([]float64, len(t.Data))
	copy(out, t.Data)
	return out
}

// Load reads a safetensors parameter file and builds the Model.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open weights: %w", err)
	}
	defer f.Close()

	sd, err := ReadSafetensors(f)
	if err != nil {
		return nil, fmt.Errorf("read weights %s: %w", path, err)
	}
	m, err := New(sd)
	if err != nil {
		return nil, fmt.Errorf("weights %s: %w", path, err)
	}
	return m, nil
}

// Forward evaluates the network in inference mode. image is a CHW tensor of
// 3x256x256 values, tabular holds the nine scaled features.
func (m *Model) Forward(image, tabular []float64) ([2]float64, error) {
	if len(image) != ImageChannels*ImageSize*ImageSize {
		return [2]float64{}, fmt.Errorf("%w: image input has %d values, want %d",
			domain.ErrShapeMismatch, len(image), ImageChannels*ImageSize*ImageSize)
	}
	if len(tabular) != domain.FeatureCount {
		return [2]float64{}, fmt.Errorf("%w: tabular input has %d values, want %d",
			domain.ErrShapeMismatch, len(tabular), domain.FeatureCount)
	}

	h, w := ImageSize, ImageSize
	x := relu(m.conv1.forward(image, h, w))
	x, h, w = maxPool2(x, 32, h, w)
	x = relu(m.conv2.forward(x, h, w))
	x, h, w = maxPool2(x, 16, h, w)
	x = relu(m.conv3.forward(x, h, w))
	x, _, _ = maxPool2(x, 8, h, w)

	img := relu(m.imageFC.forward(x))

	tab := relu(m.tab1.forward(tabular))
	tab = relu(m.tab2.forward(tab))

	joined := make([]float64, 0, len(img)+len(tab))
	joined = append(joined, img...)
	joined = append(joined, tab...)

	out := m.head.forward(relu(m.fuse.forward(joined)))
	return [2]float64{out[0], out[1]}, nil
}

// Predict runs the network on a rendered thumbnail and a scaled feature
// vector.
func (m *Model) Predict(thumb domain.Thumbnail, features domain.FeatureVector) (domain.Prediction, error) {
	if thumb.Width != ImageSize || thumb.Height != ImageSize {
		return domain.Prediction{}, fmt.Errorf("%w: thumbnail is %dx%d, want %dx%d",
			domain.ErrShapeMismatch, thumb.Width, thumb.Height, ImageSize, ImageSize)
	}
	out, err := m.Forward(thumb.Pix, features[:])
	if err != nil {
		return domain.Prediction{}, err
	}
	return domain.Prediction{Alpha: out[0], Beta: out[1]}, nil
}
