package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConv2d_IdentityKernel(t *testing.T) {
	c := &conv2d{in: 1, out: 1, weight: []float64{0, 0, 0, 0, 1, 0, 0, 0, 0}, bias: []float64{0.5}}
	x := []float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}

	y := c.forward(x, 3, 3)
	for i := range x {
		assert.InDelta(t, x[i]+0.5, y[i], 1e-12)
	}
}

func TestConv2d_ZeroPadding(t *testing.T) {
	ones := make([]float64, 9)
	for i := range ones {
		ones[i] = 1
	}
	c := &conv2d{in: 1, out: 1, weight: ones, bias: []float64{0}}
	x := []float64{
		1, 1, 1,
		1, 1, 1,
		1, 1, 1,
	}

	y := c.forward(x, 3, 3)
	want := []float64{
		4, 6, 4,
		6, 9, 6,
		4, 6, 4,
	}
	assert.Equal(t, want, y)
}

func TestConv2d_CrossCorrelation(t *testing.T) {
	// Kernel picks the left neighbour: out[y][x] = in[y][x-1].
	c := &conv2d{in: 1, out: 1, weight: []float64{0, 0, 0, 1, 0, 0, 0, 0, 0}, bias: []float64{0}}
	x := []float64{
		1, 2, 3,
		4, 5, 6,
	}

	y := c.forward(x, 2, 3)
	assert.Equal(t, []float64{0, 1, 2, 0, 4, 5}, y)
}

func TestConv2d_SumsInputChannels(t *testing.T) {
	center := []float64{0, 0, 0, 0, 1, 0, 0, 0, 0}
	weight := append(append([]float64{}, center...), center...)
	c := &conv2d{in: 2, out: 1, weight: weight, bias: []float64{0}}

	x := []float64{1, 2, 3, 4, 10, 20, 30, 40}
	y := c.forward(x, 2, 2)
	assert.Equal(t, []float64{11, 22, 33, 44}, y)
}

func TestMaxPool2(t *testing.T) {
	x := []float64{
		1, 2, 5, 6,
		3, 4, 8, 7,
		-1, -2, 0, 0,
		-3, -4, 0, 9,
	}

	y, h, w := maxPool2(x, 1, 4, 4)
	assert.Equal(t, 2, h)
	assert.Equal(t, 2, w)
	assert.Equal(t, []float64{4, 8, -1, 9}, y)
}

func TestLinear(t *testing.T) {
	l := newLinear(2, 3, []float64{
		1, 0, -1,
		0.5, 0.5, 0.5,
	}, []float64{1, -1})

	y := l.forward([]float64{2, 4, 6})
	assert.InDeltaSlice(t, []float64{-3, 5}, y, 1e-12)
}

func TestRelu(t *testing.T) {
	assert.Equal(t, []float64{0, 0, 2.5}, relu([]float64{-1, 0, 2.5}))
}
