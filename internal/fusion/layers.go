package fusion

import "gonum.org/v1/gonum/mat"

// conv2d is a 3x3, stride 1, zero-padding 1 convolution over CHW planes.
type conv2d struct {
	in, out int
	weight  []float64 // [out][in][3][3]
	bias    []float64 // [out]
}

func (c *conv2d) forward(x []float64, h, w int) []float64 {
	n := h * w
	y := make([]float64, c.out*n)

	for o := 0; o < c.out; o++ {
		plane := y[o*n : (o+1)*n]
		for i := range plane {
			plane[i] = c.bias[o]
		}

		for ci := 0; ci < c.in; ci++ {
			src := x[ci*n : (ci+1)*n]
			k := c.weight[(o*c.in+ci)*9 : (o*c.in+ci+1)*9]

			for ky := 0; ky < 3; ky++ {
				dy := ky - 1
				y0, y1 := max(0, -dy), min(h, h-dy)
				for kx := 0; kx < 3; kx++ {
					wv := k[ky*3+kx]
					if wv == 0 {
						continue
					}
					dx := kx - 1
					x0, x1 := max(0, -dx), min(w, w-dx)
					for row := y0; row < y1; row++ {
						dst := plane[row*w : (row+1)*w]
						in := src[(row+dy)*w : (row+dy+1)*w]
						for col := x0; col < x1; col++ {
							dst[col] += wv * in[col+dx]
						}
					}
				}
			}
		}
	}
	return y
}

// maxPool2 halves each spatial dimension of a CHW tensor.
func maxPool2(x []float64, channels, h, w int) ([]float64, int, int) {
	oh, ow := h/2, w/2
	y := make([]float64, channels*oh*ow)
	for c := 0; c < channels; c++ {
		src := x[c*h*w : (c+1)*h*w]
		dst := y[c*oh*ow : (c+1)*oh*ow]
		for r := 0; r < oh; r++ {
			top := src[(2*r)*w:]
			bottom := src[(2*r+1)*w:]
			for col := 0; col < ow; col++ {
				dst[r*ow+col] = max(top[2*col], top[2*col+1], bottom[2*col], bottom[2*col+1])
			}
		}
	}
	return y, oh, ow
}

// linear is a fully connected layer y = Wx + b with W shaped [out, in].
type linear struct {
	weight *mat.Dense
	bias   *mat.VecDense
}

func newLinear(out, in int, weight, bias []float64) linear {
	return linear{
		weight: mat.NewDense(out, in, weight),
		bias:   mat.NewVecDense(out, bias),
	}
}

func (l linear) forward(x []float64) []float64 {
	out, _ := l.weight.Dims()
	y := mat.NewVecDense(out, nil)
	y.MulVec(l.weight, mat.NewVecDense(len(x), x))
	y.AddVec(y, l.bias)
	return y.RawVector().Data
}

func relu(x []float64) []float64 {
	for i, v := range x {
		if v < 0 {
			x[i] = 0
		}
	}
	return x
}
