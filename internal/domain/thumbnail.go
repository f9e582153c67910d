package domain

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"
)

// Thumbnail is a three-channel image in channel-major (CHW) order with
// intensities in [0, 1].
type Thumbnail struct {
	Width  int
	Height int
	Pix    []float64
}

// NewThumbnail allocates a black thumbnail of the given size.
func NewThumbnail(width, height int) Thumbnail {
	return Thumbnail{Width: width, Height: height, Pix: make([]float64, 3*width*height)}
}

// Channel returns the plane for channel c (0 red, 1 green, 2 blue).
func (t Thumbnail) Channel(c int) []float64 {
	n := t.Width * t.Height
	return t.Pix[c*n : (c+1)*n]
}

// ChannelMean returns the mean intensity of channel c.
func (t Thumbnail) ChannelMean(c int) float64 {
	plane := t.Channel(c)
	if len(plane) == 0 {
		return 0
	}
	var sum float64
	for _, v := range plane {
		sum += v
	}
	return sum / float64(len(plane))
}

// DecodeThumbnail decodes a PNG into a size×size Thumbnail. Images of other
// dimensions are resampled bilinearly; alpha is discarded.
func DecodeThumbnail(data []byte, size int) (Thumbnail, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return Thumbnail{}, fmt.Errorf("decode thumbnail: %w", err)
	}

	b := img.Bounds()
	if b.Dx() != size || b.Dy() != size {
		dst := image.NewNRGBA(image.Rect(0, 0, size, size))
		draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		img = dst
		b = dst.Bounds()
	}

	t := NewThumbnail(size, size)
	red, green, blue := t.Channel(0), t.Channel(1), t.Channel(2)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := y*size + x
			red[i] = float64(c.R) / 255
			green[i] = float64(c.G) / 255
			blue[i] = float64(c.B) / 255
		}
	}
	return t, nil
}
