package raster

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

var (
	// ErrEmpty is returned for rasters with a zero or negative dimension.
	ErrEmpty = errors.New("raster is empty")

	// ErrShape is returned when the sample buffer does not match the
	// declared height, width and channel count.
	ErrShape = errors.New("raster sample buffer does not match its shape")
)

// Raster is a height x width x channels array of 8-bit samples stored
// row-major, with the channel axis varying fastest.
type Raster struct {
	Height   int
	Width    int
	Channels int
	Pix      []uint8
}

// New allocates a zeroed raster of the given shape.
func New(height, width, channels int) Raster {
	return Raster{
		Height:   height,
		Width:    width,
		Channels: channels,
		Pix:      make([]uint8, height*width*channels),
	}
}

// Filled allocates a raster with every sample set to v.
func Filled(height, width, channels int, v uint8) Raster {
	r := New(height, width, channels)
	if v != 0 {
		for i := range r.Pix {
			r.Pix[i] = v
		}
	}
	return r
}

// Validate reports whether the raster is a usable 3-dimensional array.
func (r Raster) Validate() error {
	if r.Height <= 0 || r.Width <= 0 || r.Channels <= 0 {
		return fmt.Errorf("%w: shape (%d, %d, %d)", ErrEmpty, r.Height, r.Width, r.Channels)
	}
	if len(r.Pix) != r.Height*r.Width*r.Channels {
		return fmt.Errorf("%w: shape (%d, %d, %d) needs %d samples, got %d",
			ErrShape, r.Height, r.Width, r.Channels, r.Height*r.Width*r.Channels, len(r.Pix))
	}
	return nil
}

// Shape returns (height, width, channels).
func (r Raster) Shape() (int, int, int) {
	return r.Height, r.Width, r.Channels
}

// Stride is the number of samples in one row.
func (r Raster) Stride() int {
	return r.Width * r.Channels
}

// Offset returns the index in Pix of the first sample of pixel (y, x).
func (r Raster) Offset(y, x int) int {
	return y*r.Stride() + x*r.Channels
}

// At returns sample c of pixel (y, x).
func (r Raster) At(y, x, c int) uint8 {
	return r.Pix[r.Offset(y, x)+c]
}

// Set assigns sample c of pixel (y, x).
func (r Raster) Set(y, x, c int, v uint8) {
	r.Pix[r.Offset(y, x)+c] = v
}

// Row returns the samples of row y. The slice aliases Pix.
func (r Raster) Row(y int) []uint8 {
	s := r.Stride()
	return r.Pix[y*s : (y+1)*s]
}

// Bounds returns the raster extent in image coordinates.
func (r Raster) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.Width, r.Height)
}

// FromImage converts any decoded image into a 3-channel RGB raster.
//
// Alpha is dropped without compositing, so a transparent pixel keeps its
// stored colour. Paletted, YCbCr, gray and 16-bit images are normalised
// through imaging.Clone first.
func FromImage(img image.Image) Raster {
	src := imaging.Clone(img)
	b := src.Bounds()
	r := New(b.Dy(), b.Dx(), 3)

	for y := 0; y < r.Height; y++ {
		in := src.Pix[y*src.Stride : y*src.Stride+r.Width*4]
		out := r.Row(y)
		for x := 0; x < r.Width; x++ {
			out[x*3] = in[x*4]
			out[x*3+1] = in[x*4+1]
			out[x*3+2] = in[x*4+2]
		}
	}
	return r
}

// ToImage converts the raster into an image suitable for encoding.
//
// One channel produces *image.Gray, three channels produce an opaque
// *image.NRGBA and four channels are copied as NRGBA directly.
func (r Raster) ToImage() (image.Image, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	switch r.Channels {
	case 1:
		g := image.NewGray(r.Bounds())
		for y := 0; y < r.Height; y++ {
			copy(g.Pix[y*g.Stride:y*g.Stride+r.Width], r.Row(y))
		}
		return g, nil
	case 3, 4:
		n := image.NewNRGBA(r.Bounds())
		for y := 0; y < r.Height; y++ {
			in := r.Row(y)
			out := n.Pix[y*n.Stride:]
			for x := 0; x < r.Width; x++ {
				p := in[x*r.Channels:]
				out[x*4] = p[0]
				out[x*4+1] = p[1]
				out[x*4+2] = p[2]
				out[x*4+3] = 255
				if r.Channels == 4 {
					out[x*4+3] = p[3]
				}
			}
		}
		return n, nil
	default:
		return nil, fmt.Errorf("cannot convert %d-channel raster to an image", r.Channels)
	}
}
