package raster

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		r       Raster
		wantErr error
	}{
		{"valid", New(2, 3, 3), nil},
		{"zero height", Raster{Height: 0, Width: 3, Channels: 3}, ErrEmpty},
		{"negative width", Raster{Height: 2, Width: -1, Channels: 3}, ErrEmpty},
		{"zero channels", Raster{Height: 2, Width: 2, Channels: 0}, ErrEmpty},
		{"short buffer", Raster{Height: 2, Width: 2, Channels: 3, Pix: make([]uint8, 11)}, ErrShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAtSetRow(t *testing.T) {
	r := New(2, 3, 3)
	r.Set(1, 2, 0, 7)
	r.Set(1, 2, 2, 9)

	assert.Equal(t, uint8(7), r.At(1, 2, 0))
	assert.Equal(t, uint8(9), r.At(1, 2, 2))
	assert.Equal(t, 9, r.Stride())
	assert.Equal(t, []uint8{0, 0, 0, 0, 0, 0, 7, 0, 9}, r.Row(1))
}

func TestFilled(t *testing.T) {
	r := Filled(4, 4, 3, 255)
	for _, v := range r.Pix {
		require.Equal(t, uint8(255), v)
	}
}

func TestFromImage_DropsAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	img.SetNRGBA(3, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 255})

	r := FromImage(img)

	h, w, c := r.Shape()
	assert.Equal(t, 2, h)
	assert.Equal(t, 4, w)
	assert.Equal(t, 3, c)
	assert.Equal(t, []uint8{10, 20, 30}, r.Pix[r.Offset(1, 3):r.Offset(1, 3)+3])
	assert.Equal(t, []uint8{200, 100, 50}, r.Pix[:3])
}

func TestFromImage_Gray(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	img.SetGray(1, 0, color.Gray{Y: 128})

	r := FromImage(img)
	assert.Equal(t, []uint8{128, 128, 128}, r.Pix[r.Offset(0, 1):r.Offset(0, 1)+3])
}

func TestToImage_RoundTrip(t *testing.T) {
	r := New(3, 5, 3)
	for i := range r.Pix {
		r.Pix[i] = uint8(i)
	}

	img, err := r.ToImage()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 3), img.Bounds())

	back := FromImage(img)
	assert.Equal(t, r.Pix, back.Pix)
}

func TestToImage_Unsupported(t *testing.T) {
	_, err := New(2, 2, 2).ToImage()
	assert.Error(t, err)

	_, err = Raster{}.ToImage()
	assert.ErrorIs(t, err, ErrEmpty)
}
