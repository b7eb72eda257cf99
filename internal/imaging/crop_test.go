package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"testing"

	"github.com/ironsheep/geochip/internal/chip"
	"github.com/ironsheep/geochip/internal/raster"
)

func decodeResultImage(t *testing.T, b64 string) image.Image {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode png: %v", err)
	}
	return img
}

func rgbAt(img image.Image, x, y int) (uint8, uint8, uint8) {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}

func TestChipPreview(t *testing.T) {
	r := raster.Filled(30, 50, 3, 90)

	result, err := ChipPreview(r, chip.Size{Height: 20, Width: 20}, 5, 0, 1.0)
	if err != nil {
		t.Fatalf("ChipPreview failed: %v", err)
	}

	// chip 5 is row 1, col 2: rows 20..29 and cols 40..49 are real pixels
	if result.Top != 20 || result.Left != 40 {
		t.Errorf("top-left: got (%d,%d), want (20,40)", result.Top, result.Left)
	}
	if result.Width != 20 || result.Height != 20 {
		t.Errorf("dimensions: got %dx%d, want 20x20", result.Width, result.Height)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}
	if result.Blank {
		t.Error("chip with image content reported blank")
	}

	img := decodeResultImage(t, result.ImageBase64)
	if v, _, _ := rgbAt(img, 5, 5); v != 90 {
		t.Errorf("image pixel: got %d, want 90", v)
	}
	if v, _, _ := rgbAt(img, 15, 15); v != 0 {
		t.Errorf("padding pixel: got %d, want no-data 0", v)
	}
}

func TestChipPreview_Scale(t *testing.T) {
	r := raster.Filled(64, 64, 3, 200)

	result, err := ChipPreview(r, chip.Size{Height: 32, Width: 32}, 0, 0, 0.5)
	if err != nil {
		t.Fatalf("ChipPreview failed: %v", err)
	}
	if result.Width != 16 || result.Height != 16 {
		t.Errorf("scaled dimensions: got %dx%d, want 16x16", result.Width, result.Height)
	}
}

func TestChipPreview_BlankChip(t *testing.T) {
	r := raster.Filled(10, 10, 3, 255)

	result, err := ChipPreview(r, chip.Size{Height: 10, Width: 10}, 0, 255, 1.0)
	if err != nil {
		t.Fatalf("ChipPreview failed: %v", err)
	}
	if !result.Blank {
		t.Error("all-255 chip should be reported blank")
	}
}

func TestChipPreview_Errors(t *testing.T) {
	r := raster.Filled(10, 10, 3, 1)

	if _, err := ChipPreview(r, chip.Size{Height: 5, Width: 5}, 4, 0, 1.0); err == nil {
		t.Error("index past the grid should fail")
	}
	if _, err := ChipPreview(r, chip.Size{Height: 5, Width: 5}, -1, 0, 1.0); err == nil {
		t.Error("negative index should fail")
	}
	if _, err := ChipPreview(r, chip.Size{}, 0, 0, 1.0); err == nil {
		t.Error("zero chip size should fail")
	}
}
