package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/geochip/internal/chip"
	"github.com/ironsheep/geochip/internal/raster"
)

// ChipPreviewResult is one chip rendered exactly as the model receives it,
// padding included.
type ChipPreviewResult struct {
	Index       int    `json:"chip_index"`
	Top         int    `json:"top"`
	Left        int    `json:"left"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Blank       bool   `json:"blank"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// ChipPreview extracts chip index of r with the given chip size and
// no-data value, optionally rescales it, and returns it as base64 PNG.
// Index is in the unfiltered row-major numbering.
func ChipPreview(r raster.Raster, size chip.Size, index int, nodata uint8, scale float64) (*ChipPreviewResult, error) {
	g, err := chip.NewGrid(r, size)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= g.Len() {
		return nil, fmt.Errorf("chip index %d outside grid of %d chips", index, g.Len())
	}

	c := g.Chip(r, index, nodata)
	img, err := c.ToImage()
	if err != nil {
		return nil, err
	}

	if scale != 1.0 && scale > 0 {
		newWidth := max(1, int(float64(size.Width)*scale))
		newHeight := max(1, int(float64(size.Height)*scale))
		img = imaging.Resize(img, newWidth, newHeight, imaging.Lanczos)
	}

	encoded, err := encodePNG(img)
	if err != nil {
		return nil, err
	}

	tl := g.TopLeft(index)
	return &ChipPreviewResult{
		Index:       index,
		Top:         tl.Y,
		Left:        tl.X,
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		Blank:       chip.IsBlank(c),
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

func encodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
