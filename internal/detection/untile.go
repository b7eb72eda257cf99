package detection

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrOffsetMissing is returned when a detection map refers to a chip
	// index that has no recorded top-left offset.
	ErrOffsetMissing = errors.New("no offset recorded for chip")

	// ErrChipSize is returned for non-positive chip dimensions.
	ErrChipSize = errors.New("chip dimensions must be positive")
)

// Untile maps every chip's normalised detections back into absolute pixel
// coordinates of the source image and merges them into one result.
//
// Parameters:
//   - imageID: identifier carried on the result (usually the file base name).
//   - dets: sparse chip-index to detections map. Missing indices contribute
//     nothing.
//   - offsets: top-left corner of every chip, indexed like the chips that were
//     sent for inference.
//   - chipHeight, chipWidth: chip size in pixels used to denormalise boxes.
//
// Each box (ymin, xmin, ymax, xmax) becomes
//
//	top    = Y + round(ymin * chipHeight)
//	left   = X + round(xmin * chipWidth)
//	bottom = Y + round(ymax * chipHeight)
//	right  = X + round(xmax * chipWidth)
//
// Boxes are not clipped, so detections in the padded margin can extend past
// the original image extent. No deduplication across chips is performed.
func Untile(imageID string, dets Map, offsets []Offset, chipHeight, chipWidth int) (*Merged, error) {
	if chipHeight <= 0 || chipWidth <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrChipSize, chipHeight, chipWidth)
	}

	indices := make([]int, 0, len(dets))
	total := 0
	for i, r := range dets {
		if i < 0 || i >= len(offsets) {
			return nil, fmt.Errorf("%w: index %d of %d", ErrOffsetMissing, i, len(offsets))
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("chip %d: %w", i, err)
		}
		indices = append(indices, i)
		total += r.Len()
	}
	sort.Ints(indices)

	merged := &Merged{
		ImageID: imageID,
		Boxes:   make([]Box, 0, total),
		Scores:  make([]float32, 0, total),
		Classes: make([]uint16, 0, total),
	}

	for _, i := range indices {
		r := dets[i]
		off := offsets[i]
		for j, nb := range r.Boxes {
			px := Denormalize(nb, chipHeight, chipWidth)
			merged.Boxes = append(merged.Boxes, Box{
				Top:    off.Y + px.Top,
				Left:   off.X + px.Left,
				Bottom: off.Y + px.Bottom,
				Right:  off.X + px.Right,
			})
			merged.Scores = append(merged.Scores, r.Score(j))
		}
		merged.Classes = append(merged.Classes, r.Classes...)
	}

	return merged, nil
}

// Denormalize converts a normalised (ymin, xmin, ymax, xmax) box into chip
// pixel coordinates, rounding to the nearest pixel.
func Denormalize(b [4]float64, height, width int) Box {
	h := float64(height)
	w := float64(width)
	return Box{
		Top:    int(math.Round(b[0] * h)),
		Left:   int(math.Round(b[1] * w)),
		Bottom: int(math.Round(b[2] * h)),
		Right:  int(math.Round(b[3] * w)),
	}
}
