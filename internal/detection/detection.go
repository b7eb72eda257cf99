package detection

import (
	"encoding/json"
	"fmt"

	"github.com/x448/float16"
)

// Raw holds one chip's detections as returned by the model, after
// confidence filtering.
//
// The three slices are parallel: entry i of Boxes, Scores and Classes
// describe the same detection. Boxes are normalised to the chip and ordered
// (ymin, xmin, ymax, xmax) at the precision the model reported, so that
// denormalising rounds the exact value. Scores are stored as half floats and
// classes as uint16 to keep per-chip storage small for images with
// thousands of chips.
type Raw struct {
	Boxes   [][4]float64
	Scores  []float16.Float16
	Classes []uint16
}

// Len returns the number of detections.
func (r Raw) Len() int {
	return len(r.Scores)
}

// Score returns detection i's confidence widened to float32.
func (r Raw) Score(i int) float32 {
	return r.Scores[i].Float32()
}

// Validate checks that the parallel slices agree in length.
func (r Raw) Validate() error {
	if len(r.Boxes) != len(r.Scores) || len(r.Classes) != len(r.Scores) {
		return fmt.Errorf("ragged detections: %d boxes, %d scores, %d classes",
			len(r.Boxes), len(r.Scores), len(r.Classes))
	}
	return nil
}

// Map is the sparse chip-index to detections map produced by inference.
// A chip with no detections above threshold has no entry.
type Map map[int]Raw

// Total returns the number of detections across all chips.
func (m Map) Total() int {
	n := 0
	for _, r := range m {
		n += r.Len()
	}
	return n
}

// Offset is a chip's top-left corner in padded-image pixels.
type Offset struct {
	Y int
	X int
}

// Box is an absolute pixel bounding box in the source image.
//
// Coordinates keep the (top, left, bottom, right) order used by the model's
// (ymin, xmin, ymax, xmax) boxes and are not clipped to the image.
type Box struct {
	Top    int
	Left   int
	Bottom int
	Right  int
}

// MarshalJSON encodes the box as a [top, left, bottom, right] array.
func (b Box) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{b.Top, b.Left, b.Bottom, b.Right})
}

// UnmarshalJSON decodes a [top, left, bottom, right] array.
func (b *Box) UnmarshalJSON(data []byte) error {
	var v [4]int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	b.Top, b.Left, b.Bottom, b.Right = v[0], v[1], v[2], v[3]
	return nil
}

// Width returns right - left.
func (b Box) Width() int { return b.Right - b.Left }

// Height returns bottom - top.
func (b Box) Height() int { return b.Bottom - b.Top }

// Merged is the image-space detection set for one source image.
//
// Detections are ordered by ascending chip index and keep their within-chip
// order. Objects spanning a chip border appear once per chip.
type Merged struct {
	ImageID string    `json:"-"`
	Boxes   []Box     `json:"bboxes"`
	Scores  []float32 `json:"scores"`
	Classes []uint16  `json:"classes"`
}

// Len returns the number of detections.
func (m *Merged) Len() int {
	return len(m.Scores)
}

// ClassCounts tallies detections per class id.
func (m *Merged) ClassCounts() map[uint16]int {
	counts := make(map[uint16]int)
	for _, c := range m.Classes {
		counts[c]++
	}
	return counts
}
