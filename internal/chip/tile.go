package chip

import (
	"errors"
	"fmt"

	"github.com/ironsheep/geochip/internal/detection"
	"github.com/ironsheep/geochip/internal/raster"
)

// ErrInvalidSize is returned when a requested chip size is not positive.
var ErrInvalidSize = errors.New("chip size must be positive")

// Size is a chip height and width in pixels.
type Size struct {
	Height int `json:"height" yaml:"height"`
	Width  int `json:"width" yaml:"width"`
}

// Validate rejects non-positive dimensions.
func (s Size) Validate() error {
	if s.Height <= 0 || s.Width <= 0 {
		return fmt.Errorf("%w: got %dx%d", ErrInvalidSize, s.Height, s.Width)
	}
	return nil
}

// TopLeft is a chip's top-left corner in padded-image pixels.
type TopLeft struct {
	Y int `json:"y"`
	X int `json:"x"`
}

// Grid is the regular chip layout for one image and one chip size.
//
// The image is conceptually padded on the bottom and right only, up to a
// whole number of chips per axis, so chip (row, col) starts at
// (row*Tile.Height, col*Tile.Width) in both padded and original coordinates.
type Grid struct {
	Tile        Size
	ImageHeight int
	ImageWidth  int
	Channels    int
	NumHeight   int
	NumWidth    int
}

// NewGrid computes the chip layout for r.
func NewGrid(r raster.Raster, size Size) (Grid, error) {
	if err := size.Validate(); err != nil {
		return Grid{}, err
	}
	if err := r.Validate(); err != nil {
		return Grid{}, err
	}
	return Layout(r.Height, r.Width, r.Channels, size)
}

// Layout computes the chip layout for an image of the given shape without
// needing its pixels.
func Layout(height, width, channels int, size Size) (Grid, error) {
	if err := size.Validate(); err != nil {
		return Grid{}, err
	}
	if height <= 0 || width <= 0 || channels <= 0 {
		return Grid{}, fmt.Errorf("%w: shape (%d, %d, %d)", raster.ErrEmpty, height, width, channels)
	}

	return Grid{
		Tile:        size,
		ImageHeight: height,
		ImageWidth:  width,
		Channels:    channels,
		NumHeight:   ceilDiv(height, size.Height),
		NumWidth:    ceilDiv(width, size.Width),
	}, nil
}

// Len returns the number of chips in the grid.
func (g Grid) Len() int {
	return g.NumHeight * g.NumWidth
}

// PaddedHeight is the image height after bottom padding.
func (g Grid) PaddedHeight() int {
	return g.Tile.Height * g.NumHeight
}

// PaddedWidth is the image width after right padding.
func (g Grid) PaddedWidth() int {
	return g.Tile.Width * g.NumWidth
}

// Index returns the linear chip index of (row, col).
func (g Grid) Index(row, col int) int {
	return row*g.NumWidth + col
}

// RowCol splits a linear chip index into (row, col).
func (g Grid) RowCol(i int) (int, int) {
	return i / g.NumWidth, i % g.NumWidth
}

// TopLeft returns the top-left corner of chip i.
func (g Grid) TopLeft(i int) TopLeft {
	row, col := g.RowCol(i)
	return TopLeft{Y: row * g.Tile.Height, X: col * g.Tile.Width}
}

// Chip copies chip i out of r. Samples that fall in the bottom/right
// padding are set to nodata.
func (g Grid) Chip(r raster.Raster, i int, nodata uint8) raster.Raster {
	tl := g.TopLeft(i)
	rows := min(g.Tile.Height, r.Height-tl.Y)
	cols := min(g.Tile.Width, r.Width-tl.X)

	var c raster.Raster
	if rows < g.Tile.Height || cols < g.Tile.Width {
		c = raster.Filled(g.Tile.Height, g.Tile.Width, g.Channels, nodata)
	} else {
		c = raster.New(g.Tile.Height, g.Tile.Width, g.Channels)
	}

	n := cols * g.Channels
	start := tl.X * g.Channels
	for y := 0; y < rows; y++ {
		copy(c.Row(y)[:n], r.Row(tl.Y + y)[start:start+n])
	}
	return c
}

// Meta returns the grid description written alongside chips.
func (g Grid) Meta() Meta {
	return Meta{
		PaddedHeight: g.PaddedHeight(),
		PaddedWidth:  g.PaddedWidth(),
		NumHeight:    g.NumHeight,
		NumWidth:     g.NumWidth,
		ChipHeight:   g.Tile.Height,
		ChipWidth:    g.Tile.Width,
		Channels:     g.Channels,
	}
}

// Meta describes a chipping run well enough to rebuild the grid.
type Meta struct {
	PaddedHeight int `json:"padded_image_height"`
	PaddedWidth  int `json:"padded_image_width"`
	NumHeight    int `json:"num_height_chips"`
	NumWidth     int `json:"num_width_chips"`
	ChipHeight   int `json:"chip_height"`
	ChipWidth    int `json:"chip_width"`
	Channels     int `json:"channels"`

	// Thinning is present only when blank chips were discarded.
	*Thinning
}

// Thinning records which chips the blank filter removed, by their index
// in the unfiltered grid.
type Thinning struct {
	NumThinned   int   `json:"num_thinned"`
	ThinnedChips []int `json:"thinned_chips"`
}

// Options controls padding and blank-chip filtering.
type Options struct {
	// NoData is the sample value used for padding.
	NoData uint8

	// DiscardBlank drops chips made entirely of 0 or entirely of 255.
	DiscardBlank bool
}

// Set is an in-memory chipping result. Chips and TopLefts share indices.
type Set struct {
	Chips    []raster.Raster
	TopLefts []TopLeft
	Meta     Meta
}

// Len returns the number of chips.
func (s *Set) Len() int {
	return len(s.Chips)
}

// Chip returns chip i.
func (s *Set) Chip(i int) (raster.Raster, error) {
	if i < 0 || i >= len(s.Chips) {
		return raster.Raster{}, fmt.Errorf("chip %d out of range [0, %d)", i, len(s.Chips))
	}
	return s.Chips[i], nil
}

// Offsets converts the top-lefts for untiling.
func (s *Set) Offsets() []detection.Offset {
	return Offsets(s.TopLefts)
}

// Offsets converts top-left corners into detection offsets.
func Offsets(tls []TopLeft) []detection.Offset {
	out := make([]detection.Offset, len(tls))
	for i, tl := range tls {
		out[i] = detection.Offset{Y: tl.Y, X: tl.X}
	}
	return out
}

// Tile splits r into equal chips of the given size.
//
// The image is padded on the bottom and right with opts.NoData so every
// chip is exactly size.Height x size.Width x channels. Chips are numbered
// row-major (outer loop over chip rows, inner over chip columns) and
// TopLefts follows the same order.
//
// With opts.DiscardBlank, blank chips (see IsBlank) are removed from both
// Chips and TopLefts, keeping the relative order of the survivors, and the
// removed indices are recorded in Meta.Thinning.
//
// # Errors
//
//   - ErrInvalidSize if either chip dimension is not positive
//   - raster.ErrEmpty or raster.ErrShape if r is not a valid raster
func Tile(r raster.Raster, size Size, opts Options) (*Set, error) {
	g, err := NewGrid(r, size)
	if err != nil {
		return nil, err
	}

	n := g.Len()
	set := &Set{
		Chips:    make([]raster.Raster, 0, n),
		TopLefts: make([]TopLeft, 0, n),
		Meta:     g.Meta(),
	}

	var thinned []int
	for i := 0; i < n; i++ {
		c := g.Chip(r, i, opts.NoData)
		if opts.DiscardBlank && IsBlank(c) {
			thinned = append(thinned, i)
			continue
		}
		set.Chips = append(set.Chips, c)
		set.TopLefts = append(set.TopLefts, g.TopLeft(i))
	}

	if opts.DiscardBlank {
		set.Meta.Thinning = newThinning(thinned)
	}

	return set, nil
}

func newThinning(idx []int) *Thinning {
	if idx == nil {
		idx = []int{}
	}
	return &Thinning{NumThinned: len(idx), ThinnedChips: idx}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
