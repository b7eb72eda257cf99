package imaging

import (
	"image"
	"image/color"
	"strconv"

	"github.com/anthonynsimon/bild/clone"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/geochip/internal/chip"
)

// ChipGridResult contains the image with chip boundaries drawn on it
type ChipGridResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	NumHeight   int    `json:"num_height_chips"`
	NumWidth    int    `json:"num_width_chips"`
	NumChips    int    `json:"num_chips"`
	PadBottom   int    `json:"pad_bottom"`
	PadRight    int    `json:"pad_right"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

var defaultGridColor = color.RGBA{255, 0, 0, 255}

// ChipGridOverlay draws the chip layout for size over img: a line on every
// internal chip boundary and, if showIndices is set, each chip's row-major
// index in its top-left corner. The padding is not drawn; PadBottom and
// PadRight report how much the tiler would add.
//
// gridColorHex is "#RRGGBB"; an empty or invalid value draws red.
func ChipGridOverlay(img image.Image, size chip.Size, showIndices bool, gridColorHex string) (*ChipGridResult, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	g, err := chip.Layout(height, width, 3, size)
	if err != nil {
		return nil, err
	}

	gridColor := defaultGridColor
	if c, err := colorful.Hex(gridColorHex); err == nil {
		r, gg, b := c.RGB255()
		gridColor = color.RGBA{r, gg, b, 255}
	}

	result := clone.AsRGBA(img)

	for x := size.Width; x < width; x += size.Width {
		for y := 0; y < height; y++ {
			result.SetRGBA(x, y, gridColor)
		}
	}
	for y := size.Height; y < height; y += size.Height {
		for x := 0; x < width; x++ {
			result.SetRGBA(x, y, gridColor)
		}
	}

	if showIndices {
		labelColor := color.RGBA{255, 255, 255, 255}
		bgColor := color.RGBA{0, 0, 0, 180}
		for i := 0; i < g.Len(); i++ {
			tl := g.TopLeft(i)
			drawLabel(result, tl.X+2, tl.Y+2, strconv.Itoa(i), labelColor, bgColor)
		}
	}

	encoded, err := encodePNG(result)
	if err != nil {
		return nil, err
	}

	return &ChipGridResult{
		Width:       width,
		Height:      height,
		NumHeight:   g.NumHeight,
		NumWidth:    g.NumWidth,
		NumChips:    g.Len(),
		PadBottom:   g.PaddedHeight() - height,
		PadRight:    g.PaddedWidth() - width,
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

// drawLabel draws digits with a tiny 3x5 pixel font on a background box.
// Other characters advance the cursor without drawing.
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
	}

	b := img.Bounds()
	const charWidth, labelHeight = 4, 7
	labelWidth := len(text) * charWidth

	set := func(px, py int, c color.RGBA) {
		if image.Pt(px, py).In(b) {
			img.SetRGBA(px, py, c)
		}
	}

	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			set(x+dx, y+dy, bg)
		}
	}

	cx := x
	for _, ch := range text {
		for row, line := range glyphs[ch] {
			for col, pixel := range line {
				if pixel == '1' {
					set(cx+col, y+row, fg)
				}
			}
		}
		cx += charWidth
	}
}
