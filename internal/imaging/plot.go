package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/anthonynsimon/bild/clone"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/geochip/internal/detection"
	"github.com/ironsheep/geochip/internal/labels"
)

// PlotDetections draws every merged detection on a copy of img: a box
// outline of the given thickness in the class colour and a
// "<class name>, <score>" caption on a filled tab at the box's top-left.
// A thickness of 0 draws captions only. Boxes reaching into the padding
// are clipped to the canvas.
func PlotDetections(img image.Image, m *detection.Merged, scheme *labels.Scheme, thickness int) *image.RGBA {
	canvas := clone.AsRGBA(img)
	face := basicfont.Face7x13

	for i, b := range m.Boxes {
		col := scheme.Color(m.Classes[i])
		if thickness > 0 {
			drawOutline(canvas, b, thickness, col)
		}
		caption := fmt.Sprintf("%s, %.2f", scheme.Name(m.Classes[i]), m.Scores[i])
		drawCaption(canvas, b.Left, b.Top, caption, col, face)
	}
	return canvas
}

func drawOutline(dst *image.RGBA, b detection.Box, t int, c color.RGBA) {
	src := image.NewUniform(c)
	for _, r := range []image.Rectangle{
		image.Rect(b.Left, b.Top, b.Right, b.Top+t),
		image.Rect(b.Left, b.Bottom-t, b.Right, b.Bottom),
		image.Rect(b.Left, b.Top, b.Left+t, b.Bottom),
		image.Rect(b.Right-t, b.Top, b.Right, b.Bottom),
	} {
		draw.Draw(dst, r, src, image.Point{}, draw.Src)
	}
}

func drawCaption(dst *image.RGBA, left, top int, text string, bg color.RGBA, face font.Face) {
	m := face.Metrics()
	w := font.MeasureString(face, text).Ceil()
	h := m.Height.Ceil()
	margin := max(1, (h+19)/20)

	tab := image.Rect(left-margin, top, left+w+margin, top+h+margin)
	draw.Draw(dst, tab, image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.Black,
		Face: face,
		Dot:  fixed.P(left, top+m.Ascent.Ceil()),
	}
	d.DrawString(text)
}

// SavePlot writes a plotted image; the format follows the file extension.
func SavePlot(path string, img image.Image) error {
	if err := imaging.Save(img, path, imaging.JPEGQuality(90)); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}
