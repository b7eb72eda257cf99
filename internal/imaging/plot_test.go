package imaging

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/ironsheep/geochip/internal/detection"
	"github.com/ironsheep/geochip/internal/labels"
)

func TestPlotDetections(t *testing.T) {
	img := createInMemoryImage(200, 200, color.White)
	colors, err := labels.ParseColorMap([]byte(`{"1": "#ff0000"}`))
	if err != nil {
		t.Fatalf("ParseColorMap failed: %v", err)
	}
	scheme := &labels.Scheme{Names: labels.Map{1: "plastic"}, Colors: colors}

	m := &detection.Merged{
		ImageID: "img",
		Boxes:   []detection.Box{{Top: 100, Left: 50, Bottom: 150, Right: 120}},
		Scores:  []float32{0.87},
		Classes: []uint16{1},
	}

	out := PlotDetections(img, m, scheme, 3)

	if out.Bounds() != img.Bounds() {
		t.Fatalf("bounds changed: got %v, want %v", out.Bounds(), img.Bounds())
	}

	want := color.RGBA{255, 0, 0, 255}
	for _, p := range [][2]int{{60, 149}, {50, 130}, {119, 130}, {85, 148}} {
		if got := out.RGBAAt(p[0], p[1]); got != want {
			t.Errorf("outline pixel %v: got %v, want %v", p, got, want)
		}
	}
	if got := out.RGBAAt(85, 130); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("box interior changed: got %v", got)
	}

	// the caption tab is filled with the class colour and carries black text
	sawText := false
	for y := 100; y < 113; y++ {
		for x := 50; x < 50+7*len("plastic, 0.87"); x++ {
			if out.RGBAAt(x, y) == (color.RGBA{0, 0, 0, 255}) {
				sawText = true
			}
		}
	}
	if !sawText {
		t.Error("caption text not drawn")
	}

	// the source image is left untouched
	if r, g, b := rgbAt(img, 50, 130); r != 255 || g != 255 || b != 255 {
		t.Errorf("source image modified: (%d,%d,%d)", r, g, b)
	}
}

func TestPlotDetections_ClipsAndNoOutline(t *testing.T) {
	img := createInMemoryImage(50, 50, color.White)
	m := &detection.Merged{
		Boxes:   []detection.Box{{Top: 10, Left: 10, Bottom: 80, Right: 90}},
		Scores:  []float32{0.5},
		Classes: []uint16{9},
	}
	white := color.RGBA{255, 255, 255, 255}

	// the box runs past the canvas on two sides
	out := PlotDetections(img, m, nil, 4)
	if got := out.RGBAAt(10, 40); got == white {
		t.Error("left outline not drawn")
	}

	out = PlotDetections(img, m, nil, 0)
	if got := out.RGBAAt(10, 40); got != white {
		t.Errorf("thickness 0 drew an outline: %v", got)
	}
}

func TestSavePlot(t *testing.T) {
	dir := t.TempDir()
	img := createInMemoryImage(20, 20, color.White)

	for _, name := range []string{"a.jpg", "b.png"} {
		path := filepath.Join(dir, name)
		if err := SavePlot(path, img); err != nil {
			t.Fatalf("SavePlot(%s) failed: %v", name, err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("plot %s not written: %v", name, err)
		}
	}

	if err := SavePlot(filepath.Join(dir, "c.unknown"), img); err == nil {
		t.Error("unknown extension should fail")
	}
}
