package labels

import (
	"encoding/json"
	"fmt"
	"image/color"
	"math"
	"os"
	"strconv"

	"github.com/lucasb-eyer/go-colorful"
)

// ColorMap maps class ids to drawing colours.
type ColorMap map[uint16]colorful.Color

// LoadColorMap reads a JSON object of class id to hex colour, e.g.
// {"1": "#e6194b", "2": "#3cb44b"}.
func LoadColorMap(path string) (ColorMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read color map: %w", err)
	}
	return ParseColorMap(data)
}

// ParseColorMap parses colour map JSON.
func ParseColorMap(data []byte) (ColorMap, error) {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse color map: %w", err)
	}

	cm := make(ColorMap, len(raw))
	for k, v := range raw {
		id, err := strconv.ParseUint(k, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid class id %q in color map", k)
		}
		c, err := colorful.Hex(v)
		if err != nil {
			return nil, fmt.Errorf("invalid color %q for class %d: %w", v, id, err)
		}
		cm[uint16(id)] = c
	}
	return cm, nil
}

// goldenAngle spreads consecutive hues as far apart as possible.
const goldenAngle = 137.50776405

// Generated returns a stable colour for a class id with no configured
// colour. Neighbouring ids get clearly different hues.
func Generated(id uint16) colorful.Color {
	h := math.Mod(float64(id)*goldenAngle, 360)
	return colorful.Hsv(h, 0.8, 0.95)
}

// Scheme combines class names and colours for plotting and reports.
// A nil Scheme, or one with empty maps, falls back to numeric names and
// generated colours.
type Scheme struct {
	Names  Map
	Colors ColorMap
}

// Load builds a Scheme from optional label map and colour map files. An
// empty path is skipped.
func Load(labelMapPath, colorMapPath string) (*Scheme, error) {
	s := &Scheme{}
	if labelMapPath != "" {
		m, err := LoadLabelMap(labelMapPath)
		if err != nil {
			return nil, err
		}
		s.Names = m
	}
	if colorMapPath != "" {
		cm, err := LoadColorMap(colorMapPath)
		if err != nil {
			return nil, err
		}
		s.Colors = cm
	}
	return s, nil
}

// Name returns the class name for id.
func (s *Scheme) Name(id uint16) string {
	if s == nil {
		return strconv.Itoa(int(id))
	}
	return s.Names.Name(id)
}

// Color returns the opaque drawing colour for id.
func (s *Scheme) Color(id uint16) color.RGBA {
	c, ok := colorful.Color{}, false
	if s != nil {
		c, ok = s.Colors[id]
	}
	if !ok {
		c = Generated(id)
	}
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
