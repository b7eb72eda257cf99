package labels

import (
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLabelMap = `
# marine debris classes
item {
  id: 1
  name: 'plastic'
}
item {
  name: "fishing gear"
  id: 2
  display_name: "Fishing Gear"
}
item { id: 7 display_name: 'wood' }
`

func TestParseLabelMap(t *testing.T) {
	m, err := ParseLabelMap(strings.NewReader(sampleLabelMap))
	require.NoError(t, err)

	assert.Equal(t, Map{1: "plastic", 2: "fishing gear", 7: "wood"}, m)
	assert.Equal(t, "plastic", m.Name(1))
	assert.Equal(t, "42", m.Name(42))
}

func TestParseLabelMap_Empty(t *testing.T) {
	m, err := ParseLabelMap(strings.NewReader("# nothing here\n\n"))
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestParseLabelMap_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing id", "item { name: 'x' }"},
		{"bad id", "item { id: one name: 'x' }"},
		{"id out of range", "item { id: 70000 name: 'x' }"},
		{"unterminated string", "item { id: 1 name: 'x }"},
		{"unclosed item", "item { id: 1 name: 'x'"},
		{"missing colon", "item { id 1 }"},
		{"not an item", "thing { id: 1 }"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLabelMap(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, ErrSyntax)
		})
	}
}

func TestLoadLabelMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.pbtxt")
	require.NoError(t, os.WriteFile(path, []byte(sampleLabelMap), 0o644))

	m, err := LoadLabelMap(path)
	require.NoError(t, err)
	assert.Len(t, m, 3)

	_, err = LoadLabelMap(filepath.Join(t.TempDir(), "missing.pbtxt"))
	assert.Error(t, err)
}

func TestParseColorMap(t *testing.T) {
	cm, err := ParseColorMap([]byte(`{"1": "#ff0000", "3": "#00ff80"}`))
	require.NoError(t, err)
	require.Len(t, cm, 2)

	s := &Scheme{Colors: cm}
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, s.Color(1))
	assert.Equal(t, color.RGBA{0, 255, 128, 255}, s.Color(3))

	_, err = ParseColorMap([]byte(`{"x": "#ff0000"}`))
	assert.ErrorContains(t, err, "invalid class id")

	_, err = ParseColorMap([]byte(`{"1": "red"}`))
	assert.ErrorContains(t, err, "invalid color")

	_, err = ParseColorMap([]byte(`[1, 2]`))
	assert.Error(t, err)
}

func TestGenerated(t *testing.T) {
	assert.Equal(t, Generated(5), Generated(5), "generated colours must be stable")

	var s *Scheme
	seen := map[color.RGBA]bool{}
	for id := uint16(0); id < 16; id++ {
		c := s.Color(id)
		assert.Equal(t, uint8(255), c.A)
		assert.False(t, seen[c], "id %d reuses a colour", id)
		seen[c] = true
	}
}

func TestScheme_Load(t *testing.T) {
	dir := t.TempDir()
	lm := filepath.Join(dir, "labels.pbtxt")
	cm := filepath.Join(dir, "colors.json")
	require.NoError(t, os.WriteFile(lm, []byte(sampleLabelMap), 0o644))
	require.NoError(t, os.WriteFile(cm, []byte(`{"2": "#0000ff"}`), 0o644))

	s, err := Load(lm, cm)
	require.NoError(t, err)
	assert.Equal(t, "fishing gear", s.Name(2))
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, s.Color(2))

	empty, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, "2", empty.Name(2))

	var nilScheme *Scheme
	assert.Equal(t, "9", nilScheme.Name(9))

	_, err = Load(filepath.Join(dir, "nope.pbtxt"), "")
	assert.Error(t, err)
	_, err = Load("", filepath.Join(dir, "nope.json"))
	assert.Error(t, err)
}
