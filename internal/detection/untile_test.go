package detection

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func raw(boxes [][4]float64, scores []float32, classes []uint16) Raw {
	r := Raw{Boxes: boxes, Classes: classes}
	for _, s := range scores {
		r.Scores = append(r.Scores, float16.Fromfloat32(s))
	}
	return r
}

func TestUntile_KnownBox(t *testing.T) {
	dets := Map{
		0: raw([][4]float64{{0.1, 0.2, 0.3, 0.4}}, []float32{0.9}, []uint16{3}),
	}

	got, err := Untile("scene", dets, []Offset{{Y: 100, X: 200}}, 500, 500)
	require.NoError(t, err)

	assert.Equal(t, "scene", got.ImageID)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, Box{Top: 150, Left: 300, Bottom: 250, Right: 400}, got.Boxes[0])
	assert.Equal(t, []uint16{3}, got.Classes)
	assert.InDelta(t, 0.9, got.Scores[0], 0.001)
}

func TestUntile_ChipOrderAndWithinChipOrder(t *testing.T) {
	offsets := []Offset{{0, 0}, {0, 10}, {10, 0}, {10, 10}}
	dets := Map{
		3: raw([][4]float64{{0, 0, 0.5, 0.5}}, []float32{0.5}, []uint16{4}),
		1: raw([][4]float64{{0, 0, 1, 1}, {0.5, 0.5, 1, 1}}, []float32{0.7, 0.6}, []uint16{1, 2}),
	}

	got, err := Untile("img", dets, offsets, 10, 10)
	require.NoError(t, err)

	want := []Box{
		{Top: 0, Left: 10, Bottom: 10, Right: 20},
		{Top: 5, Left: 15, Bottom: 10, Right: 20},
		{Top: 10, Left: 10, Bottom: 15, Right: 15},
	}
	if diff := cmp.Diff(want, got.Boxes); diff != "" {
		t.Errorf("boxes mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []uint16{1, 2, 4}, got.Classes)
	assert.Len(t, got.Scores, 3)
}

func TestUntile_SparseMapIsNotAnError(t *testing.T) {
	offsets := []Offset{{0, 0}, {0, 64}, {64, 0}}

	got, err := Untile("img", Map{}, offsets, 64, 64)
	require.NoError(t, err)
	assert.Zero(t, got.Len())

	got, err = Untile("img", Map{2: raw([][4]float64{{0, 0, 0.25, 0.25}}, []float32{0.4}, []uint16{1})}, offsets, 64, 64)
	require.NoError(t, err)
	assert.Equal(t, []Box{{Top: 64, Left: 0, Bottom: 80, Right: 16}}, got.Boxes)
}

func TestUntile_PaddedMarginNotClipped(t *testing.T) {
	// a 100x100 image tiled at 64 leaves a 28 pixel margin in the last chip
	got, err := Untile("img", Map{0: raw([][4]float64{{0.9, 0.9, 1, 1}}, []float32{0.5}, []uint16{1})},
		[]Offset{{64, 64}}, 64, 64)
	require.NoError(t, err)
	assert.Equal(t, Box{Top: 122, Left: 122, Bottom: 128, Right: 128}, got.Boxes[0])
}

func TestUntile_Errors(t *testing.T) {
	_, err := Untile("img", Map{5: raw(nil, nil, nil)}, []Offset{{0, 0}}, 10, 10)
	assert.ErrorIs(t, err, ErrOffsetMissing)

	_, err = Untile("img", Map{}, nil, 0, 10)
	assert.ErrorIs(t, err, ErrChipSize)

	ragged := Raw{Boxes: [][4]float64{{0, 0, 1, 1}}, Classes: []uint16{1}}
	_, err = Untile("img", Map{0: ragged}, []Offset{{0, 0}}, 10, 10)
	assert.Error(t, err)
}

func TestDenormalize_Rounds(t *testing.T) {
	got := Denormalize([4]float64{0.333, 0.5, 0.6666, 1}, 3, 10)
	assert.Equal(t, Box{Top: 1, Left: 5, Bottom: 2, Right: 10}, got)
}

func TestDenormalize_HalfPixelBoundary(t *testing.T) {
	// 0.011*500 is exactly 5.5 in float64 but 5.4999998 once narrowed to
	// float32.
	got := Denormalize([4]float64{0.011, 0.011, 0.5, 0.5}, 500, 500)
	assert.Equal(t, Box{Top: 6, Left: 6, Bottom: 250, Right: 250}, got)
}

func TestMerged_JSON(t *testing.T) {
	m := &Merged{
		ImageID: "a",
		Boxes:   []Box{{1, 2, 3, 4}},
		Scores:  []float32{0.5},
		Classes: []uint16{7},
	}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"bboxes":[[1,2,3,4]],"scores":[0.5],"classes":[7]}`, string(data))

	var back Merged
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, m.Boxes, back.Boxes)
	assert.Equal(t, map[uint16]int{7: 1}, back.ClassCounts())
}

func TestMap_Total(t *testing.T) {
	m := Map{
		0: raw([][4]float64{{0, 0, 1, 1}}, []float32{0.5}, []uint16{1}),
		4: raw([][4]float64{{0, 0, 1, 1}, {0, 0, 1, 1}}, []float32{0.5, 0.6}, []uint16{1, 2}),
	}
	assert.Equal(t, 3, m.Total())
}
