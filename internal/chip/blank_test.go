package chip

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ironsheep/geochip/internal/raster"
)

func TestIsBlank(t *testing.T) {
	oneOff := raster.New(8, 8, 3)
	oneOff.Set(7, 7, 2, 1)

	oneBelowMax := raster.Filled(8, 8, 3, 255)
	oneBelowMax.Set(0, 0, 0, 254)

	mixed := raster.New(2, 2, 3)
	fillRect(mixed, 0, 1, 0, 2, 255)

	tests := []struct {
		name string
		chip raster.Raster
		want bool
	}{
		{"all zeros", raster.New(8, 8, 3), true},
		{"all max", raster.Filled(8, 8, 3, 255), true},
		{"single channel zeros", raster.New(4, 4, 1), true},
		{"one differing sample", oneOff, false},
		{"one sample below max", oneBelowMax, false},
		{"zero and max mixed", mixed, false},
		{"uniform mid value", raster.Filled(4, 4, 3, 128), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBlank(tt.chip))
		})
	}
}
