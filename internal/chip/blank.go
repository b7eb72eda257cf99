package chip

import (
	"math"

	"github.com/ironsheep/geochip/internal/raster"
)

// IsBlank reports whether every sample of c, across all channels, is 0 or
// every sample is the 8-bit maximum (255).
//
// Both values are the common no-data encodings for aerial imagery, so a
// chip made of either carries nothing worth sending to a model. A single
// sample that differs makes the chip non-blank; a mix of 0 and 255 is
// also non-blank.
func IsBlank(c raster.Raster) bool {
	allZero, allMax := true, true
	for _, v := range c.Pix {
		if v != 0 {
			allZero = false
		}
		if v != math.MaxUint8 {
			allMax = false
		}
		if !allZero && !allMax {
			return false
		}
	}
	return true
}
