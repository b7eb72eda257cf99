package inference

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ironsheep/geochip/internal/raster"
)

// ErrMalformedResponse marks a model response that cannot be mapped back
// onto the chips that were sent.
var ErrMalformedResponse = errors.New("malformed prediction response")

// Prediction is the model output for one chip, at the precision the server
// returned it. Boxes are normalised (ymin, xmin, ymax, xmax).
type Prediction struct {
	Scores  []float64
	Classes []float64
	Boxes   [][4]float64
}

// Len returns the number of detections.
func (p Prediction) Len() int {
	return len(p.Scores)
}

// Validate checks that the three arrays are parallel and that every class
// id fits in uint16.
func (p Prediction) Validate() error {
	if len(p.Classes) != len(p.Scores) || len(p.Boxes) != len(p.Scores) {
		return fmt.Errorf("%w: %d scores, %d classes, %d boxes",
			ErrMalformedResponse, len(p.Scores), len(p.Classes), len(p.Boxes))
	}
	for _, c := range p.Classes {
		if c < 0 || c > math.MaxUint16 || c != math.Trunc(c) {
			return fmt.Errorf("%w: class id %v is not a uint16", ErrMalformedResponse, c)
		}
	}
	return nil
}

// Predictor runs a model on a batch of chips and returns one Prediction per
// chip, in the order the chips were given.
type Predictor interface {
	Predict(ctx context.Context, chips []raster.Raster) ([]Prediction, error)
}

// Source is an indexed collection of chips. chip.Set holds them in memory;
// chip.DirSet decodes them from disk on demand.
type Source interface {
	Len() int
	Chip(i int) (raster.Raster, error)
}
