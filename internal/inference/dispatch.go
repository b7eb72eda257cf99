package inference

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/x448/float16"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ironsheep/geochip/internal/detection"
	"github.com/ironsheep/geochip/internal/logger"
	"github.com/ironsheep/geochip/internal/raster"
)

// Dispatcher defaults.
const (
	DefaultBatchSize   = 1
	DefaultMaxInFlight = 8
)

// Config controls how chips are batched and filtered.
type Config struct {
	// ConfidenceThreshold is a percentage, 0-100. Detections scoring at or
	// above ConfidenceThreshold/100 are kept.
	ConfidenceThreshold float64

	// BatchSize is the number of chips per request.
	BatchSize int

	// MaxInFlight caps concurrent requests.
	MaxInFlight int

	// BatchTimeout bounds one batch, chip loading included. Zero leaves it
	// to the predictor.
	BatchTimeout time.Duration
}

// Stats summarises one Infer call.
type Stats struct {
	Chips               int `json:"chips"`
	Batches             int `json:"batches"`
	FailedBatches       int `json:"failed_batches"`
	ChipsWithDetections int `json:"chips_with_detections"`
}

// Dispatcher fans chips out to a Predictor in bounded concurrent batches.
type Dispatcher struct {
	cfg       Config
	predictor Predictor
	logger    *logger.Logger
}

// NewDispatcher creates a dispatcher. Non-positive BatchSize and
// MaxInFlight take their defaults.
func NewDispatcher(cfg Config, p Predictor, log *logger.Logger) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}
	return &Dispatcher{cfg: cfg, predictor: p, logger: log}
}

// Infer runs every chip of src through the predictor and returns the
// detections that pass the confidence threshold, keyed by chip index.
//
// Chips are split into contiguous batches of BatchSize; at most MaxInFlight
// batches are outstanding at once. A batch that fails for any reason
// (chip load error, transport error, timeout, bad response) is logged and
// its chips are left out of the result; Infer itself never fails. Chips
// whose detections all fall below the threshold are absent from the map.
//
// Cancelling ctx stops new batches from starting; the remaining ones are
// counted as failed.
func (d *Dispatcher) Infer(ctx context.Context, src Source) (detection.Map, Stats) {
	n := src.Len()
	stats := Stats{Chips: n, Batches: ceilDiv(n, d.cfg.BatchSize)}
	acc := &accumulator{m: make(detection.Map)}
	if n == 0 {
		return acc.m, stats
	}

	startTime := time.Now()
	sem := semaphore.NewWeighted(int64(d.cfg.MaxInFlight))
	var g errgroup.Group

	for b := 0; b < stats.Batches; b++ {
		b := b
		start := b * d.cfg.BatchSize
		end := min(start+d.cfg.BatchSize, n)

		if err := sem.Acquire(ctx, 1); err != nil {
			skipped := stats.Batches - b
			d.logger.Warn("Inference cancelled", "remaining_batches", skipped, "error", err)
			acc.fail(skipped)
			break
		}

		g.Go(func() error {
			defer sem.Release(1)

			dets, err := d.runBatch(ctx, src, start, end)
			if err != nil {
				d.logger.Warn("Batch failed, chips omitted",
					"batch", b, "first_chip", start, "last_chip", end-1, "error", err)
				acc.fail(1)
				return nil
			}
			acc.add(dets)
			return nil
		})
	}
	_ = g.Wait()

	stats.FailedBatches = acc.failed
	stats.ChipsWithDetections = len(acc.m)

	d.logger.Info("Inference completed",
		"chips", stats.Chips,
		"batches", stats.Batches,
		"failed_batches", stats.FailedBatches,
		"chips_with_detections", stats.ChipsWithDetections,
		"detections", acc.m.Total(),
		"duration_ms", time.Since(startTime).Milliseconds(),
	)
	return acc.m, stats
}

// runBatch predicts chips [start, end) and returns their filtered
// detections. Any error discards the whole batch.
func (d *Dispatcher) runBatch(ctx context.Context, src Source, start, end int) (detection.Map, error) {
	if d.cfg.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.BatchTimeout)
		defer cancel()
	}

	chips := make([]raster.Raster, 0, end-start)
	for i := start; i < end; i++ {
		c, err := src.Chip(i)
		if err != nil {
			return nil, fmt.Errorf("failed to load chip %d: %w", i, err)
		}
		chips = append(chips, c)
	}

	preds, err := d.predictor.Predict(ctx, chips)
	if err != nil {
		return nil, err
	}
	if len(preds) != len(chips) {
		return nil, fmt.Errorf("%w: %d predictions for %d chips", ErrMalformedResponse, len(preds), len(chips))
	}

	out := make(detection.Map)
	for k, p := range preds {
		raw, err := filter(p, d.cfg.ConfidenceThreshold/100)
		if err != nil {
			return nil, fmt.Errorf("chip %d: %w", start+k, err)
		}
		if raw.Len() > 0 {
			out[start+k] = raw
		}
	}
	return out, nil
}

// filter keeps detections scoring >= threshold, in their original order,
// and narrows scores and classes to storage precision. The comparison uses
// the score as received; boxes are kept as received.
func filter(p Prediction, threshold float64) (detection.Raw, error) {
	if err := p.Validate(); err != nil {
		return detection.Raw{}, err
	}

	var raw detection.Raw
	for j, s := range p.Scores {
		if s < threshold {
			continue
		}
		b := p.Boxes[j]
		raw.Boxes = append(raw.Boxes, b)
		raw.Scores = append(raw.Scores, float16.Fromfloat32(float32(s)))
		raw.Classes = append(raw.Classes, uint16(p.Classes[j]))
	}
	return raw, nil
}

// accumulator collects batch results. Batches own disjoint chip ranges, so
// merging never overwrites.
type accumulator struct {
	mu     sync.Mutex
	m      detection.Map
	failed int
}

func (a *accumulator) add(dets detection.Map) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, raw := range dets {
		a.m[i] = raw
	}
}

func (a *accumulator) fail(n int) {
	a.mu.Lock()
	a.failed += n
	a.mu.Unlock()
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
