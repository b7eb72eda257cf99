package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/geochip/internal/chip"
	"github.com/ironsheep/geochip/internal/config"
	"github.com/ironsheep/geochip/internal/detection"
	"github.com/ironsheep/geochip/internal/imaging"
	"github.com/ironsheep/geochip/internal/inference"
	"github.com/ironsheep/geochip/internal/labels"
	"github.com/ironsheep/geochip/internal/logger"
	"github.com/ironsheep/geochip/internal/raster"
	"github.com/ironsheep/geochip/internal/report"
	"github.com/ironsheep/geochip/internal/store"
)

// ErrDuplicateImage is returned for a second image with the same id in one
// job. Result files are keyed by image id, so it would overwrite the first.
var ErrDuplicateImage = errors.New("duplicate image id in job")

// ImageSummary describes the processing of one image.
type ImageSummary struct {
	ImageID    string          `json:"image_id"`
	Path       string          `json:"path"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Resampled  bool            `json:"resampled"`
	Stats      inference.Stats `json:"stats"`
	Detections int             `json:"detections"`
	Files      report.Files    `json:"files"`
	PlotPath   string          `json:"plot_path,omitempty"`
	Duration   time.Duration   `json:"duration"`
	Error      string          `json:"error,omitempty"`
}

// JobSummary describes a whole Run.
type JobSummary struct {
	JobID    string              `json:"job_id"`
	Project  *Project            `json:"project"`
	Archive  string              `json:"archive"`
	Images   []ImageSummary      `json:"images"`
	Failed   int                 `json:"failed"`
	Counts   []report.ClassCount `json:"counts"`
	Total    int                 `json:"total"`
	Duration time.Duration       `json:"duration"`
}

// Pipeline turns source images into detection reports.
type Pipeline struct {
	cfg        *config.Config
	dispatcher *inference.Dispatcher
	scheme     *labels.Scheme
	sensor     imaging.Sensor
	store      *store.Store
	cache      *imaging.ImageCache
	logger     *logger.Logger
}

// New creates a pipeline. The label scheme and, when resampling is enabled,
// the sensor are loaded up front so a bad path fails before any image is
// touched. st may be nil, in which case no job history is kept.
func New(cfg *config.Config, p inference.Predictor, st *store.Store, log *logger.Logger) (*Pipeline, error) {
	scheme, err := labels.Load(cfg.Labels.LabelMap, cfg.Labels.ColorMap)
	if err != nil {
		return nil, err
	}

	pl := &Pipeline{
		cfg: cfg,
		dispatcher: inference.NewDispatcher(inference.Config{
			ConfidenceThreshold: cfg.Inference.ConfidenceThreshold,
			BatchSize:           cfg.Inference.BatchSize,
			MaxInFlight:         cfg.Inference.MaxInFlight,
			BatchTimeout:        cfg.Inference.Timeout,
		}, p, log),
		scheme: scheme,
		store:  st,
		cache:  imaging.NewImageCache(),
		logger: log,
	}

	if cfg.Resample.Enabled {
		sensors, err := imaging.LoadSensors(cfg.Resample.SensorsFile)
		if err != nil {
			return nil, err
		}
		if pl.sensor, err = imaging.LookupSensor(sensors, cfg.Resample.Sensor); err != nil {
			return nil, err
		}
	}

	return pl, nil
}

// Scheme returns the label scheme used for reports and plots.
func (p *Pipeline) Scheme() *labels.Scheme {
	return p.scheme
}

// Run processes paths as one job under Output.Dir/<job id>.
//
// A failing image is logged and recorded and the job moves on to the next
// one. Once every image has been tried, the per-image CSVs are collated and
// the results directory is archived. Cancelling ctx stops the job before
// the next image; the image that was interrupted and the job are then
// recorded as failed.
func (p *Pipeline) Run(ctx context.Context, paths []string) (*JobSummary, error) {
	start := time.Now()
	jobID := uuid.NewString()
	log := p.logger.With("job_id", jobID)

	proj, err := NewProject(filepath.Join(p.cfg.Output.Dir, jobID))
	if err != nil {
		return nil, err
	}
	if p.store != nil {
		if err := p.store.CreateJob(ctx, jobID, len(paths), proj.Results, start); err != nil {
			return nil, err
		}
	}

	// job bookkeeping outlives a cancelled ctx
	bg := context.WithoutCancel(ctx)

	log.Info("Job started", "images", len(paths), "dir", proj.Root)
	summary := &JobSummary{JobID: jobID, Project: proj}
	seen := make(map[string]bool, len(paths))

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			p.finish(bg, jobID, store.JobFailed, "", err.Error())
			return summary, err
		}

		id := imaging.ImageID(path)
		if seen[id] {
			// the store is keyed by image id too, so only the summary sees it
			err := fmt.Errorf("%w: %s", ErrDuplicateImage, id)
			summary.Images = append(summary.Images, ImageSummary{ImageID: id, Path: path, Error: err.Error()})
			summary.Failed++
			log.Error("Image failed", "image", path, "error", err)
			continue
		}
		seen[id] = true

		is, err := p.ProcessImage(ctx, proj, path)
		if err == nil && ctx.Err() != nil {
			// dispatch gave up on the remaining batches
			err = fmt.Errorf("interrupted: %w", ctx.Err())
		}
		if err != nil {
			is.Error = err.Error()
			summary.Failed++
			log.Error("Image failed", "image", path, "error", err)
		}
		summary.Images = append(summary.Images, *is)
		p.record(bg, jobID, is)
	}
	if err := ctx.Err(); err != nil {
		p.finish(bg, jobID, store.JobFailed, "", err.Error())
		return summary, err
	}

	collated, err := report.Collate(proj.PerImage, proj.Results)
	if err != nil {
		p.finish(bg, jobID, store.JobFailed, "", err.Error())
		return summary, err
	}
	summary.Counts = collated.Counts
	summary.Total = collated.Total

	archive := filepath.Join(proj.Root, report.ArchiveFile)
	if err := report.Archive(proj.Results, archive); err != nil {
		p.finish(bg, jobID, store.JobFailed, "", err.Error())
		return summary, err
	}
	summary.Archive = archive
	summary.Duration = time.Since(start)

	p.finish(bg, jobID, store.JobCompleted, archive, "")
	log.Info("Job finished",
		"images", len(paths),
		"failed", summary.Failed,
		"detections", summary.Total,
		"archive", archive,
		"duration", summary.Duration,
	)
	return summary, nil
}

// ProcessImage runs one image through load, optional resampling, chipping,
// inference, untiling, plotting and per-image reports. The returned
// summary is non-nil even on error and holds whatever was learned before
// the failure.
func (p *Pipeline) ProcessImage(ctx context.Context, proj *Project, path string) (*ImageSummary, error) {
	start := time.Now()
	id := imaging.ImageID(path)
	is := &ImageSummary{ImageID: id, Path: path}
	defer func() { is.Duration = time.Since(start) }()

	merged, img, err := p.detect(ctx, proj.Tmp, path, is)
	if err != nil {
		return is, err
	}

	if p.cfg.Output.Plot {
		plot := imaging.PlotDetections(img, merged, p.scheme, p.cfg.Output.Thickness)
		is.PlotPath = filepath.Join(proj.Plots, id+"_results"+filepath.Ext(path))
		if err := imaging.SavePlot(is.PlotPath, plot); err != nil {
			return is, err
		}
	}

	if is.Files, err = report.WriteImage(proj.PerImage, merged, p.scheme); err != nil {
		return is, err
	}

	p.logger.Info("Image processed",
		"image", id,
		"chips", is.Stats.Chips,
		"chips_with_detections", is.Stats.ChipsWithDetections,
		"failed_batches", is.Stats.FailedBatches,
		"detections", is.Detections,
		"duration", time.Since(start),
	)
	return is, nil
}

// Detect runs one image through chipping, inference and untiling without
// writing any reports. Chips go to tmpDir when on-disk chipping is enabled.
func (p *Pipeline) Detect(ctx context.Context, tmpDir, path string) (*detection.Merged, *ImageSummary, error) {
	is := &ImageSummary{ImageID: imaging.ImageID(path), Path: path}
	merged, _, err := p.detect(ctx, tmpDir, path, is)
	return merged, is, err
}

func (p *Pipeline) detect(ctx context.Context, tmpDir, path string, is *ImageSummary) (*detection.Merged, image.Image, error) {
	if err := imaging.CheckApproved(path, p.cfg.ApprovedTypes); err != nil {
		return nil, nil, err
	}

	img, err := p.cache.Load(path)
	if err != nil {
		return nil, nil, err
	}
	defer p.cache.Evict(path)

	if p.cfg.Resample.Enabled {
		b := img.Bounds()
		est := imaging.MaxGSD(p.cfg.Resample.FlightAGLm, b.Dy(), b.Dx(), p.sensor)
		img, is.Resampled = imaging.ResampleToGSD(img, est, p.cfg.Resample.TargetGSDcm)
		p.logger.Debug("Estimated GSD", "image", is.ImageID, "gsd_cm", est, "resampled", is.Resampled)
	}
	is.Width, is.Height = img.Bounds().Dx(), img.Bounds().Dy()

	r := raster.FromImage(img)
	size := chip.Size{Height: p.cfg.Chip.Height, Width: p.cfg.Chip.Width}
	opts := chip.Options{NoData: p.cfg.Chip.NoData, DiscardBlank: p.cfg.Chip.DiscardBlank}

	var (
		src     inference.Source
		offsets []detection.Offset
	)
	if p.cfg.Chip.OnDisk {
		dir := filepath.Join(tmpDir, is.ImageID+"_chips")
		defer os.RemoveAll(dir)
		ds, err := chip.WriteDir(dir, r, size, opts)
		if err != nil {
			return nil, nil, err
		}
		src, offsets = ds, ds.Offsets()
	} else {
		set, err := chip.Tile(r, size, opts)
		if err != nil {
			return nil, nil, err
		}
		src, offsets = set, set.Offsets()
	}

	dets, stats := p.dispatcher.Infer(ctx, src)
	is.Stats = stats

	merged, err := detection.Untile(is.ImageID, dets, offsets, size.Height, size.Width)
	if err != nil {
		return nil, nil, err
	}
	is.Detections = merged.Len()
	return merged, img, nil
}

func (p *Pipeline) record(ctx context.Context, jobID string, is *ImageSummary) {
	if p.store == nil {
		return
	}
	status := store.ImageOK
	if is.Error != "" {
		status = store.ImageFailed
	}
	err := p.store.RecordImage(ctx, store.ImageResult{
		JobID:               jobID,
		ImageID:             is.ImageID,
		Path:                is.Path,
		Status:              status,
		Error:               is.Error,
		Chips:               is.Stats.Chips,
		Batches:             is.Stats.Batches,
		FailedBatches:       is.Stats.FailedBatches,
		ChipsWithDetections: is.Stats.ChipsWithDetections,
		Detections:          is.Detections,
		Duration:            is.Duration,
	})
	if err != nil {
		p.logger.Warn("Failed to record image result", "image", is.ImageID, "error", err)
	}
}

func (p *Pipeline) finish(ctx context.Context, jobID, status, archive, errMsg string) {
	if p.store == nil {
		return
	}
	if err := p.store.FinishJob(ctx, jobID, status, archive, errMsg, time.Now()); err != nil {
		p.logger.Warn("Failed to finish job", "job_id", jobID, "error", err)
	}
}
