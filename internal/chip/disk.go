package chip

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"
	"golang.org/x/image/tiff"

	"github.com/ironsheep/geochip/internal/detection"
	"github.com/ironsheep/geochip/internal/raster"
)

// Sidecar file names written next to on-disk chips.
const (
	TopLeftsFile = "chip_toplefts.csv"
	MetaFile     = "fast_retile_meta.json"
)

// DirSet is a chipping result stored on disk: one TIFF per chip plus the
// top-left CSV and the metadata JSON. Chips are decoded on demand, so only
// the chips currently in flight occupy memory.
type DirSet struct {
	Dir      string
	Paths    []string
	TopLefts []TopLeft
	Meta     Meta
}

// WriteDir chips r straight to dir, one chip at a time, without holding
// the chip array in memory.
//
// Surviving chips are written as <dir>/<i>.tif where i is the index after
// blank filtering, matching the in-memory Set numbering. The metadata JSON
// always carries num_thinned and thinned_chips (zero and empty when
// filtering is disabled).
//
// The directory is created if needed. On error, files already written are
// left in place.
func WriteDir(dir string, r raster.Raster, size Size, opts Options) (*DirSet, error) {
	g, err := NewGrid(r, size)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create chip directory: %w", err)
	}

	ds := &DirSet{Dir: dir, Meta: g.Meta()}
	var thinned []int

	for i := 0; i < g.Len(); i++ {
		c := g.Chip(r, i, opts.NoData)
		if opts.DiscardBlank && IsBlank(c) {
			thinned = append(thinned, i)
			continue
		}

		path := filepath.Join(dir, fmt.Sprintf("%d.tif", len(ds.Paths)))
		if err := writeChip(path, c); err != nil {
			return nil, err
		}
		ds.Paths = append(ds.Paths, path)
		ds.TopLefts = append(ds.TopLefts, g.TopLeft(i))
	}

	ds.Meta.Thinning = newThinning(thinned)

	if err := WriteTopLefts(filepath.Join(dir, TopLeftsFile), ds.TopLefts); err != nil {
		return nil, err
	}
	if err := WriteMeta(filepath.Join(dir, MetaFile), ds.Meta); err != nil {
		return nil, err
	}

	return ds, nil
}

// OpenDir loads the sidecar files of a directory written by WriteDir.
func OpenDir(dir string) (*DirSet, error) {
	meta, err := ReadMeta(filepath.Join(dir, MetaFile))
	if err != nil {
		return nil, err
	}
	tls, err := ReadTopLefts(filepath.Join(dir, TopLeftsFile))
	if err != nil {
		return nil, err
	}

	ds := &DirSet{Dir: dir, TopLefts: tls, Meta: meta}
	for i := range tls {
		path := filepath.Join(dir, fmt.Sprintf("%d.tif", i))
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("missing chip %d: %w", i, err)
		}
		ds.Paths = append(ds.Paths, path)
	}
	return ds, nil
}

// Len returns the number of chips.
func (d *DirSet) Len() int {
	return len(d.Paths)
}

// Chip decodes chip i from disk.
func (d *DirSet) Chip(i int) (raster.Raster, error) {
	if i < 0 || i >= len(d.Paths) {
		return raster.Raster{}, fmt.Errorf("chip %d out of range [0, %d)", i, len(d.Paths))
	}
	img, err := imaging.Open(d.Paths[i])
	if err != nil {
		return raster.Raster{}, fmt.Errorf("failed to read chip %d: %w", i, err)
	}
	return raster.FromImage(img), nil
}

// Offsets converts the top-lefts for untiling.
func (d *DirSet) Offsets() []detection.Offset {
	return Offsets(d.TopLefts)
}

// writeChip encodes c as a deflate-compressed TIFF.
func writeChip(path string, c raster.Raster) error {
	img, err := c.ToImage()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chip file: %w", err)
	}

	if err := tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode chip: %w", err)
	}
	return f.Close()
}

// WriteTopLefts writes a CSV with a "y,x" header and one row per chip.
func WriteTopLefts(path string, tls []TopLeft) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create top-left file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"y", "x"}); err != nil {
		return fmt.Errorf("failed to write top-left header: %w", err)
	}
	for _, tl := range tls {
		if err := w.Write([]string{strconv.Itoa(tl.Y), strconv.Itoa(tl.X)}); err != nil {
			return fmt.Errorf("failed to write top-left row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush top-left file: %w", err)
	}
	return f.Close()
}

// ReadTopLefts parses a CSV written by WriteTopLefts.
func ReadTopLefts(path string) ([]TopLeft, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open top-left file: %w", err)
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = 2

	header, err := rd.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read top-left header: %w", err)
	}
	if header[0] != "y" || header[1] != "x" {
		return nil, fmt.Errorf("unexpected top-left header %v, want [y x]", header)
	}

	tls := []TopLeft{}
	for {
		rec, err := rd.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read top-left row: %w", err)
		}
		y, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("invalid top-left y %q: %w", rec[0], err)
		}
		x, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("invalid top-left x %q: %w", rec[1], err)
		}
		tls = append(tls, TopLeft{Y: y, X: x})
	}
	return tls, nil
}

// WriteMeta writes m as JSON.
func WriteMeta(path string, m Meta) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode chip metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write chip metadata: %w", err)
	}
	return nil
}

// ReadMeta parses a metadata JSON file.
func ReadMeta(path string) (Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Meta{}, fmt.Errorf("failed to read chip metadata: %w", err)
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return Meta{}, fmt.Errorf("failed to parse chip metadata: %w", err)
	}
	return m, nil
}
