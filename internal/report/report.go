package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ironsheep/geochip/internal/detection"
	"github.com/ironsheep/geochip/internal/labels"
)

// Per-image result files are named <image id> plus one of these suffixes.
const (
	ObjectsJSONSuffix = "_objects.json"
	ObjectsCSVSuffix  = "_objects.csv"
)

// Header is the column layout of every detection CSV.
var Header = []string{"filename", "class_name", "class_id", "score", "ymin", "xmin", "ymax", "xmax"}

// ErrHeader is returned when a detection CSV does not start with Header.
var ErrHeader = errors.New("unexpected csv header")

// Row is one detection in tabular form.
type Row struct {
	Filename  string  `json:"filename"`
	ClassName string  `json:"class_name"`
	ClassID   uint16  `json:"class_id"`
	Score     float32 `json:"score"`
	YMin      int     `json:"ymin"`
	XMin      int     `json:"xmin"`
	YMax      int     `json:"ymax"`
	XMax      int     `json:"xmax"`
}

// Rows flattens a merged detection set. Class names come from scheme, which
// may be nil.
func Rows(m *detection.Merged, scheme *labels.Scheme) []Row {
	rows := make([]Row, 0, m.Len())
	for i := range m.Scores {
		b := m.Boxes[i]
		rows = append(rows, Row{
			Filename:  m.ImageID,
			ClassName: scheme.Name(m.Classes[i]),
			ClassID:   m.Classes[i],
			Score:     m.Scores[i],
			YMin:      b.Top,
			XMin:      b.Left,
			YMax:      b.Bottom,
			XMax:      b.Right,
		})
	}
	return rows
}

func (r Row) record() []string {
	return []string{
		r.Filename,
		r.ClassName,
		strconv.FormatUint(uint64(r.ClassID), 10),
		strconv.FormatFloat(float64(r.Score), 'f', -1, 32),
		strconv.Itoa(r.YMin),
		strconv.Itoa(r.XMin),
		strconv.Itoa(r.YMax),
		strconv.Itoa(r.XMax),
	}
}

func parseRow(rec []string) (Row, error) {
	var r Row
	r.Filename, r.ClassName = rec[0], rec[1]

	id, err := strconv.ParseUint(rec[2], 10, 16)
	if err != nil {
		return r, fmt.Errorf("class_id: %w", err)
	}
	r.ClassID = uint16(id)

	score, err := strconv.ParseFloat(rec[3], 32)
	if err != nil {
		return r, fmt.Errorf("score: %w", err)
	}
	r.Score = float32(score)

	coords := []*int{&r.YMin, &r.XMin, &r.YMax, &r.XMax}
	for j, dst := range coords {
		if *dst, err = strconv.Atoi(rec[4+j]); err != nil {
			return r, fmt.Errorf("%s: %w", Header[4+j], err)
		}
	}
	return r, nil
}

// WriteCSV writes the header and rows to w.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads rows written by WriteCSV.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, h := range Header {
		if head[i] != h {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrHeader, i, head[i], h)
		}
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		row, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
}

// WriteJSON writes {image_id: {bboxes, scores, classes}} to w.
func WriteJSON(w io.Writer, m *detection.Merged) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "   ")
	return enc.Encode(map[string]*detection.Merged{m.ImageID: m})
}

// ReadJSON reads a document written by WriteJSON. It must hold exactly one
// image.
func ReadJSON(r io.Reader) (*detection.Merged, error) {
	var doc map[string]*detection.Merged
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode results: %w", err)
	}
	if len(doc) != 1 {
		return nil, fmt.Errorf("results hold %d images, want 1", len(doc))
	}
	for id, m := range doc {
		if m == nil {
			return nil, fmt.Errorf("results for %s are null", id)
		}
		m.ImageID = id
		return m, nil
	}
	return nil, nil
}

// Files are the per-image result paths written by WriteImage.
type Files struct {
	JSON string `json:"json"`
	CSV  string `json:"csv"`
}

// WriteImage writes the JSON and CSV results for one image into dir.
func WriteImage(dir string, m *detection.Merged, scheme *labels.Scheme) (Files, error) {
	files := Files{
		JSON: filepath.Join(dir, m.ImageID+ObjectsJSONSuffix),
		CSV:  filepath.Join(dir, m.ImageID+ObjectsCSVSuffix),
	}

	if err := writeFile(files.JSON, func(w io.Writer) error { return WriteJSON(w, m) }); err != nil {
		return Files{}, err
	}
	rows := Rows(m, scheme)
	if err := writeFile(files.CSV, func(w io.Writer) error { return WriteCSV(w, rows) }); err != nil {
		return Files{}, err
	}
	return files, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
