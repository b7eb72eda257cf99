package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// Collated output names inside a job's results directory.
const (
	AllObjectsFile  = "all_objects.csv"
	ClassCountsFile = "class_counts.csv"
	TotalRow        = "total (sum)"
)

// ClassCount is the number of detections of one class across a job.
type ClassCount struct {
	Class string `json:"class"`
	Count int    `json:"count"`
}

// Summary is the result of collating per-image reports.
type Summary struct {
	Images int          `json:"images"`
	Rows   []Row        `json:"-"`
	Counts []ClassCount `json:"counts"`
	Total  int          `json:"total"`
}

// CountClasses tallies rows by class name, largest count first and ties by
// name.
func CountClasses(rows []Row) []ClassCount {
	tally := make(map[string]int)
	for _, r := range rows {
		tally[r.ClassName]++
	}

	counts := make([]ClassCount, 0, len(tally))
	for name, n := range tally {
		counts = append(counts, ClassCount{Class: name, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Class < counts[j].Class
	})
	return counts
}

// Collate stacks every per-image CSV in perImageDir, in file name order, and
// writes AllObjectsFile and ClassCountsFile into outDir.
func Collate(perImageDir, outDir string) (*Summary, error) {
	entries, err := os.ReadDir(perImageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", perImageDir, err)
	}

	s := &Summary{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ObjectsCSVSuffix) {
			continue
		}
		rows, err := readCSVFile(filepath.Join(perImageDir, e.Name()))
		if err != nil {
			return nil, err
		}
		s.Images++
		s.Rows = append(s.Rows, rows...)
	}
	s.Counts = CountClasses(s.Rows)
	s.Total = len(s.Rows)

	err = writeFile(filepath.Join(outDir, AllObjectsFile), func(w io.Writer) error {
		return WriteCSV(w, s.Rows)
	})
	if err != nil {
		return nil, err
	}
	err = writeFile(filepath.Join(outDir, ClassCountsFile), func(w io.Writer) error {
		return writeCounts(w, s.Counts, s.Total)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func readCSVFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

func writeCounts(w io.Writer, counts []ClassCount, total int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"class", "count"}); err != nil {
		return err
	}
	for _, c := range counts {
		if err := cw.Write([]string{c.Class, strconv.Itoa(c.Count)}); err != nil {
			return err
		}
	}
	if err := cw.Write([]string{TotalRow, strconv.Itoa(total)}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// WriteCountsTable renders class counts and the total as a plain text table.
func WriteCountsTable(w io.Writer, counts []ClassCount) {
	data := make([][]string, 0, len(counts)+1)
	total := 0
	for _, c := range counts {
		data = append(data, []string{c.Class, strconv.Itoa(c.Count)})
		total += c.Count
	}
	data = append(data, []string{TotalRow, strconv.Itoa(total)})

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"CLASS", "COUNT"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}
