package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
)

// Project is the directory layout of one job:
//
//	<root>/tmp                        on-disk chips, removed per image
//	<root>/results                    collated CSVs
//	<root>/results/per_image_plots    plotted images
//	<root>/results/per_image_results  per-image JSON and CSV
//	<root>/inference_results.zip      archive of results/
type Project struct {
	Root     string `json:"root"`
	Tmp      string `json:"tmp"`
	Results  string `json:"results"`
	Plots    string `json:"plots"`
	PerImage string `json:"per_image"`
}

// NewProject creates the job directories under root.
func NewProject(root string) (*Project, error) {
	p := &Project{
		Root:     root,
		Tmp:      filepath.Join(root, "tmp"),
		Results:  filepath.Join(root, "results"),
		Plots:    filepath.Join(root, "results", "per_image_plots"),
		PerImage: filepath.Join(root, "results", "per_image_results"),
	}
	for _, dir := range []string{p.Tmp, p.Plots, p.PerImage} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create project directory: %w", err)
		}
	}
	return p, nil
}
