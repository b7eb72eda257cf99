package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ironsheep/geochip/internal/imaging"
	"github.com/ironsheep/geochip/internal/pipeline"
	"github.com/ironsheep/geochip/internal/report"
)

func newDetectCmd(a *app) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "detect IMAGE|DIR [IMAGE|DIR...]",
		Short: "Run detection over images and collate the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir != "" {
				a.cfg.Output.Dir = outDir
			}
			paths, err := expandInputs(args, a.cfg.ApprovedTypes)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no approved images in %v", args)
			}

			client := a.client()
			if err := client.HealthCheck(cmd.Context()); err != nil {
				a.log.Warn("Model server health check failed", "url", a.cfg.Inference.URL, "error", err)
			}

			st := a.openStore()
			if st != nil {
				defer st.Close()
			}
			pl, err := pipeline.New(a.cfg, client, st, a.log)
			if err != nil {
				return err
			}

			job, err := pl.Run(cmd.Context(), paths)
			if err != nil {
				return err
			}
			printJob(job)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Results directory (overrides output.dir)")
	return cmd
}

// expandInputs replaces each directory argument with the approved images
// directly inside it, sorted by name. Files are passed through unchecked so
// the pipeline reports unsupported ones per image.
func expandInputs(args []string, approved []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		fi, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			p := filepath.Join(arg, e.Name())
			if imaging.CheckApproved(p, approved) == nil {
				found = append(found, p)
			}
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	return paths, nil
}

func printJob(job *pipeline.JobSummary) {
	table := newTable([]string{"IMAGE", "SIZE", "CHIPS", "FAILED BATCHES", "DETECTIONS", "TIME", "ERROR"})
	for _, im := range job.Images {
		size := "-"
		if im.Width > 0 {
			size = fmt.Sprintf("%dx%d", im.Width, im.Height)
		}
		table.Append([]string{
			im.ImageID,
			size,
			strconv.Itoa(im.Stats.Chips),
			strconv.Itoa(im.Stats.FailedBatches),
			strconv.Itoa(im.Detections),
			im.Duration.Round(time.Millisecond).String(),
			im.Error,
		})
	}
	table.Render()
	fmt.Println()

	report.WriteCountsTable(os.Stdout, job.Counts)
	fmt.Println()
	fmt.Printf("job %s: %d images, %d failed, %s\n", job.JobID, len(job.Images), job.Failed, job.Duration.Round(time.Millisecond))
	fmt.Printf("results: %s\n", job.Project.Results)
	fmt.Printf("archive: %s\n", job.Archive)
}
