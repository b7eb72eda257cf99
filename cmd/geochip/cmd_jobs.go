package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ironsheep/geochip/internal/store"
)

func newJobsCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs [JOB-ID]",
		Short: "List recent jobs, or the per-image results of one job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(a.cfg.Store.Path, a.log)
			if err != nil {
				return err
			}
			defer st.Close()

			if len(args) == 1 {
				return showJob(cmd, st, args[0])
			}

			jobs, err := st.ListJobs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			table := newTable([]string{"ID", "STATUS", "IMAGES", "FAILED", "DETECTIONS", "STARTED", "DURATION"})
			for _, j := range jobs {
				table.Append([]string{
					j.ID,
					j.Status,
					strconv.Itoa(j.Images),
					strconv.Itoa(j.Failed),
					strconv.Itoa(j.Detections),
					j.StartedAt.Local().Format(time.DateTime),
					jobDuration(j),
				})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to list")
	return cmd
}

func showJob(cmd *cobra.Command, st *store.Store, id string) error {
	job, err := st.GetJob(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("job %s: %w", id, err)
	}
	images, err := st.ImageResults(cmd.Context(), id)
	if err != nil {
		return err
	}

	fmt.Printf("job %s: %s, %d/%d images, %d detections\n", job.ID, job.Status, job.Processed, job.Images, job.Detections)
	fmt.Printf("results: %s\n", job.ResultsDir)
	if job.ArchivePath != "" {
		fmt.Printf("archive: %s\n", job.ArchivePath)
	}
	if job.Error != "" {
		fmt.Printf("error: %s\n", job.Error)
	}
	fmt.Println()

	table := newTable([]string{"IMAGE", "STATUS", "CHIPS", "BATCHES", "FAILED BATCHES", "DETECTIONS", "TIME", "ERROR"})
	for _, r := range images {
		table.Append([]string{
			r.ImageID,
			r.Status,
			strconv.Itoa(r.Chips),
			strconv.Itoa(r.Batches),
			strconv.Itoa(r.FailedBatches),
			strconv.Itoa(r.Detections),
			r.Duration.Round(time.Millisecond).String(),
			r.Error,
		})
	}
	table.Render()
	return nil
}

func jobDuration(j store.Job) string {
	if j.FinishedAt == nil {
		return "-"
	}
	return j.FinishedAt.Sub(j.StartedAt).Round(time.Second).String()
}
