package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ironsheep/geochip/internal/config"
	"github.com/ironsheep/geochip/internal/inference"
	"github.com/ironsheep/geochip/internal/logger"
	"github.com/ironsheep/geochip/internal/store"
)

// app carries what every subcommand needs once the root flags are parsed.
type app struct {
	configPath string
	cfg        *config.Config
	log        *logger.Logger
}

// NewCLI builds the geochip command tree.
func NewCLI() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "geochip",
		Short:         "Chip aerial images, run object detection and stitch the results",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				a.log.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file (default $"+config.EnvConfigPath+" or ./config.yaml)")

	rootCmd.AddCommand(
		newServeCmd(a),
		newDetectCmd(a),
		newChipCmd(a),
		newJobsCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.cfg = cfg
	a.log = log
	return nil
}

func (a *app) client() *inference.Client {
	return inference.NewClient(inference.ClientConfig{
		URL:           a.cfg.Inference.URL,
		SignatureName: a.cfg.Inference.SignatureName,
		Timeout:       a.cfg.Inference.Timeout,
	}, a.log)
}

// openStore opens the job history. History is optional, so a failure is
// logged and nil returned.
func (a *app) openStore() *store.Store {
	if a.cfg.Store.Path == "" {
		return nil
	}
	st, err := store.Open(a.cfg.Store.Path, a.log)
	if err != nil {
		a.log.Warn("Job history disabled", "path", a.cfg.Store.Path, "error", err)
		return nil
	}
	return st
}

func newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "geochip %s\n", Version)
			fmt.Fprintf(out, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
		},
	}
}
