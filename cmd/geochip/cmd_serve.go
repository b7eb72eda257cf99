package main

import (
	"github.com/spf13/cobra"

	"github.com/ironsheep/geochip/internal/pipeline"
	"github.com/ironsheep/geochip/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdin/stdout",
		Long: `Run the MCP server on stdin/stdout.

Logs go to stderr; stdout carries the JSON-RPC stream. Configure the server
in your MCP client (e.g., Claude Desktop).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := a.openStore()
			if st != nil {
				defer st.Close()
			}

			pl, err := pipeline.New(a.cfg, a.client(), st, a.log)
			if err != nil {
				return err
			}

			a.log.Info("Starting MCP server",
				"version", Version,
				"commit", GitCommit,
				"inference_url", a.cfg.Inference.URL,
			)
			return server.New(a.cfg, pl, st, a.log).Run(cmd.Context())
		},
	}
}
