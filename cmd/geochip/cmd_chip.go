package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ironsheep/geochip/internal/chip"
	"github.com/ironsheep/geochip/internal/imaging"
	"github.com/ironsheep/geochip/internal/raster"
)

func newChipCmd(a *app) *cobra.Command {
	var (
		outDir       string
		height       int
		width        int
		discardBlank bool
	)

	cmd := &cobra.Command{
		Use:   "chip IMAGE",
		Short: "Write the chips of one image to a directory",
		Long: `Write the chips of one image to a directory.

The directory receives one <i>.tif per chip, chip_toplefts.csv and
fast_retile_meta.json.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if err := imaging.CheckApproved(path, a.cfg.ApprovedTypes); err != nil {
				return err
			}
			img, err := imaging.NewImageCache().Load(path)
			if err != nil {
				return err
			}

			size := chip.Size{Height: a.cfg.Chip.Height, Width: a.cfg.Chip.Width}
			if height > 0 {
				size.Height = height
			}
			if width > 0 {
				size.Width = width
			}
			opts := chip.Options{NoData: a.cfg.Chip.NoData, DiscardBlank: a.cfg.Chip.DiscardBlank}
			if cmd.Flags().Changed("discard-blank") {
				opts.DiscardBlank = discardBlank
			}

			ds, err := chip.WriteDir(outDir, raster.FromImage(img), size, opts)
			if err != nil {
				return err
			}
			a.log.Info("Chips written", "image", path, "dir", outDir, "chips", ds.Len())

			m := ds.Meta
			fmt.Printf("%d chips (%dx%d grid of %dx%d) written to %s\n",
				ds.Len(), m.NumHeight, m.NumWidth, size.Height, size.Width, outDir)
			if m.Thinning != nil && m.Thinning.NumThinned > 0 {
				fmt.Printf("%d blank chips discarded\n", m.Thinning.NumThinned)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory")
	cmd.Flags().IntVar(&height, "chip-height", 0, "Chip height (default chip.height)")
	cmd.Flags().IntVar(&width, "chip-width", 0, "Chip width (default chip.width)")
	cmd.Flags().BoolVar(&discardBlank, "discard-blank", false, "Drop chips that are entirely 0 or 255")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
