package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/featherline/rarity-mapper/internal/indexer"
)

var (
	indexbuildURL string
	indexbuildShp string
	indexbuildOut string
	indexbuildDir string
)

var indexbuildCmd = &cobra.Command{
	Use:   "indexbuild",
	Short: "Build the county bounding-box index from TIGER/Line shapefiles",
	Long: `Downloads the Census TIGER/Line nationwide county shapefile and distills
it into the JSON bounding-box index the resolve and serve commands read.
Use --shapefile to skip the download and read a local .shp file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("indexbuild"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		shpPath := indexbuildShp
		if shpPath == "" {
			dir := indexbuildDir
			if dir == "" {
				dir = os.TempDir()
			}
			var err error
			shpPath, err = indexer.FetchShapefile(ctx, indexbuildURL, dir)
			if err != nil {
				return err
			}
		}

		entries, err := indexer.Build(shpPath)
		if err != nil {
			return err
		}

		out := indexbuildOut
		if out == "" {
			out = cfg.Spatial.IndexPath
		}
		if err := indexer.WriteIndex(out, entries); err != nil {
			return err
		}

		zap.L().Info("county index written",
			zap.String("path", out),
			zap.Int("counties", len(entries)),
		)
		return nil
	},
}

func init() {
	indexbuildCmd.Flags().StringVar(&indexbuildURL, "url", indexer.DefaultShapefileURL, "county shapefile ZIP URL")
	indexbuildCmd.Flags().StringVar(&indexbuildShp, "shapefile", "", "local .shp file (skips download)")
	indexbuildCmd.Flags().StringVar(&indexbuildOut, "out", "", "output path (default from config)")
	indexbuildCmd.Flags().StringVar(&indexbuildDir, "dir", "", "download/extract directory (default OS temp)")
	rootCmd.AddCommand(indexbuildCmd)
}
