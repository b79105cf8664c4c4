package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/featherline/rarity-mapper/internal/spatial"
)

var (
	resolveLat float64
	resolveLng float64
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a coordinate to its US county",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !spatial.ValidCoords(resolveLat, resolveLng) {
			return eris.Errorf("invalid coordinates %f,%f", resolveLat, resolveLng)
		}

		index, err := spatial.LoadIndex(cfg.Spatial.IndexPath)
		if err != nil {
			return err
		}

		region, ok := index.Locate(resolveLat, resolveLng)
		if !ok {
			return eris.Errorf("no county contains %f,%f", resolveLat, resolveLng)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]string{
			"fips5":        region.FIPS5,
			"stateFips":    region.StateFIPS,
			"countyFips":   region.CountyCode,
			"stateCode":    region.StateCode,
			"countyRegion": region.CountyRegion,
		})
	},
}

func init() {
	resolveCmd.Flags().Float64Var(&resolveLat, "lat", 0, "latitude")
	resolveCmd.Flags().Float64Var(&resolveLng, "lon", 0, "longitude")
	_ = resolveCmd.MarkFlagRequired("lat")
	_ = resolveCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(resolveCmd)
}
