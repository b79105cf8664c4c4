package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/featherline/rarity-mapper/internal/aggregate"
	"github.com/featherline/rarity-mapper/internal/ebird"
	"github.com/featherline/rarity-mapper/internal/fips"
	"github.com/featherline/rarity-mapper/internal/model"
	"github.com/featherline/rarity-mapper/internal/normalize"
	"github.com/featherline/rarity-mapper/internal/rarity"
	"github.com/featherline/rarity-mapper/internal/session"
)

var (
	notablesRegion  string
	notablesBack    int
	notablesMinAba  int
	notablesSpecies string
	notablesCounty  string
	notablesState   string
	notablesLower48 bool
)

var notablesCmd = &cobra.Command{
	Use:   "notables",
	Short: "Fetch and tabulate recent notable observations for a region",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("query"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		region := strings.ToUpper(notablesRegion)
		if !fips.ValidRegionCode(region) && region != "US" {
			return fmt.Errorf("invalid region code %q", notablesRegion)
		}

		codes, err := rarity.Load(cfg.Rarity.TablePath)
		if err != nil {
			return err
		}

		client := ebird.NewClient(cfg.EBird.BaseURL, cfg.EBird.APIKey,
			ebird.WithRateLimit(cfg.EBird.RateLimit),
			ebird.WithCacheTTL(time.Duration(cfg.EBird.CacheTTLMinutes)*time.Minute),
		)

		back := session.ClampDaysBack(notablesBack)
		raws, err := client.RecentNotable(ctx, region, back, "full")
		if err != nil {
			return err
		}
		notable := normalize.Records(raws, codes)

		var lower48 []model.Observation
		if notablesLower48 {
			usRaws, err := client.RecentNotable(ctx, "US", back, "full")
			if err != nil {
				zap.L().Warn("nationwide fetch failed, continuing without it", zap.Error(err))
			} else {
				kept := usRaws[:0]
				for _, raw := range usRaws {
					if fips.IsLower48(raw.Subnational1Code) {
						kept = append(kept, raw)
					}
				}
				for _, o := range normalize.Records(kept, codes) {
					if !o.Rarity.Known() || int(o.Rarity) < notablesMinAba {
						continue
					}
					lower48 = append(lower48, o)
				}
				lower48 = aggregate.AggregateReports(lower48)
			}
		}

		ctrl := session.NewController(region)
		ctrl.SetDaysBack(back)
		ctrl.SetCountyMinRarity(model.RarityCode(notablesMinAba))
		if notablesSpecies != "" {
			ctrl.SetSpecies(notablesSpecies)
		}
		if notablesCounty != "" {
			ctrl.SelectCounty(session.Selection{
				Active:    true,
				Name:      notablesCounty,
				StateCode: strings.ToUpper(notablesState),
			})
		}
		ctrl.SetShowLower48Markers(notablesLower48)
		vm := ctrl.SetData(notable, lower48)

		fmt.Println(vm.Status)
		fmt.Printf("Unique species/locations: %d\n\n", vm.UniqueCount)

		printRows("County sightings", vm.CountyRows)
		if notablesLower48 {
			printRows("Lower 48 rarities", vm.Lower48Rows)
		}
		fmt.Printf("Map markers: %d\n", len(vm.Markers))

		return nil
	},
}

func printRows(title string, rows []model.CountyAggregate) {
	fmt.Println(title + ":")
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SPECIES\tCOUNTY\tSTATE\tABA\tREPORTS\tLAST SEEN\tCONFIRMED")
	for _, row := range rows {
		last := ""
		if row.HasLast {
			last = row.Last.Format("2006-01-02")
		}
		aba := ""
		if row.Rarity.Known() {
			aba = fmt.Sprintf("%d", row.Rarity)
		}
		confirmed := ""
		if row.ConfirmedAny {
			confirmed = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			row.Species, row.CountyName, row.StateCode, aba, row.Count, last, confirmed)
	}
	_ = w.Flush()
	fmt.Println()
}

func init() {
	notablesCmd.Flags().StringVar(&notablesRegion, "region", "US-CA", "region code (US-XX or US)")
	notablesCmd.Flags().IntVar(&notablesBack, "back", session.DefaultDaysBack, "days back (1-30)")
	notablesCmd.Flags().IntVar(&notablesMinAba, "min-aba", int(session.DefaultMinRarity), "minimum ABA code")
	notablesCmd.Flags().StringVar(&notablesSpecies, "species", "", "filter to one species")
	notablesCmd.Flags().StringVar(&notablesCounty, "county", "", "filter tables to a county name")
	notablesCmd.Flags().StringVar(&notablesState, "state", "", "two-letter state for --county")
	notablesCmd.Flags().BoolVar(&notablesLower48, "lower48", false, "include nationwide lower-48 rarities")
	rootCmd.AddCommand(notablesCmd)
}
