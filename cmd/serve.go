package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/featherline/rarity-mapper/internal/boundary"
	"github.com/featherline/rarity-mapper/internal/ebird"
	"github.com/featherline/rarity-mapper/internal/observability"
	"github.com/featherline/rarity-mapper/internal/rarity"
	"github.com/featherline/rarity-mapper/internal/resolver"
	"github.com/featherline/rarity-mapper/internal/server"
	"github.com/featherline/rarity-mapper/internal/spatial"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the county rarity API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		index, err := spatial.LoadIndex(cfg.Spatial.IndexPath)
		if err != nil {
			return err
		}
		zap.L().Info("county index loaded", zap.Int("counties", index.Len()))

		codes, err := rarity.Load(cfg.Rarity.TablePath)
		if err != nil {
			return err
		}

		registry := prometheus.NewRegistry()
		metrics := observability.New(registry)

		ebirdClient := ebird.NewClient(cfg.EBird.BaseURL, cfg.EBird.APIKey,
			ebird.WithRateLimit(cfg.EBird.RateLimit),
			ebird.WithCacheTTL(time.Duration(cfg.EBird.CacheTTLMinutes)*time.Minute),
			ebird.WithMetrics(metrics),
		)
		boundaries := boundary.NewClient(cfg.Boundary.PagesBaseURL, cfg.Boundary.TigerURL,
			boundary.WithCacheTTL(time.Duration(cfg.Boundary.CacheTTLHours)*time.Hour),
			boundary.WithMetrics(metrics),
		)
		ladder := resolver.New(ebirdClient, resolver.WithMetrics(metrics))

		srv := server.New(server.Deps{
			Observations: ebirdClient,
			Boundaries:   boundaries,
			Resolver:     ladder,
			Index:        index,
			Rarity:       codes,
			Registry:     registry,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("shutdown", zap.Error(err))
			}
		}()

		if err := srv.Start(fmt.Sprintf(":%d", port)); err != nil {
			return eris.Wrap(err, "serve")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
