package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soumyarai2050/Flux-sub002/broker/sim"
	"github.com/soumyarai2050/Flux-sub002/config"
	"github.com/soumyarai2050/Flux-sub002/feed"
	"github.com/soumyarai2050/Flux-sub002/journal"
	"github.com/soumyarai2050/Flux-sub002/manager"
	"github.com/soumyarai2050/Flux-sub002/market"
	"github.com/soumyarai2050/Flux-sub002/metrics"
	"github.com/soumyarai2050/Flux-sub002/pkg/logutil"
	"github.com/soumyarai2050/Flux-sub002/stratcache"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the execution daemon from a config file",
	Long: `Run the pair-strategy execution daemon using settings from a
configuration file. The config file defines the ledger location, the
simulated broker rules, portfolio order limits and the strategies to load.

Example:
  pairsd run -f examples/configs/pairs.yaml`,
	RunE: runRun,
}

var runConfigPath string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML) (required)")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logutil.New(cfg.App.LogLevel)
	log.Info().Str("config", runConfigPath).Str("app", cfg.App.Name).Msg("starting")

	ledger, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ledger.Close()

	simCfg, err := loadSimConfig(cfg.Sim.ConfigPath)
	if err != nil {
		return fmt.Errorf("load sim config: %w", err)
	}
	for _, w := range simCfg.Validate(legSymbols(cfg.Strategies)) {
		log.Warn().Msg(w)
	}

	link := sim.NewEngine(simCfg, sim.FileKillSwitchStore{Path: cfg.Sim.KillSwitchPath}, log)
	changed, err := link.ReconcileKillSwitch(cfg.Sim.KillSwitchEnabled)
	if err != nil {
		return fmt.Errorf("reconcile kill switch: %w", err)
	}
	if changed {
		log.Warn().Bool("enabled", cfg.Sim.KillSwitchEnabled).Msg("kill switch state forced from config")
	}

	orderLimits, err := cfg.OrderLimits.Build()
	if err != nil {
		return fmt.Errorf("order limits: %w", err)
	}

	fx := market.NewFxRateTable(cfg.FxPairs...)
	reg := manager.NewRegistry(fx)
	mgr := manager.New(reg, ledger, link, orderLimits, log)
	link.SetListener(mgr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr.Start(ctx)

	for _, s := range cfg.Strategies {
		cache := stratcache.New(s.Pair, log)
		lim, err := s.Limits.Build()
		if err != nil {
			return fmt.Errorf("strategy %s limits: %w", s.Pair.StrategyID, err)
		}
		cache.SetLimits(lim)
		cache.SetStatus(stratcache.StratStatus{State: stratcache.StateReady})
		reg.Add(cache)

		if err := mgr.LoadExisting(s.Pair.StrategyID); err != nil {
			return fmt.Errorf("recover strategy %s: %w", s.Pair.StrategyID, err)
		}
		log.Info().Str("strategy", s.Pair.StrategyID).
			Str("leg1", s.Pair.Leg1.Symbol).Str("leg2", s.Pair.Leg2.Symbol).
			Msg("strategy loaded")
	}

	var metricsSrv interface {
		Shutdown(context.Context) error
	}
	if cfg.App.MetricsAddr != "" {
		metricsSrv = metrics.Serve(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics listening")
	}

	if cfg.Feed.URL != "" {
		f := feed.New(cfg.Feed.URL, mgr, log)
		if err := f.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("feed stopped")
		}
	} else {
		log.Warn().Msg("no feed url configured; accepting no streaming updates")
		<-ctx.Done()
	}

	log.Info().Msg("shutting down")
	mgr.Stop()
	if metricsSrv != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutCtx)
	}
	return nil
}

func loadSimConfig(path string) (*sim.Config, error) {
	if path == "" {
		return sim.ParseConfig(nil)
	}
	return sim.LoadConfig(path)
}

func legSymbols(strategies []config.StrategyConfig) []string {
	var out []string
	seen := map[string]bool{}
	for _, s := range strategies {
		for _, sym := range []string{s.Pair.Leg1.Symbol, s.Pair.Leg2.Symbol} {
			if sym != "" && !seen[sym] {
				seen[sym] = true
				out = append(out, sym)
			}
		}
	}
	return out
}
