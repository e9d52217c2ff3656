package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/profiling"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/api"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/config"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/scheduler"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and optional scheduled runs",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := createLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	// Start profiling (if enabled)
	profiling.StartPprofServer(log)
	profiler, profErr := profiling.StartPyroscope(cfg.Service.Name, cfg.Service.Version, log)
	if profErr != nil {
		log.Warn("Continuous profiling disabled", logger.Error(profErr))
	}
	defer func() { _ = profiler.Stop() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to build components", logger.Error(err))
		return fmt.Errorf("build components: %w", err)
	}
	defer func() {
		if closeErr := components.Close(); closeErr != nil {
			log.Warn("Failed to close components", logger.Error(closeErr))
		}
	}()

	if cfg.Schedule.Enabled {
		sched, schedErr := newScheduler(cfg, components, log)
		if schedErr != nil {
			return schedErr
		}
		sched.Start()
		defer sched.Stop()
	}

	handler := api.NewHandler(components.Orchestrator, api.ServiceInfo{
		Name:     cfg.Service.Name,
		Version:  cfg.Service.Version,
		Fetcher:  cfg.Fetcher.Provider,
		Analyzer: cfg.Analyzer.Provider,
	})
	server := api.NewServer(handler, cfg, components.Telemetry, components.Events, bootstrap.RunTimeout(cfg), log)

	if serveErr := server.RunWithGracefulShutdown(ctx); serveErr != nil {
		log.Error("Server error", logger.Error(serveErr))
		return serveErr
	}
	return nil
}

func newScheduler(cfg *config.Config, components *bootstrap.Components, log logger.Logger) (*scheduler.Scheduler, error) {
	loc := time.Local
	if cfg.Schedule.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(cfg.Schedule.Timezone); err != nil {
			return nil, fmt.Errorf("load schedule timezone: %w", err)
		}
	}

	sched, err := scheduler.New(scheduler.Config{
		Cron:       cfg.Schedule.Cron,
		Recipient:  cfg.Schedule.Recipient,
		MaxResults: cfg.Schedule.MaxResults,
		RunTimeout: max(cfg.Schedule.RunTimeout, bootstrap.RunTimeout(cfg)),
		Location:   loc,
	}, components.Orchestrator, log)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return sched, nil
}
