package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/config"
	dittoServer "github.com/marmos91/dittodav/pkg/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the dittodav server",
	Long: `Start the dittodav server in the foreground with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/dittodav/config.yaml.

Examples:
  # Start with the default config file
  dittodav start

  # Start with custom config file
  dittodav start --config /etc/dittodav/config.yaml

  # Start with environment variable overrides
  DITTODAV_LOGGING_LEVEL=DEBUG dittodav start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("dittodav %s starting (config: %s)", Version, getConfigSource(GetConfigFile()))
	logger.Info("Log level %s, format %s", cfg.Logging.Level, cfg.Logging.Format)

	// Metrics first, so the adapters get the Prometheus collectors
	metricsResult := config.InitializeMetrics(cfg)

	reg, err := config.InitializeRegistry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize registry: %w", err)
	}
	logger.Info("Registry initialized: %d mount(s), property store %s",
		reg.CountMounts(), cfg.Properties.Type)

	for _, name := range reg.ListMounts() {
		mount, _ := reg.GetMount(name)
		logger.Info("Mount %q: %s -> %s (browsing: %v)",
			name, mount.URLBasePrefix, mount.FilesystemRoot, mount.EnableBrowsing)
	}

	srv := dittoServer.New(reg, cfg.Server.ShutdownTimeout)

	adapters, err := config.CreateAdapters(cfg, metricsResult.WebDAVMetrics)
	if err != nil {
		_ = reg.Close()
		return fmt.Errorf("failed to create adapters: %w", err)
	}
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			_ = reg.Close()
			return fmt.Errorf("failed to add %s adapter: %w", a.Protocol(), err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if metricsResult.Server != nil {
		metricsResult.Server.SetHealth(func() error {
			if reg.CountMounts() == 0 {
				return errors.New("no mounts registered")
			}
			return nil
		})
		logger.Info("Metrics enabled on port %d", cfg.Server.Metrics.Port)
		g.Go(func() error {
			return metricsResult.Server.Start(gctx)
		})
	} else {
		logger.Info("Metrics collection disabled")
	}

	g.Go(func() error {
		return srv.Serve(gctx)
	})

	logger.Info("Server is running. Press Ctrl+C to stop.")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error: %v", err)
		return err
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.ConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
