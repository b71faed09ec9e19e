package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/dittosmb/internal/adapter/smb/auth"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/handlers"
	"github.com/marmos91/dittosmb/internal/logger"
	"github.com/marmos91/dittosmb/internal/telemetry"
	"github.com/marmos91/dittosmb/pkg/adapter/smb"
	"github.com/marmos91/dittosmb/pkg/config"
	"github.com/marmos91/dittosmb/pkg/metrics"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the SMB server",
	Long: `Start the SMB server in the foreground.

The server runs until SIGINT or SIGTERM, then stops accepting connections,
waits up to server.timeouts.shutdown for clients to finish and exits.

Examples:
  # Start with the default config file
  dittosmb start

  # Start with a custom config file
  dittosmb start --config /etc/dittosmb/config.yaml

  # Override settings from the environment
  DITTOSMB_LOGGING_LEVEL=DEBUG DITTOSMB_SERVER_PORT=445 dittosmb start`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, _ []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded", "source", configSource(GetConfigFile()))
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)

	return serve(ctx, cfg, nil)
}

// serve runs the SMB server, and the metrics server when enabled, until
// ctx is cancelled or one of them fails. started, if non-nil, is called
// once both servers have been created.
func serve(ctx context.Context, cfg *config.Config, started func(*smb.Server, *metrics.Server)) error {
	telemetryShutdown, err := telemetry.Init(ctx, cfg.TracingConfig(Version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("Telemetry shutdown error", logger.KeyError, err)
		}
	}()
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}

	profilingStop, err := telemetry.InitProfiling(cfg.ProfilingConfig(Version))
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingStop(); err != nil {
			logger.Error("Profiling shutdown error", logger.KeyError, err)
		}
	}()
	if cfg.Telemetry.Profiling.Enabled {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	}

	shares, err := config.BuildShares(cfg)
	if err != nil {
		return fmt.Errorf("failed to build shares: %w", err)
	}
	defer func() {
		if err := shares.Close(); err != nil {
			logger.Warn("Failed to close shares", logger.KeyError, err)
		}
	}()

	hc, err := cfg.HandlerConfig()
	if err != nil {
		return err
	}
	h := handlers.NewHandler(hc, auth.NewGuestAuthenticator(cfg.AuthOptions()))
	for _, share := range shares.List {
		h.AddShare(share)
	}

	var (
		reg       *prometheus.Registry
		smbMetric *smb.Metrics
	)
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		reg = metrics.GetRegistry()
		smbMetric = smb.NewMetrics(reg, h)
	}

	srv := smb.NewServer(cfg.TransportConfig(), h, smbMetric)

	var metricsSrv *metrics.Server
	if cfg.Metrics.Enabled {
		metricsSrv = metrics.NewServer(cfg.MetricsServerConfig(), reg, readiness(srv))
	}

	if started != nil {
		started(srv, metricsSrv)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx)
	})
	if metricsSrv != nil {
		g.Go(func() error {
			return metricsSrv.Start(gctx)
		})
		logger.Info("Metrics enabled", "listen", cfg.Metrics.Listen)
	}

	logger.Info("Server is running. Press Ctrl+C to stop.",
		"port", cfg.Server.Port,
		"shares", len(shares.List),
		"guest", cfg.Auth.GuestAllowed())

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error", logger.KeyError, err)
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// readiness reports the server ready once it is accepting connections and
// exports at least one share.
func readiness(srv *smb.Server) metrics.ReadinessFunc {
	return func() (map[string]any, error) {
		h := srv.Handler()
		details := map[string]any{
			"shares":      len(h.Shares()),
			"connections": srv.ActiveConnections(),
			"sessions":    h.ActiveSessions(),
			"open_files":  h.Opens.Len(),
		}
		if !srv.Listening() {
			return details, errors.New("smb listener not ready")
		}
		if len(h.Shares()) == 0 {
			return details, errors.New("no shares exported")
		}
		return details, nil
	}
}
