package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/drblury/routeflow/internal/runtime"
	configpkg "github.com/drblury/routeflow/internal/runtime/config"
	loggingpkg "github.com/drblury/routeflow/internal/runtime/logging"
)

var (
	serveConfigFile   string
	serveEnvFiles     []string
	serveConsume      string
	serveRoutePolicy  []string
	serveDefaultTopic string
	serveDestKey      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the routeflow service",
	Long: `Loads the service configuration, compiles the embedded and configured
policies and runs the router, the scheduler and, when enabled, the policy
watcher and the metrics endpoint until interrupted.

The configuration file is YAML. Every field can be overridden through a
ROUTEFLOW_* environment variable, optionally loaded from --env-file.

With --consume the service also routes every message from that topic to the
destination its policies resolve.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigFile, "config", "c", "", "Path to the YAML configuration file")
	serveCmd.Flags().StringSliceVar(&serveEnvFiles, "env-file", []string{".env"}, "Dotenv files applied before ROUTEFLOW_* overrides")
	serveCmd.Flags().StringVar(&serveConsume, "consume", "", "Topic to route messages from")
	serveCmd.Flags().StringSliceVar(&serveRoutePolicy, "route-policy", nil, "Policies evaluated by the routing handler")
	serveCmd.Flags().StringVar(&serveDefaultTopic, "default-topic", "", "Destination when no policy selects one")
	serveCmd.Flags().StringVar(&serveDestKey, "destination-key", runtime.DefaultDestinationKey, "Metadata key holding the destination topic")
}

func loadServeConfig() (*configpkg.Config, error) {
	cfg := &configpkg.Config{}
	if serveConfigFile != "" {
		loaded, err := configpkg.LoadFile(serveConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(serveEnvFiles...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig()
	if err != nil {
		return err
	}
	logger.Info("starting routeflow", zap.Stringer("config", cfg))

	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	ctx, stop := signal.NotifyContext(base, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := runtime.TryNewService(cfg, loggingpkg.NewZapServiceLogger(logger), ctx, runtime.ServiceDependencies{})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := svc.Close(); cerr != nil {
			logger.Warn("close service", zap.Error(cerr))
		}
	}()

	if serveConsume != "" {
		err := runtime.RegisterRoutingHandler(svc, runtime.RoutingHandlerRegistration{
			Name:           "route-" + serveConsume,
			ConsumeQueue:   serveConsume,
			Policies:       serveRoutePolicy,
			DestinationKey: serveDestKey,
			DefaultTopic:   serveDefaultTopic,
		})
		if err != nil {
			return fmt.Errorf("register routing handler: %w", err)
		}
	}

	logger.Info("routeflow running",
		zap.Strings("policies", svc.Policies().Names()),
		zap.String("transport", cfg.PubSubSystem))

	if err := svc.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("routeflow stopped")
	return nil
}
