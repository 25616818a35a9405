package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/thruflo/camloop/internal/apl"
	"github.com/thruflo/camloop/internal/config"
	"github.com/thruflo/camloop/internal/imagefetch"
	"github.com/thruflo/camloop/internal/logging"
	"github.com/thruflo/camloop/internal/loop"
	"github.com/thruflo/camloop/internal/server"
	"github.com/thruflo/camloop/internal/skill"
	"github.com/thruflo/camloop/internal/telemetry"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the skill endpoint",
	Long: `Loads the config, then serves POST /skill and GET /health until
interrupted. The port from the config file can be overridden with --port or
CAMLOOP_PORT.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", config.DefaultServerPort, "listen port (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.ServiceName, cfg.Telemetry.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	srv, err := buildServer(cfg, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %d camera(s) on port %d\n", len(cfg.Targets), cfg.Server.Port)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Shutting down...")
	if err := srv.Stop(); err != nil {
		return err
	}
	return <-errCh
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.New()
	logger.SetLevel(level)
	return logger, nil
}

// buildServer wires the resolver, builder, controller and dispatcher behind
// the HTTP server.
func buildServer(cfg *config.Config, logger *logging.Logger) (*server.Server, error) {
	doc, err := apl.LoadDocument(cfg.Document.LayoutPath)
	if err != nil {
		return nil, err
	}

	resolver := imagefetch.NewHTTPResolver(imagefetch.Options{})
	builder := apl.NewBuilder(cfg, resolver, logger)

	ctrl, err := loop.New(loop.Options{
		Config:   cfg,
		Builder:  builder,
		Document: doc,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create loop controller: %w", err)
	}

	handler := skill.NewHandler(cfg, ctrl, logger)
	srv, err := server.NewServerFromConfig(cfg, handler, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}
	return srv, nil
}
