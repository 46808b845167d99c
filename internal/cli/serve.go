package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pairgate/pairgate/internal/config"
	"github.com/pairgate/pairgate/internal/logger"
	"github.com/pairgate/pairgate/pkg/archive"
	"github.com/pairgate/pairgate/pkg/httpapi"
	"github.com/pairgate/pairgate/pkg/pairing"
	"github.com/pairgate/pairgate/pkg/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pairing session server",
	Long: `Run the pairing session server in the foreground. The server exposes
the pairing API, the one-shot session download, and the token-gated
admin surface, and sweeps expired sessions in the background.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	registry, err := session.NewRegistry(session.RegistryOptions{
		Root:     cfg.Sessions.Root,
		Provider: pairing.NewLocalProvider(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize session registry: %w", err)
	}

	sweeper := session.NewSweeper(registry, cfg.Sessions.TTL(), cfg.Sessions.SweepInterval())
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start expiry sweeper: %w", err)
	}
	defer func() { _ = sweeper.Stop() }()

	server, err := httpapi.NewServer(httpapi.ServerOptions{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		SharedSecret:    cfg.Auth.SharedSecret,
		AllowedIPs:      cfg.Auth.AllowedIPs,
		LogFile:         cfg.Logging.File,
		PublicDir:       cfg.Server.PublicDir,
		RateLimitMax:    cfg.RateLimit.MaxRequests,
		RateLimitWindow: cfg.RateLimit.Window(),
	}, registry, archive.NewZipPackager(), log.GetZerolog())
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		if err := server.Stop(); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		return err
	}
}
