package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "raffle/cmd/raffle/docs"

	"raffle/internal/config"
	"raffle/internal/logger"
	"raffle/internal/raffle"
	"raffle/pkg/bootstrap"
	"raffle/pkg/logging"
)

var (
	configFile string
)

// @title           Raffle API
// @version         1.0
// @description     Weighted unique draws with eligibility rules and an append-only audit trail

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1

// @schemes   http https

func main() {
	rootCmd := &cobra.Command{
		Use:          "raffle",
		Short:        "Weighted unique draw engine",
		Long:         "Draws unique winners from a population under eligibility rules and attribute weights, recording every draw in an audit store",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (defaults to CONFIG_FILE, then built-in defaults)")

	rootCmd.AddCommand(drawCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(auditsCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves the config file from the flag or CONFIG_FILE. Without
// either, defaults and environment overrides apply.
func loadConfig() (*config.Config, error) {
	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		logging.Early("failed to load config: %v", err)
		return nil, err
	}
	return cfg, nil
}

// session is the runtime shared by the one-shot commands.
type session struct {
	base    *bootstrap.Base
	db      *bootstrap.DatabaseConnector
	backend *bootstrap.AuditBackend
}

// openSession loads config, builds a console logger and connects the audit
// store. The broker is only connected when withBroker is set.
func openSession(ctx context.Context, withBroker bool) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Logging.Level, "console")
	if err != nil {
		logging.Early("failed to init logger: %v", err)
		return nil, err
	}

	s := &session{
		base: bootstrap.NewBase(cfg, log),
		db:   bootstrap.NewDatabaseConnector(cfg, log),
	}

	if withBroker {
		if err := s.base.InitBroker(); err != nil {
			log.WarnwCtx(ctx, "Draw events disabled", "error", err)
		}
	}

	backend, err := s.db.InitAuditStore(ctx, s.base.Health)
	if err != nil {
		s.base.CloseBroker()
		return nil, fmt.Errorf("failed to open audit store: %w", err)
	}
	s.backend = backend
	return s, nil
}

func (s *session) orchestrator() *raffle.Orchestrator {
	opts := []raffle.Option{raffle.WithMaxWinners(s.base.Config.Draw.MaxWinners)}
	if n := s.base.Notifier(); n != nil {
		opts = append(opts, raffle.WithNotifier(n))
	}
	return raffle.New(s.backend.Store, s.base.Logger, opts...)
}

func (s *session) close(ctx context.Context) {
	err := s.base.Shutdown(ctx, s.backend.Close)
	if err != nil {
		s.base.Logger.WarnwCtx(ctx, "Shutdown incomplete", "error", err)
	}
	s.base.Logger.Sync()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
