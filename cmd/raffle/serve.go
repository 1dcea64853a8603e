package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"raffle/internal/constants"
	"raffle/internal/logger"
	"raffle/pkg/logging"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the draw API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				logging.Early("failed to init logger: %v", err)
				return err
			}
			defer log.Sync()

			ctx, cancel := signalContext()
			defer cancel()

			log.InfowCtx(ctx, "Starting raffle service")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.ErrorwCtx(ctx, "Failed to initialize application", "error", err)
				app.Shutdown(ctx)
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			runErr := app.Run(ctx)

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer shutdownCancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.ErrorwCtx(shutdownCtx, "Shutdown error", "error", err)
			}

			if runErr != nil {
				log.ErrorwCtx(ctx, "Application error", "error", runErr)
				return runErr
			}
			return nil
		},
	}
}
