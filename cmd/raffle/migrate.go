package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"raffle/internal/constants"
	"raffle/internal/logger"
	"raffle/pkg/bootstrap"
	"raffle/pkg/migrations"
)

func migrateCmd() *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Prepare the schema of the configured audit backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Logging.Level, "console")
			if err != nil {
				return err
			}
			defer log.Sync()

			dc := bootstrap.NewDatabaseConnector(cfg, log)
			out := cmd.OutOrStdout()

			switch cfg.Audit.Backend {
			case constants.AuditBackendPostgres:
				db, err := dc.OpenPostgres(ctx)
				if err != nil {
					return err
				}
				defer db.Close()

				if !statusOnly {
					if err := migrations.MigratePostgres(db); err != nil {
						return err
					}
				}
				version, dirty, err := migrations.PostgresVersion(db)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "postgres schema version %d (dirty: %t)\n", version, dirty)

			case constants.AuditBackendMongoDB:
				client, err := dc.OpenMongo(ctx)
				if err != nil {
					return err
				}
				defer client.Disconnect(ctx)

				if statusOnly {
					fmt.Fprintln(out, "mongodb collections are ensured on migrate; nothing to report")
					return nil
				}
				if err := migrations.EnsureAuditCollection(ctx, client.Database(cfg.Database.MongoDB.Database), cfg.Audit.MongoCollection); err != nil {
					return err
				}
				fmt.Fprintf(out, "mongodb collection %s ready\n", cfg.Audit.MongoCollection)

			default:
				fmt.Fprintf(out, "audit backend %q needs no migration\n", cfg.Audit.Backend)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&statusOnly, "status", false, "Only report the current schema state")

	return cmd
}
