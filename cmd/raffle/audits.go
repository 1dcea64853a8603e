package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"raffle/internal/audit"
	"raffle/internal/constants"
	"raffle/internal/drawconfig"
	"raffle/internal/population"
	apperrors "raffle/pkg/errors"
)

func auditsCmd() *cobra.Command {
	var (
		eventID string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "audits",
		Short: "List audit records from the configured store, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			s, err := openSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			records, err := s.backend.Store.List(ctx, eventID, limit)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			for _, rec := range records {
				if err := enc.Encode(rec); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&eventID, "event-id", "", "Only records for this event")
	cmd.Flags().IntVar(&limit, "limit", constants.DefaultLimit, "Maximum number of records")

	return cmd
}

func verifyCmd() *cobra.Command {
	var (
		recordFile     string
		drawID         string
		populationFile string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a population against the snapshot hash of an audit record",
		Long:  "Replays eligibility and deduplication of the recorded configuration over the population and compares the resulting snapshot hash with the one in the audit record",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			if (recordFile == "") == (drawID == "") {
				return apperrors.ErrValidation.WithMessage("exactly one of --record or --draw-id is required")
			}

			s, err := openSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			rec, err := findRecord(ctx, s.backend.Store, recordFile, drawID)
			if err != nil {
				return err
			}

			cfg, err := drawconfig.Compile(rec.Config)
			if err != nil {
				return err
			}
			table, err := population.LoadFile(populationFile, cfg.UniqueKey)
			if err != nil {
				return err
			}

			ids, err := s.orchestrator().CandidateIDs(ctx, table, cfg)
			if err != nil {
				return err
			}
			if err := audit.Verify(rec, ids); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "MISMATCH draw %s: %v\n", rec.DrawID, err)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "OK draw %s: %d candidates, snapshot %s\n", rec.DrawID, len(ids), rec.SnapshotHash)
			return nil
		},
	}

	cmd.Flags().StringVar(&recordFile, "record", "", "Audit record file written by the file store")
	cmd.Flags().StringVar(&drawID, "draw-id", "", "Look the record up in the configured audit store")
	cmd.Flags().StringVarP(&populationFile, "population", "p", "", "Population file (.csv or .json)")
	cmd.MarkFlagRequired("population")

	return cmd
}

func findRecord(ctx context.Context, store audit.Store, path, drawID string) (audit.Record, error) {
	if path != "" {
		return audit.ReadRecordFile(path)
	}

	records, err := store.List(ctx, "", constants.MaxLimit)
	if err != nil {
		return audit.Record{}, err
	}
	for _, rec := range records {
		if rec.DrawID == drawID {
			return rec, nil
		}
	}
	return audit.Record{}, apperrors.ErrNotFound.
		WithMessage("no audit record for draw %s among the latest %d", drawID, constants.MaxLimit).
		WithDetail("draw_id", drawID)
}
