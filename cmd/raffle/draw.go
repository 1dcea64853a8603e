package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"raffle/internal/drawconfig"
	"raffle/internal/export"
	"raffle/internal/population"
	"raffle/internal/raffle"
	"raffle/internal/sampler"
	apperrors "raffle/pkg/errors"
)

func drawCmd() *cobra.Command {
	var (
		populationFile string
		drawFile       string
		winners        int
		seed           int64
		output         string
		format         string
	)

	cmd := &cobra.Command{
		Use:   "draw",
		Short: "Run one draw over a CSV or JSON population",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			drawCfg, err := drawconfig.Load(drawFile)
			if err != nil {
				return err
			}

			table, err := population.LoadFile(populationFile, drawCfg.UniqueKey)
			if err != nil {
				return err
			}

			entropy := sampler.Unpredictable()
			if cmd.Flags().Changed("seed") {
				entropy = sampler.Seeded(seed)
			}

			s, err := openSession(ctx, true)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			res, runErr := s.orchestrator().Run(ctx, table, drawCfg, winners, entropy)
			if res == nil {
				return runErr
			}

			if output != "" {
				if err := writeWinnersCSV(output, table, res); err != nil {
					return err
				}
			}

			if err := printResult(cmd.OutOrStdout(), format, res); err != nil {
				return err
			}

			if runErr != nil && apperrors.IsAuditPersistence(runErr) {
				fmt.Fprintln(cmd.ErrOrStderr(), "WARNING: winners were drawn but no audit record was written")
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&populationFile, "population", "p", "", "Population file (.csv or .json)")
	cmd.Flags().StringVarP(&drawFile, "draw-config", "d", "", "Draw configuration file (YAML or JSON)")
	cmd.Flags().IntVarP(&winners, "winners", "n", 1, "Number of winners")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Seed for a reproducible draw")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the winners as CSV to this path")
	cmd.Flags().StringVar(&format, "format", "text", "Summary format: text or json")
	cmd.MarkFlagRequired("population")
	cmd.MarkFlagRequired("draw-config")

	return cmd
}

func writeWinnersCSV(path string, table *population.Table, res *raffle.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := export.WriteCSV(f, table.UniqueKey, table.Columns, res.Winners); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printResult(w io.Writer, format string, res *raffle.Result) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(res)
	case "text", "":
	default:
		return apperrors.ErrValidation.WithMessage("unknown format %q (supported: text, json)", format)
	}

	seed := "none"
	if res.Seed != nil {
		seed = fmt.Sprint(*res.Seed)
	}
	fmt.Fprintf(w, "event:     %s\n", res.EventID)
	fmt.Fprintf(w, "draw:      %s\n", res.DrawID)
	fmt.Fprintf(w, "eligible:  %d (clamped weights: %d)\n", res.Eligible, res.Clamped)
	fmt.Fprintf(w, "seed:      %s\n", seed)
	fmt.Fprintf(w, "snapshot:  %s\n", res.SnapshotHash)
	if res.Audited {
		fmt.Fprintf(w, "audit:     %s\n", res.AuditLocation)
	} else {
		fmt.Fprintln(w, "audit:     NOT WRITTEN")
	}
	fmt.Fprintf(w, "winners:   %s\n", strings.Join(res.WinnerIDs, ", "))
	return nil
}
