package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/odonto/odonto/internal/config"
	"github.com/odonto/odonto/internal/domain/matching"
	"github.com/odonto/odonto/internal/domain/patient"
	"github.com/odonto/odonto/internal/platform/db"
	"github.com/odonto/odonto/internal/platform/report"
)

func matchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match the unidentified records of a roster file",
		Long: "Reads a JSON array of patient records, ranks identified candidates for every\n" +
			"unidentified record and writes the results as JSON (stdout) or an XLSX report.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rosterPath, _ := cmd.Flags().GetString("roster")
			out, _ := cmd.Flags().GetString("out")
			caseID, _ := cmd.Flags().GetString("case")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts := matchOptions(cfg)
			if cmd.Flags().Changed("threshold") {
				opts.Threshold, _ = cmd.Flags().GetFloat64("threshold")
			}
			if cmd.Flags().Changed("limit") {
				opts.Limit, _ = cmd.Flags().GetInt("limit")
			}
			if cmd.Flags().Changed("tooth-policy") {
				p, _ := cmd.Flags().GetString("tooth-policy")
				opts.ToothPolicy = matching.ToothCountPolicy(strings.ToLower(p))
			}

			roster, err := patient.LoadRosterFile(rosterPath)
			if err != nil {
				return err
			}
			svc := matching.NewService(nil, opts, newLogger(cfg.Env))
			results, err := svc.MatchRoster(roster, opts)
			if err != nil {
				return err
			}
			return writeResults(cmd.OutOrStdout(), out, caseID, results, time.Now())
		},
	}
	cmd.Flags().String("roster", "", "Path to a JSON roster file")
	cmd.Flags().String("out", "", "Write an .xlsx report or .json file instead of printing JSON")
	cmd.Flags().String("case", "", "Case reference printed in the report")
	cmd.Flags().Float64("threshold", matching.DefaultThreshold, "Minimum score for a candidate")
	cmd.Flags().Int("limit", 0, "Maximum candidates per record (0 = unlimited)")
	cmd.Flags().String("tooth-policy", string(matching.ToothPolicyExact), "Tooth-count policy: exact or distance")
	_ = cmd.MarkFlagRequired("roster")
	return cmd
}

// writeResults prints JSON to stdout, or writes to out choosing the format
// from its extension.
func writeResults(stdout io.Writer, out, caseID string, results []matching.MatchResult, now time.Time) error {
	switch strings.ToLower(filepath.Ext(out)) {
	case "":
		if out != "" {
			return fmt.Errorf("output file %q needs a .json or .xlsx extension", out)
		}
		return encodeJSON(stdout, results)
	case ".xlsx":
		return report.SaveMatchReport(out, matching.ReportRows(caseID, results), now)
	case ".json":
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		defer f.Close()
		return encodeJSON(f, results)
	default:
		return fmt.Errorf("unsupported output format %q", filepath.Ext(out))
	}
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a JSON roster file into the patient store",
		RunE: func(cmd *cobra.Command, args []string) error {
			rosterPath, _ := cmd.Flags().GetString("roster")
			caseID, _ := cmd.Flags().GetString("case")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			roster, err := patient.LoadRosterFile(rosterPath)
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := importRoster(ctx, patient.NewService(patient.NewRepo(pool)), roster, caseID)
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d record(s).\n", n, len(roster))
			return err
		},
	}
	cmd.Flags().String("roster", "", "Path to a JSON roster file")
	cmd.Flags().String("case", "", "Case id assigned to records that have none")
	_ = cmd.MarkFlagRequired("roster")
	return cmd
}

func importRoster(ctx context.Context, svc *patient.Service, roster []*patient.Patient, caseID string) (int, error) {
	n := 0
	for i, p := range roster {
		if p.CaseID == "" {
			p.CaseID = caseID
		}
		if err := svc.CreatePatient(ctx, p); err != nil {
			return n, fmt.Errorf("record %d (%s): %w", i, p.ID, err)
		}
		n++
	}
	return n, nil
}
