package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/exec-relocations/ijss-cli/internal/batch"
	"github.com/exec-relocations/ijss-cli/internal/export"
	"github.com/exec-relocations/ijss-cli/internal/model"
	"github.com/exec-relocations/ijss-cli/internal/ocr"
	"github.com/exec-relocations/ijss-cli/internal/parse"
)

var (
	extractZip    string
	extractOut    string
	extractPolicy string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract a ZIP of IJSS statements into an Excel workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		driver, err := initDriver(cmd)
		if err != nil {
			return err
		}

		result, err := driver.Run(ctx, extractZip)
		if err != nil {
			return eris.Wrap(err, "batch run")
		}

		printSummary(cmd, result)

		if len(result.Records) == 0 {
			return eris.New("no records extracted, workbook not written")
		}

		out := extractOut
		if out == "" {
			out = export.Filename(time.Now())
		}

		exporter := export.New(cfg.Export)
		if err := exporter.Write(result, out); err != nil {
			return err
		}

		cmd.Printf("Workbook written to %s\n", out)
		return nil
	},
}

// initDriver assembles the extraction pipeline from config plus command
// flags. Flags override config where set.
func initDriver(cmd *cobra.Command) (*batch.Driver, error) {
	extractor, err := ocr.NewExtractor(cfg.OCR)
	if err != nil {
		return nil, err
	}

	policy := parse.ZeroLinePolicy(cfg.Extract.EmptyLinePolicy)
	if extractPolicy != "" {
		policy = parse.ZeroLinePolicy(extractPolicy)
	}
	if !policy.Valid() {
		return nil, eris.Errorf("invalid empty-line policy %q", policy)
	}

	fallback := cfg.Extract.Fallback
	if cmd.Flags().Changed("fallback") {
		fallback, _ = cmd.Flags().GetBool("fallback")
	}
	strategy := parse.StandardStrategy()
	if fallback {
		strategy = parse.FallbackStrategy()
	}

	return batch.New(extractor, batch.Options{
		Strategy: strategy,
		Policy:   policy,
		TempDir:  cfg.Extract.TempDir,
		Progress: func(index, total int, sourceFile string) {
			cmd.Printf("[%d/%d] %s\n", index, total, sourceFile)
		},
	}), nil
}

func printSummary(cmd *cobra.Command, result *model.BatchResult) {
	s := result.Summarize()

	cmd.Printf("\nProcessed %d PDF entries in %s\n", result.PDFCount, result.Elapsed.Round(time.Millisecond))
	cmd.Printf("  rows:          %d\n", s.Rows)
	cmd.Printf("  documents:     %d\n", s.Documents)
	cmd.Printf("  beneficiaries: %d\n", s.Beneficiaries)
	cmd.Printf("  net total:     %.2f €\n", s.NetTotal)

	if len(result.Skipped) > 0 {
		cmd.Printf("  skipped (non-PDF): %d\n", len(result.Skipped))
	}

	if len(result.Failures) > 0 {
		cmd.Printf("\n%d document(s) failed:\n", len(result.Failures))
		for _, f := range result.Failures {
			cmd.Printf("  %s: %s\n", f.SourceFile, f.Reason)
		}
	}

	zap.L().Info("extraction summary",
		zap.String("run_id", result.RunID),
		zap.Int("rows", s.Rows),
		zap.Int("documents", s.Documents),
		zap.Int("failed", s.Failed),
		zap.Float64("net_total", s.NetTotal),
	)
}

func init() {
	extractCmd.Flags().StringVar(&extractZip, "zip", "", "ZIP archive of PDF statements (required)")
	extractCmd.Flags().StringVar(&extractOut, "out", "", "output XLSX path (default timestamped name in current directory)")
	extractCmd.Flags().StringVar(&extractPolicy, "policy", "", "empty-line policy: placeholder or fail (default from config)")
	extractCmd.Flags().Bool("fallback", true, "also try the loose line pattern when the standard one finds nothing")
	_ = extractCmd.MarkFlagRequired("zip")
	rootCmd.AddCommand(extractCmd)
}
