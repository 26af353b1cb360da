package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/exec-relocations/ijss-cli/internal/fetcher"
)

var (
	inspectFile  string
	inspectSheet string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Summarize a previously produced workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rows, err := fetcher.ReadXLSX(inspectFile, fetcher.XLSXOptions{
			SheetName: inspectSheet,
			SkipRows:  1,
		})
		if err != nil {
			return err
		}

		documents := make(map[string]struct{})
		beneficiaries := make(map[string]struct{})
		perDoc := make(map[string]float64)
		count := 0

		for _, row := range rows {
			if len(row) < 10 {
				continue
			}
			// Skip the shaded per-document total rows.
			if row[4] == "Total" {
				continue
			}
			count++
			documents[row[0]] = struct{}{}
			if row[3] != "" {
				beneficiaries[row[3]] = struct{}{}
			}
			if net, ok := parseCellAmount(row[9]); ok {
				perDoc[row[0]] = net
			}
		}

		var netTotal float64
		for _, net := range perDoc {
			netTotal += net
		}

		cmd.Printf("Workbook %s\n", inspectFile)
		cmd.Printf("  rows:          %d\n", count)
		cmd.Printf("  documents:     %d\n", len(documents))
		cmd.Printf("  beneficiaries: %d\n", len(beneficiaries))
		cmd.Printf("  net total:     %.2f €\n", netTotal)
		return nil
	},
}

// parseCellAmount reads a formatted amount cell ("1,234.56").
func parseCellAmount(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFile, "file", "", "XLSX workbook to inspect (required)")
	inspectCmd.Flags().StringVar(&inspectSheet, "sheet", "Bordereaux", "sheet name")
	_ = inspectCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(inspectCmd)
}
