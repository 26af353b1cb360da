package export

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/exec-relocations/ijss-cli/internal/config"
	"github.com/exec-relocations/ijss-cli/internal/model"
)

// columns defines the fixed workbook column order.
var columns = []string{
	"Fichier source",
	"Date de paiement",
	"Matricule",
	"Bénéficiaire",
	"Nature de la prestation",
	"Date du",
	"Date au",
	"Quantité",
	"Montant brut",
	"Montant net",
}

const (
	dateFmt   = "dd/mm/yyyy"
	amountFmt = "#,##0.00"
	// Light blue fill for per-document total rows, same shade the HR team
	// uses in their hand-made recaps.
	totalFill = "ADD8E6"
)

// Exporter renders batch results as styled XLSX workbooks.
type Exporter struct {
	sheetName string
	totalRows bool
}

// New creates an Exporter from config.
func New(cfg config.ExportConfig) *Exporter {
	sheet := cfg.SheetName
	if sheet == "" {
		sheet = "Bordereaux"
	}
	return &Exporter{sheetName: sheet, totalRows: cfg.TotalRows}
}

// Filename returns the default timestamped output name.
func Filename(now time.Time) string {
	return fmt.Sprintf("bordereaux_ijss_%s.xlsx", now.Format("20060102_150405"))
}

// Write renders the workbook to a file.
func (e *Exporter) Write(result *model.BatchResult, path string) error {
	data, err := e.WriteBytes(result)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "export: write file")
	}
	return nil
}

// WriteBytes renders the workbook in memory. Dates are written as native
// date cells and amounts as native numbers, so the spreadsheet sorts and
// sums without any text-to-number conversion.
func (e *Exporter) WriteBytes(result *model.BatchResult) ([]byte, error) {
	start := time.Now()
	rows := e.displayRows(result)

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	sheet := e.sheetName
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, eris.Wrap(err, "export: rename sheet")
	}

	styles, err := newStyleSet(f)
	if err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(sheet, "A1", &columns); err != nil {
		return nil, eris.Wrap(err, "export: write header")
	}

	for i, rec := range rows {
		if err := e.writeRow(f, sheet, i+2, rec, styles); err != nil {
			return nil, err
		}
	}

	// Filters on the header row.
	filterRange := fmt.Sprintf("A1:%s1", columnName(len(columns)))
	if err := f.AutoFilter(sheet, filterRange, nil); err != nil {
		return nil, eris.Wrap(err, "export: set autofilter")
	}

	e.sizeColumns(f, sheet, rows)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, eris.Wrap(err, "export: serialize workbook")
	}

	zap.L().Info("export: workbook ready",
		zap.String("run_id", result.RunID),
		zap.Int("rows", len(rows)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return buf.Bytes(), nil
}

// displayRows returns the records to render, with per-document total rows
// appended when enabled.
func (e *Exporter) displayRows(result *model.BatchResult) []model.ExtractedRecord {
	if !e.totalRows {
		return result.Records
	}

	var rows []model.ExtractedRecord
	for i, rec := range result.Records {
		rows = append(rows, rec)

		last := i == len(result.Records)-1 || result.Records[i+1].SourceFile != rec.SourceFile
		if last {
			rows = append(rows, model.ExtractedRecord{
				SourceFile:  rec.SourceFile,
				PaymentDate: rec.PaymentDate,
				Matricule:   rec.Matricule,
				Beneficiary: rec.Beneficiary,
				BenefitType: "Total",
				NetAmount:   rec.NetAmount,
				TotalRow:    true,
			})
		}
	}
	return rows
}

// styleSet holds the cell style IDs created once per workbook.
type styleSet struct {
	date, amount          int
	totalDate, totalAmt   int
	totalText, totalBlank int
}

func newStyleSet(f *excelize.File) (styleSet, error) {
	var s styleSet
	var err error

	dateNumFmt := dateFmt
	amountNumFmt := amountFmt
	fill := excelize.Fill{Type: "pattern", Color: []string{totalFill}, Pattern: 1}

	if s.date, err = f.NewStyle(&excelize.Style{CustomNumFmt: &dateNumFmt}); err != nil {
		return s, eris.Wrap(err, "export: date style")
	}
	if s.amount, err = f.NewStyle(&excelize.Style{CustomNumFmt: &amountNumFmt}); err != nil {
		return s, eris.Wrap(err, "export: amount style")
	}
	if s.totalDate, err = f.NewStyle(&excelize.Style{CustomNumFmt: &dateNumFmt, Fill: fill}); err != nil {
		return s, eris.Wrap(err, "export: total date style")
	}
	if s.totalAmt, err = f.NewStyle(&excelize.Style{CustomNumFmt: &amountNumFmt, Fill: fill}); err != nil {
		return s, eris.Wrap(err, "export: total amount style")
	}
	if s.totalText, err = f.NewStyle(&excelize.Style{Fill: fill}); err != nil {
		return s, eris.Wrap(err, "export: total text style")
	}
	s.totalBlank = s.totalText

	return s, nil
}

func (e *Exporter) writeRow(f *excelize.File, sheet string, row int, rec model.ExtractedRecord, styles styleSet) error {
	dateStyle, amtStyle, textStyle := styles.date, styles.amount, 0
	if rec.TotalRow {
		dateStyle, amtStyle, textStyle = styles.totalDate, styles.totalAmt, styles.totalText
	}

	set := func(col int, v any, style int) error {
		cell := fmt.Sprintf("%s%d", columnName(col), row)
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return eris.Wrapf(err, "export: set cell %s", cell)
		}
		if style != 0 {
			if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
				return eris.Wrapf(err, "export: style cell %s", cell)
			}
		}
		return nil
	}
	setDate := func(col int, d time.Time) error {
		if d.IsZero() {
			return set(col, "", textStyle)
		}
		return set(col, d, dateStyle)
	}

	if err := set(1, rec.SourceFile, textStyle); err != nil {
		return err
	}
	if err := setDate(2, rec.PaymentDate); err != nil {
		return err
	}
	if err := set(3, rec.Matricule, textStyle); err != nil {
		return err
	}
	if err := set(4, rec.Beneficiary, textStyle); err != nil {
		return err
	}
	if err := set(5, rec.BenefitType, textStyle); err != nil {
		return err
	}
	if err := setDate(6, rec.PeriodStart); err != nil {
		return err
	}
	if err := setDate(7, rec.PeriodEnd); err != nil {
		return err
	}
	if err := set(8, rec.Quantity, textStyle); err != nil {
		return err
	}
	if err := set(9, rec.GrossAmount, amtStyle); err != nil {
		return err
	}
	return set(10, rec.NetAmount, amtStyle)
}

// sizeColumns widens each column to its longest rendered value.
func (e *Exporter) sizeColumns(f *excelize.File, sheet string, rows []model.ExtractedRecord) {
	widths := make([]int, len(columns))
	for i, h := range columns {
		widths[i] = len([]rune(h))
	}

	for _, rec := range rows {
		for i, v := range displayStrings(rec) {
			if n := len([]rune(v)); n > widths[i] {
				widths[i] = n
			}
		}
	}

	for i, w := range widths {
		col := columnName(i + 1)
		_ = f.SetColWidth(sheet, col, col, float64(w+2))
	}
}

// displayStrings renders a record the way the spreadsheet will show it, for
// column width calculation only.
func displayStrings(rec model.ExtractedRecord) []string {
	fmtDate := func(d time.Time) string {
		if d.IsZero() {
			return ""
		}
		return d.Format("02/01/2006")
	}
	return []string{
		rec.SourceFile,
		fmtDate(rec.PaymentDate),
		rec.Matricule,
		rec.Beneficiary,
		rec.BenefitType,
		fmtDate(rec.PeriodStart),
		fmtDate(rec.PeriodEnd),
		fmt.Sprintf("%d", rec.Quantity),
		fmt.Sprintf("%.2f", rec.GrossAmount),
		fmt.Sprintf("%.2f", rec.NetAmount),
	}
}

// columnName converts a 1-based column index to its letter reference.
func columnName(col int) string {
	name, _ := excelize.ColumnNumberToName(col)
	return name
}
