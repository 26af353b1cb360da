package batch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/exec-relocations/ijss-cli/internal/fetcher"
	"github.com/exec-relocations/ijss-cli/internal/model"
	"github.com/exec-relocations/ijss-cli/internal/ocr"
	"github.com/exec-relocations/ijss-cli/internal/parse"
)

// ErrNoPDFEntries marks an archive that unpacked fine but contained no PDF.
var ErrNoPDFEntries = eris.New("batch: archive contains no PDF entries")

// ProgressFunc receives a notification after each processed entry.
type ProgressFunc func(index, total int, sourceFile string)

// Options tunes a Driver. Zero values fall back to the defaults used by the
// extraction commands.
type Options struct {
	Strategy parse.Strategy
	Policy   parse.ZeroLinePolicy
	TempDir  string // work area parent; empty means os.TempDir
	Progress ProgressFunc
}

// Driver runs one batch extraction over a ZIP archive of PDF statements.
// Documents are processed sequentially in sorted entry order; one document's
// failure never stops the rest of the batch.
type Driver struct {
	extractor ocr.Extractor
	opts      Options
}

// New creates a batch driver around a PDF text extractor.
func New(extractor ocr.Extractor, opts Options) *Driver {
	if opts.Policy == "" {
		opts.Policy = parse.PolicyPlaceholder
	}
	if len(opts.Strategy.Name()) == 0 {
		opts.Strategy = parse.FallbackStrategy()
	}
	if opts.Progress == nil {
		opts.Progress = func(index, total int, sourceFile string) {
			zap.L().Info("batch: processed entry",
				zap.Int("index", index),
				zap.Int("total", total),
				zap.String("file", sourceFile),
			)
		}
	}
	return &Driver{extractor: extractor, opts: opts}
}

// Run unpacks the archive into an ephemeral work area, processes every PDF
// entry in sorted path order, and returns the accumulated records and
// failures. The work area is removed on every exit path. Archive-level
// problems (bad container, zero PDFs) fail the whole run; anything that goes
// wrong inside a single document becomes exactly one ExtractionFailure.
func (d *Driver) Run(ctx context.Context, zipPath string) (*model.BatchResult, error) {
	start := time.Now()

	workDir, err := os.MkdirTemp(d.opts.TempDir, "ijss-run-*")
	if err != nil {
		return nil, eris.Wrap(err, "batch: create work area")
	}
	defer os.RemoveAll(workDir) //nolint:errcheck

	extracted, err := fetcher.ExtractZIP(zipPath, workDir)
	if err != nil {
		return nil, err
	}

	result := &model.BatchResult{RunID: uuid.NewString()}

	var pdfs []string
	for _, path := range extracted {
		rel := memberName(workDir, path)
		if strings.EqualFold(filepath.Ext(path), ".pdf") {
			pdfs = append(pdfs, path)
		} else {
			result.Skipped = append(result.Skipped, rel)
		}
	}
	sort.Strings(pdfs)
	sort.Strings(result.Skipped)
	result.PDFCount = len(pdfs)

	if len(pdfs) == 0 {
		return nil, ErrNoPDFEntries
	}

	log := zap.L().With(zap.String("run_id", result.RunID))
	log.Info("batch: starting run",
		zap.Int("pdf_entries", len(pdfs)),
		zap.Int("skipped_entries", len(result.Skipped)),
	)

	for i, path := range pdfs {
		source := memberName(workDir, path)

		records, docErr := d.processDocument(ctx, path, source)
		if docErr != nil {
			result.Failures = append(result.Failures, model.ExtractionFailure{
				SourceFile: source,
				Reason:     docErr.Error(),
			})
			log.Warn("batch: document failed",
				zap.String("file", source),
				zap.Error(docErr),
			)
		} else {
			result.Records = append(result.Records, records...)
		}

		d.opts.Progress(i+1, len(pdfs), source)
	}

	result.Elapsed = time.Since(start)
	log.Info("batch: run complete",
		zap.Int("records", len(result.Records)),
		zap.Int("failures", len(result.Failures)),
		zap.Duration("elapsed", result.Elapsed),
	)

	return result, nil
}

// processDocument extracts one PDF's records. A panic inside the text
// extraction or parsing of a single document is contained here so it cannot
// take down the sibling entries.
func (d *Driver) processDocument(ctx context.Context, path, source string) (records []model.ExtractedRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = eris.Errorf("unexpected error while reading document: %v", r)
		}
	}()

	text, err := d.extractor.ExtractText(ctx, path)
	if err != nil {
		return nil, err
	}

	return parse.Assemble(source, text, d.opts.Strategy, d.opts.Policy)
}

// memberName turns an extracted file path back into its archive member name.
func memberName(workDir, path string) string {
	rel, err := filepath.Rel(workDir, path)
	if err != nil {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}
