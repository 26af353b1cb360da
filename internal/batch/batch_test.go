package batch

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exec-relocations/ijss-cli/internal/fetcher"
	"github.com/exec-relocations/ijss-cli/internal/parse"
)

const goodStatement = `CAISSE PRIMAIRE D'ASSURANCE MALADIE
Journée du 15/02/2025
Matricule : 00123456
Détail des prestations pour Jean DUPONT
02/01/2025 au 05/01/2025 I.J. NORMALES 3 50,00 € 150,00 €
Total : 150,00 €
`

const brokenStatement = `Relevé illisible, aucun champ exploitable.`

// stubExtractor maps PDF basenames to canned text or errors, and records the
// order in which documents were read.
type stubExtractor struct {
	texts  map[string]string
	errs   map[string]error
	panics map[string]bool
	seen   []string
}

func (s *stubExtractor) ExtractText(_ context.Context, pdfPath string) (string, error) {
	name := filepath.Base(pdfPath)
	s.seen = append(s.seen, name)
	if s.panics[name] {
		panic("corrupted xref table")
	}
	if err, ok := s.errs[name]; ok {
		return "", err
	}
	return s.texts[name], nil
}

func createTestZIP(t *testing.T, entries map[string]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "batch.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for name, content := range entries {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return path
}

func TestRun_MixedSuccessAndFailure(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"a_dupont.pdf": "pdf-a",
		"b_broken.pdf": "pdf-b",
	})
	extractor := &stubExtractor{texts: map[string]string{
		"a_dupont.pdf": goodStatement,
		"b_broken.pdf": brokenStatement,
	}}

	d := New(extractor, Options{Policy: parse.PolicyFail})
	result, err := d.Run(context.Background(), zipPath)
	require.NoError(t, err)

	assert.Equal(t, 2, result.PDFCount)
	require.Len(t, result.Records, 1)
	require.Len(t, result.Failures, 1)
	assert.Len(t, result.Records, result.PDFCount-len(result.Failures))

	rec := result.Records[0]
	assert.Equal(t, "a_dupont.pdf", rec.SourceFile)
	assert.Equal(t, "Jean DUPONT", rec.Beneficiary)
	assert.Equal(t, "I.J. NORMALES", rec.BenefitType)
	assert.InDelta(t, 150.00, rec.NetAmount, 1e-9)

	fail := result.Failures[0]
	assert.Equal(t, "b_broken.pdf", fail.SourceFile)
	assert.NotEmpty(t, fail.Reason)

	assert.NotEmpty(t, result.RunID)
	assert.Positive(t, result.Elapsed)
}

func TestRun_SortedEntryOrder(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"c.pdf":        goodStatement,
		"a.pdf":        goodStatement,
		"sub/b.pdf":    goodStatement,
		"z_notes.txt":  "ignore me",
		"thumbs/x.png": "ignore me too",
	})
	extractor := &stubExtractor{texts: map[string]string{
		"a.pdf": goodStatement,
		"b.pdf": goodStatement,
		"c.pdf": goodStatement,
	}}

	d := New(extractor, Options{})
	result, err := d.Run(context.Background(), zipPath)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.pdf", "c.pdf", "b.pdf"}, extractor.seen)

	sources := make([]string, 0, len(result.Records))
	for _, rec := range result.Records {
		sources = append(sources, rec.SourceFile)
	}
	assert.Equal(t, []string{"a.pdf", "c.pdf", "sub/b.pdf"}, sources)

	assert.Equal(t, []string{"thumbs/x.png", "z_notes.txt"}, result.Skipped)
}

func TestRun_UppercaseExtension(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{"SCAN.PDF": "pdf"})
	extractor := &stubExtractor{texts: map[string]string{"SCAN.PDF": goodStatement}}

	d := New(extractor, Options{})
	result, err := d.Run(context.Background(), zipPath)
	require.NoError(t, err)

	assert.Equal(t, 1, result.PDFCount)
	require.Len(t, result.Records, 1)
}

func TestRun_NoPDFEntries(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"readme.txt": "nothing here",
		"photo.jpg":  "still nothing",
	})

	d := New(&stubExtractor{}, Options{})
	result, err := d.Run(context.Background(), zipPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPDFEntries)
	assert.Nil(t, result)
}

func TestRun_BadArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-zip.zip")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	d := New(&stubExtractor{}, Options{})
	_, err := d.Run(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, fetcher.ErrBadArchive)
}

func TestRun_PanicBecomesFailure(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"bad.pdf":  "pdf",
		"good.pdf": "pdf",
	})
	extractor := &stubExtractor{
		texts:  map[string]string{"good.pdf": goodStatement},
		panics: map[string]bool{"bad.pdf": true},
	}

	d := New(extractor, Options{})
	result, err := d.Run(context.Background(), zipPath)
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "bad.pdf", result.Failures[0].SourceFile)
	assert.Contains(t, result.Failures[0].Reason, "unexpected error")
}

func TestRun_ProgressCallback(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"a.pdf": "pdf",
		"b.pdf": "pdf",
	})
	extractor := &stubExtractor{texts: map[string]string{
		"a.pdf": goodStatement,
		"b.pdf": goodStatement,
	}}

	type call struct {
		index, total int
		file         string
	}
	var calls []call

	d := New(extractor, Options{
		Progress: func(index, total int, sourceFile string) {
			calls = append(calls, call{index, total, sourceFile})
		},
	})
	_, err := d.Run(context.Background(), zipPath)
	require.NoError(t, err)

	assert.Equal(t, []call{
		{1, 2, "a.pdf"},
		{2, 2, "b.pdf"},
	}, calls)
}

func TestRun_WorkAreaRemoved(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{"a.pdf": "pdf"})
	extractor := &stubExtractor{texts: map[string]string{"a.pdf": goodStatement}}

	tempParent := t.TempDir()
	d := New(extractor, Options{TempDir: tempParent})
	_, err := d.Run(context.Background(), zipPath)
	require.NoError(t, err)

	entries, err := os.ReadDir(tempParent)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_PlaceholderPolicyDefault(t *testing.T) {
	noLines := `Journée du 15/02/2025
Détail des prestations pour Jean DUPONT
Total : 0,00 €
`
	zipPath := createTestZIP(t, map[string]string{"empty.pdf": "pdf"})
	extractor := &stubExtractor{texts: map[string]string{"empty.pdf": noLines}}

	d := New(extractor, Options{})
	result, err := d.Run(context.Background(), zipPath)
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Empty(t, result.Failures)
	assert.Empty(t, result.Records[0].BenefitType)
	assert.False(t, result.Records[0].HasPeriod())
}
