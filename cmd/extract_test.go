package main

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chTempDir switches the working directory so config.Load does not pick up a
// stray config.yaml.
func chTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
	return dir
}

// execute runs the root command with args and captures its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		extractZip, extractOut, extractPolicy = "", "", ""
		inspectFile, inspectSheet = "", "Bordereaux"
		configInitPath, configInitForce = "config.yaml", false
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

func writeZIP(t *testing.T, dir string, entries map[string]string) string {
	t.Helper()

	path := filepath.Join(dir, "statements.zip")
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

func TestExtract_UnreadablePDFsReported(t *testing.T) {
	dir := chTempDir(t)
	zipPath := writeZIP(t, dir, map[string]string{
		"scan1.pdf": "not really a pdf",
		"scan2.pdf": "also not a pdf",
	})

	out, err := execute(t, "extract", "--zip", zipPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no records extracted")

	assert.Contains(t, out, "[1/2] scan1.pdf")
	assert.Contains(t, out, "[2/2] scan2.pdf")
	assert.Contains(t, out, "2 document(s) failed")
	assert.Contains(t, out, "scan1.pdf")
	assert.Contains(t, out, "scan2.pdf")

	// No workbook on all-failed runs.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".xlsx")
	}
}

func TestExtract_NoPDFEntries(t *testing.T) {
	dir := chTempDir(t)
	zipPath := writeZIP(t, dir, map[string]string{"notes.txt": "nothing"})

	_, err := execute(t, "extract", "--zip", zipPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no PDF entries")
}

func TestExtract_BadPolicyRejected(t *testing.T) {
	dir := chTempDir(t)
	zipPath := writeZIP(t, dir, map[string]string{"a.pdf": "pdf"})

	_, err := execute(t, "extract", "--zip", zipPath, "--policy", "explode")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid empty-line policy")
}

func TestExtract_MissingZipFlag(t *testing.T) {
	chTempDir(t)

	_, err := execute(t, "extract")
	require.Error(t, err)
}
