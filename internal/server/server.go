package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/exec-relocations/ijss-cli/internal/batch"
	"github.com/exec-relocations/ijss-cli/internal/config"
	"github.com/exec-relocations/ijss-cli/internal/export"
	"github.com/exec-relocations/ijss-cli/internal/fetcher"
	"github.com/exec-relocations/ijss-cli/internal/model"
)

// Runner runs one batch extraction over a ZIP archive. Satisfied by
// *batch.Driver.
type Runner interface {
	Run(ctx context.Context, zipPath string) (*model.BatchResult, error)
}

// Server exposes the extraction pipeline over HTTP: an upload form, the
// extract endpoint, and a health probe.
type Server struct {
	runner   Runner
	exporter *export.Exporter
	cfg      config.ServerConfig
	limiter  *rate.Limiter
}

// New wires a Server around a batch runner and an exporter.
func New(runner Runner, exporter *export.Exporter, cfg config.ServerConfig) *Server {
	perMinute := cfg.UploadPerMinute
	if perMinute <= 0 {
		perMinute = 10
	}
	return &Server{
		runner:   runner,
		exporter: exporter,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

// Router builds the chi router with its middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleForm)
	r.Post("/extract", s.handleExtract)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

const uploadForm = `<!DOCTYPE html>
<html lang="fr">
<head><meta charset="utf-8"><title>Extraction bordereaux IJSS</title></head>
<body>
<h1>Extraction bordereaux IJSS</h1>
<p>Déposez une archive ZIP de bordereaux PDF, récupérez un classeur Excel.</p>
<form action="/extract" method="post" enctype="multipart/form-data">
<input type="file" name="archive" accept=".zip" required>
<button type="submit">Extraire</button>
</form>
</body>
</html>
`

func (s *Server) handleForm(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, uploadForm)
}

// handleExtract accepts a multipart "archive" field holding a ZIP of PDF
// statements and replies with the XLSX workbook as an attachment. Documents
// that fail to parse are reported in the response headers; the request only
// fails when the whole archive is unusable.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeJSONError(w, http.StatusTooManyRequests, "too many uploads, retry later")
		return
	}

	maxBytes := int64(s.cfg.MaxUploadMB) << 20
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	file, header, err := r.FormFile("archive")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, `multipart field "archive" is required`)
		return
	}
	defer file.Close() //nolint:errcheck

	zipPath, err := spoolUpload(file)
	if err != nil {
		zap.L().Error("server: spool upload", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "could not store upload")
		return
	}
	defer os.Remove(zipPath) //nolint:errcheck

	result, err := s.runner.Run(r.Context(), zipPath)
	if err != nil {
		switch {
		case eris.Is(err, fetcher.ErrBadArchive):
			writeJSONError(w, http.StatusBadRequest, "uploaded file is not a valid ZIP archive")
		case eris.Is(err, batch.ErrNoPDFEntries):
			writeJSONError(w, http.StatusBadRequest, "archive contains no PDF entries")
		default:
			zap.L().Error("server: batch run failed",
				zap.String("upload", header.Filename),
				zap.Error(err),
			)
			writeJSONError(w, http.StatusInternalServerError, "extraction failed")
		}
		return
	}

	if len(result.Records) == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":    "no records could be extracted from the archive",
			"failures": result.Failures,
		})
		return
	}

	data, err := s.exporter.WriteBytes(result)
	if err != nil {
		zap.L().Error("server: export failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "could not build workbook")
		return
	}

	summary := result.Summarize()
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", export.Filename(time.Now())))
	w.Header().Set("X-Extraction-Rows", fmt.Sprintf("%d", summary.Rows))
	w.Header().Set("X-Extraction-Documents", fmt.Sprintf("%d", summary.Documents))
	w.Header().Set("X-Extraction-Failed", fmt.Sprintf("%d", summary.Failed))
	w.Header().Set("X-Extraction-Net-Total", fmt.Sprintf("%.2f", summary.NetTotal))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)

	zap.L().Info("server: extraction served",
		zap.String("upload", header.Filename),
		zap.String("run_id", result.RunID),
		zap.Int("rows", summary.Rows),
		zap.Int("failed", summary.Failed),
	)
}

// spoolUpload copies the upload to a temp file so the batch driver can open
// it as a regular ZIP on disk.
func spoolUpload(src io.Reader) (string, error) {
	tmp, err := os.CreateTemp("", "ijss-upload-*.zip")
	if err != nil {
		return "", eris.Wrap(err, "server: create temp upload")
	}
	defer tmp.Close() //nolint:errcheck

	if _, err := io.Copy(tmp, src); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return "", eris.Wrap(err, "server: write temp upload")
	}
	return tmp.Name(), nil
}

// ListenAndServe runs the server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("server: listening", zap.Int("port", s.cfg.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
