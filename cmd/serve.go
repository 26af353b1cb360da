package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/exec-relocations/ijss-cli/internal/batch"
	"github.com/exec-relocations/ijss-cli/internal/export"
	"github.com/exec-relocations/ijss-cli/internal/ocr"
	"github.com/exec-relocations/ijss-cli/internal/parse"
	"github.com/exec-relocations/ijss-cli/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the upload server",
	Long:  "Starts an HTTP server with an upload form: POST a ZIP of statements to /extract and receive the Excel workbook.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		extractor, err := ocr.NewExtractor(cfg.OCR)
		if err != nil {
			return err
		}

		strategy := parse.StandardStrategy()
		if cfg.Extract.Fallback {
			strategy = parse.FallbackStrategy()
		}
		driver := batch.New(extractor, batch.Options{
			Strategy: strategy,
			Policy:   parse.ZeroLinePolicy(cfg.Extract.EmptyLinePolicy),
			TempDir:  cfg.Extract.TempDir,
		})

		serverCfg := cfg.Server
		if servePort != 0 {
			serverCfg.Port = servePort
		}

		srv := server.New(driver, export.New(cfg.Export), serverCfg)

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.ListenAndServe(ctx)
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
