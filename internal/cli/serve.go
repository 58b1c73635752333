package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fmueller/whisper-api/internal/server"
	"github.com/fmueller/whisper-api/internal/upload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the transcription HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			serveFn := app.serveFn
			if serveFn == nil {
				serveFn = app.serve
			}
			return serveFn(cmd.Context())
		},
	}

	bindServeFlags(cmd.Flags(), app)
	return cmd
}

func (a *appState) serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := a.newServer(ctx)
	if err != nil {
		return err
	}
	return srv.Run(ctx, a.cfg.Listen)
}

// newServer runs the startup sequence: engine (toolchain and model), then the
// scratch directory, then the HTTP server.
func (a *appState) newServer(ctx context.Context) (*server.Server, error) {
	engineFn := a.engineFn
	if engineFn == nil {
		engineFn = a.buildEngine
	}

	engine, err := engineFn(ctx)
	if err != nil {
		return nil, err
	}

	store, err := upload.NewStore(a.cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("prepare upload directory: %w", err)
	}
	a.log().Debug("upload directory ready", zap.String("path", store.Dir()))

	var registry *prometheus.Registry
	if a.cfg.Metrics {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	uploadLimit := a.cfg.UploadLimit
	if limit, err := a.cfg.UploadLimitBytes(); err != nil {
		return nil, err
	} else if limit == 0 {
		uploadLimit = ""
	}

	return server.New(server.Options{
		Engine:      engine,
		Store:       store,
		Language:    a.cfg.Language,
		UploadLimit: uploadLimit,
		Registry:    registry,
		Logger:      a.log().With(zap.String("component", "http")),
	})
}
