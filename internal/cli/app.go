// Package cli wires configuration, storage and collaborators into a
// core.Service for the command-line tools.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"recordcore/internal/blob"
	"recordcore/internal/config"
	"recordcore/internal/core"
	"recordcore/internal/export"
	"recordcore/internal/locale"
)

// App holds the process-wide service and its collaborators.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Service *core.Service
	Format  *locale.Formatter
	Archive *blob.Archiver
	Metrics *prometheus.Registry
}

// Open builds an App from cfg. Logs go to logOut.
func Open(ctx context.Context, cfg config.Config, logOut io.Writer) (*App, error) {
	logger, err := config.NewLogger(cfg.Log, logOut)
	if err != nil {
		return nil, err
	}
	format, err := locale.New(cfg.Locale, cfg.Currency)
	if err != nil {
		return nil, err
	}
	registry := prometheus.NewRegistry()
	metrics, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		return nil, err
	}
	archive, err := blob.Open(ctx, blob.Config{
		Driver: blob.Driver(cfg.Blob.Driver),
		FSRoot: cfg.Blob.FSRoot,
		S3: blob.S3Config{
			Region:          cfg.Blob.S3.Region,
			Bucket:          cfg.Blob.S3.Bucket,
			Endpoint:        cfg.Blob.S3.Endpoint,
			AccessKeyID:     cfg.Blob.S3.AccessKeyID,
			SecretAccessKey: cfg.Blob.S3.SecretAccessKey,
			PathStyle:       cfg.Blob.S3.PathStyle,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open export archive: %w", err)
	}
	store, err := core.OpenPersistentStore(ctx, cfg.Storage, core.NewDefaultRulesEngine(cfg.StockThreshold))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	archiver := blob.NewArchiver(archive, nil)
	svc := core.NewService(store,
		core.WithLogger(logger),
		core.WithAuditRecorder(core.NewLogAuditRecorder(logger)),
		core.WithMetricsRecorder(metrics),
		core.WithTracer(core.NewOTelTracer(nil)),
		core.WithStockWarningThreshold(cfg.StockThreshold),
		core.WithPasswordHashing(cfg.HashPasswords),
		core.WithSpreadsheetWriter(export.NewSpreadsheetWriter()),
		core.WithDocumentWriter(export.NewDocumentWriter(format)),
		core.WithArchiver(archiver),
	)
	logger.Debug("store opened", "driver", cfg.Storage.Driver, "blob", archive.Driver())
	return &App{
		Config:  cfg,
		Logger:  logger,
		Service: svc,
		Format:  format,
		Archive: archiver,
		Metrics: registry,
	}, nil
}

// Close releases the store.
func (a *App) Close() error {
	if a == nil || a.Service == nil {
		return nil
	}
	return a.Service.Close()
}

// WriteMetrics prints one line per counter series and the sample count of
// each histogram series.
func (a *App) WriteMetrics(w io.Writer) error {
	families, err := a.Metrics.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	var errs []error
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := ""
			for i, lp := range m.GetLabel() {
				if i > 0 {
					labels += ","
				}
				labels += fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				_, err = fmt.Fprintf(w, "%s{%s} %g\n", mf.GetName(), labels, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				_, err = fmt.Fprintf(w, "%s_count{%s} %d\n", mf.GetName(), labels, m.GetHistogram().GetSampleCount())
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
