// Package app provides application initialization and wiring.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jobrunner/tessera/internal/adapters/metrics"
	"github.com/jobrunner/tessera/internal/adapters/raster"
	"github.com/jobrunner/tessera/internal/adapters/sink"
	"github.com/jobrunner/tessera/internal/adapters/storage"
	"github.com/jobrunner/tessera/internal/adapters/vector"
	"github.com/jobrunner/tessera/internal/application"
	"github.com/jobrunner/tessera/internal/config"
	"github.com/jobrunner/tessera/internal/domain"
	"github.com/jobrunner/tessera/internal/ports/output"
)

// App holds all application components.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Storage       output.ObjectStorage
	Metrics       *metrics.Collector
	MetricsServer *metrics.Server

	collector output.MetricsCollector
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector("tessera")
		app.MetricsServer = metrics.NewServer(
			cfg.Metrics.Address,
			cfg.Metrics.Path,
			logger,
		)
	}

	if app.Metrics != nil {
		app.collector = app.Metrics
	} else {
		app.collector = &output.NoOpMetrics{}
	}

	store, err := initStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	app.Storage = store

	return app, nil
}

// Start starts the background components.
func (a *App) Start() {
	if a.MetricsServer != nil {
		a.MetricsServer.Start()
	}
}

// Shutdown gracefully stops the background components.
func (a *App) Shutdown(ctx context.Context) {
	if a.MetricsServer != nil {
		if err := a.MetricsServer.Stop(ctx); err != nil {
			a.Logger.Error("metrics server shutdown error", "error", err)
		}
	}
}

// IndexOptions selects the inputs of an index run. The grid geometry is
// read from the raster files; the index is built against that grid.
type IndexOptions struct {
	VectorPath  string
	RasterPaths []string
}

// RunIndex builds the cell-to-region index and writes it to the
// configured output.
func (a *App) RunIndex(ctx context.Context, opts IndexOptions) (*application.IndexSummary, error) {
	rasterPaths, err := a.fetchAll(ctx, opts.RasterPaths)
	if err != nil {
		return nil, err
	}
	vectorPath, err := a.fetchVector(ctx, opts.VectorPath)
	if err != nil {
		return nil, err
	}

	src, err := raster.OpenStack(rasterPaths, raster.Options{
		Variable:  a.Config.Raster.Variable,
		XVar:      a.Config.Raster.XVar,
		YVar:      a.Config.Raster.YVar,
		LonOffset: a.Config.Raster.LonOffset,
	})
	if err != nil {
		return nil, err
	}
	grid := src.Meta().Grid()
	if err := src.Close(); err != nil {
		a.Logger.Warn("closing raster", "error", err)
	}

	vsrc, err := vector.Open(vectorPath, vector.Options{
		IDField:  a.Config.Vector.IDField,
		Layer:    a.Config.Vector.Layer,
		GridProj: a.Config.Vector.GridProj,
	})
	if err != nil {
		return nil, err
	}

	store, stats, err := application.LoadRegions(vsrc, a.Logger)
	closeErr := vsrc.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		a.Logger.Warn("closing vector source", "error", closeErr)
	}

	out, err := a.openOutput()
	if err != nil {
		return nil, err
	}
	writer, err := sink.NewIndexWriter(out)
	if err != nil {
		return nil, err
	}

	indexer, err := application.NewIndexer(store, grid, writer, a.collector, a.Logger,
		application.IndexerConfig{
			BatchSize:   a.Config.Run.BatchSize,
			ThreadCount: a.Config.Run.ThreadCount,
		})
	if err != nil {
		return nil, err
	}

	summary, err := indexer.Run(ctx)
	if err != nil {
		_ = writer.Close()
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing index output: %w", err)
	}

	summary.RegionsLoaded = stats.Loaded
	summary.RegionsSkipped = stats.Skipped

	if err := a.writeSummary(summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// DumpOptions selects the inputs of a dump run.
type DumpOptions struct {
	IndexPath   string
	RasterPaths []string
	TimeStart   int
	TimeEnd     int
}

// RunDump extracts the per-region time series selected by a previously
// built index.
func (a *App) RunDump(ctx context.Context, opts DumpOptions) (*application.DumpSummary, error) {
	rasterPaths, err := a.fetchAll(ctx, opts.RasterPaths)
	if err != nil {
		return nil, err
	}

	cells, err := a.loadIndex(ctx, opts.IndexPath)
	if err != nil {
		return nil, err
	}

	src, err := raster.OpenStack(rasterPaths, raster.Options{
		Variable:  a.Config.Raster.Variable,
		XVar:      a.Config.Raster.XVar,
		YVar:      a.Config.Raster.YVar,
		LonOffset: a.Config.Raster.LonOffset,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			a.Logger.Warn("closing raster", "error", err)
		}
	}()

	out, err := a.openOutput()
	if err != nil {
		return nil, err
	}
	writer, err := sink.NewDumpWriter(out)
	if err != nil {
		return nil, err
	}

	extractor, err := application.NewExtractor(cells, src, writer, a.collector, a.Logger,
		application.ExtractorConfig{
			BatchSize:   a.Config.Run.BatchSize,
			ThreadCount: a.Config.Run.ThreadCount,
			Prefetch:    a.Config.Run.Prefetch,
			TimeStart:   opts.TimeStart,
			TimeEnd:     opts.TimeEnd,
		})
	if err != nil {
		return nil, err
	}

	summary, err := extractor.Run(ctx)
	if err != nil {
		_ = writer.Close()
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing dump output: %w", err)
	}

	if err := a.writeSummary(summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// loadIndex stages a previously built index table, like any other input,
// and parses it.
func (a *App) loadIndex(ctx context.Context, key string) (*domain.RegionCells, error) {
	path, err := a.fetch(ctx, key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	cells, skipped, err := sink.ReadIndex(f)
	_ = f.Close()
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		a.Logger.Warn("index contained malformed lines", "skipped", skipped)
	}
	return cells, nil
}

// fetch stages one input file locally, downloading through the storage
// adapter when it is not already on disk.
func (a *App) fetch(ctx context.Context, key string) (string, error) {
	if _, err := os.Stat(key); err == nil {
		return key, nil
	}

	if ls, ok := a.Storage.(*storage.LocalStorage); ok {
		return ls.FullPath(key), nil
	}

	dest := filepath.Join(a.Config.Storage.CacheDir, filepath.FromSlash(key))
	if _, err := os.Stat(dest); err == nil {
		a.Logger.Debug("using cached input", "key", key, "path", dest)
		return dest, nil
	}

	start := time.Now()
	err := a.Storage.Download(ctx, key, dest)
	a.collector.IncStorageOperations("download", err == nil)
	a.collector.ObserveStorageDuration("download", time.Since(start))
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", key, err)
	}

	a.Logger.Info("fetched input", "key", key, "path", dest)
	return dest, nil
}

// fetchAll stages a list of input files.
func (a *App) fetchAll(ctx context.Context, keys []string) ([]string, error) {
	paths := make([]string, 0, len(keys))
	for _, key := range keys {
		p, err := a.fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// fetchVector stages a vector file. Shapefiles are staged with their
// sidecar files; missing sidecars are tolerated since only some are
// required.
func (a *App) fetchVector(ctx context.Context, key string) (string, error) {
	path, err := a.fetch(ctx, key)
	if err != nil {
		return "", err
	}

	if strings.EqualFold(filepath.Ext(key), ".shp") {
		base := strings.TrimSuffix(key, filepath.Ext(key))
		for _, ext := range []string{".dbf", ".shx", ".prj"} {
			sidecar := base + ext
			ok, err := a.Storage.Exists(ctx, sidecar)
			if err != nil || !ok {
				continue
			}
			if _, err := a.fetch(ctx, sidecar); err != nil {
				return "", err
			}
		}
	}

	return path, nil
}

// stdoutWriter hides the Close method of os.Stdout so sinks never close
// the process's own stdout.
type stdoutWriter struct {
	io.Writer
}

// openOutput returns the configured result writer.
func (a *App) openOutput() (io.Writer, error) {
	path := a.Config.Output.Path
	if path == "" || path == "-" {
		return stdoutWriter{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating output: %w", err)
	}
	return f, nil
}

// writeSummary writes the run summary as YAML when configured.
func (a *App) writeSummary(summary interface{}) error {
	if a.Config.Output.SummaryFile == "" {
		return nil
	}
	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	if err := os.WriteFile(a.Config.Output.SummaryFile, data, 0o600); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}

// initStorage initializes the appropriate storage adapter.
func initStorage(ctx context.Context, cfg config.StorageConfig) (output.ObjectStorage, error) {
	switch cfg.Type {
	case "local":
		return storage.NewLocalStorage(cfg.LocalPath), nil

	case "s3":
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})

	case "azure":
		return storage.NewAzureStorage(storage.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Azure.Prefix,
		})

	case "http":
		return storage.NewHTTPStorage(storage.HTTPConfig{
			BaseURL:  cfg.HTTP.BaseURL,
			Manifest: cfg.HTTP.Manifest,
			Timeout:  cfg.HTTP.Timeout,
			Username: cfg.HTTP.Username,
			Password: cfg.HTTP.Password,
		}), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
