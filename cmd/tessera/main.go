// Package main provides the entry point for the tessera spatial join
// tool.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jobrunner/tessera/internal/app"
	"github.com/jobrunner/tessera/internal/config"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var cfgFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tessera",
	Short: "Tessera - raster grid to region spatial join",
	Long: `Tessera joins raster grids against region polygons.

The index command assigns every cell of a raster grid to the region
containing its center and writes the resulting cell-to-region index as
CSV. The dump command replays that index against the raster files and
extracts one time series per region.

Features:
  - Shapefile, GeoJSON and GeoPackage region inputs
  - NetCDF rasters, including multi-file time ranges
  - Parallel batched processing
  - Multiple storage backends (local, AWS S3, Azure, HTTP)
  - Prometheus metrics`,
}

var indexCmd = &cobra.Command{
	Use:   "index --regions REGIONS RASTER...",
	Short: "Build the cell-to-region index",
	Long: `Build the cell-to-region index.

The grid geometry is read from the raster files; every cell center is
tested against the region polygons and one row per cell is written to
the output. Cells outside every region get an empty region id.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

var dumpCmd = &cobra.Command{
	Use:   "dump --index INDEX RASTER...",
	Short: "Extract per-region time series",
	Long: `Extract per-region time series.

Replays a previously built index against the raster files: for every
assigned cell and every time step in the requested range, one record
with the cell's value is written to the output.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDump,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("Tessera %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Build Date: %s\n", buildDate)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (json, text)")

	// Run flags
	rootCmd.PersistentFlags().Int("batch-size", 16, "rows (index) or time steps (dump) per batch")
	rootCmd.PersistentFlags().Int("threads", 0, "worker count (default: number of CPUs)")
	rootCmd.PersistentFlags().Int("prefetch", 2, "raster slices read ahead per worker")

	// Input flags
	rootCmd.PersistentFlags().String("id-field", "id", "region id attribute")
	rootCmd.PersistentFlags().String("layer", "", "GeoPackage layer (default: first feature layer)")
	rootCmd.PersistentFlags().String("grid-proj", "", "proj4 string of the raster grid, for reprojecting shapefiles")
	rootCmd.PersistentFlags().String("variable", "", "raster variable to read")
	rootCmd.PersistentFlags().String("x-var", "lon", "x coordinate variable")
	rootCmd.PersistentFlags().String("y-var", "lat", "y coordinate variable")
	rootCmd.PersistentFlags().Float64("lon-offset", 0, "offset added to raster x coordinates (e.g. -360)")

	// Storage flags
	rootCmd.PersistentFlags().String("storage-type", "local", "storage type (local, s3, azure, http)")
	rootCmd.PersistentFlags().String("storage-path", "./data", "local storage path")
	rootCmd.PersistentFlags().String("cache-dir", "./.cache", "staging directory for remote inputs")

	// Output flags
	rootCmd.PersistentFlags().String("output", "-", "output path, - for stdout")
	rootCmd.PersistentFlags().String("summary", "", "write a YAML run summary to this path")

	// Metrics flags
	rootCmd.PersistentFlags().Bool("metrics", false, "expose Prometheus metrics while running")
	rootCmd.PersistentFlags().String("metrics-addr", "127.0.0.1:9090", "metrics listen address")

	// Bind flags to viper
	pf := rootCmd.PersistentFlags()
	_ = viper.BindPFlag("logging.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", pf.Lookup("log-format"))
	_ = viper.BindPFlag("run.batch_size", pf.Lookup("batch-size"))
	_ = viper.BindPFlag("run.thread_count", pf.Lookup("threads"))
	_ = viper.BindPFlag("run.prefetch", pf.Lookup("prefetch"))
	_ = viper.BindPFlag("vector.id_field", pf.Lookup("id-field"))
	_ = viper.BindPFlag("vector.layer", pf.Lookup("layer"))
	_ = viper.BindPFlag("vector.grid_proj", pf.Lookup("grid-proj"))
	_ = viper.BindPFlag("raster.variable", pf.Lookup("variable"))
	_ = viper.BindPFlag("raster.x_var", pf.Lookup("x-var"))
	_ = viper.BindPFlag("raster.y_var", pf.Lookup("y-var"))
	_ = viper.BindPFlag("raster.lon_offset", pf.Lookup("lon-offset"))
	_ = viper.BindPFlag("storage.type", pf.Lookup("storage-type"))
	_ = viper.BindPFlag("storage.local_path", pf.Lookup("storage-path"))
	_ = viper.BindPFlag("storage.cache_dir", pf.Lookup("cache-dir"))
	_ = viper.BindPFlag("output.path", pf.Lookup("output"))
	_ = viper.BindPFlag("output.summary_file", pf.Lookup("summary"))
	_ = viper.BindPFlag("metrics.enabled", pf.Lookup("metrics"))
	_ = viper.BindPFlag("metrics.address", pf.Lookup("metrics-addr"))

	// Command-specific flags
	indexCmd.Flags().String("regions", "", "region polygon file (.shp, .geojson, .gpkg)")
	_ = indexCmd.MarkFlagRequired("regions")

	dumpCmd.Flags().String("index", "", "previously built index file")
	_ = dumpCmd.MarkFlagRequired("index")
	dumpCmd.Flags().Int("time-start", 0, "first time index, inclusive")
	dumpCmd.Flags().Int("time-end", 0, "last time index, exclusive (0: full range)")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// setup loads config, builds the logger and wires the application.
func setup(ctx context.Context) (*app.App, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing application: %w", err)
	}

	return application, logger, nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, logger, err := setup(ctx)
	if err != nil {
		return err
	}

	regions, _ := cmd.Flags().GetString("regions")

	logger.Info("starting index run",
		"version", version,
		"regions", regions,
		"rasters", len(args),
		"storage_type", application.Config.Storage.Type,
	)

	application.Start()
	defer shutdown(application)

	summary, err := application.RunIndex(ctx, app.IndexOptions{
		VectorPath:  regions,
		RasterPaths: args,
	})
	if err != nil {
		return err
	}

	logger.Info("index run finished",
		"cells", summary.Cells,
		"assigned", summary.Assigned,
		"duration", summary.Duration,
	)
	return nil
}

func runDump(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, logger, err := setup(ctx)
	if err != nil {
		return err
	}

	indexPath, _ := cmd.Flags().GetString("index")
	timeStart, _ := cmd.Flags().GetInt("time-start")
	timeEnd, _ := cmd.Flags().GetInt("time-end")

	logger.Info("starting dump run",
		"version", version,
		"index", indexPath,
		"rasters", len(args),
		"storage_type", application.Config.Storage.Type,
	)

	application.Start()
	defer shutdown(application)

	summary, err := application.RunDump(ctx, app.DumpOptions{
		IndexPath:   indexPath,
		RasterPaths: args,
		TimeStart:   timeStart,
		TimeEnd:     timeEnd,
	})
	if err != nil {
		return err
	}

	logger.Info("dump run finished",
		"records", summary.Records,
		"skipped_rows", summary.SkippedRows,
		"duration", summary.Duration,
	)
	return nil
}

func shutdown(application *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	application.Shutdown(ctx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(time.Now().UTC().Format(time.RFC3339))
			}
			return a
		},
	}

	// Logs go to stderr; stdout carries the results.
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
