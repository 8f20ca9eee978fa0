// Command convert rewrites ERA5-Land NetCDF data as SHETRAN time-series
// input files, using a cell map produced by the external GIS alignment step.
//
// Usage:
//
//	convert -input evaporation_2000-2021.nc -cellmap essequibo_cells.asc \
//	  -out ./shetran-input -prefix essequibo -vars e,pev -progress
//
// Settings may also come from the environment (see internal/config); flags
// take precedence.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gosuri/uiprogress"

	httpadapter "github.com/openhydro/era5-shetran-etl/internal/adapter/http"
	"github.com/openhydro/era5-shetran-etl/internal/config"
	"github.com/openhydro/era5-shetran-etl/internal/domain"
	"github.com/openhydro/era5-shetran-etl/internal/era5"
	"github.com/openhydro/era5-shetran-etl/internal/grid"
	"github.com/openhydro/era5-shetran-etl/internal/observability"
	"github.com/openhydro/era5-shetran-etl/internal/pipeline"
	"github.com/openhydro/era5-shetran-etl/internal/shetran"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	input := flag.String("input", "", "path to an ERA5-Land file in NetCDF format")
	cellMap := flag.String("cellmap", "", "path to the GIS cell map (ESRI ASCII grid)")
	outDir := flag.String("out", "", "output directory for SHETRAN series files")
	prefix := flag.String("prefix", "", "output file name prefix")
	vars := flag.String("vars", "", "comma-separated ERA5 variable names")
	start := flag.String("start", "", "start of the extraction window (RFC3339)")
	end := flag.String("end", "", "end of the extraction window (RFC3339, exclusive)")
	progress := flag.Bool("progress", false, "draw a terminal progress bar")
	flag.Parse()

	applyFlags(cfg, *input, *cellMap, *outDir, *prefix, *vars)
	if err := applyWindowFlags(cfg, *start, *end); err != nil {
		slog.Error("invalid time window flag", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	if err := run(cfg, logger, metrics, *progress); err != nil {
		logger.Error("conversion failed", "error", err)
		os.Exit(1)
	}
}

func applyFlags(cfg *config.Config, input, cellMap, outDir, prefix, vars string) {
	if input != "" {
		cfg.InputPath = input
	}
	if cellMap != "" {
		cfg.CellMapPath = cellMap
	}
	if outDir != "" {
		cfg.OutputDir = outDir
	}
	if prefix != "" {
		cfg.OutputPrefix = prefix
	}
	if vars != "" {
		cfg.Variables = strings.Split(vars, ",")
	}
}

func applyWindowFlags(cfg *config.Config, start, end string) error {
	if start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return fmt.Errorf("-start: %w", err)
		}
		cfg.StartTime = t.UTC()
	}
	if end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return fmt.Errorf("-end: %w", err)
		}
		cfg.EndTime = t.UTC()
	}
	return nil
}

func run(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, progress bool) error {
	variables, err := domain.ResolveVariables(cfg.Variables)
	if err != nil {
		return err
	}
	names := make([]string, len(variables))
	for i, v := range variables {
		names[i] = v.Name
	}

	ds, err := era5.Open(cfg.InputPath, names)
	if err != nil {
		return err
	}
	defer ds.Close()
	logger.Info("dataset opened", ds.Summary()...)

	raster, err := grid.ReadASC(cfg.CellMapPath)
	if err != nil {
		return err
	}
	cells, err := grid.CellMapFromRaster(raster, len(ds.Lats()), len(ds.Lons()))
	if err != nil {
		return err
	}
	metrics.CellsMapped.Set(float64(cells.NumCells()))
	logger.Info("cell map loaded", "cells", cells.NumCells(), "squares", raster.NRows*raster.NCols)

	extractor, err := era5.NewStepExtractor(ds, names, cfg.StartTime, cfg.EndTime)
	if err != nil {
		return err
	}

	writer, err := shetran.NewWriter(cfg.OutputDir, cfg.OutputPrefix, variables, cells.NumCells(), cfg.Precision, logger)
	if err != nil {
		return err
	}

	transformer := pipeline.NewTransformer(variables, cells, logger)
	p := pipeline.New(extractor, transformer, writer, logger, metrics)

	if progress {
		uiprogress.Start()
		bar := uiprogress.AddBar(extractor.TotalSteps()).AppendCompleted().PrependElapsed()
		p.SetProgressFunc(func(done, _ int) {
			bar.Set(done) //nolint:errcheck // cosmetic only
		})
		defer uiprogress.Stop()
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := p.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	if runErr != nil {
		writer.Abort()
		return runErr
	}
	if ctx.Err() != nil {
		writer.Abort()
		logger.Warn("run interrupted, partial output left in place", "dir", cfg.OutputDir)
		return nil
	}

	if err := writer.Finish(extractor.TotalSteps()); err != nil {
		return err
	}
	return writeSeriesMap(cfg, raster, logger)
}

// writeSeriesMap writes the cell-map grid renumbered with SHETRAN series
// numbers, for referencing from the SHETRAN library file.
func writeSeriesMap(cfg *config.Config, raster *grid.Raster, logger *slog.Logger) error {
	path := filepath.Join(cfg.OutputDir, cfg.OutputPrefix+"_cellmap.asc")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create series map: %w", err)
	}
	defer f.Close()
	if err := grid.WriteASC(f, grid.SeriesRaster(raster)); err != nil {
		return fmt.Errorf("write series map: %w", err)
	}
	logger.Info("wrote series map", "path", path)
	return nil
}
