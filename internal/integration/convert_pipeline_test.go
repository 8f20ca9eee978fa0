package integration_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhydro/era5-shetran-etl/internal/domain"
	"github.com/openhydro/era5-shetran-etl/internal/era5"
	"github.com/openhydro/era5-shetran-etl/internal/grid"
	"github.com/openhydro/era5-shetran-etl/internal/observability"
	"github.com/openhydro/era5-shetran-etl/internal/pipeline"
	"github.com/openhydro/era5-shetran-etl/internal/shetran"
)

const unixSecs1900 = -2208988800

const cellMapASC = `ncols 1
nrows 1
xllcorner -62.9
yllcorner 8.1
cellsize 0.1
NODATA_value -9999
1
`

// writeSingleCellFixture builds an ERA5-Land style file with one grid point
// and three hourly accumulated precipitation samples, in metres.
func writeSingleCellFixture(t *testing.T, start time.Time, accumulated []float64) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "era5land.nc")
	cw, err := cdf.OpenWriter(path)
	require.NoError(t, err)

	hours := make([]int32, len(accumulated))
	for i := range hours {
		hours[i] = int32((start.Add(time.Duration(i)*time.Hour).Unix() - unixSecs1900) / 3600)
	}
	require.NoError(t, cw.AddVar("time", api.Variable{
		Values:     hours,
		Dimensions: []string{"time"},
	}))
	require.NoError(t, cw.AddVar("latitude", api.Variable{
		Values:     []float32{8.2},
		Dimensions: []string{"latitude"},
	}))
	require.NoError(t, cw.AddVar("longitude", api.Variable{
		Values:     []float32{-62.9},
		Dimensions: []string{"longitude"},
	}))

	tp := make([][][]float64, len(accumulated))
	for i, v := range accumulated {
		tp[i] = [][]float64{{v}}
	}
	require.NoError(t, cw.AddVar("tp", api.Variable{
		Values:     tp,
		Dimensions: []string{"time", "latitude", "longitude"},
	}))

	require.NoError(t, cw.Close())
	return path
}

// TestConvertPipeline wires the real extractor, transformer, and writer over
// a NetCDF fixture: one cell, three hourly accumulated precipitation samples
// of 0, 1.2 and 1.6 mm. Differencing and the m->mm conversion must yield
// hourly depths of 0.0, 1.2 and 0.4 mm, in source order.
func TestConvertPipeline(t *testing.T) {
	start := time.Date(2021, 6, 14, 1, 0, 0, 0, time.UTC)
	input := writeSingleCellFixture(t, start, []float64{0.0, 0.0012, 0.0016})

	ds, err := era5.Open(input, []string{"tp"})
	require.NoError(t, err)
	defer ds.Close()

	raster, err := grid.ParseASC(strings.NewReader(cellMapASC))
	require.NoError(t, err)
	cells, err := grid.CellMapFromRaster(raster, len(ds.Lats()), len(ds.Lons()))
	require.NoError(t, err)
	require.Equal(t, 1, cells.NumCells())

	variables, err := domain.ResolveVariables([]string{"tp"})
	require.NoError(t, err)

	extractor, err := era5.NewStepExtractor(ds, []string{"tp"}, time.Time{}, time.Time{})
	require.NoError(t, err)

	outDir := t.TempDir()
	writer, err := shetran.NewWriter(outDir, "essequibo", variables, cells.NumCells(), 3, slog.Default())
	require.NoError(t, err)

	transformer := pipeline.NewTransformer(variables, cells, slog.Default())
	p := pipeline.New(extractor, transformer, writer, slog.Default(), observability.NewMetricsForTesting())

	require.NoError(t, p.Run(context.Background()))
	require.NoError(t, writer.Finish(extractor.TotalSteps()))

	data, err := os.ReadFile(writer.SeriesPath("tp"))
	require.NoError(t, err)
	assert.Equal(t, "1\n0.000\n1.200\n0.400\n", string(data))

	steps, total, records := p.Status()
	assert.Equal(t, 3, steps)
	assert.Equal(t, 3, total)
	assert.Equal(t, int64(3), records) // cells x timesteps
}

// TestConvertPipeline_WindowSubset runs the same fixture restricted to the
// middle timestep. The first sample of the window passes through
// de-accumulation unchanged.
func TestConvertPipeline_WindowSubset(t *testing.T) {
	start := time.Date(2021, 6, 14, 1, 0, 0, 0, time.UTC)
	input := writeSingleCellFixture(t, start, []float64{0.0, 0.0012, 0.0016})

	ds, err := era5.Open(input, []string{"tp"})
	require.NoError(t, err)
	defer ds.Close()

	raster, err := grid.ParseASC(strings.NewReader(cellMapASC))
	require.NoError(t, err)
	cells, err := grid.CellMapFromRaster(raster, len(ds.Lats()), len(ds.Lons()))
	require.NoError(t, err)

	variables, err := domain.ResolveVariables([]string{"tp"})
	require.NoError(t, err)

	extractor, err := era5.NewStepExtractor(ds, []string{"tp"},
		start.Add(time.Hour), start.Add(2*time.Hour))
	require.NoError(t, err)

	outDir := t.TempDir()
	writer, err := shetran.NewWriter(outDir, "window", variables, cells.NumCells(), 3, slog.Default())
	require.NoError(t, err)

	transformer := pipeline.NewTransformer(variables, cells, slog.Default())
	p := pipeline.New(extractor, transformer, writer, slog.Default(), observability.NewMetricsForTesting())

	require.NoError(t, p.Run(context.Background()))
	require.NoError(t, writer.Finish(extractor.TotalSteps()))

	data, err := os.ReadFile(writer.SeriesPath("tp"))
	require.NoError(t, err)
	assert.Equal(t, "1\n1.200\n", string(data))
}
