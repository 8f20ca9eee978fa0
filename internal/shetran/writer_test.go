package shetran_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhydro/era5-shetran-etl/internal/domain"
	"github.com/openhydro/era5-shetran-etl/internal/shetran"
)

func testVars(t *testing.T) []domain.Variable {
	t.Helper()
	tp, ok := domain.LookupVariable("tp")
	require.True(t, ok)
	return []domain.Variable{tp}
}

func TestWriter_SeriesLayout(t *testing.T) {
	dir := t.TempDir()
	w, err := shetran.NewWriter(dir, "essequibo", testVars(t), 2, 3, slog.Default())
	require.NoError(t, err)

	base := time.Date(2021, 6, 14, 1, 0, 0, 0, time.UTC)
	rows := [][]float64{{0.0, 0.5}, {1.2, 1.25}, {0.4, 0.0}}
	for i, vals := range rows {
		err := w.LoadRows(context.Background(), []domain.Row{
			{Variable: "tp", Time: base.Add(time.Duration(i) * time.Hour), Values: vals},
		})
		require.NoError(t, err)
	}
	require.NoError(t, w.Finish(3))

	data, err := os.ReadFile(w.SeriesPath("tp"))
	require.NoError(t, err)
	assert.Equal(t, "1,2\n0.000,0.500\n1.200,1.250\n0.400,0.000\n", string(data))
}

func TestWriter_RowLengthMismatch(t *testing.T) {
	w, err := shetran.NewWriter(t.TempDir(), "run", testVars(t), 2, 3, slog.Default())
	require.NoError(t, err)
	defer w.Abort()

	err = w.LoadRows(context.Background(), []domain.Row{{Variable: "tp", Values: []float64{1.0}}})
	assert.ErrorIs(t, err, domain.ErrGridMismatch)
}

func TestWriter_UnknownVariable(t *testing.T) {
	w, err := shetran.NewWriter(t.TempDir(), "run", testVars(t), 1, 3, slog.Default())
	require.NoError(t, err)
	defer w.Abort()

	err = w.LoadRows(context.Background(), []domain.Row{{Variable: "t2m", Values: []float64{5}}})
	assert.ErrorIs(t, err, domain.ErrMissingVariable)
}

func TestWriter_FinishRowCountCheck(t *testing.T) {
	w, err := shetran.NewWriter(t.TempDir(), "run", testVars(t), 1, 3, slog.Default())
	require.NoError(t, err)

	err = w.LoadRows(context.Background(), []domain.Row{{Variable: "tp", Values: []float64{0.1}}})
	require.NoError(t, err)

	err = w.Finish(2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has 1 rows, want 2")
}

func TestWriter_Manifest(t *testing.T) {
	fixed := time.Date(2022, 1, 5, 9, 30, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(fixed))
	defer domain.SetClock(nil)

	w, err := shetran.NewWriter(t.TempDir(), "run", testVars(t), 1, 3, slog.Default())
	require.NoError(t, err)

	require.NoError(t, w.LoadRows(context.Background(), []domain.Row{{Variable: "tp", Values: []float64{0.1}}}))
	require.NoError(t, w.Finish(1))

	data, err := os.ReadFile(w.ManifestPath())
	require.NoError(t, err)

	var m struct {
		GeneratedAt time.Time `json:"generated_at"`
		Cells       int       `json:"cells"`
		Timesteps   int       `json:"timesteps"`
		Series      []struct {
			Variable string `json:"variable"`
			Unit     string `json:"unit"`
			File     string `json:"file"`
		} `json:"series"`
	}
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, fixed, m.GeneratedAt)
	assert.Equal(t, 1, m.Cells)
	assert.Equal(t, 1, m.Timesteps)
	require.Len(t, m.Series, 1)
	assert.Equal(t, "tp", m.Series[0].Variable)
	assert.Equal(t, "mm", m.Series[0].Unit)
	assert.Equal(t, "run_tp.csv", m.Series[0].File)
}
