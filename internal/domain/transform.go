package domain

import (
	"fmt"
	"math"
	"time"
)

// ConvertStep maps one extracted timestep onto the SHETRAN cells and converts
// units for each variable in order. state carries the previous step's raw
// per-cell samples for accumulated variables and is updated in place; the
// zero State (or NewState) starts a run.
func ConvertStep(step Step, vars []Variable, cells CellMap, state *State) ([]Row, error) {
	rows := make([]Row, 0, len(vars))
	for _, v := range vars {
		grid, ok := step.Grids[v.Name]
		if !ok {
			return nil, fmt.Errorf("step %d has no grid for %q: %w", step.Index, v.Name, ErrMissingVariable)
		}

		raw, err := sampleCells(grid, cells, v.Name, step.Time)
		if err != nil {
			return nil, err
		}

		values := make([]float64, len(raw))
		for i, r := range raw {
			sample := r
			if v.Accumulated {
				sample = Deaccumulate(state.previous(v.Name, i), r, state.prevTime, step.Time)
			}
			converted := v.Clamp(v.Convert(sample))
			if err := v.CheckPlausible(converted); err != nil {
				return nil, fmt.Errorf("cell %d at %s: %w", cells.Cells[i].Number, step.Time.Format(time.RFC3339), err)
			}
			values[i] = converted
		}

		if v.Accumulated {
			state.remember(v.Name, raw)
		}
		rows = append(rows, Row{Variable: v.Name, Time: step.Time, Values: values})
	}
	state.prevTime = step.Time
	return rows, nil
}

// sampleCells picks the mapped grid point for every SHETRAN cell. A NaN at a
// mapped point means the GIS alignment placed a cell over fill (ocean), which
// is a grid mismatch, not bad data.
func sampleCells(grid [][]float64, cells CellMap, varName string, t time.Time) ([]float64, error) {
	raw := make([]float64, len(cells.Cells))
	for i, c := range cells.Cells {
		if c.LatIdx >= len(grid) || c.LonIdx >= len(grid[c.LatIdx]) {
			return nil, fmt.Errorf("cell %d maps outside the %q grid: %w", c.Number, varName, ErrGridMismatch)
		}
		v := grid[c.LatIdx][c.LonIdx]
		if math.IsNaN(v) {
			return nil, fmt.Errorf("cell %d maps to a fill point for %q at %s: %w",
				c.Number, varName, t.Format(time.RFC3339), ErrGridMismatch)
		}
		raw[i] = v
	}
	return raw, nil
}

// Deaccumulate recovers a per-timestep sample from ERA5-Land's daily-reset
// accumulations. Samples within the same accumulation window are differenced;
// the first sample of a window is already a per-window depth and passes
// through unchanged. A missing previous sample (NaN) also passes the current
// value through, which is correct for daily 00:00-only extractions where each
// sample closes its own window.
func Deaccumulate(prev, cur float64, prevTime, curTime time.Time) float64 {
	if math.IsNaN(prev) {
		return cur
	}
	if !accumulationWindow(prevTime).Equal(accumulationWindow(curTime)) {
		return cur
	}
	return cur - prev
}

// accumulationWindow returns the 00 UTC start of the window a sample belongs
// to. The sample stamped exactly 00:00 closes the previous day's window.
func accumulationWindow(t time.Time) time.Time {
	return t.UTC().Add(-time.Hour).Truncate(24 * time.Hour)
}

// State holds the previous raw samples per accumulated variable across steps.
// The zero value is ready to use.
type State struct {
	prev     map[string][]float64
	prevTime time.Time
}

// NewState returns an empty de-accumulation state.
func NewState() *State {
	return &State{}
}

func (s *State) previous(varName string, cell int) float64 {
	p, ok := s.prev[varName]
	if !ok || cell >= len(p) {
		return math.NaN()
	}
	return p[cell]
}

func (s *State) remember(varName string, raw []float64) {
	if s.prev == nil {
		s.prev = make(map[string][]float64)
	}
	buf := s.prev[varName]
	if len(buf) != len(raw) {
		buf = make([]float64, len(raw))
	}
	copy(buf, raw)
	s.prev[varName] = buf
}
