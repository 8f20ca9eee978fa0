package era5

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/openhydro/era5-shetran-etl/internal/domain"
)

// StepExtractor walks a Dataset's time axis within an optional window and
// yields one domain.Step per timestep. It implements pipeline.Extractor.
type StepExtractor struct {
	ds    *Dataset
	names []string
	pos   int
	limit int
	total int
}

// NewStepExtractor builds an extractor over [start, end). Zero times leave
// the corresponding bound open, matching the whole file.
func NewStepExtractor(ds *Dataset, varNames []string, start, end time.Time) (*StepExtractor, error) {
	times := ds.Times()
	first, limit := 0, len(times)
	if !start.IsZero() {
		for first < len(times) && times[first].Before(start) {
			first++
		}
	}
	if !end.IsZero() {
		for limit > first && !times[limit-1].Before(end) {
			limit--
		}
	}
	if first >= limit {
		return nil, fmt.Errorf("no timesteps in window %s..%s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return &StepExtractor{ds: ds, names: varNames, pos: first, limit: limit, total: limit - first}, nil
}

// TotalSteps returns the number of timesteps the extractor will yield.
func (e *StepExtractor) TotalSteps() int {
	return e.total
}

// NextStep reads the grids for the next timestep. It returns io.EOF once the
// window is exhausted.
func (e *StepExtractor) NextStep(ctx context.Context) (domain.Step, error) {
	if err := ctx.Err(); err != nil {
		return domain.Step{}, err
	}
	if e.pos >= e.limit {
		return domain.Step{}, io.EOF
	}

	step := domain.Step{
		Index: e.pos,
		Time:  e.ds.Times()[e.pos],
		Grids: make(map[string][][]float64, len(e.names)),
	}
	for _, name := range e.names {
		grid, err := e.ds.ReadStep(name, e.pos)
		if err != nil {
			return domain.Step{}, err
		}
		step.Grids[name] = grid
	}
	e.pos++
	return step, nil
}
