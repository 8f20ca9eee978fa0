package pipeline

import (
	"context"
	"log/slog"

	"github.com/openhydro/era5-shetran-etl/internal/domain"
)

// CellTransformer implements Transformer using the domain conversion rules.
// It is stateful: accumulated variables are differenced against the previous
// timestep, so one instance must see the steps of a run in order.
type CellTransformer struct {
	vars   []domain.Variable
	cells  domain.CellMap
	state  *domain.State
	logger *slog.Logger
}

// NewTransformer creates a CellTransformer for the given variables and cell
// map.
func NewTransformer(vars []domain.Variable, cells domain.CellMap, logger *slog.Logger) *CellTransformer {
	return &CellTransformer{
		vars:   vars,
		cells:  cells,
		state:  domain.NewState(),
		logger: logger,
	}
}

func (t *CellTransformer) Transform(_ context.Context, step domain.Step) ([]domain.Row, error) {
	return domain.ConvertStep(step, t.vars, t.cells, t.state)
}
