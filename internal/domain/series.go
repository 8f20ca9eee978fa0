package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the failure modes of a conversion run. Callers match
// with errors.Is; every wrap site adds the offending variable, cell, or value.
var (
	// ErrMissingVariable reports a required meteorological variable absent
	// from the input dataset or unknown to the catalog.
	ErrMissingVariable = errors.New("missing variable")

	// ErrGridMismatch reports disagreement between the cell map and the
	// ERA5 grid: an index out of range, or a mapped point with no data.
	ErrGridMismatch = errors.New("grid mismatch")

	// ErrImplausibleValue reports a converted value outside the variable's
	// physically plausible range.
	ErrImplausibleValue = errors.New("implausible value")
)

// Step is one timestep extracted from the source dataset: a [lat][lon] grid
// of unpacked values per variable. Fill points are NaN.
type Step struct {
	Index int
	Time  time.Time
	Grids map[string][][]float64
}

// Row is one output record group: the converted values of one variable at
// one timestep, ordered by SHETRAN cell number.
type Row struct {
	Variable string
	Time     time.Time
	Values   []float64
}

// CellRef ties a SHETRAN cell number to a point on the ERA5 grid.
type CellRef struct {
	Number int // 1-based SHETRAN cell number
	LatIdx int
	LonIdx int
}

// CellMap is the ordered cell assignment produced by the external GIS
// alignment step. Cell numbers are contiguous from 1 and the order is the
// column order of every output row.
type CellMap struct {
	Cells []CellRef
}

// NumCells returns the number of mapped SHETRAN cells.
func (m CellMap) NumCells() int {
	return len(m.Cells)
}

// Validate checks every reference against the extent of the ERA5 grid.
func (m CellMap) Validate(nLat, nLon int) error {
	if len(m.Cells) == 0 {
		return fmt.Errorf("cell map is empty: %w", ErrGridMismatch)
	}
	for _, c := range m.Cells {
		if c.LatIdx < 0 || c.LatIdx >= nLat || c.LonIdx < 0 || c.LonIdx >= nLon {
			return fmt.Errorf("cell %d maps to point (%d,%d) outside the %dx%d grid: %w",
				c.Number, c.LatIdx, c.LonIdx, nLat, nLon, ErrGridMismatch)
		}
	}
	return nil
}
