package grid

import (
	"fmt"
	"math"

	"github.com/openhydro/era5-shetran-etl/internal/domain"
)

// CellMapFromRaster flattens a GIS alignment raster into a domain.CellMap.
// Each non-NODATA square holds the 1-based index of its assigned ERA5 grid
// point (latIdx*nLon + lonIdx + 1). Cell numbers are assigned 1..N in
// row-major order, which fixes the column order of every output file.
func CellMapFromRaster(r *Raster, nLat, nLon int) (domain.CellMap, error) {
	if nLat <= 0 || nLon <= 0 {
		return domain.CellMap{}, fmt.Errorf("ERA5 grid is %dx%d: %w", nLat, nLon, domain.ErrGridMismatch)
	}

	var cells []domain.CellRef
	for ri, row := range r.Values {
		for ci, v := range row {
			if v == r.NoData {
				continue
			}
			idx, ok := toIndex(v)
			if !ok {
				return domain.CellMap{}, fmt.Errorf("square (%d,%d) holds non-integer point index %g: %w",
					ri, ci, v, domain.ErrGridMismatch)
			}
			if idx < 1 || idx > nLat*nLon {
				return domain.CellMap{}, fmt.Errorf("square (%d,%d) point index %d outside 1..%d: %w",
					ri, ci, idx, nLat*nLon, domain.ErrGridMismatch)
			}
			cells = append(cells, domain.CellRef{
				Number: len(cells) + 1,
				LatIdx: (idx - 1) / nLon,
				LonIdx: (idx - 1) % nLon,
			})
		}
	}

	m := domain.CellMap{Cells: cells}
	if err := m.Validate(nLat, nLon); err != nil {
		return domain.CellMap{}, err
	}
	return m, nil
}

// SeriesRaster renumbers the alignment raster with the SHETRAN series number
// of each square, in the same row-major order CellMapFromRaster uses. The
// result is the map grid referenced from the SHETRAN library file.
func SeriesRaster(r *Raster) *Raster {
	out := &Raster{
		NCols:     r.NCols,
		NRows:     r.NRows,
		XLLCorner: r.XLLCorner,
		YLLCorner: r.YLLCorner,
		CellSize:  r.CellSize,
		NoData:    r.NoData,
		Values:    make([][]float64, len(r.Values)),
	}
	n := 0
	for ri, row := range r.Values {
		out.Values[ri] = make([]float64, len(row))
		for ci, v := range row {
			if v == r.NoData {
				out.Values[ri][ci] = r.NoData
				continue
			}
			n++
			out.Values[ri][ci] = float64(n)
		}
	}
	return out
}

func toIndex(v float64) (int, bool) {
	if v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}
