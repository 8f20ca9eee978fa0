// Package era5 reads ERA5-Land NetCDF files one timestep at a time.
package era5

import (
	"fmt"
	"math"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/openhydro/era5-shetran-etl/internal/domain"
)

// TZ=UTC date --date="1900-01-01 00:00:00" +%s
const unixSecs1900 = -2208988800

// Dataset wraps an open ERA5-Land NetCDF file with its axes decoded and a
// getter per requested variable. Packed variables are unpacked on read using
// their scale_factor/add_offset attributes; fill points become NaN.
type Dataset struct {
	nc    api.Group
	lats  []float64
	lons  []float64
	times []time.Time
	names []string
	vars  map[string]packedVar
}

type packedVar struct {
	getter  api.VarGetter
	scale   float64
	offset  float64
	fill    float64
	hasFill bool
}

// Open opens an ERA5-Land file and resolves the named variables. A variable
// absent from the file yields domain.ErrMissingVariable.
func Open(path string, varNames []string) (*Dataset, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	d := &Dataset{nc: nc, names: varNames, vars: make(map[string]packedVar)}
	if d.lats, err = axisValues(nc, "latitude"); err != nil {
		nc.Close()
		return nil, err
	}
	if d.lons, err = axisValues(nc, "longitude"); err != nil {
		nc.Close()
		return nil, err
	}
	hours, err := axisValues(nc, "time")
	if err != nil {
		nc.Close()
		return nil, err
	}
	d.times = make([]time.Time, len(hours))
	for i, h := range hours {
		d.times[i] = time.Unix(int64(h)*3600+unixSecs1900, 0).UTC()
	}

	for _, name := range varNames {
		vg, err := nc.GetVarGetter(name)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("variable %q not in %s: %w (%v)", name, path, domain.ErrMissingVariable, err)
		}
		d.vars[name] = newPackedVar(vg)
	}
	return d, nil
}

func newPackedVar(vg api.VarGetter) packedVar {
	pv := packedVar{getter: vg, scale: 1}
	attrs := vg.Attributes()
	if attrs == nil {
		return pv
	}
	if v, ok := attrFloat(attrs, "scale_factor"); ok {
		pv.scale = v
	}
	if v, ok := attrFloat(attrs, "add_offset"); ok {
		pv.offset = v
	}
	if v, ok := attrFloat(attrs, "_FillValue"); ok {
		pv.fill = v
		pv.hasFill = true
	} else if v, ok := attrFloat(attrs, "missing_value"); ok {
		pv.fill = v
		pv.hasFill = true
	}
	return pv
}

// attrFloat fetches a numeric attribute. NetCDF attributes may decode as
// scalars or single-element slices depending on how the file was written.
func attrFloat(attrs api.AttributeMap, key string) (float64, bool) {
	raw, has := attrs.Get(key)
	if !has {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case []float64:
		if len(v) == 1 {
			return v[0], true
		}
	case []float32:
		if len(v) == 1 {
			return float64(v[0]), true
		}
	case []int16:
		if len(v) == 1 {
			return float64(v[0]), true
		}
	case []int32:
		if len(v) == 1 {
			return float64(v[0]), true
		}
	case []int64:
		if len(v) == 1 {
			return float64(v[0]), true
		}
	}
	return 0, false
}

func axisValues(nc api.Group, name string) ([]float64, error) {
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return nil, fmt.Errorf("axis %q: %w", name, err)
	}
	raw, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("axis %q values: %w", name, err)
	}
	switch v := raw.(type) {
	case []float64:
		return v, nil
	case []float32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []int64:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	}
	return nil, fmt.Errorf("axis %q has unsupported type %T", name, raw)
}

// ListVariables returns every variable name present in the file, including
// the axis variables.
func (d *Dataset) ListVariables() []string {
	return d.nc.ListVariables()
}

// Close closes the underlying NetCDF file.
func (d *Dataset) Close() {
	d.nc.Close()
}

// Lats returns the latitude axis, in file order (north to south).
func (d *Dataset) Lats() []float64 { return d.lats }

// Lons returns the longitude axis, in file order (west to east).
func (d *Dataset) Lons() []float64 { return d.lons }

// Times returns the decoded time axis.
func (d *Dataset) Times() []time.Time { return d.times }

// NumSteps returns the number of timesteps in the file.
func (d *Dataset) NumSteps() int { return len(d.times) }

// Summary returns dataset facts suitable for structured logging.
func (d *Dataset) Summary() []any {
	s := []any{
		"variables", d.names,
		"timesteps", len(d.times),
		"lat_points", len(d.lats),
		"lon_points", len(d.lons),
	}
	if len(d.times) > 0 {
		s = append(s,
			"first_time", d.times[0].Format(time.RFC3339),
			"last_time", d.times[len(d.times)-1].Format(time.RFC3339),
		)
	}
	return s
}

// ReadStep reads one variable at one timestep as an unpacked [lat][lon] grid.
func (d *Dataset) ReadStep(name string, step int) ([][]float64, error) {
	pv, ok := d.vars[name]
	if !ok {
		return nil, fmt.Errorf("variable %q was not requested at open: %w", name, domain.ErrMissingVariable)
	}
	if step < 0 || step >= len(d.times) {
		return nil, fmt.Errorf("step %d outside 0..%d", step, len(d.times)-1)
	}
	raw, err := pv.getter.GetSlice(int64(step), int64(step)+1)
	if err != nil {
		return nil, fmt.Errorf("read %q step %d: %w", name, step, err)
	}
	grid, err := unpack(raw, pv)
	if err != nil {
		return nil, fmt.Errorf("unpack %q step %d: %w", name, step, err)
	}
	if len(grid) != len(d.lats) {
		return nil, fmt.Errorf("%q step %d has %d latitude rows, axis says %d: %w",
			name, step, len(grid), len(d.lats), domain.ErrGridMismatch)
	}
	if len(grid) > 0 && len(grid[0]) != len(d.lons) {
		return nil, fmt.Errorf("%q step %d has %d longitude columns, axis says %d: %w",
			name, step, len(grid[0]), len(d.lons), domain.ErrGridMismatch)
	}
	return grid, nil
}

// unpack converts one timestep's raw [1][lat][lon] slab to float64, mapping
// fill to NaN before applying scale and offset.
func unpack(raw any, pv packedVar) ([][]float64, error) {
	switch v := raw.(type) {
	case [][][]int16:
		return unpackSlab(v[0], pv), nil
	case [][][]int32:
		return unpackSlab(v[0], pv), nil
	case [][][]float32:
		return unpackSlab(v[0], pv), nil
	case [][][]float64:
		return unpackSlab(v[0], pv), nil
	}
	return nil, fmt.Errorf("unsupported variable type %T", raw)
}

func unpackSlab[T int16 | int32 | float32 | float64](slab [][]T, pv packedVar) [][]float64 {
	out := make([][]float64, len(slab))
	for i, row := range slab {
		out[i] = make([]float64, len(row))
		for j, x := range row {
			f := float64(x)
			if pv.hasFill && f == pv.fill {
				out[i][j] = math.NaN()
				continue
			}
			out[i][j] = pv.scale*f + pv.offset
		}
	}
	return out
}
