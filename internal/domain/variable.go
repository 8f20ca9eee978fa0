package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Variable describes one ERA5-Land variable and how it becomes a SHETRAN
// time series.
type Variable struct {
	Name        string // ERA5 short name, e.g. "tp"
	Description string
	Unit        string // unit after conversion

	// Scale and Offset convert a source value v to Scale*v + Offset.
	Scale  float64
	Offset float64

	// Accumulated marks daily-reset accumulation fields that must be
	// differenced into per-timestep depths before conversion.
	Accumulated bool

	// Min and Max bound the physically plausible range after conversion.
	Min float64
	Max float64
}

// Convert applies the variable's unit conversion to a single value.
func (v Variable) Convert(raw float64) float64 {
	return v.Scale*raw + v.Offset
}

// clampTolerance absorbs int16 packing noise: differencing two packed
// accumulations can land a hair outside the range, e.g. -1e-7 mm of rain.
const clampTolerance = 1e-4

// Clamp snaps a converted value to the plausible range when it overshoots by
// no more than the packing tolerance. Larger excursions pass through for
// CheckPlausible to reject.
func (v Variable) Clamp(converted float64) float64 {
	if converted < v.Min && v.Min-converted <= clampTolerance {
		return v.Min
	}
	if converted > v.Max && converted-v.Max <= clampTolerance {
		return v.Max
	}
	return converted
}

// CheckPlausible returns ErrImplausibleValue if the converted value lies
// outside the variable's plausible range.
func (v Variable) CheckPlausible(converted float64) error {
	if converted < v.Min || converted > v.Max {
		return fmt.Errorf("%s value %g %s outside plausible range [%g, %g]: %w",
			v.Name, converted, v.Unit, v.Min, v.Max, ErrImplausibleValue)
	}
	return nil
}

// catalog lists the ERA5-Land variables the converter understands. Water
// fluxes are metres of water equivalent accumulated from 00 UTC; the factor
// of 1000 yields millimetres. Evaporation ranges admit negative values per
// the ECMWF sign convention.
var catalog = map[string]Variable{
	"tp": {
		Name:        "tp",
		Description: "total precipitation",
		Unit:        "mm",
		Scale:       1000,
		Accumulated: true,
		Min:         0,
		Max:         1000,
	},
	"pev": {
		Name:        "pev",
		Description: "potential evaporation",
		Unit:        "mm",
		Scale:       1000,
		Accumulated: true,
		Min:         -100,
		Max:         100,
	},
	"e": {
		Name:        "e",
		Description: "total evaporation",
		Unit:        "mm",
		Scale:       1000,
		Accumulated: true,
		Min:         -100,
		Max:         100,
	},
	"evabs": {
		Name:        "evabs",
		Description: "evaporation from bare soil",
		Unit:        "mm",
		Scale:       1000,
		Accumulated: true,
		Min:         -100,
		Max:         100,
	},
	"evaow": {
		Name:        "evaow",
		Description: "evaporation from open water surfaces",
		Unit:        "mm",
		Scale:       1000,
		Accumulated: true,
		Min:         -100,
		Max:         100,
	},
	"evavt": {
		Name:        "evavt",
		Description: "evaporation from vegetation transpiration",
		Unit:        "mm",
		Scale:       1000,
		Accumulated: true,
		Min:         -100,
		Max:         100,
	},
	"evatc": {
		Name:        "evatc",
		Description: "evaporation from the top of canopy",
		Unit:        "mm",
		Scale:       1000,
		Accumulated: true,
		Min:         -100,
		Max:         100,
	},
	"t2m": {
		Name:        "t2m",
		Description: "2 metre temperature",
		Unit:        "degC",
		Scale:       1,
		Offset:      -273.15,
		Min:         -90,
		Max:         60,
	},
}

// LookupVariable returns the catalog entry for an ERA5 short name.
func LookupVariable(name string) (Variable, bool) {
	v, ok := catalog[name]
	return v, ok
}

// ResolveVariables maps short names to catalog entries, preserving order.
// Unknown names yield ErrMissingVariable. Duplicates are rejected up front:
// two rows for the same series file would only surface as a row-count error
// at the end of a run.
func ResolveVariables(names []string) ([]Variable, error) {
	vars := make([]Variable, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		v, ok := LookupVariable(name)
		if !ok {
			return nil, fmt.Errorf("variable %q not in catalog (known: %s): %w",
				name, strings.Join(KnownVariables(), ", "), ErrMissingVariable)
		}
		if seen[name] {
			return nil, fmt.Errorf("variable %q listed more than once", name)
		}
		seen[name] = true
		vars = append(vars, v)
	}
	return vars, nil
}

// KnownVariables returns the catalog's short names in sorted order.
func KnownVariables() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
