// Package domain models ERA5-Land meteorological data and the rules for
// converting it into SHETRAN model input.
//
// # Data Source
//
// ERA5-Land is the ECMWF global land-surface reanalysis, distributed as NetCDF
// through the Copernicus Climate Data Store. Files hold one or more variables
// on a regular 0.1° latitude/longitude grid at hourly resolution. The time
// axis is encoded as hours since 1900-01-01 00:00:00 UTC.
//
// # ERA5-Land Conventions
//
// Units:
//
//	Water fluxes (precipitation, evaporation) are metres of water equivalent.
//	SHETRAN expects millimetres, so the conversion factor is 1000.
//	Evaporation keeps the ECMWF sign convention: negative values are fluxes
//	away from the surface. 2 m temperature is Kelvin and is shifted to °C.
//
// Accumulation:
//
//	Flux variables are accumulated from the start of each UTC day. The sample
//	stamped 01:00 covers 00:00–01:00; the sample stamped 00:00 closes the
//	previous day and holds its full 24 h total. Hourly depths are recovered by
//	differencing consecutive samples within the same accumulation window. See
//	[Deaccumulate].
//
// Packing:
//
//	Variables are commonly stored as int16 with scale_factor/add_offset
//	attributes and a _FillValue for ocean points. Unpacking happens in the
//	era5 reader; the domain layer only sees real-valued grids with NaN where
//	the source had fill.
//
// # SHETRAN Cell Mapping
//
// SHETRAN is a physically based, spatially distributed hydrological model.
// Its meteorological input is one time series per model grid square. The
// external GIS step assigns each SHETRAN square the nearest ERA5-Land grid
// point and emits that assignment as an ESRI ASCII grid of 1-based point
// indices (latIdx*nLon + lonIdx + 1). A CellMap is the flattened, ordered
// form of that assignment: cell numbers run 1..N in row-major order over the
// catchment mask, and both cell order and timestep order are preserved
// exactly in the output files.
//
// # Plausibility
//
// Every converted value is checked against the variable's physically
// plausible range. A value outside the range means the unit conversion or the
// source data is wrong, and the run is aborted with [ErrImplausibleValue]
// rather than writing a corrupt model input.
package domain
