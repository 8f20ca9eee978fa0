// Command inspect summarizes an ERA5-Land NetCDF file: axes, time range, and
// which of its variables the converter's catalog understands. Useful for
// checking a download before committing to a long conversion.
//
// Usage:
//
//	inspect -file evaporation_2000-2021.nc
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/openhydro/era5-shetran-etl/internal/domain"
	"github.com/openhydro/era5-shetran-etl/internal/era5"
)

func main() {
	file := flag.String("file", "", "path to an ERA5-Land file in NetCDF format")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*file); err != nil {
		fmt.Fprintln(os.Stderr, "inspect:", err)
		os.Exit(1)
	}
}

func run(path string) error {
	ds, err := era5.Open(path, nil)
	if err != nil {
		return err
	}
	defer ds.Close()

	times := ds.Times()
	fmt.Printf("file:       %s\n", path)
	fmt.Printf("grid:       %d latitudes x %d longitudes\n", len(ds.Lats()), len(ds.Lons()))
	fmt.Printf("timesteps:  %d\n", len(times))
	if len(times) > 0 {
		fmt.Printf("time range: %s .. %s\n",
			times[0].Format(time.RFC3339), times[len(times)-1].Format(time.RFC3339))
	}
	if len(ds.Lats()) > 0 && len(ds.Lons()) > 0 {
		lats, lons := ds.Lats(), ds.Lons()
		fmt.Printf("extent:     lat %g..%g, lon %g..%g\n",
			lats[len(lats)-1], lats[0], lons[0], lons[len(lons)-1])
	}

	fmt.Println("variables:")
	axes := map[string]bool{"latitude": true, "longitude": true, "time": true}
	for _, name := range ds.ListVariables() {
		if axes[name] {
			continue
		}
		if v, ok := domain.LookupVariable(name); ok {
			fmt.Printf("  %-8s %s -> %s\n", name, v.Description, v.Unit)
		} else {
			fmt.Printf("  %-8s (not in catalog)\n", name)
		}
	}
	return nil
}
