// Package grid reads and writes ESRI ASCII grids and builds the SHETRAN cell
// map from the GIS pre-processing output.
package grid

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Raster is an ESRI ASCII grid. Values is row-major, north to south, as the
// format stores it.
type Raster struct {
	NCols     int
	NRows     int
	XLLCorner float64
	YLLCorner float64
	CellSize  float64
	NoData    float64
	Values    [][]float64
}

// ReadASC reads an ESRI ASCII grid file.
func ReadASC(path string) (*Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cell map: %w", err)
	}
	defer f.Close()
	r, err := ParseASC(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return r, nil
}

// ParseASC parses the six-line ESRI header followed by whitespace-separated
// row values. NODATA_value is optional and defaults to -9999.
func ParseASC(rd io.Reader) (*Raster, error) {
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)

	r := &Raster{NoData: -9999}
	header := map[string]*float64{
		"xllcorner":    &r.XLLCorner,
		"yllcorner":    &r.YLLCorner,
		"cellsize":     &r.CellSize,
		"nodata_value": &r.NoData,
	}

	var rows [][]float64
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		key := strings.ToLower(fields[0])
		if len(fields) == 2 {
			switch key {
			case "ncols", "nrows":
				n, err := strconv.Atoi(fields[1])
				if err != nil || n <= 0 {
					return nil, fmt.Errorf("invalid %s %q", key, fields[1])
				}
				if key == "ncols" {
					r.NCols = n
				} else {
					r.NRows = n
				}
				continue
			default:
				if dst, ok := header[key]; ok {
					v, err := strconv.ParseFloat(fields[1], 64)
					if err != nil {
						return nil, fmt.Errorf("invalid %s %q", key, fields[1])
					}
					*dst = v
					continue
				}
			}
		}

		if r.NCols == 0 || r.NRows == 0 {
			return nil, fmt.Errorf("data before ncols/nrows header")
		}
		if len(fields) != r.NCols {
			return nil, fmt.Errorf("row %d has %d values, want %d", len(rows), len(fields), r.NCols)
		}
		row := make([]float64, r.NCols)
		for i, fv := range fields {
			v, err := strconv.ParseFloat(fv, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d col %d: invalid value %q", len(rows), i, fv)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(rows) != r.NRows {
		return nil, fmt.Errorf("got %d data rows, want %d", len(rows), r.NRows)
	}
	r.Values = rows
	return r, nil
}

// WriteASC writes the raster in ESRI ASCII format. Integer values are written
// without a decimal point so SHETRAN's fixed-format readers accept the file.
func WriteASC(w io.Writer, r *Raster) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\n", r.NCols)
	fmt.Fprintf(bw, "nrows %d\n", r.NRows)
	fmt.Fprintf(bw, "xllcorner %s\n", trimFloat(r.XLLCorner))
	fmt.Fprintf(bw, "yllcorner %s\n", trimFloat(r.YLLCorner))
	fmt.Fprintf(bw, "cellsize %s\n", trimFloat(r.CellSize))
	fmt.Fprintf(bw, "NODATA_value %s\n", trimFloat(r.NoData))
	for _, row := range r.Values {
		for i, v := range row {
			if i > 0 {
				if err := bw.WriteByte(' '); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(trimFloat(v)); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
