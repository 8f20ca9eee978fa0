// Package shetran writes SHETRAN meteorological time-series input files.
//
// Each variable becomes one CSV file with a header row of cell numbers and
// one data row per timestep, the layout the SHETRAN library file references
// for precipitation and potential evapotranspiration series. A JSON manifest
// records the run's provenance next to the data files.
package shetran

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/openhydro/era5-shetran-etl/internal/domain"
)

// Writer appends converted rows to one time-series file per variable.
// It implements pipeline.Loader.
type Writer struct {
	dir       string
	prefix    string
	precision int
	numCells  int
	logger    *slog.Logger

	order []domain.Variable
	files map[string]*seriesFile
}

type seriesFile struct {
	f    *os.File
	bw   *bufio.Writer
	rows int
}

// NewWriter creates the output directory and opens one series file per
// variable, each with its cell-number header row already written.
func NewWriter(dir, prefix string, vars []domain.Variable, numCells, precision int, logger *slog.Logger) (*Writer, error) {
	if numCells <= 0 {
		return nil, fmt.Errorf("writer needs at least one cell, got %d: %w", numCells, domain.ErrGridMismatch)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	w := &Writer{
		dir:       dir,
		prefix:    prefix,
		precision: precision,
		numCells:  numCells,
		logger:    logger,
		order:     vars,
		files:     make(map[string]*seriesFile, len(vars)),
	}
	for _, v := range vars {
		path := w.SeriesPath(v.Name)
		f, err := os.Create(path)
		if err != nil {
			w.closeAll()
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
		sf := &seriesFile{f: f, bw: bufio.NewWriter(f)}
		if err := writeHeader(sf.bw, numCells); err != nil {
			w.closeAll()
			return nil, fmt.Errorf("write header of %s: %w", path, err)
		}
		w.files[v.Name] = sf
	}
	return w, nil
}

// SeriesPath returns the output file path for a variable.
func (w *Writer) SeriesPath(varName string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s_%s.csv", w.prefix, varName))
}

// ManifestPath returns the path of the run manifest.
func (w *Writer) ManifestPath() string {
	return filepath.Join(w.dir, w.prefix+"_manifest.json")
}

// LoadRows appends one data row per variable for a timestep. Row order is
// append order, so timestep ordering is preserved by construction.
func (w *Writer) LoadRows(_ context.Context, rows []domain.Row) error {
	for _, row := range rows {
		sf, ok := w.files[row.Variable]
		if !ok {
			return fmt.Errorf("no series file for %q: %w", row.Variable, domain.ErrMissingVariable)
		}
		if len(row.Values) != w.numCells {
			return fmt.Errorf("row for %q at %s has %d values, want %d: %w",
				row.Variable, row.Time.Format(time.RFC3339), len(row.Values), w.numCells, domain.ErrGridMismatch)
		}
		for i, v := range row.Values {
			if i > 0 {
				if err := sf.bw.WriteByte(','); err != nil {
					return err
				}
			}
			if _, err := sf.bw.WriteString(strconv.FormatFloat(v, 'f', w.precision, 64)); err != nil {
				return err
			}
		}
		if err := sf.bw.WriteByte('\n'); err != nil {
			return err
		}
		sf.rows++
	}
	return nil
}

// Finish verifies every series holds exactly expectedSteps rows, flushes and
// closes the files, and writes the run manifest. The row-count check enforces
// the records = cells x timesteps output property.
func (w *Writer) Finish(expectedSteps int) error {
	for _, v := range w.order {
		sf := w.files[v.Name]
		if sf.rows != expectedSteps {
			w.closeAll()
			return fmt.Errorf("series %q has %d rows, want %d timesteps", v.Name, sf.rows, expectedSteps)
		}
	}
	for _, v := range w.order {
		sf := w.files[v.Name]
		if err := sf.bw.Flush(); err != nil {
			w.closeAll()
			return fmt.Errorf("flush %q: %w", v.Name, err)
		}
		if err := sf.f.Close(); err != nil {
			return fmt.Errorf("close %q: %w", v.Name, err)
		}
	}
	w.files = nil
	return w.writeManifest(expectedSteps)
}

// Abort closes all series files without the row-count check, leaving partial
// output on disk for inspection.
func (w *Writer) Abort() {
	w.closeAll()
}

func (w *Writer) closeAll() {
	for _, sf := range w.files {
		sf.bw.Flush() //nolint:errcheck // best effort on abort
		sf.f.Close()  //nolint:errcheck
	}
	w.files = nil
}

func writeHeader(bw *bufio.Writer, numCells int) error {
	for i := 1; i <= numCells; i++ {
		if i > 1 {
			if err := bw.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := bw.WriteString(strconv.Itoa(i)); err != nil {
			return err
		}
	}
	return bw.WriteByte('\n')
}

// manifest is the provenance record written next to the series files.
type manifest struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Cells       int                `json:"cells"`
	Timesteps   int                `json:"timesteps"`
	Series      []manifestVariable `json:"series"`
}

type manifestVariable struct {
	Variable string `json:"variable"`
	Unit     string `json:"unit"`
	File     string `json:"file"`
}

func (w *Writer) writeManifest(steps int) error {
	m := manifest{
		GeneratedAt: domain.Now().UTC(),
		Cells:       w.numCells,
		Timesteps:   steps,
	}
	for _, v := range w.order {
		m.Series = append(m.Series, manifestVariable{
			Variable: v.Name,
			Unit:     v.Unit,
			File:     filepath.Base(w.SeriesPath(v.Name)),
		})
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := os.WriteFile(w.ManifestPath(), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	w.logger.Info("wrote run manifest", "path", w.ManifestPath(), "cells", w.numCells, "timesteps", steps)
	return nil
}
