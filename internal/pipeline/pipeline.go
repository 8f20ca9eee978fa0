package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/openhydro/era5-shetran-etl/internal/domain"
	"github.com/openhydro/era5-shetran-etl/internal/observability"
)

// Extractor yields timesteps from the source dataset in order, returning
// io.EOF when the run is complete.
type Extractor interface {
	NextStep(ctx context.Context) (domain.Step, error)
	TotalSteps() int
}

// Transformer converts one extracted timestep into output rows.
type Transformer interface {
	Transform(ctx context.Context, step domain.Step) ([]domain.Row, error)
}

// Loader appends output rows to the destination files.
type Loader interface {
	LoadRows(ctx context.Context, rows []domain.Row) error
}

// Pipeline orchestrates the extract-transform-load loop. The conversion is a
// single-pass batch: the first error aborts the run, there are no retries and
// no partial-success semantics.
type Pipeline struct {
	extractor   Extractor
	transformer Transformer
	loader      Loader
	logger      *slog.Logger
	metrics     *observability.Metrics

	started    atomic.Bool
	steps      atomic.Int64
	records    atomic.Int64
	onProgress func(completed, total int)
}

// New creates a Pipeline with the given stages and observability.
func New(e Extractor, t Transformer, l Loader, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
	}
}

// SetProgressFunc registers a callback invoked after every processed
// timestep. Must be called before Run.
func (p *Pipeline) SetProgressFunc(fn func(completed, total int)) {
	p.onProgress = fn
}

// CheckReadiness returns nil once the pipeline has processed at least one
// timestep.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.started.Load() {
		return errors.New("pipeline has not processed any timesteps yet")
	}
	return nil
}

// Status reports run progress for the status endpoint.
func (p *Pipeline) Status() (steps, totalSteps int, records int64) {
	return int(p.steps.Load()), p.extractor.TotalSteps(), p.records.Load()
}

// Run executes the conversion until the dataset is exhausted or the context
// is cancelled. Cancellation is not an error; any stage failure is.
func (p *Pipeline) Run(ctx context.Context) error {
	total := p.extractor.TotalSteps()
	p.logger.Info("conversion started", "timesteps", total)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	for {
		start := time.Now()

		step, err := p.extractor.NextStep(ctx)
		if err != nil {
			if err == io.EOF {
				p.logger.Info("conversion complete", "timesteps", p.steps.Load(), "records", p.records.Load())
				return nil
			}
			if ctx.Err() != nil {
				p.logger.Info("conversion cancelled", "reason", ctx.Err(), "timesteps", p.steps.Load())
				return nil
			}
			return fmt.Errorf("extract step: %w", err)
		}

		rows, err := p.transformer.Transform(ctx, step)
		if err != nil {
			p.metrics.TransformErrors.Inc()
			return fmt.Errorf("transform step %d (%s): %w", step.Index, step.Time.Format(time.RFC3339), err)
		}

		if err := p.loader.LoadRows(ctx, rows); err != nil {
			return fmt.Errorf("load step %d: %w", step.Index, err)
		}

		var written int64
		for _, row := range rows {
			written += int64(len(row.Values))
		}
		p.records.Add(written)
		p.metrics.RecordsWritten.Add(float64(written))
		p.metrics.TimestepsProcessed.Inc()
		p.metrics.StepDuration.Observe(time.Since(start).Seconds())
		done := int(p.steps.Add(1))
		p.started.Store(true)

		if p.onProgress != nil {
			p.onProgress(done, total)
		}
	}
}
