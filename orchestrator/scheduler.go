package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alitto/pond"
	"github.com/cloudperf/transferbench/benchmark"
	"github.com/cloudperf/transferbench/report"
	"github.com/schollz/progressbar/v3"
)

type Format string

const (
	FormatCsv        Format = "csv"
	FormatTimeSeries Format = "time-series"
)

type Input struct {
	Scenario         benchmark.Scenario
	TotalIterations  int
	ConcurrencyLimit int
	FailFast         bool

	Sink   report.Sink
	Format Format

	// Metric names time-series entries. Ignored for csv output.
	Metric string

	ShowProgress bool
}

// A Scheduler converts an iteration budget and a concurrency limit into a
// bounded stream of execution units, forwarding each unit's records to the
// sink in completion order. The iteration counters are owned exclusively by
// the Run loop; units never touch them.
type Scheduler struct {
	input *Input
}

func NewScheduler(input *Input) (*Scheduler, error) {
	if input.Scenario == nil {
		return nil, fmt.Errorf("scheduler requires a scenario")
	}
	if input.Sink == nil {
		return nil, fmt.Errorf("scheduler requires a sink")
	}
	if input.TotalIterations < 0 {
		return nil, fmt.Errorf("total iterations must be non-negative, got %d", input.TotalIterations)
	}
	if input.ConcurrencyLimit < 1 {
		return nil, fmt.Errorf("concurrency limit must be positive, got %d", input.ConcurrencyLimit)
	}
	if input.Format != FormatCsv && input.Format != FormatTimeSeries {
		return nil, fmt.Errorf("unknown output format: %s", input.Format)
	}
	if input.Metric == "" {
		input.Metric = report.DefaultMetric
	}
	return &Scheduler{input: input}, nil
}

// EffectiveConcurrency is the number of units permitted in flight at once:
// min(limit, total), forced to 1 for scenarios whose iterations must not
// overlap.
func (s *Scheduler) EffectiveConcurrency() int {
	eff := min(s.input.ConcurrencyLimit, s.input.TotalIterations)
	if !s.input.Scenario.Repeatable() {
		eff = min(eff, 1)
	}
	return eff
}

type unitOutcome struct {
	iteration int
	records   []*report.Record
	err       error
}

// Run dispatches all iterations and blocks until every outstanding unit has
// reported. A unit failure consumes its iteration and the run continues,
// unless FailFast is set, in which case no further units are dispatched and
// the first failure is returned. Sink errors are always fatal.
func (s *Scheduler) Run(ctx context.Context) error {
	total := s.input.TotalIterations
	if total == 0 {
		slog.Info("no iterations requested, nothing to do")
		return nil
	}

	eff := s.EffectiveConcurrency()
	slog.Info("starting benchmark run",
		slog.String("scenario", string(s.input.Scenario.Kind())),
		slog.Int("iterations", total),
		slog.Int("effectiveConcurrency", eff),
	)

	pool := pond.New(eff, 0, pond.MinWorkers(eff))
	defer pool.StopAndWait()

	// Buffered to the in-flight ceiling so a unit can always report without
	// blocking, even if Run bails out on a sink error.
	completions := make(chan *unitOutcome, eff)

	var bar *progressbar.ProgressBar
	if s.input.ShowProgress {
		bar = progressbar.Default(int64(total), "Benchmarking:")
	}

	dispatched := 0
	inFlight := 0
	remaining := total
	failures := 0
	var totalBytes int64

	dispatch := func() {
		iteration := dispatched
		dispatched++
		inFlight++
		pool.Submit(func() {
			completions <- s.runUnit(ctx, iteration)
		})
	}

	for i := 0; i < eff; i++ {
		dispatch()
	}

	start := time.Now()
	var failFastErr error
	for inFlight > 0 {
		out := <-completions
		inFlight--
		remaining--

		if out.err != nil {
			failures++
			slog.Error("iteration failed",
				slog.String("scenario", string(s.input.Scenario.Kind())),
				slog.Int("iteration", out.iteration),
				slog.String("error", out.err.Error()),
			)
			if s.input.FailFast && failFastErr == nil {
				failFastErr = fmt.Errorf("iteration %d failed: %w", out.iteration, out.err)
			}
		} else {
			if err := s.flush(out.records); err != nil {
				// Results would be silently lost if we kept going.
				return fmt.Errorf("failed to record results: %w", err)
			}
			for _, rec := range out.records {
				totalBytes += rec.ObjectSize
			}
		}

		if bar != nil {
			bar.Add(1)
		}
		slog.Debug("iteration consumed", slog.Int("iteration", out.iteration), slog.Int("remaining", remaining))

		if dispatched < total && failFastErr == nil && ctx.Err() == nil {
			dispatch()
		}
	}

	if bar != nil {
		bar.Finish()
	}

	elapsed := time.Since(start)
	slog.Info("benchmark run finished",
		slog.String("scenario", string(s.input.Scenario.Kind())),
		slog.Int("completed", dispatched-failures),
		slog.Int("failed", failures),
		slog.Duration("elapsed", elapsed),
		slog.Float64("dataThroughputMiBps", float64(totalBytes)/elapsed.Seconds()/(1024*1024)),
		slog.Float64("iterationsPerSec", float64(dispatched)/elapsed.Seconds()),
	)

	if failFastErr != nil {
		return failFastErr
	}
	return ctx.Err()
}

// runUnit is the isolated failure domain for one iteration: it reports
// exactly once, converting a panic into a failed outcome rather than
// crashing a pool worker.
func (s *Scheduler) runUnit(ctx context.Context, iteration int) (out *unitOutcome) {
	out = &unitOutcome{iteration: iteration}
	defer func() {
		if r := recover(); r != nil {
			out.err = fmt.Errorf("panic: %v", r)
			out.records = nil
		}
	}()
	out.records, out.err = s.input.Scenario.RunIteration(ctx, iteration)
	return out
}

func (s *Scheduler) flush(records []*report.Record) error {
	var lines []string
	switch s.input.Format {
	case FormatCsv:
		var err error
		lines, err = report.FormatCsv(records)
		if err != nil {
			return err
		}
	case FormatTimeSeries:
		for entry, err := range report.FormatTimeSeries(s.input.Metric, records) {
			if err != nil {
				return err
			}
			line, err := entry.JsonLine()
			if err != nil {
				return err
			}
			lines = append(lines, line)
		}
	}
	return s.input.Sink.Append(lines)
}
