package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudperf/transferbench/benchmark"
	"github.com/cloudperf/transferbench/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScenario counts dispatches and tracks the in-flight high-water mark so
// tests can assert the concurrency ceiling.
type fakeScenario struct {
	repeatable  bool
	delay       time.Duration
	failOn      map[int]bool
	panicOn     map[int]bool
	dispatched  atomic.Int64
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func (f *fakeScenario) Kind() benchmark.Kind { return benchmark.Kind("fake") }

func (f *fakeScenario) Repeatable() bool { return f.repeatable }

func (f *fakeScenario) Input() map[string]any { return map[string]any{} }

func (f *fakeScenario) RunIteration(ctx context.Context, iteration int) ([]*report.Record, error) {
	f.dispatched.Add(1)
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		old := f.maxInFlight.Load()
		if cur <= old || f.maxInFlight.CompareAndSwap(old, cur) {
			break
		}
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panicOn[iteration] {
		panic(fmt.Sprintf("iteration %d exploded", iteration))
	}
	if f.failOn[iteration] {
		return nil, fmt.Errorf("simulated transfer error on iteration %d", iteration)
	}
	return []*report.Record{{
		Op:            fmt.Sprintf("WRITE-%d", iteration),
		ObjectSize:    1024,
		ApiName:       report.ApiJSON,
		ElapsedTimeUs: 1,
		CpuTimeUs:     report.CpuTimeUnavailable,
		Status:        report.StatusOK,
	}}, nil
}

type memSink struct {
	mu    sync.Mutex
	lines []string
	fail  bool
}

func (s *memSink) Append(lines []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("disk full")
	}
	s.lines = append(s.lines, lines...)
	return nil
}

func (s *memSink) Close() error { return nil }

func (s *memSink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.lines...)
}

func newTestScheduler(t *testing.T, sc benchmark.Scenario, sink report.Sink, total, limit int, failFast bool) *Scheduler {
	t.Helper()
	sched, err := NewScheduler(&Input{
		Scenario:         sc,
		TotalIterations:  total,
		ConcurrencyLimit: limit,
		FailFast:         failFast,
		Sink:             sink,
		Format:           FormatCsv,
	})
	require.NoError(t, err)
	return sched
}

func TestRunDispatchesExactlyTotalIterations(t *testing.T) {
	sc := &fakeScenario{repeatable: true, delay: 5 * time.Millisecond}
	sink := &memSink{}
	sched := newTestScheduler(t, sc, sink, 5, 2, false)

	require.NoError(t, sched.Run(context.Background()))

	assert.EqualValues(t, 5, sc.dispatched.Load())
	assert.LessOrEqual(t, sc.maxInFlight.Load(), int64(2))
	assert.Len(t, sink.Lines(), 5)
}

func TestRunWithZeroIterations(t *testing.T) {
	sc := &fakeScenario{repeatable: true}
	sink := &memSink{}
	sched := newTestScheduler(t, sc, sink, 0, 4, false)

	require.NoError(t, sched.Run(context.Background()))

	assert.EqualValues(t, 0, sc.dispatched.Load())
	assert.Empty(t, sink.Lines())
}

func TestConcurrencyCeiling(t *testing.T) {
	sc := &fakeScenario{repeatable: true, delay: 2 * time.Millisecond}
	sink := &memSink{}
	sched := newTestScheduler(t, sc, sink, 20, 4, false)

	require.NoError(t, sched.Run(context.Background()))

	assert.EqualValues(t, 20, sc.dispatched.Load())
	assert.LessOrEqual(t, sc.maxInFlight.Load(), int64(4))
}

func TestNonRepeatableScenarioForcedToOneWorker(t *testing.T) {
	sc := &fakeScenario{repeatable: false, delay: 2 * time.Millisecond}
	sink := &memSink{}
	sched := newTestScheduler(t, sc, sink, 6, 8, false)

	assert.Equal(t, 1, sched.EffectiveConcurrency())
	require.NoError(t, sched.Run(context.Background()))

	assert.EqualValues(t, 6, sc.dispatched.Load())
	assert.EqualValues(t, 1, sc.maxInFlight.Load())
}

func TestEffectiveConcurrencyBoundedByBudget(t *testing.T) {
	sc := &fakeScenario{repeatable: true}
	sink := &memSink{}
	sched := newTestScheduler(t, sc, sink, 3, 10, false)

	assert.Equal(t, 3, sched.EffectiveConcurrency())
}

func TestFailedIterationDoesNotHaltRun(t *testing.T) {
	sc := &fakeScenario{repeatable: true, failOn: map[int]bool{2: true}}
	sink := &memSink{}
	sched := newTestScheduler(t, sc, sink, 5, 1, false)

	require.NoError(t, sched.Run(context.Background()))

	assert.EqualValues(t, 5, sc.dispatched.Load())
	assert.Len(t, sink.Lines(), 4)
	for _, line := range sink.Lines() {
		assert.False(t, strings.HasPrefix(line, "WRITE-2,"), "failed iteration must not be recorded: %s", line)
	}
}

func TestFailFastStopsDispatch(t *testing.T) {
	sc := &fakeScenario{repeatable: true, failOn: map[int]bool{2: true}}
	sink := &memSink{}
	sched := newTestScheduler(t, sc, sink, 10, 1, true)

	err := sched.Run(context.Background())
	require.Error(t, err)

	// With one worker, iterations 0..2 run and nothing after the failure.
	assert.EqualValues(t, 3, sc.dispatched.Load())
	assert.Len(t, sink.Lines(), 2)
}

func TestPanickingIterationIsIsolated(t *testing.T) {
	sc := &fakeScenario{repeatable: true, panicOn: map[int]bool{1: true}}
	sink := &memSink{}
	sched := newTestScheduler(t, sc, sink, 4, 1, false)

	require.NoError(t, sched.Run(context.Background()))

	assert.EqualValues(t, 4, sc.dispatched.Load())
	assert.Len(t, sink.Lines(), 3)
}

func TestSinkErrorIsFatal(t *testing.T) {
	sc := &fakeScenario{repeatable: true}
	sink := &memSink{fail: true}
	sched := newTestScheduler(t, sc, sink, 3, 1, false)

	err := sched.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to record results")
}

func TestCancellationStopsDispatch(t *testing.T) {
	sc := &fakeScenario{repeatable: true, delay: 10 * time.Millisecond}
	sink := &memSink{}
	sched := newTestScheduler(t, sc, sink, 100, 2, false)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(25 * time.Millisecond)
		cancel()
	}()

	err := sched.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, sc.dispatched.Load(), int64(100))
}

func TestNewSchedulerValidation(t *testing.T) {
	sc := &fakeScenario{repeatable: true}
	sink := &memSink{}

	_, err := NewScheduler(&Input{Scenario: sc, Sink: sink, TotalIterations: -1, ConcurrencyLimit: 1, Format: FormatCsv})
	assert.Error(t, err)

	_, err = NewScheduler(&Input{Scenario: sc, Sink: sink, TotalIterations: 1, ConcurrencyLimit: 0, Format: FormatCsv})
	assert.Error(t, err)

	_, err = NewScheduler(&Input{Scenario: sc, Sink: sink, TotalIterations: 1, ConcurrencyLimit: 1, Format: Format("xml")})
	assert.Error(t, err)

	_, err = NewScheduler(&Input{Scenario: nil, Sink: sink, TotalIterations: 1, ConcurrencyLimit: 1, Format: FormatCsv})
	assert.Error(t, err)
}
