package benchmark

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cloudperf/transferbench/report"
	"github.com/cloudperf/transferbench/transfer"
	"github.com/cloudperf/transferbench/util"
)

// w1r3 uploads one randomly generated object and reads it back ReadCount
// times, producing one write record and one record per read.
type w1r3 struct {
	cfg *Config
}

func init() {
	RegisterScenario(KindW1R3, func(cfg *Config) (Scenario, error) {
		return &w1r3{cfg: cfg}, nil
	})
}

func (s *w1r3) Kind() Kind { return KindW1R3 }

// Iterations are independent: each uses its own key, and uploads carry an
// if-not-exists precondition so concurrent units can't clobber each other.
func (s *w1r3) Repeatable() bool { return true }

func (s *w1r3) Input() map[string]any { return util.StructMap(s.cfg) }

func (s *w1r3) RunIteration(ctx context.Context, iteration int) ([]*report.Record, error) {
	size := s.cfg.pickObjectSize()
	key := fmt.Sprintf("w1r3/%d-%s", iteration, util.Randstring(8))

	dir, err := os.MkdirTemp("", "w1r3")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path, err := transfer.MakeRandomFile(dir, "data", size)
	if err != nil {
		return nil, err
	}

	// A stale object at the key would break the upload precondition.
	if err := s.cfg.Transferrer.DeleteObject(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to clear key %s: %w", key, err)
	}
	defer func() {
		if err := s.cfg.Transferrer.DeleteObject(context.Background(), key); err != nil {
			slog.Warn("failed to clean up benchmark object", slog.String("key", key), slog.String("error", err.Error()))
		}
	}()

	opts := s.cfg.transferOptions()
	opts.IfNotExists = true

	records := make([]*report.Record, 0, 1+s.cfg.ReadCount)

	cpu := startCPUClock()
	start := time.Now()
	_, err = s.cfg.Transferrer.UploadOne(ctx, key, path, opts)
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}
	records = append(records, s.cfg.baseRecord("WRITE", size, elapsed, cpu.ElapsedMicros()))

	readOpts := s.cfg.transferOptions()
	for i := 0; i < s.cfg.ReadCount; i++ {
		cpu = startCPUClock()
		start = time.Now()
		_, err := s.cfg.Transferrer.DownloadOne(ctx, key, readOpts)
		elapsed = time.Since(start)
		if err != nil {
			return nil, err
		}
		records = append(records, s.cfg.baseRecord(fmt.Sprintf("READ[%d]", i), size, elapsed, cpu.ElapsedMicros()))
	}

	return records, nil
}
