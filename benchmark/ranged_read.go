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

// rangedRead uploads one object, then times a single fixed-size byte-range
// read of it.
type rangedRead struct {
	cfg *Config
}

func init() {
	RegisterScenario(KindRangedRead, func(cfg *Config) (Scenario, error) {
		if cfg.RangeSize <= 0 {
			return nil, fmt.Errorf("ranged-read requires a positive range size, got %d", cfg.RangeSize)
		}
		return &rangedRead{cfg: cfg}, nil
	})
}

func (s *rangedRead) Kind() Kind { return KindRangedRead }

func (s *rangedRead) Repeatable() bool { return false }

func (s *rangedRead) Input() map[string]any { return util.StructMap(s.cfg) }

func (s *rangedRead) RunIteration(ctx context.Context, iteration int) ([]*report.Record, error) {
	size := s.cfg.pickObjectSize()
	if s.cfg.RangeOffset+s.cfg.RangeSize > size {
		return nil, fmt.Errorf("range [%d, %d) exceeds object size %d",
			s.cfg.RangeOffset, s.cfg.RangeOffset+s.cfg.RangeSize, size)
	}
	key := fmt.Sprintf("ranged-read/%d-%s", iteration, util.Randstring(8))

	dir, err := os.MkdirTemp("", "rangedread")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path, err := transfer.MakeRandomFile(dir, "data", size)
	if err != nil {
		return nil, err
	}

	opts := s.cfg.transferOptions()
	if _, err := s.cfg.Transferrer.UploadOne(ctx, key, path, opts); err != nil {
		return nil, fmt.Errorf("failed to stage object for ranged read: %w", err)
	}
	defer func() {
		if err := s.cfg.Transferrer.DeleteObject(context.Background(), key); err != nil {
			slog.Warn("failed to clean up benchmark object", slog.String("key", key), slog.String("error", err.Error()))
		}
	}()

	cpu := startCPUClock()
	start := time.Now()
	res, err := s.cfg.Transferrer.DownloadRange(ctx, key, s.cfg.RangeOffset, s.cfg.RangeSize, opts)
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}

	rec := s.cfg.baseRecord("RANGE_READ", size, elapsed, cpu.ElapsedMicros())
	rec.TransferSize = res.Bytes
	rec.TransferOffset = s.cfg.RangeOffset
	return []*report.Record{rec}, nil
}
