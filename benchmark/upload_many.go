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

// uploadMany uploads a randomly generated directory tree with bounded
// concurrency and reports one aggregate record for the whole batch.
type uploadMany struct {
	cfg *Config
}

func init() {
	RegisterScenario(KindUploadMany, func(cfg *Config) (Scenario, error) {
		return &uploadMany{cfg: cfg}, nil
	})
}

func (s *uploadMany) Kind() Kind { return KindUploadMany }

func (s *uploadMany) Repeatable() bool { return false }

func (s *uploadMany) Input() map[string]any { return util.StructMap(s.cfg) }

func (s *uploadMany) RunIteration(ctx context.Context, iteration int) ([]*report.Record, error) {
	dir, err := os.MkdirTemp("", "uploadmany")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	_, err = transfer.MakeRandomTree(dir, s.cfg.ObjectCount, s.cfg.ObjectSizeMin, s.cfg.ObjectSizeMax)
	if err != nil {
		return nil, err
	}

	prefix := fmt.Sprintf("upload-many/%d-%s", iteration, util.Randstring(8))
	defer func() {
		if err := s.cfg.Transferrer.DeletePrefix(context.Background(), prefix); err != nil {
			slog.Warn("failed to clean up benchmark objects", slog.String("prefix", prefix), slog.String("error", err.Error()))
		}
	}()

	opts := s.cfg.transferOptions()

	cpu := startCPUClock()
	start := time.Now()
	res, err := s.cfg.Transferrer.UploadMany(ctx, dir, prefix, opts)
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}

	rec := s.cfg.baseRecord("UPLOAD_MANY", res.Bytes, elapsed, cpu.ElapsedMicros())
	rec.Workers = s.cfg.TransferConcurrency
	rec.TransferSize = res.Bytes
	return []*report.Record{rec}, nil
}
