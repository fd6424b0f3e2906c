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

// downloadMany stages a directory tree in the bucket, then times downloading
// everything under the prefix with bounded concurrency.
type downloadMany struct {
	cfg *Config
}

func init() {
	RegisterScenario(KindDownloadMany, func(cfg *Config) (Scenario, error) {
		return &downloadMany{cfg: cfg}, nil
	})
}

func (s *downloadMany) Kind() Kind { return KindDownloadMany }

func (s *downloadMany) Repeatable() bool { return false }

func (s *downloadMany) Input() map[string]any { return util.StructMap(s.cfg) }

func (s *downloadMany) RunIteration(ctx context.Context, iteration int) ([]*report.Record, error) {
	dir, err := os.MkdirTemp("", "downloadmany")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	_, err = transfer.MakeRandomTree(dir, s.cfg.ObjectCount, s.cfg.ObjectSizeMin, s.cfg.ObjectSizeMax)
	if err != nil {
		return nil, err
	}

	prefix := fmt.Sprintf("download-many/%d-%s", iteration, util.Randstring(8))
	defer func() {
		if err := s.cfg.Transferrer.DeletePrefix(context.Background(), prefix); err != nil {
			slog.Warn("failed to clean up benchmark objects", slog.String("prefix", prefix), slog.String("error", err.Error()))
		}
	}()

	opts := s.cfg.transferOptions()
	if _, err := s.cfg.Transferrer.UploadMany(ctx, dir, prefix, opts); err != nil {
		return nil, fmt.Errorf("failed to stage objects for download: %w", err)
	}

	cpu := startCPUClock()
	start := time.Now()
	res, err := s.cfg.Transferrer.DownloadMany(ctx, prefix, opts)
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}

	rec := s.cfg.baseRecord("DOWNLOAD_MANY", res.Bytes, elapsed, cpu.ElapsedMicros())
	rec.Workers = s.cfg.TransferConcurrency
	rec.TransferSize = res.Bytes
	return []*report.Record{rec}, nil
}
