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

// chunkedDownload stages one large object, then times downloading it in
// fixed-size chunks fetched concurrently.
type chunkedDownload struct {
	cfg *Config
}

func init() {
	RegisterScenario(KindChunkedDownload, func(cfg *Config) (Scenario, error) {
		if cfg.ChunkSize <= 0 {
			return nil, fmt.Errorf("chunked-download requires a positive chunk size, got %d", cfg.ChunkSize)
		}
		return &chunkedDownload{cfg: cfg}, nil
	})
}

func (s *chunkedDownload) Kind() Kind { return KindChunkedDownload }

func (s *chunkedDownload) Repeatable() bool { return false }

func (s *chunkedDownload) Input() map[string]any { return util.StructMap(s.cfg) }

func (s *chunkedDownload) RunIteration(ctx context.Context, iteration int) ([]*report.Record, error) {
	size := s.cfg.pickObjectSize()
	key := fmt.Sprintf("chunked-download/%d-%s", iteration, util.Randstring(8))

	dir, err := os.MkdirTemp("", "chunkeddownload")
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
		return nil, fmt.Errorf("failed to stage object for chunked download: %w", err)
	}
	defer func() {
		if err := s.cfg.Transferrer.DeleteObject(context.Background(), key); err != nil {
			slog.Warn("failed to clean up benchmark object", slog.String("key", key), slog.String("error", err.Error()))
		}
	}()

	cpu := startCPUClock()
	start := time.Now()
	res, err := s.cfg.Transferrer.DownloadChunked(ctx, key, s.cfg.ChunkSize, opts)
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}

	rec := s.cfg.baseRecord("DOWNLOAD_CHUNKED", res.Bytes, elapsed, cpu.ElapsedMicros())
	rec.ChunkSize = s.cfg.ChunkSize
	rec.Workers = s.cfg.TransferConcurrency
	rec.TransferSize = res.Bytes
	return []*report.Record{rec}, nil
}
