package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/cloudperf/transferbench/benchmark"
	"github.com/cloudperf/transferbench/orchestrator"
	"github.com/cloudperf/transferbench/report"
	"github.com/cloudperf/transferbench/transfer"
)

func main() {
	scenario := flag.String("scenario", string(benchmark.KindW1R3), fmt.Sprintf("The scenario to benchmark. Must be one of: %v.", benchmark.AllKinds()))
	scenarioFile := flag.String("scenario-file", "", "A JSON scenario file selecting the scenario kind and overriding config fields. Overrides the scenario flag.")
	iterations := flag.Int("iterations", 1, "Total number of samples to collect.")
	concurrency := flag.Int("concurrency", 1, "Maximum number of iterations in flight at once. Forced to 1 for scenarios that can't overlap.")
	bucketName := flag.String("bucket-name", "", "The target bucket name. Required.")
	createBucket := flag.Bool("create-bucket", false, "Create the bucket if it does not exist.")
	objectSizeMin := flag.Int64("object-size-min", 1024*1024, "Lower bound of the per-iteration object size in bytes.")
	objectSizeMax := flag.Int64("object-size-max", 1024*1024, "Upper bound of the per-iteration object size in bytes.")
	appBufferSize := flag.Int64("app-buffer-size", 0, "Application-level copy buffer size in bytes. 0 uses the default.")
	partSize := flag.Int64("part-size", 0, "Multipart part size in bytes handed to the transfer library. 0 uses the library default.")
	chunkSize := flag.Int64("chunk-size", 1024*1024, "Chunk size in bytes for the chunked-download scenario.")
	objectCount := flag.Int("object-count", 10, "Number of objects per iteration for the multi-object scenarios.")
	readCount := flag.Int("read-count", 3, "How many times w1r3 reads back each written object.")
	rangeSize := flag.Int64("range-size", 1024*1024, "Range length in bytes for the ranged-read scenario.")
	rangeOffset := flag.Int64("range-offset", 0, "Range offset in bytes for the ranged-read scenario.")
	transferConcurrency := flag.Int("transfer-concurrency", 16, "Concurrency used inside the multi-object and chunked scenarios.")
	checksum := flag.String("checksum", string(transfer.ChecksumNone), "Content validation mode, fixed for the whole run: none, crc32c, or md5.")
	api := flag.String("api", string(report.ApiJSON), "API variant label recorded with each sample: JSON or XML.")
	outputFormat := flag.String("output-format", string(orchestrator.FormatCsv), "Result encoding: csv or time-series.")
	outputPath := flag.String("output-path", "", "File to append results to. Writes to stderr when unset.")
	metric := flag.String("metric", report.DefaultMetric, "Metric name used for time-series output.")
	rateLimit := flag.Int("rate-limit", 0, "Max requests per second inside multi-object scenarios. 0 means no limit.")
	failFast := flag.Bool("fail-fast", false, "Terminate the run with a non-zero exit status on the first failed iteration.")
	verbose := flag.Bool("v", false, "Enable debug logging.")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if *bucketName == "" {
		slog.Error("bucket-name is a required flag")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to initialize the storage client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	transferrer := transfer.NewS3Transferrer(&transfer.S3TransferrerInput{
		AwsConfig: cfg,
		Bucket:    *bucketName,
		RateLimit: *rateLimit,
	})

	if *createBucket {
		if err := transferrer.EnsureBucket(ctx); err != nil {
			slog.Error("failed to set up bucket", slog.String("bucket", *bucketName), slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	scenarioCfg := &benchmark.Config{
		Transferrer:         transferrer,
		ObjectSizeMin:       *objectSizeMin,
		ObjectSizeMax:       *objectSizeMax,
		AppBufferSize:       *appBufferSize,
		PartSize:            *partSize,
		ChunkSize:           *chunkSize,
		TransferConcurrency: *transferConcurrency,
		ReadCount:           *readCount,
		ObjectCount:         *objectCount,
		RangeSize:           *rangeSize,
		RangeOffset:         *rangeOffset,
		Checksum:            transfer.Checksum(*checksum),
		Api:                 report.ApiName(*api),
	}

	kind := benchmark.Kind(*scenario)
	var overrides map[string]any
	if *scenarioFile != "" {
		ss, err := benchmark.LoadScenarioFile(*scenarioFile)
		if err != nil {
			slog.Error("failed to load scenario file", slog.String("error", err.Error()))
			os.Exit(1)
		}
		kind = ss.Kind
		overrides = ss.Input
	}

	sc, err := benchmark.NewScenario(kind, scenarioCfg, overrides)
	if err != nil {
		slog.Error("failed to build scenario", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Debug("scenario configured", slog.String("kind", string(kind)), slog.Any("input", sc.Input()))

	sink, err := newSink(orchestrator.Format(*outputFormat), *outputPath)
	if err != nil {
		slog.Error("failed to open result sink", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer sink.Close()

	sched, err := orchestrator.NewScheduler(&orchestrator.Input{
		Scenario:         sc,
		TotalIterations:  *iterations,
		ConcurrencyLimit: *concurrency,
		FailFast:         *failFast,
		Sink:             sink,
		Format:           orchestrator.Format(*outputFormat),
		Metric:           *metric,
		// The progress bar writes to stderr, which carries the results when
		// no output path is set.
		ShowProgress: *outputPath != "",
	})
	if err != nil {
		slog.Error("failed to build scheduler", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := sched.Run(ctx); err != nil {
		slog.Error("benchmark run failed", slog.String("error", err.Error()))
		sink.Close()
		os.Exit(1)
	}
}

func newSink(format orchestrator.Format, path string) (report.Sink, error) {
	if path == "" {
		header := ""
		if format == orchestrator.FormatCsv {
			header = report.CsvHeader
		}
		return report.NewWriterSink(os.Stderr, header), nil
	}
	if format == orchestrator.FormatCsv {
		return report.NewCsvFileSink(path)
	}
	return report.NewJsonlFileSink(path)
}
