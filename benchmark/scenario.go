package benchmark

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/cloudperf/transferbench/report"
	"github.com/cloudperf/transferbench/transfer"
	"github.com/mitchellh/mapstructure"
)

type Kind string

const (
	KindW1R3            Kind = "w1r3"
	KindRangedRead      Kind = "ranged-read"
	KindUploadMany      Kind = "upload-many"
	KindDownloadMany    Kind = "download-many"
	KindChunkedDownload Kind = "chunked-download"
)

// Config is shared by every iteration of a run. Scenario files may override
// individual fields through the registry.
type Config struct {
	Transferrer transfer.Transferrer `mapstructure:"-"`

	// Object sizes are drawn uniformly from [ObjectSizeMin, ObjectSizeMax]
	// per iteration.
	ObjectSizeMin int64
	ObjectSizeMax int64

	AppBufferSize int64
	PartSize      int64

	// ChunkSize and TransferConcurrency apply to the multi-object and
	// chunked scenarios.
	ChunkSize           int64
	TransferConcurrency int

	// ReadCount is how many times w1r3 reads back each written object.
	ReadCount int

	// ObjectCount is the tree size for the multi-object scenarios.
	ObjectCount int

	// RangeSize and RangeOffset apply to the ranged-read scenario.
	RangeSize   int64
	RangeOffset int64

	Checksum transfer.Checksum
	Api      report.ApiName
}

// A Scenario performs exactly one benchmark iteration per RunIteration call
// and produces the measurement records for it. Errors from the transfer
// capability are surfaced unchanged; no retries happen here.
type Scenario interface {
	Kind() Kind

	// Repeatable reports whether iterations of this scenario may run
	// concurrently. Non-repeatable scenarios are forced to one worker.
	Repeatable() bool

	RunIteration(ctx context.Context, iteration int) ([]*report.Record, error)

	// Input returns the effective configuration for logging.
	Input() map[string]any
}

type scenarioFactory func(*Config) (Scenario, error)

var scenarios map[Kind]scenarioFactory

// All scenarios must register themselves at package load time so that
// scenario files can select them by kind.
func RegisterScenario(kind Kind, f scenarioFactory) {
	if scenarios == nil {
		scenarios = map[Kind]scenarioFactory{}
	}
	scenarios[kind] = f
}

// NewScenario builds the scenario for kind. Overrides, typically parsed from
// a scenario file, are decoded on top of a copy of cfg by field name.
func NewScenario(kind Kind, cfg *Config, overrides map[string]any) (Scenario, error) {
	factory, ok := scenarios[kind]
	if !ok {
		return nil, fmt.Errorf("unknown scenario kind: %s", kind)
	}

	effective := *cfg
	if len(overrides) > 0 {
		err := mapstructure.Decode(overrides, &effective)
		if err != nil {
			return nil, fmt.Errorf("can't apply overrides for scenario %s: %w", kind, err)
		}
	}
	if err := effective.validate(); err != nil {
		return nil, err
	}

	return factory(&effective)
}

// AllKinds returns the registered scenario kinds.
func AllKinds() []Kind {
	out := make([]Kind, 0, len(scenarios))
	for k := range scenarios {
		out = append(out, k)
	}
	return out
}

func (c *Config) validate() error {
	if c.Transferrer == nil {
		return fmt.Errorf("scenario config has no transferrer")
	}
	if c.ObjectSizeMin < 0 || c.ObjectSizeMax < c.ObjectSizeMin {
		return fmt.Errorf("invalid object size bounds [%d, %d]", c.ObjectSizeMin, c.ObjectSizeMax)
	}
	if c.ReadCount <= 0 {
		c.ReadCount = 3
	}
	if c.ObjectCount <= 0 {
		c.ObjectCount = 10
	}
	if c.TransferConcurrency <= 0 {
		c.TransferConcurrency = 1
	}
	if c.Api == "" {
		c.Api = report.ApiJSON
	}
	if c.Checksum == "" {
		c.Checksum = transfer.ChecksumNone
	}
	return nil
}

func (c *Config) pickObjectSize() int64 {
	if c.ObjectSizeMax == c.ObjectSizeMin {
		return c.ObjectSizeMin
	}
	return c.ObjectSizeMin + rand.Int63n(c.ObjectSizeMax-c.ObjectSizeMin+1)
}

func (c *Config) transferOptions() *transfer.Options {
	return &transfer.Options{
		Checksum:    c.Checksum,
		PartSize:    c.PartSize,
		Concurrency: c.TransferConcurrency,
		BufferSize:  c.AppBufferSize,
	}
}

// baseRecord fills the fields every scenario reports the same way.
func (c *Config) baseRecord(op string, objectSize int64, elapsed time.Duration, cpuUs int64) *report.Record {
	return &report.Record{
		Op:            op,
		ObjectSize:    objectSize,
		AppBufferSize: c.AppBufferSize,
		LibBufferSize: c.PartSize,
		Crc32cEnabled: c.Checksum == transfer.ChecksumCRC32C,
		MD5Enabled:    c.Checksum == transfer.ChecksumMD5,
		ApiName:       c.Api,
		ElapsedTimeUs: elapsedMicros(elapsed),
		CpuTimeUs:     cpuUs,
		Status:        report.StatusOK,
		Library:       "aws-sdk-go-v2",
		Bucket:        c.Transferrer.Bucket(),
	}
}
