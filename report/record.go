package report

import (
	"fmt"
	"strconv"
	"strings"
)

type ApiName string

const (
	ApiJSON ApiName = "JSON"
	ApiXML  ApiName = "XML"
)

const (
	StatusOK = "OK"

	// CpuTimeUnavailable is reported when the platform cannot measure
	// per-process CPU time.
	CpuTimeUnavailable = -1
)

// CsvHeader is the exact column order consumed by the monitoring pipeline.
// Do not reorder or rename columns.
const CsvHeader = "Op,ObjectSize,AppBufferSize,LibBufferSize,Crc32cEnabled,MD5Enabled,ApiName,ElapsedTimeUs,CpuTimeUs,Status"

// A Record is one completed benchmark observation. Records are immutable once
// created; the scenario that produced one hands it to the scheduler and never
// touches it again.
type Record struct {
	Op            string
	ObjectSize    int64
	AppBufferSize int64
	LibBufferSize int64
	Crc32cEnabled bool
	MD5Enabled    bool
	ApiName       ApiName
	ElapsedTimeUs int64
	CpuTimeUs     int64
	Status        string

	// Optional fields. Zero values are reported as-is so the schema stays
	// fixed-width.
	ChunkSize      int64
	Workers        int
	TransferSize   int64
	TransferOffset int64
	Library        string
	Bucket         string
}

// Validate checks the invariants every record must hold before it is handed
// to a formatter.
func (r *Record) Validate() error {
	if r.ElapsedTimeUs < 0 {
		return fmt.Errorf("record %q has negative elapsed time: %d", r.Op, r.ElapsedTimeUs)
	}
	if r.ObjectSize < 0 {
		return fmt.Errorf("record %q has negative object size: %d", r.Op, r.ObjectSize)
	}
	if r.Crc32cEnabled && r.MD5Enabled {
		return fmt.Errorf("record %q has both checksum validations enabled", r.Op)
	}
	return nil
}

// CsvLine renders the record as one comma-joined line in CsvHeader order.
func (r *Record) CsvLine() string {
	fields := []string{
		r.Op,
		strconv.FormatInt(r.ObjectSize, 10),
		strconv.FormatInt(r.AppBufferSize, 10),
		strconv.FormatInt(r.LibBufferSize, 10),
		strconv.FormatBool(r.Crc32cEnabled),
		strconv.FormatBool(r.MD5Enabled),
		string(r.ApiName),
		strconv.FormatInt(r.ElapsedTimeUs, 10),
		strconv.FormatInt(r.CpuTimeUs, 10),
		r.Status,
	}
	return strings.Join(fields, ",")
}

// FormatCsv renders records into lines, preserving order. Line i corresponds
// to records[i]; nothing is dropped or duplicated.
func FormatCsv(records []*Record) ([]string, error) {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		lines = append(lines, r.CsvLine())
	}
	return lines, nil
}

// ChecksumMode returns the label value describing which validation was active
// for this record.
func (r *Record) ChecksumMode() string {
	switch {
	case r.Crc32cEnabled:
		return "crc32c"
	case r.MD5Enabled:
		return "md5"
	default:
		return "none"
	}
}
