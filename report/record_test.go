package report

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCsvLineRoundTrip(t *testing.T) {
	rec := &Record{
		Op:            "WRITE",
		ObjectSize:    8388608,
		AppBufferSize: 65536,
		LibBufferSize: 1048576,
		Crc32cEnabled: true,
		ApiName:       ApiJSON,
		ElapsedTimeUs: 123456,
		CpuTimeUs:     CpuTimeUnavailable,
		Status:        StatusOK,
	}

	fields := strings.Split(rec.CsvLine(), ",")
	header := strings.Split(CsvHeader, ",")
	require.Len(t, fields, len(header))

	assert.Equal(t, "WRITE", fields[0])
	size, err := strconv.ParseInt(fields[1], 10, 64)
	require.NoError(t, err)
	assert.Equal(t, rec.ObjectSize, size)
	assert.Equal(t, "65536", fields[2])
	assert.Equal(t, "1048576", fields[3])
	assert.Equal(t, "true", fields[4])
	assert.Equal(t, "false", fields[5])
	assert.Equal(t, "JSON", fields[6])
	assert.Equal(t, "123456", fields[7])
	assert.Equal(t, "-1", fields[8])
	assert.Equal(t, StatusOK, fields[9])
}

func TestCsvLineDefaultsKeepSchemaFixed(t *testing.T) {
	rec := &Record{Op: "READ[0]", ApiName: ApiXML, Status: StatusOK}
	fields := strings.Split(rec.CsvLine(), ",")
	require.Len(t, fields, len(strings.Split(CsvHeader, ",")))
	assert.Equal(t, "0", fields[1])
	assert.Equal(t, "false", fields[4])
	assert.Equal(t, "false", fields[5])
}

func TestFormatCsvPreservesOrder(t *testing.T) {
	records := []*Record{
		{Op: "WRITE", ApiName: ApiJSON, Status: StatusOK},
		{Op: "READ[0]", ApiName: ApiJSON, Status: StatusOK},
		{Op: "READ[1]", ApiName: ApiJSON, Status: StatusOK},
	}

	lines, err := FormatCsv(records)
	require.NoError(t, err)
	require.Len(t, lines, len(records))
	for i, rec := range records {
		assert.True(t, strings.HasPrefix(lines[i], rec.Op+","))
	}
}

func TestValidateRejectsBadRecords(t *testing.T) {
	tests := []struct {
		name string
		rec  *Record
	}{
		{"negative elapsed time", &Record{Op: "WRITE", ElapsedTimeUs: -5}},
		{"negative object size", &Record{Op: "WRITE", ObjectSize: -1}},
		{"both checksums enabled", &Record{Op: "WRITE", Crc32cEnabled: true, MD5Enabled: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.rec.Validate())
		})
	}
}

func TestChecksumMode(t *testing.T) {
	assert.Equal(t, "crc32c", (&Record{Crc32cEnabled: true}).ChecksumMode())
	assert.Equal(t, "md5", (&Record{MD5Enabled: true}).ChecksumMode())
	assert.Equal(t, "none", (&Record{}).ChecksumMode())
}
