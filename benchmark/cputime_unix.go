//go:build unix

package benchmark

import (
	"github.com/cloudperf/transferbench/report"
	"golang.org/x/sys/unix"
)

// processCPUMicros returns user+system CPU time for this process in
// microseconds.
func processCPUMicros() int64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return report.CpuTimeUnavailable
	}
	user := int64(ru.Utime.Sec)*1_000_000 + int64(ru.Utime.Usec)
	sys := int64(ru.Stime.Sec)*1_000_000 + int64(ru.Stime.Usec)
	return user + sys
}
