package benchmark

import (
	"time"

	"github.com/cloudperf/transferbench/report"
)

// elapsedMicros converts a wall-clock duration to integer microseconds,
// rounded to nearest.
func elapsedMicros(d time.Duration) int64 {
	us := (d.Nanoseconds() + 500) / 1000
	if us < 0 {
		return 0
	}
	return us
}

// cpuClock samples process CPU time around a timed region.
type cpuClock struct {
	start int64
}

func startCPUClock() cpuClock {
	return cpuClock{start: processCPUMicros()}
}

// ElapsedMicros returns the CPU time consumed since the clock was started,
// or the sentinel when the platform can't measure it.
func (c cpuClock) ElapsedMicros() int64 {
	end := processCPUMicros()
	if c.start == report.CpuTimeUnavailable || end == report.CpuTimeUnavailable {
		return report.CpuTimeUnavailable
	}
	return end - c.start
}
