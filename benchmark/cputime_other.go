//go:build !unix

package benchmark

import "github.com/cloudperf/transferbench/report"

func processCPUMicros() int64 {
	return report.CpuTimeUnavailable
}
