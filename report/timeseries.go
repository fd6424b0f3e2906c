package report

import (
	"encoding/json"
	"iter"
	"time"
)

// DefaultMetric identifies elapsed-time samples in the monitoring pipeline.
const DefaultMetric = "storage.transfer.elapsed_us"

type TimeSeriesLabels struct {
	Operation    string `json:"operation"`
	ObjectSize   int64  `json:"objectSize"`
	ChecksumMode string `json:"checksumMode"`
	ApiName      string `json:"apiName"`
	Bucket       string `json:"bucket"`
}

// A TimeSeriesEntry is one self-contained monitoring point derived from one
// record.
type TimeSeriesEntry struct {
	Metric    string           `json:"metric"`
	Value     int64            `json:"value"`
	Labels    TimeSeriesLabels `json:"labels"`
	Timestamp int64            `json:"timestamp"`
}

func (e *TimeSeriesEntry) JsonLine() (string, error) {
	buf, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// FormatTimeSeries lazily maps records to monitoring entries, one per record
// in input order, so a caller can stream entries to a sink without buffering
// the whole batch. The timestamp is taken once per entry at yield time.
func FormatTimeSeries(metric string, records []*Record) iter.Seq2[*TimeSeriesEntry, error] {
	return func(yield func(*TimeSeriesEntry, error) bool) {
		for _, r := range records {
			if err := r.Validate(); err != nil {
				yield(nil, err)
				return
			}
			entry := &TimeSeriesEntry{
				Metric: metric,
				Value:  r.ElapsedTimeUs,
				Labels: TimeSeriesLabels{
					Operation:    r.Op,
					ObjectSize:   r.ObjectSize,
					ChecksumMode: r.ChecksumMode(),
					ApiName:      string(r.ApiName),
					Bucket:       r.Bucket,
				},
				Timestamp: time.Now().Unix(),
			}
			if !yield(entry, nil) {
				return
			}
		}
	}
}
