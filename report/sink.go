package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// A Sink appends formatted result lines to a destination. Appends are atomic
// per call: all lines of one flush land in a single write so concurrent unit
// completions never interleave partial output.
type Sink interface {
	Append(lines []string) error
	Close() error
}

type fileSink struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// NewCsvFileSink opens path for appending. The header line is written exactly
// once, only when the file did not already exist, so repeated runs against
// the same file keep a single header.
func NewCsvFileSink(path string) (Sink, error) {
	return newFileSink(path, CsvHeader)
}

// NewJsonlFileSink opens path for appending line-delimited JSON entries.
func NewJsonlFileSink(path string) (Sink, error) {
	return newFileSink(path, "")
}

func newFileSink(path, header string) (Sink, error) {
	_, err := os.Stat(path)
	existed := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat result file %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open result file %s: %w", path, err)
	}

	if !existed && header != "" {
		if _, err := f.WriteString(header + "\n"); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write header to %s: %w", path, err)
		}
	}

	return &fileSink{f: f, path: path}, nil
}

func (s *fileSink) Append(lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.f.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		return fmt.Errorf("failed to append results to %s: %w", s.path, err)
	}
	return nil
}

func (s *fileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

type writerSink struct {
	mu          sync.Mutex
	w           io.Writer
	header      string
	wroteHeader bool
}

// NewWriterSink writes to an arbitrary stream, typically stderr when no
// result file is configured. The header, if any, precedes the first append.
func NewWriterSink(w io.Writer, header string) Sink {
	return &writerSink{w: w, header: header}
}

func (s *writerSink) Append(lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := strings.Join(lines, "\n") + "\n"
	if s.header != "" && !s.wroteHeader {
		out = s.header + "\n" + out
		s.wroteHeader = true
	}
	if _, err := io.WriteString(s.w, out); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

func (s *writerSink) Close() error {
	return nil
}
