package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultPath is where the process-wide emitter appends events.
const DefaultPath = "target/analytics-logs/test-events.jsonl"

// Sink receives complete, newline-terminated JSON lines. Implementations
// must write each line as a unit: concurrent appends never interleave.
type Sink interface {
	Append(line []byte) error
}

// FileSink appends lines to a file. The file and its parent directories are
// created on the first append; the handle is then kept for the life of the
// process. A failed open is retried on the next append.
type FileSink struct {
	path string

	mu   sync.Mutex
	file *os.File
}

// NewFileSink creates a sink for path. Nothing touches the disk until the
// first Append.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Path returns the log file path.
func (s *FileSink) Path() string {
	return s.path
}

// Append writes line with a single write call while holding the sink lock.
func (s *FileSink) Append(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
			return fmt.Errorf("failed to create event log directory: %w", err)
		}
		// O_APPEND keeps prior records untouched even across processes
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open event log: %w", err)
		}
		s.file = f
	}

	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Close releases the file handle. A later Append reopens it.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// MemorySink keeps lines in memory for tests.
type MemorySink struct {
	mu    sync.Mutex
	lines [][]byte

	// Err, when set, fails every append.
	Err error
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Append(line []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.lines = append(m.lines, append([]byte(nil), line...))
	return nil
}

// Lines returns the appended lines without their trailing newline.
func (m *MemorySink) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.lines))
	for i, l := range m.lines {
		out[i] = string(bytes.TrimSuffix(l, []byte("\n")))
	}
	return out
}

// Records decodes every appended line.
func (m *MemorySink) Records() ([]Record, error) {
	lines := m.Lines()
	out := make([]Record, 0, len(lines))
	for i, l := range lines {
		var rec Record
		if err := json.Unmarshal([]byte(l), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
