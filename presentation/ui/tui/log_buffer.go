package tui

import (
	"io"
	"log"
	"strings"
	"sync"
)

const defaultLogCapacity = 256

// LogBuffer keeps the last log lines written to it. It replaces the
// terminal as the standard logger output while the dashboard is shown.
type LogBuffer struct {
	mu       sync.Mutex
	capacity int
	lines    []string
	head     int // next write position
	count    int
	partial  string
}

func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = defaultLogCapacity
	}
	return &LogBuffer{
		capacity: capacity,
		lines:    make([]string, capacity),
	}
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	chunk := string(p)
	for len(chunk) > 0 {
		newlineIdx := strings.IndexByte(chunk, '\n')
		if newlineIdx < 0 {
			b.partial += chunk
			break
		}
		b.appendLineLocked(strings.TrimRight(b.partial+chunk[:newlineIdx], "\r"))
		b.partial = ""
		chunk = chunk[newlineIdx+1:]
	}
	return len(p), nil
}

// Tail returns up to limit of the most recent lines, oldest first.
func (b *LogBuffer) Tail(limit int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := min(b.count, limit)
	if n <= 0 {
		return nil
	}
	out := make([]string, n)
	start := (b.head - n + b.capacity) % b.capacity
	for i := range out {
		out[i] = b.lines[(start+i)%b.capacity]
	}
	return out
}

func (b *LogBuffer) appendLineLocked(line string) {
	b.lines[b.head] = line
	b.head = (b.head + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}
}

// RedirectStandardLogger sends the standard logger output to buffer and
// returns a function restoring the previous output.
func RedirectStandardLogger(buffer *LogBuffer) func() {
	previousWriter := log.Writer()
	log.SetOutput(io.Writer(buffer))
	return func() {
		log.SetOutput(previousWriter)
	}
}
