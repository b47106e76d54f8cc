package logging

import (
	"sync"
	"time"
)

// LogEntry represents a single log line stored in the ring buffer.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RingBuffer is a thread-safe circular buffer for log entries.
type RingBuffer struct {
	entries []LogEntry
	size    int
	head    int
	count   int
	mu      sync.RWMutex
}

// NewRingBuffer creates a new ring buffer with the specified capacity.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 1
	}
	return &RingBuffer{
		entries: make([]LogEntry, size),
		size:    size,
	}
}

// Write adds a log entry to the buffer, overwriting the oldest entry if full.
func (rb *RingBuffer) Write(entry LogEntry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.entries[rb.head] = entry
	rb.head = (rb.head + 1) % rb.size

	if rb.count < rb.size {
		rb.count++
	}
}

// ReadAll returns all entries in chronological order.
func (rb *RingBuffer) ReadAll() []LogEntry {
	return rb.Tail(0)
}

// Tail returns the newest n entries in chronological order. n <= 0 returns all.
func (rb *RingBuffer) Tail(n int) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.count == 0 {
		return nil
	}
	if n <= 0 || n > rb.count {
		n = rb.count
	}

	result := make([]LogEntry, n)
	// Oldest wanted entry sits n slots behind head
	start := (rb.head - n + rb.size) % rb.size
	for i := range n {
		result[i] = rb.entries[(start+i)%rb.size]
	}
	return result
}

// Count returns the number of entries in the buffer.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

var (
	bufferMu  sync.RWMutex
	logBuffer *RingBuffer
	listeners = make(map[int]LogCallback)
	nextID    int
)

func setBuffer(rb *RingBuffer) {
	bufferMu.Lock()
	logBuffer = rb
	bufferMu.Unlock()
}

// GetBuffer returns the log ring buffer for reading historical logs.
// It is nil until Initialize has run.
func GetBuffer() *RingBuffer {
	bufferMu.RLock()
	defer bufferMu.RUnlock()
	return logBuffer
}

// AddListener registers a callback for each new log entry and returns a
// function that removes it. Callbacks must not block.
func AddListener(callback LogCallback) func() {
	bufferMu.Lock()
	id := nextID
	nextID++
	listeners[id] = callback
	bufferMu.Unlock()

	return func() {
		bufferMu.Lock()
		delete(listeners, id)
		bufferMu.Unlock()
	}
}

func record(entry LogEntry) {
	bufferMu.RLock()
	defer bufferMu.RUnlock()

	if logBuffer != nil {
		logBuffer.Write(entry)
	}
	for _, cb := range listeners {
		cb(entry)
	}
}
