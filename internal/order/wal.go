package order

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Log is a write-ahead log for order intents. Intents are persisted before
// submission so a crash between enqueue and fill cannot silently lose an
// order; recovered intents are resubmitted on startup.
type Log struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	pending int
	closed  bool
}

type walEntry struct {
	Action    string    `json:"action"` // "SUBMIT" or "COMPLETE"
	Intent    Intent    `json:"intent"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLog opens (or creates) the WAL under dir.
func NewLog(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create WAL directory: %w", err)
	}
	path := filepath.Join(dir, "orders.wal")
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open WAL file: %w", err)
	}
	return &Log{path: path, file: file}, nil
}

// Record persists an intent before it is handed to the gateway.
func (l *Log) Record(in Intent) error {
	return l.append(walEntry{Action: "SUBMIT", Intent: in, Timestamp: time.Now()})
}

// Complete marks an intent as settled (filled or terminally rejected).
func (l *Log) Complete(in Intent) error {
	return l.append(walEntry{Action: "COMPLETE", Intent: in, Timestamp: time.Now()})
}

func (l *Log) append(e walEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal WAL entry: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return fmt.Errorf("WAL closed")
	}
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write WAL entry: %w", err)
	}
	return l.file.Sync()
}

// Recover returns intents that were submitted but never completed, then
// compacts the log. Call once on startup before accepting new orders.
func (l *Log) Recover() ([]Intent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open WAL for recovery: %w", err)
	}
	defer file.Close()

	submitted := make(map[string]Intent)
	completed := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		var e walEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			log.Printf("[ORDER] WAL parse error (skipping): %v", err)
			continue
		}
		switch e.Action {
		case "SUBMIT":
			submitted[e.Intent.ID] = e.Intent
		case "COMPLETE":
			completed[e.Intent.ID] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("WAL scan: %w", err)
	}

	var pending []Intent
	for id, in := range submitted {
		if !completed[id] {
			pending = append(pending, in)
		}
	}
	if len(pending) > 0 {
		log.Printf("[ORDER] recovered %d pending orders from WAL", len(pending))
	}

	if err := l.compact(pending); err != nil {
		log.Printf("[ORDER] WAL compaction failed: %v", err)
	}
	return pending, nil
}

// compact rewrites the log with only the pending entries.
func (l *Log) compact(pending []Intent) error {
	tmp := l.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	for _, in := range pending {
		if err := enc.Encode(walEntry{Action: "SUBMIT", Intent: in, Timestamp: time.Now()}); err != nil {
			f.Close()
			return err
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if err := l.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return err
	}
	l.file, err = os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	return err
}

// Close flushes and closes the log file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}
