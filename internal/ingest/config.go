package ingest

import (
	"errors"
	"fmt"
	"time"
)

// Config tunes the dispatcher. Zero values get sane defaults.
type Config struct {
	// QueueSize is the buffered capacity of each per-table queue.
	QueueSize int
	// EnqueueTimeout bounds how long Submit waits for queue space before
	// reporting back-pressure.
	EnqueueTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.EnqueueTimeout <= 0 {
		c.EnqueueTimeout = 100 * time.Millisecond
	}
}

// ErrDispatcherClosed is returned by Submit after Stop.
var ErrDispatcherClosed = errors.New("ingest: dispatcher closed")

// ErrUnknownTable is returned when an event targets a table with no queue.
var ErrUnknownTable = errors.New("ingest: unknown table")

// QueueFullError reports back-pressure on one table's queue.
type QueueFullError struct {
	Table    string
	Length   int
	Capacity int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("ingest: queue full for table %s (%d/%d)", e.Table, e.Length, e.Capacity)
}
