package wal

import (
	"fmt"
	"os"
	"time"

	"github.com/nainya/lexkey/internal/logger"
	"github.com/nainya/lexkey/internal/metrics"
	"github.com/nainya/lexkey/pkg/keycodec"
)

const (
	// DefaultCheckpointInterval is how often checkpoints are created
	DefaultCheckpointInterval = 10 * time.Minute
)

// Checkpointer manages periodic checkpointing
type Checkpointer struct {
	wal      *WAL
	interval time.Duration
	flushFn  func() error
	stopCh   chan struct{}
	doneCh   chan struct{}

	Log     *logger.Logger
	Metrics *metrics.Metrics
}

// NewCheckpointer creates a checkpointer
func NewCheckpointer(wal *WAL, flushFn func() error) *Checkpointer {
	return &Checkpointer{
		wal:      wal,
		interval: DefaultCheckpointInterval,
		flushFn:  flushFn,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start starts the background checkpointing process
func (c *Checkpointer) Start() {
	go c.run()
}

// Stop stops the checkpointer
func (c *Checkpointer) Stop() {
	close(c.stopCh)
	<-c.doneCh // Wait for goroutine to finish
}

// run is the main checkpointing loop
func (c *Checkpointer) run() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Checkpoint(); err != nil && c.Log != nil {
				c.Log.Error("background checkpoint failed").Err(err).Send()
			}

		case <-c.stopCh:
			return
		}
	}
}

// Checkpoint performs a checkpoint. The marker entry it appends carries, as
// its Value payload, a keycodec-encoded delta offset table of every entry
// written since the previous checkpoint, which CheckpointOffsets decodes
// with keycodec.DecodeOffsets. Recovery reads every entry of every segment
// in order and does not seek with the table.
func (c *Checkpointer) Checkpoint() error {
	start := time.Now()

	// 1. Flush in-memory state to disk
	if err := c.flushFn(); err != nil {
		return fmt.Errorf("flush failed: %w", err)
	}

	offsets := c.wal.ConsumeOffsetsSinceCheckpoint()
	table := keycodec.EncodeOffsets(offsets)

	// 2. Write checkpoint marker to WAL, carrying the offset table
	entry := Entry{
		LSN:       c.wal.NextLSN(),
		TxnID:     0, // Checkpoint doesn't belong to a transaction
		OpType:    OpCheckpoint,
		Value:     table,
		Timestamp: time.Now(),
	}

	if err := c.wal.Write(entry); err != nil {
		return fmt.Errorf("write checkpoint entry failed: %w", err)
	}

	if err := c.wal.Fsync(); err != nil {
		return fmt.Errorf("fsync checkpoint failed: %w", err)
	}

	// 3. Truncate old log files
	if err := c.truncateOldLogs(); err != nil {
		return fmt.Errorf("truncate failed: %w", err)
	}

	if c.Metrics != nil {
		c.Metrics.WalCheckpointsTotal.Inc()
		c.Metrics.WalCheckpointBytes.Observe(float64(len(table)))
	}
	if c.Log != nil {
		c.Log.LogCheckpoint(len(offsets), len(table), time.Since(start))
	}

	return nil
}

// truncateOldLogs removes every log file except the newest three
func (c *Checkpointer) truncateOldLogs() error {
	c.wal.mu.Lock()
	defer c.wal.mu.Unlock()

	files, err := c.wal.findLogFiles()
	if err != nil {
		return err
	}

	// Keep current file + last 2 files
	keepCount := 3
	if len(files) <= keepCount {
		return nil // Nothing to truncate
	}

	// Remove old files
	toRemove := files[:len(files)-keepCount]
	for _, file := range toRemove {
		if err := os.Remove(file); err != nil && c.Log != nil {
			c.Log.Warn("failed to remove old wal segment").Str("file", file).Err(err).Send()
		}
	}

	return nil
}

// SetInterval changes the checkpoint interval
func (c *Checkpointer) SetInterval(interval time.Duration) {
	c.interval = interval
}
