package auditlog

import (
	"errors"
	"time"
)

const (
	defaultBatchSize     = 1000
	defaultFlushInterval = 5 * time.Second
	defaultCloseTimeout  = 5 * time.Second
	defaultBufferSize    = 256 << 10
)

// Config controls the write-behind audit log.
type Config struct {
	Path          string
	BatchSize     int           // queued lines that trigger a flush
	FlushInterval time.Duration // max age of queued lines before a flush
	CloseTimeout  time.Duration // bound on drain-then-join at Close
	BufferSize    int           // bufio size in bytes
}

func (c Config) withDefaults() Config {
	if c.BatchSize == 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = defaultFlushInterval
	}
	if c.CloseTimeout == 0 {
		c.CloseTimeout = defaultCloseTimeout
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	return c
}

// Validate checks the config after defaults are applied.
func (c Config) Validate() error {
	if c.Path == "" {
		return errors.New("audit log path is required")
	}
	if c.BatchSize < 0 {
		return errors.New("batch size must be >= 0")
	}
	if c.FlushInterval < 0 || c.CloseTimeout < 0 {
		return errors.New("intervals must be >= 0")
	}
	if c.BufferSize < 0 {
		return errors.New("buffer size must be >= 0")
	}
	return nil
}
