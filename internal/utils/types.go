package utils

import (
	"fmt"
	"time"
)

// Config is the resolved engine configuration handed in by the CLI layer.
type Config struct {
	OutputDir          string
	Connections        int // range connections per file
	SegmentThresholdMB int // files at or below this size are streamed
	Timeout            time.Duration
	MaxRetries         int // attempts per segment
	MaxConcurrent      int // simultaneously active files
	UserAgent          string
}

func DefaultConfig() Config {
	return Config{
		OutputDir:          ".",
		Connections:        8,
		SegmentThresholdMB: 1,
		Timeout:            30 * time.Second,
		MaxRetries:         3,
		MaxConcurrent:      3,
		UserAgent:          ToolUserAgent,
	}
}

func (c Config) Validate() error {
	if c.Connections < 1 || c.Connections > 32 {
		return fmt.Errorf("connections must be between 1 and 32, got %d", c.Connections)
	}
	if c.SegmentThresholdMB < 1 || c.SegmentThresholdMB > 10 {
		return fmt.Errorf("segment size threshold must be between 1 and 10 MB, got %d", c.SegmentThresholdMB)
	}
	if c.Timeout < 10*time.Second || c.Timeout > 300*time.Second {
		return fmt.Errorf("timeout must be between 10s and 300s, got %s", c.Timeout)
	}
	if c.MaxRetries < 1 || c.MaxRetries > 10 {
		return fmt.Errorf("max retries must be between 1 and 10, got %d", c.MaxRetries)
	}
	if c.MaxConcurrent < 1 || c.MaxConcurrent > 10 {
		return fmt.Errorf("max concurrent files must be between 1 and 10, got %d", c.MaxConcurrent)
	}
	return nil
}

// SegmentThreshold returns the configured threshold in bytes.
func (c Config) SegmentThreshold() int64 {
	return int64(c.SegmentThresholdMB) * 1024 * 1024
}

// DownloadEntry is one item of a YAML batch list.
type DownloadEntry struct {
	OutputPath string `yaml:"op,omitempty"`
	URL        string `yaml:"link"`
}

const ToolUserAgent = "fastdl/1.0"

const SegmentBufferSize = 8 * 1024  // sub-chunk size for segment writes
const StreamChunkSize = 1024 * 1024 // chunk size for single-stream transfers

const RetryBackoff = 1 * time.Second // pause between segment attempts

const ProgressInterval = 500 * time.Millisecond
