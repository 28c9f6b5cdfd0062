// Package config holds the ingest pipeline and store configuration
// used by the cmd/load entrypoint and the ingest pipeline.
// Generalized from the teacher's DBSchemaConfig.
package config

import "fmt"

// Config is populated from command-line flags in cmd/load.
type Config struct {
	DataDir        string
	InitialSize    int64
	BatchSize      int
	CommitInterval int // milliseconds
	Workers        int
	SyncMode       string // "strict" or "async"
}

// Default returns a Config with sane defaults for a single local store.
func Default() Config {
	return Config{
		DataDir:        "./data",
		InitialSize:    1 << 30, // 1 GiB
		BatchSize:      500,
		CommitInterval: 1000,
		Workers:        4,
		SyncMode:       "async",
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: DataDir must be set")
	}
	if c.InitialSize <= 0 {
		return fmt.Errorf("config: InitialSize must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("config: Workers must be positive")
	}
	if c.SyncMode != "strict" && c.SyncMode != "async" {
		return fmt.Errorf("config: SyncMode must be %q or %q, got %q", "strict", "async", c.SyncMode)
	}
	return nil
}

// Strict reports whether the store should fsync/msync after every
// commit rather than relying on OS writeback.
func (c Config) Strict() bool { return c.SyncMode == "strict" }
