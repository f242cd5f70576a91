// Package config loads the tuning knobs shared by the checkpointer,
// its database overlay, and the interval window (SPEC_FULL §A.3).
// Grounded on internal/config/config.go in the teacher: a
// package-level Keys struct seeded with defaults, optionally
// overwritten by a JSON file decoded with DisallowUnknownFields so a
// typo in the config surfaces immediately instead of being silently
// ignored.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Keys holds every tunable this repository exposes. Defaults are
// sized for the toy cmd/mapckpt simulator, not production workloads.
var Keys = struct {
	// SnapshotThreshold is the checkpointer's snapshot-promotion
	// threshold T (spec §4.3); 1 makes every checkpoint a snapshot.
	SnapshotThreshold uint32 `json:"snapshot-threshold"`

	// ChainCleanupInterval is how often internal/maintenance sweeps
	// tombstoned checkpoints for chain-cleanup.
	ChainCleanupInterval time.Duration `json:"chain-cleanup-interval"`

	// CacheWindowCount bounds how many closed checkpoint windows the
	// database overlay keeps in memory before the oldest complete one
	// is evicted (spec §4.4).
	CacheWindowCount int `json:"cache-window-count"`

	// DBDriver and DSN select and locate the database overlay's
	// backing store. DBDriver is currently always "sqlite3"; DSN is a
	// filesystem path for that driver.
	DBDriver string `json:"db-driver"`
	DSN      string `json:"dsn"`

	// OffsetL/OffsetR are the interval window's buffered half-widths
	// around the active cycle; LoadL/LoadR are the hysteresis bands
	// that trigger a slide before the buffer is exhausted (spec §4.6).
	OffsetL uint64 `json:"offset-l"`
	OffsetR uint64 `json:"offset-r"`
	LoadL   uint64 `json:"load-l"`
	LoadR   uint64 `json:"load-r"`

	// LongEventCheck is the extra span read past window_R to catch
	// long-lived intervals that start before the window (spec §3, §9).
	LongEventCheck uint64 `json:"long-event-check"`

	// PollInterval is the background worker's idle sleep between
	// maintenance passes (spec §4.6).
	PollInterval time.Duration `json:"poll-interval"`
}{
	SnapshotThreshold:     16,
	ChainCleanupInterval:  5 * time.Second,
	CacheWindowCount:      8,
	DBDriver:              "sqlite3",
	DSN:                   "./var/checkpoints.db",
	OffsetL:               5_000_000,
	OffsetR:               5_000_000,
	LoadL:                 4_000_000,
	LoadR:                 4_000_000,
	LongEventCheck:        1_000,
	PollInterval:          10 * time.Millisecond,
}

// Init overwrites Keys with the contents of path, if it exists. A
// missing file is not an error: the defaults above stand. Unknown
// fields in an existing file are rejected rather than silently
// dropped, matching the teacher's DisallowUnknownFields use.
func Init(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&Keys); err != nil {
		return fmt.Errorf("config: decoding %s: %w", path, err)
	}
	return nil
}
