// Package audit implements audit mode's persisted state: a time-boxed
// toggle with an optional reason, stored in the project's index directory.
// Search, in the CLI and the MCP server, does not read this state; notes
// are applied whether or not audit mode is on.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// stateFileName is the audit state file's name within a project's index
// directory.
const stateFileName = "audit.json"

// Mode is audit mode's persisted state. A zero ExpiresAt means no expiry.
type Mode struct {
	Enabled   bool      `json:"enabled"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// IsActive reports whether audit mode is currently on, accounting for
// expiry: an enabled mode whose expiry has passed is treated as off.
func (m Mode) IsActive() bool {
	if !m.Enabled {
		return false
	}
	if !m.ExpiresAt.IsZero() && time.Now().After(m.ExpiresAt) {
		return false
	}
	return true
}

// Remaining returns how long audit mode has left, or zero if it isn't
// active or has no expiry.
func (m Mode) Remaining() time.Duration {
	if !m.IsActive() || m.ExpiresAt.IsZero() {
		return 0
	}
	return time.Until(m.ExpiresAt)
}

// Enable turns audit mode on for the given duration and reason.
func Enable(dir string, ttl time.Duration, reason string) (Mode, error) {
	m := Mode{Enabled: true, ExpiresAt: time.Now().Add(ttl), Reason: reason}
	return m, Save(dir, m)
}

// Disable turns audit mode off.
func Disable(dir string) (Mode, error) {
	m := Mode{Enabled: false}
	return m, Save(dir, m)
}

// Load reads the persisted audit state from dir. A missing file is not an
// error; it just means audit mode has never been toggled on for this
// project, so the zero Mode (inactive) is returned.
func Load(dir string) (Mode, error) {
	data, err := os.ReadFile(filepath.Join(dir, stateFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Mode{}, nil
		}
		return Mode{}, fmt.Errorf("read audit state: %w", err)
	}
	var m Mode
	if err := json.Unmarshal(data, &m); err != nil {
		return Mode{}, fmt.Errorf("parse audit state: %w", err)
	}
	return m, nil
}

// Save persists m to dir, creating the directory if needed.
func Save(dir string, m Mode) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal audit state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, stateFileName), data, 0o644); err != nil {
		return fmt.Errorf("write audit state: %w", err)
	}
	return nil
}
