package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// State is the small per-profile document persisted next to the
// profile: currently only the last runtime mode, restored at the next
// run start.
type State struct {
	LastRuntimeMode string `toml:"last_runtime_mode"`
}

// StatePath derives the state file location from the profile path.
func StatePath(profilePath string) string {
	ext := filepath.Ext(profilePath)
	return profilePath[:len(profilePath)-len(ext)] + ".state" + ext
}

// LoadState reads the persisted state. A missing file yields the zero
// state.
func LoadState(path string) (State, error) {
	var s State
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read state: %w", err)
	}
	if err := toml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse state %s: %w", path, err)
	}
	return s, nil
}

// SaveState writes the state atomically via a rename.
func SaveState(path string, s State) error {
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

// StartModeFor resolves the mode a run should start in: the persisted
// last runtime mode when it still exists in the profile, else the
// profile's start mode, else the first declared mode.
func (p *Profile) StartModeFor(s State) string {
	if s.LastRuntimeMode != "" {
		for _, m := range p.Modes {
			if m.Name == s.LastRuntimeMode {
				return s.LastRuntimeMode
			}
		}
	}
	if p.StartMode != "" {
		return p.StartMode
	}
	if len(p.Modes) > 0 {
		return p.Modes[0].Name
	}
	return ""
}
