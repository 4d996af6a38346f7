package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// State is the single persisted blob: full settings plus the bounded
// history. The in-flight current recording is never persisted.
type State struct {
	Settings   Settings    `json:"settings"`
	Recordings []Recording `json:"recordings"`
}

// LoadState reads the blob from path. A missing file yields defaults.
// Restored history is deduplicated by id, first occurrence kept.
func LoadState(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return State{Settings: DefaultSettings()}, nil
		}
		return State{}, err
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	st.Settings.Normalize()
	st.Recordings = dedupeByID(st.Recordings)
	if len(st.Recordings) > MaxRecordings {
		st.Recordings = st.Recordings[:MaxRecordings]
	}
	return st, nil
}

// SaveState writes the blob as indented JSON, creating parent directories.
func SaveState(path string, st State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func dedupeByID(recordings []Recording) []Recording {
	seen := make(map[string]struct{}, len(recordings))
	out := recordings[:0:0]
	for _, r := range recordings {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}
