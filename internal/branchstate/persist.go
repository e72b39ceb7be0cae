// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package branchstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

func statePath(dir, sessionID string) string {
	return filepath.Join(dir, sessionID+".json")
}

// loadState reads and unmarshals a session's state file. Callers check
// os.IsNotExist(err) to distinguish "no such session" from a real error.
func loadState(path string) (*BrainstormState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var st BrainstormState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", path, err)
	}
	return &st, nil
}

// saveState atomically writes a session's state file using tmp+rename so
// a crash mid-write cannot leave a torn file.
func saveState(path string, st *BrainstormState) error {
	st.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write tmp state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename tmp state: %w", err)
	}
	return nil
}
