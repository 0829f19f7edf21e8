package sim

import (
	"fmt"
	"os"
	"strings"
)

// KillSwitchStore persists the portfolio-level kill-switch boolean across
// restarts.
type KillSwitchStore interface {
	Load() (bool, error)
	Store(bool) error
}

// FileKillSwitchStore keeps the flag in a single-line file next to the
// journal database.
type FileKillSwitchStore struct {
	Path string
}

func (s FileKillSwitchStore) Load() (bool, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load kill switch: %w", err)
	}
	return strings.TrimSpace(string(data)) == "1", nil
}

func (s FileKillSwitchStore) Store(engaged bool) error {
	v := "0"
	if engaged {
		v = "1"
	}
	if err := os.WriteFile(s.Path, []byte(v+"\n"), 0o644); err != nil {
		return fmt.Errorf("store kill switch: %w", err)
	}
	return nil
}

// MemKillSwitchStore is an in-process store for tests.
type MemKillSwitchStore struct {
	Engaged bool
}

func (s *MemKillSwitchStore) Load() (bool, error)  { return s.Engaged, nil }
func (s *MemKillSwitchStore) Store(v bool) error   { s.Engaged = v; return nil }
