package roster

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
)

var ErrSnapshotMissing = errors.New("roster snapshot not found")

type Snapshot struct {
	GeneratedAt time.Time `json:"generated_at"`
	Source      string    `json:"source"`
	Players     []Entry   `json:"players"`
}

type SnapshotStatus struct {
	Path        string     `json:"path"`
	Exists      bool       `json:"exists"`
	GeneratedAt *time.Time `json:"generated_at,omitempty"`
	PlayerCount int        `json:"player_count"`
	AliasCount  int        `json:"alias_count"`
}

// WriteSnapshot writes the file through a temp file and rename so readers
// never see a partial snapshot.
func WriteSnapshot(path string, snap Snapshot) error {
	if snap.GeneratedAt.IsZero() {
		snap.GeneratedAt = time.Now().UTC()
	}
	if snap.Players == nil {
		snap.Players = []Entry{}
	}
	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(payload, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadSnapshot accepts either the object form or a bare list of entries.
func ReadSnapshot(path string) (Snapshot, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSnapshotMissing, path)
	}
	if err != nil {
		return Snapshot{}, err
	}
	return ParseSnapshot(raw)
}

func ParseSnapshot(raw []byte) (Snapshot, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var players []Entry
		if err := json.Unmarshal(trimmed, &players); err != nil {
			return Snapshot{}, fmt.Errorf("decode roster list: %w", err)
		}
		return Snapshot{Players: players}, nil
	}
	var snap Snapshot
	if err := json.Unmarshal(trimmed, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode roster snapshot: %w", err)
	}
	return snap, nil
}

func Status(path string) (SnapshotStatus, error) {
	status := SnapshotStatus{Path: path}
	snap, err := ReadSnapshot(path)
	if errors.Is(err, ErrSnapshotMissing) {
		return status, nil
	}
	if err != nil {
		return status, err
	}
	status.Exists = true
	if !snap.GeneratedAt.IsZero() {
		t := snap.GeneratedAt
		status.GeneratedAt = &t
	}
	status.PlayerCount = len(snap.Players)
	for _, p := range snap.Players {
		status.AliasCount += len(p.Aliases)
	}
	return status, nil
}
