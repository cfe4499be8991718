package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// State is the persisted shape of the ledger: positions are keyed by the
// canonical "TICKER.VENUE" string, order and trade logs are stored
// newest first exactly as held in memory.
type State struct {
	Cash      float64             `json:"cash"`
	Positions map[string]Position `json:"positions"`
	Orders    []Order             `json:"orders"`
	Trades    []Trade             `json:"trades"`
}

// Store persists ledger state between runs.
type Store interface {
	// Load returns the stored state, or ok=false when none exists yet.
	Load() (State, bool, error)
	Save(State) error
}

// FileStore keeps the ledger state in a single JSON file, written via a
// temp file and rename so a crash mid-write never leaves a torn
// snapshot behind.
type FileStore struct {
	path string
}

// NewFileStore creates the parent directory if needed.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("state path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Load() (State, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("read state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, false, fmt.Errorf("decode state: %w", err)
	}
	if st.Positions == nil {
		st.Positions = make(map[string]Position)
	}
	return st, true, nil
}

func (s *FileStore) Save(st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}
