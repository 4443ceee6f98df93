package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"promptmatrix/internal/domain"
)

// Store persists conversation history as a JSON message array. An empty
// path disables persistence; Load returns nothing and Save is a no-op.
type Store struct {
	path string
}

// NewStore creates a store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted history. A missing or disabled file yields an
// empty history, not an error.
func (s *Store) Load() ([]domain.Message, error) {
	if s.path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	var msgs []domain.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}
	return msgs, nil
}

// Save writes the full history, replacing the previous contents. The file
// is rewritten atomically via a temp file rename.
func (s *Store) Save(msgs []domain.Message) error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename history: %w", err)
	}
	return nil
}
