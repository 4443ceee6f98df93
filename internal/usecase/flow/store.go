package flow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"promptmatrix/internal/domain"
)

// FileStore persists flow runs as one JSON file per run. ULID run ids sort
// lexicographically by creation time, so filename order is run order.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir. An empty dir disables
// persistence: saves are discarded and reads find nothing.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

var _ domain.FlowRunStore = (*FileStore)(nil)

// SaveRun writes the run record, replacing any previous record with the
// same id.
func (s *FileStore) SaveRun(run domain.FlowRun) error {
	if run.ID == "" {
		return fmt.Errorf("save flow run: %w: empty run id", domain.ErrInvalidInput)
	}
	if s.dir == "" {
		return nil
	}
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal flow run: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("create flow run dir: %w", err)
	}
	path := s.runPath(run.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write flow run: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename flow run: %w", err)
	}
	return nil
}

// GetRun loads one run by id.
func (s *FileStore) GetRun(id string) (*domain.FlowRun, error) {
	if s.dir == "" {
		return nil, fmt.Errorf("flow run %q not found", id)
	}
	data, err := os.ReadFile(s.runPath(id))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("flow run %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("read flow run: %w", err)
	}
	var run domain.FlowRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("parse flow run: %w", err)
	}
	return &run, nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
func (s *FileStore) ListRuns(limit int) ([]domain.FlowRun, error) {
	if s.dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list flow runs: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	var runs []domain.FlowRun
	for _, name := range names {
		if limit > 0 && len(runs) >= limit {
			break
		}
		run, err := s.GetRun(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

func (s *FileStore) runPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}
