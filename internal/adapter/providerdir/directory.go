package providerdir

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"promptmatrix/internal/domain"
)

// fileFormat is the on-disk YAML shape.
type fileFormat struct {
	Providers []domain.CustomProvider `yaml:"providers"`
}

// Directory is a YAML file-backed implementation of
// domain.ProviderDirectory. Mutations are persisted immediately; the file is
// rewritten atomically via a temp file rename.
type Directory struct {
	mu        sync.RWMutex
	path      string
	providers map[string]domain.CustomProvider
	logger    *slog.Logger
}

// Open loads the directory at path. A missing file yields an empty
// directory; the file is created on first mutation.
func Open(path string, logger *slog.Logger) (*Directory, error) {
	d := &Directory{
		path:      path,
		providers: make(map[string]domain.CustomProvider),
		logger:    logger,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read provider directory: %w", err)
	}

	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("parse provider directory: %w", err)
	}
	for _, p := range ff.Providers {
		if p.ID == "" {
			logger.Warn("skipping custom provider with empty id", "name", p.Name)
			continue
		}
		d.providers[p.ID] = p
	}
	return d, nil
}

// Get implements domain.ProviderDirectory.
func (d *Directory) Get(id string) (*domain.CustomProvider, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.providers[id]
	if !ok {
		return nil, false
	}
	return &p, true
}

// List implements domain.ProviderDirectory. Providers are ordered by
// creation time, oldest first, id as tie-break.
func (d *Directory) List() []domain.CustomProvider {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]domain.CustomProvider, 0, len(d.providers))
	for _, p := range d.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Add inserts or replaces a provider and persists the directory.
func (d *Directory) Add(p domain.CustomProvider) error {
	if p.ID == "" {
		return fmt.Errorf("%w: provider id must not be empty", domain.ErrInvalidInput)
	}
	if p.BaseURL == "" {
		return fmt.Errorf("%w: provider base URL must not be empty", domain.ErrInvalidInput)
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().Unix()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.providers[p.ID] = p
	return d.persistLocked()
}

// Remove deletes a provider by id and persists the directory. Removing an
// unknown id is a no-op.
func (d *Directory) Remove(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.providers[id]; !ok {
		return nil
	}
	delete(d.providers, id)
	return d.persistLocked()
}

func (d *Directory) persistLocked() error {
	ff := fileFormat{Providers: make([]domain.CustomProvider, 0, len(d.providers))}
	for _, p := range d.providers {
		ff.Providers = append(ff.Providers, p)
	}
	sort.Slice(ff.Providers, func(i, j int) bool { return ff.Providers[i].ID < ff.Providers[j].ID })

	data, err := yaml.Marshal(ff)
	if err != nil {
		return fmt.Errorf("marshal provider directory: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(d.path), 0700); err != nil {
		return fmt.Errorf("create provider directory dir: %w", err)
	}
	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write provider directory: %w", err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		return fmt.Errorf("rename provider directory: %w", err)
	}
	return nil
}

var _ domain.ProviderDirectory = (*Directory)(nil)
