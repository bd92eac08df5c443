package dbcollection

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/AvengerBruce000/dbcollection/loader"
)

// DefaultTask selects the "default" task of a dataset, or its first task
// when it has no task of that name.
const DefaultTask = "default"

// Catalog records where the containers of every dataset live.
type Catalog struct {
	Datasets map[string]CatalogEntry `json:"datasets"`
}

// CatalogEntry is one dataset: its data directory and the container path
// of each task.
type CatalogEntry struct {
	DataDir string            `json:"data_dir"`
	Tasks   map[string]string `json:"tasks"`
}

// Location is a resolved catalog lookup.
type Location struct {
	Name    string
	Task    string
	DataDir string
	Path    string
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{Datasets: map[string]CatalogEntry{}}
}

// LoadCatalog reads a catalog file. A missing file yields an empty catalog.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewCatalog(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	c := NewCatalog()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to decode catalog %s: %w", path, err)
	}
	if c.Datasets == nil {
		c.Datasets = map[string]CatalogEntry{}
	}
	return c, nil
}

// Save writes the catalog to path, creating its directory.
func (c *Catalog) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return nil
}

// Add registers the container of a dataset task. The data directory of
// an existing dataset is replaced.
func (c *Catalog) Add(name, task, dataDir, path string) error {
	if name == "" || task == "" {
		return errors.New("dataset name and task are required")
	}
	e, ok := c.Datasets[name]
	if !ok {
		e = CatalogEntry{Tasks: map[string]string{}}
	}
	if e.Tasks == nil {
		e.Tasks = map[string]string{}
	}
	e.DataDir = dataDir
	e.Tasks[task] = path
	c.Datasets[name] = e
	return nil
}

// Remove drops a task, or the whole dataset when task is empty.
func (c *Catalog) Remove(name, task string) {
	if task == "" {
		delete(c.Datasets, name)
		return
	}
	if e, ok := c.Datasets[name]; ok {
		delete(e.Tasks, task)
	}
}

// Names returns the sorted dataset names.
func (c *Catalog) Names() []string {
	return slices.Sorted(maps.Keys(c.Datasets))
}

// Lookup resolves a dataset task. An empty task means DefaultTask.
func (c *Catalog) Lookup(name, task string) (Location, error) {
	e, ok := c.Datasets[name]
	if !ok {
		return Location{}, &loader.KeyError{Kind: "dataset", Key: name}
	}
	if task == "" {
		task = DefaultTask
	}
	path, ok := e.Tasks[task]
	if !ok && task == DefaultTask && len(e.Tasks) > 0 {
		task = slices.Sorted(maps.Keys(e.Tasks))[0]
		path, ok = e.Tasks[task]
	}
	if !ok {
		return Location{}, &loader.KeyError{Kind: "task", Key: task}
	}
	return Location{Name: name, Task: task, DataDir: e.DataDir, Path: path}, nil
}
