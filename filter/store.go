package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cyclopcam/logs"
	"github.com/swdee/go-visionedge"
)

var (
	// ErrNotFound is returned for a filter name that does not exist
	ErrNotFound = errors.New("filter not found")
	// ErrDefaultFilter is returned when deleting the default filter
	ErrDefaultFilter = errors.New("cannot delete the default filter")
)

// Store persists named filters in a JSON file keyed by filter name
type Store struct {
	path string
	log  logs.Log
	mu   sync.Mutex
}

// NewStore returns a Store backed by the file at path
func NewStore(path string, log logs.Log) *Store {
	return &Store{
		path: path,
		log:  log,
	}
}

// Path returns the file backing the store
func (s *Store) Path() string {
	return s.path
}

// Load reads all filters.  A missing file yields the default filter only
// and a malformed file yields no filters
func (s *Store) Load() map[string]Config {

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load()
}

func (s *Store) load() map[string]Config {

	data, err := os.ReadFile(s.path)

	if errors.Is(err, os.ErrNotExist) {
		return map[string]Config{DefaultName: Default()}
	}

	if err != nil {
		s.log.Warnf("Unable to read filters file %v: %v", s.path, err)
		return map[string]Config{}
	}

	raw := make(map[string]Config)

	if err := json.Unmarshal(data, &raw); err != nil {
		s.log.Warnf("Ignoring malformed filters file %v: %v", s.path, err)
		return map[string]Config{}
	}

	for name, cfg := range raw {
		if cfg.Name == "" {
			cfg.Name = name
			raw[name] = cfg
		}
	}

	return raw
}

// Names returns the sorted filter names
func (s *Store) Names() []string {

	filters := s.Load()
	names := make([]string, 0, len(filters))

	for name := range filters {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Get returns the named filter
func (s *Store) Get(name string) (Config, error) {

	cfg, ok := s.Load()[name]

	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	return cfg, nil
}

// Put creates or replaces a filter
func (s *Store) Put(cfg Config) error {

	if cfg.Name == "" {
		return fmt.Errorf("%w: filter name is empty", visionedge.ErrInvalidInput)
	}

	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return fmt.Errorf("%w: min confidence %v outside of [0,1]",
			visionedge.ErrInvalidInput, cfg.MinConfidence)
	}

	if cfg.IncludeClasses == nil {
		cfg.IncludeClasses = []string{}
	}

	if cfg.ExcludeClasses == nil {
		cfg.ExcludeClasses = []string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	filters := s.load()
	filters[cfg.Name] = cfg

	return s.save(filters)
}

// Delete removes a filter, the default filter can not be removed
func (s *Store) Delete(name string) error {

	if name == DefaultName {
		return ErrDefaultFilter
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	filters := s.load()

	if _, ok := filters[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	delete(filters, name)

	return s.save(filters)
}

// save writes the filters via a temporary file so readers never see a
// partial file
func (s *Store) save(filters map[string]Config) error {

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("error creating filters directory: %w", err)
	}

	data, err := json.MarshalIndent(filters, "", "  ")

	if err != nil {
		return fmt.Errorf("error encoding filters: %w", err)
	}

	tmp := s.path + ".tmp"

	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("error writing filters: %w", err)
	}

	return os.Rename(tmp, s.path)
}
