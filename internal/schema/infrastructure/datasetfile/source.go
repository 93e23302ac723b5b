package datasetfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	schema "datamap-cloud/internal/schema/domain"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// Entry locates the file behind one dataset id. URL may be a local path or
// any location afs can download (file://, s3://, gs://, http://).
type Entry struct {
	ID    int64  `yaml:"id"`
	Name  string `yaml:"name"`
	URL   string `yaml:"url"`
	Sheet string `yaml:"sheet"`
}

type manifest struct {
	Datasets []Entry `yaml:"datasets"`
}

// LoadManifest reads dataset entries from a YAML file. Relative locations
// resolve against the manifest directory.
func LoadManifest(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset manifest: read %s: %w", path, err)
	}
	var doc manifest
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("dataset manifest: decode: %w", err)
	}
	baseDir := filepath.Dir(path)
	for i := range doc.Datasets {
		doc.Datasets[i].URL = resolveLocation(baseDir, doc.Datasets[i].URL)
	}
	return doc.Datasets, nil
}

func resolveLocation(baseDir, location string) string {
	if location == "" || strings.Contains(location, "://") {
		return location
	}
	if !filepath.IsAbs(location) {
		location = filepath.Join(baseDir, location)
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		return location
	}
	return "file://" + filepath.ToSlash(abs)
}

// Source resolves dataset columns by downloading the dataset file and
// reading its header. Headers are cached per dataset id.
type Source struct {
	fs afs.Service

	mu      sync.RWMutex
	entries map[int64]Entry
	cache   map[int64]schema.Columns
}

// NewSource constructs a source over the given entries.
func NewSource(entries []Entry) (*Source, error) {
	s := &Source{
		fs:      afs.New(),
		entries: make(map[int64]Entry, len(entries)),
		cache:   make(map[int64]schema.Columns),
	}
	for _, entry := range entries {
		if err := s.Register(entry); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Register adds or replaces an entry. Local paths are accepted.
func (s *Source) Register(entry Entry) error {
	if entry.ID <= 0 {
		return errors.New("dataset source: invalid dataset id")
	}
	if entry.URL == "" {
		return fmt.Errorf("dataset source: dataset %d has no url", entry.ID)
	}
	entry.URL = resolveLocation("", entry.URL)
	s.mu.Lock()
	s.entries[entry.ID] = entry
	delete(s.cache, entry.ID)
	s.mu.Unlock()
	return nil
}

// Entry returns the registered entry of a dataset.
func (s *Source) Entry(datasetID int64) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[datasetID]
	return entry, ok
}

// DatasetColumns returns the header columns of a dataset.
func (s *Source) DatasetColumns(ctx context.Context, datasetID int64) (schema.Columns, error) {
	s.mu.RLock()
	entry, ok := s.entries[datasetID]
	cached, hit := s.cache[datasetID]
	s.mu.RUnlock()
	if !ok {
		return nil, schema.ErrDatasetNotFound
	}
	if hit {
		return append(schema.Columns(nil), cached...), nil
	}

	data, err := s.fs.DownloadWithURL(ctx, entry.URL)
	if err != nil {
		return nil, fmt.Errorf("dataset source: download %s: %w", entry.URL, err)
	}
	header, err := ReadHeader(entry.URL, data, entry.Sheet)
	if err != nil {
		return nil, err
	}
	columns := schema.ColumnsFromHeader(header)

	s.mu.Lock()
	if current, ok := s.entries[datasetID]; ok && current.URL == entry.URL {
		s.cache[datasetID] = columns
	}
	s.mu.Unlock()
	return append(schema.Columns(nil), columns...), nil
}
