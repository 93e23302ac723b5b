package catalogfile

import (
	"context"
	"errors"
	"log"
	"path/filepath"
	"sync"
	"time"

	"datamap-cloud/internal/observability/metrics"
	schema "datamap-cloud/internal/schema/domain"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 500 * time.Millisecond

// Source serves the canonical field catalog from the built-in document or
// an override file. The override file can be watched for changes.
type Source struct {
	path   string
	logger *log.Logger

	mu      sync.RWMutex
	catalog schema.Catalog
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSource loads the catalog. An empty path uses the built-in catalog.
func NewSource(path string, logger *log.Logger) (*Source, error) {
	s := &Source{path: path, logger: logger}
	var (
		catalog schema.Catalog
		err     error
	)
	if path == "" {
		catalog, err = Default()
	} else {
		catalog, err = LoadFile(path)
	}
	if err != nil {
		return nil, err
	}
	s.catalog = catalog
	return s, nil
}

// CanonicalFields returns the current catalog.
func (s *Source) CanonicalFields(ctx context.Context) ([]schema.CanonicalField, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]schema.CanonicalField(nil), s.catalog...), nil
}

// Reload re-reads the override file. A broken file keeps the last good catalog.
func (s *Source) Reload() error {
	if s.path == "" {
		return nil
	}
	catalog, err := LoadFile(s.path)
	if err != nil {
		metrics.IncCatalogReload(metrics.ResultError)
		return err
	}
	s.mu.Lock()
	s.catalog = catalog
	s.mu.Unlock()
	metrics.IncCatalogReload(metrics.ResultSuccess)
	return nil
}

// Watch reloads the catalog whenever the override file is written.
func (s *Source) Watch(ctx context.Context) error {
	if s.path == "" {
		return errors.New("catalog: nothing to watch without a catalog file")
	}
	absPath, err := filepath.Abs(s.path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		_ = watcher.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	if s.watcher != nil {
		s.mu.Unlock()
		cancel()
		_ = watcher.Close()
		return errors.New("catalog: already watching")
	}
	s.watcher = watcher
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				name, _ := filepath.Abs(event.Name)
				if name != absPath {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(reloadDebounce, func() {
					if err := s.Reload(); err != nil {
						s.logf("catalog watcher: reload %s failed: %v", absPath, err)
						return
					}
					s.logf("catalog watcher: reloaded %s", absPath)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logf("catalog watcher: error: %v", err)
			}
		}
	}()
	return nil
}

// Close stops watching.
func (s *Source) Close() error {
	s.mu.Lock()
	watcher, cancel, done := s.watcher, s.cancel, s.done
	s.watcher, s.cancel, s.done = nil, nil, nil
	s.mu.Unlock()
	if watcher == nil {
		return nil
	}
	cancel()
	err := watcher.Close()
	<-done
	return err
}

func (s *Source) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
