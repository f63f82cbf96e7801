package statutory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/statutory"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// FileSource serves rule sets from a directory of YAML documents. Tables are
// validated when loaded; a reload that fails validation keeps the previous
// tables in place.
type FileSource struct {
	dir string

	mu       sync.RWMutex
	versions statutory.Versions
}

// NewFileSource loads every *.yaml / *.yml file under dir.
func NewFileSource(dir string) (*FileSource, error) {
	s := &FileSource{dir: dir}
	versions, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	s.versions = versions
	return s, nil
}

// LoadDir parses and validates all table documents in dir.
func LoadDir(dir string) (statutory.Versions, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return statutory.Versions{}, fmt.Errorf("%w: read %s: %v", statutory.ErrConfiguration, dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var parts []statutory.Versions
	for _, name := range names {
		v, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return statutory.Versions{}, err
		}
		parts = append(parts, v)
	}

	merged := Merge(parts...)
	if err := merged.Validate(); err != nil {
		return statutory.Versions{}, err
	}
	return merged, nil
}

func LoadFile(path string) (statutory.Versions, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return statutory.Versions{}, fmt.Errorf("%w: read %s: %v", statutory.ErrConfiguration, path, err)
	}
	var doc TableDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return statutory.Versions{}, fmt.Errorf("%w: parse %s: %v", statutory.ErrConfiguration, path, err)
	}
	return doc.Versions()
}

func (s *FileSource) RuleSet(_ context.Context, effective time.Time) (statutory.RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions.At(effective)
}

// Reload re-reads the directory and swaps the tables in if they validate.
func (s *FileSource) Reload() error {
	versions, err := LoadDir(s.dir)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.versions = versions
	s.mu.Unlock()
	return nil
}

// Watch reloads the tables whenever a file in the directory is written or
// replaced. It runs until ctx is cancelled.
func (s *FileSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return err
	}

	slog.Info("Watching statutory tables", "dir", s.dir)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := s.Reload(); err != nil {
				slog.Error("Statutory table reload failed, keeping previous tables", "dir", s.dir, "error", err)
				continue
			}
			slog.Info("Statutory tables reloaded", "dir", s.dir, "file", event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("Statutory table watcher error", "error", err)
		}
	}
}
