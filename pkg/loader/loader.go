// Package loader provides Loader implementations for jinja.Environment:
// a filesystem-backed loader with fsnotify-driven uptodate probing, a
// fixed in-memory map loader, and a loader that tries several in order.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileSystemLoader reads templates from one or more root directories,
// joining the template name onto each root in turn (first match wins).
// Its uptodate probe is driven by an fsnotify.Watcher the way scriggo's
// templateFS watches files on demand: a template is only watched once it
// has actually been loaded, not eagerly for the whole tree.
type FileSystemLoader struct {
	roots   []string
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	changed map[string]bool
}

// NewFileSystemLoader builds a loader rooted at the given directories,
// searched in order. If the watcher cannot be created (e.g. inotify limits
// exhausted), uptodate always reports stale so templates are re-read every
// render rather than silently caching forever.
func NewFileSystemLoader(roots ...string) *FileSystemLoader {
	l := &FileSystemLoader{roots: roots, changed: map[string]bool{}}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return l
	}
	l.watcher = w
	go l.watch()
	return l
}

func (l *FileSystemLoader) watch() {
	for {
		select {
		case ev, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				l.mu.Lock()
				l.changed[ev.Name] = true
				l.mu.Unlock()
			}
		case _, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (l *FileSystemLoader) Load(name string) (string, func() bool, error) {
	for _, root := range l.roots {
		path := filepath.Join(root, filepath.FromSlash(name))
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if l.watcher != nil {
			l.watcher.Add(path)
		}
		return string(data), l.uptodateFor(path), nil
	}
	return "", nil, &notFoundError{name}
}

func (l *FileSystemLoader) uptodateFor(path string) func() bool {
	return func() bool {
		if l.watcher == nil {
			return false
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		return !l.changed[path]
	}
}

// Close stops the underlying filesystem watcher.
func (l *FileSystemLoader) Close() error {
	if l.watcher == nil {
		return nil
	}
	return l.watcher.Close()
}

type notFoundError struct{ name string }

func (e *notFoundError) Error() string { return fmt.Sprintf("template %q not found", e.name) }

// DictLoader serves templates from a fixed in-memory map, always uptodate.
// Useful for tests and for embedding templates via go:embed.
type DictLoader struct {
	Templates map[string]string
}

func NewDictLoader(templates map[string]string) *DictLoader {
	return &DictLoader{Templates: templates}
}

func (l *DictLoader) Load(name string) (string, func() bool, error) {
	src, ok := l.Templates[name]
	if !ok {
		return "", nil, &notFoundError{name}
	}
	return src, func() bool { return true }, nil
}

// ChainLoader tries each underlying loader in order, returning the first
// successful load, the way Jinja2's ChoiceLoader does.
type ChainLoader struct {
	Loaders []interface {
		Load(name string) (string, func() bool, error)
	}
}

func NewChainLoader(loaders ...interface {
	Load(name string) (string, func() bool, error)
}) *ChainLoader {
	return &ChainLoader{Loaders: loaders}
}

func (l *ChainLoader) Load(name string) (string, func() bool, error) {
	var lastErr error
	for _, sub := range l.Loaders {
		src, uptodate, err := sub.Load(name)
		if err == nil {
			return src, uptodate, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = &notFoundError{name}
	}
	return "", nil, lastErr
}

// normalizeName turns backslash separators into slashes so template names
// stay loader-agnostic regardless of the host OS's path separator.
func normalizeName(name string) string {
	return strings.ReplaceAll(name, "\\", "/")
}
