// Package theme resolves the theme selector carried by a launch request into
// the concrete presentation attributes handed to surfaces.
//
// Themes are JSON files in a directory:
//
//	{"id": "alert.dark", "parent": "alert.default", "attributes": {"background": "#000"}}
//
// Attributes are inherited from the parent chain. Unknown or empty selectors
// resolve to DefaultID.
package theme

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultID is the theme used when a session names none or an unknown one.
const DefaultID = "alert.default"

const defaultCacheSize = 128

// Theme is a named set of presentation attributes.
type Theme struct {
	ID         string            `json:"id"`
	Parent     string            `json:"parent,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Resolver maps a theme selector to a theme.
type Resolver interface {
	Resolve(id string) Theme
}

// Catalog is a Resolver backed by registered themes and, optionally, a
// directory of theme files that can be watched for changes.
type Catalog struct {
	dir       string
	log       *slog.Logger
	onReload  func()
	cacheSize int

	mu       sync.RWMutex
	static   map[string]Theme
	files    map[string]Theme
	resolved *lru.Cache[string, Theme]
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithDir sets the directory theme files are loaded from.
func WithDir(dir string) Option {
	return func(c *Catalog) { c.dir = dir }
}

// WithLogger sets the logger used by the catalog.
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.log = l
		}
	}
}

// WithTheme registers a theme that is not backed by a file.
func WithTheme(t Theme) Option {
	return func(c *Catalog) { c.static[t.ID] = t }
}

// WithCacheSize bounds how many resolved themes are kept.
func WithCacheSize(n int) Option {
	return func(c *Catalog) { c.cacheSize = n }
}

// WithOnReload registers a callback run after every successful reload.
func WithOnReload(fn func()) Option {
	return func(c *Catalog) { c.onReload = fn }
}

// NewCatalog returns a catalog holding the built-in default theme plus any
// themes registered through options. Call Load to read the directory.
func NewCatalog(opts ...Option) *Catalog {
	c := &Catalog{
		log:       slog.New(slog.DiscardHandler),
		cacheSize: defaultCacheSize,
		static:    map[string]Theme{DefaultID: {ID: DefaultID}},
		files:     map[string]Theme{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cacheSize < 1 {
		c.cacheSize = defaultCacheSize
	}
	// lru.New only fails for non-positive sizes.
	c.resolved, _ = lru.New[string, Theme](c.cacheSize)
	return c
}

// Register adds or replaces a theme.
func (c *Catalog) Register(t Theme) {
	c.mu.Lock()
	c.static[t.ID] = t
	c.resolved.Purge()
	c.mu.Unlock()
}

// Load reads every *.json file in the configured directory, replacing the
// themes loaded previously. Without a directory Load does nothing.
func (c *Catalog) Load() error {
	if c.dir == "" {
		return nil
	}
	paths, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return fmt.Errorf("theme: list %s: %w", c.dir, err)
	}
	loaded := make(map[string]Theme, len(paths))
	for _, p := range paths {
		t, err := readTheme(p)
		if err != nil {
			return err
		}
		loaded[t.ID] = t
	}

	c.mu.Lock()
	c.files = loaded
	c.resolved.Purge()
	c.mu.Unlock()

	c.log.Debug("theme.load", slog.String("dir", c.dir), slog.Int("count", len(loaded)))
	if c.onReload != nil {
		c.onReload()
	}
	return nil
}

func readTheme(path string) (Theme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Theme{}, fmt.Errorf("theme: read %s: %w", path, err)
	}
	var t Theme
	if err := json.Unmarshal(data, &t); err != nil {
		return Theme{}, fmt.Errorf("theme: decode %s: %w", path, err)
	}
	if t.ID == "" {
		t.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return t, nil
}

func (c *Catalog) lookup(id string) (Theme, bool) {
	if t, ok := c.files[id]; ok {
		return t, true
	}
	t, ok := c.static[id]
	return t, ok
}

// Has reports whether id names a known theme.
func (c *Catalog) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.lookup(id)
	return ok
}

// Resolve returns the theme for id with inherited attributes flattened.
// Files take precedence over registered themes with the same ID.
func (c *Catalog) Resolve(id string) Theme {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if t, ok := c.resolved.Get(id); ok {
		return t.clone()
	}
	t := c.flatten(id)
	c.resolved.Add(id, t)
	return t.clone()
}

func (c *Catalog) flatten(id string) Theme {
	t, ok := c.lookup(id)
	if !ok {
		t, _ = c.lookup(DefaultID)
	}

	attrs := make(map[string]string)
	seen := map[string]bool{}
	for cur, ok := t, true; ok && !seen[cur.ID]; cur, ok = c.lookup(cur.Parent) {
		seen[cur.ID] = true
		for k, v := range cur.Attributes {
			if _, set := attrs[k]; !set {
				attrs[k] = v
			}
		}
		if cur.Parent == "" {
			break
		}
	}
	return Theme{ID: t.ID, Parent: t.Parent, Attributes: attrs}
}

func (t Theme) clone() Theme {
	t.Attributes = maps.Clone(t.Attributes)
	return t
}

// Cached reports how many resolved themes are currently cached.
func (c *Catalog) Cached() int { return c.resolved.Len() }

// Watch reloads the catalog whenever the directory changes, until ctx ends.
// A failed reload keeps the previous themes.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.dir == "" {
		<-ctx.Done()
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("theme: watcher: %w", err)
	}
	defer func() {
		// Best-effort watcher close; no actionable error handling path.
		_ = w.Close()
	}()
	if err := w.Add(c.dir); err != nil {
		return fmt.Errorf("theme: watch %s: %w", c.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(ev.Name) != ".json" {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := c.Load(); err != nil {
				c.log.Warn("theme.reload.err", slog.String("file", ev.Name), slog.String("err", err.Error()))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.log.Debug("theme.watch.err", slog.String("err", err.Error()))
		}
	}
}

var _ Resolver = (*Catalog)(nil)
