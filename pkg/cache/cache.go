// Package cache persists facts observed while scanning skill directories so
// that unchanged SKILL.md files are neither re-read nor re-parsed. The cache
// is advisory: a miss is always safe, a hit must match the file on disk
// exactly, and anything suspicious (version mismatch, oversized or corrupt
// file) degrades to an empty cache rather than an error.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/robustio"

	"github.com/jingkaihe/skillctl/pkg/logger"
	skilltypes "github.com/jingkaihe/skillctl/pkg/types/skills"
)

const (
	// FormatVersion is bumped whenever the on-disk layout changes. Files
	// written with another version are discarded, never migrated.
	FormatVersion = 1
	// MaxContentHashLength bounds the content hash stored per entry
	MaxContentHashLength = 128
	// MaxFileSize is the size above which the cache file is ignored
	MaxFileSize int64 = 10 << 20
	// DefaultFileName is the cache file name inside the cache directory
	DefaultFileName = "scan-cache.json"
)

// Entry is what the cache remembers about one skill directory
type Entry struct {
	Path string `json:"-"`
	// ModTime is the header file modification time in Unix nanoseconds
	ModTime      int64              `json:"mtime"`
	Size         int64              `json:"size"`
	ContentHash  string             `json:"content_hash"`
	CachedAt     time.Time          `json:"cached_at"`
	SkillName    string             `json:"skill_name,omitempty"`
	IsValidSkill bool               `json:"is_valid_skill"`
	Header       *skilltypes.Header `json:"header,omitempty"`
	Error        string             `json:"error,omitempty"`
}

type cacheFile struct {
	Version int               `json:"version"`
	Entries map[string]*Entry `json:"entries"`
}

// Stats summarises the cache contents
type Stats struct {
	Path     string
	Entries  int
	Valid    int
	Invalid  int
	FileSize int64
}

// Cache maps skill directory paths to Entry records backed by a JSON file
type Cache struct {
	mu          sync.Mutex
	path        string
	maxFileSize int64
	now         func() time.Time

	loaded  bool
	entries map[string]*Entry
}

// Option configures a Cache
type Option func(*Cache)

// WithMaxFileSize overrides the size ceiling of the cache file
func WithMaxFileSize(size int64) Option {
	return func(c *Cache) {
		c.maxFileSize = size
	}
}

// WithClock overrides the time source used for CachedAt
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New returns a cache stored at path. Nothing is read until first use.
func New(path string, opts ...Option) *Cache {
	c := &Cache{
		path:        path,
		maxFileSize: MaxFileSize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the location of the cache file
func (c *Cache) Path() string {
	return c.path
}

// Get returns the entry for dir if, and only if, dir/SKILL.md still exists
// with exactly the modification time and size that were cached.
func (c *Cache) Get(dir string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.load()

	entry, ok := c.entries[dir]
	if !ok {
		return nil, false
	}

	info, err := os.Stat(filepath.Join(dir, skilltypes.HeaderFileName))
	if err != nil {
		return nil, false
	}
	if info.ModTime().UnixNano() != entry.ModTime || info.Size() != entry.Size {
		return nil, false
	}

	hit := *entry
	if entry.Header != nil {
		header := *entry.Header
		hit.Header = &header
	}
	return &hit, true
}

// Put inserts or replaces the entry for entry.Path and persists the cache
func (c *Cache) Put(entry Entry) error {
	if entry.Path == "" || !filepath.IsAbs(entry.Path) {
		return skilltypes.Validation(entry.Path, "cache entry path must be absolute")
	}
	if len(entry.ContentHash) > MaxContentHashLength {
		return skilltypes.Validation(entry.Path, fmt.Sprintf("content hash exceeds %d characters", MaxContentHashLength))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.load()

	if entry.CachedAt.IsZero() {
		entry.CachedAt = c.now()
	}
	if !entry.IsValidSkill {
		entry.SkillName = ""
		entry.Header = nil
	}
	previous, existed := c.entries[entry.Path]
	c.entries[entry.Path] = &entry

	if err := c.persist(); err != nil {
		if existed {
			c.entries[entry.Path] = previous
		} else {
			delete(c.entries, entry.Path)
		}
		return err
	}
	return nil
}

// Invalidate drops the entry for dir. Persistence failures are ignored.
func (c *Cache) Invalidate(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.load()

	if _, ok := c.entries[dir]; !ok {
		return
	}
	delete(c.entries, dir)
	if err := c.persist(); err != nil {
		logger.L.WithError(err).WithField("path", dir).Debug("failed to persist cache invalidation")
	}
}

// Clear drops every entry. Persistence failures are ignored.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.loaded = true
	c.entries = make(map[string]*Entry)
	if err := c.persist(); err != nil {
		logger.L.WithError(err).Debug("failed to persist cleared cache")
	}
}

// CleanStale removes entries whose directory no longer holds a SKILL.md file
// and returns how many were removed.
func (c *Cache) CleanStale() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.load()

	removed := 0
	for path := range c.entries {
		_, err := os.Stat(filepath.Join(path, skilltypes.HeaderFileName))
		if err != nil && os.IsNotExist(err) {
			delete(c.entries, path)
			removed++
		}
	}

	if removed > 0 {
		if err := c.persist(); err != nil {
			logger.L.WithError(err).Debug("failed to persist cleaned cache")
		}
	}
	return removed
}

// Stats reports entry counts and the on-disk size of the cache file
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.load()

	stats := Stats{Path: c.path, Entries: len(c.entries)}
	for _, entry := range c.entries {
		if entry.IsValidSkill {
			stats.Valid++
		} else {
			stats.Invalid++
		}
	}
	if info, err := os.Stat(c.path); err == nil {
		stats.FileSize = info.Size()
	}
	return stats
}

// load reads the cache file once. Any problem leaves the cache empty.
func (c *Cache) load() {
	if c.loaded {
		return
	}
	c.loaded = true
	c.entries = make(map[string]*Entry)

	log := logger.L.WithField("path", c.path)

	info, err := os.Stat(c.path)
	if err != nil {
		return
	}
	if info.Size() > c.maxFileSize {
		log.WithField("size", info.Size()).Debug("cache file exceeds size ceiling, starting cold")
		return
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		log.WithError(err).Debug("failed to read cache file, starting cold")
		return
	}

	var f cacheFile
	if err := json.Unmarshal(data, &f); err != nil {
		log.WithError(err).Debug("failed to parse cache file, starting cold")
		return
	}
	if f.Version != FormatVersion {
		log.WithField("version", f.Version).Debug("cache format version mismatch, starting cold")
		return
	}

	for path, entry := range f.Entries {
		if entry == nil {
			continue
		}
		entry.Path = path
		c.entries[path] = entry
	}
}

// persist writes the whole cache to a uniquely named scratch file and
// renames it over the cache file, so readers never see a partial write.
func (c *Cache) persist() error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create cache directory")
	}

	data, err := json.MarshalIndent(cacheFile{Version: FormatVersion, Entries: c.entries}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal cache")
	}

	tmp := filepath.Join(dir, scratchName(filepath.Base(c.path)))
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "failed to write cache scratch file")
	}

	if err := robustio.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "failed to replace cache file")
	}
	return nil
}

func scratchName(base string) string {
	discriminator := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf(".%s.%d.%d-%s.tmp", base, time.Now().UnixNano(), os.Getpid(), discriminator)
}
