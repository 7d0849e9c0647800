package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	skilltypes "github.com/jingkaihe/skillctl/pkg/types/skills"
)

func writeSkill(t *testing.T, dir, name string) os.FileInfo {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, skilltypes.HeaderFileName)
	content := "---\nname: " + name + "\ndescription: test skill\n---\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info
}

func entryFor(dir, name string, info os.FileInfo) Entry {
	return Entry{
		Path:         dir,
		ModTime:      info.ModTime().UnixNano(),
		Size:         info.Size(),
		ContentHash:  strings.Repeat("a", 64),
		SkillName:    name,
		IsValidSkill: true,
		Header:       &skilltypes.Header{Name: name, Description: "test skill"},
	}
}

func TestPutAndGet(t *testing.T) {
	tmpDir := t.TempDir()
	cachePath := filepath.Join(tmpDir, "cache", DefaultFileName)
	skillDir := filepath.Join(tmpDir, "skills", "alpha")
	info := writeSkill(t, skillDir, "alpha")

	c := New(cachePath)
	require.NoError(t, c.Put(entryFor(skillDir, "alpha", info)))

	entry, ok := c.Get(skillDir)
	require.True(t, ok)
	assert.Equal(t, "alpha", entry.SkillName)
	assert.Equal(t, "alpha", entry.Header.Name)
	assert.False(t, entry.CachedAt.IsZero())

	// A fresh instance reads the persisted file
	reloaded := New(cachePath)
	entry, ok = reloaded.Get(skillDir)
	require.True(t, ok)
	assert.True(t, entry.IsValidSkill)
	assert.Equal(t, skillDir, entry.Path)
}

func TestCacheFileFormat(t *testing.T) {
	tmpDir := t.TempDir()
	cachePath := filepath.Join(tmpDir, DefaultFileName)
	skillDir := filepath.Join(tmpDir, "alpha")
	info := writeSkill(t, skillDir, "alpha")

	c := New(cachePath)
	require.NoError(t, c.Put(entryFor(skillDir, "alpha", info)))

	data, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"entries\"", "cache file is pretty-printed")

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.EqualValues(t, FormatVersion, raw["version"])
	entries := raw["entries"].(map[string]any)
	record := entries[skillDir].(map[string]any)
	for _, key := range []string{"mtime", "size", "content_hash", "cached_at", "skill_name", "is_valid_skill"} {
		assert.Contains(t, record, key)
	}

	leftovers, err := filepath.Glob(filepath.Join(tmpDir, ".*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "scratch files are renamed away")
}

func TestGetMissesOnModification(t *testing.T) {
	tmpDir := t.TempDir()
	cachePath := filepath.Join(tmpDir, DefaultFileName)
	alphaDir := filepath.Join(tmpDir, "alpha")
	betaDir := filepath.Join(tmpDir, "beta")
	alphaInfo := writeSkill(t, alphaDir, "alpha")
	betaInfo := writeSkill(t, betaDir, "beta")

	c := New(cachePath)
	require.NoError(t, c.Put(entryFor(alphaDir, "alpha", alphaInfo)))
	require.NoError(t, c.Put(entryFor(betaDir, "beta", betaInfo)))

	later := alphaInfo.ModTime().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(filepath.Join(alphaDir, skilltypes.HeaderFileName), later, later))

	_, ok := c.Get(alphaDir)
	assert.False(t, ok, "modified header must miss")

	_, ok = c.Get(betaDir)
	assert.True(t, ok, "unrelated entry is unaffected")
}

func TestGetMissesWhenHeaderRemoved(t *testing.T) {
	tmpDir := t.TempDir()
	skillDir := filepath.Join(tmpDir, "alpha")
	info := writeSkill(t, skillDir, "alpha")

	c := New(filepath.Join(tmpDir, DefaultFileName))
	require.NoError(t, c.Put(entryFor(skillDir, "alpha", info)))
	require.NoError(t, os.Remove(filepath.Join(skillDir, skilltypes.HeaderFileName)))

	_, ok := c.Get(skillDir)
	assert.False(t, ok)
}

func TestPutContentHashLimit(t *testing.T) {
	tmpDir := t.TempDir()
	cachePath := filepath.Join(tmpDir, DefaultFileName)
	skillDir := filepath.Join(tmpDir, "alpha")
	info := writeSkill(t, skillDir, "alpha")

	t.Run("exactly at maximum", func(t *testing.T) {
		c := New(cachePath)
		entry := entryFor(skillDir, "alpha", info)
		entry.ContentHash = strings.Repeat("f", MaxContentHashLength)
		require.NoError(t, c.Put(entry))

		_, ok := New(cachePath).Get(skillDir)
		assert.True(t, ok)
	})

	t.Run("one over maximum", func(t *testing.T) {
		c := New(cachePath)
		c.Clear()

		entry := entryFor(skillDir, "alpha", info)
		entry.ContentHash = strings.Repeat("f", MaxContentHashLength+1)
		err := c.Put(entry)
		require.Error(t, err)
		assert.True(t, errors.Is(err, skilltypes.ErrValidation))

		_, ok := c.Get(skillDir)
		assert.False(t, ok)
		_, ok = New(cachePath).Get(skillDir)
		assert.False(t, ok, "nothing persisted")
	})
}

func TestPutRejectsRelativePath(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), DefaultFileName))
	err := c.Put(Entry{Path: "relative/dir"})
	assert.True(t, errors.Is(err, skilltypes.ErrValidation))
}

func TestVersionMismatchIsCold(t *testing.T) {
	tmpDir := t.TempDir()
	cachePath := filepath.Join(tmpDir, DefaultFileName)
	skillDir := filepath.Join(tmpDir, "alpha")
	info := writeSkill(t, skillDir, "alpha")

	stale := map[string]any{
		"version": FormatVersion + 1,
		"entries": map[string]any{
			skillDir: map[string]any{
				"mtime":          info.ModTime().UnixNano(),
				"size":           info.Size(),
				"content_hash":   "abc",
				"cached_at":      time.Now(),
				"skill_name":     "alpha",
				"is_valid_skill": true,
			},
		},
	}
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cachePath, data, 0o644))

	_, ok := New(cachePath).Get(skillDir)
	assert.False(t, ok)
}

func TestCorruptFileIsCold(t *testing.T) {
	tmpDir := t.TempDir()
	cachePath := filepath.Join(tmpDir, DefaultFileName)
	require.NoError(t, os.WriteFile(cachePath, []byte("{not json"), 0o644))

	c := New(cachePath)
	assert.Equal(t, 0, c.Stats().Entries)

	skillDir := filepath.Join(tmpDir, "alpha")
	info := writeSkill(t, skillDir, "alpha")
	require.NoError(t, c.Put(entryFor(skillDir, "alpha", info)))

	_, ok := New(cachePath).Get(skillDir)
	assert.True(t, ok, "next write rebuilds the file")
}

func TestOversizedFileIsCold(t *testing.T) {
	tmpDir := t.TempDir()
	cachePath := filepath.Join(tmpDir, DefaultFileName)
	skillDir := filepath.Join(tmpDir, "alpha")
	info := writeSkill(t, skillDir, "alpha")

	require.NoError(t, New(cachePath).Put(entryFor(skillDir, "alpha", info)))

	fileInfo, err := os.Stat(cachePath)
	require.NoError(t, err)

	small := New(cachePath, WithMaxFileSize(fileInfo.Size()-1))
	_, ok := small.Get(skillDir)
	assert.False(t, ok)

	exact := New(cachePath, WithMaxFileSize(fileInfo.Size()))
	_, ok = exact.Get(skillDir)
	assert.True(t, ok)
}

func TestInvalidateAndClear(t *testing.T) {
	tmpDir := t.TempDir()
	cachePath := filepath.Join(tmpDir, DefaultFileName)
	alphaDir := filepath.Join(tmpDir, "alpha")
	betaDir := filepath.Join(tmpDir, "beta")
	alphaInfo := writeSkill(t, alphaDir, "alpha")
	betaInfo := writeSkill(t, betaDir, "beta")

	c := New(cachePath)
	require.NoError(t, c.Put(entryFor(alphaDir, "alpha", alphaInfo)))
	require.NoError(t, c.Put(entryFor(betaDir, "beta", betaInfo)))

	c.Invalidate(alphaDir)
	c.Invalidate(filepath.Join(tmpDir, "never-cached"))

	reloaded := New(cachePath)
	_, ok := reloaded.Get(alphaDir)
	assert.False(t, ok)
	_, ok = reloaded.Get(betaDir)
	assert.True(t, ok)

	c.Clear()
	assert.Equal(t, 0, New(cachePath).Stats().Entries)
}

func TestCleanStale(t *testing.T) {
	tmpDir := t.TempDir()
	cachePath := filepath.Join(tmpDir, DefaultFileName)
	alphaDir := filepath.Join(tmpDir, "alpha")
	betaDir := filepath.Join(tmpDir, "beta")
	alphaInfo := writeSkill(t, alphaDir, "alpha")
	betaInfo := writeSkill(t, betaDir, "beta")

	c := New(cachePath)
	require.NoError(t, c.Put(entryFor(alphaDir, "alpha", alphaInfo)))
	require.NoError(t, c.Put(entryFor(betaDir, "beta", betaInfo)))
	require.NoError(t, c.Put(Entry{
		Path:        filepath.Join(tmpDir, "broken"),
		ContentHash: "abc",
		Error:       "missing name",
	}))

	require.NoError(t, os.RemoveAll(betaDir))

	removed := c.CleanStale()
	assert.Equal(t, 2, removed, "beta and the never-existing directory are stale")

	stats := New(cachePath).Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, 1, stats.Valid)
	assert.Equal(t, 0, stats.Invalid)
	assert.Positive(t, stats.FileSize)
}

func TestInvalidEntryDropsHeader(t *testing.T) {
	tmpDir := t.TempDir()
	skillDir := filepath.Join(tmpDir, "alpha")
	info := writeSkill(t, skillDir, "alpha")

	c := New(filepath.Join(tmpDir, DefaultFileName))
	entry := entryFor(skillDir, "alpha", info)
	entry.IsValidSkill = false
	entry.Error = "description too long"
	require.NoError(t, c.Put(entry))

	hit, ok := c.Get(skillDir)
	require.True(t, ok)
	assert.Empty(t, hit.SkillName)
	assert.Nil(t, hit.Header)
	assert.Equal(t, "description too long", hit.Error)
}

func TestPutLeavesNoEntryWhenPersistFails(t *testing.T) {
	tmpDir := t.TempDir()
	blocker := filepath.Join(tmpDir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o644))
	skillDir := filepath.Join(tmpDir, "skills", "alpha")
	info := writeSkill(t, skillDir, "alpha")

	c := New(filepath.Join(blocker, DefaultFileName))
	err := c.Put(entryFor(skillDir, "alpha", info))
	require.Error(t, err)

	_, ok := c.Get(skillDir)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().Entries)
}
