package skills

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillctl/pkg/config"
)

func TestInitialize(t *testing.T) {
	root := t.TempDir()
	cfg := config.Config{
		RepositoryPath: filepath.Join(root, "repo"),
		Cache:          config.CacheConfig{Enabled: true, Path: filepath.Join(root, "cache.json")},
	}

	scanner, err := Initialize(context.Background(), cfg, false)
	require.NoError(t, err)
	assert.Equal(t, cfg.RepositoryPath, scanner.RepoRoot())
	require.NotNil(t, scanner.Cache())
	assert.Equal(t, cfg.Cache.Path, scanner.Cache().Path())

	scanner, err = Initialize(context.Background(), cfg, true)
	require.NoError(t, err)
	assert.Nil(t, scanner.Cache())

	cfg.Cache.Enabled = false
	scanner, err = Initialize(context.Background(), cfg, false)
	require.NoError(t, err)
	assert.Nil(t, scanner.Cache())
}
