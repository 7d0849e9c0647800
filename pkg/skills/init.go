package skills

import (
	"context"

	"github.com/jingkaihe/skillctl/pkg/cache"
	"github.com/jingkaihe/skillctl/pkg/config"
	"github.com/jingkaihe/skillctl/pkg/logger"
)

// Initialize builds a scanner for cfg. The cache is attached unless it is
// disabled in configuration or by noCache.
func Initialize(ctx context.Context, cfg config.Config, noCache bool) (*Scanner, error) {
	opts := []Option{WithRepository(cfg.RepositoryPath)}

	if cfg.Cache.Enabled && !noCache {
		opts = append(opts, WithCache(cache.New(cfg.Cache.Path)))
	} else {
		logger.G(ctx).Debug("scan cache disabled")
	}

	return NewScanner(opts...)
}
