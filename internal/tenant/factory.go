package tenant

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jira-jenkins-integ/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewFromConfig builds the caching resolver selected by cfg. The returned closer
// releases the cache backend.
func NewFromConfig(cfg config.CloudIDConfig, httpClient *http.Client, logger *slog.Logger) (Resolver, io.Closer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	base := NewHTTPResolver(httpClient, logger)

	var (
		cache  Cache
		closer io.Closer = nopCloser{}
	)
	switch cfg.Cache.Backend {
	case config.CacheSQLite:
		c, err := OpenSQLCache(cfg.Cache.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open cloud id cache: %w", err)
		}
		cache, closer = c, c
	case config.CacheRedis:
		c := NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisDB, cfg.Cache.KeyPrefix)
		cache, closer = c, c
	default:
		cache = NewMemoryCache()
	}

	logger.Debug("cloud id resolver configured", slog.String("cache", cfg.Cache.Backend))
	return NewCachingResolver(base, cache, cfg.Cache.TTL.Duration, logger), closer, nil
}
