package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lepinkainen/blog-mirror/pkg/cache"
	"github.com/lepinkainen/blog-mirror/pkg/filesystem"
	"github.com/lepinkainen/blog-mirror/pkg/urlutils"
)

// EnvPrefix is prepended to every environment override, e.g. BLOG_MIRROR_CACHE_TTL
const EnvPrefix = "BLOG_MIRROR"

// Config holds the central application configuration
type Config struct {
	Blog struct {
		FeedURL       string `mapstructure:"feed_url"`       // Upstream RSS feed
		FallbackURL   string `mapstructure:"fallback_url"`   // Shown to users when the feed is down
		DefaultAuthor string `mapstructure:"default_author"` // Used when an item has no author
	} `mapstructure:"blog"`

	Upstream struct {
		Timeout      time.Duration `mapstructure:"timeout"`
		MaxRetries   int           `mapstructure:"max_retries"`
		RetryBackoff time.Duration `mapstructure:"retry_backoff"`
		UserAgent    string        `mapstructure:"user_agent"`
	} `mapstructure:"upstream"`

	Cache struct {
		Backend    string        `mapstructure:"backend"` // memory, sqlite, redis or none
		Key        string        `mapstructure:"key"`
		TTL        time.Duration `mapstructure:"ttl"`
		Coalesce   bool          `mapstructure:"coalesce"` // Share one upstream fetch between concurrent misses
		SQLitePath string        `mapstructure:"sqlite_path"`
		RedisURL   string        `mapstructure:"redis_url"`
		MemorySize int           `mapstructure:"memory_size"`
	} `mapstructure:"cache"`

	Server struct {
		Addr           string        `mapstructure:"addr"`
		RequestTimeout time.Duration `mapstructure:"request_timeout"`
	} `mapstructure:"server"`

	Log struct {
		File       string `mapstructure:"file"` // Empty logs to stderr
		MaxSize    int    `mapstructure:"max_size"`
		MaxBackups int    `mapstructure:"max_backups"`
		MaxAge     int    `mapstructure:"max_age"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("blog.feed_url", "https://medium.com/feed/@example")
	v.SetDefault("blog.fallback_url", "https://medium.com/@example")
	v.SetDefault("blog.default_author", "Site Owner")

	v.SetDefault("upstream.timeout", 8*time.Second)
	v.SetDefault("upstream.max_retries", 1)
	v.SetDefault("upstream.retry_backoff", 500*time.Millisecond)
	v.SetDefault("upstream.user_agent", "blog-mirror/1.0")

	v.SetDefault("cache.backend", cache.BackendMemory)
	v.SetDefault("cache.key", "blog:posts")
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("cache.coalesce", false)
	v.SetDefault("cache.sqlite_path", "blog-mirror.db")
	v.SetDefault("cache.redis_url", "redis://localhost:6379/0")
	v.SetDefault("cache.memory_size", 16)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", 10*time.Second)

	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
}

// LoadConfig loads the configuration from a YAML file, then applies
// BLOG_MIRROR_* environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}
	path = filesystem.ResolvePath(path)

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// If config file doesn't exist, that's okay - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects values the service cannot run with
func (c *Config) Validate() error {
	if !urlutils.IsValidURL(c.Blog.FeedURL) {
		return fmt.Errorf("blog.feed_url must be an absolute URL, got %q", c.Blog.FeedURL)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive, got %s", c.Upstream.Timeout)
	}
	if c.Upstream.MaxRetries < 0 {
		return fmt.Errorf("upstream.max_retries cannot be negative, got %d", c.Upstream.MaxRetries)
	}

	switch strings.ToLower(c.Cache.Backend) {
	case cache.BackendMemory, cache.BackendSQLite, cache.BackendRedis, cache.BackendNone:
	default:
		return fmt.Errorf("cache.backend %q is not one of memory, sqlite, redis, none", c.Cache.Backend)
	}

	return nil
}

// CacheOptions maps the cache section to store options
func (c *Config) CacheOptions() cache.Options {
	return cache.Options{
		Backend:    c.Cache.Backend,
		MemorySize: c.Cache.MemorySize,
		SQLitePath: filesystem.ResolvePath(c.Cache.SQLitePath),
		RedisURL:   c.Cache.RedisURL,
	}
}
