package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jira-jenkins-integ/internal/site"
)

// AtlassianAPIURL is the domain credentials for build information are scoped to.
const AtlassianAPIURL = "https://api.atlassian.com"

// Duration wraps time.Duration to support YAML unmarshalling from strings.
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	str := strings.TrimSpace(value.Value)
	if str == "" {
		d.Duration = 0
		return nil
	}

	parsed, err := time.ParseDuration(str)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", str, err)
	}

	d.Duration = parsed
	return nil
}

// Config represents the root of the service configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
	DebugLogging bool               `yaml:"debug_logging"`
	SiteList     []site.SiteConfig  `yaml:"sites"`
	Credentials  []CredentialConfig `yaml:"credentials"`
	Keyring      KeyringConfig      `yaml:"keyring"`
	CloudID      CloudIDConfig      `yaml:"cloud_id"`
	Sender       SenderConfig       `yaml:"sender"`
	Jenkins      JenkinsConfig      `yaml:"jenkins"`
}

// ServerConfig controls HTTP server behaviour.
type ServerConfig struct {
	Address       string   `yaml:"address"`
	ReadTimeout   Duration `yaml:"read_timeout"`
	WriteTimeout  Duration `yaml:"write_timeout"`
	IdleTimeout   Duration `yaml:"idle_timeout"`
	AdminTokenEnv string   `yaml:"admin_token_env"`
	StepSecretEnv string   `yaml:"step_secret_env"`
}

// LoggingConfig customises slog configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// CredentialConfig declares a secret text credential inline or through an env variable.
type CredentialConfig struct {
	ID        string `yaml:"id"`
	Domain    string `yaml:"domain"`
	Secret    string `yaml:"secret"`
	SecretEnv string `yaml:"secret_env"`
}

// KeyringConfig selects the system keyring used for stored credentials.
type KeyringConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Service  string   `yaml:"service"`
	FileDir  string   `yaml:"file_dir"`
	Backends []string `yaml:"backends"`
}

// CloudIDConfig controls site to cloud id resolution.
type CloudIDConfig struct {
	Timeout Duration    `yaml:"timeout"`
	Cache   CacheConfig `yaml:"cache"`
}

// CacheConfig selects the cloud id cache backend.
type CacheConfig struct {
	Backend    string   `yaml:"backend"`
	TTL        Duration `yaml:"ttl"`
	SQLitePath string   `yaml:"sqlite_path"`
	RedisAddr  string   `yaml:"redis_addr"`
	RedisDB    int      `yaml:"redis_db"`
	KeyPrefix  string   `yaml:"key_prefix"`
}

// SenderConfig controls outbound webhook calls.
type SenderConfig struct {
	Timeout       Duration `yaml:"timeout"`
	SkipTLSVerify bool     `yaml:"skip_tls_verify"`
	RateLimit     float64  `yaml:"rate_limit"`
	Concurrency   int      `yaml:"concurrency"`
	UserAgent     string   `yaml:"user_agent"`
}

// JenkinsConfig contains optional Jenkins connection settings used to enrich run data.
type JenkinsConfig struct {
	BaseURL       string `yaml:"base_url"`
	User          string `yaml:"user"`
	UserEnv       string `yaml:"user_env"`
	APIToken      string `yaml:"api_token"`
	APITokenEnv   string `yaml:"api_token_env"`
	SkipTLSVerify bool   `yaml:"skip_tls_verify"`
}

// Cache backends.
const (
	CacheMemory = "memory"
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
)

// Load reads configuration from the provided path.
func Load(path string) (*Config, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse decodes, defaults and validates configuration from r.
func Parse(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Sites returns a snapshot of the configured sites in configuration order.
func (c *Config) Sites() []site.SiteConfig {
	out := make([]site.SiteConfig, len(c.SiteList))
	copy(out, c.SiteList)
	return out
}

// Site looks up a site by exact name.
func (c *Config) Site(name string) (site.SiteConfig, bool) {
	for _, s := range c.SiteList {
		if s.Site == name {
			return s, true
		}
	}
	return site.SiteConfig{}, false
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ReadTimeout.Duration == 0 {
		c.Server.ReadTimeout = Duration{Duration: 15 * time.Second}
	}
	if c.Server.WriteTimeout.Duration == 0 {
		c.Server.WriteTimeout = Duration{Duration: 60 * time.Second}
	}
	if c.Server.IdleTimeout.Duration == 0 {
		c.Server.IdleTimeout = Duration{Duration: 60 * time.Second}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	for i := range c.SiteList {
		s := &c.SiteList[i]
		s.Site = strings.TrimSpace(s.Site)
		s.WebhookURL = strings.TrimSpace(s.WebhookURL)
		s.CredentialsID = strings.TrimSpace(s.CredentialsID)
	}

	for i := range c.Credentials {
		if c.Credentials[i].Domain == "" {
			c.Credentials[i].Domain = AtlassianAPIURL
		}
	}

	if c.Keyring.Service == "" {
		c.Keyring.Service = "jira-buildinfo"
	}

	if c.CloudID.Timeout.Duration == 0 {
		c.CloudID.Timeout = Duration{Duration: 10 * time.Second}
	}
	if c.CloudID.Cache.Backend == "" {
		c.CloudID.Cache.Backend = CacheMemory
	}
	if c.CloudID.Cache.TTL.Duration == 0 {
		c.CloudID.Cache.TTL = Duration{Duration: 24 * time.Hour}
	}
	if c.CloudID.Cache.KeyPrefix == "" {
		c.CloudID.Cache.KeyPrefix = "jira-buildinfo:cloudid:"
	}

	if c.Sender.Timeout.Duration == 0 {
		c.Sender.Timeout = Duration{Duration: 30 * time.Second}
	}
	if c.Sender.Concurrency <= 0 {
		c.Sender.Concurrency = 1
	}
	if c.Sender.UserAgent == "" {
		c.Sender.UserAgent = "jira-buildinfo"
	}
}

func (c *Config) validate() error {
	seen := make(map[string]struct{}, len(c.SiteList))
	for i, s := range c.SiteList {
		if s.Site == "" {
			return fmt.Errorf("sites[%d].site is required", i)
		}
		if s.WebhookURL == "" {
			return fmt.Errorf("sites[%d].webhook_url is required", i)
		}
		if s.CredentialsID == "" {
			return fmt.Errorf("sites[%d].credentials_id is required", i)
		}
		if _, dup := seen[s.Site]; dup {
			return fmt.Errorf("site %s is configured more than once", s.Site)
		}
		seen[s.Site] = struct{}{}
	}

	for i, cred := range c.Credentials {
		if cred.ID == "" {
			return fmt.Errorf("credentials[%d].id is required", i)
		}
		if cred.Secret == "" && cred.SecretEnv == "" {
			return fmt.Errorf("credential %s must define secret or secret_env", cred.ID)
		}
	}

	switch c.CloudID.Cache.Backend {
	case CacheMemory:
	case CacheSQLite:
		if c.CloudID.Cache.SQLitePath == "" {
			return errors.New("cloud_id.cache.sqlite_path is required for the sqlite backend")
		}
	case CacheRedis:
		if c.CloudID.Cache.RedisAddr == "" {
			return errors.New("cloud_id.cache.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown cloud_id.cache.backend %q", c.CloudID.Cache.Backend)
	}

	if c.Sender.RateLimit < 0 {
		return errors.New("sender.rate_limit must be >= 0")
	}
	return nil
}

// ResolveSecret returns the credential secret using the precedence order.
func (c *CredentialConfig) ResolveSecret() (string, error) {
	if c.Secret != "" {
		return c.Secret, nil
	}
	if c.SecretEnv == "" {
		return "", fmt.Errorf("credential %s has no secret or secret_env", c.ID)
	}
	val := strings.TrimSpace(os.Getenv(c.SecretEnv))
	if val == "" {
		return "", fmt.Errorf("credential %s environment variable %s is empty", c.ID, c.SecretEnv)
	}
	return val, nil
}

// ResolveCredentials returns Jenkins user/token from config or environment.
// Both are optional; anonymous access is used when neither is set.
func (c *JenkinsConfig) ResolveCredentials() (string, string) {
	user := c.User
	token := c.APIToken
	if user == "" && c.UserEnv != "" {
		user = strings.TrimSpace(os.Getenv(c.UserEnv))
	}
	if token == "" && c.APITokenEnv != "" {
		token = strings.TrimSpace(os.Getenv(c.APITokenEnv))
	}
	return user, token
}

// EnvSecret reads a trimmed secret from the named environment variable.
func EnvSecret(env string) string {
	if env == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(env))
}
