package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/dyluth/chalk/pkg/board"
	"gopkg.in/yaml.v3"
)

// Backend names accepted by persistence.backend
const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Environment variables that override chalk.yml values
const (
	EnvRedisURL   = "CHALK_REDIS_URL"
	EnvNamespace  = "CHALK_NAMESPACE"
	EnvBackend    = "CHALK_BACKEND"
	EnvHealthAddr = "CHALK_HEALTH_ADDR"
)

// MaxNamespaceLength is the maximum length of persistence.namespace
const MaxNamespaceLength = 63

// NamespacePattern matches valid namespaces: lowercase alphanumeric, hyphens
// allowed but not at start or end. Namespaces are embedded in Redis keys.
var NamespacePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// ValidateNamespace checks persistence.namespace.
func ValidateNamespace(ns string) error {
	if ns == "" {
		return fmt.Errorf("namespace cannot be empty")
	}
	if len(ns) > MaxNamespaceLength {
		return fmt.Errorf("namespace too long: %d characters (max: %d)", len(ns), MaxNamespaceLength)
	}
	if !NamespacePattern.MatchString(ns) {
		return fmt.Errorf("invalid namespace '%s': must be lowercase alphanumeric with hyphens (not at start/end)", ns)
	}
	return nil
}

// ChalkConfig represents the top-level chalk.yml configuration
type ChalkConfig struct {
	Version     string            `yaml:"version"`
	Limits      LimitsConfig      `yaml:"limits"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Registry    RegistryConfig    `yaml:"registry"`
	Health      HealthConfig      `yaml:"health"`
}

// LimitsConfig bounds what a board may hold. Zero values take the defaults.
type LimitsConfig struct {
	MaxItemCount    int     `yaml:"max_item_count,omitempty"`
	MaxChildren     int     `yaml:"max_children,omitempty"`
	MaxBoardSizeX   float64 `yaml:"max_board_size_x,omitempty"`
	MaxBoardSizeY   float64 `yaml:"max_board_size_y,omitempty"`
	MaxDocumentSize int     `yaml:"max_document_size,omitempty"` // bytes of an image element's encoded data
	MaxImages       int     `yaml:"max_images,omitempty"`        // images per board, 0 = unlimited
}

// PersistenceConfig selects and tunes the storage backend
type PersistenceConfig struct {
	Backend              string        `yaml:"backend,omitempty"` // redis, sqlite or memory
	RedisURL             string        `yaml:"redis_url,omitempty"`
	Namespace            string        `yaml:"namespace,omitempty"`
	KeyTTL               time.Duration `yaml:"key_ttl,omitempty"` // 0 = keep forever
	SQLitePath           string        `yaml:"sqlite_path,omitempty"`
	Mode                 string        `yaml:"mode,omitempty"` // async or sync
	QueueSize            int           `yaml:"queue_size,omitempty"`
	MaxRetries           *int          `yaml:"max_retries,omitempty"` // nil = default, 0 = no retry
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval,omitempty"`
	RetryMaxInterval     time.Duration `yaml:"retry_max_interval,omitempty"`
	EvictPersisted       bool          `yaml:"evict_persisted,omitempty"`
}

// RegistryConfig drives the periodic board maintenance
type RegistryConfig struct {
	IdleTimeout         time.Duration `yaml:"idle_timeout,omitempty"`
	MaintenanceInterval time.Duration `yaml:"maintenance_interval,omitempty"`
	SaveInterval        time.Duration `yaml:"save_interval,omitempty"`
}

// HealthConfig configures the daemon health endpoint
type HealthConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() *ChalkConfig {
	cfg := &ChalkConfig{Version: "1.0"}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

// Validate applies defaults and checks the configuration
func (c *ChalkConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if err := c.Limits.validate(); err != nil {
		return err
	}
	if err := c.Persistence.validate(); err != nil {
		return err
	}
	if err := c.Registry.validate(); err != nil {
		return err
	}

	if c.Health.Addr == "" {
		c.Health.Addr = ":8080"
	}
	return nil
}

func (l *LimitsConfig) validate() error {
	if l.MaxItemCount == 0 {
		l.MaxItemCount = board.DefaultMaxItemCount
	}
	if l.MaxChildren == 0 {
		l.MaxChildren = board.DefaultMaxChildren
	}
	if l.MaxBoardSizeX == 0 {
		l.MaxBoardSizeX = board.DefaultMaxBoardSize
	}
	if l.MaxBoardSizeY == 0 {
		l.MaxBoardSizeY = board.DefaultMaxBoardSize
	}
	if l.MaxDocumentSize == 0 {
		l.MaxDocumentSize = board.DefaultMaxDocumentSize
	}

	if l.MaxItemCount < 0 {
		return fmt.Errorf("limits.max_item_count must be > 0, got %d", l.MaxItemCount)
	}
	if l.MaxChildren < 0 {
		return fmt.Errorf("limits.max_children must be > 0, got %d", l.MaxChildren)
	}
	if l.MaxBoardSizeX < 0 || l.MaxBoardSizeY < 0 {
		return fmt.Errorf("limits.max_board_size_x and max_board_size_y must be > 0")
	}
	if l.MaxDocumentSize < 0 {
		return fmt.Errorf("limits.max_document_size must be > 0, got %d", l.MaxDocumentSize)
	}
	if l.MaxImages < 0 {
		return fmt.Errorf("limits.max_images must be >= 0, got %d", l.MaxImages)
	}
	return nil
}

func (p *PersistenceConfig) validate() error {
	if p.Backend == "" {
		p.Backend = BackendRedis
	}
	if p.Namespace == "" {
		p.Namespace = "default"
	}
	if p.RedisURL == "" {
		p.RedisURL = "redis://localhost:6379/0"
	}
	if p.SQLitePath == "" {
		p.SQLitePath = "chalk.db"
	}
	if p.Mode == "" {
		p.Mode = string(board.PersistAsync)
	}
	if p.QueueSize == 0 {
		p.QueueSize = board.DefaultQueueSize
	}
	retry := board.DefaultRetryPolicy()
	if p.MaxRetries == nil {
		n := int(retry.MaxRetries)
		p.MaxRetries = &n
	}
	if p.RetryInitialInterval == 0 {
		p.RetryInitialInterval = retry.InitialInterval
	}
	if p.RetryMaxInterval == 0 {
		p.RetryMaxInterval = retry.MaxInterval
	}

	switch p.Backend {
	case BackendRedis:
		u, err := url.Parse(p.RedisURL)
		if err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			return fmt.Errorf("persistence.redis_url must be a redis:// or rediss:// URL, got '%s'", p.RedisURL)
		}
	case BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("invalid persistence.backend: %s (must be 'redis', 'sqlite' or 'memory')", p.Backend)
	}

	if err := ValidateNamespace(p.Namespace); err != nil {
		return fmt.Errorf("persistence.namespace: %w", err)
	}
	if p.Mode != string(board.PersistAsync) && p.Mode != string(board.PersistSync) {
		return fmt.Errorf("invalid persistence.mode: %s (must be 'async' or 'sync')", p.Mode)
	}
	if p.QueueSize < 1 {
		return fmt.Errorf("persistence.queue_size must be >= 1, got %d", p.QueueSize)
	}
	if *p.MaxRetries < 0 {
		return fmt.Errorf("persistence.max_retries must be >= 0, got %d", *p.MaxRetries)
	}
	if p.KeyTTL < 0 {
		return fmt.Errorf("persistence.key_ttl must be >= 0, got %s", p.KeyTTL)
	}
	if p.RetryMaxInterval < p.RetryInitialInterval {
		return fmt.Errorf("persistence.retry_max_interval (%s) must be >= retry_initial_interval (%s)",
			p.RetryMaxInterval, p.RetryInitialInterval)
	}
	return nil
}

func (r *RegistryConfig) validate() error {
	if r.IdleTimeout == 0 {
		r.IdleTimeout = 10 * time.Minute
	}
	if r.MaintenanceInterval == 0 {
		r.MaintenanceInterval = 30 * time.Second
	}
	if r.SaveInterval == 0 {
		r.SaveInterval = 2 * time.Second
	}
	if r.IdleTimeout < 0 || r.MaintenanceInterval < 0 || r.SaveInterval < 0 {
		return fmt.Errorf("registry intervals must be > 0")
	}
	return nil
}

// ApplyEnv overrides configuration values from CHALK_* environment variables.
// Call Validate afterwards.
func (c *ChalkConfig) ApplyEnv() {
	if v, ok := os.LookupEnv(EnvRedisURL); ok && v != "" {
		c.Persistence.RedisURL = v
	}
	if v, ok := os.LookupEnv(EnvNamespace); ok && v != "" {
		c.Persistence.Namespace = v
	}
	if v, ok := os.LookupEnv(EnvBackend); ok && v != "" {
		c.Persistence.Backend = v
	}
	if v, ok := os.LookupEnv(EnvHealthAddr); ok && v != "" {
		c.Health.Addr = v
	}
}

// BoardLimits returns the limits handed to every board store.
func (c *ChalkConfig) BoardLimits() board.Limits {
	return board.Limits{
		MaxItemCount:  c.Limits.MaxItemCount,
		MaxChildren:   c.Limits.MaxChildren,
		MaxBoardSizeX: c.Limits.MaxBoardSizeX,
		MaxBoardSizeY: c.Limits.MaxBoardSizeY,
	}
}

// RetryPolicy returns the backoff policy for durable writes.
func (c *ChalkConfig) RetryPolicy() board.RetryPolicy {
	return board.RetryPolicy{
		MaxRetries:      uint64(*c.Persistence.MaxRetries),
		InitialInterval: c.Persistence.RetryInitialInterval,
		MaxInterval:     c.Persistence.RetryMaxInterval,
	}
}

// StoreOptions returns the board.Store options described by the configuration.
func (c *ChalkConfig) StoreOptions() []board.Option {
	return []board.Option{
		board.WithLimits(c.BoardLimits()),
		board.WithPersistMode(board.PersistMode(c.Persistence.Mode)),
		board.WithQueueSize(c.Persistence.QueueSize),
		board.WithRetryPolicy(c.RetryPolicy()),
		board.WithEvictPersisted(c.Persistence.EvictPersisted),
	}
}

// Load reads chalk.yml from the specified path, applies environment overrides
// and validates the result
func Load(path string) (*ChalkConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config ChalkConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault behaves like Load but falls back to the defaults (with
// environment overrides) when path does not exist.
func LoadOrDefault(path string) (*ChalkConfig, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg = &ChalkConfig{Version: "1.0"}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
