// Package config loads redline settings from a YAML file and REDLINE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "redline.yaml"

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreFile   = "file"
)

// Model providers.
const (
	ProviderNone      = "none"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config is the complete runtime configuration.
type Config struct {
	Log    LogConfig    `yaml:"log"`
	Store  StoreConfig  `yaml:"store"`
	Model  ModelConfig  `yaml:"model"`
	Engine EngineConfig `yaml:"engine"`
	Server ServerConfig `yaml:"server"`
	// SkillsFile lists process-backed skills.
	SkillsFile string `yaml:"skills_file"`
	// PluginsDir holds domain plugin YAML files loaded next to the built-in ones.
	PluginsDir string `yaml:"plugins_dir"`
	// ChecklistsDir is a loam markdown repository of checklist items.
	ChecklistsDir string `yaml:"checklists_dir"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StoreConfig struct {
	Backend    string        `yaml:"backend"`
	SQLitePath string        `yaml:"sqlite_path"`
	RedisURL   string        `yaml:"redis_url"`
	RedisTTL   time.Duration `yaml:"redis_ttl"`
	FileDir    string        `yaml:"file_dir"`
	// EncryptionKey is a base64 AES-256 key. When set, checkpoints are sealed at rest.
	EncryptionKey string `yaml:"encryption_key"`
	// PreviousKeys still decrypt checkpoints sealed before a key rotation.
	PreviousKeys []string `yaml:"previous_keys"`
}

type ModelConfig struct {
	Provider    string        `yaml:"provider"`
	Name        string        `yaml:"name"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int64         `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	Retries     int           `yaml:"retries"`
}

type EngineConfig struct {
	RetryLimit   int           `yaml:"retry_limit"`
	SkillTimeout time.Duration `yaml:"skill_timeout"`
}

type ServerConfig struct {
	Port    int           `yaml:"port"`
	MCPPort int           `yaml:"mcp_port"`
	ReapAge time.Duration `yaml:"reap_age"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Log:   LogConfig{Level: "info", Format: "text"},
		Store: StoreConfig{Backend: StoreMemory, SQLitePath: ".redline/redline.db"},
		Model: ModelConfig{
			Provider: ProviderNone,
			Timeout:  60 * time.Second,
			Retries:  2,
		},
		Engine: EngineConfig{RetryLimit: 2, SkillTimeout: 30 * time.Second},
		Server: ServerConfig{Port: 8080, MCPPort: 8090},
	}
}

// Load reads path (or DefaultFile when path is empty) over the defaults, then applies
// environment overrides. A missing default file is not an error; a missing explicit one is.
func Load(path string) (Config, error) {
	cfg := Default()

	file := path
	if file == "" {
		file = DefaultFile
	}
	data, err := os.ReadFile(file)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", file, err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == "":
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if cfg.Model.APIKey == "" {
		cfg.Model.APIKey = providerKey(cfg.Model.Provider)
	}
	return cfg, cfg.Validate()
}

// Validate checks enumerations and bounds.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case StoreMemory, StoreSQLite, StoreRedis, StoreFile:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == StoreRedis && c.Store.RedisURL == "" {
		return errors.New("store.redis_url is required for the redis backend")
	}
	switch c.Model.Provider {
	case ProviderNone, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	if c.Engine.RetryLimit < 0 {
		return errors.New("engine.retry_limit must not be negative")
	}
	if c.Engine.SkillTimeout < 0 {
		return errors.New("engine.skill_timeout must not be negative")
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup("REDLINE_" + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup("REDLINE_" + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("REDLINE_%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup("REDLINE_" + key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("REDLINE_%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("STORE", &c.Store.Backend)
	str("SQLITE_PATH", &c.Store.SQLitePath)
	str("REDIS_URL", &c.Store.RedisURL)
	dur("REDIS_TTL", &c.Store.RedisTTL)
	str("FILE_DIR", &c.Store.FileDir)
	str("ENCRYPTION_KEY", &c.Store.EncryptionKey)
	str("MODEL_PROVIDER", &c.Model.Provider)
	str("MODEL", &c.Model.Name)
	str("MODEL_API_KEY", &c.Model.APIKey)
	str("MODEL_BASE_URL", &c.Model.BaseURL)
	dur("MODEL_TIMEOUT", &c.Model.Timeout)
	num("MODEL_RETRIES", &c.Model.Retries)
	num("RETRY_LIMIT", &c.Engine.RetryLimit)
	dur("SKILL_TIMEOUT", &c.Engine.SkillTimeout)
	num("PORT", &c.Server.Port)
	num("MCP_PORT", &c.Server.MCPPort)
	dur("REAP_AGE", &c.Server.ReapAge)
	str("SKILLS_FILE", &c.SkillsFile)
	str("PLUGINS_DIR", &c.PluginsDir)
	str("CHECKLISTS_DIR", &c.ChecklistsDir)

	return errors.Join(errs...)
}

func providerKey(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	return ""
}
