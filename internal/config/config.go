// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/orchat/internal/logging"
	"github.com/jeranaias/orchat/internal/model"
	"github.com/jeranaias/orchat/internal/util"
)

// Defaults for fields that have no zero-value meaning.
const (
	DefaultVersion        = "1.0.0"
	DefaultBaseURL        = "https://openrouter.ai/api/v1"
	DefaultReferer        = "https://github.com/jeranaias/orchat"
	DefaultTitle          = "orchat"
	DefaultTimeoutSecs    = 120
	DefaultServerAddr     = "127.0.0.1:8080"
	DefaultRateLimitRPS   = 5.0
	DefaultRateLimitBurst = 10
	DefaultLogLevel       = "info"

	// MaxTimeoutSecs caps api.timeout_secs at one hour.
	MaxTimeoutSecs = 3600
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete orchat configuration.
type Config struct {
	// General settings
	Version      string `toml:"version" json:"version"`
	DefaultModel string `toml:"default_model" json:"default_model"`
	SystemPrompt string `toml:"system_prompt" json:"system_prompt"`

	API     APIConfig     `toml:"api" json:"api"`
	Storage StorageConfig `toml:"storage" json:"storage"`
	Server  ServerConfig  `toml:"server" json:"server"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
}

// APIConfig contains the completion endpoint settings.
type APIConfig struct {
	// BaseURL is the OpenAI-compatible API root
	BaseURL string `toml:"base_url" json:"base_url"`
	// Keys are rotated round-robin, one per request
	Keys []string `toml:"keys" json:"keys"`
	// Referer and Title are sent as HTTP-Referer and X-Title
	Referer string `toml:"referer" json:"referer"`
	Title   string `toml:"title" json:"title"`
	// TimeoutSecs bounds one completion including its stream (0 = unbounded)
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// Timeout returns TimeoutSecs as a duration.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSecs) * time.Second
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is "file" (one JSON file per key) or "sqlite"
	Backend string `toml:"backend" json:"backend"`
	// DataDir holds the stored state (empty = config directory)
	DataDir string `toml:"data_dir" json:"data_dir"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr           string  `toml:"addr" json:"addr"`
	RateLimitRPS   float64 `toml:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst int     `toml:"rate_limit_burst" json:"rate_limit_burst"`
}

// LoggingConfig controls the log level and destination.
type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
	// File is appended to instead of stderr when set
	File string `toml:"file" json:"file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version:      DefaultVersion,
		DefaultModel: model.DefaultModel,
		SystemPrompt: model.DefaultSystemPrompt,

		API: APIConfig{
			BaseURL:     DefaultBaseURL,
			Referer:     DefaultReferer,
			Title:       DefaultTitle,
			TimeoutSecs: DefaultTimeoutSecs,
		},

		Storage: StorageConfig{
			Backend: "file",
		},

		Server: ServerConfig{
			Addr:           DefaultServerAddr,
			RateLimitRPS:   DefaultRateLimitRPS,
			RateLimitBurst: DefaultRateLimitBurst,
		},

		Logging: LoggingConfig{
			Level: DefaultLogLevel,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the orchat configuration directory path.
// ORCHAT_HOME overrides the default ~/.orchat.
func ConfigDir() (string, error) {
	if dir := os.Getenv("ORCHAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".orchat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files hold API keys and should be 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	mode := info.Mode().Perm()
	if mode&0077 != 0 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads the config file if present, falling back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return finish(Default())
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return finish(Default())
	}
	return LoadFromPath(path)
}

// LoadTOML decodes a TOML file over cfg.
// SECURITY: Checks and fixes file permissions on load.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		logging.Warnf("CONFIG_PERMISSIONS | path=%s error=%v", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	for _, key := range md.Undecoded() {
		logging.Warnf("CONFIG_UNKNOWN_KEY | path=%s key=%s", path, key.String())
	}
	return fillDefaults(cfg)
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return finish(cfg)
}

// finish applies env overrides, migration, defaults and validation.
func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	if err := cfg.Migrate(); err != nil {
		return nil, fmt.Errorf("config migration failed: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = defaults.DefaultModel
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaults.SystemPrompt
	}

	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = defaults.API.BaseURL
	}
	if cfg.API.Referer == "" {
		cfg.API.Referer = defaults.API.Referer
	}
	if cfg.API.Title == "" {
		cfg.API.Title = defaults.API.Title
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = defaults.Storage.Backend
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaults.Server.Addr
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# orchat configuration file")
	fmt.Fprintln(&buf, "#")
	fmt.Fprintln(&buf, "# Keys listed under [api] are used in turn, one per request.")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if strings.TrimSpace(c.DefaultModel) == "" {
		errs = append(errs, ValidationError{"default_model", "must not be empty"})
	} else if strings.ContainsAny(c.DefaultModel, " \t\n") {
		errs = append(errs, ValidationError{"default_model", "must not contain whitespace"})
	}

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Host == "" {
		errs = append(errs, ValidationError{"api.base_url", "must be an absolute URL"})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, ValidationError{"api.base_url", "scheme must be http or https"})
	}
	for i, key := range c.API.Keys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, ValidationError{fmt.Sprintf("api.keys[%d]", i), "must not be blank"})
		}
	}
	if c.API.TimeoutSecs < 0 || c.API.TimeoutSecs > MaxTimeoutSecs {
		errs = append(errs, ValidationError{"api.timeout_secs", fmt.Sprintf("must be between 0 and %d", MaxTimeoutSecs)})
	}

	switch c.Storage.Backend {
	case "file", "sqlite":
	default:
		errs = append(errs, ValidationError{"storage.backend", "must be file or sqlite"})
	}

	if c.Server.Addr == "" {
		errs = append(errs, ValidationError{"server.addr", "must not be empty"})
	}
	if c.Server.RateLimitRPS < 0 {
		errs = append(errs, ValidationError{"server.rate_limit_rps", "must not be negative"})
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst < 1 {
		errs = append(errs, ValidationError{"server.rate_limit_burst", "must be at least 1 when rate limiting"})
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, ValidationError{"logging.level", "must be debug, info, warn or error"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults sets default values for any missing or zero-value fields that
// the file cannot express.
func (c *Config) SetDefaults() {
	if err := fillDefaults(c); err != nil {
		return
	}
	if c.Storage.DataDir == "" {
		if dir, err := ConfigDir(); err == nil {
			c.Storage.DataDir = dir
		}
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst == 0 {
		c.Server.RateLimitBurst = DefaultRateLimitBurst
	}
}

// Migrate normalizes older spellings.
func (c *Config) Migrate() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "json" {
		c.Storage.Backend = "file"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "warning" {
		c.Logging.Level = "warn"
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	c.API.Keys = cleanKeys(c.API.Keys)
	return nil
}

func cleanKeys(keys []string) []string {
	var out []string
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - ORCHAT_API_KEYS: comma-separated keys, replaces api.keys
//   - OPENROUTER_API_KEY: single key, used when ORCHAT_API_KEYS is unset
//   - ORCHAT_MODEL: overrides default_model
//   - ORCHAT_BASE_URL: overrides api.base_url
//   - ORCHAT_DATA_DIR: overrides storage.data_dir
//   - ORCHAT_STORAGE: overrides storage.backend
//   - ORCHAT_LOG_LEVEL: overrides logging.level
func (c *Config) ApplyEnvOverrides() {
	if keys := os.Getenv("ORCHAT_API_KEYS"); keys != "" {
		c.API.Keys = cleanKeys(strings.Split(keys, ","))
	} else if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		c.API.Keys = []string{strings.TrimSpace(key)}
	}

	if m := os.Getenv("ORCHAT_MODEL"); m != "" {
		c.DefaultModel = m
	}
	if u := os.Getenv("ORCHAT_BASE_URL"); u != "" {
		c.API.BaseURL = u
	}
	if dir := os.Getenv("ORCHAT_DATA_DIR"); dir != "" {
		c.Storage.DataDir = dir
	}
	if backend := os.Getenv("ORCHAT_STORAGE"); backend != "" {
		c.Storage.Backend = backend
	}
	if level := os.Getenv("ORCHAT_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "api.timeout_secs").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type; api.keys takes a comma-separated list.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup walks the struct following toml tags.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				return fmt.Errorf("invalid boolean value: %v", err)
			}
			field.SetBool(boolVal)
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				field.Set(reflect.ValueOf(cleanKeys(strings.Split(strVal, ","))))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"default_model",
		"system_prompt",
		"api.base_url",
		"api.keys",
		"api.referer",
		"api.title",
		"api.timeout_secs",
		"storage.backend",
		"storage.data_dir",
		"server.addr",
		"server.rate_limit_rps",
		"server.rate_limit_burst",
		"logging.level",
		"logging.file",
	}
}

// =============================================================================
// CLONE / STRING
// =============================================================================

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	if c.API.Keys != nil {
		clone.API.Keys = append([]string(nil), c.API.Keys...)
	}
	return &clone
}

// String returns a JSON rendering for debugging.
// SECURITY: API keys are redacted.
func (c *Config) String() string {
	safe := c.Clone()
	for i := range safe.API.Keys {
		safe.API.Keys[i] = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// Redacted returns a copy with API keys replaced, for display.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	for i, k := range safe.API.Keys {
		if len(k) > 8 {
			safe.API.Keys[i] = k[:4] + "..." + k[len(k)-4:]
		} else {
			safe.API.Keys[i] = "[REDACTED]"
		}
	}
	return safe
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			logging.Warnf("CONFIG_LOAD_FAILED | error=%v (using defaults)", err)
			cfg = Default()
			cfg.SetDefaults()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
