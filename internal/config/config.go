// Package config loads pgquery settings from defaults, the YAML config file,
// PGQUERY_* environment variables and command-line flags, in that order of
// increasing precedence. Only non-secret settings are kept here; the pgAdmin
// password goes to the OS keychain.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"pgquery/cli/internal/backend"
	"pgquery/cli/internal/errors"
	"pgquery/cli/internal/xdg"
)

// EnvPrefix is the prefix of environment variables read into the config.
const EnvPrefix = "PGQUERY_"

// Defaults.
const (
	DefaultServer       = "http://127.0.0.1:5050"
	DefaultPollFallback = time.Second
	DefaultTimeout      = 30 * time.Second
	DefaultLogLevel     = "info"
	DefaultPendingTTL   = 5 * time.Minute
)

// Config holds non-sensitive CLI settings.
type Config struct {
	Server       string         `koanf:"server"`
	Email        string         `koanf:"email"`
	QueryTool    bool           `koanf:"query_tool"`
	PollFallback time.Duration  `koanf:"poll_fallback"`
	Timeout      time.Duration  `koanf:"timeout"`
	LogLevel     string         `koanf:"log_level"`
	Target       backend.Target `koanf:"target"`
	PendingTTL   time.Duration  `koanf:"pending_ttl"`

	// File is the config file that was read, empty when none existed.
	File string `koanf:"-"`
}

// flagKeys maps flag names whose config key is not the snake_case form of the name.
var flagKeys = map[string]string{
	"server-group-id": "target.server_group_id",
	"server-id":       "target.server_id",
	"database-id":     "target.database_id",
}

// Keys lists every settable config key.
var Keys = []string{
	"server", "email", "query_tool", "poll_fallback", "timeout", "log_level",
	"target.server_group_id", "target.server_id", "target.database_id", "pending_ttl",
}

func defaults() map[string]any {
	return map[string]any{
		"server":                 DefaultServer,
		"email":                  "",
		"query_tool":             true,
		"poll_fallback":          DefaultPollFallback.String(),
		"timeout":                DefaultTimeout.String(),
		"log_level":              DefaultLogLevel,
		"target.server_group_id": 1,
		"target.server_id":       1,
		"target.database_id":     1,
		"pending_ttl":            DefaultPendingTTL.String(),
	}
}

// Path returns cfgFile when set, the default XDG config file otherwise.
func Path(cfgFile string) (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return xdg.ConfigFile()
}

// envKey turns PGQUERY_TARGET_SERVER_ID into target.server_id.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if rest, ok := strings.CutPrefix(key, "target_"); ok {
		return "target." + rest
	}
	return key
}

// flagKey turns a changed flag into its config key. Unchanged flags are skipped.
func flagKey(flags *pflag.FlagSet) func(f *pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		if !f.Changed {
			return "", nil
		}
		key, ok := flagKeys[f.Name]
		if !ok {
			key = strings.ReplaceAll(f.Name, "-", "_")
		}
		return key, posflag.FlagVal(flags, f)
	}
}

// Load reads configuration. A missing config file is not an error.
// flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	explicit := cfgFile != ""
	path, err := Path(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	used := ""
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		used = path
	} else if explicit {
		return nil, errors.Wrap(errors.InvalidConfig, "config file not found: "+path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, flagKey(flags)), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the client cannot run without.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New(errors.InvalidConfig, fmt.Sprintf("server must be an absolute URL, got %q", c.Server))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New(errors.InvalidConfig, fmt.Sprintf("unsupported server scheme %q", u.Scheme))
	}
	if c.PollFallback <= 0 {
		return errors.New(errors.InvalidConfig, "poll_fallback must be positive")
	}
	if c.Timeout < 0 {
		return errors.New(errors.InvalidConfig, "timeout must not be negative")
	}
	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug", "info", "warn", "error", "disabled":
	default:
		return errors.New(errors.InvalidConfig, fmt.Sprintf("unknown log_level %q", c.LogLevel))
	}
	return nil
}

// Set writes one key to the config file, keeping the other keys already in it.
// The file is created with 0600 permissions.
func Set(cfgFile, key, value string) (string, error) {
	if !isKey(key) {
		return "", errors.New(errors.InvalidConfig, fmt.Sprintf("unknown config key %q", key))
	}
	path, err := Path(cfgFile)
	if err != nil {
		return "", err
	}

	k := koanf.New(".")
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return "", fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}
	if err := k.Set(key, value); err != nil {
		return "", err
	}

	// Validate the merged result before persisting it.
	check := koanf.New(".")
	if err := check.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return "", err
	}
	if err := check.Merge(k); err != nil {
		return "", err
	}
	var cfg Config
	if err := check.Unmarshal("", &cfg); err != nil {
		return "", errors.Wrap(errors.InvalidConfig, "invalid value for "+key, err)
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	b, err := k.Marshal(yaml.Parser())
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func isKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}
