// Package config resolves client settings.
//
// Precedence, lowest first: built-in defaults, <config-dir>/config.yaml, a dotenv file, the
// process environment, command-line flags. The config dir itself comes from --config-dir,
// RT_CONFIG_DIR (process env or dotenv) or $XDG_CONFIG_HOME/retreats.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultAPIURL    = "http://localhost:5000"
	DefaultPageSize  = 5
	DefaultDebounce  = 400 * time.Millisecond
	DefaultTimeout   = 10 * time.Second
	DefaultNotifyTTL = 5 * time.Second
	DefaultLogLevel  = "info"
	DefaultEnvFile   = ".env"
)

// FileName is the optional YAML file inside the config dir.
const FileName = "config.yaml"

// Config is the resolved client configuration.
type Config struct {
	APIURL    string        `yaml:"api_url"`
	PageSize  int           `yaml:"page_size"`
	Debounce  time.Duration `yaml:"debounce"`
	Timeout   time.Duration `yaml:"timeout"`
	NotifyTTL time.Duration `yaml:"notify_ttl"`
	LogLevel  string        `yaml:"log_level"`
	// LogFile empty means the command decides (stderr for one-shot commands).
	LogFile string `yaml:"log_file"`

	// Dir holds the session files and config.yaml.
	Dir string `yaml:"-"`
}

// Default returns the built-in configuration with Dir resolved from getenv.
func Default(getenv func(string) string) Config {
	return Config{
		APIURL:    DefaultAPIURL,
		PageSize:  DefaultPageSize,
		Debounce:  DefaultDebounce,
		Timeout:   DefaultTimeout,
		NotifyTTL: DefaultNotifyTTL,
		LogLevel:  DefaultLogLevel,
		Dir:       DefaultDir(getenv),
	}
}

// DefaultDir is $XDG_CONFIG_HOME/retreats, falling back to ~/.config/retreats.
func DefaultDir(getenv func(string) string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "retreats")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "retreats")
}

type flagValues struct {
	api       string
	dir       string
	envFile   string
	pageSize  int
	debounce  time.Duration
	timeout   time.Duration
	notifyTTL time.Duration
	logLevel  string
	logFile   string
}

func newFlagSet(v *flagValues) *pflag.FlagSet {
	fs := pflag.NewFlagSet("rt", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.StringVar(&v.api, "api", DefaultAPIURL, "retreat API base URL")
	fs.StringVar(&v.dir, "config-dir", "", "directory for session files and config.yaml")
	fs.StringVar(&v.envFile, "env-file", DefaultEnvFile, "dotenv file with RT_* variables")
	fs.IntVar(&v.pageSize, "page-size", DefaultPageSize, "listings per page")
	fs.DurationVar(&v.debounce, "debounce", DefaultDebounce, "search input quiet period")
	fs.DurationVar(&v.timeout, "timeout", DefaultTimeout, "per-request timeout")
	fs.DurationVar(&v.notifyTTL, "notify-ttl", DefaultNotifyTTL, "how long notifications stay visible")
	fs.StringVar(&v.logLevel, "log-level", DefaultLogLevel, "debug|info|warn|error")
	fs.StringVar(&v.logFile, "log-file", "", "write logs to this file")
	return fs
}

// Usage returns the global flag help text.
func Usage() string {
	return newFlagSet(&flagValues{}).FlagUsages()
}

// Load parses global flags from args and layers the other sources under them. It returns the
// arguments left after the global flags (the subcommand and its own flags). getenv may be nil.
// pflag.ErrHelp is returned as-is for -h/--help.
func Load(args []string, getenv func(string) string) (Config, []string, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	var fv flagValues
	fset := newFlagSet(&fv)
	fset.SetOutput(io.Discard)
	if err := fset.Parse(args); err != nil {
		return Config{}, nil, err
	}

	dotenv, err := readDotenv(fv.envFile, fset.Changed("env-file"))
	if err != nil {
		return Config{}, nil, err
	}
	lookup := func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}

	cfg := Default(lookup)
	switch {
	case fset.Changed("config-dir"):
		cfg.Dir = fv.dir
	case lookup("RT_CONFIG_DIR") != "":
		cfg.Dir = lookup("RT_CONFIG_DIR")
	}

	if err := cfg.mergeFile(filepath.Join(cfg.Dir, FileName)); err != nil {
		return Config{}, nil, err
	}
	if err := cfg.mergeEnv(lookup); err != nil {
		return Config{}, nil, err
	}
	cfg.mergeFlags(fset, fv)

	if err := cfg.Validate(); err != nil {
		return Config{}, nil, err
	}
	return cfg, fset.Args(), nil
}

// Validate checks ranges.
func (c Config) Validate() error {
	switch {
	case c.APIURL == "":
		return errors.New("config: api url is empty")
	case c.PageSize <= 0:
		return fmt.Errorf("config: page size must be positive, got %d", c.PageSize)
	case c.Debounce <= 0, c.Timeout <= 0, c.NotifyTTL <= 0:
		return errors.New("config: durations must be positive")
	}
	return nil
}

func readDotenv(path string, explicit bool) (map[string]string, error) {
	m, err := godotenv.Read(path)
	if err == nil {
		return m, nil
	}
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return map[string]string{}, nil
	}
	return nil, fmt.Errorf("config: dotenv %s: %w", path, err)
}

func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var fileCfg Config
	if err := yaml.Unmarshal(b, &fileCfg); err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}
	if fileCfg.APIURL != "" {
		c.APIURL = fileCfg.APIURL
	}
	if fileCfg.PageSize != 0 {
		c.PageSize = fileCfg.PageSize
	}
	if fileCfg.Debounce != 0 {
		c.Debounce = fileCfg.Debounce
	}
	if fileCfg.Timeout != 0 {
		c.Timeout = fileCfg.Timeout
	}
	if fileCfg.NotifyTTL != 0 {
		c.NotifyTTL = fileCfg.NotifyTTL
	}
	if fileCfg.LogLevel != "" {
		c.LogLevel = fileCfg.LogLevel
	}
	if fileCfg.LogFile != "" {
		c.LogFile = fileCfg.LogFile
	}
	return nil
}

func (c *Config) mergeEnv(lookup func(string) string) error {
	if v := lookup("RT_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := lookup("RT_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: RT_PAGE_SIZE: %w", err)
		}
		c.PageSize = n
	}
	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{"RT_DEBOUNCE", &c.Debounce},
		{"RT_TIMEOUT", &c.Timeout},
		{"RT_NOTIFY_TTL", &c.NotifyTTL},
	} {
		v := lookup(d.key)
		if v == "" {
			continue
		}
		dur, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", d.key, err)
		}
		*d.dst = dur
	}
	if v := lookup("RT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := lookup("RT_LOG_FILE"); v != "" {
		c.LogFile = v
	}
	return nil
}

func (c *Config) mergeFlags(fset *pflag.FlagSet, fv flagValues) {
	if fset.Changed("api") {
		c.APIURL = fv.api
	}
	if fset.Changed("page-size") {
		c.PageSize = fv.pageSize
	}
	if fset.Changed("debounce") {
		c.Debounce = fv.debounce
	}
	if fset.Changed("timeout") {
		c.Timeout = fv.timeout
	}
	if fset.Changed("notify-ttl") {
		c.NotifyTTL = fv.notifyTTL
	}
	if fset.Changed("log-level") {
		c.LogLevel = fv.logLevel
	}
	if fset.Changed("log-file") {
		c.LogFile = fv.logFile
	}
}
