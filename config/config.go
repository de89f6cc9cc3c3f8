/*
Package config loads the service configuration.

SOURCES (highest precedence first):
  1. Command-line flags      --port=9090
  2. Environment variables   WORKFORCE_HUB_PORT=9090
  3. Config file             workforce-hub.yaml in ./ or /config, or --config
  4. Defaults below

KEYS:
  port             HTTP port                                  8080
  db               SQLite path for the sandbox backend        workforce.db
  backend_url      HR backend base URL, empty = sandbox       ""
  backend_timeout  Per-request timeout to the backend         10s
  log_level        debug, info, warn, error                   info
  session_ttl      Idle time before a session is closed       30m
  sweep_interval   How often idle sessions are swept          1m
  forms_dir        Directory of form documents, empty = embedded
  allowed_origins  CORS / WebSocket origins (comma separated)
*/
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/warp/workforce-hub/logger"
)

const _envPrefix = "workforce_hub"

type Config struct {
	Port           int
	DBPath         string
	BackendURL     string
	BackendTimeout time.Duration
	LogLevel       string
	SessionTTL     time.Duration
	SweepInterval  time.Duration
	FormsDir       string
	AllowedOrigins []string

	// ConfigFile is the file that was read, if any.
	ConfigFile string
}

// UseSandbox reports whether submissions go to the in-process backend.
func (c Config) UseSandbox() bool {
	return c.BackendURL == ""
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Load parses args (without the program name) and merges env, file and
// defaults.
func Load(args []string) (Config, error) {
	flags := pflag.NewFlagSet("workforce-hub", pflag.ContinueOnError)
	configFile := flags.String("config", "", "Path to a config file")
	flags.Int("port", 8080, "HTTP server port")
	flags.String("db", "workforce.db", "SQLite database path (\":memory:\" for in-memory)")
	flags.String("backend_url", "", "HR backend base URL (empty: built-in sandbox)")
	flags.Duration("backend_timeout", 10*time.Second, "HR backend request timeout")
	flags.String("log_level", "info", "Log level (debug, info, warn, error)")
	flags.Duration("session_ttl", 30*time.Minute, "Idle time before a form session is closed")
	flags.Duration("sweep_interval", time.Minute, "How often idle sessions are swept")
	flags.String("forms_dir", "", "Directory of form documents (empty: embedded forms)")
	flags.StringSlice("allowed_origins", nil, "Allowed CORS origins")

	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(_envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return Config{}, err
	}

	if *configFile != "" {
		v.SetConfigFile(*configFile)
	} else {
		v.SetConfigName("workforce-hub")
		v.AddConfigPath(".")
		v.AddConfigPath("/config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if *configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		Port:           v.GetInt("port"),
		DBPath:         v.GetString("db"),
		BackendURL:     strings.TrimSpace(v.GetString("backend_url")),
		BackendTimeout: v.GetDuration("backend_timeout"),
		LogLevel:       v.GetString("log_level"),
		SessionTTL:     v.GetDuration("session_ttl"),
		SweepInterval:  v.GetDuration("sweep_interval"),
		FormsDir:       v.GetString("forms_dir"),
		AllowedOrigins: splitList(v.GetStringSlice("allowed_origins")),
		ConfigFile:     v.ConfigFileUsed(),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and formats.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DBPath == "" && c.UseSandbox() {
		errs = append(errs, errors.New("db is required when backend_url is empty"))
	}
	if c.BackendURL != "" {
		u, err := url.Parse(c.BackendURL)
		if err != nil || !u.IsAbs() {
			errs = append(errs, fmt.Errorf("backend_url %q is not an absolute URL", c.BackendURL))
		}
	}
	if c.BackendTimeout <= 0 {
		errs = append(errs, errors.New("backend_timeout must be positive"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session_ttl must be positive"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep_interval must be positive"))
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// splitList accepts both repeated values and a single comma separated one
// (the form environment variables take).
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
