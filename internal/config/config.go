// Package config loads the sqlstream YAML configuration.
//
// Values may reference environment variables as ${NAME}; they are expanded
// before parsing. Any other '$' is kept as written, so passwords and
// dollar-quoted SQL survive. SQLSTREAM_DSN and SQLSTREAM_LOG_LEVEL override
// the file.
package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"regexp"

	"go.yaml.in/yaml/v3"

	"github.com/koustreak/sqlstream/internal/database"
	"github.com/koustreak/sqlstream/internal/errs"
	"github.com/koustreak/sqlstream/internal/filestore"
	"github.com/koustreak/sqlstream/internal/logger"
)

var envRef = regexp.MustCompile(`\$\{[A-Za-z_][A-Za-z0-9_]*\}`)

// expandEnv replaces ${NAME} with the value of NAME. Unset names expand to
// the empty string.
func expandEnv(data []byte) string {
	return string(envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		return []byte(os.Getenv(string(ref[2 : len(ref)-1])))
	}))
}

// Environment overrides.
const (
	EnvDSN      = "SQLSTREAM_DSN"
	EnvLogLevel = "SQLSTREAM_LOG_LEVEL"
)

// Config is the root of the configuration file.
type Config struct {
	Database  database.Config  `yaml:"database"`
	Stream    StreamConfig     `yaml:"stream"`
	Logger    logger.Config    `yaml:"logger"`
	Filestore filestore.Config `yaml:"filestore"`
	Server    ServerConfig     `yaml:"server"`
}

// StreamConfig tunes the flows and sinks built by the CLI and server.
type StreamConfig struct {
	Parallelism int `yaml:"parallelism"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`

	// AllowExec enables POST /exec. Off by default since it runs arbitrary
	// statements with the session's privileges.
	AllowExec bool `yaml:"allow_exec"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Database: *database.DefaultConfig(""),
		Stream:   StreamConfig{Parallelism: 1},
		Logger:   *logger.DefaultConfig(),
		Server:   ServerConfig{Addr: ":8080"},
	}
}

// Load reads path on top of Default, applies environment overrides, then
// the given overrides (command-line flags), and validates the result. An
// empty path skips the file.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, errs.Wrap(errs.ErrKindNotFound, "config file not found", err)
			}
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to read config file", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	for _, override := range overrides {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse is Load for in-memory YAML. It does not apply overrides.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	expanded := expandEnv(data)

	dec := yaml.NewDecoder(bytes.NewBufferString(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return errs.Wrap(errs.ErrKindInvalidInput, "invalid config file", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if dsn := os.Getenv(EnvDSN); dsn != "" {
		c.Database.DSN = dsn
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Logger.Level = level
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if c.Stream.Parallelism < 1 {
		return errs.Newf(errs.ErrKindInvalidInput, "stream.parallelism must be >= 1, got %d", c.Stream.Parallelism)
	}
	return c.Filestore.Validate()
}
