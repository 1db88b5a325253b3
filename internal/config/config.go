package config

import (
	"time"

	"github.com/noteboard/realtime/internal/logging"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Session   SessionConfig   `json:"session" yaml:"session"`
	KeepAlive KeepAliveConfig `json:"keep_alive" yaml:"keep_alive"`
	Logging   logging.Config  `json:"logging" yaml:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host" yaml:"host"`
	Port         int           `json:"port" yaml:"port"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// SessionConfig configures how the admitter resolves and verifies the
// session cookie (spec §6, §9).
type SessionConfig struct {
	CookieName string `json:"cookie_name" yaml:"cookie_name"`
	Secret     string `json:"secret" yaml:"secret"`
}

// KeepAliveConfig configures the per-connection keep-alive monitor (spec §4.3).
type KeepAliveConfig struct {
	Interval time.Duration `json:"interval" yaml:"interval"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         3000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Session: SessionConfig{
			CookieName: "HEDGEDOC_SESSION",
		},
		KeepAlive: KeepAliveConfig{
			Interval: 30 * time.Second,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return NewConfigError("server.port", "invalid port number")
	}

	if c.Server.ReadTimeout < 0 {
		return NewConfigError("server.read_timeout", "timeout cannot be negative")
	}

	if c.Server.WriteTimeout < 0 {
		return NewConfigError("server.write_timeout", "timeout cannot be negative")
	}

	if c.Session.CookieName == "" {
		return NewConfigError("session.cookie_name", "cookie name is required")
	}

	if c.Session.Secret == "" {
		return NewConfigError("session.secret", "secret is required")
	}

	if c.KeepAlive.Interval <= 0 {
		return NewConfigError("keep_alive.interval", "interval must be positive")
	}

	return nil
}
