package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// envPrefix is the prefix recognised for environment overrides. A setting
// like database.port is overridden by APP__DATABASE__PORT.
const envPrefix = "APP__"

// Config holds the settings for both the API and gateway processes. Values
// come from an optional YAML base file (path in APP_CONFIG) with environment
// overrides applied on top.
type Config struct {
	Application Application `yaml:"application"`
	Database    Database    `yaml:"database"`
	Broker      Broker      `yaml:"broker"`
}

// Application holds the HTTP listener and token-signing settings.
type Application struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	BaseURL   string `yaml:"base_url"`
	JWTSecret string `yaml:"jwt_secret"`
}

// Database holds the PostgreSQL connection settings.
type Database struct {
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	DatabaseName string `yaml:"database_name"`
	RequireSSL   bool   `yaml:"require_ssl"`
}

// Broker holds the event broker connection settings. Queue names the stream
// the API publishes to and the gateway consumes from.
type Broker struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Queue    string `yaml:"queue"`
}

// Addr returns the application listen address in host:port form.
func (a Application) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// DSN returns a PostgreSQL connection string. RequireSSL maps to
// sslmode=require, otherwise SSL is disabled.
func (d Database) DSN() string {
	sslmode := "disable"
	if d.RequireSSL {
		sslmode = "require"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DatabaseName, sslmode)
}

// Addr returns the broker address in host:port form.
func (b Broker) Addr() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

// defaults returns the configuration used when neither the base file nor the
// environment overrides a setting. The defaults match docker-compose.
func defaults() *Config {
	return &Config{
		Application: Application{
			Host:    "0.0.0.0",
			Port:    8000,
			BaseURL: "http://localhost:8000",
		},
		Database: Database{
			Username:     "accord",
			Password:     "password",
			Host:         "localhost",
			Port:         5432,
			DatabaseName: "accord",
		},
		Broker: Broker{
			Host:  "localhost",
			Port:  6379,
			Queue: "accord.events",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML base file
// named by APP_CONFIG, and APP__-prefixed environment overrides, in that
// order. It returns an error listing every invalid value at once.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("APP_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	p := &parser{}

	p.str("APPLICATION__HOST", &cfg.Application.Host)
	p.int("APPLICATION__PORT", &cfg.Application.Port)
	p.str("APPLICATION__BASE_URL", &cfg.Application.BaseURL)
	p.str("APPLICATION__JWT_SECRET", &cfg.Application.JWTSecret)

	p.str("DATABASE__USERNAME", &cfg.Database.Username)
	p.str("DATABASE__PASSWORD", &cfg.Database.Password)
	p.str("DATABASE__HOST", &cfg.Database.Host)
	p.int("DATABASE__PORT", &cfg.Database.Port)
	p.str("DATABASE__DATABASE_NAME", &cfg.Database.DatabaseName)
	p.bool("DATABASE__REQUIRE_SSL", &cfg.Database.RequireSSL)

	p.str("BROKER__USERNAME", &cfg.Broker.Username)
	p.str("BROKER__PASSWORD", &cfg.Broker.Password)
	p.str("BROKER__HOST", &cfg.Broker.Host)
	p.int("BROKER__PORT", &cfg.Broker.Port)
	p.str("BROKER__QUEUE", &cfg.Broker.Queue)

	if parseErr := errors.Join(p.errs...); parseErr != nil {
		return nil, parseErr
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	if c.Application.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("application.jwt_secret is required"))
	}
	if c.Application.Port < 1 || c.Application.Port > 65535 {
		errs = append(errs, fmt.Errorf("application.port must be between 1 and 65535"))
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Errorf("database.port must be between 1 and 65535"))
	}
	if c.Broker.Port < 1 || c.Broker.Port > 65535 {
		errs = append(errs, fmt.Errorf("broker.port must be between 1 and 65535"))
	}
	if c.Broker.Queue == "" {
		errs = append(errs, fmt.Errorf("broker.queue is required"))
	}

	return errors.Join(errs...)
}

// parser collects parse errors so Load can report all invalid values at once.
type parser struct {
	errs []error
}

func (p *parser) str(key string, dst *string) {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		*dst = v
	}
}

func (p *parser) int(key string, dst *int) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid value for %s%s: %q (expected integer)", envPrefix, key, v))
		return
	}
	*dst = n
}

func (p *parser) bool(key string, dst *bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid value for %s%s: %q (expected boolean)", envPrefix, key, v))
		return
	}
	*dst = b
}
