package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"rescue-map/pkg/database"
)

// EnvConfigPath names the environment variable holding the config file path
const EnvConfigPath = "RESCUE_MAP_CONFIG"

// DefaultConfigPath is read when EnvConfigPath is unset. A missing file is not an error.
const DefaultConfigPath = "config.yaml"

// Config is the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Map      MapConfig      `yaml:"map"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// DatabaseConfig configures the optional snapshot store
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// PostgresConfig converts the section into a connection pool configuration
func (d DatabaseConfig) PostgresConfig() *database.Config {
	return &database.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Database,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
	}
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// MapConfig configures which map is loaded and where renderings go
type MapConfig struct {
	Path      string `yaml:"path"`
	OutputDir string `yaml:"output_dir"`
	Choice    int    `yaml:"choice"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "rescue",
			Database:        "rescue_map",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Logging: LoggingConfig{Level: "info"},
		Map: MapConfig{
			Path:      "data/saved_map.txt",
			OutputDir: ".",
			Choice:    3,
		},
	}
}

// LoadConfig loads the file named by RESCUE_MAP_CONFIG (or config.yaml if
// present) and applies environment overrides.
func LoadConfig() (*Config, error) {
	path := os.Getenv(EnvConfigPath)
	required := path != ""
	if !required {
		path = DefaultConfigPath
	}

	cfg, err := Load(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			cfg = Default()
		} else {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads a YAML file on top of the defaults
func Load(path string) (*Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("RESCUE_MAP_SERVER_HOST", &c.Server.Host)
	str("RESCUE_MAP_DB_HOST", &c.Database.Host)
	str("RESCUE_MAP_DB_USER", &c.Database.User)
	str("RESCUE_MAP_DB_PASSWORD", &c.Database.Password)
	str("RESCUE_MAP_DB_NAME", &c.Database.Database)
	str("RESCUE_MAP_DB_SSLMODE", &c.Database.SSLMode)
	str("RESCUE_MAP_LOG_LEVEL", &c.Logging.Level)
	str("RESCUE_MAP_PATH", &c.Map.Path)
	str("RESCUE_MAP_OUTPUT_DIR", &c.Map.OutputDir)

	for key, dst := range map[string]*int{
		"RESCUE_MAP_SERVER_PORT": &c.Server.Port,
		"RESCUE_MAP_DB_PORT":     &c.Database.Port,
		"RESCUE_MAP_CHOICE":      &c.Map.Choice,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup("RESCUE_MAP_DB_ENABLED"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RESCUE_MAP_DB_ENABLED: %w", err)
		}
		c.Database.Enabled = enabled
	}
	return nil
}

// Validate checks the configuration for values the binaries cannot use
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Map.Path == "" {
		errs = append(errs, errors.New("map.path is required"))
	}
	if c.Map.Choice < 1 || c.Map.Choice > 3 {
		errs = append(errs, fmt.Errorf("map.choice %d must be 1, 2 or 3", c.Map.Choice))
	}
	if c.Database.Enabled {
		if c.Database.Host == "" || c.Database.Database == "" {
			errs = append(errs, errors.New("database.host and database.database are required when the database is enabled"))
		}
		if c.Database.MaxOpenConns <= 0 {
			errs = append(errs, fmt.Errorf("database.max_open_conns %d must be positive", c.Database.MaxOpenConns))
		}
	}
	return errors.Join(errs...)
}
