package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultPort      = 6667
	DefaultTimeout   = 30 * time.Second
	DefaultDataDir   = "./data"
	DefaultLogLevel  = "info"
	DefaultOperModes = "+acjknoqtuxv"
)

// Config holds the IRC daemon connection parameters and bridge settings.
// It is read once at startup and treated as immutable afterwards.
type Config struct {
	Server     string `yaml:"server"`
	Port       int    `yaml:"port"`
	WebIRCPass string `yaml:"webirc_pass"`

	// OperName/OperPass are used for the OPER command during password resets.
	OperName string `yaml:"oper_name"`
	OperPass string `yaml:"oper_pass"`
	// AdminUser/AdminPass are the SASL account the bridge authenticates as.
	AdminUser string `yaml:"admin_user"`
	AdminPass string `yaml:"admin_pass"`
	// OperModes is the user mode string the daemon sets once OPER succeeds.
	OperModes string `yaml:"oper_modes"`

	Timeout     time.Duration `yaml:"timeout"`
	DataDir     string        `yaml:"data_dir"`
	LogLevel    string        `yaml:"log_level"`
	MetricsFile string        `yaml:"metrics_file"`
}

// Error reports an invalid or missing configuration value.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Load reads and parses a YAML configuration file, overlays the
// environment and fills in defaults. A missing file is not an error;
// the environment alone may carry the whole configuration.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := LoadFromEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.OperModes == "" {
		c.OperModes = DefaultOperModes
	}
}

// Validate checks the fields every operation needs.
func (c *Config) Validate() error {
	if c.Server == "" {
		return &Error{Field: "server", Message: "IRC daemon host is required"}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &Error{Field: "port", Message: fmt.Sprintf("%d out of range 1-65535", c.Port)}
	}
	if c.WebIRCPass == "" {
		return &Error{Field: "webirc_pass", Message: "WEBIRC password is required"}
	}
	if c.Timeout < 0 {
		return &Error{Field: "timeout", Message: "must not be negative"}
	}
	return nil
}

// ValidateOperator checks the credentials needed for password resets.
func (c *Config) ValidateOperator() error {
	if c.AdminUser == "" {
		return &Error{Field: "admin_user", Message: "SASL admin account is required for password changes"}
	}
	if c.AdminPass == "" {
		return &Error{Field: "admin_pass", Message: "SASL admin password is required for password changes"}
	}
	return nil
}
