package config

// loader.go - environment overlay.
//
// Precedence order (highest wins):
//   1. Environment variables  (this file)
//   2. YAML config file
//   3. Defaults

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// LoadFromEnv overlays environment variables onto cfg. Only non-empty
// variables override the existing value. The names match the ones the
// web backend deployment already exports. A value that does not parse is
// an error rather than a silent fallback.
func LoadFromEnv(cfg *Config) error {
	if v := os.Getenv("IRCD_HOST"); v != "" {
		cfg.Server = v
	}
	if v := os.Getenv("IRCD_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return &Error{Field: "port", Message: fmt.Sprintf("IRCD_PORT=%q is not a valid port", v)}
		}
		cfg.Port = port
	}
	if v := os.Getenv("WEBIRC_PASS"); v != "" {
		cfg.WebIRCPass = v
	}
	if v := os.Getenv("IRCD_OPER_USER"); v != "" {
		cfg.OperName = v
	}
	if v := os.Getenv("IRCD_OPER_PASS"); v != "" {
		cfg.OperPass = v
	}
	if v := os.Getenv("IRCD_ADMIN_USER"); v != "" {
		cfg.AdminUser = v
	}
	if v := os.Getenv("IRCD_ADMIN_PASS"); v != "" {
		cfg.AdminPass = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("IRCBRIDGE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return &Error{Field: "timeout", Message: fmt.Sprintf("IRCBRIDGE_TIMEOUT=%q is not a valid duration", v)}
		}
		cfg.Timeout = d
	}
	if v := os.Getenv("IRCBRIDGE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	return nil
}
