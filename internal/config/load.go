package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/muurk/wifiprov/internal/provision"
	"github.com/muurk/wifiprov/internal/radio"
)

const (
	appName    = "wifiprov"
	configFile = "config.yaml"

	// EnvPrefix prefixes environment overrides, e.g. WIFIPROV_RADIO_DRIVER.
	EnvPrefix = "WIFIPROV"

	// SystemConfigPath is read when no user config exists.
	SystemConfigPath = "/etc/wifiprov/config.yaml"
)

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// FlagKeys maps command line flag names to configuration keys. Flags that
// are not defined on the flag set are ignored.
var FlagKeys = map[string]string{
	"listen":          "server.listen",
	"driver":          "radio.driver",
	"interface":       "radio.interface",
	"scan-timeout":    "session.scan_timeout",
	"connect-timeout": "session.connect_timeout",
	"hotspot":         "access_point.start_on_boot",
	"mqtt-broker":     "mqtt.broker",
	"mdns":            "discovery.enabled",
	"log-level":       "log.level",
	"log-format":      "log.format",
}

// GetConfigDir returns the OS-appropriate configuration directory for the application.
// This follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/wifiprov or $HOME/.config/wifiprov
//   - macOS: $HOME/.config/wifiprov
//   - Windows: %LOCALAPPDATA%\wifiprov
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, appName), nil
		}
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(userProfile, "AppData", "Local", appName), nil

	default:
		if runtime.GOOS != "darwin" {
			if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
				return filepath.Join(xdg, appName), nil
			}
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil
	}
}

// GetConfigPath returns the full path to the user configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// findConfigFile returns the first existing file among the user and system
// locations, or "" when there is none.
func findConfigFile() string {
	candidates := []string{}
	if p, err := GetConfigPath(); err == nil {
		candidates = append(candidates, p)
	}
	candidates = append(candidates, SystemConfigPath)

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.ws_path", d.Server.WSPath)
	v.SetDefault("server.metrics", d.Server.Metrics)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("radio.driver", d.Radio.Driver)
	v.SetDefault("radio.interface", d.Radio.Interface)
	v.SetDefault("radio.poll_interval", d.Radio.PollInterval)
	v.SetDefault("radio.link_source", d.Radio.LinkSource)
	v.SetDefault("radio.mock_latency", d.Radio.MockLatency)
	v.SetDefault("radio.fail_password", d.Radio.FailPassword)

	v.SetDefault("session.scan_timeout", d.Session.ScanTimeout)
	v.SetDefault("session.connect_timeout", d.Session.ConnectTimeout)
	v.SetDefault("session.sort_by", d.Session.SortBy)

	v.SetDefault("access_point.connection", d.AccessPoint.Connection)
	v.SetDefault("access_point.start_on_boot", d.AccessPoint.StartOnBoot)
	v.SetDefault("access_point.settle", d.AccessPoint.Settle)
	v.SetDefault("access_point.restore_on_failure", d.AccessPoint.RestoreOnFailure)

	v.SetDefault("gateway.allowed_origins", d.Gateway.AllowedOrigins)
	v.SetDefault("gateway.send_buffer", d.Gateway.SendBuffer)
	v.SetDefault("gateway.rate_limit", d.Gateway.RateLimit)
	v.SetDefault("gateway.rate_burst", d.Gateway.RateBurst)

	v.SetDefault("discovery.enabled", d.Discovery.Enabled)
	v.SetDefault("discovery.instance", d.Discovery.Instance)
	v.SetDefault("discovery.interfaces", d.Discovery.Interfaces)

	v.SetDefault("mqtt.broker", d.MQTT.Broker)
	v.SetDefault("mqtt.client_id", d.MQTT.ClientID)
	v.SetDefault("mqtt.username", d.MQTT.Username)
	v.SetDefault("mqtt.password", d.MQTT.Password)
	v.SetDefault("mqtt.topic_prefix", d.MQTT.TopicPrefix)
	v.SetDefault("mqtt.qos", d.MQTT.QoS)
	v.SetDefault("mqtt.retain", d.MQTT.Retain)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load builds the configuration from, in increasing precedence: defaults,
// the YAML file at path (or the first file found in the user and system
// locations), WIFIPROV_* environment variables, and changed flags.
// It returns the file that was read, if any.
func Load(path string, flags *pflag.FlagSet) (*Config, string, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, path, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, path, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, path, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	if err := validateListen(c.Server.Listen); err != nil {
		errs = append(errs, err)
	}
	if !strings.HasPrefix(c.Server.WSPath, "/") {
		errs = append(errs, fmt.Errorf("server.ws_path must start with '/': %q", c.Server.WSPath))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	if _, err := radio.ParseDriver(c.Radio.Driver); err != nil {
		errs = append(errs, fmt.Errorf("radio.driver: %w", err))
	}
	if c.Radio.PollInterval <= 0 {
		errs = append(errs, errors.New("radio.poll_interval must be positive"))
	}
	switch c.Radio.LinkSource {
	case "driver", "nl80211":
	default:
		errs = append(errs, fmt.Errorf("radio.link_source must be driver or nl80211, got %q", c.Radio.LinkSource))
	}

	if c.Session.ScanTimeout <= 0 {
		errs = append(errs, errors.New("session.scan_timeout must be positive"))
	}
	if c.Session.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("session.connect_timeout must be positive"))
	}
	if _, err := provision.ParseSortOrder(c.Session.SortBy); err != nil {
		errs = append(errs, fmt.Errorf("session.sort_by: %w", err))
	}

	if c.AccessPoint.StartOnBoot && c.AccessPoint.Connection == "" {
		errs = append(errs, errors.New("access_point.start_on_boot requires access_point.connection"))
	}

	if c.Gateway.SendBuffer <= 0 {
		errs = append(errs, errors.New("gateway.send_buffer must be positive"))
	}
	if c.Gateway.RateLimit < 0 {
		errs = append(errs, errors.New("gateway.rate_limit must not be negative"))
	}
	if c.Gateway.RateLimit > 0 && c.Gateway.RateBurst < 1 {
		errs = append(errs, errors.New("gateway.rate_burst must be at least 1"))
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func validateListen(addr string) error {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("server.listen %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("server.listen %q: port must be 1-65535", addr)
	}
	return nil
}

// Save writes cfg to path as YAML.
// Performs an atomic write to prevent corruption on crash.
func Save(cfg *Config, path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# wifiprov configuration file
#
# Every key can be overridden with an environment variable, e.g.
# WIFIPROV_RADIO_DRIVER=mock or WIFIPROV_SESSION_CONNECT_TIMEOUT=45s.
#
# Location: ` + path + `

`)
	data = append(header, data...)

	// Write to temporary file first (atomic write)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
