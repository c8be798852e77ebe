package config

import (
	"time"

	"github.com/muurk/wifiprov/internal/gateway"
	"github.com/muurk/wifiprov/internal/notify"
	"github.com/muurk/wifiprov/internal/provision"
	"github.com/muurk/wifiprov/internal/radio"
)

// Config is the complete server configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Radio       RadioConfig       `mapstructure:"radio" yaml:"radio"`
	Session     SessionConfig     `mapstructure:"session" yaml:"session"`
	AccessPoint AccessPointConfig `mapstructure:"access_point" yaml:"access_point"`
	Gateway     GatewayConfig     `mapstructure:"gateway" yaml:"gateway"`
	Discovery   DiscoveryConfig   `mapstructure:"discovery" yaml:"discovery"`
	MQTT        MQTTConfig        `mapstructure:"mqtt" yaml:"mqtt"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Listen          string        `mapstructure:"listen" yaml:"listen"`                     // e.g. ":8080"
	WSPath          string        `mapstructure:"ws_path" yaml:"ws_path"`                   // WebSocket endpoint
	Metrics         bool          `mapstructure:"metrics" yaml:"metrics"`                   // expose /metrics
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"` // graceful shutdown budget
}

// RadioConfig selects the radio backend.
type RadioConfig struct {
	Driver       string        `mapstructure:"driver" yaml:"driver"` // nmcli, wpa or mock
	Interface    string        `mapstructure:"interface" yaml:"interface"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	LinkSource   string        `mapstructure:"link_source" yaml:"link_source"` // driver or nl80211

	// Mock driver only
	MockLatency  time.Duration `mapstructure:"mock_latency" yaml:"mock_latency"`
	FailPassword string        `mapstructure:"fail_password" yaml:"fail_password"`
}

// SessionConfig holds the request timeouts.
type SessionConfig struct {
	ScanTimeout    time.Duration `mapstructure:"scan_timeout" yaml:"scan_timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	SortBy         string        `mapstructure:"sort_by" yaml:"sort_by"` // signal or ssid
}

// AccessPointConfig describes the NetworkManager hotspot used for setup.
type AccessPointConfig struct {
	Connection       string        `mapstructure:"connection" yaml:"connection"`
	StartOnBoot      bool          `mapstructure:"start_on_boot" yaml:"start_on_boot"`
	Settle           time.Duration `mapstructure:"settle" yaml:"settle"`
	RestoreOnFailure bool          `mapstructure:"restore_on_failure" yaml:"restore_on_failure"`
}

// GatewayConfig tunes the WebSocket gateway.
type GatewayConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	SendBuffer     int      `mapstructure:"send_buffer" yaml:"send_buffer"`
	RateLimit      float64  `mapstructure:"rate_limit" yaml:"rate_limit"` // events per second per client
	RateBurst      int      `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// DiscoveryConfig controls mDNS advertisement.
type DiscoveryConfig struct {
	Enabled    bool     `mapstructure:"enabled" yaml:"enabled"`
	Instance   string   `mapstructure:"instance" yaml:"instance"`
	Interfaces []string `mapstructure:"interfaces" yaml:"interfaces"`
}

// MQTTConfig enables outcome notifications when Broker is set.
type MQTTConfig struct {
	Broker      string `mapstructure:"broker" yaml:"broker"` // e.g. tcp://192.168.1.10:1883
	ClientID    string `mapstructure:"client_id" yaml:"client_id"`
	Username    string `mapstructure:"username" yaml:"username"`
	Password    string `mapstructure:"password" yaml:"password"`
	TopicPrefix string `mapstructure:"topic_prefix" yaml:"topic_prefix"`
	QoS         int    `mapstructure:"qos" yaml:"qos"`
	Retain      bool   `mapstructure:"retain" yaml:"retain"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // console or json
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:          ":8080",
			WSPath:          "/ws",
			Metrics:         true,
			ShutdownTimeout: 10 * time.Second,
		},
		Radio: RadioConfig{
			Driver:       string(radio.DriverNMCLI),
			Interface:    "wlan0",
			PollInterval: time.Second,
			LinkSource:   "driver",
			MockLatency:  500 * time.Millisecond,
			FailPassword: radio.DefaultFailPassword,
		},
		Session: SessionConfig{
			ScanTimeout:    provision.DefaultScanTimeout,
			ConnectTimeout: provision.DefaultConnectTimeout,
			SortBy:         "signal",
		},
		AccessPoint: AccessPointConfig{
			Connection:       "Hotspot",
			Settle:           2 * time.Second,
			RestoreOnFailure: true,
		},
		Gateway: GatewayConfig{
			AllowedOrigins: []string{},
			SendBuffer:     gateway.DefaultConfig().SendBuffer,
			RateLimit:      gateway.DefaultConfig().RateLimit,
			RateBurst:      gateway.DefaultConfig().RateBurst,
		},
		Discovery: DiscoveryConfig{
			Enabled:    true,
			Interfaces: []string{},
		},
		MQTT: MQTTConfig{
			TopicPrefix: "wifiprov",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.MQTT.Password != "" {
		cp.MQTT.Password = "********"
	}
	return &cp
}

// SessionOptions converts the session section.
func (c *Config) SessionOptions() provision.Config {
	order, _ := provision.ParseSortOrder(c.Session.SortBy)
	return provision.Config{
		ScanTimeout:    c.Session.ScanTimeout,
		ConnectTimeout: c.Session.ConnectTimeout,
		SortOrder:      order,
	}
}

// GatewayOptions converts the gateway section.
func (c *Config) GatewayOptions() gateway.Config {
	return gateway.Config{
		AllowedOrigins: c.Gateway.AllowedOrigins,
		SendBuffer:     c.Gateway.SendBuffer,
		RateLimit:      c.Gateway.RateLimit,
		RateBurst:      c.Gateway.RateBurst,
	}
}

// RadioOptions converts the radio and access_point sections.
func (c *Config) RadioOptions() radio.Options {
	driver, _ := radio.ParseDriver(c.Radio.Driver)
	return radio.Options{
		Driver:         driver,
		Interface:      c.Radio.Interface,
		Hotspot:        c.AccessPoint.Connection,
		HotspotSettle:  c.AccessPoint.Settle,
		RestoreHotspot: c.AccessPoint.RestoreOnFailure,
		PollInterval:   c.Radio.PollInterval,
		NL80211:        c.Radio.LinkSource == "nl80211",
		Mock: radio.MockConfig{
			ScanLatency:    c.Radio.MockLatency,
			ConnectLatency: c.Radio.MockLatency * 4,
			FailPassword:   c.Radio.FailPassword,
		},
	}
}

// MQTTOptions converts the mqtt section.
func (c *Config) MQTTOptions() notify.Config {
	return notify.Config{
		Broker:      c.MQTT.Broker,
		ClientID:    c.MQTT.ClientID,
		Username:    c.MQTT.Username,
		Password:    c.MQTT.Password,
		TopicPrefix: c.MQTT.TopicPrefix,
		QoS:         byte(c.MQTT.QoS),
		Retain:      c.MQTT.Retain,
	}
}
