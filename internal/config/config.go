// Package config handles configuration loading, validation, and
// persistence for rconsole.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	DefaultConfigDir   = "config"
	DefaultConfigFile  = "config.json"
	DefaultServerPort  = 27015
	DefaultGatewayPort = 8090
)

// Config is the root configuration structure for rconsole.
type Config struct {
	mu   sync.RWMutex
	path string

	ServerData      ServerData      `json:"server_data"`
	ApplicationData ApplicationData `json:"application_data"`
}

// ServerData describes the remote console endpoint and session tuning.
type ServerData struct {
	Host     string `json:"rcon_host"`
	Port     int    `json:"rcon_port"`
	Password string `json:"rcon_password"`

	// Encoding selects the body charset: ascii, utf8 or latin1.
	Encoding string `json:"rcon_encoding"`

	// MaxPacketSize caps outgoing frames in bytes. Zero disables the cap.
	MaxPacketSize int `json:"rcon_max_packet_size"`

	ResponseTimeoutMs int `json:"rcon_response_timeout_ms"`
	ConnectTimeoutSec int `json:"rcon_connect_timeout_sec"`
}

// ApplicationData contains the surrounding application configuration.
type ApplicationData struct {
	Gateway   GatewayConfig   `json:"gateway"`
	Telemetry TelemetryConfig `json:"telemetry"`
	History   HistoryConfig   `json:"history"`
	Logging   LoggingConfig   `json:"logging"`
}

// GatewayConfig holds the HTTP gateway settings.
type GatewayConfig struct {
	Enabled        bool     `json:"enabled"`
	Port           int      `json:"port"`
	APIToken       string   `json:"api_token"`
	AllowedOrigins []string `json:"allowed_origins"`
	RateLimitRPS   int      `json:"rate_limit_rps"`
	StatusCacheSec int      `json:"status_cache_sec"`
}

// TelemetryConfig holds metrics and MQTT publishing settings.
type TelemetryConfig struct {
	MetricsEnabled bool       `json:"metrics_enabled"`
	MQTT           MQTTConfig `json:"mqtt"`
}

// MQTTConfig holds MQTT broker settings.
type MQTTConfig struct {
	Enabled   bool   `json:"enabled"`
	BrokerURL string `json:"broker_url"`
	Port      int    `json:"port"`
	UseTLS    bool   `json:"use_tls"`
	CertFile  string `json:"cert_file"`
	KeyFile   string `json:"key_file"`
	CAFile    string `json:"ca_file"`
	ClientID  string `json:"client_id"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// HistoryConfig holds the command audit log settings.
type HistoryConfig struct {
	Enabled       bool   `json:"enabled"`
	DatabasePath  string `json:"database_path"`
	RetentionDays int    `json:"retention_days"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ServerData: ServerData{
			Host:              "127.0.0.1",
			Port:              DefaultServerPort,
			Encoding:          "ascii",
			MaxPacketSize:     4096,
			ResponseTimeoutMs: 1000,
			ConnectTimeoutSec: 10,
		},
		ApplicationData: ApplicationData{
			Gateway: GatewayConfig{
				Port:           DefaultGatewayPort,
				RateLimitRPS:   100,
				StatusCacheSec: 5,
			},
			Telemetry: TelemetryConfig{
				MetricsEnabled: true,
				MQTT: MQTTConfig{
					Port:     8883,
					UseTLS:   true,
					ClientID: "rconsole",
				},
			},
			History: HistoryConfig{
				Enabled:       true,
				DatabasePath:  filepath.Join("data", "history.db"),
				RetentionDays: 30,
			},
			Logging: LoggingConfig{
				Level:      "info",
				Directory:  "logs",
				MaxSizeMB:  10,
				MaxBackups: 5,
			},
		},
	}
}

// Load reads configuration from a JSON file, creating a default one when
// none exists yet.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig() // Start with defaults, then overlay
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")
	return cfg, nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// GetServerData returns a copy of the server endpoint configuration.
func (c *Config) GetServerData() ServerData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ServerData
}

// SetServerData updates the server endpoint configuration.
func (c *Config) SetServerData(data ServerData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ServerData = data
}

// GetApplicationData returns a copy of the application configuration.
func (c *Config) GetApplicationData() ApplicationData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ApplicationData
}

// SetApplicationData updates the application configuration.
func (c *Config) SetApplicationData(data ApplicationData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ApplicationData = data
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}
