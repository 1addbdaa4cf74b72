// Package config handles configuration loading, validation, and persistence
// for the Ship-Captain-Crew server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "config.json"
	DefaultGamePort   = 1212
	DefaultAPIPort    = 5080
)

// Server modes.
const (
	ModeSolo = 1
	ModeDuel = 2
)

// Config is the root configuration structure.
type Config struct {
	mu   sync.RWMutex
	path string

	Server    ServerConfig    `json:"server"`
	Game      GameConfig      `json:"game"`
	Database  DatabaseConfig  `json:"database"`
	MQTT      MQTTConfig      `json:"mqtt"`
	API       APIConfig       `json:"api"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Logging   LoggingConfig   `json:"logging"`
}

// ServerConfig controls the game listener and the session workers.
type ServerConfig struct {
	Name        string `json:"name"`
	BindAddress string `json:"bind_address"`
	Port        int    `json:"port"`
	// Mode 1 runs each connection against the built-in opponent,
	// mode 2 pairs consecutive connections.
	Mode int `json:"mode"`

	SoloReadTimeoutSec   int    `json:"solo_read_timeout_sec"`
	PairAttemptTimeoutMs int    `json:"pair_attempt_timeout_ms"`
	PairTimeoutBudget    int    `json:"pair_timeout_budget"`
	HandshakeBudget      int    `json:"handshake_budget"`
	FrameTimeoutSec      int    `json:"frame_timeout_sec"`
	AuditDirectory       string `json:"audit_directory"`
}

// GameConfig holds the wagering rules.
type GameConfig struct {
	InitialGems int `json:"initial_gems"`
	Bet         int `json:"bet"`
}

// DatabaseConfig configures the hand history store.
type DatabaseConfig struct {
	Enabled       bool   `json:"enabled"`
	Path          string `json:"path"`
	RetentionDays int    `json:"retention_days"`
}

// MQTTConfig holds MQTT telemetry configuration.
type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	BrokerURL   string `json:"broker_url"`
	Port        int    `json:"port"`
	UseTLS      bool   `json:"use_tls"`
	CertFile    string `json:"cert_file"`
	KeyFile     string `json:"key_file"`
	CAFile      string `json:"ca_file"`
	ClientID    string `json:"client_id"`
	TopicPrefix string `json:"topic_prefix"`
}

// APIConfig configures the read-only REST API.
type APIConfig struct {
	Enabled        bool     `json:"enabled"`
	BindAddress    string   `json:"bind_address"`
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"`
	RateLimitRPS   int      `json:"rate_limit_rps"`
}

// SchedulerConfig holds periodic task settings.
type SchedulerConfig struct {
	StatusIntervalSec int `json:"status_interval_sec"`
	// CleanupTime is the daily HH:MM at which old hands and audit files
	// are removed.
	CleanupTime            string  `json:"cleanup_time"`
	HealthCheckIntervalSec int     `json:"health_check_interval_sec"`
	DiskWarnPercent        float64 `json:"disk_warn_percent"`
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
		Server: ServerConfig{
			Name:                 "scc",
			BindAddress:          "0.0.0.0",
			Port:                 DefaultGamePort,
			Mode:                 ModeSolo,
			SoloReadTimeoutSec:   60,
			PairAttemptTimeoutMs: 500,
			PairTimeoutBudget:    120,
			HandshakeBudget:      120,
			FrameTimeoutSec:      10,
			AuditDirectory:       "audit",
		},
		Game: GameConfig{
			InitialGems: 10,
			Bet:         1,
		},
		Database: DatabaseConfig{
			Enabled:       true,
			Path:          filepath.Join("data", "history.db"),
			RetentionDays: 30,
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			BrokerURL:   "localhost",
			Port:        1883,
			TopicPrefix: "scc",
		},
		API: APIConfig{
			Enabled:      true,
			BindAddress:  "127.0.0.1",
			Port:         DefaultAPIPort,
			RateLimitRPS: 50,
		},
		Scheduler: SchedulerConfig{
			StatusIntervalSec:      60,
			HealthCheckIntervalSec: 300,
			CleanupTime:            "04:00",
			DiskWarnPercent:        90,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Directory:  "logs",
			MaxSizeMB:  10,
			MaxBackups: 5,
		},
	}
}

// Load reads configuration from a JSON file, creating a default one when
// the file does not exist yet.
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

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")

	// Persist fields added since the file was written.
	if saveErr := cfg.Save(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
	}

	return cfg, nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.path == "" {
		return fmt.Errorf("config has no file path")
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
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

// GetServer returns a copy of the server section.
func (c *Config) GetServer() ServerConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Server
}

// SetServer replaces the server section.
func (c *Config) SetServer(s ServerConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Server = s
}

// GetGame returns a copy of the game section.
func (c *Config) GetGame() GameConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Game
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}

// ListenAddr is the host:port the game listener binds to.
func (s ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.BindAddress, s.Port)
}

func (s ServerConfig) SoloReadTimeout() time.Duration {
	return time.Duration(s.SoloReadTimeoutSec) * time.Second
}

func (s ServerConfig) PairAttemptTimeout() time.Duration {
	return time.Duration(s.PairAttemptTimeoutMs) * time.Millisecond
}

func (s ServerConfig) FrameTimeout() time.Duration {
	return time.Duration(s.FrameTimeoutSec) * time.Second
}

// ListenAddr is the host:port the REST API binds to.
func (a APIConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", a.BindAddress, a.Port)
}
