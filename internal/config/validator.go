package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate checks every configuration section.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validateServer(&cfg.Server, result)
	validateGame(&cfg.Game, result)
	validateDatabase(&cfg.Database, result)
	validateMQTT(&cfg.MQTT, result)
	validateAPI(&cfg.API, &cfg.Server, result)
	validateScheduler(&cfg.Scheduler, result)

	return result
}

func validateServer(s *ServerConfig, result *ValidationResult) {
	if strings.TrimSpace(s.Name) == "" {
		result.AddError("server.name", "server name is required")
	}

	validatePort(s.Port, "server.port", result)

	if s.Mode != ModeSolo && s.Mode != ModeDuel {
		result.AddError("server.mode", fmt.Sprintf("unknown mode %d (must be 1 or 2)", s.Mode))
	}

	if s.SoloReadTimeoutSec < 1 {
		result.AddError("server.solo_read_timeout_sec", "must be at least 1 second")
	}
	if s.PairAttemptTimeoutMs < 10 {
		result.AddError("server.pair_attempt_timeout_ms", "must be at least 10 milliseconds")
	}
	if s.PairTimeoutBudget < 1 {
		result.AddError("server.pair_timeout_budget", "must allow at least 1 attempt")
	}
	if s.HandshakeBudget < 1 {
		result.AddError("server.handshake_budget", "must allow at least 1 attempt")
	}
	if s.FrameTimeoutSec < 1 {
		result.AddError("server.frame_timeout_sec", "must be at least 1 second")
	}

	if strings.TrimSpace(s.AuditDirectory) == "" {
		result.AddWarning("server.audit_directory", "audit logging is disabled")
	}
}

func validateGame(g *GameConfig, result *ValidationResult) {
	if g.InitialGems < 0 {
		result.AddError("game.initial_gems", "initial gems cannot be negative")
	}
	if g.Bet < 1 {
		result.AddError("game.bet", "bet must be at least 1")
	}
	if g.InitialGems < g.Bet {
		result.AddWarning("game.initial_gems", "new players cannot afford a single bet")
	}
}

func validateDatabase(d *DatabaseConfig, result *ValidationResult) {
	if !d.Enabled {
		return
	}
	if strings.TrimSpace(d.Path) == "" {
		result.AddError("database.path", "database path is required when enabled")
	}
	if d.RetentionDays < 1 {
		result.AddError("database.retention_days", "retention days must be at least 1")
	}
}

func validateMQTT(m *MQTTConfig, result *ValidationResult) {
	if !m.Enabled {
		return
	}
	if strings.TrimSpace(m.BrokerURL) == "" {
		result.AddError("mqtt.broker_url", "MQTT broker URL is required when enabled")
	}
	if m.Port < 1 || m.Port > 65535 {
		result.AddError("mqtt.port", "invalid MQTT port")
	}
	if m.UseTLS && (m.CertFile == "") != (m.KeyFile == "") {
		result.AddError("mqtt.cert_file", "client certificate and key must be set together")
	}
	if strings.TrimSpace(m.TopicPrefix) == "" {
		result.AddWarning("mqtt.topic_prefix", "empty topic prefix, topics will start with a slash")
	}
}

func validateAPI(a *APIConfig, s *ServerConfig, result *ValidationResult) {
	if !a.Enabled {
		return
	}
	validatePort(a.Port, "api.port", result)
	if a.Port == s.Port {
		result.AddError("api.port", "port conflict detected: api and game ports must differ")
	}
	if a.RateLimitRPS < 1 {
		result.AddWarning("api.rate_limit_rps",
			"rate limit is disabled (0 RPS), this may expose the API to abuse")
	}
}

func validateScheduler(s *SchedulerConfig, result *ValidationResult) {
	if s.StatusIntervalSec < 10 {
		result.AddWarning("scheduler.status_interval_sec",
			"status interval less than 10s may cause excessive traffic")
	}
	if _, err := time.Parse("15:04", s.CleanupTime); err != nil {
		result.AddError("scheduler.cleanup_time", fmt.Sprintf("invalid time %q (expected HH:MM)", s.CleanupTime))
	}
	if s.DiskWarnPercent <= 0 || s.DiskWarnPercent > 100 {
		result.AddError("scheduler.disk_warn_percent", "must be between 0 and 100")
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port number: %d (must be 1-65535)", port))
		return
	}
	if port < 1024 {
		result.AddWarning(field,
			fmt.Sprintf("port %d is a privileged port, may require elevated permissions", port))
	}
}

// IsPortAvailable checks if a port is available for binding.
func IsPortAvailable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
