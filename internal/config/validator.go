package config

import (
	"fmt"
	"net"
	"strings"
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

// Validate performs comprehensive validation of the configuration.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validateServerData(&cfg.ServerData, result)
	validateApplicationData(&cfg.ApplicationData, result)

	return result
}

func validateServerData(data *ServerData, result *ValidationResult) {
	if strings.TrimSpace(data.Host) == "" {
		result.AddError("server_data.rcon_host", "server host is required")
	}
	validatePort(data.Port, "server_data.rcon_port", result)

	if strings.TrimSpace(data.Password) == "" {
		result.AddWarning("server_data.rcon_password",
			"no password configured, authentication will require one on the command line")
	}

	switch data.Encoding {
	case "", "ascii", "utf8", "latin1":
	default:
		result.AddError("server_data.rcon_encoding",
			fmt.Sprintf("unknown encoding %q (expected ascii, utf8 or latin1)", data.Encoding))
	}

	if data.MaxPacketSize < 0 {
		result.AddError("server_data.rcon_max_packet_size", "must not be negative")
	} else if data.MaxPacketSize > 0 && data.MaxPacketSize < 64 {
		result.AddWarning("server_data.rcon_max_packet_size",
			"very small packet cap will reject most commands")
	}

	if data.ResponseTimeoutMs < 0 {
		result.AddError("server_data.rcon_response_timeout_ms", "must not be negative")
	}
	if data.ConnectTimeoutSec < 0 {
		result.AddError("server_data.rcon_connect_timeout_sec", "must not be negative")
	}
}

func validateApplicationData(data *ApplicationData, result *ValidationResult) {
	if data.Gateway.Enabled {
		validatePort(data.Gateway.Port, "application_data.gateway.port", result)

		if strings.TrimSpace(data.Gateway.APIToken) == "" {
			result.AddWarning("application_data.gateway.api_token",
				"gateway runs without authentication, anyone can issue commands")
		}
		if data.Gateway.RateLimitRPS < 1 {
			result.AddWarning("application_data.gateway.rate_limit_rps",
				"rate limit is disabled (0 RPS), this may expose the API to abuse")
		}
	}

	mqtt := &data.Telemetry.MQTT
	if mqtt.Enabled {
		if strings.TrimSpace(mqtt.BrokerURL) == "" {
			result.AddError("application_data.telemetry.mqtt.broker_url",
				"MQTT broker URL is required when enabled")
		}
		if mqtt.Port < 1 || mqtt.Port > 65535 {
			result.AddError("application_data.telemetry.mqtt.port", "invalid MQTT port")
		}
		if mqtt.UseTLS && strings.TrimSpace(mqtt.CAFile) == "" && strings.TrimSpace(mqtt.CertFile) != "" {
			result.AddWarning("application_data.telemetry.mqtt.ca_file",
				"client certificate set without a CA file, broker verification uses system roots")
		}
	}

	if data.History.Enabled {
		if strings.TrimSpace(data.History.DatabasePath) == "" {
			result.AddError("application_data.history.database_path",
				"database path is required when history is enabled")
		}
		if data.History.RetentionDays < 1 {
			result.AddError("application_data.history.retention_days",
				"retention days must be at least 1")
		}
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
