package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_createsDefaultWhenMissing(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.GetServerData().Host)
	assert.Equal(t, DefaultServerPort, cfg.GetServerData().Port)
	assert.FileExists(t, filepath.Join(dir, DefaultConfigFile))
}

func TestLoad_overlaysOnDefaults(t *testing.T) {
	dir := t.TempDir()
	raw := `{
		"server_data": {"rcon_host": "game.example.net", "rcon_password": "hunter2"},
		"application_data": {"gateway": {"enabled": true}}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(raw), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	srv := cfg.GetServerData()
	assert.Equal(t, "game.example.net", srv.Host)
	assert.Equal(t, "hunter2", srv.Password)
	assert.Equal(t, DefaultServerPort, srv.Port, "unset fields keep their defaults")
	assert.Equal(t, 1000, srv.ResponseTimeoutMs)

	app := cfg.GetApplicationData()
	assert.True(t, app.Gateway.Enabled)
	assert.Equal(t, DefaultGatewayPort, app.Gateway.Port)
}

func TestLoad_rejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("{nope"), 0644))

	_, err := Load(dir)
	require.Error(t, err)
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	srv := cfg.GetServerData()
	srv.Host = "10.0.0.5"
	srv.Port = 27016
	cfg.SetServerData(srv)
	require.NoError(t, cfg.Save())

	reloaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", reloaded.GetServerData().Host)
	assert.Equal(t, 27016, reloaded.GetServerData().Port)
}

func TestValidate_defaultsAreValid(t *testing.T) {
	result := Validate(DefaultConfig())
	assert.True(t, result.IsValid(), "errors: %v", result.Errors)
}

func TestValidate_reportsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServerData.Host = " "
	cfg.ServerData.Port = 0
	cfg.ServerData.Encoding = "ebcdic"
	cfg.ApplicationData.Telemetry.MQTT.Enabled = true
	cfg.ApplicationData.Telemetry.MQTT.BrokerURL = ""
	cfg.ApplicationData.History.RetentionDays = 0

	result := Validate(cfg)
	require.False(t, result.IsValid())

	fields := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		fields = append(fields, e.Field)
	}
	assert.Contains(t, fields, "server_data.rcon_host")
	assert.Contains(t, fields, "server_data.rcon_port")
	assert.Contains(t, fields, "server_data.rcon_encoding")
	assert.Contains(t, fields, "application_data.telemetry.mqtt.broker_url")
	assert.Contains(t, fields, "application_data.history.retention_days")
}

func TestValidate_warnsWithoutFailing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ApplicationData.Gateway.Enabled = true
	cfg.ApplicationData.Gateway.RateLimitRPS = 0

	result := Validate(cfg)
	assert.True(t, result.IsValid())
	assert.NotEmpty(t, result.Warnings)
}

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{Field: "server_data.rcon_port", Message: "invalid"}
	assert.Contains(t, err.Error(), "server_data.rcon_port")
}
