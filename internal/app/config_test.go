package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.True(t, cfg.Database.Postgres.Enabled)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)

	require.False(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/internal/metrics", cfg.Monitoring.Prometheus.Endpoint)
	require.True(t, cfg.Monitoring.Health.Enabled)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "taskwell-test", cfg.Auth.JWT.Issuer)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)
	require.Equal(t, 48*time.Hour, cfg.Auth.Transfer.MaxAge)

	require.True(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, "smtp.example.com", cfg.Email.SMTP.Host)
	require.Equal(t, 2525, cfg.Email.SMTP.Port)
	require.Equal(t, "smtp-user", cfg.Email.SMTP.Username)
	require.Equal(t, "smtp-pass", cfg.Email.SMTP.Password)
	require.Equal(t, "no-reply@example.com", cfg.Email.SMTP.From)
	require.True(t, cfg.Email.SMTP.UseTLS)
	require.Equal(t, 15*time.Second, cfg.Email.SMTP.Timeout)

	require.False(t, cfg.Maintenance.Enabled)
	require.Equal(t, "30 4 * * *", cfg.Maintenance.Schedule)
	require.Equal(t, 720*time.Hour, cfg.Maintenance.AuditRetention)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/taskwell.sqlite", cfg.Database.Path)
	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
	require.Equal(t, 15*time.Minute, cfg.Auth.JWT.TTL)
	require.Equal(t, 24*time.Hour, cfg.Auth.Transfer.MaxAge)
	require.False(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, 587, cfg.Email.SMTP.Port)
	require.True(t, cfg.Maintenance.Enabled)
	require.Equal(t, "0 3 * * *", cfg.Maintenance.Schedule)
	require.Equal(t, 2160*time.Hour, cfg.Maintenance.AuditRetention)
}

func TestTransferSignerConfigFallsBackToJWTSecret(t *testing.T) {
	cfg := Config{}
	cfg.Auth.JWT.Secret = "primary"
	cfg.Auth.Transfer.MaxAge = 6 * time.Hour

	signerCfg := cfg.TransferSignerConfig()
	require.Equal(t, "primary", signerCfg.Secret)
	require.Equal(t, 6*time.Hour, signerCfg.MaxAge)

	cfg.Auth.Transfer.Secret = "dedicated"
	require.Equal(t, "dedicated", cfg.TransferSignerConfig().Secret)
}

func TestDatabaseSettingsSelectsDriverBlock(t *testing.T) {
	cfg := Config{}
	cfg.Database.Driver = "postgres"
	cfg.Database.Postgres = DBAuthConfig{Host: "pg.local", Port: 5432, Database: "tw", Username: "u", Password: "p"}
	cfg.Database.MySQL = DBAuthConfig{Host: "my.local", Port: 3306}

	settings := cfg.DatabaseSettings()
	require.Equal(t, "pg.local", settings.Host)
	require.Equal(t, 5432, settings.Port)
	require.Equal(t, "tw", settings.Name)

	cfg.Database.Driver = "mysql"
	settings = cfg.DatabaseSettings()
	require.Equal(t, "my.local", settings.Host)
	require.Equal(t, 3306, settings.Port)
}
