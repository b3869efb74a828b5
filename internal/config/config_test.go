package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_SQLiteWithDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: test-secret
database:
  driver: sqlite
  migrations: auto
  sqlite:
    path: test.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 4, cfg.Gamification.LotteryTier)
	assert.Equal(t, 5, cfg.Orders.RateLimit.Requests)
	assert.Equal(t, "UTC", cfg.Scheduler.Timezone)
	assert.Equal(t, "00:00", cfg.Scheduler.ResetTime)
	assert.Equal(t, "/metrics", cfg.Metrics.Prometheus.Path)
	assert.False(t, cfg.Server.IsDevelopment())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: from-file
database:
  driver: sqlite
  migrations: auto
`)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("LOTTERY_TIER", "3")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://maplenou.app")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 3, cfg.Gamification.LotteryTier)
	assert.Equal(t, []string{"http://localhost:3000", "https://maplenou.app"}, cfg.CORS.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Auth: AuthConfig{JWTSecret: "secret"},
			Database: DatabaseConfig{
				Driver:     DriverPostgres,
				Migrations: MigrationsMigrate,
				Postgres:   PostgresConfig{Host: "db", Database: "maplenou", User: "maplenou"},
			},
			Orders:       OrdersConfig{RateLimit: RateLimitConfig{Requests: 5, WindowSeconds: 60}},
			Gamification: GamificationConfig{LotteryTier: 4},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: "jwt_secret"},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mongo" }, wantErr: "database.driver"},
		{name: "missing postgres host", mutate: func(c *Config) { c.Database.Postgres.Host = "" }, wantErr: "postgres.host"},
		{name: "bad migrations mode", mutate: func(c *Config) { c.Database.Migrations = "manual" }, wantErr: "migrations"},
		{name: "zero lottery tier", mutate: func(c *Config) { c.Gamification.LotteryTier = 0 }, wantErr: "lottery_tier"},
		{name: "mattermost without url", mutate: func(c *Config) { c.Mattermost.Enabled = true }, wantErr: "webhook_url"},
		{name: "scheduler in UTC", mutate: func(c *Config) { c.Scheduler = SchedulerConfig{Enabled: true, Timezone: "UTC"} }},
		{name: "scheduler in Etc/UTC", mutate: func(c *Config) { c.Scheduler = SchedulerConfig{Enabled: true, Timezone: "Etc/UTC"} }},
		{name: "scheduler east of UTC", mutate: func(c *Config) { c.Scheduler = SchedulerConfig{Enabled: true, Timezone: "Europe/Paris"} }, wantErr: "scheduler.timezone"},
		{name: "disabled scheduler ignores timezone", mutate: func(c *Config) { c.Scheduler.Timezone = "Europe/Paris" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPostgresConfig_URL(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, Database: "maplenou", User: "u", Password: "p", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/maplenou?sslmode=disable", p.URL())
	assert.Contains(t, p.DSN(), "dbname=maplenou")
}
