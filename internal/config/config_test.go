package config

import (
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
)

// TestLoadFromEnv tests loading configuration from environment variables
func TestLoadFromEnv(t *testing.T) {
	// Load test environment
	err := godotenv.Load("../../.env.test")
	require.NoError(t, err, "Failed to load .env.test file")

	cfg := &Config{}
	err = cfg.LoadFromEnv()
	require.NoError(t, err)

	// Verify configuration values
	require.Equal(t, "8080", cfg.API.Port)
	require.True(t, cfg.API.DevelopmentMode)
	require.Equal(t, []string{"http://localhost:3000", "http://localhost:3001"}, cfg.API.AllowedOrigins)
	require.Equal(t, "localhost", cfg.Database.Host)
	require.Equal(t, 5432, cfg.Database.Port)
	require.Equal(t, "medqueue_test", cfg.Database.DBName)
	require.Equal(t, "disable", cfg.Database.SSLMode)
	require.Equal(t, "test_secret_key", cfg.Auth.JWTSecret)
	require.Equal(t, 24, cfg.Auth.JWTExpiration)
	require.True(t, cfg.Auth.RegistrationOpen)
	require.Equal(t, 5, cfg.Security.MaxLoginAttempts)
	require.Equal(t, 30*time.Minute, cfg.Security.LockoutDuration)
	require.Equal(t, 10*time.Minute, cfg.Security.CodeExpiry)
	require.Equal(t, time.Hour, cfg.Security.ResetCodeExpiry)
	require.False(t, cfg.Scheduler.Enabled)
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("MAX_LOGIN_ATTEMPTS", "")
	t.Setenv("ACCOUNT_LOCKOUT_DURATION", "not-a-duration")
	t.Setenv("KAFKA_BROKERS", " broker-1:9092 , ,broker-2:9092")
	t.Setenv("SMTP_HOST", "")

	cfg := &Config{}
	require.NoError(t, cfg.LoadFromEnv())

	require.Equal(t, 5, cfg.Security.MaxLoginAttempts)
	require.Equal(t, 30*time.Minute, cfg.Security.LockoutDuration)
	require.Equal(t, 6, cfg.Security.MinPasswordLength)
	require.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	require.False(t, cfg.Email.Enabled())
}

func TestLoadFromEnv_Validation(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		errMsg string
	}{
		{
			name:   "Missing JWT secret",
			env:    map[string]string{"JWT_SECRET": ""},
			errMsg: "JWT_SECRET is required",
		},
		{
			name:   "Zero attempt threshold",
			env:    map[string]string{"JWT_SECRET": "secret", "MAX_LOGIN_ATTEMPTS": "0"},
			errMsg: "MAX_LOGIN_ATTEMPTS must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := &Config{}
			err := cfg.LoadFromEnv()
			require.Error(t, err)
			require.Equal(t, tt.errMsg, err.Error())
		})
	}
}
