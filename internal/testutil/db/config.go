package db

import (
	"path/filepath"
	"runtime"
	"testing"

	"medqueue/internal/config"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
)

// LoadTestConfig loads .env.test from the project root. Variables already set
// in the environment win, so a container started by Main can point the tests
// at its own port.
func LoadTestConfig(t *testing.T) *config.Config {
	t.Helper()

	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "Failed to get current file path")

	// Calculate project root (3 levels up from this file)
	projectRoot, err := filepath.Abs(filepath.Join(filepath.Dir(filename), "..", "..", ".."))
	require.NoError(t, err, "Failed to get absolute project root path")

	err = godotenv.Load(filepath.Join(projectRoot, ".env.test"))
	require.NoError(t, err, "Failed to load .env.test file")

	cfg := &config.Config{}
	require.NoError(t, cfg.LoadFromEnv(), "Failed to load config")

	cfg.Database.MigrationsPath = filepath.Join(projectRoot, "migrations")
	return cfg
}
