// Package db provides database utilities for testing
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"medqueue/internal/config"
	"medqueue/internal/database"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/require"
)

var available bool

// Main starts a disposable PostgreSQL container, runs the package tests
// against it and removes it afterwards. Without Docker the database tests skip.
//
//	func TestMain(m *testing.M) { db.Main(m) }
func Main(m *testing.M) {
	code, err := runWithPostgres(m)
	if err != nil {
		fmt.Printf("PostgreSQL container unavailable, database tests will be skipped: %v\n", err)
		code = m.Run()
	}
	os.Exit(code)
}

func runWithPostgres(m *testing.M) (int, error) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		return 0, fmt.Errorf("could not connect to docker: %w", err)
	}
	if err := pool.Client.Ping(); err != nil {
		return 0, fmt.Errorf("could not reach docker: %w", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_PASSWORD=postgres",
			"POSTGRES_USER=postgres",
			"POSTGRES_DB=medqueue_test",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return 0, fmt.Errorf("could not start PostgreSQL container: %w", err)
	}
	defer func() {
		if err := pool.Purge(resource); err != nil {
			fmt.Printf("Could not purge PostgreSQL container: %v\n", err)
		}
	}()
	_ = resource.Expire(300)

	hostPort := resource.GetHostPort("5432/tcp")
	host, port, _ := strings.Cut(hostPort, ":")
	os.Setenv("DB_HOST", host)
	os.Setenv("DB_PORT", port)
	os.Setenv("DB_USER", "postgres")
	os.Setenv("DB_PASSWORD", "postgres")
	os.Setenv("DB_NAME", "medqueue_test")

	pool.MaxWait = 60 * time.Second
	dsn := fmt.Sprintf("postgres://postgres:postgres@%s/medqueue_test?sslmode=disable", hostPort)
	err = pool.Retry(func() error {
		conn, err := sql.Open("postgres", dsn)
		if err != nil {
			return err
		}
		defer conn.Close()
		return conn.Ping()
	})
	if err != nil {
		return 0, fmt.Errorf("PostgreSQL did not become ready: %w", err)
	}

	available = true
	return m.Run(), nil
}

// CleanupTestDB drops all tables in the test database
func CleanupTestDB(db *sql.DB) error {
	rows, err := db.Query(`SELECT tablename FROM pg_tables WHERE schemaname = 'public'`)
	if err != nil {
		return fmt.Errorf("failed to get table names: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, tableName)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating over table names: %w", err)
	}

	if len(tables) > 0 {
		dropQuery := fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", strings.Join(tables, ", "))
		if _, err := db.Exec(dropQuery); err != nil {
			return fmt.Errorf("failed to drop tables: %w", err)
		}
	}
	if _, err := db.Exec(`DROP SEQUENCE IF EXISTS user_number_seq`); err != nil {
		return fmt.Errorf("failed to drop sequence: %w", err)
	}
	return nil
}

// SetupTestDB returns a freshly migrated database. It skips the test when no
// container is running or -short is set.
func SetupTestDB(t *testing.T, cfg *config.DatabaseConfig) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	if !available {
		t.Skip("skipping database test: PostgreSQL container not available")
	}

	db, err := database.Connect(context.Background(), *cfg)
	require.NoError(t, err, "Failed to connect to test database")

	require.NoError(t, CleanupTestDB(db), "Failed to cleanup test database")
	require.NoError(t, database.RunMigrations(*cfg), "Failed to run migrations")

	t.Cleanup(func() {
		if err := CleanupTestDB(db); err != nil {
			t.Errorf("Failed to cleanup test database: %v", err)
		}
		db.Close()
	})
	return db
}
