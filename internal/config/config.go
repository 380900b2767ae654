package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	// API contains API server configuration
	API APIConfig
	// Auth contains authentication configuration
	Auth AuthConfig
	// Security contains login lockout and code settings
	Security SecurityConfig
	// Database contains database configuration
	Database DatabaseConfig
	// Email contains email service configuration
	Email EmailConfig
	// Redis backs the code request throttle
	Redis RedisConfig
	// Kafka receives security events
	Kafka KafkaConfig
	// Log configures the zap logger
	Log LogConfig
	// Scheduler configures background maintenance jobs
	Scheduler SchedulerConfig

	// Rate Limiting Configuration
	RateLimit struct {
		Requests int // Number of requests allowed per window
		Window   int // Time window in seconds
		Burst    int // Maximum burst size
	}
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname
	Host string
	// Port is the database server port
	Port int
	// User is the database username
	User string
	// Password is the database password
	Password string
	// DBName is the database name
	DBName string
	// SSLMode is the SSL mode for the database connection
	SSLMode string
	// MigrationsPath is the path to database migrations
	MigrationsPath string
}

// APIConfig contains API server settings
type APIConfig struct {
	// Port is the server port to listen on
	Port string
	// AllowedOrigins lists the origins accepted by CORS
	AllowedOrigins []string
	// DevelopmentMode surfaces one-time codes in responses
	DevelopmentMode bool
}

// AuthConfig contains authentication settings
type AuthConfig struct {
	// JWTSecret is the secret key used to sign JWT tokens
	JWTSecret string
	// JWTExpiration is the JWT token expiration time in hours
	JWTExpiration int
	// RegistrationOpen determines if new user registration is allowed
	RegistrationOpen bool
}

// SecurityConfig holds the login state machine limits
type SecurityConfig struct {
	MaxLoginAttempts   int
	LockoutDuration    time.Duration
	CodeExpiry         time.Duration
	ResetCodeExpiry    time.Duration
	MinPasswordLength  int
	CodeRequestLimit   int
	CodeRequestWindow  time.Duration
	AuditLogRetention  time.Duration
	NotificationQueue  int
	NotificationWorker int
}

// EmailConfig contains email service settings
type EmailConfig struct {
	// SMTPHost is the SMTP server hostname
	SMTPHost string
	// SMTPPort is the SMTP server port
	SMTPPort int
	// SMTPUsername is the SMTP authentication username
	SMTPUsername string
	// SMTPPassword is the SMTP authentication password
	SMTPPassword string
	// FromAddress is the email address used as sender
	FromAddress string
	// Timeout bounds a single delivery attempt
	Timeout time.Duration
}

// Enabled reports whether enough SMTP settings are present to attempt delivery
func (e EmailConfig) Enabled() bool {
	return e.SMTPHost != "" && e.SMTPPort != 0 && e.FromAddress != ""
}

// RedisConfig contains the Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig contains the event stream settings
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LogConfig contains logger settings
type LogConfig struct {
	Level       string
	Environment string
}

// SchedulerConfig holds cron expressions for maintenance jobs
type SchedulerConfig struct {
	Enabled             bool
	AppointmentSweep    string
	CodePurge           string
	AuditCleanup        string
	MissedAppointmentIn time.Duration
}

// LoadFromEnv retrieves configuration from environment variables
func (c *Config) LoadFromEnv() error {
	c.API = APIConfig{
		Port:            getEnvOrDefault("API_PORT", "8080"),
		AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:3001", "http://localhost:3002"}),
		DevelopmentMode: getEnvAsBool("DEVELOPMENT_MODE", false),
	}
	c.Database = DatabaseConfig{
		Host:           getEnvOrDefault("DB_HOST", "localhost"),
		Port:           getEnvAsInt("DB_PORT", 5432),
		User:           getEnvOrDefault("DB_USER", "postgres"),
		Password:       getEnvOrDefault("DB_PASSWORD", "postgres"),
		DBName:         getEnvOrDefault("DB_NAME", "medqueue"),
		SSLMode:        getEnvOrDefault("DB_SSL_MODE", "disable"),
		MigrationsPath: getEnvOrDefault("DB_MIGRATIONS_PATH", "migrations"),
	}
	c.Auth = AuthConfig{
		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTExpiration:    getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		RegistrationOpen: getEnvAsBool("REGISTRATION_OPEN", true),
	}
	c.Security = SecurityConfig{
		MaxLoginAttempts:   getEnvAsInt("MAX_LOGIN_ATTEMPTS", 5),
		LockoutDuration:    getEnvAsDuration("ACCOUNT_LOCKOUT_DURATION", 30*time.Minute),
		CodeExpiry:         getEnvAsDuration("VERIFICATION_CODE_EXPIRY", 10*time.Minute),
		ResetCodeExpiry:    getEnvAsDuration("RESET_CODE_EXPIRY", time.Hour),
		MinPasswordLength:  getEnvAsInt("MIN_PASSWORD_LENGTH", 6),
		CodeRequestLimit:   getEnvAsInt("CODE_REQUEST_LIMIT", 5),
		CodeRequestWindow:  getEnvAsDuration("CODE_REQUEST_WINDOW", 15*time.Minute),
		AuditLogRetention:  getEnvAsDuration("AUDIT_LOG_RETENTION", 90*24*time.Hour),
		NotificationQueue:  getEnvAsInt("NOTIFICATION_QUEUE_SIZE", 100),
		NotificationWorker: getEnvAsInt("NOTIFICATION_WORKERS", 2),
	}
	c.Email = EmailConfig{
		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		FromAddress:  os.Getenv("SMTP_FROM"),
		Timeout:      getEnvAsDuration("SMTP_TIMEOUT", 10*time.Second),
	}
	c.Redis = RedisConfig{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvAsInt("REDIS_DB", 0),
	}
	c.Kafka = KafkaConfig{
		Brokers: getEnvAsList("KAFKA_BROKERS", nil),
		Topic:   getEnvOrDefault("KAFKA_SECURITY_TOPIC", "medqueue.security"),
	}
	c.Log = LogConfig{
		Level:       getEnvOrDefault("LOG_LEVEL", "info"),
		Environment: getEnvOrDefault("APP_ENV", "development"),
	}
	c.Scheduler = SchedulerConfig{
		Enabled:             getEnvAsBool("SCHEDULER_ENABLED", true),
		AppointmentSweep:    getEnvOrDefault("SCHEDULE_APPOINTMENT_SWEEP", "*/15 * * * *"),
		CodePurge:           getEnvOrDefault("SCHEDULE_CODE_PURGE", "0 * * * *"),
		AuditCleanup:        getEnvOrDefault("SCHEDULE_AUDIT_CLEANUP", "30 3 * * *"),
		MissedAppointmentIn: getEnvAsDuration("MISSED_APPOINTMENT_GRACE", time.Hour),
	}

	// Load rate limit configuration
	c.RateLimit.Requests = getEnvAsInt("RATE_LIMIT_REQUESTS", 1000)
	c.RateLimit.Window = getEnvAsInt("RATE_LIMIT_WINDOW", 60)
	c.RateLimit.Burst = getEnvAsInt("RATE_LIMIT_BURST", 50)

	// Validate required fields
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Security.MaxLoginAttempts < 1 {
		return fmt.Errorf("MAX_LOGIN_ATTEMPTS must be positive")
	}

	return nil
}

// getEnvAsInt retrieves an environment variable and converts it to an integer
func getEnvAsInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvAsBool retrieves an environment variable and converts it to a boolean
func getEnvAsBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvAsDuration accepts Go duration strings such as "30m"
func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvAsList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
