package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Store        StoreConfig
	Backend      BackendConfig
	Ticket       TicketConfig
	Telemetry    TelemetryConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines operator authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	// BackendToken authenticates the print backend status feed.
	BackendToken string
}

// NotificationConfig controls owner notifications.
type NotificationConfig struct {
	EmailFrom        string
	WebhookURL       string
	NotifyOnCancel   bool
	NotifyOnComplete bool
}

// StoreConfig locates the ticket directory.
type StoreConfig struct {
	TicketDir string
}

// BackendConfig configures the spool folder print backend.
type BackendConfig struct {
	SpoolDir string
	// QueueDepthIntervalSeconds is the period of the queue depth resync.
	QueueDepthIntervalSeconds int
}

// QueueDepthInterval returns the resync period, zero when disabled.
func (b BackendConfig) QueueDepthInterval() time.Duration {
	if b.QueueDepthIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(b.QueueDepthIntervalSeconds) * time.Second
}

// TicketConfig holds admission and accounting parameters.
type TicketConfig struct {
	LabelDomain      string
	LabelUse         string
	LabelTag         string
	NodeID           int64
	MonetaryScale    int32
	CreditCheck      bool
	NumberRetries    int
	DeliveryTTLHours int
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Insecure       bool
}

// Load reads configuration from environment variables, applying defaults
// where possible. envFiles are loaded first; a missing default .env is fine.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	nodeID, err := strconv.ParseInt(getEnv("TICKET_NODE_ID", "1"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TICKET_NODE_ID: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	appName := getEnv("APP_NAME", "jobticket-service")
	appVersion := getEnv("APP_VERSION", "dev")

	cfg := &Config{
		App: AppConfig{
			Name:                  appName,
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               appVersion,
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			BackendToken:          os.Getenv("AUTH_BACKEND_TOKEN"),
		},
		Notification: NotificationConfig{
			EmailFrom:        getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL:       getEnv("NOTIFY_WEBHOOK_URL", ""),
			NotifyOnCancel:   getEnvAsBool("NOTIFY_ON_CANCEL", true),
			NotifyOnComplete: getEnvAsBool("NOTIFY_ON_COMPLETE", true),
		},
		Store: StoreConfig{
			TicketDir: getEnv("TICKET_DIR", "data/tickets"),
		},
		Backend: BackendConfig{
			SpoolDir:                  getEnv("BACKEND_SPOOL_DIR", "data/spool"),
			QueueDepthIntervalSeconds: getEnvAsInt("QUEUE_DEPTH_INTERVAL_SECONDS", 30),
		},
		Ticket: TicketConfig{
			LabelDomain:      os.Getenv("TICKET_LABEL_DOMAIN"),
			LabelUse:         os.Getenv("TICKET_LABEL_USE"),
			LabelTag:         os.Getenv("TICKET_LABEL_TAG"),
			NodeID:           nodeID,
			MonetaryScale:    int32(getEnvAsInt("TICKET_MONETARY_SCALE", 2)),
			CreditCheck:      getEnvAsBool("TICKET_CREDIT_CHECK", true),
			NumberRetries:    getEnvAsInt("TICKET_NUMBER_RETRIES", 5),
			DeliveryTTLHours: getEnvAsInt("TICKET_DELIVERY_TTL_HOURS", 72),
		},
		Telemetry: TelemetryConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", appName),
			ServiceVersion: appVersion,
			Endpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure:       getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the lifetime of operator tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// DeliveryTTL returns how long an admitted ticket stays deliverable.
func (t TicketConfig) DeliveryTTL() time.Duration {
	return time.Duration(t.DeliveryTTLHours) * time.Hour
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
