package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend names accepted by the *_BACKEND variables.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
	BackendRedis    = "redis"
	BackendLog      = "log"
	BackendKafka    = "kafka"
	BackendNATS     = "nats"
)

// Config is the full process configuration.
type Config struct {
	Server       Server
	Stores       Stores
	Postgres     PostgresConfig
	Redis        RedisConfig
	DynamoDB     DynamoDBConfig
	Kafka        KafkaConfig
	NATS         NATSConfig
	Payment      PaymentConfig
	Registration RegistrationConfig
	Catalog      CatalogConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	LogLevel      string
}

// Stores selects a backend per storage concern.
type Stores struct {
	Records    string // STORE_BACKEND: memory | postgres
	Membership string // MEMBERSHIP_BACKEND: memory | postgres | dynamodb
	Feed       string // FEED_BACKEND: memory | redis
	Notify     string // NOTIFY_BACKEND: log | kafka | nats
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DynamoDBConfig struct {
	Region      string
	Endpoint    string // optional, for DynamoDB Local
	UsersTable  string
	EventsTable string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type NATSConfig struct {
	URL     string
	Stream  string
	Subject string
}

type PaymentConfig struct {
	Provider            string // stub | stripe
	StubSecret          string
	StripeSecretKey     string
	StripeWebhookSecret string
	SuccessURL          string
	CancelURL           string
}

// CatalogConfig seeds the in-memory catalog when STORE_BACKEND=memory.
type CatalogConfig struct {
	SeedFile string
}

type RegistrationConfig struct {
	TxTimeout time.Duration
}

// FromEnv builds a Config from environment variables, loading a .env file first
// when one is present so main stays lean.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		Server: Server{
			Addr:          getEnv("CAMPUSREG_ADDR", ":8080"),
			JWTSigningKey: getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:     getEnv("JWT_ISSUER", "campusreg"),
			JWTAudience:   getEnv("JWT_AUDIENCE", "campusreg-api"),
			LogLevel:      getEnv("LOG_LEVEL", "info"),
		},
		Stores: Stores{
			Records:    getEnv("STORE_BACKEND", BackendMemory),
			Membership: getEnv("MEMBERSHIP_BACKEND", BackendMemory),
			Feed:       getEnv("FEED_BACKEND", BackendMemory),
			Notify:     getEnv("NOTIFY_BACKEND", BackendLog),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		DynamoDB: DynamoDBConfig{
			Region:      getEnv("AWS_REGION", "us-east-1"),
			Endpoint:    os.Getenv("DYNAMODB_ENDPOINT"),
			UsersTable:  getEnv("DYNAMODB_USER_EVENTS_TABLE", "user_event_memberships"),
			EventsTable: getEnv("DYNAMODB_EVENT_USERS_TABLE", "event_user_memberships"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_NOTIFY_TOPIC", "campus.notifications"),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", "nats://127.0.0.1:4222"),
			Stream:  getEnv("NATS_NOTIFY_STREAM", "CAMPUS_NOTIFICATIONS"),
			Subject: getEnv("NATS_NOTIFY_SUBJECT", "campus.notifications"),
		},
		Payment: PaymentConfig{
			Provider:            getEnv("PAYMENT_PROVIDER", "stub"),
			StubSecret:          getEnv("PAYMENT_STUB_SECRET", "dev-webhook-secret"),
			StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			SuccessURL:          getEnv("PAYMENT_SUCCESS_URL", "http://localhost:8080/checkout/success"),
			CancelURL:           getEnv("PAYMENT_CANCEL_URL", "http://localhost:8080/checkout/cancel"),
		},
		Registration: RegistrationConfig{
			TxTimeout: getDuration("REGISTRATION_TX_TIMEOUT", 5*time.Second),
		},
		Catalog: CatalogConfig{
			SeedFile: os.Getenv("CATALOG_SEED_FILE"),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
