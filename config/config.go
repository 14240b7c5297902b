package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App               AppConfig
	HTTP              ServerConfig
	GRPC              ServerConfig
	MySQL             MySQLConfig
	Log               LogConfig
	InternalEndpoints InternalEndpointsConfig
	Asaas             AsaasConfig
	MercadoPago       MercadoPagoConfig
	Webhooks          WebhooksConfig
	Jobs              JobsConfig
	Metrics           MetricsConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

type InternalEndpointsConfig struct {
	AuthGRPCAddr string
}

// AsaasConfig holds the bank slip / PIX gateway settings. Charges are issued
// with the owning tenant's API key, so keys are kept per tenant.
type AsaasConfig struct {
	BaseURL       string
	WebhookToken  string
	TenantAPIKeys map[string]string
	HTTPTimeout   time.Duration
}

// MercadoPagoConfig holds the card / subscription gateway settings for the
// platform account.
type MercadoPagoConfig struct {
	BaseURL                   string
	AccessToken               string
	WebhookSecret             string
	SignatureToleranceSeconds int64
	HTTPTimeout               time.Duration
}

type WebhooksConfig struct {
	AllowUnsigned    bool
	ReplayStaleAfter time.Duration
	ReplayBatchSize  int32
}

type JobsConfig struct {
	ReplayInterval time.Duration
}

type MetricsConfig struct {
	Namespace string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "billing-service"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		InternalEndpoints: InternalEndpointsConfig{
			AuthGRPCAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", "localhost:9090"),
		},
		Asaas: AsaasConfig{
			BaseURL:       getEnv("ASAAS_BASE_URL", "https://api.asaas.com"),
			WebhookToken:  getEnv("ASAAS_WEBHOOK_TOKEN", ""),
			TenantAPIKeys: parseKeyPairs(os.Getenv("ASAAS_TENANT_API_KEYS")),
			HTTPTimeout:   getSecondsEnv("ASAAS_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		MercadoPago: MercadoPagoConfig{
			BaseURL:                   getEnv("MERCADOPAGO_BASE_URL", "https://api.mercadopago.com"),
			AccessToken:               getEnv("MERCADOPAGO_ACCESS_TOKEN", ""),
			WebhookSecret:             getEnv("MERCADOPAGO_WEBHOOK_SECRET", ""),
			SignatureToleranceSeconds: int64(getIntEnv("MERCADOPAGO_SIGNATURE_TOLERANCE_SECONDS", 300)),
			HTTPTimeout:               getSecondsEnv("MERCADOPAGO_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Webhooks: WebhooksConfig{
			AllowUnsigned:    getBoolEnv("WEBHOOKS_ALLOW_UNSIGNED", false),
			ReplayStaleAfter: getMinutesEnv("WEBHOOKS_REPLAY_STALE_AFTER_MINUTES", 10*time.Minute),
			ReplayBatchSize:  int32(getIntEnv("WEBHOOKS_REPLAY_BATCH_SIZE", 100)),
		},
		Jobs: JobsConfig{
			ReplayInterval: getMinutesEnv("WEBHOOKS_REPLAY_INTERVAL_MINUTES", 5*time.Minute),
		},
		Metrics: MetricsConfig{
			Namespace: getEnv("METRICS_NAMESPACE", "billing"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

// parseKeyPairs reads "tenant-a:key-a,tenant-b:key-b". Malformed pairs are skipped.
func parseKeyPairs(raw string) map[string]string {
	result := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		tenant, key, ok := strings.Cut(strings.TrimSpace(pair), ":")
		tenant = strings.TrimSpace(tenant)
		key = strings.TrimSpace(key)
		if !ok || tenant == "" || key == "" {
			continue
		}
		result[tenant] = key
	}
	return result
}
