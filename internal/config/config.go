package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	BaseURL     string
	HTTPAddr    string

	AdminToken string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Billplz BillplzConfig
}

// BillplzConfig carries the payment gateway credentials. XSignatureKey may be
// empty: webhook verification then runs in permissive mode.
type BillplzConfig struct {
	APIKey        string
	CollectionID  string
	Endpoint      string
	XSignatureKey string
}

// Configured reports whether the gateway can be called at all.
func (c BillplzConfig) Configured() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.CollectionID) != ""
}

// Sandbox reports whether the configured endpoint is the non-production
// gateway environment.
func (c BillplzConfig) Sandbox() bool {
	return strings.Contains(strings.ToLower(c.Endpoint), "sandbox")
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "kadkita"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  environment,
		BaseURL:      strings.TrimRight(getenv("APP_BASE_URL", "http://localhost:8080"), "/"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		AdminToken:   strings.TrimSpace(getenv("ADMIN_API_TOKEN", "")),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "kadkita"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 10),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		Billplz: BillplzConfig{
			APIKey:        strings.TrimSpace(getenv("BILLPLZ_API_KEY", "")),
			CollectionID:  strings.TrimSpace(getenv("BILLPLZ_COLLECTION_ID", "")),
			Endpoint:      strings.TrimRight(getenv("BILLPLZ_ENDPOINT", "https://www.billplz.com/api"), "/"),
			XSignatureKey: strings.TrimSpace(getenv("BILLPLZ_X_SIGNATURE_KEY", "")),
		},
	}

	return cfg
}

// Module wires configuration into the fx graph.
var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewAffiliatePolicyHolder),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
