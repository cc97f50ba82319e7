package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Row Store backends
const (
	StoreSupabase = "supabase"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

// Auth providers
const (
	AuthSupabase = "supabase"
	AuthJWT      = "jwt"
	AuthFirebase = "firebase"
)

type Config struct {
	Port                    string
	Env                     string
	LogLevel                string
	MetricsPort             string
	RowStore                string
	SupabaseURL             string
	SupabaseAnonKey         string
	SupabaseJWTSecret       string
	PostgresConnStr         string
	MongoURI                string
	MongoDatabase           string
	FirebaseCredentialsPath string
	FirebaseEmulatorHost    string // read by the Firebase SDK itself
	AuthProvider            string
	BreakerFailureRatio     float64
}

// Load reads the configuration from the environment, after loading a .env
// file when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		LogLevel:                getEnv("LOG_LEVEL", ""),
		MetricsPort:             getEnv("METRICS_PORT", "9090"),
		RowStore:                getEnv("ROW_STORE", StoreSupabase),
		SupabaseURL:             getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:         getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseJWTSecret:       getEnv("SUPABASE_JWT_SECRET", ""),
		PostgresConnStr:         getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:                getEnv("MONGO_URI", ""),
		MongoDatabase:           getEnv("MONGO_DATABASE", "linkup"),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		FirebaseEmulatorHost:    getEnv("FIREBASE_AUTH_EMULATOR_HOST", ""),
		AuthProvider:            getEnv("AUTH_PROVIDER", AuthSupabase),
	}

	ratio, err := strconv.ParseFloat(getEnv("BREAKER_FAILURE_RATIO", "0.6"), 64)
	if err != nil || ratio <= 0 || ratio > 1 {
		return nil, fmt.Errorf("BREAKER_FAILURE_RATIO must be in (0, 1]")
	}
	cfg.BreakerFailureRatio = ratio

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	switch c.RowStore {
	case StoreSupabase:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_ANON_KEY are required for the supabase row store")
		}
	case StorePostgres:
		if c.PostgresConnStr == "" {
			return fmt.Errorf("POSTGRES_CONN_STR environment variable not set")
		}
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI environment variable not set")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown ROW_STORE %q", c.RowStore)
	}

	switch c.AuthProvider {
	case AuthSupabase:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_ANON_KEY are required for supabase auth")
		}
	case AuthJWT:
		if c.SupabaseJWTSecret == "" {
			return fmt.Errorf("SUPABASE_JWT_SECRET environment variable not set")
		}
	case AuthFirebase:
		if c.FirebaseCredentialsPath == "" && c.FirebaseEmulatorHost == "" {
			return fmt.Errorf("FIREBASE_CREDENTIALS_PATH environment variable not set")
		}
	default:
		return fmt.Errorf("unknown AUTH_PROVIDER %q", c.AuthProvider)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
