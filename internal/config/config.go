package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DB     DBConfig
	MinIO  MinIOConfig
	JWT    JWTConfig
	Server ServerConfig
	Geo    GeoConfig
	Mongo  MongoConfig
	Log    LogConfig
	Admin  AdminConfig
	Audit  AuditConfig
}

type DBConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	// Path is the SQLite file used when Driver is "sqlite".
	Path string
}

type MinIOConfig struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
	Region         string
	// UseIAM switches to instance credentials when no static keys are set.
	UseIAM bool
}

type JWTConfig struct {
	Secret                 string
	ExpirationHours        int
	RefreshSecret          string
	RefreshExpirationHours int
}

type ServerConfig struct {
	Port               string
	CORSOrigins        []string
	RateLimitPerMinute int
	BodyLimitMB        int
	ShutdownTimeout    time.Duration
	SecureCookies      bool
}

const (
	GeoBackendSQL   = "sql"
	GeoBackendMongo = "mongo"
)

type GeoConfig struct {
	Backend         string
	MaxResults      int
	DefaultRadiusKm float64
}

type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type LogConfig struct {
	Level string
}

type AdminConfig struct {
	Name     string
	Email    string
	Password string
}

type AuditConfig struct {
	QueueSize int
}

// LoadDotEnv reads a .env file into the process environment. A missing file
// is not an error; variables already set win over the file.
func LoadDotEnv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Driver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "resqnet"),
			Password: getEnv("DB_PASSWORD", "resqnet_secret"),
			Name:     getEnv("DB_NAME", "resqnet"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Path:     getEnv("DB_PATH", "resqnet.db"),
		},
		MinIO: MinIOConfig{
			Endpoint:       getEnv("MINIO_ENDPOINT", "localhost:9000"),
			PublicEndpoint: getEnv("MINIO_PUBLIC_ENDPOINT", getEnv("MINIO_ENDPOINT", "localhost:9000")),
			AccessKey:      getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey:      getEnv("MINIO_SECRET_KEY", ""),
			Bucket:         getEnv("MINIO_BUCKET", "resqnet-media"),
			UseSSL:         getEnvAsBool("MINIO_USE_SSL", false),
			Region:         getEnv("MINIO_REGION", ""),
			UseIAM:         getEnvAsBool("MINIO_USE_IAM", false),
		},
		JWT: JWTConfig{
			Secret:                 getEnv("JWT_SECRET", "change-me-in-production"),
			ExpirationHours:        getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
			RefreshSecret:          getEnv("JWT_REFRESH_SECRET", "change-me-too"),
			RefreshExpirationHours: getEnvAsInt("JWT_REFRESH_EXPIRATION_HOURS", 24*7),
		},
		Server: ServerConfig{
			Port:               getEnv("SERVER_PORT", "8080"),
			CORSOrigins:        getEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000"}),
			RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 120),
			BodyLimitMB:        getEnvAsInt("BODY_LIMIT_MB", 12),
			ShutdownTimeout:    getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
			SecureCookies:      getEnvAsBool("SECURE_COOKIES", false),
		},
		Geo: GeoConfig{
			Backend:         strings.ToLower(getEnv("GEO_BACKEND", GeoBackendSQL)),
			MaxResults:      getEnvAsInt("GEO_MAX_RESULTS", 10),
			DefaultRadiusKm: getEnvAsFloat("GEO_DEFAULT_RADIUS_KM", 5),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DATABASE", "resqnet"),
			Timeout:  getEnvAsDuration("MONGO_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Admin: AdminConfig{
			Name:     getEnv("ADMIN_NAME", "ResQNet Admin"),
			Email:    getEnv("ADMIN_EMAIL", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
		Audit: AuditConfig{
			QueueSize: getEnvAsInt("AUDIT_QUEUE_SIZE", 1000),
		},
	}
}

// PostgresDSN builds the connection string for gorm's postgres driver.
func (c DBConfig) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
