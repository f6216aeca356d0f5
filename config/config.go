package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBType         string
	PostgresURL    string
	MongoURL       string
	MongoDatabase  string
	MigrationsPath string
	Port           string

	JWTSecret string
	JWTTTL    time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	LogLevel  string
	LogFormat string

	R2 R2Config

	SlipTemplate string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	DBTimeout       time.Duration

	// EnvFileLoaded is false when no .env file was found.
	EnvFileLoaded bool
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicURL       string
}

// Enabled reports whether blob storage is configured.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.Bucket != "" && c.PublicURL != ""
}

func LoadConfig() (*Config, error) {
	loaded := godotenv.Load() == nil

	cfg := &Config{
		DBType:         getenv("DB_TYPE", "mongo"),
		PostgresURL:    os.Getenv("POSTGRES_URL"),
		MongoURL:       os.Getenv("MONGO_URL"),
		MongoDatabase:  getenv("MONGO_DATABASE", "yardtrack"),
		MigrationsPath: getenv("MIGRATIONS_PATH", "file://db/migrations"),
		Port:           getenv("PORT", "8080"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogFormat:      getenv("LOG_FORMAT", "json"),
		SlipTemplate:   getenv("SLIP_TEMPLATE", "templates/weighbridge_slip.html"),
		R2: R2Config{
			AccountID:       os.Getenv("R2_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
			Bucket:          os.Getenv("R2_BUCKET"),
			PublicURL:       os.Getenv("R2_PUBLIC_URL"),
		},
		EnvFileLoaded: loaded,
	}

	var err error
	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"JWT_TTL", 12 * time.Hour, &cfg.JWTTTL},
		{"LOCK_TTL", 10 * time.Second, &cfg.LockTTL},
		{"READ_TIMEOUT", 15 * time.Second, &cfg.ReadTimeout},
		{"WRITE_TIMEOUT", 60 * time.Second, &cfg.WriteTimeout},
		{"SHUTDOWN_TIMEOUT", 20 * time.Second, &cfg.ShutdownTimeout},
		{"DB_TIMEOUT", 10 * time.Second, &cfg.DBTimeout},
	}
	for _, d := range durations {
		if *d.dest, err = getDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if cfg.RedisDB, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("REDIS_DB: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBType {
	case "mongo":
		if c.MongoURL == "" {
			return fmt.Errorf("MONGO_URL is required for DB_TYPE=mongo")
		}
	case "postgres":
		if c.PostgresURL == "" {
			return fmt.Errorf("POSTGRES_URL is required for DB_TYPE=postgres")
		}
	case "memory":
		if c.JWTSecret == "" {
			c.JWTSecret = "yardtrack-local"
		}
	default:
		return fmt.Errorf("DB_TYPE %q not supported", c.DBType)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
