package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr             string   `yaml:"http_addr"`
	DatabaseURL          string   `yaml:"database_url"`
	CORSAllowedOrigins   []string `yaml:"cors_allowed_origins"`
	CORSAllowCredentials bool     `yaml:"cors_allow_credentials"`

	JWTSecret    string `yaml:"jwt_secret"`
	CookieSecure bool   `yaml:"cookie_secure"`

	Log      LogConfig      `yaml:"log"`
	Sequence SequenceConfig `yaml:"sequence"`
	S3       S3Config       `yaml:"s3"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxAge     int    `yaml:"max_age"`
	MaxBackups int    `yaml:"max_backups"`
}

// SequenceConfig selects where post numbers are allocated.
type SequenceConfig struct {
	Backend  string `yaml:"backend"` // postgres | redis
	RedisURL string `yaml:"redis_url"`
}

type S3Config struct {
	Region          string        `yaml:"region"`
	Bucket          string        `yaml:"bucket"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
	BaseURL         string        `yaml:"base_url"`
	Endpoint        string        `yaml:"endpoint"`
	PresignTTL      time.Duration `yaml:"presign_ttl"`
}

// Load reads .env, then the optional YAML file at path, then the environment.
// Environment values win over the file.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr: ":8080",
		Log:      LogConfig{Level: "info", MaxSize: 100, MaxAge: 30, MaxBackups: 5},
		Sequence: SequenceConfig{Backend: "postgres"},
		S3:       S3Config{Region: "ap-northeast-2", PresignTTL: 5 * time.Minute},
	}

	if path == "" {
		path = getenv("CONFIG_FILE", "")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.HTTPAddr = getenv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.DatabaseURL = getenv("DATABASE_URL", cfg.DatabaseURL)
	cfg.CORSAllowCredentials = getbool("CORS_ALLOW_CREDENTIALS", cfg.CORSAllowCredentials)
	if v := getenv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		cfg.CORSAllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}

	cfg.JWTSecret = getenv("JWT_SECRET", cfg.JWTSecret)
	cfg.CookieSecure = getbool("COOKIE_SECURE", cfg.CookieSecure)

	cfg.Log.Level = getenv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = getenv("LOG_FILE", cfg.Log.File)

	cfg.Sequence.Backend = strings.ToLower(getenv("SEQUENCE_BACKEND", cfg.Sequence.Backend))
	cfg.Sequence.RedisURL = getenv("REDIS_URL", cfg.Sequence.RedisURL)

	cfg.S3.Region = getenv("AWS_REGION", cfg.S3.Region)
	cfg.S3.AccessKeyID = getenv("AWS_ACCESS_KEY_ID", cfg.S3.AccessKeyID)
	cfg.S3.SecretAccessKey = getenv("AWS_SECRET_ACCESS_KEY", cfg.S3.SecretAccessKey)
	cfg.S3.Bucket = getenv("S3_BUCKET", cfg.S3.Bucket)
	cfg.S3.BaseURL = getenv("S3_BASE_URL", cfg.S3.BaseURL)
	cfg.S3.Endpoint = getenv("S3_ENDPOINT", cfg.S3.Endpoint)
	if v := getenv("PRESIGN_TTL", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PRESIGN_TTL %q: %w", v, err)
		}
		cfg.S3.PresignTTL = d
	}
	if cfg.S3.BaseURL == "" && cfg.S3.Bucket != "" {
		cfg.S3.BaseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3.Bucket, cfg.S3.Region)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("missing env: DATABASE_URL"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("missing env: JWT_SECRET"))
	}
	switch c.Sequence.Backend {
	case "postgres":
	case "redis":
		if c.Sequence.RedisURL == "" {
			errs = append(errs, errors.New("missing env: REDIS_URL (SEQUENCE_BACKEND=redis)"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SEQUENCE_BACKEND %q", c.Sequence.Backend))
	}
	return errors.Join(errs...)
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getbool(key string, def bool) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
