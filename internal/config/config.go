package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Env string `mapstructure:"env"`

	Server struct {
		Port               int           `mapstructure:"port"`
		ReadTimeout        time.Duration `mapstructure:"read_timeout"`
		WriteTimeout       time.Duration `mapstructure:"write_timeout"`
		MaxUploadBytes     int64         `mapstructure:"max_upload_bytes"`
		CorsAllowedOrigins []string      `mapstructure:"cors_allowed_origins"`
		CorsAllowedMethods []string      `mapstructure:"cors_allowed_methods"`
		CorsAllowedHeaders []string      `mapstructure:"cors_allowed_headers"`
	} `mapstructure:"server"`

	Database struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
		MaxConns int32  `mapstructure:"max_conns"`
	} `mapstructure:"database"`

	JWT struct {
		Secret          string `mapstructure:"secret"`
		ExpirationHours int    `mapstructure:"expiration_hours"`
		Issuer          string `mapstructure:"issuer"`
		Audience        string `mapstructure:"audience"`
	} `mapstructure:"jwt"`

	Redis struct {
		Addr      string        `mapstructure:"addr"`
		Password  string        `mapstructure:"password"`
		DB        int           `mapstructure:"db"`
		RatingTTL time.Duration `mapstructure:"rating_ttl"`
	} `mapstructure:"redis"`

	Storage struct {
		Driver       string `mapstructure:"driver"` // local | s3
		LocalRoot    string `mapstructure:"local_root"`
		PublicPrefix string `mapstructure:"public_prefix"`
		S3           struct {
			Bucket        string `mapstructure:"bucket"`
			Region        string `mapstructure:"region"`
			Endpoint      string `mapstructure:"endpoint"`
			AccessKey     string `mapstructure:"access_key"`
			SecretKey     string `mapstructure:"secret_key"`
			PublicBaseURL string `mapstructure:"public_base_url"`
		} `mapstructure:"s3"`
	} `mapstructure:"storage"`

	Email struct {
		SMTPHost      string        `mapstructure:"smtp_host"`
		SMTPPort      int           `mapstructure:"smtp_port"`
		SMTPUser      string        `mapstructure:"smtp_user"`
		SMTPPassword  string        `mapstructure:"smtp_password"`
		From          string        `mapstructure:"from"`
		DrainSchedule string        `mapstructure:"drain_schedule"`
		BatchSize     int           `mapstructure:"batch_size"`
		MaxRetries    int           `mapstructure:"max_retries"`
		ClaimTimeout  time.Duration `mapstructure:"claim_timeout"`
	} `mapstructure:"email"`

	RateLimit struct {
		LoginRPS   float64 `mapstructure:"login_rps"`
		LoginBurst int     `mapstructure:"login_burst"`
		GuestRPS   float64 `mapstructure:"guest_rps"`
		GuestBurst int     `mapstructure:"guest_burst"`
	} `mapstructure:"ratelimit"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	// Bootstrap seeds the first Owner account when the users table is empty.
	Bootstrap struct {
		OwnerName     string `mapstructure:"owner_name"`
		OwnerEmail    string `mapstructure:"owner_email"`
		OwnerPassword string `mapstructure:"owner_password"`
	} `mapstructure:"bootstrap"`
}

// Email outbox defaults, shared with the worker's zero-value fallbacks.
const (
	DefaultEmailDrainSchedule = "@every 1m"
	DefaultEmailBatchSize     = 10
	DefaultEmailMaxRetries    = 3
	DefaultEmailClaimTimeout  = 10 * time.Minute
)

var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set outside development")

// Load reads configs/config.yaml (optional), .env (optional) and the
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile("configs/config.yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Printf("[Config] No config file found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)

	if cfg.JWT.Secret == "" {
		if cfg.Env != "development" {
			return nil, ErrMissingJWTSecret
		}
		log.Printf("[Config] JWT_SECRET not set, using development secret")
		cfg.JWT.Secret = "dev-only-secret-change-me"
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.max_upload_bytes", int64(100*1024*1024))
	v.SetDefault("server.cors_allowed_origins", []string{"*"})
	v.SetDefault("server.cors_allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("server.cors_allowed_headers", []string{"Authorization", "Content-Type"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "servus")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("jwt.expiration_hours", 24)
	v.SetDefault("jwt.issuer", "servus-backend")
	v.SetDefault("jwt.audience", "servus-clients")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.rating_ttl", 10*time.Minute)

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local_root", "uploads")
	v.SetDefault("storage.public_prefix", "/uploads")
	v.SetDefault("storage.s3.region", "auto")

	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.from", "no-reply@servus.local")
	v.SetDefault("email.drain_schedule", DefaultEmailDrainSchedule)
	v.SetDefault("email.batch_size", DefaultEmailBatchSize)
	v.SetDefault("email.max_retries", DefaultEmailMaxRetries)
	v.SetDefault("email.claim_timeout", DefaultEmailClaimTimeout)

	v.SetDefault("ratelimit.login_rps", 1.0)
	v.SetDefault("ratelimit.login_burst", 5)
	v.SetDefault("ratelimit.guest_rps", 0.2)
	v.SetDefault("ratelimit.guest_burst", 3)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("bootstrap.owner_name", "Owner")
}

// applyEnvOverrides honours the short variable names used by deployment manifests.
func applyEnvOverrides(cfg *Config) {
	overrides := map[string]*string{
		"DB_HOST":        &cfg.Database.Host,
		"DB_USER":        &cfg.Database.User,
		"DB_PASSWORD":    &cfg.Database.Password,
		"DB_NAME":        &cfg.Database.Name,
		"JWT_SECRET":     &cfg.JWT.Secret,
		"REDIS_ADDR":     &cfg.Redis.Addr,
		"SMTP_HOST":      &cfg.Email.SMTPHost,
		"SMTP_USER":      &cfg.Email.SMTPUser,
		"SMTP_PASSWORD":  &cfg.Email.SMTPPassword,
		"S3_BUCKET":      &cfg.Storage.S3.Bucket,
		"S3_ENDPOINT":    &cfg.Storage.S3.Endpoint,
		"S3_ACCESS_KEY":  &cfg.Storage.S3.AccessKey,
		"S3_SECRET_KEY":  &cfg.Storage.S3.SecretKey,
		"STORAGE_DRIVER": &cfg.Storage.Driver,
		"OWNER_EMAIL":    &cfg.Bootstrap.OwnerEmail,
		"OWNER_PASSWORD": &cfg.Bootstrap.OwnerPassword,
	}
	for key, target := range overrides {
		if val := os.Getenv(key); val != "" {
			*target = val
		}
	}
}
