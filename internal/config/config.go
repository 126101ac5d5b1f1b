package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"golang.org/x/crypto/bcrypt"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"false"`
	AppBaseURL  string `env:"APP_BASE_URL" envDefault:"http://localhost:3000"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret            string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`

	ResetTokenTTL      time.Duration `env:"RESET_TOKEN_TTL" envDefault:"10m"`
	ChangeTokenTTL     time.Duration `env:"CHANGE_TOKEN_TTL" envDefault:"10m"`
	PasswordMinLength  int           `env:"PASSWORD_MIN_LENGTH" envDefault:"8"`
	BcryptCost         int           `env:"BCRYPT_COST" envDefault:"10"`
	ResetRequestWindow time.Duration `env:"RESET_REQUEST_WINDOW" envDefault:"10m"`
	ResetRequestMax    int           `env:"RESET_REQUEST_MAX" envDefault:"3"`
	UserCacheTTL       time.Duration `env:"USER_CACHE_TTL" envDefault:"5m"`

	NotifyWorkers    int `env:"NOTIFY_WORKERS" envDefault:"2"`
	NotifyQueueSize  int `env:"NOTIFY_QUEUE_SIZE" envDefault:"256"`
	NotifyMaxRetries int `env:"NOTIFY_MAX_RETRIES" envDefault:"3"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rechaza combinaciones que dejarían el flujo de credenciales inseguro.
func (c *Config) Validate() error {
	if c.PasswordMinLength < 6 {
		return fmt.Errorf("PASSWORD_MIN_LENGTH must be at least 6, got %d", c.PasswordMinLength)
	}
	if c.ResetTokenTTL <= 0 {
		return fmt.Errorf("RESET_TOKEN_TTL must be positive")
	}
	if c.ChangeTokenTTL <= 0 {
		return fmt.Errorf("CHANGE_TOKEN_TTL must be positive")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	}
	return nil
}
