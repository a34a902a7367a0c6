package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	JWTSecret         string `env:"JWT_SECRET,required"`
	TOTPEncryptionKey string `env:"TOTP_ENCRYPTION_KEY,required"`
	TOTPIssuer        string `env:"TOTP_ISSUER" envDefault:"CandiDash"`
	BcryptCost        int    `env:"BCRYPT_COST" envDefault:"12"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"465"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"Candidash"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"true"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	S3Region    string `env:"S3_REGION" envDefault:"eu-west-3"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	S3BucketCV  string `env:"S3_BUCKET_CV" envDefault:"candidash-cv"`
	S3BucketLM  string `env:"S3_BUCKET_LM" envDefault:"candidash-lm"`

	ReminderInterval time.Duration `env:"REMINDER_INTERVAL" envDefault:"1h"`
	CleanupInterval  time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`
}

// IsProduction indica si las cookies deben marcarse como Secure.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
