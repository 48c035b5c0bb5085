package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort            string   `env:"HTTP_PORT" envDefault:"8000"`
	DatabaseURL         string   `env:"DATABASE_URL,required"`
	JWTSecret           string   `env:"JWT_SECRET_KEY,required"`
	JWTAccessTTLMinutes int      `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"30"`
	PublicBaseURL       string   `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8000"`
	FrontendURL         string   `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	CORSAllowedOrigins  []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	MetricsAddr         string   `env:"METRICS_ADDR" envDefault:":9090"`
	SMTPHost            string   `env:"SMTP_HOST"`
	SMTPPort            int      `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser            string   `env:"SMTP_USER"`
	SMTPPass            string   `env:"SMTP_PASS"`
	SMTPFrom            string   `env:"SMTP_FROM" envDefault:"noreply@timeoffmanager.com"`
	SMTPFromName        string   `env:"SMTP_FROM_NAME" envDefault:"Timeoff Manager"`
	SMTPUseTLS          bool     `env:"SMTP_USE_TLS" envDefault:"false"`
	RedisAddr           string   `env:"REDIS_ADDR"`
	RedisPassword       string   `env:"REDIS_PASSWORD"`
	RedisDB             int      `env:"REDIS_DB" envDefault:"0"`
	GoogleClientID      string   `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret  string   `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL   string   `env:"GOOGLE_REDIRECT_URL" envDefault:"http://localhost:8000/google/callback"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
