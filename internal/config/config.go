package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	BackendMemory = "memory"
	BackendScylla = "scylla"

	CheckoutAuto   = "auto"
	CheckoutStripe = "stripe"
)

type Scylla struct {
	Hosts    []string
	Keyspace string
	Username string
	Password string
	CACert   string
	Timeout  time.Duration
}

type Redis struct {
	Addr     string
	Password string
}

type MinIO struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type Config struct {
	Port          string
	Env           string
	SessionSecret string
	JWTSecret     string
	CookieSecure  bool
	CORSOrigins   []string
	FrontendURL   string

	Backend string
	// SeedCatalog ajoute le catalogue de démonstration au backend ScyllaDB.
	SeedCatalog bool
	Scylla      Scylla
	Redis       Redis
	MinIO       MinIO
	SMTP        SMTP

	CartTTL         time.Duration
	ProductCacheTTL time.Duration

	CheckoutMode         string
	CheckoutRedirectBase string
	StripeWebhookSecret  string
}

// Load lit .env (si présent) puis les variables d'environnement.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Warn().Msg("⚠️  Aucun fichier .env trouvé, on continue avec les variables d'environnement du système")
	} else {
		log.Info().Msg("✅ Fichier .env chargé avec succès")
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	env := getenv("ENV", "development")
	cfg := &Config{
		Port:          getenv("PORT", "8080"),
		Env:           env,
		SessionSecret: os.Getenv("SESSION_SECRET"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		CORSOrigins:   splitList(getenv("CORS_ORIGINS", "http://localhost:3000")),
		FrontendURL:   getenv("FRONTEND_URL", "http://localhost:3000"),
		Backend:       getenv("BACKEND", BackendMemory),
		SeedCatalog:   os.Getenv("SEED_CATALOG") == "true",
		Scylla: Scylla{
			Hosts:    splitList(getenv("SCYLLA_HOSTS", "127.0.0.1")),
			Keyspace: getenv("SCYLLA_KEYSPACE", "storefront"),
			Username: os.Getenv("SCYLLA_USERNAME"),
			Password: os.Getenv("SCYLLA_PASSWORD"),
			CACert:   os.Getenv("SCYLLA_SSL_CA_PATH"),
		},
		Redis: Redis{
			Addr:     getenv("REDIS_HOST", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		MinIO: MinIO{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    os.Getenv("MINIO_BUCKET"),
			UseSSL:    os.Getenv("MINIO_USE_SSL") == "true",
		},
		SMTP: SMTP{
			Host:     os.Getenv("SMTP_HOST"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getenv("MAIL_FROM", "noreply@localhost"),
		},
		CheckoutMode:         getenv("CHECKOUT_MODE", CheckoutAuto),
		CheckoutRedirectBase: getenv("CHECKOUT_REDIRECT_BASE", "/orders/"),
		StripeWebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
	}

	var err error
	if cfg.CookieSecure, err = parseBool("COOKIE_SECURE", env == "production"); err != nil {
		return nil, err
	}
	if cfg.SMTP.Port, err = parseInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.CartTTL, err = parseDuration("CART_TTL", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ProductCacheTTL, err = parseDuration("PRODUCT_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Scylla.Timeout, err = parseDuration("SCYLLA_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.SessionSecret == "" {
		return fmt.Errorf("config: SESSION_SECRET manquant")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET manquant")
	}
	switch c.Backend {
	case BackendMemory, BackendScylla:
	default:
		return fmt.Errorf("config: BACKEND inconnu %q", c.Backend)
	}
	switch c.CheckoutMode {
	case CheckoutAuto:
	case CheckoutStripe:
		if c.StripeWebhookSecret == "" {
			return fmt.Errorf("config: STRIPE_WEBHOOK_SECRET requis en mode stripe")
		}
	default:
		return fmt.Errorf("config: CHECKOUT_MODE inconnu %q", c.CheckoutMode)
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}

func parseInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}
