package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL string
	Port        string
	DevMode     bool
	LogLevel    string

	JWTSecret        string
	JWTIssuer        string
	AccessTokenTTL   time.Duration
	StaffRefreshTTL  time.Duration
	ClientRefreshTTL time.Duration
	BcryptCost       int

	VerificationCodeTTL time.Duration

	RedisAddr     string
	RedisPassword string
	RabbitMQURL   string

	// RateLimitIP is a ulule/limiter formatted rate, e.g. "100-M".
	RateLimitIP            string
	LoginAttemptsPerWindow int
	LoginAttemptWindow     time.Duration
}

// MinSecretLength is the shortest JWT_SECRET accepted outside dev mode.
const MinSecretLength = 32

// Known weak or default secrets that are never accepted outside dev mode.
var knownWeakSecrets = []string{
	"changeme",
	"secret",
	"password",
	"test",
	"dev",
	"development",
	"supersecret",
	"your-secret-key",
	"sppt-secret",
}

// Load reads configuration from environment variables. Callers load .env
// files with godotenv beforehand; real environment variables take precedence.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Port:          envString("PORT", "8080"),
		LogLevel:      envString("LOG_LEVEL", "info"),
		JWTIssuer:     envString("JWT_ISSUER", "sppt"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RabbitMQURL:   os.Getenv("RABBITMQ_URL"),
		RateLimitIP:   envString("RATE_LIMIT_IP", "100-M"),
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	var err error
	if cfg.DevMode, err = envBool("DEV_MODE", false); err != nil {
		return nil, err
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if err := ValidateSecret(cfg.JWTSecret, cfg.DevMode); err != nil {
		return nil, err
	}

	if cfg.AccessTokenTTL, err = envDuration("ACCESS_TOKEN_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.StaffRefreshTTL, err = envDuration("STAFF_REFRESH_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ClientRefreshTTL, err = envDuration("CLIENT_REFRESH_TTL", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.VerificationCodeTTL, err = envDuration("VERIFICATION_CODE_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.LoginAttemptWindow, err = envDuration("LOGIN_ATTEMPT_WINDOW", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.BcryptCost, err = envInt("BCRYPT_COST", 10); err != nil {
		return nil, err
	}
	if cfg.LoginAttemptsPerWindow, err = envInt("LOGIN_ATTEMPTS_PER_WINDOW", 10); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateSecret rejects empty secrets always, and weak or short secrets
// unless dev is set.
func ValidateSecret(secret string, dev bool) error {
	if secret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	if dev {
		return nil
	}
	for _, weak := range knownWeakSecrets {
		if strings.EqualFold(secret, weak) {
			return errors.New("default/weak JWT secret not allowed outside dev mode")
		}
	}
	if len(secret) < MinSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters (got %d)", MinSecretLength, len(secret))
	}
	return nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: invalid positive integer %q", key, v)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	return b, nil
}
