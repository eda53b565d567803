package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName          = "USSDGateway"
	defaultAppEnv           = "development"
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultShutdownDelay    = 10 * time.Second
	defaultSessionIdle      = 5 * time.Minute
	defaultReaperInterval   = 30 * time.Second
	defaultOperationTimeout = 5 * time.Second
	defaultPINLockoutWindow = 15 * time.Minute
	defaultPINMaxAttempts   = 3
	defaultAirtimeMin       = 50
	defaultAirtimeMax       = 10_000
	defaultCurrency         = "NGN"
	defaultSupportPhone     = "0700-000-0000"
	defaultSupportEmail     = "support@example.com"

	// SessionBackendMemory keeps sessions in the process.
	SessionBackendMemory = "memory"
	// SessionBackendRedis keeps sessions in Redis so replicas can share dialogs.
	SessionBackendRedis = "redis"

	// RelayTextAccumulated relays send the whole '*'-joined dialog text.
	RelayTextAccumulated = "accumulated"
	// RelayTextLatest relays send only the keystroke for the current screen.
	RelayTextLatest = "latest"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	AutoMigrate    bool
	ShutdownPeriod time.Duration

	SessionBackend   string
	RelayTextMode    string
	SessionIdle      time.Duration
	ReaperInterval   time.Duration
	OperationTimeout time.Duration

	PINMaxAttempts   int
	PINLockoutWindow time.Duration
	BcryptCost       int

	AirtimeMin       int64
	AirtimeMax       int64
	AirtimeProviders []string

	Currency     string
	SupportPhone string
	SupportEmail string
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:          getEnv("APP_NAME", defaultAppName),
		AppEnv:           getEnv("APP_ENV", defaultAppEnv),
		Port:             getEnv("PORT", defaultPort),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		SessionBackend:   strings.ToLower(getEnv("SESSION_BACKEND", SessionBackendMemory)),
		RelayTextMode:    strings.ToLower(getEnv("USSD_TEXT_MODE", RelayTextAccumulated)),
		Currency:         getEnv("CURRENCY", defaultCurrency),
		SupportPhone:     getEnv("SUPPORT_PHONE", defaultSupportPhone),
		SupportEmail:     getEnv("SUPPORT_EMAIL", defaultSupportEmail),
		AirtimeProviders: splitList(getEnv("AIRTIME_PROVIDERS", "mtn,airtel,glo,9mobile")),
	}

	var err error
	if cfg.AutoMigrate, err = boolFromEnv("AUTO_MIGRATE", false); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = durationFromEnv("SHUTDOWN_TIMEOUT", defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.SessionIdle, err = durationFromEnv("SESSION_IDLE_TIMEOUT", defaultSessionIdle); err != nil {
		return Config{}, err
	}
	if cfg.ReaperInterval, err = durationFromEnv("REAPER_INTERVAL", defaultReaperInterval); err != nil {
		return Config{}, err
	}
	if cfg.OperationTimeout, err = durationFromEnv("OPERATION_TIMEOUT", defaultOperationTimeout); err != nil {
		return Config{}, err
	}
	if cfg.PINLockoutWindow, err = durationFromEnv("PIN_LOCKOUT_WINDOW", defaultPINLockoutWindow); err != nil {
		return Config{}, err
	}
	if cfg.PINMaxAttempts, err = intFromEnv("PIN_MAX_ATTEMPTS", defaultPINMaxAttempts); err != nil {
		return Config{}, err
	}
	if cfg.BcryptCost, err = intFromEnv("BCRYPT_COST", 0); err != nil {
		return Config{}, err
	}
	var minAmount, maxAmount int
	if minAmount, err = intFromEnv("AIRTIME_MIN", defaultAirtimeMin); err != nil {
		return Config{}, err
	}
	if maxAmount, err = intFromEnv("AIRTIME_MAX", defaultAirtimeMax); err != nil {
		return Config{}, err
	}
	cfg.AirtimeMin, cfg.AirtimeMax = int64(minAmount), int64(maxAmount)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.SessionBackend {
	case SessionBackendMemory, SessionBackendRedis:
	default:
		return fmt.Errorf("invalid SESSION_BACKEND %q", c.SessionBackend)
	}
	switch c.RelayTextMode {
	case RelayTextAccumulated, RelayTextLatest:
	default:
		return fmt.Errorf("invalid USSD_TEXT_MODE %q", c.RelayTextMode)
	}
	if c.SessionIdle <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive")
	}
	if c.AirtimeMin <= 0 || c.AirtimeMax < c.AirtimeMin {
		return fmt.Errorf("invalid airtime bounds %d..%d", c.AirtimeMin, c.AirtimeMax)
	}
	if c.SessionBackend == SessionBackendRedis && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL must be set when SESSION_BACKEND=redis")
	}
	if c.IsDevelopment() {
		return nil
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL must be set")
	}
	return nil
}

// IsDevelopment reports whether in-memory fallbacks are allowed.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// durationFromEnv accepts either NAME_SECONDS=30 or NAME=30s, seconds taking precedence.
func durationFromEnv(name string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(name + "_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s_SECONDS: %w", name, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(name); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", name, err)
		}
		return d, nil
	}
	return fallback, nil
}

func intFromEnv(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return n, nil
}

func boolFromEnv(name string, fallback bool) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", name, err)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
