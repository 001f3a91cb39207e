package config

import (
	"fmt"
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	Port               string `mapstructure:"PORT"`
	Env                string `mapstructure:"ENV"`
	LogLevel           string `mapstructure:"LOG_LEVEL"`
	DatabaseURL        string `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32  `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir      string `mapstructure:"MIGRATIONS_DIR"`
	JWTIssuer          string `mapstructure:"JWT_ISSUER"`
	JWTAudience        string `mapstructure:"JWT_AUDIENCE"`
	JWTSigningKey      string `mapstructure:"JWT_SIGNING_KEY"`
	JWTJWKSURL         string `mapstructure:"JWT_JWKS_URL"`
	RedisURL           string `mapstructure:"REDIS_URL"`
	RedisUsername      string `mapstructure:"REDIS_USERNAME"`
	RedisPassword      string `mapstructure:"REDIS_PASSWORD"`
	LockTTLSeconds     int    `mapstructure:"LOCK_TTL_SECONDS"`
	AMQPURL            string `mapstructure:"AMQP_URL"`
	EventsExchange     string `mapstructure:"EVENTS_EXCHANGE"`
	CacheEnabled       bool   `mapstructure:"CACHE_ENABLED"`
	CacheSize          int    `mapstructure:"CACHE_SIZE"`
	RateLimitPerMinute int    `mapstructure:"RATE_LIMIT_PER_MINUTE"`
	RateLimitBurst     int    `mapstructure:"RATE_LIMIT_BURST"`
	DefaultSlotMinutes int    `mapstructure:"DEFAULT_SLOT_MINUTES"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("LOCK_TTL_SECONDS", 10)
	v.SetDefault("EVENTS_EXCHANGE", "medbook.appointments")
	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("CACHE_SIZE", 512)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 300)
	v.SetDefault("RATE_LIMIT_BURST", 50)
	v.SetDefault("DEFAULT_SLOT_MINUTES", 30)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("MIGRATIONS_DIR")
	v.BindEnv("JWT_ISSUER")
	v.BindEnv("JWT_AUDIENCE")
	v.BindEnv("JWT_SIGNING_KEY")
	v.BindEnv("JWT_JWKS_URL")
	v.BindEnv("REDIS_URL")
	v.BindEnv("REDIS_USERNAME")
	v.BindEnv("REDIS_PASSWORD")
	v.BindEnv("LOCK_TTL_SECONDS")
	v.BindEnv("AMQP_URL")
	v.BindEnv("EVENTS_EXCHANGE")
	v.BindEnv("CACHE_ENABLED")
	v.BindEnv("CACHE_SIZE")
	v.BindEnv("RATE_LIMIT_PER_MINUTE")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("DEFAULT_SLOT_MINUTES")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active — all requests get admin access.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: Set ENV=production and configure JWT_JWKS_URL for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. In production
// real JWT authentication must be configured: either a JWKS URL for
// RS256 or, failing that, a shared HS256 signing key.
func (c *Config) Validate() error {
	if c.IsProduction() && c.JWTJWKSURL == "" && c.JWTSigningKey == "" {
		return fmt.Errorf(
			"JWT_JWKS_URL or JWT_SIGNING_KEY must be set in production (current ENV=%q). "+
				"Refusing to start without authentication configuration", c.Env)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.LockTTLSeconds <= 0 {
		return fmt.Errorf("LOCK_TTL_SECONDS must be positive, got %d", c.LockTTLSeconds)
	}
	if c.CacheEnabled && c.CacheSize <= 0 {
		return fmt.Errorf("CACHE_SIZE must be positive when CACHE_ENABLED is true, got %d", c.CacheSize)
	}
	if c.DefaultSlotMinutes <= 0 {
		return fmt.Errorf("DEFAULT_SLOT_MINUTES must be positive, got %d", c.DefaultSlotMinutes)
	}
	return nil
}
