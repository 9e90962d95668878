package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures top-level service configuration. Values are read once at
// startup and handed to component constructors; nothing reads the environment
// after boot, so tests can construct arbitrary configs directly.
type Server struct {
	Addr string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// Signing key ring: version -> secret. CurrentKeyID is used for minting;
	// every listed key is accepted during verification so keys can rotate
	// without invalidating outstanding tokens.
	SigningKeys  map[string]string
	CurrentKeyID string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ClockSkew       time.Duration

	// Minimum password strength score (0-100) accepted at credential creation.
	MinPasswordScore int
	// Concurrent bcrypt operations allowed before hashing callers queue.
	HashWorkers int

	// Bounded timeout applied to every counter-store check on the hot path.
	CheckTimeout time.Duration

	// EndpointRules maps route patterns to their own sliding-window budgets,
	// parsed from RATE_LIMIT_ENDPOINTS ("/auth/login=10/1m,...").
	EndpointRules map[string]EndpointRule

	// Sliding-window admission ceilings. A zero limit disables that scope.
	GlobalLimit        int
	GlobalWindow       time.Duration
	PerIPLimit         int
	PerIPWindow        time.Duration
	PerPrincipalLimit  int
	PerPrincipalWindow time.Duration

	// Token-bucket burst guard on the most specific request identifier.
	BurstCapacity int
	BurstRefill   float64

	CleanupInterval time.Duration

	Redis RedisConfig

	// External provider budget per connected account.
	QuotaPerWindow int
	QuotaWindow    time.Duration
}

// EndpointRule is one route's sliding-window budget.
type EndpointRule struct {
	Limit  int
	Window time.Duration
}

// RedisConfig configures the optional shared counter store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

const (
	defaultAccessTokenTTL  = 7 * 24 * time.Hour
	defaultRefreshTokenTTL = 30 * 24 * time.Hour
	defaultClockSkew       = 5 * time.Second
	defaultCheckTimeout    = 250 * time.Millisecond
	defaultQuotaPerWindow  = 200
	defaultQuotaWindow     = time.Hour
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:             envOr("GATEHOUSE_ADDR", ":8080"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		AccessTokenTTL:   envDuration("ACCESS_TOKEN_TTL", defaultAccessTokenTTL),
		RefreshTokenTTL:  envDuration("REFRESH_TOKEN_TTL", defaultRefreshTokenTTL),
		ClockSkew:        envDuration("TOKEN_CLOCK_SKEW", defaultClockSkew),
		MinPasswordScore: envInt("MIN_PASSWORD_SCORE", 60),
		HashWorkers:      envInt("HASH_WORKERS", 4),
		CheckTimeout:     envDuration("CHECK_TIMEOUT", defaultCheckTimeout),
		QuotaPerWindow:   envInt("UPSTREAM_QUOTA_PER_WINDOW", defaultQuotaPerWindow),
		QuotaWindow:      envDuration("UPSTREAM_QUOTA_WINDOW", defaultQuotaWindow),

		GlobalLimit:        envInt("RATE_LIMIT_GLOBAL", 0),
		GlobalWindow:       envDuration("RATE_LIMIT_GLOBAL_WINDOW", time.Minute),
		PerIPLimit:         envInt("RATE_LIMIT_PER_IP", 120),
		PerIPWindow:        envDuration("RATE_LIMIT_PER_IP_WINDOW", time.Minute),
		PerPrincipalLimit:  envInt("RATE_LIMIT_PER_PRINCIPAL", 300),
		PerPrincipalWindow: envDuration("RATE_LIMIT_PER_PRINCIPAL_WINDOW", time.Minute),
		BurstCapacity:      envInt("RATE_LIMIT_BURST_CAPACITY", 10),
		BurstRefill:        envFloat("RATE_LIMIT_BURST_REFILL", 2),
		CleanupInterval:    envDuration("SESSION_CLEANUP_INTERVAL", 5*time.Minute),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}

	cfg.SigningKeys, cfg.CurrentKeyID = parseSigningKeys(os.Getenv("JWT_SIGNING_KEYS"))
	cfg.EndpointRules = parseEndpointRules(os.Getenv("RATE_LIMIT_ENDPOINTS"))
	return cfg
}

// parseEndpointRules parses "/auth/login=10/1m,/auth/refresh=30/1m" into
// per-route budgets. Malformed entries are skipped rather than failing
// boot; a missing or empty variable leaves endpoint limiting off.
func parseEndpointRules(raw string) map[string]EndpointRule {
	if raw == "" {
		return nil
	}
	rules := make(map[string]EndpointRule)
	for _, entry := range strings.Split(raw, ",") {
		path, spec, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || path == "" {
			continue
		}
		limitStr, windowStr, ok := strings.Cut(spec, "/")
		if !ok {
			continue
		}
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			continue
		}
		window, err := time.ParseDuration(windowStr)
		if err != nil || window <= 0 {
			continue
		}
		rules[path] = EndpointRule{Limit: limit, Window: window}
	}
	if len(rules) == 0 {
		return nil
	}
	return rules
}

// parseSigningKeys parses "v1:secret1,v2:secret2" into a key ring. The last
// entry becomes the current minting key. Falls back to a dev-only key when
// unset - must be overridden in production.
func parseSigningKeys(raw string) (map[string]string, string) {
	if raw == "" {
		return map[string]string{"dev": "dev-secret-key-change-in-production"}, "dev"
	}
	keys := make(map[string]string)
	current := ""
	for _, pair := range strings.Split(raw, ",") {
		version, secret, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || version == "" || secret == "" {
			continue
		}
		keys[version] = secret
		current = version
	}
	if len(keys) == 0 {
		return map[string]string{"dev": "dev-secret-key-change-in-production"}, "dev"
	}
	return keys, current
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
