// Package config provides configuration loading and validation for the gateway.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Session backends.
const (
	SessionBackendJWT   = "jwt"
	SessionBackendRedis = "redis"
)

// EnvProduction is the Env value that enables production-only checks.
const EnvProduction = "production"

// Config holds all configuration values for the gateway.
type Config struct {
	// Server settings
	Port        int    `koanf:"port"`
	Env         string `koanf:"env"`
	UpstreamURL string `koanf:"upstream_url"`

	// Backing services
	DatabaseURL string `koanf:"database_url"`
	RedisURL    string `koanf:"redis_url"`

	// Sessions
	SessionBackend        string `koanf:"session_backend"`
	SessionCookieName     string `koanf:"session_cookie_name"`
	SessionSecret         string `koanf:"session_secret"`
	SessionPreviousSecret string `koanf:"session_previous_secret"`

	// CORS
	CORSAllowedOrigins      []string `koanf:"cors_allowed_origins"`
	CORSAdminOrigins        []string `koanf:"cors_admin_origins"` // Defaults to CORSAllowedOrigins
	CORSPreviewSuffix       string   `koanf:"cors_preview_suffix"`
	CORSMaxAgePublic        int      `koanf:"cors_max_age_public"`
	CORSMaxAgeAuthenticated int      `koanf:"cors_max_age_authenticated"`
	CORSMaxAgeAdmin         int      `koanf:"cors_max_age_admin"`

	// Request pipeline
	AuthzCacheTTLSeconds  int    `koanf:"authz_cache_ttl_seconds"`
	CollaboratorTimeoutMS int    `koanf:"collaborator_timeout_ms"`
	ThreatScanMaxBytes    int    `koanf:"threat_scan_max_bytes"`
	RoutePolicyFile       string `koanf:"route_policy_file"`

	// Audit log
	AuditEnabled     bool `koanf:"audit_enabled"`
	AuditMaxInFlight int  `koanf:"audit_max_in_flight"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporter     string  `koanf:"tracing_exporter"`
	TracingEndpoint     string  `koanf:"tracing_endpoint"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`
	TracingInsecure     bool    `koanf:"tracing_insecure"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL       = errors.New("FUELGATE_DATABASE_URL is required in production")
	ErrMissingSessionSecret     = errors.New("FUELGATE_SESSION_SECRET is required for the jwt session backend")
	ErrMissingRedisURL          = errors.New("FUELGATE_REDIS_URL is required for the redis session backend")
	ErrMissingAllowedOrigins    = errors.New("FUELGATE_CORS_ALLOWED_ORIGINS is required in production")
	ErrInvalidSessionBackend    = errors.New("FUELGATE_SESSION_BACKEND must be jwt or redis")
	ErrInvalidPort              = errors.New("PORT must be a valid integer")
	ErrInvalidInteger           = errors.New("value must be a valid integer")
	ErrInvalidFloat             = errors.New("value must be a valid float")
	ErrNonPositiveCacheTTL      = errors.New("FUELGATE_AUTHZ_CACHE_TTL_SECONDS must be > 0")
	ErrNonPositiveTimeout       = errors.New("FUELGATE_COLLABORATOR_TIMEOUT_MS must be > 0")
	ErrNonPositiveScanLimit     = errors.New("FUELGATE_THREAT_SCAN_MAX_BYTES must be > 0")
	ErrNonPositiveAuditInFlight = errors.New("FUELGATE_AUDIT_MAX_IN_FLIGHT must be > 0")
	ErrNegativeMaxAge           = errors.New("CORS max-age values must be >= 0")
	ErrInvalidTracingSampleRate = errors.New("FUELGATE_TRACING_SAMPLING_RATE must be between 0 and 1")
)

// Default values for non-secret configuration.
const (
	DefaultPort                    = 8080
	DefaultEnv                     = "development"
	DefaultSessionBackend          = SessionBackendJWT
	DefaultSessionCookieName       = "fuelgate_session"
	DefaultCORSPreviewSuffix       = ".vercel.app"
	DefaultCORSMaxAgePublic        = 300
	DefaultCORSMaxAgeAuthenticated = 3600
	DefaultCORSMaxAgeAdmin         = 0
	DefaultAuthzCacheTTLSeconds    = 300
	DefaultCollaboratorTimeoutMS   = 3000
	DefaultThreatScanMaxBytes      = 64 << 10
	DefaultAuditEnabled            = true
	DefaultAuditMaxInFlight        = 256
	DefaultTracingExporter         = "otlp-http"
	DefaultTracingSamplingRate     = 0.1
)

// envPrefix is prepended to every environment variable name.
const envPrefix = "FUELGATE_"

// loader reads one setting from the environment, then the file, then the
// default, collecting parse errors.
type loader struct {
	k    *koanf.Koanf
	errs []error
}

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	l := &loader{k: k}

	// PORT and ENV are honoured for hosting platforms that inject them.
	port, err := getEnvIntOrDefaultMulti([]string{envPrefix + "PORT", "PORT"}, k.Int("port"), DefaultPort)
	if err != nil {
		l.errs = append(l.errs, err)
	}

	cfg := &Config{
		Port:        port,
		Env:         getEnvOrDefaultMulti([]string{envPrefix + "ENV", "ENV"}, k.String("env"), DefaultEnv),
		UpstreamURL: l.stringVal("upstream_url", ""),

		DatabaseURL: getEnvOrDefaultMulti([]string{envPrefix + "DATABASE_URL", "DATABASE_URL"}, k.String("database_url"), ""),
		RedisURL:    getEnvOrDefaultMulti([]string{envPrefix + "REDIS_URL", "REDIS_URL"}, k.String("redis_url"), ""),

		SessionBackend:        strings.ToLower(l.stringVal("session_backend", DefaultSessionBackend)),
		SessionCookieName:     l.stringVal("session_cookie_name", DefaultSessionCookieName),
		SessionSecret:         l.stringVal("session_secret", ""),
		SessionPreviousSecret: l.stringVal("session_previous_secret", ""),

		CORSAllowedOrigins:      l.listVal("cors_allowed_origins"),
		CORSAdminOrigins:        l.listVal("cors_admin_origins"),
		CORSPreviewSuffix:       l.stringVal("cors_preview_suffix", DefaultCORSPreviewSuffix),
		CORSMaxAgePublic:        l.intVal("cors_max_age_public", DefaultCORSMaxAgePublic),
		CORSMaxAgeAuthenticated: l.intVal("cors_max_age_authenticated", DefaultCORSMaxAgeAuthenticated),
		CORSMaxAgeAdmin:         l.intVal("cors_max_age_admin", DefaultCORSMaxAgeAdmin),

		AuthzCacheTTLSeconds:  l.intVal("authz_cache_ttl_seconds", DefaultAuthzCacheTTLSeconds),
		CollaboratorTimeoutMS: l.intVal("collaborator_timeout_ms", DefaultCollaboratorTimeoutMS),
		ThreatScanMaxBytes:    l.intVal("threat_scan_max_bytes", DefaultThreatScanMaxBytes),
		RoutePolicyFile:       l.stringVal("route_policy_file", ""),

		AuditEnabled:     l.boolVal("audit_enabled", DefaultAuditEnabled),
		AuditMaxInFlight: l.intVal("audit_max_in_flight", DefaultAuditMaxInFlight),

		TracingEnabled:      l.boolVal("tracing_enabled", false),
		TracingExporter:     l.stringVal("tracing_exporter", DefaultTracingExporter),
		TracingEndpoint:     l.stringVal("tracing_endpoint", ""),
		TracingSamplingRate: l.floatVal("tracing_sampling_rate", DefaultTracingSamplingRate),
		TracingInsecure:     l.boolVal("tracing_insecure", false),
	}

	if len(cfg.CORSAdminOrigins) == 0 {
		cfg.CORSAdminOrigins = cfg.CORSAllowedOrigins
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(l.errs, errs...)

	return cfg, errs
}

// envName maps a koanf key to its environment variable.
func envName(key string) string {
	return envPrefix + strings.ToUpper(key)
}

func (l *loader) stringVal(key, def string) string {
	return getEnvOrDefault(envName(key), l.k.String(key), def)
}

func (l *loader) intVal(key string, def int) int {
	if val := os.Getenv(envName(key)); val != "" {
		i, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			l.errs = append(l.errs, fmt.Errorf("%s: %w", envName(key), ErrInvalidInteger))
			return def
		}
		return i
	}
	if l.k.Exists(key) {
		return l.k.Int(key)
	}
	return def
}

func (l *loader) floatVal(key string, def float64) float64 {
	if val := os.Getenv(envName(key)); val != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			l.errs = append(l.errs, fmt.Errorf("%s: %w", envName(key), ErrInvalidFloat))
			return def
		}
		return f
	}
	if l.k.Exists(key) {
		return l.k.Float64(key)
	}
	return def
}

func (l *loader) boolVal(key string, def bool) bool {
	if val := os.Getenv(envName(key)); val != "" {
		// Env var takes precedence over file config
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	if l.k.Exists(key) {
		return l.k.Bool(key)
	}
	return def
}

// listVal reads a comma separated env var or a YAML string list.
func (l *loader) listVal(key string) []string {
	if val := os.Getenv(envName(key)); val != "" {
		return splitList(val)
	}
	if !l.k.Exists(key) {
		return nil
	}
	if v, ok := l.k.Get(key).(string); ok {
		return splitList(v)
	}
	var out []string
	for _, item := range l.k.Strings(key) {
		out = append(out, splitList(item)...)
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// IsProduction reports whether the gateway runs with production checks.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}

// AuthzCacheTTL returns the authorization cache TTL.
func (c *Config) AuthzCacheTTL() time.Duration {
	return time.Duration(c.AuthzCacheTTLSeconds) * time.Second
}

// CollaboratorTimeout returns the per-call collaborator timeout.
func (c *Config) CollaboratorTimeout() time.Duration {
	return time.Duration(c.CollaboratorTimeoutMS) * time.Millisecond
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	switch c.SessionBackend {
	case SessionBackendJWT:
		if c.SessionSecret == "" {
			errs = append(errs, ErrMissingSessionSecret)
		}
	case SessionBackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, ErrMissingRedisURL)
		}
	default:
		errs = append(errs, ErrInvalidSessionBackend)
	}

	if c.IsProduction() {
		if c.DatabaseURL == "" {
			errs = append(errs, ErrMissingDatabaseURL)
		}
		if len(c.CORSAllowedOrigins) == 0 {
			errs = append(errs, ErrMissingAllowedOrigins)
		}
	}

	if c.AuthzCacheTTLSeconds <= 0 {
		errs = append(errs, ErrNonPositiveCacheTTL)
	}
	if c.CollaboratorTimeoutMS <= 0 {
		errs = append(errs, ErrNonPositiveTimeout)
	}
	if c.ThreatScanMaxBytes <= 0 {
		errs = append(errs, ErrNonPositiveScanLimit)
	}
	if c.AuditEnabled && c.AuditMaxInFlight <= 0 {
		errs = append(errs, ErrNonPositiveAuditInFlight)
	}
	if c.CORSMaxAgePublic < 0 || c.CORSMaxAgeAuthenticated < 0 || c.CORSMaxAgeAdmin < 0 {
		errs = append(errs, ErrNegativeMaxAge)
	}
	if c.TracingEnabled && (c.TracingSamplingRate < 0 || c.TracingSamplingRate > 1) {
		errs = append(errs, ErrInvalidTracingSampleRate)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                       strconv.Itoa(c.Port),
		"env":                        c.Env,
		"upstream_url":               c.UpstreamURL,
		"database_url":               maskDatabaseURL(c.DatabaseURL),
		"redis_url":                  maskDatabaseURL(c.RedisURL),
		"session_backend":            c.SessionBackend,
		"session_cookie_name":        c.SessionCookieName,
		"session_secret":             maskSecret(c.SessionSecret),
		"session_previous_secret":    maskSecret(c.SessionPreviousSecret),
		"cors_allowed_origins":       strings.Join(c.CORSAllowedOrigins, ","),
		"cors_admin_origins":         strings.Join(c.CORSAdminOrigins, ","),
		"cors_preview_suffix":        c.CORSPreviewSuffix,
		"cors_max_age_public":        strconv.Itoa(c.CORSMaxAgePublic),
		"cors_max_age_authenticated": strconv.Itoa(c.CORSMaxAgeAuthenticated),
		"cors_max_age_admin":         strconv.Itoa(c.CORSMaxAgeAdmin),
		"authz_cache_ttl_seconds":    strconv.Itoa(c.AuthzCacheTTLSeconds),
		"collaborator_timeout_ms":    strconv.Itoa(c.CollaboratorTimeoutMS),
		"threat_scan_max_bytes":      strconv.Itoa(c.ThreatScanMaxBytes),
		"route_policy_file":          c.RoutePolicyFile,
		"audit_enabled":              strconv.FormatBool(c.AuditEnabled),
		"audit_max_in_flight":        strconv.Itoa(c.AuditMaxInFlight),
		"tracing_enabled":            strconv.FormatBool(c.TracingEnabled),
		"tracing_exporter":           c.TracingExporter,
		"tracing_endpoint":           c.TracingEndpoint,
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a connection URL.
// Works for postgres://, postgresql:// and redis:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	// Look for password pattern: user:password@host
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	// Reconstruct URL with masked password
	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
