package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	Session   SessionSettings   `mapstructure:"session"`
	Security  SecuritySettings  `mapstructure:"security"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection and key prefixes
type RedisSettings struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	DB             int    `mapstructure:"db"`
	Password       string `mapstructure:"password"`
	TLSEnabled     bool   `mapstructure:"tls_enabled"`
	SessionPrefix  string `mapstructure:"session_prefix"`
	RecoveryPrefix string `mapstructure:"recovery_prefix"`
}

// KafkaSettings configures the Kafka producer
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// SessionSettings configures session lifetime and the cookie layer
type SessionSettings struct {
	TTL              time.Duration `mapstructure:"ttl"`
	CookieName       string        `mapstructure:"cookie_name"`
	CookieDomain     string        `mapstructure:"cookie_domain"`
	CookieSecure     bool          `mapstructure:"cookie_secure"`
	CookieHashKey    string        `mapstructure:"cookie_hash_key"`
	CookieBlockKey   string        `mapstructure:"cookie_block_key"`
	ReportTTL        time.Duration `mapstructure:"report_ttl"`
	RecoveryTokenTTL time.Duration `mapstructure:"recovery_token_ttl"`
}

// SecuritySettings configures authentication policy knobs
type SecuritySettings struct {
	BcryptCost         int           `mapstructure:"bcrypt_cost"`
	LockoutThreshold   int           `mapstructure:"lockout_threshold"`
	LockoutDuration    time.Duration `mapstructure:"lockout_duration"`
	PasswordHistory    int           `mapstructure:"password_history"`
	MinPasswordAge     time.Duration `mapstructure:"min_password_age"`
	MinStrengthScore   int           `mapstructure:"min_strength_score"`
	MaxProfileImageMB  int           `mapstructure:"max_profile_image_mb"`
	AuditListPageLimit int           `mapstructure:"audit_list_page_limit"`
}

// RateLimitSettings configures rate limiting windows and max attempts per endpoint
type RateLimitSettings struct {
	WindowDuration      time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts    int           `mapstructure:"login_max_attempts"`
	RegisterMaxAttempts int           `mapstructure:"register_max_attempts"`
	RecoveryMaxAttempts int           `mapstructure:"recovery_max_attempts"`
}

type TelemetrySettings struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("OCCASIO")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.session_prefix",
		"redis.recovery_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"session.ttl",
		"session.cookie_name",
		"session.cookie_domain",
		"session.cookie_secure",
		"session.cookie_hash_key",
		"session.cookie_block_key",
		"session.report_ttl",
		"session.recovery_token_ttl",
		"security.bcrypt_cost",
		"security.lockout_threshold",
		"security.lockout_duration",
		"security.password_history",
		"security.min_password_age",
		"security.min_strength_score",
		"security.max_profile_image_mb",
		"security.audit_list_page_limit",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"rate_limit.window_duration",
		"rate_limit.login_max_attempts",
		"rate_limit.register_max_attempts",
		"rate_limit.recovery_max_attempts",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "occasio-account-service")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "occasio")
	v.SetDefault("postgres.password", "occasio_password")
	v.SetDefault("postgres.database", "occasio")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.session_prefix", "occasio:session")
	v.SetDefault("redis.recovery_prefix", "occasio:recovery")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "occasio")
	v.SetDefault("kafka.async", true)

	v.SetDefault("session.ttl", "30m")
	v.SetDefault("session.cookie_name", "occasio_session")
	v.SetDefault("session.cookie_domain", "")
	v.SetDefault("session.cookie_secure", true)
	v.SetDefault("session.cookie_hash_key", "")
	v.SetDefault("session.cookie_block_key", "")
	v.SetDefault("session.report_ttl", "30m")
	v.SetDefault("session.recovery_token_ttl", "10m")

	v.SetDefault("security.bcrypt_cost", 10)
	v.SetDefault("security.lockout_threshold", 5)
	v.SetDefault("security.lockout_duration", "10m")
	v.SetDefault("security.password_history", 5)
	v.SetDefault("security.min_password_age", "24h")
	v.SetDefault("security.min_strength_score", 0)
	v.SetDefault("security.max_profile_image_mb", 50)
	v.SetDefault("security.audit_list_page_limit", 50)

	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.service_name", "occasio-account-service")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 10)
	v.SetDefault("rate_limit.register_max_attempts", 3)
	v.SetDefault("rate_limit.recovery_max_attempts", 5)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "OCCASIO_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
