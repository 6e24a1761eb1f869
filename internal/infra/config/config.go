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
	OTP       OTPSettings       `mapstructure:"otp"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	SMS       SMSSettings       `mapstructure:"sms"`
	Proof     ProofSettings     `mapstructure:"proof"`
	Sweep     SweepSettings     `mapstructure:"sweep"`
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

// RedisSettings configures the Redis connection backing the rate limiter.
type RedisSettings struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	DB              int    `mapstructure:"db"`
	Password        string `mapstructure:"password"`
	TLSEnabled      bool   `mapstructure:"tls_enabled"`
	RateLimitPrefix string `mapstructure:"rate_limit_prefix"`
}

// KafkaSettings configures the Kafka producer used for domain events.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// OTPSettings configures secret generation and record lifetime.
type OTPSettings struct {
	Length      int           `mapstructure:"length"`
	Expiry      time.Duration `mapstructure:"expiry"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// RateLimitPolicy defines a sliding-window admission budget.
type RateLimitPolicy struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Window      time.Duration `mapstructure:"window"`
}

// RateLimitSettings holds the two independent policies keyed by phone number.
type RateLimitSettings struct {
	Request RateLimitPolicy `mapstructure:"request"`
	Confirm RateLimitPolicy `mapstructure:"confirm"`
}

// SMSSettings configures the outbound SMS gateway.
type SMSSettings struct {
	APIURL   string        `mapstructure:"api_url"`
	UserID   string        `mapstructure:"user_id"`
	APIKey   string        `mapstructure:"api_key"`
	SenderID string        `mapstructure:"sender_id"`
	Template string        `mapstructure:"template"`
	Timeout  time.Duration `mapstructure:"timeout"`
	DryRun   bool          `mapstructure:"dry_run"`
}

// ProofSettings configures the verification-proof token issuer.
type ProofSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// SweepSettings configures the periodic expired-record sweep.
type SweepSettings struct {
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("VERIFY")

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
		"redis.rate_limit_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"otp.length",
		"otp.expiry",
		"otp.max_attempts",
		"rate_limit.request.max_attempts",
		"rate_limit.request.window",
		"rate_limit.confirm.max_attempts",
		"rate_limit.confirm.window",
		"sms.api_url",
		"sms.user_id",
		"sms.api_key",
		"sms.sender_id",
		"sms.template",
		"sms.timeout",
		"sms.dry_run",
		"proof.secret",
		"proof.issuer",
		"proof.ttl",
		"sweep.interval",
		"sweep.batch_size",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "phone-verify")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "verify")
	v.SetDefault("postgres.database", "verify")
	v.SetDefault("postgres.ssl_mode", "disable")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.rate_limit_prefix", "verify:rate-limit")

	v.SetDefault("kafka.topic_prefix", "verify")
	v.SetDefault("kafka.async", true)

	v.SetDefault("otp.length", 6)
	v.SetDefault("otp.expiry", 10*time.Minute)
	v.SetDefault("otp.max_attempts", 3)

	v.SetDefault("rate_limit.request.max_attempts", 3)
	v.SetDefault("rate_limit.request.window", time.Hour)
	v.SetDefault("rate_limit.confirm.max_attempts", 5)
	v.SetDefault("rate_limit.confirm.window", 5*time.Minute)

	v.SetDefault("sms.api_url", "https://api.text.lk/sms/send")
	v.SetDefault("sms.sender_id", "SafeDriver")
	v.SetDefault("sms.template", "Your {app} verification code is: {code}. Valid for {minutes} minutes. Do not share this code with anyone.")
	v.SetDefault("sms.timeout", 10*time.Second)
	v.SetDefault("sms.dry_run", false)

	v.SetDefault("proof.issuer", "phone-verify")
	v.SetDefault("proof.ttl", time.Hour)

	v.SetDefault("sweep.interval", time.Hour)
	v.SetDefault("sweep.batch_size", 100)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func validate(cfg *AppConfig) error {
	if cfg.OTP.Length < 4 || cfg.OTP.Length > 10 {
		return fmt.Errorf("otp length must be between 4 and 10, got %d", cfg.OTP.Length)
	}
	if cfg.OTP.Expiry <= 0 {
		return fmt.Errorf("otp expiry must be positive")
	}
	if cfg.OTP.MaxAttempts <= 0 {
		return fmt.Errorf("otp max attempts must be positive")
	}
	if cfg.RateLimit.Request.MaxAttempts <= 0 || cfg.RateLimit.Request.Window <= 0 {
		return fmt.Errorf("request rate limit policy is invalid")
	}
	if cfg.RateLimit.Confirm.MaxAttempts <= 0 || cfg.RateLimit.Confirm.Window <= 0 {
		return fmt.Errorf("confirm rate limit policy is invalid")
	}
	return nil
}
