package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"judgegate/internal/common/cache"
	"judgegate/internal/execution/judgeclient"
	"judgegate/pkg/utils/logger"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:3001"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxHeaderBytes  = 1 << 20

	defaultEnvironment   = "development"
	defaultMaxCodeSize   = 100000
	defaultMaxStdinSize  = 10000
	defaultMaxTestCases  = 50
	defaultMaxBodyBytes  = 1 << 20
	defaultJudgeTimeout  = 30 * time.Second
	defaultConcurrency   = 4
	defaultStoreCapacity = 100000
	defaultStoreTimeout  = 200 * time.Millisecond
	defaultWriteTimeoutT = 3 * time.Second
	defaultKafkaTopic    = "judgegate.executions"

	storeMemory = "memory"
	storeRedis  = "redis"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	IdleTimeout    time.Duration `yaml:"idleTimeout"`
	MaxHeaderBytes int           `yaml:"maxHeaderBytes"`
}

// AuthConfig holds JWT settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
	JWTIssuer string `yaml:"jwtIssuer"`
}

// CORSConfig holds the allowed browser origin(s), comma separated.
type CORSConfig struct {
	FrontendURL string `yaml:"frontendURL"`
}

// LimitsConfig bounds request payloads.
type LimitsConfig struct {
	MaxCodeSize  int   `yaml:"maxCodeSize"`
	MaxStdinSize int   `yaml:"maxStdinSize"`
	MaxTestCases int   `yaml:"maxTestCases"`
	MaxBodyBytes int64 `yaml:"maxBodyBytes"`
}

// PolicyConfig is one fixed-window tier.
type PolicyConfig struct {
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
}

// RateLimitConfig holds both limiter tiers.
type RateLimitConfig struct {
	General   PolicyConfig `yaml:"general"`
	Execution PolicyConfig `yaml:"execution"`
}

// QuotaConfig holds cumulative execution ceilings. Zero disables a window.
type QuotaConfig struct {
	Daily            int64   `yaml:"daily"`
	Monthly          int64   `yaml:"monthly"`
	Total            int64   `yaml:"total"`
	WarningThreshold float64 `yaml:"warningThreshold"`
}

// StoreConfig selects the counter backend.
type StoreConfig struct {
	Backend   string        `yaml:"backend"` // memory | redis
	Capacity  int           `yaml:"capacity"`
	OpTimeout time.Duration `yaml:"opTimeout"`
}

// JudgeConfig holds the judging backend settings.
type JudgeConfig struct {
	BaseURL       string                      `yaml:"baseURL"`
	AuthToken     string                      `yaml:"authToken"`
	APIKey        string                      `yaml:"apiKey"`
	APIHost       string                      `yaml:"apiHost"`
	Timeout       time.Duration               `yaml:"timeout"`
	DisableBase64 bool                        `yaml:"disableBase64"`
	Concurrency   int                         `yaml:"concurrency"`
	Languages     []string                    `yaml:"languages"`
	Transport     judgeclient.TransportConfig `yaml:"transport"`
}

// MySQLSinkConfig enables the execution_logs table.
type MySQLSinkConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DSN          string `yaml:"dsn"`
	EnsureSchema bool   `yaml:"ensureSchema"`
}

// KafkaSinkConfig enables the execution event stream.
type KafkaSinkConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"clientID"`
}

// TelemetryConfig holds the execution log sinks.
type TelemetryConfig struct {
	WriteTimeout time.Duration   `yaml:"writeTimeout"`
	NoMetrics    bool            `yaml:"noMetrics"`
	MySQL        MySQLSinkConfig `yaml:"mysql"`
	Kafka        KafkaSinkConfig `yaml:"kafka"`
}

// AppConfig holds the judge gateway configuration.
type AppConfig struct {
	Environment string            `yaml:"environment"`
	Server      ServerConfig      `yaml:"server"`
	Logger      logger.Config     `yaml:"logger"`
	Auth        AuthConfig        `yaml:"auth"`
	CORS        CORSConfig        `yaml:"cors"`
	Limits      LimitsConfig      `yaml:"limits"`
	Rate        RateLimitConfig   `yaml:"rateLimit"`
	Quota       QuotaConfig       `yaml:"quota"`
	Store       StoreConfig       `yaml:"store"`
	Redis       cache.RedisConfig `yaml:"redis"`
	Judge       JudgeConfig       `yaml:"judge"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// IsProduction reports whether internal error detail must be hidden.
func (c *AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

// loadAppConfig reads the optional YAML file, then .env, then environment overrides.
func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if path != "" {
		if err := loadYAML(path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env failed: %w", err)
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *AppConfig, lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	integer := func(name string, dst *int) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s must be an integer: %w", name, err))
				return
			}
			*dst = n
		}
	}
	integer64 := func(name string, dst *int64) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s must be an integer: %w", name, err))
				return
			}
			*dst = n
		}
	}

	if v, ok := lookup("PORT"); ok && strings.TrimSpace(v) != "" {
		if _, err := strconv.Atoi(strings.TrimSpace(v)); err != nil {
			errs = append(errs, fmt.Errorf("PORT must be numeric: %w", err))
		} else {
			cfg.Server.Addr = "0.0.0.0:" + strings.TrimSpace(v)
		}
	}
	str("APP_ENV", &cfg.Environment)
	str("FRONTEND_URL", &cfg.CORS.FrontendURL)
	str("JWT_SECRET", &cfg.Auth.JWTSecret)
	integer("MAX_CODE_SIZE", &cfg.Limits.MaxCodeSize)
	integer("MAX_STDIN_SIZE", &cfg.Limits.MaxStdinSize)
	integer64("MAX_DAILY_EXECUTIONS", &cfg.Quota.Daily)
	integer64("MAX_MONTHLY_EXECUTIONS", &cfg.Quota.Monthly)
	integer64("MAX_TOTAL_EXECUTIONS", &cfg.Quota.Total)
	if v, ok := lookup("QUOTA_WARNING_THRESHOLD"); ok && strings.TrimSpace(v) != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("QUOTA_WARNING_THRESHOLD must be a number: %w", err))
		} else {
			cfg.Quota.WarningThreshold = f
		}
	}
	str("JUDGE_BASE_URL", &cfg.Judge.BaseURL)
	str("JUDGE_API_KEY", &cfg.Judge.APIKey)
	str("JUDGE_API_HOST", &cfg.Judge.APIHost)
	if v, ok := lookup("REDIS_ADDR"); ok && strings.TrimSpace(v) != "" {
		cfg.Redis.Addr = strings.TrimSpace(v)
		cfg.Store.Backend = storeRedis
	}
	if v, ok := lookup("MYSQL_DSN"); ok && strings.TrimSpace(v) != "" {
		cfg.Telemetry.MySQL.DSN = strings.TrimSpace(v)
		cfg.Telemetry.MySQL.Enabled = true
	}
	if v, ok := lookup("KAFKA_BROKERS"); ok && strings.TrimSpace(v) != "" {
		cfg.Telemetry.Kafka.Brokers = splitList(v)
		cfg.Telemetry.Kafka.Enabled = true
	}
	str("LOG_LEVEL", &cfg.Logger.Level)
	return errors.Join(errs...)
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Environment == "" {
		cfg.Environment = defaultEnvironment
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = defaultMaxHeaderBytes
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		if cfg.IsProduction() {
			cfg.Logger.Format = "json"
		} else {
			cfg.Logger.Format = "console"
		}
	}

	if cfg.Limits.MaxCodeSize == 0 {
		cfg.Limits.MaxCodeSize = defaultMaxCodeSize
	}
	if cfg.Limits.MaxStdinSize == 0 {
		cfg.Limits.MaxStdinSize = defaultMaxStdinSize
	}
	if cfg.Limits.MaxTestCases == 0 {
		cfg.Limits.MaxTestCases = defaultMaxTestCases
	}
	if cfg.Limits.MaxBodyBytes == 0 {
		cfg.Limits.MaxBodyBytes = defaultMaxBodyBytes
	}

	if cfg.Rate.General.Max == 0 {
		cfg.Rate.General.Max = 100
	}
	if cfg.Rate.General.Window == 0 {
		cfg.Rate.General.Window = 15 * time.Minute
	}
	if cfg.Rate.Execution.Max == 0 {
		cfg.Rate.Execution.Max = 5
	}
	if cfg.Rate.Execution.Window == 0 {
		cfg.Rate.Execution.Window = time.Minute
	}

	if cfg.Quota.Daily == 0 {
		cfg.Quota.Daily = 1000
	}
	if cfg.Quota.Monthly == 0 {
		cfg.Quota.Monthly = 20000
	}
	if cfg.Quota.WarningThreshold == 0 {
		cfg.Quota.WarningThreshold = 0.9
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = storeMemory
	}
	if cfg.Store.Capacity == 0 {
		cfg.Store.Capacity = defaultStoreCapacity
	}
	if cfg.Store.OpTimeout == 0 {
		cfg.Store.OpTimeout = defaultStoreTimeout
	}
	if cfg.Store.Backend == storeRedis {
		applyRedisDefaults(&cfg.Redis)
	}

	if cfg.Judge.Timeout == 0 {
		cfg.Judge.Timeout = defaultJudgeTimeout
	}
	if cfg.Judge.Concurrency == 0 {
		cfg.Judge.Concurrency = defaultConcurrency
	}

	if cfg.Telemetry.WriteTimeout == 0 {
		cfg.Telemetry.WriteTimeout = defaultWriteTimeoutT
	}
	if cfg.Telemetry.Kafka.Topic == "" {
		cfg.Telemetry.Kafka.Topic = defaultKafkaTopic
	}
	if cfg.Telemetry.Kafka.ClientID == "" {
		cfg.Telemetry.Kafka.ClientID = "judge-gateway"
	}
}

func validate(cfg *AppConfig) error {
	var errs []error
	if strings.TrimSpace(cfg.Judge.BaseURL) == "" {
		errs = append(errs, errors.New("judge.baseURL (JUDGE_BASE_URL) is required"))
	}
	if cfg.Quota.WarningThreshold <= 0 || cfg.Quota.WarningThreshold > 1 {
		errs = append(errs, fmt.Errorf("quota.warningThreshold must be within (0,1], got %v", cfg.Quota.WarningThreshold))
	}
	if cfg.Limits.MaxCodeSize <= 0 || cfg.Limits.MaxStdinSize <= 0 || cfg.Limits.MaxTestCases <= 0 || cfg.Limits.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("limits must be positive"))
	}
	if cfg.Quota.Daily < 0 || cfg.Quota.Monthly < 0 || cfg.Quota.Total < 0 {
		errs = append(errs, errors.New("quota ceilings must not be negative"))
	}
	if cfg.Rate.General.Max < 0 || cfg.Rate.Execution.Max < 0 {
		errs = append(errs, errors.New("rate limits must not be negative"))
	}
	switch cfg.Store.Backend {
	case storeMemory:
	case storeRedis:
		if cfg.Redis.Addr == "" {
			errs = append(errs, errors.New("redis addr is required when store.backend is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", cfg.Store.Backend))
	}
	if cfg.Telemetry.MySQL.Enabled && cfg.Telemetry.MySQL.DSN == "" {
		errs = append(errs, errors.New("telemetry.mysql.dsn is required when mysql is enabled"))
	}
	if cfg.Telemetry.Kafka.Enabled && len(cfg.Telemetry.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka brokers are required when kafka is enabled"))
	}
	if cfg.IsProduction() && cfg.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwtSecret (JWT_SECRET) is required in production"))
	}
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	if cfg == nil {
		return
	}
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.MinRetryBackoff == 0 {
		cfg.MinRetryBackoff = defaults.MinRetryBackoff
	}
	if cfg.MaxRetryBackoff == 0 {
		cfg.MaxRetryBackoff = defaults.MaxRetryBackoff
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
	if cfg.PoolTimeout == 0 {
		cfg.PoolTimeout = defaults.PoolTimeout
	}
	if cfg.ConnMaxIdleTime == 0 {
		cfg.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
}
