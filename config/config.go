package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Backup    BackupConfig    `mapstructure:"backup"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int        `mapstructure:"port"`
	MaxBodyBytes int64      `mapstructure:"max_body_bytes"`
	CORS         CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置（重排锁、限流）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
	Issuer         string        `mapstructure:"issuer"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SchedulerConfig 排组与重排配置
type SchedulerConfig struct {
	MaxAttempts      int           `mapstructure:"max_attempts"`
	BaseDelay        time.Duration `mapstructure:"base_delay"`
	BackoffFactor    float64       `mapstructure:"backoff_factor"`
	MaxDelay         time.Duration `mapstructure:"max_delay"`
	StaleTimeout     time.Duration `mapstructure:"stale_timeout"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	LockTTL          time.Duration `mapstructure:"lock_ttl"`
	MaxCandidatePool int           `mapstructure:"max_candidate_pool"`
	RateLimit        int           `mapstructure:"rate_limit"`        // 每窗口允许的重排请求数
	RateLimitWindow  time.Duration `mapstructure:"rate_limit_window"` // 限流窗口
}

// BackupConfig 备份配置
type BackupConfig struct {
	Retention     int   `mapstructure:"retention"`       // 每周保留的备份份数
	MaxBytes      int64 `mapstructure:"max_bytes"`       // 单份备份上限
	MaxTotalBytes int64 `mapstructure:"max_total_bytes"` // 单周备份总量上限
}

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("GOLF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "golf_scheduler")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.access_token_ttl", "12h")
	v.SetDefault("auth.issuer", "golf-scheduler")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("scheduler.max_attempts", 3)
	v.SetDefault("scheduler.base_delay", "1s")
	v.SetDefault("scheduler.backoff_factor", 2.0)
	v.SetDefault("scheduler.max_delay", "8s")
	v.SetDefault("scheduler.stale_timeout", "5m")
	v.SetDefault("scheduler.sweep_interval", "1m")
	v.SetDefault("scheduler.lock_ttl", "10m")
	v.SetDefault("scheduler.max_candidate_pool", 12)
	v.SetDefault("scheduler.rate_limit", 10)
	v.SetDefault("scheduler.rate_limit_window", "1m")

	v.SetDefault("backup.retention", 5)
	v.SetDefault("backup.max_bytes", 1<<20)
	v.SetDefault("backup.max_total_bytes", 10<<20)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "golf_scheduler")
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Scheduler.MaxAttempts < 1 {
		return fmt.Errorf("配置校验失败: scheduler.max_attempts 不能小于 1")
	}
	if c.Scheduler.BackoffFactor < 1 {
		return fmt.Errorf("配置校验失败: scheduler.backoff_factor 不能小于 1")
	}
	// 超时清理必须长于退避上限，否则正常重试会被误判为僵死
	if c.Scheduler.StaleTimeout <= c.Scheduler.MaxDelay {
		return fmt.Errorf("配置校验失败: scheduler.stale_timeout 必须大于 scheduler.max_delay")
	}
	if c.Backup.Retention < 1 {
		return fmt.Errorf("配置校验失败: backup.retention 不能小于 1")
	}
	return nil
}
