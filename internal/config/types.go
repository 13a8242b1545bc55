// Package config 统一配置管理
//
// 配置加载优先级（高→低）：
//  1. 环境变量（通过 .env 文件或 shell/systemd 注入）
//  2. YAML 配置文件（{env}.yaml 覆盖 common.yaml）
//  3. 代码硬编码默认值
//
// 凭据只来自环境变量（YAML 中不存储任何密码）：
// DB_PASSWORD、DATABASE_URL、MONGO_URI、REDIS_URL、REDIS_PASSWORD、JWT_SECRET、
// MINIO_ACCESS_KEY、MINIO_SECRET_KEY、SUGGEST_API_KEY。
//
// 配置路径确定策略：
//  1. --config 命令行参数（SetConfigDir）
//  2. CONFIG_DIR 环境变量
//  3. 按 APP_ENV 选择默认路径：prod → /etc/campus-access/，dev/test → ./configs/
package config

import (
	"time"

	"campus-access/pkg/logging"
)

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// 数据库驱动
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongoDB  = "mongodb"
	// DriverKV 本地键值存储（JSON 字符串），后端见 LocalStoreConfig
	DriverKV = "kv"
)

// Config 应用配置（api-server 与 accessctl 共用）
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	LocalStore LocalStoreConfig `yaml:"local_store"`
	Redis      RedisConfig      `yaml:"redis"`
	Etcd       EtcdConfig       `yaml:"etcd"`
	MinIO      MinIOConfig      `yaml:"minio"`
	Auth       AuthConfig       `yaml:"auth"`
	Simulation SimulationConfig `yaml:"simulation"`
	Suggestion SuggestionConfig `yaml:"suggestion"`
	Events     EventsConfig     `yaml:"events"`
	Seed       SeedConfig       `yaml:"seed"`
	Log        logging.Config   `yaml:"log"`

	// === 解析结果（不出现在 YAML 中） ===
	Env         Environment `yaml:"-"`
	DatabaseURL string      `yaml:"-"`
	RedisURL    string      `yaml:"-"`
	// loadedFrom 实际加载的 {env}.yaml 路径
	loadedFrom string
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver  string `yaml:"driver"` // sqlite, postgres, mongodb, kv
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	User    string `yaml:"user"`
	Name    string `yaml:"name"`
	SSLMode string `yaml:"sslmode"`
	Path    string `yaml:"path"` // SQLite 文件路径
	URI     string `yaml:"uri"`  // MongoDB 连接 URI（可选）
}

// LocalStoreConfig 本地键值存储配置（database.driver=kv 时使用）
type LocalStoreConfig struct {
	Backend string `yaml:"backend"` // memory, redis, etcd
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       int    `yaml:"db"`
	URL      string `yaml:"url"`
	Password string `yaml:"-"`
	Prefix   string `yaml:"prefix"`
}

// EtcdConfig etcd 配置
type EtcdConfig struct {
	Endpoints   []string      `yaml:"endpoints"`
	Prefix      string        `yaml:"prefix"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// MinIOConfig 报表归档配置；endpoint 为空时不归档
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// AuthConfig 认证配置
// JWTSecret 只从 JWT_SECRET 环境变量读取
type AuthConfig struct {
	JWTSecret       string        `yaml:"-"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
	RequireApproved bool          `yaml:"require_approved"`
	EmailDomain     string        `yaml:"email_domain"`
}

// SimulationConfig 自动推进模拟
type SimulationConfig struct {
	Enabled             bool          `yaml:"enabled"`
	ReviewDelay         time.Duration `yaml:"review_delay"`
	DecisionDelay       time.Duration `yaml:"decision_delay"`
	ApprovalProbability float64       `yaml:"approval_probability"`
	// Seed 为 0 时按当前时间取种子
	Seed int64 `yaml:"seed"`
}

// SuggestionConfig 楼栋推荐
type SuggestionConfig struct {
	Provider string        `yaml:"provider"` // keyword, http
	Endpoint string        `yaml:"endpoint"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
	APIKey   string        `yaml:"-"`
}

// EventsConfig 事件总线
type EventsConfig struct {
	Backend string `yaml:"backend"` // memory, redis
}

// SeedConfig 种子数据
type SeedConfig struct {
	DemoData bool `yaml:"demo_data"`
}
