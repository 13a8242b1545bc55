package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"campus-access/pkg/logging"
)

// Load 加载配置
//  1. 加载 .env（敏感信息 + APP_ENV）
//  2. 默认值 → common.yaml → {env}.yaml
//  3. 环境变量覆盖
func Load() (*Config, error) {
	env := parseEnv(os.Getenv("APP_ENV"))
	loadEnvFiles(env)
	env = parseEnv(getEnv("APP_ENV", "dev"))

	cfg := Defaults()
	cfg.Env = env
	if err := cfg.loadYAML(effectiveConfigPaths(env)); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults 硬编码默认值
func Defaults() *Config {
	return &Config{
		Env: EnvDevelopment,
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:  DriverSQLite,
			Host:    "localhost",
			Port:    5432,
			User:    "campus",
			Name:    "campus_access",
			SSLMode: "disable",
			Path:    "campus-access.db",
		},
		LocalStore: LocalStoreConfig{Backend: "memory"},
		Redis:      RedisConfig{Host: "localhost", Port: 6379, Prefix: "campus-access:"},
		Etcd: EtcdConfig{
			Endpoints:   []string{"localhost:2379"},
			Prefix:      "/campus-access",
			DialTimeout: 5 * time.Second,
		},
		MinIO: MinIOConfig{Bucket: "campus-access"},
		Auth: AuthConfig{
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
			EmailDomain:     "@ncat.edu",
		},
		Simulation: SimulationConfig{
			Enabled:             true,
			ReviewDelay:         1600 * time.Millisecond,
			DecisionDelay:       2600 * time.Millisecond,
			ApprovalProbability: 0.82,
		},
		Suggestion: SuggestionConfig{Provider: "keyword", Timeout: 10 * time.Second},
		Events:     EventsConfig{Backend: "memory"},
		Log:        logging.Config{Level: "info", Format: "text", Output: "stdout"},
	}
}

// loadYAML 依次合并 common.yaml 与 {env}.yaml；文件不存在时跳过
func (c *Config) loadYAML(paths []string) error {
	for _, name := range []string{"common.yaml", fmt.Sprintf("%s.yaml", c.Env)} {
		path := findFile(paths, name)
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if name != "common.yaml" {
			c.loadedFrom = path
		}
	}
	return nil
}

// applyEnv 环境变量覆盖（凭据只来自这里）
func (c *Config) applyEnv() {
	if v := os.Getenv("API_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		c.Database.URI = v
	}
	if v := os.Getenv("LOCAL_STORE_BACKEND"); v != "" {
		c.LocalStore.Backend = v
	}
	if v := os.Getenv("EVENTS_BACKEND"); v != "" {
		c.Events.Backend = v
	}

	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("ETCD_ENDPOINTS"); v != "" {
		c.Etcd.Endpoints = strings.Split(v, ",")
	}

	c.MinIO.AccessKey = os.Getenv("MINIO_ACCESS_KEY")
	c.MinIO.SecretKey = os.Getenv("MINIO_SECRET_KEY")
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		c.MinIO.Endpoint = v
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Suggestion.APIKey = os.Getenv("SUGGEST_API_KEY")

	if v := os.Getenv("SIMULATION_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Simulation.Enabled = b
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}

	databaseURL := os.Getenv("DATABASE_URL")
	c.Database.Driver = detectDatabaseDriver(c.Database.Driver, databaseURL)
	if databaseURL != "" && c.Database.Driver != DriverKV {
		c.DatabaseURL = databaseURL
	} else {
		c.DatabaseURL = buildDatabaseURL(c.Database, getEnv("DB_PASSWORD", ""))
	}
	c.RedisURL = buildRedisURL(c.Redis)
}

// UseSQLite 切换到指定的 SQLite 文件（命令行 --db）
func (c *Config) UseSQLite(path string) {
	c.Database.Driver = DriverSQLite
	c.Database.Path = path
	c.DatabaseURL = buildDatabaseURL(c.Database, "")
}

// Validate 校验取值范围
func (c *Config) Validate() error {
	switch c.LocalStore.Backend {
	case "memory", "redis", "etcd":
	default:
		return fmt.Errorf("local_store.backend: unsupported %q", c.LocalStore.Backend)
	}
	switch c.Events.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("events.backend: unsupported %q", c.Events.Backend)
	}
	switch c.Suggestion.Provider {
	case "keyword", "http":
	default:
		return fmt.Errorf("suggestion.provider: unsupported %q", c.Suggestion.Provider)
	}
	if c.Suggestion.Provider == "http" && c.Suggestion.Endpoint == "" {
		return fmt.Errorf("suggestion.endpoint is required for the http provider")
	}
	if p := c.Simulation.ApprovalProbability; p < 0 || p > 1 {
		return fmt.Errorf("simulation.approval_probability must be within [0, 1], got %v", p)
	}
	if c.Simulation.ReviewDelay < 0 || c.Simulation.DecisionDelay < 0 {
		return fmt.Errorf("simulation delays must not be negative")
	}
	if c.Env == EnvProduction && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}

// LoadedFrom 实际加载的环境配置文件路径（未找到时为空）
func (c *Config) LoadedFrom() string {
	return c.loadedFrom
}

func parseEnv(env string) Environment {
	switch strings.ToLower(env) {
	case "test":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// String 返回配置摘要（隐藏密码）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, Driver: %s, DB: %s, LocalStore: %s, Events: %s, Redis: %s, MinIO: %s}",
		c.Env, c.Database.Driver, maskPassword(c.DatabaseURL), c.LocalStore.Backend,
		c.Events.Backend, maskPassword(c.RedisURL), c.MinIO.Endpoint)
}
