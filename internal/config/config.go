package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config 描述账户服务在启动阶段需要加载的核心配置。
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Account AccountConfig `yaml:"account"`
	Storage StorageConfig `yaml:"storage"`
	Bus     BusConfig     `yaml:"bus"`
	Logging LoggingConfig `yaml:"logging"`
	Runtime RuntimeConfig `yaml:"runtime"`
}

// AccountConfig 描述启动时托管的多签账户。
type AccountConfig struct {
	Address           string            `yaml:"address"`
	Threshold         uint64            `yaml:"threshold"`
	Members           []MemberConfig    `yaml:"members"`
	Roles             map[string]uint64 `yaml:"roles"`
	UnverifiedAllowed bool              `yaml:"unverified_allowed"`
}

// MemberConfig 描述一个多签成员。
type MemberConfig struct {
	Addr   string `yaml:"addr"`
	Weight uint64 `yaml:"weight"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address string `yaml:"address"`
}

// StorageConfig 统一描述审计仓库后端的连接信息。
type StorageConfig struct {
	IntentStore IntentStoreConfig `yaml:"intent_store"`
}

// IntentStoreConfig 选择审计仓库驱动：memory 落本地文件，mysql 走真库。
type IntentStoreConfig struct {
	Driver          string `yaml:"driver"`
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

// BusConfig 选择事件总线驱动：memory、redis 或 rabbitmq。
type BusConfig struct {
	Driver   string         `yaml:"driver"`
	Redis    RedisConfig    `yaml:"redis"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
}

// RedisConfig 描述 Redis 总线的连接信息。
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Queue    string `yaml:"queue"`
}

// RabbitMQConfig 描述 RabbitMQ 总线的连接信息。
type RabbitMQConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

// LoggingConfig 控制结构化日志与审计日志的输出行为。
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	AuditFile  string `yaml:"audit_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `yaml:"data_dir"`
}

// Load 负责解析指定路径的 YAML 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// Default 返回一份不依赖配置文件的默认配置，便于本地起步。
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults(".")
	return cfg
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Storage.IntentStore.Driver == "" {
		c.Storage.IntentStore.Driver = "memory"
	}

	if c.Bus.Driver == "" {
		c.Bus.Driver = "memory"
	}
	if c.Bus.Redis.Addr == "" {
		c.Bus.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Bus.Redis.Queue == "" {
		c.Bus.Redis.Queue = "intent_events"
	}
	if c.Bus.RabbitMQ.Queue == "" {
		c.Bus.RabbitMQ.Queue = "intent_events"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}
	if c.Logging.AuditFile == "" {
		c.Logging.AuditFile = filepath.Join(c.Runtime.DataDir, "audit.log")
	} else if !filepath.IsAbs(c.Logging.AuditFile) {
		c.Logging.AuditFile = filepath.Join(baseDir, c.Logging.AuditFile)
	}
}
