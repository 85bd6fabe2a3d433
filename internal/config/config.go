// Package config 加载运行配置：默认值、JSON 配置文件、CDPACTION_ 环境变量，优先级依次升高。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"cdpaction/internal/logger"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "CDPACTION_"

// Config 运行配置
type Config struct {
	DevToolsURL      string   `koanf:"devtools_url" validate:"required,url"`
	URLPatterns      []string `koanf:"url_patterns" validate:"min=1,dive,required"`
	ProcessTimeoutMS int      `koanf:"process_timeout_ms" validate:"min=100,max=60000"`
	PollIntervalMS   int      `koanf:"poll_interval_ms" validate:"min=100,max=10000"`

	Sqlite struct {
		DSN    string `koanf:"dsn" validate:"required"`
		Prefix string `koanf:"prefix"`
	} `koanf:"sqlite"`

	Log struct {
		Level  string   `koanf:"level" validate:"oneof=debug info warn error"`
		Writer []string `koanf:"writer" validate:"dive,oneof=console file"`
		File   string   `koanf:"file"`
	} `koanf:"log"`
}

// Defaults 默认配置
func Defaults() map[string]any {
	return map[string]any{
		"devtools_url":       "http://127.0.0.1:9222",
		"url_patterns":       []string{"https://*/*"},
		"process_timeout_ms": 3000,
		"poll_interval_ms":   500,
		"sqlite.dsn":         "cdpaction.sqlite3",
		"sqlite.prefix":      "cdpaction_",
		"log.level":          "info",
		"log.writer":         []string{"console"},
		"log.file":           "",
	}
}

// Load 加载配置；path 为空或文件不存在时跳过文件层
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	for key, value := range Defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("设置默认配置失败: %w", err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), json.Parser()); err != nil {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("读取环境变量失败: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	return nil
}

// LoggerOptions 转换为日志配置
func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{Level: c.Log.Level, Writer: c.Log.Writer, File: c.Log.File}
}

// ProcessTimeout 单次拦截处理超时
func (c *Config) ProcessTimeout() time.Duration {
	return time.Duration(c.ProcessTimeoutMS) * time.Millisecond
}

// PollInterval Web 应用计数轮询周期
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// envTransform CDPACTION_LOG_LEVEL -> log.level，CDPACTION_DEVTOOLS_URL -> devtools_url
func envTransform(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range []string{"sqlite_", "log_"} {
		if strings.HasPrefix(key, section) {
			return strings.Replace(key, "_", ".", 1)
		}
	}
	return key
}
