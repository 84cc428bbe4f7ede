package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/betbot/quanttrader/pkg/signallog"
)

// ExchangeConfig 交易所配置
type ExchangeConfig struct {
	Name       string        `yaml:"name"`        // 目前只支持 bybit
	Demo       bool          `yaml:"demo"`        // demo 交易环境（api-demo.bybit.com）
	BaseURL    string        `yaml:"base_url"`    // 覆盖默认 endpoint（可选）
	RecvWindow int           `yaml:"recv_window"` // 签名有效窗口（毫秒），默认 5000
	RateLimit  float64       `yaml:"rate_limit"`  // 每秒请求数上限，默认 10
	Timeout    time.Duration `yaml:"timeout"`     // 单次 HTTP 超时，默认 10s
	EnvFile    string        `yaml:"env_file"`    // API key 所在 .env 文件，默认 config/.env
}

// SignalStoreConfig 信号日志存储配置
type SignalStoreConfig struct {
	Backend string `yaml:"backend"` // csv | badger | sqlite
	Path    string `yaml:"path"`
}

// JournalConfig 订单审计日志（SQLite），Path 为空则关闭
type JournalConfig struct {
	Path string `yaml:"path"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`
	Dir        string `yaml:"dir"`         // 日志目录，为空则只输出到控制台
	Daily      bool   `yaml:"daily"`       // 按 UTC 日期命名日志文件（YYYYMMDD.log）
	MaxSize    int    `yaml:"max_size"`    // MB
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"` // 天
	Compress   bool   `yaml:"compress"`
}

// ScheduleConfig 调度配置
type ScheduleConfig struct {
	CycleInterval     time.Duration `yaml:"cycle_interval"`     // runCycle 周期，默认 10s
	CycleTimeout      time.Duration `yaml:"cycle_timeout"`      // 单次 runCycle 的超时，默认 50s
	WarmupConcurrency int           `yaml:"warmup_concurrency"` // 启动预热并发数，默认 4
}

// NotifyConfig 通知配置（token/chat id 从 .env 读取）
type NotifyConfig struct {
	Telegram bool `yaml:"telegram"`
}

// HTTPConfig 状态服务配置，Addr 为空则不启动
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Config 应用配置
type Config struct {
	Exchange       ExchangeConfig    `yaml:"exchange"`
	DryRun         bool              `yaml:"dry_run"` // 纸交易模式：订单只在本地模拟成交
	StrategiesFile string            `yaml:"strategies_file"`
	SignalStore    SignalStoreConfig `yaml:"signal_store"`
	Journal        JournalConfig     `yaml:"journal"`
	Log            LogConfig         `yaml:"log"`
	Schedule       ScheduleConfig    `yaml:"schedule"`
	Notify         NotifyConfig      `yaml:"notify"`
	HTTP           HTTPConfig        `yaml:"http"`

	// 以下字段不来自 config.yaml
	Credentials Credentials      `yaml:"-"`
	Strategies  []StrategyConfig `yaml:"-"`
}

// LoadFromFile 加载应用配置、策略列表和 .env 凭证。
// 相对路径（strategies_file、env_file）相对于配置文件所在目录解析。
func LoadFromFile(filePath string) (*Config, error) {
	cfg, err := LoadBase(filePath)
	if err != nil {
		return nil, err
	}

	strategies, err := LoadStrategies(cfg.StrategiesFile)
	if err != nil {
		return nil, err
	}
	cfg.Strategies = strategies

	creds, err := LoadCredentials(cfg.Exchange.EnvFile)
	if err != nil {
		return nil, err
	}
	cfg.Credentials = creds

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadBase 只加载 config.yaml（环境变量覆盖 + 默认值），不读取策略列表和凭证，也不校验
func LoadBase(filePath string) (*Config, error) {
	cfg, err := loadConfigFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("加载配置文件失败 %s: %w", filePath, err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()

	baseDir := filepath.Dir(filePath)
	cfg.StrategiesFile = resolvePath(baseDir, cfg.StrategiesFile)
	cfg.Exchange.EnvFile = resolvePath(baseDir, cfg.Exchange.EnvFile)
	return cfg, nil
}

func loadConfigFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv 环境变量覆盖（优先级：环境变量 > 配置文件 > 默认值）
func (c *Config) applyEnv() {
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.DryRun = parseBoolEnv("DRY_RUN", c.DryRun)
	c.HTTP.Addr = getEnv("HTTP_ADDR", c.HTTP.Addr)
}

func (c *Config) applyDefaults() {
	if c.Exchange.Name == "" {
		c.Exchange.Name = "bybit"
	}
	if c.Exchange.RecvWindow <= 0 {
		c.Exchange.RecvWindow = 5000
	}
	if c.Exchange.RateLimit <= 0 {
		c.Exchange.RateLimit = 10
	}
	if c.Exchange.Timeout <= 0 {
		c.Exchange.Timeout = 10 * time.Second
	}
	if c.Exchange.EnvFile == "" {
		c.Exchange.EnvFile = ".env"
	}
	if c.StrategiesFile == "" {
		c.StrategiesFile = "strategies.yaml"
	}
	if c.SignalStore.Backend == "" {
		c.SignalStore.Backend = signallog.BackendCSV
	}
	if c.SignalStore.Path == "" {
		switch c.SignalStore.Backend {
		case signallog.BackendSQLite:
			c.SignalStore.Path = "user_data/signals.db"
		default:
			c.SignalStore.Path = "user_data/signals"
		}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSize <= 0 {
		c.Log.MaxSize = 100
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 7
	}
	if c.Log.MaxAge <= 0 {
		c.Log.MaxAge = 30
	}
	if c.Schedule.CycleInterval <= 0 {
		c.Schedule.CycleInterval = 10 * time.Second
	}
	if c.Schedule.CycleTimeout <= 0 {
		c.Schedule.CycleTimeout = 50 * time.Second
	}
	if c.Schedule.WarmupConcurrency <= 0 {
		c.Schedule.WarmupConcurrency = 4
	}
}

// Validate 验证应用配置（策略列表在 LoadStrategies 中已校验）
func (c *Config) Validate() error {
	if !strings.EqualFold(c.Exchange.Name, "bybit") {
		return fmt.Errorf("不支持的交易所: %s", c.Exchange.Name)
	}
	switch c.SignalStore.Backend {
	case signallog.BackendCSV, signallog.BackendBadger, signallog.BackendSQLite:
	default:
		return fmt.Errorf("未知的 signal_store.backend: %s", c.SignalStore.Backend)
	}
	if len(c.Strategies) == 0 {
		return fmt.Errorf("至少需要配置一个策略")
	}
	if !c.DryRun && (c.Credentials.APIKey == "" || c.Credentials.APISecret == "") {
		return fmt.Errorf("api_key / api_secret 未配置（%s）", c.Exchange.EnvFile)
	}
	if c.Notify.Telegram && !c.Credentials.TelegramEnabled() {
		return fmt.Errorf("已启用 telegram 通知，但 tg_api_key / tg_chat_id 未配置")
	}
	return nil
}

func resolvePath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}
