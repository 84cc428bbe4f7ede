package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Logger 全局日志实例
	Logger *logrus.Logger
	logMu  sync.Mutex
)

// Config 日志配置
type Config struct {
	Level      string // 日志级别: debug, info, warn, error
	Dir        string // 日志目录（可选，为空则只输出到控制台）
	Daily      bool   // 按 UTC 日期命名日志文件（YYYYMMDD.log），跨天自动切换
	MaxSize    int    // 日志文件最大大小（MB）
	MaxBackups int    // 保留的旧日志文件数量
	MaxAge     int    // 保留旧日志文件的天数
	Compress   bool   // 是否压缩旧日志文件
}

func newFormatter() logrus.Formatter {
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "06-01-02 15:04:05", // 格式: yy-mm-dd HH:MM:ss
	}
}

// FileName 返回 t 所在 UTC 日期的日志文件路径
func FileName(dir string, t time.Time, daily bool) string {
	if !daily {
		return filepath.Join(dir, "quanttrader.log")
	}
	return filepath.Join(dir, t.UTC().Format("20060102")+".log")
}

// Init 初始化日志系统
func Init(config Config) error {
	logMu.Lock()
	defer logMu.Unlock()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}

	writers := []io.Writer{os.Stdout}
	if config.Dir != "" {
		if err := os.MkdirAll(config.Dir, 0o755); err != nil {
			return err
		}
		writers = append(writers, newDailyWriter(config, time.Now))
	}
	out := io.MultiWriter(writers...)

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(newFormatter())
	logger.SetOutput(out)

	// 同时设置全局 logrus，组件里 logrus.WithField() 创建的 logger 也写入文件
	logrus.SetOutput(out)
	logrus.SetLevel(level)
	logrus.SetFormatter(newFormatter())

	Logger = logger
	return nil
}

// InitDefault 使用默认配置初始化日志系统
func InitDefault() error {
	return Init(Config{
		Level:      "info",
		Dir:        "logs",
		Daily:      true,
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
		Compress:   true,
	})
}

// dailyWriter 在 UTC 日期变化时切换到新的 lumberjack 文件
type dailyWriter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	current string
	w       *lumberjack.Logger
}

func newDailyWriter(cfg Config, now func() time.Time) *dailyWriter {
	return &dailyWriter{cfg: cfg, now: now}
}

func (d *dailyWriter) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name := FileName(d.cfg.Dir, d.now(), d.cfg.Daily)
	if d.w == nil || name != d.current {
		if d.w != nil {
			_ = d.w.Close()
		}
		d.w = &lumberjack.Logger{
			Filename:   name,
			MaxSize:    d.cfg.MaxSize,
			MaxBackups: d.cfg.MaxBackups,
			MaxAge:     d.cfg.MaxAge,
			Compress:   d.cfg.Compress,
		}
		d.current = name
	}
	return d.w.Write(p)
}

// Info 记录 INFO 级别日志
func Info(args ...interface{}) {
	if Logger != nil {
		Logger.Info(args...)
	}
}

// Infof 记录格式化的 INFO 级别日志
func Infof(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Infof(format, args...)
	}
}

// Warnf 记录格式化的 WARN 级别日志
func Warnf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Warnf(format, args...)
	}
}

// Errorf 记录格式化的 ERROR 级别日志
func Errorf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Errorf(format, args...)
	}
}
