package signallog

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/betbot/quanttrader/pkg/timeseries"
)

// Store 信号日志存储：按 key（策略或策略+参数组）保存时间序列。
// Append 按时间戳合并去重（后写入者覆盖），写入期间允许并发读。
type Store interface {
	Append(ctx context.Context, key string, series timeseries.Series) (timeseries.MergeStats, error)
	Load(ctx context.Context, key string) (timeseries.Series, error)
	Last(ctx context.Context, key string) (timeseries.Point, error)
	Close() error
}

// ErrNotExists 表示 key 从未写入过
var ErrNotExists = fmt.Errorf("signal log not exists")

const (
	BackendCSV    = "csv"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Options 存储配置
type Options struct {
	Backend string // csv | badger | sqlite
	Path    string // csv: 目录；badger: 目录；sqlite: 数据库文件
}

var log = logrus.WithField("component", "signallog")

var keySanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeKey 把任意 key 规整成文件名/键名安全的形式
func SanitizeKey(key string) string {
	return keySanitizer.ReplaceAllString(strings.TrimSpace(key), "_")
}

// Open 按配置打开存储
func Open(opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendCSV:
		return NewCSVStore(opts.Path)
	case BackendBadger:
		return OpenBadgerStore(opts.Path)
	case BackendSQLite:
		return OpenSQLiteStore(opts.Path)
	default:
		return nil, fmt.Errorf("未知的 signal store backend: %q", opts.Backend)
	}
}

func validKey(key string) (string, error) {
	k := SanitizeKey(key)
	if k == "" {
		return "", fmt.Errorf("signal log key is empty")
	}
	return k, nil
}

func logMerge(key string, stats timeseries.MergeStats) {
	entry := log.WithField("key", key)
	if stats.Appended == 0 && stats.Updated == 1 {
		entry.Debug("updated the last row")
		return
	}
	entry.Debugf("appended %d rows (updated %d)", stats.Appended, stats.Updated)
}
