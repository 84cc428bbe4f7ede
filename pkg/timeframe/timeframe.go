package timeframe

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Timeframe 表示策略的采样周期（K 线周期），例如 "1m"、"4h"、"1d"。
type Timeframe string

const (
	M1  Timeframe = "1m"
	M3  Timeframe = "3m"
	M5  Timeframe = "5m"
	M15 Timeframe = "15m"
	M30 Timeframe = "30m"
	H1  Timeframe = "1h"
	H4  Timeframe = "4h"
	H8  Timeframe = "8h"
	D1  Timeframe = "1d"
)

// order 周期全序（秒）。排序、活跃/非活跃周期划分都依赖这张表。
var order = map[Timeframe]int64{
	M1:  60,
	M3:  180,
	M5:  300,
	M15: 900,
	M30: 1800,
	H1:  3600,
	H4:  14400,
	H8:  28800,
	D1:  86400,
}

// All 返回全部已知周期，按时长升序。
func All() []Timeframe {
	out := make([]Timeframe, 0, len(order))
	for tf := range order {
		out = append(out, tf)
	}
	Sort(out)
	return out
}

// Parse 解析周期字符串（大小写、首尾空白不敏感）。
func Parse(v string) (Timeframe, error) {
	tf := Timeframe(strings.ToLower(strings.TrimSpace(v)))
	if _, ok := order[tf]; !ok {
		return "", fmt.Errorf("不支持的 timeframe: %q", v)
	}
	return tf, nil
}

// MustParse 同 Parse，失败时 panic（仅用于常量/测试）。
func MustParse(v string) Timeframe {
	tf, err := Parse(v)
	if err != nil {
		panic(err)
	}
	return tf
}

func (t Timeframe) String() string { return string(t) }

// Valid 是否为已知周期
func (t Timeframe) Valid() bool {
	_, ok := order[t]
	return ok
}

// Seconds 返回周期秒数；未知周期返回 0。
func (t Timeframe) Seconds() int64 { return order[t] }

func (t Timeframe) Duration() time.Duration {
	return time.Duration(order[t]) * time.Second
}

// Less 按时长比较；时长相同（不会发生在已知周期上）时按字符串比较保证稳定。
func (t Timeframe) Less(o Timeframe) bool {
	if order[t] != order[o] {
		return order[t] < order[o]
	}
	return t < o
}

// Sort 原地按时长升序排序。
func Sort(tfs []Timeframe) {
	sort.Slice(tfs, func(i, j int) bool { return tfs[i].Less(tfs[j]) })
}

// Dedupe 去重并按时长升序返回新切片。
func Dedupe(tfs []Timeframe) []Timeframe {
	seen := make(map[Timeframe]struct{}, len(tfs))
	out := make([]Timeframe, 0, len(tfs))
	for _, tf := range tfs {
		if _, ok := seen[tf]; ok {
			continue
		}
		seen[tf] = struct{}{}
		out = append(out, tf)
	}
	Sort(out)
	return out
}

// PeriodStart 返回 now 所在周期的起点（按 UTC 纪元对齐）。
// 4h 对齐到 00/04/08...，1d 对齐到 UTC 零点。
func (t Timeframe) PeriodStart(now time.Time) time.Time {
	d := t.Duration()
	if d <= 0 {
		return now.UTC()
	}
	return now.UTC().Truncate(d)
}

// NextBoundary 返回严格晚于 now 的下一个周期边界。
func (t Timeframe) NextBoundary(now time.Time) time.Time {
	return t.PeriodStart(now).Add(t.Duration())
}
