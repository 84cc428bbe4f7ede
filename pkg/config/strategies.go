package config

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/betbot/quanttrader/internal/domain"
	"github.com/betbot/quanttrader/pkg/timeframe"
)

// ParamSet 单组策略参数。所有策略变体共享 window/threshold 两个参数。
type ParamSet struct {
	Window    int     `yaml:"window" validate:"gt=0"`
	Threshold float64 `yaml:"threshold"`
}

var paramKeys = []string{"threshold", "window"}

// UnmarshalYAML 要求参数组恰好包含 window 与 threshold，且均为数值。
func (p *ParamSet) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]float64
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("line %d: params 必须是数值映射: %w", node.Line, err)
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if strings.Join(keys, ",") != strings.Join(paramKeys, ",") {
		return fmt.Errorf("line %d: params 的 key 必须为 %v，实际为 %v", node.Line, paramKeys, keys)
	}
	w := raw["window"]
	if w != math.Trunc(w) {
		return fmt.Errorf("line %d: window 必须是整数: %v", node.Line, w)
	}
	p.Window = int(w)
	p.Threshold = raw["threshold"]
	return nil
}

// StrategyConfig 单个策略配置（加载后不可变）
type StrategyConfig struct {
	ID        int                 `yaml:"id" validate:"gt=0"`
	Name      string              `yaml:"name" validate:"required"`
	Type      string              `yaml:"type" validate:"required"`
	Symbol    string              `yaml:"symbol" validate:"required,alphanum"`
	Timeframe timeframe.Timeframe `yaml:"timeframe" validate:"required,oneof=1m 3m 5m 15m 30m 1h 4h 1d"`
	Side      domain.PositionSide `yaml:"side" validate:"required,oneof=long short long_short"`
	MaxAbsPos float64             `yaml:"max_abs_pos" validate:"gte=0,lte=1"`
	Params    []ParamSet          `yaml:"params" validate:"required,min=1,dive"`
	OrderType domain.OrderType    `yaml:"order_type" validate:"required,oneof=market limit"`
	MddLimit  float64             `yaml:"mdd_limit" validate:"gte=0"`
}

// Key 策略的信号日志 key：<name>_<symbol>_<timeframe>
func (s StrategyConfig) Key() string {
	return fmt.Sprintf("%s_%s_%s", s.Name, s.Symbol, s.Timeframe)
}

// MaxWindow 所有参数组中最大的回看窗口
func (s StrategyConfig) MaxWindow() int {
	max := 0
	for _, p := range s.Params {
		if p.Window > max {
			max = p.Window
		}
	}
	return max
}

type strategiesFile struct {
	Strategies []StrategyConfig `yaml:"strategies"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadStrategies 加载并校验策略列表，保持配置文件中的顺序
func LoadStrategies(filePath string) ([]StrategyConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("加载策略配置失败 %s: %w", filePath, err)
	}
	return ParseStrategies(data)
}

// ParseStrategies 解析并校验策略 YAML
func ParseStrategies(data []byte) ([]StrategyConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f strategiesFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("解析策略配置失败: %w", err)
	}
	for i := range f.Strategies {
		normalize(&f.Strategies[i])
	}
	if err := ValidateStrategies(f.Strategies); err != nil {
		return nil, err
	}
	return f.Strategies, nil
}

func normalize(s *StrategyConfig) {
	s.Name = strings.TrimSpace(s.Name)
	s.Type = strings.TrimSpace(s.Type)
	s.Symbol = strings.ToUpper(strings.TrimSpace(s.Symbol))
	s.Timeframe = timeframe.Timeframe(strings.ToLower(strings.TrimSpace(string(s.Timeframe))))
	s.Side = domain.PositionSide(strings.ToLower(strings.TrimSpace(string(s.Side))))
	s.OrderType = domain.OrderType(strings.ToLower(strings.TrimSpace(string(s.OrderType))))
}

// ValidateStrategies 逐条校验，并检查 id 与信号日志 key 的唯一性。
// 返回所有错误（errors.Join），而不是只返回第一个。
func ValidateStrategies(list []StrategyConfig) error {
	if len(list) == 0 {
		return fmt.Errorf("策略列表为空")
	}
	var errs []error
	ids := make(map[int]struct{}, len(list))
	keys := make(map[string]struct{}, len(list))
	for i, s := range list {
		if err := validate.Struct(s); err != nil {
			errs = append(errs, fmt.Errorf("strategies[%d] (%s): %w", i, s.Name, err))
			continue
		}
		if _, dup := ids[s.ID]; dup {
			errs = append(errs, fmt.Errorf("strategies[%d]: 重复的 id %d", i, s.ID))
		}
		ids[s.ID] = struct{}{}
		if _, dup := keys[s.Key()]; dup {
			errs = append(errs, fmt.Errorf("strategies[%d]: 重复的策略 %s", i, s.Key()))
		}
		keys[s.Key()] = struct{}{}
	}
	return errors.Join(errs...)
}

// Symbols 按配置顺序返回去重后的交易对
func Symbols(list []StrategyConfig) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range list {
		if _, ok := seen[s.Symbol]; ok {
			continue
		}
		seen[s.Symbol] = struct{}{}
		out = append(out, s.Symbol)
	}
	return out
}

// AbsMaxPositions 每个交易对的 max_abs_pos 之和（总敞口上限，不做截断）
func AbsMaxPositions(list []StrategyConfig) map[string]float64 {
	out := make(map[string]float64)
	for _, s := range list {
		out[s.Symbol] += s.MaxAbsPos
	}
	return out
}

// OrderTypeConflicts 返回同一交易对上订单类型不一致的交易对
func OrderTypeConflicts(list []StrategyConfig) []string {
	types := make(map[string]domain.OrderType)
	conflict := make(map[string]struct{})
	for _, s := range list {
		if t, ok := types[s.Symbol]; ok && t != s.OrderType {
			conflict[s.Symbol] = struct{}{}
			continue
		}
		types[s.Symbol] = s.OrderType
	}
	out := make([]string, 0, len(conflict))
	for sym := range conflict {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
