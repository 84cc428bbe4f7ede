package strategies

import (
	"fmt"
	"sort"
	"sync"
)

// Factory 创建一个策略变体（Alpha）实例
type Factory func() Alpha

var (
	alphas   = make(map[string]Factory)
	alphasMu sync.RWMutex
)

// RegisterAlpha 注册策略变体。变体应在 init() 中调用；重复注册直接 panic。
func RegisterAlpha(typ string, f Factory) {
	alphasMu.Lock()
	defer alphasMu.Unlock()
	if _, exists := alphas[typ]; exists {
		panic(fmt.Errorf("strategy type %s already registered", typ))
	}
	alphas[typ] = f
}

// NewAlpha 按配置中的 type 创建变体
func NewAlpha(typ string) (Alpha, error) {
	alphasMu.RLock()
	defer alphasMu.RUnlock()
	f, ok := alphas[typ]
	if !ok {
		return nil, fmt.Errorf("未知的策略类型 %q（已注册: %v）", typ, registeredLocked())
	}
	return f(), nil
}

// RegisteredTypes 已注册的策略类型（排序后）
func RegisteredTypes() []string {
	alphasMu.RLock()
	defer alphasMu.RUnlock()
	return registeredLocked()
}

func registeredLocked() []string {
	out := make([]string, 0, len(alphas))
	for k := range alphas {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
