package strategy

import (
	"fmt"
	"sync"

	"github.com/rushteam/fusekit/core"
)

// ScoreKind 标识策略原始分的类型，每种类型对应一条归一化规则。
type ScoreKind string

const (
	// ScoreKindCollaborative 协同过滤分：可能为负/无界，映射 clamp((raw+1)/2, 0, 1)
	ScoreKindCollaborative ScoreKind = "collaborative"

	// ScoreKindContent 内容相似分：来源上已近似 [0,1]，映射 clamp(raw, 0, 1)
	ScoreKindContent ScoreKind = "content"

	// ScoreKindPopularity 流行度分：来源上已近似 [0,1]，映射 clamp(raw, 0, 1)
	ScoreKindPopularity ScoreKind = "popularity"
)

// NormalizeFunc 把策略原始分映射到 [0,1]。
type NormalizeFunc func(raw float64) float64

// Rules 是归一化规则注册表。
// 新策略类型必须显式注册规则；未注册的类型归一化时报错，不会静默退化为恒等映射。
type Rules struct {
	mu    sync.RWMutex
	rules map[ScoreKind]NormalizeFunc
}

// NewRules 创建带内置规则的注册表。
func NewRules() *Rules {
	r := &Rules{rules: make(map[ScoreKind]NormalizeFunc)}
	r.Register(ScoreKindCollaborative, func(raw float64) float64 {
		return clamp01((raw + 1) / 2)
	})
	r.Register(ScoreKindContent, clamp01)
	r.Register(ScoreKindPopularity, clamp01)
	return r
}

// Register 注册或覆盖某类型的归一化规则。
func (r *Rules) Register(kind ScoreKind, fn NormalizeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[kind] = fn
}

// Normalize 按类型归一化原始分。类型未注册时返回错误。
func (r *Rules) Normalize(kind ScoreKind, raw float64) (float64, error) {
	r.mu.RLock()
	fn, ok := r.rules[kind]
	r.mu.RUnlock()
	if !ok {
		return 0, core.NewDomainError(core.ModuleStrategy, core.ErrorCodeNotFound,
			fmt.Sprintf("strategy: no normalization rule registered for score kind %q", kind))
	}
	return fn(raw), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
