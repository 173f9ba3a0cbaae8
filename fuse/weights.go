package fuse

import "github.com/rushteam/fusekit/core"

// WeightSet 是策略名到非负权重的映射。
// 权重为 0 或缺失的策略不参与融合。
type WeightSet map[string]float64

// DefaultWeights 返回默认的三路融合权重：协同 0.7、内容 0.2、流行度 0.1。
func DefaultWeights() WeightSet {
	return WeightSet{"als": 0.7, "content": 0.2, "pop": 0.1}
}

// DefaultPriority 返回与 DefaultWeights 对应的策略优先级声明顺序。
func DefaultPriority() []string {
	return []string{"als", "content", "pop"}
}

// Normalized 返回总和为 1.0（±1e-9）的归一化副本。
// 权重集为空、含负值或总和为零是调用方错误，返回 ErrInvalidWeights，不做静默兜底。
func (w WeightSet) Normalized() (WeightSet, error) {
	if len(w) == 0 {
		return nil, core.ErrInvalidWeights
	}
	var total float64
	for _, v := range w {
		if v < 0 {
			return nil, core.ErrInvalidWeights
		}
		total += v
	}
	if total <= 0 {
		return nil, core.ErrInvalidWeights
	}
	out := make(WeightSet, len(w))
	for k, v := range w {
		out[k] = v / total
	}
	return out, nil
}
