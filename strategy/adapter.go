package strategy

import (
	"context"

	"github.com/rushteam/fusekit/core"
)

// Strategy 表示一个独立的打分策略（协同过滤/内容相似/流行度/...）。
// 你可以把它理解为"可并发 fan-out 的候选源"：策略内部如何算分不在引擎范围内，
// 引擎只消费其有序候选列表。
//
// 契约：
//   - Recommend 返回按策略自身排序的候选，Item.Score 为策略原始分
//   - 调用出错或返回空列表视为软失败：记录日志、排除出融合，绝不上抛
type Strategy interface {
	Name() string

	// ScoreKind 声明策略原始分的类型，决定归一化规则。
	// 新策略类型必须先注册归一化规则，引擎不会静默使用恒等映射。
	ScoreKind() ScoreKind

	Recommend(ctx context.Context, rctx *core.RecommendContext, n int) ([]*core.Item, error)
}

// SimilarItemsProvider 是可选能力接口：按参照物品找相似候选。
// 协同与内容策略通常实现它；流行度策略不支持。
// 能力通过类型断言声明与发现，而不是运行时属性探测。
type SimilarItemsProvider interface {
	SimilarItems(ctx context.Context, referenceItemID string, n int) ([]*core.Item, error)
}

// SupportsSimilarItems 判断策略是否声明了 SimilarItems 能力。
func SupportsSimilarItems(s Strategy) (SimilarItemsProvider, bool) {
	p, ok := s.(SimilarItemsProvider)
	return p, ok
}
