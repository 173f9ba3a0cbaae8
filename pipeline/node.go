package pipeline

import (
	"context"

	"github.com/rushteam/fusekit/core"
)

// Kind 用于标记 Node 类型，方便观测/治理/编排（例如按阶段打点）。
type Kind string

const (
	KindStrategy    Kind = "strategy"    // 策略阶段：并发 fan-out 各策略适配器生成候选
	KindFuse        Kind = "fuse"        // 融合阶段：归一化、加权合并并排序
	KindFallback    Kind = "fallback"    // 兜底阶段：级联补足至最低条数
	KindExplain     Kind = "explain"     // 解释阶段：为结果项生成解释标签
	KindPostProcess Kind = "postprocess" // 后处理阶段：截断或最终结果修饰
)

// Node 是 Pipeline 的最小可扩展单元。
// 统一采用"输入 items -> 输出 items"的形态，方便策略生成、融合排序、兜底补足等操作。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		rctx *core.RecommendContext,
		items []*core.Item,
	) ([]*core.Item, error)
}
