package rerank

import (
	"context"

	"github.com/rushteam/fusekit/core"
	"github.com/rushteam/fusekit/pipeline"
)

// TopNNode 是一个 Top-N 截断节点，作为 Pipeline 末端保证输出长度 ≤ 请求条数。
//
// 使用场景：
//   - 融合 + 兜底之后截取最终返回条数
//   - N <= 0 时使用 rctx.Count（请求级条数）
type TopNNode struct {
	// N 要保留的物品数量；N <= 0 时取 rctx.Count，仍无效则不截断
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindPostProcess
}

func (n *TopNNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	limit := n.N
	if limit <= 0 {
		limit = rctx.Count
	}
	if limit <= 0 || len(items) <= limit {
		return items, nil
	}
	return items[:limit], nil
}
