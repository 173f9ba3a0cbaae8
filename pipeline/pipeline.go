package pipeline

import (
	"context"

	"github.com/rushteam/fusekit/core"
)

// Pipeline 是 fusekit 的核心抽象：把融合逻辑拆成可组合的 Node 链。
// 一次推荐请求是输入为空候选集的一次 Run，各 Node 纯函数式处理自己的阶段，
// 请求之间没有共享可变状态，可安全并发执行。
type Pipeline struct {
	Nodes []Node
}

func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}
