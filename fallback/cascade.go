package fallback

import (
	"context"
	"log/slog"

	"github.com/rushteam/fusekit/core"
	"github.com/rushteam/fusekit/pipeline"
)

// Tier 是兜底级联中的一层候选源。
// Fill 返回不超过 need 条、且不与 selected 重复的补充候选；
// 出错视为软失败，级联继续尝试下一层。
type Tier interface {
	Name() string
	Fill(ctx context.Context, rctx *core.RecommendContext, selected map[string]bool, need int) ([]*core.Item, error)
}

// Cascade 是兜底阶段 Node：融合结果不足最低条数时，按固定优先级逐层补足。
//
// 行为要点：
//   - 最低条数满足后，后续层整体跳过，不发起任何存储/策略调用
//   - 补充项追加在融合结果之后（置信度更低，排位靠后）
//   - 所有层（含合成占位）之后仍不足最低条数时返回 ErrInsufficientResults，
//     这是请求级致命错误，不返回截断结果
type Cascade struct {
	Tiers []Tier

	// Minimum 是保证的最低推荐条数（默认 4）；请求条数更小时以请求条数为准
	Minimum int

	Logger *slog.Logger
}

func (n *Cascade) Name() string        { return "fallback.cascade" }
func (n *Cascade) Kind() pipeline.Kind { return pipeline.KindFallback }

func (n *Cascade) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	minimum := n.Minimum
	if minimum <= 0 {
		minimum = 4
	}
	if rctx.Count > 0 && rctx.Count < minimum {
		minimum = rctx.Count
	}

	if len(items) >= minimum {
		return items, nil
	}

	selected := make(map[string]bool, len(items))
	for _, it := range items {
		if it != nil {
			selected[it.ID] = true
		}
	}

	out := items
	for _, tier := range n.Tiers {
		need := minimum - len(out)
		if need <= 0 {
			break
		}

		filled, err := tier.Fill(ctx, rctx, selected, need)
		if err != nil {
			// 软失败：该层不可用时继续下一层
			n.logger().Warn("fallback tier failed",
				"tier", tier.Name(), "user_id", rctx.UserID, "err", err)
			continue
		}
		if len(filled) == 0 {
			continue
		}

		n.logger().Debug("fallback tier activated",
			"tier", tier.Name(), "user_id", rctx.UserID, "filled", len(filled))

		for _, it := range filled {
			if it == nil || selected[it.ID] {
				continue
			}
			selected[it.ID] = true
			out = append(out, it)
			if len(out) >= minimum {
				break
			}
		}
	}

	if len(out) < minimum {
		return nil, core.ErrInsufficientResults
	}
	return out, nil
}

func (n *Cascade) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}
