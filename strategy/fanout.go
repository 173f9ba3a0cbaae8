package strategy

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/fusekit/core"
	"github.com/rushteam/fusekit/pipeline"
	"github.com/rushteam/fusekit/pkg/utils"
)

// Fanout 是策略阶段 Node：并发执行多个策略适配器，按声明顺序合并结果。
//
// 行为要点：
//   - Strategies 的顺序即策略优先级声明：输出按该顺序拼接，结果完全确定，
//     与 goroutine 完成顺序无关
//   - 单个策略出错、超时或返回空列表是软失败：记日志、跳过，绝不影响整个请求
//   - 权重为 0 或缺失的策略直接跳过，不发起调用
//   - 声明了 SimilarItems 能力且用户有交互历史时，以首个交互物品为参照取相似候选
type Fanout struct {
	Strategies []Strategy

	// Multiplier 向每个策略请求 rctx.Count*Multiplier 条候选（默认 2），
	// 给融合与去重留出余量
	Multiplier int

	Timeout       time.Duration // 单个策略调用的超时时间
	MaxConcurrent int           // 最大并发数（0 表示无限制）
	Logger        *slog.Logger
}

func (n *Fanout) Name() string        { return "strategy.fanout" }
func (n *Fanout) Kind() pipeline.Kind { return pipeline.KindStrategy }

func (n *Fanout) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	if len(n.Strategies) == 0 {
		return nil, nil
	}

	want := rctx.Count * n.multiplier()
	if want <= 0 {
		want = 20
	}

	// 按策略声明顺序分槽收集，保证输出顺序与并发调度无关
	slots := make([][]*core.Item, len(n.Strategies))
	eg, egCtx := errgroup.WithContext(ctx)

	sem := make(chan struct{}, max(n.MaxConcurrent, 1))
	if n.MaxConcurrent <= 0 {
		close(sem) // 无限制时直接关闭，避免阻塞
	}

	for i, src := range n.Strategies {
		if skipByWeight(rctx.Weights, src.Name()) {
			continue
		}
		idx, s := i, src

		eg.Go(func() error {
			if n.MaxConcurrent > 0 {
				sem <- struct{}{}
				defer func() { <-sem }()
			}

			callCtx := egCtx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(egCtx, n.Timeout)
				defer cancel()
			}

			items, err := n.invoke(callCtx, s, rctx, want)
			if err != nil {
				// 软失败：超时/出错不中断其他策略
				n.logger().Warn("strategy call failed, excluded from fusion",
					"strategy", s.Name(), "user_id", rctx.UserID, "err", err)
				return nil
			}
			if len(items) == 0 {
				n.logger().Debug("strategy returned no candidates",
					"strategy", s.Name(), "user_id", rctx.UserID)
				return nil
			}

			kind := string(s.ScoreKind())
			for rank, it := range items {
				it.Strategy = s.Name()
				it.StrategyRank = rank + 1
				it.Kind = kind
				it.PutLabel("strategy", utils.Label{Value: s.Name(), Source: "strategy"})
			}
			slots[idx] = items
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	all := make([]*core.Item, 0, want)
	for _, items := range slots {
		all = append(all, items...)
	}
	return all, nil
}

// invoke 选择调用路径：声明了 SimilarItems 能力且有参照物品时走相似候选，
// 失败或为空时退回常规 Recommend（与能力缺失时行为一致）。
func (n *Fanout) invoke(ctx context.Context, s Strategy, rctx *core.RecommendContext, want int) ([]*core.Item, error) {
	if p, ok := SupportsSimilarItems(s); ok && rctx.User != nil && len(rctx.User.EnrolledItems) > 0 {
		ref := rctx.User.EnrolledItems[0]
		items, err := p.SimilarItems(ctx, ref, want)
		if err == nil && len(items) > 0 {
			return items, nil
		}
		if err != nil {
			n.logger().Debug("similar items lookup failed, falling back to recommend",
				"strategy", s.Name(), "reference", ref, "err", err)
		}
	}
	return s.Recommend(ctx, rctx, want)
}

func (n *Fanout) multiplier() int {
	if n.Multiplier > 0 {
		return n.Multiplier
	}
	return 2
}

func (n *Fanout) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

// skipByWeight 判断策略是否因权重为 0/缺失而无需调用。
// Weights 为 nil 表示使用默认权重，此时全部调用。
func skipByWeight(weights map[string]float64, name string) bool {
	if weights == nil {
		return false
	}
	w, ok := weights[name]
	return !ok || w <= 0
}
