package fuse

import (
	"context"
	"sort"

	"github.com/rushteam/fusekit/core"
	"github.com/rushteam/fusekit/pipeline"
	"github.com/rushteam/fusekit/pkg/utils"
	"github.com/rushteam/fusekit/strategy"
)

// Combiner 是融合阶段 Node：把各策略的加权归一化分数按物品累加成一个排序。
//
// 确定性保证：
//   - 策略按 Priority 声明顺序处理，不依赖 map 迭代顺序
//   - 合并分相等时，先按首个贡献策略的优先级断序，再按该策略站内排名断序，
//     最后按物品 ID 兜底，结果完全可复现
//
// 每个物品的 "strategy" 标签按优先级顺序累积全部贡献策略，供解释阶段归因。
type Combiner struct {
	// Priority 是显式声明的策略优先级顺序。
	// 未声明的策略产出的候选不参与融合。
	Priority []string

	// Weights 是默认权重，请求级 rctx.Weights 优先
	Weights WeightSet

	// Rules 归一化规则注册表，nil 时使用内置规则
	Rules *strategy.Rules
}

func (n *Combiner) Name() string        { return "fuse.combine" }
func (n *Combiner) Kind() pipeline.Kind { return pipeline.KindFuse }

// fusedItem 记录一个物品的累计分与断序信号。
type fusedItem struct {
	item     *core.Item
	score    float64
	priority int // 首个贡献策略在 Priority 中的下标
	rank     int // 物品在首个贡献策略中的站内排名
}

func (n *Combiner) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	weights := n.Weights
	if rctx.Weights != nil {
		weights = WeightSet(rctx.Weights)
	}
	normalized, err := weights.Normalized()
	if err != nil {
		return nil, err
	}

	rules := n.Rules
	if rules == nil {
		rules = strategy.NewRules()
	}

	// 按来源策略分组，保留各策略自身的候选顺序
	byStrategy := make(map[string][]*core.Item, len(n.Priority))
	for _, it := range items {
		if it == nil || it.ID == "" {
			continue
		}
		byStrategy[it.Strategy] = append(byStrategy[it.Strategy], it)
	}

	fused := make(map[string]*fusedItem, len(items))

	for pri, name := range n.Priority {
		w := normalized[name]
		if w <= 0 {
			continue
		}
		for _, it := range byStrategy[name] {
			norm, err := rules.Normalize(strategy.ScoreKind(it.Kind), it.Score)
			if err != nil {
				return nil, err
			}

			f, ok := fused[it.ID]
			if !ok {
				merged := core.NewItem(it.ID)
				merged.Strategy = name
				merged.StrategyRank = it.StrategyRank
				merged.Kind = it.Kind
				f = &fusedItem{item: merged, priority: pri, rank: it.StrategyRank}
				fused[it.ID] = f
			}
			f.score += norm * w
			f.item.PutLabel("strategy", utils.Label{Value: name, Source: "fuse"})
		}
	}

	ranked := make([]*fusedItem, 0, len(fused))
	for _, f := range fused {
		f.item.Score = f.score
		ranked = append(ranked, f)
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		return a.item.ID < b.item.ID
	})

	limit := rctx.Count
	if limit <= 0 || limit > len(ranked) {
		limit = len(ranked)
	}

	out := make([]*core.Item, 0, limit)
	for _, f := range ranked[:limit] {
		out = append(out, f.item)
	}
	return out, nil
}
