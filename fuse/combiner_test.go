package fuse

import (
	"context"
	"math"
	"testing"

	"github.com/rushteam/fusekit/core"
	"github.com/rushteam/fusekit/pkg/utils"
	"github.com/rushteam/fusekit/strategy"
)

func candidate(id, strategyName string, kind strategy.ScoreKind, score float64, rank int) *core.Item {
	it := core.NewItem(id)
	it.Score = score
	it.Strategy = strategyName
	it.StrategyRank = rank
	it.Kind = string(kind)
	it.PutLabel("strategy", utils.Label{Value: strategyName, Source: "strategy"})
	return it
}

func newCombiner() *Combiner {
	return &Combiner{
		Priority: []string{"als", "content", "pop"},
		Weights:  WeightSet{"als": 0.5, "content": 0.3, "pop": 0.2},
	}
}

func TestCombinerWeightedSum(t *testing.T) {
	// 物品 y 被 als 和 content 同时命中：
	// als 原始分 0.1 -> 归一化 (0.1+1)/2 = 0.55，贡献 0.55*0.5
	// content 原始分 0.8 -> 归一化 0.8，贡献 0.8*0.3
	// 合并分 = 0.275 + 0.24 = 0.515
	n := newCombiner()
	rctx := &core.RecommendContext{UserID: "u1", Count: 10}

	items := []*core.Item{
		candidate("y", "als", strategy.ScoreKindCollaborative, 0.1, 1),
		candidate("y", "content", strategy.ScoreKindContent, 0.8, 1),
	}
	out, err := n.Process(context.Background(), rctx, items)
	if err != nil {
		t.Fatalf("Process 出错: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("期望 1 条结果，得到 %d", len(out))
	}
	if math.Abs(out[0].Score-0.515) > 1e-9 {
		t.Errorf("合并分 = %v, 期望 0.515", out[0].Score)
	}
}

func TestCombinerRequestWeightsOverride(t *testing.T) {
	n := newCombiner()
	// 请求级权重只保留 content，als 候选应当被排除
	rctx := &core.RecommendContext{
		UserID:  "u1",
		Count:   10,
		Weights: map[string]float64{"content": 1.0},
	}

	items := []*core.Item{
		candidate("a", "als", strategy.ScoreKindCollaborative, 0.9, 1),
		candidate("b", "content", strategy.ScoreKindContent, 0.4, 1),
	}
	out, err := n.Process(context.Background(), rctx, items)
	if err != nil {
		t.Fatalf("Process 出错: %v", err)
	}
	if len(out) != 1 || out[0].ID != "b" {
		t.Fatalf("期望只保留 content 候选 b，得到 %+v", out)
	}
	// 权重归一化后为 1.0，分数等于归一化原始分
	if math.Abs(out[0].Score-0.4) > 1e-9 {
		t.Errorf("合并分 = %v, 期望 0.4", out[0].Score)
	}
}

func TestCombinerInvalidWeights(t *testing.T) {
	tests := []struct {
		name    string
		weights map[string]float64
	}{
		{"空权重集", map[string]float64{}},
		{"负权重", map[string]float64{"als": -0.5, "content": 1.5}},
		{"总和为零", map[string]float64{"als": 0, "content": 0}},
	}

	n := newCombiner()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rctx := &core.RecommendContext{UserID: "u1", Count: 5, Weights: tt.weights}
			_, err := n.Process(context.Background(), rctx, nil)
			if !core.IsInvalidWeights(err) {
				t.Errorf("期望 INVALID_WEIGHTS，得到 %v", err)
			}
		})
	}
}

func TestCombinerWeightsNormalizedBeforeUse(t *testing.T) {
	// 权重 {als: 5, content: 3, pop: 2} 应等价于 {0.5, 0.3, 0.2}
	scaled := &Combiner{
		Priority: []string{"als", "content", "pop"},
		Weights:  WeightSet{"als": 5, "content": 3, "pop": 2},
	}
	base := newCombiner()
	rctx := &core.RecommendContext{UserID: "u1", Count: 10}

	items := func() []*core.Item {
		return []*core.Item{
			candidate("y", "als", strategy.ScoreKindCollaborative, 0.1, 1),
			candidate("y", "content", strategy.ScoreKindContent, 0.8, 1),
		}
	}

	a, err := scaled.Process(context.Background(), rctx, items())
	if err != nil {
		t.Fatalf("Process 出错: %v", err)
	}
	b, err := base.Process(context.Background(), rctx, items())
	if err != nil {
		t.Fatalf("Process 出错: %v", err)
	}
	if math.Abs(a[0].Score-b[0].Score) > 1e-9 {
		t.Errorf("等比缩放权重应产出相同结果: %v vs %v", a[0].Score, b[0].Score)
	}
}

func TestCombinerDeterministicTieBreak(t *testing.T) {
	n := newCombiner()
	rctx := &core.RecommendContext{UserID: "u1", Count: 10}

	// a 与 b 合并分相同（同策略同分），ID 字典序兜底：a 在前
	// c 来自更高优先级策略且站内排名靠前
	build := func() []*core.Item {
		return []*core.Item{
			candidate("c", "als", strategy.ScoreKindCollaborative, 0.5, 1),
			candidate("b", "content", strategy.ScoreKindContent, 0.6, 1),
			candidate("a", "content", strategy.ScoreKindContent, 0.6, 2),
		}
	}

	var first []string
	for i := 0; i < 50; i++ {
		out, err := n.Process(context.Background(), rctx, build())
		if err != nil {
			t.Fatalf("Process 出错: %v", err)
		}
		ids := make([]string, len(out))
		for j, it := range out {
			ids[j] = it.ID
		}
		if first == nil {
			first = ids
			continue
		}
		for j := range ids {
			if ids[j] != first[j] {
				t.Fatalf("第 %d 次运行顺序不一致: %v vs %v", i, ids, first)
			}
		}
	}

	// c 的合并分 0.75*0.5=0.375 最高；
	// b/a 同为 0.6*0.3=0.18，按站内排名断序 b(rank 1) 在 a(rank 2) 前
	if len(first) != 3 || first[0] != "c" || first[1] != "b" || first[2] != "a" {
		t.Errorf("断序结果错误: %v", first)
	}
}

func TestCombinerDedupAndLimit(t *testing.T) {
	n := newCombiner()
	rctx := &core.RecommendContext{UserID: "u1", Count: 2}

	items := []*core.Item{
		candidate("x", "als", strategy.ScoreKindCollaborative, 0.9, 1),
		candidate("x", "content", strategy.ScoreKindContent, 0.9, 1),
		candidate("y", "als", strategy.ScoreKindCollaborative, 0.5, 2),
		candidate("z", "pop", strategy.ScoreKindPopularity, 0.3, 1),
	}
	out, err := n.Process(context.Background(), rctx, items)
	if err != nil {
		t.Fatalf("Process 出错: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("期望截断到 2 条，得到 %d", len(out))
	}
	seen := make(map[string]bool)
	for _, it := range out {
		if seen[it.ID] {
			t.Errorf("结果含重复物品: %s", it.ID)
		}
		seen[it.ID] = true
	}
	// x 被两个策略命中，合并分最高
	if out[0].ID != "x" {
		t.Errorf("期望 x 排第一，得到 %s", out[0].ID)
	}
}

func TestCombinerMergesStrategyLabels(t *testing.T) {
	n := newCombiner()
	rctx := &core.RecommendContext{UserID: "u1", Count: 10}

	items := []*core.Item{
		candidate("x", "als", strategy.ScoreKindCollaborative, 0.9, 1),
		candidate("x", "content", strategy.ScoreKindContent, 0.9, 1),
	}
	out, err := n.Process(context.Background(), rctx, items)
	if err != nil {
		t.Fatalf("Process 出错: %v", err)
	}
	parts := utils.SplitLabelValue(out[0].LabelValue("strategy"))
	if len(parts) != 2 || parts[0] != "als" || parts[1] != "content" {
		t.Errorf("strategy 标签应按优先级累积贡献策略: %v", parts)
	}
}

func TestCombinerUndeclaredStrategyExcluded(t *testing.T) {
	n := newCombiner()
	rctx := &core.RecommendContext{UserID: "u1", Count: 10}

	items := []*core.Item{
		candidate("m", "mystery", strategy.ScoreKindContent, 0.9, 1),
		candidate("b", "content", strategy.ScoreKindContent, 0.1, 1),
	}
	out, err := n.Process(context.Background(), rctx, items)
	if err != nil {
		t.Fatalf("Process 出错: %v", err)
	}
	if len(out) != 1 || out[0].ID != "b" {
		t.Errorf("未声明优先级的策略候选不应参与融合: %+v", out)
	}
}
