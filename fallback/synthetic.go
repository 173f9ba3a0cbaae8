package fallback

import (
	"context"
	"fmt"

	"github.com/rushteam/fusekit/core"
	"github.com/rushteam/fusekit/pkg/utils"
)

// SyntheticTier 是兜底级联最后一层：确定性合成占位。
//
// 固定 ID（synthetic_001, synthetic_002, ...）与固定递减分数
// （0.7, 0.6, 0.5, 0.4, ...，下限 0.1），仅在前序各层仍不足
// 最低条数时启用。占位项带 "synthetic" 标签且 Meta 标记，
// 调用方不得将其当作目录物品。
type SyntheticTier struct{}

func (t *SyntheticTier) Name() string { return "synthetic" }

func (t *SyntheticTier) Fill(
	_ context.Context,
	_ *core.RecommendContext,
	selected map[string]bool,
	need int,
) ([]*core.Item, error) {
	out := make([]*core.Item, 0, need)
	for i := 0; len(out) < need; i++ {
		id := fmt.Sprintf("synthetic_%03d", i+1)
		if selected[id] {
			continue
		}
		it := core.NewItem(id)
		it.Score = syntheticScore(i)
		it.Strategy = "fallback"
		it.Meta["synthetic"] = true
		it.PutLabel("fallback_tier", utils.Label{Value: t.Name(), Source: "fallback"})
		out = append(out, it)
	}
	return out, nil
}

// syntheticScore 返回第 i 个占位项的分数：0.7 起每项递减 0.1，下限 0.1。
// 以十分位整数计算，保证每个分数与字面量 0.7/0.6/... 逐位一致。
func syntheticScore(i int) float64 {
	tenth := 7 - i
	if tenth < 1 {
		tenth = 1
	}
	return float64(tenth) / 10
}
