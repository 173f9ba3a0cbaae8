package fallback

import (
	"context"

	"github.com/rushteam/fusekit/core"
	"github.com/rushteam/fusekit/pkg/utils"
)

// PopularTier 是兜底级联第二层：交互量最高的物品。
//
// 从 Store 的有序集合读取热门列表（按分数降序），跳过已选项。
// Store 为空时使用内存中的 IDs 作为 fallback。
type PopularTier struct {
	Store core.KeyValueStore
	Key   string // 有序集合 key，例如 "hot:items"

	IDs []string // fallback 内存列表
}

func (t *PopularTier) Name() string { return "popular" }

func (t *PopularTier) Fill(
	ctx context.Context,
	rctx *core.RecommendContext,
	selected map[string]bool,
	need int,
) ([]*core.Item, error) {
	var ids []string

	if t.Store != nil && t.Key != "" {
		members, err := t.Store.ZRange(ctx, t.Key, 0, 99)
		if err != nil {
			return nil, err
		}
		ids = members
	}
	if len(ids) == 0 {
		ids = t.IDs
	}
	if len(ids) == 0 {
		return nil, nil
	}

	out := make([]*core.Item, 0, need)
	for i, id := range ids {
		if len(out) >= need {
			break
		}
		if id == "" || selected[id] {
			continue
		}
		it := core.NewItem(id)
		// 位次分：热门榜首 1.0，线性衰减
		it.Score = 1.0 - float64(i)/float64(len(ids))
		it.Strategy = "fallback"
		it.PutLabel("fallback_tier", utils.Label{Value: t.Name(), Source: "fallback"})
		out = append(out, it)
	}
	return out, nil
}
