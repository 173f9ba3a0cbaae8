package fallback

import (
	"context"
	"sort"

	"github.com/rushteam/fusekit/core"
	"github.com/rushteam/fusekit/pkg/utils"
)

// ExploreTier 是兜底级联第三层：探索性推荐。
//
// 对用户尚未见过的目录条目，按与领域上下文（Domain/Subdomain）
// 的关键词重合度打分，分数最高者优先补充。
// 没有领域上下文时退化为目录顺序采样（仍然确定性）。
type ExploreTier struct {
	Catalog core.Catalog
}

func (t *ExploreTier) Name() string { return "explore" }

func (t *ExploreTier) Fill(
	ctx context.Context,
	rctx *core.RecommendContext,
	selected map[string]bool,
	need int,
) ([]*core.Item, error) {
	if t.Catalog == nil {
		return nil, nil
	}
	entries, err := t.Catalog.List(ctx)
	if err != nil {
		return nil, err
	}

	domain := tokenize(rctx.Domain, rctx.Subdomain)

	type scored struct {
		entry *core.CatalogItem
		score float64
		pos   int
	}
	candidates := make([]scored, 0, len(entries))
	for pos, e := range entries {
		if e == nil || selected[e.ID] {
			continue
		}
		if rctx.User != nil && rctx.User.Enrolled(e.ID) {
			continue
		}
		score := keywordOverlap(domain, catalogTokens(e.Title, e.Category, e.SkillTags))
		candidates = append(candidates, scored{entry: e, score: score, pos: pos})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].pos < candidates[j].pos
	})

	out := make([]*core.Item, 0, need)
	for _, c := range candidates {
		if len(out) >= need {
			break
		}
		it := core.NewItem(c.entry.ID)
		it.Score = c.score
		it.Strategy = "fallback"
		it.PutLabel("fallback_tier", utils.Label{Value: t.Name(), Source: "fallback"})
		out = append(out, it)
	}
	return out, nil
}
