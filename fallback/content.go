package fallback

import (
	"context"
	"sort"

	"github.com/rushteam/fusekit/core"
	"github.com/rushteam/fusekit/pkg/utils"
)

// ContentTier 是兜底级联第一层：基于兴趣/查询文本的内容扩展。
//
// 以用户兴趣（或请求 query）词元与目录条目做关键词匹配，
// 按匹配度降序补充；对已选结果去重，并按难度分桶限额保证多样性。
// 没有可用查询文本时整层跳过。
type ContentTier struct {
	Catalog core.Catalog

	// MaxPerBucket 每个难度分桶最多补充的条数（默认 2）
	MaxPerBucket int
}

func (t *ContentTier) Name() string { return "content" }

func (t *ContentTier) Fill(
	ctx context.Context,
	rctx *core.RecommendContext,
	selected map[string]bool,
	need int,
) ([]*core.Item, error) {
	if t.Catalog == nil {
		return nil, nil
	}
	query := tokenize(rctx.QueryText()...)
	if len(query) == 0 {
		return nil, nil
	}

	entries, err := t.Catalog.List(ctx)
	if err != nil {
		return nil, err
	}

	type scored struct {
		entry *core.CatalogItem
		score float64
	}
	candidates := make([]scored, 0, len(entries))
	for _, e := range entries {
		if e == nil || selected[e.ID] {
			continue
		}
		score := keywordOverlap(query, catalogTokens(e.Title, e.Category, e.SkillTags))
		if score > 0 {
			candidates = append(candidates, scored{entry: e, score: score})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].entry.ID < candidates[j].entry.ID
	})

	maxPerBucket := t.MaxPerBucket
	if maxPerBucket <= 0 {
		maxPerBucket = 2
	}

	bucketCount := make(map[string]int, 4)
	out := make([]*core.Item, 0, need)
	for _, c := range candidates {
		if len(out) >= need {
			break
		}
		bucket := c.entry.Difficulty
		if bucketCount[bucket] >= maxPerBucket {
			continue
		}
		bucketCount[bucket]++

		it := core.NewItem(c.entry.ID)
		it.Score = c.score
		it.Strategy = "fallback"
		it.PutLabel("fallback_tier", utils.Label{Value: t.Name(), Source: "fallback"})
		out = append(out, it)
	}
	return out, nil
}
