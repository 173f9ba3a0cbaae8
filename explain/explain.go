package explain

import (
	"context"

	"github.com/rushteam/fusekit/core"
	"github.com/rushteam/fusekit/pipeline"
	"github.com/rushteam/fusekit/pkg/utils"
)

// 规范化解释标签。
const (
	TagSimilarUsers       = "similar_users_enrolled"
	TagSkillMatchPrefix   = "skill_match:"
	TagSimilarItemContent = "similar_item_content"
	TagPopular            = "popular"
	TagRecommended        = "recommended_for_you"
	TagSynthetic          = "synthetic"
)

// Explainer 是解释阶段 Node：为每个结果项生成规范化解释标签。
//
// 归因方式：按策略优先级顺序检查物品的 "strategy" 标签（由 Combiner
// 累积的贡献策略），每命中一个策略追加一个规范标签；兜底项按所在层打标。
// 前两个标签写入 Meta["explanations"]，完整列表写入 Meta["all_explanations"]。
type Explainer struct {
	// Priority 策略优先级顺序（与 Combiner 一致）
	Priority []string

	// Tags 策略名到规范标签的映射；映射值为 TagSkillMatchPrefix 时
	// 会查目录取首个技能标签拼出 "skill_match:<tag>"
	Tags map[string]string

	// Catalog 用于 skill_match 解释的目录查询，可为 nil
	Catalog core.Catalog
}

func (n *Explainer) Name() string        { return "explain" }
func (n *Explainer) Kind() pipeline.Kind { return pipeline.KindExplain }

func (n *Explainer) Process(
	ctx context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	for _, it := range items {
		if it == nil {
			continue
		}
		all := n.explain(ctx, it)
		top := all
		if len(top) > 2 {
			top = all[:2]
		}
		if it.Meta == nil {
			it.Meta = make(map[string]any)
		}
		it.Meta["explanations"] = top
		it.Meta["all_explanations"] = all
	}
	return items, nil
}

func (n *Explainer) explain(ctx context.Context, it *core.Item) []string {
	tags := make([]string, 0, 3)

	contributed := contributedSet(it)
	for _, name := range n.Priority {
		if !contributed[name] {
			continue
		}
		tag, ok := n.Tags[name]
		if !ok {
			continue
		}
		if tag == TagSkillMatchPrefix {
			tags = append(tags, n.skillMatchTag(ctx, it.ID))
			continue
		}
		tags = append(tags, tag)
	}

	switch it.LabelValue("fallback_tier") {
	case "content":
		tags = append(tags, n.skillMatchTag(ctx, it.ID))
	case "popular":
		tags = append(tags, TagPopular)
	case "explore":
		tags = append(tags, TagRecommended)
	case "synthetic":
		tags = append(tags, TagSynthetic)
	}

	if len(tags) == 0 {
		tags = append(tags, TagRecommended)
	}
	return dedupTags(tags)
}

// skillMatchTag 查目录拼出 "skill_match:<首个技能标签>"；
// 目录不可用或条目无标签时退化为 similar_item_content。
func (n *Explainer) skillMatchTag(ctx context.Context, itemID string) string {
	if n.Catalog == nil {
		return TagSimilarItemContent
	}
	entry, err := n.Catalog.Get(ctx, itemID)
	if err != nil || entry == nil || len(entry.SkillTags) == 0 {
		return TagSimilarItemContent
	}
	return TagSkillMatchPrefix + entry.SkillTags[0]
}

// contributedSet 解析 Combiner 合并的 "strategy" 标签为贡献策略集合。
func contributedSet(it *core.Item) map[string]bool {
	parts := utils.SplitLabelValue(it.LabelValue("strategy"))
	set := make(map[string]bool, len(parts))
	for _, p := range parts {
		set[p] = true
	}
	return set
}

func dedupTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := tags[:0]
	for _, t := range tags {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// DefaultTags 返回常见策略名到规范标签的默认映射。
func DefaultTags() map[string]string {
	return map[string]string{
		"cf":      TagSimilarUsers,
		"als":     TagSimilarUsers,
		"content": TagSkillMatchPrefix,
		"pop":     TagPopular,
	}
}
