package core

import "github.com/rushteam/fusekit/pkg/utils"

// RecommendContext 承载一次融合请求的用户/场景/实验信息，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	UserID string
	Scene  string

	// Count 是请求的推荐条数（N），融合与截断以此为准
	Count int

	// Weights 是本次请求的策略权重（策略名 -> 非负权重）。
	// 为 nil 时由 Combiner 使用默认权重；权重为 0 或缺失的策略不参与融合。
	Weights map[string]float64

	// Experiment / Variant 记录本次请求命中的实验与分组，用于归因与观测
	Experiment string
	Variant    string

	// Interests 是用户兴趣文本（驱动内容扩展兜底层）
	Interests []string

	// Domain / Subdomain 是领域上下文（驱动探索兜底层的关键词匹配）
	Domain    string
	Subdomain string

	// User 是强类型用户画像
	User *UserProfile

	// Labels 是用户级标签，可驱动整个 Pipeline 行为
	Labels map[string]utils.Label

	// Params 请求级上下文参数（query、device_type、实时特征等）
	Params map[string]any
}

// QueryText 返回内容匹配用的查询文本：优先 Interests，其次 params["query"]。
func (rctx *RecommendContext) QueryText() []string {
	if len(rctx.Interests) > 0 {
		return rctx.Interests
	}
	if rctx.Params != nil {
		if q, ok := rctx.Params["query"].(string); ok && q != "" {
			return []string{q}
		}
	}
	return nil
}

// PutLabel 写入用户级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取用户级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
