package core

import "github.com/rushteam/fusekit/pkg/utils"

// Item 是融合链路中的统一承载结构：候选分数、来源策略、元信息、标签。
// 由策略适配器产出（Score 为原始分），经融合后 Score 变为加权合并分。
// Labels 用于解释与归因；Strategy/StrategyRank 记录首个贡献来源及其站内排名。
type Item struct {
	ID    string
	Score float64

	// Strategy 是产出该候选的策略名（融合后为首个贡献策略）
	Strategy string

	// StrategyRank 是候选在其来源策略列表中的位置（1-based），
	// 用于合并分相等时的确定性断序
	StrategyRank int

	// Kind 是来源策略的分数类型，决定归一化规则（见 strategy.ScoreKind）
	Kind string

	Meta   map[string]any
	Labels map[string]utils.Label
}

func NewItem(id string) *Item {
	return &Item{
		ID:     id,
		Score:  0,
		Meta:   make(map[string]any),
		Labels: make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// LabelValue 返回指定 key 的 Label value，不存在时返回空串。
func (it *Item) LabelValue(key string) string {
	if it.Labels == nil {
		return ""
	}
	return it.Labels[key].Value
}

// Recommendation 是引擎对外的最终推荐结果。
// 按最终位置赋 Rank（1-based），列表长度不超过请求的 N，无重复 ItemID。
type Recommendation struct {
	ItemID string  `json:"item_id"`
	Score  float64 `json:"score"`
	Rank   int     `json:"rank"`

	// Explanations 是面向用户的解释标签（最多 2 个）
	Explanations []string `json:"explanations"`

	// AllExplanations 保留全部解释标签，用于审计与调试
	AllExplanations []string `json:"all_explanations"`

	// Synthetic 标记兜底合成占位项，调用方不得将其当作目录物品
	Synthetic bool `json:"synthetic,omitempty"`
}
