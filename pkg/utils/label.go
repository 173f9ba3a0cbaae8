package utils

// Label 是融合链路中的一等公民：可解释、可追踪、可透传。
// Value 与 Source 的语义由业务自定义；fusekit 只提供标准化的合并规则。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // strategy / fuse / fallback / explain ...
}

// MergeLabel 用于合并同名 Label，遵循"保留历史、可追踪"的默认策略。
// - Value: 以 '|' 累积
// - Source: 以 ',' 累积
//
// 融合阶段依赖该规则：Combiner 按声明的策略优先级顺序合并 "strategy" 标签，
// 因此 Value 的片段顺序即贡献策略的优先级顺序，Explainer 据此产出解释。
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}

	merged := existing
	merged.Value = existing.Value + "|" + incoming.Value
	switch {
	case existing.Source == "":
		merged.Source = incoming.Source
	case incoming.Source == "":
		merged.Source = existing.Source
	default:
		merged.Source = existing.Source + "," + incoming.Source
	}
	return merged
}

// SplitLabelValue 拆出合并后的 Value 片段（'|' 分隔）。
func SplitLabelValue(value string) []string {
	if value == "" {
		return nil
	}
	parts := make([]string, 0, 4)
	start := 0
	for i := 0; i < len(value); i++ {
		if value[i] == '|' {
			if i > start {
				parts = append(parts, value[start:i])
			}
			start = i + 1
		}
	}
	if start < len(value) {
		parts = append(parts, value[start:])
	}
	return parts
}
