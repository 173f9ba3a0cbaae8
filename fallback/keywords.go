package fallback

import "strings"

// tokenize 把文本拆成小写词元（非字母数字均视为分隔符）。
func tokenize(texts ...string) []string {
	out := make([]string, 0, 8)
	for _, text := range texts {
		start := -1
		lower := strings.ToLower(text)
		for i := 0; i <= len(lower); i++ {
			if i < len(lower) && isWordByte(lower[i]) {
				if start < 0 {
					start = i
				}
				continue
			}
			if start >= 0 {
				out = append(out, lower[start:i])
				start = -1
			}
		}
	}
	return out
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

// keywordOverlap 计算查询词元与物品词元的重合度，映射到 [0,1]。
// 分数 = 命中查询词元数 / 查询词元总数。
func keywordOverlap(query []string, item []string) float64 {
	if len(query) == 0 || len(item) == 0 {
		return 0
	}
	itemSet := make(map[string]bool, len(item))
	for _, tok := range item {
		itemSet[tok] = true
	}
	matched := 0
	seen := make(map[string]bool, len(query))
	total := 0
	for _, tok := range query {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		total++
		if itemSet[tok] {
			matched++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total)
}

// catalogTokens 返回目录条目参与匹配的词元（标题 + 技能标签 + 分类）。
func catalogTokens(title, category string, skillTags []string) []string {
	texts := make([]string, 0, len(skillTags)+2)
	texts = append(texts, title, category)
	texts = append(texts, skillTags...)
	return tokenize(texts...)
}
