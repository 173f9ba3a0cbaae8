package core

import "time"

// UserProfile 是用户画像的核心抽象，被所有 Node 共享。
//
// 维度：
//  - 兴趣标签：驱动内容扩展兜底与解释
//  - 已交互物品：SimilarItems 的参照、兜底去重
//  - 实验桶：只读观测（真实分组由 experiment.Assigner 决定）
type UserProfile struct {
	UserID string

	// Interests 长期兴趣，key: tag，value: weight (0-1)
	Interests map[string]float64

	// EnrolledItems 用户已交互（报名/完成）的物品 ID，按时间先后排列。
	// 内容策略以首个物品为 SimilarItems 参照。
	EnrolledItems []string

	// RecentViews 最近浏览的物品 ID（短期信号）
	RecentViews []string

	// Buckets 实验分组快照，例如 {"new_algorithm_v1": "treatment"}
	Buckets map[string]string

	UpdateTime time.Time
}

// NewUserProfile 创建一个新的用户画像。
func NewUserProfile(userID string) *UserProfile {
	return &UserProfile{
		UserID:        userID,
		Interests:     make(map[string]float64),
		EnrolledItems: make([]string, 0),
		RecentViews:   make([]string, 0),
		Buckets:       make(map[string]string),
		UpdateTime:    time.Now(),
	}
}

// UpdateInterest 更新用户兴趣权重。
func (p *UserProfile) UpdateInterest(tag string, weight float64) {
	if p.Interests == nil {
		p.Interests = make(map[string]float64)
	}
	p.Interests[tag] = weight
	p.UpdateTime = time.Now()
}

// Enrolled 判断用户是否已交互过指定物品。
func (p *UserProfile) Enrolled(itemID string) bool {
	for _, id := range p.EnrolledItems {
		if id == itemID {
			return true
		}
	}
	return false
}

// InterestTags 返回兴趣标签列表（无序权重过滤：weight > 0）。
func (p *UserProfile) InterestTags() []string {
	tags := make([]string, 0, len(p.Interests))
	for tag, w := range p.Interests {
		if w > 0 {
			tags = append(tags, tag)
		}
	}
	return tags
}
