package core

import "context"

// CatalogItem 是物品目录条目，供兜底级联与解释生成使用。
type CatalogItem struct {
	ID          string
	Title       string
	Description string

	// SkillTags 是技能/主题标签，首个标签用于 "skill_match:<tag>" 解释
	SkillTags []string

	// Category / Difficulty 是多样性控制的分桶维度
	Category   string
	Difficulty string
}

// Catalog 是物品目录的领域接口。
//
// 兜底级联（内容扩展、探索层）与解释生成依赖它；
// 实现方可以基于内存、Store 或外部服务。
type Catalog interface {
	// Get 按 ID 读取单个目录条目
	Get(ctx context.Context, itemID string) (*CatalogItem, error)

	// List 返回全部目录条目（目录规模可控时使用；大目录实现应自行分页缓存）
	List(ctx context.Context) ([]*CatalogItem, error)
}

// MemoryCatalog 是内存实现的 Catalog，用于测试/开发/原型。
type MemoryCatalog struct {
	items []*CatalogItem
	index map[string]*CatalogItem
}

func NewMemoryCatalog(items []*CatalogItem) *MemoryCatalog {
	index := make(map[string]*CatalogItem, len(items))
	for _, it := range items {
		index[it.ID] = it
	}
	return &MemoryCatalog{items: items, index: index}
}

func (c *MemoryCatalog) Get(_ context.Context, itemID string) (*CatalogItem, error) {
	it, ok := c.index[itemID]
	if !ok {
		return nil, ErrStoreNotFound
	}
	return it, nil
}

func (c *MemoryCatalog) List(_ context.Context) ([]*CatalogItem, error) {
	return c.items, nil
}

var _ Catalog = (*MemoryCatalog)(nil)
