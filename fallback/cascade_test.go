package fallback

import (
	"context"
	"errors"
	"testing"

	"github.com/rushteam/fusekit/core"
)

func testCatalog() core.Catalog {
	return core.NewMemoryCatalog([]*core.CatalogItem{
		{ID: "go_basics", Title: "Go Basics", SkillTags: []string{"go"}, Category: "programming", Difficulty: "beginner"},
		{ID: "go_web", Title: "Go Web Development", SkillTags: []string{"go", "web"}, Category: "programming", Difficulty: "intermediate"},
		{ID: "go_concurrency", Title: "Go Concurrency Patterns", SkillTags: []string{"go"}, Category: "programming", Difficulty: "advanced"},
		{ID: "python_data", Title: "Python Data Analysis", SkillTags: []string{"python", "data"}, Category: "data", Difficulty: "beginner"},
		{ID: "sql_intro", Title: "SQL Introduction", SkillTags: []string{"sql"}, Category: "data", Difficulty: "beginner"},
	})
}

func fusedItems(ids ...string) []*core.Item {
	out := make([]*core.Item, 0, len(ids))
	for i, id := range ids {
		it := core.NewItem(id)
		it.Score = 1.0 - float64(i)*0.1
		out = append(out, it)
	}
	return out
}

func TestCascadeSkipsWhenSatisfied(t *testing.T) {
	probe := &probeTier{}
	n := &Cascade{Tiers: []Tier{probe}, Minimum: 4}
	rctx := &core.RecommendContext{UserID: "u1", Count: 10}

	items := fusedItems("a", "b", "c", "d")
	out, err := n.Process(context.Background(), rctx, items)
	if err != nil {
		t.Fatalf("Process 出错: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("已满足最低条数时不应改动结果: %d", len(out))
	}
	if probe.calls != 0 {
		t.Errorf("已满足最低条数时不应触发任何兜底层，实际调用 %d 次", probe.calls)
	}
}

type probeTier struct {
	calls int
	items []*core.Item
	err   error
}

func (t *probeTier) Name() string { return "probe" }
func (t *probeTier) Fill(_ context.Context, _ *core.RecommendContext, _ map[string]bool, need int) ([]*core.Item, error) {
	t.calls++
	if t.err != nil {
		return nil, t.err
	}
	if len(t.items) > need {
		return t.items[:need], nil
	}
	return t.items, nil
}

func TestCascadeSyntheticOnly(t *testing.T) {
	// 所有策略为空、目录与热门均不可用：合成层补足到最低条数
	n := &Cascade{Tiers: []Tier{&SyntheticTier{}}, Minimum: 4}
	rctx := &core.RecommendContext{UserID: "u1", Count: 5}

	out, err := n.Process(context.Background(), rctx, nil)
	if err != nil {
		t.Fatalf("Process 出错: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("期望恰好 4 条合成占位（最低条数），得到 %d", len(out))
	}

	wantIDs := []string{"synthetic_001", "synthetic_002", "synthetic_003", "synthetic_004"}
	wantScores := []float64{0.7, 0.6, 0.5, 0.4}
	for i, it := range out {
		if it.ID != wantIDs[i] {
			t.Errorf("第 %d 项 ID = %s, 期望 %s", i, it.ID, wantIDs[i])
		}
		if it.Score != wantScores[i] {
			t.Errorf("第 %d 项分数 = %v, 期望 %v", i, it.Score, wantScores[i])
		}
		if synthetic, _ := it.Meta["synthetic"].(bool); !synthetic {
			t.Errorf("合成占位项必须带 synthetic 标记: %+v", it.Meta)
		}
	}
}

func TestCascadeSyntheticScoreFloor(t *testing.T) {
	tier := &SyntheticTier{}
	out, err := tier.Fill(context.Background(), &core.RecommendContext{}, map[string]bool{}, 10)
	if err != nil {
		t.Fatalf("Fill 出错: %v", err)
	}
	// 第 7 项起分数到达下限 0.1
	if out[6].Score != 0.1 || out[9].Score != 0.1 {
		t.Errorf("合成分数下限应为 0.1: %v %v", out[6].Score, out[9].Score)
	}
}

func TestCascadeMinimumCappedByCount(t *testing.T) {
	// 请求条数 3 小于默认最低条数 4：以请求条数为准
	n := &Cascade{Tiers: []Tier{&SyntheticTier{}}, Minimum: 4}
	rctx := &core.RecommendContext{UserID: "u1", Count: 3}

	out, err := n.Process(context.Background(), rctx, nil)
	if err != nil {
		t.Fatalf("Process 出错: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("期望 3 条，得到 %d", len(out))
	}
}

func TestCascadeTierOrderAndDedup(t *testing.T) {
	catalog := testCatalog()
	n := &Cascade{
		Tiers: []Tier{
			&ContentTier{Catalog: catalog},
			&PopularTier{IDs: []string{"go_basics", "python_data", "sql_intro"}},
			&SyntheticTier{},
		},
		Minimum: 4,
	}
	// 兴趣命中 go 系列：内容层先补，已有项不重复
	rctx := &core.RecommendContext{
		UserID:    "u1",
		Count:     10,
		Interests: []string{"go"},
	}

	out, err := n.Process(context.Background(), rctx, fusedItems("go_basics"))
	if err != nil {
		t.Fatalf("Process 出错: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("期望补足到 4 条，得到 %d", len(out))
	}
	if out[0].ID != "go_basics" {
		t.Errorf("融合结果应保持在前: %s", out[0].ID)
	}

	seen := make(map[string]bool)
	for _, it := range out {
		if seen[it.ID] {
			t.Errorf("结果含重复物品: %s", it.ID)
		}
		seen[it.ID] = true
	}
	// 内容层应补上 go_web / go_concurrency（标题含 go）
	if !seen["go_web"] || !seen["go_concurrency"] {
		t.Errorf("内容层未按兴趣补充: %v", seen)
	}
	for _, it := range out[1:] {
		if it.LabelValue("fallback_tier") == "" {
			t.Errorf("兜底补充项应带 fallback_tier 标签: %+v", it.Labels)
		}
	}
}

func TestCascadeTierFailureIsSoft(t *testing.T) {
	broken := &probeTier{err: errors.New("store unavailable")}
	n := &Cascade{
		Tiers:   []Tier{broken, &SyntheticTier{}},
		Minimum: 4,
	}
	rctx := &core.RecommendContext{UserID: "u1", Count: 5}

	out, err := n.Process(context.Background(), rctx, nil)
	if err != nil {
		t.Fatalf("单层失败不应中断级联: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("失败层之后应继续补足: %d", len(out))
	}
}

func TestCascadeInsufficientResults(t *testing.T) {
	// 没有任何层可用且无合成层：低于最低条数是请求级致命错误
	n := &Cascade{Tiers: []Tier{&probeTier{}}, Minimum: 4}
	rctx := &core.RecommendContext{UserID: "u1", Count: 5}

	_, err := n.Process(context.Background(), rctx, fusedItems("only_one"))
	if !core.IsInsufficientResults(err) {
		t.Errorf("期望 INSUFFICIENT_RESULT，得到 %v", err)
	}
}

func TestPopularTierPositionalScores(t *testing.T) {
	tier := &PopularTier{IDs: []string{"a", "b", "c", "d"}}
	out, err := tier.Fill(context.Background(), &core.RecommendContext{}, map[string]bool{"b": true}, 3)
	if err != nil {
		t.Fatalf("Fill 出错: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("期望 3 条，得到 %d", len(out))
	}
	// b 已选被跳过；位次分按原榜单位置计算
	if out[0].ID != "a" || out[1].ID != "c" || out[2].ID != "d" {
		t.Errorf("热门层顺序错误: %v", out)
	}
	if out[0].Score != 1.0 {
		t.Errorf("榜首位次分应为 1.0: %v", out[0].Score)
	}
}

func TestContentTierDifficultyBuckets(t *testing.T) {
	catalog := core.NewMemoryCatalog([]*core.CatalogItem{
		{ID: "b1", Title: "go one", Difficulty: "beginner"},
		{ID: "b2", Title: "go two", Difficulty: "beginner"},
		{ID: "b3", Title: "go three", Difficulty: "beginner"},
		{ID: "a1", Title: "go adv", Difficulty: "advanced"},
	})
	tier := &ContentTier{Catalog: catalog}
	rctx := &core.RecommendContext{UserID: "u1", Interests: []string{"go"}}

	out, err := tier.Fill(context.Background(), rctx, map[string]bool{}, 4)
	if err != nil {
		t.Fatalf("Fill 出错: %v", err)
	}
	buckets := make(map[string]int)
	for _, it := range out {
		entry, _ := catalog.Get(context.Background(), it.ID)
		buckets[entry.Difficulty]++
	}
	if buckets["beginner"] > 2 {
		t.Errorf("每个难度分桶最多 2 条: %v", buckets)
	}
	if buckets["advanced"] != 1 {
		t.Errorf("其他分桶应正常补充: %v", buckets)
	}
}

func TestExploreTierSkipsEnrolled(t *testing.T) {
	tier := &ExploreTier{Catalog: testCatalog()}
	rctx := &core.RecommendContext{
		UserID: "u1",
		Domain: "programming",
		User:   &core.UserProfile{UserID: "u1", EnrolledItems: []string{"go_basics"}},
	}

	out, err := tier.Fill(context.Background(), rctx, map[string]bool{}, 10)
	if err != nil {
		t.Fatalf("Fill 出错: %v", err)
	}
	for _, it := range out {
		if it.ID == "go_basics" {
			t.Error("探索层不应推荐已交互物品")
		}
	}
}
