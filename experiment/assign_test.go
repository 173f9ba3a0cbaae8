package experiment

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/rushteam/fusekit/core"
)

func newTestAssigner(t *testing.T, cfgs ...Config) *Assigner {
	t.Helper()
	registry := NewRegistry()
	for _, cfg := range cfgs {
		if err := registry.Register(cfg); err != nil {
			t.Fatalf("注册实验失败: %v", err)
		}
	}
	return NewAssigner(registry)
}

func ninetyTenConfig(name string) Config {
	return Config{
		Name:         name,
		Variants:     []string{"control", "treatment"},
		TrafficSplit: map[string]float64{"control": 0.9, "treatment": 0.1},
		IsActive:     true,
	}
}

func TestAssignStable(t *testing.T) {
	a := newTestAssigner(t, ninetyTenConfig("new_algorithm_v1"))
	ctx := context.Background()

	first := a.Assign(ctx, "u1", "new_algorithm_v1")
	if first != "control" && first != "treatment" {
		t.Fatalf("未知分组: %s", first)
	}
	for i := 0; i < 1000; i++ {
		if got := a.Assign(ctx, "u1", "new_algorithm_v1"); got != first {
			t.Fatalf("第 %d 次分桶结果漂移: %s -> %s", i, first, got)
		}
	}
}

func TestAssignIndependentAcrossInstances(t *testing.T) {
	// 分桶只依赖哈希：不同进程（这里用不同实例模拟）结果必须一致
	cfg := ninetyTenConfig("exp_a")
	a1 := newTestAssigner(t, cfg)
	a2 := newTestAssigner(t, cfg)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		uid := fmt.Sprintf("user_%d", i)
		if v1, v2 := a1.Assign(ctx, uid, "exp_a"), a2.Assign(ctx, uid, "exp_a"); v1 != v2 {
			t.Fatalf("用户 %s 在两个实例得到不同分组: %s vs %s", uid, v1, v2)
		}
	}
}

func TestAssignSplitDistribution(t *testing.T) {
	a := newTestAssigner(t, ninetyTenConfig("dist_exp"))
	ctx := context.Background()

	const total = 100000
	var treatment int
	for i := 0; i < total; i++ {
		if a.Assign(ctx, fmt.Sprintf("user_%d", i), "dist_exp") == "treatment" {
			treatment++
		}
	}

	got := float64(treatment) / total
	if math.Abs(got-0.1) > 0.01 {
		t.Errorf("treatment 占比 %v，期望 0.1±0.01", got)
	}
}

func TestAssignUnknownExperiment(t *testing.T) {
	a := newTestAssigner(t)
	ctx := context.Background()

	if got := a.Assign(ctx, "u1", "no_such_exp"); got != DefaultVariant {
		t.Errorf("未注册实验应返回 control，得到 %s", got)
	}
	// 未注册实验的结果不应计入首次分桶计数
	if counts := a.AssignmentCounts("no_such_exp"); len(counts) != 0 {
		t.Errorf("未注册实验不应累计计数: %v", counts)
	}
}

func TestAssignInactiveExperiment(t *testing.T) {
	cfg := ninetyTenConfig("paused_exp")
	cfg.IsActive = false
	a := newTestAssigner(t, cfg)

	if got := a.Assign(context.Background(), "u1", "paused_exp"); got != DefaultVariant {
		t.Errorf("停用实验应返回 control，得到 %s", got)
	}
}

func TestAssignExpiredExperiment(t *testing.T) {
	end := time.Now().Add(-time.Hour)
	cfg := ninetyTenConfig("expired_exp")
	cfg.EndTime = &end
	a := newTestAssigner(t, cfg)

	if got := a.Assign(context.Background(), "u1", "expired_exp"); got != DefaultVariant {
		t.Errorf("已过期实验应返回 control，得到 %s", got)
	}
}

func TestAssignDeclaredOrderWalk(t *testing.T) {
	// 三分组：分桶比例沿声明顺序累积切分
	cfg := Config{
		Name:         "three_way",
		Variants:     []string{"a", "b", "c"},
		TrafficSplit: map[string]float64{"a": 0.3, "b": 0.3, "c": 0.4},
		IsActive:     true,
	}
	a := newTestAssigner(t, cfg)
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		uid := fmt.Sprintf("user_%d", i)
		ratio := BucketRatio(uid, "three_way")
		want := "c"
		switch {
		case ratio <= 0.3:
			want = "a"
		case ratio <= 0.6:
			want = "b"
		}
		if got := a.Assign(ctx, uid, "three_way"); got != want {
			t.Fatalf("用户 %s 比例 %v 应落入 %s，得到 %s", uid, ratio, want, got)
		}
	}
}

func TestAssignAudienceRule(t *testing.T) {
	cfg := ninetyTenConfig("beta_exp")
	cfg.Audience = `user_id.startsWith("beta_")`
	cfg.TrafficSplit = map[string]float64{"control": 0.0, "treatment": 1.0}

	registry := NewRegistry()
	if err := registry.Register(cfg); err != nil {
		t.Fatalf("注册实验失败: %v", err)
	}
	a := NewAssigner(registry)
	ctx := context.Background()

	if got := a.Assign(ctx, "beta_u1", "beta_exp"); got != "treatment" {
		t.Errorf("符合受众条件的用户应正常分桶，得到 %s", got)
	}
	if got := a.Assign(ctx, "u1", "beta_exp"); got != DefaultVariant {
		t.Errorf("不符合受众条件的用户应落入 control，得到 %s", got)
	}
}

func TestBucketRatioRange(t *testing.T) {
	for i := 0; i < 10000; i++ {
		r := BucketRatio(fmt.Sprintf("user_%d", i), "exp")
		if r < 0 || r >= 1 {
			t.Fatalf("分桶比例越界: %v", r)
		}
	}
}

func TestValidateTrafficSplit(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "合法 90/10",
			cfg:     ninetyTenConfig("ok"),
			wantErr: false,
		},
		{
			name: "总和 0.9 非法",
			cfg: Config{
				Name:         "bad_sum",
				Variants:     []string{"control", "treatment"},
				TrafficSplit: map[string]float64{"control": 0.5, "treatment": 0.4},
				IsActive:     true,
			},
			wantErr: true,
		},
		{
			name: "容差内的浮点误差合法",
			cfg: Config{
				Name:         "float_ok",
				Variants:     []string{"a", "b", "c"},
				TrafficSplit: map[string]float64{"a": 0.333, "b": 0.333, "c": 0.333},
				IsActive:     true,
			},
			wantErr: false,
		},
		{
			name: "负概率非法",
			cfg: Config{
				Name:         "negative",
				Variants:     []string{"control", "treatment"},
				TrafficSplit: map[string]float64{"control": 1.5, "treatment": -0.5},
				IsActive:     true,
			},
			wantErr: true,
		},
		{
			name: "分组缺少切分项非法",
			cfg: Config{
				Name:         "missing",
				Variants:     []string{"control", "treatment"},
				TrafficSplit: map[string]float64{"control": 1.0},
				IsActive:     true,
			},
			wantErr: true,
		},
		{
			name: "切分表含未声明分组非法",
			cfg: Config{
				Name:         "undeclared",
				Variants:     []string{"control"},
				TrafficSplit: map[string]float64{"control": 0.5, "ghost": 0.5},
				IsActive:     true,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && !core.IsInvalidExperiment(err) {
				t.Errorf("期望 INVALID_EXPERIMENT，得到 %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("不应报错: %v", err)
			}
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	registry := NewRegistry()
	cfg := ninetyTenConfig("dup")
	if err := registry.Register(cfg); err != nil {
		t.Fatalf("首次注册失败: %v", err)
	}
	err := registry.Register(cfg)
	if err == nil {
		t.Fatal("重名注册应报错")
	}
}
