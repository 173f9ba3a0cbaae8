package experiment

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/rushteam/fusekit/core"
)

func TestTrackerCounts(t *testing.T) {
	registry := NewRegistry()
	cfg := Config{
		Name:         "conv_exp",
		Variants:     []string{"control", "treatment"},
		TrafficSplit: map[string]float64{"control": 0.5, "treatment": 0.5},
		IsActive:     true,
	}
	if err := registry.Register(cfg); err != nil {
		t.Fatalf("注册实验失败: %v", err)
	}
	assigner := NewAssigner(registry)
	tracker := NewTracker(assigner)
	ctx := context.Background()

	variant := assigner.Assign(ctx, "u1", "conv_exp")
	tracker.Record(ctx, "u1", "conv_exp", "enroll")
	tracker.Record(ctx, "u1", "conv_exp", "enroll")
	tracker.Record(ctx, "u1", "conv_exp", "complete")

	counts := tracker.ConversionCounts("conv_exp")
	if counts[variant]["enroll"] != 2 {
		t.Errorf("enroll 计数 = %d, 期望 2", counts[variant]["enroll"])
	}
	if counts[variant]["complete"] != 1 {
		t.Errorf("complete 计数 = %d, 期望 1", counts[variant]["complete"])
	}
}

func TestTrackerVariantResolvedByAssigner(t *testing.T) {
	registry := NewRegistry()
	cfg := Config{
		Name:         "all_treatment",
		Variants:     []string{"treatment"},
		TrafficSplit: map[string]float64{"treatment": 1.0},
		IsActive:     true,
	}
	if err := registry.Register(cfg); err != nil {
		t.Fatalf("注册实验失败: %v", err)
	}
	assigner := NewAssigner(registry)
	tracker := NewTracker(assigner)

	// 未事先调用 Assign：Tracker 内部通过同一确定性函数解析分组
	tracker.Record(context.Background(), "fresh_user", "all_treatment", "enroll")

	counts := tracker.ConversionCounts("all_treatment")
	if counts["treatment"]["enroll"] != 1 {
		t.Errorf("转化应归入 treatment: %v", counts)
	}
}

func TestReporterStats(t *testing.T) {
	registry := NewRegistry()
	cfg := Config{
		Name:         "stats_exp",
		Description:  "统计聚合测试",
		Variants:     []string{"control", "treatment"},
		TrafficSplit: map[string]float64{"control": 0.5, "treatment": 0.5},
		IsActive:     true,
	}
	if err := registry.Register(cfg); err != nil {
		t.Fatalf("注册实验失败: %v", err)
	}
	assigner := NewAssigner(registry)
	tracker := NewTracker(assigner)
	reporter := NewReporter(registry, assigner, tracker)
	ctx := context.Background()

	// 100 个用户分桶，每个 control 用户记 1 次 enroll
	for i := 0; i < 100; i++ {
		uid := fmt.Sprintf("user_%d", i)
		if assigner.Assign(ctx, uid, "stats_exp") == "control" {
			tracker.Record(ctx, uid, "stats_exp", "enroll")
		}
	}

	stats, err := reporter.Stats("stats_exp")
	if err != nil {
		t.Fatalf("Stats 出错: %v", err)
	}
	if stats.Name != "stats_exp" || !stats.IsActive {
		t.Errorf("基本字段错误: %+v", stats)
	}

	control := stats.Assignments["control"]
	treatment := stats.Assignments["treatment"]
	if control+treatment != 100 {
		t.Errorf("首次分桶总数 = %d, 期望 100", control+treatment)
	}
	if stats.Conversions["control"]["enroll"] != control {
		t.Errorf("control 转化数 = %d, 期望 %d", stats.Conversions["control"]["enroll"], control)
	}

	// 默认转化率评估：control 每人一次 enroll，转化率 1.0
	rate, ok := stats.Metrics["control:enroll_rate"]
	if !ok {
		t.Fatalf("缺少 control:enroll_rate 指标: %v", stats.Metrics)
	}
	if math.Abs(rate-1.0) > 1e-9 {
		t.Errorf("control enroll 转化率 = %v, 期望 1.0", rate)
	}
	// treatment 无转化：不产出指标
	if _, ok := stats.Metrics["treatment:enroll_rate"]; ok {
		t.Error("无转化的分组不应凭空产出指标")
	}
}

func TestReporterUnknownExperiment(t *testing.T) {
	registry := NewRegistry()
	reporter := NewReporter(registry, NewAssigner(registry), NewTracker(nil))

	_, err := reporter.Stats("ghost")
	if !core.IsNotFound(err) {
		t.Errorf("未注册实验应返回 NOT_FOUND，得到 %v", err)
	}
}

// fixedEvaluator 是测试用评估器：返回固定指标。
type fixedEvaluator struct{}

func (fixedEvaluator) Evaluate(cfg *Config, assignments map[string]int64, conversions map[string]map[string]int64) map[string]float64 {
	return map[string]float64{"custom:metric": 42}
}

func TestReporterCustomEvaluator(t *testing.T) {
	registry := NewRegistry()
	cfg := Config{
		Name:         "eval_exp",
		Variants:     []string{"control"},
		TrafficSplit: map[string]float64{"control": 1.0},
		IsActive:     true,
	}
	if err := registry.Register(cfg); err != nil {
		t.Fatalf("注册实验失败: %v", err)
	}
	assigner := NewAssigner(registry)
	reporter := NewReporter(registry, assigner, NewTracker(assigner), WithEvaluator(fixedEvaluator{}))

	stats, err := reporter.Stats("eval_exp")
	if err != nil {
		t.Fatalf("Stats 出错: %v", err)
	}
	if stats.Metrics["custom:metric"] != 42 {
		t.Errorf("自定义评估器未生效: %v", stats.Metrics)
	}
}
