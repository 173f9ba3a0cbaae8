package experiment

import (
	"fmt"
	"time"

	"github.com/rushteam/fusekit/core"
)

// Stats 是实验运行状态的聚合快照。
// Assignments 和 Conversions 来自真实计数；Metrics 由 Evaluator 计算，
// 未注入评估器时为空，绝不凭空生成。
type Stats struct {
	Name         string                      `json:"name"`
	Description  string                      `json:"description"`
	IsActive     bool                        `json:"is_active"`
	StartTime    time.Time                   `json:"start_time"`
	EndTime      *time.Time                  `json:"end_time,omitempty"`
	TrafficSplit map[string]float64          `json:"traffic_split"`
	Assignments  map[string]int64            `json:"assignments"`
	Conversions  map[string]map[string]int64 `json:"conversions"`

	// Metrics 是各分组的评估指标，键格式 "<variant>:<metric>"
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// Evaluator 从真实计数计算实验指标。
// 离线效果评估（如 precision@K）需要标注数据集，由调用方实现注入。
type Evaluator interface {
	Evaluate(cfg *Config, assignments map[string]int64, conversions map[string]map[string]int64) map[string]float64
}

// ConversionRateEvaluator 是默认评估器：
// 对每个分组计算各转化事件类型的转化率 = 转化数 / 首次分桶数。
type ConversionRateEvaluator struct{}

func (ConversionRateEvaluator) Evaluate(cfg *Config, assignments map[string]int64, conversions map[string]map[string]int64) map[string]float64 {
	metrics := make(map[string]float64)
	for _, variant := range cfg.Variants {
		assigned := assignments[variant]
		if assigned == 0 {
			continue
		}
		for typ, count := range conversions[variant] {
			metrics[fmt.Sprintf("%s:%s_rate", variant, typ)] = float64(count) / float64(assigned)
		}
	}
	return metrics
}

// Reporter 汇总实验统计。
type Reporter struct {
	registry  *Registry
	assigner  *Assigner
	tracker   *Tracker
	evaluator Evaluator
}

// ReporterOption 配置 Reporter。
type ReporterOption func(*Reporter)

// WithEvaluator 注入指标评估器，覆盖默认的转化率评估。
func WithEvaluator(e Evaluator) ReporterOption {
	return func(r *Reporter) { r.evaluator = e }
}

func NewReporter(registry *Registry, assigner *Assigner, tracker *Tracker, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		registry:  registry,
		assigner:  assigner,
		tracker:   tracker,
		evaluator: ConversionRateEvaluator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stats 返回实验的聚合统计。实验未注册时返回 NOT_FOUND。
func (r *Reporter) Stats(name string) (*Stats, error) {
	cfg, ok := r.registry.Get(name)
	if !ok {
		return nil, core.NewDomainError(core.ModuleExperiment, core.ErrorCodeNotFound,
			fmt.Sprintf("experiment: %s not found", name))
	}

	assignments := r.assigner.AssignmentCounts(name)
	conversions := r.tracker.ConversionCounts(name)

	stats := &Stats{
		Name:         cfg.Name,
		Description:  cfg.Description,
		IsActive:     cfg.IsActive,
		StartTime:    cfg.StartTime,
		EndTime:      cfg.EndTime,
		TrafficSplit: cfg.TrafficSplit,
		Assignments:  assignments,
		Conversions:  conversions,
	}
	if r.evaluator != nil {
		stats.Metrics = r.evaluator.Evaluate(cfg, assignments, conversions)
	}
	return stats, nil
}
