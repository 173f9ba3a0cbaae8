package experiment

import (
	"fmt"
	"math"
	"time"

	"github.com/rushteam/fusekit/core"
)

// DefaultVariant 是未知/停用/不符合受众条件时的默认分组。
const DefaultVariant = "control"

// splitTolerance 是流量切分总和的容差。
const splitTolerance = 0.01

// Config 是一个 A/B 实验的配置。
// 创建后只读，仅 IsActive 可通过 Registry.SetActive 切换。
type Config struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`

	// Variants 是分组的显式声明顺序。
	// 分桶时按此顺序累积流量切分概率，不依赖 map 迭代顺序。
	Variants []string `json:"variants" yaml:"variants"`

	// TrafficSplit 是分组到流量占比的映射，总和须为 1.0（±0.01）
	TrafficSplit map[string]float64 `json:"traffic_split" yaml:"traffic_split"`

	StartTime time.Time  `json:"start_time" yaml:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty" yaml:"end_time,omitempty"`
	IsActive  bool       `json:"is_active" yaml:"is_active"`

	// ConversionEvents 是该实验关注的转化事件类型（默认 enroll/complete）
	ConversionEvents []string `json:"conversion_events" yaml:"conversion_events"`

	// VariantWeights 是分组到融合权重的覆盖映射（可选）。
	// 命中某分组的请求使用对应权重代替默认权重。
	VariantWeights map[string]map[string]float64 `json:"variant_weights,omitempty" yaml:"variant_weights,omitempty"`

	// Audience 是受众圈选规则（CEL 表达式，可选）。
	// 可用变量：user_id、experiment、profile。不符合条件的用户落入 control。
	Audience string `json:"audience,omitempty" yaml:"audience,omitempty"`
}

// Validate 校验实验配置。流量切分总和偏离 1.0 超过容差、
// 分组缺失切分项或含负概率时返回 INVALID_EXPERIMENT。
func (c *Config) Validate() error {
	if c.Name == "" {
		return invalidConfig("experiment name is required")
	}
	if len(c.Variants) == 0 {
		return invalidConfig(fmt.Sprintf("experiment %s: at least one variant is required", c.Name))
	}

	var total float64
	for _, v := range c.Variants {
		p, ok := c.TrafficSplit[v]
		if !ok {
			return invalidConfig(fmt.Sprintf("experiment %s: variant %q has no traffic split entry", c.Name, v))
		}
		if p < 0 {
			return invalidConfig(fmt.Sprintf("experiment %s: variant %q has negative traffic split", c.Name, v))
		}
		total += p
	}
	if len(c.TrafficSplit) != len(c.Variants) {
		return invalidConfig(fmt.Sprintf("experiment %s: traffic split contains undeclared variants", c.Name))
	}
	if math.Abs(total-1.0) > splitTolerance {
		return invalidConfig(fmt.Sprintf("experiment %s: traffic split must sum to 1.0, got %v", c.Name, total))
	}
	return nil
}

// ActiveAt 判断实验在指定时刻是否生效。
func (c *Config) ActiveAt(t time.Time) bool {
	if !c.IsActive {
		return false
	}
	if !c.StartTime.IsZero() && t.Before(c.StartTime) {
		return false
	}
	if c.EndTime != nil && t.After(*c.EndTime) {
		return false
	}
	return true
}

// clone 返回配置的深拷贝，Registry 对外只暴露拷贝。
func (c *Config) clone() *Config {
	cp := *c
	cp.Variants = append([]string(nil), c.Variants...)
	cp.TrafficSplit = copyFloatMap(c.TrafficSplit)
	cp.ConversionEvents = append([]string(nil), c.ConversionEvents...)
	if c.EndTime != nil {
		end := *c.EndTime
		cp.EndTime = &end
	}
	if c.VariantWeights != nil {
		cp.VariantWeights = make(map[string]map[string]float64, len(c.VariantWeights))
		for variant, weights := range c.VariantWeights {
			cp.VariantWeights[variant] = copyFloatMap(weights)
		}
	}
	return &cp
}

func copyFloatMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func invalidConfig(msg string) error {
	return core.NewDomainError(core.ModuleExperiment, core.ErrorCodeInvalidExperiment, "experiment: "+msg)
}
