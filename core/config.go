package core

import "time"

// FusionConfig 是融合相关的配置接口，用于提供默认值。
type FusionConfig interface {
	// DefaultMinResults 返回兜底级联保证的最低推荐条数
	DefaultMinResults() int

	// DefaultCandidateMultiplier 返回向每个策略请求的候选倍数（请求 N 条时取 N*倍数）
	DefaultCandidateMultiplier() int

	// DefaultTopN 返回默认的推荐条数
	DefaultTopN() int

	// DefaultStrategyTimeout 返回单个策略调用的超时时间
	DefaultStrategyTimeout() time.Duration
}

// DefaultFusionConfig 是默认的融合配置实现。
type DefaultFusionConfig struct{}

func (c *DefaultFusionConfig) DefaultMinResults() int {
	return 4
}

func (c *DefaultFusionConfig) DefaultCandidateMultiplier() int {
	return 2
}

func (c *DefaultFusionConfig) DefaultTopN() int {
	return 10
}

func (c *DefaultFusionConfig) DefaultStrategyTimeout() time.Duration {
	return 2 * time.Second
}
