// Package fusekit 是一个推荐融合与实验工具包（Fusion Kit）。
//
// 设计要点：
// - Pipeline-first: 融合链路通过 Node 串联（Strategy → Fuse → Fallback → Explain → PostProcess）
// - Labels-first: labels 全链路透传与标准化 merge，支持 explain / 归因 / 观测
// - 确定性优先: 融合排序、兜底补足、实验分桶全部可复现，不依赖 map 迭代顺序
// - Node 可扩展: 自定义策略适配器与 Node 即可插拔扩展
package fusekit

import "github.com/rushteam/fusekit/pipeline"

// 轻量 facade：便于用户直接 import "fusekit" 使用核心抽象。
type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind

const (
	KindStrategy    = pipeline.KindStrategy
	KindFuse        = pipeline.KindFuse
	KindFallback    = pipeline.KindFallback
	KindExplain     = pipeline.KindExplain
	KindPostProcess = pipeline.KindPostProcess
)
