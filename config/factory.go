package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rushteam/fusekit/core"
	"github.com/rushteam/fusekit/explain"
	"github.com/rushteam/fusekit/fallback"
	"github.com/rushteam/fusekit/fuse"
	"github.com/rushteam/fusekit/pipeline"
	"github.com/rushteam/fusekit/pkg/conv"
	"github.com/rushteam/fusekit/rerank"
	"github.com/rushteam/fusekit/strategy"
)

// Resources 是配置驱动构建时注入的运行期依赖。
// 策略适配器、目录和存储无法从 YAML 表达，由调用方装配后传入。
type Resources struct {
	Strategies []strategy.Strategy
	Catalog    core.Catalog
	Store      core.KeyValueStore
	Rules      *strategy.Rules
	Logger     *slog.Logger
}

// DefaultFactory 返回一个包含所有内置 Node 的工厂。
//
// 支持的 node 类型：
//   - strategy.fanout    策略并发扇出
//   - fuse.combine       加权融合
//   - fallback.cascade   兜底级联
//   - explain            解释标签
//   - rerank.topn        Top-N 截断
func DefaultFactory(res Resources) *pipeline.NodeFactory {
	factory := pipeline.NewNodeFactory()

	factory.Register("strategy.fanout", func(cfg map[string]any) (pipeline.Node, error) {
		return buildFanoutNode(res, cfg)
	})
	factory.Register("fuse.combine", func(cfg map[string]any) (pipeline.Node, error) {
		return buildCombineNode(res, cfg)
	})
	factory.Register("fallback.cascade", func(cfg map[string]any) (pipeline.Node, error) {
		return buildCascadeNode(res, cfg)
	})
	factory.Register("explain", func(cfg map[string]any) (pipeline.Node, error) {
		return buildExplainNode(res, cfg)
	})
	factory.Register("rerank.topn", func(cfg map[string]any) (pipeline.Node, error) {
		return &rerank.TopNNode{N: conv.ConfigGetInt(cfg, "n", 0)}, nil
	})

	return factory
}

func buildFanoutNode(res Resources, cfg map[string]any) (pipeline.Node, error) {
	if len(res.Strategies) == 0 {
		return nil, fmt.Errorf("strategy.fanout: no strategies injected")
	}
	fanout := &strategy.Fanout{
		Strategies: res.Strategies,
		Multiplier: conv.ConfigGetInt(cfg, "multiplier", 0),
		Logger:     res.Logger,
	}
	if sec := conv.ConfigGetInt(cfg, "timeout", 0); sec > 0 {
		fanout.Timeout = time.Duration(sec) * time.Second
	}
	if n := conv.ConfigGetInt(cfg, "max_concurrent", 0); n > 0 {
		fanout.MaxConcurrent = n
	}
	return fanout, nil
}

func buildCombineNode(res Resources, cfg map[string]any) (pipeline.Node, error) {
	priority := conv.SliceAnyToString(cfg["priority"])
	weights := conv.ConfigGetFloatMap(cfg, "weights")
	if len(priority) == 0 {
		return nil, fmt.Errorf("fuse.combine: priority not found")
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("fuse.combine: weights not found")
	}
	return &fuse.Combiner{
		Priority: priority,
		Weights:  fuse.WeightSet(weights),
		Rules:    res.Rules,
	}, nil
}

func buildCascadeNode(res Resources, cfg map[string]any) (pipeline.Node, error) {
	tierNames := conv.SliceAnyToString(cfg["tiers"])
	if len(tierNames) == 0 {
		tierNames = []string{"content", "popular", "explore", "synthetic"}
	}

	tiers := make([]fallback.Tier, 0, len(tierNames))
	for _, name := range tierNames {
		switch name {
		case "content":
			if res.Catalog == nil {
				continue
			}
			tiers = append(tiers, &fallback.ContentTier{
				Catalog:      res.Catalog,
				MaxPerBucket: conv.ConfigGetInt(cfg, "max_per_bucket", 0),
			})
		case "popular":
			tiers = append(tiers, &fallback.PopularTier{
				Store: res.Store,
				Key:   conv.ConfigGet(cfg, "popular_key", ""),
				IDs:   conv.SliceAnyToString(cfg["popular_ids"]),
			})
		case "explore":
			if res.Catalog == nil {
				continue
			}
			tiers = append(tiers, &fallback.ExploreTier{Catalog: res.Catalog})
		case "synthetic":
			tiers = append(tiers, &fallback.SyntheticTier{})
		default:
			return nil, fmt.Errorf("fallback.cascade: unknown tier: %s", name)
		}
	}

	return &fallback.Cascade{
		Tiers:   tiers,
		Minimum: conv.ConfigGetInt(cfg, "minimum", 0),
		Logger:  res.Logger,
	}, nil
}

func buildExplainNode(res Resources, cfg map[string]any) (pipeline.Node, error) {
	tags := explain.DefaultTags()
	if custom, ok := cfg["tags"].(map[string]any); ok {
		for name, tag := range custom {
			if s, ok := tag.(string); ok {
				tags[name] = s
			}
		}
	}
	return &explain.Explainer{
		Priority: conv.SliceAnyToString(cfg["priority"]),
		Tags:     tags,
		Catalog:  res.Catalog,
	}, nil
}
