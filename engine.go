package fusekit

import (
	"context"
	"log/slog"

	"github.com/rushteam/fusekit/core"
	"github.com/rushteam/fusekit/experiment"
	"github.com/rushteam/fusekit/explain"
	"github.com/rushteam/fusekit/fallback"
	"github.com/rushteam/fusekit/feature"
	"github.com/rushteam/fusekit/fuse"
	"github.com/rushteam/fusekit/pipeline"
	"github.com/rushteam/fusekit/rerank"
	"github.com/rushteam/fusekit/strategy"
)

// Engine 是融合推荐引擎的顶层 facade：
// 装配默认 Pipeline（策略扇出 → 加权融合 → 兜底级联 → 解释 → 截断），
// 并把实验机制（注册/分桶/转化/统计）接到推荐链路上。
//
// 纯编排层：候选由策略适配器产出，排序由 Pipeline 各 Node 决定。
// 同一输入（用户、权重、策略返回）多次调用产出完全一致的列表。
type Engine struct {
	pipeline *pipeline.Pipeline

	priority []string
	weights  fuse.WeightSet

	registry *experiment.Registry
	assigner *experiment.Assigner
	tracker  *experiment.Tracker
	reporter *experiment.Reporter

	profiles feature.Provider
	catalog  core.Catalog
	store    core.KeyValueStore
	config   core.FusionConfig
	logger   *slog.Logger
}

// Option 配置 Engine。
type Option func(*options)

type options struct {
	strategies []strategy.Strategy
	priority   []string
	weights    fuse.WeightSet
	rules      *strategy.Rules
	tags       map[string]string
	catalog    core.Catalog
	store      core.KeyValueStore
	profiles   feature.Provider
	popularKey string
	popularIDs []string
	pipeline   *pipeline.Pipeline
	config     core.FusionConfig
	evaluator  experiment.Evaluator
	logger     *slog.Logger
}

// WithStrategies 注入策略适配器，顺序即默认优先级。
func WithStrategies(strategies ...strategy.Strategy) Option {
	return func(o *options) { o.strategies = strategies }
}

// WithPriority 显式声明融合优先级顺序（默认取策略注入顺序）。
func WithPriority(priority ...string) Option {
	return func(o *options) { o.priority = priority }
}

// WithWeights 设置默认融合权重（请求级权重优先）。
func WithWeights(weights map[string]float64) Option {
	return func(o *options) { o.weights = fuse.WeightSet(weights) }
}

// WithNormalizeRules 覆盖分数归一化规则注册表。
func WithNormalizeRules(rules *strategy.Rules) Option {
	return func(o *options) { o.rules = rules }
}

// WithExplainTags 增补策略名到解释标签的映射。
func WithExplainTags(tags map[string]string) Option {
	return func(o *options) { o.tags = tags }
}

// WithCatalog 注入物品目录（内容/探索兜底层与 skill_match 解释需要）。
func WithCatalog(catalog core.Catalog) Option {
	return func(o *options) { o.catalog = catalog }
}

// WithStore 注入 KV 存储（热门兜底、实验配置/分组/转化的持久化）。
func WithStore(store core.KeyValueStore) Option {
	return func(o *options) { o.store = store }
}

// WithProfileProvider 注入画像提供方（Feast 或自定义实现）。
func WithProfileProvider(p feature.Provider) Option {
	return func(o *options) { o.profiles = p }
}

// WithPopularFallback 配置热门兜底层的数据来源。
func WithPopularFallback(key string, ids ...string) Option {
	return func(o *options) {
		o.popularKey = key
		o.popularIDs = ids
	}
}

// WithPipeline 完全替换默认 Pipeline（配置驱动构建时使用）。
func WithPipeline(p *pipeline.Pipeline) Option {
	return func(o *options) { o.pipeline = p }
}

// WithFusionConfig 覆盖默认融合参数。
func WithFusionConfig(cfg core.FusionConfig) Option {
	return func(o *options) { o.config = cfg }
}

// WithExperimentEvaluator 注入实验指标评估器（默认转化率评估）。
func WithExperimentEvaluator(e experiment.Evaluator) Option {
	return func(o *options) { o.evaluator = e }
}

// WithLogger 注入结构化日志器。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// NewEngine 装配引擎。零配置可用：无策略时完全依赖兜底级联。
func NewEngine(opts ...Option) *Engine {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.config == nil {
		o.config = &core.DefaultFusionConfig{}
	}
	if o.weights == nil {
		o.weights = fuse.DefaultWeights()
	}
	if len(o.priority) == 0 {
		if len(o.strategies) > 0 {
			for _, s := range o.strategies {
				o.priority = append(o.priority, s.Name())
			}
		} else {
			o.priority = fuse.DefaultPriority()
		}
	}

	e := &Engine{
		priority: o.priority,
		weights:  o.weights,
		profiles: o.profiles,
		catalog:  o.catalog,
		store:    o.store,
		config:   o.config,
		logger:   o.logger,
	}

	e.registry = experiment.NewRegistry(
		experiment.WithRegistryStore(o.store),
		experiment.WithRegistryLogger(o.logger),
	)
	e.assigner = experiment.NewAssigner(e.registry,
		experiment.WithAssignmentStore(o.store),
		experiment.WithProfileLookup(e.profileAttrs),
		experiment.WithAssignerLogger(o.logger),
	)
	e.tracker = experiment.NewTracker(e.assigner,
		experiment.WithConversionStore(o.store),
		experiment.WithTrackerLogger(o.logger),
	)
	var reporterOpts []experiment.ReporterOption
	if o.evaluator != nil {
		reporterOpts = append(reporterOpts, experiment.WithEvaluator(o.evaluator))
	}
	e.reporter = experiment.NewReporter(e.registry, e.assigner, e.tracker, reporterOpts...)

	if o.pipeline != nil {
		e.pipeline = o.pipeline
	} else {
		e.pipeline = e.buildPipeline(o)
	}
	return e
}

// buildPipeline 装配默认五段式 Pipeline。
func (e *Engine) buildPipeline(o *options) *pipeline.Pipeline {
	nodes := make([]pipeline.Node, 0, 5)

	if len(o.strategies) > 0 {
		nodes = append(nodes, &strategy.Fanout{
			Strategies: o.strategies,
			Multiplier: e.config.DefaultCandidateMultiplier(),
			Timeout:    e.config.DefaultStrategyTimeout(),
			Logger:     o.logger,
		})
	}

	nodes = append(nodes, &fuse.Combiner{
		Priority: e.priority,
		Weights:  e.weights,
		Rules:    o.rules,
	})

	tiers := make([]fallback.Tier, 0, 4)
	if o.catalog != nil {
		tiers = append(tiers, &fallback.ContentTier{Catalog: o.catalog})
	}
	if o.store != nil || len(o.popularIDs) > 0 {
		tiers = append(tiers, &fallback.PopularTier{
			Store: o.store,
			Key:   o.popularKey,
			IDs:   o.popularIDs,
		})
	}
	if o.catalog != nil {
		tiers = append(tiers, &fallback.ExploreTier{Catalog: o.catalog})
	}
	tiers = append(tiers, &fallback.SyntheticTier{})

	nodes = append(nodes, &fallback.Cascade{
		Tiers:   tiers,
		Minimum: e.config.DefaultMinResults(),
		Logger:  o.logger,
	})

	tags := explain.DefaultTags()
	for name, tag := range o.tags {
		tags[name] = tag
	}
	nodes = append(nodes,
		&explain.Explainer{Priority: e.priority, Tags: tags, Catalog: o.catalog},
		&rerank.TopNNode{},
	)
	return &pipeline.Pipeline{Nodes: nodes}
}

// Request 是一次融合推荐请求。
type Request struct {
	UserID string
	Scene  string

	// Count 请求条数，<= 0 时取默认值
	Count int

	// Weights 请求级策略权重；nil 时依次使用实验分组权重、默认权重
	Weights map[string]float64

	// Experiment 指定参与的实验；空串表示不参与
	Experiment string

	// Interests / Domain / Subdomain 驱动兜底级联；
	// Interests 为空时取画像兴趣标签
	Interests []string
	Domain    string
	Subdomain string

	Params map[string]any
}

// FuseRecommendations 按默认上下文融合推荐，等价于只带 UserID/Count/Weights 的 Recommend。
func (e *Engine) FuseRecommendations(ctx context.Context, userID string, n int, weights map[string]float64) ([]core.Recommendation, error) {
	return e.Recommend(ctx, &Request{UserID: userID, Count: n, Weights: weights})
}

// Recommend 执行一次完整的融合推荐。
//
// 流程：
//  1. 指定实验时先分桶；分组声明了权重覆盖且请求未显式传权重时使用覆盖权重
//  2. 画像读取是软失败：提供方不可用时继续，仅兜底能力退化
//  3. 运行 Pipeline，各 Node 的软失败语义见各自文档
//  4. 最终列表按位置赋 1-based Rank，长度不超过请求条数且无重复
func (e *Engine) Recommend(ctx context.Context, req *Request) ([]core.Recommendation, error) {
	count := req.Count
	if count <= 0 {
		count = e.config.DefaultTopN()
	}

	rctx := &core.RecommendContext{
		UserID:    req.UserID,
		Scene:     req.Scene,
		Count:     count,
		Weights:   req.Weights,
		Interests: req.Interests,
		Domain:    req.Domain,
		Subdomain: req.Subdomain,
		Params:    req.Params,
	}

	if req.Experiment != "" {
		variant := e.assigner.Assign(ctx, req.UserID, req.Experiment)
		rctx.Experiment = req.Experiment
		rctx.Variant = variant
		if rctx.Weights == nil {
			if cfg, ok := e.registry.Get(req.Experiment); ok {
				if w, ok := cfg.VariantWeights[variant]; ok {
					rctx.Weights = w
				}
			}
		}
	}

	if e.profiles != nil {
		profile, err := e.profiles.Profile(ctx, req.UserID)
		if err != nil {
			// 画像缺失只影响兜底与 SimilarItems，主流程继续
			e.log().Debug("profile lookup failed", "user_id", req.UserID, "err", err)
		} else {
			rctx.User = profile
			if len(rctx.Interests) == 0 {
				rctx.Interests = profile.InterestTags()
			}
		}
	}

	items, err := e.pipeline.Run(ctx, rctx, nil)
	if err != nil {
		return nil, err
	}

	out := make([]core.Recommendation, 0, len(items))
	for i, it := range items {
		if it == nil {
			continue
		}
		rec := core.Recommendation{
			ItemID: it.ID,
			Score:  it.Score,
			Rank:   i + 1,
		}
		if tags, ok := it.Meta["explanations"].([]string); ok {
			rec.Explanations = tags
		}
		if tags, ok := it.Meta["all_explanations"].([]string); ok {
			rec.AllExplanations = tags
		}
		if synthetic, ok := it.Meta["synthetic"].(bool); ok {
			rec.Synthetic = synthetic
		}
		out = append(out, rec)
	}
	return out, nil
}

// ExplanationSummary 对用户的前 n 条推荐做解释标签归因统计，
// 返回各标签出现次数，可用于排查某类推荐来源占比。
func (e *Engine) ExplanationSummary(ctx context.Context, userID string, n int) (map[string]int, error) {
	recs, err := e.FuseRecommendations(ctx, userID, n, nil)
	if err != nil {
		return nil, err
	}
	summary := make(map[string]int)
	for _, rec := range recs {
		tags := rec.AllExplanations
		if len(tags) == 0 {
			tags = rec.Explanations
		}
		for _, tag := range tags {
			summary[tag]++
		}
	}
	return summary, nil
}

// RegisterExperiment 注册一个 A/B 实验。
func (e *Engine) RegisterExperiment(cfg experiment.Config) error {
	return e.registry.Register(cfg)
}

// AssignVariant 返回用户在指定实验中的分组（确定性）。
func (e *Engine) AssignVariant(ctx context.Context, userID, experimentName string) string {
	return e.assigner.Assign(ctx, userID, experimentName)
}

// RecordConversion 记录一条转化事件，分组自动解析。
func (e *Engine) RecordConversion(ctx context.Context, userID, experimentName, conversionType string) {
	e.tracker.Record(ctx, userID, experimentName, conversionType)
}

// ExperimentStats 返回实验统计快照，未注册时返回 NOT_FOUND。
func (e *Engine) ExperimentStats(name string) (*experiment.Stats, error) {
	return e.reporter.Stats(name)
}

// ListExperiments 按注册顺序返回全部实验配置。
func (e *Engine) ListExperiments() []*experiment.Config {
	return e.registry.List()
}

// SetExperimentActive 启停实验。
func (e *Engine) SetExperimentActive(name string, active bool) error {
	return e.registry.SetActive(name, active)
}

// profileAttrs 把画像转成受众规则可访问的属性 map。
func (e *Engine) profileAttrs(userID string) map[string]any {
	if e.profiles == nil {
		return nil
	}
	profile, err := e.profiles.Profile(context.Background(), userID)
	if err != nil || profile == nil {
		return nil
	}
	return map[string]any{
		"interests":      profile.InterestTags(),
		"enrolled_items": profile.EnrolledItems,
		"enrolled_count": len(profile.EnrolledItems),
	}
}

func (e *Engine) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}
