package experiment

import (
	"context"
	"crypto/md5"
	"log/slog"
	"sync"
	"time"

	"github.com/rushteam/fusekit/core"
)

// ProfileLookup 提供受众规则评估用的用户画像属性（可选）。
type ProfileLookup func(userID string) map[string]any

// Assigner 负责确定性分桶：同一 (user, experiment) 在任何进程、任何时刻
// 都得到同一分组。
//
// 分桶只依赖 md5(user_id + ":" + experiment_name)，缓存仅为 O(1) 加速，
// 可随时丢弃后按同一函数惰性重建；持久化是尽力而为的异步写。
// 并发首次分桶产生的重复计算结果必然一致，写覆盖无害。
type Assigner struct {
	registry *Registry

	mu     sync.RWMutex
	cache  map[string]string           // user\x1fexperiment -> variant
	counts map[string]map[string]int64 // experiment -> variant -> 首次分桶计数

	store    core.KeyValueStore
	profiles ProfileLookup
	logger   *slog.Logger
}

// AssignerOption 配置 Assigner。
type AssignerOption func(*Assigner)

// WithAssignmentStore 注入分组映射的持久化存储（可选）。
func WithAssignmentStore(store core.KeyValueStore) AssignerOption {
	return func(a *Assigner) { a.store = store }
}

// WithProfileLookup 注入受众规则评估用的画像查询（可选）。
func WithProfileLookup(fn ProfileLookup) AssignerOption {
	return func(a *Assigner) { a.profiles = fn }
}

// WithAssignerLogger 注入日志器。
func WithAssignerLogger(logger *slog.Logger) AssignerOption {
	return func(a *Assigner) { a.logger = logger }
}

func NewAssigner(registry *Registry, opts ...AssignerOption) *Assigner {
	a := &Assigner{
		registry: registry,
		cache:    make(map[string]string),
		counts:   make(map[string]map[string]int64),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BucketRatio 返回 (user, experiment) 的稳定分桶比例，取值 [0, 1)。
// 计算：md5(user_id + ":" + experiment_name) mod 10000 / 10000.0。
// 哈希函数是版本化契约的一部分：跨进程、跨平台结果一致，不可更换，
// 否则所有历史分组都会漂移。
func BucketRatio(userID, experiment string) float64 {
	sum := md5.Sum([]byte(userID + ":" + experiment))
	// 128 位摘要按字节折算 mod 10000，等价于对完整大整数取模
	r := 0
	for _, b := range sum {
		r = (r*256 + int(b)) % 10000
	}
	return float64(r) / 10000.0
}

// Assign 返回用户在指定实验中的分组。
//
// 规则（§ 按序）：
//  1. 实验未注册或未生效：返回 control，不缓存
//  2. 配置了受众规则且用户不符合（或评估出错）：返回 control，不缓存
//  3. 按稳定哈希比例沿 Variants 声明顺序累积流量切分，
//     命中首个累计边界 ≥ 比例的分组；浮点残差时取声明顺序的最后一个分组
//  4. 结果写入缓存，重复调用 O(1) 且答案恒定
func (a *Assigner) Assign(ctx context.Context, userID, experiment string) string {
	cfg, ok := a.registry.Get(experiment)
	if !ok || !cfg.ActiveAt(time.Now()) {
		return DefaultVariant
	}

	if aud := a.registry.Audience(experiment); aud != nil {
		var profile map[string]any
		if a.profiles != nil {
			profile = a.profiles(userID)
		}
		eligible, err := aud.Eligible(userID, experiment, profile)
		if err != nil {
			a.log().Warn("audience rule evaluation failed, assigning control",
				"experiment", experiment, "user_id", userID, "err", err)
			return DefaultVariant
		}
		if !eligible {
			return DefaultVariant
		}
	}

	key := userID + "\x1f" + experiment
	a.mu.RLock()
	variant, cached := a.cache[key]
	a.mu.RUnlock()
	if cached {
		return variant
	}

	variant = pickVariant(cfg, BucketRatio(userID, experiment))

	a.mu.Lock()
	if prev, ok := a.cache[key]; ok {
		// 并发首次分桶：两边算出的值相同，保留先写者即可
		a.mu.Unlock()
		return prev
	}
	a.cache[key] = variant
	if a.counts[experiment] == nil {
		a.counts[experiment] = make(map[string]int64)
	}
	a.counts[experiment][variant]++
	a.mu.Unlock()

	a.persist(userID, experiment, variant)
	return variant
}

// pickVariant 沿声明顺序累积流量切分，返回命中分组。
func pickVariant(cfg *Config, ratio float64) string {
	cum := 0.0
	for _, v := range cfg.Variants {
		cum += cfg.TrafficSplit[v]
		if ratio <= cum {
			return v
		}
	}
	// 浮点残差：累计总和略小于 1.0 时取声明顺序最后一个分组
	return cfg.Variants[len(cfg.Variants)-1]
}

// AssignmentCounts 返回实验各分组的首次分桶计数快照。
func (a *Assigner) AssignmentCounts(experiment string) map[string]int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]int64, len(a.counts[experiment]))
	for variant, c := range a.counts[experiment] {
		out[variant] = c
	}
	return out
}

// persist 异步持久化分组映射，失败只记日志；
// 正确性不依赖持久化，重算永远得到同一结果。
func (a *Assigner) persist(userID, experiment, variant string) {
	if a.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.store.HSet(ctx, "assignment:"+userID, experiment, []byte(variant)); err != nil {
			a.log().Warn("persist assignment failed",
				"experiment", experiment, "user_id", userID, "err", err)
		}
	}()
}

func (a *Assigner) log() *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	return slog.Default()
}
