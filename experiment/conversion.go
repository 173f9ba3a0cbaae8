package experiment

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/rushteam/fusekit/core"
)

// ConversionEvent 是一条转化事件（追加写日志条目）。
// Variant 在记录时通过 Assigner 的同一确定性函数解析，不另行推导。
type ConversionEvent struct {
	UserID         string    `json:"user_id"`
	Experiment     string    `json:"experiment_name"`
	Variant        string    `json:"variant"`
	ConversionType string    `json:"conversion_type"`
	Timestamp      time.Time `json:"timestamp"`
}

// Tracker 记录转化事件并维护 (experiment, variant, type) 维度的计数。
//
// 计数在内存中加锁维护；事件日志尽力而为异步 LPush 到存储，
// 不在请求关键路径上。
type Tracker struct {
	assigner *Assigner

	mu     sync.RWMutex
	counts map[string]map[string]map[string]int64 // experiment -> variant -> type -> count

	store  core.KeyValueStore
	logger *slog.Logger
}

// TrackerOption 配置 Tracker。
type TrackerOption func(*Tracker)

// WithConversionStore 注入转化日志的持久化存储（可选）。
func WithConversionStore(store core.KeyValueStore) TrackerOption {
	return func(t *Tracker) { t.store = store }
}

// WithTrackerLogger 注入日志器。
func WithTrackerLogger(logger *slog.Logger) TrackerOption {
	return func(t *Tracker) { t.logger = logger }
}

func NewTracker(assigner *Assigner, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		assigner: assigner,
		counts:   make(map[string]map[string]map[string]int64),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record 记录一条转化事件。
// 分组通过 Assigner 解析（未知/停用实验落入 control，同样记录，不报错）。
func (t *Tracker) Record(ctx context.Context, userID, experiment, conversionType string) {
	variant := t.assigner.Assign(ctx, userID, experiment)
	event := ConversionEvent{
		UserID:         userID,
		Experiment:     experiment,
		Variant:        variant,
		ConversionType: conversionType,
		Timestamp:      time.Now(),
	}

	t.mu.Lock()
	if t.counts[experiment] == nil {
		t.counts[experiment] = make(map[string]map[string]int64)
	}
	if t.counts[experiment][variant] == nil {
		t.counts[experiment][variant] = make(map[string]int64)
	}
	t.counts[experiment][variant][conversionType]++
	t.mu.Unlock()

	t.log().Debug("conversion recorded",
		"experiment", experiment, "variant", variant,
		"type", conversionType, "user_id", userID)
	t.persist(event)
}

// ConversionCounts 返回实验各分组各事件类型的转化计数快照。
func (t *Tracker) ConversionCounts(experiment string) map[string]map[string]int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]map[string]int64, len(t.counts[experiment]))
	for variant, byType := range t.counts[experiment] {
		cp := make(map[string]int64, len(byType))
		for typ, c := range byType {
			cp[typ] = c
		}
		out[variant] = cp
	}
	return out
}

// persist 异步追加事件日志（LPush JSON），失败只记日志。
func (t *Tracker) persist(event ConversionEvent) {
	if t.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		data, err := json.Marshal(event)
		if err != nil {
			t.log().Warn("marshal conversion event failed", "err", err)
			return
		}
		if err := t.store.LPush(ctx, "conversions:"+event.Experiment, data); err != nil {
			t.log().Warn("persist conversion event failed",
				"experiment", event.Experiment, "err", err)
		}
	}()
}

func (t *Tracker) log() *slog.Logger {
	if t.logger != nil {
		return t.logger
	}
	return slog.Default()
}
