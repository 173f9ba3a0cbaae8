package experiment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rushteam/fusekit/core"
)

// Registry 管理实验配置。
//
// 显式构造的对象，持有注入的存储引用；不依赖包级全局状态，
// 可并存多个互相隔离的实例（测试友好）。
// 配置持久化是尽力而为的异步写，不在请求关键路径上。
type Registry struct {
	mu          sync.RWMutex
	experiments map[string]*Config
	audiences   map[string]*Audience
	order       []string

	store  core.KeyValueStore
	logger *slog.Logger
}

// RegistryOption 配置 Registry。
type RegistryOption func(*Registry)

// WithRegistryStore 注入配置持久化存储（可选）。
func WithRegistryStore(store core.KeyValueStore) RegistryOption {
	return func(r *Registry) { r.store = store }
}

// WithRegistryLogger 注入日志器。
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		experiments: make(map[string]*Config),
		audiences:   make(map[string]*Audience),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register 注册新实验。
// 配置校验失败返回 INVALID_EXPERIMENT；重名返回 ALREADY_EXISTS。
func (r *Registry) Register(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	audience, err := NewAudience(cfg.Audience)
	if err != nil {
		return invalidConfig(fmt.Sprintf("experiment %s: %v", cfg.Name, err))
	}

	if len(cfg.ConversionEvents) == 0 {
		cfg.ConversionEvents = []string{"enroll", "complete"}
	}
	if cfg.StartTime.IsZero() {
		cfg.StartTime = time.Now()
	}

	r.mu.Lock()
	if _, exists := r.experiments[cfg.Name]; exists {
		r.mu.Unlock()
		return core.NewDomainError(core.ModuleExperiment, core.ErrorCodeAlreadyExists,
			fmt.Sprintf("experiment: %s already registered", cfg.Name))
	}
	stored := cfg.clone()
	r.experiments[cfg.Name] = stored
	r.audiences[cfg.Name] = audience
	r.order = append(r.order, cfg.Name)
	r.mu.Unlock()

	r.log().Info("experiment registered", "experiment", cfg.Name, "variants", cfg.Variants)
	r.persist(stored)
	return nil
}

// Get 返回实验配置的拷贝。
func (r *Registry) Get(name string) (*Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.experiments[name]
	if !ok {
		return nil, false
	}
	return cfg.clone(), true
}

// Audience 返回实验的编译后受众规则，未配置时返回 nil。
func (r *Registry) Audience(name string) *Audience {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.audiences[name]
}

// SetActive 启停实验。实验配置唯一可变的字段。
func (r *Registry) SetActive(name string, active bool) error {
	r.mu.Lock()
	cfg, ok := r.experiments[name]
	if !ok {
		r.mu.Unlock()
		return core.NewDomainError(core.ModuleExperiment, core.ErrorCodeNotFound,
			fmt.Sprintf("experiment: %s not found", name))
	}
	cfg.IsActive = active
	snapshot := cfg.clone()
	r.mu.Unlock()

	r.log().Info("experiment active state changed", "experiment", name, "active", active)
	r.persist(snapshot)
	return nil
}

// List 按注册顺序返回全部实验配置的拷贝。
func (r *Registry) List() []*Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Config, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.experiments[name].clone())
	}
	return out
}

// persist 异步持久化配置快照，失败只记日志。
func (r *Registry) persist(cfg *Config) {
	if r.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		data, err := json.Marshal(cfg)
		if err != nil {
			r.log().Warn("marshal experiment config failed", "experiment", cfg.Name, "err", err)
			return
		}
		if err := r.store.Set(ctx, "experiment:"+cfg.Name, data); err != nil {
			r.log().Warn("persist experiment config failed", "experiment", cfg.Name, "err", err)
		}
	}()
}

func (r *Registry) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}
