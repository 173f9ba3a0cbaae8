package feature

import (
	"context"

	"github.com/rushteam/fusekit/core"
)

// Provider 提供用户画像特征（遵循 DDD 原则，高内聚低耦合）。
//
// 推荐流程中画像是可选增强：提供方不可用时主流程降级继续，
// 调用方应把错误当软失败处理。
type Provider interface {
	// Profile 返回用户画像，用户不存在时返回 NOT_FOUND
	Profile(ctx context.Context, userID string) (*core.UserProfile, error)

	// Close 关闭底层连接
	Close() error
}

// StaticProvider 是内存画像提供方（测试和示例用）。
type StaticProvider struct {
	Profiles map[string]*core.UserProfile
}

func NewStaticProvider(profiles ...*core.UserProfile) *StaticProvider {
	m := make(map[string]*core.UserProfile, len(profiles))
	for _, p := range profiles {
		m[p.UserID] = p
	}
	return &StaticProvider{Profiles: m}
}

func (p *StaticProvider) Profile(ctx context.Context, userID string) (*core.UserProfile, error) {
	profile, ok := p.Profiles[userID]
	if !ok {
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeNotFound,
			"feature: profile not found for user "+userID)
	}
	return profile, nil
}

func (p *StaticProvider) Close() error { return nil }

var _ Provider = (*StaticProvider)(nil)
