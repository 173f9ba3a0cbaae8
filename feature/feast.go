package feature

import (
	"context"
	"fmt"
	"strings"
	"time"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	"github.com/feast-dev/feast/sdk/go/protos/feast/types"

	"github.com/rushteam/fusekit/core"
)

// Feast 在线特征默认约定：
//   - user_profile:interest_tags    逗号分隔的兴趣标签
//   - user_profile:enrolled_items   逗号分隔的已加入条目 ID
//   - user_profile:recent_views     逗号分隔的最近浏览条目 ID
//
// 兴趣权重特征（DOUBLE 类型）以 interest_ 为前缀，如 user_profile:interest_python。
const (
	featureInterestTags  = "user_profile:interest_tags"
	featureEnrolledItems = "user_profile:enrolled_items"
	featureRecentViews   = "user_profile:recent_views"

	interestFeaturePrefix = "interest_"
)

// FeastProvider 是基于官方 Feast Go SDK 的画像提供方。
//
// 使用官方 SDK (github.com/feast-dev/feast/sdk/go) 的 gRPC 客户端，
// 在线特征低延迟读取，连接由 gRPC 库复用管理。
type FeastProvider struct {
	client  *feastsdk.GrpcClient
	project string
	entity  string

	// features 是每次查询的特征引用列表
	features []string
	timeout  time.Duration
}

// FeastOption 配置 FeastProvider。
type FeastOption func(*FeastProvider)

// WithFeatures 覆盖默认的特征引用列表。
func WithFeatures(refs ...string) FeastOption {
	return func(p *FeastProvider) { p.features = refs }
}

// WithEntityName 覆盖默认实体名（默认 user_id）。
func WithEntityName(name string) FeastOption {
	return func(p *FeastProvider) { p.entity = name }
}

// WithFeastTimeout 设置单次查询超时（默认 2s）。
func WithFeastTimeout(d time.Duration) FeastOption {
	return func(p *FeastProvider) { p.timeout = d }
}

// NewFeastProvider 创建 Feast 画像提供方。
//
// 参数：
//   - host: Feast Feature Server 主机地址
//   - port: gRPC 端口，0 表示默认 6565
//   - project: Feast 项目名称
func NewFeastProvider(host string, port int, project string, opts ...FeastOption) (*FeastProvider, error) {
	if port == 0 {
		port = 6565
	}
	client, err := feastsdk.NewGrpcClient(host, port)
	if err != nil {
		return nil, fmt.Errorf("feast grpc client: %w", err)
	}

	p := &FeastProvider{
		client:  client,
		project: project,
		entity:  "user_id",
		features: []string{
			featureInterestTags,
			featureEnrolledItems,
			featureRecentViews,
		},
		timeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Profile 从 Feast 在线存储读取用户画像。
func (p *FeastProvider) Profile(ctx context.Context, userID string) (*core.UserProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req := &feastsdk.OnlineFeaturesRequest{
		Features: p.features,
		Entities: []feastsdk.Row{
			{p.entity: feastsdk.StrVal(userID)},
		},
		Project: p.project,
	}
	resp, err := p.client.GetOnlineFeatures(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("feast get online features: %w", err)
	}

	rows := resp.Rows()
	if len(rows) == 0 {
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeNotFound,
			"feature: profile not found for user "+userID)
	}

	profile := &core.UserProfile{
		UserID:     userID,
		Interests:  make(map[string]float64),
		UpdateTime: time.Now(),
	}
	for ref, val := range rows[0] {
		name := featureName(ref)
		switch name {
		case featureName(featureInterestTags):
			for _, tag := range splitCSV(stringValue(val)) {
				if _, ok := profile.Interests[tag]; !ok {
					profile.Interests[tag] = 1.0
				}
			}
		case featureName(featureEnrolledItems):
			profile.EnrolledItems = splitCSV(stringValue(val))
		case featureName(featureRecentViews):
			profile.RecentViews = splitCSV(stringValue(val))
		default:
			if tag, ok := strings.CutPrefix(name, interestFeaturePrefix); ok {
				profile.Interests[tag] = val.GetDoubleVal()
			}
		}
	}
	return profile, nil
}

// Close 关闭客户端。SDK 的 gRPC 连接由底层库管理，无显式释放。
func (p *FeastProvider) Close() error {
	p.client = nil
	return nil
}

// featureName 去掉特征引用里的 FeatureView 前缀（view:name -> name）。
func featureName(ref string) string {
	if i := strings.LastIndex(ref, ":"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

func stringValue(v *types.Value) string {
	if v == nil {
		return ""
	}
	return v.GetStringVal()
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var _ Provider = (*FeastProvider)(nil)
