package feast

import (
	"context"
	"time"
)

// Client 是 Feast Feature Store 的客户端接口。
//
// Feast 提供在线特征存储（Online Store）与 Feature Server，
// 推荐链路中用于补充活动的实时特征（热度、报名数等）。
//
// 参考：https://github.com/feast-dev/feast
type Client interface {
	// GetOnlineFeatures 获取在线特征（用于实时打分）。
	GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error)

	// Close 关闭客户端连接。
	Close() error
}

// GetOnlineFeaturesRequest 获取在线特征请求
type GetOnlineFeaturesRequest struct {
	// Features 特征名称列表，例如 ["event_stats:popularity", "event_stats:rsvp_count"]
	Features []string

	// EntityRows 实体行，例如 [{"event_id": "evt-1"}, {"event_id": "evt-2"}]
	EntityRows []map[string]interface{}

	// Project 项目名称（可选，为空使用客户端默认值）
	Project string
}

// GetOnlineFeaturesResponse 获取在线特征响应
type GetOnlineFeaturesResponse struct {
	// FeatureVectors 特征向量列表，每个元素对应一个实体行
	FeatureVectors []FeatureVector

	// Metadata 元数据
	Metadata map[string]interface{}
}

// FeatureVector 特征向量
type FeatureVector struct {
	// Values 特征值，key 为特征名称
	Values map[string]interface{}

	// EntityRow 对应的实体行
	EntityRow map[string]interface{}
}

// ClientConfig 客户端配置
type ClientConfig struct {
	// Endpoint 服务端点，例如 "localhost:6565"
	Endpoint string

	// Project 项目名称
	Project string

	// Timeout 请求超时时间
	Timeout time.Duration

	// Auth 认证配置（可选）
	Auth *AuthConfig
}

// AuthConfig 认证配置
type AuthConfig struct {
	// Type 认证类型，目前支持 "static"
	Type string

	// Token 静态令牌
	Token string
}

// ClientOption 客户端配置选项
type ClientOption func(*ClientConfig)

// WithTimeout 设置请求超时时间
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithStaticToken 使用静态令牌认证
func WithStaticToken(token string) ClientOption {
	return func(c *ClientConfig) {
		c.Auth = &AuthConfig{Type: "static", Token: token}
	}
}
