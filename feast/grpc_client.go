package feast

import (
	"context"
	"fmt"
	"strconv"
	"time"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	"github.com/feast-dev/feast/sdk/go/protos/feast/types"
)

// GrpcClient 是基于官方 Feast Go SDK 的 gRPC 客户端实现。
//
// 领域层的 Client 接口（client.go）保持稳定，GrpcClient 作为
// 基础设施层实现，可以按需替换。
type GrpcClient struct {
	// client 官方 SDK 的 gRPC 客户端
	client *feastsdk.GrpcClient

	// Project 项目名称
	Project string

	// Endpoint 服务端点（用于信息展示）
	Endpoint string
}

// NewGrpcClient 创建一个基于官方 SDK 的 Feast gRPC 客户端。
//
// host 为 Feature Server 主机地址，port 为 0 时使用默认端口 6565。
func NewGrpcClient(host string, port int, project string, opts ...ClientOption) (*GrpcClient, error) {
	if port == 0 {
		port = 6565
	}

	config := &ClientConfig{
		Endpoint: fmt.Sprintf("%s:%d", host, port),
		Project:  project,
		Timeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(config)
	}

	var client *feastsdk.GrpcClient
	var err error

	if config.Auth != nil && config.Auth.Type == "static" && config.Auth.Token != "" {
		credential := feastsdk.NewStaticCredential(config.Auth.Token)
		security := feastsdk.SecurityConfig{
			EnableTLS:  false,
			Credential: credential,
		}
		client, err = feastsdk.NewSecureGrpcClient(host, port, security)
	} else {
		client, err = feastsdk.NewGrpcClient(host, port)
	}
	if err != nil {
		return nil, fmt.Errorf("create feast grpc client: %w", err)
	}

	return &GrpcClient{
		client:   client,
		Project:  project,
		Endpoint: config.Endpoint,
	}, nil
}

// GetOnlineFeatures 获取在线特征（实现 Client 接口）
func (c *GrpcClient) GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error) {
	if len(req.Features) == 0 {
		return nil, fmt.Errorf("features are required")
	}
	if len(req.EntityRows) == 0 {
		return nil, fmt.Errorf("entity rows are required")
	}

	project := req.Project
	if project == "" {
		project = c.Project
	}
	if project == "" {
		return nil, fmt.Errorf("project is required")
	}

	// SDK 的 Row 类型是 map[string]*types.Value
	entityRows := make([]feastsdk.Row, len(req.EntityRows))
	for i, row := range req.EntityRows {
		entityRow := make(feastsdk.Row)
		for k, v := range row {
			entityRow[k] = convertToSDKValue(v)
		}
		entityRows[i] = entityRow
	}

	sdkReq := &feastsdk.OnlineFeaturesRequest{
		Features: req.Features,
		Entities: entityRows,
		Project:  project,
	}

	sdkResp, err := c.client.GetOnlineFeatures(ctx, sdkReq)
	if err != nil {
		return nil, fmt.Errorf("feast get online features failed: %w", err)
	}

	rows := sdkResp.Rows()
	if len(rows) != len(req.EntityRows) {
		return nil, fmt.Errorf("response row count mismatch: expected %d, got %d", len(req.EntityRows), len(rows))
	}

	featureVectors := make([]FeatureVector, len(rows))
	for i := 0; i < len(rows); i++ {
		values := make(map[string]interface{})
		row := rows[i]
		for _, featureName := range req.Features {
			if val, exists := row[featureName]; exists {
				if converted := convertFromSDKValue(val); converted != nil {
					values[featureName] = converted
				}
			}
		}
		featureVectors[i] = FeatureVector{
			Values:    values,
			EntityRow: req.EntityRows[i],
		}
	}

	return &GetOnlineFeaturesResponse{
		FeatureVectors: featureVectors,
		Metadata:       make(map[string]interface{}),
	}, nil
}

// Close 关闭客户端连接（实现 Client 接口）
func (c *GrpcClient) Close() error {
	// 官方 SDK 没有显式的 Close 方法，gRPC 连接由库自行管理
	c.client = nil
	return nil
}

// convertToSDKValue 将 interface{} 转换为 SDK 支持的值类型（*types.Value）
func convertToSDKValue(v interface{}) *types.Value {
	switch val := v.(type) {
	case string:
		return feastsdk.StrVal(val)
	case int:
		return feastsdk.Int64Val(int64(val))
	case int64:
		return feastsdk.Int64Val(val)
	case int32:
		return feastsdk.Int64Val(int64(val))
	case float64:
		return feastsdk.DoubleVal(val)
	case float32:
		return feastsdk.FloatVal(val)
	case bool:
		return feastsdk.BoolVal(val)
	case []byte:
		return feastsdk.BytesVal(val)
	default:
		return feastsdk.StrVal(fmt.Sprintf("%v", val))
	}
}

// convertFromSDKValue 从 SDK 返回值提取 Go 原生值，数值统一为 float64
func convertFromSDKValue(val interface{}) interface{} {
	if val == nil {
		return nil
	}
	switch v := val.(type) {
	case string:
		return v
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case int:
		return float64(v)
	case float64:
		return v
	case float32:
		return float64(v)
	case bool:
		if v {
			return float64(1)
		}
		return float64(0)
	case []byte:
		return string(v)
	default:
		strVal := fmt.Sprintf("%v", val)
		if f, err := strconv.ParseFloat(strVal, 64); err == nil {
			return f
		}
		return strVal
	}
}

var _ Client = (*GrpcClient)(nil)
