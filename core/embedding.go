package core

import "context"

// EmbeddingService 是文本向量化服务的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由外部协作方实现（托管 API、本地模型等）
//   - 失败被调用方捕获并视为"该条目无向量"，不中断批处理
//
// 实现方约定：
//   - 返回的向量维度在同一服务实例内保持一致
//   - 空文本可返回 (nil, error)
type EmbeddingService interface {
	// Embed 生成文本向量；失败返回 error，调用方按缺数据处理。
	Embed(ctx context.Context, text string) ([]float64, error)

	// Close 关闭连接/释放资源
	Close() error
}

// ErrEmbeddingUnavailable 表示向量化服务不可用或对该文本无法产出向量。
var ErrEmbeddingUnavailable = NewDomainError(ModuleEmbedding, ErrorCodeUnavailable, "embedding: unavailable")
