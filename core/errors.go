package core

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX）
//
// 使用场景：
//   - Store 错误：NOT_FOUND, NOT_SUPPORTED
//   - Eval 错误：INVALID_INPUT（A/B 配置非法）, NOT_IMPLEMENTED（占位指标）
//   - Embedding 错误：UNAVAILABLE
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "NOT_IMPLEMENTED"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "eval"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// GetDomainError 获取 DomainError，如果不是则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	if domainErr, ok := err.(*DomainError); ok {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound       = "NOT_FOUND"       // 资源不存在
	ErrorCodeNotSupported   = "NOT_SUPPORTED"   // 操作不支持
	ErrorCodeUnavailable    = "UNAVAILABLE"     // 服务不可用
	ErrorCodeInvalidInput   = "INVALID_INPUT"   // 输入无效（调用方契约违反）
	ErrorCodeNotImplemented = "NOT_IMPLEMENTED" // 契约中明确未实现的占位能力
	ErrorCodeInternalError  = "INTERNAL_ERROR"  // 内部错误
)

// 模块名称常量
const (
	ModuleStore     = "store"     // 存储模块
	ModuleFeature   = "feature"   // 特征模块
	ModuleEmbedding = "embedding" // 向量化模块
	ModulePrefs     = "prefs"     // 偏好学习模块
	ModuleEval      = "eval"      // 评估模块
)

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeNotFound
	}
	return false
}

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeNotSupported
	}
	return false
}

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeInvalidInput
	}
	return false
}

// IsNotImplemented 检查错误是否为 NOT_IMPLEMENTED。
// 业务指标/系统指标在本代码库中是显式未实现的契约，调用方应以此区分
// "真实计算结果" 与 "占位"。
func IsNotImplemented(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeNotImplemented
	}
	return false
}
