package core

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX）
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "INVALID_WEIGHTS"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "fuse", "experiment"）
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
	ErrorCodeNotFound          = "NOT_FOUND"           // 资源不存在
	ErrorCodeNotSupported      = "NOT_SUPPORTED"       // 操作不支持
	ErrorCodeUnavailable       = "UNAVAILABLE"         // 服务不可用
	ErrorCodeInvalidInput      = "INVALID_INPUT"       // 输入无效
	ErrorCodeAlreadyExists     = "ALREADY_EXISTS"      // 资源已存在
	ErrorCodeInvalidWeights    = "INVALID_WEIGHTS"     // 权重集为空或总和为零
	ErrorCodeInvalidExperiment = "INVALID_EXPERIMENT"  // 实验配置非法
	ErrorCodeInsufficient      = "INSUFFICIENT_RESULT" // 含兜底在内仍不足最低条数
)

// 模块名称常量
const (
	ModuleStore      = "store"
	ModuleStrategy   = "strategy"
	ModuleFuse       = "fuse"
	ModuleFallback   = "fallback"
	ModuleExperiment = "experiment"
)

// 预定义领域错误
var (
	// ErrInvalidWeights 表示调用方提供的权重集为空、含负值或总和为零。
	// 这是调用方错误，直接返回，不做静默兜底。
	ErrInvalidWeights = NewDomainError(ModuleFuse, ErrorCodeInvalidWeights, "fuse: weight set is empty or sums to zero")

	// ErrInsufficientResults 表示所有融合层与兜底层（含合成占位）仍未达到最低条数。
	ErrInsufficientResults = NewDomainError(ModuleFallback, ErrorCodeInsufficient, "fallback: unable to reach minimum recommendation count")
)

// IsDomainError 检查错误是否为 DomainError 类型
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

func isCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool { return isCode(err, ErrorCodeNotFound) }

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool { return isCode(err, ErrorCodeNotSupported) }

// IsInvalidWeights 检查错误是否为权重集非法
func IsInvalidWeights(err error) bool { return isCode(err, ErrorCodeInvalidWeights) }

// IsInvalidExperiment 检查错误是否为实验配置非法
func IsInvalidExperiment(err error) bool { return isCode(err, ErrorCodeInvalidExperiment) }

// IsInsufficientResults 检查错误是否为推荐条数不足
func IsInsufficientResults(err error) bool { return isCode(err, ErrorCodeInsufficient) }

// IsAlreadyExists 检查错误是否为资源已存在
func IsAlreadyExists(err error) bool { return isCode(err, ErrorCodeAlreadyExists) }
