package core

// DomainError 是领域层的统一错误类型：错误码 + 模块名 + 消息。
// HTTP 层据此决定状态码与是否可重试，领域代码据此做类型判断。
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "NO_CANDIDATES"）
	Message string // 错误消息
	Module  string // 模块名称（如 "ledger", "recall"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError 创建新的领域错误。
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// GetDomainError 获取 DomainError，如果不是则返回 nil。
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	if domainErr, ok := err.(*DomainError); ok {
		return domainErr
	}
	return nil
}

// 错误代码常量
const (
	ErrorCodeNotFound     = "NOT_FOUND"     // 资源不存在
	ErrorCodeInvalidInput = "INVALID_INPUT" // 请求参数无效（客户端错误，不重试）
	ErrorCodeNoCandidates = "NO_CANDIDATES" // 冷热两条召回路径都拿不到候选
	ErrorCodeUnavailable  = "UNAVAILABLE"   // 依赖不可用（可由调用方重试）
	ErrorCodeNotSupported = "NOT_SUPPORTED" // 操作不支持
	ErrorCodeInternal     = "INTERNAL_ERROR"
)

// 模块名称常量
const (
	ModuleStore     = "store"
	ModuleLedger    = "ledger"
	ModuleEmbedding = "embedding"
	ModuleRecall    = "recall"
	ModuleModel     = "model"
	ModuleService   = "service"
)

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND。
func IsNotFound(err error) bool { return hasCode(err, ErrorCodeNotFound) }

// IsInvalidInput 检查错误是否为客户端参数错误。
func IsInvalidInput(err error) bool { return hasCode(err, ErrorCodeInvalidInput) }

// IsNoCandidates 检查错误是否为"无候选"：两条召回路径都为空时的请求级失败。
func IsNoCandidates(err error) bool { return hasCode(err, ErrorCodeNoCandidates) }

// IsUnavailable 检查错误是否为依赖不可用（可重试）。
func IsUnavailable(err error) bool { return hasCode(err, ErrorCodeUnavailable) }

// ErrNoCandidates 是召回引擎在冷热路径都取不到候选时返回的固定错误。
var ErrNoCandidates = NewDomainError(ModuleRecall, ErrorCodeNoCandidates,
	"recall: no candidate items found to recommend")
