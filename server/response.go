package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rushteam/newsrec/core"
)

// errorBody 是统一的错误响应体。
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Module  string `json:"module,omitempty"`
	Message string `json:"message"`
}

// writeError 把 DomainError 映射为 HTTP 状态码：
// 客户端错误（参数无效、无候选）给 400，资源不存在给 404，
// 依赖不可用给 503（可重试），其它一律 500 且不泄漏内部细节。
func writeError(c *gin.Context, err error) {
	de := core.GetDomainError(err)
	if de == nil {
		c.JSON(http.StatusInternalServerError, errorBody{Error: errorDetail{
			Code:    core.ErrorCodeInternal,
			Message: "internal error",
		}})
		return
	}

	status := http.StatusInternalServerError
	switch de.Code {
	case core.ErrorCodeInvalidInput, core.ErrorCodeNoCandidates:
		status = http.StatusBadRequest
	case core.ErrorCodeNotFound:
		status = http.StatusNotFound
	case core.ErrorCodeUnavailable:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, errorBody{Error: errorDetail{
		Code:    de.Code,
		Module:  de.Module,
		Message: de.Message,
	}})
}
