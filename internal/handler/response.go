package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/model"
	"github.com/gin-gonic/gin"
)

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// EngineErrorResponse 按错误分类返回对应的状态码
func EngineErrorResponse(c *gin.Context, err error) {
	ErrorResponse(c, statusCode(err), err.Error())
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrValidity), errors.Is(err, errs.ErrBadMath):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrInvalidState), errors.Is(err, errs.ErrFrozen), errors.Is(err, errs.ErrInsufficientFunds):
		return http.StatusConflict
	case errors.Is(err, errs.ErrCapacityExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, errs.ErrTransportFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// 调用方身份由网关写入请求头
const (
	HeaderAccount      = "X-Account"
	HeaderDid          = "X-Did"
	HeaderInvestorType = "X-Investor-Type"
)

// callerFrom 读取调用方身份，缺少账户时返回 false
func callerFrom(c *gin.Context) (model.Caller, bool) {
	caller := model.Caller{
		Account:      c.GetHeader(HeaderAccount),
		Did:          c.GetHeader(HeaderDid),
		InvestorType: model.InvestorType(c.GetHeader(HeaderInvestorType)),
	}
	if caller.Account == "" {
		ErrorResponse(c, http.StatusUnauthorized, "缺少调用方账户")
		return caller, false
	}
	return caller, true
}

func uint32Param(c *gin.Context, name string) (uint32, bool) {
	value, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的参数: "+name)
		return 0, false
	}
	return uint32(value), true
}
