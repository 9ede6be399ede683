package domain

import (
	"fmt"
	"strings"
)

// NotFoundError 实体不存在
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// TradeNotFound 活跃交易不存在
func TradeNotFound(tradeID int64) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf("Trade not found: %d", tradeID)}
}

// ValidationError 业务校验失败，Errors 为逐条原因
type ValidationError struct {
	Message string
	Errors  []string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError 单条原因的校验错误
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg, Errors: []string{msg}}
}

// TradeValidationFailed 汇总校验失败
func TradeValidationFailed(errs []string) *ValidationError {
	return &ValidationError{
		Message: "Trade validation failed: " + strings.Join(errs, ", "),
		Errors:  append([]string(nil), errs...),
	}
}

// UnauthorizedError 用户无权执行操作，消息不暴露细节
type UnauthorizedError struct {
	Operation Operation
	UserID    string
}

func (e *UnauthorizedError) Error() string { return "Unauthorized operation" }

// ConflictError 活跃版本已被并发修改
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// TradeConflict 交易版本冲突
func TradeConflict(tradeID int64) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf("Trade %d was modified concurrently, reload and retry", tradeID)}
}

// MalformedQueryError 查询表达式无法解析
type MalformedQueryError struct {
	Query  string
	Reason string
}

func (e *MalformedQueryError) Error() string {
	return "Invalid RSQL query " + e.Query + " Error: " + e.Reason
}

// ScheduleFormatError 计息周期代码无法识别
type ScheduleFormatError struct {
	Code string
	Hint bool
}

func (e *ScheduleFormatError) Error() string {
	msg := "Invalid schedule format: " + e.Code
	if e.Hint {
		msg += ". Supported formats: Monthly, Quarterly, Semi-annually, Annually, or 1M, 3M, 6M, 12M"
	}
	return msg
}
