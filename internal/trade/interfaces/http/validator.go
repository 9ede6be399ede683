package http

import (
	"errors"
	"regexp"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	settlementTextPattern = regexp.MustCompile(`^[\p{L}\p{N}\s.,:'\-]+$`)
	registerOnce          sync.Once
)

// registerValidators 向 gin 的校验引擎注册自定义规则
func registerValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("settlement_text", func(fl validator.FieldLevel) bool {
				return settlementTextPattern.MatchString(fl.Field().String())
			})
		}
	})
}

// bindingMessage 将请求体校验错误转换为可读消息
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Malformed request body"
	}
	fe := verrs[0]
	if fe.Field() == "SettlementInstructions" {
		switch fe.Tag() {
		case "min", "max":
			return "Settlement instructions must be between 10 and 500 characters"
		case "settlement_text":
			return "Settlement instructions cannot contain invalid characters"
		}
	}
	return fe.Field() + " failed on the '" + fe.Tag() + "' rule"
}
