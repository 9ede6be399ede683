package domain

// ValidationResult 校验结果，创建后不可修改
type ValidationResult struct {
	errors []string
}

// NewValidationResult 由错误列表构造结果，列表为空即通过
func NewValidationResult(errs []string) ValidationResult {
	if len(errs) == 0 {
		return ValidationResult{}
	}
	return ValidationResult{errors: append([]string(nil), errs...)}
}

// Valid 是否通过
func (r ValidationResult) Valid() bool { return len(r.errors) == 0 }

// Errors 按发现顺序返回错误副本
func (r ValidationResult) Errors() []string {
	return append([]string(nil), r.errors...)
}

// Merge 按顺序合并多个结果
func Merge(results ...ValidationResult) ValidationResult {
	var errs []string
	for _, r := range results {
		errs = append(errs, r.errors...)
	}
	return NewValidationResult(errs)
}
