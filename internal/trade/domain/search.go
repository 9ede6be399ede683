package domain

import (
	"strings"
	"time"

	"github.com/wyfcoding/pkg/pagination"
	"github.com/wyfcoding/swaptrading/pkg/utils"
)

// FieldKind 字段值类型，决定查询值如何转换
type FieldKind int

const (
	FieldString FieldKind = iota
	FieldInt
	FieldDate
	FieldBool
)

// Field 可检索、可排序的交易字段，Path 为实体属性路径
type Field struct {
	Path string
	Kind FieldKind
}

var (
	FieldTradeID            = Field{"tradeId", FieldInt}
	FieldVersion            = Field{"version", FieldInt}
	FieldActive             = Field{"active", FieldBool}
	FieldUTICode            = Field{"utiCode", FieldString}
	FieldTradeDate          = Field{"tradeDate", FieldDate}
	FieldTradeStartDate     = Field{"tradeStartDate", FieldDate}
	FieldTradeMaturityDate  = Field{"tradeMaturityDate", FieldDate}
	FieldTradeExecutionDate = Field{"tradeExecutionDate", FieldDate}
	FieldBookName           = Field{"book.bookName", FieldString}
	FieldCounterpartyName   = Field{"counterparty.name", FieldString}
	FieldTraderFirstName    = Field{"traderUser.firstName", FieldString}
	FieldTraderLastName     = Field{"traderUser.lastName", FieldString}
	FieldTraderLoginID      = Field{"traderUser.loginId", FieldString}
	FieldTradeStatus        = Field{"tradeStatus.tradeStatus", FieldString}
	FieldTradeType          = Field{"tradeType.tradeType", FieldString}
	FieldTradeSubType       = Field{"tradeSubType.tradeSubType", FieldString}
)

var fields = map[string]Field{}

func init() {
	for _, f := range []Field{
		FieldTradeID, FieldVersion, FieldActive, FieldUTICode,
		FieldTradeDate, FieldTradeStartDate, FieldTradeMaturityDate, FieldTradeExecutionDate,
		FieldBookName, FieldCounterpartyName,
		FieldTraderFirstName, FieldTraderLastName, FieldTraderLoginID,
		FieldTradeStatus, FieldTradeType, FieldTradeSubType,
	} {
		fields[strings.ToLower(f.Path)] = f
	}
	aliases := map[string]Field{
		"book":         FieldBookName,
		"book.name":    FieldBookName,
		"counterparty": FieldCounterpartyName,
		"status":       FieldTradeStatus,
		"tradestatus":  FieldTradeStatus,
		"tradetype":    FieldTradeType,
		"tradesubtype": FieldTradeSubType,
		"trader":       FieldTraderFirstName,
	}
	for k, f := range aliases {
		fields[k] = f
	}
}

// LookupField 按属性路径或别名查找字段（大小写不敏感）
func LookupField(path string) (Field, bool) {
	f, ok := fields[strings.ToLower(strings.TrimSpace(path))]
	return f, ok
}

// Operator 比较运算符
type Operator string

const (
	CmpEq      Operator = "eq"
	CmpNe      Operator = "ne"
	CmpGt      Operator = "gt"
	CmpGe      Operator = "ge"
	CmpLt      Operator = "lt"
	CmpLe      Operator = "le"
	CmpIn      Operator = "in"
	CmpOut     Operator = "out"
	CmpLike    Operator = "like"
	CmpNotLike Operator = "notlike"
)

// Predicate 可组合的查询条件，由存储层翻译为 SQL
type Predicate interface {
	predicate()
}

// Comparison 单字段比较。Like 类运算的值使用 % 作为通配符
type Comparison struct {
	Field      Field
	Operator   Operator
	Values     []any
	IgnoreCase bool
}

// Conjunction 全部满足；空集合匹配所有记录
type Conjunction struct {
	Clauses []Predicate
}

// Disjunction 任一满足；空集合不匹配任何记录
type Disjunction struct {
	Clauses []Predicate
}

func (Comparison) predicate()  {}
func (Conjunction) predicate() {}
func (Disjunction) predicate() {}

// MatchAll 匹配全部
func MatchAll() Predicate { return Conjunction{} }

// And 忽略 nil，并展开嵌套的 Conjunction
func And(clauses ...Predicate) Predicate {
	out := make([]Predicate, 0, len(clauses))
	for _, c := range clauses {
		switch v := c.(type) {
		case nil:
		case Conjunction:
			out = append(out, v.Clauses...)
		default:
			out = append(out, v)
		}
	}
	switch len(out) {
	case 0:
		return MatchAll()
	case 1:
		return out[0]
	}
	return Conjunction{Clauses: out}
}

// Or 忽略 nil，并展开嵌套的 Disjunction
func Or(clauses ...Predicate) Predicate {
	out := make([]Predicate, 0, len(clauses))
	for _, c := range clauses {
		switch v := c.(type) {
		case nil:
		case Disjunction:
			out = append(out, v.Clauses...)
		default:
			out = append(out, v)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return Disjunction{Clauses: out}
}

// Eq 等值比较
func Eq(f Field, v any) Comparison {
	return Comparison{Field: f, Operator: CmpEq, Values: []any{v}}
}

// EqFold 大小写不敏感等值比较
func EqFold(f Field, v string) Comparison {
	return Comparison{Field: f, Operator: CmpEq, Values: []any{v}, IgnoreCase: true}
}

// SearchCriteria 多条件检索，空字段不参与过滤
type SearchCriteria struct {
	Counterparty string
	Book         string
	Trader       string
	TradeStatus  string
	StartDate    *time.Time
	EndDate      *time.Time
}

// Validate 起始日期不能晚于结束日期
func (c SearchCriteria) Validate() error {
	if c.StartDate != nil && c.EndDate != nil && c.StartDate.After(*c.EndDate) {
		return NewValidationError("Start date cannot be after end date")
	}
	return nil
}

// Predicate 转换为查询条件
func (c SearchCriteria) Predicate() Predicate {
	var clauses []Predicate
	if c.Counterparty != "" {
		clauses = append(clauses, EqFold(FieldCounterpartyName, c.Counterparty))
	}
	if c.Book != "" {
		clauses = append(clauses, EqFold(FieldBookName, c.Book))
	}
	if c.Trader != "" {
		clauses = append(clauses, Or(
			EqFold(FieldTraderFirstName, c.Trader),
			EqFold(FieldTraderLastName, c.Trader),
		))
	}
	if c.TradeStatus != "" {
		clauses = append(clauses, EqFold(FieldTradeStatus, c.TradeStatus))
	}
	if c.StartDate != nil {
		clauses = append(clauses, Comparison{Field: FieldTradeDate, Operator: CmpGe, Values: []any{utils.TruncateToDate(*c.StartDate)}})
	}
	if c.EndDate != nil {
		clauses = append(clauses, Comparison{Field: FieldTradeDate, Operator: CmpLe, Values: []any{utils.TruncateToDate(*c.EndDate)}})
	}
	return And(clauses...)
}

const (
	DefaultPageSize = 20
	MaxPageSize     = pagination.MaxPageSize
	SortAsc         = "asc"
	SortDesc        = "desc"
)

// PageRequest 分页与排序，Page 从 0 开始
type PageRequest struct {
	Page    int
	Size    int
	SortBy  string
	SortDir string
}

// Normalize 填充默认值并校验排序字段
func (p PageRequest) Normalize() (PageRequest, Field, error) {
	req := p.request()
	p.Page, p.Size = req.Page-1, req.PageSize

	if strings.TrimSpace(p.SortBy) == "" {
		p.SortBy = FieldTradeDate.Path
	}
	field, ok := LookupField(p.SortBy)
	if !ok {
		return p, Field{}, NewValidationError("Unknown sort field: " + p.SortBy)
	}
	p.SortBy = field.Path

	if strings.EqualFold(p.SortDir, SortAsc) {
		p.SortDir = SortAsc
	} else {
		p.SortDir = SortDesc
	}
	return p, field, nil
}

// Offset 查询偏移量
func (p PageRequest) Offset() int {
	return p.request().Offset()
}

// request 转换为从 1 开始计页的 pagination.Request，未指定大小时取 DefaultPageSize
func (p PageRequest) request() *pagination.Request {
	size := p.Size
	if size < 1 {
		size = DefaultPageSize
	}
	return pagination.NewRequest(p.Page+1, size)
}

// Page 分页结果
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
}

// NewPage 组装分页结果
func NewPage[T any](content []T, total int64, req PageRequest) *Page[T] {
	res := pagination.NewResult(total, req.request(), content)
	return &Page[T]{
		Content:       res.Data,
		TotalElements: res.Total,
		TotalPages:    res.TotalPages,
		Number:        res.Page - 1,
		Size:          res.PageSize,
	}
}

// MapPage 转换分页内容
func MapPage[T, R any](p *Page[T], fn func(T) R) *Page[R] {
	out := make([]R, 0, len(p.Content))
	for _, v := range p.Content {
		out = append(out, fn(v))
	}
	return &Page[R]{
		Content:       out,
		TotalElements: p.TotalElements,
		TotalPages:    p.TotalPages,
		Number:        p.Number,
		Size:          p.Size,
	}
}
