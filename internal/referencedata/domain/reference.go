// Package domain 参考数据领域模型：账簿、交易对手与各类代码表
package domain

import (
	"context"
	"strconv"
	"strings"
)

// Kind 代码表类型
type Kind string

const (
	KindTradeStatus           Kind = "TRADE_STATUS"
	KindTradeType             Kind = "TRADE_TYPE"
	KindTradeSubType          Kind = "TRADE_SUB_TYPE"
	KindCurrency              Kind = "CURRENCY"
	KindLegType               Kind = "LEG_TYPE"
	KindIndex                 Kind = "INDEX"
	KindHolidayCalendar       Kind = "HOLIDAY_CALENDAR"
	KindSchedule              Kind = "SCHEDULE"
	KindBusinessDayConvention Kind = "BUSINESS_DAY_CONVENTION"
	KindPayRec                Kind = "PAY_REC"
)

// Code 代码表条目，如交易状态 NEW、币种 USD、腿类型 Fixed
type Code struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Kind   Kind   `gorm:"column:kind;type:varchar(32);not null;uniqueIndex:idx_reference_codes_kind_name" json:"kind"`
	Name   string `gorm:"column:name;type:varchar(64);not null;uniqueIndex:idx_reference_codes_kind_name" json:"name"`
	Active bool   `gorm:"column:active;not null" json:"active"`
}

// TableName 表名
func (Code) TableName() string {
	return "reference_codes"
}

// Book 交易账簿
type Book struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	BookName   string `gorm:"column:book_name;type:varchar(64);uniqueIndex;not null" json:"bookName"`
	CostCenter string `gorm:"column:cost_center;type:varchar(64)" json:"costCenter"`
	Active     bool   `gorm:"column:active;not null" json:"active"`
}

// TableName 表名
func (Book) TableName() string {
	return "books"
}

// Counterparty 交易对手
type Counterparty struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Name   string `gorm:"column:name;type:varchar(128);uniqueIndex;not null" json:"name"`
	Active bool   `gorm:"column:active;not null" json:"active"`
}

// TableName 表名
func (Counterparty) TableName() string {
	return "counterparties"
}

// Ref 按名称或 ID 引用参考数据，名称优先
type Ref struct {
	ID   uint
	Name string
}

// ByName 构造名称引用
func ByName(name string) Ref { return Ref{Name: name} }

// ByID 构造 ID 引用
func ByID(id uint) Ref { return Ref{ID: id} }

// IsZero 名称与 ID 均未设置
func (r Ref) IsZero() bool {
	return r.Name == "" && r.ID == 0
}

// Key 缓存键片段
func (r Ref) Key() string {
	if r.Name != "" {
		return "name:" + r.Name
	}
	return "id:" + strconv.FormatUint(uint64(r.ID), 10)
}

// Gateway 参考数据查询，未找到时返回 nil, nil
type Gateway interface {
	FindBook(ctx context.Context, ref Ref) (*Book, error)
	FindCounterparty(ctx context.Context, ref Ref) (*Counterparty, error)
	FindCode(ctx context.Context, kind Kind, ref Ref) (*Code, error)
}

var kinds = map[Kind]bool{
	KindTradeStatus: true, KindTradeType: true, KindTradeSubType: true,
	KindCurrency: true, KindLegType: true, KindIndex: true,
	KindHolidayCalendar: true, KindSchedule: true,
	KindBusinessDayConvention: true, KindPayRec: true,
}

// ParseKind 解析代码表类型，大小写与连字符不敏感
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	return k, kinds[k]
}
