// Package domain 利率互换交易领域模型：交易版本、交易腿、现金流及生命周期规则
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	refdomain "github.com/wyfcoding/swaptrading/internal/referencedata/domain"
	userdomain "github.com/wyfcoding/swaptrading/internal/user/domain"
)

// 交易状态代码
const (
	StatusNew        = "NEW"
	StatusAmended    = "AMENDED"
	StatusTerminated = "TERMINATED"
	StatusCancelled  = "CANCELLED"
)

// 腿利率类型
const (
	LegTypeFixed    = "Fixed"
	LegTypeFloating = "Floating"
)

// Trade 交易的一个版本。TradeID 跨版本不变，同一 TradeID 最多一个 Active 版本
type Trade struct {
	ID                 uint       `gorm:"primaryKey"`
	TradeID            int64      `gorm:"column:trade_id;not null;index:idx_trades_trade_id_active,priority:1;uniqueIndex:idx_trades_trade_id_version,priority:1"`
	Version            int        `gorm:"column:version;not null;uniqueIndex:idx_trades_trade_id_version,priority:2"`
	TradeDate          time.Time  `gorm:"column:trade_date;type:date;index"`
	TradeStartDate     time.Time  `gorm:"column:trade_start_date;type:date"`
	TradeMaturityDate  time.Time  `gorm:"column:trade_maturity_date;type:date"`
	TradeExecutionDate *time.Time `gorm:"column:trade_execution_date;type:date"`
	ValidityStartDate  *time.Time `gorm:"column:validity_start_date;type:date"`
	UTICode            string     `gorm:"column:uti_code;type:varchar(64)"`
	Active             bool       `gorm:"column:active;not null;index:idx_trades_trade_id_active,priority:2"`
	CreatedDate        time.Time  `gorm:"column:created_date"`
	DeactivatedDate    *time.Time `gorm:"column:deactivated_date"`
	LastTouchTimestamp time.Time  `gorm:"column:last_touch_timestamp"`

	TradeStatusID       *uint                       `gorm:"column:trade_status_id"`
	TradeStatus         *refdomain.Code             `gorm:"foreignKey:TradeStatusID"`
	BookID              *uint                       `gorm:"column:book_id;index"`
	Book                *refdomain.Book             `gorm:"foreignKey:BookID"`
	CounterpartyID      *uint                       `gorm:"column:counterparty_id;index"`
	Counterparty        *refdomain.Counterparty     `gorm:"foreignKey:CounterpartyID"`
	TraderUserID        *uint                       `gorm:"column:trader_user_id;index"`
	TraderUser          *userdomain.ApplicationUser `gorm:"foreignKey:TraderUserID"`
	TradeInputterUserID *uint                       `gorm:"column:trade_inputter_user_id"`
	TradeInputterUser   *userdomain.ApplicationUser `gorm:"foreignKey:TradeInputterUserID"`
	TradeTypeID         *uint                       `gorm:"column:trade_type_id"`
	TradeType           *refdomain.Code             `gorm:"foreignKey:TradeTypeID"`
	TradeSubTypeID      *uint                       `gorm:"column:trade_sub_type_id"`
	TradeSubType        *refdomain.Code             `gorm:"foreignKey:TradeSubTypeID"`

	TradeLegs []TradeLeg `gorm:"foreignKey:TradeVersionID"`
}

func (Trade) TableName() string { return "trades" }

// StatusName 当前状态代码，未设置时为空
func (t *Trade) StatusName() string {
	if t.TradeStatus == nil {
		return ""
	}
	return t.TradeStatus.Name
}

// IsClosed TERMINATED 与 CANCELLED 为终态
func (t *Trade) IsClosed() bool {
	s := strings.ToUpper(t.StatusName())
	return s == StatusTerminated || s == StatusCancelled
}

// Deactivate 使当前版本失效
func (t *Trade) Deactivate(now time.Time) {
	t.Active = false
	t.DeactivatedDate = &now
	t.LastTouchTimestamp = now
}

// TradeLeg 交易腿，隶属于某个交易版本
type TradeLeg struct {
	ID             uint            `gorm:"primaryKey"`
	TradeVersionID uint            `gorm:"column:trade_version_id;not null;index"`
	Notional       decimal.Decimal `gorm:"column:notional;type:decimal(20,2)"`
	// 百分比利率，如 3.5 表示 3.5%
	Rate        float64   `gorm:"column:rate"`
	Active      bool      `gorm:"column:active;not null"`
	CreatedDate time.Time `gorm:"column:created_date"`

	CurrencyID                     *uint           `gorm:"column:currency_id"`
	Currency                       *refdomain.Code `gorm:"foreignKey:CurrencyID"`
	LegRateTypeID                  *uint           `gorm:"column:leg_rate_type_id"`
	LegRateType                    *refdomain.Code `gorm:"foreignKey:LegRateTypeID"`
	IndexID                        *uint           `gorm:"column:index_id"`
	Index                          *refdomain.Code `gorm:"foreignKey:IndexID"`
	HolidayCalendarID              *uint           `gorm:"column:holiday_calendar_id"`
	HolidayCalendar                *refdomain.Code `gorm:"foreignKey:HolidayCalendarID"`
	CalculationPeriodScheduleID    *uint           `gorm:"column:calculation_period_schedule_id"`
	CalculationPeriodSchedule      *refdomain.Code `gorm:"foreignKey:CalculationPeriodScheduleID"`
	PaymentBusinessDayConventionID *uint           `gorm:"column:payment_bdc_id"`
	PaymentBusinessDayConvention   *refdomain.Code `gorm:"foreignKey:PaymentBusinessDayConventionID"`
	FixingBusinessDayConventionID  *uint           `gorm:"column:fixing_bdc_id"`
	FixingBusinessDayConvention    *refdomain.Code `gorm:"foreignKey:FixingBusinessDayConventionID"`
	PayReceiveFlagID               *uint           `gorm:"column:pay_rec_id"`
	PayReceiveFlag                 *refdomain.Code `gorm:"foreignKey:PayReceiveFlagID"`

	Cashflows []Cashflow `gorm:"foreignKey:LegID"`
}

func (TradeLeg) TableName() string { return "trade_legs" }

// RateType 腿类型名称
func (l *TradeLeg) RateType() string { return codeName(l.LegRateType) }

// ScheduleCode 计息周期代码
func (l *TradeLeg) ScheduleCode() string { return codeName(l.CalculationPeriodSchedule) }

// Cashflow 现金流，生成后不再修改
type Cashflow struct {
	ID           uint            `gorm:"primaryKey"`
	LegID        uint            `gorm:"column:leg_id;not null;index"`
	ValueDate    time.Time       `gorm:"column:value_date;type:date"`
	Rate         float64         `gorm:"column:rate"`
	PaymentValue decimal.Decimal `gorm:"column:payment_value;type:decimal(20,2)"`
	Active       bool            `gorm:"column:active;not null"`
	CreatedDate  time.Time       `gorm:"column:created_date"`

	PayRecID                       *uint           `gorm:"column:pay_rec_id"`
	PayRec                         *refdomain.Code `gorm:"foreignKey:PayRecID"`
	PaymentBusinessDayConventionID *uint           `gorm:"column:payment_bdc_id"`
	PaymentBusinessDayConvention   *refdomain.Code `gorm:"foreignKey:PaymentBusinessDayConventionID"`
}

func (Cashflow) TableName() string { return "cashflows" }

func codeName(c *refdomain.Code) string {
	if c == nil {
		return ""
	}
	return c.Name
}
