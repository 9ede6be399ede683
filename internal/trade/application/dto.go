package application

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/swaptrading/internal/trade/domain"
)

// Date 以 yyyy-MM-dd 序列化的日期
type Date struct {
	time.Time
}

// NewDate 截断到日期
func NewDate(t time.Time) *Date {
	y, m, d := t.Date()
	return &Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(time.DateOnly) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("invalid date %s: %w", b, err)
	}
	t, err := ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// ParseDate 解析 yyyy-MM-dd 或 RFC3339，结果为 UTC 零点
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected yyyy-MM-dd", s)
	}
	return NewDate(t).Time, nil
}

func (d *Date) ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

func datePtr(t *time.Time) *Date {
	if t == nil {
		return nil
	}
	return NewDate(*t)
}

// TradeDTO 交易请求与响应。引用字段按名称或 ID 提供，名称优先
type TradeDTO struct {
	ID                 uint       `json:"id,omitempty"`
	TradeID            int64      `json:"tradeId,omitempty"`
	Version            int        `json:"version,omitempty"`
	TradeDate          *Date      `json:"tradeDate"`
	TradeStartDate     *Date      `json:"tradeStartDate"`
	TradeMaturityDate  *Date      `json:"tradeMaturityDate"`
	TradeExecutionDate *Date      `json:"tradeExecutionDate,omitempty"`
	ValidityStartDate  *Date      `json:"validityStartDate,omitempty"`
	UTICode            string     `json:"utiCode,omitempty"`
	Active             bool       `json:"active"`
	CreatedDate        *time.Time `json:"createdDate,omitempty"`
	DeactivatedDate    *time.Time `json:"deactivatedDate,omitempty"`
	LastTouchTimestamp *time.Time `json:"lastTouchTimestamp,omitempty"`

	TradeStatus         string `json:"tradeStatus,omitempty"`
	TradeStatusID       uint   `json:"tradeStatusId,omitempty"`
	BookName            string `json:"bookName,omitempty"`
	BookID              uint   `json:"bookId,omitempty"`
	CounterpartyName    string `json:"counterpartyName,omitempty"`
	CounterpartyID      uint   `json:"counterpartyId,omitempty"`
	TraderUserName      string `json:"traderUserName,omitempty"`
	TraderUserID        uint   `json:"traderUserId,omitempty"`
	InputterUserName    string `json:"inputterUserName,omitempty"`
	TradeInputterUserID uint   `json:"tradeInputterUserId,omitempty"`
	TradeType           string `json:"tradeType,omitempty"`
	TradeTypeID         uint   `json:"tradeTypeId,omitempty"`
	TradeSubType        string `json:"tradeSubType,omitempty"`
	TradeSubTypeID      uint   `json:"tradeSubTypeId,omitempty"`

	TradeLegs              []TradeLegDTO       `json:"tradeLegs"`
	AdditionalFields       []AdditionalInfoDTO `json:"additionalFields,omitempty"`
	SettlementInstructions string              `json:"settlementInstructions,omitempty"`
}

// TradeLegDTO 交易腿
type TradeLegDTO struct {
	LegID    uint            `json:"legId,omitempty"`
	Notional decimal.Decimal `json:"notional"`
	// 百分比利率，未提供时为 nil
	Rate *float64 `json:"rate,omitempty"`

	Currency                     string `json:"currency,omitempty"`
	CurrencyID                   uint   `json:"currencyId,omitempty"`
	LegType                      string `json:"legType,omitempty"`
	LegTypeID                    uint   `json:"legTypeId,omitempty"`
	IndexName                    string `json:"indexName,omitempty"`
	IndexID                      uint   `json:"indexId,omitempty"`
	HolidayCalendar              string `json:"holidayCalendar,omitempty"`
	HolidayCalendarID            uint   `json:"holidayCalendarId,omitempty"`
	CalculationPeriodSchedule    string `json:"calculationPeriodSchedule,omitempty"`
	ScheduleID                   uint   `json:"scheduleId,omitempty"`
	PaymentBusinessDayConvention string `json:"paymentBusinessDayConvention,omitempty"`
	PaymentBdcID                 uint   `json:"paymentBdcId,omitempty"`
	FixingBusinessDayConvention  string `json:"fixingBusinessDayConvention,omitempty"`
	FixingBdcID                  uint   `json:"fixingBdcId,omitempty"`
	PayReceiveFlag               string `json:"payReceiveFlag,omitempty"`
	PayRecID                     uint   `json:"payRecId,omitempty"`

	Cashflows []CashflowDTO `json:"cashflows,omitempty"`
}

// RateValue 未提供时为 0
func (l TradeLegDTO) RateValue() float64 {
	if l.Rate == nil {
		return 0
	}
	return *l.Rate
}

// CashflowDTO 现金流
type CashflowDTO struct {
	ID                           uint            `json:"id,omitempty"`
	ValueDate                    *Date           `json:"valueDate"`
	Rate                         float64         `json:"rate"`
	PaymentValue                 decimal.Decimal `json:"paymentValue"`
	PayRec                       string          `json:"payRec,omitempty"`
	PaymentBusinessDayConvention string          `json:"paymentBusinessDayConvention,omitempty"`
}

// AdditionalInfoDTO 扩展属性
type AdditionalInfoDTO struct {
	ID               uint       `json:"id,omitempty"`
	EntityType       string     `json:"entityType,omitempty"`
	EntityID         int64      `json:"entityId,omitempty"`
	FieldName        string     `json:"fieldName"`
	FieldValue       string     `json:"fieldValue"`
	FieldType        string     `json:"fieldType,omitempty"`
	Active           bool       `json:"active"`
	Version          int        `json:"version,omitempty"`
	CreatedDate      *time.Time `json:"createdDate,omitempty"`
	LastModifiedDate *time.Time `json:"lastModifiedDate,omitempty"`
}

// SettlementInstructionsRequest 结算指令更新请求，空文本表示删除
type SettlementInstructionsRequest struct {
	SettlementInstructions string `json:"instructions" binding:"omitempty,min=10,max=500,settlement_text"`
}

// settlementText 从 additionalFields 或 settlementInstructions 字段取结算指令
func (d *TradeDTO) settlementText() (string, bool) {
	for _, f := range d.AdditionalFields {
		if f.FieldName == domain.FieldNameSettlementInstructions {
			return f.FieldValue, true
		}
	}
	if d.SettlementInstructions != "" {
		return d.SettlementInstructions, true
	}
	return "", false
}

// ToTradeDTO 交易版本转换为响应
func ToTradeDTO(t *domain.Trade) *TradeDTO {
	if t == nil {
		return nil
	}
	dto := &TradeDTO{
		ID:                 t.ID,
		TradeID:            t.TradeID,
		Version:            t.Version,
		TradeDate:          NewDate(t.TradeDate),
		TradeStartDate:     NewDate(t.TradeStartDate),
		TradeMaturityDate:  NewDate(t.TradeMaturityDate),
		TradeExecutionDate: datePtr(t.TradeExecutionDate),
		ValidityStartDate:  datePtr(t.ValidityStartDate),
		UTICode:            t.UTICode,
		Active:             t.Active,
		DeactivatedDate:    t.DeactivatedDate,
		TradeLegs:          make([]TradeLegDTO, 0, len(t.TradeLegs)),
	}
	if !t.CreatedDate.IsZero() {
		created := t.CreatedDate
		dto.CreatedDate = &created
	}
	if !t.LastTouchTimestamp.IsZero() {
		touched := t.LastTouchTimestamp
		dto.LastTouchTimestamp = &touched
	}
	if t.TradeStatus != nil {
		dto.TradeStatus, dto.TradeStatusID = t.TradeStatus.Name, t.TradeStatus.ID
	}
	if t.Book != nil {
		dto.BookName, dto.BookID = t.Book.BookName, t.Book.ID
	}
	if t.Counterparty != nil {
		dto.CounterpartyName, dto.CounterpartyID = t.Counterparty.Name, t.Counterparty.ID
	}
	if t.TraderUser != nil {
		dto.TraderUserName, dto.TraderUserID = t.TraderUser.DisplayName(), t.TraderUser.ID
	}
	if t.TradeInputterUser != nil {
		dto.InputterUserName, dto.TradeInputterUserID = t.TradeInputterUser.DisplayName(), t.TradeInputterUser.ID
	}
	if t.TradeType != nil {
		dto.TradeType, dto.TradeTypeID = t.TradeType.Name, t.TradeType.ID
	}
	if t.TradeSubType != nil {
		dto.TradeSubType, dto.TradeSubTypeID = t.TradeSubType.Name, t.TradeSubType.ID
	}
	for i := range t.TradeLegs {
		dto.TradeLegs = append(dto.TradeLegs, toLegDTO(&t.TradeLegs[i]))
	}
	return dto
}

func toLegDTO(l *domain.TradeLeg) TradeLegDTO {
	rate := l.Rate
	dto := TradeLegDTO{
		LegID:    l.ID,
		Notional: l.Notional,
		Rate:     &rate,
	}
	dto.Currency, dto.CurrencyID = codeFields(l.Currency)
	dto.LegType, dto.LegTypeID = codeFields(l.LegRateType)
	dto.IndexName, dto.IndexID = codeFields(l.Index)
	dto.HolidayCalendar, dto.HolidayCalendarID = codeFields(l.HolidayCalendar)
	dto.CalculationPeriodSchedule, dto.ScheduleID = codeFields(l.CalculationPeriodSchedule)
	dto.PaymentBusinessDayConvention, dto.PaymentBdcID = codeFields(l.PaymentBusinessDayConvention)
	dto.FixingBusinessDayConvention, dto.FixingBdcID = codeFields(l.FixingBusinessDayConvention)
	dto.PayReceiveFlag, dto.PayRecID = codeFields(l.PayReceiveFlag)
	for i := range l.Cashflows {
		dto.Cashflows = append(dto.Cashflows, toCashflowDTO(&l.Cashflows[i]))
	}
	return dto
}

func toCashflowDTO(c *domain.Cashflow) CashflowDTO {
	dto := CashflowDTO{
		ID:           c.ID,
		ValueDate:    NewDate(c.ValueDate),
		Rate:         c.Rate,
		PaymentValue: c.PaymentValue,
	}
	dto.PayRec, _ = codeFields(c.PayRec)
	dto.PaymentBusinessDayConvention, _ = codeFields(c.PaymentBusinessDayConvention)
	return dto
}

// ToAdditionalInfoDTO 扩展属性转换为响应
func ToAdditionalInfoDTO(a *domain.AdditionalInfo) AdditionalInfoDTO {
	created, modified := a.CreatedDate, a.LastModifiedDate
	return AdditionalInfoDTO{
		ID:               a.ID,
		EntityType:       a.EntityType,
		EntityID:         a.EntityID,
		FieldName:        a.FieldName,
		FieldValue:       a.FieldValue,
		FieldType:        a.FieldType,
		Active:           a.Active,
		Version:          a.Version,
		CreatedDate:      &created,
		LastModifiedDate: &modified,
	}
}
