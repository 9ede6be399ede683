package domain

import "time"

// 事件类型
const (
	EventTradeCreated                  = "TradeCreated"
	EventTradeAmended                  = "TradeAmended"
	EventTradeTerminated               = "TradeTerminated"
	EventTradeCancelled                = "TradeCancelled"
	EventSettlementInstructionsUpdated = "SettlementInstructionsUpdated"
)

// TradeEvent 交易生命周期事件
type TradeEvent struct {
	EventID    string    `json:"eventId"`
	Type       string    `json:"type"`
	TradeID    int64     `json:"tradeId"`
	Version    int       `json:"version"`
	Status     string    `json:"status"`
	BookName   string    `json:"bookName,omitempty"`
	UserID     string    `json:"userId"`
	OccurredOn time.Time `json:"occurredOn"`
}

// NewTradeEvent 由交易版本构造事件
func NewTradeEvent(eventType string, t *Trade, userID string, now time.Time) TradeEvent {
	e := TradeEvent{
		Type:       eventType,
		TradeID:    t.TradeID,
		Version:    t.Version,
		Status:     t.StatusName(),
		UserID:     userID,
		OccurredOn: now,
	}
	if t.Book != nil {
		e.BookName = t.Book.BookName
	}
	return e
}
