package domain

import (
	"context"
	"time"
)

// TradeRepository 交易存储，查询未命中时返回 nil, nil。
// 写方法从 context 中获取事务。
type TradeRepository interface {
	// Save 新增或更新交易行，不级联保存关联；(TradeID, Version) 重复时返回 ConflictError
	Save(ctx context.Context, trade *Trade) error
	// Deactivate 仅当该版本仍活跃且状态未变时使其失效，否则返回 ConflictError
	Deactivate(ctx context.Context, trade *Trade, now time.Time) error
	// UpdateStatus 仅更新状态列，条件同 Deactivate
	UpdateStatus(ctx context.Context, trade *Trade, statusID uint, now time.Time) error
	SaveLeg(ctx context.Context, leg *TradeLeg) error
	SaveCashflows(ctx context.Context, flows []Cashflow) error
	// GetActive 返回 TradeID 的活跃版本，含腿与现金流
	GetActive(ctx context.Context, tradeID int64) (*Trade, error)
	FindActive(ctx context.Context) ([]*Trade, error)
	FindByTraderUserID(ctx context.Context, userID uint) ([]*Trade, error)
	FindActiveByTradeIDs(ctx context.Context, tradeIDs []int64) ([]*Trade, error)
	FindAll(ctx context.Context, pred Predicate) ([]*Trade, error)
	FindPage(ctx context.Context, pred Predicate, page PageRequest) (*Page[*Trade], error)
	Count(ctx context.Context) (int64, error)
}

// AdditionalInfoRepository 扩展属性存储
type AdditionalInfoRepository interface {
	// Add 写入新值，同键的旧活跃记录失效，版本号递增
	Add(ctx context.Context, info *AdditionalInfo) error
	// Remove 软删除同键的活跃记录
	Remove(ctx context.Context, entityType string, entityID int64, fieldName string) error
	ListFor(ctx context.Context, entityType string, entityID int64) ([]*AdditionalInfo, error)
	ListForEntities(ctx context.Context, entityType string, entityIDs []int64) ([]*AdditionalInfo, error)
	// FindActiveByFieldValue 值包含 text（大小写不敏感）的活跃记录
	FindActiveByFieldValue(ctx context.Context, entityType, fieldName, text string) ([]*AdditionalInfo, error)
}

// IDSequence 原子递增的交易编号
type IDSequence interface {
	Next(ctx context.Context) (int64, error)
}

// Transactor 事务边界
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher 在当前事务中登记事件
type EventPublisher interface {
	Publish(ctx context.Context, event TradeEvent) error
}
