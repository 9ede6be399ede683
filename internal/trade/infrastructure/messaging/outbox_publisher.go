package messaging

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/wyfcoding/pkg/messagequeue/outbox"
	"github.com/wyfcoding/swaptrading/internal/trade/domain"
	"github.com/wyfcoding/swaptrading/pkg/db"
	"gorm.io/gorm"
)

// AutoMigrate 建 outbox 表
func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&outbox.OutboxMessage{})
}

// OutboxEventPublisher 实现 EventPublisher 接口，事件与业务数据写入同一事务，
// 消息键为交易编号，由 OutboxRelay 按键有序投递
type OutboxEventPublisher struct {
	db    *gorm.DB
	mgr   *outbox.Manager
	topic string
}

// NewOutboxEventPublisher 创建新的 OutboxEventPublisher 实例
func NewOutboxEventPublisher(gdb *gorm.DB, mgr *outbox.Manager, topic string) *OutboxEventPublisher {
	return &OutboxEventPublisher{db: gdb, mgr: mgr, topic: topic}
}

// Publish 在 context 携带的事务中登记事件
func (p *OutboxEventPublisher) Publish(ctx context.Context, event domain.TradeEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	key := strconv.FormatInt(event.TradeID, 10)
	if err := p.mgr.PublishInTx(db.Conn(ctx, p.db), p.topic, key, event); err != nil {
		return fmt.Errorf("failed to record %s event: %w", event.Type, err)
	}
	return nil
}
