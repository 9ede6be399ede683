package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/wyfcoding/pkg/messagequeue/outbox"
	"github.com/wyfcoding/swaptrading/internal/trade/domain"
	"gorm.io/gorm"
)

// Sender 消息发送，由 mq.KafkaProducer 实现
type Sender interface {
	SendRaw(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error
}

// EventMetrics 事件投递指标
type EventMetrics interface {
	RecordEventPublished(eventType string, ok bool)
}

// RelayConfig Outbox 投递配置
type RelayConfig struct {
	BatchSize int
	Interval  time.Duration
	// 单轮投递内的尝试次数与初始退避
	MaxRetries   int
	RetryBackoff time.Duration
	// 累计失败轮数达到该值后标记为失败；0 表示使用消息自带的 MaxRetries
	MaxAttempts int
	// 已投递消息的保留时长与清理周期
	Retention       time.Duration
	CleanupInterval time.Duration
}

// OutboxRelay 轮询待投递消息并发送到 Kafka。
// 消息按 id 顺序处理，同一交易（消息键）存在未到重试时间或已失败的消息时，其后续消息不会越过它发送。
type OutboxRelay struct {
	db      *gorm.DB
	sender  Sender
	cfg     RelayConfig
	metrics EventMetrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewOutboxRelay 创建投递器
func NewOutboxRelay(gdb *gorm.DB, sender Sender, cfg RelayConfig, metrics EventMetrics, logger *slog.Logger) *OutboxRelay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	return &OutboxRelay{db: gdb, sender: sender, cfg: cfg, metrics: metrics, logger: logger, now: time.Now}
}

// Run 周期性投递并清理已投递消息，直到 ctx 取消
func (r *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	cleanup := time.NewTicker(r.cfg.CleanupInterval)
	defer cleanup.Stop()

	r.logger.InfoContext(ctx, "outbox relay started", "interval", r.cfg.Interval, "retention", r.cfg.Retention)
	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "outbox relay stopped")
			return
		case <-ticker.C:
			if _, err := r.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "outbox relay batch failed", "error", err)
			}
		case <-cleanup.C:
			removed, err := r.CleanupProcessedMessages(ctx, r.now().Add(-r.cfg.Retention))
			if err != nil {
				if ctx.Err() == nil {
					r.logger.ErrorContext(ctx, "outbox cleanup failed", "error", err)
				}
				continue
			}
			if removed > 0 {
				r.logger.InfoContext(ctx, "outbox messages cleaned up", "removed", removed)
			}
		}
	}
}

// ProcessBatch 按写入顺序投递一批待发送消息，返回成功条数。
// 已有失败消息的交易整体跳过，直到该消息被人工处理。
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	failedKeys := r.db.WithContext(ctx).Model(&outbox.OutboxMessage{}).
		Select("`key`").
		Where("status = ? AND `key` IS NOT NULL", outbox.StatusFailed)

	var messages []outbox.OutboxMessage
	if err := r.db.WithContext(ctx).
		Where("status = ?", outbox.StatusPending).
		Where("`key` NOT IN (?)", failedKeys).
		Order("id").
		Limit(r.cfg.BatchSize).
		Find(&messages).Error; err != nil {
		return 0, err
	}

	now := r.now()
	sent := 0
	blocked := make(map[string]bool)
	for _, m := range messages {
		if blocked[m.Key] {
			continue
		}
		if m.NextRetry.After(now) {
			blocked[m.Key] = true
			continue
		}

		headers := eventHeaders(m.Payload)
		_, err := backoff.Retry(ctx, func() (struct{}, error) {
			return struct{}{}, r.sender.SendRaw(ctx, m.Topic, m.Key, m.Payload, headers)
		}, backoff.WithBackOff(r.backOff()), backoff.WithMaxTries(uint(r.cfg.MaxRetries)))
		r.record(headers["event-type"], err == nil)
		if err != nil {
			if ctx.Err() != nil {
				return sent, ctx.Err()
			}
			blocked[m.Key] = true
			if uerr := r.markFailed(ctx, m, err, now); uerr != nil {
				return sent, uerr
			}
			continue
		}
		if err := r.db.WithContext(ctx).Model(&m).Update("status", outbox.StatusSent).Error; err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func (r *OutboxRelay) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.RetryBackoff
	b.MaxInterval = 10 * r.cfg.RetryBackoff
	return b
}

// markFailed 记录失败并按失败轮数指数推迟下次投递，达到上限后标记为失败
func (r *OutboxRelay) markFailed(ctx context.Context, m outbox.OutboxMessage, cause error, now time.Time) error {
	attempts := m.RetryCount + 1
	limit := m.MaxRetries
	if r.cfg.MaxAttempts > 0 {
		limit = r.cfg.MaxAttempts
	}
	msg := cause.Error()
	if len(msg) > 500 {
		msg = msg[:500]
	}
	updates := map[string]any{
		"retry_count": attempts,
		"next_retry":  now.Add(r.cfg.Interval << min(attempts-1, 10)),
		"last_error":  msg,
	}
	if attempts >= limit {
		updates["status"] = outbox.StatusFailed
		r.logger.ErrorContext(ctx, "outbox message failed permanently, later events of the trade are held",
			"id", m.ID, "trade_id", m.Key, "attempts", attempts, "error", cause)
	} else {
		r.logger.WarnContext(ctx, "failed to relay outbox message",
			"id", m.ID, "trade_id", m.Key, "attempts", attempts, "next_retry", updates["next_retry"], "error", cause)
	}
	return r.db.WithContext(ctx).Model(&m).Updates(updates).Error
}

func (r *OutboxRelay) record(eventType string, ok bool) {
	if r.metrics != nil {
		r.metrics.RecordEventPublished(eventType, ok)
	}
}

// CleanupProcessedMessages 物理删除 before 之前已投递的消息
func (r *OutboxRelay) CleanupProcessedMessages(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Unscoped().
		Where("status = ? AND updated_at < ?", outbox.StatusSent, before).
		Delete(&outbox.OutboxMessage{})
	return res.RowsAffected, res.Error
}

// eventHeaders 从事件载荷中提取 Kafka 头
func eventHeaders(payload []byte) map[string]string {
	var event domain.TradeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return map[string]string{}
	}
	return map[string]string{
		"event-id":   event.EventID,
		"event-type": event.Type,
	}
}
