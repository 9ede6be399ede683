package mysql

import (
	"context"
	"errors"
	"time"

	"github.com/wyfcoding/swaptrading/internal/trade/domain"
	"github.com/wyfcoding/swaptrading/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type tradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository 创建交易仓储
func NewTradeRepository(gdb *gorm.DB) domain.TradeRepository {
	return &tradeRepository{db: gdb}
}

// AutoMigrate 建表，参考数据与用户表需先迁移
func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&domain.Trade{},
		&domain.TradeLeg{},
		&domain.Cashflow{},
		&domain.AdditionalInfo{},
		&sequenceRow{},
	)
}

func (r *tradeRepository) Save(ctx context.Context, trade *domain.Trade) error {
	err := db.Conn(ctx, r.db).Omit(clause.Associations).Save(trade).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.TradeConflict(trade.TradeID)
	}
	return err
}

func (r *tradeRepository) Deactivate(ctx context.Context, trade *domain.Trade, now time.Time) error {
	err := r.compareAndSet(ctx, trade, map[string]any{
		"active":               false,
		"deactivated_date":     now,
		"last_touch_timestamp": now,
	})
	if err != nil {
		return err
	}
	trade.Deactivate(now)
	return nil
}

func (r *tradeRepository) UpdateStatus(ctx context.Context, trade *domain.Trade, statusID uint, now time.Time) error {
	err := r.compareAndSet(ctx, trade, map[string]any{
		"trade_status_id":      statusID,
		"last_touch_timestamp": now,
	})
	if err != nil {
		return err
	}
	trade.TradeStatusID = &statusID
	trade.LastTouchTimestamp = now
	return nil
}

// compareAndSet 以读取时的活跃标记与状态为条件更新，未命中即视为并发冲突
func (r *tradeRepository) compareAndSet(ctx context.Context, trade *domain.Trade, updates map[string]any) error {
	q := db.Conn(ctx, r.db).Model(&domain.Trade{}).Where("id = ? AND active = ?", trade.ID, true)
	if trade.TradeStatusID == nil {
		q = q.Where("trade_status_id IS NULL")
	} else {
		q = q.Where("trade_status_id = ?", *trade.TradeStatusID)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return domain.TradeConflict(trade.TradeID)
	}
	return nil
}

func (r *tradeRepository) SaveLeg(ctx context.Context, leg *domain.TradeLeg) error {
	return db.Conn(ctx, r.db).Omit(clause.Associations).Save(leg).Error
}

func (r *tradeRepository) SaveCashflows(ctx context.Context, flows []domain.Cashflow) error {
	if len(flows) == 0 {
		return nil
	}
	return db.Conn(ctx, r.db).Omit(clause.Associations).Create(&flows).Error
}

func (r *tradeRepository) GetActive(ctx context.Context, tradeID int64) (*domain.Trade, error) {
	var trade domain.Trade
	err := preloaded(db.Conn(ctx, r.db)).
		Where("trades.trade_id = ? AND trades.active = ?", tradeID, true).
		First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

func (r *tradeRepository) FindActive(ctx context.Context) ([]*domain.Trade, error) {
	return r.find(ctx, "trades.active = ?", true)
}

func (r *tradeRepository) FindByTraderUserID(ctx context.Context, userID uint) ([]*domain.Trade, error) {
	return r.find(ctx, "trades.trader_user_id = ? AND trades.active = ?", userID, true)
}

func (r *tradeRepository) FindActiveByTradeIDs(ctx context.Context, tradeIDs []int64) ([]*domain.Trade, error) {
	if len(tradeIDs) == 0 {
		return []*domain.Trade{}, nil
	}
	return r.find(ctx, "trades.trade_id IN ? AND trades.active = ?", tradeIDs, true)
}

func (r *tradeRepository) find(ctx context.Context, query string, args ...any) ([]*domain.Trade, error) {
	var trades []*domain.Trade
	err := preloaded(db.Conn(ctx, r.db)).
		Where(query, args...).
		Order("trades.trade_id, trades.version").
		Find(&trades).Error
	return trades, err
}

// FindAll 返回满足条件的全部版本
func (r *tradeRepository) FindAll(ctx context.Context, pred domain.Predicate) ([]*domain.Trade, error) {
	q, err := r.filtered(ctx, pred)
	if err != nil {
		return nil, err
	}
	var trades []*domain.Trade
	err = preloaded(q.Select("trades.*")).
		Order("trades.trade_id, trades.version").
		Find(&trades).Error
	return trades, err
}

func (r *tradeRepository) FindPage(ctx context.Context, pred domain.Predicate, page domain.PageRequest) (*domain.Page[*domain.Trade], error) {
	page, sortField, err := page.Normalize()
	if err != nil {
		return nil, err
	}
	sortCol, err := column(sortField)
	if err != nil {
		return nil, err
	}

	countQuery, err := r.filtered(ctx, pred)
	if err != nil {
		return nil, err
	}
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, err
	}

	rowsQuery, err := r.filtered(ctx, pred)
	if err != nil {
		return nil, err
	}
	desc := page.SortDir == domain.SortDesc
	var trades []*domain.Trade
	err = preloaded(rowsQuery.Select("trades.*")).
		Order(clause.OrderByColumn{Column: clause.Column{Name: sortCol, Raw: true}, Desc: desc}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "trades.id", Raw: true}, Desc: desc}).
		Limit(page.Size).
		Offset(page.Offset()).
		Find(&trades).Error
	if err != nil {
		return nil, err
	}
	return domain.NewPage(trades, total, page), nil
}

// Count 活跃交易数
func (r *tradeRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := db.Conn(ctx, r.db).Model(&domain.Trade{}).Where("active = ?", true).Count(&n).Error
	return n, err
}

func (r *tradeRepository) filtered(ctx context.Context, pred domain.Predicate) (*gorm.DB, error) {
	where, err := translate(pred)
	if err != nil {
		return nil, err
	}
	q := db.Conn(ctx, r.db).Model(&domain.Trade{})
	for _, j := range searchJoins {
		q = q.Joins(j)
	}
	return q.Where(where.SQL, where.Vars...), nil
}

// preloaded 加载交易头引用、腿及其现金流
func preloaded(q *gorm.DB) *gorm.DB {
	q = q.Preload("TradeStatus").
		Preload("Book").
		Preload("Counterparty").
		Preload("TraderUser.UserProfile").
		Preload("TradeInputterUser").
		Preload("TradeType").
		Preload("TradeSubType").
		Preload("TradeLegs", func(db *gorm.DB) *gorm.DB { return db.Order("trade_legs.id") }).
		Preload("TradeLegs.Cashflows", func(db *gorm.DB) *gorm.DB { return db.Order("cashflows.value_date, cashflows.id") }).
		Preload("TradeLegs.Cashflows.PayRec").
		Preload("TradeLegs.Cashflows.PaymentBusinessDayConvention")
	for _, assoc := range []string{
		"Currency", "LegRateType", "Index", "HolidayCalendar", "CalculationPeriodSchedule",
		"PaymentBusinessDayConvention", "FixingBusinessDayConvention", "PayReceiveFlag",
	} {
		q = q.Preload("TradeLegs." + assoc)
	}
	return q
}
