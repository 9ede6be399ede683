package application

import (
	"context"
	"log/slog"
	"time"

	refdomain "github.com/wyfcoding/swaptrading/internal/referencedata/domain"
	"github.com/wyfcoding/swaptrading/internal/trade/domain"
	userdomain "github.com/wyfcoding/swaptrading/internal/user/domain"
)

// Metrics 交易业务指标
type Metrics interface {
	RecordOperation(operation, outcome string)
	RecordValidationFailure()
	RecordCashflows(n int)
}

type noopMetrics struct{}

func (noopMetrics) RecordOperation(string, string) {}
func (noopMetrics) RecordValidationFailure()       {}
func (noopMetrics) RecordCashflows(int)            {}

// Deps 交易应用服务依赖，Metrics 与 Now 可为空
type Deps struct {
	Trades   domain.TradeRepository
	Infos    domain.AdditionalInfoRepository
	Refs     refdomain.Gateway
	Users    userdomain.UserRepository
	Sequence domain.IDSequence
	Tx       domain.Transactor
	Events   domain.EventPublisher
	Metrics  Metrics
	Logger   *slog.Logger
	Now      func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Metrics == nil {
		d.Metrics = noopMetrics{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// TradeService 交易服务门面，整合命令、查询与结算指令
type TradeService struct {
	Command    *TradeCommandService
	Query      *TradeQueryService
	Settlement *SettlementService
}

// NewTradeService 构造交易服务
func NewTradeService(deps Deps) *TradeService {
	deps = deps.withDefaults()
	gate := NewAuthorizationGate(deps.Users, deps.Logger)
	return &TradeService{
		Command:    NewTradeCommandService(deps, gate),
		Query:      NewTradeQueryService(deps, gate),
		Settlement: NewSettlementService(deps, gate),
	}
}

// --- Command (Writes) ---

// CreateTrade 创建交易
func (s *TradeService) CreateTrade(ctx context.Context, dto *TradeDTO, userID string) (*TradeDTO, error) {
	return s.Command.CreateTrade(ctx, dto, userID)
}

// AmendTrade 修改交易，生成新版本
func (s *TradeService) AmendTrade(ctx context.Context, tradeID int64, dto *TradeDTO, userID string) (*TradeDTO, error) {
	return s.Command.AmendTrade(ctx, tradeID, dto, userID)
}

// TerminateTrade 终止交易
func (s *TradeService) TerminateTrade(ctx context.Context, tradeID int64, userID string) (*TradeDTO, error) {
	return s.Command.TerminateTrade(ctx, tradeID, userID)
}

// CancelTrade 取消交易
func (s *TradeService) CancelTrade(ctx context.Context, tradeID int64, userID string) (*TradeDTO, error) {
	return s.Command.CancelTrade(ctx, tradeID, userID)
}

// DeleteTrade 删除即取消
func (s *TradeService) DeleteTrade(ctx context.Context, tradeID int64, userID string) error {
	return s.Command.DeleteTrade(ctx, tradeID, userID)
}

// UpdateSettlementInstructions 更新或删除结算指令
func (s *TradeService) UpdateSettlementInstructions(ctx context.Context, tradeID int64, text, userID string) (*TradeDTO, error) {
	return s.Settlement.UpdateSettlementInstructions(ctx, tradeID, text, userID)
}

// --- Query (Reads) ---

// ListTrades 列出用户可见的活跃交易
func (s *TradeService) ListTrades(ctx context.Context, userID string) ([]*TradeDTO, error) {
	return s.Query.ListTrades(ctx, userID)
}

// GetTrade 获取活跃版本
func (s *TradeService) GetTrade(ctx context.Context, tradeID int64) (*TradeDTO, error) {
	return s.Query.GetTrade(ctx, tradeID)
}

// SearchTrades 多条件检索
func (s *TradeService) SearchTrades(ctx context.Context, criteria domain.SearchCriteria) ([]*TradeDTO, error) {
	return s.Query.SearchTrades(ctx, criteria)
}

// FilterTrades 多条件分页检索
func (s *TradeService) FilterTrades(ctx context.Context, criteria domain.SearchCriteria, page domain.PageRequest) (*domain.Page[*TradeDTO], error) {
	return s.Query.FilterTrades(ctx, criteria, page)
}

// SearchRSQL RSQL 表达式分页检索
func (s *TradeService) SearchRSQL(ctx context.Context, query string, page domain.PageRequest) (*domain.Page[*TradeDTO], error) {
	return s.Query.SearchRSQL(ctx, query, page)
}

// SearchBySettlementInstructions 按结算指令内容检索
func (s *TradeService) SearchBySettlementInstructions(ctx context.Context, text string) ([]*TradeDTO, error) {
	return s.Settlement.SearchBySettlementInstructions(ctx, text)
}
