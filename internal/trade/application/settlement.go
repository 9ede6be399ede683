package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wyfcoding/swaptrading/internal/trade/domain"
)

// SettlementService 交易结算指令维护与检索
type SettlementService struct {
	trades domain.TradeRepository
	infos  domain.AdditionalInfoRepository
	tx     domain.Transactor
	events domain.EventPublisher
	gate   *AuthorizationGate
	logger *slog.Logger
	now    func() time.Time
}

// NewSettlementService 创建结算指令服务
func NewSettlementService(deps Deps, gate *AuthorizationGate) *SettlementService {
	deps = deps.withDefaults()
	return &SettlementService{
		trades: deps.Trades,
		infos:  deps.Infos,
		tx:     deps.Tx,
		events: deps.Events,
		gate:   gate,
		logger: deps.Logger,
		now:    deps.Now,
	}
}

// UpdateSettlementInstructions 空白文本删除结算指令，否则新增或替换
func (s *SettlementService) UpdateSettlementInstructions(ctx context.Context, tradeID int64, text, userID string) (*TradeDTO, error) {
	trade, err := s.trades.GetActive(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if trade == nil {
		return nil, domain.TradeNotFound(tradeID)
	}
	if !s.gate.Authorize(ctx, userID, domain.OpUpdateSettlementInstructions, ToTradeDTO(trade)) {
		return nil, &domain.UnauthorizedError{Operation: domain.OpUpdateSettlementInstructions, UserID: userID}
	}

	now := s.now()
	text = strings.TrimSpace(text)
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if text == "" {
			if err := s.infos.Remove(ctx, domain.EntityTypeTrade, tradeID, domain.FieldNameSettlementInstructions); err != nil {
				return err
			}
		} else if err := s.infos.Add(ctx, domain.NewSettlementInstructions(tradeID, text, now)); err != nil {
			return err
		}
		return s.events.Publish(ctx, domain.NewTradeEvent(domain.EventSettlementInstructionsUpdated, trade, userID, now))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update settlement instructions for trade %d: %w", tradeID, err)
	}

	s.logger.InfoContext(ctx, "settlement instructions saved", "trade_id", tradeID, "removed", text == "")
	return withAdditionalInfo(ctx, s.infos, ToTradeDTO(trade))
}

// SearchBySettlementInstructions 结算指令包含 text（大小写不敏感）的活跃交易
func (s *SettlementService) SearchBySettlementInstructions(ctx context.Context, text string) ([]*TradeDTO, error) {
	matches, err := s.infos.FindActiveByFieldValue(ctx, domain.EntityTypeTrade, domain.FieldNameSettlementInstructions, strings.TrimSpace(text))
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(matches))
	ids := make([]int64, 0, len(matches))
	for _, m := range matches {
		if !seen[m.EntityID] {
			seen[m.EntityID] = true
			ids = append(ids, m.EntityID)
		}
	}
	if len(ids) == 0 {
		return []*TradeDTO{}, nil
	}

	trades, err := s.trades.FindActiveByTradeIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return toDTOs(ctx, s.infos, trades)
}
