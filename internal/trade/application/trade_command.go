package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	refdomain "github.com/wyfcoding/swaptrading/internal/referencedata/domain"
	"github.com/wyfcoding/swaptrading/internal/trade/domain"
)

// TradeCommandService 交易生命周期：创建、修改、终止、取消
type TradeCommandService struct {
	trades    domain.TradeRepository
	infos     domain.AdditionalInfoRepository
	refs      refdomain.Gateway
	seq       domain.IDSequence
	tx        domain.Transactor
	events    domain.EventPublisher
	gate      *AuthorizationGate
	validator *TradeValidator
	assembler *tradeAssembler
	metrics   Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewTradeCommandService 创建交易命令服务
func NewTradeCommandService(deps Deps, gate *AuthorizationGate) *TradeCommandService {
	deps = deps.withDefaults()
	return &TradeCommandService{
		trades:    deps.Trades,
		infos:     deps.Infos,
		refs:      deps.Refs,
		seq:       deps.Sequence,
		tx:        deps.Tx,
		events:    deps.Events,
		gate:      gate,
		validator: NewTradeValidator(deps.Refs, deps.Users, deps.Now),
		assembler: &tradeAssembler{refs: deps.Refs, users: deps.Users, logger: deps.Logger},
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       deps.Now,
	}
}

// CreateTrade 校验并创建交易第一个版本，腿、现金流、结算指令与事件在同一事务中写入
func (s *TradeCommandService) CreateTrade(ctx context.Context, dto *TradeDTO, userID string) (result *TradeDTO, err error) {
	defer func() { s.record("create", err) }()
	s.logger.InfoContext(ctx, "creating trade", "trade_id", dto.TradeID, "user_id", userID)

	if !s.gate.Authorize(ctx, userID, domain.OpCreateTrade, dto) {
		return nil, &domain.UnauthorizedError{Operation: domain.OpCreateTrade, UserID: userID}
	}
	if err := s.validate(ctx, dto); err != nil {
		return nil, err
	}

	tradeID, err := s.allocateTradeID(ctx, dto.TradeID)
	if err != nil {
		return nil, err
	}

	req := *dto
	if req.TradeStatus == "" && req.TradeStatusID == 0 {
		req.TradeStatus = domain.StatusNew
	}

	now := s.now()
	trade, legs, err := s.assemble(ctx, &req, now)
	if err != nil {
		return nil, err
	}
	trade.TradeID = tradeID
	trade.Version = 1
	if trade.TradeStatus == nil {
		return nil, &domain.NotFoundError{Message: "Trade status not found or not set"}
	}

	text, hasText := req.settlementText()
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.trades.Save(ctx, trade); err != nil {
			return err
		}
		if err := s.persistLegs(ctx, trade, legs, now); err != nil {
			return err
		}
		if hasText && strings.TrimSpace(text) != "" {
			if err := s.infos.Add(ctx, domain.NewSettlementInstructions(tradeID, text, now)); err != nil {
				return err
			}
		}
		return s.events.Publish(ctx, domain.NewTradeEvent(domain.EventTradeCreated, trade, userID, now))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create trade %d: %w", tradeID, err)
	}

	s.logger.InfoContext(ctx, "trade created", "trade_id", tradeID, "legs", len(trade.TradeLegs))
	return withAdditionalInfo(ctx, s.infos, ToTradeDTO(trade))
}

// AmendTrade 旧版本失效，新版本 version+1、状态 AMENDED，并重新生成腿与现金流
func (s *TradeCommandService) AmendTrade(ctx context.Context, tradeID int64, dto *TradeDTO, userID string) (result *TradeDTO, err error) {
	defer func() { s.record("amend", err) }()
	s.logger.InfoContext(ctx, "amending trade", "trade_id", tradeID, "user_id", userID)

	existing, err := s.trades.GetActive(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.TradeNotFound(tradeID)
	}
	if !s.gate.Authorize(ctx, userID, domain.OpAmendTrade, ToTradeDTO(existing)) {
		return nil, &domain.UnauthorizedError{Operation: domain.OpAmendTrade, UserID: userID}
	}
	if existing.IsClosed() {
		return nil, closedError(existing, "amended")
	}
	if err := s.validate(ctx, dto); err != nil {
		return nil, err
	}

	amended, err := s.status(ctx, domain.StatusAmended)
	if err != nil {
		return nil, err
	}

	now := s.now()
	trade, legs, err := s.assemble(ctx, dto, now)
	if err != nil {
		return nil, err
	}
	trade.TradeID = tradeID
	trade.Version = existing.Version + 1
	trade.TradeStatus, trade.TradeStatusID = amended, &amended.ID

	text, hasText := dto.settlementText()
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.trades.Deactivate(ctx, existing, now); err != nil {
			return err
		}
		if err := s.trades.Save(ctx, trade); err != nil {
			return err
		}
		if err := s.persistLegs(ctx, trade, legs, now); err != nil {
			return err
		}
		if hasText {
			if err := s.replaceSettlementInstructions(ctx, tradeID, text, now); err != nil {
				return err
			}
		}
		return s.events.Publish(ctx, domain.NewTradeEvent(domain.EventTradeAmended, trade, userID, now))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to amend trade %d: %w", tradeID, err)
	}

	s.logger.InfoContext(ctx, "trade amended", "trade_id", tradeID, "version", trade.Version)
	return withAdditionalInfo(ctx, s.infos, ToTradeDTO(trade))
}

// TerminateTrade 将活跃版本置为 TERMINATED，不生成新版本
func (s *TradeCommandService) TerminateTrade(ctx context.Context, tradeID int64, userID string) (result *TradeDTO, err error) {
	defer func() { s.record("terminate", err) }()
	return s.transition(ctx, tradeID, userID, domain.OpTerminateTrade, domain.StatusTerminated, "terminated", domain.EventTradeTerminated)
}

// CancelTrade 将活跃版本置为 CANCELLED，不生成新版本
func (s *TradeCommandService) CancelTrade(ctx context.Context, tradeID int64, userID string) (result *TradeDTO, err error) {
	defer func() { s.record("cancel", err) }()
	return s.transition(ctx, tradeID, userID, domain.OpCancelTrade, domain.StatusCancelled, "cancelled", domain.EventTradeCancelled)
}

// DeleteTrade 删除即取消
func (s *TradeCommandService) DeleteTrade(ctx context.Context, tradeID int64, userID string) error {
	s.logger.InfoContext(ctx, "deleting (cancelling) trade", "trade_id", tradeID)
	_, err := s.CancelTrade(ctx, tradeID, userID)
	return err
}

func (s *TradeCommandService) transition(ctx context.Context, tradeID int64, userID string, op domain.Operation, statusName, verb, eventType string) (*TradeDTO, error) {
	s.logger.InfoContext(ctx, "changing trade status", "trade_id", tradeID, "status", statusName, "user_id", userID)

	trade, err := s.trades.GetActive(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if trade == nil {
		return nil, domain.TradeNotFound(tradeID)
	}
	if !s.gate.Authorize(ctx, userID, op, ToTradeDTO(trade)) {
		return nil, &domain.UnauthorizedError{Operation: op, UserID: userID}
	}
	if trade.IsClosed() {
		return nil, closedError(trade, verb)
	}

	status, err := s.status(ctx, statusName)
	if err != nil {
		return nil, err
	}
	now := s.now()
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.trades.UpdateStatus(ctx, trade, status.ID, now); err != nil {
			return err
		}
		trade.TradeStatus = status
		return s.events.Publish(ctx, domain.NewTradeEvent(eventType, trade, userID, now))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update trade %d: %w", tradeID, err)
	}
	return withAdditionalInfo(ctx, s.infos, ToTradeDTO(trade))
}

// validate 为缺少现金流的腿预生成现金流后执行完整校验
func (s *TradeCommandService) validate(ctx context.Context, dto *TradeDTO) error {
	projected, err := projectCashflows(dto, s.now())
	if err != nil {
		return err
	}
	result, err := s.validator.ValidateTradeAndLegs(ctx, projected)
	if err != nil {
		return fmt.Errorf("failed to validate trade: %w", err)
	}
	if !result.Valid() {
		s.metrics.RecordValidationFailure()
		s.logger.InfoContext(ctx, "trade validation failed", "errors", result.Errors())
		return domain.TradeValidationFailed(result.Errors())
	}
	return nil
}

func (s *TradeCommandService) allocateTradeID(ctx context.Context, requested int64) (int64, error) {
	if requested == 0 {
		id, err := s.seq.Next(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to allocate trade id: %w", err)
		}
		s.logger.InfoContext(ctx, "generated trade id", "trade_id", id)
		return id, nil
	}
	existing, err := s.trades.GetActive(ctx, requested)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, domain.NewValidationError(fmt.Sprintf("Trade %d already exists", requested))
	}
	return requested, nil
}

// assemble 在事务外解析全部引用
func (s *TradeCommandService) assemble(ctx context.Context, dto *TradeDTO, now time.Time) (*domain.Trade, []*domain.TradeLeg, error) {
	trade, err := s.assembler.buildTrade(ctx, dto, now)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve trade references: %w", err)
	}
	if trade.Book == nil {
		return nil, nil, &domain.NotFoundError{Message: "Book not found or not set"}
	}
	if trade.Counterparty == nil {
		return nil, nil, &domain.NotFoundError{Message: "Counterparty not found or not set"}
	}

	legs := make([]*domain.TradeLeg, 0, len(dto.TradeLegs))
	for _, l := range dto.TradeLegs {
		leg, err := s.assembler.buildLeg(ctx, l, now)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve leg references: %w", err)
		}
		legs = append(legs, leg)
	}
	return trade, legs, nil
}

func (s *TradeCommandService) persistLegs(ctx context.Context, trade *domain.Trade, legs []*domain.TradeLeg, now time.Time) error {
	trade.TradeLegs = trade.TradeLegs[:0]
	for _, leg := range legs {
		leg.TradeVersionID = trade.ID
		if err := s.trades.SaveLeg(ctx, leg); err != nil {
			return err
		}
		if !trade.TradeStartDate.IsZero() && !trade.TradeMaturityDate.IsZero() {
			flows, err := domain.GenerateCashflows(leg, trade.TradeStartDate, trade.TradeMaturityDate, now)
			if err != nil {
				return err
			}
			if err := s.trades.SaveCashflows(ctx, flows); err != nil {
				return err
			}
			leg.Cashflows = flows
			s.metrics.RecordCashflows(len(flows))
		}
		trade.TradeLegs = append(trade.TradeLegs, *leg)
	}
	return nil
}

func (s *TradeCommandService) replaceSettlementInstructions(ctx context.Context, tradeID int64, text string, now time.Time) error {
	if strings.TrimSpace(text) == "" {
		return s.infos.Remove(ctx, domain.EntityTypeTrade, tradeID, domain.FieldNameSettlementInstructions)
	}
	return s.infos.Add(ctx, domain.NewSettlementInstructions(tradeID, text, now))
}

func (s *TradeCommandService) status(ctx context.Context, name string) (*refdomain.Code, error) {
	code, err := s.refs.FindCode(ctx, refdomain.KindTradeStatus, refdomain.ByName(name))
	if err != nil {
		return nil, fmt.Errorf("failed to load trade status %s: %w", name, err)
	}
	if code == nil {
		return nil, &domain.NotFoundError{Message: name + " status not found"}
	}
	return code, nil
}

func (s *TradeCommandService) record(op string, err error) {
	s.metrics.RecordOperation(op, outcome(err))
}

func closedError(t *domain.Trade, verb string) *domain.ValidationError {
	return domain.NewValidationError(fmt.Sprintf("Trade %d is %s and cannot be %s", t.TradeID, strings.ToUpper(t.StatusName()), verb))
}

func outcome(err error) string {
	var (
		unauthorized *domain.UnauthorizedError
		invalid      *domain.ValidationError
		notFound     *domain.NotFoundError
		schedule     *domain.ScheduleFormatError
		conflict     *domain.ConflictError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &unauthorized):
		return "unauthorized"
	case errors.As(err, &invalid), errors.As(err, &schedule):
		return "invalid"
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &conflict):
		return "conflict"
	default:
		return "error"
	}
}
