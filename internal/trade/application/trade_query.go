package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wyfcoding/swaptrading/internal/trade/domain"
	userdomain "github.com/wyfcoding/swaptrading/internal/user/domain"
)

// TradeQueryService 交易查询：列表、详情与三种检索方式
type TradeQueryService struct {
	trades domain.TradeRepository
	infos  domain.AdditionalInfoRepository
	users  userdomain.UserRepository
	gate   *AuthorizationGate
	logger *slog.Logger
}

// NewTradeQueryService 创建交易查询服务
func NewTradeQueryService(deps Deps, gate *AuthorizationGate) *TradeQueryService {
	deps = deps.withDefaults()
	return &TradeQueryService{
		trades: deps.Trades,
		infos:  deps.Infos,
		users:  deps.Users,
		gate:   gate,
		logger: deps.Logger,
	}
}

// ListTrades 交易员/销售只看到自己的交易，其他用户看到全部活跃交易
func (q *TradeQueryService) ListTrades(ctx context.Context, userID string) ([]*TradeDTO, error) {
	if !q.gate.Authorize(ctx, userID, domain.OpGetAllTrades, nil) {
		return nil, &domain.UnauthorizedError{Operation: domain.OpGetAllTrades, UserID: userID}
	}
	user, err := q.users.FindByLoginID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, &domain.NotFoundError{Message: "User not found " + userID}
	}

	var trades []*domain.Trade
	if user.IsTraderSales() {
		trades, err = q.trades.FindByTraderUserID(ctx, user.ID)
	} else {
		trades, err = q.trades.FindActive(ctx)
	}
	if err != nil {
		return nil, err
	}
	q.logger.InfoContext(ctx, "listed trades", "user_id", userID, "count", len(trades))
	return toDTOs(ctx, q.infos, trades)
}

// GetTrade 活跃版本详情
func (q *TradeQueryService) GetTrade(ctx context.Context, tradeID int64) (*TradeDTO, error) {
	trade, err := q.trades.GetActive(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if trade == nil {
		return nil, domain.TradeNotFound(tradeID)
	}
	return withAdditionalInfo(ctx, q.infos, ToTradeDTO(trade))
}

// SearchTrades 多条件检索，日期范围非法时不访问存储
func (q *TradeQueryService) SearchTrades(ctx context.Context, criteria domain.SearchCriteria) ([]*TradeDTO, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	trades, err := q.trades.FindAll(ctx, criteria.Predicate())
	if err != nil {
		return nil, err
	}
	q.logger.InfoContext(ctx, "trade search completed", "count", len(trades))
	return toDTOs(ctx, q.infos, trades)
}

// FilterTrades 多条件分页检索
func (q *TradeQueryService) FilterTrades(ctx context.Context, criteria domain.SearchCriteria, page domain.PageRequest) (*domain.Page[*TradeDTO], error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	return q.page(ctx, criteria.Predicate(), page)
}

// SearchRSQL RSQL 表达式分页检索
func (q *TradeQueryService) SearchRSQL(ctx context.Context, query string, page domain.PageRequest) (*domain.Page[*TradeDTO], error) {
	pred, err := domain.ParseRSQL(query)
	if err != nil {
		q.logger.InfoContext(ctx, "rejected rsql query", "query", query, "error", err)
		return nil, err
	}
	return q.page(ctx, pred, page)
}

func (q *TradeQueryService) page(ctx context.Context, pred domain.Predicate, req domain.PageRequest) (*domain.Page[*TradeDTO], error) {
	req, _, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	result, err := q.trades.FindPage(ctx, pred, req)
	if err != nil {
		return nil, err
	}
	out := domain.MapPage(result, ToTradeDTO)
	if err := attachAll(ctx, q.infos, out.Content); err != nil {
		return nil, err
	}
	q.logger.InfoContext(ctx, "trade page loaded", "page", out.Number+1, "total_pages", out.TotalPages, "total", out.TotalElements)
	return out, nil
}

func toDTOs(ctx context.Context, infos domain.AdditionalInfoRepository, trades []*domain.Trade) ([]*TradeDTO, error) {
	dtos := make([]*TradeDTO, 0, len(trades))
	for _, t := range trades {
		dtos = append(dtos, ToTradeDTO(t))
	}
	if err := attachAll(ctx, infos, dtos); err != nil {
		return nil, err
	}
	return dtos, nil
}

// attachAll 批量附加扩展属性
func attachAll(ctx context.Context, infos domain.AdditionalInfoRepository, dtos []*TradeDTO) error {
	if len(dtos) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(dtos))
	for _, d := range dtos {
		ids = append(ids, d.TradeID)
	}

	all, err := infos.ListForEntities(ctx, domain.EntityTypeTrade, ids)
	if err != nil {
		return fmt.Errorf("failed to load additional info: %w", err)
	}
	byTrade := make(map[int64][]*domain.AdditionalInfo)
	for _, a := range all {
		byTrade[a.EntityID] = append(byTrade[a.EntityID], a)
	}
	for _, d := range dtos {
		attach(d, byTrade[d.TradeID])
	}
	return nil
}

// withAdditionalInfo 附加交易的扩展属性与结算指令
func withAdditionalInfo(ctx context.Context, infos domain.AdditionalInfoRepository, dto *TradeDTO) (*TradeDTO, error) {
	list, err := infos.ListFor(ctx, domain.EntityTypeTrade, dto.TradeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load additional info: %w", err)
	}
	attach(dto, list)
	return dto, nil
}

func attach(dto *TradeDTO, list []*domain.AdditionalInfo) {
	dto.AdditionalFields = dto.AdditionalFields[:0]
	dto.SettlementInstructions = ""
	for _, a := range list {
		dto.AdditionalFields = append(dto.AdditionalFields, ToAdditionalInfoDTO(a))
		if a.FieldName == domain.FieldNameSettlementInstructions {
			dto.SettlementInstructions = a.FieldValue
		}
	}
}
