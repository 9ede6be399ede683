package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	refdomain "github.com/wyfcoding/swaptrading/internal/referencedata/domain"
	"github.com/wyfcoding/swaptrading/internal/trade/domain"
	userdomain "github.com/wyfcoding/swaptrading/internal/user/domain"
)

// tradeAssembler 将请求中的名称或 ID 解析为参考数据，构造交易实体
type tradeAssembler struct {
	refs   refdomain.Gateway
	users  userdomain.UserRepository
	logger *slog.Logger
}

func ref(name string, id uint) refdomain.Ref {
	return refdomain.Ref{Name: strings.TrimSpace(name), ID: id}
}

func codeFields(c *refdomain.Code) (string, uint) {
	if c == nil {
		return "", 0
	}
	return c.Name, c.ID
}

func (a *tradeAssembler) code(ctx context.Context, kind refdomain.Kind, name string, id uint) (*refdomain.Code, *uint, error) {
	c, err := a.refs.FindCode(ctx, kind, ref(name, id))
	if err != nil || c == nil {
		return nil, nil, err
	}
	return c, &c.ID, nil
}

// user 按名解析用户（取第一个空白分隔的词），未命中时按登录名回退；未给名称时按 ID
func (a *tradeAssembler) user(ctx context.Context, name string, id uint) (*userdomain.ApplicationUser, *uint, error) {
	name = strings.TrimSpace(name)
	var (
		u   *userdomain.ApplicationUser
		err error
	)
	switch {
	case name != "":
		u, err = a.users.FindByFirstName(ctx, strings.Fields(name)[0])
		if err == nil && u == nil {
			a.logger.WarnContext(ctx, "user not found by first name, trying login id", "name", name)
			u, err = a.users.FindByLoginID(ctx, strings.ToLower(name))
		}
	case id != 0:
		u, err = a.users.FindByID(ctx, id)
	}
	if err != nil || u == nil {
		return nil, nil, err
	}
	return u, &u.ID, nil
}

// buildTrade 构造交易头，不含腿
func (a *tradeAssembler) buildTrade(ctx context.Context, dto *TradeDTO, now time.Time) (*domain.Trade, error) {
	t := &domain.Trade{
		TradeID:            dto.TradeID,
		TradeExecutionDate: dto.TradeExecutionDate.ptr(),
		ValidityStartDate:  dto.ValidityStartDate.ptr(),
		UTICode:            dto.UTICode,
		Active:             true,
		CreatedDate:        now,
		LastTouchTimestamp: now,
	}
	if dto.TradeDate != nil {
		t.TradeDate = dto.TradeDate.Time
	}
	if dto.TradeStartDate != nil {
		t.TradeStartDate = dto.TradeStartDate.Time
	}
	if dto.TradeMaturityDate != nil {
		t.TradeMaturityDate = dto.TradeMaturityDate.Time
	}

	var err error
	if t.Book, err = a.refs.FindBook(ctx, ref(dto.BookName, dto.BookID)); err != nil {
		return nil, err
	}
	if t.Book != nil {
		t.BookID = &t.Book.ID
	}
	if t.Counterparty, err = a.refs.FindCounterparty(ctx, ref(dto.CounterpartyName, dto.CounterpartyID)); err != nil {
		return nil, err
	}
	if t.Counterparty != nil {
		t.CounterpartyID = &t.Counterparty.ID
	}
	if t.TradeStatus, t.TradeStatusID, err = a.code(ctx, refdomain.KindTradeStatus, dto.TradeStatus, dto.TradeStatusID); err != nil {
		return nil, err
	}
	if t.TradeType, t.TradeTypeID, err = a.code(ctx, refdomain.KindTradeType, dto.TradeType, dto.TradeTypeID); err != nil {
		return nil, err
	}
	if t.TradeSubType, t.TradeSubTypeID, err = a.code(ctx, refdomain.KindTradeSubType, dto.TradeSubType, dto.TradeSubTypeID); err != nil {
		return nil, err
	}
	if t.TraderUser, t.TraderUserID, err = a.user(ctx, dto.TraderUserName, dto.TraderUserID); err != nil {
		return nil, err
	}
	if t.TradeInputterUser, t.TradeInputterUserID, err = a.user(ctx, dto.InputterUserName, dto.TradeInputterUserID); err != nil {
		return nil, err
	}
	return t, nil
}

// buildLeg 构造交易腿，未找到的可选引用保持为空
func (a *tradeAssembler) buildLeg(ctx context.Context, dto TradeLegDTO, now time.Time) (*domain.TradeLeg, error) {
	leg := &domain.TradeLeg{
		Notional:    dto.Notional,
		Rate:        dto.RateValue(),
		Active:      true,
		CreatedDate: now,
	}
	lookups := []struct {
		kind   refdomain.Kind
		name   string
		id     uint
		code   **refdomain.Code
		codeID **uint
	}{
		{refdomain.KindCurrency, dto.Currency, dto.CurrencyID, &leg.Currency, &leg.CurrencyID},
		{refdomain.KindLegType, dto.LegType, dto.LegTypeID, &leg.LegRateType, &leg.LegRateTypeID},
		{refdomain.KindIndex, dto.IndexName, dto.IndexID, &leg.Index, &leg.IndexID},
		{refdomain.KindHolidayCalendar, dto.HolidayCalendar, dto.HolidayCalendarID, &leg.HolidayCalendar, &leg.HolidayCalendarID},
		{refdomain.KindSchedule, dto.CalculationPeriodSchedule, dto.ScheduleID, &leg.CalculationPeriodSchedule, &leg.CalculationPeriodScheduleID},
		{refdomain.KindBusinessDayConvention, dto.PaymentBusinessDayConvention, dto.PaymentBdcID, &leg.PaymentBusinessDayConvention, &leg.PaymentBusinessDayConventionID},
		{refdomain.KindBusinessDayConvention, dto.FixingBusinessDayConvention, dto.FixingBdcID, &leg.FixingBusinessDayConvention, &leg.FixingBusinessDayConventionID},
		{refdomain.KindPayRec, dto.PayReceiveFlag, dto.PayRecID, &leg.PayReceiveFlag, &leg.PayReceiveFlagID},
	}
	for _, l := range lookups {
		c, id, err := a.code(ctx, l.kind, l.name, l.id)
		if err != nil {
			return nil, err
		}
		*l.code, *l.codeID = c, id
	}
	return leg, nil
}

// projectCashflows 为缺少现金流的腿预生成现金流供校验使用，不落库，也不修改 dto
func projectCashflows(dto *TradeDTO, now time.Time) (*TradeDTO, error) {
	if dto.TradeStartDate == nil || dto.TradeMaturityDate == nil || len(dto.TradeLegs) == 0 {
		return dto, nil
	}
	out := *dto
	out.TradeLegs = append([]TradeLegDTO(nil), dto.TradeLegs...)
	for i := range out.TradeLegs {
		l := &out.TradeLegs[i]
		if len(l.Cashflows) > 0 {
			continue
		}
		transient := &domain.TradeLeg{
			Notional:                  l.Notional,
			Rate:                      l.RateValue(),
			LegRateType:               &refdomain.Code{Name: l.LegType},
			CalculationPeriodSchedule: &refdomain.Code{Name: l.CalculationPeriodSchedule},
		}
		flows, err := domain.GenerateCashflows(transient, dto.TradeStartDate.Time, dto.TradeMaturityDate.Time, now)
		if err != nil {
			return nil, err
		}
		for j := range flows {
			l.Cashflows = append(l.Cashflows, toCashflowDTO(&flows[j]))
		}
	}
	return &out, nil
}
