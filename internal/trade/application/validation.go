package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	refdomain "github.com/wyfcoding/swaptrading/internal/referencedata/domain"
	"github.com/wyfcoding/swaptrading/internal/trade/domain"
	userdomain "github.com/wyfcoding/swaptrading/internal/user/domain"
	"github.com/wyfcoding/swaptrading/pkg/utils"
)

// MaxTradeDateAgeDays 交易日期最多早于今天的天数
const MaxTradeDateAgeDays = 30

// TradeValidator 交易校验：参考数据、业务规则、腿一致性三项独立检查
type TradeValidator struct {
	refs  refdomain.Gateway
	users userdomain.UserRepository
	now   func() time.Time
}

// NewTradeValidator 创建校验器，now 为 nil 时使用系统时间
func NewTradeValidator(refs refdomain.Gateway, users userdomain.UserRepository, now func() time.Time) *TradeValidator {
	if now == nil {
		now = time.Now
	}
	return &TradeValidator{refs: refs, users: users, now: now}
}

// ValidateTradeAndLegs 依次执行三项检查并合并结果，不提前返回
func (v *TradeValidator) ValidateTradeAndLegs(ctx context.Context, dto *TradeDTO) (domain.ValidationResult, error) {
	refResult, err := v.ValidateReferenceData(ctx, dto)
	if err != nil {
		return domain.ValidationResult{}, err
	}
	businessResult := v.ValidateBusinessRules(dto)

	var legResult domain.ValidationResult
	if len(dto.TradeLegs) == 0 {
		legResult = domain.NewValidationResult([]string{"Trade must have 2 legs"})
	} else {
		legResult = v.ValidateLegConsistency(dto.TradeLegs)
	}
	return domain.Merge(refResult, businessResult, legResult), nil
}

// ValidateReferenceData 检查引用的参考数据存在且有效；未提供的可选字段不报错
func (v *TradeValidator) ValidateReferenceData(ctx context.Context, dto *TradeDTO) (domain.ValidationResult, error) {
	var errs []string

	if name := dto.BookName; name != "" {
		book, err := v.refs.FindBook(ctx, refdomain.ByName(name))
		if err != nil {
			return domain.ValidationResult{}, err
		}
		switch {
		case book == nil:
			errs = append(errs, "Book "+name+" does not exist")
		case !book.Active:
			errs = append(errs, "Book "+name+" is not active")
		}
	} else {
		errs = append(errs, "Book is required")
	}

	if name := dto.CounterpartyName; name != "" {
		cp, err := v.refs.FindCounterparty(ctx, refdomain.ByName(name))
		if err != nil {
			return domain.ValidationResult{}, err
		}
		switch {
		case cp == nil:
			errs = append(errs, "Counterparty "+name+" does not exist")
		case !cp.Active:
			errs = append(errs, "Counterparty "+name+" is not active")
		}
	} else {
		errs = append(errs, "Counterparty is required")
	}

	if name := strings.TrimSpace(dto.TraderUserName); name != "" {
		user, err := v.users.FindByFirstName(ctx, strings.Fields(name)[0])
		if err != nil {
			return domain.ValidationResult{}, err
		}
		switch {
		case user == nil:
			errs = append(errs, "Trader user "+dto.TraderUserName+" does not exist")
		case !user.Active:
			errs = append(errs, "Trader user "+dto.TraderUserName+" is not active")
		}
	} else {
		errs = append(errs, "Trader user is required")
	}

	checks := []codeCheck{
		{refdomain.KindTradeStatus, dto.TradeStatus, "Trade status"},
		{refdomain.KindTradeType, dto.TradeType, "Trade type"},
		{refdomain.KindTradeSubType, dto.TradeSubType, "Trade sub type"},
	}
	for i, leg := range dto.TradeLegs {
		prefix := fmt.Sprintf("Leg %d ", i+1)
		checks = append(checks,
			codeCheck{refdomain.KindCurrency, leg.Currency, "Currency"},
			codeCheck{refdomain.KindLegType, leg.LegType, prefix + "Leg type"},
		)
		if strings.EqualFold(leg.LegType, domain.LegTypeFloating) {
			checks = append(checks, codeCheck{refdomain.KindIndex, leg.IndexName, prefix + "Index"})
		}
		checks = append(checks,
			codeCheck{refdomain.KindHolidayCalendar, leg.HolidayCalendar, prefix + "Holiday calendar"},
			codeCheck{refdomain.KindPayRec, leg.PayReceiveFlag, prefix + "Pay Receive flag"},
			codeCheck{refdomain.KindBusinessDayConvention, leg.PaymentBusinessDayConvention, prefix + "Payment Business Day Convention"},
		)
	}

	for _, c := range checks {
		msg, err := v.missingCode(ctx, c)
		if err != nil {
			return domain.ValidationResult{}, err
		}
		if msg != "" {
			errs = append(errs, msg)
		}
	}

	return domain.NewValidationResult(errs), nil
}

type codeCheck struct {
	kind  refdomain.Kind
	name  string
	label string
}

func (v *TradeValidator) missingCode(ctx context.Context, c codeCheck) (string, error) {
	if c.name == "" {
		return "", nil
	}
	code, err := v.refs.FindCode(ctx, c.kind, refdomain.ByName(c.name))
	if err != nil {
		return "", err
	}
	if code == nil {
		return c.label + " " + c.name + " does not exist", nil
	}
	return "", nil
}

// ValidateBusinessRules 日期规则，每条规则独立判断
func (v *TradeValidator) ValidateBusinessRules(dto *TradeDTO) domain.ValidationResult {
	var errs []string
	if dto.TradeDate == nil {
		errs = append(errs, "Trade date is required")
	}
	if dto.TradeStartDate == nil {
		errs = append(errs, "Start date is required")
	}
	if dto.TradeMaturityDate == nil {
		errs = append(errs, "Maturity date is required")
	}

	trade, start, maturity := dto.TradeDate.ptr(), dto.TradeStartDate.ptr(), dto.TradeMaturityDate.ptr()
	if start != nil && trade != nil && start.Before(*trade) {
		errs = append(errs, "Start date cannot be before trade date")
	}
	if maturity != nil && start != nil && maturity.Before(*start) {
		errs = append(errs, "Maturity date cannot be before start date")
	}
	if maturity != nil && trade != nil && maturity.Before(*trade) {
		errs = append(errs, "Maturity date cannot be before trade date")
	}
	if trade != nil {
		earliest := utils.TruncateToDate(v.now()).AddDate(0, 0, -MaxTradeDateAgeDays)
		if trade.Before(earliest) {
			errs = append(errs, fmt.Sprintf("Trade date cannot be more than %d days in the past", MaxTradeDateAgeDays))
		}
	}
	return domain.NewValidationResult(errs)
}

// ValidateLegConsistency 两条腿的到期日、收付方向、指数与利率检查
func (v *TradeValidator) ValidateLegConsistency(legs []TradeLegDTO) domain.ValidationResult {
	if len(legs) != 2 {
		return domain.NewValidationResult([]string{"Trade must have exactly 2 legs"})
	}
	leg1, leg2 := legs[0], legs[1]
	if len(leg1.Cashflows) == 0 || len(leg2.Cashflows) == 0 {
		return domain.NewValidationResult([]string{"Both legs must have cashflows to validate maturity dates"})
	}

	var errs []string
	m1 := leg1.Cashflows[len(leg1.Cashflows)-1].ValueDate
	m2 := leg2.Cashflows[len(leg2.Cashflows)-1].ValueDate
	if m1 != nil && m2 != nil && !m1.Equal(m2.Time) {
		errs = append(errs, "Both legs must have identical maturity dates")
	}

	if leg1.PayReceiveFlag != "" && leg2.PayReceiveFlag != "" && leg1.PayReceiveFlag == leg2.PayReceiveFlag {
		errs = append(errs, "Legs must have opposite pay/receive flags")
	}

	for i, leg := range legs {
		if strings.EqualFold(leg.LegType, domain.LegTypeFloating) && strings.TrimSpace(leg.IndexName) == "" {
			errs = append(errs, fmt.Sprintf("Floating leg %d must have an index specified", i+1))
		}
	}
	for i, leg := range legs {
		if strings.EqualFold(leg.LegType, domain.LegTypeFixed) && (leg.Rate == nil || *leg.Rate <= 0) {
			errs = append(errs, fmt.Sprintf("Fixed leg %d must have a valid rate", i+1))
		}
	}
	return domain.NewValidationResult(errs)
}
