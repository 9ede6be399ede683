package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/swaptrading/pkg/utils"
)

// DefaultScheduleMonths 未指定计息周期时按季度
const DefaultScheduleMonths = 3

var twelveHundred = decimal.NewFromInt(1200)

// ParseSchedule 将计息周期代码解析为月数
func ParseSchedule(code string) (int, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return DefaultScheduleMonths, nil
	}

	switch strings.ToLower(code) {
	case "monthly":
		return 1, nil
	case "quarterly":
		return 3, nil
	case "semi-annually", "semiannually", "half-yearly":
		return 6, nil
	case "annually", "yearly":
		return 12, nil
	}

	if !strings.HasSuffix(code, "M") && !strings.HasSuffix(code, "m") {
		return 0, &ScheduleFormatError{Code: code, Hint: true}
	}
	n, err := strconv.Atoi(code[:len(code)-1])
	if err != nil || n <= 0 {
		return 0, &ScheduleFormatError{Code: code}
	}
	return n, nil
}

// PaymentDates 从 start+interval 起逐期推进，直到超过 maturity，不生成残段
func PaymentDates(start, maturity time.Time, months int) []time.Time {
	var dates []time.Time
	for d := utils.AddMonths(start, months); !d.After(maturity); d = utils.AddMonths(d, months) {
		dates = append(dates, d)
	}
	return dates
}

// PaymentValue 固定腿 notional*rate%*months/12，保留两位小数四舍五入；其他腿为 0
func PaymentValue(legType string, notional decimal.Decimal, rate float64, months int) decimal.Decimal {
	if legType != LegTypeFixed {
		return decimal.Zero
	}
	return notional.
		Mul(decimal.NewFromFloat(rate)).
		Mul(decimal.NewFromInt(int64(months))).
		DivRound(twelveHundred, 2)
}

// GenerateCashflows 按腿属性生成现金流，结果按日期升序
func GenerateCashflows(leg *TradeLeg, start, maturity, now time.Time) ([]Cashflow, error) {
	months, err := ParseSchedule(leg.ScheduleCode())
	if err != nil {
		return nil, err
	}

	value := PaymentValue(leg.RateType(), leg.Notional, leg.Rate, months)
	dates := PaymentDates(start, maturity, months)
	flows := make([]Cashflow, 0, len(dates))
	for _, d := range dates {
		flows = append(flows, Cashflow{
			LegID:                          leg.ID,
			ValueDate:                      d,
			Rate:                           leg.Rate,
			PaymentValue:                   value,
			Active:                         true,
			CreatedDate:                    now,
			PayRecID:                       leg.PayReceiveFlagID,
			PayRec:                         leg.PayReceiveFlag,
			PaymentBusinessDayConventionID: leg.PaymentBusinessDayConventionID,
			PaymentBusinessDayConvention:   leg.PaymentBusinessDayConvention,
		})
	}
	return flows, nil
}
