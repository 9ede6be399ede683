package mysql

import (
	"fmt"
	"strings"

	"github.com/wyfcoding/swaptrading/internal/trade/domain"
	"gorm.io/gorm/clause"
)

var searchJoins = []string{
	"LEFT JOIN books AS book ON book.id = trades.book_id",
	"LEFT JOIN counterparties AS counterparty ON counterparty.id = trades.counterparty_id",
	"LEFT JOIN application_users AS trader_user ON trader_user.id = trades.trader_user_id",
	"LEFT JOIN reference_codes AS trade_status ON trade_status.id = trades.trade_status_id",
	"LEFT JOIN reference_codes AS trade_type ON trade_type.id = trades.trade_type_id",
	"LEFT JOIN reference_codes AS trade_sub_type ON trade_sub_type.id = trades.trade_sub_type_id",
}

var columns = map[string]string{
	domain.FieldTradeID.Path:            "trades.trade_id",
	domain.FieldVersion.Path:            "trades.version",
	domain.FieldActive.Path:             "trades.active",
	domain.FieldUTICode.Path:            "trades.uti_code",
	domain.FieldTradeDate.Path:          "trades.trade_date",
	domain.FieldTradeStartDate.Path:     "trades.trade_start_date",
	domain.FieldTradeMaturityDate.Path:  "trades.trade_maturity_date",
	domain.FieldTradeExecutionDate.Path: "trades.trade_execution_date",
	domain.FieldBookName.Path:           "book.book_name",
	domain.FieldCounterpartyName.Path:   "counterparty.name",
	domain.FieldTraderFirstName.Path:    "trader_user.first_name",
	domain.FieldTraderLastName.Path:     "trader_user.last_name",
	domain.FieldTraderLoginID.Path:      "trader_user.login_id",
	domain.FieldTradeStatus.Path:        "trade_status.name",
	domain.FieldTradeType.Path:          "trade_type.name",
	domain.FieldTradeSubType.Path:       "trade_sub_type.name",
}

func column(f domain.Field) (string, error) {
	col, ok := columns[f.Path]
	if !ok {
		return "", domain.NewValidationError("Unknown field: " + f.Path)
	}
	return col, nil
}

var operators = map[domain.Operator]string{
	domain.CmpEq:      "=",
	domain.CmpNe:      "<>",
	domain.CmpGt:      ">",
	domain.CmpGe:      ">=",
	domain.CmpLt:      "<",
	domain.CmpLe:      "<=",
	domain.CmpIn:      "IN",
	domain.CmpOut:     "NOT IN",
	domain.CmpLike:    "LIKE",
	domain.CmpNotLike: "NOT LIKE",
}

// translate 将查询条件转换为 SQL 片段，列名只来自白名单
func translate(p domain.Predicate) (clause.Expr, error) {
	switch v := p.(type) {
	case nil:
		return clause.Expr{SQL: "1=1"}, nil
	case domain.Comparison:
		return comparison(v)
	case domain.Conjunction:
		if len(v.Clauses) == 0 {
			return clause.Expr{SQL: "1=1"}, nil
		}
		return combine(v.Clauses, " AND ")
	case domain.Disjunction:
		if len(v.Clauses) == 0 {
			return clause.Expr{SQL: "1=0"}, nil
		}
		return combine(v.Clauses, " OR ")
	default:
		return clause.Expr{}, fmt.Errorf("unsupported predicate %T", p)
	}
}

func combine(clauses []domain.Predicate, sep string) (clause.Expr, error) {
	parts := make([]string, 0, len(clauses))
	var vars []any
	for _, c := range clauses {
		e, err := translate(c)
		if err != nil {
			return clause.Expr{}, err
		}
		parts = append(parts, "("+e.SQL+")")
		vars = append(vars, e.Vars...)
	}
	return clause.Expr{SQL: strings.Join(parts, sep), Vars: vars}, nil
}

func comparison(c domain.Comparison) (clause.Expr, error) {
	col, err := column(c.Field)
	if err != nil {
		return clause.Expr{}, err
	}
	op, ok := operators[c.Operator]
	if !ok {
		return clause.Expr{}, fmt.Errorf("unsupported operator %v", c.Operator)
	}
	if len(c.Values) == 0 {
		return clause.Expr{}, fmt.Errorf("no value for %s", c.Field.Path)
	}

	if c.Operator == domain.CmpIn || c.Operator == domain.CmpOut {
		vals := c.Values
		if c.IgnoreCase {
			vals = lowered(vals)
			col = "LOWER(" + col + ")"
		}
		return clause.Expr{SQL: col + " " + op + " ?", Vars: []any{vals}}, nil
	}

	escape := ""
	if c.Operator == domain.CmpLike || c.Operator == domain.CmpNotLike {
		escape = " ESCAPE '" + domain.LikeEscape + "'"
	}
	if c.IgnoreCase {
		return clause.Expr{SQL: "LOWER(" + col + ") " + op + " LOWER(?)" + escape, Vars: []any{c.Values[0]}}, nil
	}
	return clause.Expr{SQL: col + " " + op + " ?" + escape, Vars: []any{c.Values[0]}}, nil
}

func lowered(vals []any) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[i] = strings.ToLower(s)
		} else {
			out[i] = v
		}
	}
	return out
}
