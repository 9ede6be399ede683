package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRSQL_EmptyMatchesAll(t *testing.T) {
	p, err := ParseRSQL("  ")
	require.NoError(t, err)
	assert.Equal(t, MatchAll(), p)
}

func TestParseRSQL_SimpleComparison(t *testing.T) {
	p, err := ParseRSQL("counterparty.name==BigBank")
	require.NoError(t, err)
	assert.Equal(t, Comparison{Field: FieldCounterpartyName, Operator: CmpEq, Values: []any{"BigBank"}}, p)
}

func TestParseRSQL_AndBindsTighterThanOr(t *testing.T) {
	p, err := ParseRSQL("book.name==B1;status==NEW,tradeId=gt=10000")
	require.NoError(t, err)

	or, ok := p.(Disjunction)
	require.True(t, ok)
	require.Len(t, or.Clauses, 2)

	and, ok := or.Clauses[0].(Conjunction)
	require.True(t, ok)
	require.Len(t, and.Clauses, 2)
	assert.Equal(t, FieldBookName, and.Clauses[0].(Comparison).Field)
	assert.Equal(t, FieldTradeStatus, and.Clauses[1].(Comparison).Field)

	gt := or.Clauses[1].(Comparison)
	assert.Equal(t, CmpGt, gt.Operator)
	assert.Equal(t, []any{int64(10000)}, gt.Values)
}

func TestParseRSQL_KeywordsAndParentheses(t *testing.T) {
	p, err := ParseRSQL("(status==NEW or status==AMENDED) and tradeDate>=2025-10-01")
	require.NoError(t, err)

	and, ok := p.(Conjunction)
	require.True(t, ok)
	require.Len(t, and.Clauses, 2)
	_, ok = and.Clauses[0].(Disjunction)
	assert.True(t, ok)
	ge := and.Clauses[1].(Comparison)
	assert.Equal(t, CmpGe, ge.Operator)
	assert.Equal(t, []any{date(2025, 10, 1)}, ge.Values)
}

func TestParseRSQL_InListQuotedAndWildcard(t *testing.T) {
	p, err := ParseRSQL(`tradeStatus.tradeStatus=in=(NEW,"AMENDED");traderUser.firstName=='Sim*'`)
	require.NoError(t, err)

	and := p.(Conjunction)
	in := and.Clauses[0].(Comparison)
	assert.Equal(t, CmpIn, in.Operator)
	assert.Equal(t, []any{"NEW", "AMENDED"}, in.Values)

	like := and.Clauses[1].(Comparison)
	assert.Equal(t, CmpLike, like.Operator)
	assert.Equal(t, []any{"Sim%"}, like.Values)
}

func TestParseRSQL_LikeEscapesLiteralWildcards(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"book.bookName=like=a_b", "%a!_b%"},
		{"book.bookName=like=100%", "%100!%%"},
		{"book.bookName=like='wow!'", "%wow!!%"},
		{"book.bookName==FX_*", "FX!_%"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p, err := ParseRSQL(tt.query)
			require.NoError(t, err)
			c := p.(Comparison)
			assert.Equal(t, CmpLike, c.Operator)
			assert.Equal(t, []any{tt.want}, c.Values)
		})
	}
}

func TestParseRSQL_QuotedValueWithSpaces(t *testing.T) {
	p, err := ParseRSQL(`counterparty=="Big Bank plc"`)
	require.NoError(t, err)
	assert.Equal(t, []any{"Big Bank plc"}, p.(Comparison).Values)
}

func TestParseRSQL_Malformed(t *testing.T) {
	queries := []string{
		"unknownField==1",
		"tradeId==abc",
		"tradeId=foo=1",
		"book.name==",
		"(status==NEW",
		"status==NEW;",
		`status=="NEW`,
		"tradeDate==yesterday",
		"status==(NEW,AMENDED)",
	}
	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			_, err := ParseRSQL(q)
			var mqe *MalformedQueryError
			require.True(t, errors.As(err, &mqe), "expected malformed query error, got %v", err)
			assert.Contains(t, err.Error(), "Invalid RSQL query "+q+" Error: ")
		})
	}
}
