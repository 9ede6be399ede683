package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/swaptrading/internal/trade/domain"
)

func TestListTrades_TraderSeesOwnTrades(t *testing.T) {
	h := newHarness(t)
	own := h.activeTrade(10001, "NEW", "simon")
	h.trades.On("FindByTraderUserID", mock.Anything, uint(1)).Return([]*domain.Trade{own}, nil)

	got, err := h.svc.ListTrades(context.Background(), "simon")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(10001), got[0].TradeID)
	h.trades.AssertNotCalled(t, "FindActive", mock.Anything)
}

func TestListTrades_MiddleOfficeSeesAll(t *testing.T) {
	h := newHarness(t)
	trades := []*domain.Trade{h.activeTrade(10001, "NEW", "simon"), h.activeTrade(10002, "NEW", "joey")}
	h.trades.On("FindActive", mock.Anything).Return(trades, nil)
	require.NoError(t, h.infos.Add(context.Background(), domain.NewSettlementInstructions(10002, "Settle via Euroclear", fixedNow)))

	got, err := h.svc.ListTrades(context.Background(), "ana")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Empty(t, got[0].SettlementInstructions)
	assert.Equal(t, "Settle via Euroclear", got[1].SettlementInstructions)
	require.Len(t, got[1].AdditionalFields, 1)
}

func TestListTrades_Unauthorized(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.ListTrades(context.Background(), "bob")

	var uerr *domain.UnauthorizedError
	require.ErrorAs(t, err, &uerr)
	h.trades.AssertNotCalled(t, "FindActive", mock.Anything)
}

func TestGetTrade(t *testing.T) {
	h := newHarness(t)
	h.trades.On("GetActive", mock.Anything, int64(10001)).Return(h.activeTrade(10001, "NEW", "simon"), nil)
	h.trades.On("GetActive", mock.Anything, int64(9)).Return(nil, nil)

	got, err := h.svc.GetTrade(context.Background(), 10001)
	require.NoError(t, err)
	assert.Equal(t, "FX-BOOK-1", got.BookName)
	assert.Equal(t, "BigBank", got.CounterpartyName)

	_, err = h.svc.GetTrade(context.Background(), 9)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestSearchTrades_RejectsInvertedDateRange(t *testing.T) {
	h := newHarness(t)
	start := time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)

	_, err := h.svc.SearchTrades(context.Background(), domain.SearchCriteria{StartDate: &start, EndDate: &end})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Start date cannot be after end date", verr.Message)
	h.trades.AssertNotCalled(t, "FindAll", mock.Anything, mock.Anything)
}

func TestSearchTrades_PassesCriteriaPredicate(t *testing.T) {
	h := newHarness(t)
	criteria := domain.SearchCriteria{Book: "fx-book-1", TradeStatus: "new"}
	h.trades.On("FindAll", mock.Anything, criteria.Predicate()).Return([]*domain.Trade{h.activeTrade(10001, "NEW", "")}, nil)

	got, err := h.svc.SearchTrades(context.Background(), criteria)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	h.trades.AssertExpectations(t)
}

func TestFilterTrades_NormalizesPage(t *testing.T) {
	h := newHarness(t)
	want := domain.PageRequest{Page: 0, Size: domain.DefaultPageSize, SortBy: domain.FieldTradeDate.Path, SortDir: domain.SortDesc}
	h.trades.On("FindPage", mock.Anything, domain.MatchAll(), want).
		Return(domain.NewPage([]*domain.Trade{h.activeTrade(10001, "NEW", "")}, 41, want), nil)

	got, err := h.svc.FilterTrades(context.Background(), domain.SearchCriteria{}, domain.PageRequest{Page: -1})
	require.NoError(t, err)
	assert.Equal(t, int64(41), got.TotalElements)
	assert.Equal(t, 3, got.TotalPages)
	require.Len(t, got.Content, 1)
	assert.Equal(t, int64(10001), got.Content[0].TradeID)
}

func TestFilterTrades_UnknownSortField(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.FilterTrades(context.Background(), domain.SearchCriteria{}, domain.PageRequest{SortBy: "password"})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	h.trades.AssertNotCalled(t, "FindPage", mock.Anything, mock.Anything, mock.Anything)
}

func TestSearchRSQL(t *testing.T) {
	h := newHarness(t)
	pred, err := domain.ParseRSQL("counterparty.name==BigBank;tradeStatus.tradeStatus==NEW")
	require.NoError(t, err)
	h.trades.On("FindPage", mock.Anything, pred, mock.Anything).
		Return(domain.NewPage[*domain.Trade](nil, 0, domain.PageRequest{Size: 20}), nil)

	got, err := h.svc.SearchRSQL(context.Background(), "counterparty.name==BigBank;tradeStatus.tradeStatus==NEW", domain.PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, got.Content)
	h.trades.AssertExpectations(t)
}

func TestSearchRSQL_Malformed(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.SearchRSQL(context.Background(), "book.bookName=~FX", domain.PageRequest{})

	var merr *domain.MalformedQueryError
	require.ErrorAs(t, err, &merr)
	h.trades.AssertNotCalled(t, "FindPage", mock.Anything, mock.Anything, mock.Anything)
}
