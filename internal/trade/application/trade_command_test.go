package application

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/swaptrading/internal/trade/domain"
)

func (h *harness) expectWrites() {
	h.trades.On("Save", mock.Anything, mock.AnythingOfType("*domain.Trade")).Return(nil)
	h.trades.On("SaveLeg", mock.Anything, mock.AnythingOfType("*domain.TradeLeg")).Return(nil)
	h.trades.On("SaveCashflows", mock.Anything, mock.Anything).Return(nil)
	h.trades.On("Deactivate", mock.Anything, mock.AnythingOfType("*domain.Trade"), fixedNow).Return(nil)
	h.trades.On("UpdateStatus", mock.Anything, mock.AnythingOfType("*domain.Trade"), mock.AnythingOfType("uint"), fixedNow).Return(nil)
}

func TestCreateTrade_Success(t *testing.T) {
	h := newHarness(t)
	h.expectWrites()

	dto := validTradeDTO()
	dto.SettlementInstructions = "Pay via CHASE NY, account 12345"

	got, err := h.svc.CreateTrade(context.Background(), dto, "simon")
	require.NoError(t, err)

	assert.Equal(t, int64(10000), got.TradeID)
	assert.Equal(t, 1, got.Version)
	assert.True(t, got.Active)
	assert.Equal(t, domain.StatusNew, got.TradeStatus)
	assert.Equal(t, "Simon King", got.TraderUserName)
	assert.Equal(t, "Ana Lee", got.InputterUserName)
	assert.Equal(t, "Pay via CHASE NY, account 12345", got.SettlementInstructions)

	require.Len(t, got.TradeLegs, 2)
	fixed := got.TradeLegs[0]
	require.Len(t, fixed.Cashflows, 4)
	for _, cf := range fixed.Cashflows {
		assert.True(t, decimal.NewFromInt(87500).Equal(cf.PaymentValue), cf.PaymentValue.String())
		assert.Equal(t, "Pay", cf.PayRec)
	}
	assert.Equal(t, "2026-01-17", fixed.Cashflows[0].ValueDate.Format("2006-01-02"))
	assert.Equal(t, "2026-10-17", fixed.Cashflows[3].ValueDate.Format("2006-01-02"))
	for _, cf := range got.TradeLegs[1].Cashflows {
		assert.True(t, cf.PaymentValue.IsZero())
	}

	h.trades.AssertNumberOfCalls(t, "Save", 1)
	h.trades.AssertNumberOfCalls(t, "SaveLeg", 2)
	h.trades.AssertNumberOfCalls(t, "SaveCashflows", 2)
	h.trades.AssertNotCalled(t, "GetActive", mock.Anything, mock.Anything)
	assert.Equal(t, 1, h.tx.calls)
	require.Len(t, h.events.events, 1)
	assert.Equal(t, domain.EventTradeCreated, h.events.events[0].Type)
	assert.Equal(t, 8, h.metrics.cashflows)
	assert.Equal(t, 1, h.metrics.ops["create:success"])
}

func TestCreateTrade_SuppliedTradeID(t *testing.T) {
	h := newHarness(t)
	h.expectWrites()
	h.trades.On("GetActive", mock.Anything, int64(500)).Return(nil, nil)

	dto := validTradeDTO()
	dto.TradeID = 500
	got, err := h.svc.CreateTrade(context.Background(), dto, "ana")
	require.NoError(t, err)
	assert.Equal(t, int64(500), got.TradeID)
}

func TestCreateTrade_SuppliedTradeIDAlreadyActive(t *testing.T) {
	h := newHarness(t)
	h.trades.On("GetActive", mock.Anything, int64(500)).Return(h.activeTrade(500, "NEW", "simon"), nil)

	dto := validTradeDTO()
	dto.TradeID = 500
	_, err := h.svc.CreateTrade(context.Background(), dto, "ana")

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Trade 500 already exists", verr.Message)
	h.trades.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCreateTrade_ValidationFailure(t *testing.T) {
	h := newHarness(t)

	dto := validTradeDTO()
	dto.BookName = "OLD-BOOK"
	dto.TradeLegs[1].PayReceiveFlag = "Pay"

	_, err := h.svc.CreateTrade(context.Background(), dto, "ana")

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"Book OLD-BOOK is not active", "Legs must have opposite pay/receive flags"}, verr.Errors)
	assert.Equal(t, "Trade validation failed: Book OLD-BOOK is not active, Legs must have opposite pay/receive flags", verr.Error())
	h.trades.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	assert.Zero(t, h.tx.calls)
	assert.Equal(t, 1, h.metrics.validations)
	assert.Equal(t, 1, h.metrics.ops["create:invalid"])
}

func TestCreateTrade_Unauthorized(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.CreateTrade(context.Background(), validTradeDTO(), "eve")

	var uerr *domain.UnauthorizedError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, domain.OpCreateTrade, uerr.Operation)
	h.trades.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	assert.Equal(t, 1, h.metrics.ops["create:unauthorized"])
}

func TestCreateTrade_RollsBackOnStoreError(t *testing.T) {
	h := newHarness(t)
	h.trades.On("Save", mock.Anything, mock.Anything).Return(nil)
	h.trades.On("SaveLeg", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	_, err := h.svc.CreateTrade(context.Background(), validTradeDTO(), "ana")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, h.events.events)
	assert.Equal(t, 1, h.metrics.ops["create:error"])
}

func TestAmendTrade_CreatesNewVersion(t *testing.T) {
	h := newHarness(t)
	h.expectWrites()
	existing := h.activeTrade(10001, "NEW", "simon")
	h.trades.On("GetActive", mock.Anything, int64(10001)).Return(existing, nil)

	dto := validTradeDTO()
	dto.TradeLegs[0].Rate = rate(4.0)

	got, err := h.svc.AmendTrade(context.Background(), 10001, dto, "simon")
	require.NoError(t, err)

	assert.Equal(t, int64(10001), got.TradeID)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, domain.StatusAmended, got.TradeStatus)
	assert.True(t, got.Active)
	assert.False(t, existing.Active)
	require.NotNil(t, existing.DeactivatedDate)
	assert.Equal(t, fixedNow, *existing.DeactivatedDate)
	assert.True(t, decimal.NewFromInt(100000).Equal(got.TradeLegs[0].Cashflows[0].PaymentValue))

	h.trades.AssertNumberOfCalls(t, "Save", 1)
	h.trades.AssertNumberOfCalls(t, "Deactivate", 1)
	require.Len(t, h.events.events, 1)
	assert.Equal(t, domain.EventTradeAmended, h.events.events[0].Type)
}

func TestAmendTrade_ConcurrentVersionConflict(t *testing.T) {
	h := newHarness(t)
	existing := h.activeTrade(10001, "NEW", "simon")
	h.trades.On("GetActive", mock.Anything, int64(10001)).Return(existing, nil)
	h.trades.On("Deactivate", mock.Anything, existing, fixedNow).Return(domain.TradeConflict(10001))

	_, err := h.svc.AmendTrade(context.Background(), 10001, validTradeDTO(), "simon")

	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "Trade 10001 was modified concurrently, reload and retry", conflict.Message)
	assert.True(t, existing.Active)
	h.trades.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	assert.Empty(t, h.events.events)
	assert.Equal(t, 1, h.metrics.ops["amend:conflict"])
}

func TestAmendTrade_ReplacesSettlementInstructions(t *testing.T) {
	h := newHarness(t)
	h.expectWrites()
	h.trades.On("GetActive", mock.Anything, int64(10001)).Return(h.activeTrade(10001, "NEW", ""), nil)
	require.NoError(t, h.infos.Add(context.Background(), domain.NewSettlementInstructions(10001, "Old instructions text", fixedNow)))

	dto := validTradeDTO()
	dto.SettlementInstructions = "New instructions text"
	got, err := h.svc.AmendTrade(context.Background(), 10001, dto, "ana")
	require.NoError(t, err)
	assert.Equal(t, "New instructions text", got.SettlementInstructions)

	active, err := h.infos.ListFor(context.Background(), domain.EntityTypeTrade, 10001)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, 2, active[0].Version)
}

func TestAmendTrade_NotFound(t *testing.T) {
	h := newHarness(t)
	h.trades.On("GetActive", mock.Anything, int64(42)).Return(nil, nil)

	_, err := h.svc.AmendTrade(context.Background(), 42, validTradeDTO(), "ana")

	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Trade not found: 42", nf.Error())
	assert.Equal(t, 1, h.metrics.ops["amend:not_found"])
}

func TestAmendTrade_ForeignTraderUnauthorized(t *testing.T) {
	h := newHarness(t)
	h.trades.On("GetActive", mock.Anything, int64(10001)).Return(h.activeTrade(10001, "NEW", "simon"), nil)

	_, err := h.svc.AmendTrade(context.Background(), 10001, validTradeDTO(), "joey")

	var uerr *domain.UnauthorizedError
	require.ErrorAs(t, err, &uerr)
	h.trades.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAmendTrade_TerminalStateRejected(t *testing.T) {
	h := newHarness(t)
	h.trades.On("GetActive", mock.Anything, int64(10001)).Return(h.activeTrade(10001, "TERMINATED", ""), nil)

	_, err := h.svc.AmendTrade(context.Background(), 10001, validTradeDTO(), "ana")

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Trade 10001 is TERMINATED and cannot be amended", verr.Message)
	h.trades.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestTerminateTrade(t *testing.T) {
	h := newHarness(t)
	h.expectWrites()
	trade := h.activeTrade(10001, "NEW", "simon")
	h.trades.On("GetActive", mock.Anything, int64(10001)).Return(trade, nil)

	got, err := h.svc.TerminateTrade(context.Background(), 10001, "simon")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusTerminated, got.TradeStatus)
	assert.Equal(t, 1, got.Version)
	assert.True(t, got.Active)
	assert.Equal(t, fixedNow, trade.LastTouchTimestamp)
	h.trades.AssertNumberOfCalls(t, "UpdateStatus", 1)
	h.trades.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	h.trades.AssertNotCalled(t, "SaveLeg", mock.Anything, mock.Anything)
	require.Len(t, h.events.events, 1)
	assert.Equal(t, domain.EventTradeTerminated, h.events.events[0].Type)
}

func TestCancelTrade_AlreadyCancelled(t *testing.T) {
	h := newHarness(t)
	h.trades.On("GetActive", mock.Anything, int64(10001)).Return(h.activeTrade(10001, "CANCELLED", ""), nil)

	_, err := h.svc.CancelTrade(context.Background(), 10001, "ana")

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Trade 10001 is CANCELLED and cannot be cancelled", verr.Message)
}

func TestDeleteTrade_CancelsActiveVersion(t *testing.T) {
	h := newHarness(t)
	h.expectWrites()
	trade := h.activeTrade(10001, "AMENDED", "")
	h.trades.On("GetActive", mock.Anything, int64(10001)).Return(trade, nil)

	require.NoError(t, h.svc.DeleteTrade(context.Background(), 10001, "ana"))
	assert.Equal(t, domain.StatusCancelled, trade.StatusName())
	require.Len(t, h.events.events, 1)
	assert.Equal(t, domain.EventTradeCancelled, h.events.events[0].Type)
}

func TestCancelTrade_RequiresCancelPrivilege(t *testing.T) {
	h := newHarness(t)
	h.trades.On("GetActive", mock.Anything, int64(10001)).Return(h.activeTrade(10001, "NEW", ""), nil)

	_, err := h.svc.CancelTrade(context.Background(), 10001, "eve")

	var uerr *domain.UnauthorizedError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, domain.OpCancelTrade, uerr.Operation)
}

func TestTerminateTrade_StatusChangedConcurrently(t *testing.T) {
	h := newHarness(t)
	trade := h.activeTrade(10001, "NEW", "")
	h.trades.On("GetActive", mock.Anything, int64(10001)).Return(trade, nil)
	h.trades.On("UpdateStatus", mock.Anything, trade, mock.AnythingOfType("uint"), fixedNow).Return(domain.TradeConflict(10001))

	_, err := h.svc.TerminateTrade(context.Background(), 10001, "ana")

	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, domain.StatusNew, trade.StatusName())
	assert.Empty(t, h.events.events)
	assert.Equal(t, 1, h.metrics.ops["terminate:conflict"])
}
