package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wyfcoding/swaptrading/internal/trade/domain"
)

func TestAuthorizationGate_Authorize(t *testing.T) {
	users := newFakeUsers()
	gate := NewAuthorizationGate(users, discardLogger())
	ctx := context.Background()

	owned := &TradeDTO{TraderUserName: "Simon King"}
	foreign := &TradeDTO{TraderUserName: "Ana Lee"}

	tests := []struct {
		name  string
		user  string
		op    domain.Operation
		trade *TradeDTO
		want  bool
	}{
		{"middle office amends any trade", "ana", domain.OpAmendTrade, owned, true},
		{"trader amends own trade", "simon", domain.OpAmendTrade, owned, true},
		{"trader name compare ignores case", "simon", domain.OpAmendTrade, &TradeDTO{TraderUserName: "simon king"}, true},
		{"trader cannot amend foreign trade", "simon", domain.OpAmendTrade, foreign, false},
		{"lowercase user type still counts as trader", "joey", domain.OpCancelTrade, owned, false},
		{"trader may create any trade", "simon", domain.OpCreateTrade, foreign, true},
		{"bulk read skips ownership", "simon", domain.OpGetAllTrades, nil, true},
		{"trade without trader is open", "simon", domain.OpTerminateTrade, &TradeDTO{}, true},
		{"trader with no trade context is denied", "simon", domain.OpAmendTrade, nil, false},
		{"missing privilege", "eve", domain.OpCreateTrade, owned, false},
		{"read privilege only", "eve", domain.OpGetAllTrades, nil, true},
		{"inactive user", "bob", domain.OpGetAllTrades, nil, false},
		{"unknown user", "nobody", domain.OpGetAllTrades, nil, false},
		{"unmapped operation", "ana", domain.Operation("PURGE"), owned, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gate.Authorize(ctx, tt.user, tt.op, tt.trade))
		})
	}
}

func TestAuthorizationGate_FailsClosedOnLookupError(t *testing.T) {
	users := newFakeUsers()
	users.err = errors.New("db down")
	gate := NewAuthorizationGate(users, discardLogger())

	assert.False(t, gate.Authorize(context.Background(), "ana", domain.OpGetAllTrades, nil))
}
