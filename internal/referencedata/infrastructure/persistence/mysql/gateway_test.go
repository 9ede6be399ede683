package mysql

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/swaptrading/internal/referencedata/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupGateway(t *testing.T) (*Gateway, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, AutoMigrate(db))

	require.NoError(t, db.Create(&[]domain.Book{
		{BookName: "FX-BOOK-1", Active: true},
		{BookName: "OLD-BOOK", Active: false},
	}).Error)
	require.NoError(t, db.Create(&domain.Counterparty{Name: "BigBank", Active: true}).Error)
	require.NoError(t, db.Create(&[]domain.Code{
		{Kind: domain.KindTradeSubType, Name: "IR_SWAP", Active: true},
		{Kind: domain.KindCurrency, Name: "USD", Active: true},
		{Kind: domain.KindLegType, Name: "USD", Active: true},
	}).Error)
	return NewGateway(db), db
}

func TestGateway_FindBook(t *testing.T) {
	gw, _ := setupGateway(t)
	ctx := context.Background()

	book, err := gw.FindBook(ctx, domain.ByName("FX-BOOK-1"))
	require.NoError(t, err)
	require.NotNil(t, book)
	assert.True(t, book.Active)

	inactive, err := gw.FindBook(ctx, domain.ByName("OLD-BOOK"))
	require.NoError(t, err)
	require.NotNil(t, inactive)
	assert.False(t, inactive.Active, "inactive flag must survive persistence")

	byID, err := gw.FindBook(ctx, domain.ByID(book.ID))
	require.NoError(t, err)
	assert.Equal(t, "FX-BOOK-1", byID.BookName)

	missing, err := gw.FindBook(ctx, domain.ByName("NOPE"))
	require.NoError(t, err)
	assert.Nil(t, missing)

	none, err := gw.FindBook(ctx, domain.Ref{})
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestGateway_NameTakesPriorityOverID(t *testing.T) {
	gw, _ := setupGateway(t)
	cp, err := gw.FindCounterparty(context.Background(), domain.Ref{ID: 999, Name: "BigBank"})
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "BigBank", cp.Name)
}

func TestGateway_FindCode_ScopedByKindWithCaseFallback(t *testing.T) {
	gw, _ := setupGateway(t)
	ctx := context.Background()

	sub, err := gw.FindCode(ctx, domain.KindTradeSubType, domain.ByName("ir_swap"))
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "IR_SWAP", sub.Name)

	ccy, err := gw.FindCode(ctx, domain.KindCurrency, domain.ByName("USD"))
	require.NoError(t, err)
	require.NotNil(t, ccy)
	assert.Equal(t, domain.KindCurrency, ccy.Kind)

	missing, err := gw.FindCode(ctx, domain.KindIndex, domain.ByName("USD"))
	require.NoError(t, err)
	assert.Nil(t, missing)
}
