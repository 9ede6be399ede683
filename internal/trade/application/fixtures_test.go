package application

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	refdomain "github.com/wyfcoding/swaptrading/internal/referencedata/domain"
	"github.com/wyfcoding/swaptrading/internal/trade/domain"
	userdomain "github.com/wyfcoding/swaptrading/internal/user/domain"
)

var fixedNow = time.Date(2025, 10, 18, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func day(y int, m time.Month, d int) *Date {
	return NewDate(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func rate(v float64) *float64 { return &v }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- reference data ---

type fakeRefs struct {
	books  map[string]*refdomain.Book
	cps    map[string]*refdomain.Counterparty
	codes  map[refdomain.Kind]map[string]*refdomain.Code
	nextID uint
}

func newFakeRefs() *fakeRefs {
	r := &fakeRefs{
		books: map[string]*refdomain.Book{},
		cps:   map[string]*refdomain.Counterparty{},
		codes: map[refdomain.Kind]map[string]*refdomain.Code{},
	}
	r.addBook("FX-BOOK-1", true)
	r.addBook("OLD-BOOK", false)
	r.addCounterparty("BigBank", true)
	r.addCounterparty("GoneBank", false)
	for kind, names := range map[refdomain.Kind][]string{
		refdomain.KindTradeStatus:           {"NEW", "AMENDED", "TERMINATED", "CANCELLED"},
		refdomain.KindTradeType:             {"Swap"},
		refdomain.KindTradeSubType:          {"IR_SWAP"},
		refdomain.KindCurrency:              {"USD", "EUR"},
		refdomain.KindLegType:               {"Fixed", "Floating"},
		refdomain.KindIndex:                 {"LIBOR", "SOFR"},
		refdomain.KindHolidayCalendar:       {"NY", "LDN"},
		refdomain.KindSchedule:              {"1M", "3M", "6M", "12M", "Quarterly"},
		refdomain.KindBusinessDayConvention: {"Following", "Modified Following"},
		refdomain.KindPayRec:                {"Pay", "Receive"},
	} {
		for _, n := range names {
			r.addCode(kind, n)
		}
	}
	return r
}

func (r *fakeRefs) id() uint { r.nextID++; return r.nextID }

func (r *fakeRefs) addBook(name string, active bool) {
	r.books[name] = &refdomain.Book{ID: r.id(), BookName: name, Active: active}
}

func (r *fakeRefs) addCounterparty(name string, active bool) {
	r.cps[name] = &refdomain.Counterparty{ID: r.id(), Name: name, Active: active}
}

func (r *fakeRefs) addCode(kind refdomain.Kind, name string) {
	if r.codes[kind] == nil {
		r.codes[kind] = map[string]*refdomain.Code{}
	}
	r.codes[kind][name] = &refdomain.Code{ID: r.id(), Kind: kind, Name: name, Active: true}
}

func (r *fakeRefs) FindBook(_ context.Context, ref refdomain.Ref) (*refdomain.Book, error) {
	for _, b := range r.books {
		if (ref.Name != "" && b.BookName == ref.Name) || (ref.Name == "" && ref.ID != 0 && b.ID == ref.ID) {
			return b, nil
		}
	}
	return nil, nil
}

func (r *fakeRefs) FindCounterparty(_ context.Context, ref refdomain.Ref) (*refdomain.Counterparty, error) {
	for _, c := range r.cps {
		if (ref.Name != "" && c.Name == ref.Name) || (ref.Name == "" && ref.ID != 0 && c.ID == ref.ID) {
			return c, nil
		}
	}
	return nil, nil
}

func (r *fakeRefs) FindCode(_ context.Context, kind refdomain.Kind, ref refdomain.Ref) (*refdomain.Code, error) {
	for _, c := range r.codes[kind] {
		if (ref.Name != "" && strings.EqualFold(c.Name, ref.Name)) || (ref.Name == "" && ref.ID != 0 && c.ID == ref.ID) {
			return c, nil
		}
	}
	return nil, nil
}

// --- users ---

type fakeUsers struct {
	users      []*userdomain.ApplicationUser
	privileges map[string]*userdomain.Privilege
	grants     map[uint]map[uint]bool
	err        error
}

var allPrivileges = []string{"BOOK_TRADE", "AMEND_TRADE", "READ_TRADE", "TERMINATE_TRADE", "CANCEL_TRADE"}

func newFakeUsers() *fakeUsers {
	u := &fakeUsers{privileges: map[string]*userdomain.Privilege{}, grants: map[uint]map[uint]bool{}}
	for i, p := range allPrivileges {
		u.privileges[p] = &userdomain.Privilege{ID: uint(i + 1), Name: p}
	}
	u.add(1, "Simon", "King", "simon", "TRADER_SALES", true, allPrivileges...)
	u.add(2, "Ana", "Lee", "ana", "MIDDLE_OFFICE", true, allPrivileges...)
	u.add(3, "Joey", "Tribbiani", "joey", "trader_sales", true, allPrivileges...)
	u.add(4, "Bob", "Stone", "bob", "MIDDLE_OFFICE", false, allPrivileges...)
	u.add(5, "Eve", "Moss", "eve", "SUPPORT", true, "READ_TRADE")
	return u
}

func (f *fakeUsers) add(id uint, first, last, login, userType string, active bool, privs ...string) {
	f.users = append(f.users, &userdomain.ApplicationUser{
		ID: id, FirstName: first, LastName: last, LoginID: login, Active: active,
		UserProfile: &userdomain.UserProfile{UserType: userType},
	})
	f.grants[id] = map[uint]bool{}
	for _, p := range privs {
		f.grants[id][f.privileges[p].ID] = true
	}
}

func (f *fakeUsers) find(match func(*userdomain.ApplicationUser) bool) (*userdomain.ApplicationUser, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if match(u) {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) FindByID(_ context.Context, id uint) (*userdomain.ApplicationUser, error) {
	return f.find(func(u *userdomain.ApplicationUser) bool { return u.ID == id })
}

func (f *fakeUsers) FindByLoginID(_ context.Context, login string) (*userdomain.ApplicationUser, error) {
	return f.find(func(u *userdomain.ApplicationUser) bool { return u.LoginID == login })
}

func (f *fakeUsers) FindByFirstName(_ context.Context, first string) (*userdomain.ApplicationUser, error) {
	return f.find(func(u *userdomain.ApplicationUser) bool { return strings.EqualFold(u.FirstName, first) })
}

func (f *fakeUsers) FindPrivilegeByName(_ context.Context, name string) (*userdomain.Privilege, error) {
	return f.privileges[name], nil
}

func (f *fakeUsers) HasPrivilege(_ context.Context, userID, privilegeID uint) (bool, error) {
	return f.grants[userID][privilegeID], nil
}

// --- trades ---

type mockTradeRepo struct {
	mock.Mock
	nextID uint
}

func (m *mockTradeRepo) Save(ctx context.Context, t *domain.Trade) error {
	args := m.Called(ctx, t)
	if t.ID == 0 {
		m.nextID++
		t.ID = m.nextID
	}
	return args.Error(0)
}

func (m *mockTradeRepo) Deactivate(ctx context.Context, t *domain.Trade, now time.Time) error {
	if err := m.Called(ctx, t, now).Error(0); err != nil {
		return err
	}
	t.Deactivate(now)
	return nil
}

func (m *mockTradeRepo) UpdateStatus(ctx context.Context, t *domain.Trade, statusID uint, now time.Time) error {
	if err := m.Called(ctx, t, statusID, now).Error(0); err != nil {
		return err
	}
	t.TradeStatusID = &statusID
	t.LastTouchTimestamp = now
	return nil
}

func (m *mockTradeRepo) SaveLeg(ctx context.Context, l *domain.TradeLeg) error {
	args := m.Called(ctx, l)
	if l.ID == 0 {
		m.nextID++
		l.ID = m.nextID
	}
	return args.Error(0)
}

func (m *mockTradeRepo) SaveCashflows(ctx context.Context, flows []domain.Cashflow) error {
	return m.Called(ctx, flows).Error(0)
}

func (m *mockTradeRepo) GetActive(ctx context.Context, tradeID int64) (*domain.Trade, error) {
	args := m.Called(ctx, tradeID)
	t, _ := args.Get(0).(*domain.Trade)
	return t, args.Error(1)
}

func (m *mockTradeRepo) FindActive(ctx context.Context) ([]*domain.Trade, error) {
	args := m.Called(ctx)
	t, _ := args.Get(0).([]*domain.Trade)
	return t, args.Error(1)
}

func (m *mockTradeRepo) FindByTraderUserID(ctx context.Context, userID uint) ([]*domain.Trade, error) {
	args := m.Called(ctx, userID)
	t, _ := args.Get(0).([]*domain.Trade)
	return t, args.Error(1)
}

func (m *mockTradeRepo) FindActiveByTradeIDs(ctx context.Context, ids []int64) ([]*domain.Trade, error) {
	args := m.Called(ctx, ids)
	t, _ := args.Get(0).([]*domain.Trade)
	return t, args.Error(1)
}

func (m *mockTradeRepo) FindAll(ctx context.Context, pred domain.Predicate) ([]*domain.Trade, error) {
	args := m.Called(ctx, pred)
	t, _ := args.Get(0).([]*domain.Trade)
	return t, args.Error(1)
}

func (m *mockTradeRepo) FindPage(ctx context.Context, pred domain.Predicate, page domain.PageRequest) (*domain.Page[*domain.Trade], error) {
	args := m.Called(ctx, pred, page)
	p, _ := args.Get(0).(*domain.Page[*domain.Trade])
	return p, args.Error(1)
}

func (m *mockTradeRepo) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// --- additional info ---

type fakeInfos struct {
	mu    sync.Mutex
	items []*domain.AdditionalInfo
}

func (f *fakeInfos) Add(_ context.Context, info *domain.AdditionalInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.Active && it.EntityType == info.EntityType && it.EntityID == info.EntityID && it.FieldName == info.FieldName {
			it.Active = false
			info.Version = it.Version + 1
		}
	}
	info.ID = uint(len(f.items) + 1)
	f.items = append(f.items, info)
	return nil
}

func (f *fakeInfos) Remove(_ context.Context, entityType string, entityID int64, fieldName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.EntityType == entityType && it.EntityID == entityID && it.FieldName == fieldName {
			it.Active = false
		}
	}
	return nil
}

func (f *fakeInfos) ListFor(ctx context.Context, entityType string, entityID int64) ([]*domain.AdditionalInfo, error) {
	return f.ListForEntities(ctx, entityType, []int64{entityID})
}

func (f *fakeInfos) ListForEntities(_ context.Context, entityType string, ids []int64) ([]*domain.AdditionalInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.AdditionalInfo
	for _, it := range f.items {
		for _, id := range ids {
			if it.Active && it.EntityType == entityType && it.EntityID == id {
				out = append(out, it)
			}
		}
	}
	return out, nil
}

func (f *fakeInfos) FindActiveByFieldValue(_ context.Context, entityType, fieldName, text string) ([]*domain.AdditionalInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.AdditionalInfo
	for _, it := range f.items {
		if it.Active && it.EntityType == entityType && it.FieldName == fieldName &&
			strings.Contains(strings.ToLower(it.FieldValue), strings.ToLower(text)) {
			out = append(out, it)
		}
	}
	return out, nil
}

// --- infrastructure ---

type passTx struct{ calls int }

func (p *passTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls++
	return fn(ctx)
}

type recordingEvents struct{ events []domain.TradeEvent }

func (r *recordingEvents) Publish(_ context.Context, e domain.TradeEvent) error {
	r.events = append(r.events, e)
	return nil
}

type fixedSequence struct{ next int64 }

func (s *fixedSequence) Next(context.Context) (int64, error) {
	s.next++
	return s.next, nil
}

type countingMetrics struct {
	ops         map[string]int
	validations int
	cashflows   int
}

func (c *countingMetrics) RecordOperation(op, outcome string) { c.ops[op+":"+outcome]++ }
func (c *countingMetrics) RecordValidationFailure()           { c.validations++ }
func (c *countingMetrics) RecordCashflows(n int)              { c.cashflows += n }

type harness struct {
	svc     *TradeService
	trades  *mockTradeRepo
	refs    *fakeRefs
	users   *fakeUsers
	infos   *fakeInfos
	tx      *passTx
	events  *recordingEvents
	metrics *countingMetrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		trades:  &mockTradeRepo{},
		refs:    newFakeRefs(),
		users:   newFakeUsers(),
		infos:   &fakeInfos{},
		tx:      &passTx{},
		events:  &recordingEvents{},
		metrics: &countingMetrics{ops: map[string]int{}},
	}
	h.svc = NewTradeService(Deps{
		Trades:   h.trades,
		Infos:    h.infos,
		Refs:     h.refs,
		Users:    h.users,
		Sequence: &fixedSequence{next: 9999},
		Tx:       h.tx,
		Events:   h.events,
		Metrics:  h.metrics,
		Logger:   discardLogger(),
		Now:      clock,
	})
	return h
}

func validTradeDTO() *TradeDTO {
	return &TradeDTO{
		TradeDate:         day(2025, 10, 15),
		TradeStartDate:    day(2025, 10, 17),
		TradeMaturityDate: day(2026, 10, 17),
		BookName:          "FX-BOOK-1",
		CounterpartyName:  "BigBank",
		TraderUserName:    "Simon King",
		InputterUserName:  "Ana Lee",
		TradeType:         "Swap",
		TradeSubType:      "IR_SWAP",
		TradeLegs: []TradeLegDTO{
			{
				Notional:                     decimal.NewFromInt(10_000_000),
				Rate:                         rate(3.5),
				Currency:                     "USD",
				LegType:                      "Fixed",
				HolidayCalendar:              "NY",
				CalculationPeriodSchedule:    "3M",
				PaymentBusinessDayConvention: "Following",
				PayReceiveFlag:               "Pay",
			},
			{
				Notional:                     decimal.NewFromInt(10_000_000),
				Currency:                     "USD",
				LegType:                      "Floating",
				IndexName:                    "LIBOR",
				HolidayCalendar:              "NY",
				CalculationPeriodSchedule:    "3M",
				PaymentBusinessDayConvention: "Following",
				PayReceiveFlag:               "Receive",
			},
		},
	}
}

// activeTrade 已存在的活跃交易，交易员为 trader
func (h *harness) activeTrade(tradeID int64, status string, trader string) *domain.Trade {
	book := h.refs.books["FX-BOOK-1"]
	cp := h.refs.cps["BigBank"]
	st := h.refs.codes[refdomain.KindTradeStatus][status]
	t := &domain.Trade{
		ID:                 100,
		TradeID:            tradeID,
		Version:            1,
		TradeDate:          time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC),
		TradeStartDate:     time.Date(2025, 10, 17, 0, 0, 0, 0, time.UTC),
		TradeMaturityDate:  time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC),
		Active:             true,
		CreatedDate:        fixedNow.Add(-time.Hour),
		LastTouchTimestamp: fixedNow.Add(-time.Hour),
		Book:               book,
		BookID:             &book.ID,
		Counterparty:       cp,
		CounterpartyID:     &cp.ID,
		TradeStatus:        st,
		TradeStatusID:      &st.ID,
	}
	if trader != "" {
		u, _ := h.users.FindByLoginID(context.Background(), trader)
		t.TraderUser, t.TraderUserID = u, &u.ID
	}
	return t
}
