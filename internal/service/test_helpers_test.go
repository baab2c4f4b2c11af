package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/tutor-settlement/internal/cache"
	"github.com/ayo6706/tutor-settlement/internal/domain"
	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/ayo6706/tutor-settlement/internal/notify"
	"github.com/ayo6706/tutor-settlement/internal/repository/memstore"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testAdmin = models.Principal{UserID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), Role: models.RoleAdmin}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func userPrincipal(id uuid.UUID) models.Principal {
	return models.Principal{UserID: id, Role: models.RoleUser}
}

// recordingNotifier keeps every event it is given.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, event notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func (n *recordingNotifier) ofType(eventType string) []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Event
	for _, e := range n.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	store      *memstore.Store
	currencies *CurrencyService
	settlement *SettlementService
	notifier   *recordingNotifier
	reminders  *cache.MemoryReminderGate
	clock      *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestEnv wires the services over an in-memory store seeded with NPR as
// reference, USD, INR and GBP, and a 10% default fee.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	q := store.Queries()
	for _, r := range []models.CurrencyRate{
		{Code: "USD", BuyRate: dec("133.5"), SellRate: dec("134")},
		{Code: "INR", BuyRate: dec("1.6"), SellRate: dec("1.6")},
		{Code: "GBP", BuyRate: dec("168.2"), SellRate: dec("170")},
	} {
		require.NoError(t, q.UpsertCurrencyRate(ctx, r))
	}
	for _, m := range []models.CountryCurrency{
		{CountryCode: "US", CurrencyCode: "USD"},
		{CountryCode: "IN", CurrencyCode: "INR"},
		{CountryCode: "GB", CurrencyCode: "GBP"},
		{CountryCode: "NP", CurrencyCode: "NPR"},
	} {
		require.NoError(t, q.UpsertCountryCurrency(ctx, m))
	}
	require.NoError(t, q.SetDefaultFeePercent(ctx, dec("10")))

	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	currencies := NewCurrencyService(store, nil, CurrencyOptions{ReferenceCurrency: "NPR", DefaultFeePercent: dec("10"), TTL: time.Minute})
	currencies.now = clock.Now

	notifier := &recordingNotifier{}
	reminders := cache.NewMemoryReminderGate(time.Hour)
	settlement := NewSettlementService(store, currencies, notifier, reminders, domain.DefaultTolerance())
	settlement.now = clock.Now

	return &testEnv{
		store:      store,
		currencies: currencies,
		settlement: settlement,
		notifier:   notifier,
		reminders:  reminders,
		clock:      clock,
	}
}

// accept previews and accepts offer as its learner.
func (e *testEnv) accept(t *testing.T, offer Offer) models.Session {
	t.Helper()
	ctx := context.Background()
	learner := userPrincipal(offer.LearnerID)
	preview, err := e.settlement.PreviewAcceptance(ctx, learner, offer)
	require.NoError(t, err)
	session, err := e.settlement.AcceptOffer(ctx, learner, offer, preview)
	require.NoError(t, err)
	return session
}

// payAll confirms every required share and returns the pooled transaction.
func (e *testEnv) payAll(t *testing.T, session models.Session) models.Transaction {
	t.Helper()
	var res PaymentResult
	for _, id := range domain.RequiredParticipants(session) {
		var err error
		res, err = e.settlement.ConfirmPayment(context.Background(), userPrincipal(id), session.ID, id)
		require.NoError(t, err)
	}
	require.NotNil(t, res.Transaction)
	return *res.Transaction
}

func singleOffer(budget, budgetCurrency, payer, payout string) Offer {
	return Offer{
		SessionID:      uuid.New(),
		LearnerID:      uuid.New(),
		TeacherID:      uuid.New(),
		Budget:         dec(budget),
		BudgetCurrency: budgetCurrency,
		SplitMode:      domain.SplitModeSingle,
		PayerCurrency:  payer,
		PayoutCurrency: payout,
	}
}

func groupOffer(budget string, members int) Offer {
	o := singleOffer(budget, "USD", "NPR", "GBP")
	o.SplitMode = domain.SplitModeEqual
	for i := 0; i < members; i++ {
		o.GroupMemberIDs = append(o.GroupMemberIDs, uuid.New())
	}
	return o
}
