package commission

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/gembotlabs/gembot-backend/internal/ledger"
	"github.com/gembotlabs/gembot-backend/internal/members"
	"github.com/gembotlabs/gembot-backend/internal/settings"
	"github.com/gembotlabs/gembot-backend/pkg/db/models"
	"github.com/gembotlabs/gembot-backend/pkg/enums"
	"github.com/gembotlabs/gembot-backend/pkg/logger"
)

var engineNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

type fakeMemberStore struct {
	members map[uuid.UUID]*models.Member
}

func newFakeMemberStore() *fakeMemberStore {
	return &fakeMemberStore{members: make(map[uuid.UUID]*models.Member)}
}

func (f *fakeMemberStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	if m, ok := f.members[id]; ok {
		clone := *m
		return &clone, nil
	}
	return nil, nil
}

func (f *fakeMemberStore) CountDirectReferrals(ctx context.Context, memberID uuid.UUID) (int64, error) {
	var count int64
	for _, m := range f.members {
		if m.SponsorID != nil && *m.SponsorID == memberID {
			count++
		}
	}
	return count, nil
}

func (f *fakeMemberStore) ApplyBalanceDeltas(ctx context.Context, memberID uuid.UUID, deltas members.BalanceDeltas) error {
	m, ok := f.members[memberID]
	if !ok {
		return members.ErrInsufficientBalance
	}
	m.EarningsBalance = m.EarningsBalance.Add(deltas.Earnings)
	m.DepositBalance = m.DepositBalance.Add(deltas.Deposit)
	m.TemporaryBalance = m.TemporaryBalance.Add(deltas.Temporary)
	m.TotalIncome = m.TotalIncome.Add(deltas.TotalIncome)
	return nil
}

type fakeLedger struct {
	records []ledger.RecordTransactionInput
}

func (f *fakeLedger) Record(ctx context.Context, input ledger.RecordTransactionInput) (*models.Transaction, error) {
	f.records = append(f.records, input)
	return &models.Transaction{ID: uuid.New(), MemberID: input.MemberID}, nil
}

func (f *fakeLedger) ListForMember(ctx context.Context, memberID uuid.UUID, limit int, types ...enums.TransactionType) ([]models.Transaction, error) {
	return nil, nil
}

func (f *fakeLedger) List(ctx context.Context, offset, limit int, types ...enums.TransactionType) ([]models.Transaction, int64, error) {
	return nil, 0, nil
}

func (f *fakeLedger) TransitionPendingGrace(ctx context.Context, memberID uuid.UUID, to enums.TransactionStatus) (int64, error) {
	return 0, nil
}

func (f *fakeLedger) recordsFor(memberID uuid.UUID) []ledger.RecordTransactionInput {
	var out []ledger.RecordTransactionInput
	for _, r := range f.records {
		if r.MemberID == memberID {
			out = append(out, r)
		}
	}
	return out
}

type fakeConfig struct {
	levels    []settings.LevelConfig
	sub       settings.SubscriptionSettings
	overrides []settings.OverrideCommission
}

func (f *fakeConfig) LevelConfig(ctx context.Context) ([]settings.LevelConfig, error) {
	return f.levels, nil
}

func (f *fakeConfig) Subscription(ctx context.Context) (settings.SubscriptionSettings, error) {
	return f.sub, nil
}

func (f *fakeConfig) OverrideCommissions(ctx context.Context) ([]settings.OverrideCommission, error) {
	return f.overrides, nil
}

func flatLevels(percentages ...string) []settings.LevelConfig {
	levels := make([]settings.LevelConfig, 0, len(percentages))
	for i, pct := range percentages {
		value := decimal.RequireFromString(pct)
		levels = append(levels, settings.LevelConfig{
			Level:                i + 1,
			ActivationPercentage: value,
			RenewalPercentage:    value,
		})
	}
	return levels
}

func newEngine(t *testing.T, config *fakeConfig) (*Service, *fakeMemberStore, *fakeLedger) {
	t.Helper()
	store := newFakeMemberStore()
	led := &fakeLedger{}
	if config.sub.GracePeriodHours == 0 {
		config.sub.GracePeriodHours = 48
	}
	svc, err := NewService(ServiceParams{
		Members: store,
		Ledger:  led,
		Config:  config,
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
	})
	require.NoError(t, err)
	svc.now = func() time.Time { return engineNow }
	return svc, store, led
}

func addMember(store *fakeMemberStore, sponsorID *uuid.UUID, expiresIn time.Duration) *models.Member {
	expires := engineNow.Add(expiresIn)
	member := &models.Member{
		ID:                  uuid.New(),
		SponsorID:           sponsorID,
		SubscriptionExpires: &expires,
	}
	store.members[member.ID] = member
	return member
}

func TestDistributeSingleLevelActivation(t *testing.T) {
	svc, store, led := newEngine(t, &fakeConfig{levels: flatLevels("10")})
	ctx := context.Background()

	sponsor := addMember(store, nil, 24*time.Hour)
	payer := addMember(store, &sponsor.ID, 24*time.Hour)

	err := svc.Distribute(ctx, payer.ID, decimal.NewFromInt(100), enums.PaymentEventActivation)
	require.NoError(t, err)

	got := store.members[sponsor.ID]
	require.True(t, got.EarningsBalance.Equal(decimal.NewFromInt(10)), "earnings = %s", got.EarningsBalance)
	require.True(t, got.TotalIncome.Equal(decimal.NewFromInt(10)), "total income = %s", got.TotalIncome)
	require.True(t, got.TemporaryBalance.IsZero())

	records := led.recordsFor(sponsor.ID)
	require.Len(t, records, 1)
	require.Equal(t, enums.TransactionTypeLevelIncome, records[0].Type)
	require.Equal(t, enums.TransactionStatusCompleted, records[0].Status)
	require.True(t, records[0].Amount.Equal(decimal.NewFromInt(10)))
	require.NotNil(t, records[0].Level)
	require.Equal(t, 1, *records[0].Level)
	require.NotNil(t, records[0].FromMemberID)
	require.Equal(t, payer.ID, *records[0].FromMemberID)
}

func TestDistributeGraceRoutesToTemporaryBalance(t *testing.T) {
	svc, store, led := newEngine(t, &fakeConfig{levels: flatLevels("10")})
	ctx := context.Background()

	sponsor := addMember(store, nil, -time.Hour)
	payer := addMember(store, &sponsor.ID, 24*time.Hour)

	err := svc.Distribute(ctx, payer.ID, decimal.NewFromInt(100), enums.PaymentEventActivation)
	require.NoError(t, err)

	got := store.members[sponsor.ID]
	require.True(t, got.TemporaryBalance.Equal(decimal.NewFromInt(10)), "temporary = %s", got.TemporaryBalance)
	require.True(t, got.EarningsBalance.IsZero(), "grace income must not touch earnings")
	require.True(t, got.TotalIncome.IsZero())

	records := led.recordsFor(sponsor.ID)
	require.Len(t, records, 1)
	require.Equal(t, enums.TransactionStatusPendingGrace, records[0].Status)
}

func TestDistributeFullChain(t *testing.T) {
	svc, store, led := newEngine(t, &fakeConfig{levels: flatLevels("10", "5", "3")})
	ctx := context.Background()

	a := addMember(store, nil, 24*time.Hour)
	b := addMember(store, &a.ID, 24*time.Hour)
	c := addMember(store, &b.ID, 24*time.Hour)
	payer := addMember(store, &c.ID, 24*time.Hour)

	err := svc.Distribute(ctx, payer.ID, decimal.NewFromInt(100), enums.PaymentEventActivation)
	require.NoError(t, err)

	require.True(t, store.members[c.ID].EarningsBalance.Equal(decimal.NewFromInt(10)))
	require.True(t, store.members[b.ID].EarningsBalance.Equal(decimal.NewFromInt(5)))
	require.True(t, store.members[a.ID].EarningsBalance.Equal(decimal.NewFromInt(3)))

	require.Equal(t, 1, *led.recordsFor(c.ID)[0].Level)
	require.Equal(t, 2, *led.recordsFor(b.ID)[0].Level)
	require.Equal(t, 3, *led.recordsFor(a.ID)[0].Level)
}

func TestDistributeCompressionSkipsInactive(t *testing.T) {
	svc, store, led := newEngine(t, &fakeConfig{levels: flatLevels("10", "5")})
	ctx := context.Background()

	a := addMember(store, nil, 24*time.Hour)
	b := addMember(store, &a.ID, 24*time.Hour)
	inactive := addMember(store, &b.ID, -30*24*time.Hour)
	payer := addMember(store, &inactive.ID, 24*time.Hour)

	err := svc.Distribute(ctx, payer.ID, decimal.NewFromInt(100), enums.PaymentEventActivation)
	require.NoError(t, err)

	require.True(t, store.members[inactive.ID].EarningsBalance.IsZero(), "inactive sponsor must receive nothing")
	require.True(t, store.members[inactive.ID].TemporaryBalance.IsZero())
	require.Empty(t, led.recordsFor(inactive.ID))

	// The inactive hop consumed no level slot.
	require.True(t, store.members[b.ID].EarningsBalance.Equal(decimal.NewFromInt(10)))
	require.Equal(t, 1, *led.recordsFor(b.ID)[0].Level)
	require.True(t, store.members[a.ID].EarningsBalance.Equal(decimal.NewFromInt(5)))
	require.Equal(t, 2, *led.recordsFor(a.ID)[0].Level)
}

func TestDistributeUnqualifiedConsumesSlot(t *testing.T) {
	levels := flatLevels("10", "5")
	levels[0].MinDirectReferrals = 5
	svc, store, led := newEngine(t, &fakeConfig{levels: levels})
	ctx := context.Background()

	a := addMember(store, nil, 24*time.Hour)
	b := addMember(store, &a.ID, 24*time.Hour)
	payer := addMember(store, &b.ID, 24*time.Hour)

	err := svc.Distribute(ctx, payer.ID, decimal.NewFromInt(100), enums.PaymentEventActivation)
	require.NoError(t, err)

	// b has one direct referral, below the level 1 minimum of five: skipped,
	// but the slot is spent and a is paid at level 2, not level 1.
	require.True(t, store.members[b.ID].EarningsBalance.IsZero())
	require.Empty(t, led.recordsFor(b.ID))
	require.True(t, store.members[a.ID].EarningsBalance.Equal(decimal.NewFromInt(5)))
	require.Equal(t, 2, *led.recordsFor(a.ID)[0].Level)
}

func TestDistributeRenewalUsesRenewalPercentage(t *testing.T) {
	levels := []settings.LevelConfig{{
		Level:                1,
		ActivationPercentage: decimal.NewFromInt(10),
		RenewalPercentage:    decimal.NewFromInt(2),
	}}
	svc, store, _ := newEngine(t, &fakeConfig{levels: levels})
	ctx := context.Background()

	sponsor := addMember(store, nil, 24*time.Hour)
	payer := addMember(store, &sponsor.ID, 24*time.Hour)

	err := svc.Distribute(ctx, payer.ID, decimal.NewFromInt(70), enums.PaymentEventRenewal)
	require.NoError(t, err)

	want := decimal.RequireFromString("1.4")
	require.True(t, store.members[sponsor.ID].EarningsBalance.Equal(want),
		"earnings = %s, want %s", store.members[sponsor.ID].EarningsBalance, want)
}

func TestDistributeOverrideIsAdditive(t *testing.T) {
	config := &fakeConfig{levels: flatLevels("10")}
	svc, store, led := newEngine(t, config)
	ctx := context.Background()

	sponsor := addMember(store, nil, 24*time.Hour)
	payer := addMember(store, &sponsor.ID, 24*time.Hour)
	config.overrides = []settings.OverrideCommission{{
		MemberID:             sponsor.ID,
		ActivationPercentage: decimal.NewFromInt(5),
	}}

	err := svc.Distribute(ctx, payer.ID, decimal.NewFromInt(100), enums.PaymentEventActivation)
	require.NoError(t, err)

	// Level income 10 plus flat override 5, as two separate transactions.
	require.True(t, store.members[sponsor.ID].EarningsBalance.Equal(decimal.NewFromInt(15)))

	records := led.recordsFor(sponsor.ID)
	require.Len(t, records, 2)
	require.Equal(t, enums.TransactionTypeLevelIncome, records[0].Type)
	require.Equal(t, enums.TransactionTypeAdditionalCommission, records[1].Type)
	require.True(t, records[1].Amount.Equal(decimal.NewFromInt(5)))
}

func TestDistributeOverrideIgnoresStatus(t *testing.T) {
	config := &fakeConfig{levels: flatLevels("10")}
	svc, store, led := newEngine(t, config)
	ctx := context.Background()

	outsider := addMember(store, nil, -30*24*time.Hour)
	payer := addMember(store, nil, 24*time.Hour)
	config.overrides = []settings.OverrideCommission{{
		MemberID:             outsider.ID,
		ActivationPercentage: decimal.NewFromInt(3),
	}}

	err := svc.Distribute(ctx, payer.ID, decimal.NewFromInt(100), enums.PaymentEventActivation)
	require.NoError(t, err)

	require.True(t, store.members[outsider.ID].EarningsBalance.Equal(decimal.NewFromInt(3)),
		"override pays regardless of subscription status")
	require.Equal(t, enums.TransactionStatusCompleted, led.recordsFor(outsider.ID)[0].Status)
}

func TestDistributeStopsWhenLevelsExhausted(t *testing.T) {
	svc, store, led := newEngine(t, &fakeConfig{levels: flatLevels("10")})
	ctx := context.Background()

	a := addMember(store, nil, 24*time.Hour)
	b := addMember(store, &a.ID, 24*time.Hour)
	payer := addMember(store, &b.ID, 24*time.Hour)

	err := svc.Distribute(ctx, payer.ID, decimal.NewFromInt(100), enums.PaymentEventActivation)
	require.NoError(t, err)

	require.True(t, store.members[b.ID].EarningsBalance.Equal(decimal.NewFromInt(10)))
	require.True(t, store.members[a.ID].EarningsBalance.IsZero())
	require.Empty(t, led.recordsFor(a.ID))
}

func TestDistributeCycleIsFatalButPartialCreditsStand(t *testing.T) {
	svc, store, led := newEngine(t, &fakeConfig{levels: flatLevels("10", "5")})
	ctx := context.Background()

	a := addMember(store, nil, 24*time.Hour)
	payer := addMember(store, &a.ID, 24*time.Hour)
	// Corrupt the data: a's sponsor points back at the payer.
	store.members[a.ID].SponsorID = &payer.ID

	err := svc.Distribute(ctx, payer.ID, decimal.NewFromInt(100), enums.PaymentEventActivation)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cycle")

	// The level 1 credit landed before the cycle was detected and stays.
	require.True(t, store.members[a.ID].EarningsBalance.Equal(decimal.NewFromInt(10)))
	require.Len(t, led.recordsFor(a.ID), 1)
}

func TestDistributeMissingSponsorStopsWalk(t *testing.T) {
	svc, store, led := newEngine(t, &fakeConfig{levels: flatLevels("10", "5")})
	ctx := context.Background()

	ghost := uuid.New()
	a := addMember(store, &ghost, 24*time.Hour)
	payer := addMember(store, &a.ID, 24*time.Hour)

	err := svc.Distribute(ctx, payer.ID, decimal.NewFromInt(100), enums.PaymentEventActivation)
	require.NoError(t, err)

	require.True(t, store.members[a.ID].EarningsBalance.Equal(decimal.NewFromInt(10)))
	require.Len(t, led.records, 1)
}

func TestDistributeUnknownPayer(t *testing.T) {
	svc, _, _ := newEngine(t, &fakeConfig{levels: flatLevels("10")})

	err := svc.Distribute(context.Background(), uuid.New(), decimal.NewFromInt(100), enums.PaymentEventActivation)
	require.Error(t, err)
}
