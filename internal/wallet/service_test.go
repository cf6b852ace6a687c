package wallet

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gembotlabs/gembot-backend/internal/ledger"
	"github.com/gembotlabs/gembot-backend/internal/members"
	"github.com/gembotlabs/gembot-backend/internal/settings"
	"github.com/gembotlabs/gembot-backend/pkg/coinconnect"
	"github.com/gembotlabs/gembot-backend/pkg/db/models"
	"github.com/gembotlabs/gembot-backend/pkg/enums"
	pkgerrors "github.com/gembotlabs/gembot-backend/pkg/errors"
	"github.com/gembotlabs/gembot-backend/pkg/logger"
)

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

func (f *fakeMemberStore) FindByEmail(ctx context.Context, email string) (*models.Member, error) {
	for _, m := range f.members {
		if strings.EqualFold(m.Email, email) {
			clone := *m
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeMemberStore) FindByReferralCode(ctx context.Context, code string) (*models.Member, error) {
	for _, m := range f.members {
		if m.ReferralCode == strings.ToUpper(strings.TrimSpace(code)) {
			clone := *m
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeMemberStore) ApplyBalanceDeltas(ctx context.Context, memberID uuid.UUID, deltas members.BalanceDeltas) error {
	m, ok := f.members[memberID]
	if !ok {
		return members.ErrMemberNotFound
	}
	earnings := m.EarningsBalance.Add(deltas.Earnings)
	deposit := m.DepositBalance.Add(deltas.Deposit)
	if earnings.IsNegative() || deposit.IsNegative() {
		return members.ErrInsufficientBalance
	}
	m.EarningsBalance = earnings
	m.DepositBalance = deposit
	m.TemporaryBalance = m.TemporaryBalance.Add(deltas.Temporary)
	m.TotalIncome = m.TotalIncome.Add(deltas.TotalIncome)
	return nil
}

func (f *fakeMemberStore) TransferDeposit(ctx context.Context, senderID, recipientID uuid.UUID, amount, credited decimal.Decimal) error {
	if err := f.ApplyBalanceDeltas(ctx, senderID, members.BalanceDeltas{Deposit: amount.Neg()}); err != nil {
		return err
	}
	if err := f.ApplyBalanceDeltas(ctx, recipientID, members.BalanceDeltas{Deposit: credited}); err != nil {
		f.members[senderID].DepositBalance = f.members[senderID].DepositBalance.Add(amount)
		return err
	}
	return nil
}

type fakeLedger struct {
	records []ledger.RecordTransactionInput
}

func (f *fakeLedger) Record(ctx context.Context, input ledger.RecordTransactionInput) (*models.Transaction, error) {
	f.records = append(f.records, input)
	return &models.Transaction{ID: uuid.New()}, nil
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

type fakeConfig struct {
	wallet settings.WalletSettings
}

func (f *fakeConfig) Wallet(ctx context.Context) (settings.WalletSettings, error) {
	return f.wallet, nil
}

func (f *fakeConfig) CoinConnect(ctx context.Context) (*settings.CoinConnectDocument, error) {
	return nil, nil
}

type fakeProvider struct {
	result     *coinconnect.WithdrawResult
	err        error
	lastParams coinconnect.WithdrawParams
	calls      int
}

func (f *fakeProvider) Withdraw(ctx context.Context, creds coinconnect.Credentials, params coinconnect.WithdrawParams) (*coinconnect.WithdrawResult, error) {
	f.calls++
	f.lastParams = params
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeProvider) EnvCredentials() coinconnect.Credentials {
	return coinconnect.Credentials{Key: "env-key", Secret: "env-secret"}
}

func defaultWalletSettings() settings.WalletSettings {
	return settings.WalletSettings{
		EarningsToDepositFee: decimal.NewFromInt(1),
		DepositToEarningsFee: decimal.NewFromInt(1),
		UserTransferFee:      decimal.NewFromInt(1),
		WithdrawalFee:        decimal.NewFromInt(2),
		MinTransferAmount:    decimal.NewFromInt(1),
		MinWithdrawalAmount:  decimal.NewFromInt(10),
	}
}

func newTestService(t *testing.T) (*Service, *fakeMemberStore, *fakeLedger, *fakeProvider) {
	t.Helper()
	store := newFakeMemberStore()
	led := &fakeLedger{}
	provider := &fakeProvider{result: &coinconnect.WithdrawResult{Status: coinconnect.StatusOK, TxnHash: "0xhash"}}
	svc, err := NewService(ServiceParams{
		Members:  store,
		Ledger:   led,
		Config:   &fakeConfig{wallet: defaultWalletSettings()},
		Provider: provider,
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store, led, provider
}

func seedMember(store *fakeMemberStore, email, code string, earnings, deposit int64) *models.Member {
	address := "0xwallet"
	member := &models.Member{
		ID:              uuid.New(),
		Email:           email,
		ReferralCode:    code,
		WalletAddress:   &address,
		EarningsBalance: decimal.NewFromInt(earnings),
		DepositBalance:  decimal.NewFromInt(deposit),
	}
	store.members[member.ID] = member
	return member
}

func TestInternalTransferEarningsToDeposit(t *testing.T) {
	svc, store, led, _ := newTestService(t)
	member := seedMember(store, "a@example.com", "GEMAAA111", 100, 0)

	result, err := svc.InternalTransfer(context.Background(), member.ID, enums.TransferKindEarningsToDeposit, decimal.NewFromInt(50))
	if err != nil {
		t.Fatalf("internal transfer: %v", err)
	}

	// 1% fee: 50 leaves earnings, 49.5 lands in deposit.
	wantNet := decimal.RequireFromString("49.5")
	if !result.NetAmount.Equal(wantNet) {
		t.Fatalf("net = %s, want %s", result.NetAmount, wantNet)
	}
	got := store.members[member.ID]
	if !got.EarningsBalance.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("earnings = %s, want 50", got.EarningsBalance)
	}
	if !got.DepositBalance.Equal(wantNet) {
		t.Fatalf("deposit = %s, want %s", got.DepositBalance, wantNet)
	}

	if len(led.records) != 1 || led.records[0].Type != enums.TransactionTypeInternalTransfer {
		t.Fatalf("unexpected records: %+v", led.records)
	}
	if !led.records[0].Fee.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("fee = %s, want 0.5", led.records[0].Fee)
	}
}

func TestInternalTransferInsufficientBalance(t *testing.T) {
	svc, store, led, _ := newTestService(t)
	member := seedMember(store, "a@example.com", "GEMAAA111", 10, 0)

	_, err := svc.InternalTransfer(context.Background(), member.ID, enums.TransferKindEarningsToDeposit, decimal.NewFromInt(50))
	if err == nil || !strings.Contains(err.Error(), "Insufficient") {
		t.Fatalf("expected insufficient balance rejection, got %v", err)
	}
	got := store.members[member.ID]
	if !got.EarningsBalance.Equal(decimal.NewFromInt(10)) || !got.DepositBalance.IsZero() {
		t.Fatal("rejected transfer must not move funds")
	}
	if len(led.records) != 0 {
		t.Fatal("rejected transfer must not be ledgered")
	}
}

func TestInternalTransferBelowMinimum(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	member := seedMember(store, "a@example.com", "GEMAAA111", 100, 0)

	_, err := svc.InternalTransfer(context.Background(), member.ID, enums.TransferKindDepositToEarnings, decimal.RequireFromString("0.5"))
	if err == nil || !strings.Contains(err.Error(), "Minimum") {
		t.Fatalf("expected minimum amount rejection, got %v", err)
	}
}

func TestUserTransferByReferralCode(t *testing.T) {
	svc, store, led, _ := newTestService(t)
	sender := seedMember(store, "sender@example.com", "GEMSND001", 0, 100)
	recipient := seedMember(store, "rcpt@example.com", "GEMRCP001", 0, 0)

	result, err := svc.UserTransfer(context.Background(), sender.ID, "GEMRCP001", decimal.NewFromInt(40))
	if err != nil {
		t.Fatalf("user transfer: %v", err)
	}

	wantNet := decimal.RequireFromString("39.6")
	if !result.NetAmount.Equal(wantNet) {
		t.Fatalf("net = %s, want %s", result.NetAmount, wantNet)
	}
	if !store.members[sender.ID].DepositBalance.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("sender deposit = %s, want 60", store.members[sender.ID].DepositBalance)
	}
	if !store.members[recipient.ID].DepositBalance.Equal(wantNet) {
		t.Fatalf("recipient deposit = %s, want %s", store.members[recipient.ID].DepositBalance, wantNet)
	}

	if len(led.records) != 1 {
		t.Fatalf("expected one record, got %d", len(led.records))
	}
	record := led.records[0]
	if record.MemberID != recipient.ID {
		t.Fatal("transaction must belong to the recipient")
	}
	if record.FromMemberID == nil || *record.FromMemberID != sender.ID {
		t.Fatal("sender must be recorded as from_member_id")
	}
}

func TestUserTransferByEmail(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	sender := seedMember(store, "sender@example.com", "GEMSND001", 0, 100)
	recipient := seedMember(store, "rcpt@example.com", "GEMRCP001", 0, 0)

	if _, err := svc.UserTransfer(context.Background(), sender.ID, "Rcpt@Example.com", decimal.NewFromInt(10)); err != nil {
		t.Fatalf("user transfer by email: %v", err)
	}
	if store.members[recipient.ID].DepositBalance.IsZero() {
		t.Fatal("recipient not credited")
	}
}

func TestUserTransferToSelf(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	sender := seedMember(store, "self@example.com", "GEMSELF01", 0, 100)

	_, err := svc.UserTransfer(context.Background(), sender.ID, "GEMSELF01", decimal.NewFromInt(10))
	if err == nil || !strings.Contains(err.Error(), "yourself") {
		t.Fatalf("expected self-transfer rejection, got %v", err)
	}
	if !store.members[sender.ID].DepositBalance.Equal(decimal.NewFromInt(100)) {
		t.Fatal("rejected transfer must not move funds")
	}
}

func TestUserTransferInsufficientBalance(t *testing.T) {
	svc, store, led, _ := newTestService(t)
	sender := seedMember(store, "sender@example.com", "GEMSND001", 0, 5)
	recipient := seedMember(store, "rcpt@example.com", "GEMRCP001", 0, 0)

	_, err := svc.UserTransfer(context.Background(), sender.ID, "GEMRCP001", decimal.NewFromInt(10))
	if err == nil || !strings.Contains(err.Error(), "Insufficient") {
		t.Fatalf("expected insufficient balance rejection, got %v", err)
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientFunds {
		t.Fatalf("expected INSUFFICIENT_FUNDS, got %v", err)
	}
	if !store.members[sender.ID].DepositBalance.Equal(decimal.NewFromInt(5)) {
		t.Fatal("rejected transfer must not move funds")
	}
	if !store.members[recipient.ID].DepositBalance.IsZero() {
		t.Fatal("recipient must not be credited")
	}
	if len(led.records) != 0 {
		t.Fatal("rejected transfer must not be ledgered")
	}
}

// vanishingRecipientStore drops the recipient row between recipient lookup
// and the balance movement, mimicking a concurrent delete.
type vanishingRecipientStore struct {
	*fakeMemberStore
}

func (s *vanishingRecipientStore) TransferDeposit(ctx context.Context, senderID, recipientID uuid.UUID, amount, credited decimal.Decimal) error {
	delete(s.members, recipientID)
	return s.fakeMemberStore.TransferDeposit(ctx, senderID, recipientID, amount, credited)
}

func TestUserTransferVanishedRecipientKeepsSenderWhole(t *testing.T) {
	store := newFakeMemberStore()
	led := &fakeLedger{}
	svc, err := NewService(ServiceParams{
		Members:  &vanishingRecipientStore{fakeMemberStore: store},
		Ledger:   led,
		Config:   &fakeConfig{wallet: defaultWalletSettings()},
		Provider: &fakeProvider{},
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	sender := seedMember(store, "sender@example.com", "GEMSND001", 0, 100)
	seedMember(store, "rcpt@example.com", "GEMRCP001", 0, 0)

	_, err = svc.UserTransfer(context.Background(), sender.ID, "GEMRCP001", decimal.NewFromInt(40))
	if err == nil || !strings.Contains(err.Error(), "member not found") {
		t.Fatalf("expected member not found, got %v", err)
	}
	if !store.members[sender.ID].DepositBalance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("sender deposit = %s, want 100", store.members[sender.ID].DepositBalance)
	}
	if len(led.records) != 0 {
		t.Fatal("failed transfer must not be ledgered")
	}
}

func TestUserTransferUnknownRecipient(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	sender := seedMember(store, "sender@example.com", "GEMSND001", 0, 100)

	_, err := svc.UserTransfer(context.Background(), sender.ID, "GEMNOPE99", decimal.NewFromInt(10))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected unknown recipient rejection, got %v", err)
	}
}

func TestWithdrawSuccess(t *testing.T) {
	svc, store, led, provider := newTestService(t)
	member := seedMember(store, "w@example.com", "GEMWDR001", 100, 0)

	result, err := svc.Withdraw(context.Background(), member.ID, "0xdest", decimal.NewFromInt(50))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	// Flat 2 USDT fee: 48 goes out, the full 50 leaves earnings.
	if !result.NetAmount.Equal(decimal.NewFromInt(48)) {
		t.Fatalf("net = %s, want 48", result.NetAmount)
	}
	if !regexp.MustCompile(`^GEM-[0-9A-F]{8}$`).MatchString(result.TxnID) {
		t.Fatalf("unexpected txn id %q", result.TxnID)
	}
	if result.TxnHash != "0xhash" {
		t.Fatalf("txn hash = %q", result.TxnHash)
	}

	if !provider.lastParams.Amount.Equal(decimal.NewFromInt(48)) {
		t.Fatalf("provider amount = %s, want 48", provider.lastParams.Amount)
	}
	if provider.lastParams.ToAddress != "0xdest" || provider.lastParams.UserEmail != "w@example.com" {
		t.Fatalf("unexpected provider params %+v", provider.lastParams)
	}

	if !store.members[member.ID].EarningsBalance.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("earnings = %s, want 50", store.members[member.ID].EarningsBalance)
	}
	if len(led.records) != 1 || led.records[0].Type != enums.TransactionTypeWithdrawal {
		t.Fatalf("unexpected records: %+v", led.records)
	}
	if led.records[0].TxnHash == nil || *led.records[0].TxnHash != "0xhash" {
		t.Fatal("txn hash not ledgered")
	}
}

func TestWithdrawProviderRejection(t *testing.T) {
	svc, store, led, provider := newTestService(t)
	provider.result = &coinconnect.WithdrawResult{Status: coinconnect.StatusNotOK, Message: "hot wallet empty"}
	member := seedMember(store, "w@example.com", "GEMWDR001", 100, 0)

	_, err := svc.Withdraw(context.Background(), member.ID, "0xdest", decimal.NewFromInt(50))
	if err == nil || !strings.Contains(err.Error(), "hot wallet empty") {
		t.Fatalf("expected provider message surfaced, got %v", err)
	}
	if !store.members[member.ID].EarningsBalance.Equal(decimal.NewFromInt(100)) {
		t.Fatal("funds must not be debited on provider rejection")
	}
	if len(led.records) != 0 {
		t.Fatal("rejected withdrawal must not be ledgered")
	}
}

func TestWithdrawInsufficientBalance(t *testing.T) {
	svc, store, _, provider := newTestService(t)
	member := seedMember(store, "w@example.com", "GEMWDR001", 20, 0)

	_, err := svc.Withdraw(context.Background(), member.ID, "0xdest", decimal.NewFromInt(50))
	if err == nil || !strings.Contains(err.Error(), "Insufficient") {
		t.Fatalf("expected insufficient balance rejection, got %v", err)
	}
	if provider.calls != 0 {
		t.Fatal("provider must not be called when the balance check fails")
	}
}

func TestWithdrawBelowMinimum(t *testing.T) {
	svc, store, _, provider := newTestService(t)
	member := seedMember(store, "w@example.com", "GEMWDR001", 100, 0)

	_, err := svc.Withdraw(context.Background(), member.ID, "0xdest", decimal.NewFromInt(5))
	if err == nil || !strings.Contains(err.Error(), "Minimum") {
		t.Fatalf("expected minimum amount rejection, got %v", err)
	}
	if provider.calls != 0 {
		t.Fatal("provider must not be called below the minimum")
	}
}
