package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gembotlabs/gembot-backend/pkg/db/models"
	"github.com/gembotlabs/gembot-backend/pkg/enums"
)

type fakeRepository struct {
	createFn     func(ctx context.Context, txn *models.Transaction) error
	transitioned int64
	lastFrom     enums.TransactionStatus
	lastTo       enums.TransactionStatus
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, txn *models.Transaction) error {
	if f.createFn != nil {
		return f.createFn(ctx, txn)
	}
	return nil
}

func (f *fakeRepository) ListByMember(ctx context.Context, memberID uuid.UUID, limit int, types ...enums.TransactionType) ([]models.Transaction, error) {
	return nil, nil
}

func (f *fakeRepository) List(ctx context.Context, offset, limit int, types ...enums.TransactionType) ([]models.Transaction, int64, error) {
	return nil, 0, nil
}

func (f *fakeRepository) UpdateStatusByMember(ctx context.Context, memberID uuid.UUID, from, to enums.TransactionStatus) (int64, error) {
	f.lastFrom = from
	f.lastTo = to
	return f.transitioned, nil
}

func TestService_Record(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	level := 3
	from := uuid.New()
	input := RecordTransactionInput{
		MemberID:     uuid.New(),
		Type:         enums.TransactionTypeLevelIncome,
		Status:       enums.TransactionStatusPendingGrace,
		Amount:       decimal.NewFromFloat(2.1),
		Level:        &level,
		FromMemberID: &from,
	}

	var created *models.Transaction
	repo.createFn = func(ctx context.Context, txn *models.Transaction) error {
		created = txn
		return nil
	}

	got, err := svc.Record(context.Background(), input)
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if created == nil {
		t.Fatal("expected transaction to be created")
	}
	if created.ID == uuid.Nil {
		t.Fatal("transaction id not assigned")
	}
	if created.MemberID != input.MemberID || created.Type != input.Type || created.Status != input.Status {
		t.Fatalf("unexpected transaction data: %+v", created)
	}
	if !created.Amount.Equal(input.Amount) {
		t.Fatalf("amount mismatch: %s", created.Amount)
	}
	if created.Level == nil || *created.Level != level {
		t.Fatalf("level not carried: %v", created.Level)
	}
	if created.FromMemberID == nil || *created.FromMemberID != from {
		t.Fatalf("from member not carried: %v", created.FromMemberID)
	}
	if got != created {
		t.Fatal("service should return the created transaction")
	}
}

func TestService_RecordDefaultsStatusCompleted(t *testing.T) {
	repo := &fakeRepository{}
	svc, _ := NewService(repo)

	var created *models.Transaction
	repo.createFn = func(ctx context.Context, txn *models.Transaction) error {
		created = txn
		return nil
	}

	_, err := svc.Record(context.Background(), RecordTransactionInput{
		MemberID: uuid.New(),
		Type:     enums.TransactionTypeActivation,
		Amount:   decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if created.Status != enums.TransactionStatusCompleted {
		t.Fatalf("expected completed default, got %s", created.Status)
	}
}

func TestService_RecordValidation(t *testing.T) {
	repo := &fakeRepository{}
	svc, _ := NewService(repo)

	tests := []struct {
		name  string
		input RecordTransactionInput
	}{
		{
			name: "missing member id",
			input: RecordTransactionInput{
				Type:   enums.TransactionTypeActivation,
				Amount: decimal.NewFromInt(100),
			},
		},
		{
			name: "invalid type",
			input: RecordTransactionInput{
				MemberID: uuid.New(),
				Type:     enums.TransactionType("not_real"),
				Amount:   decimal.NewFromInt(100),
			},
		},
		{
			name: "invalid status",
			input: RecordTransactionInput{
				MemberID: uuid.New(),
				Type:     enums.TransactionTypeRenewal,
				Status:   enums.TransactionStatus("queued"),
				Amount:   decimal.NewFromInt(70),
			},
		},
		{
			name: "negative amount",
			input: RecordTransactionInput{
				MemberID: uuid.New(),
				Type:     enums.TransactionTypeWithdrawal,
				Amount:   decimal.NewFromInt(-10),
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Record(context.Background(), tc.input); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestService_RecordRepoError(t *testing.T) {
	repo := &fakeRepository{}
	svc, _ := NewService(repo)

	expectedErr := errors.New("boom")
	repo.createFn = func(ctx context.Context, txn *models.Transaction) error {
		return expectedErr
	}

	if _, err := svc.Record(context.Background(), RecordTransactionInput{
		MemberID: uuid.New(),
		Type:     enums.TransactionTypeActivation,
		Amount:   decimal.NewFromInt(100),
	}); !errors.Is(err, expectedErr) {
		t.Fatalf("expected repo error to bubble up, got %v", err)
	}
}

func TestService_TransitionPendingGrace(t *testing.T) {
	repo := &fakeRepository{transitioned: 4}
	svc, _ := NewService(repo)
	ctx := context.Background()
	memberID := uuid.New()

	moved, err := svc.TransitionPendingGrace(ctx, memberID, enums.TransactionStatusCompleted)
	if err != nil {
		t.Fatalf("transition error: %v", err)
	}
	if moved != 4 {
		t.Fatalf("expected 4 rows moved, got %d", moved)
	}
	if repo.lastFrom != enums.TransactionStatusPendingGrace || repo.lastTo != enums.TransactionStatusCompleted {
		t.Fatalf("unexpected transition %s -> %s", repo.lastFrom, repo.lastTo)
	}

	if _, err := svc.TransitionPendingGrace(ctx, memberID, enums.TransactionStatusForfeited); err != nil {
		t.Fatalf("forfeit transition error: %v", err)
	}

	if _, err := svc.TransitionPendingGrace(ctx, memberID, enums.TransactionStatusPendingGrace); err == nil {
		t.Fatal("pending_grace is not a legal destination")
	}
	if _, err := svc.TransitionPendingGrace(ctx, uuid.Nil, enums.TransactionStatusCompleted); err == nil {
		t.Fatal("nil member id must be rejected")
	}
}
