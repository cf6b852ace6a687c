package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gembotlabs/gembot-backend/pkg/db/models"
	"github.com/gembotlabs/gembot-backend/pkg/enums"
)

// Service defines operations that record and query ledger transactions.
type Service interface {
	Record(ctx context.Context, input RecordTransactionInput) (*models.Transaction, error)
	ListForMember(ctx context.Context, memberID uuid.UUID, limit int, types ...enums.TransactionType) ([]models.Transaction, error)
	List(ctx context.Context, offset, limit int, types ...enums.TransactionType) ([]models.Transaction, int64, error)
	TransitionPendingGrace(ctx context.Context, memberID uuid.UUID, to enums.TransactionStatus) (int64, error)
}

type service struct {
	repo Repository
}

// RecordTransactionInput captures the immutable data a transaction requires.
type RecordTransactionInput struct {
	MemberID     uuid.UUID
	Type         enums.TransactionType
	Status       enums.TransactionStatus
	Amount       decimal.Decimal
	Fee          decimal.Decimal
	NetAmount    decimal.Decimal
	Level        *int
	FromMemberID *uuid.UUID
	ToAddress    *string
	TxnID        *string
	TxnHash      *string
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, input RecordTransactionInput) (*models.Transaction, error) {
	if input.MemberID == uuid.Nil {
		return nil, fmt.Errorf("member id is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid transaction type %q", input.Type)
	}
	if input.Status == "" {
		input.Status = enums.TransactionStatusCompleted
	}
	if !input.Status.IsValid() {
		return nil, fmt.Errorf("invalid transaction status %q", input.Status)
	}
	if input.Amount.IsNegative() {
		return nil, fmt.Errorf("amount must not be negative")
	}

	txn := &models.Transaction{
		ID:           uuid.New(),
		MemberID:     input.MemberID,
		Type:         input.Type,
		Status:       input.Status,
		Amount:       input.Amount,
		Fee:          input.Fee,
		NetAmount:    input.NetAmount,
		Level:        input.Level,
		FromMemberID: input.FromMemberID,
		ToAddress:    input.ToAddress,
		TxnID:        input.TxnID,
		TxnHash:      input.TxnHash,
	}

	if err := s.repo.Create(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *service) ListForMember(ctx context.Context, memberID uuid.UUID, limit int, types ...enums.TransactionType) ([]models.Transaction, error) {
	if memberID == uuid.Nil {
		return nil, fmt.Errorf("member id is required")
	}
	return s.repo.ListByMember(ctx, memberID, limit, types...)
}

func (s *service) List(ctx context.Context, offset, limit int, types ...enums.TransactionType) ([]models.Transaction, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	for _, t := range types {
		if !t.IsValid() {
			return nil, 0, fmt.Errorf("invalid transaction type %q", t)
		}
	}
	return s.repo.List(ctx, offset, limit, types...)
}

// TransitionPendingGrace moves all of a member's pending_grace transactions
// to the given terminal status. Only completed and forfeited are legal
// destinations.
func (s *service) TransitionPendingGrace(ctx context.Context, memberID uuid.UUID, to enums.TransactionStatus) (int64, error) {
	if memberID == uuid.Nil {
		return 0, fmt.Errorf("member id is required")
	}
	if to != enums.TransactionStatusCompleted && to != enums.TransactionStatusForfeited {
		return 0, fmt.Errorf("illegal pending_grace transition to %q", to)
	}
	return s.repo.UpdateStatusByMember(ctx, memberID, enums.TransactionStatusPendingGrace, to)
}
