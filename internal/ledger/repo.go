package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gembotlabs/gembot-backend/pkg/db/models"
	"github.com/gembotlabs/gembot-backend/pkg/enums"
)

// Repository manages persistence for ledger transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.Transaction) error
	ListByMember(ctx context.Context, memberID uuid.UUID, limit int, types ...enums.TransactionType) ([]models.Transaction, error)
	List(ctx context.Context, offset, limit int, types ...enums.TransactionType) ([]models.Transaction, int64, error)
	UpdateStatusByMember(ctx context.Context, memberID uuid.UUID, from, to enums.TransactionStatus) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListByMember(ctx context.Context, memberID uuid.UUID, limit int, types ...enums.TransactionType) ([]models.Transaction, error) {
	query := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("created_at DESC")
	if len(types) > 0 {
		query = query.Where("type IN ?", types)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var txns []models.Transaction
	if err := query.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repository) List(ctx context.Context, offset, limit int, types ...enums.TransactionType) ([]models.Transaction, int64, error) {
	counter := r.db.WithContext(ctx).Model(&models.Transaction{})
	query := r.db.WithContext(ctx)
	if len(types) > 0 {
		counter = counter.Where("type IN ?", types)
		query = query.Where("type IN ?", types)
	}

	var total int64
	if err := counter.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txns []models.Transaction
	if err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&txns).Error; err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

func (r *repository) UpdateStatusByMember(ctx context.Context, memberID uuid.UUID, from, to enums.TransactionStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("member_id = ? AND status = ?", memberID, from).
		Update("status", to)
	return res.RowsAffected, res.Error
}
