package members

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gembotlabs/gembot-backend/pkg/db/models"
)

// BalanceDeltas describes an atomic adjustment to a member's balance
// buckets. Each non-zero field becomes a `col = col + ?` expression in a
// single UPDATE, so concurrent credits never lose updates.
type BalanceDeltas struct {
	Earnings    decimal.Decimal
	Deposit     decimal.Decimal
	Temporary   decimal.Decimal
	TotalIncome decimal.Decimal
}

// IsZero reports whether the adjustment would change nothing.
func (d BalanceDeltas) IsZero() bool {
	return d.Earnings.IsZero() && d.Deposit.IsZero() && d.Temporary.IsZero() && d.TotalIncome.IsZero()
}

// ErrInsufficientBalance is returned when a guarded debit would push a
// bucket below zero.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ErrMemberNotFound is returned by balance mutations aimed at an id with no
// member row behind it.
var ErrMemberNotFound = errors.New("member not found")

// Repository manages persistence for members.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, member *models.Member) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
	FindByEmail(ctx context.Context, email string) (*models.Member, error)
	FindByReferralCode(ctx context.Context, code string) (*models.Member, error)
	ListBySponsor(ctx context.Context, sponsorIDs []uuid.UUID) ([]models.Member, error)
	CountDirectReferrals(ctx context.Context, memberID uuid.UUID) (int64, error)
	ApplyBalanceDeltas(ctx context.Context, memberID uuid.UUID, deltas BalanceDeltas) error
	TransferDeposit(ctx context.Context, senderID, recipientID uuid.UUID, amount, credited decimal.Decimal) error
	IncrementDirectReferrals(ctx context.Context, memberID uuid.UUID) error
	SetFields(ctx context.Context, memberID uuid.UUID, fields map[string]any) error
	List(ctx context.Context, offset, limit int) ([]models.Member, int64, error)
	ListExpired(ctx context.Context, asOf time.Time) ([]models.Member, error)
	ListWithTemporaryBalance(ctx context.Context) ([]models.Member, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a member repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, member *models.Member) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	var member models.Member
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*models.Member, error) {
	var member models.Member
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) FindByReferralCode(ctx context.Context, code string) (*models.Member, error) {
	var member models.Member
	err := r.db.WithContext(ctx).
		Where("referral_code = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) ListBySponsor(ctx context.Context, sponsorIDs []uuid.UUID) ([]models.Member, error) {
	if len(sponsorIDs) == 0 {
		return nil, nil
	}
	var found []models.Member
	if err := r.db.WithContext(ctx).
		Where("sponsor_id IN ?", sponsorIDs).
		Order("created_at ASC").
		Find(&found).Error; err != nil {
		return nil, err
	}
	return found, nil
}

func (r *repository) CountDirectReferrals(ctx context.Context, memberID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Member{}).
		Where("sponsor_id = ?", memberID).
		Count(&count).Error
	return count, err
}

func (r *repository) ApplyBalanceDeltas(ctx context.Context, memberID uuid.UUID, deltas BalanceDeltas) error {
	if deltas.IsZero() {
		return nil
	}

	updates := map[string]any{}
	guards := []string{"id = ?"}
	args := []any{memberID}

	apply := func(column string, delta decimal.Decimal) {
		if delta.IsZero() {
			return
		}
		updates[column] = gorm.Expr(column+" + ?", delta)
		if delta.IsNegative() {
			guards = append(guards, column+" + ? >= 0")
			args = append(args, delta)
		}
	}
	apply("earnings_balance", deltas.Earnings)
	apply("deposit_balance", deltas.Deposit)
	apply("temporary_balance", deltas.Temporary)
	apply("total_income", deltas.TotalIncome)

	res := r.db.WithContext(ctx).
		Model(&models.Member{}).
		Where(strings.Join(guards, " AND "), args...).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Zero rows means either a failed guard or no such member. Only the
		// former is an insufficient balance.
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&models.Member{}).
			Where("id = ?", memberID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrMemberNotFound
		}
		return ErrInsufficientBalance
	}
	return nil
}

// TransferDeposit debits amount from the sender's deposit balance and credits
// the recipient with the post-fee amount in one transaction. Either both rows
// change or neither does.
func (r *repository) TransferDeposit(ctx context.Context, senderID, recipientID uuid.UUID, amount, credited decimal.Decimal) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scoped := r.WithTx(tx)
		if err := scoped.ApplyBalanceDeltas(ctx, senderID, BalanceDeltas{Deposit: amount.Neg()}); err != nil {
			return err
		}
		return scoped.ApplyBalanceDeltas(ctx, recipientID, BalanceDeltas{Deposit: credited})
	})
}

func (r *repository) IncrementDirectReferrals(ctx context.Context, memberID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Member{}).
		Where("id = ?", memberID).
		Update("direct_referrals", gorm.Expr("direct_referrals + 1")).Error
}

func (r *repository) SetFields(ctx context.Context, memberID uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Member{}).
		Where("id = ?", memberID).
		Updates(fields).Error
}

func (r *repository) List(ctx context.Context, offset, limit int) ([]models.Member, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Member{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var found []models.Member
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&found).Error; err != nil {
		return nil, 0, err
	}
	return found, total, nil
}

func (r *repository) ListExpired(ctx context.Context, asOf time.Time) ([]models.Member, error) {
	var found []models.Member
	if err := r.db.WithContext(ctx).
		Where("subscription_expires IS NOT NULL AND subscription_expires < ?", asOf).
		Order("subscription_expires ASC").
		Find(&found).Error; err != nil {
		return nil, err
	}
	return found, nil
}

func (r *repository) ListWithTemporaryBalance(ctx context.Context) ([]models.Member, error) {
	var found []models.Member
	if err := r.db.WithContext(ctx).
		Where("temporary_balance > 0").
		Find(&found).Error; err != nil {
		return nil, err
	}
	return found, nil
}
