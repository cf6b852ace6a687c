package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Member is a node in the referral tree.
//
// SponsorID is assigned exactly once at profile completion and never
// reassigned, which is what rules out cycles by construction. DirectReferrals
// is denormalized and must be bumped in the same transaction as the profile
// write that assigns the sponsor.
type Member struct {
	ID                  uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email               string          `gorm:"type:text;not null;uniqueIndex" json:"email"`
	FirstName           *string         `gorm:"column:first_name" json:"first_name"`
	LastName            *string         `gorm:"column:last_name" json:"last_name"`
	Mobile              *string         `gorm:"column:mobile" json:"mobile"`
	WalletAddress       *string         `gorm:"column:wallet_address" json:"wallet_address"`
	ReferralCode        string          `gorm:"column:referral_code;not null;uniqueIndex" json:"referral_code"`
	SponsorID           *uuid.UUID      `gorm:"type:uuid;column:sponsor_id;index" json:"sponsor_id"`
	IsActive            bool            `gorm:"column:is_active;not null;default:false" json:"is_active"`
	SubscriptionExpires *time.Time      `gorm:"column:subscription_expires" json:"subscription_expires"`
	EarningsBalance     decimal.Decimal `gorm:"type:numeric(18,2);column:earnings_balance;not null;default:0" json:"earnings_balance"`
	DepositBalance      decimal.Decimal `gorm:"type:numeric(18,2);column:deposit_balance;not null;default:0" json:"deposit_balance"`
	TemporaryBalance    decimal.Decimal `gorm:"type:numeric(18,2);column:temporary_balance;not null;default:0" json:"temporary_balance"`
	TotalIncome         decimal.Decimal `gorm:"type:numeric(18,2);column:total_income;not null;default:0" json:"total_income"`
	DirectReferrals     int             `gorm:"column:direct_referrals;not null;default:0" json:"direct_referrals"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// ProfileComplete reports whether the member finished the post-OTP profile step.
func (m Member) ProfileComplete() bool {
	return m.FirstName != nil
}
